// Package jetstream implements types.Transport over a NATS JetStream stream.
//
// Each contribution is published to two subjects of the run's stream:
//
//	<prefix>.<runID>.<rank>.length   decimal element count, plus chunk count and xxh3 checksum headers
//	<prefix>.<runID>.<rank>.payload  little-endian int32 values, split into chunks
//
// The coordinator reads a rank with an ordered consumer filtered to that
// rank's subjects, so frames arrive in publish order and a payload seen before
// its length is a protocol violation. Messages persist in the stream until the
// coordinator purges the run, so workers may send before the coordinator starts
// receiving.
package jetstream

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/zeebo/xxh3"

	"github.com/Brandon-Parker9/fractal/internal/kvutil"
	"github.com/Brandon-Parker9/fractal/transport"
	"github.com/Brandon-Parker9/fractal/types"
)

// Header names carried by frames.
const (
	HeaderTag      = "Fractal-Tag"
	HeaderRank     = "Fractal-Rank"
	HeaderChunks   = "Fractal-Chunks"
	HeaderChecksum = "Fractal-Checksum"
	HeaderChunk    = "Fractal-Chunk"
)

// Defaults for Config.
const (
	DefaultStream        = "FRACTAL_ROWS"
	DefaultSubjectPrefix = "fractal.rows"
	DefaultChunkSize     = 512 * 1024
	DefaultMaxAge        = time.Hour
)

// Config describes the stream a run's contributions flow through.
type Config struct {
	// Stream is the JetStream stream name.
	Stream string
	// SubjectPrefix is the subject root; the stream captures "<SubjectPrefix>.>".
	SubjectPrefix string
	// RunID scopes subjects so concurrent runs share the stream safely.
	RunID string
	// Size is the number of ranks.
	Size int
	// ChunkSize is the maximum payload bytes per message, rounded down to a
	// multiple of 4. It must stay below the server's max_payload.
	ChunkSize int
	// Storage selects file or memory storage for a newly created stream.
	Storage jetstream.StorageType
	// MaxAge expires contributions a crashed coordinator never purged.
	MaxAge time.Duration
}

func (c *Config) setDefaults() {
	if c.Stream == "" {
		c.Stream = DefaultStream
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = DefaultSubjectPrefix
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	c.ChunkSize -= c.ChunkSize % transport.BytesPerElement
	if c.ChunkSize == 0 {
		c.ChunkSize = transport.BytesPerElement
	}
	if c.MaxAge <= 0 {
		c.MaxAge = DefaultMaxAge
	}
}

func (c *Config) validate() error {
	if c.RunID == "" || strings.ContainsAny(c.RunID, ".*> \t") {
		return fmt.Errorf("%w: run ID %q is not a subject token", types.ErrInvalidConfig, c.RunID)
	}
	if c.Size <= 0 {
		return fmt.Errorf("%w: size must be > 0, got %d", types.ErrInvalidConfig, c.Size)
	}

	return nil
}

// Transport sends and receives contributions through JetStream.
type Transport struct {
	js     jetstream.JetStream
	stream jetstream.Stream
	cfg    Config
	opts   transport.Options

	mu     sync.Mutex
	closed bool
}

// Compile-time assertion that Transport implements types.Transport.
var _ types.Transport = (*Transport)(nil)

// New opens (or creates) the stream and returns a transport bound to one run.
//
// Parameters:
//   - ctx: Context for stream setup
//   - nc: NATS connection; it is borrowed, Close does not close it
//   - cfg: Stream and run configuration
//   - opts: Common transport options
//
// Returns:
//   - *Transport: Ready transport
//   - error: types.ErrNATSConnectionRequired, types.ErrInvalidConfig, or stream setup failure
func New(ctx context.Context, nc *nats.Conn, cfg Config, opts ...transport.Option) (*Transport, error) {
	if nc == nil {
		return nil, types.ErrNATSConnectionRequired
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	stream, err := kvutil.EnsureStreamWithRetry(ctx, js, jetstream.StreamConfig{
		Name:        cfg.Stream,
		Description: "Fractal row contributions",
		Subjects:    []string{cfg.SubjectPrefix + ".>"},
		Storage:     cfg.Storage,
		MaxAge:      cfg.MaxAge,
	}, 3)
	if err != nil {
		return nil, err
	}

	return &Transport{js: js, stream: stream, cfg: cfg, opts: transport.Apply(opts...)}, nil
}

func (t *Transport) subject(rank int, tag transport.Tag) string {
	return fmt.Sprintf("%s.%s.%d.%s", t.cfg.SubjectPrefix, t.cfg.RunID, rank, tag)
}

func (t *Transport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.closed
}

// Send publishes the length frame and then the payload chunks of rank.
func (t *Transport) Send(ctx context.Context, rank int, buf types.RowBuffer) error {
	if t.isClosed() {
		return types.ErrTransportClosed
	}
	if err := transport.CheckRank(rank, t.cfg.Size); err != nil {
		return err
	}

	data := encode(buf)
	if err := t.send(ctx, rank, len(buf), data); err != nil {
		t.opts.Metrics.RecordTransfer(transport.DirectionSend, 0, false)
		return err
	}

	t.opts.Metrics.RecordTransfer(transport.DirectionSend, len(data), true)
	t.opts.Logger.Debug("contribution published", "rank", rank, "elements", len(buf), "bytes", len(data))

	return nil
}

func (t *Transport) send(ctx context.Context, rank, elements int, data []byte) error {
	chunks := (len(data) + t.cfg.ChunkSize - 1) / t.cfg.ChunkSize

	lengthMsg := nats.NewMsg(t.subject(rank, transport.TagLength))
	lengthMsg.Data = []byte(strconv.Itoa(elements))
	lengthMsg.Header.Set(HeaderTag, transport.TagLength.String())
	lengthMsg.Header.Set(HeaderRank, strconv.Itoa(rank))
	lengthMsg.Header.Set(HeaderChunks, strconv.Itoa(chunks))
	lengthMsg.Header.Set(HeaderChecksum, strconv.FormatUint(xxh3.Hash(data), 16))

	if _, err := t.js.PublishMsg(ctx, lengthMsg); err != nil {
		return fmt.Errorf("rank %d: failed to publish length: %w", rank, err)
	}

	for i := range chunks {
		end := min((i+1)*t.cfg.ChunkSize, len(data))

		msg := nats.NewMsg(t.subject(rank, transport.TagPayload))
		msg.Data = data[i*t.cfg.ChunkSize : end]
		msg.Header.Set(HeaderTag, transport.TagPayload.String())
		msg.Header.Set(HeaderRank, strconv.Itoa(rank))
		msg.Header.Set(HeaderChunk, strconv.Itoa(i))

		if _, err := t.js.PublishMsg(ctx, msg); err != nil {
			return fmt.Errorf("rank %d: failed to publish payload chunk %d/%d: %w", rank, i+1, chunks, err)
		}
	}

	return nil
}

// Receive reads rank's length frame and payload chunks in publish order.
//
// Returns:
//   - types.RowBuffer: The contribution
//   - error: types.ErrProtocol, types.ErrAllocation, types.ErrChecksumMismatch,
//     or the context/NATS error that interrupted the read
func (t *Transport) Receive(ctx context.Context, rank int) (types.RowBuffer, error) {
	if t.isClosed() {
		return nil, types.ErrTransportClosed
	}
	if err := transport.CheckRank(rank, t.cfg.Size); err != nil {
		return nil, err
	}

	buf, err := t.receive(ctx, rank)
	if err != nil {
		t.opts.Metrics.RecordTransfer(transport.DirectionReceive, 0, false)
		return nil, err
	}

	t.opts.Metrics.RecordTransfer(transport.DirectionReceive, len(buf)*transport.BytesPerElement, true)

	return buf, nil
}

func (t *Transport) receive(ctx context.Context, rank int) (types.RowBuffer, error) {
	cons, err := t.js.OrderedConsumer(ctx, t.cfg.Stream, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{fmt.Sprintf("%s.%s.%d.*", t.cfg.SubjectPrefix, t.cfg.RunID, rank)},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("rank %d: failed to create consumer: %w", rank, err)
	}

	iter, err := cons.Messages()
	if err != nil {
		return nil, fmt.Errorf("rank %d: failed to start iterator: %w", rank, err)
	}
	defer iter.Stop()

	// Next blocks without a context; stopping the iterator unblocks it.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			iter.Stop()
		case <-done:
		}
	}()

	next := func() (jetstream.Msg, error) {
		msg, err := iter.Next()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			return nil, fmt.Errorf("rank %d: %w", rank, err)
		}

		return msg, nil
	}

	first, err := next()
	if err != nil {
		return nil, err
	}
	h, err := parseLength(first, rank)
	if err != nil {
		return nil, err
	}

	buf, err := transport.Alloc(h.elements, t.opts.MaxElements)
	if err != nil {
		return nil, fmt.Errorf("rank %d: %w", rank, err)
	}

	hasher := xxh3.New()
	offset := 0
	for i := range h.chunks {
		msg, err := next()
		if err != nil {
			return nil, err
		}
		if tag := msg.Headers().Get(HeaderTag); tag != transport.TagPayload.String() {
			return nil, fmt.Errorf("%w: rank %d chunk %d has tag %q", types.ErrProtocol, rank, i, tag)
		}

		data := msg.Data()
		if len(data)%transport.BytesPerElement != 0 {
			return nil, fmt.Errorf("%w: rank %d chunk %d is %d bytes", types.ErrProtocol, rank, i, len(data))
		}
		n := len(data) / transport.BytesPerElement
		if offset+n > len(buf) {
			return nil, fmt.Errorf("%w: rank %d announced %d elements, sent more", types.ErrProtocol, rank, h.elements)
		}

		decode(buf[offset:offset+n], data)
		_, _ = hasher.Write(data)
		offset += n
	}

	if offset != len(buf) {
		return nil, fmt.Errorf("%w: rank %d announced %d elements, sent %d", types.ErrProtocol, rank, h.elements, offset)
	}
	if sum := hasher.Sum64(); sum != h.checksum {
		return nil, fmt.Errorf("%w: rank %d: got %x, want %x", types.ErrChecksumMismatch, rank, sum, h.checksum)
	}

	return buf, nil
}

type lengthHeader struct {
	elements int
	chunks   int
	checksum uint64
}

func parseLength(msg jetstream.Msg, rank int) (lengthHeader, error) {
	var h lengthHeader

	headers := msg.Headers()
	if tag := headers.Get(HeaderTag); tag != transport.TagLength.String() {
		return h, fmt.Errorf("%w: rank %d sent %q before length", types.ErrProtocol, rank, tag)
	}
	if r := headers.Get(HeaderRank); r != strconv.Itoa(rank) {
		return h, fmt.Errorf("%w: length frame on rank %d subject claims rank %q", types.ErrProtocol, rank, r)
	}

	var err error
	if h.elements, err = strconv.Atoi(string(msg.Data())); err != nil || h.elements < 0 {
		return h, fmt.Errorf("%w: rank %d: bad length %q", types.ErrProtocol, rank, msg.Data())
	}
	if h.chunks, err = strconv.Atoi(headers.Get(HeaderChunks)); err != nil || h.chunks < 0 {
		return h, fmt.Errorf("%w: rank %d: bad chunk count %q", types.ErrProtocol, rank, headers.Get(HeaderChunks))
	}
	if h.checksum, err = strconv.ParseUint(headers.Get(HeaderChecksum), 16, 64); err != nil {
		return h, fmt.Errorf("%w: rank %d: bad checksum %q", types.ErrProtocol, rank, headers.Get(HeaderChecksum))
	}

	return h, nil
}

// Purge removes every message of this run from the stream.
func (t *Transport) Purge(ctx context.Context) error {
	subject := fmt.Sprintf("%s.%s.>", t.cfg.SubjectPrefix, t.cfg.RunID)
	if err := t.stream.Purge(ctx, jetstream.WithPurgeSubject(subject)); err != nil {
		return fmt.Errorf("failed to purge %s: %w", subject, err)
	}

	return nil
}

// Close marks the transport closed. The NATS connection is left open.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true

	return nil
}

func encode(buf types.RowBuffer) []byte {
	data := make([]byte, len(buf)*transport.BytesPerElement)
	for i, v := range buf {
		binary.LittleEndian.PutUint32(data[i*transport.BytesPerElement:], uint32(v)) //nolint:gosec // bit-preserving
	}

	return data
}

func decode(dst types.RowBuffer, data []byte) {
	for i := range dst {
		dst[i] = int32(binary.LittleEndian.Uint32(data[i*transport.BytesPerElement:])) //nolint:gosec // bit-preserving
	}
}
