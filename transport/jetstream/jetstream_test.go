package jetstream

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	natsjs "github.com/nats-io/nats.go/jetstream"

	fractaltest "github.com/Brandon-Parker9/fractal/testing"
	"github.com/Brandon-Parker9/fractal/transport"
	"github.com/Brandon-Parker9/fractal/types"
)

func newTransport(t *testing.T, nc *nats.Conn, runID string, size int, opts ...transport.Option) *Transport {
	t.Helper()

	tr, err := New(t.Context(), nc, Config{
		RunID:   runID,
		Size:    size,
		Storage: natsjs.MemoryStorage,
	}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })

	return tr
}

func sequence(n, seed int) types.RowBuffer {
	buf := make(types.RowBuffer, n)
	for i := range buf {
		buf[i] = int32((i*31 + seed) % 1000)
	}

	return buf
}

func TestTransport_RoundTrip(t *testing.T) {
	_, nc := fractaltest.StartEmbeddedNATS(t)
	tr := newTransport(t, nc, "run1", 4)

	var wg sync.WaitGroup
	for rank := 1; rank < 4; rank++ {
		wg.Go(func() {
			assert.NoError(t, tr.Send(t.Context(), rank, sequence(100*rank, rank)))
		})
	}
	wg.Wait()

	for rank := 1; rank < 4; rank++ {
		buf, err := tr.Receive(t.Context(), rank)
		require.NoError(t, err)
		require.Equal(t, sequence(100*rank, rank), buf)
	}
}

func TestTransport_ReceiveBeforeSend(t *testing.T) {
	_, nc := fractaltest.StartEmbeddedNATS(t)
	tr := newTransport(t, nc, "early", 2)

	got := make(chan types.RowBuffer, 1)
	go func() {
		buf, err := tr.Receive(t.Context(), 1)
		assert.NoError(t, err)
		got <- buf
	}()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, tr.Send(t.Context(), 1, types.RowBuffer{7, 8, 9}))

	select {
	case buf := <-got:
		require.Equal(t, types.RowBuffer{7, 8, 9}, buf)
	case <-time.After(10 * time.Second):
		t.Fatal("receive never completed")
	}
}

func TestTransport_Chunking(t *testing.T) {
	_, nc := fractaltest.StartEmbeddedNATS(t)

	tr, err := New(t.Context(), nc, Config{RunID: "chunks", Size: 2, ChunkSize: 30, Storage: natsjs.MemoryStorage})
	require.NoError(t, err)
	require.Equal(t, 28, tr.cfg.ChunkSize, "chunk size rounds down to whole elements")

	// 25 elements = 100 bytes = 4 chunks of 28,28,28,16.
	want := sequence(25, 3)
	require.NoError(t, tr.Send(t.Context(), 1, want))

	info, err := tr.stream.Info(t.Context(), natsjs.WithSubjectFilter("fractal.rows.chunks.1.payload"))
	require.NoError(t, err)
	require.Equal(t, uint64(4), info.State.Subjects["fractal.rows.chunks.1.payload"])

	got, err := tr.Receive(t.Context(), 1)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestTransport_EmptyContribution(t *testing.T) {
	_, nc := fractaltest.StartEmbeddedNATS(t)
	tr := newTransport(t, nc, "empty", 2)

	require.NoError(t, tr.Send(t.Context(), 1, nil))

	buf, err := tr.Receive(t.Context(), 1)
	require.NoError(t, err)
	require.Empty(t, buf)
}

func TestTransport_NegativeValuesSurvive(t *testing.T) {
	_, nc := fractaltest.StartEmbeddedNATS(t)
	tr := newTransport(t, nc, "signs", 2)

	want := types.RowBuffer{-1, 0, 1, 1 << 30, -(1 << 31)}
	require.NoError(t, tr.Send(t.Context(), 1, want))

	got, err := tr.Receive(t.Context(), 1)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestTransport_RunsAreIsolated(t *testing.T) {
	_, nc := fractaltest.StartEmbeddedNATS(t)
	a := newTransport(t, nc, "run-a", 2)
	b := newTransport(t, nc, "run-b", 2)

	require.NoError(t, a.Send(t.Context(), 1, types.RowBuffer{1}))
	require.NoError(t, b.Send(t.Context(), 1, types.RowBuffer{2}))

	got, err := b.Receive(t.Context(), 1)
	require.NoError(t, err)
	require.Equal(t, types.RowBuffer{2}, got)
}

func publishRaw(t *testing.T, nc *nats.Conn, subject string, data []byte, headers map[string]string) {
	t.Helper()

	js, err := natsjs.New(nc)
	require.NoError(t, err)

	msg := nats.NewMsg(subject)
	msg.Data = data
	for k, v := range headers {
		msg.Header.Set(k, v)
	}
	_, err = js.PublishMsg(t.Context(), msg)
	require.NoError(t, err)
}

func TestTransport_ProtocolViolations(t *testing.T) {
	_, nc := fractaltest.StartEmbeddedNATS(t)

	t.Run("payload before length", func(t *testing.T) {
		tr := newTransport(t, nc, "bad1", 2)
		publishRaw(t, nc, "fractal.rows.bad1.1.payload", []byte{1, 0, 0, 0},
			map[string]string{HeaderTag: "payload", HeaderRank: "1"})

		_, err := tr.Receive(t.Context(), 1)
		require.ErrorIs(t, err, types.ErrProtocol)
	})

	t.Run("fewer elements than announced", func(t *testing.T) {
		tr := newTransport(t, nc, "bad2", 2)
		publishRaw(t, nc, "fractal.rows.bad2.1.length", []byte("3"),
			map[string]string{HeaderTag: "length", HeaderRank: "1", HeaderChunks: "1", HeaderChecksum: "0"})
		publishRaw(t, nc, "fractal.rows.bad2.1.payload", []byte{1, 0, 0, 0, 2, 0, 0, 0},
			map[string]string{HeaderTag: "payload", HeaderRank: "1"})

		_, err := tr.Receive(t.Context(), 1)
		require.ErrorIs(t, err, types.ErrProtocol)
	})

	t.Run("more elements than announced", func(t *testing.T) {
		tr := newTransport(t, nc, "bad3", 2)
		publishRaw(t, nc, "fractal.rows.bad3.1.length", []byte("1"),
			map[string]string{HeaderTag: "length", HeaderRank: "1", HeaderChunks: "1", HeaderChecksum: "0"})
		publishRaw(t, nc, "fractal.rows.bad3.1.payload", []byte{1, 0, 0, 0, 2, 0, 0, 0},
			map[string]string{HeaderTag: "payload", HeaderRank: "1"})

		_, err := tr.Receive(t.Context(), 1)
		require.ErrorIs(t, err, types.ErrProtocol)
	})

	t.Run("rank header mismatch", func(t *testing.T) {
		tr := newTransport(t, nc, "bad4", 3)
		publishRaw(t, nc, "fractal.rows.bad4.1.length", []byte("0"),
			map[string]string{HeaderTag: "length", HeaderRank: "2", HeaderChunks: "0", HeaderChecksum: "0"})

		_, err := tr.Receive(t.Context(), 1)
		require.ErrorIs(t, err, types.ErrProtocol)
	})

	t.Run("checksum mismatch", func(t *testing.T) {
		tr := newTransport(t, nc, "bad5", 2)
		publishRaw(t, nc, "fractal.rows.bad5.1.length", []byte("1"),
			map[string]string{HeaderTag: "length", HeaderRank: "1", HeaderChunks: "1", HeaderChecksum: "deadbeef"})
		publishRaw(t, nc, "fractal.rows.bad5.1.payload", []byte{1, 0, 0, 0},
			map[string]string{HeaderTag: "payload", HeaderRank: "1"})

		_, err := tr.Receive(t.Context(), 1)
		require.ErrorIs(t, err, types.ErrChecksumMismatch)
	})
}

func TestTransport_AllocationBound(t *testing.T) {
	_, nc := fractaltest.StartEmbeddedNATS(t)
	tr := newTransport(t, nc, "big", 2, transport.WithMaxElements(10))

	publishRaw(t, nc, "fractal.rows.big.1.length", []byte(strconv.Itoa(1<<40)),
		map[string]string{HeaderTag: "length", HeaderRank: "1", HeaderChunks: "0", HeaderChecksum: "0"})

	_, err := tr.Receive(t.Context(), 1)
	require.ErrorIs(t, err, types.ErrAllocation)
}

func TestTransport_ReceiveCancelled(t *testing.T) {
	_, nc := fractaltest.StartEmbeddedNATS(t)
	tr := newTransport(t, nc, "cancel", 2)

	ctx, cancel := context.WithTimeout(t.Context(), 200*time.Millisecond)
	defer cancel()

	_, err := tr.Receive(ctx, 1)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTransport_Purge(t *testing.T) {
	_, nc := fractaltest.StartEmbeddedNATS(t)
	tr := newTransport(t, nc, "purge", 2)
	other := newTransport(t, nc, "keep", 2)

	require.NoError(t, tr.Send(t.Context(), 1, sequence(10, 1)))
	require.NoError(t, other.Send(t.Context(), 1, sequence(10, 2)))

	require.NoError(t, tr.Purge(t.Context()))

	info, err := tr.stream.Info(t.Context())
	require.NoError(t, err)
	require.Equal(t, uint64(2), info.State.Msgs, "only the other run's length and payload remain")
}

func TestTransport_ConfigErrors(t *testing.T) {
	_, nc := fractaltest.StartEmbeddedNATS(t)

	_, err := New(t.Context(), nil, Config{RunID: "x", Size: 1})
	require.ErrorIs(t, err, types.ErrNATSConnectionRequired)

	_, err = New(t.Context(), nc, Config{RunID: "a.b", Size: 1})
	require.ErrorIs(t, err, types.ErrInvalidConfig)

	_, err = New(t.Context(), nc, Config{RunID: "ok", Size: 0})
	require.ErrorIs(t, err, types.ErrInvalidConfig)
}

func TestTransport_Closed(t *testing.T) {
	_, nc := fractaltest.StartEmbeddedNATS(t)
	tr := newTransport(t, nc, "closed", 2)
	require.NoError(t, tr.Close())

	require.ErrorIs(t, tr.Send(t.Context(), 1, nil), types.ErrTransportClosed)
	_, err := tr.Receive(t.Context(), 1)
	require.ErrorIs(t, err, types.ErrTransportClosed)
	require.True(t, nc.IsConnected(), "connection is borrowed")
}

func TestEncodeDecode(t *testing.T) {
	in := types.RowBuffer{0, 1, 255, 256, -1}
	data := encode(in)
	require.Equal(t, []byte{1, 0, 0, 0}, data[4:8])

	out := make(types.RowBuffer, len(in))
	decode(out, data)
	require.Equal(t, in, out)
}

func BenchmarkTransport_SendReceive(b *testing.B) {
	_, nc := fractaltest.StartEmbeddedNATS(b)
	buf := sequence(250*1000, 1)

	i := 0
	for b.Loop() {
		i++
		tr, err := New(b.Context(), nc, Config{RunID: "bench" + strconv.Itoa(i), Size: 2, Storage: natsjs.MemoryStorage})
		require.NoError(b, err)
		require.NoError(b, tr.Send(b.Context(), 1, buf))
		_, err = tr.Receive(b.Context(), 1)
		require.NoError(b, err)
		require.NoError(b, tr.Purge(b.Context()))
	}
}
