package testing

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/Brandon-Parker9/fractal/internal/natsutil"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// StartEmbeddedNATS starts an in-process NATS server with JetStream enabled.
//
// JetStream data lives in tb.TempDir(), and both the server and the returned
// connection are shut down via tb.Cleanup. Each call binds a random port, so
// parallel tests do not conflict.
//
// Parameters:
//   - tb: Test or benchmark handle used for cleanup and failures
//
// Returns:
//   - *server.Server: The embedded NATS server instance
//   - *nats.Conn: Connected NATS client
//
// Example:
//
//	func TestTransport(t *testing.T) {
//	    _, nc := fractaltest.StartEmbeddedNATS(t)
//	    // Use nc for your tests
//	}
func StartEmbeddedNATS(tb testing.TB) (*server.Server, *nats.Conn) {
	tb.Helper()

	e, err := natsutil.StartEmbedded(natsutil.EmbeddedOptions{
		StoreDir:     tb.TempDir(),
		ReadyTimeout: 5 * time.Second,
	})
	if err != nil {
		tb.Fatalf("Failed to start embedded NATS server: %v", err)
	}

	tb.Cleanup(e.Shutdown)

	return e.Server, e.Conn
}

// JetStream returns a JetStream context for nc, failing the test on error.
func JetStream(tb testing.TB, nc *nats.Conn) jetstream.JetStream {
	tb.Helper()

	js, err := jetstream.New(nc)
	if err != nil {
		tb.Fatalf("Failed to get JetStream context: %v", err)
	}

	return js
}

// CreateJetStreamKV creates a memory-backed KV bucket for testing.
//
// Parameters:
//   - tb: Test or benchmark handle
//   - nc: NATS connection from StartEmbeddedNATS
//   - bucketName: Name of the KV bucket to create
//
// Returns:
//   - jetstream.KeyValue: The created KV bucket interface
func CreateJetStreamKV(tb testing.TB, nc *nats.Conn, bucketName string) jetstream.KeyValue {
	tb.Helper()

	kv, err := JetStream(tb, nc).CreateKeyValue(tb.Context(), jetstream.KeyValueConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Test KV bucket: %s", bucketName),
		TTL:         time.Minute,
		Storage:     jetstream.MemoryStorage,
		Replicas:    1,
	})
	if err != nil {
		tb.Fatalf("Failed to create KV bucket %s: %v", bucketName, err)
	}

	return kv
}

// DecodePNG decodes a rendered image and returns it as NRGBA, the in-memory
// form of 8-bit RGBA PNGs.
func DecodePNG(tb testing.TB, data []byte) *image.NRGBA {
	tb.Helper()

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		tb.Fatalf("Failed to decode PNG: %v", err)
	}

	nrgba, ok := img.(*image.NRGBA)
	if !ok {
		tb.Fatalf("Decoded image is %T, want *image.NRGBA", img)
	}

	return nrgba
}
