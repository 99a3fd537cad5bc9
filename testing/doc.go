// Package testing provides test utilities for the fractal renderer.
//
// It follows Go's convention of shipping test helpers in a dedicated package
// (similar to net/http/httptest).
//
// Key utilities:
//   - StartEmbeddedNATS: In-process NATS server with JetStream, cleaned up with the test
//   - CreateJetStreamKV: Memory-backed KV bucket for barrier and progress tests
//   - NewTestLogger: types.Logger that writes through t.Logf
//   - DecodePNG: Decodes rendered output for pixel assertions
//
// Example usage:
//
//	import (
//	    "testing"
//	    fractaltest "github.com/Brandon-Parker9/fractal/testing"
//	)
//
//	func TestMyComponent(t *testing.T) {
//	    _, nc := fractaltest.StartEmbeddedNATS(t)
//	    kv := fractaltest.CreateJetStreamKV(t, nc, "fractal-barrier")
//	}
package testing
