// Package natsutil holds NATS helpers shared by the transport, barrier and CLI layers.
package natsutil

import (
	"errors"
	"strings"

	"github.com/Brandon-Parker9/fractal/types"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// IsConnectivityError reports whether err is caused by a lost or unreachable
// NATS server rather than by a protocol or data problem.
//
// Workers use it to decide whether a failed rank claim or barrier wait is
// worth retrying.
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, types.ErrConnectivity) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrDisconnected) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, jetstream.ErrNoStreamResponse) ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "i/o timeout")
}
