package natsutil

import (
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// Embedded is an in-process NATS server with JetStream and a client connection.
type Embedded struct {
	Server *server.Server
	Conn   *nats.Conn
}

// EmbeddedOptions configures StartEmbedded.
type EmbeddedOptions struct {
	// StoreDir is the JetStream store directory. Empty uses a server-chosen temp dir.
	StoreDir string
	// ReadyTimeout bounds the wait for the server to accept connections. Default 10s.
	ReadyTimeout time.Duration
	// MaxPayload overrides the server's max message payload. Zero keeps the server default (1MiB).
	MaxPayload int32
}

// StartEmbedded starts an in-process NATS server with JetStream on a random
// loopback port and connects a client to it.
//
// Local mode uses it so that a single process exercises the same JetStream
// transport and KV barrier as a distributed run.
//
// Returns:
//   - *Embedded: Running server and connected client; call Shutdown when done
//   - error: Server creation, readiness or connection failure
func StartEmbedded(opts EmbeddedOptions) (*Embedded, error) {
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 10 * time.Second
	}

	ns, err := server.NewServer(&server.Options{
		Host:       "127.0.0.1",
		Port:       -1,
		JetStream:  true,
		StoreDir:   opts.StoreDir,
		MaxPayload: opts.MaxPayload,
		NoLog:      true,
		NoSigs:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(opts.ReadyTimeout) {
		ns.Shutdown()
		return nil, errors.New("embedded NATS server not ready")
	}

	nc, err := nats.Connect(ns.ClientURL(),
		nats.Timeout(2*time.Second),
		nats.MaxReconnects(3),
	)
	if err != nil {
		ns.Shutdown()
		return nil, fmt.Errorf("failed to connect to embedded NATS: %w", err)
	}

	return &Embedded{Server: ns, Conn: nc}, nil
}

// Shutdown closes the client and stops the server.
func (e *Embedded) Shutdown() {
	if e == nil {
		return
	}
	if e.Conn != nil {
		e.Conn.Close()
	}
	if e.Server != nil {
		e.Server.Shutdown()
		e.Server.WaitForShutdown()
	}
}
