package rpc

import "context"

// Transport is a line-delimited JSON-RPC 2.0 carrier: each message is one
// JSON value terminated by "\n" (spec §4.4 Framing). The runtime is
// transport-agnostic; stdio.go and http.go are the two transports this
// module ships.
type Transport interface {
	// ReadLine blocks for the next framed message, stripped of its
	// trailing newline. Returns io.EOF (wrapped) when the peer closes the
	// connection.
	ReadLine(ctx context.Context) ([]byte, error)

	// WriteLine serializes and frames one message, then flushes.
	WriteLine(ctx context.Context, data []byte) error

	// Close tears down the transport (spec §4.4 Shutdown).
	Close() error
}
