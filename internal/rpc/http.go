package rpc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPTransport is a non-stdio Transport (spec §4.4: "design admits
// others"): outbound frames are POSTed to PeerURL; inbound frames arrive by
// POST to this transport's own http.Handler (ServeHTTP), queued for
// ReadLine. Adapted from internal/mcp/transport_http.go's Call/Notify POST
// pattern, collapsed from MCP's separate Call/Notify/Respond API surface
// into the same line-in/line-out shape StdioTransport exposes so runtime.go
// is transport-agnostic.
type HTTPTransport struct {
	Client  *http.Client
	PeerURL string
	Headers map[string]string

	incoming chan []byte
	closed   chan struct{}
}

// NewHTTPTransport returns a transport that POSTs outbound frames to
// peerURL and accepts inbound frames via ServeHTTP.
func NewHTTPTransport(peerURL string) *HTTPTransport {
	return &HTTPTransport{
		Client:   &http.Client{Timeout: 30 * time.Second},
		PeerURL:  peerURL,
		incoming: make(chan []byte, 256),
		closed:   make(chan struct{}),
	}
}

// ServeHTTP accepts one framed message per POST body and enqueues it for
// ReadLine, mirroring the stdio transport's one-message-per-line contract
// over HTTP push instead of a persistent pipe.
func (t *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	select {
	case t.incoming <- body:
		w.WriteHeader(http.StatusAccepted)
	case <-t.closed:
		http.Error(w, "transport closed", http.StatusGone)
	}
}

// ReadLine implements Transport.
func (t *HTTPTransport) ReadLine(ctx context.Context) ([]byte, error) {
	select {
	case line := <-t.incoming:
		return line, nil
	case <-t.closed:
		return nil, fmt.Errorf("rpc: http transport closed: %w", io.EOF)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// WriteLine implements Transport: POSTs data to PeerURL.
func (t *HTTPTransport) WriteLine(ctx context.Context, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.PeerURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("rpc: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range t.Headers {
		req.Header.Set(k, v)
	}
	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("rpc: post frame: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("rpc: peer returned %d: %s", resp.StatusCode, string(b))
	}
	return nil
}

// Close implements Transport.
func (t *HTTPTransport) Close() error {
	select {
	case <-t.closed:
	default:
		close(t.closed)
	}
	return nil
}
