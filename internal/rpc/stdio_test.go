package rpc

import (
	"bytes"
	"context"
	"io"
	"testing"
)

func TestStdioTransportRoundTrip(t *testing.T) {
	r, w := io.Pipe()
	var written bytes.Buffer
	transport := NewStdio(r, &written, nil)

	go func() {
		w.Write([]byte("{\"jsonrpc\":\"2.0\",\"method\":\"ping\"}\n"))
	}()

	line, err := transport.ReadLine(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(line) != `{"jsonrpc":"2.0","method":"ping"}` {
		t.Errorf("unexpected line: %q", line)
	}

	if err := transport.WriteLine(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"result":{}}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if written.String() != "{\"jsonrpc\":\"2.0\",\"id\":1,\"result\":{}}\n" {
		t.Errorf("unexpected write: %q", written.String())
	}
}

func TestStdioTransportReadLineRespectsContextCancellation(t *testing.T) {
	r, _ := io.Pipe()
	transport := NewStdio(r, io.Discard, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := transport.ReadLine(ctx)
	if err == nil {
		t.Fatal("expected context cancellation error")
	}
}
