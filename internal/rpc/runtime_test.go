package rpc

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"
)

// pipePair wires two Runtimes back to back over in-memory pipes, one
// Runtime playing client, the other server, matching spec §4.4's
// "bidirectional stdio-framed" runtime over a line-delimited transport.
func pipePair(t *testing.T) (client, server *Runtime) {
	t.Helper()
	cToS_r, cToS_w := io.Pipe()
	sToC_r, sToC_w := io.Pipe()

	clientTransport := NewStdio(sToC_r, cToS_w, nil)
	serverTransport := NewStdio(cToS_r, sToC_w, nil)

	client = NewRuntime(clientTransport, nil)
	server = NewRuntime(serverTransport, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go client.Pump(ctx)
	go server.Pump(ctx)
	return client, server
}

func TestInitializeHandshake(t *testing.T) {
	client, server := pipePair(t)
	server.ServeInitialize(ServerInfo{Name: "test-server", Version: "1.0"}, Capabilities{})

	result, err := client.Initialize(context.Background(), ClientInfo{Name: "test-client", Version: "1.0"}, Capabilities{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ServerInfo.Name != "test-server" {
		t.Errorf("expected server name test-server, got %q", result.ServerInfo.Name)
	}
	if result.ProtocolVersion != ProtocolVersion {
		t.Errorf("expected protocol version %q, got %q", ProtocolVersion, result.ProtocolVersion)
	}
}

func TestRequestBeforeHandshakeFails(t *testing.T) {
	client, server := pipePair(t)
	server.ServeInitialize(ServerInfo{Name: "s"}, Capabilities{})

	_, err := client.Request(context.Background(), "tools/list", nil)
	if err == nil {
		t.Fatal("expected error calling a method before the initialize handshake")
	}
}

func TestToolCallRoundTrip(t *testing.T) {
	client, server := pipePair(t)
	server.ServeInitialize(ServerInfo{Name: "s"}, Capabilities{})
	server.HandleMethod("tools/call", func(ctx context.Context, params json.RawMessage) (any, *Error) {
		var p CallToolParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &Error{Code: CodeInvalidParams, Message: err.Error()}
		}
		return CallToolResult{Content: []ToolContent{{Type: "text", Text: "called " + p.Name}}}, nil
	})

	if _, err := client.Initialize(context.Background(), ClientInfo{Name: "c"}, Capabilities{}); err != nil {
		t.Fatalf("handshake failed: %v", err)
	}

	raw, err := client.Request(context.Background(), "tools/call", CallToolParams{Name: "fs_read", Arguments: json.RawMessage(`{}`)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var result CallToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(result.Content) != 1 || result.Content[0].Text != "called fs_read" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestUnknownMethodReturnsMethodNotFound(t *testing.T) {
	client, server := pipePair(t)
	server.ServeInitialize(ServerInfo{Name: "s"}, Capabilities{})
	if _, err := client.Initialize(context.Background(), ClientInfo{Name: "c"}, Capabilities{}); err != nil {
		t.Fatalf("handshake failed: %v", err)
	}

	_, err := client.Request(context.Background(), "nope", nil)
	if err == nil {
		t.Fatal("expected an error for an unknown method")
	}
	rpcErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if rpcErr.Code != CodeMethodNotFound {
		t.Errorf("expected code %d, got %d", CodeMethodNotFound, rpcErr.Code)
	}
}

func TestRequestTimeoutResolvesAndClearsPending(t *testing.T) {
	client, server := pipePair(t)
	server.ServeInitialize(ServerInfo{Name: "s"}, Capabilities{})
	server.HandleMethod("slow", func(ctx context.Context, params json.RawMessage) (any, *Error) {
		time.Sleep(1 * time.Hour) // never replies within the test timeout
		return nil, nil
	})

	if _, err := client.Initialize(context.Background(), ClientInfo{Name: "c"}, Capabilities{}); err != nil {
		t.Fatalf("handshake failed: %v", err)
	}

	before := pendingLen(client)
	_, err := client.RequestTimeout(context.Background(), "slow", nil, 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if rpcErr, ok := err.(*Error); !ok || rpcErr.Code != CodeRequestTimeout {
		t.Errorf("expected RequestTimeout error, got %v", err)
	}
	after := pendingLen(client)
	if after != before {
		t.Errorf("expected pending map to return to its prior size (%d), got %d", before, after)
	}
}

func TestNotificationDispatchesWithoutReply(t *testing.T) {
	client, server := pipePair(t)
	server.ServeInitialize(ServerInfo{Name: "s"}, Capabilities{})

	received := make(chan string, 1)
	server.HandleNotification("log", func(ctx context.Context, params json.RawMessage) {
		var s string
		json.Unmarshal(params, &s)
		received <- s
	})

	if _, err := client.Initialize(context.Background(), ClientInfo{Name: "c"}, Capabilities{}); err != nil {
		t.Fatalf("handshake failed: %v", err)
	}
	if err := client.Notify(context.Background(), "log", "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case got := <-received:
		if got != "hello" {
			t.Errorf("expected %q, got %q", "hello", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func pendingLen(r *Runtime) int {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	return len(r.pending)
}
