package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultRequestTimeout is the per-call timeout applied when a caller does
// not override it (spec §4.4 Correlation).
const DefaultRequestTimeout = 60 * time.Second

// MethodHandler answers one incoming request. A non-nil *Error becomes the
// response's error object; params is the raw, not-yet-typed argument blob.
type MethodHandler func(ctx context.Context, params json.RawMessage) (any, *Error)

// NotificationHandler reacts to one incoming notification; it has no reply.
type NotificationHandler func(ctx context.Context, params json.RawMessage)

// Runtime drives bidirectional JSON-RPC 2.0 traffic over a Transport: it
// can originate requests (as a client) and serve them (as a server) on the
// same connection, matching spec §4.4's "used both to expose local tools
// to peers and to host external tool-server subprocesses." Adapted from
// internal/mcp/transport_stdio.go's pending-map/readLoop shape and
// internal/mcp/client.go's Connect/CallTool request surface, generalized
// so one Runtime plays both roles instead of the teacher's client-only
// Client type.
type Runtime struct {
	transport Transport
	logger    *slog.Logger

	nextID atomic.Uint64

	pendingMu sync.Mutex
	pending   map[uint64]chan *Response

	handlersMu    sync.RWMutex
	methods       map[string]MethodHandler
	notifications map[string]NotificationHandler

	handshakeSent atomic.Bool

	closeOnce sync.Once
	closed    chan struct{}
}

// NewRuntime wires a Runtime over transport. Call Pump in a goroutine to
// start processing inbound traffic.
func NewRuntime(transport Transport, logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runtime{
		transport:     transport,
		logger:        logger,
		pending:       make(map[uint64]chan *Response),
		methods:       make(map[string]MethodHandler),
		notifications: make(map[string]NotificationHandler),
		closed:        make(chan struct{}),
	}
}

// HandleMethod registers the handler invoked for incoming requests for
// method. Registering a method more than once replaces the prior handler.
func (r *Runtime) HandleMethod(method string, h MethodHandler) {
	r.handlersMu.Lock()
	defer r.handlersMu.Unlock()
	r.methods[method] = h
}

// HandleNotification registers the handler invoked for incoming
// notifications for method.
func (r *Runtime) HandleNotification(method string, h NotificationHandler) {
	r.handlersMu.Lock()
	defer r.handlersMu.Unlock()
	r.notifications[method] = h
}

// ServeInitialize registers the standard server-side initialize handler
// (spec §4.4 Handshake / §6): replies with protocolVersion, capabilities,
// and serverInfo, and treats the following "initialized" notification as a
// no-op acknowledgment.
func (r *Runtime) ServeInitialize(info ServerInfo, caps Capabilities) {
	r.HandleMethod("initialize", func(ctx context.Context, params json.RawMessage) (any, *Error) {
		return InitializeResult{
			ProtocolVersion: ProtocolVersion,
			Capabilities:    caps,
			ServerInfo:      info,
		}, nil
	})
	r.HandleNotification("initialized", func(ctx context.Context, params json.RawMessage) {})
}

// Initialize performs the client side of the handshake (spec §4.4/§6): send
// an "initialize" request, then an "initialized" notification before any
// other request may be issued.
func (r *Runtime) Initialize(ctx context.Context, info ClientInfo, caps Capabilities) (*InitializeResult, error) {
	params := InitializeParams{ProtocolVersion: ProtocolVersion, Capabilities: caps, ClientInfo: info}
	raw, err := r.request(ctx, "initialize", params, DefaultRequestTimeout, true)
	if err != nil {
		return nil, err
	}
	var result InitializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("rpc: decode initialize result: %w", err)
	}
	if err := r.Notify(ctx, "initialized", nil); err != nil {
		return nil, err
	}
	r.handshakeSent.Store(true)
	return &result, nil
}

// Request sends a request and blocks for its response, using
// DefaultRequestTimeout. Use RequestTimeout to override.
func (r *Runtime) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	return r.RequestTimeout(ctx, method, params, DefaultRequestTimeout)
}

// RequestTimeout sends a request with an explicit timeout override (spec
// §4.4 Correlation / §6 S6).
func (r *Runtime) RequestTimeout(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	return r.request(ctx, method, params, timeout, method == "initialize")
}

func (r *Runtime) request(ctx context.Context, method string, params any, timeout time.Duration, allowBeforeHandshake bool) (json.RawMessage, error) {
	if !allowBeforeHandshake && !r.handshakeSent.Load() {
		return nil, fmt.Errorf("rpc: initialize handshake required before calling %q", method)
	}

	id := r.nextID.Add(1)
	req := Request{JSONRPC: "2.0", ID: id, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("rpc: marshal params: %w", err)
		}
		req.Params = raw
	}

	respCh := make(chan *Response, 1)
	r.pendingMu.Lock()
	r.pending[id] = respCh
	r.pendingMu.Unlock()
	defer func() {
		r.pendingMu.Lock()
		delete(r.pending, id)
		r.pendingMu.Unlock()
	}()

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("rpc: marshal request: %w", err)
	}
	if err := r.transport.WriteLine(ctx, data); err != nil {
		return nil, err
	}

	select {
	case resp := <-respCh:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	case <-time.After(timeout):
		return nil, &Error{Code: CodeRequestTimeout, Message: fmt.Sprintf("request %q timed out after %v", method, timeout)}
	case <-r.closed:
		return nil, &Error{Code: CodeConnectionClosed, Message: "connection closed"}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Notify sends a notification; no reply is expected or awaited.
func (r *Runtime) Notify(ctx context.Context, method string, params any) error {
	notif := Notification{JSONRPC: "2.0", Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("rpc: marshal params: %w", err)
		}
		notif.Params = raw
	}
	data, err := json.Marshal(notif)
	if err != nil {
		return fmt.Errorf("rpc: marshal notification: %w", err)
	}
	return r.transport.WriteLine(ctx, data)
}

// Pump reads frames from the transport until it closes or ctx is
// cancelled, dispatching requests/notifications and routing responses to
// their pending callers by id (spec §4.4 Correlation/Dispatch). It returns
// when the transport is exhausted; callers typically run it in a
// goroutine.
func (r *Runtime) Pump(ctx context.Context) error {
	defer r.Close()
	for {
		line, err := r.transport.ReadLine(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		r.handleLine(ctx, line)
	}
}

func (r *Runtime) handleLine(ctx context.Context, line []byte) {
	kind, env, err := classify(line)
	if err != nil {
		r.logger.Warn("rpc: unparseable frame", "error", err)
		return
	}
	switch kind {
	case "response":
		r.routeResponse(line, env)
	case "request":
		go r.handleRequest(ctx, line)
	case "notification":
		go r.handleNotification(ctx, line)
	default:
		r.logger.Warn("rpc: frame matched neither request, response, nor notification")
	}
}

func (r *Runtime) routeResponse(line []byte, env envelope) {
	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		r.logger.Warn("rpc: malformed response", "error", err)
		return
	}
	r.pendingMu.Lock()
	ch, ok := r.pending[resp.ID]
	if ok {
		delete(r.pending, resp.ID)
	}
	r.pendingMu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- &resp:
	default:
	}
}

func (r *Runtime) handleRequest(ctx context.Context, line []byte) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		r.writeError(ctx, 0, CodeParseError, "parse error: "+err.Error())
		return
	}

	r.handlersMu.RLock()
	handler, ok := r.methods[req.Method]
	r.handlersMu.RUnlock()
	if !ok {
		r.writeError(ctx, req.ID, CodeMethodNotFound, "method not found: "+req.Method)
		return
	}

	result, rpcErr := r.safeInvoke(ctx, handler, req.Params)
	if rpcErr != nil {
		r.writeRawError(ctx, req.ID, rpcErr)
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		r.writeError(ctx, req.ID, CodeInternalError, "marshal result: "+err.Error())
		return
	}
	resp := Response{JSONRPC: "2.0", ID: req.ID, Result: raw}
	data, err := json.Marshal(resp)
	if err != nil {
		r.logger.Error("rpc: marshal response", "error", err)
		return
	}
	if err := r.transport.WriteLine(ctx, data); err != nil {
		r.logger.Error("rpc: write response", "error", err)
	}
}

func (r *Runtime) safeInvoke(ctx context.Context, h MethodHandler, params json.RawMessage) (result any, rpcErr *Error) {
	defer func() {
		if rec := recover(); rec != nil {
			rpcErr = &Error{Code: CodeInternalError, Message: fmt.Sprintf("handler panicked: %v", rec)}
		}
	}()
	return h(ctx, params)
}

func (r *Runtime) handleNotification(ctx context.Context, line []byte) {
	var notif Notification
	if err := json.Unmarshal(line, &notif); err != nil {
		r.logger.Warn("rpc: malformed notification", "error", err)
		return
	}
	r.handlersMu.RLock()
	handler, ok := r.notifications[notif.Method]
	r.handlersMu.RUnlock()
	if !ok {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("rpc: notification handler panicked", "method", notif.Method, "recover", rec)
		}
	}()
	handler(ctx, notif.Params)
}

func (r *Runtime) writeError(ctx context.Context, id uint64, code int, message string) {
	r.writeRawError(ctx, id, &Error{Code: code, Message: message})
}

func (r *Runtime) writeRawError(ctx context.Context, id uint64, rpcErr *Error) {
	resp := Response{JSONRPC: "2.0", ID: id, Error: rpcErr}
	data, err := json.Marshal(resp)
	if err != nil {
		r.logger.Error("rpc: marshal error response", "error", err)
		return
	}
	if err := r.transport.WriteLine(ctx, data); err != nil {
		r.logger.Error("rpc: write error response", "error", err)
	}
}

// Close shuts down the runtime: the transport is closed and every pending
// request resolves as ConnectionClosed (spec §4.4 Shutdown, §5
// Cancellation).
func (r *Runtime) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.closed)
		err = r.transport.Close()
	})
	return err
}
