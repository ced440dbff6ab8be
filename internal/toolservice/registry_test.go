package toolservice

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vanshchauhan21/forge/internal/observability"
)

type echoTool struct{ name string }

func (e echoTool) Name() string            { return e.name }
func (e echoTool) Description() string     { return "echoes params" }
func (e echoTool) Schema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (e echoTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	return &Result{Content: string(params)}, nil
}

type hangingTool struct{}

func (hangingTool) Name() string            { return "hangs" }
func (hangingTool) Description() string     { return "never returns" }
func (hangingTool) Schema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (hangingTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type panickingTool struct{}

func (panickingTool) Name() string            { return "panics" }
func (panickingTool) Description() string     { return "always panics" }
func (panickingTool) Schema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (panickingTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	panic("boom")
}

func TestRegistry_DispatchUnknownTool_S5(t *testing.T) {
	r := New()
	r.Register(echoTool{name: "known"})

	res := r.Dispatch(context.Background(), "nope", json.RawMessage(`{}`))
	if !res.IsError {
		t.Fatalf("expected error result for unknown tool")
	}
	if !strings.Contains(res.Content, "No tool named") {
		t.Fatalf("content = %q, want substring %q", res.Content, "No tool named")
	}
	if !strings.Contains(res.Content, "known") {
		t.Fatalf("content should list available tools: %q", res.Content)
	}
}

func TestRegistry_DispatchSuccess(t *testing.T) {
	r := New()
	r.Register(echoTool{name: "echo"})

	res := r.Dispatch(context.Background(), "echo", json.RawMessage(`{"x":1}`))
	if res.IsError {
		t.Fatalf("unexpected error result: %+v", res)
	}
	if res.Content != `{"x":1}` {
		t.Fatalf("content = %q, want %q", res.Content, `{"x":1}`)
	}
}

func TestRegistry_DispatchRecoversPanics(t *testing.T) {
	r := New()
	r.Register(panickingTool{})

	res := r.Dispatch(context.Background(), "panics", json.RawMessage(`{}`))
	if !res.IsError {
		t.Fatalf("expected error result for a panicking tool")
	}
	if !strings.Contains(res.Content, "panicked") {
		t.Fatalf("content = %q, want substring %q", res.Content, "panicked")
	}
}

func TestRegistry_ListIsSorted(t *testing.T) {
	r := New()
	r.Register(echoTool{name: "zebra"})
	r.Register(echoTool{name: "apple"})
	r.Register(echoTool{name: "mango"})

	names := r.names()
	want := []string{"apple", "mango", "zebra"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names = %v, want %v", names, want)
		}
	}
}

func TestRegistry_DispatchRecordsMetrics(t *testing.T) {
	toolCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "test_tool_executions_total", Help: "test"},
		[]string{"tool_name", "status"},
	)
	toolDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "test_tool_execution_duration_seconds", Help: "test"},
		[]string{"tool_name"},
	)
	metrics := &observability.Metrics{ToolExecutionCounter: toolCounter, ToolExecutionDuration: toolDuration}

	r := New()
	r.Register(echoTool{name: "echo"})
	r.SetMetrics(metrics)

	r.Dispatch(context.Background(), "echo", json.RawMessage(`{}`))
	r.Dispatch(context.Background(), "nope", json.RawMessage(`{}`))

	if count := testutil.CollectAndCount(toolCounter); count != 2 {
		t.Errorf("expected 2 label combinations, got %d", count)
	}
}

func TestRegistry_DispatchTimeout_S6Analogue(t *testing.T) {
	r := New()
	r.Register(hangingTool{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res := r.Dispatch(ctx, "hangs", json.RawMessage(`{}`))
	if !res.IsError {
		t.Fatalf("expected timeout error result")
	}
}
