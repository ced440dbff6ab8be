// Package toolservice maintains the typed tool set and dispatches
// (name, json-args) calls with a wall-clock timeout, uniform error
// shaping, and stable sorted listings for system prompts.
package toolservice

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vanshchauhan21/forge/internal/observability"
)

// DispatchTimeout is the fixed wall-clock timeout applied to every tool
// call, per spec §4.3.
const DispatchTimeout = 5 * time.Minute

// Tool is a typed, schema-described handler.
type Tool interface {
	Name() string
	Description() string
	Schema() json.RawMessage
	Execute(ctx context.Context, params json.RawMessage) (*Result, error)
}

// Result is a tool's outcome: success content, or an error surfaced back to
// the model so the agent can self-correct (spec §4.3/§7).
type Result struct {
	Content string
	IsError bool
}

func errorResult(content string) *Result {
	return &Result{Content: content, IsError: true}
}

// Registry owns an immutable-after-construction Map<ToolName, Tool> (spec
// §5 "tools map ... is immutable after construction; no locking needed on
// dispatch"). Registration still takes a lock because tools may be added
// incrementally while wiring an Agent's tool list before the orchestrator
// starts running it.
type Registry struct {
	mu         sync.RWMutex
	tools      map[string]Tool
	validators map[string]*Validator
	metrics    *observability.Metrics
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{tools: make(map[string]Tool), validators: make(map[string]*Validator)}
}

// SetMetrics wires a Prometheus collector into Dispatch so every tool call
// reports latency and outcome (SPEC_FULL.md DOMAIN STACK). Passing nil
// disables metrics, which is also the default.
func (r *Registry) SetMetrics(m *observability.Metrics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = m
}

// Register adds or replaces a tool by name. Any cached schema validator for
// the name is invalidated so a re-registered tool's new schema takes effect
// on its next Dispatch.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
	delete(r.validators, t.Name())
}

// validatorFor returns the compiled argument validator for t, deriving and
// caching it on first use. A schema that fails to compile disables
// validation for that tool (the cached nil short-circuits recompilation)
// rather than blocking every call to it.
func (r *Registry) validatorFor(name string, t Tool) *Validator {
	r.mu.RLock()
	v, ok := r.validators[name]
	r.mu.RUnlock()
	if ok {
		return v
	}

	compiled, err := NewValidator(t.Schema())
	if err != nil {
		compiled = nil
	}

	r.mu.Lock()
	r.validators[name] = compiled
	r.mu.Unlock()
	return compiled
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns every registered tool, sorted by name, so system prompts are
// stable across runs (spec §4.3, §8 property 7).
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// names returns every registered tool name, sorted.
func (r *Registry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Dispatch runs the named tool against params, honoring the dispatch
// contract of spec §4.3:
//  1. Unknown tool -> is_error result listing the sorted available names.
//  2. Timeout after DispatchTimeout -> is_error result.
//  3. Any other handler error -> is_error result wrapping the error chain.
//  4. Success -> is_error:false result.
//
// Dispatch never returns a non-nil error itself; tool failures are always
// encoded into the returned Result so the caller can feed them back to the
// model (spec §7 propagation policy).
func (r *Registry) Dispatch(ctx context.Context, name string, params json.RawMessage) *Result {
	start := time.Now()
	r.mu.RLock()
	metrics := r.metrics
	r.mu.RUnlock()

	record := func(status string) {
		if metrics != nil {
			metrics.RecordToolExecution(name, status, time.Since(start).Seconds())
		}
	}

	tool, ok := r.Get(name)
	if !ok {
		record("not_found")
		return errorResult(fmt.Sprintf("No tool named %s. Available: %s", name, strings.Join(r.names(), ", ")))
	}

	if v := r.validatorFor(name, tool); v != nil {
		if err := v.Validate(params); err != nil {
			record("error")
			return errorResult(fmt.Sprintf("invalid arguments for %s: %v", name, err))
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, DispatchTimeout)
	defer cancel()

	type outcome struct {
		result *Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: fmt.Errorf("tool %q panicked: %v", name, rec)}
			}
		}()
		result, err := tool.Execute(callCtx, params)
		done <- outcome{result: result, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			record("error")
			return errorResult(o.err.Error())
		}
		if o.result == nil {
			record("error")
			return errorResult(fmt.Sprintf("tool %q returned no result", name))
		}
		if o.result.IsError {
			record("error")
		} else {
			record("success")
		}
		return o.result
	case <-callCtx.Done():
		record("timeout")
		return errorResult(fmt.Sprintf("Tool '%s' timed out after 5 minutes", name))
	}
}

// UsagePrompt concatenates each tool definition's name, description, and
// parameter table in sorted order, matching the teacher's AsLLMTools-style
// human/LLM-readable surface distinct from the wire schema (spec SPEC_FULL
// "Tool-usage prompt formatting").
func (r *Registry) UsagePrompt() string {
	var b strings.Builder
	for _, t := range r.List() {
		fmt.Fprintf(&b, "### %s\n%s\n\n", t.Name(), t.Description())
		params, err := schemaParamRows(t.Schema())
		if err == nil && len(params) > 0 {
			b.WriteString("| name | type | required | description |\n")
			b.WriteString("|---|---|---|---|\n")
			for _, p := range params {
				fmt.Fprintf(&b, "| %s | %s | %v | %s |\n", p.Name, p.Type, p.Required, p.Description)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
