package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vanshchauhan21/forge/internal/observability"
	"github.com/vanshchauhan21/forge/internal/providers"
	"github.com/vanshchauhan21/forge/internal/toolservice/tools"
)

// Orchestrator runs the agent loop described in spec §4.1: render prompt,
// call the model, execute tool calls, update context, handover. Directly
// adapted in place from internal/agent/loop.go's AgenticLoop — the
// phase-based state machine shape is kept (Init/Stream/ExecuteTools/
// Continue/Complete) but tool dispatch is sequential and declaration-ordered
// (spec §4.1 step 5, §5 Ordering guarantees) instead of the teacher's
// parallel/async executor, and persistence goes through the generic
// ContextStore interface instead of the teacher's sessions.Store.
type Orchestrator struct {
	workflow *Workflow
	provider Provider
	tools    ToolDispatcher
	renderer *Renderer
	store    ContextStore
	sink     EventSink
	logger   *slog.Logger
	tracer   *observability.Tracer
	metrics  *observability.Metrics
}

// SetObservability wires a tracer and/or metrics collector into the
// orchestrator (SPEC_FULL.md DOMAIN STACK: spans around the per-agent loop
// and provider calls, run-attempt/LLM-request counters). Either argument may
// be nil; both default to nil (no tracing, no metrics) until called.
func (o *Orchestrator) SetObservability(m *observability.Metrics, t *observability.Tracer) {
	o.metrics = m
	o.tracer = t
}

// New builds an Orchestrator for the given workflow.
func New(workflow *Workflow, provider Provider, tools ToolDispatcher, store ContextStore, sink EventSink, logger *slog.Logger) *Orchestrator {
	if sink == nil {
		sink = NopEventSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		workflow: workflow,
		provider: provider,
		tools:    tools,
		renderer: NewRenderer(),
		store:    store,
		sink:     sink,
		logger:   logger,
	}
}

// Execute runs the implied agent(s) for flowId to completion (spec §4.1).
func (o *Orchestrator) Execute(ctx context.Context, flowId FlowId, event Event) (map[string]any, error) {
	return o.execute(ctx, flowId, event, map[string]any{}, map[FlowId]bool{})
}

func (o *Orchestrator) execute(ctx context.Context, flowId FlowId, event Event, vars map[string]any, visited map[FlowId]bool) (map[string]any, error) {
	if visited[flowId] {
		return nil, &FlowError{Flow: flowId, Err: ErrHandoverCycle}
	}
	visited[flowId] = true

	if !flowId.IsAgent() {
		// Nested workflows are not entered: any FlowId that names a
		// workflow rather than an agent fails with ErrWorkflowUndefined
		// (spec §3 FlowId, §9 Open Question: handovers admit nested
		// workflows but the source does not specify how control re-enters
		// one).
		return nil, &FlowError{Flow: flowId, Err: ErrWorkflowUndefined}
	}

	agent, ok := o.workflow.AgentByID(flowId.Agent)
	if !ok {
		return nil, &FlowError{Flow: flowId, Err: ErrAgentUndefined}
	}

	outVars, err := o.runAgent(ctx, agent, event, vars)
	if err != nil {
		return nil, err
	}

	for _, target := range o.workflow.Handovers[flowId] {
		if _, err := o.execute(ctx, target, Event{Name: "handover", Value: ""}, outVars, visited); err != nil {
			return outVars, err
		}
	}
	return outVars, nil
}

// runAgentByID looks up an agent by id and runs it once (used by Transforms
// to invoke a designated summarizer/enhancer agent, spec §4.1 Transforms).
func (o *Orchestrator) runAgentByID(ctx context.Context, id AgentId, vars map[string]any) (map[string]any, error) {
	agent, ok := o.workflow.AgentByID(id)
	if !ok {
		return nil, &FlowError{Flow: FlowId{Agent: id}, Err: ErrAgentUndefined}
	}
	return o.runAgent(ctx, agent, Event{}, vars)
}

// runAgent implements the per-agent loop of spec §4.1 steps 1-6.
func (o *Orchestrator) runAgent(ctx context.Context, agent Agent, event Event, vars map[string]any) (map[string]any, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.runAgent")
	defer span.End()

	result, err := o.runAgentTraced(ctx, agent, event, vars)
	if err != nil {
		o.tracer.RecordError(span, err)
		o.metrics.RecordRunAttempt("error")
	} else {
		o.metrics.RecordRunAttempt("success")
	}
	return result, err
}

func (o *Orchestrator) runAgentTraced(ctx context.Context, agent Agent, event Event, vars map[string]any) (map[string]any, error) {
	convID, _ := vars["conversation_id"].(string)

	pctx, err := o.buildInitialContext(ctx, agent, event, vars, ConversationId(convID))
	if err != nil {
		return nil, fmt.Errorf("orchestrator: build context for %s: %w", agent.ID, err)
	}

	walkerCtx := ctx
	if agent.MaxWalkerDepth > 0 {
		walkerCtx = tools.WithMaxWalkerDepth(ctx, agent.MaxWalkerDepth)
	}

	for {
		if err := o.applyTransforms(ctx, agent.Transforms, pctx, vars); err != nil {
			return nil, err
		}

		content, toolCalls, err := o.callProvider(ctx, agent, *pctx)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: agent %s: %w", agent.ID, err)
		}

		if len(toolCalls) == 0 {
			if convID != "" && o.store != nil && !agent.Ephemeral {
				if err := o.store.Save(ctx, ConversationId(convID), *pctx); err != nil {
					return nil, fmt.Errorf("orchestrator: persist context: %w", err)
				}
			}
			o.sink.Emit("CompleteTitle", content)
			return mergeVars(vars, map[string]any{"result": content}), nil
		}

		assistantMsg := providers.Message{
			Role:      providers.RoleAssistant,
			Content:   content,
			ToolCalls: toolCalls,
		}

		// Tool calls from one assistant turn execute sequentially in
		// declaration order: later calls may observe earlier filesystem
		// side effects (spec §4.1 step 5, §5 Ordering guarantees).
		toolMsgs := make([]providers.Message, 0, len(toolCalls))
		for _, tc := range toolCalls {
			result := o.tools.Dispatch(walkerCtx, tc.Name, tc.Arguments)
			toolMsgs = append(toolMsgs, providers.Message{
				Role:         providers.RoleTool,
				IsToolResult: true,
				ToolCallID:   tc.CallID,
				ToolContent:  result.Content,
				IsError:      result.IsError,
			})
		}

		pctx.Messages = append(pctx.Messages, assistantMsg)
		pctx.Messages = append(pctx.Messages, toolMsgs...)

		if convID != "" && o.store != nil && !agent.Ephemeral {
			if err := o.store.Save(ctx, ConversationId(convID), *pctx); err != nil {
				return nil, fmt.Errorf("orchestrator: persist context: %w", err)
			}
		}
		o.sink.Emit("ModifyContext", string(agent.ID))
	}
}

func (o *Orchestrator) buildInitialContext(ctx context.Context, agent Agent, event Event, vars map[string]any, convID ConversationId) (*providers.Context, error) {
	if convID != "" && o.store != nil && !agent.Ephemeral {
		if loaded, ok, err := o.store.Load(ctx, convID); err != nil {
			return nil, err
		} else if ok {
			loaded.Tools = o.tools.Definitions(agent.Tools)
			return &loaded, nil
		}
	}

	toolsPrompt := o.tools.UsagePromptFor(agent.Tools)
	systemText, err := o.renderer.RenderSystemPrompt(agent, toolsPrompt, vars)
	if err != nil {
		return nil, err
	}
	userVars := mergeVars(vars, map[string]any{"event_name": event.Name, "event_value": event.Value})
	userText, err := o.renderer.RenderUserPrompt(agent, userVars)
	if err != nil {
		return nil, err
	}

	var choice *providers.ToolChoice
	if agent.ToolSupported && len(agent.Tools) > 0 {
		choice = &providers.ToolChoice{Mode: "auto"}
	}

	return &providers.Context{
		System:     systemText,
		Messages:   []providers.Message{{Role: providers.RoleUser, Content: userText}},
		Tools:      o.tools.Definitions(agent.Tools),
		ToolChoice: choice,
	}, nil
}

// callProvider invokes the model via the Provider Adapter and consumes the
// normalized stream, accumulating assistant content and assembled tool
// calls (spec §4.1 step 3).
func (o *Orchestrator) callProvider(ctx context.Context, agent Agent, pctx providers.Context) (string, []providers.ToolCallFull, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.callProvider")
	defer span.End()
	start := time.Now()

	content, toolCalls, usage, err := o.callProviderTraced(ctx, agent, pctx)
	status := "success"
	if err != nil {
		status = "error"
		o.tracer.RecordError(span, err)
	}
	o.metrics.RecordLLMRequest(string(agent.Model), status, time.Since(start).Seconds(), usage.InputTokens, usage.OutputTokens)
	return content, toolCalls, err
}

func (o *Orchestrator) callProviderTraced(ctx context.Context, agent Agent, pctx providers.Context) (string, []providers.ToolCallFull, providers.Usage, error) {
	req := providers.CompletionRequest{Model: string(agent.Model), Context: pctx}
	stream, err := o.provider.Chat(ctx, string(agent.Model), req)
	if err != nil {
		return "", nil, providers.Usage{}, err
	}

	var content string
	var toolCalls []providers.ToolCallFull
	var usage providers.Usage
	assembler := providers.NewToolCallAssembler()
	for item := range stream {
		if item.Err != nil {
			return "", nil, usage, item.Err
		}
		if item.Message == nil {
			continue
		}
		content += item.Message.Content
		if item.Message.Usage != nil {
			usage = *item.Message.Usage
		}
		for _, part := range item.Message.ToolCallParts {
			assembler.Add(part)
		}
		if item.Message.FinishReason == "tool_calls" {
			finalized, err := assembler.Finalize()
			if err != nil {
				return "", nil, usage, err
			}
			toolCalls = finalized
		}
	}
	if !assembler.Empty() && toolCalls == nil {
		finalized, err := assembler.Finalize()
		if err != nil {
			return "", nil, usage, err
		}
		toolCalls = finalized
	}
	return content, toolCalls, usage, nil
}
