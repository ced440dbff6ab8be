package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/vanshchauhan21/forge/internal/compaction"
	"github.com/vanshchauhan21/forge/internal/providers"
)

// estimateContextTokens approximates a Context's token footprint, delegating
// per-message estimation to internal/compaction.EstimateTokens and adding the
// pinned system message on top.
func estimateContextTokens(c providers.Context) int {
	chars := len(c.System)
	tokens := compaction.EstimateMessagesTokens(c.Messages)
	return tokens + (chars+compaction.CharsPerToken-1)/compaction.CharsPerToken
}

// serializeContext renders a Context as plain text for a summarizer agent to
// consume (spec §4.1 Transforms: "serialize context as text"), reusing
// compaction.FormatMessagesForSummary for the message body.
func serializeContext(c providers.Context) string {
	var b strings.Builder
	if c.System != "" {
		fmt.Fprintf(&b, "[system]\n%s\n\n", c.System)
	}
	b.WriteString(compaction.FormatMessagesForSummary(c.Messages))
	return b.String()
}

// transformSummarizer adapts the orchestrator's own agent-running machinery
// to compaction.Summarizer: each chunk is serialized to text and handed to
// the Summarize transform's configured agent as its InputKey variable.
type transformSummarizer struct {
	o        *Orchestrator
	agentID  AgentId
	inputKey string
	vars     map[string]any
}

func (s *transformSummarizer) GenerateSummary(ctx context.Context, messages []providers.Message, _ *compaction.SummarizationConfig) (string, error) {
	text := compaction.FormatMessagesForSummary(messages)
	out, err := s.o.runAgentByID(ctx, s.agentID, mergeVars(s.vars, map[string]any{s.inputKey: text}))
	if err != nil {
		return "", err
	}
	summary, _ := out["result"].(string)
	return summary, nil
}

// applyTransforms runs an agent's declared Transforms, in order, against its
// working context (spec §4.1 step 2).
func (o *Orchestrator) applyTransforms(ctx context.Context, transforms []Transform, pctx *providers.Context, vars map[string]any) error {
	for _, t := range transforms {
		switch tt := t.(type) {
		case Summarize:
			if err := o.applySummarize(ctx, tt, pctx, vars); err != nil {
				return err
			}
		case EnhanceUserPrompt:
			if err := o.applyEnhanceUserPrompt(ctx, tt, pctx, vars); err != nil {
				return err
			}
		}
	}
	return nil
}

// applySummarize replaces the elided (all but the last) messages with a
// synthetic summary message once the estimated token count reaches
// TokenLimit (spec §4.1 Transforms). TokenLimit is the trigger threshold,
// not a model context window, so the elided history is chunked and staged
// against internal/compaction's own default window/ratio so no single
// summarizer call grows unbounded with history length.
func (o *Orchestrator) applySummarize(ctx context.Context, t Summarize, pctx *providers.Context, vars map[string]any) error {
	if estimateContextTokens(*pctx) < t.TokenLimit {
		return nil
	}
	if len(pctx.Messages) <= 1 {
		return nil
	}

	elided := pctx.Messages[:len(pctx.Messages)-1]
	last := pctx.Messages[len(pctx.Messages)-1]

	config := compaction.DefaultSummarizationConfig()
	config.MaxChunkTokens = int(float64(config.ContextWindow) * compaction.ComputeAdaptiveChunkRatio(elided, config.ContextWindow))

	summarizer := &transformSummarizer{o: o, agentID: t.AgentId, inputKey: t.InputKey, vars: vars}
	summary, err := compaction.SummarizeInStages(ctx, elided, summarizer, config)
	if err != nil {
		return fmt.Errorf("orchestrator: summarize transform: %w", err)
	}

	pctx.Messages = []providers.Message{
		{Role: providers.RoleSystem, Content: summary},
		last,
	}
	return nil
}

// applyEnhanceUserPrompt rewrites the last message's content through
// t.AgentId when it is a user message (spec §4.1 Transforms).
func (o *Orchestrator) applyEnhanceUserPrompt(ctx context.Context, t EnhanceUserPrompt, pctx *providers.Context, vars map[string]any) error {
	if len(pctx.Messages) == 0 {
		return nil
	}
	last := &pctx.Messages[len(pctx.Messages)-1]
	if last.Role != providers.RoleUser || last.IsToolResult || last.IsImage {
		return nil
	}

	out, err := o.runAgentByID(ctx, t.AgentId, mergeVars(vars, map[string]any{t.InputKey: last.Content}))
	if err != nil {
		return fmt.Errorf("orchestrator: enhance_user_prompt transform: %w", err)
	}
	if enhanced, ok := out["result"].(string); ok {
		last.Content = enhanced
	}
	return nil
}

func mergeVars(base map[string]any, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
