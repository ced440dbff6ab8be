// Package compaction implements context-compaction utilities for keeping a
// conversation's message history within a model's token budget: token
// estimation, chunked summarization, and history pruning.
package compaction

import (
	"context"
	"fmt"
	"strings"

	"github.com/vanshchauhan21/forge/internal/providers"
)

// Constants for compaction behavior
const (
	// BaseChunkRatio is the default ratio of context window for chunk sizing.
	BaseChunkRatio = 0.4

	// MinChunkRatio is the minimum ratio to prevent overly small chunks.
	MinChunkRatio = 0.15

	// SafetyMargin provides a 20% buffer for token estimation inaccuracy.
	SafetyMargin = 1.2

	// DefaultSummaryFallback is returned when there's no prior history to summarize.
	DefaultSummaryFallback = "No prior history."

	// DefaultParts is the default number of parts for multi-stage summarization.
	DefaultParts = 2

	// OversizedThreshold is the fraction of context window above which a single
	// message is considered too large to summarize (50%).
	OversizedThreshold = 0.5

	// CharsPerToken is the approximate character-to-token ratio for estimation.
	CharsPerToken = 4

	// DefaultContextWindow is the fallback context window size in tokens.
	DefaultContextWindow = 100000

	// DefaultMinMessagesForSplit is the minimum messages needed before splitting.
	DefaultMinMessagesForSplit = 4
)

// EstimateTokens estimates a message's token footprint from its text and
// tool-call payloads. Approximation: ~4 characters per token.
func EstimateTokens(msg *providers.Message) int {
	if msg == nil {
		return 0
	}
	chars := len(msg.Content) + len(msg.ToolContent)
	for _, tc := range msg.ToolCalls {
		chars += len(tc.Name) + len(tc.Arguments)
	}
	return (chars + CharsPerToken - 1) / CharsPerToken // Ceiling division
}

// EstimateMessagesTokens estimates total tokens across all messages.
func EstimateMessagesTokens(messages []providers.Message) int {
	total := 0
	for i := range messages {
		total += EstimateTokens(&messages[i])
	}
	return total
}

// SplitMessagesByTokenShare splits messages into N parts with roughly equal
// token counts, for parallel/staged summarization.
func SplitMessagesByTokenShare(messages []providers.Message, parts int) [][]providers.Message {
	if len(messages) == 0 {
		return nil
	}
	if parts <= 0 {
		parts = DefaultParts
	}
	if parts == 1 || len(messages) < parts {
		return [][]providers.Message{messages}
	}

	totalTokens := EstimateMessagesTokens(messages)
	targetPerPart := totalTokens / parts

	result := make([][]providers.Message, 0, parts)
	currentPart := make([]providers.Message, 0)
	currentTokens := 0

	for i, msg := range messages {
		msgTokens := EstimateTokens(&messages[i])
		currentPart = append(currentPart, msg)
		currentTokens += msgTokens

		remainingParts := parts - len(result) - 1
		isLastMessage := i == len(messages)-1

		if !isLastMessage && remainingParts > 0 && currentTokens >= targetPerPart {
			result = append(result, currentPart)
			currentPart = make([]providers.Message, 0)
			currentTokens = 0
		}
	}

	if len(currentPart) > 0 {
		result = append(result, currentPart)
	}

	return result
}

// ChunkMessagesByMaxTokens splits messages into chunks where each chunk does
// not exceed maxTokens, except that a single message larger than maxTokens
// is placed alone in its own chunk, which then exceeds maxTokens.
func ChunkMessagesByMaxTokens(messages []providers.Message, maxTokens int) [][]providers.Message {
	if len(messages) == 0 {
		return nil
	}
	if maxTokens <= 0 {
		return [][]providers.Message{messages}
	}

	result := make([][]providers.Message, 0)
	currentChunk := make([]providers.Message, 0)
	currentTokens := 0

	for i, msg := range messages {
		msgTokens := EstimateTokens(&messages[i])

		if msgTokens > maxTokens {
			if len(currentChunk) > 0 {
				result = append(result, currentChunk)
				currentChunk = make([]providers.Message, 0)
				currentTokens = 0
			}
			result = append(result, []providers.Message{msg})
			continue
		}

		if currentTokens+msgTokens > maxTokens && len(currentChunk) > 0 {
			result = append(result, currentChunk)
			currentChunk = make([]providers.Message, 0)
			currentTokens = 0
		}

		currentChunk = append(currentChunk, msg)
		currentTokens += msgTokens
	}

	if len(currentChunk) > 0 {
		result = append(result, currentChunk)
	}

	return result
}

// ComputeAdaptiveChunkRatio computes chunk ratio based on average message
// size. When messages are large, smaller chunks avoid exceeding model limits.
func ComputeAdaptiveChunkRatio(messages []providers.Message, contextWindow int) float64 {
	if len(messages) == 0 || contextWindow <= 0 {
		return BaseChunkRatio
	}

	totalTokens := EstimateMessagesTokens(messages)
	avgTokensPerMsg := float64(totalTokens) / float64(len(messages))
	windowRatio := avgTokensPerMsg / float64(contextWindow)

	ratio := BaseChunkRatio * (1 - windowRatio*SafetyMargin)
	if ratio < MinChunkRatio {
		ratio = MinChunkRatio
	}
	if ratio > BaseChunkRatio {
		ratio = BaseChunkRatio
	}

	return ratio
}

// IsOversizedForSummary returns true if a single message is too large to
// summarize: it exceeds OversizedThreshold of the context window.
func IsOversizedForSummary(msg *providers.Message, contextWindow int) bool {
	if msg == nil || contextWindow <= 0 {
		return false
	}
	msgTokens := EstimateTokens(msg)
	threshold := float64(contextWindow) * OversizedThreshold
	return float64(msgTokens) > threshold
}

// SummarizationConfig configures a summarization pass.
type SummarizationConfig struct {
	// ReserveTokens is the number of tokens to reserve for the response.
	ReserveTokens int

	// MaxChunkTokens is the maximum tokens per chunk for summarization.
	MaxChunkTokens int

	// ContextWindow is the total context window size in tokens.
	ContextWindow int

	// CustomInstructions are additional instructions for the summarizer.
	CustomInstructions string

	// PreviousSummary is the previous summary to build upon.
	PreviousSummary string

	// Parts is the number of parts for multi-stage summarization.
	Parts int

	// MinMessagesForSplit is the minimum messages required before splitting.
	MinMessagesForSplit int
}

// DefaultSummarizationConfig returns a config with sensible defaults.
func DefaultSummarizationConfig() *SummarizationConfig {
	return &SummarizationConfig{
		ReserveTokens:       2000,
		MaxChunkTokens:      20000,
		ContextWindow:       DefaultContextWindow,
		Parts:               DefaultParts,
		MinMessagesForSplit: DefaultMinMessagesForSplit,
	}
}

// Summarizer generates a summary of a slice of messages, typically by
// driving a dedicated summarizer agent.
type Summarizer interface {
	GenerateSummary(ctx context.Context, messages []providers.Message, config *SummarizationConfig) (string, error)
}

// SummarizeChunks summarizes messages in chunks bounded by config's
// MaxChunkTokens, then merges the chunk summaries into one.
func SummarizeChunks(ctx context.Context, messages []providers.Message, summarizer Summarizer, config *SummarizationConfig) (string, error) {
	if len(messages) == 0 {
		return DefaultSummaryFallback, nil
	}
	if summarizer == nil {
		return "", fmt.Errorf("summarizer is nil")
	}
	if config == nil {
		config = DefaultSummarizationConfig()
	}

	maxChunkTokens := config.MaxChunkTokens
	if maxChunkTokens <= 0 {
		maxChunkTokens = int(float64(config.ContextWindow) * BaseChunkRatio)
	}

	chunks := ChunkMessagesByMaxTokens(messages, maxChunkTokens)
	if len(chunks) == 0 {
		return DefaultSummaryFallback, nil
	}

	if len(chunks) == 1 {
		return summarizer.GenerateSummary(ctx, chunks[0], config)
	}

	chunkSummaries := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		summary, err := summarizer.GenerateSummary(ctx, chunk, config)
		if err != nil {
			return "", fmt.Errorf("summarizing chunk %d: %w", i, err)
		}
		chunkSummaries = append(chunkSummaries, summary)
	}

	return mergeSummaries(ctx, chunkSummaries, summarizer, config)
}

// mergeSummaries combines multiple chunk summaries into a final summary.
func mergeSummaries(ctx context.Context, summaries []string, summarizer Summarizer, config *SummarizationConfig) (string, error) {
	if len(summaries) == 0 {
		return DefaultSummaryFallback, nil
	}
	if len(summaries) == 1 {
		return summaries[0], nil
	}

	mergeMessages := make([]providers.Message, len(summaries))
	for i, s := range summaries {
		mergeMessages[i] = providers.Message{
			Role:    providers.RoleSystem,
			Content: fmt.Sprintf("Chunk %d summary:\n%s", i+1, s),
		}
	}

	mergeConfig := *config
	mergeConfig.CustomInstructions = "Merge these chunk summaries into a single coherent summary. Preserve key details and maintain chronological flow."
	if config.CustomInstructions != "" {
		mergeConfig.CustomInstructions = config.CustomInstructions + "\n\n" + mergeConfig.CustomInstructions
	}

	return summarizer.GenerateSummary(ctx, mergeMessages, &mergeConfig)
}

// SummarizeWithFallback tries full summarization, but sets aside any
// oversized message as a note instead of failing on it.
func SummarizeWithFallback(ctx context.Context, messages []providers.Message, summarizer Summarizer, config *SummarizationConfig) (string, error) {
	if len(messages) == 0 {
		return DefaultSummaryFallback, nil
	}
	if summarizer == nil {
		return "", fmt.Errorf("summarizer is nil")
	}
	if config == nil {
		config = DefaultSummarizationConfig()
	}

	var normal []providers.Message
	var oversizedNotes []string

	for i := range messages {
		if IsOversizedForSummary(&messages[i], config.ContextWindow) {
			note := fmt.Sprintf("[Oversized %s message with %d tokens - content omitted]",
				messages[i].Role, EstimateTokens(&messages[i]))
			oversizedNotes = append(oversizedNotes, note)
		} else {
			normal = append(normal, messages[i])
		}
	}

	var summary string
	var err error
	if len(normal) > 0 {
		summary, err = SummarizeChunks(ctx, normal, summarizer, config)
		if err != nil {
			return "", fmt.Errorf("summarizing normal messages: %w", err)
		}
	} else {
		summary = DefaultSummaryFallback
	}

	if len(oversizedNotes) > 0 {
		summary = summary + "\n\n" + strings.Join(oversizedNotes, "\n")
	}

	return summary, nil
}

// SummarizeInStages splits messages into parts, summarizes each part, then
// merges the part summaries. Useful for very long histories, where staged
// summarization keeps each individual summarizer call small.
func SummarizeInStages(ctx context.Context, messages []providers.Message, summarizer Summarizer, config *SummarizationConfig) (string, error) {
	if len(messages) == 0 {
		return DefaultSummaryFallback, nil
	}
	if summarizer == nil {
		return "", fmt.Errorf("summarizer is nil")
	}
	if config == nil {
		config = DefaultSummarizationConfig()
	}

	parts := config.Parts
	if parts <= 0 {
		parts = DefaultParts
	}

	minMessages := config.MinMessagesForSplit
	if minMessages <= 0 {
		minMessages = DefaultMinMessagesForSplit
	}

	if len(messages) < minMessages {
		return SummarizeWithFallback(ctx, messages, summarizer, config)
	}

	partitions := SplitMessagesByTokenShare(messages, parts)
	if len(partitions) <= 1 {
		return SummarizeWithFallback(ctx, messages, summarizer, config)
	}

	partSummaries := make([]string, 0, len(partitions))
	for i, partition := range partitions {
		summary, err := SummarizeWithFallback(ctx, partition, summarizer, config)
		if err != nil {
			return "", fmt.Errorf("summarizing part %d: %w", i, err)
		}
		partSummaries = append(partSummaries, summary)
	}

	if config.PreviousSummary != "" && config.PreviousSummary != DefaultSummaryFallback {
		partSummaries = append([]string{config.PreviousSummary}, partSummaries...)
	}

	return mergeSummaries(ctx, partSummaries, summarizer, config)
}

// PruneResult reports the outcome of pruning history to a token budget.
type PruneResult struct {
	Messages        []providers.Message
	DroppedChunks   int
	DroppedMessages int
	DroppedTokens   int
	KeptTokens      int
	BudgetTokens    int
}

// PruneHistoryForContextShare prunes history to fit within a token budget,
// keeping the most recent messages up to the budget.
func PruneHistoryForContextShare(messages []providers.Message, maxContextTokens int, maxHistoryShare float64, parts int) *PruneResult {
	result := &PruneResult{
		Messages:     messages,
		BudgetTokens: maxContextTokens,
	}

	if len(messages) == 0 || maxContextTokens <= 0 {
		return result
	}

	if maxHistoryShare <= 0 || maxHistoryShare > 1 {
		maxHistoryShare = 1.0
	}

	budgetTokens := int(float64(maxContextTokens) * maxHistoryShare)
	result.BudgetTokens = budgetTokens

	totalTokens := EstimateMessagesTokens(messages)
	if totalTokens <= budgetTokens {
		result.KeptTokens = totalTokens
		return result
	}

	keptMessages := make([]providers.Message, 0)
	keptTokens := 0

	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		msgTokens := EstimateTokens(&messages[i])

		if keptTokens+msgTokens > budgetTokens {
			break
		}

		keptMessages = append([]providers.Message{msg}, keptMessages...)
		keptTokens += msgTokens
	}

	droppedCount := len(messages) - len(keptMessages)
	droppedTokens := totalTokens - keptTokens

	droppedChunks := 0
	if parts > 0 && droppedCount > 0 {
		chunks := SplitMessagesByTokenShare(messages, parts)
		for _, chunk := range chunks {
			allDropped := true
			for ci := range chunk {
				for ki := range keptMessages {
					if sameMessage(&chunk[ci], &keptMessages[ki]) {
						allDropped = false
						break
					}
				}
				if !allDropped {
					break
				}
			}
			if allDropped {
				droppedChunks++
			}
		}
	}

	result.Messages = keptMessages
	result.DroppedChunks = droppedChunks
	result.DroppedMessages = droppedCount
	result.DroppedTokens = droppedTokens
	result.KeptTokens = keptTokens

	return result
}

// sameMessage reports whether two messages are the same conversation turn,
// used only to tell which chunks survived pruning. providers.Message has no
// identity field, so role+content+tool-call-id+tool-content stand in for one.
func sameMessage(a, b *providers.Message) bool {
	return a.Role == b.Role && a.Content == b.Content && a.ToolCallID == b.ToolCallID && a.ToolContent == b.ToolContent
}

// ResolveContextWindowTokens resolves a context window size with fallback:
// the model's own window, else a caller default, else DefaultContextWindow.
func ResolveContextWindowTokens(modelContextWindow, defaultContextWindow int) int {
	if modelContextWindow > 0 {
		return modelContextWindow
	}
	if defaultContextWindow > 0 {
		return defaultContextWindow
	}
	return DefaultContextWindow
}

// FormatMessagesForSummary renders messages as plain text for a summarizer
// agent to consume, tagging tool results and image attachments distinctly
// from ordinary turns.
func FormatMessagesForSummary(messages []providers.Message) string {
	var sb strings.Builder

	for _, msg := range messages {
		switch {
		case msg.IsToolResult:
			fmt.Fprintf(&sb, "[tool_result %s]\n%s\n\n", msg.ToolCallID, truncateString(msg.ToolContent, 200))
		case msg.IsImage:
			fmt.Fprintf(&sb, "[image]\n%s\n\n", msg.ImageURL)
		default:
			fmt.Fprintf(&sb, "[%s]\n%s\n\n", msg.Role, msg.Content)
			for _, tc := range msg.ToolCalls {
				fmt.Fprintf(&sb, "  tool_call %s(%s) -> %s\n", tc.Name, tc.CallID, truncateString(string(tc.Arguments), 200))
			}
		}
	}

	return sb.String()
}

// truncateString truncates a string to maxLen with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
