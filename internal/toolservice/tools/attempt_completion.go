package tools

import (
	"context"
	"encoding/json"

	"github.com/vanshchauhan21/forge/internal/toolservice"
)

// AttemptCompletionInput is the JSON shape of attempt_completion's arguments.
type AttemptCompletionInput struct {
	Result string `json:"result" jsonschema:"required,description=Final result summary for the task."`
}

// AttemptCompletion implements the attempt_completion tool (spec §4.3): it
// returns the result text as its content and hands it to OnComplete when
// one is set. Arguments that are not valid JSON give an error result. The
// orchestrator dispatches this tool like any other tool call and emits no
// terminal event for it.
type AttemptCompletion struct {
	// OnComplete, when set, is invoked with the final result text. Nothing
	// in this module sets it; the tool itself has no loop-control
	// dependencies.
	OnComplete func(result string)
}

// NewAttemptCompletion returns the attempt_completion tool.
func NewAttemptCompletion(onComplete func(result string)) *AttemptCompletion {
	return &AttemptCompletion{OnComplete: onComplete}
}

func (t *AttemptCompletion) Name() string        { return "attempt_completion" }
func (t *AttemptCompletion) Description() string { return "Signal that the task is complete." }
func (t *AttemptCompletion) Schema() json.RawMessage { return mustSchema(AttemptCompletionInput{}) }

func (t *AttemptCompletion) Execute(ctx context.Context, params json.RawMessage) (*toolservice.Result, error) {
	var in AttemptCompletionInput
	if err := json.Unmarshal(params, &in); err != nil {
		return errResult("invalid parameters: %v", err), nil
	}
	if t.OnComplete != nil {
		t.OnComplete(in.Result)
	}
	return okResult(in.Result), nil
}
