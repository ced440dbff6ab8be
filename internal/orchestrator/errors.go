package orchestrator

import "errors"

// Orchestration errors (spec §7): fatal for the current turn, surfaced to
// the caller rather than fed back to the model.
var (
	// ErrAgentUndefined is returned when a FlowId names an agent the
	// workflow does not define.
	ErrAgentUndefined = errors.New("orchestrator: agent undefined")

	// ErrWorkflowUndefined is returned whenever a FlowId names a nested
	// workflow; nested workflows are never resolved or run.
	ErrWorkflowUndefined = errors.New("orchestrator: workflow undefined")

	// ErrHandoverCycle is returned when a single top-level Execute call
	// would visit the same FlowId more than once via handovers (spec §9:
	// cycles are an error, never a silent loop).
	ErrHandoverCycle = errors.New("orchestrator: handover cycle detected")

	// ErrUndefinedVariable is returned when template rendering references
	// a variable that is not bound.
	ErrUndefinedVariable = errors.New("orchestrator: undefined variable")
)

// FlowError wraps an orchestration error with the FlowId it occurred on.
type FlowError struct {
	Flow FlowId
	Err  error
}

func (e *FlowError) Error() string {
	return e.Flow.String() + ": " + e.Err.Error()
}

func (e *FlowError) Unwrap() error { return e.Err }
