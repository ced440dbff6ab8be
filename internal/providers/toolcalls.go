package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrToolCallMissingArgs is returned when a ToolCallFull has no name once
// finalized.
var ErrToolCallMissingArgs = errors.New("providers: tool call missing name")

// ErrToolCallInvalidJSON is returned when a ToolCallFull's assembled
// arguments do not parse as JSON.
var ErrToolCallInvalidJSON = errors.New("providers: tool call arguments are not valid JSON")

// assemblerState names the explicit states of the tool-call assembler, per
// spec §9's design note (prefer an explicit state machine over a mixed
// imperative/scan loop).
type assemblerState int

const (
	stateIdle assemblerState = iota
	stateAccumulating
	stateTerminated
)

// inProgressCall accumulates one ToolCallPart stream (keyed by vendor index)
// into a finished ToolCallFull. The earliest non-null name/call id wins;
// ArgumentsPart fragments concatenate in arrival order.
type inProgressCall struct {
	name    string
	callID  string
	builder strings.Builder
}

// ToolCallAssembler tracks one in-progress call per stream index while a
// Provider.Chat stream is being consumed, and finalizes them into
// ToolCallFull values on a terminator event.
type ToolCallAssembler struct {
	state    assemblerState
	inFlight map[int]*inProgressCall
	order    []int
	localSeq int
}

// NewToolCallAssembler returns an assembler in the Idle state.
func NewToolCallAssembler() *ToolCallAssembler {
	return &ToolCallAssembler{state: stateIdle, inFlight: map[int]*inProgressCall{}}
}

// Add folds one streamed ToolCallPart into the assembler. If the part omits
// a call id (some vendor streams only carry one on the first fragment of a
// call), a local placeholder ("local-<index>") is assigned so assembly can
// proceed; it is overwritten the moment a non-null id arrives.
func (a *ToolCallAssembler) Add(part ToolCallPart) {
	if a.state == stateTerminated {
		return
	}
	a.state = stateAccumulating
	call, ok := a.inFlight[part.Index]
	if !ok {
		call = &inProgressCall{callID: fmt.Sprintf("local-%d", part.Index)}
		a.inFlight[part.Index] = call
		a.order = append(a.order, part.Index)
	}
	if call.name == "" && part.Name != "" {
		call.name = part.Name
	}
	if part.CallID != "" && call.callID == fmt.Sprintf("local-%d", part.Index) {
		call.callID = part.CallID
	}
	call.builder.WriteString(part.ArgumentsPart)
}

// Finalize transitions to Terminated and assembles every in-progress call
// into a ToolCallFull, in ascending stream-index order. It fails
// with ErrToolCallMissingArgs or ErrToolCallInvalidJSON (wrapped with the
// offending call's index) if any call cannot be finalized.
func (a *ToolCallAssembler) Finalize() ([]ToolCallFull, error) {
	a.state = stateTerminated
	sort.Ints(a.order)
	out := make([]ToolCallFull, 0, len(a.order))
	for _, idx := range a.order {
		call := a.inFlight[idx]
		if call.name == "" {
			return nil, fmt.Errorf("providers: tool call at index %d: %w", idx, ErrToolCallMissingArgs)
		}
		raw := strings.TrimSpace(call.builder.String())
		if raw == "" {
			raw = "{}"
		}
		if !json.Valid([]byte(raw)) {
			return nil, fmt.Errorf("providers: tool call %q at index %d: %w", call.name, idx, ErrToolCallInvalidJSON)
		}
		out = append(out, ToolCallFull{Name: call.name, CallID: call.callID, Arguments: json.RawMessage(raw)})
	}
	return out, nil
}

// Empty reports whether any part has been added.
func (a *ToolCallAssembler) Empty() bool {
	return len(a.inFlight) == 0
}
