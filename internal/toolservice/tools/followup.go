package tools

import (
	"context"
	"encoding/json"

	"github.com/vanshchauhan21/forge/internal/toolservice"
)

// FollowupInput is the JSON shape of followup's arguments. Option1..Option5
// are suggested answers the collaborator may offer the user instead of
// free text; Multiple allows selecting more than one.
type FollowupInput struct {
	Question string `json:"question" jsonschema:"required,description=Question to put to the user."`
	Multiple bool   `json:"multiple,omitempty" jsonschema:"description=Allow selecting more than one option."`
	Option1  string `json:"option1,omitempty"`
	Option2  string `json:"option2,omitempty"`
	Option3  string `json:"option3,omitempty"`
	Option4  string `json:"option4,omitempty"`
	Option5  string `json:"option5,omitempty"`
}

// Inquire is the external collaborator followup hands a question to. It is
// the seam between the tool and whatever surface actually collects a human
// answer (a CLI prompt, a chat UI, a test double).
type Inquire interface {
	Ask(ctx context.Context, question string, options []string, multiple bool) (string, error)
}

// Followup implements the followup tool (spec §4.3): it hands the question
// and its options to an Inquire collaborator and returns whatever text the
// user supplied.
type Followup struct {
	collaborator Inquire
}

// NewFollowup returns the followup tool backed by the given collaborator.
func NewFollowup(collaborator Inquire) *Followup {
	return &Followup{collaborator: collaborator}
}

func (t *Followup) Name() string            { return "followup" }
func (t *Followup) Description() string     { return "Ask the user a clarifying question." }
func (t *Followup) Schema() json.RawMessage { return mustSchema(FollowupInput{}) }

func (t *Followup) Execute(ctx context.Context, params json.RawMessage) (*toolservice.Result, error) {
	var in FollowupInput
	if err := json.Unmarshal(params, &in); err != nil {
		return errResult("invalid parameters: %v", err), nil
	}
	if in.Question == "" {
		return errResult("question is required"), nil
	}
	if t.collaborator == nil {
		return errResult("no followup collaborator configured"), nil
	}

	var options []string
	for _, opt := range []string{in.Option1, in.Option2, in.Option3, in.Option4, in.Option5} {
		if opt != "" {
			options = append(options, opt)
		}
	}

	answer, err := t.collaborator.Ask(ctx, in.Question, options, in.Multiple)
	if err != nil {
		return errResult("followup failed: %v", err), nil
	}
	return okResult(answer), nil
}
