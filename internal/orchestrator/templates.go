package orchestrator

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Renderer renders an Agent's SystemPrompt/UserPrompt template sources
// against a variable bag. Grounded on internal/templates/variables.go's
// VariableEngine: same text/template + FuncMap approach, generalized from
// AgentTemplate-specific variables to the spec's opaque Template<Ctx>
// strings (spec §3 Agent, §4.1 step 1).
type Renderer struct {
	funcMap template.FuncMap
}

// NewRenderer returns a Renderer with the default function map.
func NewRenderer() *Renderer {
	return &Renderer{funcMap: defaultFuncMap()}
}

// Render executes tmplSrc against vars. An empty template renders to "".
func (r *Renderer) Render(tmplSrc string, vars map[string]any) (string, error) {
	if tmplSrc == "" {
		return "", nil
	}
	t, err := template.New("prompt").Funcs(r.funcMap).Option("missingkey=error").Parse(tmplSrc)
	if err != nil {
		return "", fmt.Errorf("orchestrator: parse template: %w", err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, vars); err != nil {
		if strings.Contains(err.Error(), "map has no entry for key") {
			return "", fmt.Errorf("%w: %s", ErrUndefinedVariable, err.Error())
		}
		return "", fmt.Errorf("orchestrator: render template: %w", err)
	}
	return buf.String(), nil
}

func defaultFuncMap() template.FuncMap {
	titleCaser := cases.Title(language.English)
	return template.FuncMap{
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"title": titleCaser.String,
		"trim":  strings.TrimSpace,
		"join":  strings.Join,
	}
}

// RenderSystemPrompt renders an agent's system prompt with the system
// variable bag plus a concatenation of tool usage prompts for its declared
// tools (spec §4.1 step 1).
func (r *Renderer) RenderSystemPrompt(agent Agent, toolsUsagePrompt string, systemVars map[string]any) (string, error) {
	vars := make(map[string]any, len(systemVars)+1)
	for k, v := range systemVars {
		vars[k] = v
	}
	vars["tools_usage"] = toolsUsagePrompt
	return r.Render(agent.SystemPrompt, vars)
}

// RenderUserPrompt renders an agent's user prompt against the event/variable
// context bound for this run (spec §4.1 step 1).
func (r *Renderer) RenderUserPrompt(agent Agent, vars map[string]any) (string, error) {
	return r.Render(agent.UserPrompt, vars)
}
