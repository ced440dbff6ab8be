package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"regexp"
	"runtime"

	"github.com/vanshchauhan21/forge/internal/toolservice"
)

// ShellInput is the JSON shape of shell's arguments.
type ShellInput struct {
	Command  string `json:"command" jsonschema:"required,description=Command line to run via the host shell."`
	CWD      string `json:"cwd,omitempty" jsonschema:"description=Working directory; defaults to the process's own."`
	KeepANSI bool   `json:"keep_ansi,omitempty" jsonschema:"description=Preserve ANSI escape sequences in output."`
}

type shellOutput struct {
	Stdout  string `json:"stdout"`
	Stderr  string `json:"stderr"`
	Success bool   `json:"success"`
}

// Shell implements the shell tool (spec §4.3): runs Command through the
// host shell (rbash in restricted mode, else $SHELL on POSIX or COMSPEC on
// Windows), captures stdout/stderr, and reports {stdout, stderr, success}
// once the command exits; output is not streamed while the command runs.
// Grounded on internal/shell's ProcessSession model, simplified here to a
// single synchronous invocation rather than a tracked background session.
type Shell struct {
	// Restricted, when set, forces the rbash shell regardless of the host
	// environment's own shell.
	Restricted bool
}

// NewShell returns the shell tool.
func NewShell(restricted bool) *Shell { return &Shell{Restricted: restricted} }

func (t *Shell) Name() string            { return "shell" }
func (t *Shell) Description() string     { return "Run a command via the host shell." }
func (t *Shell) Schema() json.RawMessage { return mustSchema(ShellInput{}) }

func (t *Shell) Execute(ctx context.Context, params json.RawMessage) (*toolservice.Result, error) {
	var in ShellInput
	if err := json.Unmarshal(params, &in); err != nil {
		return errResult("invalid parameters: %v", err), nil
	}
	if in.Command == "" {
		return errResult("command is required"), nil
	}

	name, args := t.shellInvocation(in.Command)
	cmd := exec.CommandContext(ctx, name, args...)
	if in.CWD != "" {
		cmd.Dir = in.CWD
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	outStr, errStr := stdout.String(), stderr.String()
	if !in.KeepANSI {
		outStr = stripANSI(outStr)
		errStr = stripANSI(errStr)
	}

	out := shellOutput{Stdout: outStr, Stderr: errStr, Success: runErr == nil}
	payload, err := json.Marshal(out)
	if err != nil {
		return errResult("failed to encode shell output: %v", err), nil
	}
	return okResult(string(payload)), nil
}

// shellInvocation picks the host shell per spec §4.3: rbash in restricted
// mode, else $SHELL on POSIX or COMSPEC on Windows, falling back to
// /bin/sh or cmd.exe when unset.
func (t *Shell) shellInvocation(command string) (string, []string) {
	if t.Restricted {
		return "rbash", []string{"-c", command}
	}
	if runtime.GOOS == "windows" {
		comspec := os.Getenv("COMSPEC")
		if comspec == "" {
			comspec = "cmd.exe"
		}
		return comspec, []string{"/C", command}
	}
	sh := os.Getenv("SHELL")
	if sh == "" {
		sh = "/bin/sh"
	}
	return sh, []string{"-c", command}
}

var ansiPattern = regexp.MustCompile("\x1b\\[[0-9;]*[a-zA-Z]")

func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}
