package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/vanshchauhan21/forge/internal/toolservice"
)

// FSReadInput is the JSON shape of fs_read's arguments. StartChar/EndChar
// form a half-open [start, end) character range, per spec §8 S1 ("hello"
// from start_char=0, end_char=5 over "hello\nworld\n").
type FSReadInput struct {
	Path      string `json:"path" jsonschema:"required,description=Absolute path to the file to read."`
	StartChar *int   `json:"start_char,omitempty" jsonschema:"description=Start character offset (inclusive); default 0."`
	EndChar   *int   `json:"end_char,omitempty" jsonschema:"description=End character offset (exclusive); default end of file."`
}

// FSRead implements the fs_read tool (spec §4.3, S1/S2): reads UTF-8
// content in a character range, rejects binary files, and reports size
// metadata. Adapted from internal/tools/files/read.go's Config/Execute
// shape and toolError convention, rewritten for character ranges instead
// of byte offsets.
type FSRead struct{}

// NewFSRead returns the fs_read tool.
func NewFSRead() *FSRead { return &FSRead{} }

func (t *FSRead) Name() string        { return "fs_read" }
func (t *FSRead) Description() string { return "Read a file's UTF-8 content within a character range." }
func (t *FSRead) Schema() json.RawMessage { return mustSchema(FSReadInput{}) }

func (t *FSRead) Execute(ctx context.Context, params json.RawMessage) (*toolservice.Result, error) {
	var in FSReadInput
	if err := json.Unmarshal(params, &in); err != nil {
		return errResult("invalid parameters: %v", err), nil
	}
	if err := requireAbsolute(in.Path); err != nil {
		return errResult("%s", err.Error()), nil
	}

	raw, err := os.ReadFile(in.Path)
	if err != nil {
		return errResult("failed to read %s: %v", in.Path, err), nil
	}
	if looksBinary(raw) {
		return errResult("Binary file not supported: %s", in.Path), nil
	}
	if !utf8.Valid(raw) {
		return errResult("file %s is not valid UTF-8", in.Path), nil
	}

	runes := []rune(string(raw))
	total := len(runes)

	start := 0
	if in.StartChar != nil {
		start = *in.StartChar
	}
	end := total
	if in.EndChar != nil {
		end = *in.EndChar
	}
	if start < 0 || start > total {
		return errResult("start_char %d is out of range for file of %d characters", start, total), nil
	}
	if end < start {
		return errResult("end_char %d is before start_char %d", end, start), nil
	}
	if start >= total && total > 0 {
		return errResult("start_char %d is at or beyond end of file (%d characters)", start, total), nil
	}
	if end > total {
		end = total
	}

	content := string(runes[start:end])
	return okResult(fmt.Sprintf("%s\n\n[start_char=%d end_char=%d total_chars=%d]", content, start, end, total)), nil
}

// looksBinary mirrors the common "NUL in the first 1024 bytes" heuristic:
// a file whose first chunk contains a NUL byte is treated as binary.
func looksBinary(data []byte) bool {
	n := len(data)
	if n > 1024 {
		n = 1024
	}
	return bytes.IndexByte(data[:n], 0) != -1
}
