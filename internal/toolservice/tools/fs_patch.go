package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/vanshchauhan21/forge/internal/toolservice"
)

// FSPatchInput is the JSON shape of fs_patch's arguments (spec §4.3).
type FSPatchInput struct {
	Path      string `json:"path" jsonschema:"required,description=Absolute path of the file to patch."`
	Search    string `json:"search" jsonschema:"description=Substring to locate; empty means end-of-file."`
	Operation string `json:"operation" jsonschema:"required,description=One of prepend, append, replace, swap."`
	Content   string `json:"content" jsonschema:"required,description=Replacement or inserted content; for swap, the second search text to exchange with Search."`
}

// FSPatch implements the fs_patch tool (spec §4.3, S3): locates the first
// occurrence of Search (or end-of-file when Search is empty) and applies
// one of four operations, snapshotting the prior content first.
type FSPatch struct {
	snapshots *toolservice.SnapshotStore
}

// NewFSPatch returns the fs_patch tool.
func NewFSPatch(store *toolservice.SnapshotStore) *FSPatch {
	return &FSPatch{snapshots: store}
}

func (t *FSPatch) Name() string        { return "fs_patch" }
func (t *FSPatch) Description() string { return "Apply a prepend/append/replace/swap patch to a file." }
func (t *FSPatch) Schema() json.RawMessage { return mustSchema(FSPatchInput{}) }

func (t *FSPatch) Execute(ctx context.Context, params json.RawMessage) (*toolservice.Result, error) {
	var in FSPatchInput
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
	original := string(raw)

	updated, err := applyPatchOperation(original, in.Search, in.Operation, in.Content)
	if err != nil {
		return errResult("%s", err.Error()), nil
	}

	t.snapshots.Push(in.Path, raw)

	if err := os.WriteFile(in.Path, []byte(updated), 0o644); err != nil {
		return errResult("failed to write %s: %v", in.Path, err), nil
	}

	warnings := toolservice.ValidateSyntax(in.Path, []byte(updated))
	msg := fmt.Sprintf("patched %s", in.Path)
	if len(warnings) > 0 {
		msg += "\n\nwarnings:\n" + strings.Join(warnings, "\n")
	}
	return okResult(msg), nil
}

// applyPatchOperation implements the four fs_patch operations. An empty
// search string anchors the operation at end-of-file, per spec §4.3:
// prepend, append and replace all add content after the last byte. For
// swap, content is not literal replacement text: it is a second search
// string, and the two located spans trade places (original_source's
// PatchOperation::Swap: "search for the second text and swap them").
func applyPatchOperation(original, search, operation, content string) (string, error) {
	if search == "" {
		switch operation {
		case "prepend", "append", "replace":
			return original + content, nil
		case "swap":
			return "", fmt.Errorf("swap requires a non-empty search text")
		default:
			return "", fmt.Errorf("unknown fs_patch operation %q", operation)
		}
	}

	idx := strings.Index(original, search)
	if idx < 0 {
		return "", fmt.Errorf("search text not found: %q", search)
	}
	end := idx + len(search)

	switch operation {
	case "prepend":
		return original[:idx] + content + original[idx:], nil
	case "append":
		return original[:end] + content + original[end:], nil
	case "replace":
		return original[:idx] + content + original[end:], nil
	case "swap":
		return swapSpans(original, idx, end, content)
	default:
		return "", fmt.Errorf("unknown fs_patch operation %q", operation)
	}
}

// swapSpans exchanges original[idx:end] (the located search match) with the
// first occurrence of the second search string content, wherever it falls
// in the file.
func swapSpans(original string, idx, end int, content string) (string, error) {
	cidx := strings.Index(original, content)
	if cidx < 0 {
		return "", fmt.Errorf("swap target text not found: %q", content)
	}
	cend := cidx + len(content)

	if idx < cend && cidx < end {
		return "", fmt.Errorf("swap spans overlap")
	}

	firstStart, firstEnd, firstText := idx, end, original[idx:end]
	secondStart, secondEnd, secondText := cidx, cend, original[cidx:cend]
	if firstStart > secondStart {
		firstStart, secondStart = secondStart, firstStart
		firstEnd, secondEnd = secondEnd, firstEnd
		firstText, secondText = secondText, firstText
	}

	var b strings.Builder
	b.WriteString(original[:firstStart])
	b.WriteString(secondText)
	b.WriteString(original[firstEnd:secondStart])
	b.WriteString(firstText)
	b.WriteString(original[secondEnd:])
	return b.String(), nil
}
