package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/vanshchauhan21/forge/internal/toolservice"
)

// FSSearchInput is the JSON shape of fs_search's arguments.
type FSSearchInput struct {
	Path        string `json:"path" jsonschema:"required,description=Absolute directory to search under."`
	Regex       string `json:"regex,omitempty" jsonschema:"description=Optional content regular expression."`
	FilePattern string `json:"file_pattern,omitempty" jsonschema:"description=Optional filename glob, e.g. *.go."`
}

type searchMatch struct {
	Path string `json:"path"`
	Line int    `json:"line,omitempty"`
	Text string `json:"text,omitempty"`
}

// FSSearch implements the fs_search tool (spec §4.3): filters files by a
// name glob and, when a regex is supplied, greps their content line by
// line. Binary files are skipped the same way fs_read rejects them.
type FSSearch struct{}

// NewFSSearch returns the fs_search tool.
func NewFSSearch() *FSSearch { return &FSSearch{} }

func (t *FSSearch) Name() string        { return "fs_search" }
func (t *FSSearch) Description() string { return "Search files by name glob and optional content regex." }
func (t *FSSearch) Schema() json.RawMessage { return mustSchema(FSSearchInput{}) }

func (t *FSSearch) Execute(ctx context.Context, params json.RawMessage) (*toolservice.Result, error) {
	var in FSSearchInput
	if err := json.Unmarshal(params, &in); err != nil {
		return errResult("invalid parameters: %v", err), nil
	}
	if err := requireAbsolute(in.Path); err != nil {
		return errResult("%s", err.Error()), nil
	}

	var re *regexp.Regexp
	if in.Regex != "" {
		compiled, err := regexp.Compile(in.Regex)
		if err != nil {
			return errResult("invalid regex %q: %v", in.Regex, err), nil
		}
		re = compiled
	}

	var candidates []string
	err := walkDepth(in.Path, -1, func(path string) {
		if in.FilePattern != "" {
			ok, err := filepath.Match(in.FilePattern, filepath.Base(path))
			if err != nil || !ok {
				return
			}
		}
		candidates = append(candidates, path)
	})
	if err != nil {
		return errResult("failed to search %s: %v", in.Path, err), nil
	}
	sort.Strings(candidates)

	var matches []searchMatch
	for _, path := range candidates {
		if re == nil {
			matches = append(matches, searchMatch{Path: path})
			continue
		}
		found, err := grepFile(path, re)
		if err != nil {
			continue // unreadable/binary files are silently skipped
		}
		matches = append(matches, found...)
	}

	out, err := json.MarshalIndent(matches, "", "  ")
	if err != nil {
		return errResult("failed to encode matches: %v", err), nil
	}
	return okResult(string(out)), nil
}

func grepFile(path string, re *regexp.Regexp) ([]searchMatch, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if looksBinary(raw) {
		return nil, fmt.Errorf("binary file")
	}

	var matches []searchMatch
	scanner := bufio.NewScanner(strings.NewReader(string(raw)))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if re.MatchString(text) {
			matches = append(matches, searchMatch{Path: path, Line: line, Text: text})
		}
	}
	return matches, nil
}
