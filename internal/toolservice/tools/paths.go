// Package tools implements the filesystem, shell, fetch, and control-flow
// tools required by spec §4.3, dispatched through toolservice.Registry.
package tools

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/vanshchauhan21/forge/internal/toolservice"
)

// errAbsolutePath is the exact message every filesystem tool returns for a
// relative path, per spec §4.3/§8 property 6.
const errAbsolutePath = "Path must be absolute"

func requireAbsolute(path string) error {
	if !filepath.IsAbs(path) {
		return fmt.Errorf(errAbsolutePath)
	}
	return nil
}

func errResult(format string, args ...any) *toolservice.Result {
	return &toolservice.Result{Content: fmt.Sprintf(format, args...), IsError: true}
}

func okResult(content string) *toolservice.Result {
	return &toolservice.Result{Content: content}
}

func mustSchema(input any) json.RawMessage {
	schema, err := toolservice.DeriveSchema(input)
	if err != nil {
		// DeriveSchema only fails on a reflection bug in a tool's own input
		// struct; that is a programming error caught at construction time,
		// not a runtime condition to recover from.
		panic(err)
	}
	return schema
}
