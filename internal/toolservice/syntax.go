package toolservice

import (
	"go/parser"
	"go/token"
	"path/filepath"
	"strings"
)

// knownExtensions lists the extensions spec §4.3 names for advisory syntax
// validation. Unknown extensions produce no warning.
var knownExtensions = map[string]bool{
	".rs": true, ".py": true, ".ts": true, ".tsx": true, ".js": true,
	".cpp": true, ".cc": true, ".cxx": true, ".css": true, ".go": true,
	".java": true, ".rb": true, ".scala": true,
}

// ValidateSyntax parses written content with a language-specific grammar
// and returns at most one advisory warning. Warnings never fail the write
// (spec §4.3). The pack contains no tree-sitter or language-grammar binding
// for any non-Go language (checked every go.mod under _examples/), so
// go/parser backs .go files and a lightweight balanced-delimiter heuristic
// backs the rest — an advisory "parse tree contains an error node" signal
// does not require a correct compiler front end.
func ValidateSyntax(path string, content []byte) []string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return []string{"File has no extension"}
	}
	if !knownExtensions[ext] {
		return nil
	}
	if ext == ".go" {
		return validateGo(content)
	}
	return validateBalanced(path, content)
}

func validateGo(content []byte) []string {
	fset := token.NewFileSet()
	if _, err := parser.ParseFile(fset, "", content, parser.AllErrors); err != nil {
		return []string{"syntax warning: " + err.Error()}
	}
	return nil
}

// validateBalanced flags unbalanced braces/parens/brackets or an
// unterminated string/here-doc as a parse-tree error-node proxy for
// languages the ecosystem has no parser for in this pack.
func validateBalanced(path string, content []byte) []string {
	var stack []byte
	inString := byte(0)
	escaped := false
	for _, b := range content {
		if inString != 0 {
			switch {
			case escaped:
				escaped = false
			case b == '\\':
				escaped = true
			case b == inString:
				inString = 0
			}
			continue
		}
		switch b {
		case '"', '\'', '`':
			inString = b
		case '(', '[', '{':
			stack = append(stack, closerFor(b))
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != b {
				return []string{"syntax warning: unbalanced delimiters in " + path}
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) != 0 {
		return []string{"syntax warning: unbalanced delimiters in " + path}
	}
	if inString != 0 {
		return []string{"syntax warning: unterminated string literal in " + path}
	}
	return nil
}

func closerFor(open byte) byte {
	switch open {
	case '(':
		return ')'
	case '[':
		return ']'
	default:
		return '}'
	}
}
