package richtext

import (
	"regexp"
	"strings"
)

// Func produces the replacement for a placeholder from its arguments.
type Func func(args ...string) string

// Lookup maps placeholder names to their values.
type Lookup map[string]Func

// Text is a placeholder value that ignores its arguments.
func Text(s string) Func {
	return func(...string) string { return s }
}

var (
	placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_.]*)\s*(?:\(([^)]*)\))?\s*\}\}`)
	argumentPattern    = regexp.MustCompile(`'((?:[^'\\]|\\.)*)'|"((?:[^"\\]|\\.)*)"`)
)

// Substitute replaces {{key}} and {{key('a', 'b')}} in text. Unknown keys
// become empty strings.
func Substitute(text string, lookup Lookup) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		groups := placeholderPattern.FindStringSubmatch(match)
		fn, ok := lookup[groups[1]]
		if !ok || fn == nil {
			return ""
		}
		return fn(parseArguments(groups[2])...)
	})
}

func parseArguments(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var args []string
	for _, m := range argumentPattern.FindAllStringSubmatch(raw, -1) {
		arg := m[1]
		if arg == "" {
			arg = m[2]
		}
		args = append(args, unescapeArgument(arg))
	}
	return args
}

func unescapeArgument(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	escaped := false
	for _, c := range s {
		if c == '\\' && !escaped {
			escaped = true
			continue
		}
		escaped = false
		sb.WriteRune(c)
	}
	return sb.String()
}

// SubstituteBlocks returns a copy of blocks with placeholders replaced in
// every text leaf and link URL.
func SubstituteBlocks(blocks []Block, lookup Lookup) []Block {
	if blocks == nil {
		return nil
	}
	out := make([]Block, len(blocks))
	for i, b := range blocks {
		c := b
		if b.Text != nil {
			text := Substitute(*b.Text, lookup)
			c.Text = &text
		}
		if b.URL != "" {
			c.URL = Substitute(b.URL, lookup)
		}
		c.Children = SubstituteBlocks(b.Children, lookup)
		out[i] = c
	}
	return out
}
