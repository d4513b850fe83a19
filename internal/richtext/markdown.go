package richtext

import (
	"fmt"
	"strings"
)

type EscapeMode int

const (
	// EscapeStrict escapes every Markdown metacharacter.
	EscapeStrict EscapeMode = iota
	// EscapeLacy only escapes backticks.
	EscapeLacy
)

const (
	crlf        = "\r\n"
	indentUnit  = "    "
	strictChars = "\\`*_{}[]<>()#+-.!|"
)

var bullets = [...]string{"- ", "* ", "+ "}

type MarkdownRenderer struct {
	escape EscapeMode
}

func NewMarkdownRenderer(mode EscapeMode) *MarkdownRenderer {
	return &MarkdownRenderer{escape: mode}
}

// Render emits every top-level block framed by CRLF line breaks.
func (r *MarkdownRenderer) Render(blocks []Block) string {
	var sb strings.Builder
	for _, b := range blocks {
		sb.WriteString(r.renderBlock(b))
	}
	return sb.String()
}

func (r *MarkdownRenderer) renderBlock(b Block) string {
	if b.IsLeaf() {
		return r.renderLeaf(b)
	}

	switch b.Type {
	case TypeHeading:
		level := min(max(b.Level, 1), 6)
		return crlf + strings.Repeat("#", level) + " " + r.renderChildren(b.Children) + crlf
	case TypeParagraph:
		return crlf + r.renderChildren(b.Children) + crlf
	case TypeList:
		return crlf + r.renderList(b)
	case TypeLink:
		return "[" + r.renderChildren(b.Children) + "](" + b.URL + ")"
	default:
		return r.renderChildren(b.Children)
	}
}

// renderList emits one line per item. Nested lists are emitted inline with
// their own indentation and no surrounding blank lines.
func (r *MarkdownRenderer) renderList(list Block) string {
	var sb strings.Builder
	n := 0
	for _, child := range list.Children {
		switch {
		case !child.IsLeaf() && child.Type == TypeList:
			sb.WriteString(r.renderList(child))
		case !child.IsLeaf() && child.Type == TypeListItem:
			n++
			sb.WriteString(strings.Repeat(indentUnit, max(list.IndentLevel, 0)))
			sb.WriteString(marker(list, n))
			sb.WriteString(r.renderChildren(child.Children))
			sb.WriteString(crlf)
		default:
			sb.WriteString(r.renderBlock(child))
		}
	}
	return sb.String()
}

func marker(list Block, n int) string {
	if list.Format == FormatOrdered {
		return fmt.Sprintf("%d. ", n)
	}
	return bullets[max(list.IndentLevel, 0)%len(bullets)]
}

func (r *MarkdownRenderer) renderChildren(children []Block) string {
	var sb strings.Builder
	for _, child := range children {
		sb.WriteString(r.renderBlock(child))
	}
	return sb.String()
}

func (r *MarkdownRenderer) renderLeaf(b Block) string {
	var out string
	if b.Code {
		out = codeSpan(*b.Text)
	} else {
		out = r.escapeText(*b.Text)
	}
	if b.Bold {
		out = "**" + out + "**"
	}
	if b.Italic {
		out = "*" + out + "*"
	}
	if b.Underline {
		out = "<u>" + out + "</u>"
	}
	if b.Strikethrough {
		out = "<s>" + out + "</s>"
	}
	return out
}

func (r *MarkdownRenderer) escapeText(s string) string {
	if r.escape == EscapeLacy {
		return strings.ReplaceAll(s, "`", "\\`")
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for _, c := range s {
		if strings.ContainsRune(strictChars, c) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(c)
	}
	return sb.String()
}

// codeSpan keeps the text verbatim; backslash escapes do not apply inside code.
func codeSpan(s string) string {
	if strings.Contains(s, "`") {
		return "`` " + s + " ``"
	}
	return "`" + s + "`"
}
