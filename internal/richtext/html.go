package richtext

import (
	"fmt"
	"html"
	"strings"

	"github.com/Domenick1991/nikolaus/internal/tree"
)

const extendKey = "extend"

// DefaultClasses returns the class names used when no configuration is given.
func DefaultClasses() *tree.Node {
	return tree.Object(
		tree.F("heading1", tree.String("text-4xl font-bold mb-4")),
		tree.F("heading2", tree.String("text-3xl font-bold mb-3")),
		tree.F("heading3", tree.String("text-2xl font-bold mb-2")),
		tree.F("heading4", tree.String("text-xl font-bold mb-2")),
		tree.F("heading5", tree.String("text-lg font-bold mb-1")),
		tree.F("heading6", tree.String("text-base font-bold mb-1")),
		tree.F("paragraph", tree.String("mb-4")),
		tree.F("list", tree.Object(
			tree.F("ordered", tree.Strings("list-decimal ml-6 mb-4", "list-[lower-alpha] ml-6", "list-[lower-roman] ml-6")),
			tree.F("unordered", tree.Strings("list-disc ml-6 mb-4", "list-[circle] ml-6", "list-[square] ml-6")),
		)),
		tree.F("listItem", tree.String("")),
		tree.F("link", tree.String("text-blue-600 underline")),
		tree.F("code", tree.String("font-mono bg-gray-100 px-1 rounded")),
		tree.F("bold", tree.String("font-bold")),
		tree.F("italic", tree.String("italic")),
		tree.F("underline", tree.String("underline")),
		tree.F("strikethrough", tree.String("line-through")),
	)
}

type classSet struct {
	headings      [7]string
	paragraph     string
	ordered       []string
	unordered     []string
	listItem      string
	link          string
	code          string
	bold          string
	italic        string
	underline     string
	strikethrough string
}

type HTMLRenderer struct {
	classes classSet
}

// NewHTMLRenderer builds a renderer from an optional class configuration.
// Top-level keys replace defaults; keys under "extend" are appended to them.
func NewHTMLRenderer(config *tree.Node) (*HTMLRenderer, error) {
	classes := DefaultClasses()
	if config != nil {
		tree.Update(classes, config, false)
		if ext, ok := config.Get(extendKey); ok && ext.Kind() == tree.KindObject {
			if err := tree.Extend(classes, ext); err != nil {
				return nil, fmt.Errorf("extend html classes: %w", err)
			}
		}
	}
	return &HTMLRenderer{classes: resolveClasses(classes)}, nil
}

func resolveClasses(n *tree.Node) classSet {
	str := func(node *tree.Node, key string) string {
		v, _ := node.Get(key)
		return v.Str()
	}
	strs := func(node *tree.Node, key string) []string {
		v, _ := node.Get(key)
		out := make([]string, 0, v.Len())
		for _, item := range v.Items() {
			out = append(out, item.Str())
		}
		return out
	}

	var cs classSet
	for level := 1; level <= 6; level++ {
		cs.headings[level] = str(n, fmt.Sprintf("heading%d", level))
	}
	list, _ := n.Get("list")
	cs.paragraph = str(n, "paragraph")
	cs.ordered = strs(list, "ordered")
	cs.unordered = strs(list, "unordered")
	cs.listItem = str(n, "listItem")
	cs.link = str(n, "link")
	cs.code = str(n, "code")
	cs.bold = str(n, "bold")
	cs.italic = str(n, "italic")
	cs.underline = str(n, "underline")
	cs.strikethrough = str(n, "strikethrough")
	return cs
}

func (r *HTMLRenderer) Render(blocks []Block) string {
	var sb strings.Builder
	for _, b := range blocks {
		r.renderBlock(&sb, b)
	}
	return sb.String()
}

func (r *HTMLRenderer) renderBlock(sb *strings.Builder, b Block) {
	if b.IsLeaf() {
		sb.WriteString(r.renderLeaf(b))
		return
	}

	switch b.Type {
	case TypeHeading:
		level := min(max(b.Level, 1), 6)
		fmt.Fprintf(sb, "<h%d%s>", level, classAttr(r.classes.headings[level]))
		r.renderChildren(sb, b.Children)
		fmt.Fprintf(sb, "</h%d>", level)
	case TypeParagraph:
		sb.WriteString("<p" + classAttr(r.classes.paragraph) + ">")
		r.renderChildren(sb, b.Children)
		sb.WriteString("</p>")
	case TypeList:
		tag, levels := "ul", r.classes.unordered
		if b.Format == FormatOrdered {
			tag, levels = "ol", r.classes.ordered
		}
		cls := ""
		if len(levels) > 0 {
			cls = levels[max(b.IndentLevel, 0)%len(levels)]
		}
		sb.WriteString("<" + tag + classAttr(cls) + ">")
		r.renderChildren(sb, b.Children)
		sb.WriteString("</" + tag + ">")
	case TypeListItem:
		sb.WriteString("<li" + classAttr(r.classes.listItem) + ">")
		r.renderChildren(sb, b.Children)
		sb.WriteString("</li>")
	case TypeLink:
		sb.WriteString(`<a href="` + html.EscapeString(b.URL) + `"` + classAttr(r.classes.link) + ">")
		r.renderChildren(sb, b.Children)
		sb.WriteString("</a>")
	default:
		r.renderChildren(sb, b.Children)
	}
}

func (r *HTMLRenderer) renderChildren(sb *strings.Builder, children []Block) {
	for _, child := range children {
		r.renderBlock(sb, child)
	}
}

func (r *HTMLRenderer) renderLeaf(b Block) string {
	out := html.EscapeString(*b.Text)
	if b.Code {
		out = "<code" + classAttr(r.classes.code) + ">" + out + "</code>"
	}
	if b.Bold {
		out = "<strong" + classAttr(r.classes.bold) + ">" + out + "</strong>"
	}
	if b.Italic {
		out = "<em" + classAttr(r.classes.italic) + ">" + out + "</em>"
	}
	if b.Underline {
		out = "<u" + classAttr(r.classes.underline) + ">" + out + "</u>"
	}
	if b.Strikethrough {
		out = "<s" + classAttr(r.classes.strikethrough) + ">" + out + "</s>"
	}
	return out
}

func classAttr(cls string) string {
	if cls == "" {
		return ""
	}
	return ` class="` + html.EscapeString(cls) + `"`
}
