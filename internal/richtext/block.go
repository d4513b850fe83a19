// Package richtext renders structured rich-text blocks to HTML and Markdown.
package richtext

import (
	"bytes"
	"encoding/json"
)

const (
	TypeHeading   = "heading"
	TypeParagraph = "paragraph"
	TypeList      = "list"
	TypeListItem  = "list-item"
	TypeLink      = "link"
	TypeText      = "text"

	FormatOrdered   = "ordered"
	FormatUnordered = "unordered"
)

// Block is one node of a rich-text document. A block with Text set is a leaf
// and carries formatting flags; every other block carries children.
type Block struct {
	Type          string  `json:"type,omitempty"`
	Level         int     `json:"level,omitempty"`
	Format        string  `json:"format,omitempty"`
	IndentLevel   int     `json:"indentLevel,omitempty"`
	URL           string  `json:"url,omitempty"`
	Children      []Block `json:"children,omitempty"`
	Text          *string `json:"text,omitempty"`
	Bold          bool    `json:"bold,omitempty"`
	Italic        bool    `json:"italic,omitempty"`
	Underline     bool    `json:"underline,omitempty"`
	Strikethrough bool    `json:"strikethrough,omitempty"`
	Code          bool    `json:"code,omitempty"`
}

func (b Block) IsLeaf() bool { return b.Text != nil }

// UnmarshalJSON tolerates children that are not a list by dropping them.
func (b *Block) UnmarshalJSON(data []byte) error {
	type plain Block
	var raw struct {
		plain
		Children json.RawMessage `json:"children"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*b = Block(raw.plain)
	b.Children = nil
	if isArray(raw.Children) {
		var children []Block
		if err := json.Unmarshal(raw.Children, &children); err != nil {
			return err
		}
		b.Children = children
	}
	return nil
}

// Blocks is a rich-text document. Anything other than a JSON array decodes to
// an empty document.
type Blocks []Block

func (bs *Blocks) UnmarshalJSON(data []byte) error {
	if !isArray(data) {
		*bs = nil
		return nil
	}
	var blocks []Block
	if err := json.Unmarshal(data, &blocks); err != nil {
		return err
	}
	*bs = blocks
	return nil
}

func isArray(data []byte) bool {
	data = bytes.TrimSpace(data)
	return len(data) > 0 && data[0] == '['
}

// Txt builds a plain text leaf.
func Txt(s string) Block {
	return Block{Type: TypeText, Text: &s}
}

func Paragraph(children ...Block) Block {
	return Block{Type: TypeParagraph, Children: children}
}

func Heading(level int, children ...Block) Block {
	return Block{Type: TypeHeading, Level: level, Children: children}
}

func List(format string, indent int, children ...Block) Block {
	return Block{Type: TypeList, Format: format, IndentLevel: indent, Children: children}
}

func ListItem(children ...Block) Block {
	return Block{Type: TypeListItem, Children: children}
}

func Link(url string, children ...Block) Block {
	return Block{Type: TypeLink, URL: url, Children: children}
}
