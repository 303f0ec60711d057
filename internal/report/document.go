package report

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// BlockKind classifies a document block.
type BlockKind int

const (
	Paragraph BlockKind = iota
	Heading
	Bullets
)

// Span is a run of inline text with uniform style.
type Span struct {
	Text     string
	Strong   bool
	Emphasis bool
}

// Inline is a sequence of styled spans.
type Inline []Span

// String returns the plain text.
func (l Inline) String() string {
	var b strings.Builder
	for _, s := range l {
		b.WriteString(s.Text)
	}
	return b.String()
}

// Markdown renders the spans back to Markdown emphasis markers.
func (l Inline) Markdown() string {
	var b strings.Builder
	for _, s := range l {
		t := s.Text
		if strings.TrimSpace(t) == "" {
			b.WriteString(t)
			continue
		}
		lead := t[:len(t)-len(strings.TrimLeft(t, " "))]
		trail := t[len(strings.TrimRight(t, " ")):]
		t = strings.TrimSpace(t)
		if s.Emphasis {
			t = "_" + t + "_"
		}
		if s.Strong {
			t = "**" + t + "**"
		}
		b.WriteString(lead + t + trail)
	}
	return b.String()
}

// Block is one heading, bulleted list or paragraph.
type Block struct {
	Kind BlockKind
	// Level is the heading level, or the nesting depth of a list.
	Level  int
	Inline Inline
	Items  []Inline
}

// Document is narrative text reduced to the blocks emitters can lay out.
type Document struct {
	Blocks []Block
}

// Parse reads Markdown text. Code blocks and quotes become paragraphs;
// nested lists are flattened into their parent's items one level deeper.
func Parse(src string) Document {
	source := []byte(src)
	root := goldmark.New().Parser().Parse(text.NewReader(source))

	var doc Document
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		doc.Blocks = appendBlocks(doc.Blocks, n, source, 1)
	}
	return doc
}

func appendBlocks(blocks []Block, n ast.Node, src []byte, depth int) []Block {
	switch node := n.(type) {
	case *ast.Heading:
		return append(blocks, Block{Kind: Heading, Level: node.Level, Inline: inline(node, src)})
	case *ast.List:
		return appendList(blocks, node, src, depth)
	case *ast.Paragraph, *ast.TextBlock:
		if in := inline(node, src); len(in) > 0 {
			return append(blocks, Block{Kind: Paragraph, Inline: in})
		}
	case *ast.Blockquote:
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			blocks = appendBlocks(blocks, c, src, depth)
		}
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		if body := strings.TrimRight(rawLines(node, src), "\n"); body != "" {
			return append(blocks, Block{Kind: Paragraph, Inline: Inline{{Text: body}}})
		}
	}
	return blocks
}

func appendList(blocks []Block, list *ast.List, src []byte, depth int) []Block {
	cur := Block{Kind: Bullets, Level: depth}
	var nested []Block
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		var parts Inline
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			if sub, ok := c.(*ast.List); ok {
				nested = appendList(nested, sub, src, depth+1)
				continue
			}
			if len(parts) > 0 {
				parts = append(parts, Span{Text: " "})
			}
			parts = append(parts, inline(c, src)...)
		}
		if len(parts) > 0 {
			cur.Items = append(cur.Items, parts)
		}
		if len(nested) > 0 {
			if len(cur.Items) > 0 {
				blocks = append(blocks, cur)
			}
			blocks = append(blocks, nested...)
			cur, nested = Block{Kind: Bullets, Level: depth}, nil
		}
	}
	if len(cur.Items) > 0 {
		blocks = append(blocks, cur)
	}
	return blocks
}

// inline flattens n's inline children into spans, merging neighbours that
// share a style.
func inline(n ast.Node, src []byte) Inline {
	var out Inline
	strong, em := 0, 0
	add := func(s string) {
		if s == "" {
			return
		}
		span := Span{Text: s, Strong: strong > 0, Emphasis: em > 0}
		if last := len(out) - 1; last >= 0 && out[last].Strong == span.Strong && out[last].Emphasis == span.Emphasis {
			out[last].Text += s
			return
		}
		out = append(out, span)
	}

	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		switch t := c.(type) {
		case *ast.Emphasis:
			d := 1
			if !entering {
				d = -1
			}
			if t.Level >= 2 {
				strong += d
			} else {
				em += d
			}
		case *ast.Text:
			if !entering {
				break
			}
			add(string(t.Segment.Value(src)))
			switch {
			case t.HardLineBreak():
				add("\n")
			case t.SoftLineBreak():
				add(" ")
			}
		case *ast.String:
			if entering {
				add(string(t.Value))
			}
		case *ast.AutoLink:
			if entering {
				add(string(t.URL(src)))
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	if len(out) > 0 {
		out[0].Text = strings.TrimLeft(out[0].Text, " ")
		out[len(out)-1].Text = strings.TrimRight(out[len(out)-1].Text, " \n")
		if out[len(out)-1].Text == "" {
			out = out[:len(out)-1]
		}
	}
	return out
}

func rawLines(n ast.Node, src []byte) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}
	return b.String()
}

// Section is a top-level heading and the blocks under it.
type Section struct {
	Title  string
	Blocks []Block
}

// Outline splits the document into a title and sections.
//
// The shallowest heading is the title when it appears exactly once and
// opens the document; sections then split at the next heading level.
// Blocks before the first section heading form an untitled section.
func (d Document) Outline() (title string, sections []Section) {
	blocks := d.Blocks
	levels := map[int]int{}
	minLevel := 0
	for _, b := range blocks {
		if b.Kind != Heading {
			continue
		}
		levels[b.Level]++
		if minLevel == 0 || b.Level < minLevel {
			minLevel = b.Level
		}
	}
	if minLevel == 0 {
		if len(blocks) == 0 {
			return "", nil
		}
		return "", []Section{{Blocks: blocks}}
	}

	split := minLevel
	if levels[minLevel] == 1 && blocks[0].Kind == Heading && blocks[0].Level == minLevel {
		title = blocks[0].Inline.String()
		blocks = blocks[1:]
		split = 0
		for lvl := range levels {
			if lvl > minLevel && (split == 0 || lvl < split) {
				split = lvl
			}
		}
	}

	for _, b := range blocks {
		if b.Kind == Heading && b.Level == split {
			sections = append(sections, Section{Title: b.Inline.String()})
			continue
		}
		if len(sections) == 0 {
			sections = append(sections, Section{})
		}
		last := &sections[len(sections)-1]
		last.Blocks = append(last.Blocks, b)
	}
	return title, sections
}
