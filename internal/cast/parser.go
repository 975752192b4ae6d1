package cast

import (
	"fmt"
	"strings"
)

// Tree is an immutable parse of one source text. Every byte of the input is
// held by some node, so Render returns the input unchanged.
type Tree struct {
	root *Node
}

// Root returns the synthetic top-level node holding all forms and trivia.
func (t *Tree) Root() *Node {
	return t.root
}

// Forms returns the significant top-level nodes in source order.
func (t *Tree) Forms() []*Node {
	return t.root.Significant()
}

// Render reassembles the exact source text.
func (t *Tree) Render() string {
	var b strings.Builder

	for _, child := range t.root.Children {
		child.render(&b)
	}

	return b.String()
}

// Parse builds a tree from source text. Parse is total over well-delimited
// input; unbalanced delimiters and unterminated strings are errors.
func Parse(text string) (*Tree, error) {
	p := &parser{src: text, line: 1}

	children, err := p.parseUntil("")
	if err != nil {
		return nil, err
	}

	if p.pos < len(p.src) {
		return nil, fmt.Errorf("line %d: unexpected %q", p.line, p.src[p.pos])
	}

	return &Tree{root: &Node{Kind: KindSeq, Children: children, line: 1}}, nil
}

// ParseFragment parses text that must contain exactly one significant form,
// e.g. an operator's replacement output.
func ParseFragment(text string) (*Node, error) {
	tree, err := Parse(text)
	if err != nil {
		return nil, err
	}

	forms := tree.Forms()
	if len(forms) != 1 {
		return nil, fmt.Errorf("fragment must contain exactly one form, got %d", len(forms))
	}

	return forms[0], nil
}

type parser struct {
	src  string
	pos  int
	line int
}

// quotePrefixes are the reader prefixes treated as quote nodes, longest first
// so "~@" wins over "~".
var quotePrefixes = []string{"~@", "#'", "#_", "'", "`", "~", "@"}

// parseUntil consumes nodes until the given closing delimiter (or EOF when
// want is empty). The delimiter itself is consumed by the caller's frame.
func (p *parser) parseUntil(want string) ([]*Node, error) {
	var nodes []*Node

	for p.pos < len(p.src) {
		c := p.src[p.pos]

		switch {
		case c == ')' || c == ']' || c == '}':
			if want == "" {
				return nil, fmt.Errorf("line %d: unmatched %q", p.line, c)
			}

			if string(c) != want {
				return nil, fmt.Errorf("line %d: expected %q, found %q", p.line, want, c)
			}

			return nodes, nil
		case isSpace(c):
			nodes = append(nodes, p.readTrivia())
		case c == ';':
			nodes = append(nodes, p.readComment())
		default:
			node, err := p.parseForm()
			if err != nil {
				return nil, err
			}

			nodes = append(nodes, node)
		}
	}

	if want != "" {
		return nil, fmt.Errorf("line %d: missing closing %q", p.line, want)
	}

	return nodes, nil
}

func (p *parser) parseForm() (*Node, error) {
	startLine := p.line

	for _, prefix := range quotePrefixes {
		if strings.HasPrefix(p.src[p.pos:], prefix) {
			p.pos += len(prefix)

			var inner []*Node

			// Trivia may sit between the prefix and its form.
			for p.pos < len(p.src) && (isSpace(p.src[p.pos]) || p.src[p.pos] == ';') {
				if p.src[p.pos] == ';' {
					inner = append(inner, p.readComment())
				} else {
					inner = append(inner, p.readTrivia())
				}
			}

			child, err := p.parseForm()
			if err != nil {
				return nil, err
			}

			inner = append(inner, child)

			return &Node{Kind: KindQuote, Text: prefix, Children: inner, line: startLine}, nil
		}
	}

	switch {
	case strings.HasPrefix(p.src[p.pos:], "#{"):
		p.pos += 2

		return p.parseCollection(KindMap, "#{", "}", startLine)
	case strings.HasPrefix(p.src[p.pos:], `#"`):
		return p.readString(1)
	case p.src[p.pos] == '(':
		p.pos++

		return p.parseCollection(KindSeq, "(", ")", startLine)
	case p.src[p.pos] == '[':
		p.pos++

		return p.parseCollection(KindSeq, "[", "]", startLine)
	case p.src[p.pos] == '{':
		p.pos++

		return p.parseCollection(KindMap, "{", "}", startLine)
	case p.src[p.pos] == '"':
		return p.readString(0)
	case p.src[p.pos] == '\\':
		return p.readChar()
	default:
		return p.readAtom()
	}
}

func (p *parser) parseCollection(kind Kind, open, closing string, startLine int) (*Node, error) {
	children, err := p.parseUntil(closing)
	if err != nil {
		return nil, err
	}

	p.pos += len(closing)

	return &Node{Kind: kind, Open: open, Close: closing, Children: children, line: startLine}, nil
}

func (p *parser) readTrivia() *Node {
	start, startLine := p.pos, p.line

	for p.pos < len(p.src) && isSpace(p.src[p.pos]) {
		if p.src[p.pos] == '\n' {
			p.line++
		}

		p.pos++
	}

	return &Node{Kind: KindTrivia, Text: p.src[start:p.pos], line: startLine}
}

func (p *parser) readComment() *Node {
	start, startLine := p.pos, p.line

	for p.pos < len(p.src) && p.src[p.pos] != '\n' {
		p.pos++
	}

	return &Node{Kind: KindTrivia, Text: p.src[start:p.pos], line: startLine}
}

// readString consumes a string literal; skip is the length of a leading
// reader prefix ("#" for regex literals).
func (p *parser) readString(skip int) (*Node, error) {
	start, startLine := p.pos, p.line
	p.pos += skip + 1 // prefix and opening quote

	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case '\\':
			p.pos += 2

			continue
		case '"':
			p.pos++

			return &Node{Kind: KindToken, Text: p.src[start:p.pos], line: startLine}, nil
		case '\n':
			p.line++
		}

		p.pos++
	}

	return nil, fmt.Errorf("line %d: unterminated string", startLine)
}

func (p *parser) readChar() (*Node, error) {
	start, startLine := p.pos, p.line
	p.pos++ // backslash

	if p.pos >= len(p.src) {
		return nil, fmt.Errorf("line %d: dangling character literal", startLine)
	}

	// First rune after the backslash is always part of the literal, even if
	// it is a delimiter (e.g. \( or \space).
	p.pos++

	for p.pos < len(p.src) && isAtomChar(p.src[p.pos]) {
		p.pos++
	}

	return &Node{Kind: KindToken, Text: p.src[start:p.pos], line: startLine}, nil
}

func (p *parser) readAtom() (*Node, error) {
	start, startLine := p.pos, p.line

	for p.pos < len(p.src) && isAtomChar(p.src[p.pos]) {
		p.pos++
	}

	if p.pos == start {
		return nil, fmt.Errorf("line %d: unexpected %q", p.line, p.src[p.pos])
	}

	return &Node{Kind: KindToken, Text: p.src[start:p.pos], line: startLine}, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == ','
}

func isAtomChar(c byte) bool {
	if isSpace(c) {
		return false
	}

	switch c {
	case '(', ')', '[', ']', '{', '}', '"', ';', '\'', '`', '~', '@', '\\':
		return false
	}

	return true
}
