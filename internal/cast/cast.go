// Package cast implements the coordinate-addressed syntax tree: a
// formatting-preserving parse of Lisp-style source with a bidirectional
// node/coordinate mapping used to locate and edit sub-expressions without
// disturbing unrelated text.
package cast

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
)

// Kind is the closed variant of node kinds. Operators match nodes via
// predicates over Kind and payload, never ad hoc type tests.
type Kind uint8

const (
	// KindToken is an atom: symbol, number, keyword, string or char literal.
	KindToken Kind = iota
	// KindSeq is an ordered collection: "(...)" or "[...]".
	KindSeq
	// KindMap is an unordered collection: "{...}" or "#{...}".
	KindMap
	// KindQuote is a reader prefix wrapping the following form: quote,
	// syntax-quote, unquote, unquote-splicing, var-quote, deref, discard.
	KindQuote
	// KindTrivia is whitespace or a comment, kept only for round-tripping.
	KindTrivia
)

// String returns a short name for the kind.
func (k Kind) String() string {
	switch k {
	case KindToken:
		return "token"
	case KindSeq:
		return "seq"
	case KindMap:
		return "map"
	case KindQuote:
		return "quote"
	case KindTrivia:
		return "trivia"
	}

	return "unknown"
}

// ErrLocationNotFound is returned when a coordinate no longer resolves
// against the current tree snapshot.
var ErrLocationNotFound = errors.New("location not found")

// ErrLocationAmbiguous marks a digest collision inside an unordered
// collection. Decoding still resolves deterministically to the first match;
// the collision is surfaced for logging only.
var ErrLocationAmbiguous = errors.New("location ambiguous")

// Node is one node of the tree. Token and trivia nodes carry their exact
// source bytes in Text; collections carry their delimiters and children;
// quote nodes carry the prefix text and wrap their children.
type Node struct {
	Kind     Kind
	Text     string
	Open     string
	Close    string
	Children []*Node

	line int
}

// StartLine returns the 1-based line the node's first byte starts on.
func (n *Node) StartLine() int {
	return n.line
}

// IsTrivia reports whether the node is whitespace or a comment.
func (n *Node) IsTrivia() bool {
	return n.Kind == KindTrivia
}

// IsStringLiteral reports whether the node is a string literal token.
func (n *Node) IsStringLiteral() bool {
	return n.Kind == KindToken && (strings.HasPrefix(n.Text, `"`) || strings.HasPrefix(n.Text, `#"`))
}

// Significant returns the node's children with trivia filtered out.
func (n *Node) Significant() []*Node {
	out := make([]*Node, 0, len(n.Children))

	for _, child := range n.Children {
		if !child.IsTrivia() {
			out = append(out, child)
		}
	}

	return out
}

// Head returns the first significant child of a seq, or nil. For a call form
// this is the operator position.
func (n *Node) Head() *Node {
	if n.Kind != KindSeq {
		return nil
	}

	sig := n.Significant()
	if len(sig) == 0 {
		return nil
	}

	return sig[0]
}

// Render writes the node's exact source text.
func (n *Node) Render() string {
	var b strings.Builder

	n.render(&b)

	return b.String()
}

func (n *Node) render(b *strings.Builder) {
	switch n.Kind {
	case KindToken, KindTrivia:
		b.WriteString(n.Text)
	case KindQuote:
		b.WriteString(n.Text)

		for _, child := range n.Children {
			child.render(b)
		}
	case KindSeq, KindMap:
		b.WriteString(n.Open)

		for _, child := range n.Children {
			child.render(b)
		}

		b.WriteString(n.Close)
	}
}

// CanonicalText returns the node's text with trivia collapsed, used for
// digest segments so that reformatting a sibling does not move a key.
func (n *Node) CanonicalText() string {
	var b strings.Builder

	n.canonical(&b)

	return b.String()
}

func (n *Node) canonical(b *strings.Builder) {
	switch n.Kind {
	case KindToken:
		b.WriteString(n.Text)
	case KindTrivia:
		// Dropped entirely; separators are re-inserted between siblings.
	case KindQuote:
		b.WriteString(n.Text)

		for _, child := range n.Children {
			child.canonical(b)
		}
	case KindSeq, KindMap:
		b.WriteString(n.Open)

		for i, child := range n.Significant() {
			if i > 0 {
				b.WriteByte(' ')
			}

			child.canonical(b)
		}

		b.WriteString(n.Close)
	}
}

// digestLen is the number of hex characters kept from the canonical-text hash.
const digestLen = 8

// DigestOf returns the digest segment value for a node.
func DigestOf(n *Node) string {
	sum := sha256.Sum256([]byte(n.CanonicalText()))

	return fmt.Sprintf("%x", sum)[:digestLen]
}

// clone returns a shallow copy of the node with a copied child slice. Used by
// Replace to rebuild only the edited path.
func (n *Node) clone() *Node {
	dup := *n
	dup.Children = make([]*Node, len(n.Children))
	copy(dup.Children, n.Children)

	return &dup
}
