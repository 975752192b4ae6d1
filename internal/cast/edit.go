package cast

import "fmt"

// Replace returns a new tree with target swapped for replacement. Untouched
// subtrees are shared between the two trees; only nodes on the path from the
// root to the target are copied.
func (t *Tree) Replace(target, replacement *Node) (*Tree, error) {
	newRoot, ok := replaceInNode(t.root, target, replacement)
	if !ok {
		return nil, fmt.Errorf("replace: %w", ErrLocationNotFound)
	}

	return &Tree{root: newRoot}, nil
}

// Rewrite rebuilds the tree in one post-order traversal, offering every
// non-trivia node to fn together with its rebuilt copy (children already
// rewritten). When fn returns a non-nil node it substitutes the original.
// This lets a caller batch many edits, including edits to nested nodes, into
// exactly one structural pass.
func (t *Tree) Rewrite(fn func(orig, rebuilt *Node) *Node) *Tree {
	return &Tree{root: rewriteNode(t.root, fn)}
}

func rewriteNode(node *Node, fn func(orig, rebuilt *Node) *Node) *Node {
	if node.IsTrivia() {
		return node
	}

	rebuilt := node

	if len(node.Children) > 0 {
		dup := node.clone()

		for i, child := range node.Children {
			dup.Children[i] = rewriteNode(child, fn)
		}

		rebuilt = dup
	}

	if replacement := fn(node, rebuilt); replacement != nil {
		return replacement
	}

	return rebuilt
}

func replaceInNode(node, target, replacement *Node) (*Node, bool) {
	for i, child := range node.Children {
		if child == target {
			dup := node.clone()
			dup.Children[i] = replacement

			return dup, true
		}

		if len(child.Children) == 0 {
			continue
		}

		if newChild, ok := replaceInNode(child, target, replacement); ok {
			dup := node.clone()
			dup.Children[i] = newChild

			return dup, true
		}
	}

	return nil, false
}
