package cast

import (
	"fmt"
	"log/slog"

	"spore.dev/pkg/spore/internal/model"
)

// Decode resolves a coordinate against a form root and returns the addressed
// node. It fails with ErrLocationNotFound when the path no longer resolves on
// this snapshot. Digest collisions inside unordered collections resolve
// deterministically to the first match in source order and are logged.
func Decode(form *Node, coord model.Coordinate) (*Node, error) {
	node := form

	for depth, seg := range coord {
		child, err := step(node, seg)
		if err != nil {
			return nil, fmt.Errorf("segment %d of %q: %w", depth, coord, err)
		}

		node = child
	}

	return node, nil
}

func step(node *Node, seg model.Segment) (*Node, error) {
	switch node.Kind {
	case KindSeq, KindQuote:
		if seg.Kind != model.SegmentOrdinal {
			return nil, fmt.Errorf("ordinal segment required for %s node: %w", node.Kind, ErrLocationNotFound)
		}

		sig := node.Significant()
		if seg.Index >= len(sig) {
			return nil, fmt.Errorf("ordinal %d out of range (%d children): %w", seg.Index, len(sig), ErrLocationNotFound)
		}

		return sig[seg.Index], nil
	case KindMap:
		if seg.Kind != model.SegmentDigest {
			return nil, fmt.Errorf("digest segment required for map node: %w", ErrLocationNotFound)
		}

		var matches []*Node

		for _, child := range node.Significant() {
			if DigestOf(child) == seg.Digest {
				matches = append(matches, child)
			}
		}

		switch len(matches) {
		case 0:
			return nil, fmt.Errorf("no child with digest %s: %w", seg.Digest, ErrLocationNotFound)
		case 1:
			return matches[0], nil
		default:
			slog.Warn("digest collision in unordered collection, using first match",
				"digest", seg.Digest, "matches", len(matches), "error", ErrLocationAmbiguous)

			return matches[0], nil
		}
	case KindToken, KindTrivia:
		return nil, fmt.Errorf("cannot descend into %s node: %w", node.Kind, ErrLocationNotFound)
	}

	return nil, ErrLocationNotFound
}

// Encode returns the coordinate of target relative to the form root. It is
// the exact inverse of Decode on the same tree snapshot.
func Encode(form *Node, target *Node) (model.Coordinate, error) {
	if form == target {
		return model.Coordinate{}, nil
	}

	coord, ok := search(form, target, nil)
	if !ok {
		return nil, fmt.Errorf("node not reachable from form root: %w", ErrLocationNotFound)
	}

	return coord, nil
}

func search(node, target *Node, prefix model.Coordinate) (model.Coordinate, bool) {
	switch node.Kind {
	case KindSeq, KindQuote:
		for i, child := range node.Significant() {
			seg := model.Ordinal(i)
			if child == target {
				return append(append(model.Coordinate{}, prefix...), seg), true
			}

			if coord, ok := search(child, target, append(prefix, seg)); ok {
				return coord, true
			}
		}
	case KindMap:
		for _, child := range node.Significant() {
			seg := model.Digested(DigestOf(child))
			if child == target {
				return append(append(model.Coordinate{}, prefix...), seg), true
			}

			if coord, ok := search(child, target, append(prefix, seg)); ok {
				return coord, true
			}
		}
	}

	return nil, false
}
