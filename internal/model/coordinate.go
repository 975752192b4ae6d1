// Package model defines the data structures shared across the mutation
// testing engine.
package model

import (
	"fmt"
	"strconv"
	"strings"
)

// SegmentKind distinguishes the two addressing modes of a coordinate segment.
type SegmentKind uint8

const (
	// SegmentOrdinal addresses a child of an ordered collection by its
	// 0-based position among significant children.
	SegmentOrdinal SegmentKind = iota
	// SegmentDigest addresses a child of an unordered collection by a digest
	// of its canonical text.
	SegmentDigest
)

// Segment is one step of a coordinate path.
type Segment struct {
	Kind   SegmentKind
	Index  int
	Digest string
}

// Ordinal builds an ordinal segment.
func Ordinal(index int) Segment {
	return Segment{Kind: SegmentOrdinal, Index: index}
}

// Digested builds a digest segment.
func Digested(digest string) Segment {
	return Segment{Kind: SegmentDigest, Digest: digest}
}

// Coordinate is the ordered path from a form's root to a descendant node.
// It is only meaningful relative to the tree snapshot it was encoded from.
type Coordinate []Segment

// String renders the coordinate in its canonical textual shape, e.g. "0.2.#9f3c".
func (c Coordinate) String() string {
	if len(c) == 0 {
		return ""
	}

	parts := make([]string, 0, len(c))

	for _, seg := range c {
		switch seg.Kind {
		case SegmentOrdinal:
			parts = append(parts, strconv.Itoa(seg.Index))
		case SegmentDigest:
			parts = append(parts, "#"+seg.Digest)
		}
	}

	return strings.Join(parts, ".")
}

// ParseCoordinate parses the canonical textual shape produced by String.
func ParseCoordinate(s string) (Coordinate, error) {
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ".")
	coord := make(Coordinate, 0, len(parts))

	for _, part := range parts {
		if digest, ok := strings.CutPrefix(part, "#"); ok {
			if digest == "" {
				return nil, fmt.Errorf("empty digest segment in %q", s)
			}

			coord = append(coord, Digested(digest))

			continue
		}

		index, err := strconv.Atoi(part)
		if err != nil || index < 0 {
			return nil, fmt.Errorf("invalid ordinal segment %q in %q", part, s)
		}

		coord = append(coord, Ordinal(index))
	}

	return coord, nil
}

// Equal reports whether two coordinates address the same path.
func (c Coordinate) Equal(other Coordinate) bool {
	if len(c) != len(other) {
		return false
	}

	for i, seg := range c {
		if seg != other[i] {
			return false
		}
	}

	return true
}

// Prefix returns the first n segments (or the whole coordinate if shorter).
func (c Coordinate) Prefix(n int) Coordinate {
	if n >= len(c) {
		return c
	}

	return c[:n]
}
