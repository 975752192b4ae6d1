package model

import "fmt"

// MutationSite is one candidate mutation: a location inside a form plus the
// operator that produced it and the replacement text it would splice in.
type MutationSite struct {
	Form        FormID
	File        Path
	Line        int
	Coord       Coordinate
	Operator    string
	Category    string
	Original    string
	Replacement string
	Hardness    float64
	// ScanIndex is the position of the site in deterministic scan order
	// (tree order, then operator declaration order). Used for tie-breaking.
	ScanIndex int
}

// Key identifies a site uniquely within one run.
func (s MutationSite) Key() string {
	return fmt.Sprintf("%s@%s:%s", s.Operator, s.Form, s.Coord)
}

// ExcludedSite is a site removed before execution by the equivalence filter.
type ExcludedSite struct {
	Site   MutationSite
	Reason string
}

// Cluster groups sites that share a cluster key. Only the representative is
// executed; its verdict propagates to every other member.
type Cluster struct {
	Key            string
	Members        []MutationSite
	Representative MutationSite
}
