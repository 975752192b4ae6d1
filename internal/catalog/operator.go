// Package catalog declares the mutation operators: pure data records pairing
// a matcher predicate with a replacement generator, an optional equivalence
// rule, a hardness score and subsumption edges within the operator's
// comparator family.
package catalog

import (
	"fmt"

	"spore.dev/pkg/spore/internal/cast"
)

// Operator is one declarative mutation rule. Matchers are total and
// side-effect free; replacement generators return the text to splice in
// place of the matched node.
type Operator struct {
	ID       string
	Category string
	// Family groups operators for subsumption purposes. Dominance edges only
	// point at operators in the same family.
	Family   string
	Hardness float64
	// Dominates lists operator IDs whose kills are implied by this
	// operator's kill at the same site.
	Dominates []string

	// Match reports whether the operator applies to node; parent is the
	// node's immediate significant parent (nil at form root).
	Match func(node, parent *cast.Node) bool
	// Replace renders the mutated text for a matched node.
	Replace func(node, parent *cast.Node) string
	// Equivalent, when non-nil, inspects the local syntactic context and
	// reports a reason when the mutation is provably behavior-preserving.
	Equivalent func(node, parent *cast.Node) (string, bool)
}

// Catalog is an ordered, immutable set of operators. Declaration order is
// part of the contract: scanners emit sites in it.
type Catalog struct {
	ops  []Operator
	byID map[string]Operator
}

// New builds a catalog, rejecting duplicate IDs and dominance edges that
// leave the operator's family or form a cycle.
func New(ops ...Operator) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]Operator, len(ops))}

	for _, op := range ops {
		if op.ID == "" || op.Match == nil || op.Replace == nil {
			return nil, fmt.Errorf("operator %q: id, matcher and replacement are required", op.ID)
		}

		if _, dup := c.byID[op.ID]; dup {
			return nil, fmt.Errorf("duplicate operator id %q", op.ID)
		}

		c.byID[op.ID] = op
		c.ops = append(c.ops, op)
	}

	for _, op := range ops {
		for _, dom := range op.Dominates {
			other, ok := c.byID[dom]
			if !ok {
				return nil, fmt.Errorf("operator %q dominates unknown operator %q", op.ID, dom)
			}

			if other.Family != op.Family {
				return nil, fmt.Errorf("operator %q dominates %q outside family %q", op.ID, dom, op.Family)
			}
		}
	}

	if err := c.checkAcyclic(); err != nil {
		return nil, err
	}

	return c, nil
}

// checkAcyclic verifies the dominance relation per family is a DAG.
func (c *Catalog) checkAcyclic() error {
	const (
		unvisited = iota
		visiting
		done
	)

	state := make(map[string]int, len(c.ops))

	var visit func(id string) error

	visit = func(id string) error {
		switch state[id] {
		case visiting:
			return fmt.Errorf("dominance cycle through operator %q", id)
		case done:
			return nil
		}

		state[id] = visiting

		for _, dom := range c.byID[id].Dominates {
			if err := visit(dom); err != nil {
				return err
			}
		}

		state[id] = done

		return nil
	}

	for _, op := range c.ops {
		if err := visit(op.ID); err != nil {
			return err
		}
	}

	return nil
}

// Operators returns all operators in declaration order.
func (c *Catalog) Operators() []Operator {
	return c.ops
}

// Get looks an operator up by ID.
func (c *Catalog) Get(id string) (Operator, bool) {
	op, ok := c.byID[id]

	return op, ok
}

// Select returns the operators with the given IDs, in declaration order.
// Unknown IDs are ignored.
func (c *Catalog) Select(ids []string) []Operator {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	var out []Operator

	for _, op := range c.ops {
		if _, ok := want[op.ID]; ok {
			out = append(out, op)
		}
	}

	return out
}

// TransitivelyDominated returns every operator ID reachable from id through
// dominance edges, excluding id itself.
func (c *Catalog) TransitivelyDominated(id string) map[string]struct{} {
	out := make(map[string]struct{})

	var walk func(cur string)

	walk = func(cur string) {
		for _, dom := range c.byID[cur].Dominates {
			if _, seen := out[dom]; seen {
				continue
			}

			out[dom] = struct{}{}
			walk(dom)
		}
	}

	walk(id)

	return out
}
