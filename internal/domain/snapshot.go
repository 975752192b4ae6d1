// Package domain contains the mutation-testing pipeline: site scanning,
// equivalence filtering, subsumption reduction, clustering, mutation
// application, schemata compilation, change detection and orchestration.
package domain

import (
	"fmt"

	"spore.dev/pkg/spore/internal/cast"
	"spore.dev/pkg/spore/internal/model"
)

// Snapshot is one file parsed at one instant. Scanning and mutation must
// share a snapshot: a coordinate is only valid against the tree it was
// encoded from.
type Snapshot struct {
	File    model.Path
	Content string
	Tree    *cast.Tree
	Forms   []model.Form

	nodes map[model.FormID]*cast.Node
}

// NewSnapshot parses source content into a snapshot. Form IDs are assigned
// per file in source order.
func NewSnapshot(file model.Path, content string) (*Snapshot, error) {
	tree, err := cast.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", file, err)
	}

	snap := &Snapshot{
		File:    file,
		Content: content,
		Tree:    tree,
		nodes:   make(map[model.FormID]*cast.Node),
	}

	for i, node := range tree.Forms() {
		id := model.FormID(fmt.Sprintf("%s#%d", file, i))
		snap.nodes[id] = node
		snap.Forms = append(snap.Forms, model.Form{
			ID:        id,
			File:      file,
			StartLine: node.StartLine(),
			Text:      node.Render(),
		})
	}

	return snap, nil
}

// FormNode returns the tree node of a form in this snapshot.
func (s *Snapshot) FormNode(id model.FormID) (*cast.Node, bool) {
	node, ok := s.nodes[id]

	return node, ok
}

// DecodeSite resolves a site's coordinate to its node and the node's
// immediate significant parent within this snapshot.
func (s *Snapshot) DecodeSite(site model.MutationSite) (node, parent *cast.Node, err error) {
	form, ok := s.nodes[site.Form]
	if !ok {
		return nil, nil, fmt.Errorf("form %s: %w", site.Form, cast.ErrLocationNotFound)
	}

	node, err = cast.Decode(form, site.Coord)
	if err != nil {
		return nil, nil, err
	}

	if len(site.Coord) > 0 {
		parent, err = cast.Decode(form, site.Coord.Prefix(len(site.Coord)-1))
		if err != nil {
			return nil, nil, err
		}
	}

	return node, parent, nil
}

// Locations returns the form-location entries of this snapshot, used to seed
// a coverage bridge in tests and in single-process setups where the static
// scanner doubles as the form-location source.
func (s *Snapshot) Locations() []model.FormLocation {
	out := make([]model.FormLocation, 0, len(s.Forms))

	for _, form := range s.Forms {
		out = append(out, model.FormLocation{ID: form.ID, File: form.File, StartLine: form.StartLine})
	}

	return out
}
