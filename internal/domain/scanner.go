package domain

import (
	"spore.dev/pkg/spore/internal/cast"
	"spore.dev/pkg/spore/internal/catalog"
	"spore.dev/pkg/spore/internal/model"
)

// quoteDelta returns how a reader prefix shifts the quoting depth. Quote and
// syntax-quote (and the discard and var prefixes) disable scanning; unquote
// re-enables it inside a syntax-quoted template.
func quoteDelta(prefix string) int {
	switch prefix {
	case "'", "`", "#_", "#'":
		return 1
	case "~", "~@":
		return -1
	}

	return 0
}

// Scan walks every form of the snapshot depth-first, testing each node
// against every operator matcher. Output order is deterministic: tree order
// first, operator declaration order second. Quoted subtrees and string
// literals are never scanned.
func Scan(snap *Snapshot, ops []catalog.Operator, startIndex int) []model.MutationSite {
	var sites []model.MutationSite

	next := startIndex

	for _, form := range snap.Forms {
		root, _ := snap.FormNode(form.ID)
		scanNode(snap, form, root, root, nil, 0, ops, &sites, &next)
	}

	return sites
}

func scanNode(
	snap *Snapshot,
	form model.Form,
	root, node, parent *cast.Node,
	quoteDepth int,
	ops []catalog.Operator,
	sites *[]model.MutationSite,
	next *int,
) {
	if node.IsTrivia() {
		return
	}

	if node.Kind == cast.KindQuote {
		quoteDepth += quoteDelta(node.Text)
	}

	scannable := quoteDepth <= 0 && node.Kind != cast.KindQuote && !node.IsStringLiteral()

	if scannable {
		for _, op := range ops {
			if !op.Match(node, parent) {
				continue
			}

			coord, err := cast.Encode(root, node)
			if err != nil {
				// The node came from this tree; not finding it is a bug in
				// the walk, not a recoverable condition.
				panic(err)
			}

			*sites = append(*sites, model.MutationSite{
				Form:        form.ID,
				File:        snap.File,
				Line:        node.StartLine(),
				Coord:       coord,
				Operator:    op.ID,
				Category:    op.Category,
				Original:    node.Render(),
				Replacement: op.Replace(node, parent),
				Hardness:    op.Hardness,
				ScanIndex:   *next,
			})

			*next++
		}
	}

	childParent := node
	if node.Kind == cast.KindQuote {
		// A quote node is a wrapper: its child's significant parent is the
		// quote's own parent for matching purposes.
		childParent = parent
	}

	for _, child := range node.Children {
		scanNode(snap, form, root, child, childParent, quoteDepth, ops, sites, next)
	}
}
