package domain

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"spore.dev/pkg/spore/internal/cast"
	"spore.dev/pkg/spore/internal/model"
)

// ErrSchemataCompile marks a site that could not be folded into a schemata
// bundle; the caller falls back to single-mutation application for it.
var ErrSchemataCompile = errors.New("schemata compile failed")

// selectorCall is the runtime predicate each schemata branch guards on. The
// process under test resolves it against the mutant selector slot. Guards are
// always whole expressions in value position: a site replacing a call's head
// token is compiled by wrapping the enclosing form, so the guarded branches
// stay valid even when the swapped name is not a value in the target dialect.
const selectorCall = "spore.runtime/mutant?"

// SchemataMutant ties one guarded branch in a compiled bundle back to the
// site it encodes.
type SchemataMutant struct {
	ID   string
	Site model.MutationSite
}

// SchemaBundle is one file compiled with all its mutations embedded behind
// runtime guards. With no mutant activated the bundle is semantically
// equivalent to the original file.
type SchemaBundle struct {
	File    model.Path
	Mutants []SchemataMutant

	original []byte
	mutated  []byte
}

// Content returns the compiled source text.
func (b *SchemaBundle) Content() []byte {
	return b.mutated
}

// Handle adapts the bundle to the applier's revert path so the original file
// comes back byte-identical after the schemata cycle.
func (b *SchemaBundle) Handle() *Handle {
	return &Handle{File: b.File, original: b.original, mutated: b.mutated}
}

// schemataTarget is one site resolved against the snapshot. head is set when
// the site replaces the head token of the guarded form; the branch then
// renders the whole form with the head swapped.
type schemataTarget struct {
	site model.MutationSite
	head *cast.Node
}

// dispatchBranch is one guarded alternative of a dispatch form.
type dispatchBranch struct {
	id   string
	text string
}

// CompileSchemata folds every site of one snapshot into a single compiled
// file. Sites guarding the same expression become branches of one dispatch
// form; nested targets compose because inner rewrites happen before outer
// ones. Site order within the bundle follows scan order.
func CompileSchemata(snap *Snapshot, sites []model.MutationSite) (*SchemaBundle, error) {
	grouped := make(map[*cast.Node][]schemataTarget)

	for _, site := range sites {
		node, parent, err := snap.DecodeSite(site)
		if err != nil {
			return nil, fmt.Errorf("%w: decode %s: %w", ErrSchemataCompile, site.Key(), err)
		}

		// Head replacements lift the guard to the enclosing call form.
		if parent != nil && parent.Head() == node {
			grouped[parent] = append(grouped[parent], schemataTarget{site: site, head: node})
		} else {
			grouped[node] = append(grouped[node], schemataTarget{site: site})
		}
	}

	bundle := &SchemaBundle{
		File:     snap.File,
		original: []byte(snap.Content),
	}

	var compileErr error

	compiled := snap.Tree.Rewrite(func(orig, rebuilt *cast.Node) *cast.Node {
		if compileErr != nil {
			return nil
		}

		group, ok := grouped[orig]
		if !ok {
			return nil
		}

		sort.Slice(group, func(i, j int) bool {
			return group[i].site.ScanIndex < group[j].site.ScanIndex
		})

		branches := make([]dispatchBranch, 0, len(group))

		for _, target := range group {
			text, err := branchText(orig, rebuilt, target)
			if err != nil {
				compileErr = err

				return nil
			}

			branches = append(branches, dispatchBranch{id: target.site.Key(), text: text})
			bundle.Mutants = append(bundle.Mutants, SchemataMutant{ID: target.site.Key(), Site: target.site})
		}

		branch, err := dispatchForm(branches, rebuilt.Render())
		if err != nil {
			compileErr = err

			return nil
		}

		return branch
	})

	if compileErr != nil {
		return nil, compileErr
	}

	if len(bundle.Mutants) != len(sites) {
		return nil, fmt.Errorf("%w: %d of %d sites reached in %s",
			ErrSchemataCompile, len(bundle.Mutants), len(sites), snap.File)
	}

	bundle.mutated = []byte(compiled.Render())

	slog.Debug("compiled schemata bundle",
		"file", snap.File, "mutants", len(bundle.Mutants))

	return bundle, nil
}

// branchText renders one mutant's branch. Whole-node replacements use the
// site's replacement text directly; head replacements re-render the rebuilt
// form with the head token swapped, so inner guards already composed into the
// rebuilt children are preserved.
func branchText(orig, rebuilt *cast.Node, target schemataTarget) (string, error) {
	if target.head == nil {
		return target.site.Replacement, nil
	}

	for i, child := range orig.Children {
		if child != target.head {
			continue
		}

		var b strings.Builder

		b.WriteString(rebuilt.Open)

		for j, rebuiltChild := range rebuilt.Children {
			if j == i {
				b.WriteString(target.site.Replacement)

				continue
			}

			b.WriteString(rebuiltChild.Render())
		}

		b.WriteString(rebuilt.Close)

		return b.String(), nil
	}

	return "", fmt.Errorf("%w: head of %s not found in its form", ErrSchemataCompile, target.site.Key())
}

// dispatchForm renders the guarded expression for one target. A single mutant
// compiles to an if over the selector predicate; several mutants on the same
// target compile to a cond with one clause per mutant and the original
// expression as the fallthrough.
func dispatchForm(branches []dispatchBranch, original string) (*cast.Node, error) {
	var text strings.Builder

	if len(branches) == 1 {
		fmt.Fprintf(&text, "(if (%s %q) %s %s)",
			selectorCall, branches[0].id, branches[0].text, original)
	} else {
		text.WriteString("(cond")

		for _, branch := range branches {
			fmt.Fprintf(&text, " (%s %q) %s", selectorCall, branch.id, branch.text)
		}

		fmt.Fprintf(&text, " :else %s)", original)
	}

	node, err := cast.ParseFragment(text.String())
	if err != nil {
		return nil, fmt.Errorf("%w: dispatch form: %w", ErrSchemataCompile, err)
	}

	return node, nil
}
