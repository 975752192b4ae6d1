package catalog

import (
	"strconv"
	"strings"

	"spore.dev/pkg/spore/internal/cast"
)

// Operator categories.
const (
	CategoryArithmetic = "arithmetic"
	CategoryComparison = "comparison"
	CategoryLogical    = "logical"
	CategoryBoolean    = "boolean"
	CategoryConstant   = "constant"
	CategoryBranch     = "branch"
	CategoryUnary      = "unary"
)

// Builtin returns the full operator catalog. The declaration order below is
// load-bearing: scan output and cluster tie-breaking depend on it.
func Builtin() *Catalog {
	c, err := New(builtinOperators()...)
	if err != nil {
		// The builtin set is static; a constructor error is a programming bug.
		panic(err)
	}

	return c
}

func builtinOperators() []Operator {
	ops := []Operator{
		headSwap("arith-add-to-sub", CategoryArithmetic, "+", "-", 0.6,
			withDominates("arith-add-to-mul"),
			withEquivalence(secondOperandIs("0", "adding or subtracting zero")),
		),
		headSwap("arith-sub-to-add", CategoryArithmetic, "-", "+", 0.6,
			withEquivalence(secondOperandIs("0", "adding or subtracting zero")),
		),
		headSwap("arith-add-to-mul", CategoryArithmetic, "+", "*", 0.3),
		headSwap("arith-mul-to-div", CategoryArithmetic, "*", "/", 0.6,
			withEquivalence(secondOperandIs("1", "multiply or divide by one")),
		),
		headSwap("arith-div-to-mul", CategoryArithmetic, "/", "*", 0.6,
			withEquivalence(secondOperandIs("1", "multiply or divide by one")),
		),

		headSwap("cmp-lt-to-le", CategoryComparison, "<", "<=", 0.9,
			withDominates("cmp-lt-to-ge"),
		),
		headSwap("cmp-lt-to-ge", CategoryComparison, "<", ">=", 0.3),
		headSwap("cmp-gt-to-ge", CategoryComparison, ">", ">=", 0.9,
			withDominates("cmp-gt-to-le"),
		),
		headSwap("cmp-gt-to-le", CategoryComparison, ">", "<=", 0.3),
		headSwap("cmp-le-to-lt", CategoryComparison, "<=", "<", 0.9),
		headSwap("cmp-ge-to-gt", CategoryComparison, ">=", ">", 0.9),
		headSwap("cmp-eq-to-noteq", CategoryComparison, "=", "not=", 0.5),
		headSwap("cmp-noteq-to-eq", CategoryComparison, "not=", "=", 0.5),

		headSwap("logic-and-to-or", CategoryLogical, "and", "or", 0.7),
		headSwap("logic-or-to-and", CategoryLogical, "or", "and", 0.7),

		headSwap("branch-if-to-ifnot", CategoryBranch, "if", "if-not", 0.5),
		headSwap("branch-ifnot-to-if", CategoryBranch, "if-not", "if", 0.5),
		headSwap("branch-when-to-whennot", CategoryBranch, "when", "when-not", 0.5),
		headSwap("branch-whennot-to-when", CategoryBranch, "when-not", "when", 0.5),

		boolFlip(),
		constInc(),
		constZero(),
		notRemoval(),
	}

	return ops
}

type operatorOption func(*Operator)

func withDominates(ids ...string) operatorOption {
	return func(op *Operator) {
		op.Dominates = append(op.Dominates, ids...)
	}
}

func withEquivalence(rule func(node, parent *cast.Node) (string, bool)) operatorOption {
	return func(op *Operator) {
		op.Equivalent = rule
	}
}

// headSwap builds an operator that rewrites the operator position of a call
// form from one symbol to another.
func headSwap(id, category, from, to string, hardness float64, opts ...operatorOption) Operator {
	op := Operator{
		ID:       id,
		Category: category,
		Family:   category,
		Hardness: hardness,
		Match: func(node, parent *cast.Node) bool {
			return isHead(node, parent) && node.Text == from
		},
		Replace: func(_, _ *cast.Node) string {
			return to
		},
	}

	for _, opt := range opts {
		opt(&op)
	}

	return op
}

func boolFlip() Operator {
	return Operator{
		ID:       "bool-flip",
		Category: CategoryBoolean,
		Family:   CategoryBoolean,
		Hardness: 0.4,
		Match: func(node, parent *cast.Node) bool {
			if node.Kind != cast.KindToken || isHead(node, parent) {
				return false
			}

			return node.Text == "true" || node.Text == "false"
		},
		Replace: func(node, _ *cast.Node) string {
			if node.Text == "true" {
				return "false"
			}

			return "true"
		},
	}
}

func constInc() Operator {
	return Operator{
		ID:        "const-inc",
		Category:  CategoryConstant,
		Family:    CategoryConstant,
		Hardness:  0.8,
		Dominates: []string{"const-zero"},
		Match: func(node, parent *cast.Node) bool {
			return isIntegerLiteral(node) && !isHead(node, parent)
		},
		Replace: func(node, _ *cast.Node) string {
			n, err := strconv.ParseInt(node.Text, 10, 64)
			if err != nil {
				return node.Text
			}

			return strconv.FormatInt(n+1, 10)
		},
	}
}

func constZero() Operator {
	return Operator{
		ID:       "const-zero",
		Category: CategoryConstant,
		Family:   CategoryConstant,
		Hardness: 0.2,
		Match: func(node, parent *cast.Node) bool {
			return isIntegerLiteral(node) && !isHead(node, parent)
		},
		Replace: func(_, _ *cast.Node) string {
			return "0"
		},
		Equivalent: func(node, _ *cast.Node) (string, bool) {
			if node.Text == "0" || node.Text == "-0" {
				return "literal is already zero", true
			}

			return "", false
		},
	}
}

// notRemoval replaces a whole (not x) form with its operand.
func notRemoval() Operator {
	return Operator{
		ID:       "unary-not-removal",
		Category: CategoryUnary,
		Family:   CategoryUnary,
		Hardness: 0.5,
		Match: func(node, _ *cast.Node) bool {
			if node.Kind != cast.KindSeq || node.Open != "(" {
				return false
			}

			sig := node.Significant()

			return len(sig) == 2 && sig[0].Kind == cast.KindToken && sig[0].Text == "not"
		},
		Replace: func(node, _ *cast.Node) string {
			return node.Significant()[1].Render()
		},
	}
}

func isHead(node, parent *cast.Node) bool {
	if parent == nil || node.Kind != cast.KindToken {
		return false
	}

	return parent.Kind == cast.KindSeq && parent.Open == "(" && parent.Head() == node
}

func isIntegerLiteral(node *cast.Node) bool {
	if node.Kind != cast.KindToken {
		return false
	}

	text := strings.TrimPrefix(node.Text, "-")
	if text == "" {
		return false
	}

	for i := range len(text) {
		if text[i] < '0' || text[i] > '9' {
			return false
		}
	}

	return true
}

// secondOperandIs builds an equivalence rule that fires when the matched head
// sits in a two-operand call whose second operand is the given literal.
func secondOperandIs(literal, reason string) func(node, parent *cast.Node) (string, bool) {
	return func(_, parent *cast.Node) (string, bool) {
		if parent == nil {
			return "", false
		}

		sig := parent.Significant()
		if len(sig) != 3 {
			return "", false
		}

		if sig[2].Kind == cast.KindToken && sig[2].Text == literal {
			return reason, true
		}

		return "", false
	}
}
