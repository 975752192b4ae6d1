package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"spore.dev/pkg/spore/internal/cast"
)

func parseCall(t *testing.T, src string) (head, parent *cast.Node) {
	t.Helper()

	form, err := cast.ParseFragment(src)
	require.NoError(t, err)

	return form.Head(), form
}

func TestBuiltinCatalogIsValid(t *testing.T) {
	c := Builtin()
	require.NotEmpty(t, c.Operators())

	// Every dominance edge must resolve inside the catalog.
	for _, op := range c.Operators() {
		for _, dom := range op.Dominates {
			_, ok := c.Get(dom)
			require.True(t, ok, "operator %s dominates unknown %s", op.ID, dom)
		}
	}
}

func TestNewRejectsBadCatalogs(t *testing.T) {
	match := func(_, _ *cast.Node) bool { return false }
	replace := func(_, _ *cast.Node) string { return "" }

	t.Run("duplicate ids", func(t *testing.T) {
		_, err := New(
			Operator{ID: "a", Family: "f", Match: match, Replace: replace},
			Operator{ID: "a", Family: "f", Match: match, Replace: replace},
		)
		require.Error(t, err)
	})

	t.Run("cross-family dominance", func(t *testing.T) {
		_, err := New(
			Operator{ID: "a", Family: "f1", Dominates: []string{"b"}, Match: match, Replace: replace},
			Operator{ID: "b", Family: "f2", Match: match, Replace: replace},
		)
		require.Error(t, err)
	})

	t.Run("dominance cycle", func(t *testing.T) {
		_, err := New(
			Operator{ID: "a", Family: "f", Dominates: []string{"b"}, Match: match, Replace: replace},
			Operator{ID: "b", Family: "f", Dominates: []string{"a"}, Match: match, Replace: replace},
		)
		require.Error(t, err)
	})
}

func TestHeadSwapOperators(t *testing.T) {
	c := Builtin()

	cases := []struct {
		operator string
		src      string
		want     string
	}{
		{"arith-add-to-sub", "(+ a b)", "-"},
		{"cmp-lt-to-le", "(< x 10)", "<="},
		{"logic-and-to-or", "(and p q)", "or"},
		{"branch-if-to-ifnot", "(if c a b)", "if-not"},
	}

	for _, tc := range cases {
		t.Run(tc.operator, func(t *testing.T) {
			op, ok := c.Get(tc.operator)
			require.True(t, ok)

			head, parent := parseCall(t, tc.src)
			require.True(t, op.Match(head, parent))
			require.Equal(t, tc.want, op.Replace(head, parent))

			// The same symbol outside head position must not match.
			_, argParent := parseCall(t, "(f "+head.Text+")")
			sig := argParent.Significant()
			require.False(t, op.Match(sig[1], argParent))
		})
	}
}

func TestBoolFlip(t *testing.T) {
	op, ok := Builtin().Get("bool-flip")
	require.True(t, ok)

	form, err := cast.ParseFragment("(def enabled true)")
	require.NoError(t, err)

	lit := form.Significant()[2]
	require.True(t, op.Match(lit, form))
	require.Equal(t, "false", op.Replace(lit, form))
}

func TestConstOperators(t *testing.T) {
	c := Builtin()
	form, err := cast.ParseFragment("(+ x 41)")
	require.NoError(t, err)

	lit := form.Significant()[2]

	inc, _ := c.Get("const-inc")
	require.True(t, inc.Match(lit, form))
	require.Equal(t, "42", inc.Replace(lit, form))

	zero, _ := c.Get("const-zero")
	require.True(t, zero.Match(lit, form))
	require.Equal(t, "0", zero.Replace(lit, form))

	_, equivalent := zero.Equivalent(lit, form)
	require.False(t, equivalent)

	zeroForm, err := cast.ParseFragment("(+ x 0)")
	require.NoError(t, err)

	zeroLit := zeroForm.Significant()[2]
	reason, equivalent := zero.Equivalent(zeroLit, zeroForm)
	require.True(t, equivalent)
	require.Equal(t, "literal is already zero", reason)
}

func TestMultiplyByOneEquivalence(t *testing.T) {
	op, ok := Builtin().Get("arith-mul-to-div")
	require.True(t, ok)

	head, parent := parseCall(t, "(* x 1)")
	require.True(t, op.Match(head, parent))

	reason, equivalent := op.Equivalent(head, parent)
	require.True(t, equivalent)
	require.Equal(t, "multiply or divide by one", reason)

	head, parent = parseCall(t, "(* x 2)")
	_, equivalent = op.Equivalent(head, parent)
	require.False(t, equivalent)

	// Three operands: the identity rewrite no longer holds.
	head, parent = parseCall(t, "(* x y 1)")
	_, equivalent = op.Equivalent(head, parent)
	require.False(t, equivalent)
}

func TestNotRemoval(t *testing.T) {
	op, ok := Builtin().Get("unary-not-removal")
	require.True(t, ok)

	form, err := cast.ParseFragment("(not (ready? x))")
	require.NoError(t, err)

	require.True(t, op.Match(form, nil))
	require.Equal(t, "(ready? x)", op.Replace(form, nil))

	tooMany, err := cast.ParseFragment("(not a b)")
	require.NoError(t, err)
	require.False(t, op.Match(tooMany, nil))
}

func TestPresets(t *testing.T) {
	c := Builtin()

	thorough, err := c.Preset(PresetThorough)
	require.NoError(t, err)
	require.Len(t, thorough, len(c.Operators()))

	fast, err := c.Preset(PresetFast)
	require.NoError(t, err)
	require.Less(t, len(fast), len(thorough))

	_, err = c.Preset("nope")
	require.Error(t, err)
}

func TestTransitivelyDominated(t *testing.T) {
	match := func(_, _ *cast.Node) bool { return false }
	replace := func(_, _ *cast.Node) string { return "" }

	c, err := New(
		Operator{ID: "a", Family: "f", Dominates: []string{"b"}, Match: match, Replace: replace},
		Operator{ID: "b", Family: "f", Dominates: []string{"c"}, Match: match, Replace: replace},
		Operator{ID: "c", Family: "f", Match: match, Replace: replace},
	)
	require.NoError(t, err)

	dominated := c.TransitivelyDominated("a")
	require.Len(t, dominated, 2)
	require.Contains(t, dominated, "b")
	require.Contains(t, dominated, "c")
	require.Empty(t, c.TransitivelyDominated("c"))
}
