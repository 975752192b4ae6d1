package catalog

import (
	"fmt"
	"sync"
)

// Preset names.
const (
	PresetThorough = "thorough"
	PresetDefault  = "default"
	PresetFast     = "fast"
)

// presets is computed once: a static trade of thoroughness for speed.
var presets = sync.OnceValue(func() map[string][]string {
	all := make([]string, 0, len(builtinOperators()))
	for _, op := range builtinOperators() {
		all = append(all, op.ID)
	}

	return map[string][]string{
		PresetThorough: all,
		PresetDefault: {
			"arith-add-to-sub", "arith-sub-to-add", "arith-mul-to-div", "arith-div-to-mul",
			"cmp-lt-to-le", "cmp-gt-to-ge", "cmp-le-to-lt", "cmp-ge-to-gt",
			"cmp-eq-to-noteq", "cmp-noteq-to-eq",
			"logic-and-to-or", "logic-or-to-and",
			"branch-if-to-ifnot", "branch-when-to-whennot",
			"bool-flip", "const-inc", "unary-not-removal",
		},
		PresetFast: {
			"cmp-lt-to-le", "cmp-gt-to-ge",
			"logic-and-to-or", "logic-or-to-and",
			"bool-flip",
		},
	}
})

// Preset returns the operators of a named preset in declaration order.
func (c *Catalog) Preset(name string) ([]Operator, error) {
	ids, ok := presets()[name]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q", name)
	}

	return c.Select(ids), nil
}

// PresetNames lists the available preset names.
func PresetNames() []string {
	return []string{PresetDefault, PresetFast, PresetThorough}
}
