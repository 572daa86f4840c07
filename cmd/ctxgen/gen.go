package main

import (
	"bytes"
	"fmt"
	"go/constant"
	"go/types"
	"strings"
	"unicode"
)

// Layout maps a struct type to the macro prefix of its fields.
type Layout struct {
	Type   string
	Prefix string
}

var layouts = []Layout{
	{Type: "Context", Prefix: "CTX"},
	{Type: "TrapFrame", Prefix: "FRAME"},
}

// Generate renders the header for the struct types of pkg listed in
// layouts.
func Generate(pkg *types.Package, sizes types.Sizes, layouts []Layout) ([]byte, error) {
	var buf bytes.Buffer
	guard := strings.ToUpper(pkg.Name()) + "_OFFSETS_H"
	fmt.Fprintf(&buf, "/* Code generated by ctxgen from %s. DO NOT EDIT. */\n\n", pkg.Path())
	fmt.Fprintf(&buf, "#ifndef %s\n#define %s\n\n", guard, guard)

	if obj, ok := pkg.Scope().Lookup("LayoutVersion").(*types.Const); ok {
		v, exact := constant.Int64Val(obj.Val())
		if !exact {
			return nil, fmt.Errorf("LayoutVersion is not an integer")
		}
		fmt.Fprintf(&buf, "#define CTX_LAYOUT_VERSION %d\n\n", v)
	}

	for _, l := range layouts {
		obj := pkg.Scope().Lookup(l.Type)
		if obj == nil {
			return nil, fmt.Errorf("%s.%s not found", pkg.Path(), l.Type)
		}
		st, ok := obj.Type().Underlying().(*types.Struct)
		if !ok {
			return nil, fmt.Errorf("%s.%s is not a struct", pkg.Path(), l.Type)
		}

		fields := make([]*types.Var, st.NumFields())
		for i := range fields {
			fields[i] = st.Field(i)
		}
		offsets := sizes.Offsetsof(fields)
		for i, f := range fields {
			fmt.Fprintf(&buf, "#define %s_%s %d\n", l.Prefix, macroName(f.Name()), offsets[i])
		}
		fmt.Fprintf(&buf, "#define %s_SIZE %d\n\n", l.Prefix, sizes.Sizeof(st))
	}

	fmt.Fprintf(&buf, "#endif /* %s */\n", guard)
	return buf.Bytes(), nil
}

// macroName converts a Go field name to upper snake case, keeping initialisms
// together: AddressSpace is ADDRESS_SPACE, HartID is HART_ID.
func macroName(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || (unicode.IsUpper(runes[i-1]) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}
