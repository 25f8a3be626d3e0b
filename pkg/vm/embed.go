// Embedding API helpers (spec.md §4.7, C7). A Native's call signature
// already receives its arguments as a Go slice and returns its result
// as a single value.Value (pkg/bytecode's NativeFunc) rather than
// manipulating the VM's live stack imperatively, so the "push" and
// "build" operations spec.md describes are adapted here as value
// constructors a native calls to produce the Value it returns,
// instead of literal stack-push methods — the constructed result
// still flows back onto the VM's stack exactly as spec.md describes,
// just through the native's return value rather than a side-effecting
// push call. This adaptation is recorded in DESIGN.md.
package vm

import "github.com/hooklang/hook/pkg/value"

// NewArrayValue builds an Array from vals, taking ownership of them
// (the caller must already have retained each, e.g. by copying out of
// its own args slice with value.Retain) — mirrors the Array(n)
// embedding operation.
func NewArrayValue(vals []value.Value) value.Value {
	return value.Retain(value.FromArray(value.NewArrayFromValues(vals)))
}

// NewStructValue builds a Struct value named name with the given
// field names, in order — mirrors the Struct(n) embedding operation.
func NewStructValue(name string, fields []string) value.Value {
	st := value.NewStruct(name)
	for _, f := range fields {
		st.DefineField(f)
	}
	return value.Retain(value.FromStruct(st))
}

// NewInstanceValue builds an Instance of st from vals, taking
// ownership of them — mirrors the Instance(n)/Construct(n) embedding
// operations.
func NewInstanceValue(st *value.Struct, vals []value.Value) value.Value {
	return value.Retain(value.FromInstance(value.NewInstance(st, vals)))
}

// CheckArgumentType reports a type error unless args[idx] has type
// want — mirrors check_argument_type (spec.md §4.7).
func CheckArgumentType(args []value.Value, idx int, want value.Type) error {
	got := "nil"
	if idx < len(args) {
		got = args[idx].Type().String()
	}
	if idx >= len(args) || args[idx].Type() != want {
		return typeErrorf(want.String(), got)
	}
	return nil
}

// CheckArgumentTypes reports a type error unless args[idx] matches
// one of want — mirrors check_argument_types.
func CheckArgumentTypes(args []value.Value, idx int, want ...value.Type) error {
	if idx >= len(args) {
		return typeErrorf(typeList(want), "nil")
	}
	got := args[idx].Type()
	for _, w := range want {
		if got == w {
			return nil
		}
	}
	return typeErrorf(typeList(want), got.String())
}

func typeList(types []value.Type) string {
	s := ""
	for i, t := range types {
		if i > 0 {
			s += " or "
		}
		s += t.String()
	}
	return s
}

// Per-type shortcuts (spec.md §4.7 "per-type shortcuts").
func CheckNumber(args []value.Value, idx int) error   { return CheckArgumentType(args, idx, value.TypeNumber) }
func CheckString(args []value.Value, idx int) error   { return CheckArgumentType(args, idx, value.TypeString) }
func CheckArray(args []value.Value, idx int) error    { return CheckArgumentType(args, idx, value.TypeArray) }
func CheckInstance(args []value.Value, idx int) error { return CheckArgumentType(args, idx, value.TypeInstance) }
func CheckCallable(args []value.Value, idx int) error { return CheckArgumentType(args, idx, value.TypeCallable) }
