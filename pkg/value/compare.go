package value

import "errors"

// ErrIncomparable is returned by Compare when the two values do not
// belong to a total order the language defines (spec.md §4.1:
// everything but nil/bool/number/string/range/array is incomparable,
// as is any cross-type comparison).
var ErrIncomparable = errors.New("value: incomparable types")

// Equal compares two values for equality. Both must share the same
// type tag; numbers compare with bitwise float equality, strings
// compare by bytes, ranges and arrays compare structurally, structs
// compare by field-name sequence, instances compare by struct and
// field values, and any other object compares by pointer identity.
func Equal(a, b Value) bool {
	if a.Type() != b.Type() {
		return false
	}
	switch a.Type() {
	case TypeNil:
		return true
	case TypeBool:
		return a.AsBool() == b.AsBool()
	case TypeNumber:
		return a.AsNumber() == b.AsNumber()
	case TypeString:
		return a.AsString().Equal(b.AsString())
	case TypeRange:
		return a.AsRange().Equal(b.AsRange())
	case TypeArray:
		aa, ba := a.AsArray(), b.AsArray()
		if aa.Len() != ba.Len() {
			return false
		}
		for i := 0; i < aa.Len(); i++ {
			if !Equal(aa.At(i), ba.At(i)) {
				return false
			}
		}
		return true
	case TypeStruct:
		return a.AsStruct().Equal(b.AsStruct())
	case TypeInstance:
		return a.AsInstance().Equal(b.AsInstance())
	default:
		return a.Object() == b.Object()
	}
}

// Compare implements the total order from spec.md §4.1: nil (always
// equal to itself, 0), bool (false<true), number (IEEE order; NaN is
// incomparable), string (lexicographic bytes), range (start then
// end), array (element-wise then length). Every other type, and any
// cross-type comparison, returns ErrIncomparable — this resolves
// Open Question #1 by treating "not in the order" and "comparison
// failed" as the same observable outcome: both opcodes and Sort
// surface ErrIncomparable rather than silently picking a winner.
func Compare(a, b Value) (int, error) {
	if a.Type() != b.Type() {
		return 0, ErrIncomparable
	}
	switch a.Type() {
	case TypeNil:
		return 0, nil
	case TypeBool:
		if a.AsBool() == b.AsBool() {
			return 0, nil
		}
		if !a.AsBool() {
			return -1, nil
		}
		return 1, nil
	case TypeNumber:
		x, y := a.AsNumber(), b.AsNumber()
		if x != x || y != y { // NaN
			return 0, ErrIncomparable
		}
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		default:
			return 0, nil
		}
	case TypeString:
		return a.AsString().Compare(b.AsString()), nil
	case TypeRange:
		return a.AsRange().Compare(b.AsRange()), nil
	case TypeArray:
		aa, ba := a.AsArray(), b.AsArray()
		n := aa.Len()
		if ba.Len() < n {
			n = ba.Len()
		}
		for i := 0; i < n; i++ {
			ord, err := Compare(aa.At(i), ba.At(i))
			if err != nil {
				return 0, err
			}
			if ord != 0 {
				return ord, nil
			}
		}
		return aa.Len() - ba.Len(), nil
	default:
		return 0, ErrIncomparable
	}
}
