package value

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Print writes val's textual representation to w. When quoted is
// true, strings are printed with surrounding quotes (used for debug
// dumps and values nested inside containers);
// top-level string printing for "print"-style natives typically
// passes quoted=false.
func Print(w io.Writer, val Value, quoted bool) {
	io.WriteString(w, Format(val, quoted))
}

// Format renders val's textual representation without writing it
// anywhere, for callers (error messages, the disassembler) that need
// the string itself.
func Format(val Value, quoted bool) string {
	switch val.Type() {
	case TypeNil:
		return "nil"
	case TypeBool:
		if val.AsBool() {
			return "true"
		}
		return "false"
	case TypeNumber:
		return formatNumber(val.AsNumber())
	case TypeString:
		s := val.AsString().String()
		if quoted {
			return strconv.Quote(s)
		}
		return s
	case TypeRange:
		r := val.AsRange()
		return fmt.Sprintf("%d..%d", r.Start, r.End)
	case TypeArray:
		a := val.AsArray()
		var b strings.Builder
		b.WriteByte('[')
		for i, v := range a.Values() {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(Format(v, true))
		}
		b.WriteByte(']')
		return b.String()
	case TypeStruct:
		s := val.AsStruct()
		if s.Name != "" {
			return fmt.Sprintf("<struct %s>", s.Name)
		}
		return "<struct>"
	case TypeInstance:
		i := val.AsInstance()
		var b strings.Builder
		name := i.Struct.Name
		if name == "" {
			name = "anonymous"
		}
		b.WriteString("<instance ")
		b.WriteString(name)
		b.WriteString(" {")
		for idx, name := range i.Struct.FieldNames() {
			if idx > 0 {
				b.WriteString(", ")
			}
			b.WriteString(name)
			b.WriteString(": ")
			b.WriteString(Format(i.FieldAt(idx), true))
		}
		b.WriteString("}>")
		return b.String()
	case TypeIterator:
		return "<iterator>"
	case TypeCallable:
		if val.IsNative() {
			return fmt.Sprintf("<native %p>", val.obj)
		}
		return fmt.Sprintf("<closure %p>", val.obj)
	case TypeUserData:
		return fmt.Sprintf("<userdata %s>", val.AsUserData().TypeName())
	default:
		return "<unknown>"
	}
}

func formatNumber(n float64) string {
	if n == float64(int64(n)) {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}
