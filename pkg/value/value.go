// Package value implements the Hook runtime value model: a tagged
// union over inline scalars (nil, bool, number) and reference-counted
// heap objects (string, range, array, struct, instance, iterator,
// closure, native, user data).
//
// Value Representation:
//
// A Value carries a type tag plus a small set of derived flags so hot
// paths (truthiness tests, iteration dispatch, object bookkeeping) are
// a single field read instead of a type switch:
//
//	Nil, Bool, Number   -> inline, never heap-allocated
//	String, Range, ...  -> flagObject set, payload held in obj
//
// Ownership:
//
// Heap objects are reference counted. Retain/Release must be called at
// every push, pop, store, and container mutation that changes how many
// live references point at an object; Release recursively drops the
// refcount of any values an object owns once its own count reaches
// zero. Go's garbage collector ultimately reclaims the memory, but the
// refcount discipline itself is part of the value model's contract
// (see the invariants in the language specification) and is exercised
// by the VM exactly as if it were the only reclamation mechanism.
package value

import "math"

// Type is the discriminant of a Value.
type Type int

const (
	TypeNil Type = iota
	TypeBool
	TypeNumber
	TypeString
	TypeRange
	TypeArray
	TypeStruct
	TypeInstance
	TypeIterator
	TypeCallable
	TypeUserData
)

// String returns a human-readable type name, used by type errors and
// the disassembler.
func (t Type) String() string {
	switch t {
	case TypeNil:
		return "nil"
	case TypeBool:
		return "bool"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeRange:
		return "range"
	case TypeArray:
		return "array"
	case TypeStruct:
		return "struct"
	case TypeInstance:
		return "instance"
	case TypeIterator:
		return "iterator"
	case TypeCallable:
		return "callable"
	case TypeUserData:
		return "userdata"
	default:
		return "unknown"
	}
}

// Flag bits carried alongside the type tag. Derived from the tag at
// construction time so hot paths test a single bitmask instead of
// switching on Type.
const (
	flagNone     uint8 = 0
	flagObject   uint8 = 1 << 0
	flagFalsey   uint8 = 1 << 1
	flagNative   uint8 = 1 << 2
	flagHashable uint8 = 1 << 3
	flagIterable uint8 = 1 << 4
)

// Object is the interface every heap-allocated value payload
// implements. Retain/Release manage the reference count; Release
// recursively drops any values the object owns once it becomes
// unreachable.
type Object interface {
	RefCount() int
	Retain()
	Release()
}

// Value is the tagged union the VM operates on. It is small enough to
// pass by value on the Go stack, matching the "every push/pop copies
// a value" model of the language spec.
type Value struct {
	typ   Type
	flags uint8
	num   float64
	b     bool
	obj   Object
}

// Nil is the singleton nil value.
func Nil() Value { return Value{typ: TypeNil, flags: flagFalsey} }

// Bool constructs a boolean value.
func Bool(b bool) Value {
	if b {
		return Value{typ: TypeBool, flags: flagNone, b: true}
	}
	return Value{typ: TypeBool, flags: flagFalsey, b: false}
}

// Number constructs a numeric value.
func Number(n float64) Value { return Value{typ: TypeNumber, flags: flagNone, num: n} }

// Int constructs a numeric value from an integer; a convenience for
// callers (the compiler's inline-integer opcode, natives) that deal in
// whole numbers.
func Int(n int64) Value { return Number(float64(n)) }

func fromObject(t Type, flags uint8, o Object) Value {
	return Value{typ: t, flags: flags | flagObject, obj: o}
}

// FromString wraps a *String as a Value.
func FromString(s *String) Value { return fromObject(TypeString, flagHashable, s) }

// FromRange wraps a *Range as a Value.
func FromRange(r *Range) Value { return fromObject(TypeRange, flagIterable, r) }

// FromArray wraps an *Array as a Value.
func FromArray(a *Array) Value { return fromObject(TypeArray, flagIterable, a) }

// FromStruct wraps a *Struct as a Value.
func FromStruct(s *Struct) Value { return fromObject(TypeStruct, flagNone, s) }

// FromInstance wraps an *Instance as a Value.
func FromInstance(i *Instance) Value { return fromObject(TypeInstance, flagNone, i) }

// FromIterator wraps an Iterator as a Value.
func FromIterator(it Iterator) Value { return fromObject(TypeIterator, flagNone, it) }

// FromClosure wraps a *bytecode.Closure (passed as an Object) as a
// callable Value.
func FromClosure(c Object) Value { return fromObject(TypeCallable, flagNone, c) }

// FromNative wraps a *bytecode.Native (passed as an Object) as a
// callable Value.
func FromNative(n Object) Value { return fromObject(TypeCallable, flagNative, n) }

// FromUserData wraps a *UserData as a Value.
func FromUserData(u *UserData) Value { return fromObject(TypeUserData, flagNone, u) }

// Type returns the value's type tag.
func (v Value) Type() Type { return v.typ }

func (v Value) IsNil() bool      { return v.typ == TypeNil }
func (v Value) IsBool() bool     { return v.typ == TypeBool }
func (v Value) IsNumber() bool   { return v.typ == TypeNumber }
func (v Value) IsString() bool   { return v.typ == TypeString }
func (v Value) IsRange() bool    { return v.typ == TypeRange }
func (v Value) IsArray() bool    { return v.typ == TypeArray }
func (v Value) IsStruct() bool   { return v.typ == TypeStruct }
func (v Value) IsInstance() bool { return v.typ == TypeInstance }
func (v Value) IsIterator() bool { return v.typ == TypeIterator }
func (v Value) IsCallable() bool { return v.typ == TypeCallable }
func (v Value) IsUserData() bool { return v.typ == TypeUserData }

func (v Value) IsObject() bool   { return v.flags&flagObject != 0 }
func (v Value) IsFalsey() bool   { return v.flags&flagFalsey != 0 }
func (v Value) IsTruthy() bool   { return !v.IsFalsey() }
func (v Value) IsNative() bool   { return v.flags&flagNative != 0 }
func (v Value) IsHashable() bool { return v.flags&flagHashable != 0 }
func (v Value) IsIterable() bool { return v.flags&flagIterable != 0 }

// IsInteger reports whether a Number value holds an integral value
// that fits in an int64 — spec.md's "integer predicate".
func (v Value) IsInteger() bool {
	if !v.IsNumber() {
		return false
	}
	if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
		return false
	}
	return v.num == math.Trunc(v.num) && v.num >= math.MinInt64 && v.num <= math.MaxInt64
}

func (v Value) AsBool() bool     { return v.b }
func (v Value) AsNumber() float64 { return v.num }
func (v Value) AsInt() int64      { return int64(v.num) }

func (v Value) AsString() *String     { return v.obj.(*String) }
func (v Value) AsRange() *Range       { return v.obj.(*Range) }
func (v Value) AsArray() *Array       { return v.obj.(*Array) }
func (v Value) AsStruct() *Struct     { return v.obj.(*Struct) }
func (v Value) AsInstance() *Instance { return v.obj.(*Instance) }
func (v Value) AsIterator() Iterator  { return v.obj.(Iterator) }
func (v Value) AsUserData() *UserData { return v.obj.(*UserData) }

// AsCallable returns the callable payload (either a *bytecode.Closure
// or a *bytecode.Native); callers distinguish them with IsNative and
// type-assert the concrete type themselves, since those types live in
// pkg/bytecode (which already imports pkg/value, so the reverse import
// would cycle).
func (v Value) AsCallable() Object { return v.obj }

// Object returns the raw heap payload, or nil for inline values.
func (v Value) Object() Object { return v.obj }

// Retain increments the refcount of v's heap object, if any, and
// returns v unchanged — convenient for "store and retain" call sites.
func Retain(v Value) Value {
	if v.IsObject() {
		v.obj.Retain()
	}
	return v
}

// Release decrements the refcount of v's heap object, if any,
// recursively releasing owned sub-values once it becomes unreachable.
func Release(v Value) {
	if v.IsObject() {
		v.obj.Release()
	}
}

// RefCounted is embedded by every heap object and implements the
// bookkeeping half of Object; concrete types implement Release to
// cascade into owned sub-values once the count reaches zero.
type RefCounted struct {
	count int
}

func (r *RefCounted) RefCount() int { return r.count }
func (r *RefCounted) Retain()       { r.count++ }

// release decrements the count and reports whether the object just
// became unreachable (count <= 0). Concrete types in this package
// call this from their own Release method.
func (r *RefCounted) release() bool {
	r.count--
	return r.count <= 0
}

// Decrement is release's exported counterpart, for heap object types
// that embed RefCounted from outside this package (pkg/bytecode's
// Closure and Native, which implement value.Object but cannot reach
// an unexported method of an embedded foreign type).
func (r *RefCounted) Decrement() bool { return r.release() }
