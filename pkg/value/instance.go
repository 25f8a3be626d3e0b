package value

// Instance is an immutable-by-default vector of values whose length
// always equals its struct's field count. SetField performs a
// functional update (returns a new instance); SetFieldAtInPlace
// mutates a single slot after releasing the value it displaces.
type Instance struct {
	RefCounted
	Struct *Struct
	values []Value
}

// NewInstance allocates an instance of st from exactly
// st.Length() values, taking ownership of (not retaining) them.
func NewInstance(st *Struct, values []Value) *Instance {
	if len(values) != st.Length() {
		panic("value: instance field count mismatch")
	}
	st.Retain()
	out := make([]Value, len(values))
	copy(out, values)
	return &Instance{Struct: st, values: out}
}

// Release decrements the refcount; once unreachable it releases every
// field value and drops its reference to the struct.
func (i *Instance) Release() {
	if i.release() {
		for _, v := range i.values {
			Release(v)
		}
		i.Struct.Release()
	}
}

// Len returns the number of fields (equal to i.Struct.Length()).
func (i *Instance) Len() int { return len(i.values) }

// Values returns the instance's backing slice directly.
func (i *Instance) Values() []Value { return i.values }

// FieldAt returns the value at the given field index.
func (i *Instance) FieldAt(idx int) Value { return i.values[idx] }

// SetField returns a new instance equal to i with the named field
// replaced by val. It panics if the struct has no such field — the
// compiler/VM are expected to have already validated the name.
func (i *Instance) SetField(name string, val Value) *Instance {
	idx := i.Struct.IndexOf(name)
	if idx == -1 {
		panic("value: unknown field " + name)
	}
	out := NewInstance(i.Struct, i.values)
	for _, v := range out.values {
		Retain(v)
	}
	out.SetFieldAtInPlace(idx, Retain(val))
	return out
}

// SetFieldAtInPlace replaces field idx in place, releasing the
// displaced value and taking ownership of val's reference.
func (i *Instance) SetFieldAtInPlace(idx int, val Value) {
	Release(i.values[idx])
	i.values[idx] = val
}

// Equal reports whether two instances have equal structs and
// pairwise-equal field values.
func (i *Instance) Equal(other *Instance) bool {
	if !i.Struct.Equal(other.Struct) {
		return false
	}
	for k, v := range i.values {
		if !Equal(v, other.values[k]) {
			return false
		}
	}
	return true
}
