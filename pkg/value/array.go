package value

const minArrayCapacity = 8

// Array is a grow-by-doubling buffer of Values. It provides both
// functional (returns a new array, leaving the receiver untouched)
// and in-place mutating variants of the common operations, matching
// the VM's split between copy-on-write opcodes (Add/Set/...Element)
// and their Inplace* counterparts.
type Array struct {
	RefCounted
	values []Value
}

// NewArray allocates an empty array with room for at least capacity
// elements.
func NewArray(capacity int) *Array {
	if capacity < minArrayCapacity {
		capacity = minArrayCapacity
	}
	return &Array{values: make([]Value, 0, arrayCapacityFor(capacity))}
}

// NewArrayFromValues allocates an array taking ownership of the given
// values without retaining them; the slice itself is copied. Callers that
// already retained the values (e.g. the VM popping them off the
// stack) should use this directly.
func NewArrayFromValues(values []Value) *Array {
	a := &Array{}
	a.values = make([]Value, len(values), arrayCapacityFor(len(values)))
	copy(a.values, values)
	return a
}

func arrayCapacityFor(length int) int {
	cap := minArrayCapacity
	for cap < length {
		cap *= 2
	}
	return cap
}

// Release decrements the refcount; once the array becomes
// unreachable it releases every element it owns.
func (a *Array) Release() {
	if a.release() {
		for _, v := range a.values {
			Release(v)
		}
	}
}

// Len returns the number of elements currently stored.
func (a *Array) Len() int { return len(a.values) }

// Values returns the array's backing slice directly; callers must not
// mutate it without going through the Array's own methods (doing so
// would desynchronize refcounts).
func (a *Array) Values() []Value { return a.values }

// At returns the element at index i.
func (a *Array) At(i int) Value { return a.values[i] }

// ensureCapacity grows the backing array, if necessary, to hold n
// elements. It never shrinks and never reallocates elements already
// within the current length.
func (a *Array) ensureCapacity(n int) {
	if n <= cap(a.values) {
		return
	}
	newCap := cap(a.values)
	if newCap < minArrayCapacity {
		newCap = minArrayCapacity
	}
	for newCap < n {
		newCap *= 2
	}
	grown := make([]Value, len(a.values), newCap)
	copy(grown, a.values)
	a.values = grown
}

// Add returns a new array equal to a with val appended; val is
// retained on behalf of the new array.
func (a *Array) Add(val Value) *Array {
	out := NewArrayFromValues(a.values)
	for _, v := range out.values {
		Retain(v)
	}
	out.AddInPlace(Retain(val))
	return out
}

// AddInPlace appends val to a, taking ownership of the reference
// (the caller must have already retained val on a's behalf).
func (a *Array) AddInPlace(val Value) {
	a.ensureCapacity(len(a.values) + 1)
	a.values = append(a.values, val)
}

// Set returns a new array equal to a with index i replaced by val.
func (a *Array) Set(i int, val Value) *Array {
	out := NewArrayFromValues(a.values)
	for _, v := range out.values {
		Retain(v)
	}
	out.SetInPlace(i, Retain(val))
	return out
}

// SetInPlace replaces index i with val in place, releasing the value
// it displaces.
func (a *Array) SetInPlace(i int, val Value) {
	Release(a.values[i])
	a.values[i] = val
}

// Insert returns a new array equal to a with val inserted at index i.
func (a *Array) Insert(i int, val Value) *Array {
	out := NewArrayFromValues(a.values)
	for _, v := range out.values {
		Retain(v)
	}
	out.InsertInPlace(i, Retain(val))
	return out
}

// InsertInPlace inserts val at index i, shifting later elements up.
func (a *Array) InsertInPlace(i int, val Value) {
	a.ensureCapacity(len(a.values) + 1)
	a.values = append(a.values, Nil())
	copy(a.values[i+1:], a.values[i:])
	a.values[i] = val
}

// Delete returns a new array equal to a with index i removed.
func (a *Array) Delete(i int) *Array {
	out := NewArrayFromValues(a.values)
	for _, v := range out.values {
		Retain(v)
	}
	out.DeleteInPlace(i)
	return out
}

// DeleteInPlace removes index i in place, releasing the displaced
// value.
func (a *Array) DeleteInPlace(i int) {
	Release(a.values[i])
	copy(a.values[i:], a.values[i+1:])
	a.values = a.values[:len(a.values)-1]
}

// Concat2 returns a new array holding a's elements followed by b's.
func Concat2(a, b *Array) *Array {
	out := NewArray(len(a.values) + len(b.values))
	for _, v := range a.values {
		out.AddInPlace(Retain(v))
	}
	for _, v := range b.values {
		out.AddInPlace(Retain(v))
	}
	return out
}

// Diff returns a new array holding a's elements that do not compare
// equal to any element of b.
func Diff(a, b *Array) *Array {
	out := NewArray(len(a.values))
	for _, v := range a.values {
		found := false
		for _, w := range b.values {
			if Equal(v, w) {
				found = true
				break
			}
		}
		if !found {
			out.AddInPlace(Retain(v))
		}
	}
	return out
}

// Clear removes every element in place, releasing each.
func (a *Array) Clear() {
	for _, v := range a.values {
		Release(v)
	}
	a.values = a.values[:0]
}

// IndexOf returns the index of the first element equal to val, or -1.
func (a *Array) IndexOf(val Value) int {
	for i, v := range a.values {
		if Equal(v, val) {
			return i
		}
	}
	return -1
}

// Sort performs an in-place insertion sort using the Value total
// order. It returns an error if any pair of elements is incomparable.
func (a *Array) Sort() error {
	for i := 1; i < len(a.values); i++ {
		j := i
		for j > 0 {
			ord, err := Compare(a.values[j-1], a.values[j])
			if err != nil {
				return err
			}
			if ord <= 0 {
				break
			}
			a.values[j-1], a.values[j] = a.values[j], a.values[j-1]
			j--
		}
	}
	return nil
}
