package value

// Iterator is the capability set every iterable value produces:
// Valid/Current/Next/InplaceNext/Release. It is itself a heap Object
// (TypeIterator) so it can live on the value stack like anything
// else. Next returns a fresh iterator positioned one step forward
// (the VM's functional `Next` opcode); InplaceNext mutates the
// receiver's own position (the VM's hot-loop fast path).
//
// This is a closed sum type over ArrayIterator, RangeIterator, and
// UserIterator (REDESIGN FLAG: replaces the source's function-pointer
// table with a Go interface and three concrete implementations).
type Iterator interface {
	Object
	Valid() bool
	Current() Value
	Next() Iterator
	InplaceNext()
}

// ArrayIterator walks an Array, holding a strong reference to the
// underlying container plus a current index.
type ArrayIterator struct {
	RefCounted
	arr *Array
	idx int
}

// NewArrayIterator returns an iterator over arr positioned at index 0.
// arr is retained on the iterator's behalf.
func NewArrayIterator(arr *Array) *ArrayIterator {
	arr.Retain()
	return &ArrayIterator{arr: arr, idx: 0}
}

func (it *ArrayIterator) Release() {
	if it.release() {
		it.arr.Release()
	}
}

func (it *ArrayIterator) Valid() bool   { return it.idx < it.arr.Len() }
func (it *ArrayIterator) Current() Value { return it.arr.At(it.idx) }

func (it *ArrayIterator) Next() Iterator {
	it.arr.Retain()
	return &ArrayIterator{arr: it.arr, idx: it.idx + 1}
}

func (it *ArrayIterator) InplaceNext() { it.idx++ }

// RangeIterator walks a Range, holding a strong reference to it plus
// the current value.
type RangeIterator struct {
	RefCounted
	rng *Range
	cur int64
}

// NewRangeIterator returns an iterator over rng positioned at its
// start. rng is retained on the iterator's behalf.
func NewRangeIterator(rng *Range) *RangeIterator {
	rng.Retain()
	return &RangeIterator{rng: rng, cur: rng.Start}
}

func (it *RangeIterator) Release() {
	if it.release() {
		it.rng.Release()
	}
}

func (it *RangeIterator) Valid() bool {
	if it.rng.Step() > 0 {
		return it.cur <= it.rng.End
	}
	return it.cur >= it.rng.End
}

func (it *RangeIterator) Current() Value { return Int(it.cur) }

func (it *RangeIterator) Next() Iterator {
	it.rng.Retain()
	return &RangeIterator{rng: it.rng, cur: it.cur + it.rng.Step()}
}

func (it *RangeIterator) InplaceNext() { it.cur += it.rng.Step() }

// Capability is the interface a host-provided (UserData-backed)
// iterable implements; UserIterator adapts it to the Iterator
// interface.
type Capability interface {
	Valid() bool
	Current() Value
	Next() Capability
	InplaceNext()
	Deinit()
}

// UserIterator wraps a host Capability as an Iterator value.
type UserIterator struct {
	RefCounted
	cap Capability
}

// NewUserIterator wraps cap as an Iterator value.
func NewUserIterator(cap Capability) *UserIterator {
	return &UserIterator{cap: cap}
}

func (it *UserIterator) Release() {
	if it.release() {
		it.cap.Deinit()
	}
}

func (it *UserIterator) Valid() bool    { return it.cap.Valid() }
func (it *UserIterator) Current() Value { return it.cap.Current() }
func (it *UserIterator) Next() Iterator { return &UserIterator{cap: it.cap.Next()} }
func (it *UserIterator) InplaceNext()   { it.cap.InplaceNext() }

// NewIterator constructs the matching iterator for an iterable value
// (Array or Range); it panics if v is not iterable, which the VM
// guards against before calling.
func NewIterator(v Value) Iterator {
	switch {
	case v.IsArray():
		return NewArrayIterator(v.AsArray())
	case v.IsRange():
		return NewRangeIterator(v.AsRange())
	default:
		panic("value: " + v.Type().String() + " is not iterable")
	}
}
