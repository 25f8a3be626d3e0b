package value

const minStructCapacity = 8

// Struct is a record type: an ordered list of field names backed by
// an open-addressing, linear-probing hash table from name to index so
// IndexOf is O(1) amortized instead of a linear scan. Load factor
// is kept at or below 0.75; capacity is always a power of two >= 8.
type Struct struct {
	RefCounted
	Name    string // optional display name, "" if anonymous
	names   []string
	indices []int32 // open-addressing table; -1 marks an empty slot
}

// NewStruct allocates an empty struct, optionally named.
func NewStruct(name string) *Struct {
	s := &Struct{Name: name}
	s.indices = newProbeTable(minStructCapacity)
	return s
}

// Release decrements the refcount; structs reference only names and
// integers, never values, so no cascade is needed.
func (s *Struct) Release() { s.release() }

// Length returns the number of fields.
func (s *Struct) Length() int { return len(s.names) }

// FieldNames returns the ordered field names.
func (s *Struct) FieldNames() []string { return s.names }

func newProbeTable(capacity int) []int32 {
	t := make([]int32, capacity)
	for i := range t {
		t[i] = -1
	}
	return t
}

func (s *Struct) slot(name string) int {
	capacity := len(s.indices)
	h := int(fnvString(name)) % capacity
	if h < 0 {
		h += capacity
	}
	for {
		idx := s.indices[h]
		if idx == -1 || s.names[idx] == name {
			return h
		}
		h = (h + 1) % capacity
	}
}

func fnvString(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// DefineField appends name as a new field. It returns false (and does
// nothing) if the name already exists.
func (s *Struct) DefineField(name string) bool {
	if s.IndexOf(name) != -1 {
		return false
	}
	if float64(len(s.names)+1) > 0.75*float64(len(s.indices)) {
		s.grow()
	}
	idx := int32(len(s.names))
	s.names = append(s.names, name)
	h := s.slot(name)
	s.indices[h] = idx
	return true
}

func (s *Struct) grow() {
	newCapacity := len(s.indices) * 2
	s.indices = newProbeTable(newCapacity)
	for i, name := range s.names {
		h := s.slot(name)
		s.indices[h] = int32(i)
	}
}

// IndexOf returns the field index for name, or -1 if the struct has
// no such field. The index is stable across lookups.
func (s *Struct) IndexOf(name string) int {
	if len(s.names) == 0 {
		return -1
	}
	h := s.slot(name)
	idx := s.indices[h]
	if idx == -1 {
		return -1
	}
	return int(idx)
}

// Equal reports whether two structs have the same field-name
// sequence (length and identical names, in order).
func (s *Struct) Equal(other *Struct) bool {
	if len(s.names) != len(other.names) {
		return false
	}
	for i, n := range s.names {
		if other.names[i] != n {
			return false
		}
	}
	return true
}
