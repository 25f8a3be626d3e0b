package value

import "hash/fnv"

const minStringCapacity = 8

// String is a grow-by-doubling byte buffer with a lazily computed and
// cached FNV-1a hash. Capacity always rounds up to the next power of
// two (minimum 8); the cached hash is invalidated (set to -1) whenever
// the bytes are mutated in place.
type String struct {
	RefCounted
	bytes []byte
	hash  int32
}

// NewString allocates a fresh String holding a copy of s.
func NewString(s string) *String {
	str := &String{}
	str.bytes = make([]byte, len(s), stringCapacityFor(len(s)))
	copy(str.bytes, s)
	str.hash = -1
	return str
}

// NewStringFromBytes allocates a fresh String holding a copy of b.
func NewStringFromBytes(b []byte) *String {
	str := &String{}
	str.bytes = make([]byte, len(b), stringCapacityFor(len(b)))
	copy(str.bytes, b)
	str.hash = -1
	return str
}

func stringCapacityFor(length int) int {
	cap := minStringCapacity
	for cap < length {
		cap *= 2
	}
	return cap
}

// Release decrements the refcount; strings own no sub-values so no
// cascade is needed once they become unreachable.
func (s *String) Release() { s.release() }

// Len returns the number of bytes currently stored.
func (s *String) Len() int { return len(s.bytes) }

// Bytes returns the string's current byte contents. Callers must not
// retain the returned slice past further mutation of s.
func (s *String) Bytes() []byte { return s.bytes }

// String implements fmt.Stringer.
func (s *String) String() string { return string(s.bytes) }

// Capacity returns the buffer's current capacity (power of two >= 8).
func (s *String) Capacity() int { return cap(s.bytes) }

// Hash returns the FNV-1a hash of the string's current bytes,
// computing and caching it on first use after construction or
// mutation.
func (s *String) Hash() uint32 {
	if s.hash == -1 {
		h := fnv.New32a()
		h.Write(s.bytes)
		s.hash = int32(h.Sum32())
	}
	return uint32(s.hash)
}

// ensureCapacity grows the backing array, if necessary, to hold n
// bytes, doubling capacity (never shrinking) until it suffices.
func (s *String) ensureCapacity(n int) {
	if n <= cap(s.bytes) {
		return
	}
	newCap := cap(s.bytes)
	if newCap < minStringCapacity {
		newCap = minStringCapacity
	}
	for newCap < n {
		newCap *= 2
	}
	grown := make([]byte, len(s.bytes), newCap)
	copy(grown, s.bytes)
	s.bytes = grown
}

// Concat returns a fresh String holding the concatenation of a and b.
func Concat(a, b *String) *String {
	out := &String{hash: -1}
	out.bytes = make([]byte, 0, stringCapacityFor(len(a.bytes)+len(b.bytes)))
	out.bytes = append(out.bytes, a.bytes...)
	out.bytes = append(out.bytes, b.bytes...)
	return out
}

// AppendInPlace mutates s by appending b's bytes, invalidating the
// cached hash.
func (s *String) AppendInPlace(b []byte) {
	s.ensureCapacity(len(s.bytes) + len(b))
	s.bytes = append(s.bytes, b...)
	s.hash = -1
}

// Equal compares two strings by bytes.
func (s *String) Equal(other *String) bool {
	if len(s.bytes) != len(other.bytes) {
		return false
	}
	for i := range s.bytes {
		if s.bytes[i] != other.bytes[i] {
			return false
		}
	}
	return true
}

// Compare returns a negative, zero, or positive number as s is
// lexicographically (by byte value) less than, equal to, or greater
// than other.
func (s *String) Compare(other *String) int {
	n := len(s.bytes)
	if len(other.bytes) < n {
		n = len(other.bytes)
	}
	for i := 0; i < n; i++ {
		if s.bytes[i] != other.bytes[i] {
			return int(s.bytes[i]) - int(other.bytes[i])
		}
	}
	return len(s.bytes) - len(other.bytes)
}
