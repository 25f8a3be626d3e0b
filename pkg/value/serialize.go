package value

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// tag bytes identifying which value-layer kind follows; only numbers
// and strings serialize at this layer (spec.md §4.1) — chunks and
// function prototypes compose these two primitives for their own
// constant pools instead of reaching into arbitrary object kinds.
const (
	tagNumber byte = 1
	tagString byte = 2
)

// Serialize writes val to w in the little-endian, host-independent
// wire format. It returns an error if val is not a number or string —
// anything else reaching the constant pool at serialization time is a
// compiler bug (spec.md §4.8).
func Serialize(w io.Writer, val Value) error {
	switch {
	case val.IsNumber():
		if err := writeByte(w, tagNumber); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, math.Float64bits(val.AsNumber()))
	case val.IsString():
		if err := writeByte(w, tagString); err != nil {
			return err
		}
		return serializeString(w, val.AsString())
	default:
		return fmt.Errorf("value: cannot serialize a %s constant", val.Type())
	}
}

// Deserialize reads a value previously written by Serialize.
func Deserialize(r io.Reader) (Value, error) {
	tag, err := readByte(r)
	if err != nil {
		return Value{}, err
	}
	switch tag {
	case tagNumber:
		var bits uint64
		if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
			return Value{}, err
		}
		return Number(math.Float64frombits(bits)), nil
	case tagString:
		s, err := deserializeString(r)
		if err != nil {
			return Value{}, err
		}
		return FromString(s), nil
	default:
		return Value{}, fmt.Errorf("value: unknown constant tag %d", tag)
	}
}

// serializeString writes "u32 capacity · u32 length · bytes · i32
// hash" per spec.md §4.2/§4.8.
func serializeString(w io.Writer, s *String) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(s.Capacity())); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(s.Len())); err != nil {
		return err
	}
	if _, err := w.Write(s.Bytes()); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, int32(s.hash))
}

func deserializeString(r io.Reader) (*String, error) {
	var capacity, length uint32
	if err := binary.Read(r, binary.LittleEndian, &capacity); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, err
	}
	if capacity < minStringCapacity || capacity&(capacity-1) != 0 {
		return nil, fmt.Errorf("value: corrupt string capacity %d", capacity)
	}
	if length > capacity {
		return nil, fmt.Errorf("value: corrupt string length %d exceeds capacity %d", length, capacity)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	var hash int32
	if err := binary.Read(r, binary.LittleEndian, &hash); err != nil {
		return nil, err
	}
	s := &String{hash: hash}
	s.bytes = make([]byte, length, capacity)
	copy(s.bytes, buf)
	return s, nil
}

func writeByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

func readByte(r io.Reader) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}
