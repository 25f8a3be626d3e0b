// File format for persisted Function trees (spec.md §4.8, §6.4).
//
// Binary Format Layout (all integers little-endian, host-word-size
// independent):
//
//   [Header]
//     Magic (4 bytes): "HOOK"
//     Version (u32): format version, currently 1
//
//   [Function] (recursive)
//     u32 arity
//     String name
//     String file
//     Chunk
//     u32 n_children
//     Function[n_children]
//     u32 num_nonlocals
//
//   [Chunk]
//     u32 code_len · bytes
//     u32 n_constants · (value-layer Serialize per constant)
//     u32 n_lines · (u32 offset, u32 line)*
//
//   [String] (as used for Function.Name/File, distinct from the
//   value-layer string constant encoding)
//     u32 length · bytes
//
// Deserialization validates lengths against the stream, jump offsets
// against chunk bounds, and constant-pool indices against bounds; any
// failure returns an error and the loader surfaces "unable to load
// bytecode" (spec.md §4.8).
package bytecode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hooklang/hook/pkg/value"
)

const (
	magic         uint32 = 0x4B4F4F48 // written little-endian: the bytes "HOOK"
	formatVersion uint32 = 1
)

// Encode writes fn, recursively, to w in the .hkb wire format.
func Encode(w io.Writer, fn *Function) error {
	if err := binary.Write(w, binary.LittleEndian, magic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, formatVersion); err != nil {
		return err
	}
	return encodeFunction(w, fn)
}

func encodeFunction(w io.Writer, fn *Function) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(fn.Arity)); err != nil {
		return err
	}
	if err := writeRawString(w, fn.Name); err != nil {
		return err
	}
	if err := writeRawString(w, fn.File); err != nil {
		return err
	}
	if err := encodeChunk(w, fn.Chunk); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(fn.Functions))); err != nil {
		return err
	}
	for _, child := range fn.Functions {
		if err := encodeFunction(w, child); err != nil {
			return err
		}
	}
	return binary.Write(w, binary.LittleEndian, uint32(fn.NumNonlocals))
}

func encodeChunk(w io.Writer, c *Chunk) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(c.Code))); err != nil {
		return err
	}
	if _, err := w.Write(c.Code); err != nil {
		return err
	}
	consts := c.Constants.Values()
	if err := binary.Write(w, binary.LittleEndian, uint32(len(consts))); err != nil {
		return err
	}
	for _, v := range consts {
		if err := value.Serialize(w, v); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(c.lines))); err != nil {
		return err
	}
	for _, e := range c.lines {
		if err := binary.Write(w, binary.LittleEndian, uint32(e.offset)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(e.line)); err != nil {
			return err
		}
	}
	return nil
}

func writeRawString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// Decode reads a Function tree previously written by Encode.
func Decode(r io.Reader) (*Function, error) {
	var gotMagic, version uint32
	if err := binary.Read(r, binary.LittleEndian, &gotMagic); err != nil {
		return nil, fmt.Errorf("bytecode: %w", err)
	}
	if gotMagic != magic {
		return nil, fmt.Errorf("bytecode: bad magic number %#x", gotMagic)
	}
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("bytecode: %w", err)
	}
	if version != formatVersion {
		return nil, fmt.Errorf("bytecode: unsupported format version %d", version)
	}
	fn, err := decodeFunction(r)
	if err != nil {
		return nil, fmt.Errorf("bytecode: unable to load bytecode: %w", err)
	}
	return fn, nil
}

func decodeFunction(r io.Reader) (*Function, error) {
	var arity uint32
	if err := binary.Read(r, binary.LittleEndian, &arity); err != nil {
		return nil, err
	}
	name, err := readRawString(r)
	if err != nil {
		return nil, err
	}
	file, err := readRawString(r)
	if err != nil {
		return nil, err
	}
	fn := &Function{Arity: int(arity), Name: name, File: file}
	fn.Chunk, err = decodeChunk(r)
	if err != nil {
		return nil, err
	}
	var nChildren uint32
	if err := binary.Read(r, binary.LittleEndian, &nChildren); err != nil {
		return nil, err
	}
	for i := uint32(0); i < nChildren; i++ {
		child, err := decodeFunction(r)
		if err != nil {
			return nil, err
		}
		fn.Functions = append(fn.Functions, child)
	}
	var numNonlocals uint32
	if err := binary.Read(r, binary.LittleEndian, &numNonlocals); err != nil {
		return nil, err
	}
	fn.NumNonlocals = int(numNonlocals)
	if err := validateJumps(fn); err != nil {
		return nil, err
	}
	return fn, nil
}

func decodeChunk(r io.Reader) (*Chunk, error) {
	var codeLen uint32
	if err := binary.Read(r, binary.LittleEndian, &codeLen); err != nil {
		return nil, err
	}
	code := make([]byte, codeLen)
	if _, err := io.ReadFull(r, code); err != nil {
		return nil, err
	}
	c := &Chunk{Code: code, Constants: value.NewArray(0)}

	var nConsts uint32
	if err := binary.Read(r, binary.LittleEndian, &nConsts); err != nil {
		return nil, err
	}
	for i := uint32(0); i < nConsts; i++ {
		v, err := value.Deserialize(r)
		if err != nil {
			return nil, err
		}
		c.Constants.AddInPlace(v)
	}

	var nLines uint32
	if err := binary.Read(r, binary.LittleEndian, &nLines); err != nil {
		return nil, err
	}
	for i := uint32(0); i < nLines; i++ {
		var offset, line uint32
		if err := binary.Read(r, binary.LittleEndian, &offset); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &line); err != nil {
			return nil, err
		}
		if int(offset) > len(c.Code) {
			return nil, fmt.Errorf("line table offset %d exceeds code length %d", offset, len(c.Code))
		}
		c.lines = append(c.lines, lineEntry{offset: int(offset), line: int(line)})
	}
	return c, nil
}

func readRawString(r io.Reader) (string, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return "", err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// validateJumps walks fn.Chunk's code verifying every jump-family
// opcode's target lies within the chunk and on an instruction
// boundary, and every constant-pool index is in bounds — the
// deserializer's structural sanity check (spec.md §4.8). It takes the
// owning Function, not just its Chunk, because OpClosure's per-capture
// (isLocal, index) byte pairs trail the opcode's own one-byte operand
// and their count (2*NumNonlocals) is only known from the referenced
// child prototype — a plain OperandWidth()-based walk would otherwise
// misread those capture bytes as fresh opcodes.
func validateJumps(fn *Function) error {
	c := fn.Chunk
	boundaries := make(map[int]bool)
	offset := 0
	for offset < len(c.Code) {
		boundaries[offset] = true
		op := Op(c.Code[offset])
		width := op.OperandWidth()
		switch op {
		case OpConstant, OpGlobal:
			idx := int(c.Code[offset+1])
			if idx >= c.Constants.Len() {
				return fmt.Errorf("constant index %d out of bounds at offset %d", idx, offset)
			}
		}
		next := offset + 1 + width
		if op == OpClosure {
			childIdx := int(c.Code[offset+1])
			if childIdx >= len(fn.Functions) {
				return fmt.Errorf("closure child index %d out of bounds at offset %d", childIdx, offset)
			}
			next += 2 * fn.Functions[childIdx].NumNonlocals
		}
		offset = next
	}
	offset = 0
	for offset < len(c.Code) {
		op := Op(c.Code[offset])
		if isJump(op) {
			target := int(c.ReadU16(offset + 1))
			if target < 0 || target > len(c.Code) || (!boundaries[target] && target != len(c.Code)) {
				return fmt.Errorf("jump target %d is not an instruction boundary", target)
			}
		}
		next := offset + 1 + op.OperandWidth()
		if op == OpClosure {
			childIdx := int(c.Code[offset+1])
			next += 2 * fn.Functions[childIdx].NumNonlocals
		}
		offset = next
	}
	return nil
}

func isJump(op Op) bool {
	switch op {
	case OpJump, OpJumpIfFalse, OpJumpIfTrue, OpJumpIfFalseOrPop,
		OpJumpIfTrueOrPop, OpJumpIfNotEqual, OpJumpIfNotValid:
		return true
	default:
		return false
	}
}
