// Package bytecode defines the opcode set, the per-function Chunk
// (code + constant pool + line table), and the Function/Closure/
// Native callable objects the compiler emits and the VM executes.
//
// Architecture:
//
// The bytecode is the low-level intermediate representation the Hook
// virtual machine executes. It follows a stack-based model:
//   1. Values are pushed onto and popped from the VM's value stack
//   2. Opcodes consume operands from the stack and push results back
//   3. A Function prototype owns one Chunk plus a tree of nested
//      Function prototypes for any functions declared inside it
//   4. A Closure pairs a prototype with the concrete values its
//      nested functions captured from enclosing scopes
//
// Instruction Format:
//
// Each instruction is one opcode byte followed by zero, one (u8), or
// two (u16) big-endian operand bytes, depending on the opcode — see
// the comment on each Op constant for its operand shape and stack
// effect.
package bytecode

import "github.com/hooklang/hook/pkg/value"

// Op is a single bytecode instruction opcode.
type Op byte

// The opcode set. Each opcode has exactly one canonical effect on the
// value stack; the VM's dispatch loop must match it exactly.
const (
	// Constants and literals
	OpNil Op = iota
	OpFalse
	OpTrue
	OpInt        // u16 immediate, pushed as a Number
	OpConstant   // u8 index into the constant pool
	OpRange      // pops end, start; pushes a Range
	OpArray      // u8 n: pops n values, pushes an Array
	OpStruct     // u8 n: pops n field names, then one more name below them for the struct's own display name; pushes a Struct
	OpInstance   // u8 n: pops a struct and n values, pushes an Instance
	OpConstruct  // u8 n: pops a struct and n values, pushes an Instance built directly
	OpIteratorOp // pops an iterable, pushes its Iterator
	OpClosure    // u8 index of child Function, plus per-capture operands; pushes a Closure

	// Destructuring
	OpUnpackArray  // u8 n: pops an array, pushes its first n elements (padding with nil)
	OpUnpackStruct // u8 n: pops an instance, pushes n field values by struct order

	// Variable access
	OpPop
	OpGlobal   // u8 index of a name constant; pushes the global's value
	OpNonLocal // u8 index into the closure's captures
	OpGetLocal // u8 frame-relative slot
	OpSetLocal // u8 frame-relative slot; stores top without popping

	// Element access (arrays & strings by index)
	OpAddElement
	OpGetElement
	OpFetchElement
	OpSetElement
	OpPutElement
	OpDeleteElement
	OpInplaceAddElement
	OpInplacePutElement
	OpInplaceDeleteElement

	// Field access (instances)
	OpGetField   // u8 constant index of the field name
	OpFetchField // u8 constant index of the field name
	OpSetField
	OpPutField        // u8 constant index of the field name
	OpInplacePutField // u8 constant index of the field name

	// Iteration
	OpCurrent
	OpNext
	OpJumpIfNotValid // u16 target

	// Control flow
	OpJump             // u16 target
	OpJumpIfFalse      // u16 target
	OpJumpIfTrue       // u16 target
	OpJumpIfFalseOrPop // u16 target
	OpJumpIfTrueOrPop  // u16 target
	OpJumpIfNotEqual   // u16 target

	// Comparison
	OpEqual
	OpGreater
	OpLess
	OpNotEqual
	OpNotGreater
	OpNotLess

	// Bitwise (integer-valued)
	OpBitwiseOr
	OpBitwiseXor
	OpBitwiseAnd
	OpLeftShift
	OpRightShift
	OpBitwiseNot

	// Arithmetic
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpQuotient
	OpRemainder
	OpNegate
	OpNot
	OpIncrement
	OpDecrement

	// Calls & modules
	OpCall // u8 argument count
	OpLoadModule
	OpReturn
	OpReturnNil
)

var opNames = [...]string{
	OpNil: "NIL", OpFalse: "FALSE", OpTrue: "TRUE", OpInt: "INT",
	OpConstant: "CONSTANT", OpRange: "RANGE", OpArray: "ARRAY",
	OpStruct: "STRUCT", OpInstance: "INSTANCE", OpConstruct: "CONSTRUCT",
	OpIteratorOp: "ITERATOR", OpClosure: "CLOSURE",
	OpUnpackArray: "UNPACK_ARRAY", OpUnpackStruct: "UNPACK_STRUCT",
	OpPop: "POP", OpGlobal: "GLOBAL", OpNonLocal: "NONLOCAL",
	OpGetLocal: "GET_LOCAL", OpSetLocal: "SET_LOCAL",
	OpAddElement: "ADD_ELEMENT", OpGetElement: "GET_ELEMENT",
	OpFetchElement: "FETCH_ELEMENT", OpSetElement: "SET_ELEMENT",
	OpPutElement: "PUT_ELEMENT", OpDeleteElement: "DELETE_ELEMENT",
	OpInplaceAddElement: "INPLACE_ADD_ELEMENT", OpInplacePutElement: "INPLACE_PUT_ELEMENT",
	OpInplaceDeleteElement: "INPLACE_DELETE_ELEMENT",
	OpGetField: "GET_FIELD", OpFetchField: "FETCH_FIELD", OpSetField: "SET_FIELD",
	OpPutField: "PUT_FIELD", OpInplacePutField: "INPLACE_PUT_FIELD",
	OpCurrent: "CURRENT", OpNext: "NEXT", OpJumpIfNotValid: "JUMP_IF_NOT_VALID",
	OpJump: "JUMP", OpJumpIfFalse: "JUMP_IF_FALSE", OpJumpIfTrue: "JUMP_IF_TRUE",
	OpJumpIfFalseOrPop: "JUMP_IF_FALSE_OR_POP", OpJumpIfTrueOrPop: "JUMP_IF_TRUE_OR_POP",
	OpJumpIfNotEqual: "JUMP_IF_NOT_EQUAL",
	OpEqual:          "EQUAL", OpGreater: "GREATER", OpLess: "LESS",
	OpNotEqual: "NOT_EQUAL", OpNotGreater: "NOT_GREATER", OpNotLess: "NOT_LESS",
	OpBitwiseOr: "BITWISE_OR", OpBitwiseXor: "BITWISE_XOR", OpBitwiseAnd: "BITWISE_AND",
	OpLeftShift: "LEFT_SHIFT", OpRightShift: "RIGHT_SHIFT", OpBitwiseNot: "BITWISE_NOT",
	OpAdd: "ADD", OpSubtract: "SUBTRACT", OpMultiply: "MULTIPLY", OpDivide: "DIVIDE",
	OpQuotient: "QUOTIENT", OpRemainder: "REMAINDER", OpNegate: "NEGATE", OpNot: "NOT",
	OpIncrement: "INCREMENT", OpDecrement: "DECREMENT",
	OpCall: "CALL", OpLoadModule: "LOAD_MODULE", OpReturn: "RETURN", OpReturnNil: "RETURN_NIL",
}

// String returns the opcode's mnemonic, used by the disassembler.
func (op Op) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return "UNKNOWN"
}

// OperandWidth reports how many operand bytes follow the opcode: 0, 1
// (u8), or 2 (u16). OpClosure's own operand is a single byte (the
// child-function index); the per-capture (isLocal, index) byte pairs
// that follow it are not part of this width — the VM and the
// disassembler both advance past them explicitly once they know how
// many captures the referenced child prototype declares.
func (op Op) OperandWidth() int {
	switch op {
	case OpInt,
		OpJumpIfNotValid, OpJump, OpJumpIfFalse, OpJumpIfTrue,
		OpJumpIfFalseOrPop, OpJumpIfTrueOrPop, OpJumpIfNotEqual:
		return 2
	case OpConstant, OpArray, OpStruct, OpInstance, OpConstruct,
		OpUnpackArray, OpUnpackStruct, OpGlobal, OpNonLocal,
		OpGetLocal, OpSetLocal, OpGetField, OpFetchField, OpPutField,
		OpInplacePutField, OpCall, OpClosure:
		return 1
	default:
		return 0
	}
}

// lineEntry is one checkpoint in a Chunk's line table: the code
// records a new entry only when the line number changes from the
// previous entry's (spec.md §4.2), so lookups are O(entries) in
// practice even though they are linear scans.
type lineEntry struct {
	offset int
	line   int
}

// Chunk is a self-contained buffer of bytecode plus its constant pool
// and line table, one per Function prototype. It is append-only
// during compilation and immutable thereafter.
type Chunk struct {
	Code      []byte
	Constants *value.Array
	lines     []lineEntry
}

// NewChunk allocates an empty chunk with its own constant pool.
func NewChunk() *Chunk {
	return &Chunk{Constants: value.NewArray(0)}
}

// WriteByte appends a single raw byte at the given source line.
func (c *Chunk) WriteByte(b byte, line int) {
	c.recordLine(line)
	c.Code = append(c.Code, b)
}

// WriteOp appends an opcode (no operand) at the given source line,
// returning the offset it was written at.
func (c *Chunk) WriteOp(op Op, line int) int {
	pos := len(c.Code)
	c.WriteByte(byte(op), line)
	return pos
}

// WriteOpU8 appends an opcode with a one-byte operand.
func (c *Chunk) WriteOpU8(op Op, operand byte, line int) int {
	pos := c.WriteOp(op, line)
	c.WriteByte(operand, line)
	return pos
}

// WriteOpU16 appends an opcode with a two-byte big-endian operand.
func (c *Chunk) WriteOpU16(op Op, operand uint16, line int) int {
	pos := c.WriteOp(op, line)
	c.WriteByte(byte(operand>>8), line)
	c.WriteByte(byte(operand), line)
	return pos
}

// PatchU16 overwrites the two operand bytes following the opcode at
// pos (pos is the opcode's own offset) — used to backpatch forward
// jumps once their target is known.
func (c *Chunk) PatchU16(pos int, operand uint16) {
	c.Code[pos+1] = byte(operand >> 8)
	c.Code[pos+2] = byte(operand)
}

// ReadU8 reads the one-byte operand at offset.
func (c *Chunk) ReadU8(offset int) byte { return c.Code[offset] }

// ReadU16 reads the two-byte big-endian operand at offset.
func (c *Chunk) ReadU16(offset int) uint16 {
	return uint16(c.Code[offset])<<8 | uint16(c.Code[offset+1])
}

func (c *Chunk) recordLine(line int) {
	if len(c.lines) > 0 && c.lines[len(c.lines)-1].line == line {
		return
	}
	c.lines = append(c.lines, lineEntry{offset: len(c.Code), line: line})
}

// LineAt returns the source line of the instruction at the given code
// offset: the line of the most recent entry whose offset is <= the
// argument (spec.md §4.2, §8.5).
func (c *Chunk) LineAt(offset int) int {
	line := 0
	for _, e := range c.lines {
		if e.offset > offset {
			break
		}
		line = e.line
	}
	return line
}

// AddConstant interns val into the constant pool, returning its
// index. Numeric and string constants already present are reused
// (spec.md §4.4 "constant interning").
func (c *Chunk) AddConstant(val value.Value) int {
	for i, existing := range c.Constants.Values() {
		if existing.Type() != val.Type() {
			continue
		}
		if value.Equal(existing, val) {
			return i
		}
	}
	c.Constants.AddInPlace(value.Retain(val))
	return c.Constants.Len() - 1
}
