package bytecode

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/hooklang/hook/pkg/value"
)

// Dump writes a human-readable disassembly of fn's chunk to w,
// preceded by a summary of the compiled program's footprint, then
// grouping instructions by source line using the chunk's line table
// and recursively dumping every nested function prototype. This is
// the implementation behind the CLI's --dump option (spec.md §4.6
// "Dumping", §6.3).
func Dump(w io.Writer, fn *Function) {
	codeBytes, constants := programSize(fn)
	fmt.Fprintf(w, "%s of bytecode, %s constants\n\n",
		humanize.Bytes(uint64(codeBytes)), humanize.Comma(int64(constants)))
	dumpFunction(w, fn, 0)
}

func programSize(fn *Function) (codeBytes, constants int) {
	codeBytes = len(fn.Chunk.Code)
	constants = fn.Chunk.Constants.Len()
	for _, child := range fn.Functions {
		cb, cc := programSize(child)
		codeBytes += cb
		constants += cc
	}
	return codeBytes, constants
}

func dumpFunction(w io.Writer, fn *Function, depth int) {
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	name := fn.Name
	if name == "" {
		name = "<main>"
	}
	fmt.Fprintf(w, "%sfunction %s/%d (%s)\n", indent, name, fn.Arity, fn.File)

	chunk := fn.Chunk
	offset := 0
	lastLine := -1
	for offset < len(chunk.Code) {
		line := chunk.LineAt(offset)
		lineLabel := "   |"
		if line != lastLine {
			lineLabel = fmt.Sprintf("%4d", line)
			lastLine = line
		}
		op := Op(chunk.Code[offset])
		fmt.Fprintf(w, "%s%04d %s %s", indent, offset, lineLabel, op)
		switch op.OperandWidth() {
		case 1:
			operand := chunk.ReadU8(offset + 1)
			fmt.Fprintf(w, " %d", operand)
			if op == OpConstant {
				fmt.Fprintf(w, "  ; %s", value.Format(chunk.Constants.At(int(operand)), true))
			}
		case 2:
			operand := chunk.ReadU16(offset + 1)
			fmt.Fprintf(w, " %d", operand)
		}
		fmt.Fprintln(w)
		instrOffset := offset
		offset += 1 + op.OperandWidth()
		if op == OpClosure {
			// Closure instructions carry num_nonlocals extra (isLocal,
			// index) byte pairs the disassembler skips explicitly so
			// offsets stay in sync with the VM's own advance.
			childIdx := chunk.ReadU8(instrOffset + 1)
			if int(childIdx) < len(fn.Functions) {
				offset += 2 * fn.Functions[childIdx].NumNonlocals
			}
		}
	}
	fmt.Fprintln(w)
	for _, child := range fn.Functions {
		dumpFunction(w, child, depth+1)
	}
}
