package bytecode_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hooklang/hook/pkg/bytecode"
	"github.com/hooklang/hook/pkg/compiler"
	"github.com/hooklang/hook/pkg/value"
)

// roundTrip encodes fn and decodes it back, failing the test on error.
func roundTrip(t *testing.T, fn *bytecode.Function) *bytecode.Function {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, bytecode.Encode(&buf, fn))
	out, err := bytecode.Decode(&buf)
	require.NoError(t, err)
	return out
}

func TestEncodeDecodeEmptyFunction(t *testing.T) {
	fn := bytecode.NewFunction(1, "", "test.hook")
	out := roundTrip(t, fn)
	assert.Equal(t, fn.Arity, out.Arity)
	assert.Equal(t, fn.Name, out.Name)
	assert.Equal(t, fn.File, out.File)
	assert.Empty(t, out.Chunk.Code)
}

func TestEncodeDecodePreservesCodeConstantsAndLines(t *testing.T) {
	cl, err := compiler.Compile("test.hook", "let x = 100000 + 'y';")
	require.NoError(t, err)
	fn := cl.Proto

	out := roundTrip(t, fn)
	assert.Equal(t, fn.Chunk.Code, out.Chunk.Code)
	assert.Equal(t, fn.Chunk.Constants.Len(), out.Chunk.Constants.Len())
	for i := 0; i < fn.Chunk.Constants.Len(); i++ {
		assert.True(t, value.Equal(fn.Chunk.Constants.At(i), out.Chunk.Constants.At(i)))
	}
	for i := 0; i < len(fn.Chunk.Code); i++ {
		assert.Equal(t, fn.Chunk.LineAt(i), out.Chunk.LineAt(i), "line mismatch at offset %d", i)
	}
}

// TestEncodeDecodeClosureWithCaptures exercises the fix to
// validateJumps: a chunk containing an OpClosure whose child captures
// non-locals must round-trip, and a trailing jump inside the outer
// function must still validate correctly despite the capture bytes
// that precede it in the instruction stream.
func TestEncodeDecodeClosureWithCaptures(t *testing.T) {
	cl, err := compiler.Compile("test.hook", `
		let make = fn() {
			let n = 3;
			if (n > 0) {
				return fn() { return n; };
			}
			return nil;
		};
	`)
	require.NoError(t, err)
	fn := cl.Proto.Functions[0] // "make"
	require.Equal(t, 1, len(fn.Functions))
	require.Equal(t, 1, fn.Functions[0].NumNonlocals)

	out := roundTrip(t, cl.Proto)
	outMake := out.Functions[0]
	assert.Equal(t, fn.Chunk.Code, outMake.Chunk.Code)
	require.Len(t, outMake.Functions, 1)
	assert.Equal(t, 1, outMake.Functions[0].NumNonlocals)
}

func TestEncodeDecodeNestedFunctions(t *testing.T) {
	cl, err := compiler.Compile("test.hook", `
		let outer = fn() {
			let inner = fn(x) { return x; };
			return inner(1);
		};
	`)
	require.NoError(t, err)
	out := roundTrip(t, cl.Proto)
	require.Len(t, out.Functions, 1)
	require.Len(t, out.Functions[0].Functions, 1)
	assert.Equal(t, 1, out.Functions[0].Functions[0].Arity)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	_, err := bytecode.Decode(bytes.NewReader([]byte{0, 0, 0, 0}))
	require.Error(t, err)
}

func TestDecodeRejectsTruncatedStream(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, bytecode.Encode(&buf, bytecode.NewFunction(1, "", "test.hook")))
	truncated := buf.Bytes()[:buf.Len()-2]
	_, err := bytecode.Decode(bytes.NewReader(truncated))
	require.Error(t, err)
}

func TestDecodeRejectsCorruptLineTableOffset(t *testing.T) {
	fn := bytecode.NewFunction(1, "", "test.hook")
	fn.Chunk.WriteOp(bytecode.OpNil, 1)
	var buf bytes.Buffer
	require.NoError(t, bytecode.Encode(&buf, fn))
	corrupt := buf.Bytes()
	// The line table's single offset entry sits in the final bytes of
	// the encoded chunk, ahead of the function's n_children and
	// num_nonlocals words; bump it past the code length.
	corrupt[len(corrupt)-16] = 0xFF
	_, err := bytecode.Decode(bytes.NewReader(corrupt))
	require.Error(t, err)
}
