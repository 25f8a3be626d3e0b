package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hooklang/hook/pkg/bytecode"
)

func mustCompile(t *testing.T, src string) *bytecode.Function {
	t.Helper()
	cl, err := Compile("test.hook", src)
	require.NoError(t, err)
	return cl.Proto
}

func ops(fn *bytecode.Function) []bytecode.Op {
	var out []bytecode.Op
	code := fn.Chunk.Code
	for i := 0; i < len(code); {
		op := bytecode.Op(code[i])
		out = append(out, op)
		i += 1 + op.OperandWidth()
		if op == bytecode.OpClosure {
			child := fn.Functions[code[i-1]]
			i += 2 * child.NumNonlocals
		}
	}
	return out
}

func TestCompileIntegerLiteral(t *testing.T) {
	fn := mustCompile(t, "1;")
	assert.Equal(t, []bytecode.Op{bytecode.OpInt, bytecode.OpPop, bytecode.OpReturnNil}, ops(fn))
}

func TestCompileLargeIntegerUsesConstantPool(t *testing.T) {
	fn := mustCompile(t, "100000;")
	assert.Equal(t, []bytecode.Op{bytecode.OpConstant, bytecode.OpPop, bytecode.OpReturnNil}, ops(fn))
	require.Equal(t, 1, fn.Chunk.Constants.Len())
}

func TestCompileStringLiteral(t *testing.T) {
	fn := mustCompile(t, `'hello';`)
	assert.Equal(t, []bytecode.Op{bytecode.OpConstant, bytecode.OpPop, bytecode.OpReturnNil}, ops(fn))
}

func TestCompileBooleanAndNilLiterals(t *testing.T) {
	fn := mustCompile(t, "true; false; nil;")
	assert.Equal(t, []bytecode.Op{
		bytecode.OpTrue, bytecode.OpPop,
		bytecode.OpFalse, bytecode.OpPop,
		bytecode.OpNil, bytecode.OpPop,
		bytecode.OpReturnNil,
	}, ops(fn))
}

// TestOperatorPrecedence exercises spec.md §8's precedence scenarios:
// `1 + 2 * 3` groups as `1 + (2 * 3)`, and parens override it.
func TestOperatorPrecedence(t *testing.T) {
	fn := mustCompile(t, "1 + 2 * 3;")
	assert.Equal(t, []bytecode.Op{
		bytecode.OpInt, bytecode.OpInt, bytecode.OpInt, bytecode.OpMultiply, bytecode.OpAdd,
		bytecode.OpPop, bytecode.OpReturnNil,
	}, ops(fn))
}

func TestParensOverridePrecedence(t *testing.T) {
	fn := mustCompile(t, "(1 + 2) * 3;")
	assert.Equal(t, []bytecode.Op{
		bytecode.OpInt, bytecode.OpInt, bytecode.OpAdd, bytecode.OpInt, bytecode.OpMultiply,
		bytecode.OpPop, bytecode.OpReturnNil,
	}, ops(fn))
}

func TestUnaryAndLogicalPrecedence(t *testing.T) {
	fn := mustCompile(t, "!true && false;")
	assert.Equal(t, []bytecode.Op{
		bytecode.OpTrue, bytecode.OpNot, bytecode.OpJumpIfFalseOrPop, bytecode.OpFalse,
		bytecode.OpPop, bytecode.OpReturnNil,
	}, ops(fn))
}

func TestCompareChainIsLeftAssociative(t *testing.T) {
	// `1 < 2 < 3` parses as `(1 < 2) < 3`, not chained comparison.
	fn := mustCompile(t, "1 < 2 < 3;")
	assert.Equal(t, []bytecode.Op{
		bytecode.OpInt, bytecode.OpInt, bytecode.OpLess, bytecode.OpInt, bytecode.OpLess,
		bytecode.OpPop, bytecode.OpReturnNil,
	}, ops(fn))
}

func TestLetDeclarationEmitsSetLocalAndPop(t *testing.T) {
	fn := mustCompile(t, "let x = 1;")
	assert.Equal(t, []bytecode.Op{
		bytecode.OpInt, bytecode.OpSetLocal, bytecode.OpPop, bytecode.OpReturnNil,
	}, ops(fn))
}

func TestAssignToImmutableLetIsCompileError(t *testing.T) {
	_, err := Compile("test.hook", "let x = 1; x = 2;")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "immutable")
}

func TestAssignToUndeclaredNameIsCompileError(t *testing.T) {
	_, err := Compile("test.hook", "x = 2;")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undeclared")
}

func TestMutAssignmentRoundTrips(t *testing.T) {
	fn := mustCompile(t, "mut x = 1; x = 2;")
	assert.Equal(t, []bytecode.Op{
		bytecode.OpInt, bytecode.OpSetLocal, bytecode.OpPop,
		bytecode.OpInt, bytecode.OpSetLocal, bytecode.OpPop,
		bytecode.OpReturnNil,
	}, ops(fn))
}

func TestCompoundAssignmentDesugarsToFetchModifyStore(t *testing.T) {
	fn := mustCompile(t, "mut x = 1; x += 2;")
	assert.Equal(t, []bytecode.Op{
		bytecode.OpInt, bytecode.OpSetLocal, bytecode.OpPop,
		bytecode.OpGetLocal, bytecode.OpInt, bytecode.OpAdd, bytecode.OpSetLocal, bytecode.OpPop,
		bytecode.OpReturnNil,
	}, ops(fn))
}

func TestRedeclarationInSameScopeIsCompileError(t *testing.T) {
	_, err := Compile("test.hook", "{ let x = 1; let x = 2; }")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redeclaration")
}

func TestIfStatementEmitsExplicitPopOnBothBranches(t *testing.T) {
	fn := mustCompile(t, "if (true) { 1; } else { 2; }")
	assert.Equal(t, []bytecode.Op{
		bytecode.OpTrue, bytecode.OpJumpIfFalse, bytecode.OpPop,
		bytecode.OpInt, bytecode.OpPop,
		bytecode.OpJump, bytecode.OpPop,
		bytecode.OpInt, bytecode.OpPop,
		bytecode.OpReturnNil,
	}, ops(fn))
}

func TestArrayDestructureEmitsUnpackThenDeclares(t *testing.T) {
	fn := mustCompile(t, "let [a, b] = [1, 2];")
	assert.Equal(t, []bytecode.Op{
		bytecode.OpInt, bytecode.OpInt, bytecode.OpArray,
		bytecode.OpUnpackArray,
		bytecode.OpSetLocal, bytecode.OpPop,
		bytecode.OpSetLocal, bytecode.OpPop,
		bytecode.OpReturnNil,
	}, ops(fn))
}

func TestMatchExpressionFallsThroughToNilWithoutDefault(t *testing.T) {
	fn := mustCompile(t, "let r = match (1) { 2 => 'two' };")
	// subject set, arm test (GetLocal, Int, Equal, JumpIfFalse, Pop,
	// Constant, Jump), fallthrough Nil, fold-back SetLocal+Pop, declare.
	assert.Contains(t, ops(fn), bytecode.OpEqual)
	assert.Contains(t, ops(fn), bytecode.OpNil)
}

func TestFunctionLiteralEmitsClosure(t *testing.T) {
	fn := mustCompile(t, "let f = fn(x) { return x; };")
	assert.Equal(t, []bytecode.Op{
		bytecode.OpClosure, bytecode.OpSetLocal, bytecode.OpPop, bytecode.OpReturnNil,
	}, ops(fn))
	require.Len(t, fn.Functions, 1)
	assert.Equal(t, 1, fn.Functions[0].Arity)
}

// TestClosureCapturesEnclosingLocal exercises spec.md §8's closure
// scenario: a nested fn reading a local from its enclosing function
// resolves as a non-local capture, not a fresh global lookup.
func TestClosureCapturesEnclosingLocal(t *testing.T) {
	fn := mustCompile(t, `
		let make = fn() {
			let n = 3;
			return fn() { return n; };
		};
	`)
	inner := fn.Functions[0].Functions[0]
	assert.Contains(t, ops(inner), bytecode.OpNonLocal)
	assert.Equal(t, 1, inner.NumNonlocals)
}

func TestBreakOutsideLoopIsCompileError(t *testing.T) {
	_, err := Compile("test.hook", "break;")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'break' outside a loop")
}

func TestWhileLoopPatchesBreakToExit(t *testing.T) {
	fn := mustCompile(t, "while (true) { break; }")
	assert.Contains(t, ops(fn), bytecode.OpJump)
}

func TestAnalyzeModeEmitsNoBytecode(t *testing.T) {
	cl, err := Compile("test.hook", "let x = 1 + 2;", WithAnalyze())
	require.NoError(t, err)
	assert.Empty(t, cl.Proto.Chunk.Code)
}

func TestStructDeclarationEmitsStructOpcode(t *testing.T) {
	fn := mustCompile(t, `struct Point { x, y }`)
	assert.Contains(t, ops(fn), bytecode.OpStruct)
}

func TestFieldAccessOnLocalEmitsGetField(t *testing.T) {
	fn := mustCompile(t, `
		struct Point { x, y }
		let p = Point;
		p.x;
	`)
	assert.Contains(t, ops(fn), bytecode.OpGetField)
}
