package vm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hooklang/hook/pkg/bytecode"
	"github.com/hooklang/hook/pkg/compiler"
	"github.com/hooklang/hook/pkg/value"
	"github.com/hooklang/hook/pkg/vm"
)

// runScript compiles src and runs it on a fresh VM, returning the
// result value and the VM so callers can assert on status too.
func runScript(t *testing.T, src string) (value.Value, *vm.VM, error) {
	t.Helper()
	closure, err := compiler.Compile("test.hook", src)
	require.NoError(t, err)
	machine := vm.New()
	result, err := machine.Run(closure, value.Retain(value.FromArray(value.NewArray(0))))
	return result, machine, err
}

// TestFactorial is spec.md §8's concrete end-to-end scenario: exit
// code 3628800.
func TestFactorial(t *testing.T) {
	src := `
		fn fact(n) { if (n <= 1) return 1; return n * fact(n - 1); }
		return fact(10);
	`
	result, machine, err := runScript(t, src)
	require.NoError(t, err)
	require.True(t, machine.IsOk())
	require.True(t, result.IsInteger())
	assert.Equal(t, int64(3628800), result.AsInt())
}

// TestClosureCapture is spec.md §8's closure-capture scenario: exit
// code 3 — each call to c() increments the shared, captured i.
func TestClosureCapture(t *testing.T) {
	src := `
		fn make_counter() { mut i = 0; return fn() { i = i + 1; return i; }; }
		let c = make_counter(); c(); c(); return c();
	`
	result, machine, err := runScript(t, src)
	require.NoError(t, err)
	require.True(t, machine.IsOk())
	assert.Equal(t, int64(3), result.AsInt())
}

// TestArrayOps is spec.md §8's array-ops scenario: exit code 14.
func TestArrayOps(t *testing.T) {
	src := `mut a = [3,1,2]; a[1] = 9; return a[0] + a[1] + a[2];`
	result, machine, err := runScript(t, src)
	require.NoError(t, err)
	require.True(t, machine.IsOk())
	assert.Equal(t, int64(14), result.AsInt())
}

func TestArithmeticPrecedence(t *testing.T) {
	result, _, err := runScript(t, `return 1 + 2 * 3;`)
	require.NoError(t, err)
	assert.Equal(t, int64(7), result.AsInt())

	result, _, err = runScript(t, `return (1 + 2) * 3;`)
	require.NoError(t, err)
	assert.Equal(t, int64(9), result.AsInt())
}

func TestStringConcat(t *testing.T) {
	result, _, err := runScript(t, `return "foo" + "bar";`)
	require.NoError(t, err)
	require.True(t, result.IsString())
	assert.Equal(t, "foobar", result.AsString().String())
}

func TestRangeIteration(t *testing.T) {
	src := `
		mut total = 0;
		foreach (x in 1..3) { total = total + x; }
		return total;
	`
	result, _, err := runScript(t, src)
	require.NoError(t, err)
	assert.Equal(t, int64(6), result.AsInt())
}

func TestReverseRangeIteration(t *testing.T) {
	src := `
		mut total = 0;
		foreach (x in 3..1) { total = total + x; }
		return total;
	`
	result, _, err := runScript(t, src)
	require.NoError(t, err)
	assert.Equal(t, int64(6), result.AsInt())
}

func TestStructAndInstance(t *testing.T) {
	src := `
		struct Point { x, y }
		let p = Point(1, 2);
		return p.x + p.y;
	`
	result, _, err := runScript(t, src)
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.AsInt())
}

func TestUndefinedGlobalRaisesRuntimeError(t *testing.T) {
	closure, err := compiler.Compile("test.hook", `return undefined_thing;`)
	require.NoError(t, err)
	machine := vm.New()
	_, err = machine.Run(closure, value.Retain(value.FromArray(value.NewArray(0))))
	require.Error(t, err)
	assert.False(t, machine.IsOk())
}

func TestCallArityMismatchIsRuntimeError(t *testing.T) {
	src := `
		fn one(x) { return x; }
		return one(1, 2);
	`
	closure, err := compiler.Compile("test.hook", src)
	require.NoError(t, err)
	machine := vm.New()
	_, err = machine.Run(closure, value.Retain(value.FromArray(value.NewArray(0))))
	require.Error(t, err)
}

func TestEmbeddingRegisterNative(t *testing.T) {
	machine := vm.New()
	machine.RegisterNative("double", 1, func(v bytecode.NativeVM, args []value.Value) (value.Value, error) {
		if err := vm.CheckNumber(args, 0); err != nil {
			return value.Value{}, err
		}
		return value.Retain(value.Number(args[0].AsNumber() * 2)), nil
	})

	closure, err := compiler.Compile("test.hook", `return double(21);`)
	require.NoError(t, err)
	result, err := machine.Run(closure, value.Retain(value.FromArray(value.NewArray(0))))
	require.NoError(t, err)
	assert.Equal(t, int64(42), result.AsInt())
}

func TestEmbeddingCallbackIntoHookClosure(t *testing.T) {
	machine := vm.New()
	machine.RegisterNative("apply_twice", 2, func(v bytecode.NativeVM, args []value.Value) (value.Value, error) {
		if err := vm.CheckCallable(args, 0); err != nil {
			return value.Value{}, err
		}
		once, err := v.Call(args[0], []value.Value{value.Retain(args[1])})
		if err != nil {
			return value.Value{}, err
		}
		twice, err := v.Call(args[0], []value.Value{once})
		if err != nil {
			return value.Value{}, err
		}
		return twice, nil
	})

	src := `
		fn inc(n) { return n + 1; }
		return apply_twice(inc, 40);
	`
	closure, err := compiler.Compile("test.hook", src)
	require.NoError(t, err)
	result, err := machine.Run(closure, value.Retain(value.FromArray(value.NewArray(0))))
	require.NoError(t, err)
	assert.Equal(t, int64(42), result.AsInt())
}

func TestStackOverflowOnUnboundedRecursion(t *testing.T) {
	src := `
		fn recurse(n) { return recurse(n + 1); }
		return recurse(0);
	`
	closure, err := compiler.Compile("test.hook", src)
	require.NoError(t, err)
	machine := vm.New(vm.WithCallDepth(32))
	_, err = machine.Run(closure, value.Retain(value.FromArray(value.NewArray(0))))
	require.Error(t, err)
	var callOverflow *vm.CallOverflowError
	assert.ErrorAs(t, err, &callOverflow)
}
