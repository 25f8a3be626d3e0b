package vm_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hooklang/hook/pkg/bytecode"
	"github.com/hooklang/hook/pkg/compiler"
	"github.com/hooklang/hook/pkg/value"
	"github.com/hooklang/hook/pkg/vm"
)

// TestStackTraceOnError checks that a runtime error surfaces the
// offending message and file/line (spec.md §7 "Runtime errors...
// carries message plus source file/line of the offending
// instruction").
func TestStackTraceOnError(t *testing.T) {
	src := `
		mut x = 10;
		mut y = 0;
		return x / y;
	`
	closure, err := compiler.Compile("trace.hook", src)
	require.NoError(t, err)
	machine := vm.New()
	_, err = machine.Run(closure, value.Retain(value.FromArray(value.NewArray(0))))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "division by zero")
	assert.Contains(t, err.Error(), "trace.hook")
	assert.False(t, machine.IsOk())
	assert.Contains(t, machine.ErrorMessage(), "division by zero")
}

// TestStackTraceThroughNestedCalls checks the captured frame stack
// names every enclosing call, innermost first in the error text, when
// an error originates several calls deep.
func TestStackTraceThroughNestedCalls(t *testing.T) {
	src := `
		fn c() { return 1 / 0; }
		fn b() { return c(); }
		fn a() { return b(); }
		return a();
	`
	closure, err := compiler.Compile("nested.hook", src)
	require.NoError(t, err)
	machine := vm.New()
	_, err = machine.Run(closure, value.Retain(value.FromArray(value.NewArray(0))))
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "division by zero")
	for _, name := range []string{"a", "b", "c"} {
		assert.True(t, strings.Contains(msg, name), "expected frame %q in trace: %s", name, msg)
	}
}

// TestTypeErrorPhrasing checks the standard TypeError wording spec.md
// §7 mandates: "type error: expected <T> but got <Actual>".
func TestTypeErrorPhrasing(t *testing.T) {
	src := `return "str" - 1;`
	closure, err := compiler.Compile("type.hook", src)
	require.NoError(t, err)
	machine := vm.New()
	_, err = machine.Run(closure, value.Retain(value.FromArray(value.NewArray(0))))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "type error: expected")
}

// TestExitRequestReportsCode verifies ExitError short-circuits status
// to StatusExit with the requested code rather than StatusError.
func TestExitRequestReportsCode(t *testing.T) {
	machine := vm.New()
	machine.RegisterNative("exit", 1, func(v bytecode.NativeVM, args []value.Value) (value.Value, error) {
		return value.Value{}, &vm.ExitError{Code: int(args[0].AsInt())}
	})
	closure, err := compiler.Compile("exit.hook", `exit(7); return 0;`)
	require.NoError(t, err)
	_, err = machine.Run(closure, value.Retain(value.FromArray(value.NewArray(0))))
	require.Error(t, err)
	assert.True(t, machine.IsExit())
	assert.Equal(t, 7, machine.ExitCode())
}
