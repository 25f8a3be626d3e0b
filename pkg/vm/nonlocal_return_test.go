package vm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestReturnFromNestedIfExitsFunction verifies a return inside a
// nested if-block unwinds past the block and the loop it sits in,
// stopping the whole function rather than just the innermost scope.
func TestReturnFromNestedIfExitsFunction(t *testing.T) {
	src := `
		fn first_even(n) {
			mut i = 0;
			while (i < n) {
				if (i % 2 == 0) {
					return i;
				}
				i = i + 1;
			}
			return -1;
		}
		return first_even(7);
	`
	result, machine, err := runScript(t, src)
	require.NoError(t, err)
	require.True(t, machine.IsOk())
	assert.Equal(t, int64(0), result.AsInt())
}

// TestReturnFromForeachExitsFunction verifies the same for a foreach
// loop body, the iterator-backed loop form.
func TestReturnFromForeachExitsFunction(t *testing.T) {
	src := `
		fn find_three(r) {
			foreach (x in r) {
				if (x == 3) {
					return x;
				}
			}
			return -1;
		}
		return find_three(1..5);
	`
	result, machine, err := runScript(t, src)
	require.NoError(t, err)
	require.True(t, machine.IsOk())
	assert.Equal(t, int64(3), result.AsInt())
}

// TestReturnInsideCapturedClosureDoesNotEscapeToOuterFunction checks
// that a closure's own return unwinds only the closure's call frame —
// the outer function's locals (including its own captured variable)
// survive the closure call and keep accumulating across calls.
func TestReturnInsideCapturedClosureDoesNotEscapeToOuterFunction(t *testing.T) {
	src := `
		fn make_adder() {
			mut total = 0;
			let add = fn(n) {
				total = total + n;
				return total;
			};
			add(1);
			add(2);
			return add(3);
		}
		return make_adder();
	`
	result, machine, err := runScript(t, src)
	require.NoError(t, err)
	require.True(t, machine.IsOk())
	assert.Equal(t, int64(6), result.AsInt())
}

// TestDeeplyNestedReturnUnwindsOnlyItsOwnFrame checks a return several
// call frames deep only unwinds up to its own frame, leaving the
// callers' results intact as they each return their callee's value upward.
func TestDeeplyNestedReturnUnwindsOnlyItsOwnFrame(t *testing.T) {
	src := `
		fn innermost() { return 7; }
		fn middle() { return innermost() + 1; }
		fn outer() { return middle() + 1; }
		return outer();
	`
	result, machine, err := runScript(t, src)
	require.NoError(t, err)
	require.True(t, machine.IsOk())
	assert.Equal(t, int64(9), result.AsInt())
}
