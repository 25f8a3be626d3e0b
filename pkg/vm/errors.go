// Package vm - error handling with stack traces.
package vm

import (
	"fmt"
	"strings"
)

// StackFrame is a single frame in the call stack captured when a
// runtime error unwinds (spec.md §4.6 "Error propagation").
type StackFrame struct {
	Name       string // closure/native name, "<anonymous>" if unnamed
	File       string
	SourceLine int
}

// RuntimeError is a VM or native failure, recoverable at the
// embedding boundary (spec.md §7). It carries the offending
// instruction's source file/line plus the frame stack at the moment
// the error was raised.
type RuntimeError struct {
	Message string
	File    string
	Line    int
	Frames  []StackFrame
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:%d: %s", e.File, e.Line, e.Message)
	for i := len(e.Frames) - 1; i >= 0; i-- {
		f := e.Frames[i]
		fmt.Fprintf(&b, "\n  at %s (%s:%d)", f.Name, f.File, f.SourceLine)
	}
	return b.String()
}

func newRuntimeError(message, file string, line int, frames []StackFrame) *RuntimeError {
	return &RuntimeError{Message: message, File: file, Line: line, Frames: frames}
}

// typeError formats the standard TypeError phrasing (spec.md §7):
// "type error: expected <T> but got <Actual>".
func typeError(want, got string) string {
	return fmt.Sprintf("type error: expected %s but got %s", want, got)
}

// ExitError is raised by an ExitRequest — a native asking the host to
// terminate with a specific exit code (spec.md §7).
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string { return fmt.Sprintf("exit(%d)", e.Code) }

// StackOverflowError signals the value stack grew beyond its
// configured maximum height (spec.md §4.6).
type StackOverflowError struct{}

func (e *StackOverflowError) Error() string { return "stack overflow" }

// CallOverflowError signals the call-frame stack grew beyond its
// configured maximum depth — too-deep recursion (spec.md §7).
type CallOverflowError struct{}

func (e *CallOverflowError) Error() string { return "call stack overflow" }
