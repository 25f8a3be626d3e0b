package vm

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/hooklang/hook/pkg/value"
)

// DefaultStackSize is the value stack's height when no WithStackSize
// option is given (spec.md §4.6 "default 1024").
const DefaultStackSize = 1024

// DefaultCallDepth bounds the call-frame stack; exceeding it raises
// CallOverflowError rather than growing without limit.
const DefaultCallDepth = 256

// Option configures a VM at construction (spec.md §6.2 "host
// constructs a VM with a configured stack height").
type Option func(*VM)

// WithStackSize overrides the value stack's maximum height.
func WithStackSize(n int) Option {
	return func(v *VM) { v.stack = make([]value.Value, n) }
}

// WithCallDepth overrides the call-frame stack's maximum depth.
func WithCallDepth(n int) Option {
	return func(v *VM) { v.maxFrames = n }
}

// WithLogger attaches a zerolog.Logger the VM uses for Debug-level
// frame push/pop and module-cache tracing (SPEC_FULL.md §5.1). A VM
// built without this option logs nothing (zerolog.Nop()).
func WithLogger(log zerolog.Logger) Option {
	return func(v *VM) { v.log = log }
}

// WithStdout overrides the writer natives print to.
func WithStdout(w io.Writer) Option { return func(v *VM) { v.stdout = w } }

// WithStdin overrides the reader natives read from.
func WithStdin(r io.Reader) Option { return func(v *VM) { v.stdin = r } }

// WithStderr overrides the writer natives report diagnostics to.
func WithStderr(w io.Writer) Option { return func(v *VM) { v.stderr = w } }
