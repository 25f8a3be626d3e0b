// Package vm implements the Hook bytecode virtual machine: a
// switch-threaded stack interpreter with an explicit value stack and
// a call-frame stack (spec.md §4.6), plus the embedding surface a
// host program uses to drive it (spec.md §4.7, C7).
//
// Execution pipeline:
//
//	Source -> lexer -> compiler -> *bytecode.Function (wrapped in a
//	*bytecode.Closure) -> VM.Run -> exit value / error
//
// Stack discipline:
//
// Every push onto the value stack that duplicates an existing owning
// reference (a local slot, a capture, a global, a constant-pool
// entry) retains it first; every pop that discards a value releases
// it. Opcodes that hand a value stack-to-stack (Return copying the
// result down to the frame's base slot, assignment's SetLocal leaving
// its operand in place) move ownership without an extra
// retain/release pair. This mirrors the refcount discipline documented
// on pkg/value's heap object types.
package vm

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/rs/zerolog"

	"github.com/hooklang/hook/pkg/bytecode"
	"github.com/hooklang/hook/pkg/value"
)

// Status is the VM's status register after a top-level Run (spec.md
// §4.6 "A status register: Ok, Error(msg, file, line), Exit(code)").
type Status int

const (
	StatusOk Status = iota
	StatusError
	StatusExit
)

// callFrame is one entry in the call-frame stack: the running
// closure, its instruction pointer, and the base index into the value
// stack addressing slot 0 (the callee itself) through slot N (locals)
// — spec.md §4.6.
type callFrame struct {
	closure *bytecode.Closure
	ip      int
	base    int
}

// VM owns one value stack, one call-frame stack, a globals registry,
// and a module cache (spec.md §4.6, §4.9). It is not safe for
// concurrent use by multiple goroutines (spec.md §5).
type VM struct {
	stack []value.Value
	sp    int

	frames    []callFrame
	maxFrames int

	globals map[string]value.Value
	modules *moduleCache

	log    zerolog.Logger
	stdout io.Writer
	stdin  io.Reader
	stderr io.Writer

	stackFault error // set by push/pop on overflow/underflow, drained once per loop iteration

	status   Status
	lastErr  *RuntimeError
	exitCode int
}

// New constructs a VM with the given options applied over the
// defaults: a 1024-slot value stack, a 256-frame call depth, an empty
// globals registry and module cache, a no-op logger, and the
// process's standard streams (spec.md §6.2).
func New(opts ...Option) *VM {
	v := &VM{
		stack:     make([]value.Value, DefaultStackSize),
		maxFrames: DefaultCallDepth,
		globals:   make(map[string]value.Value),
		modules:   newModuleCache(),
		log:       zerolog.Nop(),
		stdout:    os.Stdout,
		stdin:     os.Stdin,
		stderr:    os.Stderr,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Status inspection (spec.md §4.7 "is_ok, is_exit, error_message").
func (v *VM) IsOk() bool          { return v.status == StatusOk }
func (v *VM) IsExit() bool        { return v.status == StatusExit }
func (v *VM) ExitCode() int       { return v.exitCode }
func (v *VM) ErrorMessage() string {
	if v.lastErr == nil {
		return ""
	}
	return v.lastErr.Error()
}

// RegisterGlobal installs a value reachable from Hook source under
// name via the Global opcode (spec.md §4.6 "A registry of globals
// (name -> value) owned by the VM"). The host is expected to do this
// before compiling/running a script (spec.md §6.2); the VM itself
// defines no globals.
func (v *VM) RegisterGlobal(name string, val value.Value) {
	if old, ok := v.globals[name]; ok {
		value.Release(old)
	}
	v.globals[name] = value.Retain(val)
}

// RegisterNative is a convenience wrapper installing a Native
// callable as a global (spec.md §1 "built-in native module" as an
// external collaborator of the embedding interface).
func (v *VM) RegisterNative(name string, arity int, fn bytecode.NativeFunc) {
	v.RegisterGlobal(name, value.FromNative(bytecode.NewNative(name, arity, fn)))
}

// RegisterModule installs a loader for name under the VM-scoped
// module cache (spec.md §4.9).
func (v *VM) RegisterModule(name string, loader ModuleLoader) {
	v.modules.loaders[name] = loader
}

// --- stack primitives --------------------------------------------------

func (v *VM) push(val value.Value) {
	if v.sp >= len(v.stack) {
		v.stackFault = &StackOverflowError{}
		return
	}
	v.stack[v.sp] = val
	v.sp++
}

func (v *VM) pop() value.Value {
	if v.sp <= 0 {
		v.stackFault = fmt.Errorf("vm: stack underflow")
		return value.Nil()
	}
	v.sp--
	return v.stack[v.sp]
}

func (v *VM) peek(distance int) value.Value {
	return v.stack[v.sp-1-distance]
}

// --- embedding entry points ---------------------------------------------

// Run compiles nothing itself: it invokes closure with args (spec.md
// §6.2 "pushes the closure followed by its arguments, and calls"),
// records the outcome on the status register, and returns the same
// result. This is the entry point a CLI or other top-level embedder
// uses; Call is the entry point natives use to invoke Hook callables
// from within a running VM.
func (v *VM) Run(closure *bytecode.Closure, args ...value.Value) (value.Value, error) {
	result, err := v.Call(value.FromClosure(closure), args)
	switch e := err.(type) {
	case nil:
		v.status = StatusOk
		v.lastErr = nil
	case *ExitError:
		v.status = StatusExit
		v.exitCode = e.Code
	case *RuntimeError:
		v.status = StatusError
		v.lastErr = e
	default:
		v.status = StatusError
		v.lastErr = newRuntimeError(err.Error(), "", 0, nil)
	}
	return result, err
}

// Call implements bytecode.NativeVM: it invokes callee (a closure,
// native, or struct-as-constructor) with args and blocks until it
// completes (spec.md §4.7 "call(n) invokes the value at top-n, blocks
// until the call completes... and leaves the single result"). Natives
// use this to call back into Hook code (e.g. a higher-order `map`).
func (v *VM) Call(callee value.Value, args []value.Value) (value.Value, error) {
	switch {
	case callee.IsCallable() && callee.IsNative():
		native := callee.AsCallable().(*bytecode.Native)
		if native.Arity != bytecode.VariadicArity && len(args) != native.Arity {
			return value.Value{}, fmt.Errorf(typeErrorArity(native.Arity, len(args)))
		}
		result, err := native.Call(v, args)
		if err != nil {
			return value.Value{}, err
		}
		return value.Retain(result), nil

	case callee.IsCallable():
		closure := callee.AsCallable().(*bytecode.Closure)
		if len(args) != closure.Arity() {
			return value.Value{}, fmt.Errorf(typeErrorArity(closure.Arity(), len(args)))
		}
		if len(v.frames) >= v.maxFrames {
			return value.Value{}, &CallOverflowError{}
		}
		base := v.sp
		v.push(value.Retain(callee))
		for _, a := range args {
			v.push(value.Retain(a))
		}
		if v.stackFault != nil {
			err := v.stackFault
			v.stackFault = nil
			return value.Value{}, err
		}
		stopDepth := len(v.frames)
		v.frames = append(v.frames, callFrame{closure: closure, ip: 0, base: base})
		v.log.Debug().Str("function", displayName(closure)).Int("depth", len(v.frames)).Msg("call")
		return v.run(stopDepth)

	case callee.IsStruct():
		vals := make([]value.Value, len(args))
		for i, a := range args {
			vals[i] = value.Retain(a)
		}
		st := callee.AsStruct()
		if len(vals) != st.Length() {
			return value.Value{}, fmt.Errorf("expected %d field value(s) but got %d", st.Length(), len(vals))
		}
		inst := value.NewInstance(st, vals)
		return value.Retain(value.FromInstance(inst)), nil

	default:
		return value.Value{}, fmt.Errorf(typeError("callable", callee.Type().String()))
	}
}

func displayName(c *bytecode.Closure) string {
	if c.Proto.Name == "" {
		return "<anonymous>"
	}
	return c.Proto.Name
}

// isControlError reports whether err must pass through a native call
// unwrapped: the control signals ExitRequest, StackOverflow and
// CallOverflow (spec.md §7), and a RuntimeError already raised by a
// nested call.
func isControlError(err error) bool {
	switch err.(type) {
	case *ExitError, *StackOverflowError, *CallOverflowError, *RuntimeError:
		return true
	default:
		return false
	}
}

func typeErrorArity(want, got int) string {
	return fmt.Sprintf("expected %d argument(s) but got %d", want, got)
}

// --- the fetch-decode-execute loop ---------------------------------------

// run executes frames until the call-frame stack shrinks back down to
// stopDepth (the depth it had before the frame that triggered this
// call was pushed), returning the value that frame's Return/ReturnNil
// left on the stack (spec.md §4.6).
func (v *VM) run(stopDepth int) (value.Value, error) {
	for len(v.frames) > stopDepth {
		if v.stackFault != nil {
			err := v.stackFault
			v.stackFault = nil
			return value.Value{}, v.unwind(err)
		}

		frame := &v.frames[len(v.frames)-1]
		chunk := frame.closure.Proto.Chunk
		op := bytecode.Op(chunk.Code[frame.ip])
		frame.ip++

		switch op {

		// --- constants & literals ---------------------------------
		case bytecode.OpNil:
			v.push(value.Nil())
		case bytecode.OpFalse:
			v.push(value.Bool(false))
		case bytecode.OpTrue:
			v.push(value.Bool(true))
		case bytecode.OpInt:
			n := chunk.ReadU16(frame.ip)
			frame.ip += 2
			v.push(value.Int(int64(n)))
		case bytecode.OpConstant:
			idx := int(chunk.ReadU8(frame.ip))
			frame.ip++
			v.push(value.Retain(chunk.Constants.At(idx)))
		case bytecode.OpRange:
			end := v.pop()
			start := v.pop()
			if !start.IsNumber() || !end.IsNumber() {
				return value.Value{}, v.unwind(v.raise(frame, typeError("number", "other")))
			}
			v.push(value.Retain(value.FromRange(value.NewRange(start.AsInt(), end.AsInt()))))
		case bytecode.OpArray:
			n := int(chunk.ReadU8(frame.ip))
			frame.ip++
			v.buildArray(n)
		case bytecode.OpStruct:
			n := int(chunk.ReadU8(frame.ip))
			frame.ip++
			v.buildStruct(n)
		case bytecode.OpInstance, bytecode.OpConstruct:
			n := int(chunk.ReadU8(frame.ip))
			frame.ip++
			if err := v.buildInstance(n, frame); err != nil {
				return value.Value{}, v.unwind(err)
			}
		case bytecode.OpIteratorOp:
			container := v.pop()
			if !container.IsIterable() {
				return value.Value{}, v.unwind(v.raise(frame, typeError("iterable", container.Type().String())))
			}
			it := value.NewIterator(container)
			value.Release(container)
			v.push(value.Retain(value.FromIterator(it)))
		case bytecode.OpClosure:
			childIdx := int(chunk.ReadU8(frame.ip))
			frame.ip++
			child := frame.closure.Proto.Functions[childIdx]
			closure := bytecode.NewClosure(child)
			for i := 0; i < child.NumNonlocals; i++ {
				isLocal := chunk.ReadU8(frame.ip)
				idx := int(chunk.ReadU8(frame.ip + 1))
				frame.ip += 2
				if isLocal == 1 {
					closure.Captures[i] = value.Retain(v.stack[frame.base+idx])
				} else {
					closure.Captures[i] = value.Retain(frame.closure.Captures[idx])
				}
			}
			v.push(value.Retain(value.FromClosure(closure)))

		// --- destructuring -----------------------------------------
		case bytecode.OpUnpackArray:
			n := int(chunk.ReadU8(frame.ip))
			frame.ip++
			arrVal := v.pop()
			if !arrVal.IsArray() {
				return value.Value{}, v.unwind(v.raise(frame, typeError("array", arrVal.Type().String())))
			}
			arr := arrVal.AsArray()
			for i := 0; i < n; i++ {
				if i < arr.Len() {
					v.push(value.Retain(arr.At(i)))
				} else {
					v.push(value.Nil())
				}
			}
			value.Release(arrVal)
		case bytecode.OpUnpackStruct:
			n := int(chunk.ReadU8(frame.ip))
			frame.ip++
			instVal := v.pop()
			if !instVal.IsInstance() {
				return value.Value{}, v.unwind(v.raise(frame, typeError("instance", instVal.Type().String())))
			}
			inst := instVal.AsInstance()
			if n > inst.Len() {
				return value.Value{}, v.unwind(v.raise(frame, "struct has %d field(s), cannot unpack %d", inst.Len(), n))
			}
			for i := 0; i < n; i++ {
				v.push(value.Retain(inst.FieldAt(i)))
			}
			value.Release(instVal)

		// --- variable access -----------------------------------------
		case bytecode.OpPop:
			value.Release(v.pop())
		case bytecode.OpGlobal:
			idx := int(chunk.ReadU8(frame.ip))
			frame.ip++
			name := chunk.Constants.At(idx).AsString().String()
			g, ok := v.globals[name]
			if !ok {
				return value.Value{}, v.unwind(v.raise(frame, "undefined global %q", name))
			}
			v.push(value.Retain(g))
		case bytecode.OpNonLocal:
			idx := int(chunk.ReadU8(frame.ip))
			frame.ip++
			v.push(value.Retain(frame.closure.Captures[idx]))
		case bytecode.OpGetLocal:
			idx := int(chunk.ReadU8(frame.ip))
			frame.ip++
			v.push(value.Retain(v.stack[frame.base+idx]))
		case bytecode.OpSetLocal:
			idx := int(chunk.ReadU8(frame.ip))
			frame.ip++
			slot := frame.base + idx
			if slot != v.sp-1 {
				old := v.stack[slot]
				v.stack[slot] = value.Retain(v.peek(0))
				value.Release(old)
			}

		// --- element access (arrays & strings by index) ---------------
		case bytecode.OpAddElement, bytecode.OpInplaceAddElement:
			if err := v.elementAdd(frame, op == bytecode.OpInplaceAddElement); err != nil {
				return value.Value{}, v.unwind(err)
			}
		case bytecode.OpGetElement:
			val, err := v.elementGet(frame, true)
			if err != nil {
				return value.Value{}, v.unwind(err)
			}
			v.push(val)
		case bytecode.OpFetchElement:
			val, err := v.elementGet(frame, false)
			if err != nil {
				return value.Value{}, v.unwind(err)
			}
			v.push(val)
		case bytecode.OpSetElement:
			if err := v.elementPut(frame, forceMutate); err != nil {
				return value.Value{}, v.unwind(err)
			}
		case bytecode.OpPutElement:
			if err := v.elementPut(frame, alwaysClone); err != nil {
				return value.Value{}, v.unwind(err)
			}
		case bytecode.OpInplacePutElement:
			if err := v.elementPut(frame, ifUnique); err != nil {
				return value.Value{}, v.unwind(err)
			}
		case bytecode.OpDeleteElement, bytecode.OpInplaceDeleteElement:
			if err := v.elementDelete(frame, op == bytecode.OpInplaceDeleteElement); err != nil {
				return value.Value{}, v.unwind(err)
			}

		// --- field access (instances) ----------------------------------
		case bytecode.OpGetField:
			idx := int(chunk.ReadU8(frame.ip))
			frame.ip++
			val, err := v.fieldGet(frame, chunk, idx, true)
			if err != nil {
				return value.Value{}, v.unwind(err)
			}
			v.push(val)
		case bytecode.OpFetchField:
			idx := int(chunk.ReadU8(frame.ip))
			frame.ip++
			val, err := v.fieldGet(frame, chunk, idx, false)
			if err != nil {
				return value.Value{}, v.unwind(err)
			}
			v.push(val)
		case bytecode.OpSetField:
			if err := v.fieldSetDynamic(frame); err != nil {
				return value.Value{}, v.unwind(err)
			}
		case bytecode.OpPutField:
			idx := int(chunk.ReadU8(frame.ip))
			frame.ip++
			if err := v.fieldPut(frame, chunk, idx, alwaysClone); err != nil {
				return value.Value{}, v.unwind(err)
			}
		case bytecode.OpInplacePutField:
			idx := int(chunk.ReadU8(frame.ip))
			frame.ip++
			if err := v.fieldPut(frame, chunk, idx, ifUnique); err != nil {
				return value.Value{}, v.unwind(err)
			}

		// --- iteration -------------------------------------------------
		case bytecode.OpCurrent:
			itVal := v.peek(0)
			if !itVal.IsIterator() {
				return value.Value{}, v.unwind(v.raise(frame, typeError("iterator", itVal.Type().String())))
			}
			v.push(value.Retain(itVal.AsIterator().Current()))
		case bytecode.OpNext:
			itVal := v.pop()
			if !itVal.IsIterator() {
				return value.Value{}, v.unwind(v.raise(frame, typeError("iterator", itVal.Type().String())))
			}
			next := itVal.AsIterator().Next()
			value.Release(itVal)
			v.push(value.Retain(value.FromIterator(next)))
		case bytecode.OpJumpIfNotValid:
			target := chunk.ReadU16(frame.ip)
			frame.ip += 2
			itVal := v.pop()
			if !itVal.IsIterator() {
				return value.Value{}, v.unwind(v.raise(frame, typeError("iterator", itVal.Type().String())))
			}
			it := itVal.AsIterator()
			if !it.Valid() {
				value.Release(itVal)
				frame.ip = int(target)
			} else {
				cur := it.Current()
				value.Release(itVal)
				v.push(value.Retain(cur))
			}

		// --- control flow ------------------------------------------
		case bytecode.OpJump:
			frame.ip = int(chunk.ReadU16(frame.ip))
		case bytecode.OpJumpIfFalse:
			target := chunk.ReadU16(frame.ip)
			frame.ip += 2
			if v.peek(0).IsFalsey() {
				frame.ip = int(target)
			}
		case bytecode.OpJumpIfTrue:
			target := chunk.ReadU16(frame.ip)
			frame.ip += 2
			if v.peek(0).IsTruthy() {
				frame.ip = int(target)
			}
		case bytecode.OpJumpIfFalseOrPop:
			target := chunk.ReadU16(frame.ip)
			frame.ip += 2
			if v.peek(0).IsFalsey() {
				frame.ip = int(target)
			} else {
				value.Release(v.pop())
			}
		case bytecode.OpJumpIfTrueOrPop:
			target := chunk.ReadU16(frame.ip)
			frame.ip += 2
			if v.peek(0).IsTruthy() {
				frame.ip = int(target)
			} else {
				value.Release(v.pop())
			}
		case bytecode.OpJumpIfNotEqual:
			target := chunk.ReadU16(frame.ip)
			frame.ip += 2
			b := v.pop()
			a := v.pop()
			eq := value.Equal(a, b)
			value.Release(a)
			value.Release(b)
			if !eq {
				frame.ip = int(target)
			}

		// --- comparison --------------------------------------------
		case bytecode.OpEqual, bytecode.OpNotEqual:
			b := v.pop()
			a := v.pop()
			eq := value.Equal(a, b)
			value.Release(a)
			value.Release(b)
			if op == bytecode.OpNotEqual {
				eq = !eq
			}
			v.push(value.Bool(eq))
		case bytecode.OpGreater, bytecode.OpLess, bytecode.OpNotGreater, bytecode.OpNotLess:
			b := v.pop()
			a := v.pop()
			ord, err := value.Compare(a, b)
			value.Release(a)
			value.Release(b)
			if err != nil {
				return value.Value{}, v.unwind(v.raise(frame, "%s", err.Error()))
			}
			var result bool
			switch op {
			case bytecode.OpGreater:
				result = ord > 0
			case bytecode.OpLess:
				result = ord < 0
			case bytecode.OpNotGreater:
				result = ord <= 0
			case bytecode.OpNotLess:
				result = ord >= 0
			}
			v.push(value.Bool(result))

		// --- bitwise (integer-valued) --------------------------------
		case bytecode.OpBitwiseOr, bytecode.OpBitwiseXor, bytecode.OpBitwiseAnd,
			bytecode.OpLeftShift, bytecode.OpRightShift:
			b := v.pop()
			a := v.pop()
			if !a.IsInteger() || !b.IsInteger() {
				return value.Value{}, v.unwind(v.raise(frame, typeError("integer", "other")))
			}
			var result int64
			ai, bi := a.AsInt(), b.AsInt()
			switch op {
			case bytecode.OpBitwiseOr:
				result = ai | bi
			case bytecode.OpBitwiseXor:
				result = ai ^ bi
			case bytecode.OpBitwiseAnd:
				result = ai & bi
			case bytecode.OpLeftShift:
				result = ai << uint(bi)
			case bytecode.OpRightShift:
				result = ai >> uint(bi)
			}
			v.push(value.Int(result))
		case bytecode.OpBitwiseNot:
			a := v.pop()
			if !a.IsInteger() {
				return value.Value{}, v.unwind(v.raise(frame, typeError("integer", a.Type().String())))
			}
			v.push(value.Int(^a.AsInt()))

		// --- arithmetic ----------------------------------------------
		case bytecode.OpAdd:
			val, err := v.opAdd(frame)
			if err != nil {
				return value.Value{}, v.unwind(err)
			}
			v.push(val)
		case bytecode.OpSubtract, bytecode.OpMultiply, bytecode.OpDivide:
			b := v.pop()
			a := v.pop()
			if !a.IsNumber() || !b.IsNumber() {
				value.Release(a)
				value.Release(b)
				return value.Value{}, v.unwind(v.raise(frame, typeError("number", "other")))
			}
			x, y := a.AsNumber(), b.AsNumber()
			var result float64
			switch op {
			case bytecode.OpSubtract:
				result = x - y
			case bytecode.OpMultiply:
				result = x * y
			case bytecode.OpDivide:
				if y == 0 {
					return value.Value{}, v.unwind(v.raise(frame, "division by zero"))
				}
				result = x / y
			}
			v.push(value.Number(result))
		case bytecode.OpQuotient, bytecode.OpRemainder:
			b := v.pop()
			a := v.pop()
			if !a.IsNumber() || !b.IsNumber() {
				return value.Value{}, v.unwind(v.raise(frame, typeError("number", "other")))
			}
			if b.AsNumber() == 0 {
				return value.Value{}, v.unwind(v.raise(frame, "division by zero"))
			}
			q := math.Trunc(a.AsNumber() / b.AsNumber())
			if op == bytecode.OpQuotient {
				v.push(value.Number(q))
			} else {
				v.push(value.Number(a.AsNumber() - q*b.AsNumber()))
			}
		case bytecode.OpNegate:
			a := v.pop()
			if !a.IsNumber() {
				return value.Value{}, v.unwind(v.raise(frame, typeError("number", a.Type().String())))
			}
			v.push(value.Number(-a.AsNumber()))
		case bytecode.OpNot:
			a := v.pop()
			truthy := a.IsTruthy()
			value.Release(a)
			v.push(value.Bool(!truthy))
		case bytecode.OpIncrement, bytecode.OpDecrement:
			a := v.pop()
			if !a.IsNumber() {
				return value.Value{}, v.unwind(v.raise(frame, typeError("number", a.Type().String())))
			}
			if op == bytecode.OpIncrement {
				v.push(value.Number(a.AsNumber() + 1))
			} else {
				v.push(value.Number(a.AsNumber() - 1))
			}

		// --- calls & modules -------------------------------------------
		case bytecode.OpCall:
			argc := int(chunk.ReadU8(frame.ip))
			frame.ip++
			if err := v.dispatchCall(argc, frame); err != nil {
				return value.Value{}, v.unwind(err)
			}
		case bytecode.OpLoadModule:
			nameVal := v.pop()
			name := nameVal.AsString().String()
			value.Release(nameVal)
			result, err := v.loadModule(name)
			if err != nil {
				return value.Value{}, v.unwind(v.raise(frame, "%s", err.Error()))
			}
			v.push(result)
		case bytecode.OpReturn:
			result := v.pop()
			for i := frame.base; i < v.sp; i++ {
				value.Release(v.stack[i])
			}
			v.sp = frame.base
			v.push(result)
			v.log.Debug().Str("function", displayName(frame.closure)).Msg("return")
			v.frames = v.frames[:len(v.frames)-1]
		case bytecode.OpReturnNil:
			for i := frame.base; i < v.sp; i++ {
				value.Release(v.stack[i])
			}
			v.sp = frame.base
			v.push(value.Nil())
			v.frames = v.frames[:len(v.frames)-1]

		default:
			return value.Value{}, v.unwind(v.raise(frame, "unknown opcode %d", byte(op)))
		}
	}
	return v.pop(), nil
}

// dispatchCall implements the Call opcode: stack slots [top-n..top]
// are callee + arguments (spec.md §4.6 "Semantics notes").
func (v *VM) dispatchCall(argc int, caller *callFrame) error {
	calleeIdx := v.sp - argc - 1
	if calleeIdx < 0 {
		return v.raise(caller, "call stack corrupt: not enough operands")
	}
	callee := v.stack[calleeIdx]

	switch {
	case callee.IsCallable() && !callee.IsNative():
		closure := callee.AsCallable().(*bytecode.Closure)
		if argc != closure.Arity() {
			return v.raise(caller, typeErrorArity(closure.Arity(), argc))
		}
		if len(v.frames) >= v.maxFrames {
			return &CallOverflowError{}
		}
		v.frames = append(v.frames, callFrame{closure: closure, ip: 0, base: calleeIdx})
		v.log.Debug().Str("function", displayName(closure)).Int("depth", len(v.frames)).Msg("call")
		return nil

	case callee.IsCallable() && callee.IsNative():
		native := callee.AsCallable().(*bytecode.Native)
		if native.Arity != bytecode.VariadicArity && argc != native.Arity {
			return v.raise(caller, typeErrorArity(native.Arity, argc))
		}
		args := make([]value.Value, argc)
		copy(args, v.stack[calleeIdx+1:v.sp])
		result, err := native.Call(v, args)
		for i := calleeIdx; i < v.sp; i++ {
			value.Release(v.stack[i])
		}
		v.sp = calleeIdx
		if err != nil {
			if isControlError(err) {
				return err
			}
			return v.raise(caller, "%s", err.Error())
		}
		v.push(value.Retain(result))
		return nil

	case callee.IsStruct():
		return v.buildInstance(argc, caller)

	default:
		return v.raise(caller, typeError("callable", callee.Type().String()))
	}
}

// buildInstance implements the Instance/Construct opcodes and the
// struct-as-constructor branch of Call: pop a struct and n values,
// push an Instance (spec.md §4.6; SPEC_FULL.md §7 "Struct ... and
// Construct opcode").
func (v *VM) buildInstance(n int, frame *callFrame) error {
	stIdx := v.sp - n - 1
	if stIdx < 0 || !v.stack[stIdx].IsStruct() {
		return v.raise(frame, typeError("struct", "other"))
	}
	stVal := v.stack[stIdx]
	st := stVal.AsStruct()
	if n != st.Length() {
		return v.raise(frame, "expected %d field value(s) but got %d", st.Length(), n)
	}
	vals := make([]value.Value, n)
	copy(vals, v.stack[stIdx+1:v.sp])
	value.Release(stVal)
	inst := value.NewInstance(st, vals)
	v.sp = stIdx
	v.push(value.Retain(value.FromInstance(inst)))
	return nil
}

func (v *VM) buildArray(n int) {
	vals := make([]value.Value, n)
	copy(vals, v.stack[v.sp-n:v.sp])
	v.sp -= n
	arr := value.NewArrayFromValues(vals)
	v.push(value.Retain(value.FromArray(arr)))
}

func (v *VM) buildStruct(n int) {
	fieldsStart := v.sp - n
	fields := make([]string, n)
	for i := 0; i < n; i++ {
		fields[i] = v.stack[fieldsStart+i].AsString().String()
		value.Release(v.stack[fieldsStart+i])
	}
	nameVal := v.stack[fieldsStart-1]
	name := nameVal.AsString().String()
	value.Release(nameVal)
	v.sp = fieldsStart - 1
	st := value.NewStruct(name)
	for _, f := range fields {
		st.DefineField(f)
	}
	v.push(value.Retain(value.FromStruct(st)))
}

// opAdd implements Add's three overloads (spec.md §4.6 "Add on two
// strings concatenates; on arrays, concatenates; on numbers, adds").
func (v *VM) opAdd(frame *callFrame) (value.Value, error) {
	b := v.pop()
	a := v.pop()
	switch {
	case a.IsNumber() && b.IsNumber():
		return value.Number(a.AsNumber() + b.AsNumber()), nil
	case a.IsString() && b.IsString():
		result := value.Concat(a.AsString(), b.AsString())
		value.Release(a)
		value.Release(b)
		return value.Retain(value.FromString(result)), nil
	case a.IsArray() && b.IsArray():
		result := value.Concat2(a.AsArray(), b.AsArray())
		value.Release(a)
		value.Release(b)
		return value.Retain(value.FromArray(result)), nil
	default:
		value.Release(a)
		value.Release(b)
		return value.Value{}, v.raise(frame, typeError("matching numbers, strings, or arrays", "other"))
	}
}

// --- raise / unwind ------------------------------------------------------

// raise builds a RuntimeError anchored at frame's current instruction
// (spec.md §7).
func (v *VM) raise(frame *callFrame, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	file, line := "", 0
	if frame != nil {
		file = frame.closure.Proto.File
		line = frame.closure.Proto.Chunk.LineAt(frame.ip - 1)
	}
	return newRuntimeError(msg, file, line, v.captureFrames())
}

// unwind normalizes err into the shape the embedder observes: control
// signals (ExitError, StackOverflowError, CallOverflowError,
// RuntimeError) pass through unchanged; anything else — a plain Go
// error surfacing from deep inside a helper — is wrapped as a
// RuntimeError at the VM's current top frame (spec.md §7
// "Runtime errors unwind all frames... leave the status register
// observable").
func (v *VM) unwind(err error) error {
	if err == nil || isControlError(err) {
		return err
	}
	var frame *callFrame
	if len(v.frames) > 0 {
		frame = &v.frames[len(v.frames)-1]
	}
	return v.raise(frame, "%s", err.Error())
}

func (v *VM) captureFrames() []StackFrame {
	frames := make([]StackFrame, 0, len(v.frames))
	for _, f := range v.frames {
		frames = append(frames, StackFrame{
			Name:       displayName(f.closure),
			File:       f.closure.Proto.File,
			SourceLine: f.closure.Proto.Chunk.LineAt(f.ip - 1),
		})
	}
	return frames
}
