package compiler

import "github.com/hooklang/hook/pkg/bytecode"

// local is a single lexical binding within a function scope: its
// source name, the block-scope depth it was declared at, and whether
// it was declared with mut (spec.md §4.4 "Mutability").
type local struct {
	name     string
	depth    int
	mutable  bool
	captured bool
}

// loopScope tracks the patch sites a break/continue inside the
// innermost loop must backfill once the loop's bounds are known
// (spec.md §4.4 "Loops & control flow").
type loopScope struct {
	breakJumps  []int // Jump instruction offsets to patch to the loop's exit
	continueTo  int   // offset continue should jump to (the loop's increment/condition point)
	scopeDepth  int   // scope depth at loop entry, so break pops the right locals
}

// funcScope is one FunctionCompiler frame: the state for a single
// nested function currently being compiled (spec.md §4.4).
type funcScope struct {
	enclosing  *funcScope
	proto      *bytecode.Function
	locals     []local
	scopeDepth int
	nonlocals  []bytecode.CaptureSource
	loops      []loopScope
}

func newFuncScope(enclosing *funcScope, proto *bytecode.Function) *funcScope {
	fs := &funcScope{enclosing: enclosing, proto: proto}
	// Slot 0 is reserved for the callee itself (spec.md §4.6 "base
	// index addressing slot 0"); it is never source-visible.
	fs.locals = append(fs.locals, local{name: "", depth: 0, mutable: false})
	return fs
}

func (fs *funcScope) addLocal(name string, mutable bool) int {
	fs.locals = append(fs.locals, local{name: name, depth: fs.scopeDepth, mutable: mutable})
	return len(fs.locals) - 1
}

// resolveLocal returns the slot index of name in this scope, or -1.
func (fs *funcScope) resolveLocal(name string) int {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i].name == name {
			return i
		}
	}
	return -1
}

// addNonlocal records (or reuses) a capture of the given source,
// returning its index into this scope's non-local vector.
func (fs *funcScope) addNonlocal(src bytecode.CaptureSource) int {
	for i, nl := range fs.nonlocals {
		if nl == src {
			return i
		}
	}
	fs.nonlocals = append(fs.nonlocals, src)
	fs.proto.NumNonlocals = len(fs.nonlocals)
	return len(fs.nonlocals) - 1
}

// resolveNonlocal resolves name as a capture of an enclosing
// function's local (or its own non-local), recursing outward and
// marking the enclosing local captured along the way. Returns -1 if
// name isn't bound in any enclosing scope.
func (fs *funcScope) resolveNonlocal(name string) int {
	if fs.enclosing == nil {
		return -1
	}
	if idx := fs.enclosing.resolveLocal(name); idx != -1 {
		fs.enclosing.locals[idx].captured = true
		return fs.addNonlocal(bytecode.CaptureSource{IsLocal: true, Index: idx})
	}
	if idx := fs.enclosing.resolveNonlocal(name); idx != -1 {
		return fs.addNonlocal(bytecode.CaptureSource{IsLocal: false, Index: idx})
	}
	return -1
}

func (fs *funcScope) beginScope() { fs.scopeDepth++ }

// endScope pops every local declared at the scope just closed,
// emitting Pop for each (unless analyze mode suppresses emission),
// and returns how many were popped.
func (fs *funcScope) endScope(c *Compiler, line int) int {
	fs.scopeDepth--
	n := 0
	for len(fs.locals) > 0 && fs.locals[len(fs.locals)-1].depth > fs.scopeDepth {
		fs.locals = fs.locals[:len(fs.locals)-1]
		c.emitOp(bytecode.OpPop, line)
		n++
	}
	return n
}
