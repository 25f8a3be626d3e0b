// Package compiler implements a single-pass, Pratt-style compiler:
// there is no separate AST stage — parsing and bytecode emission
// happen together, one token of lookahead at a time (spec.md §4.4).
package compiler

import (
	"fmt"

	"github.com/hooklang/hook/pkg/bytecode"
	"github.com/hooklang/hook/pkg/lexer"
	"github.com/hooklang/hook/pkg/value"
)

// Error is the shared carrier for SyntaxError and CompileError
// (spec.md §7): both are fatal and abort compilation immediately.
type Error struct {
	File    string
	Line    int
	Col     int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Col, e.Message)
}

// Option configures a single Compile call.
type Option func(*Compiler)

// WithAnalyze runs the compiler's full name-resolution pass without
// emitting bytecode — the CLI's --analyze flag (spec.md §4.4, §6.3).
func WithAnalyze() Option { return func(c *Compiler) { c.analyze = true } }

// Compiler holds the parser/codegen state for one Compile call. A new
// Compiler is used per top-level compile; nested functions share it,
// swapping the current funcScope in and out.
type Compiler struct {
	file string
	lex  *lexer.Lexer
	cur  lexer.Token
	peek lexer.Token

	scope   *funcScope
	analyze bool
}

// Compile compiles source into a Closure wrapping a root Function of
// arity 1 (the implicit "args" parameter, spec.md §4.4).
func Compile(file, source string, opts ...Option) (*bytecode.Closure, error) {
	c := &Compiler{file: file, lex: lexer.New(file, source)}
	for _, opt := range opts {
		opt(c)
	}

	proto := bytecode.NewFunction(1, "", file)
	c.scope = newFuncScope(nil, proto)
	c.scope.addLocal("args", false)

	if err := c.advance(); err != nil {
		return nil, err
	}
	if err := c.advance(); err != nil {
		return nil, err
	}

	for c.cur.Type != lexer.TokenEOF {
		if err := c.statement(); err != nil {
			return nil, err
		}
	}

	c.emitOp(bytecode.OpReturnNil, c.cur.Line)
	return bytecode.NewClosure(proto), nil
}

// --- token stream -----------------------------------------------------

func (c *Compiler) advance() error {
	c.cur = c.peek
	tok, err := c.lex.NextToken()
	if err != nil {
		if lexErr, ok := err.(*lexer.LexicalError); ok {
			return &Error{File: lexErr.File, Line: lexErr.Line, Col: lexErr.Col, Message: lexErr.Message}
		}
		return err
	}
	c.peek = tok
	return nil
}

func (c *Compiler) errorf(format string, args ...interface{}) error {
	return &Error{File: c.file, Line: c.cur.Line, Col: c.cur.Col, Message: fmt.Sprintf(format, args...)}
}

func (c *Compiler) check(tt lexer.TokenType) bool { return c.cur.Type == tt }

func (c *Compiler) match(tt lexer.TokenType) (bool, error) {
	if !c.check(tt) {
		return false, nil
	}
	return true, c.advance()
}

func (c *Compiler) expect(tt lexer.TokenType, what string) error {
	if !c.check(tt) {
		return c.errorf("expected %s, got %q", what, c.cur.Literal)
	}
	return c.advance()
}

// --- emission helpers (no-ops in analyze mode) -------------------------

func (c *Compiler) chunk() *bytecode.Chunk { return c.scope.proto.Chunk }

func (c *Compiler) emitOp(op bytecode.Op, line int) int {
	if c.analyze {
		return 0
	}
	return c.chunk().WriteOp(op, line)
}

func (c *Compiler) emitU8(op bytecode.Op, operand byte, line int) int {
	if c.analyze {
		return 0
	}
	return c.chunk().WriteOpU8(op, operand, line)
}

func (c *Compiler) emitU16(op bytecode.Op, operand uint16, line int) int {
	if c.analyze {
		return 0
	}
	return c.chunk().WriteOpU16(op, operand, line)
}

func (c *Compiler) patchJump(pos int) {
	if c.analyze {
		return
	}
	target := len(c.chunk().Code)
	c.chunk().PatchU16(pos, uint16(target))
}

func (c *Compiler) emitConstant(val value.Value, line int) int {
	if c.analyze {
		return 0
	}
	idx := c.chunk().AddConstant(val)
	c.emitU8(bytecode.OpConstant, byte(idx), line)
	return idx
}

// emitString interns s as a constant and emits Constant — used for
// string literal expressions.
func (c *Compiler) emitString(s string, line int) {
	c.emitConstant(value.FromString(value.NewString(s)), line)
}

// nameConstant interns s (a global, field, or module name) without
// emitting a load — the index becomes an opcode operand.
func (c *Compiler) nameConstant(s string) byte {
	if c.analyze {
		return 0
	}
	return byte(c.chunk().AddConstant(value.FromString(value.NewString(s))))
}
