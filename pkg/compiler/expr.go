package compiler

import (
	"strconv"

	"github.com/hooklang/hook/pkg/bytecode"
	"github.com/hooklang/hook/pkg/lexer"
	"github.com/hooklang/hook/pkg/value"
)

// Operator precedence, lowest to highest (spec.md §4.4 "Operator
// precedence"). Assignment binds lowest of all and is handled inline
// by the identifier/index/field parslets, clox-style, rather than as
// its own table entry.
type precedence int

const (
	precNone precedence = iota
	precAssignment
	precOr
	precAnd
	precBitOr
	precBitXor
	precBitAnd
	precEquality
	precCompare
	precShift
	precTerm
	precFactor
	precUnary
	precCall
	precPrimary
)

// infixRule is keyed by token; every entry here is left-associative,
// so parseInfix always recurses at rule.prec+1 (spec.md §4.4's table
// lists no right-associative binary operator).
type infixRule struct {
	prec precedence
}

var infixRules = map[lexer.TokenType]infixRule{
	lexer.TokenOr:         {precOr},
	lexer.TokenAnd:        {precAnd},
	lexer.TokenPipe:       {precBitOr},
	lexer.TokenCaret:      {precBitXor},
	lexer.TokenAmp:        {precBitAnd},
	lexer.TokenEq:         {precEquality},
	lexer.TokenNotEq:      {precEquality},
	lexer.TokenLess:       {precCompare},
	lexer.TokenLessEq:     {precCompare},
	lexer.TokenGreater:    {precCompare},
	lexer.TokenGreaterEq:  {precCompare},
	lexer.TokenShl:        {precShift},
	lexer.TokenShr:        {precShift},
	lexer.TokenPlus:       {precTerm},
	lexer.TokenMinus:      {precTerm},
	lexer.TokenStar:       {precFactor},
	lexer.TokenSlash:      {precFactor},
	lexer.TokenSlashTilde: {precFactor},
	lexer.TokenPercent:    {precFactor},
}

// expression parses at the lowest precedence, allowing assignment.
func (c *Compiler) expression() error { return c.parsePrecedence(precAssignment) }

func (c *Compiler) parsePrecedence(min precedence) error {
	canAssign := min <= precAssignment
	if err := c.parseUnaryOrPrimary(canAssign); err != nil {
		return err
	}
	for {
		rule, ok := infixRules[c.cur.Type]
		if !ok || rule.prec < min {
			break
		}
		if err := c.parseInfix(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) parseInfix() error {
	op := c.cur.Type
	line := c.cur.Line
	rule := infixRules[op]

	switch op {
	case lexer.TokenAnd:
		if err := c.advance(); err != nil {
			return err
		}
		jump := c.emitU16(bytecode.OpJumpIfFalseOrPop, 0, line)
		if err := c.parsePrecedence(rule.prec + 1); err != nil {
			return err
		}
		c.patchJump(jump)
		return nil
	case lexer.TokenOr:
		if err := c.advance(); err != nil {
			return err
		}
		jump := c.emitU16(bytecode.OpJumpIfTrueOrPop, 0, line)
		if err := c.parsePrecedence(rule.prec + 1); err != nil {
			return err
		}
		c.patchJump(jump)
		return nil
	}

	if err := c.advance(); err != nil {
		return err
	}
	if err := c.parsePrecedence(rule.prec + 1); err != nil {
		return err
	}
	switch op {
	case lexer.TokenPipe:
		c.emitOp(bytecode.OpBitwiseOr, line)
	case lexer.TokenCaret:
		c.emitOp(bytecode.OpBitwiseXor, line)
	case lexer.TokenAmp:
		c.emitOp(bytecode.OpBitwiseAnd, line)
	case lexer.TokenEq:
		c.emitOp(bytecode.OpEqual, line)
	case lexer.TokenNotEq:
		c.emitOp(bytecode.OpNotEqual, line)
	case lexer.TokenLess:
		c.emitOp(bytecode.OpLess, line)
	case lexer.TokenLessEq:
		c.emitOp(bytecode.OpNotGreater, line)
	case lexer.TokenGreater:
		c.emitOp(bytecode.OpGreater, line)
	case lexer.TokenGreaterEq:
		c.emitOp(bytecode.OpNotLess, line)
	case lexer.TokenShl:
		c.emitOp(bytecode.OpLeftShift, line)
	case lexer.TokenShr:
		c.emitOp(bytecode.OpRightShift, line)
	case lexer.TokenPlus:
		c.emitOp(bytecode.OpAdd, line)
	case lexer.TokenMinus:
		c.emitOp(bytecode.OpSubtract, line)
	case lexer.TokenStar:
		c.emitOp(bytecode.OpMultiply, line)
	case lexer.TokenSlash:
		c.emitOp(bytecode.OpDivide, line)
	case lexer.TokenSlashTilde:
		c.emitOp(bytecode.OpQuotient, line)
	case lexer.TokenPercent:
		c.emitOp(bytecode.OpRemainder, line)
	}
	return nil
}

// parseUnaryOrPrimary parses a prefix expression (unary operator or
// primary) and, for primaries that can be lvalues, its postfix chain
// of calls/indices/fields/ranges (spec.md §4.4 "postfix").
func (c *Compiler) parseUnaryOrPrimary(canAssign bool) error {
	line := c.cur.Line
	switch c.cur.Type {
	case lexer.TokenMinus:
		if err := c.advance(); err != nil {
			return err
		}
		if err := c.parsePrecedence(precUnary); err != nil {
			return err
		}
		c.emitOp(bytecode.OpNegate, line)
		return nil
	case lexer.TokenBang:
		if err := c.advance(); err != nil {
			return err
		}
		if err := c.parsePrecedence(precUnary); err != nil {
			return err
		}
		c.emitOp(bytecode.OpNot, line)
		return nil
	case lexer.TokenTilde:
		if err := c.advance(); err != nil {
			return err
		}
		if err := c.parsePrecedence(precUnary); err != nil {
			return err
		}
		c.emitOp(bytecode.OpBitwiseNot, line)
		return nil
	case lexer.TokenPlusPlus, lexer.TokenMinusMinus:
		return c.prefixIncDec()
	}
	return c.parsePostfix(canAssign)
}

func (c *Compiler) prefixIncDec() error {
	op := c.cur.Type
	line := c.cur.Line
	if err := c.advance(); err != nil {
		return err
	}
	name := c.cur.Literal
	if err := c.expect(lexer.TokenIdentifier, "identifier"); err != nil {
		return err
	}
	c.loadName(name, line)
	if op == lexer.TokenPlusPlus {
		c.emitOp(bytecode.OpIncrement, line)
	} else {
		c.emitOp(bytecode.OpDecrement, line)
	}
	return c.storeName(name, line)
}

// parsePostfix parses a primary expression followed by any chain of
// call/index/field/range postfixes. For a plain identifier, primary
// already consumes its own index/field/assignment chain via
// identifierChain; for every other primary (literal, parenthesized
// expression, array literal, call result, match expression) any
// following index/field access is read-only — Hook only allows
// assignment through a named `x[i]`/`x.f` target.
func (c *Compiler) parsePostfix(canAssign bool) error {
	if err := c.primary(canAssign); err != nil {
		return err
	}
	return c.continuePostfix()
}

func (c *Compiler) finishCall(line int) error {
	if err := c.advance(); err != nil { // '('
		return err
	}
	argc := 0
	for !c.check(lexer.TokenRParen) {
		if err := c.expression(); err != nil {
			return err
		}
		argc++
		if ok, err := c.match(lexer.TokenComma); err != nil {
			return err
		} else if !ok {
			break
		}
	}
	if err := c.expect(lexer.TokenRParen, "')'"); err != nil {
		return err
	}
	c.emitU8(bytecode.OpCall, byte(argc), line)
	return nil
}

// primary parses a literal, identifier (with its index/field/assign
// chain), parenthesized expression, array/struct/instance literal,
// function literal, or match expression.
func (c *Compiler) primary(canAssign bool) error {
	line := c.cur.Line
	switch c.cur.Type {
	case lexer.TokenInteger:
		return c.integerLiteral()
	case lexer.TokenFloat:
		return c.floatLiteral()
	case lexer.TokenString:
		lit := c.cur.Literal
		if err := c.advance(); err != nil {
			return err
		}
		c.emitString(lit, line)
		return nil
	case lexer.TokenTrue:
		c.emitOp(bytecode.OpTrue, line)
		return c.advance()
	case lexer.TokenFalse:
		c.emitOp(bytecode.OpFalse, line)
		return c.advance()
	case lexer.TokenNil:
		c.emitOp(bytecode.OpNil, line)
		return c.advance()
	case lexer.TokenLParen:
		if err := c.advance(); err != nil {
			return err
		}
		if err := c.expression(); err != nil {
			return err
		}
		return c.expect(lexer.TokenRParen, "')'")
	case lexer.TokenLBracket:
		return c.arrayLiteral()
	case lexer.TokenFn:
		return c.functionLiteral("", line)
	case lexer.TokenMatch:
		return c.matchExpression()
	case lexer.TokenIdentifier:
		name := c.cur.Literal
		if err := c.advance(); err != nil {
			return err
		}
		return c.identifierChain(name, line, canAssign)
	default:
		return c.errorf("unexpected token %q in expression", c.cur.Literal)
	}
}

func (c *Compiler) integerLiteral() error {
	line := c.cur.Line
	lit := c.cur.Literal
	if err := c.advance(); err != nil {
		return err
	}
	n, err := strconv.ParseInt(lit, 10, 64)
	if err != nil {
		return c.errorf("invalid integer literal %q", lit)
	}
	if n >= 0 && n <= 0xFFFF {
		c.emitU16(bytecode.OpInt, uint16(n), line)
	} else {
		c.emitConstant(value.Int(n), line)
	}
	return nil
}

func (c *Compiler) floatLiteral() error {
	line := c.cur.Line
	lit := c.cur.Literal
	if err := c.advance(); err != nil {
		return err
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return c.errorf("invalid float literal %q", lit)
	}
	c.emitConstant(value.Number(f), line)
	return nil
}

// arrayLiteral compiles `[e1, e2, ...]`.
func (c *Compiler) arrayLiteral() error {
	line := c.cur.Line
	if err := c.advance(); err != nil { // '['
		return err
	}
	n := 0
	for !c.check(lexer.TokenRBracket) {
		if err := c.expression(); err != nil {
			return err
		}
		n++
		if ok, err := c.match(lexer.TokenComma); err != nil {
			return err
		} else if !ok {
			break
		}
	}
	if err := c.expect(lexer.TokenRBracket, "']'"); err != nil {
		return err
	}
	c.emitU8(bytecode.OpArray, byte(n), line)
	return nil
}

// identifierChain resolves name as local/non-local/global, then walks
// any chain of `.field`/`[index]` accessors that follows it. Every
// accessor but the last is read-only (plain Get*, popping the
// container/index and pushing the next value in the chain); the last
// one also accepts assignment. Hook's Put* opcodes rewrite a single
// level of nesting and write back through the root name, so
// assignment through more than one accessor (`a.b.c = x`) is rejected
// at compile time rather than silently dropping the outer levels.
func (c *Compiler) identifierChain(name string, line int, canAssign bool) error {
	if canAssign && c.isAssignToken() {
		return c.finishSimpleAssign(name, line)
	}
	c.loadName(name, line)
	depth := 0
	for {
		switch c.cur.Type {
		case lexer.TokenLBracket:
			if err := c.advance(); err != nil {
				return err
			}
			if err := c.expression(); err != nil {
				return err
			}
			if err := c.expect(lexer.TokenRBracket, "']'"); err != nil {
				return err
			}
			if !c.startsAccessor() {
				if canAssign && c.isAssignToken() {
					if depth > 0 {
						return c.errorf("assignment through more than one level of indexing/field access is not supported")
					}
					return c.finishIndexAssign(name, line)
				}
				c.emitOp(bytecode.OpGetElement, line)
				return c.continuePostfix()
			}
			c.emitOp(bytecode.OpGetElement, line)
			depth++
		case lexer.TokenDot:
			if err := c.advance(); err != nil {
				return err
			}
			field := c.cur.Literal
			if err := c.expect(lexer.TokenIdentifier, "field name"); err != nil {
				return err
			}
			idx := c.nameConstant(field)
			if !c.startsAccessor() {
				if canAssign && c.isAssignToken() {
					if depth > 0 {
						return c.errorf("assignment through more than one level of indexing/field access is not supported")
					}
					return c.finishFieldAssign(name, field, line)
				}
				c.emitU8(bytecode.OpGetField, idx, line)
				return c.continuePostfix()
			}
			c.emitU8(bytecode.OpGetField, idx, line)
			depth++
		default:
			return c.continuePostfix()
		}
	}
}

// startsAccessor reports whether the current token begins another
// `.field`/`[index]` accessor, used to tell an intermediate link in a
// chain from its terminal one.
func (c *Compiler) startsAccessor() bool {
	return c.cur.Type == lexer.TokenDot || c.cur.Type == lexer.TokenLBracket
}

// continuePostfix handles call/range/index/field postfixes following
// a value already on the stack (a resolved name, a call result, a
// literal, ...). Index/field access here is always read-only — the
// identifier-specific chain in identifierChain is what handles
// assignment, before it ever reaches this function.
func (c *Compiler) continuePostfix() error {
	for {
		line := c.cur.Line
		switch c.cur.Type {
		case lexer.TokenLParen:
			if err := c.finishCall(line); err != nil {
				return err
			}
		case lexer.TokenDotDot:
			if err := c.advance(); err != nil {
				return err
			}
			if err := c.parsePrecedence(precTerm); err != nil {
				return err
			}
			c.emitOp(bytecode.OpRange, line)
		case lexer.TokenLBracket:
			if err := c.advance(); err != nil {
				return err
			}
			if err := c.expression(); err != nil {
				return err
			}
			if err := c.expect(lexer.TokenRBracket, "']'"); err != nil {
				return err
			}
			c.emitOp(bytecode.OpGetElement, line)
		case lexer.TokenDot:
			if err := c.advance(); err != nil {
				return err
			}
			field := c.cur.Literal
			if err := c.expect(lexer.TokenIdentifier, "field name"); err != nil {
				return err
			}
			idx := c.nameConstant(field)
			c.emitU8(bytecode.OpGetField, idx, line)
		default:
			return nil
		}
	}
}

func (c *Compiler) isAssignToken() bool {
	switch c.cur.Type {
	case lexer.TokenAssign, lexer.TokenPlusEq, lexer.TokenMinusEq,
		lexer.TokenStarEq, lexer.TokenSlashEq, lexer.TokenPercentEq:
		return true
	}
	return false
}

// compoundOp maps a compound-assignment token to the arithmetic
// opcode the desugared fetch-modify-store sequence uses
// (spec.md §4.4 "Mutability").
func compoundOp(tt lexer.TokenType) bytecode.Op {
	switch tt {
	case lexer.TokenPlusEq:
		return bytecode.OpAdd
	case lexer.TokenMinusEq:
		return bytecode.OpSubtract
	case lexer.TokenStarEq:
		return bytecode.OpMultiply
	case lexer.TokenSlashEq:
		return bytecode.OpDivide
	case lexer.TokenPercentEq:
		return bytecode.OpRemainder
	default:
		return 0
	}
}

// finishSimpleAssign compiles `name = expr` or `name += expr` for a
// plain (non-indexed, non-field) target.
func (c *Compiler) finishSimpleAssign(name string, line int) error {
	op := c.cur.Type
	if err := c.advance(); err != nil {
		return err
	}
	if op != lexer.TokenAssign {
		c.loadName(name, line)
		if err := c.expression(); err != nil {
			return err
		}
		c.emitOp(compoundOp(op), line)
	} else {
		if err := c.expression(); err != nil {
			return err
		}
	}
	return c.storeName(name, line)
}

// finishIndexAssign compiles `name[idx] = v` / `+=` etc. — the
// container and index are already on the stack (spec.md §4.6
// "Inplace* element ops").
func (c *Compiler) finishIndexAssign(name string, line int) error {
	op := c.cur.Type
	if err := c.advance(); err != nil {
		return err
	}
	if op != lexer.TokenAssign {
		c.emitOp(bytecode.OpFetchElement, line)
		if err := c.expression(); err != nil {
			return err
		}
		c.emitOp(compoundOp(op), line)
	} else {
		if err := c.expression(); err != nil {
			return err
		}
	}
	c.emitOp(bytecode.OpInplacePutElement, line)
	return c.storeName(name, line)
}

// finishFieldAssign compiles `name.field = v` / `+=` etc.
func (c *Compiler) finishFieldAssign(name, field string, line int) error {
	op := c.cur.Type
	if err := c.advance(); err != nil {
		return err
	}
	nameIdx := c.nameConstant(field)
	if op != lexer.TokenAssign {
		c.emitU8(bytecode.OpFetchField, nameIdx, line)
		if err := c.expression(); err != nil {
			return err
		}
		c.emitOp(compoundOp(op), line)
	} else {
		if err := c.expression(); err != nil {
			return err
		}
	}
	c.emitU8(bytecode.OpInplacePutField, nameIdx, line)
	return c.storeName(name, line)
}

// loadName emits the read sequence for a resolved name: local,
// non-local (capture), or global, in that order (spec.md §4.4 "Local
// resolution").
func (c *Compiler) loadName(name string, line int) {
	if idx := c.scope.resolveLocal(name); idx != -1 {
		c.emitU8(bytecode.OpGetLocal, byte(idx), line)
		return
	}
	if idx := c.scope.resolveNonlocal(name); idx != -1 {
		c.emitU8(bytecode.OpNonLocal, byte(idx), line)
		return
	}
	idx := c.nameConstant(name)
	c.emitU8(bytecode.OpGlobal, idx, line)
}

// storeName emits the write-back sequence for a resolved name. There
// is no global-store or non-local-store opcode (spec.md §4.6's
// "Variable access" group only pushes globals and captures; it never
// writes them) — Hook assignment can only target a local declared
// with let/mut in the current function, so anything else is a
// compile error.
func (c *Compiler) storeName(name string, line int) error {
	if idx := c.scope.resolveLocal(name); idx != -1 {
		if !c.scope.locals[idx].mutable {
			return c.errorf("cannot assign to immutable %q (declared with let)", name)
		}
		c.emitU8(bytecode.OpSetLocal, byte(idx), line)
		return nil
	}
	if c.scope.resolveNonlocal(name) != -1 {
		return c.errorf("cannot assign to %q captured from an enclosing function", name)
	}
	return c.errorf("assignment to undeclared variable %q", name)
}

// functionLiteral compiles `fn name(params) { body }` (name is "" for
// anonymous fn expressions) into a nested Function prototype and
// emits Closure plus its capture operands (spec.md §4.4 "Function
// literals").
func (c *Compiler) functionLiteral(name string, line int) error {
	if err := c.expect(lexer.TokenLParen, "'('"); err != nil {
		return err
	}
	var params []string
	for !c.check(lexer.TokenRParen) {
		params = append(params, c.cur.Literal)
		if err := c.expect(lexer.TokenIdentifier, "parameter name"); err != nil {
			return err
		}
		if ok, err := c.match(lexer.TokenComma); err != nil {
			return err
		} else if !ok {
			break
		}
	}
	if err := c.expect(lexer.TokenRParen, "')'"); err != nil {
		return err
	}

	childProto := bytecode.NewFunction(len(params), name, c.file)
	childIdx := c.scope.proto.AddChild(childProto)
	childScope := newFuncScope(c.scope, childProto)
	for _, p := range params {
		childScope.addLocal(p, true)
	}

	outer := c.scope
	c.scope = childScope
	if err := c.expect(lexer.TokenLBrace, "'{'"); err != nil {
		return err
	}
	for !c.check(lexer.TokenRBrace) && !c.check(lexer.TokenEOF) {
		if err := c.statement(); err != nil {
			return err
		}
	}
	c.emitOp(bytecode.OpReturnNil, c.cur.Line)
	if err := c.expect(lexer.TokenRBrace, "'}'"); err != nil {
		c.scope = outer
		return err
	}
	captures := childScope.nonlocals
	c.scope = outer

	c.emitU8(bytecode.OpClosure, byte(childIdx), line)
	if !c.analyze {
		for _, cap := range captures {
			isLocal := byte(0)
			if cap.IsLocal {
				isLocal = 1
			}
			c.chunk().WriteByte(isLocal, line)
			c.chunk().WriteByte(byte(cap.Index), line)
		}
	}
	return nil
}
