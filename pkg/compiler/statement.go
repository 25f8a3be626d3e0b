package compiler

import (
	"github.com/hooklang/hook/pkg/bytecode"
	"github.com/hooklang/hook/pkg/lexer"
)

// statement compiles one statement (spec.md §4.4 "Statements").
func (c *Compiler) statement() error {
	switch c.cur.Type {
	case lexer.TokenLet, lexer.TokenMut:
		return c.varDecl()
	case lexer.TokenLBrace:
		return c.blockStatement()
	case lexer.TokenIf, lexer.TokenIfBang:
		return c.ifStatement()
	case lexer.TokenWhile, lexer.TokenWhileBang:
		return c.whileStatement()
	case lexer.TokenDo:
		return c.doWhileStatement()
	case lexer.TokenLoop:
		return c.loopStatement()
	case lexer.TokenFor:
		return c.forStatement()
	case lexer.TokenForeach:
		return c.foreachStatement()
	case lexer.TokenBreak:
		return c.breakStatement()
	case lexer.TokenContinue:
		return c.continueStatement()
	case lexer.TokenReturn:
		return c.returnStatement()
	case lexer.TokenDel:
		return c.delStatement()
	case lexer.TokenMatch:
		return c.matchExpressionStatement()
	case lexer.TokenImport, lexer.TokenFrom:
		return c.importStatement()
	case lexer.TokenStruct:
		return c.structDeclStatement()
	case lexer.TokenFn:
		if c.peek.Type == lexer.TokenIdentifier {
			return c.fnDeclStatement()
		}
		return c.expressionStatement()
	case lexer.TokenSemicolon:
		return c.advance()
	default:
		return c.expressionStatement()
	}
}

func (c *Compiler) expressionStatement() error {
	line := c.cur.Line
	if err := c.expression(); err != nil {
		return err
	}
	c.semicolonOpt()
	c.emitOp(bytecode.OpPop, line)
	return nil
}

// semicolonOpt consumes a trailing ';' if present; statements don't
// require one before a closing '}' or EOF.
func (c *Compiler) semicolonOpt() {
	for c.check(lexer.TokenSemicolon) {
		_ = c.advance()
	}
}

// varDecl compiles `let`/`mut` declarations, including destructuring
// targets (spec.md §4.4 "Pattern binding").
func (c *Compiler) varDecl() error {
	mutable := c.cur.Type == lexer.TokenMut
	line := c.cur.Line
	if err := c.advance(); err != nil {
		return err
	}

	if c.check(lexer.TokenLBracket) {
		return c.arrayDestructure(mutable, line)
	}
	if c.check(lexer.TokenLBrace) {
		return c.structDestructure(mutable, line)
	}

	name := c.cur.Literal
	if err := c.expect(lexer.TokenIdentifier, "identifier"); err != nil {
		return err
	}
	if err := c.expect(lexer.TokenAssign, "'='"); err != nil {
		return err
	}
	if err := c.expression(); err != nil {
		return err
	}
	c.semicolonOpt()
	return c.declareLocal(name, mutable, line)
}

func (c *Compiler) declareLocal(name string, mutable bool, line int) error {
	if c.scope.scopeDepth > 0 {
		for i := len(c.scope.locals) - 1; i >= 0; i-- {
			if c.scope.locals[i].depth < c.scope.scopeDepth {
				break
			}
			if c.scope.locals[i].name == name {
				return c.errorf("redeclaration of %q in the same scope", name)
			}
		}
	}
	slot := c.scope.addLocal(name, mutable)
	c.emitU8(bytecode.OpSetLocal, byte(slot), line)
	c.emitOp(bytecode.OpPop, line)
	return nil
}

func (c *Compiler) arrayDestructure(mutable bool, line int) error {
	if err := c.advance(); err != nil { // '['
		return err
	}
	var names []string
	for !c.check(lexer.TokenRBracket) {
		if c.check(lexer.TokenUnderscore) {
			names = append(names, "_")
		} else {
			names = append(names, c.cur.Literal)
		}
		if err := c.advance(); err != nil {
			return err
		}
		if ok, err := c.match(lexer.TokenComma); err != nil {
			return err
		} else if !ok {
			break
		}
	}
	if err := c.expect(lexer.TokenRBracket, "']'"); err != nil {
		return err
	}
	if err := c.expect(lexer.TokenAssign, "'='"); err != nil {
		return err
	}
	if err := c.expression(); err != nil {
		return err
	}
	c.semicolonOpt()
	c.emitU8(bytecode.OpUnpackArray, byte(len(names)), line)
	for _, n := range names {
		if n == "_" {
			c.emitOp(bytecode.OpPop, line)
			continue
		}
		if err := c.declareLocal(n, mutable, line); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) structDestructure(mutable bool, line int) error {
	if err := c.advance(); err != nil { // '{'
		return err
	}
	var names []string
	for !c.check(lexer.TokenRBrace) {
		names = append(names, c.cur.Literal)
		if err := c.advance(); err != nil {
			return err
		}
		if ok, err := c.match(lexer.TokenComma); err != nil {
			return err
		} else if !ok {
			break
		}
	}
	if err := c.expect(lexer.TokenRBrace, "'}'"); err != nil {
		return err
	}
	if err := c.expect(lexer.TokenAssign, "'='"); err != nil {
		return err
	}
	if err := c.expression(); err != nil {
		return err
	}
	c.semicolonOpt()
	c.emitU8(bytecode.OpUnpackStruct, byte(len(names)), line)
	for _, n := range names {
		if err := c.declareLocal(n, mutable, line); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) blockStatement() error {
	if err := c.advance(); err != nil { // '{'
		return err
	}
	c.scope.beginScope()
	for !c.check(lexer.TokenRBrace) && !c.check(lexer.TokenEOF) {
		if err := c.statement(); err != nil {
			return err
		}
	}
	c.scope.endScope(c, c.cur.Line)
	return c.expect(lexer.TokenRBrace, "'}'")
}

// ifStatement handles both `if` and its `if!` inverted-condition
// sugar (spec.md §4.4 "Statements").
func (c *Compiler) ifStatement() error {
	inverted := c.cur.Type == lexer.TokenIfBang
	line := c.cur.Line
	if err := c.advance(); err != nil {
		return err
	}
	if err := c.expect(lexer.TokenLParen, "'('"); err != nil {
		return err
	}
	if err := c.expression(); err != nil {
		return err
	}
	if err := c.expect(lexer.TokenRParen, "')'"); err != nil {
		return err
	}

	jumpOp := bytecode.OpJumpIfFalse
	if inverted {
		jumpOp = bytecode.OpJumpIfTrue
	}
	thenJump := c.emitU16(jumpOp, 0, line)
	c.emitOp(bytecode.OpPop, line)
	if err := c.statement(); err != nil {
		return err
	}

	elseJump := c.emitU16(bytecode.OpJump, 0, line)
	c.patchJump(thenJump)
	c.emitOp(bytecode.OpPop, line)

	if ok, err := c.match(lexer.TokenElse); err != nil {
		return err
	} else if ok {
		if err := c.statement(); err != nil {
			return err
		}
	}
	c.patchJump(elseJump)
	return nil
}

func (c *Compiler) whileStatement() error {
	inverted := c.cur.Type == lexer.TokenWhileBang
	line := c.cur.Line
	if err := c.advance(); err != nil {
		return err
	}
	loopStart := len(c.chunk().Code)
	if err := c.expect(lexer.TokenLParen, "'('"); err != nil {
		return err
	}
	if err := c.expression(); err != nil {
		return err
	}
	if err := c.expect(lexer.TokenRParen, "')'"); err != nil {
		return err
	}

	jumpOp := bytecode.OpJumpIfFalse
	if inverted {
		jumpOp = bytecode.OpJumpIfTrue
	}
	exitJump := c.emitU16(jumpOp, 0, line)
	c.emitOp(bytecode.OpPop, line)

	c.scope.loops = append(c.scope.loops, loopScope{continueTo: loopStart, scopeDepth: c.scope.scopeDepth})
	if err := c.statement(); err != nil {
		return err
	}
	c.emitU16(bytecode.OpJump, uint16(loopStart), line)
	c.patchJump(exitJump)
	c.emitOp(bytecode.OpPop, line)
	c.closeLoop(line)
	return nil
}

func (c *Compiler) doWhileStatement() error {
	line := c.cur.Line
	if err := c.advance(); err != nil { // 'do'
		return err
	}
	loopStart := len(c.chunk().Code)
	c.scope.loops = append(c.scope.loops, loopScope{continueTo: loopStart, scopeDepth: c.scope.scopeDepth})
	if err := c.statement(); err != nil {
		return err
	}
	if err := c.expect(lexer.TokenWhile, "'while'"); err != nil {
		return err
	}
	if err := c.expect(lexer.TokenLParen, "'('"); err != nil {
		return err
	}
	if err := c.expression(); err != nil {
		return err
	}
	if err := c.expect(lexer.TokenRParen, "')'"); err != nil {
		return err
	}
	c.semicolonOpt()
	c.emitU16(bytecode.OpJumpIfTrueOrPop, uint16(loopStart), line)
	c.emitOp(bytecode.OpPop, line)
	c.closeLoop(line)
	return nil
}

func (c *Compiler) loopStatement() error {
	line := c.cur.Line
	if err := c.advance(); err != nil {
		return err
	}
	loopStart := len(c.chunk().Code)
	c.scope.loops = append(c.scope.loops, loopScope{continueTo: loopStart, scopeDepth: c.scope.scopeDepth})
	if err := c.statement(); err != nil {
		return err
	}
	c.emitU16(bytecode.OpJump, uint16(loopStart), line)
	c.closeLoop(line)
	return nil
}

// closeLoop backpatches every break recorded for the loop just closed.
func (c *Compiler) closeLoop(line int) {
	lp := c.scope.loops[len(c.scope.loops)-1]
	c.scope.loops = c.scope.loops[:len(c.scope.loops)-1]
	for _, pos := range lp.breakJumps {
		c.patchJump(pos)
	}
}

// forStatement: `for (init; cond; post) body`.
func (c *Compiler) forStatement() error {
	line := c.cur.Line
	if err := c.advance(); err != nil {
		return err
	}
	if err := c.expect(lexer.TokenLParen, "'('"); err != nil {
		return err
	}
	c.scope.beginScope()

	if !c.check(lexer.TokenSemicolon) {
		if c.check(lexer.TokenLet) || c.check(lexer.TokenMut) {
			if err := c.varDecl(); err != nil {
				return err
			}
		} else {
			if err := c.expression(); err != nil {
				return err
			}
			c.emitOp(bytecode.OpPop, line)
		}
	}
	if err := c.expect(lexer.TokenSemicolon, "';'"); err != nil {
		return err
	}

	loopStart := len(c.chunk().Code)
	exitJump := -1
	if !c.check(lexer.TokenSemicolon) {
		if err := c.expression(); err != nil {
			return err
		}
		exitJump = c.emitU16(bytecode.OpJumpIfFalse, 0, line)
		c.emitOp(bytecode.OpPop, line)
	}
	if err := c.expect(lexer.TokenSemicolon, "';'"); err != nil {
		return err
	}

	postStart := loopStart
	if !c.check(lexer.TokenRParen) {
		bodyJump := c.emitU16(bytecode.OpJump, 0, line)
		postStart = len(c.chunk().Code)
		if err := c.expression(); err != nil {
			return err
		}
		c.emitOp(bytecode.OpPop, line)
		c.emitU16(bytecode.OpJump, uint16(loopStart), line)
		c.patchJump(bodyJump)
	}
	if err := c.expect(lexer.TokenRParen, "')'"); err != nil {
		return err
	}

	c.scope.loops = append(c.scope.loops, loopScope{continueTo: postStart, scopeDepth: c.scope.scopeDepth})
	if err := c.statement(); err != nil {
		return err
	}
	c.emitU16(bytecode.OpJump, uint16(postStart), line)
	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(bytecode.OpPop, line)
	}
	c.closeLoop(line)
	c.scope.endScope(c, line)
	return nil
}

// foreachStatement: `foreach (x in iterable) body`, compiled against
// an Iterator value kept in a hidden local for the loop's duration
// (spec.md §4.6 "Iteration").
func (c *Compiler) foreachStatement() error {
	line := c.cur.Line
	if err := c.advance(); err != nil {
		return err
	}
	if err := c.expect(lexer.TokenLParen, "'('"); err != nil {
		return err
	}
	c.scope.beginScope()

	varName := c.cur.Literal
	if err := c.expect(lexer.TokenIdentifier, "identifier"); err != nil {
		return err
	}
	if err := c.expect(lexer.TokenIn, "'in'"); err != nil {
		return err
	}
	if err := c.expression(); err != nil {
		return err
	}
	if err := c.expect(lexer.TokenRParen, "')'"); err != nil {
		return err
	}

	c.emitOp(bytecode.OpIteratorOp, line)
	itSlot := c.scope.addLocal("", false)
	c.emitU8(bytecode.OpSetLocal, byte(itSlot), line)
	c.emitOp(bytecode.OpPop, line)

	loopStart := len(c.chunk().Code)
	c.emitU8(bytecode.OpGetLocal, byte(itSlot), line)
	exitJump := c.emitU16(bytecode.OpJumpIfNotValid, 0, line)

	c.scope.beginScope()
	varSlot := c.scope.addLocal(varName, false)
	c.emitU8(bytecode.OpSetLocal, byte(varSlot), line)
	c.emitOp(bytecode.OpPop, line)

	continueTarget := len(c.chunk().Code)
	c.scope.loops = append(c.scope.loops, loopScope{continueTo: continueTarget, scopeDepth: c.scope.scopeDepth})
	// continueTo is only known precisely once we reach the advance
	// step below; continue inside the body jumps to loopAdvance,
	// patched after compiling the advance sequence.
	if err := c.statement(); err != nil {
		return err
	}
	c.scope.endScope(c, line)

	c.emitU8(bytecode.OpGetLocal, byte(itSlot), line)
	c.emitOp(bytecode.OpNext, line)
	c.emitU8(bytecode.OpSetLocal, byte(itSlot), line)
	c.emitOp(bytecode.OpPop, line)
	c.emitU16(bytecode.OpJump, uint16(loopStart), line)

	c.patchJump(exitJump)
	c.closeLoopRetargeted(continueTarget)
	c.scope.endScope(c, line)
	return nil
}

// closeLoopRetargeted is like closeLoop but foreach's continue target
// (the loop body's entry, not its header) was fixed before the loop's
// advance sequence was known; breaks still patch to "here".
func (c *Compiler) closeLoopRetargeted(_ int) {
	lp := c.scope.loops[len(c.scope.loops)-1]
	c.scope.loops = c.scope.loops[:len(c.scope.loops)-1]
	for _, pos := range lp.breakJumps {
		c.patchJump(pos)
	}
}

func (c *Compiler) breakStatement() error {
	line := c.cur.Line
	if err := c.advance(); err != nil {
		return err
	}
	c.semicolonOpt()
	if len(c.scope.loops) == 0 {
		return c.errorf("'break' outside a loop")
	}
	lp := &c.scope.loops[len(c.scope.loops)-1]
	for i := len(c.scope.locals) - 1; i >= 0 && c.scope.locals[i].depth > lp.scopeDepth; i-- {
		c.emitOp(bytecode.OpPop, line)
	}
	pos := c.emitU16(bytecode.OpJump, 0, line)
	lp.breakJumps = append(lp.breakJumps, pos)
	return nil
}

func (c *Compiler) continueStatement() error {
	line := c.cur.Line
	if err := c.advance(); err != nil {
		return err
	}
	c.semicolonOpt()
	if len(c.scope.loops) == 0 {
		return c.errorf("'continue' outside a loop")
	}
	lp := c.scope.loops[len(c.scope.loops)-1]
	for i := len(c.scope.locals) - 1; i >= 0 && c.scope.locals[i].depth > lp.scopeDepth; i-- {
		c.emitOp(bytecode.OpPop, line)
	}
	c.emitU16(bytecode.OpJump, uint16(lp.continueTo), line)
	return nil
}

func (c *Compiler) returnStatement() error {
	line := c.cur.Line
	if err := c.advance(); err != nil {
		return err
	}
	if c.check(lexer.TokenSemicolon) || c.check(lexer.TokenRBrace) {
		c.semicolonOpt()
		c.emitOp(bytecode.OpReturnNil, line)
		return nil
	}
	if err := c.expression(); err != nil {
		return err
	}
	c.semicolonOpt()
	c.emitOp(bytecode.OpReturn, line)
	return nil
}

// delStatement compiles `del name;` (rebinds to nil) or
// `del name[index];` (functional element delete, written back to
// name) — spec.md §4.4 lists `del` as a statement form; the supported
// targets are a bare binding or one level of array indexing.
func (c *Compiler) delStatement() error {
	line := c.cur.Line
	if err := c.advance(); err != nil {
		return err
	}
	name := c.cur.Literal
	if err := c.expect(lexer.TokenIdentifier, "identifier"); err != nil {
		return err
	}

	if ok, err := c.match(lexer.TokenLBracket); err != nil {
		return err
	} else if ok {
		c.loadName(name, line)
		if err := c.expression(); err != nil {
			return err
		}
		if err := c.expect(lexer.TokenRBracket, "']'"); err != nil {
			return err
		}
		c.emitOp(bytecode.OpDeleteElement, line)
		if err := c.storeName(name, line); err != nil {
			return err
		}
		c.emitOp(bytecode.OpPop, line)
	} else {
		c.emitOp(bytecode.OpNil, line)
		if err := c.storeName(name, line); err != nil {
			return err
		}
		c.emitOp(bytecode.OpPop, line)
	}
	c.semicolonOpt()
	return nil
}

// matchExpressionStatement compiles `match (subject) { pattern => expr, ... }`
// as an expression whose value is discarded — a chain of equality
// tests and jumps, falling through to nil with no default arm
// (spec.md §4.4 "Match").
func (c *Compiler) matchExpressionStatement() error {
	line := c.cur.Line
	if err := c.matchExpression(); err != nil {
		return err
	}
	c.semicolonOpt()
	c.emitOp(bytecode.OpPop, line)
	return nil
}

// matchExpression compiles `match (subject) { pattern => expr, ... }`
// to a value on the stack. The subject is evaluated once into a
// hidden local so each arm can re-test it without a stack-duplicate
// opcode; a missing default arm ('_') falls through to nil
// (spec.md §4.4 "Match").
func (c *Compiler) matchExpression() error {
	line := c.cur.Line
	if err := c.advance(); err != nil { // 'match'
		return err
	}
	if err := c.expect(lexer.TokenLParen, "'('"); err != nil {
		return err
	}
	if err := c.expression(); err != nil {
		return err
	}
	if err := c.expect(lexer.TokenRParen, "')'"); err != nil {
		return err
	}
	c.scope.beginScope()
	subjectSlot := c.scope.addLocal("", false)
	c.emitU8(bytecode.OpSetLocal, byte(subjectSlot), line)
	c.emitOp(bytecode.OpPop, line)

	if err := c.expect(lexer.TokenLBrace, "'{'"); err != nil {
		return err
	}

	var endJumps []int
	hasDefault := false
	for !c.check(lexer.TokenRBrace) {
		armLine := c.cur.Line
		isDefault := c.check(lexer.TokenUnderscore)
		var skip int
		if isDefault {
			hasDefault = true
			if err := c.advance(); err != nil {
				return err
			}
		} else {
			c.emitU8(bytecode.OpGetLocal, byte(subjectSlot), armLine)
			if err := c.expression(); err != nil {
				return err
			}
			c.emitOp(bytecode.OpEqual, armLine)
			skip = c.emitU16(bytecode.OpJumpIfFalse, 0, armLine)
			c.emitOp(bytecode.OpPop, armLine)
		}
		if err := c.expectArrow(); err != nil {
			return err
		}
		if err := c.expression(); err != nil {
			return err
		}
		endJumps = append(endJumps, c.emitU16(bytecode.OpJump, 0, armLine))
		if !isDefault {
			c.patchJump(skip)
			c.emitOp(bytecode.OpPop, armLine)
		}

		if ok, err := c.match(lexer.TokenComma); err != nil {
			return err
		} else if !ok {
			break
		}
	}
	if !hasDefault {
		c.emitOp(bytecode.OpNil, line)
	}
	for _, pos := range endJumps {
		c.patchJump(pos)
	}
	if err := c.expect(lexer.TokenRBrace, "'}'"); err != nil {
		return err
	}
	// The arm result sits above subjectSlot on the stack; fold it back
	// into that slot and drop the now-redundant top copy, rather than
	// using the generic per-local Pop endScope emits (which assumes no
	// value is live above the scope's locals when it closes).
	c.emitU8(bytecode.OpSetLocal, byte(subjectSlot), line)
	c.emitOp(bytecode.OpPop, line)
	c.scope.scopeDepth--
	c.scope.locals = c.scope.locals[:len(c.scope.locals)-1]
	return nil
}

func (c *Compiler) expectArrow() error {
	if c.check(lexer.TokenAssign) && c.peek.Type == lexer.TokenGreater {
		if err := c.advance(); err != nil {
			return err
		}
		return c.advance()
	}
	return c.errorf("expected '=>'")
}

// importStatement compiles `import "name" as x;` and
// `from "name" import { a, b };` (spec.md §4.4 "Imports").
func (c *Compiler) importStatement() error {
	line := c.cur.Line
	if c.cur.Type == lexer.TokenFrom {
		if err := c.advance(); err != nil {
			return err
		}
		modName := c.cur.Literal
		if err := c.expect(lexer.TokenString, "module string"); err != nil {
			return err
		}
		if err := c.expect(lexer.TokenImport, "'import'"); err != nil {
			return err
		}
		if err := c.expect(lexer.TokenLBrace, "'{'"); err != nil {
			return err
		}
		var names []string
		for !c.check(lexer.TokenRBrace) {
			names = append(names, c.cur.Literal)
			if err := c.expect(lexer.TokenIdentifier, "identifier"); err != nil {
				return err
			}
			if ok, err := c.match(lexer.TokenComma); err != nil {
				return err
			} else if !ok {
				break
			}
		}
		if err := c.expect(lexer.TokenRBrace, "'}'"); err != nil {
			return err
		}
		c.semicolonOpt()

		c.emitString(modName, line)
		c.emitOp(bytecode.OpLoadModule, line)
		modSlot := c.scope.addLocal("", false)
		c.emitU8(bytecode.OpSetLocal, byte(modSlot), line)
		c.emitOp(bytecode.OpPop, line)
		for _, n := range names {
			c.emitU8(bytecode.OpGetLocal, byte(modSlot), line)
			nameIdx := c.nameConstant(n)
			c.emitU8(bytecode.OpGetField, nameIdx, line)
			if err := c.declareLocal(n, false, line); err != nil {
				return err
			}
		}
		return nil
	}

	if err := c.advance(); err != nil { // 'import'
		return err
	}
	modName := c.cur.Literal
	if err := c.expect(lexer.TokenString, "module string"); err != nil {
		return err
	}
	if err := c.expect(lexer.TokenAs, "'as'"); err != nil {
		return err
	}
	alias := c.cur.Literal
	if err := c.expect(lexer.TokenIdentifier, "identifier"); err != nil {
		return err
	}
	c.semicolonOpt()

	c.emitString(modName, line)
	c.emitOp(bytecode.OpLoadModule, line)
	return c.declareLocal(alias, false, line)
}

// structDeclStatement compiles `struct Name { a, b, c }` into an
// OpStruct construction stored in a local/global binding of the same
// name (spec.md §4.1 "Struct").
func (c *Compiler) structDeclStatement() error {
	line := c.cur.Line
	if err := c.advance(); err != nil {
		return err
	}
	name := c.cur.Literal
	if err := c.expect(lexer.TokenIdentifier, "identifier"); err != nil {
		return err
	}
	if err := c.expect(lexer.TokenLBrace, "'{'"); err != nil {
		return err
	}
	c.emitString(name, line) // struct's own display name, beneath its fields
	n := 0
	for !c.check(lexer.TokenRBrace) {
		fieldName := c.cur.Literal
		if err := c.expect(lexer.TokenIdentifier, "identifier"); err != nil {
			return err
		}
		c.emitString(fieldName, line)
		n++
		if ok, err := c.match(lexer.TokenComma); err != nil {
			return err
		} else if !ok {
			break
		}
	}
	if err := c.expect(lexer.TokenRBrace, "'}'"); err != nil {
		return err
	}
	c.emitU8(bytecode.OpStruct, byte(n), line)
	return c.declareLocal(name, false, line)
}

// fnDeclStatement compiles `fn name(params) { body }` as sugar for
// `let name = fn(params) { body };`.
func (c *Compiler) fnDeclStatement() error {
	line := c.cur.Line
	if err := c.advance(); err != nil { // 'fn'
		return err
	}
	name := c.cur.Literal
	if err := c.expect(lexer.TokenIdentifier, "identifier"); err != nil {
		return err
	}
	if err := c.functionLiteral(name, line); err != nil {
		return err
	}
	return c.declareLocal(name, false, line)
}
