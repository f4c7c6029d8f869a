package compiler

import "github.com/mna/tamarin/lang/token"

// declaration parses and compiles one top-level-or-block statement, then
// resynchronizes at the next likely statement boundary if it produced a new
// error, per spec.md §4.7.
func (c *compiler) declaration() {
	before := len(c.errors)
	c.statement()
	if len(c.errors) > before {
		c.synchronize()
	}
}

func (c *compiler) checkAny(toks ...token.Token) bool {
	for _, t := range toks {
		if c.cur.tok == t {
			return true
		}
	}
	return false
}

func (c *compiler) statement() {
	switch c.cur.tok {
	case token.SEMI:
		c.advance()
	case token.LOCAL:
		c.localDecl()
	case token.GLOBAL:
		c.globalDecl()
	case token.FUNCTION:
		c.functionDeclStmt()
	case token.IF:
		c.ifStmt()
	case token.WHILE:
		c.whileStmt()
	case token.DO:
		c.doStmt()
	case token.FOR:
		c.numericForStmt()
	case token.RETURN:
		c.returnStmt()
	case token.COLONCOLON:
		c.labelStmt()
	case token.GOTO:
		c.gotoStmt()
	default:
		c.exprStatement()
	}
}

// localDecl compiles `local a, b, ... [= e, e, ...]` and `local function
// name(...) ... end`, per spec.md §4.3.3.
func (c *compiler) localDecl() {
	pos := c.cur.pos
	c.advance() // 'local'

	if c.match(token.FUNCTION) {
		name := c.expect(token.IDENT)
		// Declared before the body is compiled so recursive calls resolve the
		// function's own name as a local/upvalue, per spec.md §4.3.6.
		c.declareLocal(name.pos, name.val.Str)
		c.compileFunctionBody(pos, name.val.Str)
		return
	}

	var names []lexed
	names = append(names, c.expect(token.IDENT))
	for c.match(token.COMMA) {
		names = append(names, c.expect(token.IDENT))
	}

	rhsCount := 0
	if c.match(token.EQ) {
		for {
			c.compileExpression(token.PrecAssignment)
			rhsCount++
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	for rhsCount < len(names) {
		c.emitOp(pos, NIL)
		rhsCount++
	}
	for rhsCount > len(names) {
		c.emitOp(pos, POP)
		rhsCount--
	}
	// Each initializer's value is already sitting in the stack slot its local
	// will occupy; declareLocal only needs to record the bookkeeping, per the
	// pushed-value-becomes-the-slot convention used throughout this compiler.
	for _, nm := range names {
		c.declareLocal(nm.pos, nm.val.Str)
	}
}

// globalDecl compiles `global name [= e]`, per spec.md §4.3.3.
func (c *compiler) globalDecl() {
	pos := c.cur.pos
	c.advance() // 'global'
	name := c.expect(token.IDENT)
	k := c.addConstant(name.pos, name.val.Str, true)
	if c.match(token.EQ) {
		c.compileExpression(token.PrecAssignment)
	} else {
		c.emitOp(pos, NIL)
	}
	c.emitOp1(pos, DEFINE_GLOBAL, k)
}

// functionDeclStmt compiles `function name(...) ... end`. A bare function
// declaration (no local/global keyword) behaves as an implicit global
// assignment, matching the permissive (non-strict) global-assignment policy
// decided for SET_GLOBAL (see DESIGN.md, spec.md §9 Open Questions).
func (c *compiler) functionDeclStmt() {
	pos := c.cur.pos
	c.advance() // 'function'
	name := c.expect(token.IDENT)
	k := c.addConstant(name.pos, name.val.Str, true)
	c.compileFunctionBody(pos, name.val.Str)
	c.emitOp1(pos, SET_GLOBAL, k)
}

// compileFunctionBody parses `(params) block end` (the 'function' keyword,
// if any, has already been consumed) as a nested function, then emits the
// CLOSURE instruction (plus one REGISTER_UPVALUE pseudo-op per captured
// upvalue) into the enclosing chunk, per spec.md §4.3.6.
func (c *compiler) compileFunctionBody(pos token.Pos, name string) {
	parent := c.fs
	child := &funcState{
		enclosing:  parent,
		fn:         &FunctionObject{Name: name, Chunk: &Chunk{}},
		dedupNames: make(map[string]int),
		labels:     make(map[string]int),
	}
	child.locals = append(child.locals, localVar{depth: 0})
	c.fs = child

	c.expect(token.LPAREN)
	arity := 0
	if !c.check(token.RPAREN) {
		for {
			pname := c.expect(token.IDENT)
			c.declareLocal(pname.pos, pname.val.Str)
			arity++
			if arity > MaxParams {
				c.errorf(pname.pos, "too many parameters in function")
			}
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.expect(token.RPAREN)
	child.fn.Arity = arity

	for !c.checkAny(token.END, token.EOF) {
		c.declaration()
	}
	c.expect(token.END)
	c.finishFunction()

	c.fs = parent
	k := c.addConstant(pos, child.fn, false)
	c.emitOp1(pos, CLOSURE, k)
	for _, uv := range child.fn.Upvalues {
		c.emitOp(pos, REGISTER_UPVALUE)
		c.emitByte(pos, uv.SourceIndex)
		var nb byte
		if uv.Neighboring {
			nb = 1
		}
		c.emitByte(pos, nb)
	}
}

func (c *compiler) ifStmt() {
	pos := c.cur.pos
	c.advance() // 'if'
	c.compileExpression(token.PrecAssignment)
	c.expect(token.THEN)

	thenJump := c.emitJump(pos, POP_AND_GOTO_IF_FALSE)
	c.beginScope()
	for !c.checkAny(token.ELSE, token.ELSEIF, token.END, token.EOF) {
		c.declaration()
	}
	c.endScope(pos)

	var endJumps []int
	for c.check(token.ELSEIF) {
		endJumps = append(endJumps, c.emitJump(pos, FORWARD))
		c.patchJump(pos, thenJump)

		epos := c.cur.pos
		c.advance() // 'elseif'
		c.compileExpression(token.PrecAssignment)
		c.expect(token.THEN)
		thenJump = c.emitJump(epos, POP_AND_GOTO_IF_FALSE)
		c.beginScope()
		for !c.checkAny(token.ELSE, token.ELSEIF, token.END, token.EOF) {
			c.declaration()
		}
		c.endScope(epos)
		pos = epos
	}

	if c.match(token.ELSE) {
		endJumps = append(endJumps, c.emitJump(pos, FORWARD))
		c.patchJump(pos, thenJump)
		c.beginScope()
		for !c.checkAny(token.END, token.EOF) {
			c.declaration()
		}
		c.endScope(pos)
	} else {
		c.patchJump(pos, thenJump)
	}
	for _, j := range endJumps {
		c.patchJump(pos, j)
	}
	c.expect(token.END)
}

func (c *compiler) whileStmt() {
	pos := c.cur.pos
	c.advance() // 'while'
	loopStart := len(c.fs.fn.Chunk.Code)
	c.compileExpression(token.PrecAssignment)
	c.expect(token.DO)
	exitJump := c.emitJump(pos, POP_AND_GOTO_IF_FALSE)

	c.beginScope()
	for !c.checkAny(token.END, token.EOF) {
		c.declaration()
	}
	c.endScope(pos)
	c.expect(token.END)

	c.emitLoop(pos, loopStart)
	c.patchJump(pos, exitJump)
}

func (c *compiler) doStmt() {
	pos := c.cur.pos
	c.advance() // 'do'
	c.beginScope()
	for !c.checkAny(token.END, token.EOF) {
		c.declaration()
	}
	c.endScope(pos)
	c.expect(token.END)
}

// numericForStmt compiles `for name = start, stop [, step] do ... end`,
// per spec.md §4.3.3/§8 scenario S5. The loop control values occupy three
// contiguous, otherwise-inaccessible local slots (the visible loop
// variable, plus hidden limit and step slots); FOR_NUMERIC and INCREMENT
// always operate on the three topmost locals of the loop's own scope, which
// is sound because nothing is pushed above them between iterations (the
// body's own scope is fully closed before each INCREMENT/REWIND).
func (c *compiler) numericForStmt() {
	pos := c.cur.pos
	c.advance() // 'for'
	name := c.expect(token.IDENT)
	c.expect(token.EQ)
	c.compileExpression(token.PrecAssignment) // start
	c.expect(token.COMMA)
	c.compileExpression(token.PrecAssignment) // stop
	if c.match(token.COMMA) {
		c.compileExpression(token.PrecAssignment) // step
	} else {
		k := c.addConstant(pos, int64(1), false)
		c.emitOp1(pos, CONSTANT, k)
	}
	c.expect(token.DO)

	c.beginScope()
	iSlot := c.declareLocal(name.pos, name.val.Str)
	c.declareLocal(pos, "") // limit
	c.declareLocal(pos, "") // step

	loopStart := len(c.fs.fn.Chunk.Code)
	exitJump := c.emitJump(pos, FOR_NUMERIC)

	c.beginScope()
	for !c.checkAny(token.END, token.EOF) {
		c.declaration()
	}
	c.endScope(pos)
	c.expect(token.END)

	c.emitOp1(pos, INCREMENT, iSlot)
	c.emitLoop(pos, loopStart)
	c.patchJump(pos, exitJump)
	c.endScope(pos)
}

func (c *compiler) returnStmt() {
	pos := c.cur.pos
	c.advance() // 'return'
	if c.checkAny(token.END, token.ELSE, token.ELSEIF, token.EOF, token.SEMI) {
		c.emitOp(pos, NIL)
	} else {
		c.compileExpression(token.PrecAssignment)
	}
	c.emitOp(pos, RETURN)
}

func (c *compiler) labelStmt() {
	pos := c.cur.pos
	c.advance() // '::'
	name := c.expect(token.IDENT)
	c.expect(token.COLONCOLON)

	c.fs.labels[name.val.Str] = len(c.fs.fn.Chunk.Code)

	remaining := c.fs.pending[:0]
	for _, g := range c.fs.pending {
		if g.name == name.val.Str {
			c.patchJump(pos, g.patchAt)
		} else {
			remaining = append(remaining, g)
		}
	}
	c.fs.pending = remaining
}

func (c *compiler) gotoStmt() {
	pos := c.cur.pos
	c.advance() // 'goto'
	name := c.expect(token.IDENT)
	if target, ok := c.fs.labels[name.val.Str]; ok {
		c.emitLoop(pos, target)
		return
	}
	patchAt := c.emitJump(pos, FORWARD)
	c.fs.pending = append(c.fs.pending, pendingGoto{name: name.val.Str, patchAt: patchAt, pos: pos})
}

// exprStatement compiles an assignment (plain, compound, walrus, or
// multi-target) or a bare expression statement (typically a call), per
// spec.md §4.3.3.
func (c *compiler) exprStatement() {
	pos := c.cur.pos

	if c.check(token.IDENT) && c.peekNext().tok == token.WALRUS {
		name := c.expect(token.IDENT)
		c.expect(token.WALRUS)
		c.compileExpression(token.PrecAssignment)
		c.declareLocal(name.pos, name.val.Str)
		return
	}

	t := c.compileSuffixable(true)

	switch c.cur.tok {
	case token.EQ:
		c.advance()
		c.compileAssignRHS([]target{t})

	case token.COMMA:
		targets := []target{t}
		for c.match(token.COMMA) {
			targets = append(targets, c.compileSuffixable(true))
		}
		c.expect(token.EQ)
		c.compileAssignRHS(targets)

	case token.PLUSEQ, token.MINUSEQ, token.STAREQ, token.SLASHEQ, token.PERCENTEQ:
		c.compileCompoundAssign(t, c.cur.tok)

	default:
		c.finalizeRead(t)
		c.emitOp(pos, POP)
	}
}

// compileAssignRHS compiles a comma-separated expression list and assigns
// the results to targets left-to-right, padding missing values with nil and
// discarding surplus values, mirroring the CALL argument-count policy
// (spec.md §9; see DESIGN.md). Only plain local/upvalue/global targets are
// supported when there is more than one target; assigning to a table field
// or index is supported only in single-target form.
func (c *compiler) compileAssignRHS(targets []target) {
	pos := c.cur.pos
	if len(targets) > 1 {
		for _, t := range targets {
			if t.kind == targetField || t.kind == targetIndex {
				c.errorf(t.pos, "table fields are not supported in multi-target assignment")
			}
		}
	}

	if len(targets) == 1 {
		c.prepareWrite(targets[0])
		c.compileExpression(token.PrecAssignment)
		c.completeWrite(targets[0])
		return
	}

	rhsCount := 0
	for {
		c.compileExpression(token.PrecAssignment)
		rhsCount++
		if !c.match(token.COMMA) {
			break
		}
	}
	for rhsCount < len(targets) {
		c.emitOp(pos, NIL)
		rhsCount++
	}
	for rhsCount > len(targets) {
		c.emitOp(pos, POP)
		rhsCount--
	}
	for i := len(targets) - 1; i >= 0; i-- {
		c.completeWrite(targets[i])
	}
}

// compileCompoundAssign compiles `target OP= rhs` for the plain (non-table)
// target kinds; table fields/indices are rejected since re-reading them
// without clobbering the container/key the write needs would require stack
// duplication this compiler does not implement.
func (c *compiler) compileCompoundAssign(t target, op token.Token) {
	opPos := c.cur.pos
	c.advance()
	switch t.kind {
	case targetLocal, targetUpvalue, targetGlobal:
		c.finalizeRead(t)
		c.compileExpression(token.PrecAssignment)
		switch op {
		case token.PLUSEQ:
			c.emitOp(opPos, ADD)
		case token.MINUSEQ:
			c.emitOp(opPos, SUB)
		case token.STAREQ:
			c.emitOp(opPos, MULTIPLY)
		case token.SLASHEQ:
			c.emitOp(opPos, DIVIDE)
		case token.PERCENTEQ:
			c.errorf(opPos, "operator %%= is not implemented by this virtual machine")
		}
		c.completeWrite(t)
	default:
		c.errorf(t.pos, "compound assignment to this expression is not supported")
		c.compileExpression(token.PrecAssignment)
		c.emitOp(opPos, POP)
	}
}
