package compiler

import "github.com/mna/tamarin/lang/token"

// advance discards the current lookahead token and scans the next one.
func (c *compiler) advance() {
	if c.peeked != nil {
		c.cur = *c.peeked
		c.peeked = nil
		return
	}
	tok, val, pos := c.lx.Scan()
	c.cur = lexed{tok: tok, val: val, pos: pos}
}

// peekNext returns the token following the current lookahead token, without
// consuming either. Used only where the grammar is not resolvable with a
// single token of lookahead: distinguishing a table constructor's `ident =
// value` entries from a positional entry that happens to start with an
// identifier expression, and an `ident := e` short declaration from an
// expression statement that starts with an identifier.
func (c *compiler) peekNext() lexed {
	if c.peeked == nil {
		tok, val, pos := c.lx.Scan()
		l := lexed{tok: tok, val: val, pos: pos}
		c.peeked = &l
	}
	return *c.peeked
}

// check reports whether the current lookahead token is tok.
func (c *compiler) check(tok token.Token) bool { return c.cur.tok == tok }

// match consumes the current token and returns true if it is tok, otherwise
// leaves it in place and returns false.
func (c *compiler) match(tok token.Token) bool {
	if !c.check(tok) {
		return false
	}
	c.advance()
	return true
}

// expect consumes the current token if it is tok, otherwise records a
// syntax error. It always advances past the (possibly wrong) token, per
// spec.md §4.7's forgiving recovery policy.
func (c *compiler) expect(tok token.Token) lexed {
	got := c.cur
	if got.tok != tok {
		c.errorf(got.pos, "expected %s, found %s", tok, got.tok)
	}
	c.advance()
	return got
}

// synchronize discards tokens until a likely statement boundary, per
// spec.md §4.7: after recording a compile error, the compiler resumes
// parsing at the next statement rather than aborting the whole compile.
func (c *compiler) synchronize() {
	for c.cur.tok != token.EOF {
		switch c.cur.tok {
		case token.LOCAL, token.GLOBAL, token.FUNCTION, token.IF, token.WHILE,
			token.DO, token.FOR, token.RETURN, token.COLONCOLON, token.GOTO:
			return
		}
		c.advance()
	}
}

// emitByte appends one raw byte to the current function's code, tagging it
// with pos for diagnostics and stack traces.
func (c *compiler) emitByte(pos token.Pos, b byte) {
	ch := c.fs.fn.Chunk
	ch.Code = append(ch.Code, b)
	ch.Lines = append(ch.Lines, pos)
}

func (c *compiler) emitOp(pos token.Pos, op Opcode) {
	c.emitByte(pos, byte(op))
}

func (c *compiler) emitOp1(pos token.Pos, op Opcode, operand uint8) {
	c.emitOp(pos, op)
	c.emitByte(pos, operand)
}

func (c *compiler) emitOp2(pos token.Pos, op Opcode, operand uint16) {
	c.emitOp(pos, op)
	c.emitByte(pos, byte(operand>>8))
	c.emitByte(pos, byte(operand))
}

// emitJump emits op followed by a placeholder 16-bit operand, returning the
// code offset of that operand so it can be patched once the target is
// known.
func (c *compiler) emitJump(pos token.Pos, op Opcode) int {
	c.emitOp2(pos, op, 0xFFFF)
	return len(c.fs.fn.Chunk.Code) - 2
}

// patchJump backfills the placeholder operand at patchAt with the forward
// distance from just past the operand to the current code position.
func (c *compiler) patchJump(pos token.Pos, patchAt int) {
	ch := c.fs.fn.Chunk
	dist := len(ch.Code) - (patchAt + 2)
	if dist > MaxJumpOffset {
		c.errorf(pos, "too much code to jump over")
		dist = 0
	}
	ch.Code[patchAt] = byte(uint16(dist) >> 8)
	ch.Code[patchAt+1] = byte(uint16(dist))
}

// emitLoop emits a REWIND back to loopStart.
func (c *compiler) emitLoop(pos token.Pos, loopStart int) {
	dist := len(c.fs.fn.Chunk.Code) + 3 - loopStart
	if dist > MaxJumpOffset {
		c.errorf(pos, "loop body too large")
		dist = 0
	}
	c.emitOp2(pos, REWIND, uint16(dist))
}

// addConstant interns v into the current function's constant pool.
func (c *compiler) addConstant(pos token.Pos, v any, isName bool) uint8 {
	idx, ok := c.fs.fn.Chunk.addConstant(v, c.fs.dedupNames, isName)
	if !ok {
		c.errorf(pos, "too many constants in one function")
	}
	return idx
}

// beginScope enters a new lexical block within the current function.
func (c *compiler) beginScope() { c.fs.depth++ }

// endScope leaves the current lexical block, popping and (if needed)
// closing every local declared within it, per spec.md §4.3.5: the departing
// locals are processed from the top of the stack down, in contiguous runs
// grouped by their captured flag, alternating POPS and CLOSE_UPVALUES
// starting with POPS (emitting a zero-count POPS first if the very first
// departing local, i.e. the most recently declared one, was captured).
func (c *compiler) endScope(pos token.Pos) {
	fs := c.fs
	fs.depth--

	n := 0
	for len(fs.locals)-n > 0 && fs.locals[len(fs.locals)-1-n].depth > fs.depth {
		n++
	}
	if n == 0 {
		return
	}
	popped := fs.locals[len(fs.locals)-n:]
	fs.locals = fs.locals[:len(fs.locals)-n]

	i := len(popped) - 1
	if popped[i].captured {
		c.emitOp1(pos, POPS, 0)
	}
	for i >= 0 {
		flag := popped[i].captured
		count := 0
		for i >= 0 && popped[i].captured == flag {
			count++
			i--
		}
		if flag {
			c.emitOp1(pos, CLOSE_UPVALUES, uint8(count))
		} else {
			c.emitOp1(pos, POPS, uint8(count))
		}
	}
}

// finishFunction closes out the function currently being compiled: it emits
// the implicit `nil; return` every function body ends with unless the last
// statement already returned, per spec.md §4.3.6. A trailing RETURN only
// counts when no forward jump lands just past it (an `if` without `else`
// whose branch returns patches its jump to the end of the code).
func (c *compiler) finishFunction() {
	ch := c.fs.fn.Chunk
	lastOp, jumpsToEnd := -1, false
	for pc := 0; pc < len(ch.Code); {
		op := Opcode(ch.Code[pc])
		switch op {
		case GOTO_IF_FALSE, GOTO_IF_TRUE, POP_AND_GOTO_IF_FALSE, FORWARD, FOR_NUMERIC:
			if pc+3+(int(ch.Code[pc+1])<<8|int(ch.Code[pc+2])) == len(ch.Code) {
				jumpsToEnd = true
			}
		}
		lastOp = pc
		pc += 1 + op.operandWidth()
	}
	if lastOp < 0 || Opcode(ch.Code[lastOp]) != RETURN || jumpsToEnd {
		pos := c.cur.pos
		c.emitOp(pos, NIL)
		c.emitOp(pos, RETURN)
	}
	for _, g := range c.fs.pending {
		c.errorf(g.pos, "no visible label %q for goto", g.name)
	}
	c.fs.fn.Chunk.Valid = len(c.errors) == 0
}
