package compiler

import "github.com/mna/tamarin/lang/token"

// compileExpression compiles a value-producing expression, leaving exactly
// one value on the stack, using precedence climbing per spec.md §4.3.2: at
// each step it accepts an infix operator whose binding precedence is at
// least minPrec, compiling its right operand with that operator's
// precedence plus one (or the operator's precedence itself for the
// right-associative `..` and `^`).
func (c *compiler) compileExpression(minPrec token.Precedence) {
	c.compileUnary()

	for {
		prec := c.cur.tok.InfixPrecedence()
		if prec == token.PrecNone || prec < minPrec {
			return
		}
		op := c.cur.tok
		opPos := c.cur.pos

		switch op {
		case token.AND:
			c.advance()
			skip := c.emitJump(opPos, GOTO_IF_FALSE)
			c.emitOp(opPos, POP)
			c.compileExpression(token.PrecAnd)
			c.patchJump(opPos, skip)
			continue
		case token.OR:
			c.advance()
			skip := c.emitJump(opPos, GOTO_IF_TRUE)
			c.emitOp(opPos, POP)
			c.compileExpression(token.PrecOr)
			c.patchJump(opPos, skip)
			continue
		}

		// Suffix operators ('.', '[', '(') are handled in compileSuffixable,
		// not here; stop the infix loop so the caller's enclosing context (a
		// statement or another expression) deals with them.
		if op == token.LPAREN || op == token.DOT || op == token.LBRACK {
			return
		}

		c.advance()
		nextMin := prec + 1
		if op.RightAssociative() {
			nextMin = prec
		}
		c.compileExpression(nextMin)
		c.emitBinaryOp(opPos, op)
	}
}

func (c *compiler) emitBinaryOp(pos token.Pos, op token.Token) {
	switch op {
	case token.PLUS:
		c.emitOp(pos, ADD)
	case token.MINUS:
		c.emitOp(pos, SUB)
	case token.STAR:
		c.emitOp(pos, MULTIPLY)
	case token.SLASH:
		c.emitOp(pos, DIVIDE)
	case token.DOTDOT:
		c.emitOp(pos, CONCAT)
	case token.EQEQ:
		c.emitOp(pos, EQUAL)
	case token.BANGEQ:
		c.emitOp(pos, NOT_EQUAL)
	case token.LT:
		c.emitOp(pos, LESS)
	case token.LE:
		c.emitOp(pos, LESS_EQUAL)
	case token.GT:
		c.emitOp(pos, GREATER)
	case token.GE:
		c.emitOp(pos, GREATER_EQUAL)
	case token.SLASHSLASH, token.PERCENT, token.CARET:
		c.errorf(pos, "operator %s is not implemented by this virtual machine", op)
	default:
		c.errorf(pos, "unsupported binary operator %s", op)
	}
}

// compileUnary compiles `not`, `-` and `#` prefix operators, or falls
// through to a suffixable primary expression.
func (c *compiler) compileUnary() {
	switch c.cur.tok {
	case token.NOT:
		pos := c.cur.pos
		c.advance()
		c.compileExpression(token.PrecUnary)
		c.emitOp(pos, NOT)
	case token.MINUS:
		pos := c.cur.pos
		c.advance()
		c.compileExpression(token.PrecUnary)
		c.emitOp(pos, NEGATE)
	case token.HASH:
		pos := c.cur.pos
		c.advance()
		c.compileExpression(token.PrecUnary)
		c.emitOp(pos, LENGTH)
	default:
		c.compileSuffixable(false)
	}
}

// compilePrimaryTarget parses one primary expression (identifier, literal,
// parenthesized expression, table constructor or function literal). For a
// bare identifier it defers resolution and returns a target descriptor
// without emitting anything; for everything else it fully compiles the
// expression (leaving its value on the stack) and returns targetNone.
func (c *compiler) compilePrimaryTarget() target {
	pos := c.cur.pos
	switch c.cur.tok {
	case token.IDENT:
		name := c.cur.val.Str
		c.advance()
		kind, slot := c.resolveIdent(name)
		switch kind {
		case identLocal:
			return target{kind: targetLocal, slot: slot, pos: pos}
		case identUpvalue:
			return target{kind: targetUpvalue, slot: slot, pos: pos}
		default:
			k := c.addConstant(pos, name, true)
			return target{kind: targetGlobal, slot: k, pos: pos}
		}

	case token.INT:
		v := c.cur.val.Int
		c.advance()
		k := c.addConstant(pos, v, false)
		c.emitOp1(pos, CONSTANT, k)

	case token.FLOAT:
		v := c.cur.val.Float
		c.advance()
		k := c.addConstant(pos, v, false)
		c.emitOp1(pos, CONSTANT, k)

	case token.STRING:
		v := c.cur.val.Str
		c.advance()
		k := c.addConstant(pos, v, false)
		c.emitOp1(pos, CONSTANT, k)

	case token.NIL:
		c.advance()
		c.emitOp(pos, NIL)

	case token.TRUE:
		c.advance()
		c.emitOp(pos, TRUE)

	case token.FALSE:
		c.advance()
		c.emitOp(pos, FALSE)

	case token.LPAREN:
		c.advance()
		c.compileExpression(token.PrecAssignment)
		c.expect(token.RPAREN)

	case token.LBRACE:
		c.compileTableConstructor()

	case token.FUNCTION:
		c.advance()
		c.compileFunctionBody(pos, "")

	default:
		c.errorf(pos, "unexpected %s in expression", c.cur.tok)
		c.advance()
		c.emitOp(pos, NIL)
	}
	return target{kind: targetNone, pos: pos}
}

// compileTableConstructor compiles a `{ ... }` table literal per
// spec.md §4.3.7: NEW_TABLE, followed by either TABLE_INSERT for each keyed
// entry (depth-tagged by the number of positional values already pushed
// above the table) or a plain push for positional entries, finished by a
// single TABLE_BUILD that bulk-appends the accumulated positional values.
func (c *compiler) compileTableConstructor() {
	pos := c.cur.pos
	c.expect(token.LBRACE)
	c.emitOp(pos, NEW_TABLE)

	posCount := 0
	for !c.check(token.RBRACE) && c.cur.tok != token.EOF {
		switch {
		case c.check(token.LBRACK):
			c.advance()
			c.compileExpression(token.PrecAssignment)
			c.expect(token.RBRACK)
			c.expect(token.EQ)
			c.compileExpression(token.PrecAssignment)
			c.emitOp1(pos, TABLE_INSERT, uint8(posCount))

		case c.check(token.IDENT) && c.peekNext().tok == token.EQ:
			name := c.expect(token.IDENT)
			c.expect(token.EQ)
			k := c.addConstant(name.pos, name.val.Str, true)
			c.emitOp1(name.pos, CONSTANT, k)
			c.compileExpression(token.PrecAssignment)
			c.emitOp1(pos, TABLE_INSERT, uint8(posCount))

		default:
			c.compileExpression(token.PrecAssignment)
			posCount++
			if posCount > MaxParams {
				c.errorf(pos, "too many positional entries in table constructor")
			}
		}

		if !c.match(token.COMMA) && !c.match(token.SEMI) {
			break
		}
	}
	c.expect(token.RBRACE)
	c.emitOp1(pos, TABLE_BUILD, uint8(posCount))
}
