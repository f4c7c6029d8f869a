package compiler

import "github.com/mna/tamarin/lang/token"

// targetKind tags the shape of a parsed assignable (or readable) expression
// path, per spec.md §4.3.7: a bare name resolves to a local/upvalue/global
// slot; a dotted or bracketed suffix leaves its container (and, for the
// bracketed form, its key) already evaluated on the stack.
type targetKind int

const (
	targetNone targetKind = iota // not assignable: value already fully on stack
	targetLocal
	targetUpvalue
	targetGlobal
	targetField // container on stack; key is the constant at slot
	targetIndex // container, then key, both already on stack
)

type target struct {
	kind targetKind
	slot uint8 // local/upvalue index, or global/field name constant index
	pos  token.Pos
}

// finalizeRead completes a deferred target by pushing its value onto the
// stack, if not already there.
func (c *compiler) finalizeRead(t target) {
	switch t.kind {
	case identKindNone:
	case targetLocal:
		c.emitOp1(t.pos, GET_LOCAL, t.slot)
	case targetUpvalue:
		c.emitOp1(t.pos, GET_UPVALUE, t.slot)
	case targetGlobal:
		c.emitOp1(t.pos, GET_GLOBAL, t.slot)
	case targetField:
		c.emitOp1(t.pos, TABLE_GET_BY_CONSTANT, t.slot)
	case targetIndex:
		c.emitOp1(t.pos, TABLE_GET, 1)
	}
}

// identKindNone aliases targetNone for readability in finalizeRead's switch
// (a plain value needs no opcode emitted: it is already on the stack).
const identKindNone = targetNone

// prepareWrite emits whatever a deferred target needs on the stack before
// the assignment's right-hand side is compiled. A field target defers its
// key to a constant-pool index (so reads can use the cheaper
// TABLE_GET_BY_CONSTANT form); prepareWrite is where that key is finally
// pushed, so the stack ends up [container, key] before the value is
// compiled on top, matching an index target's [container, key] that was
// pushed eagerly while parsing the chain.
func (c *compiler) prepareWrite(t target) {
	if t.kind == targetField {
		c.emitOp1(t.pos, CONSTANT, t.slot)
	}
}

// completeWrite finishes a deferred target as an assignment, assuming the
// stack now holds (from prepareWrite/parsing, bottom to top) whatever the
// target needs, with the value to store on top. It pops every operand it
// consumes, leaving the stack depth unchanged by the surrounding statement,
// per the stack-discipline invariant (spec.md §8).
func (c *compiler) completeWrite(t target) bool {
	switch t.kind {
	case targetLocal:
		c.emitOp1(t.pos, SET_LOCAL, t.slot)
	case targetUpvalue:
		c.emitOp1(t.pos, SET_UPVALUE, t.slot)
	case targetGlobal:
		c.emitOp1(t.pos, SET_GLOBAL, t.slot)
	case targetField, targetIndex:
		c.emitOp1(t.pos, TABLE_SET, 1)
	default:
		c.errorf(t.pos, "cannot assign to this expression")
		return false
	}
	return true
}

// compileSuffixable parses a primary expression followed by any chain of
// '.', '[...]' and call suffixes. If keepLast is true, the final suffix in
// the chain is left unresolved and returned as a target descriptor (so the
// caller can decide to read or write it); otherwise every suffix, including
// the last, is fully read.
func (c *compiler) compileSuffixable(keepLast bool) target {
	t := c.compilePrimaryTarget()

	for {
		switch c.cur.tok {
		case token.DOT:
			dotPos := c.cur.pos
			c.advance()
			name := c.expect(token.IDENT)
			more := c.isSuffixNext()
			if !more && keepLast {
				c.finalizeReadContainer(t, dotPos)
				k := c.addConstant(name.pos, name.val.Str, true)
				return target{kind: targetField, slot: k, pos: dotPos}
			}
			c.finalizeReadContainer(t, dotPos)
			k := c.addConstant(name.pos, name.val.Str, true)
			c.emitOp1(dotPos, TABLE_GET_BY_CONSTANT, k)
			t = target{kind: targetNone, pos: dotPos}

		case token.LBRACK:
			brPos := c.cur.pos
			c.advance()
			c.finalizeReadContainer(t, brPos)
			c.compileExpression(token.PrecAssignment)
			c.expect(token.RBRACK)
			more := c.isSuffixNext()
			if !more && keepLast {
				return target{kind: targetIndex, pos: brPos}
			}
			c.emitOp1(brPos, TABLE_GET, 1)
			t = target{kind: targetNone, pos: brPos}

		case token.LPAREN:
			callPos := c.cur.pos
			c.finalizeReadContainer(t, callPos)
			argc := c.compileArgs()
			c.emitOp1(callPos, CALL, argc)
			t = target{kind: targetNone, pos: callPos}

		default:
			if keepLast {
				return t
			}
			c.finalizeRead(t)
			return target{kind: targetNone, pos: t.pos}
		}
	}
}

// finalizeReadContainer pushes t's value if it isn't already sitting on the
// stack (targetNone means it already is, e.g. the result of a previous
// suffix or a non-suffixable primary).
func (c *compiler) finalizeReadContainer(t target, pos token.Pos) {
	if t.kind == targetNone {
		return
	}
	c.finalizeRead(t)
}

// isSuffixNext reports whether the current lookahead continues a suffix
// chain ('.', '[' or '(').
func (c *compiler) isSuffixNext() bool {
	switch c.cur.tok {
	case token.DOT, token.LBRACK, token.LPAREN:
		return true
	}
	return false
}

// compileArgs compiles a parenthesized, comma-separated call argument list,
// assuming the callee has already been pushed, and returns the arg count.
func (c *compiler) compileArgs() uint8 {
	c.expect(token.LPAREN)
	var n int
	if !c.check(token.RPAREN) {
		for {
			c.compileExpression(token.PrecAssignment)
			n++
			if n > MaxParams {
				c.errorf(c.cur.pos, "too many arguments in call")
			}
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.expect(token.RPAREN)
	return uint8(n)
}
