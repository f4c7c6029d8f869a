// Package compiler implements the single-pass Pratt-style compiler
// described in spec.md §4.3: it consumes lexer output directly and emits
// bytecode into a Chunk without building an intermediate AST. It also
// defines the bytecode instruction encoding (§4.2) and a textual
// disassembler used by tests and tooling.
package compiler

import (
	"fmt"
	"go/scanner"
	gotoken "go/token"

	"github.com/mna/tamarin/lang/lexer"
	"github.com/mna/tamarin/lang/token"
)

// Compile compiles source into a top-level FunctionObject (the "script"
// function, arity 0, IsScript true). If the returned error is non-nil, it is
// guaranteed to be a scanner.ErrorList (mirroring the teacher's parser and
// resolver packages), and the returned FunctionObject may be partially built
// and must not be executed.
func Compile(name string, src []byte) (*FunctionObject, error) {
	c := &compiler{}
	c.lx = lexer.New(src, c.onLexError)
	top := &funcState{
		fn: &FunctionObject{
			Name:     name,
			Chunk:    &Chunk{},
			IsScript: true,
		},
		dedupNames: make(map[string]int),
		labels:     make(map[string]int),
	}
	// Slot 0 is reserved for the function/callee value itself, as in the
	// teacher's locals bookkeeping for method receivers.
	top.locals = append(top.locals, localVar{depth: 0})
	c.fs = top

	c.advance()
	for c.cur.tok != token.EOF {
		c.declaration()
	}
	c.finishFunction()

	if len(c.errors) > 0 {
		c.errors.Sort()
		return top.fn, c.errors.Err()
	}
	top.fn.Chunk.Valid = true
	return top.fn, nil
}

// lexed is one token of lookahead, produced by the lexer.
type lexed struct {
	tok token.Token
	val lexer.Value
	pos token.Pos
}

// localVar is one entry in a function's locals stack.
type localVar struct {
	name     string
	depth    int // lexical scope depth within the owning function
	captured bool
}

// pendingGoto records a forward goto awaiting its label.
type pendingGoto struct {
	name    string
	patchAt int // code offset of the FORWARD instruction's operand
	pos     token.Pos
}

// funcState holds the compiler state for one function body being compiled.
// funcState values form a chain via enclosing, one per lexical function
// nesting level currently open, mirroring the teacher's fcomp/pcomp split
// but generalized for single-pass emission (no separate AST walk).
type funcState struct {
	enclosing *funcState

	fn    *FunctionObject
	depth int // lexical scope depth, incremented by beginScope, decremented by endScope

	locals     []localVar
	dedupNames map[string]int // name constant de-duplication for this chunk

	labels  map[string]int
	pending []pendingGoto
}

// compiler is the single shared driver: one lexer, one token of lookahead
// plus an optional second peeked token, and a chain of funcState values
// (innermost first via c.fs).
type compiler struct {
	lx     *lexer.Lexer
	fs     *funcState
	cur    lexed
	peeked *lexed

	errors scanner.ErrorList
}

func (c *compiler) onLexError(pos token.Pos, msg string) {
	c.errors.Add(toGoPosition(pos), msg)
}

func toGoPosition(pos token.Pos) gotoken.Position {
	line, col := pos.LineCol()
	return gotoken.Position{Line: line, Column: col}
}

func (c *compiler) errorf(pos token.Pos, format string, args ...any) {
	c.errors.Add(toGoPosition(pos), fmt.Sprintf(format, args...))
}
