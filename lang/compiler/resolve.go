package compiler

import "github.com/mna/tamarin/lang/token"

// declareLocal adds name as a new local in the current function and scope.
// Shadowing an outer local of the same name is allowed, per spec.md §4.3.1.
func (c *compiler) declareLocal(pos token.Pos, name string) uint8 {
	fs := c.fs
	if len(fs.locals) >= MaxLocals {
		c.errorf(pos, "too many local variables in function")
		return 0
	}
	fs.locals = append(fs.locals, localVar{name: name, depth: fs.depth})
	fs.fn.Locals = append(fs.fn.Locals, Binding{Name: name, Pos: pos})
	return uint8(len(fs.locals) - 1)
}

// findLocal returns the slot index of the nearest (innermost) local named
// name in fs, searching from the top of the stack down.
func findLocal(fs *funcState, name string) (int, bool) {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i].name == name {
			return i, true
		}
	}
	return -1, false
}

// addUpvalue records (or reuses) an upvalue entry in fs referring to
// sourceIndex, which is a local slot in fs.enclosing when neighboring is
// true, or an upvalue index in fs.enclosing when neighboring is false. This
// is the spec.md §4.3.4 resolve_upvalue bookkeeping step.
func addUpvalue(fs *funcState, name string, sourceIndex uint8, neighboring bool) uint8 {
	for i, uv := range fs.fn.Upvalues {
		if uv.SourceIndex == sourceIndex && uv.Neighboring == neighboring {
			return uint8(i)
		}
	}
	fs.fn.Upvalues = append(fs.fn.Upvalues, UpvalueDesc{
		SourceIndex: sourceIndex,
		Neighboring: neighboring,
		Name:        name,
	})
	return uint8(len(fs.fn.Upvalues) - 1)
}

// resolveUpvalue implements spec.md §4.3.4's resolve_upvalue algorithm: a
// name not found as a local in fs is looked for as a local of fs.enclosing
// (the "neighboring" case, level == target+1) and, failing that, resolved
// recursively as an upvalue of fs.enclosing (the level > target+1 case),
// chaining one upvalue entry per intervening function.
func resolveUpvalue(fs *funcState, name string) (uint8, bool) {
	if fs.enclosing == nil {
		return 0, false
	}
	if li, ok := findLocal(fs.enclosing, name); ok {
		fs.enclosing.locals[li].captured = true
		return addUpvalue(fs, name, uint8(li), true), true
	}
	if ui, ok := resolveUpvalue(fs.enclosing, name); ok {
		return addUpvalue(fs, name, ui, false), true
	}
	return 0, false
}

// identKind tags how an identifier resolved, per spec.md §4.3.4.
type identKind int

const (
	identGlobal identKind = iota
	identLocal
	identUpvalue
)

// resolveIdent resolves name against the current function's locals, then
// (recursively) the enclosing functions' locals as upvalues, and finally
// falls back to global, per spec.md §4.3.4.
func (c *compiler) resolveIdent(name string) (identKind, uint8) {
	if li, ok := findLocal(c.fs, name); ok {
		return identLocal, uint8(li)
	}
	if ui, ok := resolveUpvalue(c.fs, name); ok {
		return identUpvalue, ui
	}
	return identGlobal, 0
}
