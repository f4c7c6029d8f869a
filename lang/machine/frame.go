package machine

import "github.com/mna/tamarin/lang/compiler"

// callFrame records one active call, mirroring the teacher's Frame
// (lang/machine/frame.go) but carrying the extra bookkeeping a
// register-less stack VM needs: the base stack slot the callee's locals
// start at, and the current program counter into its chunk.
type callFrame struct {
	closure *Closure
	base    int // index into the VM's value stack where this call's locals begin
	pc      int
}

func (fr *callFrame) chunk() *compiler.Chunk { return fr.closure.Proto.Chunk }

// position returns the source position of the frame's current instruction,
// used for runtime error messages.
func (fr *callFrame) position() position {
	ch := fr.chunk()
	if fr.pc >= 0 && fr.pc < len(ch.Lines) {
		return ch.Lines[fr.pc]
	}
	return 0
}
