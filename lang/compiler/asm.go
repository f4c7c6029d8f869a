package compiler

import (
	"fmt"
	"strings"
)

// Disassemble renders fn and every function nested within its constant pool
// as human-readable bytecode listings, one instruction per line, in the
// style of the teacher's asm.go pseudo-assembly dumps (simplified here to a
// read-only disassembler: tests and tooling need to inspect emitted code,
// not round-trip it back into a Chunk).
func Disassemble(fn *FunctionObject) string {
	var sb strings.Builder
	disassembleFunction(&sb, fn)
	return sb.String()
}

func disassembleFunction(sb *strings.Builder, fn *FunctionObject) {
	fmt.Fprintf(sb, "function %s(%d params, %d upvalues):\n", displayName(fn), fn.Arity, fn.NumUpvalues())

	var nested []*FunctionObject
	code := fn.Chunk.Code
	for pc := 0; pc < len(code); {
		op := Opcode(code[pc])
		width := op.operandWidth()
		fmt.Fprintf(sb, "  %04d  %s", pc, op)

		switch {
		case op == REGISTER_UPVALUE:
			idx, neighboring := code[pc+1], code[pc+2]
			fmt.Fprintf(sb, " %d %v", idx, neighboring != 0)
		case width == 1:
			operand := code[pc+1]
			fmt.Fprintf(sb, " %d", operand)
			if op == CONSTANT || op == CLOSURE {
				if int(operand) < len(fn.Chunk.Constants) {
					c := fn.Chunk.Constants[operand]
					fmt.Fprintf(sb, " ; %v", c)
					if nestedFn, ok := c.(*FunctionObject); ok {
						nested = append(nested, nestedFn)
					}
				}
			}
		case width == 2:
			operand := uint16(code[pc+1])<<8 | uint16(code[pc+2])
			fmt.Fprintf(sb, " %d", operand)
		}
		sb.WriteByte('\n')
		pc += 1 + width
	}

	for _, n := range nested {
		disassembleFunction(sb, n)
	}
}

func displayName(fn *FunctionObject) string {
	if fn.Name != "" {
		return fn.Name
	}
	if fn.IsScript {
		return "<script>"
	}
	return "<anonymous>"
}
