package verify

import (
	"encoding/binary"

	"github.com/theseus-rs/ristretto-sub014/opcodes"
)

// instruction is one decoded bytecode instruction: its offset, opcode, and
// the raw operand bytes following it (including any tableswitch/
// lookupswitch padding).
type instruction struct {
	PC      int
	Op      opcodes.Opcode
	Operand []byte
	NextPC  int // offset of the following instruction
}

// decodeInstructions walks a method's raw bytecode into a list of
// instructions, computing each one's length per JVMS §6.5 (including the
// variable-length tableswitch/lookupswitch/wide forms), so that both the
// verifier and a disassembler can share one decode pass.
func decodeInstructions(code []byte) ([]instruction, error) {
	var out []instruction
	pc := 0
	for pc < len(code) {
		op := code[pc]
		start := pc
		var operandLen int

		switch op {
		case opcodes.TABLESWITCH, opcodes.LOOKUPSWITCH:
			p := pc + 1
			for p%4 != 0 {
				p++
			} // pad to the next 4-byte boundary of the offset in the code array
			if p+4 > len(code) {
				return nil, &Error{PC: pc, Reason: "truncated switch instruction"}
			}
			if op == opcodes.TABLESWITCH {
				low := int32(binary.BigEndian.Uint32(code[p+4:]))
				high := int32(binary.BigEndian.Uint32(code[p+8:]))
				n := int(high-low) + 1
				if n < 0 {
					return nil, &Error{PC: pc, Reason: "invalid tableswitch range"}
				}
				end := p + 12 + n*4
				if end > len(code) {
					return nil, &Error{PC: pc, Reason: "truncated tableswitch"}
				}
				operandLen = end - pc - 1
			} else {
				npairs := int(binary.BigEndian.Uint32(code[p+4:]))
				if npairs < 0 {
					return nil, &Error{PC: pc, Reason: "invalid lookupswitch npairs"}
				}
				end := p + 8 + npairs*8
				if end > len(code) {
					return nil, &Error{PC: pc, Reason: "truncated lookupswitch"}
				}
				operandLen = end - pc - 1
			}
		case opcodes.WIDE:
			if pc+1 >= len(code) {
				return nil, &Error{PC: pc, Reason: "truncated wide instruction"}
			}
			widened := code[pc+1]
			if widened == opcodes.IINC {
				operandLen = 5 // modified opcode(1) + index(2) + const(2)
			} else {
				operandLen = 3 // modified opcode(1) + index(2)
			}
		default:
			info, ok := opcodes.Table[op]
			if !ok {
				return nil, &Error{PC: pc, Reason: "unknown opcode"}
			}
			operandLen = info.FixedLen
		}

		if start+1+operandLen > len(code) {
			return nil, &Error{PC: pc, Reason: "instruction operand runs past end of code"}
		}
		operand := code[start+1 : start+1+operandLen]
		pc = start + 1 + operandLen
		out = append(out, instruction{PC: start, Op: op, Operand: operand, NextPC: pc})
	}
	return out, nil
}

func u2(b []byte, off int) int { return int(binary.BigEndian.Uint16(b[off:])) }
func s2(b []byte, off int) int { return int(int16(binary.BigEndian.Uint16(b[off:]))) }
func s4(b []byte, off int) int { return int(int32(binary.BigEndian.Uint32(b[off:]))) }
