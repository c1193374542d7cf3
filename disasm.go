package oxs

import "fmt"

// disassemble renders every instruction in p's code segment (after the data
// segment) as one line of "offset  MNEMONIC operands", mirroring VM.Run's
// decode order for each opcode exactly so the output matches what actually
// executes.
func disassemble(p *Program) (string, error) {
	code := p.Code
	d := &decoder{code: code, pos: p.DataLen}
	out := ""
	for d.pos < len(code) {
		start := d.pos
		opByte := d.u8()
		op, err := OpcodeFromByte(opByte)
		if err != nil {
			return "", err
		}
		line, err := disassembleOne(op, d)
		if err != nil {
			return "", err
		}
		out += fmt.Sprintf("%6d  %s\n", start, line)
	}
	return out, nil
}

func disassembleOne(op Opcode, d *decoder) (string, error) {
	name := op.String()
	switch op {
	case OpNoop:
		return name, nil
	case OpHalt:
		return fmt.Sprintf("%s %d", name, d.u8()), nil

	case OpMovB, OpMovF, OpMovI, OpMovA:
		src, dst := d.reg(), d.reg()
		return fmt.Sprintf("%s %s, %s", name, src, dst), nil

	case OpMovBA, OpMovFA, OpMovIA, OpMovAA:
		regA, offA := d.reg(), d.off()
		regB, offB := d.reg(), d.off()
		return fmt.Sprintf("%s [%s%+d], [%s%+d]", name, regA, offA, regB, offB), nil
	case OpMovNA:
		regA, offA := d.reg(), d.off()
		regB, offB := d.reg(), d.off()
		n := d.len32()
		return fmt.Sprintf("%s [%s%+d], [%s%+d], %d", name, regA, offA, regB, offB, n), nil

	case OpMovBAR, OpMovFAR, OpMovIAR, OpMovAAR:
		addrReg, off, dst := d.reg(), d.off(), d.reg()
		return fmt.Sprintf("%s [%s%+d], %s", name, addrReg, off, dst), nil
	case OpMovBRA, OpMovFRA, OpMovIRA, OpMovARA:
		src, addrReg, off := d.reg(), d.reg(), d.off()
		return fmt.Sprintf("%s %s, [%s%+d]", name, src, addrReg, off), nil

	case OpLdB:
		imm, dst := d.boolean(), d.reg()
		return fmt.Sprintf("%s %t, %s", name, imm, dst), nil
	case OpLdF:
		imm, dst := d.f32(), d.reg()
		return fmt.Sprintf("%s %g, %s", name, imm, dst), nil
	case OpLdI:
		imm, dst := int64(d.u64()), d.reg()
		return fmt.Sprintf("%s %d, %s", name, imm, dst), nil
	case OpLdA:
		imm, dst := d.u64(), d.reg()
		return fmt.Sprintf("%s 0x%x, %s", name, imm, dst), nil

	case OpAddI, OpSubI, OpMulI, OpDivI, OpAddU, OpSubU, OpMulU, OpDivU,
		OpEqI, OpNeqI, OpLtI, OpGtI, OpLteqI, OpGteqI,
		OpAddF, OpSubF, OpMulF, OpDivF, OpEqF, OpNeqF, OpLtF, OpGtF, OpLteqF, OpGteqF,
		OpAnd, OpOr:
		lhs, rhs, dst := d.reg(), d.reg(), d.reg()
		return fmt.Sprintf("%s %s, %s, %s", name, lhs, rhs, dst), nil

	case OpAddIImm, OpSubIImm, OpMulIImm, OpDivIImm:
		lhs, imm, dst := d.reg(), int64(d.u64()), d.reg()
		return fmt.Sprintf("%s %s, %d, %s", name, lhs, imm, dst), nil
	case OpAddUImm, OpSubUImm, OpMulUImm, OpDivUImm:
		lhs, imm, dst := d.reg(), d.u64(), d.reg()
		return fmt.Sprintf("%s %s, %d, %s", name, lhs, imm, dst), nil
	case OpAddFImm, OpSubFImm, OpMulFImm, OpDivFImm:
		lhs, imm, dst := d.reg(), d.f32(), d.reg()
		return fmt.Sprintf("%s %s, %g, %s", name, lhs, imm, dst), nil

	case OpNot:
		src, dst := d.reg(), d.reg()
		return fmt.Sprintf("%s %s, %s", name, src, dst), nil

	case OpJmp:
		return fmt.Sprintf("%s %d", name, d.u64()), nil
	case OpJmpT, OpJmpF:
		cond, target := d.reg(), d.u64()
		return fmt.Sprintf("%s %s, %d", name, cond, target), nil
	case OpDJmp:
		return fmt.Sprintf("%s %s", name, d.reg()), nil
	case OpDJmpT, OpDJmpF:
		cond, reg := d.reg(), d.reg()
		return fmt.Sprintf("%s %s, %s", name, cond, reg), nil

	case OpCall:
		return fmt.Sprintf("%s 0x%x", name, d.u64()), nil
	case OpRet:
		return name, nil

	default:
		return "", &UnimplementedOpcodeError{Op: op}
	}
}
