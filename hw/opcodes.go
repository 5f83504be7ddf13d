package hw

// An opFunc executes an instruction, whose opcode has already been fetched,
// and returns the number of m-cycles it took. 0 means the opcode doesn't
// exist.
type opFunc func(c *CPU) int

var (
	ops   [256]opFunc
	cbops [256]opFunc
)

// Opcodes that lock the CPU.
var illegalOps = []uint8{0xD3, 0xDB, 0xDD, 0xE3, 0xE4, 0xEB, 0xEC, 0xED, 0xF4, 0xFC, 0xFD}

func init() {
	initOps()
	initCBOps()
}

// opcode bit fields
func opY(op uint8) uint8 { return op >> 3 & 7 }
func opZ(op uint8) uint8 { return op & 7 }
func opP(op uint8) uint8 { return op >> 4 & 3 }

// cost returns the cost of an instruction using the 8-bit operand r, (HL)
// operands cost extra memory accesses.
func cost(r uint8, reg, mem int) int {
	if r == 6 {
		return mem
	}
	return reg
}

func initOps() {
	for i := range 256 {
		op := uint8(i)
		x, y, z, p := op>>6, opY(op), opZ(op), opP(op)

		switch x {
		case 1:
			if op == 0x76 {
				ops[op] = opHALT
				continue
			}
			ops[op] = opLDrr(y, z)
			continue
		case 2:
			ops[op] = opALUr(y, z)
			continue
		}

		switch {
		// 16-bit loads and arithmetic
		case x == 0 && z == 1 && y&1 == 0:
			ops[op] = opLDrrd16(p)
		case x == 0 && z == 1:
			ops[op] = opADDHLrr(p)
		case x == 0 && z == 3 && y&1 == 0:
			ops[op] = opINCrr(p)
		case x == 0 && z == 3:
			ops[op] = opDECrr(p)

		// 8-bit inc/dec/load immediate
		case x == 0 && z == 4:
			ops[op] = opINCr(y)
		case x == 0 && z == 5:
			ops[op] = opDECr(y)
		case x == 0 && z == 6:
			ops[op] = opLDrd8(y)

		case x == 3 && z == 1 && y&1 == 0:
			ops[op] = opPOP(p)
		case x == 3 && z == 5 && y&1 == 0:
			ops[op] = opPUSH(p)
		case x == 3 && z == 6:
			ops[op] = opALUd8(y)
		case x == 3 && z == 7:
			ops[op] = opRST(uint16(y) * 8)

		// conditional flow control
		case x == 0 && z == 0 && y >= 4:
			ops[op] = opJRcc(y - 4)
		case x == 3 && z == 0 && y < 4:
			ops[op] = opRETcc(y)
		case x == 3 && z == 2 && y < 4:
			ops[op] = opJPcc(y)
		case x == 3 && z == 4 && y < 4:
			ops[op] = opCALLcc(y)
		}
	}

	ops[0x00] = func(c *CPU) int { return 1 }
	ops[0x10] = func(c *CPU) int { c.stop(); return 1 }
	ops[0x18] = func(c *CPU) int { c.jr(int8(c.fetch8())); return 3 }
	ops[0x08] = func(c *CPU) int { c.write16(c.fetch16(), c.SP); return 5 }

	// indirect accumulator loads
	ops[0x02] = func(c *CPU) int { c.Bus.Write8(c.BC(), c.A); return 2 }
	ops[0x12] = func(c *CPU) int { c.Bus.Write8(c.DE(), c.A); return 2 }
	ops[0x22] = func(c *CPU) int { hl := c.HL(); c.Bus.Write8(hl, c.A); c.SetHL(hl + 1); return 2 }
	ops[0x32] = func(c *CPU) int { hl := c.HL(); c.Bus.Write8(hl, c.A); c.SetHL(hl - 1); return 2 }
	ops[0x0A] = func(c *CPU) int { c.A = c.Bus.Read8(c.BC()); return 2 }
	ops[0x1A] = func(c *CPU) int { c.A = c.Bus.Read8(c.DE()); return 2 }
	ops[0x2A] = func(c *CPU) int { hl := c.HL(); c.A = c.Bus.Read8(hl); c.SetHL(hl + 1); return 2 }
	ops[0x3A] = func(c *CPU) int { hl := c.HL(); c.A = c.Bus.Read8(hl); c.SetHL(hl - 1); return 2 }

	// accumulator rotates and flag ops
	ops[0x07] = func(c *CPU) int { c.rotA(c.rlc); return 1 }
	ops[0x0F] = func(c *CPU) int { c.rotA(c.rrc); return 1 }
	ops[0x17] = func(c *CPU) int { c.rotA(c.rl); return 1 }
	ops[0x1F] = func(c *CPU) int { c.rotA(c.rr); return 1 }
	ops[0x27] = func(c *CPU) int { c.daa(); return 1 }
	ops[0x2F] = func(c *CPU) int { c.A = ^c.A; c.F |= FlagN | FlagH; return 1 }
	ops[0x37] = func(c *CPU) int { c.setFlags(flagsNHC, false, false, false, true); return 1 }
	ops[0x3F] = func(c *CPU) int { c.setFlags(flagsNHC, false, false, false, !c.F.C()); return 1 }

	// flow control
	ops[0xC3] = func(c *CPU) int { c.PC = c.fetch16(); return 4 }
	ops[0xE9] = func(c *CPU) int { c.PC = c.HL(); return 1 }
	ops[0xCD] = func(c *CPU) int { c.call(c.fetch16()); return 6 }
	ops[0xC9] = func(c *CPU) int { c.PC = c.pop16(); return 4 }
	ops[0xD9] = func(c *CPU) int { c.PC = c.pop16(); c.irq.SetMaster(true); return 4 }

	// high page and absolute accumulator loads
	ops[0xE0] = func(c *CPU) int { c.Bus.Write8(0xFF00|uint16(c.fetch8()), c.A); return 3 }
	ops[0xF0] = func(c *CPU) int { c.A = c.Bus.Read8(0xFF00 | uint16(c.fetch8())); return 3 }
	ops[0xE2] = func(c *CPU) int { c.Bus.Write8(0xFF00|uint16(c.C), c.A); return 2 }
	ops[0xF2] = func(c *CPU) int { c.A = c.Bus.Read8(0xFF00 | uint16(c.C)); return 2 }
	ops[0xEA] = func(c *CPU) int { c.Bus.Write8(c.fetch16(), c.A); return 4 }
	ops[0xFA] = func(c *CPU) int { c.A = c.Bus.Read8(c.fetch16()); return 4 }

	// stack pointer arithmetic
	ops[0xE8] = func(c *CPU) int { c.SP = c.addSP(c.fetch8()); return 4 }
	ops[0xF8] = func(c *CPU) int { c.SetHL(c.addSP(c.fetch8())); return 3 }
	ops[0xF9] = func(c *CPU) int { c.SP = c.HL(); return 2 }

	// interrupts
	ops[0xF3] = func(c *CPU) int { c.irq.SetMaster(false); c.eiDelay = 0; return 1 }
	ops[0xFB] = func(c *CPU) int {
		// IME is set after the next instruction.
		if !c.irq.Master() {
			c.eiDelay = 2
		}
		return 1
	}

	ops[0xCB] = func(c *CPU) int { return cbops[c.fetch8()](c) }

	for _, op := range illegalOps {
		ops[op] = opIllegal
	}
}

func opIllegal(c *CPU) int { return 0 }

func opHALT(c *CPU) int {
	c.halt()
	return 1
}

func opLDrr(dst, src uint8) opFunc {
	cycles := cost(dst, 1, 2)
	if src == 6 {
		cycles = 2
	}
	return func(c *CPU) int {
		c.setReg8(dst, c.reg8(src))
		return cycles
	}
}

func opLDrd8(r uint8) opFunc {
	cycles := cost(r, 2, 3)
	return func(c *CPU) int {
		c.setReg8(r, c.fetch8())
		return cycles
	}
}

func opINCr(r uint8) opFunc {
	cycles := cost(r, 1, 3)
	return func(c *CPU) int {
		c.setReg8(r, c.inc8(c.reg8(r)))
		return cycles
	}
}

func opDECr(r uint8) opFunc {
	cycles := cost(r, 1, 3)
	return func(c *CPU) int {
		c.setReg8(r, c.dec8(c.reg8(r)))
		return cycles
	}
}

// alu performs the 8-bit operation encoded in opcode bits 3-5 with A.
func (c *CPU) alu(kind, v uint8) {
	switch kind {
	case 0: // ADD
		c.A = c.add8(c.A, v, 0, flagsAll)
	case 1: // ADC
		c.A = c.add8(c.A, v, c.carry(), flagsAll)
	case 2: // SUB
		c.A = c.sub8(c.A, v, 0, flagsAll)
	case 3: // SBC
		c.A = c.sub8(c.A, v, c.carry(), flagsAll)
	case 4: // AND
		c.A = c.and8(c.A, v)
	case 5: // XOR
		c.A = c.xor8(c.A, v)
	case 6: // OR
		c.A = c.or8(c.A, v)
	case 7: // CP
		c.sub8(c.A, v, 0, flagsAll)
	}
}

func opALUr(kind, r uint8) opFunc {
	cycles := cost(r, 1, 2)
	return func(c *CPU) int {
		c.alu(kind, c.reg8(r))
		return cycles
	}
}

func opALUd8(kind uint8) opFunc {
	return func(c *CPU) int {
		c.alu(kind, c.fetch8())
		return 2
	}
}

func opLDrrd16(p uint8) opFunc {
	return func(c *CPU) int {
		c.setReg16(p, c.fetch16())
		return 3
	}
}

func opADDHLrr(p uint8) opFunc {
	return func(c *CPU) int {
		c.SetHL(c.add16(c.HL(), c.reg16(p), flagsNHC))
		return 2
	}
}

func opINCrr(p uint8) opFunc {
	return func(c *CPU) int {
		c.setReg16(p, c.reg16(p)+1)
		return 2
	}
}

func opDECrr(p uint8) opFunc {
	return func(c *CPU) int {
		c.setReg16(p, c.reg16(p)-1)
		return 2
	}
}

// PUSH and POP operate on AF instead of SP.
func opPUSH(p uint8) opFunc {
	return func(c *CPU) int {
		if p == 3 {
			c.push16(c.AF())
		} else {
			c.push16(c.reg16(p))
		}
		return 4
	}
}

func opPOP(p uint8) opFunc {
	return func(c *CPU) int {
		v := c.pop16()
		if p == 3 {
			c.SetAF(v)
		} else {
			c.setReg16(p, v)
		}
		return 3
	}
}

func (c *CPU) jr(off int8) {
	c.PC = uint16(int32(c.PC) + int32(off))
}

func (c *CPU) call(addr uint16) {
	c.push16(c.PC)
	c.PC = addr
}

func opJRcc(cc uint8) opFunc {
	return func(c *CPU) int {
		off := int8(c.fetch8())
		if !c.cond(cc) {
			return 2
		}
		c.jr(off)
		return 3
	}
}

func opJPcc(cc uint8) opFunc {
	return func(c *CPU) int {
		addr := c.fetch16()
		if !c.cond(cc) {
			return 3
		}
		c.PC = addr
		return 4
	}
}

func opCALLcc(cc uint8) opFunc {
	return func(c *CPU) int {
		addr := c.fetch16()
		if !c.cond(cc) {
			return 3
		}
		c.call(addr)
		return 6
	}
}

func opRETcc(cc uint8) opFunc {
	return func(c *CPU) int {
		if !c.cond(cc) {
			return 2
		}
		c.PC = c.pop16()
		return 5
	}
}

func opRST(vec uint16) opFunc {
	return func(c *CPU) int {
		c.call(vec)
		return 4
	}
}
