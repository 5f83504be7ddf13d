package hw

// Arithmetic and logic helpers. Each takes a policy mask of the flags the
// instruction is allowed to modify, others are left untouched.

func b2f(b bool, f Flags) Flags {
	if b {
		return f
	}
	return 0
}

func (c *CPU) setFlags(mask Flags, z, n, h, cy bool) {
	f := b2f(z, FlagZ) | b2f(n, FlagN) | b2f(h, FlagH) | b2f(cy, FlagC)
	c.F = c.F&^mask | f&mask
}

func (c *CPU) carry() uint8 {
	if c.F.C() {
		return 1
	}
	return 0
}

// add8 returns a+b+carry.
func (c *CPU) add8(a, b, carry uint8, mask Flags) uint8 {
	sum := uint16(a) + uint16(b) + uint16(carry)
	res := uint8(sum)
	c.setFlags(mask, res == 0, false, (a&0xF)+(b&0xF)+carry > 0xF, sum > 0xFF)
	return res
}

// sub8 returns a-b-carry.
func (c *CPU) sub8(a, b, carry uint8, mask Flags) uint8 {
	diff := int16(a) - int16(b) - int16(carry)
	res := uint8(diff)
	c.setFlags(mask, res == 0, true, int16(a&0xF)-int16(b&0xF)-int16(carry) < 0, diff < 0)
	return res
}

func (c *CPU) and8(a, b uint8) uint8 {
	res := a & b
	c.setFlags(flagsAll, res == 0, false, true, false)
	return res
}

func (c *CPU) or8(a, b uint8) uint8 {
	res := a | b
	c.setFlags(flagsAll, res == 0, false, false, false)
	return res
}

func (c *CPU) xor8(a, b uint8) uint8 {
	res := a ^ b
	c.setFlags(flagsAll, res == 0, false, false, false)
	return res
}

func (c *CPU) inc8(v uint8) uint8 {
	res := v + 1
	c.setFlags(flagsZNH, res == 0, false, v&0xF == 0xF, false)
	return res
}

func (c *CPU) dec8(v uint8) uint8 {
	res := v - 1
	c.setFlags(flagsZNH, res == 0, true, v&0xF == 0, false)
	return res
}

// add16 is ADD HL,rr: Z is preserved, H and C come from bits 11 and 15.
func (c *CPU) add16(a, b uint16, mask Flags) uint16 {
	sum := uint32(a) + uint32(b)
	c.setFlags(mask, false, false, (a&0xFFF)+(b&0xFFF) > 0xFFF, sum > 0xFFFF)
	return uint16(sum)
}

// addSP returns SP+e (ADD SP,e and LD HL,SP+e). Flags come from the unsigned
// addition of the low byte.
func (c *CPU) addSP(e uint8) uint16 {
	sp := c.SP
	res := uint16(int32(sp) + int32(int8(e)))
	c.setFlags(flagsAll, false, false, (sp&0xF)+uint16(e&0xF) > 0xF, (sp&0xFF)+uint16(e) > 0xFF)
	return res
}

func (c *CPU) daa() {
	a := c.A
	var adj uint8
	cy := c.F.C()
	if c.F.N() {
		if c.F.H() {
			adj |= 0x06
		}
		if cy {
			adj |= 0x60
		}
		a -= adj
	} else {
		if c.F.H() || a&0xF > 9 {
			adj |= 0x06
		}
		if cy || a > 0x99 {
			adj |= 0x60
			cy = true
		}
		a += adj
	}
	c.A = a
	c.setFlags(FlagZ|FlagH|FlagC, a == 0, false, false, cy)
}

// Rotates and shifts. The accumulator variants (RLCA, ...) always clear Z,
// which the caller handles with z=false through rotA.

func (c *CPU) rlc(v uint8) uint8 {
	res := v<<1 | v>>7
	c.setFlags(flagsAll, res == 0, false, false, v&0x80 != 0)
	return res
}

func (c *CPU) rrc(v uint8) uint8 {
	res := v>>1 | v<<7
	c.setFlags(flagsAll, res == 0, false, false, v&1 != 0)
	return res
}

func (c *CPU) rl(v uint8) uint8 {
	res := v<<1 | c.carry()
	c.setFlags(flagsAll, res == 0, false, false, v&0x80 != 0)
	return res
}

func (c *CPU) rr(v uint8) uint8 {
	res := v>>1 | c.carry()<<7
	c.setFlags(flagsAll, res == 0, false, false, v&1 != 0)
	return res
}

func (c *CPU) sla(v uint8) uint8 {
	res := v << 1
	c.setFlags(flagsAll, res == 0, false, false, v&0x80 != 0)
	return res
}

func (c *CPU) sra(v uint8) uint8 {
	res := v>>1 | v&0x80
	c.setFlags(flagsAll, res == 0, false, false, v&1 != 0)
	return res
}

func (c *CPU) srl(v uint8) uint8 {
	res := v >> 1
	c.setFlags(flagsAll, res == 0, false, false, v&1 != 0)
	return res
}

func (c *CPU) swap(v uint8) uint8 {
	res := v<<4 | v>>4
	c.setFlags(flagsAll, res == 0, false, false, false)
	return res
}

func (c *CPU) bit(n uint8, v uint8) {
	c.setFlags(flagsZNH, v&(1<<n) == 0, false, true, false)
}

// rotA applies a rotate to A, Z is always cleared.
func (c *CPU) rotA(rot func(uint8) uint8) {
	c.A = rot(c.A)
	c.F &^= FlagZ
}
