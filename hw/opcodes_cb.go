package hw

func initCBOps() {
	for i := range 256 {
		op := uint8(i)
		x, y, z := op>>6, opY(op), opZ(op)

		switch x {
		case 0:
			cbops[op] = opShift(y, z)
		case 1:
			cbops[op] = opBIT(y, z)
		case 2:
			cbops[op] = opRES(y, z)
		case 3:
			cbops[op] = opSET(y, z)
		}
	}
}

// Cycle counts include the CB prefix fetch.

func opShift(kind, r uint8) opFunc {
	cycles := cost(r, 2, 4)
	return func(c *CPU) int {
		v := c.reg8(r)
		switch kind {
		case 0:
			v = c.rlc(v)
		case 1:
			v = c.rrc(v)
		case 2:
			v = c.rl(v)
		case 3:
			v = c.rr(v)
		case 4:
			v = c.sla(v)
		case 5:
			v = c.sra(v)
		case 6:
			v = c.swap(v)
		case 7:
			v = c.srl(v)
		}
		c.setReg8(r, v)
		return cycles
	}
}

func opBIT(n, r uint8) opFunc {
	cycles := cost(r, 2, 3)
	return func(c *CPU) int {
		c.bit(n, c.reg8(r))
		return cycles
	}
}

func opRES(n, r uint8) opFunc {
	cycles := cost(r, 2, 4)
	return func(c *CPU) int {
		c.setReg8(r, c.reg8(r)&^(1<<n))
		return cycles
	}
}

func opSET(n, r uint8) opFunc {
	cycles := cost(r, 2, 4)
	return func(c *CPU) int {
		c.setReg8(r, c.reg8(r)|1<<n)
		return cycles
	}
}
