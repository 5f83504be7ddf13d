package hw

import (
	"fmt"
	"io"

	"dotmatrix/emu/log"
	"dotmatrix/hw/snapshot"
)

// Model is the console model, it determines the register values after the
// boot rom.
type Model uint8

const (
	DMG Model = iota
	SGB
)

func (m Model) String() string {
	if m == SGB {
		return "sgb"
	}
	return "dmg"
}

// UnknownOpcodeError is returned when the CPU executes one of the opcodes that
// doesn't exist on the SM83. The real CPU locks up in this case.
type UnknownOpcodeError struct {
	PC     uint16
	Opcode uint8
}

func (e *UnknownOpcodeError) Error() string {
	return fmt.Sprintf("unknown opcode %02X at %04X", e.Opcode, e.PC)
}

// CPU is the SM83 instruction interpreter. Timings are expressed in
// m-cycles (4 dots).
type CPU struct {
	Bus   *Bus
	irq   *Interrupts
	timer *Timer

	// Non-nil when execution tracing is enabled.
	tracer *tracer

	Cycles int64 // m-cycles since reset

	A, B, C, D, E, H, L uint8
	F                   Flags
	SP, PC              uint16

	halted  bool
	haltBug bool  // next opcode fetch doesn't increment PC
	eiDelay uint8 // instructions left before EI takes effect
	err     error // non-nil once the CPU is locked
}

// NewCPU creates a CPU. timer can be nil, it's only used by STOP.
func NewCPU(bus *Bus, irq *Interrupts, timer *Timer) *CPU {
	return &CPU{
		Bus:   bus,
		irq:   irq,
		timer: timer,
	}
}

// Reset sets the registers to their values after the boot rom has run.
func (c *CPU) Reset(model Model) {
	switch model {
	case SGB:
		c.A, c.F = 0x01, 0x00
		c.B, c.C = 0x00, 0x14
		c.D, c.E = 0x00, 0x00
		c.H, c.L = 0xC0, 0x60
	default:
		c.A, c.F = 0x01, 0xB0
		c.B, c.C = 0x00, 0x13
		c.D, c.E = 0x00, 0xD8
		c.H, c.L = 0x01, 0x4D
	}
	c.SP = 0xFFFE
	c.PC = 0x0100
	c.Cycles = 0
	c.halted = false
	c.haltBug = false
	c.eiDelay = 0
	c.err = nil
}

// SetTraceOutput enables execution tracing to w, or disables it if w is nil.
func (c *CPU) SetTraceOutput(w io.Writer) {
	if w == nil {
		c.tracer = nil
		return
	}
	c.tracer = &tracer{w: w}
}

// Halted reports whether the CPU is waiting for an interrupt.
func (c *CPU) Halted() bool { return c.halted }

// Err returns the error that locked the CPU, if any.
func (c *CPU) Err() error { return c.err }

// Step executes one instruction, or dispatches an interrupt, and returns the
// number of m-cycles it took.
func (c *CPU) Step() (int, error) {
	if c.err != nil {
		return 0, c.err
	}

	if c.halted {
		if !c.irq.HasPending() {
			c.Cycles++
			return 1, nil
		}
		// A pending interrupt ends HALT, even when IME is clear.
		c.halted = false
	}

	if c.irq.Master() {
		if src, ok := c.irq.Pending(); ok {
			c.interrupt(src)
			c.Cycles += 5
			return 5, nil
		}
	}

	c.traceOp()

	pc := c.PC
	opcode := c.Bus.Read8(c.PC)
	if c.haltBug {
		c.haltBug = false
	} else {
		c.PC++
	}

	cycles := ops[opcode](c)
	if cycles == 0 {
		return 0, c.lock(pc, opcode)
	}

	if c.eiDelay > 0 {
		c.eiDelay--
		if c.eiDelay == 0 {
			c.irq.SetMaster(true)
		}
	}

	c.Cycles += int64(cycles)
	return cycles, nil
}

func (c *CPU) lock(pc uint16, opcode uint8) error {
	c.PC = pc
	c.err = &UnknownOpcodeError{PC: pc, Opcode: opcode}
	log.ModCPU.ErrorZ("CPU locked").
		Hex16("pc", pc).
		Hex8("opcode", opcode).
		End()
	return c.err
}

func (c *CPU) interrupt(src Interrupt) {
	log.ModCPU.DebugZ("interrupt dispatch").
		Stringer("src", src).
		Hex16("pc", c.PC).
		End()

	c.irq.SetMaster(false)
	c.irq.Acknowledge(src)
	c.push16(c.PC)
	c.PC = src.Vector()
}

func (c *CPU) halt() {
	if !c.irq.Master() && c.irq.HasPending() {
		c.haltBug = true
		return
	}
	c.halted = true
}

func (c *CPU) stop() {
	// STOP is 2 bytes long.
	c.PC++
	if c.timer != nil {
		c.timer.ResetDivider()
	}
	log.ModCPU.DebugZ("STOP").Hex16("pc", c.PC).End()
}

func (c *CPU) traceOp() {
	if c.tracer == nil {
		return
	}
	c.tracer.write(cpuState{
		A: c.A, F: c.F, B: c.B, C: c.C, D: c.D, E: c.E, H: c.H, L: c.L,
		SP: c.SP,
		PC: c.PC,
		PCMem: [4]uint8{
			c.Bus.Peek8(c.PC),
			c.Bus.Peek8(c.PC + 1),
			c.Bus.Peek8(c.PC + 2),
			c.Bus.Peek8(c.PC + 3),
		},
	})
}

// memory access helpers

func (c *CPU) fetch8() uint8 {
	v := c.Bus.Read8(c.PC)
	c.PC++
	return v
}

func (c *CPU) fetch16() uint16 {
	lo := c.fetch8()
	hi := c.fetch8()
	return uint16(hi)<<8 | uint16(lo)
}

func (c *CPU) write16(addr, val uint16) {
	c.Bus.Write8(addr, uint8(val))
	c.Bus.Write8(addr+1, uint8(val>>8))
}

func (c *CPU) push16(val uint16) {
	c.SP--
	c.Bus.Write8(c.SP, uint8(val>>8))
	c.SP--
	c.Bus.Write8(c.SP, uint8(val))
}

func (c *CPU) pop16() uint16 {
	lo := c.Bus.Read8(c.SP)
	c.SP++
	hi := c.Bus.Read8(c.SP)
	c.SP++
	return uint16(hi)<<8 | uint16(lo)
}

// 16-bit register pairs

func (c *CPU) AF() uint16 { return uint16(c.A)<<8 | uint16(c.F) }
func (c *CPU) BC() uint16 { return uint16(c.B)<<8 | uint16(c.C) }
func (c *CPU) DE() uint16 { return uint16(c.D)<<8 | uint16(c.E) }
func (c *CPU) HL() uint16 { return uint16(c.H)<<8 | uint16(c.L) }

// The low nibble of F is always 0.
func (c *CPU) SetAF(v uint16) { c.A, c.F = uint8(v>>8), Flags(v)&0xF0 }
func (c *CPU) SetBC(v uint16) { c.B, c.C = uint8(v>>8), uint8(v) }
func (c *CPU) SetDE(v uint16) { c.D, c.E = uint8(v>>8), uint8(v) }
func (c *CPU) SetHL(v uint16) { c.H, c.L = uint8(v>>8), uint8(v) }

// reg8 returns the 8-bit operand encoded in opcode bits (B, C, D, E, H, L,
// (HL), A).
func (c *CPU) reg8(idx uint8) uint8 {
	switch idx & 7 {
	case 0:
		return c.B
	case 1:
		return c.C
	case 2:
		return c.D
	case 3:
		return c.E
	case 4:
		return c.H
	case 5:
		return c.L
	case 6:
		return c.Bus.Read8(c.HL())
	}
	return c.A
}

func (c *CPU) setReg8(idx, val uint8) {
	switch idx & 7 {
	case 0:
		c.B = val
	case 1:
		c.C = val
	case 2:
		c.D = val
	case 3:
		c.E = val
	case 4:
		c.H = val
	case 5:
		c.L = val
	case 6:
		c.Bus.Write8(c.HL(), val)
	default:
		c.A = val
	}
}

// reg16 returns the register pair encoded in opcode bits 4-5 (BC, DE, HL,
// SP).
func (c *CPU) reg16(idx uint8) uint16 {
	switch idx & 3 {
	case 0:
		return c.BC()
	case 1:
		return c.DE()
	case 2:
		return c.HL()
	}
	return c.SP
}

func (c *CPU) setReg16(idx uint8, val uint16) {
	switch idx & 3 {
	case 0:
		c.SetBC(val)
	case 1:
		c.SetDE(val)
	case 2:
		c.SetHL(val)
	default:
		c.SP = val
	}
}

// cond evaluates the condition encoded in opcode bits 3-4 (NZ, Z, NC, C).
func (c *CPU) cond(idx uint8) bool {
	switch idx & 3 {
	case 0:
		return !c.F.Z()
	case 1:
		return c.F.Z()
	case 2:
		return !c.F.C()
	}
	return c.F.C()
}

func (c *CPU) State() snapshot.CPU {
	return snapshot.CPU{
		A: c.A, F: uint8(c.F), B: c.B, C: c.C, D: c.D, E: c.E, H: c.H, L: c.L,
		SP:      c.SP,
		PC:      c.PC,
		IME:     c.irq.Master(),
		Halted:  c.halted,
		HaltBug: c.haltBug,
		EIDelay: c.eiDelay,
		Cycles:  c.Cycles,
	}
}

func (c *CPU) SetState(s snapshot.CPU) {
	c.A, c.F, c.B, c.C, c.D, c.E, c.H, c.L = s.A, Flags(s.F)&0xF0, s.B, s.C, s.D, s.E, s.H, s.L
	c.SP, c.PC = s.SP, s.PC
	c.irq.SetMaster(s.IME)
	c.halted = s.Halted
	c.haltBug = s.HaltBug
	c.eiDelay = s.EIDelay
	c.Cycles = s.Cycles
	c.err = nil
}
