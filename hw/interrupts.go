package hw

import (
	"dotmatrix/emu/log"
	"dotmatrix/hw/hwio"
)

//go:generate go tool stringer -type=Interrupt -trimprefix=Int

// An Interrupt identifies an interrupt source, its value is the bit index in
// the IF and IE registers. Lower values have higher priority.
type Interrupt uint8

const (
	IntVBlank Interrupt = iota
	IntSTAT
	IntTimer
	IntSerial
	IntJoypad
)

const intMask = 0x1F

// Vector returns the address of the interrupt handler.
func (i Interrupt) Vector() uint16 {
	return 0x40 + 8*uint16(i)
}

// Interrupts is the interrupt controller.
type Interrupts struct {
	IF hwio.Reg8 `hwio:"offset=0xFF0F,reset=0x01,rwmask=0x1F,rcb"`
	IE hwio.Reg8 `hwio:"offset=0xFFFF"`

	ime bool // interrupt master enable
}

func NewInterrupts() *Interrupts {
	irq := &Interrupts{}
	hwio.MustInitRegs(irq)
	return irq
}

func (irq *Interrupts) Reset() {
	hwio.ResetRegs(irq)
	irq.ime = false
}

// Unused IF bits read as 1.
func (irq *Interrupts) ReadIF(val uint8, _ bool) uint8 {
	return val | 0xE0
}

// Request raises the request flag of the given source.
func (irq *Interrupts) Request(src Interrupt) {
	log.ModCPU.DebugZ("interrupt request").Stringer("src", src).End()
	irq.IF.SetBit(uint(src))
}

// Pending returns the highest priority interrupt both requested and enabled,
// regardless of the master enable.
func (irq *Interrupts) Pending() (Interrupt, bool) {
	pending := irq.IF.Value & irq.IE.Value & intMask
	if pending == 0 {
		return 0, false
	}
	for i := IntVBlank; i <= IntJoypad; i++ {
		if pending&(1<<i) != 0 {
			return i, true
		}
	}
	return 0, false
}

// HasPending reports whether any interrupt is requested and enabled, this
// is what wakes the CPU from HALT.
func (irq *Interrupts) HasPending() bool {
	return irq.IF.Value&irq.IE.Value&intMask != 0
}

// Acknowledge clears the request flag of the given source.
func (irq *Interrupts) Acknowledge(src Interrupt) {
	irq.IF.ClearBit(uint(src))
}

func (irq *Interrupts) SetMaster(enabled bool) { irq.ime = enabled }
func (irq *Interrupts) Master() bool           { return irq.ime }
