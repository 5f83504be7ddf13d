package hw

import (
	"dotmatrix/emu/log"
	"dotmatrix/hw/hwio"
	"dotmatrix/hw/snapshot"
)

// Divider bit watched by TIMA, for each TAC clock select value.
var timaBits = [4]uint{9, 3, 5, 7}

// Timer implements DIV, TIMA, TMA and TAC. It's clocked once per dot.
type Timer struct {
	DIV  hwio.Reg8 `hwio:"offset=0xFF04,rcb,wcb"`
	TIMA hwio.Reg8 `hwio:"offset=0xFF05"`
	TMA  hwio.Reg8 `hwio:"offset=0xFF06"`
	TAC  hwio.Reg8 `hwio:"offset=0xFF07,reset=0xF8,rwmask=0x07,wcb"`

	irq *Interrupts

	div    uint16 // internal counter, DIV is its upper byte
	prevIn bool   // previous timer input, for falling edge detection
}

func NewTimer(irq *Interrupts) *Timer {
	t := &Timer{irq: irq}
	hwio.MustInitRegs(t)
	return t
}

func (t *Timer) Reset() {
	hwio.ResetRegs(t)
	t.div = 0xABCC
	t.prevIn = t.input()
}

// Divider returns the 16-bit internal counter.
func (t *Timer) Divider() uint16 { return t.div }

func (t *Timer) input() bool {
	if !t.TAC.GetBit(2) {
		return false
	}
	return t.div&(1<<timaBits[t.TAC.Value&3]) != 0
}

// Tick advances the timer by one dot.
func (t *Timer) Tick() {
	t.div++
	t.update()
}

// update increments TIMA on a falling edge of the selected divider bit.
func (t *Timer) update() {
	in := t.input()
	if t.prevIn && !in {
		t.TIMA.Value++
		if t.TIMA.Value == 0 {
			t.TIMA.Value = t.TMA.Value
			t.irq.Request(IntTimer)
			log.ModTimer.DebugZ("TIMA overflow").Hex8("tma", t.TMA.Value).End()
		}
	}
	t.prevIn = in
}

// ResetDivider clears the internal counter (DIV writes and STOP).
func (t *Timer) ResetDivider() {
	t.div = 0
	t.update()
}

func (t *Timer) ReadDIV(_ uint8, _ bool) uint8 {
	return uint8(t.div >> 8)
}

func (t *Timer) WriteDIV(_, _ uint8) {
	t.ResetDivider()
}

func (t *Timer) WriteTAC(_, _ uint8) {
	t.update()
}

func (t *Timer) State() snapshot.Timer {
	return snapshot.Timer{
		Div:  t.div,
		TIMA: t.TIMA.Value,
		TMA:  t.TMA.Value,
		TAC:  t.TAC.Value,
	}
}

func (t *Timer) SetState(s snapshot.Timer) {
	t.div = s.Div
	t.TIMA.Value = s.TIMA
	t.TMA.Value = s.TMA
	t.TAC.Value = s.TAC
	t.prevIn = t.input()
}
