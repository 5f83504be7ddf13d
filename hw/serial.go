package hw

import (
	"fmt"
	"io"

	"dotmatrix/emu/log"
	"dotmatrix/hw/hwio"
	"dotmatrix/hw/snapshot"
)

// Number of dots per transferred bit with the internal clock (8192Hz).
const serialBitDots = 512

// Serial is the link port. Without link partner, received bits are all 1s.
// Transferred bytes are written to Output, if non-nil.
type Serial struct {
	SB hwio.Reg8 `hwio:"offset=0xFF01"`
	SC hwio.Reg8 `hwio:"offset=0xFF02,reset=0x7E,rwmask=0x83,rcb,wcb"`

	Output io.Writer

	irq *Interrupts

	active bool
	sent   uint8 // byte being sent
	bits   int   // bits left to shift
	dots   int   // dots until next shift
}

func NewSerial(irq *Interrupts) *Serial {
	s := &Serial{irq: irq}
	hwio.MustInitRegs(s)
	return s
}

func (s *Serial) Reset() {
	hwio.ResetRegs(s)
	s.active = false
	s.bits = 0
	s.dots = 0
}

// Unused SC bits read as 1.
func (s *Serial) ReadSC(val uint8, _ bool) uint8 {
	return val | 0x7E
}

func (s *Serial) WriteSC(_, val uint8) {
	// Only internal clock transfers complete without a link partner.
	if val&0x81 != 0x81 {
		s.active = false
		return
	}
	s.active = true
	s.sent = s.SB.Value
	s.bits = 8
	s.dots = serialBitDots
}

// Tick advances the serial port by one dot.
func (s *Serial) Tick() {
	if !s.active {
		return
	}
	s.dots--
	if s.dots > 0 {
		return
	}
	s.dots = serialBitDots
	s.SB.Value = s.SB.Value<<1 | 1
	s.bits--
	if s.bits > 0 {
		return
	}

	s.active = false
	s.SC.ClearBit(7)
	s.irq.Request(IntSerial)

	if s.Output != nil {
		if _, err := s.Output.Write([]byte{s.sent}); err != nil {
			log.ModSerial.WarnZ("failed to write serial output").Error("err", err).End()
		}
	}
}

func (s *Serial) State() snapshot.Serial {
	return snapshot.Serial{
		SB:     s.SB.Value,
		SC:     s.SC.Value,
		Active: s.active,
		Sent:   s.sent,
		Bits:   s.bits,
		Dots:   s.dots,
	}
}

// CheckState returns an error if st can't be restored.
func (s *Serial) CheckState(st snapshot.Serial) error {
	if st.Bits < 0 || st.Bits > 8 || st.Dots < 0 || st.Dots > serialBitDots {
		return fmt.Errorf("serial: transfer position %d/%d out of range", st.Bits, st.Dots)
	}
	return nil
}

func (s *Serial) SetState(st snapshot.Serial) {
	s.SB.Value = st.SB
	s.SC.Value = st.SC
	s.active = st.Active
	s.sent = st.Sent
	s.bits = st.Bits
	s.dots = st.Dots
}
