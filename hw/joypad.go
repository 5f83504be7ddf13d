package hw

import (
	"strings"

	"dotmatrix/hw/hwio"
)

// Buttons is the state of the 8 buttons, a set bit means pressed.
type Buttons uint8

const (
	ButtonRight Buttons = 1 << iota
	ButtonLeft
	ButtonUp
	ButtonDown
	ButtonA
	ButtonB
	ButtonSelect
	ButtonStart
)

var buttonNames = [8]string{"Right", "Left", "Up", "Down", "A", "B", "Select", "Start"}

func (b Buttons) String() string {
	var names []string
	for i, name := range buttonNames {
		if b&(1<<i) != 0 {
			names = append(names, name)
		}
	}
	return strings.Join(names, "|")
}

// InputSource provides the buttons state, polled by the emulator.
type InputSource interface {
	Buttons() Buttons
}

// P1Listener gets notified of every write to the joypad register, with the
// P14 and P15 select bits (4-5) of the written value, other bits cleared.
// This is how the Super Game Boy receives commands.
type P1Listener interface {
	WriteP1(val uint8)

	// PlayerID returns the id of the currently selected joypad, when
	// multiplayer mode is enabled.
	PlayerID() (id uint8, ok bool)
}

// Joypad implements the P1 register.
type Joypad struct {
	P1 hwio.Reg8 `hwio:"offset=0xFF00,reset=0xCF,rwmask=0x30,rcb,wcb"`

	Listener P1Listener

	irq     *Interrupts
	buttons Buttons
}

func NewJoypad(irq *Interrupts) *Joypad {
	j := &Joypad{irq: irq}
	hwio.MustInitRegs(j)
	return j
}

func (j *Joypad) Reset() {
	hwio.ResetRegs(j)
	j.buttons = 0
}

// lines returns the low nibble of P1 (active low).
func (j *Joypad) lines() uint8 {
	sel := j.P1.Value & 0x30
	var pressed uint8
	if sel&0x10 == 0 {
		pressed |= uint8(j.buttons) & 0x0F
	}
	if sel&0x20 == 0 {
		pressed |= uint8(j.buttons) >> 4
	}
	if sel == 0x30 && j.Listener != nil {
		if id, ok := j.Listener.PlayerID(); ok {
			return 0xF - id
		}
	}
	return ^pressed & 0x0F
}

func (j *Joypad) ReadP1(val uint8, _ bool) uint8 {
	return 0xC0 | val&0x30 | j.lines()
}

func (j *Joypad) WriteP1(old, val uint8) {
	prev := j.linesFor(old)
	if j.Listener != nil {
		j.Listener.WriteP1(val & 0x30)
	}
	j.checkIRQ(prev)
}

// linesFor returns the lines as they were with the given P1 value.
func (j *Joypad) linesFor(p1 uint8) uint8 {
	cur := j.P1.Value
	j.P1.Value = p1
	l := j.lines()
	j.P1.Value = cur
	return l
}

// SetButtons updates the buttons state.
func (j *Joypad) SetButtons(b Buttons) {
	prev := j.lines()
	j.buttons = b
	j.checkIRQ(prev)
}

func (j *Joypad) Buttons() Buttons { return j.buttons }

// checkIRQ requests the joypad interrupt on any high to low transition.
func (j *Joypad) checkIRQ(prev uint8) {
	if prev&^j.lines() != 0 {
		j.irq.Request(IntJoypad)
	}
}
