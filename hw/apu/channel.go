package apu

import (
	"errors"
	"fmt"

	"dotmatrix/emu/log"
	"dotmatrix/hw/snapshot"
)

// Channel is one of the 4 sound generators. All kinds share the enable and
// DAC flags, the length counter and a phase accumulator stepping through a
// lookup table holding the output levels of one period. Pulse, Wave and Noise
// hold the state specific to each kind.
//
//	Timer --> table[phase] --> Envelope --> DAC --> Length --> (to mixer)
type Channel struct {
	Kind Kind

	regs    [5]uint8 // NRx0-NRx4, as written
	enabled bool
	dac     bool
	length  lengthCounter
	env     envelope // pulse and noise
	freq    uint16   // 11-bit, pulse and wave

	phase int
	timer int // dots until the next phase step

	Pulse pulse
	Wave  wave
	Noise noise
}

type pulse struct {
	duty  uint8
	steps [8]uint8
	sweep sweep // Pulse1 only
}

type wave struct {
	level   uint8 // NR32 output level code
	samples [32]uint8
}

type noise struct {
	lfsr    uint16
	narrow  bool // 7-bit LFSR
	shift   uint8
	divisor uint8
	out     [1]uint8
}

var dutyTable = [4][8]uint8{
	{0, 0, 0, 0, 0, 0, 0, 1}, // 12.5%
	{1, 0, 0, 0, 0, 0, 0, 1}, // 25%
	{1, 0, 0, 0, 0, 1, 1, 1}, // 50%
	{0, 1, 1, 1, 1, 1, 1, 0}, // 75%
}

var noiseDivisors = [8]int{8, 16, 32, 48, 64, 80, 96, 112}

// maxPeriod is the longest timer period, noise with divisor 112 and shift 15.
const maxPeriod = 112 << 15

func (c *Channel) init(kind Kind) {
	c.Kind = kind
	c.length.max = 64
	if kind == Wave {
		c.length.max = 256
	}
	c.reset()
}

// reset clears the channel registers and state. Wave samples survive.
func (c *Channel) reset() {
	c.regs = [5]uint8{}
	c.enabled = false
	c.dac = false
	c.length.reset()
	c.env.reset()
	c.freq = 0
	c.phase = 0
	c.timer = 0

	c.Pulse.sweep.reset()
	c.Pulse.duty = 0
	c.Pulse.steps = dutyTable[0]
	c.Wave.level = 0
	c.Noise = noise{}
}

// Enabled reports whether the channel is playing, as shown in NR52.
func (c *Channel) Enabled() bool { return c.enabled }

func (c *Channel) table() []uint8 {
	switch c.Kind {
	case Wave:
		return c.Wave.samples[:]
	case Noise:
		return c.Noise.out[:]
	}
	return c.Pulse.steps[:]
}

// period returns the number of dots between 2 phase steps.
func (c *Channel) period() int {
	switch c.Kind {
	case Wave:
		return (2048 - int(c.freq)) * 2
	case Noise:
		return noiseDivisors[c.Noise.divisor] << c.Noise.shift
	}
	return (2048 - int(c.freq)) * 4
}

func (c *Channel) setDuty(duty uint8) {
	if duty == c.Pulse.duty {
		return
	}
	c.Pulse.duty = duty
	c.Pulse.steps = dutyTable[duty]
}

// setWaveRAM rebuilds the wave table from the 16 bytes of wave RAM, high
// nibble first.
func (c *Channel) setWaveRAM(ram *[16]uint8) {
	for i, b := range ram {
		c.Wave.samples[i*2] = b >> 4
		c.Wave.samples[i*2+1] = b & 0x0F
	}
}

func (c *Channel) setDAC(on bool) {
	c.dac = on
	if !on {
		c.enabled = false
	}
}

// Output returns the current amplitude of the channel, from 0 to 15.
func (c *Channel) Output() uint8 {
	if !c.enabled || !c.dac {
		return 0
	}

	v := c.table()[c.phase]
	if c.Kind == Wave {
		if c.Wave.level == 0 {
			return 0
		}
		return v >> (c.Wave.level - 1)
	}
	return v * c.env.volume
}

// tick advances the channel timer by one dot, and reports whether the
// output may have changed.
func (c *Channel) tick() bool {
	if !c.enabled {
		return false
	}
	c.timer--
	if c.timer > 0 {
		return false
	}

	c.timer = c.period()
	if c.Kind == Noise {
		c.Noise.clock()
	} else {
		c.phase = (c.phase + 1) % len(c.table())
	}
	return true
}

func (n *noise) clock() {
	bit := (n.lfsr ^ n.lfsr>>1) & 1
	n.lfsr = n.lfsr>>1 | bit<<14
	if n.narrow {
		n.lfsr = n.lfsr&^(1<<6) | bit<<6
	}
	n.out[0] = uint8(^n.lfsr & 1)
}

// write handles a write to register NRxN, reg being N.
func (c *Channel) write(reg int, val uint8) {
	c.regs[reg] = val
	c.decode(reg, val)

	if reg == 4 && val&0x80 != 0 {
		c.trigger()
	}
}

// decode applies the value of a register to the channel configuration.
func (c *Channel) decode(reg int, val uint8) {
	switch reg {
	case 0:
		switch c.Kind {
		case Pulse1:
			c.Pulse.sweep.load(val)
		case Wave:
			c.setDAC(val&0x80 != 0)
		}
	case 1:
		switch c.Kind {
		case Pulse1, Pulse2:
			c.setDuty(val >> 6)
			c.length.load(val & 0x3F)
		case Wave:
			c.length.load(val)
		case Noise:
			c.length.load(val & 0x3F)
		}
	case 2:
		if c.Kind == Wave {
			c.Wave.level = (val >> 5) & 0x03
			break
		}
		c.env.load(val)
		c.setDAC(val&0xF8 != 0)
	case 3:
		if c.Kind == Noise {
			c.Noise.shift = val >> 4
			c.Noise.narrow = val&0x08 != 0
			c.Noise.divisor = val & 0x07
			break
		}
		c.freq = c.freq&0x700 | uint16(val)
	case 4:
		if c.Kind != Noise {
			c.freq = c.freq&0xFF | uint16(val&0x07)<<8
		}
		c.length.enabled = val&0x40 != 0
	}
}

func (c *Channel) trigger() {
	c.enabled = c.dac
	c.length.trigger()
	c.timer = c.period()

	switch c.Kind {
	case Pulse1:
		c.env.trigger()
		if !c.Pulse.sweep.trigger(c.freq) {
			c.enabled = false
		}
	case Pulse2:
		c.env.trigger()
	case Wave:
		c.phase = 0
	case Noise:
		c.env.trigger()
		c.Noise.lfsr = 0x7FFF
		c.Noise.out[0] = 0
	}

	log.ModSound.DebugZ("trigger").
		Stringer("ch", c.Kind).
		Uint16("freq", c.freq).
		Bool("enabled", c.enabled).
		End()
}

func (c *Channel) tickLength() {
	if c.length.tick() {
		c.enabled = false
	}
}

func (c *Channel) tickEnvelope() {
	if c.Kind != Wave {
		c.env.tick()
	}
}

func (c *Channel) tickSweep() {
	if c.Kind != Pulse1 {
		return
	}
	freq, update, ok := c.Pulse.sweep.tick()
	if !ok {
		c.enabled = false
		return
	}
	if update {
		c.freq = freq
		c.regs[3] = uint8(freq)
		c.regs[4] = c.regs[4]&^0x07 | uint8(freq>>8)
	}
}

// checkState verifies the dynamic state of a saved channel. Register derived
// fields (duty, noise divisor and shift) are rebuilt from the registers.
func (c *Channel) checkState(s *snapshot.APUChannel) error {
	switch {
	case s.Phase < 0 || s.Phase >= len(c.table()):
		return fmt.Errorf("phase %d out of range", s.Phase)
	case s.Timer < 0 || s.Timer > maxPeriod:
		return fmt.Errorf("timer %d out of range", s.Timer)
	case s.Freq > 0x7FF || s.SweepShadow > 0x7FF:
		return errors.New("frequency out of range")
	case s.Length < 0 || s.Length > c.length.max:
		return fmt.Errorf("length %d out of range", s.Length)
	case s.Volume > 15:
		return fmt.Errorf("volume %d out of range", s.Volume)
	case s.LFSR > 0x7FFF:
		return fmt.Errorf("lfsr %04X out of range", s.LFSR)
	}
	return nil
}
