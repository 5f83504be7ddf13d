// Package apu implements the audio processing unit: 2 pulse channels (the
// first one with a frequency sweep), a wave channel and a noise channel,
// mixed in stereo through NR50/NR51.
package apu

import (
	"fmt"

	"dotmatrix/emu/log"
	"dotmatrix/hw/hwio"
	"dotmatrix/hw/snapshot"
)

const (
	ClockRate = 4194304 // dots per second

	seqPeriod = 8192 // dots per frame sequencer step (512Hz)

	// an audio frame is ended at vblank, or after maxFrameDots when the LCD
	// is off.
	maxFrameDots = 2 * 70224
)

// Register addresses.
const (
	NR10    = 0xFF10
	NR50    = 0xFF24
	NR51    = 0xFF25
	NR52    = 0xFF26
	WaveRAM = 0xFF30
)

// Bits always read as 1, for FF10-FF2F.
var readMasks = [0x20]uint8{
	0x80, 0x3F, 0x00, 0xFF, 0xBF, // NR10-NR14
	0xFF, 0x3F, 0x00, 0xFF, 0xBF, // NR20-NR24
	0x7F, 0xFF, 0x9F, 0xFF, 0xBF, // NR30-NR34
	0xFF, 0xFF, 0x00, 0x00, 0xBF, // NR40-NR44
	0x00, 0x00, 0x70, // NR50-NR52
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
}

type APU struct {
	Regs hwio.Device `hwio:"offset=0xFF10,size=0x30,rcb,wcb"`

	Channels [4]Channel
	waveRAM  [16]uint8

	power   bool
	nr50    uint8
	nr51    uint8
	seqStep int
	seqDots int

	mixer *Mixer
	time  int // dots since the start of the audio frame
	dirty bool
}

// New creates an APU. mixer can be nil, in which case no samples are
// produced.
func New(mixer *Mixer) *APU {
	a := &APU{mixer: mixer}
	for i := range a.Channels {
		a.Channels[i].init(Kind(i))
	}
	hwio.MustInitRegs(a)
	return a
}

// postBoot holds the register values left by the boot rom.
var postBoot = [...]struct {
	addr uint16
	val  uint8
}{
	{0xFF10, 0x80}, {0xFF11, 0xBF}, {0xFF12, 0xF3}, {0xFF14, 0xBF},
	{0xFF16, 0x3F}, {0xFF19, 0xBF},
	{0xFF1A, 0x7F}, {0xFF1B, 0xFF}, {0xFF1C, 0x9F}, {0xFF1E, 0xBF},
	{0xFF20, 0xFF}, {0xFF23, 0xBF},
}

// Reset sets the APU in its post-boot state, powered on with all channels
// silent.
func (a *APU) Reset() {
	a.setPower(false)
	a.waveRAM = [16]uint8{}
	a.Channels[Wave].setWaveRAM(&a.waveRAM)
	a.setPower(true)

	a.nr50 = 0x77
	a.nr51 = 0xF3
	for _, r := range postBoot {
		off := r.addr - NR10
		ch := &a.Channels[off/5]
		ch.regs[off%5] = r.val
		ch.decode(int(off%5), r.val)
	}

	a.time = 0
	a.dirty = true
	if a.mixer != nil {
		a.mixer.Reset()
	}
}

func (a *APU) ReadREGS(addr uint16, _ bool) uint8 {
	off := addr - NR10
	switch {
	case addr >= WaveRAM:
		return a.waveRAM[addr-WaveRAM]
	case off < 20:
		return a.Channels[off/5].regs[off%5] | readMasks[off]
	case addr == NR50:
		return a.nr50
	case addr == NR51:
		return a.nr51
	case addr == NR52:
		return a.status()
	}
	return 0xFF
}

func (a *APU) WriteREGS(addr uint16, val uint8) {
	off := addr - NR10
	switch {
	case addr >= WaveRAM:
		a.waveRAM[addr-WaveRAM] = val
		a.Channels[Wave].setWaveRAM(&a.waveRAM)
	case addr == NR52:
		a.setPower(val&0x80 != 0)
	case !a.power:
		log.ModSound.DebugZ("write while powered off").
			Hex16("addr", addr).
			Hex8("val", val).
			End()
		return
	case off < 20:
		a.Channels[off/5].write(int(off%5), val)
	case addr == NR50:
		a.nr50 = val
	case addr == NR51:
		a.nr51 = val
	default:
		log.ModSound.DebugZ("write to unused register").
			Hex16("addr", addr).
			Hex8("val", val).
			End()
		return
	}
	a.dirty = true
}

// status returns NR52: power and channel status bits.
func (a *APU) status() uint8 {
	val := readMasks[NR52-NR10]
	if a.power {
		val |= 0x80
	}
	for i := range a.Channels {
		if a.Channels[i].enabled {
			val |= 1 << i
		}
	}
	return val
}

// Powering off clears all sound registers but the wave RAM.
func (a *APU) setPower(on bool) {
	switch {
	case on && !a.power:
		a.seqStep = 0
		a.seqDots = 0
		log.ModSound.DebugZ("power on").End()
	case !on && a.power:
		for i := range a.Channels {
			a.Channels[i].reset()
		}
		a.nr50 = 0
		a.nr51 = 0
		log.ModSound.DebugZ("power off").End()
	}
	a.power = on
	a.dirty = true
}

// Powered reports whether the APU is on (NR52 bit 7).
func (a *APU) Powered() bool { return a.power }

// Tick advances the APU by one dot.
func (a *APU) Tick() {
	if a.power {
		a.seqDots++
		if a.seqDots == seqPeriod {
			a.seqDots = 0
			a.clockSequencer()
			a.dirty = true
		}
		for i := range a.Channels {
			if a.Channels[i].tick() {
				a.dirty = true
			}
		}
	}

	if a.dirty {
		if a.mixer != nil {
			left, right := a.Levels()
			a.mixer.AddSample(a.time, left, right)
		}
		a.dirty = false
	}

	a.time++
	if a.time >= maxFrameDots {
		a.EndFrame()
	}
}

// clockSequencer performs one frame sequencer step:
//
//	step   length  sweep  envelope
//	0      x
//	1
//	2      x       x
//	3
//	4      x
//	5
//	6      x       x
//	7                     x
func (a *APU) clockSequencer() {
	switch a.seqStep {
	case 0, 4:
		for i := range a.Channels {
			a.Channels[i].tickLength()
		}
	case 2, 6:
		for i := range a.Channels {
			a.Channels[i].tickLength()
		}
		a.Channels[Pulse1].tickSweep()
	case 7:
		for i := range a.Channels {
			a.Channels[i].tickEnvelope()
		}
	}
	a.seqStep = (a.seqStep + 1) & 7
}

// Levels returns the left and right output levels, after NR51 panning and
// NR50 master volume.
func (a *APU) Levels() (left, right int) {
	for i := range a.Channels {
		out := int(a.Channels[i].Output())
		if a.nr51&(0x10<<i) != 0 {
			left += out
		}
		if a.nr51&(1<<i) != 0 {
			right += out
		}
	}
	left *= int(a.nr50>>4&0x07) + 1
	right *= int(a.nr50&0x07) + 1
	return left, right
}

// EndFrame ends the current audio frame, handing the samples produced since
// the previous call to the mixer sink.
func (a *APU) EndFrame() {
	if a.mixer != nil {
		a.mixer.EndFrame(a.time)
	}
	a.time = 0
}

func (a *APU) State() snapshot.APU {
	s := snapshot.APU{
		Power:   a.power,
		NR50:    a.nr50,
		NR51:    a.nr51,
		SeqStep: a.seqStep,
		SeqDots: a.seqDots,
		WaveRAM: a.waveRAM,
	}
	for i := range a.Channels {
		c := &a.Channels[i]
		s.Channels[i] = snapshot.APUChannel{
			Regs:          c.regs,
			Enabled:       c.enabled,
			DAC:           c.dac,
			Length:        c.length.counter,
			LengthEnabled: c.length.enabled,
			Volume:        c.env.volume,
			EnvTimer:      c.env.timer,
			Freq:          c.freq,
			Phase:         c.phase,
			Timer:         c.timer,
			SweepEnabled:  c.Pulse.sweep.enabled,
			SweepTimer:    c.Pulse.sweep.timer,
			SweepShadow:   c.Pulse.sweep.shadow,
			LFSR:          c.Noise.lfsr,
		}
	}
	return s
}

// CheckState returns an error if s can't be restored.
func (a *APU) CheckState(s snapshot.APU) error {
	if s.SeqStep < 0 || s.SeqStep > 7 || s.SeqDots < 0 || s.SeqDots >= seqPeriod {
		return fmt.Errorf("apu: frame sequencer at %d/%d out of range", s.SeqStep, s.SeqDots)
	}
	for i := range a.Channels {
		if err := a.Channels[i].checkState(&s.Channels[i]); err != nil {
			return fmt.Errorf("apu: %s: %w", a.Channels[i].Kind, err)
		}
	}
	return nil
}

func (a *APU) SetState(s snapshot.APU) {
	a.power = s.Power
	a.nr50 = s.NR50
	a.nr51 = s.NR51
	a.seqStep = s.SeqStep
	a.seqDots = s.SeqDots
	a.waveRAM = s.WaveRAM

	for i := range a.Channels {
		c := &a.Channels[i]
		cs := &s.Channels[i]
		c.reset()
		c.regs = cs.Regs
		for reg, val := range cs.Regs {
			c.decode(reg, val)
		}
		c.enabled = cs.Enabled
		c.dac = cs.DAC
		c.length.counter = cs.Length
		c.length.enabled = cs.LengthEnabled
		c.env.volume = cs.Volume
		c.env.timer = cs.EnvTimer
		c.freq = cs.Freq
		c.phase = cs.Phase
		c.timer = cs.Timer
		c.Pulse.sweep.enabled = cs.SweepEnabled
		c.Pulse.sweep.timer = cs.SweepTimer
		c.Pulse.sweep.shadow = cs.SweepShadow
		c.Noise.lfsr = cs.LFSR
		c.Noise.out[0] = uint8(^cs.LFSR & 1)
	}
	a.Channels[Wave].setWaveRAM(&a.waveRAM)
	a.dirty = true
}
