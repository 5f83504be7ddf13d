package snapshot

import (
	"encoding/binary"
	"fmt"

	"github.com/go-faster/jx"
)

// Marshal encodes a machine state to JSON.
func Marshal(s *GameBoy) []byte {
	var e jx.Encoder
	s.encode(&e)
	return e.Bytes()
}

// Unmarshal decodes a machine state encoded with Marshal.
func Unmarshal(data []byte) (*GameBoy, error) {
	var s GameBoy
	if err := s.decode(jx.DecodeBytes(data)); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Version != Version {
		return nil, fmt.Errorf("unsupported snapshot version %d, want %d", s.Version, Version)
	}
	return &s, nil
}

func (s *GameBoy) encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		intField(e, "version", int64(s.Version))
		e.Field("title", func(e *jx.Encoder) { e.Str(s.Title) })
		intField(e, "model", int64(s.Model))
		e.Field("cpu", s.CPU.encode)
		intField(e, "if", int64(s.IF))
		intField(e, "ie", int64(s.IE))
		e.Field("timer", s.Timer.encode)
		e.Field("serial", s.Serial.encode)
		intField(e, "p1", int64(s.P1))
		e.Field("ppu", s.PPU.encode)
		e.Field("apu", s.APU.encode)
		if s.SGB != nil {
			e.Field("sgb", s.SGB.encode)
		}
		e.Field("mapper", s.Mapper.encode)
		bytesField(e, "wram", s.WRAM)
		bytesField(e, "hram", s.HRAM)
	})
}

func (s *GameBoy) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "version":
			return decodeInt(d, &s.Version)
		case "title":
			var err error
			s.Title, err = d.Str()
			return err
		case "model":
			return decodeUint(d, &s.Model)
		case "cpu":
			return s.CPU.decode(d)
		case "if":
			return decodeUint(d, &s.IF)
		case "ie":
			return decodeUint(d, &s.IE)
		case "timer":
			return s.Timer.decode(d)
		case "serial":
			return s.Serial.decode(d)
		case "p1":
			return decodeUint(d, &s.P1)
		case "ppu":
			return s.PPU.decode(d)
		case "apu":
			return s.APU.decode(d)
		case "sgb":
			s.SGB = &SGB{}
			return s.SGB.decode(d)
		case "mapper":
			return s.Mapper.decode(d)
		case "wram":
			return decodeBytes(d, &s.WRAM)
		case "hram":
			return decodeBytes(d, &s.HRAM)
		}
		return d.Skip()
	})
}

func (c *CPU) encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		regs := []uint8{c.A, c.F, c.B, c.C, c.D, c.E, c.H, c.L}
		bytesField(e, "regs", regs)
		intField(e, "sp", int64(c.SP))
		intField(e, "pc", int64(c.PC))
		boolField(e, "ime", c.IME)
		boolField(e, "halted", c.Halted)
		boolField(e, "halt_bug", c.HaltBug)
		intField(e, "ei_delay", int64(c.EIDelay))
		intField(e, "cycles", c.Cycles)
	})
}

func (c *CPU) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "regs":
			var regs [8]uint8
			if err := decodeArray(d, regs[:]); err != nil {
				return err
			}
			c.A, c.F, c.B, c.C, c.D, c.E, c.H, c.L = regs[0], regs[1], regs[2], regs[3], regs[4], regs[5], regs[6], regs[7]
			return nil
		case "sp":
			return decodeUint(d, &c.SP)
		case "pc":
			return decodeUint(d, &c.PC)
		case "ime":
			return decodeBool(d, &c.IME)
		case "halted":
			return decodeBool(d, &c.Halted)
		case "halt_bug":
			return decodeBool(d, &c.HaltBug)
		case "ei_delay":
			return decodeUint(d, &c.EIDelay)
		case "cycles":
			return decodeInt64(d, &c.Cycles)
		}
		return d.Skip()
	})
}

func (t *Timer) encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		intField(e, "div", int64(t.Div))
		intField(e, "tima", int64(t.TIMA))
		intField(e, "tma", int64(t.TMA))
		intField(e, "tac", int64(t.TAC))
	})
}

func (t *Timer) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "div":
			return decodeUint(d, &t.Div)
		case "tima":
			return decodeUint(d, &t.TIMA)
		case "tma":
			return decodeUint(d, &t.TMA)
		case "tac":
			return decodeUint(d, &t.TAC)
		}
		return d.Skip()
	})
}

func (s *Serial) encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		intField(e, "sb", int64(s.SB))
		intField(e, "sc", int64(s.SC))
		boolField(e, "active", s.Active)
		intField(e, "sent", int64(s.Sent))
		intField(e, "bits", int64(s.Bits))
		intField(e, "dots", int64(s.Dots))
	})
}

func (s *Serial) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "sb":
			return decodeUint(d, &s.SB)
		case "sc":
			return decodeUint(d, &s.SC)
		case "active":
			return decodeBool(d, &s.Active)
		case "sent":
			return decodeUint(d, &s.Sent)
		case "bits":
			return decodeInt(d, &s.Bits)
		case "dots":
			return decodeInt(d, &s.Dots)
		}
		return d.Skip()
	})
}

func (p *PPU) encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		intField(e, "dot", int64(p.Dot))
		intField(e, "mode3_end", int64(p.Mode3End))
		boolField(e, "stat_line", p.StatLine)
		intField(e, "win_line", int64(p.WinLine))
		intField(e, "frames", p.Frames)
		regs := []uint8{p.LCDC, p.STAT, p.SCY, p.SCX, p.LY, p.LYC, p.BGP, p.OBP0, p.OBP1, p.WY, p.WX}
		bytesField(e, "regs", regs)
		bytesField(e, "vram", p.VRAM)
		bytesField(e, "oam", p.OAM)
	})
}

func (p *PPU) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "dot":
			return decodeInt(d, &p.Dot)
		case "mode3_end":
			return decodeInt(d, &p.Mode3End)
		case "stat_line":
			return decodeBool(d, &p.StatLine)
		case "win_line":
			return decodeInt(d, &p.WinLine)
		case "frames":
			return decodeInt64(d, &p.Frames)
		case "regs":
			var r [11]uint8
			if err := decodeArray(d, r[:]); err != nil {
				return err
			}
			p.LCDC, p.STAT, p.SCY, p.SCX, p.LY, p.LYC = r[0], r[1], r[2], r[3], r[4], r[5]
			p.BGP, p.OBP0, p.OBP1, p.WY, p.WX = r[6], r[7], r[8], r[9], r[10]
			return nil
		case "vram":
			return decodeBytes(d, &p.VRAM)
		case "oam":
			return decodeBytes(d, &p.OAM)
		}
		return d.Skip()
	})
}

func (a *APU) encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		boolField(e, "power", a.Power)
		intField(e, "nr50", int64(a.NR50))
		intField(e, "nr51", int64(a.NR51))
		intField(e, "seq_step", int64(a.SeqStep))
		intField(e, "seq_dots", int64(a.SeqDots))
		bytesField(e, "wave_ram", a.WaveRAM[:])
		e.Field("channels", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range a.Channels {
					a.Channels[i].encode(e)
				}
			})
		})
	})
}

func (a *APU) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "power":
			return decodeBool(d, &a.Power)
		case "nr50":
			return decodeUint(d, &a.NR50)
		case "nr51":
			return decodeUint(d, &a.NR51)
		case "seq_step":
			return decodeInt(d, &a.SeqStep)
		case "seq_dots":
			return decodeInt(d, &a.SeqDots)
		case "wave_ram":
			return decodeArray(d, a.WaveRAM[:])
		case "channels":
			i := 0
			return d.Arr(func(d *jx.Decoder) error {
				if i >= len(a.Channels) {
					return fmt.Errorf("too many sound channels")
				}
				i++
				return a.Channels[i-1].decode(d)
			})
		}
		return d.Skip()
	})
}

func (c *APUChannel) encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		bytesField(e, "regs", c.Regs[:])
		boolField(e, "enabled", c.Enabled)
		boolField(e, "dac", c.DAC)
		intField(e, "length", int64(c.Length))
		boolField(e, "length_enabled", c.LengthEnabled)
		intField(e, "volume", int64(c.Volume))
		intField(e, "env_timer", int64(c.EnvTimer))
		intField(e, "freq", int64(c.Freq))
		intField(e, "phase", int64(c.Phase))
		intField(e, "timer", int64(c.Timer))
		boolField(e, "sweep_enabled", c.SweepEnabled)
		intField(e, "sweep_timer", int64(c.SweepTimer))
		intField(e, "sweep_shadow", int64(c.SweepShadow))
		intField(e, "lfsr", int64(c.LFSR))
	})
}

func (c *APUChannel) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "regs":
			return decodeArray(d, c.Regs[:])
		case "enabled":
			return decodeBool(d, &c.Enabled)
		case "dac":
			return decodeBool(d, &c.DAC)
		case "length":
			return decodeInt(d, &c.Length)
		case "length_enabled":
			return decodeBool(d, &c.LengthEnabled)
		case "volume":
			return decodeUint(d, &c.Volume)
		case "env_timer":
			return decodeUint(d, &c.EnvTimer)
		case "freq":
			return decodeUint(d, &c.Freq)
		case "phase":
			return decodeInt(d, &c.Phase)
		case "timer":
			return decodeInt(d, &c.Timer)
		case "sweep_enabled":
			return decodeBool(d, &c.SweepEnabled)
		case "sweep_timer":
			return decodeUint(d, &c.SweepTimer)
		case "sweep_shadow":
			return decodeUint(d, &c.SweepShadow)
		case "lfsr":
			return decodeUint(d, &c.LFSR)
		}
		return d.Skip()
	})
}

func (s *SGB) encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		var pals []byte
		for _, p := range s.Palettes {
			for _, c := range p {
				pals = binary.LittleEndian.AppendUint16(pals, c)
			}
		}
		bytesField(e, "palettes", pals)

		sys := make([]byte, 0, len(s.SysPalettes)*8)
		for _, p := range s.SysPalettes {
			for _, c := range p {
				sys = binary.LittleEndian.AppendUint16(sys, c)
			}
		}
		bytesField(e, "sys_palettes", sys)

		files := make([]byte, 0, len(s.AttrFiles)*18*20)
		for _, f := range s.AttrFiles {
			for _, row := range f {
				files = append(files, row[:]...)
			}
		}
		bytesField(e, "attr_files", files)

		var attrs []byte
		for _, row := range s.Attrs {
			attrs = append(attrs, row[:]...)
		}
		bytesField(e, "attrs", attrs)

		intField(e, "mask", int64(s.Mask))
		intField(e, "players", int64(s.Players))
		intField(e, "player", int64(s.Player))
	})
}

func (s *SGB) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "palettes":
			var buf [4 * 4 * 2]byte
			if err := decodeArray(d, buf[:]); err != nil {
				return err
			}
			for i := range 16 {
				s.Palettes[i/4][i%4] = binary.LittleEndian.Uint16(buf[i*2:])
			}
			return nil
		case "sys_palettes":
			var buf [512 * 4 * 2]byte
			if err := decodeArray(d, buf[:]); err != nil {
				return err
			}
			for i := range 512 * 4 {
				s.SysPalettes[i/4][i%4] = binary.LittleEndian.Uint16(buf[i*2:])
			}
			return nil
		case "attr_files":
			var buf [45 * 18 * 20]byte
			if err := decodeArray(d, buf[:]); err != nil {
				return err
			}
			for i, b := range buf {
				s.AttrFiles[i/360][i%360/20][i%20] = b
			}
			return nil
		case "attrs":
			var buf [18 * 20]byte
			if err := decodeArray(d, buf[:]); err != nil {
				return err
			}
			for i, b := range buf {
				s.Attrs[i/20][i%20] = b
			}
			return nil
		case "mask":
			return decodeUint(d, &s.Mask)
		case "players":
			return decodeUint(d, &s.Players)
		case "player":
			return decodeUint(d, &s.Player)
		}
		return d.Skip()
	})
}

func (m *Mapper) encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		boolField(e, "ram_enabled", m.RAMEnabled)
		intField(e, "bank1", int64(m.Bank1))
		intField(e, "bank2", int64(m.Bank2))
		intField(e, "mode", int64(m.Mode))
		bytesField(e, "ram", m.RAM)
	})
}

func (m *Mapper) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "ram_enabled":
			return decodeBool(d, &m.RAMEnabled)
		case "bank1":
			return decodeUint(d, &m.Bank1)
		case "bank2":
			return decodeUint(d, &m.Bank2)
		case "mode":
			return decodeUint(d, &m.Mode)
		case "ram":
			return decodeBytes(d, &m.RAM)
		}
		return d.Skip()
	})
}

/* field helpers */

func intField(e *jx.Encoder, name string, v int64) {
	e.Field(name, func(e *jx.Encoder) { e.Int64(v) })
}

func boolField(e *jx.Encoder, name string, v bool) {
	e.Field(name, func(e *jx.Encoder) { e.Bool(v) })
}

// bytesField encodes buf in base64.
func bytesField(e *jx.Encoder, name string, buf []byte) {
	e.Field(name, func(e *jx.Encoder) { e.Base64(buf) })
}

func decodeUint[T uint8 | uint16](d *jx.Decoder, v *T) error {
	n, err := d.Int64()
	if err != nil {
		return err
	}
	if n < 0 || uint64(n) > uint64(^T(0)) {
		return fmt.Errorf("value %d out of range", n)
	}
	*v = T(n)
	return nil
}

func decodeInt(d *jx.Decoder, v *int) error {
	n, err := d.Int()
	*v = n
	return err
}

func decodeInt64(d *jx.Decoder, v *int64) error {
	n, err := d.Int64()
	*v = n
	return err
}

func decodeBool(d *jx.Decoder, v *bool) error {
	b, err := d.Bool()
	*v = b
	return err
}

func decodeBytes(d *jx.Decoder, v *[]byte) error {
	buf, err := d.Base64()
	if err != nil {
		return err
	}
	*v = buf
	return nil
}

// decodeArray decodes a base64 string of exactly len(dst) bytes into dst.
func decodeArray(d *jx.Decoder, dst []byte) error {
	buf, err := d.Base64()
	if err != nil {
		return err
	}
	if len(buf) != len(dst) {
		return fmt.Errorf("got %d bytes, want %d", len(buf), len(dst))
	}
	copy(dst, buf)
	return nil
}
