package emu

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"dotmatrix/cartridge"
	"dotmatrix/emu/log"
	"dotmatrix/hw"
	"dotmatrix/hw/apu"
	"dotmatrix/hw/mappers"
	"dotmatrix/hw/sgb"
	"dotmatrix/hw/snapshot"
)

// GameBoy owns all the hardware components. They are created once, and reset
// in place when a cartridge is loaded.
type GameBoy struct {
	Model hw.Model
	Cart  *cartridge.Cartridge

	IRQ    *hw.Interrupts
	Bus    *hw.Bus
	Timer  *hw.Timer
	Serial *hw.Serial
	Joypad *hw.Joypad
	PPU    *hw.PPU
	CPU    *hw.CPU
	APU    *apu.APU
	SGB    *sgb.SGB

	mixer  *apu.Mixer
	mapper mappers.Mapper

	debt int // dots left to run for the last instruction
}

// NewGameBoy creates a machine without cartridge. mixer can be nil.
func NewGameBoy(mixer *apu.Mixer) *GameBoy {
	gb := &GameBoy{
		IRQ:   hw.NewInterrupts(),
		Bus:   hw.NewBus(),
		mixer: mixer,
	}
	gb.Timer = hw.NewTimer(gb.IRQ)
	gb.Serial = hw.NewSerial(gb.IRQ)
	gb.Joypad = hw.NewJoypad(gb.IRQ)
	gb.PPU = hw.NewPPU(gb.IRQ)
	gb.CPU = hw.NewCPU(gb.Bus, gb.IRQ, gb.Timer)
	gb.APU = apu.New(mixer)
	gb.SGB = sgb.New(gb.Bus)

	gb.Bus.SetOAM(gb.PPU.OAM.Data)
	gb.Bus.Map(gb.IRQ)
	gb.Bus.Map(gb.Timer)
	gb.Bus.Map(gb.Serial)
	gb.Bus.Map(gb.Joypad)
	gb.Bus.Map(gb.PPU)
	gb.Bus.Map(gb.APU)

	gb.Reset()
	return gb
}

// ModelFor returns the model to emulate for cart. name is auto, dmg or sgb,
// auto selects sgb for cartridges supporting it.
func ModelFor(cart *cartridge.Cartridge, name string) hw.Model {
	switch name {
	case "dmg":
		return hw.DMG
	case "sgb":
		return hw.SGB
	}
	if cart.SupportsSGB() {
		return hw.SGB
	}
	return hw.DMG
}

// Load plugs cart and resets the machine. On error, the machine state is left
// unchanged.
func (gb *GameBoy) Load(cart *cartridge.Cartridge, model hw.Model) error {
	m, err := mappers.Load(cart)
	if err != nil {
		return fmt.Errorf("load cartridge: %w", err)
	}

	gb.Cart = cart
	gb.Model = model
	gb.mapper = m
	gb.Bus.SetMapper(m)
	gb.Joypad.Listener = nil
	if model == hw.SGB {
		gb.Joypad.Listener = gb.SGB
	}

	log.ModEmu.InfoZ("cartridge loaded").
		String("title", cart.Title).
		String("mapper", m.Name()).
		Stringer("model", model).
		End()

	gb.Reset()
	return nil
}

// Reset puts every component in its post-boot state. Resetting twice is the
// same as resetting once.
func (gb *GameBoy) Reset() {
	gb.IRQ.Reset()
	gb.Bus.Reset()
	gb.Timer.Reset()
	gb.Serial.Reset()
	gb.Joypad.Reset()
	gb.PPU.Reset()
	gb.APU.Reset()
	gb.SGB.Reset()
	if gb.mapper != nil {
		gb.mapper.Reset()
	}
	clear(gb.Bus.WRAM.Data)
	clear(gb.Bus.HRAM.Data)
	gb.CPU.Reset(gb.Model)
	gb.debt = 0
}

// Tick runs one dot. A new instruction is executed when the previous one has
// been paid for. Hardware is not advanced when the instruction fails.
func (gb *GameBoy) Tick() error {
	if gb.debt == 0 {
		cycles, err := gb.CPU.Step()
		if err != nil {
			return err
		}
		gb.debt = cycles * 4
	}
	gb.debt--

	gb.Timer.Tick()
	gb.Serial.Tick()
	gb.PPU.Tick()
	gb.APU.Tick()
	return nil
}

// AtBoundary reports whether the last instruction has been fully run.
func (gb *GameBoy) AtBoundary() bool { return gb.debt == 0 }

// RunFrame runs until the PPU completes a frame, or for a frame worth of dots
// when the LCD is off, then finishes the current instruction.
func (gb *GameBoy) RunFrame() error {
	start := gb.PPU.FrameCount()
	for range hw.DotsPerFrame {
		if err := gb.Tick(); err != nil {
			return err
		}
		if gb.PPU.FrameCount() != start {
			break
		}
	}
	for gb.debt > 0 {
		if err := gb.Tick(); err != nil {
			return err
		}
	}
	gb.APU.EndFrame()
	return nil
}

// SetButtons updates the joypad state.
func (gb *GameBoy) SetButtons(b hw.Buttons) {
	if gb.Joypad.Buttons() != b {
		gb.Joypad.SetButtons(b)
	}
}

// battery save

// LoadSave restores the battery backed RAM from path. A missing file is not
// an error.
func (gb *GameBoy) LoadSave(path string) error {
	if gb.mapper == nil || !gb.mapper.HasBattery() {
		return nil
	}
	buf, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := gb.mapper.LoadRAM(buf); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	log.ModEmu.InfoZ("battery save loaded").String("path", path).End()
	return nil
}

// FlushSave writes the battery backed RAM to path, if it has been modified
// since the last flush.
func (gb *GameBoy) FlushSave(path string) error {
	if gb.mapper == nil || !gb.mapper.HasBattery() || !gb.mapper.Dirty() {
		return nil
	}
	if err := os.WriteFile(path, gb.mapper.RAM(), 0644); err != nil {
		return err
	}
	gb.mapper.ClearDirty()
	log.ModEmu.DebugZ("battery save flushed").String("path", path).End()
	return nil
}

// save states

// State returns the machine state. It should be called between instructions.
func (gb *GameBoy) State() (*snapshot.GameBoy, error) {
	if gb.Cart == nil {
		return nil, errors.New("no cartridge loaded")
	}
	if gb.debt != 0 {
		return nil, errors.New("instruction in progress")
	}
	s := &snapshot.GameBoy{
		Version: snapshot.Version,
		Title:   gb.Cart.Title,
		Model:   uint8(gb.Model),
		CPU:     gb.CPU.State(),
		IF:      gb.IRQ.IF.Value,
		IE:      gb.IRQ.IE.Value,
		Timer:   gb.Timer.State(),
		Serial:  gb.Serial.State(),
		P1:      gb.Joypad.P1.Value,
		PPU:     gb.PPU.State(),
		APU:     gb.APU.State(),
		Mapper:  gb.mapper.State(),
		WRAM:    append([]byte(nil), gb.Bus.WRAM.Data...),
		HRAM:    append([]byte(nil), gb.Bus.HRAM.Data...),
	}
	if gb.Model == hw.SGB {
		st := gb.SGB.State()
		s.SGB = &st
	}
	return s, nil
}

// SetState restores a state previously returned by State, for the same
// cartridge. On error, the machine is left unchanged.
func (gb *GameBoy) SetState(s *snapshot.GameBoy) error {
	switch {
	case gb.Cart == nil:
		return errors.New("no cartridge loaded")
	case s.Title != gb.Cart.Title:
		return fmt.Errorf("state is for %q, not %q", s.Title, gb.Cart.Title)
	case hw.Model(s.Model) != gb.Model:
		return fmt.Errorf("state is for model %s, running %s", hw.Model(s.Model), gb.Model)
	case (s.SGB != nil) != (gb.Model == hw.SGB):
		return errors.New("sgb state mismatch")
	case len(s.WRAM) != len(gb.Bus.WRAM.Data):
		return fmt.Errorf("wram size mismatch: got %d bytes", len(s.WRAM))
	case len(s.HRAM) != len(gb.Bus.HRAM.Data):
		return fmt.Errorf("hram size mismatch: got %d bytes", len(s.HRAM))
	}
	if err := gb.Serial.CheckState(s.Serial); err != nil {
		return err
	}
	if err := gb.PPU.CheckState(s.PPU); err != nil {
		return err
	}
	if err := gb.APU.CheckState(s.APU); err != nil {
		return err
	}
	if s.SGB != nil {
		if err := gb.SGB.CheckState(*s.SGB); err != nil {
			return err
		}
	}
	if err := gb.mapper.SetState(s.Mapper); err != nil {
		return err
	}

	gb.CPU.SetState(s.CPU)
	gb.IRQ.IF.Value = s.IF
	gb.IRQ.IE.Value = s.IE
	gb.Timer.SetState(s.Timer)
	gb.Serial.SetState(s.Serial)
	gb.Joypad.P1.Value = s.P1
	gb.PPU.SetState(s.PPU)
	gb.APU.SetState(s.APU)
	if s.SGB != nil {
		gb.SGB.SetState(*s.SGB)
	}
	copy(gb.Bus.WRAM.Data, s.WRAM)
	copy(gb.Bus.HRAM.Data, s.HRAM)
	gb.debt = 0
	return nil
}

// SaveState encodes the machine state.
func (gb *GameBoy) SaveState() ([]byte, error) {
	s, err := gb.State()
	if err != nil {
		return nil, err
	}
	return snapshot.Marshal(s), nil
}

// LoadState decodes and restores a state produced by SaveState.
func (gb *GameBoy) LoadState(data []byte) error {
	s, err := snapshot.Unmarshal(data)
	if err != nil {
		return err
	}
	return gb.SetState(s)
}
