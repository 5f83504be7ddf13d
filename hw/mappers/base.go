package mappers

import (
	"fmt"

	"dotmatrix/cartridge"
	"dotmatrix/hw/snapshot"
)

// Mapper is a cartridge bank controller. It handles the ROM area
// (0x0000-0x7FFF) and the external RAM area (0xA000-0xBFFF).
type Mapper interface {
	Name() string

	ReadROM(addr uint16) uint8
	WriteROM(addr uint16, val uint8)
	ReadRAM(addr uint16, peek bool) uint8
	WriteRAM(addr uint16, val uint8)
	Reset()

	ROMBank() int // bank mapped at 0x4000-0x7FFF
	RAMBank() int
	RAMEnabled() bool

	// Battery backed RAM.
	HasBattery() bool
	RAM() []byte
	LoadRAM(data []byte) error
	Dirty() bool
	ClearDirty()

	State() snapshot.Mapper
	SetState(snapshot.Mapper) error
}

const (
	romBankSize = 0x4000
	ramBankSize = 0x2000
)

type base struct {
	desc MapperDesc

	rom      []byte
	romMask  int // rom bank count - 1
	ram      []byte
	ramBanks int
	battery  bool
	dirty    bool
	nibbles  bool // 4-bit ram (mbc2)

	// registers
	ramEnabled bool
	bank1      uint16
	bank2      uint16
	mode       uint8

	// byte offsets of the currently mapped banks
	rom0Off int
	romxOff int
	ramOff  int

	write func(addr uint16, val uint8)
	remap func()
}

func ispow2(n int) bool {
	return n&(n-1) == 0
}

func newbase(desc MapperDesc, cart *cartridge.Cartridge) (*base, error) {
	if len(cart.ROM) < 2*romBankSize || !ispow2(len(cart.ROM)) {
		return nil, fmt.Errorf("only support ROM with power of 2 size (>= 32KB), got %d", len(cart.ROM))
	}

	b := &base{
		desc:    desc,
		rom:     cart.ROM,
		romMask: len(cart.ROM)/romBankSize - 1,
	}
	if sz := cart.RAMSize(); sz > 0 {
		b.ram = make([]byte, sz)
		b.ramBanks = max(1, sz/ramBankSize)
	}
	b.battery = cart.HasBattery()
	return b, nil
}

// init sets the mapper specific register write handler and bank remapping
// function.
func (b *base) init(write func(addr uint16, val uint8), remap func()) {
	b.write = write
	b.remap = remap
}

func (b *base) Name() string { return b.desc.Name }

func (b *base) Reset() {
	b.ramEnabled = false
	b.bank1 = 1
	b.bank2 = 0
	b.mode = 0
	b.remap()
}

func (b *base) ReadROM(addr uint16) uint8 {
	if addr < romBankSize {
		return b.rom[b.rom0Off+int(addr)]
	}
	return b.rom[b.romxOff+int(addr-romBankSize)]
}

func (b *base) WriteROM(addr uint16, val uint8) {
	b.write(addr, val)
}

func (b *base) ramIndex(addr uint16) int {
	return (b.ramOff + int(addr&0x1FFF)) & (len(b.ram) - 1)
}

func (b *base) ReadRAM(addr uint16, peek bool) uint8 {
	if !b.ramEnabled || len(b.ram) == 0 {
		if !peek {
			modMapper.DebugZ("read from disabled external RAM").
				String("mapper", b.desc.Name).
				Hex16("addr", addr).
				End()
		}
		return 0xFF
	}
	val := b.ram[b.ramIndex(addr)]
	if b.nibbles {
		val |= 0xF0
	}
	return val
}

func (b *base) WriteRAM(addr uint16, val uint8) {
	if !b.ramEnabled || len(b.ram) == 0 {
		modMapper.DebugZ("write to disabled external RAM").
			String("mapper", b.desc.Name).
			Hex16("addr", addr).
			Hex8("val", val).
			End()
		return
	}
	if b.nibbles {
		val &= 0x0F
	}
	b.ram[b.ramIndex(addr)] = val
	if b.battery {
		b.dirty = true
	}
}

func (b *base) ROMBank() int     { return b.romxOff / romBankSize }
func (b *base) RAMBank() int     { return b.ramOff / ramBankSize }
func (b *base) RAMEnabled() bool { return b.ramEnabled }

func (b *base) HasBattery() bool { return b.battery && len(b.ram) > 0 }
func (b *base) RAM() []byte      { return b.ram }
func (b *base) Dirty() bool      { return b.dirty }
func (b *base) ClearDirty()      { b.dirty = false }

// LoadRAM restores the external RAM contents, usually from a save file.
func (b *base) LoadRAM(data []byte) error {
	if len(data) != len(b.ram) {
		return fmt.Errorf("ram size mismatch: got %d bytes, want %d", len(data), len(b.ram))
	}
	copy(b.ram, data)
	b.dirty = false
	return nil
}

func (b *base) State() snapshot.Mapper {
	return snapshot.Mapper{
		RAMEnabled: b.ramEnabled,
		Bank1:      b.bank1,
		Bank2:      b.bank2,
		Mode:       b.mode,
		RAM:        append([]byte(nil), b.ram...),
	}
}

func (b *base) SetState(s snapshot.Mapper) error {
	if len(s.RAM) != len(b.ram) {
		return fmt.Errorf("ram size mismatch: got %d bytes, want %d", len(s.RAM), len(b.ram))
	}
	b.ramEnabled = s.RAMEnabled
	b.bank1 = s.Bank1
	b.bank2 = s.Bank2
	b.mode = s.Mode
	copy(b.ram, s.RAM)
	b.remap()
	return nil
}

func (b *base) selectROMX(bank int) {
	b.romxOff = (bank & b.romMask) * romBankSize
}

func (b *base) selectROM0(bank int) {
	b.rom0Off = (bank & b.romMask) * romBankSize
}

func (b *base) selectRAM(bank int) {
	if b.ramBanks == 0 {
		b.ramOff = 0
		return
	}
	b.ramOff = (bank % b.ramBanks) * ramBankSize
}

func ramEnableValue(val uint8) bool {
	return val&0x0F == 0x0A
}
