package hw

import (
	"dotmatrix/emu/log"
	"dotmatrix/hw/hwio"
	"dotmatrix/hw/mappers"
)

// Memory map boundaries.
const (
	ROM0Start  = 0x0000
	ROMXStart  = 0x4000
	VRAMStart  = 0x8000
	ERAMStart  = 0xA000
	WRAM0Start = 0xC000
	WRAM1Start = 0xD000
	EchoStart  = 0xE000
	EchoEnd    = 0xFDFF
	OAMStart   = 0xFE00
	OAMEnd     = 0xFE9F
	IOStart    = 0xFF00
	IOEnd      = 0xFF7F
	HRAMStart  = 0xFF80
	HRAMEnd    = 0xFFFE
	IEAddr     = 0xFFFF
)

// Bus is the CPU memory bus. Address decoding is handled by a hwio.Table on
// which each hardware component maps its own registers and memory areas.
type Bus struct {
	table  *hwio.Table
	mapper mappers.Mapper
	oam    []byte

	ROM  hwio.Device `hwio:"offset=0x0000,size=0x8000,rcb,wcb"`
	ERAM hwio.Device `hwio:"offset=0xA000,size=0x2000,rcb,wcb"`
	WRAM hwio.Mem    `hwio:"offset=0xC000,size=0x2000"`
	Echo hwio.Device `hwio:"offset=0xE000,size=0x1E00,rcb,wcb"`
	HRAM hwio.Mem    `hwio:"offset=0xFF80,size=0x80"`

	DMA hwio.Reg8 `hwio:"offset=0xFF46,reset=0xFF,wcb"`

	// Registers without function on a DMG, kept as plain storage.
	KEY1 hwio.Reg8 `hwio:"offset=0xFF4D,reset=0xFF"`
	VBK  hwio.Reg8 `hwio:"offset=0xFF4F,reset=0xFF"`
	BOOT hwio.Reg8 `hwio:"offset=0xFF50,reset=0xFF"`
	BCPS hwio.Reg8 `hwio:"offset=0xFF68,reset=0xFF"`
	BCPD hwio.Reg8 `hwio:"offset=0xFF69,reset=0xFF"`
	OCPS hwio.Reg8 `hwio:"offset=0xFF6A,reset=0xFF"`
	OCPD hwio.Reg8 `hwio:"offset=0xFF6B,reset=0xFF"`
	SVBK hwio.Reg8 `hwio:"offset=0xFF70,reset=0xFF"`
}

// NewBus creates the memory bus and maps its own areas. Other components
// are mapped with Map.
func NewBus() *Bus {
	b := &Bus{table: hwio.NewTable("cpu")}
	hwio.MustInitRegs(b)
	b.table.Unmapped = unmapped{}
	b.table.MapBank(0, b, 0)
	return b
}

// Map maps the hwio registers and memory areas of a component.
func (b *Bus) Map(bank any) {
	b.table.MapBank(0, bank, 0)
}

// SetMapper plugs the cartridge bank controller.
func (b *Bus) SetMapper(m mappers.Mapper) {
	b.mapper = m
}

// SetOAM sets the destination of OAM DMA transfers.
func (b *Bus) SetOAM(oam []byte) {
	b.oam = oam
}

func (b *Bus) Reset() {
	hwio.ResetRegs(b)
}

func (b *Bus) Read8(addr uint16) uint8       { return b.table.Read8(addr, false) }
func (b *Bus) Peek8(addr uint16) uint8       { return b.table.Read8(addr, true) }
func (b *Bus) Write8(addr uint16, val uint8) { b.table.Write8(addr, val) }

func (b *Bus) Read16(addr uint16) uint16 {
	lo := b.Read8(addr)
	hi := b.Read8(addr + 1)
	return uint16(hi)<<8 | uint16(lo)
}

// 0000-7FFF
func (b *Bus) ReadROM(addr uint16, _ bool) uint8 {
	if b.mapper == nil {
		return 0xFF
	}
	return b.mapper.ReadROM(addr)
}

func (b *Bus) WriteROM(addr uint16, val uint8) {
	if b.mapper != nil {
		b.mapper.WriteROM(addr, val)
	}
}

// A000-BFFF
func (b *Bus) ReadERAM(addr uint16, peek bool) uint8 {
	if b.mapper == nil {
		return 0xFF
	}
	return b.mapper.ReadRAM(addr, peek)
}

func (b *Bus) WriteERAM(addr uint16, val uint8) {
	if b.mapper != nil {
		b.mapper.WriteRAM(addr, val)
	}
}

// E000-FDFF mirrors C000-DDFF.
func (b *Bus) ReadECHO(addr uint16, peek bool) uint8 {
	return b.table.Read8(addr-0x2000, peek)
}

func (b *Bus) WriteECHO(addr uint16, val uint8) {
	b.table.Write8(addr-0x2000, val)
}

// FF46: OAM DMA. The transfer is performed at once.
func (b *Bus) WriteDMA(_, val uint8) {
	src := uint16(val) << 8
	for i := range uint16(0xA0) {
		if b.oam == nil {
			break
		}
		b.oam[i] = b.Peek8(src + i)
	}
	log.ModMem.DebugZ("OAM DMA").Hex16("src", src).End()
}

type unmapped struct{}

func (unmapped) Read8(addr uint16, peek bool) uint8 {
	if !peek && addr >= IOStart && addr <= IOEnd {
		log.ModHwIo.DebugZ("read from unmapped io register").Hex16("addr", addr).End()
	}
	return 0xFF
}

func (unmapped) Write8(addr uint16, val uint8) {
	log.ModHwIo.DebugZ("write to unmapped address").
		Hex16("addr", addr).
		Hex8("val", val).
		End()
}
