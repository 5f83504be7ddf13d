package hwio

import (
	"fmt"

	"dotmatrix/emu/log"
)

// log unmapped accesses (verbose, since many games poke unused registers)
const logUnmapped = false

type BankIO8 interface {
	// Read8 reads a byte from the given address. If peek is true, the read
	// shouldn't have any side effects (debugging/tracing).
	Read8(addr uint16, peek bool) uint8
	Write8(addr uint16, val uint8)
}

type page [256]BankIO8

// Table dispatches 8-bit accesses to the devices mapped at each address. It
// is organized as a 2-level radix (high byte, low byte), pages are allocated
// on first mapping.
type Table struct {
	Name string

	// Unmapped, if set, handles accesses to addresses not mapped to any
	// device. Otherwise reads return 0xFF and writes are dropped.
	Unmapped BankIO8

	pages [256]*page
}

func NewTable(name string) *Table {
	return &Table{Name: name}
}

// Reset unmaps everything.
func (t *Table) Reset() {
	t.pages = [256]*page{}
}

func (t *Table) search(addr uint16) BankIO8 {
	p := t.pages[addr>>8]
	if p == nil {
		return nil
	}
	return p[addr&0xff]
}

func (t *Table) mapRange(begin, end uint16, io BankIO8) {
	for addr := uint32(begin); addr <= uint32(end); addr++ {
		hi := addr >> 8
		if t.pages[hi] == nil {
			t.pages[hi] = new(page)
		}
		t.pages[hi][addr&0xff] = io
	}
}

// Unmap removes all devices mapped in [begin, end].
func (t *Table) Unmap(begin, end uint16) {
	for addr := uint32(begin); addr <= uint32(end); addr++ {
		if p := t.pages[addr>>8]; p != nil {
			p[addr&0xff] = nil
		}
	}
}

// MapBank maps a register bank (a structure containing multiple hwio
// fields). Fields must have a "hwio" struct tag, see MustInitRegs for the
// tag syntax. Only fields of the given bank number are mapped, at addr plus
// their offset.
func (t *Table) MapBank(addr uint16, bank any, bankNum int) {
	regs, err := bankGetRegs(bank, bankNum)
	if err != nil {
		panic(err)
	}

	for _, reg := range regs {
		switch r := reg.regPtr.(type) {
		case *Mem:
			t.MapMem(addr+reg.offset, r)
		case *Reg8:
			t.MapReg8(addr+reg.offset, r)
		case *Device:
			t.MapDevice(addr+reg.offset, r)
		default:
			panic(fmt.Errorf("invalid reg type: %T", r))
		}
	}
}

func (t *Table) MapReg8(addr uint16, reg *Reg8) {
	t.mapRange(addr, addr, reg)
}

func (t *Table) MapDevice(addr uint16, dev *Device) {
	t.mapRange(addr, addr+uint16(dev.Size-1), dev)
}

func (t *Table) MapMem(addr uint16, mem *Mem) {
	log.ModHwIo.DebugZ("mapping mem").
		Hex16("addr", addr).
		Hex16("size", uint16(mem.VSize)).
		String("area", mem.Name).
		String("bus", t.Name).
		End()

	if len(mem.Data)&(len(mem.Data)-1) != 0 {
		panic("memory buffer size is not pow2")
	}
	vsize := mem.VSize
	if vsize == 0 {
		vsize = len(mem.Data)
	}
	t.mapRange(addr, addr+uint16(vsize-1), mem)
}

// Read8 forwards the read to the device mapped at addr.
func (t *Table) Read8(addr uint16, peek bool) uint8 {
	io := t.search(addr)
	if io == nil {
		if t.Unmapped != nil {
			return t.Unmapped.Read8(addr, peek)
		}
		if logUnmapped && !peek {
			log.ModHwIo.DebugZ("unmapped Read8").
				String("name", t.Name).
				Hex16("addr", addr).
				End()
		}
		return 0xFF
	}
	return io.Read8(addr, peek)
}

// Peek8 is a convenience function.
func (t *Table) Peek8(addr uint16) uint8 {
	return t.Read8(addr, true)
}

func (t *Table) Write8(addr uint16, val uint8) {
	io := t.search(addr)
	if io == nil {
		if t.Unmapped != nil {
			t.Unmapped.Write8(addr, val)
			return
		}
		if logUnmapped {
			log.ModHwIo.DebugZ("unmapped Write8").
				String("name", t.Name).
				Hex16("addr", addr).
				Hex8("val", val).
				End()
		}
		return
	}
	io.Write8(addr, val)
}
