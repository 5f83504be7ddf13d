package hwio

import (
	"fmt"

	"dotmatrix/emu/log"
)

type RWFlags uint8

const (
	ReadWriteFlag RWFlags = 0
	ReadOnlyFlag  RWFlags = (1 << iota)
	WriteOnlyFlag
)

// Reg8 is an 8-bit memory-mapped register.
//
// Bits set in RoMask are never modified by bus writes. Reads of a write-only
// register return the unmapped value 0xFF.
type Reg8 struct {
	Name   string
	Value  uint8
	RoMask uint8
	Reset  uint8 // value restored by ResetRegs

	Flags   RWFlags
	ReadCb  func(val uint8, peek bool) uint8
	WriteCb func(old uint8, val uint8)
}

func (reg Reg8) String() string {
	s := fmt.Sprintf("%s{%02x", reg.Name, reg.Value)
	if reg.ReadCb != nil {
		s += ",r!"
	}
	if reg.WriteCb != nil {
		s += ",w!"
	}
	return s + "}"
}

func (reg *Reg8) Write8(addr uint16, val uint8) {
	if reg.Flags&ReadOnlyFlag != 0 {
		log.ModHwIo.DebugZ("write to readonly reg").
			String("name", reg.Name).
			Hex16("addr", addr).
			Hex8("val", val).
			End()
		return
	}
	old := reg.Value
	reg.Value = (reg.Value & reg.RoMask) | (val &^ reg.RoMask)
	if reg.WriteCb != nil {
		reg.WriteCb(old, reg.Value)
	}
}

func (reg *Reg8) Read8(addr uint16, peek bool) uint8 {
	if reg.Flags&WriteOnlyFlag != 0 {
		if !peek {
			log.ModHwIo.DebugZ("read from writeonly reg").
				String("name", reg.Name).
				Hex16("addr", addr).
				End()
		}
		return 0xFF
	}
	if reg.ReadCb != nil {
		return reg.ReadCb(reg.Value, peek)
	}
	return reg.Value
}

func (reg *Reg8) GetBit(n uint) bool   { return GetBit8(reg.Value, n) }
func (reg *Reg8) GetBiti(n uint) uint8 { return GetBiti8(reg.Value, n) }
func (reg *Reg8) SetBit(n uint)        { SetBit8(&reg.Value, n) }
func (reg *Reg8) ClearBit(n uint)      { ClearBit8(&reg.Value, n) }
func (reg *Reg8) SetBits(mask uint8)   { reg.Value |= mask }
func (reg *Reg8) ClearBits(mask uint8) { reg.Value &^= mask }

func (reg *Reg8) SetBitTo(n uint, set bool) {
	SetBitTo8(&reg.Value, n, set)
}
