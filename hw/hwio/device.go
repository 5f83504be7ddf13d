package hwio

import "dotmatrix/emu/log"

// Device allows manual management of an entire range of addresses.
type Device struct {
	Name  string // name of the memory area (for debugging)
	Size  int    // size of the memory area
	Flags RWFlags

	ReadCb  func(addr uint16, peek bool) uint8
	WriteCb func(addr uint16, val uint8)
}

func (d *Device) Read8(addr uint16, peek bool) uint8 {
	if d.Flags&WriteOnlyFlag != 0 || d.ReadCb == nil {
		return 0xFF
	}
	return d.ReadCb(addr, peek)
}

func (d *Device) Write8(addr uint16, val uint8) {
	if d.Flags&ReadOnlyFlag != 0 || d.WriteCb == nil {
		log.ModHwIo.DebugZ("dropped device write").
			String("name", d.Name).
			Hex16("addr", addr).
			End()
		return
	}
	d.WriteCb(addr, val)
}
