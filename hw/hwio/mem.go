package hwio

import "dotmatrix/emu/log"

type MemFlags int

const (
	MemFlagReadWrite MemFlags = 0
	MemFlagReadOnly  MemFlags = 1 << iota // writes are dropped (and logged)
	MemFlagNoROLog                        // don't log writes to readonly memory
)

// Mem is a linear memory area that can be mapped into a Table. VSize can be
// larger than len(Data), in which case the memory is mirrored. len(Data) must
// be a power of 2.
type Mem struct {
	Name    string
	Data    []byte
	VSize   int
	Flags   MemFlags
	WriteCb func(addr uint16, val uint8) // called after each write
}

func (m *Mem) mask() uint16 {
	return uint16(len(m.Data) - 1)
}

func (m *Mem) Read8(addr uint16, _ bool) uint8 {
	return m.Data[addr&m.mask()]
}

func (m *Mem) Write8(addr uint16, val uint8) {
	if m.Flags&MemFlagReadOnly != 0 {
		if m.Flags&MemFlagNoROLog == 0 {
			log.ModHwIo.DebugZ("write to readonly memory").
				String("name", m.Name).
				Hex16("addr", addr).
				Hex8("val", val).
				End()
		}
		return
	}
	m.Data[addr&m.mask()] = val
	if m.WriteCb != nil {
		m.WriteCb(addr, val)
	}
}
