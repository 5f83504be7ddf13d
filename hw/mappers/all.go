// Package mappers implements cartridge memory bank controllers (MBC).
package mappers

import (
	"fmt"

	"dotmatrix/cartridge"
	"dotmatrix/emu/log"
)

var modMapper = log.ModMapper

type MapperDesc struct {
	Name string
	Load func(*base) error
}

// All maps cartridge types to their bank controller.
var All = map[uint8]MapperDesc{
	0x00: NoMBC,
	0x08: NoMBC,
	0x09: NoMBC,

	0x01: MBC1,
	0x02: MBC1,
	0x03: MBC1,

	0x05: MBC2,
	0x06: MBC2,

	0x19: MBC5,
	0x1A: MBC5,
	0x1B: MBC5,
	0x1C: MBC5,
	0x1D: MBC5,
	0x1E: MBC5,
}

// Load creates the bank controller for the given cartridge. Unsupported
// cartridge types fall back to a controller ignoring all writes to the ROM
// range.
func Load(cart *cartridge.Cartridge) (Mapper, error) {
	desc, ok := All[cart.Type]
	if !ok {
		log.ModMapper.WarnZ("unsupported cartridge type, bank switching disabled").
			String("type", cart.TypeName()).
			End()
		desc = NoMBC
	}
	b, err := newbase(desc, cart)
	if err != nil {
		return nil, fmt.Errorf("mapper initialization failed: %w", err)
	}
	if err := desc.Load(b); err != nil {
		return nil, fmt.Errorf("failed to load mapper %s: %w", desc.Name, err)
	}
	b.Reset()
	return b, nil
}
