package mappers

var MBC5 = MapperDesc{
	Name: "MBC5",
	Load: loadMBC5,
}

type mbc5 struct {
	*base
}

func (m *mbc5) write(addr uint16, val uint8) {
	switch {
	case addr < 0x2000:
		m.ramEnabled = ramEnableValue(val)
		return
	case addr < 0x3000:
		// Unlike MBC1, bank 0 can be mapped at 4000-7FFF.
		m.bank1 = m.bank1&0x100 | uint16(val)
	case addr < 0x4000:
		m.bank1 = m.bank1&0xFF | uint16(val&0x01)<<8
	case addr < 0x6000:
		// Bit 3 drives the rumble motor on rumble carts.
		m.bank2 = uint16(val & 0x0F)
	default:
		return
	}
	m.remap()

	modMapper.DebugZ("bank switch").
		String("mapper", m.desc.Name).
		Int("rom", m.ROMBank()).
		Int("ram", m.RAMBank()).
		End()
}

func (m *mbc5) remap() {
	m.selectROM0(0)
	m.selectROMX(int(m.bank1))
	m.selectRAM(int(m.bank2))
}

func loadMBC5(b *base) error {
	m := &mbc5{base: b}
	b.init(m.write, m.remap)
	return nil
}
