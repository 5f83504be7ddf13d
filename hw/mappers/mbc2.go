package mappers

var MBC2 = MapperDesc{
	Name: "MBC2",
	Load: loadMBC2,
}

type mbc2 struct {
	*base
}

// MBC2 only decodes the 0000-3FFF range, address bit 8 selects the register.
func (m *mbc2) write(addr uint16, val uint8) {
	if addr >= 0x4000 {
		return
	}
	if addr&0x100 == 0 {
		m.ramEnabled = ramEnableValue(val)
		return
	}

	m.bank1 = uint16(val & 0x0F)
	if m.bank1 == 0 {
		m.bank1 = 1
	}
	m.remap()

	modMapper.DebugZ("bank switch").
		String("mapper", m.desc.Name).
		Int("rom", m.ROMBank()).
		End()
}

func (m *mbc2) remap() {
	m.selectROM0(0)
	m.selectROMX(int(m.bank1))
}

func loadMBC2(b *base) error {
	// 512x4 bits built-in RAM, mirrored across A000-BFFF.
	b.ram = make([]byte, 512)
	b.ramBanks = 1
	b.nibbles = true

	m := &mbc2{base: b}
	b.init(m.write, m.remap)
	return nil
}
