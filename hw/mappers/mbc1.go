package mappers

var MBC1 = MapperDesc{
	Name: "MBC1",
	Load: loadMBC1,
}

type mbc1 struct {
	*base
}

func (m *mbc1) write(addr uint16, val uint8) {
	switch addr >> 13 {
	case 0: // 0000-1FFF
		m.ramEnabled = ramEnableValue(val)
		return
	case 1: // 2000-3FFF
		// 5-bit register, 0 is seen as 1.
		m.bank1 = uint16(val & 0x1F)
		if m.bank1 == 0 {
			m.bank1 = 1
		}
	case 2: // 4000-5FFF
		m.bank2 = uint16(val & 0x03)
	case 3: // 6000-7FFF
		m.mode = val & 0x01
	}
	m.remap()

	modMapper.DebugZ("bank switch").
		String("mapper", m.desc.Name).
		Int("rom", m.ROMBank()).
		Int("ram", m.RAMBank()).
		Uint8("mode", m.mode).
		End()
}

func (m *mbc1) remap() {
	m.selectROMX(int(m.bank2<<5 | m.bank1))
	if m.mode == 1 {
		m.selectROM0(int(m.bank2 << 5))
		m.selectRAM(int(m.bank2))
	} else {
		m.selectROM0(0)
		m.selectRAM(0)
	}
}

func loadMBC1(b *base) error {
	m := &mbc1{base: b}
	b.init(m.write, m.remap)
	return nil
}
