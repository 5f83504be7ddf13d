package mappers

var NoMBC = MapperDesc{
	Name: "ROM",
	Load: loadNoMBC,
}

func loadNoMBC(b *base) error {
	remap := func() {
		// Optional RAM is always accessible.
		b.ramEnabled = true
		b.selectROM0(0)
		b.selectROMX(1)
		b.selectRAM(0)
	}
	write := func(addr uint16, val uint8) {
		modMapper.DebugZ("write to rom").
			String("mapper", b.desc.Name).
			Hex16("addr", addr).
			Hex8("val", val).
			End()
	}
	b.init(write, remap)
	return nil
}
