package mappers

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"dotmatrix/cartridge"
)

// newCart returns a cartridge in which the first byte of each rom bank holds
// the bank number.
func newCart(typ, romCode, ramCode uint8) *cartridge.Cartridge {
	cart := &cartridge.Cartridge{
		Header: cartridge.Header{
			Type:        typ,
			ROMSizeCode: romCode,
			RAMSizeCode: ramCode,
		},
	}
	cart.ROM = make([]byte, cart.ROMSize())
	for bank := range cart.ROMBanks() {
		cart.ROM[bank*romBankSize] = uint8(bank)
		cart.ROM[bank*romBankSize+1] = uint8(bank >> 8)
	}
	return cart
}

func mustLoad(t *testing.T, cart *cartridge.Cartridge) Mapper {
	t.Helper()

	m, err := Load(cart)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestMBC1ROMBanking(t *testing.T) {
	tests := []struct {
		name    string
		romCode uint8
		writes  []uint8 // values written at 0x2000
		want    int
	}{
		{"zero-selects-1", 1, []uint8{0x00}, 1},
		{"bank-2", 1, []uint8{0x02}, 2},
		{"masked-to-bank-count", 1, []uint8{0x07}, 3},
		{"upper-bits-ignored", 5, []uint8{0xE5}, 5},
		{"last-write-wins", 5, []uint8{0x03, 0x1F}, 31},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := mustLoad(t, newCart(0x01, tt.romCode, 0))
			for _, v := range tt.writes {
				m.WriteROM(0x2000, v)
			}
			if got := m.ROMBank(); got != tt.want {
				t.Errorf("ROMBank() = %d, want %d", got, tt.want)
			}
			if got := m.ReadROM(0x4000); got != uint8(tt.want) {
				t.Errorf("ReadROM(0x4000) = %d, want %d", got, tt.want)
			}
			if got := m.ReadROM(0x0000); got != 0 {
				t.Errorf("ReadROM(0x0000) = %d, want 0", got)
			}
		})
	}
}

func TestMBC1UpperBits(t *testing.T) {
	// 1MB rom, 64 banks.
	m := mustLoad(t, newCart(0x03, 5, 3))

	m.WriteROM(0x2000, 0x02)
	m.WriteROM(0x4000, 0x01)
	if got := m.ROMBank(); got != 0x22 {
		t.Errorf("ROMBank() = %#x, want 0x22", got)
	}

	// Mode 0: bank 0 at 0000, ram bank 0.
	if got := m.ReadROM(0x0000); got != 0 {
		t.Errorf("mode 0: ReadROM(0x0000) = %#x, want 0", got)
	}
	if got := m.RAMBank(); got != 0 {
		t.Errorf("mode 0: RAMBank() = %d, want 0", got)
	}

	// Mode 1: secondary register also applies to 0000-3FFF and ram.
	m.WriteROM(0x6000, 0x01)
	if got := m.ReadROM(0x0000); got != 0x20 {
		t.Errorf("mode 1: ReadROM(0x0000) = %#x, want 0x20", got)
	}
	if got := m.RAMBank(); got != 1 {
		t.Errorf("mode 1: RAMBank() = %d, want 1", got)
	}
}

func TestMBC1RAM(t *testing.T) {
	m := mustLoad(t, newCart(0x03, 1, 3))

	m.WriteRAM(0xA000, 0x42)
	if got := m.ReadRAM(0xA000, false); got != 0xFF {
		t.Errorf("disabled RAM read = %02x, want ff", got)
	}
	if m.Dirty() {
		t.Errorf("write to disabled RAM marked it dirty")
	}

	m.WriteROM(0x0000, 0x0A)
	if !m.RAMEnabled() {
		t.Fatalf("RAM should be enabled")
	}
	m.WriteRAM(0xA000, 0x42)
	if got := m.ReadRAM(0xA000, false); got != 0x42 {
		t.Errorf("ReadRAM(0xA000) = %02x, want 42", got)
	}
	if !m.Dirty() {
		t.Errorf("write to battery RAM should mark it dirty")
	}

	// Other ram bank (mode 1).
	m.WriteROM(0x6000, 0x01)
	m.WriteROM(0x4000, 0x02)
	if got := m.ReadRAM(0xA000, false); got != 0x00 {
		t.Errorf("bank 2 ReadRAM(0xA000) = %02x, want 00", got)
	}
	m.WriteRAM(0xA000, 0x99)
	if got := m.RAM()[2*ramBankSize]; got != 0x99 {
		t.Errorf("RAM()[0x4000] = %02x, want 99", got)
	}

	m.WriteROM(0x0000, 0x00)
	if got := m.ReadRAM(0xA000, false); got != 0xFF {
		t.Errorf("disabled RAM read = %02x, want ff", got)
	}
}

func TestMBC2(t *testing.T) {
	m := mustLoad(t, newCart(0x06, 2, 0))

	// Address bit 8 set: rom bank.
	m.WriteROM(0x2100, 0x00)
	if got := m.ROMBank(); got != 1 {
		t.Errorf("ROMBank() = %d, want 1", got)
	}
	m.WriteROM(0x2100, 0x0F)
	if got := m.ROMBank(); got != 7 {
		t.Errorf("ROMBank() = %d, want 7", got)
	}

	// Address bit 8 clear: ram enable.
	m.WriteROM(0x0000, 0x0A)
	m.WriteRAM(0xA000, 0xAB)
	if got := m.ReadRAM(0xA000, false); got != 0xFB {
		t.Errorf("ReadRAM(0xA000) = %02x, want fb", got)
	}
	// 512 bytes mirrored.
	if got := m.ReadRAM(0xA200, false); got != 0xFB {
		t.Errorf("ReadRAM(0xA200) = %02x, want fb", got)
	}
	if !m.HasBattery() {
		t.Errorf("HasBattery() = false")
	}
}

func TestMBC5(t *testing.T) {
	// 8MB rom, 512 banks.
	m := mustLoad(t, newCart(0x1B, 8, 4))

	m.WriteROM(0x2000, 0x00)
	if got := m.ROMBank(); got != 0 {
		t.Errorf("ROMBank() = %d, want 0", got)
	}
	m.WriteROM(0x2000, 0x34)
	m.WriteROM(0x3000, 0x01)
	if got := m.ROMBank(); got != 0x134 {
		t.Errorf("ROMBank() = %#x, want 0x134", got)
	}
	if lo, hi := m.ReadROM(0x4000), m.ReadROM(0x4001); lo != 0x34 || hi != 0x01 {
		t.Errorf("bank id = %02x%02x, want 0134", hi, lo)
	}

	m.WriteROM(0x4000, 0x0F)
	if got := m.RAMBank(); got != 15 {
		t.Errorf("RAMBank() = %d, want 15", got)
	}
}

func TestNoMBC(t *testing.T) {
	m := mustLoad(t, newCart(0x09, 0, 2))

	m.WriteROM(0x2000, 0x05)
	if got := m.ROMBank(); got != 1 {
		t.Errorf("ROMBank() = %d, want 1", got)
	}
	m.WriteRAM(0xA123, 0x77)
	if got := m.ReadRAM(0xA123, false); got != 0x77 {
		t.Errorf("ReadRAM() = %02x, want 77", got)
	}
}

func TestUnknownType(t *testing.T) {
	// MBC3 is not supported, rom writes must not switch banks.
	m := mustLoad(t, newCart(0x11, 2, 0))

	if got := m.Name(); got != NoMBC.Name {
		t.Errorf("Name() = %q, want %q", got, NoMBC.Name)
	}
	m.WriteROM(0x2000, 0x05)
	if got := m.ReadROM(0x4000); got != 1 {
		t.Errorf("ReadROM(0x4000) = %d, want 1", got)
	}
}

func TestStateAndReset(t *testing.T) {
	m := mustLoad(t, newCart(0x03, 3, 2))
	m.WriteROM(0x0000, 0x0A)
	m.WriteROM(0x2000, 0x05)
	m.WriteRAM(0xA010, 0x11)

	state := m.State()

	m2 := mustLoad(t, newCart(0x03, 3, 2))
	if err := m2.SetState(state); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(state, m2.State()); diff != "" {
		t.Errorf("state mismatch (-want +got):\n%s", diff)
	}
	if got := m2.ReadRAM(0xA010, false); got != 0x11 {
		t.Errorf("ReadRAM() = %02x, want 11", got)
	}

	m2.Reset()
	once := m2.State()
	m2.Reset()
	if diff := cmp.Diff(once, m2.State()); diff != "" {
		t.Errorf("reset twice differs from reset once (-once +twice):\n%s", diff)
	}
	if m2.ROMBank() != 1 || m2.RAMEnabled() {
		t.Errorf("after reset: bank=%d ramEnabled=%t", m2.ROMBank(), m2.RAMEnabled())
	}
}

func TestLoadRAM(t *testing.T) {
	m := mustLoad(t, newCart(0x03, 0, 2))

	if err := m.LoadRAM(make([]byte, 10)); err == nil {
		t.Errorf("LoadRAM with wrong size should fail")
	}

	data := make([]byte, 8<<10)
	data[5] = 0xCD
	if err := m.LoadRAM(data); err != nil {
		t.Fatal(err)
	}
	m.WriteROM(0x0000, 0x0A)
	if got := m.ReadRAM(0xA005, false); got != 0xCD {
		t.Errorf("ReadRAM() = %02x, want cd", got)
	}
}
