package emu

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"dotmatrix/cartridge"
	"dotmatrix/hw"
	"dotmatrix/hw/snapshot"
)

func TestModelFor(t *testing.T) {
	dmgCart := &cartridge.Cartridge{}
	sgbCart := &cartridge.Cartridge{Header: cartridge.Header{SGBFlag: 0x03}}

	tests := []struct {
		cart *cartridge.Cartridge
		name string
		want hw.Model
	}{
		{dmgCart, "auto", hw.DMG},
		{sgbCart, "auto", hw.SGB},
		{sgbCart, "dmg", hw.DMG},
		{dmgCart, "sgb", hw.SGB},
	}
	for _, tt := range tests {
		if got := ModelFor(tt.cart, tt.name); got != tt.want {
			t.Errorf("ModelFor(sgb=%t, %q) = %s, want %s", tt.cart.SupportsSGB(), tt.name, got, tt.want)
		}
	}
}

func TestLoadSelectsListener(t *testing.T) {
	gb := newTestGameBoy(t, buildCart(t, "DMG", 0x00, 0, loop...))
	if gb.Joypad.Listener != nil {
		t.Errorf("joypad listener is set in dmg mode")
	}

	tcheck(t, gb.Load(buildCart(t, "SGB", 0x00, 0, loop...), hw.SGB))
	if gb.Joypad.Listener == nil {
		t.Errorf("joypad listener is not set in sgb mode")
	}
	if gb.CPU.F != 0x00 || gb.CPU.C != 0x14 {
		t.Errorf("sgb registers not set after load: F=%02X C=%02X", gb.CPU.F, gb.CPU.C)
	}
}

func TestLoadFailureKeepsState(t *testing.T) {
	cart := buildCart(t, "GOOD", 0x00, 0, loop...)
	gb := newTestGameBoy(t, cart)
	gb.runFrames(t, 2)
	before, err := gb.State()
	tcheck(t, err)

	bad := &cartridge.Cartridge{ROM: make([]byte, 1000)}
	if err := gb.Load(bad, hw.DMG); err == nil {
		t.Fatal("loading a truncated rom should fail")
	}

	after, err := gb.State()
	tcheck(t, err)
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("state changed after failed load (-before +after):\n%s", diff)
	}
	if gb.Cart != cart {
		t.Errorf("cartridge has been replaced")
	}
}

func TestResetIdempotent(t *testing.T) {
	// Fill some wram and the screen before resetting.
	program := []uint8{
		0x21, 0x00, 0xC0, // LD HL,C000
		0x3E, 0x5A, // LD A,5A
		0x22,       // LD (HL+),A
		0x18, 0xFD, // JR -3
	}
	for _, model := range []hw.Model{hw.DMG, hw.SGB} {
		t.Run(model.String(), func(t *testing.T) {
			cart := buildCart(t, "RESET", 0x00, 0, program...)
			gb := NewGameBoy(nil)
			tcheck(t, gb.Load(cart, model))
			gb.runFrames(t, 3)

			gb.Reset()
			once, err := gb.State()
			tcheck(t, err)

			gb.Reset()
			twice, err := gb.State()
			tcheck(t, err)

			if diff := cmp.Diff(once, twice); diff != "" {
				t.Errorf("reset is not idempotent (-once +twice):\n%s", diff)
			}
			if once.CPU.PC != 0x0100 || once.WRAM[0] != 0 {
				t.Errorf("after reset: PC=%04X wram[0]=%02X", once.CPU.PC, once.WRAM[0])
			}
		})
	}
}

func TestRunFrame(t *testing.T) {
	gb := newTestGameBoy(t, buildCart(t, "FRAME", 0x00, 0, loop...))

	for i := range 3 {
		start := gb.PPU.FrameCount()
		gb.IRQ.IF.Value = 0
		tcheck(t, gb.RunFrame())

		if got := gb.PPU.FrameCount(); got != start+1 {
			t.Fatalf("frame %d: frame count = %d, want %d", i, got, start+1)
		}
		if !gb.IRQ.IF.GetBit(uint(hw.IntVBlank)) {
			t.Errorf("frame %d: vblank interrupt not requested", i)
		}
		if !gb.AtBoundary() {
			t.Errorf("frame %d: instruction still in progress", i)
		}
	}
}

func TestRunFrameLCDOff(t *testing.T) {
	program := []uint8{
		0xAF,       // XOR A
		0xE0, 0x40, // LDH (40),A
		0x18, 0xFE, // JR -2
	}
	gb := newTestGameBoy(t, buildCart(t, "LCDOFF", 0x00, 0, program...))
	gb.runFrames(t, 2)

	cycles := gb.CPU.Cycles
	tcheck(t, gb.RunFrame())
	dots := (gb.CPU.Cycles - cycles) * 4
	if dots < hw.DotsPerFrame || dots > hw.DotsPerFrame+12 {
		t.Errorf("frame with lcd off lasted %d dots, want ~%d", dots, hw.DotsPerFrame)
	}
}

func TestEchoRoundTrip(t *testing.T) {
	gb := newTestGameBoy(t, buildCart(t, "ECHO", 0x00, 0, loop...))

	for _, addr := range []uint16{0xC000, 0xC123, 0xCFFF, 0xD000, 0xDDFF} {
		gb.Bus.Write8(addr, 0xA5)
		if got := gb.Bus.Read8(addr + 0x2000); got != 0xA5 {
			t.Errorf("read(%04X) = %02X after write(%04X)", addr+0x2000, got, addr)
		}
		gb.Bus.Write8(addr+0x2000, 0x3C)
		if got := gb.Bus.Read8(addr); got != 0x3C {
			t.Errorf("read(%04X) = %02X after write(%04X)", addr, got, addr+0x2000)
		}
	}
}

// ramProgram enables external ram and writes 0x42 at A000.
var ramProgram = []uint8{
	0x3E, 0x0A, // LD A,0A
	0xEA, 0x00, 0x00, // LD (0000),A
	0x3E, 0x42, // LD A,42
	0xEA, 0x00, 0xA0, // LD (A000),A
	0x18, 0xFE, // JR -2
}

func TestBatterySave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game.sav")

	cart := buildCart(t, "BATTERY", 0x03, 2, ramProgram...)
	gb := newTestGameBoy(t, cart)
	gb.runFrames(t, 1)
	tcheck(t, gb.FlushSave(path))

	buf, err := os.ReadFile(path)
	tcheck(t, err)
	if len(buf) != 8<<10 {
		t.Fatalf("save file is %d bytes, want %d", len(buf), 8<<10)
	}
	if buf[0] != 0x42 {
		t.Errorf("save[0] = %02X, want 42", buf[0])
	}

	// Nothing written since the last flush.
	tcheck(t, os.Remove(path))
	gb.runFrames(t, 1)
	tcheck(t, gb.FlushSave(path))
	if _, err := os.Stat(path); err == nil {
		t.Errorf("save file rewritten without ram modification")
	}

	// Restore into a fresh machine.
	buf[1] = 0x99
	tcheck(t, os.WriteFile(path, buf, 0644))
	gb2 := newTestGameBoy(t, buildCart(t, "BATTERY", 0x03, 2, loop...))
	tcheck(t, gb2.LoadSave(path))
	if got := gb2.mapper.RAM()[:2]; !bytes.Equal(got, []byte{0x42, 0x99}) {
		t.Errorf("restored ram = % X, want 42 99", got)
	}
}

func TestBatterySaveMissingFile(t *testing.T) {
	gb := newTestGameBoy(t, buildCart(t, "BATTERY", 0x03, 2, loop...))
	tcheck(t, gb.LoadSave(filepath.Join(t.TempDir(), "none.sav")))
}

func TestNoBatteryNoSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game.sav")

	// MBC1+RAM, without battery.
	gb := newTestGameBoy(t, buildCart(t, "NOBATT", 0x02, 2, ramProgram...))
	gb.runFrames(t, 1)
	tcheck(t, gb.FlushSave(path))
	if _, err := os.Stat(path); err == nil {
		t.Errorf("save file written for a cartridge without battery")
	}
}

func TestSaveStateDeterminism(t *testing.T) {
	// Increment a counter in wram, with the timer running.
	program := []uint8{
		0x3E, 0x05, // LD A,05
		0xE0, 0x07, // LDH (07),A
		0x21, 0x00, 0xC0, // LD HL,C000
		0x34,       // INC (HL)
		0x18, 0xFD, // JR -3
	}
	for _, model := range []hw.Model{hw.DMG, hw.SGB} {
		t.Run(model.String(), func(t *testing.T) {
			cart := buildCart(t, "STATE", 0x03, 2, program...)
			gb := NewGameBoy(nil)
			tcheck(t, gb.Load(cart, model))
			gb.runFrames(t, 3)

			saved, err := gb.SaveState()
			tcheck(t, err)

			gb.runFrames(t, 2)
			want, err := gb.State()
			tcheck(t, err)

			tcheck(t, gb.LoadState(saved))
			gb.runFrames(t, 2)
			got, err := gb.State()
			tcheck(t, err)

			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("execution after state load differs (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadStateErrors(t *testing.T) {
	gb := newTestGameBoy(t, buildCart(t, "FIRST", 0x00, 0, loop...))
	gb.runFrames(t, 1)
	saved, err := gb.SaveState()
	tcheck(t, err)

	corrupt := func(modify func(*snapshot.GameBoy)) []byte {
		s, err := gb.State()
		tcheck(t, err)
		modify(s)
		return snapshot.Marshal(s)
	}

	tests := []struct {
		name string
		cart *cartridge.Cartridge
		data []byte
	}{
		{"other-title", buildCart(t, "SECOND", 0x00, 0, loop...), saved},
		{"other-ram-size", buildCart(t, "FIRST", 0x02, 2, loop...), saved},
		{"garbage", buildCart(t, "FIRST", 0x00, 0, loop...), []byte("{not json")},
		{"apu-phase", buildCart(t, "FIRST", 0x00, 0, loop...), corrupt(func(s *snapshot.GameBoy) {
			s.APU.Channels[0].Phase = 99
			s.APU.Channels[0].Timer = 100
		})},
		{"apu-sequencer", buildCart(t, "FIRST", 0x00, 0, loop...), corrupt(func(s *snapshot.GameBoy) {
			s.APU.SeqDots = 1 << 20
		})},
		{"ppu-dot", buildCart(t, "FIRST", 0x00, 0, loop...), corrupt(func(s *snapshot.GameBoy) {
			s.PPU.Dot = hw.DotsPerFrame
		})},
		{"ppu-transfer-end", buildCart(t, "FIRST", 0x00, 0, loop...), corrupt(func(s *snapshot.GameBoy) {
			s.PPU.Mode3End = 0
		})},
		{"serial-bits", buildCart(t, "FIRST", 0x00, 0, loop...), corrupt(func(s *snapshot.GameBoy) {
			s.Serial.Bits = -1
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := newTestGameBoy(t, tt.cart)
			other.runFrames(t, 2)
			before, err := other.State()
			tcheck(t, err)

			if err := other.LoadState(tt.data); err == nil {
				t.Fatal("LoadState should fail")
			}

			after, err := other.State()
			tcheck(t, err)
			if diff := cmp.Diff(before, after); diff != "" {
				t.Errorf("state modified by failed load (-before +after):\n%s", diff)
			}
		})
	}
}

func TestStateRequiresCartridge(t *testing.T) {
	gb := NewGameBoy(nil)
	if _, err := gb.SaveState(); err == nil {
		t.Errorf("SaveState without cartridge should fail")
	}
}
