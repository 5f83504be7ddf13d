package emu

import (
	"testing"
	"time"

	"dotmatrix/cartridge"
	"dotmatrix/emu/log"
)

func init() {
	log.Disable()
}

func tcheck(tb testing.TB, err error) {
	tb.Helper()
	if err != nil {
		tb.Fatal(err)
	}
}

// buildCart returns a 32KB cartridge of the given type, with program located
// at the entry point.
func buildCart(tb testing.TB, title string, typ, ramCode uint8, program ...uint8) *cartridge.Cartridge {
	tb.Helper()

	rom := make([]byte, 32<<10)
	copy(rom[0x100:], program)
	copy(rom[0x134:], title)
	rom[0x147] = typ
	rom[0x149] = ramCode
	rom[0x14D] = cartridge.HeaderChecksum(rom)

	cart, err := cartridge.Decode(rom)
	tcheck(tb, err)
	return cart
}

// loop is a program that does nothing forever.
var loop = []uint8{
	0x18, 0xFE, // JR -2
}

func newTestGameBoy(tb testing.TB, cart *cartridge.Cartridge) *GameBoy {
	tb.Helper()

	gb := NewGameBoy(nil)
	tcheck(tb, gb.Load(cart, ModelFor(cart, "auto")))
	return gb
}

func (gb *GameBoy) runFrames(tb testing.TB, n int) {
	tb.Helper()
	for range n {
		tcheck(tb, gb.RunFrame())
	}
}

// waitFor polls cond until it's true, or fails the test after a while.
func waitFor(tb testing.TB, what string, cond func() bool) {
	tb.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			tb.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
