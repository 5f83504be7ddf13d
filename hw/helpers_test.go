package hw

import (
	"fmt"
	"testing"

	"dotmatrix/cartridge"
	"dotmatrix/hw/mappers"
)

/* general testing helpers */

func tcheck(tb testing.TB, err error) {
	if err == nil {
		return
	}

	tb.Helper()
	tb.Fatalf("fatal error:\n\n%s\n", err)
}

func tcheckf(tb testing.TB, err error, format string, args ...any) {
	if err == nil {
		return
	}

	tb.Helper()
	tb.Fatalf("fatal error:\n\n%s: %s\n", fmt.Sprintf(format, args...), err)
}

// testHW is a minimal machine, with the program located at the entry point
// (0x0100) of a 32KB rom-only cartridge.
type testHW struct {
	irq    *Interrupts
	bus    *Bus
	timer  *Timer
	serial *Serial
	joypad *Joypad
	ppu    *PPU
	cpu    *CPU
}

func newTestHW(tb testing.TB, program ...uint8) *testHW {
	tb.Helper()

	cart := &cartridge.Cartridge{ROM: make([]byte, 32<<10)}
	copy(cart.ROM[0x100:], program)
	mapper, err := mappers.Load(cart)
	tcheckf(tb, err, "loading mapper")

	hw := &testHW{irq: NewInterrupts()}
	hw.bus = NewBus()
	hw.timer = NewTimer(hw.irq)
	hw.serial = NewSerial(hw.irq)
	hw.joypad = NewJoypad(hw.irq)
	hw.ppu = NewPPU(hw.irq)
	hw.cpu = NewCPU(hw.bus, hw.irq, hw.timer)

	hw.bus.SetMapper(mapper)
	hw.bus.SetOAM(hw.ppu.OAM.Data)
	hw.bus.Map(hw.irq)
	hw.bus.Map(hw.timer)
	hw.bus.Map(hw.serial)
	hw.bus.Map(hw.joypad)
	hw.bus.Map(hw.ppu)

	hw.irq.Reset()
	hw.bus.Reset()
	hw.timer.Reset()
	hw.serial.Reset()
	hw.joypad.Reset()
	hw.ppu.Reset()
	hw.cpu.Reset(DMG)

	// Start from a known state.
	hw.irq.IF.Value = 0
	return hw
}

// step executes one instruction and ticks the timer, serial and ppu
// accordingly.
func (hw *testHW) step(tb testing.TB) int {
	tb.Helper()

	cycles, err := hw.cpu.Step()
	tcheck(tb, err)
	hw.tick(cycles * 4)
	return cycles
}

func (hw *testHW) tick(dots int) {
	for range dots {
		hw.timer.Tick()
		hw.serial.Tick()
		hw.ppu.Tick()
	}
}

// run executes n instructions.
func (hw *testHW) run(tb testing.TB, n int) {
	tb.Helper()

	for range n {
		hw.step(tb)
	}
}
