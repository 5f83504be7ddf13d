package emu

import (
	"errors"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/google/go-cmp/cmp"

	"dotmatrix/cartridge"
	"dotmatrix/hw"
)

func testConfig(t *testing.T) Config {
	cfg := DefaultConfig()
	cfg.Audio.DisableAudio = true
	cfg.Emulation.Unthrottled = true
	cfg.Emulation.SaveDir = t.TempDir()
	return cfg
}

func launch(t *testing.T, cart *cartridge.Cartridge, cfg Config) (*Emulator, chan error) {
	t.Helper()

	e, err := Launch(cart, cfg)
	tcheck(t, err)

	done := make(chan error, 1)
	go func() { done <- e.Run() }()
	return e, done
}

func wait(t *testing.T, done chan error) {
	t.Helper()

	select {
	case err := <-done:
		tcheck(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("emulator loop didn't exit")
	}
}

func TestMaxFrames(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxFrames = 5
	e, done := launch(t, buildCart(t, "FRAMES", 0x00, 0, loop...), cfg)
	wait(t, done)

	if e.frames != 5 {
		t.Errorf("ran %d frames, want 5", e.frames)
	}
	if got := e.GB.PPU.FrameCount(); got != 5 {
		t.Errorf("ppu frame count = %d, want 5", got)
	}
	if !strings.HasPrefix(e.Status(), "FRAMES | dmg") {
		t.Errorf("Status() = %q", e.Status())
	}
}

func TestPublishFrame(t *testing.T) {
	// Display a screen filled with tile 0, whose pixels all have color 3.
	program := []uint8{
		0x21, 0x00, 0x80, // LD HL,8000
		0x3E, 0xFF, // LD A,FF
		0x06, 0x10, // LD B,10
		0x22,       // LD (HL+),A   <- loop
		0x05,       // DEC B
		0x20, 0xFC, // JR NZ,loop
		0x18, 0xFE, // JR -2
	}
	cfg := testConfig(t)
	cfg.MaxFrames = 3
	e, done := launch(t, buildCart(t, "SCREEN", 0x00, 0, program...), cfg)
	wait(t, done)

	frame := e.Frame()
	for i, shade := range frame {
		if shade != 3 {
			t.Fatalf("pixel %d has shade %d, want 3", i, shade)
		}
	}

	img := e.Screen()
	black := color.RGBA{0, 0, 0, 0xFF}
	if got := img.RGBAAt(10, 20); got != black {
		t.Errorf("screen pixel = %v, want %v", got, black)
	}
	if b := img.Bounds(); b.Dx() != hw.ScreenWidth || b.Dy() != hw.ScreenHeight {
		t.Errorf("screen bounds = %v", b)
	}
}

func TestUnknownOpcodeHalts(t *testing.T) {
	e, done := launch(t, buildCart(t, "LOCKED", 0x00, 0, 0x00, 0xD3), testConfig(t))

	waitFor(t, "emulator error", func() bool { return e.Err() != nil })

	var uerr *hw.UnknownOpcodeError
	if !errors.As(e.Err(), &uerr) {
		t.Fatalf("Err() = %v, want an UnknownOpcodeError", e.Err())
	}
	if uerr.PC != 0x0101 || uerr.Opcode != 0xD3 {
		t.Errorf("error pc=%04X opcode=%02X, want 0101 D3", uerr.PC, uerr.Opcode)
	}

	evs := e.Events()
	i := len(evs) - 1
	if i < 0 || evs[i].Kind != EventError || !strings.Contains(evs[i].Msg, "D3 at 0101") {
		t.Errorf("events = %+v, want a locked CPU error", evs)
	}

	// Reset unlocks the emulator, until it reaches the opcode again.
	e.Reset()
	waitFor(t, "reset", func() bool {
		for _, ev := range e.Events() {
			if ev.Kind == EventInfo && ev.Msg == "reset" {
				return true
			}
		}
		return false
	})

	e.Stop()
	wait(t, done)
}

func TestLoadRequest(t *testing.T) {
	e, done := launch(t, buildCart(t, "FIRST", 0x00, 0, loop...), testConfig(t))

	e.Load(&cartridge.Cartridge{ROM: make([]byte, 1000)})
	var evs []Event
	waitFor(t, "load failure", func() bool {
		evs = append(evs, e.Events()...)
		return len(evs) > 0
	})
	if evs[0].Kind != EventWarn || !strings.HasPrefix(evs[0].Msg, "load failed") {
		t.Errorf("event = %+v, want a load failure", evs[0])
	}

	e.Load(buildCart(t, "SECOND", 0x00, 0, loop...))
	evs = nil
	waitFor(t, "load", func() bool {
		evs = append(evs, e.Events()...)
		return len(evs) > 0
	})
	if want := (Event{Kind: EventInfo, Msg: "loaded SECOND"}); evs[0] != want {
		t.Errorf("event = %+v, want %+v", evs[0], want)
	}

	e.Stop()
	wait(t, done)
	if e.GB.Cart.Title != "SECOND" {
		t.Errorf("cartridge = %q, want SECOND", e.GB.Cart.Title)
	}
}

func TestPauseAndStep(t *testing.T) {
	e, err := Launch(buildCart(t, "PAUSE", 0x00, 0, loop...), testConfig(t))
	tcheck(t, err)

	e.SetPause(true)
	if !strings.HasSuffix(e.Status(), "paused") {
		t.Errorf("Status() = %q, want paused", e.Status())
	}

	done := make(chan error, 1)
	go func() { done <- e.Run() }()

	e.Step()
	waitFor(t, "step", func() bool { return !e.step.Load() })
	e.Stop()
	wait(t, done)

	// A single JR has been executed.
	if e.GB.CPU.Cycles != 3 {
		t.Errorf("ran %d cycles while paused, want 3", e.GB.CPU.Cycles)
	}
}

func TestStepAcrossVBlank(t *testing.T) {
	e, err := Launch(buildCart(t, "STEP", 0x00, 0, loop...), testConfig(t))
	tcheck(t, err)

	// Stop on the last instruction boundary before vblank. JR takes 12 dots.
	vblank := hw.ScreenHeight * hw.DotsPerLine
	for {
		tcheck(t, e.GB.Tick())
		dot := e.GB.PPU.Dot()
		if e.GB.AtBoundary() && dot >= vblank-12 && dot < vblank {
			break
		}
	}
	e.SetPause(true)

	done := make(chan error, 1)
	go func() { done <- e.Run() }()

	e.Step()
	waitFor(t, "step", func() bool { return !e.step.Load() })
	e.Stop()
	wait(t, done)

	if got := e.GB.PPU.FrameCount(); got != 1 {
		t.Fatalf("ppu frame count = %d, want 1", got)
	}
	if e.frames != 1 {
		t.Errorf("emulator ended %d frames, want 1", e.frames)
	}
	if e.frameDots >= 12 {
		t.Errorf("frame dots = %d, want the few dots run after vblank", e.frameDots)
	}
}

func TestFramePeriod(t *testing.T) {
	if framePeriod < 16742*time.Microsecond || framePeriod > 16743*time.Microsecond {
		t.Errorf("frame period = %v, want ~16.742ms", framePeriod)
	}
	if math.Abs(FrameRate-59.7275) > 1e-3 {
		t.Errorf("frame rate = %f, want ~59.7275", FrameRate)
	}
}

func TestShutdownFlushesSave(t *testing.T) {
	cfg := testConfig(t)
	cart := buildCart(t, "FLUSH", 0x03, 2, ramProgram...)
	cart.Path = "/roms/flush.gb"

	e, err := Launch(cart, cfg)
	tcheck(t, err)

	// Run less than a frame, the ram is only flushed on exit.
	for range 1000 {
		tcheck(t, e.GB.Tick())
	}
	e.Stop()
	tcheck(t, e.Run())

	buf, err := os.ReadFile(filepath.Join(cfg.Emulation.SaveDir, "flush.sav"))
	tcheck(t, err)
	if buf[0] != 0x42 {
		t.Errorf("save[0] = %02X, want 42", buf[0])
	}
}

func TestConfigCheck(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Audio.SampleRate = 1 << 20
	cfg.Audio.MasterVolume = 3
	cfg.Video.Palette = "purple"
	cfg.Emulation.Model = "cgb"
	cfg.Check()

	want := DefaultConfig()
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config after Check (-want +got):\n%s", diff)
	}
}

func TestWriteConfig(t *testing.T) {
	var sb strings.Builder
	tcheck(t, WriteConfig(&sb, DefaultConfig()))

	for _, s := range []string{"[audio]", "[video]", "[emulation]", `palette = "gray"`, "sample_rate = 48000"} {
		if !strings.Contains(sb.String(), s) {
			t.Errorf("encoded config misses %q:\n%s", s, sb.String())
		}
	}
}

func TestWavSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	tcheck(t, err)

	sink := NewWavSink(f, 32000)
	samples := []int16{0, 0, 1000, -1000, 32767, -32768}
	sink.WriteSamples(samples)
	sink.WriteSamples(samples[:2])
	tcheck(t, sink.Close())
	tcheck(t, f.Close())

	f, err = os.Open(path)
	tcheck(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatal("invalid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	tcheck(t, err)

	if dec.NumChans != 2 || dec.SampleRate != 32000 || dec.BitDepth != 16 {
		t.Errorf("wav format: %d channels, %dHz, %d bits", dec.NumChans, dec.SampleRate, dec.BitDepth)
	}
	want := []int{0, 0, 1000, -1000, 32767, -32768, 0, 0}
	if diff := cmp.Diff(want, buf.Data); diff != "" {
		t.Errorf("samples (-want +got):\n%s", diff)
	}
}

func TestPaint(t *testing.T) {
	var frame hw.Frame
	for i := range frame {
		frame[i] = uint8(i % 4)
	}
	pal := palettes["green"]
	img := newScreen()
	paint(img, &frame, &pal)

	for x := range 4 {
		if got := img.RGBAAt(x, 0); got != pal[x] {
			t.Errorf("pixel %d = %v, want %v", x, got, pal[x])
		}
	}
}

func TestSaveAsPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shot.png")
	tcheck(t, SaveAsPNG(newScreen(), path))

	buf, err := os.ReadFile(path)
	tcheck(t, err)
	if !strings.HasPrefix(string(buf), "\x89PNG") {
		t.Errorf("not a png file")
	}
}
