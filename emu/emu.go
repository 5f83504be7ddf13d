// Package emu assembles the hardware components into a complete machine and
// drives it in real time.
package emu

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"dotmatrix/cartridge"
	"dotmatrix/emu/log"
	"dotmatrix/hw"
	"dotmatrix/hw/apu"
)

// FrameRate is the refresh rate of the LCD, in Hz.
const FrameRate = float64(apu.ClockRate) / hw.DotsPerFrame // ~59.7275

const framePeriod = time.Second * hw.DotsPerFrame / apu.ClockRate

type EventKind uint8

const (
	EventInfo EventKind = iota
	EventWarn
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventWarn:
		return "warn"
	case EventError:
		return "error"
	}
	return "info"
}

// An Event is a message for the host, see Emulator.Events.
type Event struct {
	Kind EventKind
	Msg  string
	Err  error // non-nil for EventError
}

// Emulator drives a GameBoy in lock-step: at most one instruction and one dot
// per iteration, pacing at the LCD refresh rate. Run is meant to be called in
// its own goroutine. The other methods are safe for concurrent use.
type Emulator struct {
	GB *GameBoy

	cfg     Config
	palette *[4]color.RGBA
	input   hw.InputSource

	// Requests, set by the host and handled by the emulator loop.
	quit   atomic.Bool
	paused atomic.Bool
	step   atomic.Bool
	reset  atomic.Bool
	load   atomic.Pointer[cartridge.Cartridge]

	// Only accessed by the emulator loop.
	halted    bool // locked by a fatal error, until reset or load
	frameDots int
	frames    int64
	lastFrame time.Time
	fpsStart  time.Time
	fpsFrames int

	// Published by the emulator loop.
	mu     sync.Mutex
	frame  hw.Frame
	screen *image.RGBA
	events []Event
	status string
	err    error
}

// Launch creates the machine, loads cart and its battery save. It doesn't
// start the emulation loop, call Run for that.
func Launch(cart *cartridge.Cartridge, cfg Config) (*Emulator, error) {
	cfg.Check()

	var mixer *apu.Mixer
	if cfg.Audio.DisableAudio {
		log.ModEmu.WarnZ("Audio disabled").End()
	} else {
		mixer = apu.NewMixer(cfg.Audio.SampleRate, cfg.AudioSink)
		mixer.SetVolume(cfg.Audio.MasterVolume)
	}

	gb := NewGameBoy(mixer)
	if err := gb.Load(cart, ModelFor(cart, cfg.Emulation.Model)); err != nil {
		return nil, err
	}
	if cfg.TraceOut != nil {
		gb.CPU.SetTraceOutput(cfg.TraceOut)
	}
	gb.Serial.Output = cfg.SerialOut

	pal := palettes[cfg.Video.Palette]
	e := &Emulator{
		GB:      gb,
		cfg:     cfg,
		palette: &pal,
		input:   cfg.Input,
		screen:  newScreen(),
	}
	if err := gb.LoadSave(e.savePath()); err != nil {
		e.pushEvent(EventWarn, fmt.Sprintf("battery save not loaded: %v", err), nil)
	}
	e.setStatus()
	return e, nil
}

func (e *Emulator) savePath() string {
	return e.GB.Cart.SavePath(e.cfg.Emulation.SaveDir)
}

// Run is the emulator loop. It returns after Stop has been called, or after
// the configured number of frames, once the battery save has been flushed.
func (e *Emulator) Run() error {
	now := time.Now()
	e.lastFrame = now
	e.fpsStart = now

	for {
		// Requests are only handled between instructions.
		if e.GB.AtBoundary() {
			if e.quit.Load() {
				break
			}
			e.handleRequests()
			if e.halted || e.paused.Load() {
				if e.halted || !e.step.CompareAndSwap(true, false) {
					// Don't burn cpu while paused.
					time.Sleep(10 * time.Millisecond)
					continue
				}
				if e.stepInstruction() {
					break
				}
				continue
			}
		}

		if e.input != nil {
			e.GB.SetButtons(e.input.Buttons())
		}
		if e.tick() {
			break
		}
	}

	log.ModEmu.InfoZ("Emulation loop exited").End()
	return e.flushSave()
}

// tick runs one dot and handles the frame boundary. It reports whether the
// frame limit has been reached.
func (e *Emulator) tick() bool {
	frames := e.GB.PPU.FrameCount()
	if err := e.GB.Tick(); err != nil {
		e.fatal(err)
		return false
	}
	e.frameDots++
	if e.GB.PPU.FrameCount() != frames || e.frameDots == hw.DotsPerFrame {
		return e.endFrame()
	}
	return false
}

// stepInstruction runs a single instruction while paused.
func (e *Emulator) stepInstruction() bool {
	for {
		if e.tick() {
			return true
		}
		if e.halted || e.GB.AtBoundary() {
			return false
		}
	}
}

// endFrame is called at each vblank, or every frame worth of dots when the
// LCD is off. It reports whether the frame limit has been reached.
func (e *Emulator) endFrame() bool {
	e.frameDots = 0
	e.frames++
	e.publish()
	if err := e.flushSave(); err != nil {
		e.pushEvent(EventWarn, fmt.Sprintf("battery save failed: %v", err), nil)
	}
	e.GB.APU.EndFrame()
	e.updateFPS()

	if e.cfg.MaxFrames > 0 && e.frames >= e.cfg.MaxFrames {
		return true
	}
	if !e.cfg.Emulation.Unthrottled {
		e.pace()
	}
	return false
}

// pace yields until a frame period has elapsed since the previous frame. Late
// frames are not caught up.
func (e *Emulator) pace() {
	for time.Since(e.lastFrame) < framePeriod {
		runtime.Gosched()
	}
	e.lastFrame = time.Now()
}

func (e *Emulator) updateFPS() {
	e.fpsFrames++
	if elapsed := time.Since(e.fpsStart); elapsed >= time.Second {
		fps := float64(e.fpsFrames) / elapsed.Seconds()
		e.fpsFrames = 0
		e.fpsStart = time.Now()

		e.mu.Lock()
		e.status = fmt.Sprintf("%s | %s | %.1f fps", e.GB.Cart.Title, e.GB.Model, fps)
		e.mu.Unlock()
	}
}

func (e *Emulator) setStatus() {
	e.mu.Lock()
	e.status = fmt.Sprintf("%s | %s", e.GB.Cart.Title, e.GB.Model)
	e.mu.Unlock()
}

// publish copies the front buffer, and the corresponding image, for the host.
func (e *Emulator) publish() {
	front := e.GB.PPU.Front()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.frame = *front
	if e.GB.Model == hw.SGB && e.cfg.Video.SGBColorize {
		copy(e.screen.Pix, e.GB.SGB.Colorize(front).Pix)
	} else {
		paint(e.screen, front, e.palette)
	}
}

func (e *Emulator) fatal(err error) {
	e.halted = true
	e.GB.APU.EndFrame()

	msg := err.Error()
	var uerr *hw.UnknownOpcodeError
	if errors.As(err, &uerr) {
		msg = fmt.Sprintf("CPU locked: opcode %02X at %04X", uerr.Opcode, uerr.PC)
	}
	log.ModEmu.ErrorZ("emulation halted").Error("err", err).End()

	e.mu.Lock()
	e.err = err
	e.events = append(e.events, Event{Kind: EventError, Msg: msg, Err: err})
	e.mu.Unlock()
}

func (e *Emulator) handleRequests() {
	if cart := e.load.Swap(nil); cart != nil {
		e.doLoad(cart)
		return
	}
	if e.reset.CompareAndSwap(true, false) {
		log.ModEmu.InfoZ("Performing reset").End()
		e.GB.Reset()
		e.clearError()
		e.pushEvent(EventInfo, "reset", nil)
	}
}

func (e *Emulator) doLoad(cart *cartridge.Cartridge) {
	// The previous cartridge keeps running if the new one can't be loaded.
	if err := e.flushSave(); err != nil {
		e.pushEvent(EventWarn, fmt.Sprintf("battery save failed: %v", err), nil)
	}
	if err := e.GB.Load(cart, ModelFor(cart, e.cfg.Emulation.Model)); err != nil {
		e.pushEvent(EventWarn, fmt.Sprintf("load failed: %v", err), nil)
		return
	}
	if err := e.GB.LoadSave(e.savePath()); err != nil {
		e.pushEvent(EventWarn, fmt.Sprintf("battery save not loaded: %v", err), nil)
	}
	e.clearError()
	e.frameDots = 0
	e.setStatus()
	e.pushEvent(EventInfo, "loaded "+cart.Title, nil)
}

func (e *Emulator) clearError() {
	e.halted = false
	e.mu.Lock()
	e.err = nil
	e.mu.Unlock()
}

func (e *Emulator) flushSave() error {
	return e.GB.FlushSave(e.savePath())
}

func (e *Emulator) pushEvent(kind EventKind, msg string, err error) {
	e.mu.Lock()
	e.events = append(e.events, Event{Kind: kind, Msg: msg, Err: err})
	e.mu.Unlock()
}

// Events drains the event queue.
func (e *Emulator) Events() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	evs := e.events
	e.events = nil
	return evs
}

// Status returns a short description of the emulator state.
func (e *Emulator) Status() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.paused.Load() {
		return e.status + " | paused"
	}
	return e.status
}

// Err returns the error that halted the emulation, if any. It's cleared on
// reset and load.
func (e *Emulator) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Frame returns a copy of the last complete frame.
func (e *Emulator) Frame() hw.Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frame
}

// Screen returns the last complete frame, as colors.
func (e *Emulator) Screen() *image.RGBA {
	img := newScreen()
	e.mu.Lock()
	copy(img.Pix, e.screen.Pix)
	e.mu.Unlock()
	return img
}

// SetPause, Step, Reset, Load and Stop allow to control the emulator loop in
// a concurrent-safe way.

func (e *Emulator) SetPause(pause bool) { e.paused.Store(pause) }

// Step runs a single instruction, while paused.
func (e *Emulator) Step() { e.step.Store(true) }

func (e *Emulator) Reset() { e.reset.Store(true) }

// Load replaces the cartridge. Failures are reported as events.
func (e *Emulator) Load(cart *cartridge.Cartridge) { e.load.Store(cart) }

func (e *Emulator) Stop() { e.quit.Store(true) }
