package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"time"

	"golang.org/x/sync/errgroup"

	"dotmatrix/cartridge"
	"dotmatrix/emu"
	"dotmatrix/emu/log"
)

// emuMain runs the emulator with the given rom, until interrupted or until
// the requested number of frames has been emulated.
func emuMain(args Run, cfg emu.Config) error {
	cart, err := cartridge.Open(args.RomPath)
	if err != nil {
		return fmt.Errorf("error reading ROM: %w", err)
	}

	if args.Trace != nil {
		defer args.Trace.Close()
		cfg.TraceOut = args.Trace
	}
	if args.Serial != nil {
		defer args.Serial.Close()
		cfg.SerialOut = args.Serial
	}
	if args.Model != "" {
		cfg.Emulation.Model = args.Model
	}
	cfg.Emulation.Unthrottled = cfg.Emulation.Unthrottled || args.Unthrottled
	cfg.MaxFrames = args.Frames

	if args.Wav != "" {
		f, err := os.Create(args.Wav)
		if err != nil {
			return err
		}
		defer f.Close()

		cfg.Check()
		wav := emu.NewWavSink(f, cfg.Audio.SampleRate)
		defer func() {
			if err := wav.Close(); err != nil {
				log.ModEmu.WarnZ("failed to finalize wav file").Error("err", err).End()
			}
		}()
		cfg.AudioSink = wav
	}

	emulator, err := emu.Launch(cart, cfg)
	if err != nil {
		return fmt.Errorf("failed to start emulator: %w", err)
	}

	if args.LoadState != "" {
		buf, err := os.ReadFile(args.LoadState)
		if err != nil {
			return err
		}
		if err := emulator.GB.LoadState(buf); err != nil {
			return fmt.Errorf("failed to load state: %w", err)
		}
	}

	if args.CPUProfile != "" {
		f, err := os.Create(args.CPUProfile)
		checkf(err, "failed to create cpu profile file")
		checkf(pprof.StartCPUProfile(f), "failed to start cpu profile")
		defer func() {
			pprof.StopCPUProfile()
			f.Close()
			fmt.Println("CPU profile written to", args.CPUProfile)
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	done := make(chan struct{})
	var g errgroup.Group
	g.Go(func() error {
		defer close(done)
		return emulator.Run()
	})
	g.Go(func() error {
		return watch(ctx, emulator, done)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if args.Screenshot != "" {
		if err := emu.SaveAsPNG(emulator.Screen(), args.Screenshot); err != nil {
			return fmt.Errorf("failed to save screenshot: %w", err)
		}
	}
	if args.SaveState != "" {
		buf, err := emulator.GB.SaveState()
		if err != nil {
			return fmt.Errorf("failed to save state: %w", err)
		}
		if err := os.WriteFile(args.SaveState, buf, 0644); err != nil {
			return err
		}
	}
	return nil
}

// watch logs the emulator events and stops it when ctx is cancelled, or
// when the emulation halts.
func watch(ctx context.Context, emulator *emu.Emulator, done <-chan struct{}) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var haltErr error
	interrupted := ctx.Done()
	for {
		select {
		case <-done:
			logEvents(emulator)
			return haltErr
		case <-interrupted:
			interrupted = nil
			emulator.Stop()
		case <-ticker.C:
			logEvents(emulator)
			if err := emulator.Err(); err != nil && haltErr == nil {
				haltErr = err
				emulator.Stop()
			}
			log.ModEmu.DebugZ("status").String("status", emulator.Status()).End()
		}
	}
}

func logEvents(emulator *emu.Emulator) {
	for _, ev := range emulator.Events() {
		switch ev.Kind {
		case emu.EventError:
			log.ModEmu.ErrorZ(ev.Msg).End()
		case emu.EventWarn:
			log.ModEmu.WarnZ(ev.Msg).End()
		default:
			log.ModEmu.InfoZ(ev.Msg).End()
		}
	}
}
