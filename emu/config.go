package emu

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"dotmatrix/emu/log"
	"dotmatrix/hw"
	"dotmatrix/hw/apu"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Audio     AudioConfig     `toml:"audio"`
	Video     VideoConfig     `toml:"video"`
	Emulation EmulationConfig `toml:"emulation"`

	// Host provided collaborators, all optional.
	Input     hw.InputSource `toml:"-"`
	AudioSink apu.AudioSink  `toml:"-"`
	TraceOut  io.Writer      `toml:"-"`
	SerialOut io.Writer      `toml:"-"`

	// MaxFrames stops the emulator after that many frames, if > 0.
	MaxFrames int64 `toml:"-"`
}

type AudioConfig struct {
	DisableAudio bool    `toml:"disable_audio"`
	SampleRate   int     `toml:"sample_rate"`
	MasterVolume float64 `toml:"master_volume"`
}

type VideoConfig struct {
	Palette     string `toml:"palette"`
	SGBColorize bool   `toml:"sgb_colorize"`
}

type EmulationConfig struct {
	Unthrottled bool   `toml:"unthrottled"`
	SaveDir     string `toml:"save_dir"` // empty: next to the rom
	Model       string `toml:"model"`    // auto, dmg or sgb
}

// Check replaces invalid values with their defaults.
func (cfg *Config) Check() {
	def := DefaultConfig()
	if cfg.Audio.SampleRate <= 0 || cfg.Audio.SampleRate > apu.MaxSampleRate {
		log.ModEmu.WarnZ("invalid sample rate, using default").
			Int("rate", cfg.Audio.SampleRate).
			End()
		cfg.Audio.SampleRate = def.Audio.SampleRate
	}
	cfg.Audio.MasterVolume = max(0, min(cfg.Audio.MasterVolume, 1))
	if _, ok := palettes[cfg.Video.Palette]; !ok {
		log.ModEmu.Warnf("Invalid palette name %q, fallback to %q", cfg.Video.Palette, def.Video.Palette)
		cfg.Video.Palette = def.Video.Palette
	}
	switch cfg.Emulation.Model {
	case "auto", "dmg", "sgb":
	default:
		log.ModEmu.Warnf("Invalid model %q, fallback to %q", cfg.Emulation.Model, def.Emulation.Model)
		cfg.Emulation.Model = def.Emulation.Model
	}
}

func DefaultConfig() Config {
	return Config{
		Audio: AudioConfig{
			SampleRate:   apu.DefaultSampleRate,
			MasterVolume: 1,
		},
		Video: VideoConfig{
			Palette:     "gray",
			SGBColorize: true,
		},
		Emulation: EmulationConfig{
			Model: "auto",
		},
	}
}

var ConfigDir = sync.OnceValues(func() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	dir = filepath.Join(dir, "dotmatrix")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
})

const cfgFilename = "config.toml"

// LoadConfigOrDefault loads the configuration from the dotmatrix config
// directory, or provides the default one.
func LoadConfigOrDefault() Config {
	cfg := DefaultConfig()
	dir, err := ConfigDir()
	if err != nil {
		log.ModEmu.WarnZ("no config directory").Error("err", err).End()
		return cfg
	}
	if _, err := toml.DecodeFile(filepath.Join(dir, cfgFilename), &cfg); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.ModEmu.WarnZ("failed to load config, using defaults").Error("err", err).End()
		}
		return DefaultConfig()
	}
	cfg.Check()
	return cfg
}

// SaveConfig into the dotmatrix config directory.
func SaveConfig(cfg Config) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	buf, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, cfgFilename), buf, 0644)
}

// WriteConfig encodes cfg in toml format.
func WriteConfig(w io.Writer, cfg Config) error {
	return toml.NewEncoder(w).Encode(cfg)
}
