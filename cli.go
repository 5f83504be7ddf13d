package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"dotmatrix/emu/log"
)

type mode byte

const (
	runMode      mode = iota // Run a ROM
	romInfosMode             // Show ROM infos
	versionMode              // Show dotmatrix version
	configMode               // Show or write the configuration
)

type (
	CLI struct {
		Run      Run      `cmd:"" help:"Run ROM in emulator."`
		RomInfos RomInfos `cmd:"" help:"Show ROM infos." name:"rom-infos"`
		Version  Version  `cmd:"" help:"Show dotmatrix version."`
		Config   Config   `cmd:"" help:"Show the current configuration."`

		Log logModMask `help:"${log_help}" placeholder:"mod0,mod1,..."`

		mode mode
	}

	Run struct {
		RomPath string `arg:"" name:"/path/to/rom" help:"ROM file to run." required:"true" type:"existingfile"`

		Frames      int64    `name:"frames" help:"Stop after that many frames (0: run until interrupted)." default:"0"`
		Unthrottled bool     `name:"unthrottled" help:"Run as fast as possible."`
		Model       string   `name:"model" help:"Console model (auto, dmg or sgb). Overrides the configuration."`
		CPUProfile  string   `name:"cpuprofile" help:"${cpuprofile_help}" type:"path"`
		Trace       *outfile `name:"trace" help:"Write CPU trace log." placeholder:"FILE|stdout|stderr"`
		Serial      *outfile `name:"serial" help:"Write bytes sent on the serial port." placeholder:"FILE|stdout|stderr"`
		Wav         string   `name:"wav" help:"Record audio to a WAV file." type:"path"`
		Screenshot  string   `name:"screenshot" help:"Save the last frame as PNG on exit." type:"path"`
		SaveState   string   `name:"save-state" help:"Save the machine state on exit." type:"path"`
		LoadState   string   `name:"load-state" help:"Restore a machine state before running." type:"existingfile"`
	}

	RomInfos struct {
		RomPath string `arg:"" name:"/path/to/rom" type:"existingfile"`
	}

	Version struct{}

	Config struct {
		Write bool `name:"write" help:"Write the default configuration to the config directory."`
	}
)

var vars = kong.Vars{
	"cpuprofile_help": "Write CPU profile to file.",
	"log_help":        "Enable logging for specified modules.",
}

func parseArgs(args []string) CLI {
	var cfg CLI
	parser, err := kong.New(&cfg,
		kong.Name("dotmatrix"),
		kong.Description("Game Boy emulator."),
		kong.UsageOnError(),
		kong.Help(printHelp),
		vars)
	if err != nil {
		panic(err)
	}

	ctx, err := parser.Parse(args)
	checkf(err, "failed to parse command line")
	checkf(ctx.Error, "failed to parse command line")

	switch ctx.Command() {
	case "rom-infos </path/to/rom>":
		cfg.mode = romInfosMode
	case "version":
		cfg.mode = versionMode
	case "config":
		cfg.mode = configMode
	default:
		cfg.mode = runMode
	}
	return cfg
}

func printHelp(options kong.HelpOptions, ctx *kong.Context) error {
	if err := kong.DefaultHelpPrinter(options, ctx); err != nil {
		return err
	}
	if !strings.HasPrefix(ctx.Command(), "run") {
		return nil
	}

	w := ctx.Stdout
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Log modules (--log):")
	fmt.Fprintf(w, "  %s\n", strings.Join(log.ModuleNames(), ", "))
	fmt.Fprintln(w, "  'all' enables every module, 'no' silences all logs.")
	return nil
}

// logModMask is the --log flag, a comma-separated list of module names.
type logModMask log.ModuleMask

// Decode implements kong.MapperValue.
func (logModMask) Decode(ctx *kong.DecodeContext) error {
	var list string
	if err := ctx.Scan.PopValueInto("log", &list); err != nil {
		return err
	}
	names := strings.Split(list, ",")

	var mask log.ModuleMask
	for _, name := range names {
		switch name {
		case "no":
			if len(names) > 1 {
				return fmt.Errorf("'no' can't be combined with other log modules")
			}
			log.Disable()
			return nil
		case "all":
			mask = log.ModuleMaskAll
		default:
			mod, ok := log.ModuleByName(name)
			if !ok {
				return fmt.Errorf("unknown log module %q", name)
			}
			mask |= mod.Mask()
		}
	}
	log.EnableDebugModules(mask)
	return nil
}

// outfile is an output flag: a file path, or one of stdout and stderr.
type outfile struct {
	io.WriteCloser
	name string
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// Decode implements kong.MapperValue.
func (f *outfile) Decode(ctx *kong.DecodeContext) error {
	if err := ctx.Scan.PopValueInto("file", &f.name); err != nil {
		return err
	}

	switch f.name {
	case "stdout", "-":
		f.WriteCloser = nopCloser{os.Stdout}
	case "stderr":
		f.WriteCloser = nopCloser{os.Stderr}
	default:
		fd, err := os.Create(f.name)
		if err != nil {
			return fmt.Errorf("--%s: %w", ctx.Value.Name, err)
		}
		f.WriteCloser = fd
	}
	return nil
}

func (f *outfile) String() string { return f.name }

func checkf(err error, format string, args ...any) {
	if err != nil {
		fatalf("%s: %s", fmt.Sprintf(format, args...), err)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "dotmatrix: %s\n", fmt.Sprintf(format, args...))
	os.Exit(1)
}
