package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"dotmatrix/cartridge"
	"dotmatrix/emu"
)

func main() {
	cli := parseArgs(os.Args[1:])

	switch cli.mode {
	case romInfosMode:
		cart, err := cartridge.Open(cli.RomInfos.RomPath)
		checkf(err, "failed to open rom")
		cart.PrintInfos(os.Stdout)
	case versionMode:
		printVersion()
	case configMode:
		configMain(cli.Config)
	case runMode:
		cfg := emu.LoadConfigOrDefault()
		checkf(emuMain(cli.Run, cfg), "emulation failed")
	}
}

func printVersion() {
	version := "(devel)"
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" {
		version = bi.Main.Version
	}
	fmt.Println("dotmatrix", version)
}

func configMain(args Config) {
	cfg := emu.LoadConfigOrDefault()
	if args.Write {
		cfg = emu.DefaultConfig()
		checkf(emu.SaveConfig(cfg), "failed to write config")
		dir, _ := emu.ConfigDir()
		fmt.Println("default configuration written to", dir)
		return
	}
	checkf(emu.WriteConfig(os.Stdout, cfg), "failed to encode config")
}
