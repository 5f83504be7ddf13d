package emu

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"dotmatrix/cartridge"
	"dotmatrix/tests"
)

// blargg roms report their result on the serial port.
func runBlargg(t *testing.T, path string, maxFrames int) string {
	cart, err := cartridge.Open(path)
	tcheck(t, err)

	var out bytes.Buffer
	gb := NewGameBoy(nil)
	tcheck(t, gb.Load(cart, ModelFor(cart, "dmg")))
	gb.Serial.Output = &out

	for range maxFrames {
		tcheck(t, gb.RunFrame())
		if s := out.String(); strings.Contains(s, "Passed") || strings.Contains(s, "Failed") {
			break
		}
	}
	return out.String()
}

func TestCPUInstrs(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test roms in short mode")
	}

	dir := tests.CPUInstrsPath(t)
	for _, name := range tests.CPUInstrs {
		t.Run(strings.TrimSuffix(name, ".gb"), func(t *testing.T) {
			t.Parallel()

			out := runBlargg(t, filepath.Join(dir, name), 60*60)
			if !strings.Contains(out, "Passed") {
				t.Errorf("serial output:\n%s", out)
			}
		})
	}
}
