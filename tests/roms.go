// Package tests provides the test ROMs used by the emulator tests. They are
// downloaded on first use.
package tests

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"golang.org/x/sync/errgroup"
)

const blarggURL = `https://raw.githubusercontent.com/retrio/gb-test-roms/master/cpu_instrs/individual/%s`

// CPUInstrs lists blargg's cpu_instrs individual test roms.
var CPUInstrs = []string{
	"01-special.gb",
	"02-interrupts.gb",
	"03-op sp,hl.gb",
	"04-op r,imm.gb",
	"05-op rp.gb",
	"06-ld r,r.gb",
	"07-jr,jp,call,ret,rst.gb",
	"08-misc instrs.gb",
	"09-op r,r.gb",
	"10-bit ops.gb",
	"11-op a,(hl).gb",
}

func download(url, dest string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %s", url, resp.Status)
	}

	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// download all cpu_instrs roms into dest dir.
func downloadCPUInstrs(tb testing.TB, dest string) {
	tempdir, err := os.MkdirTemp("", "cpu_instrs.*")
	if err != nil {
		tb.Fatal(err)
	}

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())

	for _, name := range CPUInstrs {
		url := fmt.Sprintf(blarggURL, url.PathEscape(name))
		g.Go(func() error {
			if err := download(url, filepath.Join(tempdir, name)); err != nil {
				return err
			}
			tb.Log("downloaded", url)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		os.RemoveAll(tempdir)
		tb.Fatalf("failed to download all files: %s", err)
	}

	if err := os.Rename(tempdir, dest); err != nil {
		tb.Fatal(err)
	}
}

var cpuInstrsOnce sync.Once

// CPUInstrsPath returns the directory containing the cpu_instrs roms,
// downloading them if needed.
func CPUInstrsPath(tb testing.TB) string {
	_, b, _, _ := runtime.Caller(0)
	dir := filepath.Join(filepath.Dir(b), "cpu_instrs")

	cpuInstrsOnce.Do(func() {
		if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
			tb.Log("cpu_instrs directory not found, downloading it...")
			downloadCPUInstrs(tb, dir)
			tb.Log("Test roms downloaded in", dir)
		}
	})
	return dir
}
