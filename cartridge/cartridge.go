// Package cartridge decodes Game Boy cartridge images.
package cartridge

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"dotmatrix/emu/log"
)

type Cartridge struct {
	Header
	ROM []byte

	// Path is the file the cartridge has been loaded from, if any.
	Path string
}

// Open loads a cartridge from file.
func Open(path string) (*Cartridge, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cart := new(Cartridge)
	if _, err := cart.ReadFrom(f); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	cart.Path = path
	return cart, nil
}

// Decode decodes a cartridge from an in-memory image.
func Decode(buf []byte) (*Cartridge, error) {
	cart := new(Cartridge)
	if err := cart.decode(buf); err != nil {
		return nil, err
	}
	return cart, nil
}

// ReadFrom implements io.ReaderFrom.
func (cart *Cartridge) ReadFrom(r io.Reader) (int64, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	if err := cart.decode(buf); err != nil {
		return 0, err
	}
	return int64(len(buf)), nil
}

func (cart *Cartridge) decode(buf []byte) error {
	if err := cart.Header.decode(buf); err != nil {
		return fmt.Errorf("failed to decode header: %w", err)
	}
	if !cart.ChecksumOK {
		log.ModEmu.WarnZ("header checksum mismatch").
			String("title", cart.Title).
			Hex8("want", cart.Checksum).
			Hex8("got", HeaderChecksum(buf)).
			End()
	}

	// Pad truncated images to their declared size, and to a power of 2, so
	// that bank masking is always valid.
	size := cart.ROMSize()
	if len(buf) > size {
		log.ModEmu.WarnZ("rom image is larger than declared").
			Int("declared", size).
			Int("actual", len(buf)).
			End()
		buf = buf[:size]
	}
	cart.ROM = make([]byte, size)
	n := copy(cart.ROM, buf)
	for i := n; i < size; i++ {
		cart.ROM[i] = 0xFF
	}
	return nil
}

// SavePath returns the path of the battery save file, in dir, for this
// cartridge. If dir is empty, the save file is next to the rom.
func (cart *Cartridge) SavePath(dir string) string {
	base := filepath.Base(cart.Path)
	if cart.Path == "" {
		base = cart.Title
	}
	base = strings.TrimSuffix(base, filepath.Ext(base)) + ".sav"
	if dir == "" {
		dir = filepath.Dir(cart.Path)
	}
	return filepath.Join(dir, base)
}
