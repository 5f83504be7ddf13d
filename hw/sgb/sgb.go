// Package sgb implements the Super Game Boy command protocol: packets sent
// bit by bit through the joypad register, carrying palettes, attribute maps
// and screen masks used to colorize the monochrome frame.
package sgb

import (
	"errors"
	"fmt"
	"image"

	"dotmatrix/emu/log"
	"dotmatrix/hw/snapshot"
)

const (
	packetSize = 16
	maxPackets = 7

	Cols = 20 // attribute grid, in 8x8 tiles
	Rows = 18
)

// VRAMReader gives access to video memory for PAL_TRN and ATTR_TRN.
type VRAMReader interface {
	Peek8(addr uint16) uint8
}

// MaskMode is the screen mask set by MASK_EN.
type MaskMode uint8

const (
	MaskNone   MaskMode = iota
	MaskFreeze          // keep the last displayed image
	MaskBlack
	MaskColor0 // fill with color 0
)

// SGB receives command packets and holds the colorization state.
type SGB struct {
	vram VRAMReader

	packets  [maxPackets][packetSize]uint8
	npackets int // declared by the first packet, 0 if unknown
	cur      int // current packet
	nbits    int // bits received in current packet
	rx       bool
	p1       uint8 // last written P14/P15 bits

	Palettes    [4][4]Color
	sysPalettes [512][4]Color
	attrFiles   [45][Rows][Cols]uint8
	Attrs       [Rows][Cols]uint8 // palette index per tile
	Mask        MaskMode

	players uint8 // 1, 2 or 4
	player  uint8

	img *image.RGBA
}

func New(vram VRAMReader) *SGB {
	s := &SGB{
		vram: vram,
		img:  image.NewRGBA(image.Rect(0, 0, Cols*8, Rows*8)),
	}
	s.Reset()
	return s
}

// Default palette, shared by the 4 palettes at reset.
var defaultPalette = [4]Color{
	RGB555(31, 29, 25),
	RGB555(27, 18, 9),
	RGB555(21, 5, 4),
	RGB555(6, 3, 10),
}

func (s *SGB) Reset() {
	s.clearTransfer()
	s.p1 = 0x30
	for i := range s.Palettes {
		s.Palettes[i] = defaultPalette
	}
	s.sysPalettes = [512][4]Color{}
	s.attrFiles = [45][Rows][Cols]uint8{}
	s.Attrs = [Rows][Cols]uint8{}
	s.Mask = MaskNone
	s.players = 1
	s.player = 0
	clear(s.img.Pix)
}

func (s *SGB) clearTransfer() {
	s.packets = [maxPackets][packetSize]uint8{}
	s.npackets = 0
	s.cur = 0
	s.nbits = 0
	s.rx = false
}

// WriteP1 receives each write to the joypad register. P14 and P15 (bits 4
// and 5) carry the packet bits:
//
//	P15 P14
//	 0   0   reset pulse, start of a packet
//	 0   1   bit 1
//	 1   0   bit 0
//	 1   1   idle, between bits
func (s *SGB) WriteP1(val uint8) {
	lines := val & 0x30
	prev := s.p1
	s.p1 = lines

	switch lines {
	case 0x00:
		s.rx = true
		s.nbits = 0
		s.packets[s.cur] = [packetSize]uint8{}
	case 0x10, 0x20:
		if prev != 0x30 {
			return
		}
		if s.rx {
			s.receiveBit(lines == 0x10)
		}
	case 0x30:
		// Rising edge of P15 outside of a transfer selects the next player.
		if !s.rx && prev&0x20 == 0 && s.players > 1 {
			s.player = (s.player + 1) % s.players
		}
	}
}

func (s *SGB) receiveBit(bit bool) {
	if bit {
		s.packets[s.cur][s.nbits/8] |= 1 << (s.nbits % 8)
	}
	s.nbits++
	if s.nbits < packetSize*8 {
		return
	}

	// Packet complete.
	s.rx = false
	if s.cur == 0 {
		s.npackets = int(s.packets[0][0] & 0x07)
		if s.npackets == 0 {
			log.ModSGB.DebugZ("packet with zero length").
				Hex8("cmd", s.packets[0][0]>>3).
				End()
			s.clearTransfer()
			return
		}
	}
	s.cur++
	if s.cur < s.npackets {
		return
	}

	data := make([]uint8, 0, s.npackets*packetSize)
	for i := range s.npackets {
		data = append(data, s.packets[i][:]...)
	}
	s.clearTransfer()
	s.dispatch(data)
}

// PlayerID returns the currently selected player, and whether multiplayer
// mode is on.
func (s *SGB) PlayerID() (uint8, bool) {
	return s.player, s.players > 1
}

func (s *SGB) State() snapshot.SGB {
	st := snapshot.SGB{
		AttrFiles: s.attrFiles,
		Attrs:     s.Attrs,
		Mask:      uint8(s.Mask),
		Players:   s.players,
		Player:    s.player,
	}
	for i, p := range s.Palettes {
		for j, c := range p {
			st.Palettes[i][j] = uint16(c)
		}
	}
	for i, p := range s.sysPalettes {
		for j, c := range p {
			st.SysPalettes[i][j] = uint16(c)
		}
	}
	return st
}

// SetState restores a state. A transfer in progress is dropped.
// CheckState returns an error if st can't be restored.
func (s *SGB) CheckState(st snapshot.SGB) error {
	switch st.Players {
	case 1, 2, 4:
	default:
		return fmt.Errorf("sgb: invalid player count %d", st.Players)
	}
	if st.Player >= st.Players {
		return fmt.Errorf("sgb: player %d out of range", st.Player)
	}
	if !validAttrs(&st.Attrs) {
		return errors.New("sgb: invalid palette in attributes")
	}
	for i := range st.AttrFiles {
		if !validAttrs(&st.AttrFiles[i]) {
			return fmt.Errorf("sgb: invalid palette in attribute file %d", i)
		}
	}
	return nil
}

func validAttrs(attrs *[Rows][Cols]uint8) bool {
	for _, row := range attrs {
		for _, pal := range row {
			if pal > 3 {
				return false
			}
		}
	}
	return true
}

func (s *SGB) SetState(st snapshot.SGB) {
	s.clearTransfer()
	for i, p := range st.Palettes {
		for j, c := range p {
			s.Palettes[i][j] = Color(c)
		}
	}
	for i, p := range st.SysPalettes {
		for j, c := range p {
			s.sysPalettes[i][j] = Color(c)
		}
	}
	s.attrFiles = st.AttrFiles
	s.Attrs = st.Attrs
	s.Mask = MaskMode(st.Mask & 3)
	s.players = st.Players
	s.player = st.Player
}
