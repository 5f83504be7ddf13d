package sgb

import (
	"encoding/binary"
	"fmt"

	"dotmatrix/emu/log"
)

type Command uint8

const (
	Pal01   Command = 0x00
	Pal23   Command = 0x01
	Pal03   Command = 0x02
	Pal12   Command = 0x03
	AttrBlk Command = 0x04
	AttrLin Command = 0x05
	AttrDiv Command = 0x06
	AttrChr Command = 0x07
	PalSet  Command = 0x0A
	PalTrn  Command = 0x0B
	MltReq  Command = 0x11
	AttrTrn Command = 0x15
	AttrSet Command = 0x16
	MaskEn  Command = 0x17
)

var commandNames = map[Command]string{
	Pal01: "PAL01", Pal23: "PAL23", Pal03: "PAL03", Pal12: "PAL12",
	AttrBlk: "ATTR_BLK", AttrLin: "ATTR_LIN", AttrDiv: "ATTR_DIV",
	AttrChr: "ATTR_CHR", PalSet: "PAL_SET", PalTrn: "PAL_TRN",
	MltReq: "MLT_REQ", AttrTrn: "ATTR_TRN", AttrSet: "ATTR_SET",
	MaskEn: "MASK_EN",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CMD_%02X", uint8(c))
}

// dispatch executes a complete transmission. data holds all packets.
func (s *SGB) dispatch(data []uint8) {
	cmd := Command(data[0] >> 3)
	log.ModSGB.DebugZ("command").
		Stringer("cmd", cmd).
		Int("packets", len(data)/packetSize).
		End()

	switch cmd {
	case Pal01:
		s.setPalettes(0, 1, data)
	case Pal23:
		s.setPalettes(2, 3, data)
	case Pal03:
		s.setPalettes(0, 3, data)
	case Pal12:
		s.setPalettes(1, 2, data)
	case AttrBlk:
		s.attrBlock(data)
	case AttrLin:
		s.attrLine(data)
	case AttrDiv:
		s.attrDivide(data)
	case AttrChr:
		s.attrChar(data)
	case PalSet:
		s.palSet(data)
	case PalTrn:
		s.palTransfer()
	case MltReq:
		s.multiplayer(data[1])
	case AttrTrn:
		s.attrTransfer()
	case AttrSet:
		s.attrSet(data[1])
	case MaskEn:
		s.Mask = MaskMode(data[1] & 0x03)
	default:
		log.ModSGB.InfoZ("unsupported command").
			Stringer("cmd", cmd).
			Blob("data", data).
			End()
	}
}

func color555(b []uint8) Color {
	return Color(binary.LittleEndian.Uint16(b) & 0x7FFF)
}

// setPalettes handles Pal01, Pal23, Pal03 and Pal12. Color 0 is shared by
// all palettes.
func (s *SGB) setPalettes(p0, p1 int, data []uint8) {
	c0 := color555(data[1:])
	for i := range s.Palettes {
		s.Palettes[i][0] = c0
	}
	for i := range 3 {
		s.Palettes[p0][i+1] = color555(data[3+i*2:])
		s.Palettes[p1][i+1] = color555(data[9+i*2:])
	}
}

// attrBlock handles AttrBlk: palettes for the inside, the border and the
// outside of rectangles.
func (s *SGB) attrBlock(data []uint8) {
	nsets := min(int(data[1]), (len(data)-2)/6)
	for i := range nsets {
		set := data[2+i*6 : 8+i*6]
		ctrl := set[0] & 0x07
		in, border, out := set[1]&3, (set[1]>>2)&3, (set[1]>>4)&3
		x1, y1, x2, y2 := int(set[2]&0x1F), int(set[3]&0x1F), int(set[4]&0x1F), int(set[5]&0x1F)

		// With only one of inside and outside, the border takes its palette.
		switch ctrl {
		case 0x01:
			border = in
			ctrl |= 0x02
		case 0x04:
			border = out
			ctrl |= 0x02
		}

		for y := range Rows {
			for x := range Cols {
				switch {
				case x > x1 && x < x2 && y > y1 && y < y2:
					if ctrl&0x01 != 0 {
						s.Attrs[y][x] = in
					}
				case x < x1 || x > x2 || y < y1 || y > y2:
					if ctrl&0x04 != 0 {
						s.Attrs[y][x] = out
					}
				default:
					if ctrl&0x02 != 0 {
						s.Attrs[y][x] = border
					}
				}
			}
		}
	}
}

// attrLine handles AttrLin: palettes for whole rows or columns.
func (s *SGB) attrLine(data []uint8) {
	nsets := min(int(data[1]), len(data)-2)
	for _, set := range data[2 : 2+nsets] {
		line := int(set & 0x1F)
		pal := (set >> 5) & 3
		if set&0x80 != 0 {
			if line < Rows {
				for x := range Cols {
					s.Attrs[line][x] = pal
				}
			}
			continue
		}
		if line < Cols {
			for y := range Rows {
				s.Attrs[y][line] = pal
			}
		}
	}
}

// attrDivide handles AttrDiv: the screen is split by a line.
func (s *SGB) attrDivide(data []uint8) {
	after, before, on := data[1]&3, (data[1]>>2)&3, (data[1]>>4)&3
	horizontal := data[1]&0x40 != 0
	pos := int(data[2] & 0x1F)

	for y := range Rows {
		for x := range Cols {
			v := x
			if horizontal {
				v = y
			}
			switch {
			case v < pos:
				s.Attrs[y][x] = before
			case v == pos:
				s.Attrs[y][x] = on
			default:
				s.Attrs[y][x] = after
			}
		}
	}
}

// attrChar handles AttrChr: palettes for consecutive tiles, 4 per byte.
func (s *SGB) attrChar(data []uint8) {
	x, y := int(data[1]), int(data[2])
	n := int(binary.LittleEndian.Uint16(data[3:]))
	vertical := data[5] != 0
	if x >= Cols || y >= Rows {
		return
	}

	for i := range min(n, (len(data)-6)*4) {
		b := data[6+i/4]
		s.Attrs[y][x] = (b >> (6 - 2*(i%4))) & 3
		if vertical {
			if y++; y == Rows {
				y = 0
				if x++; x == Cols {
					return
				}
			}
		} else {
			if x++; x == Cols {
				x = 0
				if y++; y == Rows {
					return
				}
			}
		}
	}
}

// palSet handles PalSet: the 4 palettes are taken from the system palettes,
// and an attribute file is optionally applied.
func (s *SGB) palSet(data []uint8) {
	for i := range s.Palettes {
		idx := binary.LittleEndian.Uint16(data[1+i*2:]) & 0x1FF
		s.Palettes[i] = s.sysPalettes[idx]
	}
	// Color 0 of palette 0 is shared.
	for i := range s.Palettes {
		s.Palettes[i][0] = s.Palettes[0][0]
	}
	if data[9]&0x80 != 0 {
		s.attrSet(data[9])
	}
	if data[9]&0x40 != 0 {
		s.Mask = MaskNone
	}
}

// attrSet handles AttrSet: applies one of the 45 attribute files.
func (s *SGB) attrSet(val uint8) {
	file := int(val & 0x3F)
	if file >= len(s.attrFiles) {
		log.ModSGB.DebugZ("invalid attribute file").Int("file", file).End()
		return
	}
	s.Attrs = s.attrFiles[file]
	if val&0x40 != 0 {
		s.Mask = MaskNone
	}
}

func (s *SGB) multiplayer(val uint8) {
	switch val & 0x03 {
	case 0x01:
		s.players = 2
	case 0x03:
		s.players = 4
	default:
		s.players = 1
	}
	s.player = 0
	log.ModSGB.DebugZ("multiplayer").Uint8("players", s.players).End()
}

const (
	vramStart    = 0x8000
	transferSize = 0x1000
)

func (s *SGB) readVRAM() []uint8 {
	buf := make([]uint8, transferSize)
	if s.vram == nil {
		return buf
	}
	for i := range buf {
		buf[i] = s.vram.Peek8(vramStart + uint16(i))
	}
	return buf
}

// palTransfer handles PalTrn: 512 palettes of 4 colors are read from VRAM.
func (s *SGB) palTransfer() {
	buf := s.readVRAM()
	for i := range s.sysPalettes {
		for j := range 4 {
			s.sysPalettes[i][j] = color555(buf[i*8+j*2:])
		}
	}
}

// attrTransfer handles AttrTrn: 45 attribute files are read from VRAM. Each
// holds 20x18 2-bit palette numbers, 4 per byte, leftmost first.
func (s *SGB) attrTransfer() {
	const fileSize = Cols * Rows / 4
	buf := s.readVRAM()
	for f := range s.attrFiles {
		file := buf[f*fileSize : (f+1)*fileSize]
		for i := range Cols * Rows {
			s.attrFiles[f][i/Cols][i%Cols] = (file[i/4] >> (6 - 2*(i%4))) & 3
		}
	}
}
