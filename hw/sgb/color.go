package sgb

import (
	"image"
	"image/color"

	"dotmatrix/hw"
)

// Color is a 15-bit BGR555 color.
type Color uint16

func RGB555(r, g, b uint8) Color {
	return Color(r&0x1F) | Color(g&0x1F)<<5 | Color(b&0x1F)<<10
}

// scale5 converts a 5-bit channel to 8 bits.
func scale5(c uint16) uint8 {
	c &= 0x1F
	return uint8(c<<3 | c>>2)
}

func (c Color) RGBA() color.RGBA {
	return color.RGBA{
		R: scale5(uint16(c)),
		G: scale5(uint16(c) >> 5),
		B: scale5(uint16(c) >> 10),
		A: 0xFF,
	}
}

// Colorize converts a frame of shades to colors, using the palette attribute
// of each tile and the screen mask. The returned image is reused by the next
// call.
func (s *SGB) Colorize(frame *hw.Frame) *image.RGBA {
	switch s.Mask {
	case MaskFreeze:
		return s.img
	case MaskBlack:
		s.fill(color.RGBA{A: 0xFF})
		return s.img
	case MaskColor0:
		s.fill(s.Palettes[0][0].RGBA())
		return s.img
	}

	var lut [4][4]color.RGBA
	for p := range s.Palettes {
		for i, c := range s.Palettes[p] {
			lut[p][i] = c.RGBA()
		}
	}

	for y := range hw.ScreenHeight {
		row := s.Attrs[y/8]
		pix := s.img.Pix[y*s.img.Stride:]
		for x := range hw.ScreenWidth {
			c := lut[row[x/8]&3][frame.At(x, y)&3]
			pix[x*4+0] = c.R
			pix[x*4+1] = c.G
			pix[x*4+2] = c.B
			pix[x*4+3] = c.A
		}
	}
	return s.img
}

func (s *SGB) fill(c color.RGBA) {
	for i := 0; i < len(s.img.Pix); i += 4 {
		s.img.Pix[i+0] = c.R
		s.img.Pix[i+1] = c.G
		s.img.Pix[i+2] = c.B
		s.img.Pix[i+3] = c.A
	}
}
