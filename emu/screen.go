package emu

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"slices"

	"dotmatrix/hw"
)

// palettes maps the 4 DMG shades (white to black) to colors.
var palettes = map[string][4]color.RGBA{
	"gray": {
		{0xFF, 0xFF, 0xFF, 0xFF},
		{0xAA, 0xAA, 0xAA, 0xFF},
		{0x55, 0x55, 0x55, 0xFF},
		{0x00, 0x00, 0x00, 0xFF},
	},
	"green": {
		{0x9B, 0xBC, 0x0F, 0xFF},
		{0x8B, 0xAC, 0x0F, 0xFF},
		{0x30, 0x62, 0x30, 0xFF},
		{0x0F, 0x38, 0x0F, 0xFF},
	},
	"pocket": {
		{0xC4, 0xCF, 0xA1, 0xFF},
		{0x8B, 0x95, 0x6D, 0xFF},
		{0x4D, 0x53, 0x3C, 0xFF},
		{0x1F, 0x1F, 0x1F, 0xFF},
	},
}

// PaletteNames returns the names of the available DMG palettes.
func PaletteNames() []string {
	names := make([]string, 0, len(palettes))
	for name := range palettes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func newScreen() *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, hw.ScreenWidth, hw.ScreenHeight))
}

// paint converts the shades of frame into img.
func paint(img *image.RGBA, frame *hw.Frame, pal *[4]color.RGBA) {
	for i, shade := range frame {
		c := pal[shade&3]
		img.Pix[i*4+0] = c.R
		img.Pix[i*4+1] = c.G
		img.Pix[i*4+2] = c.B
		img.Pix[i*4+3] = c.A
	}
}

// SaveAsPNG saves img to path, in PNG format.
func SaveAsPNG(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
