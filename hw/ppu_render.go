package hw

// OAM sprite attributes
const (
	objPalette = 4
	objXFlip   = 5
	objYFlip   = 6
	objBehind  = 7 // drawn behind BG colors 1-3
)

func (p *PPU) vram(addr uint16) uint8 {
	return p.VRAM.Data[addr-VRAMStart]
}

// tileRow returns the 2 bitplanes of row y of the tile at addr.
func (p *PPU) tileRow(addr uint16, y int) (lo, hi uint8) {
	addr += uint16(y) * 2
	return p.vram(addr), p.vram(addr + 1)
}

func pixelIdx(lo, hi uint8, x int) uint8 {
	bit := 7 - uint(x)
	return (hi>>bit&1)<<1 | lo>>bit&1
}

// bgTileAddr returns the address of the tile data for a BG/window tile number.
func (p *PPU) bgTileAddr(tile uint8) uint16 {
	if p.LCDC.GetBit(lcdcTileData) {
		return 0x8000 + uint16(tile)*16
	}
	return uint16(int32(0x9000) + int32(int8(tile))*16)
}

func mapShade(pal, idx uint8) uint8 {
	return pal >> (idx * 2) & 3
}

func (p *PPU) spriteHeight() int {
	if p.LCDC.GetBit(lcdcOBJSize) {
		return 16
	}
	return 8
}

// selectSprites collects the sprites intersecting line ly, in OAM order.
func (p *PPU) selectSprites(ly int) {
	p.lineSprites = p.lineSprites[:0]
	h := p.spriteHeight()
	for i := range 40 {
		y := int(p.OAM.Data[i*4]) - 16
		if ly >= y && ly < y+h {
			p.lineSprites = append(p.lineSprites, i)
		}
	}
}

// renderLine draws line ly into the back buffer.
func (p *PPU) renderLine(ly int) {
	line := p.back[ly*ScreenWidth : (ly+1)*ScreenWidth]
	p.renderBG(ly, line)
	if p.LCDC.GetBit(lcdcOBJEnable) {
		p.renderSprites(ly, line)
	}
}

func (p *PPU) renderBG(ly int, line []uint8) {
	if !p.LCDC.GetBit(lcdcBGEnable) {
		clear(line)
		clear(p.bgIdx[:])
		return
	}

	bgMap := uint16(0x9800)
	if p.LCDC.GetBit(lcdcBGMap) {
		bgMap = 0x9C00
	}
	winMap := uint16(0x9800)
	if p.LCDC.GetBit(lcdcWinMap) {
		winMap = 0x9C00
	}

	wx := int(p.WX.Value) - 7
	winVisible := p.LCDC.GetBit(lcdcWinEnable) && ly >= int(p.WY.Value) && wx < ScreenWidth

	y := (ly + int(p.SCY.Value)) & 0xFF
	for x := range ScreenWidth {
		var (
			mapBase uint16
			px, py  int
		)
		if winVisible && x >= wx {
			mapBase, px, py = winMap, x-wx, p.winLine
		} else {
			mapBase, px, py = bgMap, (x+int(p.SCX.Value))&0xFF, y
		}

		tile := p.vram(mapBase + uint16(py/8)*32 + uint16(px/8))
		lo, hi := p.tileRow(p.bgTileAddr(tile), py%8)
		idx := pixelIdx(lo, hi, px%8)
		p.bgIdx[x] = idx
		line[x] = mapShade(p.BGP.Value, idx)
	}

	if winVisible {
		p.winLine++
	}
}

func (p *PPU) renderSprites(ly int, line []uint8) {
	h := p.spriteHeight()

	// Lower OAM index have priority, draw them last.
	for i := len(p.lineSprites) - 1; i >= 0; i-- {
		oam := p.OAM.Data[p.lineSprites[i]*4:]
		sy, sx := int(oam[0])-16, int(oam[1])-8
		tile, attr := oam[2], oam[3]

		row := ly - sy
		if attr&(1<<objYFlip) != 0 {
			row = h - 1 - row
		}
		if h == 16 {
			tile &^= 1
		}
		lo, hi := p.tileRow(0x8000+uint16(tile)*16, row)

		pal := p.OBP0.Value
		if attr&(1<<objPalette) != 0 {
			pal = p.OBP1.Value
		}

		for col := range 8 {
			x := sx + col
			if x < 0 || x >= ScreenWidth {
				continue
			}
			px := col
			if attr&(1<<objXFlip) != 0 {
				px = 7 - col
			}
			idx := pixelIdx(lo, hi, px)
			if idx == 0 {
				continue
			}
			if attr&(1<<objBehind) != 0 && p.bgIdx[x] != 0 {
				continue
			}
			line[x] = mapShade(pal, idx)
		}
	}
}
