package hw

import (
	"errors"
	"fmt"

	"dotmatrix/emu/log"
	"dotmatrix/hw/hwio"
	"dotmatrix/hw/snapshot"
)

const (
	ScreenWidth  = 160
	ScreenHeight = 144

	DotsPerLine   = 456
	LinesPerFrame = 154
	DotsPerFrame  = DotsPerLine * LinesPerFrame // 70224

	oamScanDots  = 80
	transferDots = 172
	maxTransfer  = 289
)

// PPU modes, as reported in STAT bits 0-1.
const (
	ModeHBlank   = 0
	ModeVBlank   = 1
	ModeOAMScan  = 2
	ModeTransfer = 3
)

const (
	// LCDC bits
	lcdcBGEnable  = 0 // BG and window display
	lcdcOBJEnable = 1
	lcdcOBJSize   = 2 // 0: 8x8, 1: 8x16
	lcdcBGMap     = 3 // 0: 9800, 1: 9C00
	lcdcTileData  = 4 // 0: 8800 (signed), 1: 8000
	lcdcWinEnable = 5
	lcdcWinMap    = 6 // 0: 9800, 1: 9C00
	lcdcEnable    = 7

	// STAT bits
	statLYC       = 2 // LY == LYC
	statHBlankInt = 3
	statVBlankInt = 4
	statOAMInt    = 5
	statLYCInt    = 6
)

// Frame holds the 2-bit shades (0: white, 3: black) of a whole screen.
type Frame [ScreenWidth * ScreenHeight]uint8

func (f *Frame) At(x, y int) uint8 { return f[y*ScreenWidth+x] }

// PPU is the pixel processing unit. Tick advances it by one dot.
type PPU struct {
	VRAM hwio.Mem `hwio:"offset=0x8000,size=0x2000"`
	OAM  hwio.Mem `hwio:"offset=0xFE00,size=0x100,vsize=0xA0"`

	LCDC hwio.Reg8 `hwio:"offset=0xFF40,reset=0x91,wcb"`
	STAT hwio.Reg8 `hwio:"offset=0xFF41,reset=0x85,rwmask=0x78,rcb,wcb"`
	SCY  hwio.Reg8 `hwio:"offset=0xFF42"`
	SCX  hwio.Reg8 `hwio:"offset=0xFF43"`
	LY   hwio.Reg8 `hwio:"offset=0xFF44,readonly"`
	LYC  hwio.Reg8 `hwio:"offset=0xFF45,wcb"`
	BGP  hwio.Reg8 `hwio:"offset=0xFF47,reset=0xFC"`
	OBP0 hwio.Reg8 `hwio:"offset=0xFF48,reset=0xFF"`
	OBP1 hwio.Reg8 `hwio:"offset=0xFF49,reset=0xFF"`
	WY   hwio.Reg8 `hwio:"offset=0xFF4A"`
	WX   hwio.Reg8 `hwio:"offset=0xFF4B"`

	irq *Interrupts

	dot      int // dot in frame, 0 to DotsPerFrame-1
	mode3End int // dot in line at which the current transfer ends, DotsPerLine before the scan
	statLine bool
	winLine  int // internal window line counter

	back   Frame
	front  Frame
	frames int64

	// Sprites selected on the current line, and bg color indexes, used for
	// sprite priority.
	lineSprites []int
	bgIdx       [ScreenWidth]uint8
}

func NewPPU(irq *Interrupts) *PPU {
	p := &PPU{
		irq:         irq,
		lineSprites: make([]int, 0, 40),
	}
	hwio.MustInitRegs(p)
	return p
}

// Reset puts the PPU at the start of vblank, as after the boot rom.
func (p *PPU) Reset() {
	hwio.ResetRegs(p)
	p.back = Frame{}
	p.front = Frame{}
	p.frames = 0
	p.winLine = 0
	p.statLine = false
	p.mode3End = DotsPerLine
	p.dot = ScreenHeight * DotsPerLine
	p.LY.Value = ScreenHeight
	p.setMode(ModeVBlank)
	p.compareLY()
}

// Front returns the last complete frame.
func (p *PPU) Front() *Frame { return &p.front }

// FrameCount returns the number of frames completed since reset.
func (p *PPU) FrameCount() int64 { return p.frames }

// Dot returns the position in the current frame, in dots.
func (p *PPU) Dot() int { return p.dot }

func (p *PPU) Mode() uint8 { return p.STAT.Value & 3 }

func (p *PPU) enabled() bool { return p.LCDC.GetBit(lcdcEnable) }

// Tick advances the PPU by one dot.
func (p *PPU) Tick() {
	if !p.enabled() {
		return
	}

	p.dot++
	if p.dot == DotsPerFrame {
		p.dot = 0
	}
	ly, lx := p.dot/DotsPerLine, p.dot%DotsPerLine

	if lx == 0 {
		// The end of the transfer is only known after the OAM scan.
		p.mode3End = DotsPerLine
		p.LY.Value = uint8(ly)
		p.compareLY()
		switch {
		case ly == 0:
			p.winLine = 0
			p.setMode(ModeOAMScan)
		case ly < ScreenHeight:
			p.setMode(ModeOAMScan)
		case ly == ScreenHeight:
			p.enterVBlank()
		}
	}

	if ly >= ScreenHeight {
		return
	}
	switch lx {
	case oamScanDots:
		p.selectSprites(ly)
		p.mode3End = oamScanDots + p.transferLength()
		p.setMode(ModeTransfer)
	case p.mode3End:
		p.renderLine(ly)
		p.setMode(ModeHBlank)
	}
}

// transferLength returns the duration of mode 3 for the current line.
func (p *PPU) transferLength() int {
	n := transferDots + int(p.SCX.Value&7) + 6*min(len(p.lineSprites), 10)
	return min(n, maxTransfer)
}

func (p *PPU) enterVBlank() {
	p.setMode(ModeVBlank)
	p.front = p.back
	p.frames++
	p.irq.Request(IntVBlank)
}

func (p *PPU) setMode(mode uint8) {
	p.STAT.Value = p.STAT.Value&^3 | mode
	p.updateSTAT()
}

// compareLY updates the coincidence flag.
func (p *PPU) compareLY() {
	p.STAT.SetBitTo(statLYC, p.LY.Value == p.LYC.Value)
	p.updateSTAT()
}

// updateSTAT requests the STAT interrupt on the rising edge of the
// combined STAT sources.
func (p *PPU) updateSTAT() {
	stat := p.STAT.Value
	line := false
	switch {
	case stat&(1<<statLYCInt) != 0 && stat&(1<<statLYC) != 0:
		line = true
	case stat&3 == ModeHBlank && stat&(1<<statHBlankInt) != 0:
		line = true
	case stat&3 == ModeVBlank && stat&(1<<statVBlankInt) != 0:
		line = true
	case stat&3 == ModeOAMScan && stat&(1<<statOAMInt) != 0:
		line = true
	}
	if line && !p.statLine && p.enabled() {
		p.irq.Request(IntSTAT)
	}
	p.statLine = line
}

// Bit 7 reads as 1, mode and coincidence read as 0 when the LCD is off.
func (p *PPU) ReadSTAT(val uint8, _ bool) uint8 {
	if !p.enabled() {
		val &^= 7
	}
	return val | 0x80
}

func (p *PPU) WriteSTAT(_, _ uint8) {
	p.updateSTAT()
}

func (p *PPU) WriteLYC(_, _ uint8) {
	if p.enabled() {
		p.compareLY()
	}
}

func (p *PPU) WriteLCDC(old, val uint8) {
	wasOn := hwio.GetBit8(old, lcdcEnable)
	isOn := hwio.GetBit8(val, lcdcEnable)
	switch {
	case wasOn && !isOn:
		log.ModPPU.DebugZ("LCD off").Uint8("ly", p.LY.Value).End()
		p.dot = 0
		p.LY.Value = 0
		p.STAT.Value &^= 3
		p.statLine = false
	case !wasOn && isOn:
		log.ModPPU.DebugZ("LCD on").End()
		p.dot = 0
		p.mode3End = DotsPerLine
		p.LY.Value = 0
		p.winLine = 0
		p.setMode(ModeOAMScan)
		p.compareLY()
	}
}

func (p *PPU) State() snapshot.PPU {
	return snapshot.PPU{
		Dot:      p.dot,
		Mode3End: p.mode3End,
		StatLine: p.statLine,
		WinLine:  p.winLine,
		Frames:   p.frames,

		LCDC: p.LCDC.Value, STAT: p.STAT.Value, SCY: p.SCY.Value, SCX: p.SCX.Value,
		LY: p.LY.Value, LYC: p.LYC.Value,
		BGP: p.BGP.Value, OBP0: p.OBP0.Value, OBP1: p.OBP1.Value,
		WY: p.WY.Value, WX: p.WX.Value,

		VRAM: append([]byte(nil), p.VRAM.Data...),
		OAM:  append([]byte(nil), p.OAM.Data...),
	}
}

// CheckState returns an error if s can't be restored.
func (p *PPU) CheckState(s snapshot.PPU) error {
	switch {
	case len(s.VRAM) != len(p.VRAM.Data) || len(s.OAM) != len(p.OAM.Data):
		return errors.New("ppu: vram or oam size mismatch")
	case s.Dot < 0 || s.Dot >= DotsPerFrame:
		return fmt.Errorf("ppu: dot %d out of range", s.Dot)
	case s.Mode3End <= oamScanDots || s.Mode3End > DotsPerLine:
		return fmt.Errorf("ppu: transfer end %d out of range", s.Mode3End)
	case s.WinLine < 0 || s.WinLine > ScreenHeight:
		return fmt.Errorf("ppu: window line %d out of range", s.WinLine)
	}
	return nil
}

func (p *PPU) SetState(s snapshot.PPU) {
	p.dot = s.Dot
	p.mode3End = s.Mode3End
	p.statLine = s.StatLine
	p.winLine = s.WinLine
	p.frames = s.Frames

	p.LCDC.Value, p.STAT.Value, p.SCY.Value, p.SCX.Value = s.LCDC, s.STAT, s.SCY, s.SCX
	p.LY.Value, p.LYC.Value = s.LY, s.LYC
	p.BGP.Value, p.OBP0.Value, p.OBP1.Value = s.BGP, s.OBP0, s.OBP1
	p.WY.Value, p.WX.Value = s.WY, s.WX

	copy(p.VRAM.Data, s.VRAM)
	copy(p.OAM.Data, s.OAM)
}
