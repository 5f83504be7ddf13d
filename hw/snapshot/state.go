package snapshot

// Version is the current save state format version.
const Version = 1

// GameBoy is a complete machine state.
type GameBoy struct {
	Version int
	Title   string // cartridge title, checked on load
	Model   uint8

	CPU    CPU
	IF     uint8
	IE     uint8
	Timer  Timer
	Serial Serial
	P1     uint8
	PPU    PPU
	APU    APU
	SGB    *SGB // nil unless running in SGB mode
	Mapper Mapper

	WRAM []byte
	HRAM []byte
}

type CPU struct {
	A, F, B, C, D, E, H, L uint8
	SP, PC                 uint16

	IME     bool
	Halted  bool
	HaltBug bool
	EIDelay uint8
	Cycles  int64
}

type Timer struct {
	Div            uint16
	TIMA, TMA, TAC uint8
}

type Serial struct {
	SB, SC uint8
	Active bool
	Sent   uint8
	Bits   int
	Dots   int
}

type PPU struct {
	Dot      int
	Mode3End int
	StatLine bool
	WinLine  int
	Frames   int64

	LCDC, STAT, SCY, SCX, LY, LYC uint8
	BGP, OBP0, OBP1, WY, WX       uint8

	VRAM []byte
	OAM  []byte
}

type APU struct {
	Power    bool
	NR50     uint8
	NR51     uint8
	SeqStep  int
	SeqDots  int
	WaveRAM  [16]uint8
	Channels [4]APUChannel
}

type APUChannel struct {
	Regs          [5]uint8
	Enabled       bool
	DAC           bool
	Length        int
	LengthEnabled bool
	Volume        uint8
	EnvTimer      uint8
	Freq          uint16
	Phase         int
	Timer         int
	SweepEnabled  bool
	SweepTimer    uint8
	SweepShadow   uint16
	LFSR          uint16
}

type SGB struct {
	Palettes    [4][4]uint16
	SysPalettes [512][4]uint16
	AttrFiles   [45][18][20]uint8
	Attrs       [18][20]uint8
	Mask        uint8
	Players     uint8
	Player      uint8
}

type Mapper struct {
	RAMEnabled bool
	Bank1      uint16 // rom bank register
	Bank2      uint16 // secondary bank register (ram bank, upper rom bits)
	Mode       uint8
	RAM        []byte
}
