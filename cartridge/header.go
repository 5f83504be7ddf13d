package cartridge

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Header offsets.
const (
	offTitle     = 0x134
	offCGBFlag   = 0x143
	offSGBFlag   = 0x146
	offType      = 0x147
	offROMSize   = 0x148
	offRAMSize   = 0x149
	offDestCode  = 0x14A
	offVersion   = 0x14C
	offChecksum  = 0x14D
	headerEnd    = 0x150
	titleMaxSize = 15
)

// Header is the decoded cartridge header, located at 0x100-0x14F.
type Header struct {
	Title       string
	CGBFlag     uint8
	SGBFlag     uint8
	Type        uint8
	ROMSizeCode uint8
	RAMSizeCode uint8
	DestCode    uint8
	Version     uint8
	Checksum    uint8

	ChecksumOK bool // header checksum matches the content
}

// ramSizes maps the RAM size code to external RAM size in bytes. Code 1 is
// unofficial (2KB), some homebrew use it.
var ramSizes = [...]int{0, 2 << 10, 8 << 10, 32 << 10, 128 << 10, 64 << 10}

func (hdr *Header) decode(p []byte) error {
	if len(p) < headerEnd {
		return fmt.Errorf("too small, needs at least %d bytes, got %d", headerEnd, len(p))
	}

	title := p[offTitle : offTitle+titleMaxSize]
	if i := strings.IndexByte(string(title), 0); i >= 0 {
		title = title[:i]
	}
	hdr.Title = strings.TrimRight(string(title), " ")
	hdr.CGBFlag = p[offCGBFlag]
	hdr.SGBFlag = p[offSGBFlag]
	hdr.Type = p[offType]
	hdr.ROMSizeCode = p[offROMSize]
	hdr.RAMSizeCode = p[offRAMSize]
	hdr.DestCode = p[offDestCode]
	hdr.Version = p[offVersion]
	hdr.Checksum = p[offChecksum]

	if hdr.ROMSizeCode > 8 {
		return fmt.Errorf("invalid ROM size code 0x%02x", hdr.ROMSizeCode)
	}
	if int(hdr.RAMSizeCode) >= len(ramSizes) {
		return fmt.Errorf("invalid RAM size code 0x%02x", hdr.RAMSizeCode)
	}

	hdr.ChecksumOK = HeaderChecksum(p) == hdr.Checksum
	return nil
}

// HeaderChecksum computes the header checksum over bytes 0x134-0x14C.
func HeaderChecksum(p []byte) uint8 {
	var sum uint8
	for _, b := range p[offTitle:offChecksum] {
		sum = sum - b - 1
	}
	return sum
}

// ROMSize returns the ROM size in bytes, as declared in the header.
func (hdr *Header) ROMSize() int {
	return (32 << 10) << hdr.ROMSizeCode
}

// ROMBanks returns the number of 16KB ROM banks.
func (hdr *Header) ROMBanks() int {
	return hdr.ROMSize() / (16 << 10)
}

// RAMSize returns the external RAM size in bytes, as declared in the header.
// MBC2 has its internal 512x4 bits RAM and declares 0.
func (hdr *Header) RAMSize() int {
	return ramSizes[hdr.RAMSizeCode]
}

// SupportsSGB reports whether the cartridge declares Super Game Boy support.
// The old licensee code must also be 0x33, but we don't check it.
func (hdr *Header) SupportsSGB() bool {
	return hdr.SGBFlag == 0x03
}

// HasBattery reports whether the external RAM is battery-backed.
func (hdr *Header) HasBattery() bool {
	switch hdr.Type {
	case 0x03, 0x06, 0x09, 0x0D, 0x0F, 0x10, 0x13, 0x1B, 0x1E, 0x22, 0xFF:
		return true
	}
	return false
}

var typeNames = map[uint8]string{
	0x00: "ROM ONLY",
	0x01: "MBC1",
	0x02: "MBC1+RAM",
	0x03: "MBC1+RAM+BATTERY",
	0x05: "MBC2",
	0x06: "MBC2+BATTERY",
	0x08: "ROM+RAM",
	0x09: "ROM+RAM+BATTERY",
	0x0B: "MMM01",
	0x0F: "MBC3+TIMER+BATTERY",
	0x10: "MBC3+TIMER+RAM+BATTERY",
	0x11: "MBC3",
	0x12: "MBC3+RAM",
	0x13: "MBC3+RAM+BATTERY",
	0x19: "MBC5",
	0x1A: "MBC5+RAM",
	0x1B: "MBC5+RAM+BATTERY",
	0x1C: "MBC5+RUMBLE",
	0x1D: "MBC5+RUMBLE+RAM",
	0x1E: "MBC5+RUMBLE+RAM+BATTERY",
	0xFC: "POCKET CAMERA",
	0xFE: "HuC3",
	0xFF: "HuC1+RAM+BATTERY",
}

// TypeName returns the human readable cartridge type.
func (hdr *Header) TypeName() string {
	if name, ok := typeNames[hdr.Type]; ok {
		return name
	}
	return fmt.Sprintf("unknown (0x%02x)", hdr.Type)
}

func (hdr *Header) PrintInfos(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Title:\t%s\n", hdr.Title)
	fmt.Fprintf(tw, "Type:\t%s\n", hdr.TypeName())
	fmt.Fprintf(tw, "ROM:\t%dKB (%d banks)\n", hdr.ROMSize()>>10, hdr.ROMBanks())
	fmt.Fprintf(tw, "RAM:\t%dKB\n", hdr.RAMSize()>>10)
	fmt.Fprintf(tw, "Battery:\t%t\n", hdr.HasBattery())
	fmt.Fprintf(tw, "SGB:\t%t\n", hdr.SupportsSGB())
	fmt.Fprintf(tw, "CGB flag:\t0x%02x\n", hdr.CGBFlag)
	fmt.Fprintf(tw, "Version:\t%d\n", hdr.Version)
	if hdr.ChecksumOK {
		fmt.Fprintf(tw, "Checksum:\t0x%02x (ok)\n", hdr.Checksum)
	} else {
		fmt.Fprintf(tw, "Checksum:\t0x%02x (mismatch)\n", hdr.Checksum)
	}
	tw.Flush()
}
