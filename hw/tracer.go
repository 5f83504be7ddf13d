package hw

import (
	"io"
)

// cpuState stores the CPU state for the execution trace.
type cpuState struct {
	A, B, C, D, E, H, L uint8
	F                   Flags
	SP, PC              uint16
	PCMem               [4]uint8
}

type tracer struct {
	w   io.Writer
	buf []byte
}

func hexEncode(dst []byte, v byte) {
	const hextable = "0123456789ABCDEF"
	dst[0] = hextable[v>>4]
	dst[1] = hextable[v&0x0f]
}

func (t *tracer) reg8(name string, v uint8) {
	t.buf = append(t.buf, name...)
	t.buf = append(t.buf, ':', 0, 0, ' ')
	hexEncode(t.buf[len(t.buf)-3:], v)
}

func (t *tracer) reg16(name string, v uint16) {
	t.buf = append(t.buf, name...)
	t.buf = append(t.buf, ':', 0, 0, 0, 0, ' ')
	hexEncode(t.buf[len(t.buf)-5:], uint8(v>>8))
	hexEncode(t.buf[len(t.buf)-3:], uint8(v))
}

// write writes one trace line, in the format used by gameboy-doctor:
//
//	A:01 F:B0 B:00 C:13 D:00 E:D8 H:01 L:4D SP:FFFE PC:0100 PCMEM:00,C3,13,02
func (t *tracer) write(state cpuState) {
	t.buf = t.buf[:0]
	t.reg8("A", state.A)
	t.reg8("F", uint8(state.F))
	t.reg8("B", state.B)
	t.reg8("C", state.C)
	t.reg8("D", state.D)
	t.reg8("E", state.E)
	t.reg8("H", state.H)
	t.reg8("L", state.L)
	t.reg16("SP", state.SP)
	t.reg16("PC", state.PC)

	t.buf = append(t.buf, "PCMEM:"...)
	for i, b := range state.PCMem {
		if i > 0 {
			t.buf = append(t.buf, ',')
		}
		t.buf = append(t.buf, 0, 0)
		hexEncode(t.buf[len(t.buf)-2:], b)
	}
	t.buf = append(t.buf, '\n')

	t.w.Write(t.buf)
}
