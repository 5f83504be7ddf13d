package apu

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"dotmatrix/hw/snapshot"
)

func newTestAPU(mixer *Mixer) *APU {
	a := New(mixer)
	a.Reset()
	return a
}

func (a *APU) tickN(n int) {
	for range n {
		a.Tick()
	}
}

func TestReadMasks(t *testing.T) {
	a := newTestAPU(nil)

	for addr := uint16(NR10); addr < NR52; addr++ {
		a.WriteREGS(addr, 0x00)
	}
	for addr := uint16(NR10); addr < WaveRAM; addr++ {
		want := readMasks[addr-NR10]
		if addr == NR52 {
			want = 0xF0
		}
		if got := a.ReadREGS(addr, false); got != want {
			t.Errorf("read %04X = %02X, want %02X", addr, got, want)
		}
	}
}

func TestPowerOff(t *testing.T) {
	a := newTestAPU(nil)

	a.WriteREGS(WaveRAM, 0x12)
	a.WriteREGS(0xFF12, 0xF0)
	a.WriteREGS(0xFF14, 0x80) // trigger pulse 1
	if got := a.ReadREGS(NR52, false); got != 0xF1 {
		t.Fatalf("NR52 = %02X, want F1", got)
	}

	a.WriteREGS(NR52, 0x00)
	if got := a.ReadREGS(NR52, false); got != 0x70 {
		t.Errorf("NR52 = %02X after power off, want 70", got)
	}
	if got := a.ReadREGS(0xFF12, false); got != 0x00 {
		t.Errorf("NR12 = %02X after power off, want 00", got)
	}
	if got := a.ReadREGS(NR50, false); got != 0x00 {
		t.Errorf("NR50 = %02X after power off, want 00", got)
	}

	// Writes are ignored while off, except wave RAM.
	a.WriteREGS(NR50, 0x77)
	a.WriteREGS(WaveRAM+1, 0x34)
	if got := a.ReadREGS(NR50, false); got != 0x00 {
		t.Errorf("NR50 = %02X, write while off not ignored", got)
	}
	if got := a.ReadREGS(WaveRAM, false); got != 0x12 {
		t.Errorf("wave RAM[0] = %02X, want 12", got)
	}
	if got := a.ReadREGS(WaveRAM+1, false); got != 0x34 {
		t.Errorf("wave RAM[1] = %02X, want 34", got)
	}

	a.WriteREGS(NR52, 0x80)
	if !a.Powered() {
		t.Errorf("APU not powered after NR52 write")
	}
}

func TestLengthCounter(t *testing.T) {
	a := newTestAPU(nil)

	a.WriteREGS(0xFF17, 0xF0) // NR22: volume 15
	a.WriteREGS(0xFF16, 0x3F) // NR21: length 1
	a.WriteREGS(0xFF19, 0xC0) // NR24: trigger, length enabled

	a.tickN(seqPeriod - 1)
	if got := a.ReadREGS(NR52, false); got&0x02 == 0 {
		t.Fatalf("pulse 2 disabled too early, NR52 = %02X", got)
	}
	a.Tick()
	if got := a.ReadREGS(NR52, false); got&0x02 != 0 {
		t.Errorf("pulse 2 still enabled after length expired, NR52 = %02X", got)
	}
}

func TestLengthDisabled(t *testing.T) {
	a := newTestAPU(nil)

	a.WriteREGS(0xFF17, 0xF0)
	a.WriteREGS(0xFF16, 0x3F)
	a.WriteREGS(0xFF19, 0x80) // trigger, length disabled

	a.tickN(8 * seqPeriod)
	if !a.Channels[Pulse2].Enabled() {
		t.Errorf("pulse 2 disabled with length counter off")
	}
}

func TestDACOff(t *testing.T) {
	a := newTestAPU(nil)

	a.WriteREGS(0xFF21, 0x00) // NR42: DAC off
	a.WriteREGS(0xFF23, 0x80)
	if a.Channels[Noise].Enabled() {
		t.Errorf("noise enabled with DAC off")
	}

	a.WriteREGS(0xFF21, 0xF0)
	a.WriteREGS(0xFF23, 0x80)
	if !a.Channels[Noise].Enabled() {
		t.Fatalf("noise not enabled")
	}
	a.WriteREGS(0xFF21, 0x07)
	if a.Channels[Noise].Enabled() {
		t.Errorf("noise still enabled after DAC off")
	}
}

func TestEnvelope(t *testing.T) {
	tests := []struct {
		nr12  uint8
		steps int // envelope clocks
		want  uint8
	}{
		{nr12: 0xF1, steps: 1, want: 14},
		{nr12: 0xF1, steps: 3, want: 12},
		{nr12: 0xF2, steps: 4, want: 13},
		{nr12: 0x09, steps: 3, want: 3},
		{nr12: 0xF8, steps: 5, want: 15}, // period 0: no change
		{nr12: 0xE9, steps: 3, want: 15}, // saturates
	}
	for _, tt := range tests {
		a := newTestAPU(nil)
		a.WriteREGS(0xFF10, 0x00)
		a.WriteREGS(0xFF12, tt.nr12)
		a.WriteREGS(0xFF14, 0x80)

		a.tickN(tt.steps * 8 * seqPeriod)
		if got := a.Channels[Pulse1].env.volume; got != tt.want {
			t.Errorf("NR12=%02X after %d clocks: volume = %d, want %d", tt.nr12, tt.steps, got, tt.want)
		}
	}
}

func TestSweep(t *testing.T) {
	a := newTestAPU(nil)
	a.WriteREGS(0xFF10, 0x12) // period 1, increase, shift 2
	a.WriteREGS(0xFF12, 0xF0)
	a.WriteREGS(0xFF13, 0x00)
	a.WriteREGS(0xFF14, 0x84) // trigger, freq 0x400

	// First sweep clock at sequencer step 2.
	a.tickN(3 * seqPeriod)
	ch := &a.Channels[Pulse1]
	if ch.freq != 0x500 {
		t.Errorf("freq = %03X, want 500", ch.freq)
	}
	if !ch.Enabled() {
		t.Errorf("channel disabled")
	}

	// 0x500 -> 0x640 -> 0x7D0, then 0x9C4 overflows.
	a.tickN(8 * seqPeriod)
	if ch.Enabled() {
		t.Errorf("channel enabled after sweep overflow, freq = %03X", ch.freq)
	}
}

func TestSweepOverflowOnTrigger(t *testing.T) {
	a := newTestAPU(nil)
	a.WriteREGS(0xFF10, 0x11)
	a.WriteREGS(0xFF12, 0xF0)
	a.WriteREGS(0xFF13, 0xFF)
	a.WriteREGS(0xFF14, 0x87)

	if a.Channels[Pulse1].Enabled() {
		t.Errorf("channel enabled, sweep overflow check should disable it")
	}
}

func TestPulseDuty(t *testing.T) {
	for duty := range uint8(4) {
		a := newTestAPU(nil)
		a.WriteREGS(0xFF16, duty<<6)
		a.WriteREGS(0xFF17, 0x10) // volume 1
		a.WriteREGS(0xFF18, 0xFF)
		a.WriteREGS(0xFF19, 0x87) // freq 0x7FF: 4 dots per step

		var got [8]uint8
		for i := range got {
			a.tickN(4)
			got[i] = a.Channels[Pulse2].Output()
		}

		// Sampled from phase 1.
		d := dutyTable[duty]
		want := [8]uint8{d[1], d[2], d[3], d[4], d[5], d[6], d[7], d[0]}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("duty %d: waveform mismatch (-want +got):\n%s", duty, diff)
		}
	}
}

func TestWaveChannel(t *testing.T) {
	tests := []struct {
		nr32 uint8
		want []uint8
	}{
		{0x20, []uint8{0x1, 0x2, 0x3, 0x4, 0x5, 0xF}},
		{0x40, []uint8{0x0, 0x1, 0x1, 0x2, 0x2, 0x7}},
		{0x60, []uint8{0x0, 0x0, 0x0, 0x1, 0x1, 0x3}},
		{0x00, []uint8{0, 0, 0, 0, 0, 0}},
	}
	for _, tt := range tests {
		a := newTestAPU(nil)
		for i, b := range []uint8{0x01, 0x23, 0x45, 0xF0} {
			a.WriteREGS(WaveRAM+uint16(i), b)
		}
		a.WriteREGS(0xFF1A, 0x80)
		a.WriteREGS(0xFF1C, tt.nr32)
		a.WriteREGS(0xFF1D, 0xFF)
		a.WriteREGS(0xFF1E, 0x87) // freq 0x7FF: 2 dots per sample

		var got []uint8
		for range len(tt.want) {
			a.tickN(2)
			got = append(got, a.Channels[Wave].Output())
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("NR32=%02X: samples mismatch (-want +got):\n%s", tt.nr32, diff)
		}
	}
}

func TestNoisePeriod(t *testing.T) {
	tests := []struct {
		narrow bool
		mask   uint16
		want   int
	}{
		{narrow: false, mask: 0x7FFF, want: 32767},
		{narrow: true, mask: 0x7F, want: 127},
	}
	for _, tt := range tests {
		n := noise{lfsr: 0x7FFF, narrow: tt.narrow}
		got := 0
		for {
			n.clock()
			got++
			if n.lfsr&tt.mask == tt.mask || got > 1<<16 {
				break
			}
		}
		if got != tt.want {
			t.Errorf("narrow=%t: period = %d, want %d", tt.narrow, got, tt.want)
		}
	}
}

func TestLevels(t *testing.T) {
	a := newTestAPU(nil)
	a.WriteREGS(0xFF11, 0x80) // duty 50%: first step high
	a.WriteREGS(0xFF12, 0xF0)
	a.WriteREGS(0xFF14, 0x80)

	tests := []struct {
		nr50, nr51  uint8
		left, right int
	}{
		{0x77, 0x11, 120, 120},
		{0x70, 0x10, 120, 0},
		{0x07, 0x01, 0, 120},
		{0x30, 0x11, 60, 15},
		{0x77, 0x22, 0, 0}, // pulse 2 silent
	}
	for _, tt := range tests {
		a.WriteREGS(NR50, tt.nr50)
		a.WriteREGS(NR51, tt.nr51)
		left, right := a.Levels()
		if left != tt.left || right != tt.right {
			t.Errorf("NR50=%02X NR51=%02X: levels = (%d,%d), want (%d,%d)",
				tt.nr50, tt.nr51, left, right, tt.left, tt.right)
		}
	}
}

type sampleRecorder struct {
	samples []int16
	calls   int
}

func (r *sampleRecorder) WriteSamples(samples []int16) {
	r.samples = append(r.samples, samples...)
	r.calls++
}

func TestMixerOutput(t *testing.T) {
	var rec sampleRecorder
	a := newTestAPU(NewMixer(48000, &rec))

	// ~524Hz square wave.
	a.WriteREGS(0xFF11, 0x80)
	a.WriteREGS(0xFF12, 0xF0)
	a.WriteREGS(0xFF13, 0x06)
	a.WriteREGS(0xFF14, 0x87)
	a.tickN(70224)
	a.EndFrame()

	if rec.calls != 1 {
		t.Fatalf("sink called %d times, want 1", rec.calls)
	}
	if n := len(rec.samples); n < 2*800 || n > 2*806 || n%2 != 0 {
		t.Fatalf("got %d samples, want about 2*804", n)
	}

	var lmin, lmax int16
	for i := 0; i < len(rec.samples); i += 2 {
		lmin = min(lmin, rec.samples[i])
		lmax = max(lmax, rec.samples[i])
	}
	if lmax-lmin < 1000 {
		t.Errorf("left channel amplitude too low: [%d, %d]", lmin, lmax)
	}
}

func TestMixerMuted(t *testing.T) {
	var rec sampleRecorder
	m := NewMixer(44100, &rec)
	m.SetVolume(0)
	a := newTestAPU(m)

	a.WriteREGS(0xFF11, 0x80)
	a.WriteREGS(0xFF12, 0xF0)
	a.WriteREGS(0xFF14, 0x87)
	a.tickN(70224)
	a.EndFrame()

	for i, s := range rec.samples {
		if s != 0 {
			t.Fatalf("sample %d = %d, want 0", i, s)
		}
	}
}

func TestFrameEndsWithoutVBlank(t *testing.T) {
	var rec sampleRecorder
	a := newTestAPU(NewMixer(0, &rec))

	a.WriteREGS(0xFF12, 0xF0)
	a.WriteREGS(0xFF14, 0x80)
	a.tickN(maxFrameDots)
	if rec.calls != 1 {
		t.Errorf("sink called %d times, want 1", rec.calls)
	}
}

func TestResetIdempotent(t *testing.T) {
	a := newTestAPU(nil)
	once := a.State()

	a.WriteREGS(0xFF12, 0xF0)
	a.WriteREGS(0xFF14, 0x80)
	a.WriteREGS(WaveRAM, 0xAB)
	a.tickN(5 * seqPeriod)

	a.Reset()
	a.Reset()
	if diff := cmp.Diff(once, a.State()); diff != "" {
		t.Errorf("state mismatch after reset (-once +twice):\n%s", diff)
	}
}

func TestSetState(t *testing.T) {
	a := newTestAPU(nil)
	a.WriteREGS(0xFF10, 0x12)
	a.WriteREGS(0xFF11, 0x80)
	a.WriteREGS(0xFF12, 0xF3)
	a.WriteREGS(0xFF14, 0x84)
	a.WriteREGS(0xFF21, 0xF0)
	a.WriteREGS(0xFF22, 0x11)
	a.WriteREGS(0xFF23, 0x80)
	a.tickN(3*seqPeriod + 100)

	b := newTestAPU(nil)
	b.SetState(a.State())

	for i := range 4 * seqPeriod {
		a.Tick()
		b.Tick()
		la, ra := a.Levels()
		lb, rb := b.Levels()
		if la != lb || ra != rb {
			t.Fatalf("dot %d: levels diverge: (%d,%d) != (%d,%d)", i, la, ra, lb, rb)
		}
	}
	if diff := cmp.Diff(a.State(), b.State()); diff != "" {
		t.Errorf("state mismatch (-a +b):\n%s", diff)
	}
}

func TestCheckState(t *testing.T) {
	a := newTestAPU(nil)
	a.WriteREGS(0xFF12, 0xF0)
	a.WriteREGS(0xFF14, 0x80)
	a.tickN(1000)
	if err := a.CheckState(a.State()); err != nil {
		t.Fatalf("CheckState rejected a valid state: %v", err)
	}

	tests := []struct {
		name   string
		modify func(s *snapshot.APU)
	}{
		{"pulse-phase", func(s *snapshot.APU) { s.Channels[Pulse1].Phase = 8 }},
		{"wave-phase", func(s *snapshot.APU) { s.Channels[Wave].Phase = 32 }},
		{"noise-phase", func(s *snapshot.APU) { s.Channels[Noise].Phase = 1 }},
		{"negative-timer", func(s *snapshot.APU) { s.Channels[Pulse2].Timer = -1 }},
		{"frequency", func(s *snapshot.APU) { s.Channels[Pulse1].Freq = 0x800 }},
		{"length", func(s *snapshot.APU) { s.Channels[Noise].Length = 65 }},
		{"volume", func(s *snapshot.APU) { s.Channels[Pulse1].Volume = 16 }},
		{"sequencer-step", func(s *snapshot.APU) { s.SeqStep = 8 }},
		{"sequencer-dots", func(s *snapshot.APU) { s.SeqDots = seqPeriod }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := a.State()
			tt.modify(&s)
			if err := a.CheckState(s); err == nil {
				t.Errorf("CheckState accepted an invalid state")
			}
		})
	}
}
