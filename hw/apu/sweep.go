package apu

// sweep periodically adjusts the frequency of the first pulse channel.
type sweep struct {
	period uint8
	negate bool
	shift  uint8

	enabled bool
	timer   uint8
	shadow  uint16 // frequency shadow register
}

// load decodes NR10.
func (sw *sweep) load(val uint8) {
	sw.period = (val >> 4) & 0x07
	sw.negate = val&0x08 != 0
	sw.shift = val & 0x07
}

func (sw *sweep) reload() {
	sw.timer = sw.period
	if sw.timer == 0 {
		sw.timer = 8
	}
}

// target computes the next frequency. It reports false when the result
// overflows the 11-bit frequency range.
func (sw *sweep) target() (uint16, bool) {
	delta := sw.shadow >> sw.shift
	if sw.negate {
		return sw.shadow - delta, true
	}
	freq := sw.shadow + delta
	return freq, freq <= 0x7FF
}

// trigger restarts the sweep from freq. It reports false if the initial
// overflow check fails.
func (sw *sweep) trigger(freq uint16) bool {
	sw.shadow = freq
	sw.reload()
	sw.enabled = sw.period != 0 || sw.shift != 0
	if sw.shift != 0 {
		_, ok := sw.target()
		return ok
	}
	return true
}

// tick clocks the sweep unit. It returns the new frequency, if any, and
// reports false when the channel must be disabled.
func (sw *sweep) tick() (freq uint16, update, ok bool) {
	if sw.timer > 0 {
		sw.timer--
	}
	if sw.timer != 0 {
		return 0, false, true
	}

	sw.reload()
	if !sw.enabled || sw.period == 0 {
		return 0, false, true
	}

	freq, ok = sw.target()
	if !ok {
		return 0, false, false
	}
	if sw.shift == 0 {
		return 0, false, true
	}

	sw.shadow = freq
	// The new frequency is checked again, without being stored.
	_, ok = sw.target()
	return freq, true, ok
}

func (sw *sweep) reset() {
	*sw = sweep{}
}
