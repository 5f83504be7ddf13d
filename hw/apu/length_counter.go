package apu

// lengthCounter silences its channel once it reaches 0, if enabled.
type lengthCounter struct {
	max     int // 64, or 256 for the wave channel
	counter int
	enabled bool
}

// load sets the counter from the NRx1 length field.
func (lc *lengthCounter) load(val uint8) {
	lc.counter = lc.max - int(val)
}

// trigger reloads an expired counter.
func (lc *lengthCounter) trigger() {
	if lc.counter == 0 {
		lc.counter = lc.max
	}
}

// tick clocks the counter and reports whether it just expired.
func (lc *lengthCounter) tick() bool {
	if !lc.enabled || lc.counter == 0 {
		return false
	}
	lc.counter--
	return lc.counter == 0
}

func (lc *lengthCounter) reset() {
	lc.counter = 0
	lc.enabled = false
}
