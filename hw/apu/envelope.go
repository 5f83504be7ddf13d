package apu

// envelope periodically raises or lowers the volume of a pulse or noise
// channel.
type envelope struct {
	initial uint8
	up      bool
	period  uint8

	volume uint8
	timer  uint8
}

// load decodes NRx2.
func (env *envelope) load(val uint8) {
	env.initial = val >> 4
	env.up = val&0x08 != 0
	env.period = val & 0x07
}

func (env *envelope) trigger() {
	env.volume = env.initial
	env.timer = env.period
}

func (env *envelope) tick() {
	if env.period == 0 {
		return
	}
	if env.timer > 0 {
		env.timer--
	}
	if env.timer != 0 {
		return
	}

	env.timer = env.period
	switch {
	case env.up && env.volume < 15:
		env.volume++
	case !env.up && env.volume > 0:
		env.volume--
	}
}

func (env *envelope) reset() {
	*env = envelope{}
}
