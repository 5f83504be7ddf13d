package apu

// Kind identifies the synthesizer variant of a Channel.
type Kind uint8

const (
	Pulse1 Kind = iota // pulse with frequency sweep
	Pulse2
	Wave
	Noise
)

var kindNames = [...]string{"pulse1", "pulse2", "wave", "noise"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// AudioSink receives the interleaved stereo samples produced at the end of
// each audio frame.
type AudioSink interface {
	WriteSamples(samples []int16)
}
