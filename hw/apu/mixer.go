package apu

import (
	"github.com/arl/blip"
)

const (
	MaxSampleRate     = 96000
	DefaultSampleRate = 48000

	maxSamplesPerFrame = blip.MaxFrame

	// Amplitude of one level unit. Levels go up to 4 channels x 15 x 8 per
	// side.
	levelScale = 64
)

// Mixer converts the APU output levels into 16-bit stereo samples, through
// band-limited resampling.
type Mixer struct {
	outbuf   [maxSamplesPerFrame * 2]int16
	bufleft  *blip.Buffer
	bufright *blip.Buffer

	prevLeft  int32
	prevRight int32

	sampleRate int
	volume     float64

	sink AudioSink
}

// NewMixer creates a mixer producing samples at sampleRate Hz. At each frame
// end, the samples are written to sink (if not nil).
func NewMixer(sampleRate int, sink AudioSink) *Mixer {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	m := &Mixer{
		bufleft:    blip.NewBuffer(maxSamplesPerFrame),
		bufright:   blip.NewBuffer(maxSamplesPerFrame),
		sampleRate: min(sampleRate, MaxSampleRate),
		volume:     1.0,
		sink:       sink,
	}
	m.Reset()
	return m
}

func (m *Mixer) SampleRate() int { return m.sampleRate }

// SetVolume sets the master volume, from 0 to 1.
func (m *Mixer) SetVolume(vol float64) {
	m.volume = max(0, min(vol, 1))
}

func (m *Mixer) Reset() {
	m.prevLeft = 0
	m.prevRight = 0
	m.bufleft.Clear()
	m.bufright.Clear()
	m.bufleft.SetRates(ClockRate, float64(m.sampleRate))
	m.bufright.SetRates(ClockRate, float64(m.sampleRate))
}

// AddSample records the output levels at the given time, in dots since the
// start of the frame.
func (m *Mixer) AddSample(time, left, right int) {
	l := int32(float64(left*levelScale) * m.volume)
	if l != m.prevLeft {
		m.bufleft.AddDelta(uint64(time), l-m.prevLeft)
		m.prevLeft = l
	}
	r := int32(float64(right*levelScale) * m.volume)
	if r != m.prevRight {
		m.bufright.AddDelta(uint64(time), r-m.prevRight)
		m.prevRight = r
	}
}

// EndFrame ends an audio frame of the given duration (in dots) and writes
// the interleaved samples to the sink. The slice passed to the sink is only
// valid during the call.
func (m *Mixer) EndFrame(time int) {
	m.bufleft.EndFrame(time)
	m.bufright.EndFrame(time)

	n := m.bufleft.ReadSamples(m.outbuf[:], maxSamplesPerFrame, blip.Stereo)
	m.bufright.ReadSamples(m.outbuf[1:], maxSamplesPerFrame, blip.Stereo)
	if n == 0 || m.sink == nil {
		return
	}
	m.sink.WriteSamples(m.outbuf[:n*2])
}
