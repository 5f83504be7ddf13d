package emu

import (
	"io"

	"dotmatrix/emu/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WavSink records the interleaved stereo sample stream to a 16-bit PCM WAV
// file.
type WavSink struct {
	enc *wav.Encoder
	buf *audio.IntBuffer
	err error
}

func NewWavSink(w io.WriteSeeker, sampleRate int) *WavSink {
	const pcm = 1
	return &WavSink{
		enc: wav.NewEncoder(w, sampleRate, 16, 2, pcm),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 2, SampleRate: sampleRate},
			SourceBitDepth: 16,
		},
	}
}

// WriteSamples implements apu.AudioSink. After the first write error, samples
// are dropped.
func (s *WavSink) WriteSamples(samples []int16) {
	if s.err != nil {
		return
	}
	s.buf.Data = s.buf.Data[:0]
	for _, v := range samples {
		s.buf.Data = append(s.buf.Data, int(v))
	}
	if err := s.enc.Write(s.buf); err != nil {
		s.err = err
		log.ModSound.WarnZ("failed to write wav samples").Error("err", err).End()
	}
}

// Close finalizes the WAV header. It doesn't close the underlying writer.
func (s *WavSink) Close() error {
	if err := s.enc.Close(); err != nil {
		return err
	}
	return s.err
}
