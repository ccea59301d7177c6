package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/himanishpuri/LiveProof/pkg/models"
)

// pcmFormat is the WAVE format tag for integer PCM.
const pcmFormat = 1

// Decoded holds mono samples normalized to [-1, 1].
type Decoded struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the clip length in seconds.
func (d Decoded) Duration() float64 {
	if d.SampleRate <= 0 {
		return 0
	}
	return float64(len(d.Samples)) / float64(d.SampleRate)
}

// DecodeWAV reads an integer PCM WAV stream and downmixes it to mono.
// Every failure wraps models.ErrAudioDecode.
func DecodeWAV(r io.ReadSeeker) (Decoded, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Decoded{}, fmt.Errorf("%w: not a WAV/RIFF stream", models.ErrAudioDecode)
	}
	if dec.WavAudioFormat != pcmFormat {
		return Decoded{}, fmt.Errorf("%w: unsupported WAV audio format %d, only PCM supported", models.ErrAudioDecode, dec.WavAudioFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Decoded{}, fmt.Errorf("%w: reading PCM data: %v", models.ErrAudioDecode, err)
	}

	samples, err := toMonoFloat64(buf, int(dec.BitDepth))
	if err != nil {
		return Decoded{}, fmt.Errorf("%w: %v", models.ErrAudioDecode, err)
	}
	return Decoded{Samples: samples, SampleRate: int(dec.SampleRate)}, nil
}

// ReadWAVFile opens a PCM WAV file and decodes it to mono.
func ReadWAVFile(path string) (Decoded, error) {
	f, err := os.Open(path)
	if err != nil {
		return Decoded{}, fmt.Errorf("%w: %v", models.ErrAudioDecode, err)
	}
	defer f.Close()
	return DecodeWAV(f)
}

// toMonoFloat64 averages interleaved channels and scales by the bit depth.
func toMonoFloat64(buf *goaudio.IntBuffer, bitDepth int) ([]float64, error) {
	if buf == nil || buf.Format == nil {
		return nil, errors.New("missing PCM format")
	}
	channels := buf.Format.NumChannels
	if channels < 1 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}
	if bitDepth < 8 || bitDepth > 32 {
		return nil, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}

	scale := 1.0 / float64(int64(1)<<uint(bitDepth-1))
	// 8-bit WAV is unsigned with a 128 midpoint.
	offset := 0
	if bitDepth == 8 {
		offset = 128
	}

	frames := len(buf.Data) / channels
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c] - offset)
		}
		out[i] = sum / float64(channels) * scale
	}
	return out, nil
}
