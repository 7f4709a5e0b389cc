// Package audio converts WAV files into the float sample buffers the decoder
// consumes.
package audio

import (
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

// DecodeFile reads a PCM WAV file and returns normalized float32 samples in
// [-1,1) plus the source sample rate. Multi-channel audio is downmixed by
// averaging channels.
func DecodeFile(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode wav: %w", err)
	}
	if buf == nil || buf.Format == nil {
		return nil, 0, fmt.Errorf("wav file has no pcm data")
	}

	bitDepth := int(decoder.BitDepth)
	if bitDepth == 0 {
		bitDepth = 16
	}
	scale := float32(int64(1) << (bitDepth - 1))

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}
	frames := len(buf.Data) / channels
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += float32(buf.Data[i*channels+c]) / scale
		}
		samples[i] = sum / float32(channels)
	}

	return samples, buf.Format.SampleRate, nil
}
