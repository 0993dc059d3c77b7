// Package audio assembles captured PCM chunks into payloads and converts
// them to and from the WAV container used on the wire.
package audio

import (
	"fmt"
	"time"
)

// EncodingPCM16 is signed 16-bit little-endian linear PCM.
const EncodingPCM16 = "pcm_s16le"

// Format declares the sample characteristics of raw audio.
type Format struct {
	Encoding      string `json:"encoding" toml:"encoding"`
	SampleRate    int    `json:"sample_rate" toml:"sample_rate"`
	Channels      int    `json:"channels" toml:"channels"`
	BitsPerSample int    `json:"bits_per_sample" toml:"bits_per_sample"`
}

// DefaultFormat is 16 kHz mono PCM16, what speech recognizers expect.
var DefaultFormat = Format{
	Encoding:      EncodingPCM16,
	SampleRate:    16000,
	Channels:      1,
	BitsPerSample: 16,
}

// Validate checks that the format describes something we can encode.
func (f Format) Validate() error {
	if f.Encoding != EncodingPCM16 {
		return fmt.Errorf("unsupported encoding %q", f.Encoding)
	}
	if f.SampleRate < 8000 || f.SampleRate > 48000 {
		return fmt.Errorf("sample rate must be between 8000 and 48000 Hz, got %d", f.SampleRate)
	}
	if f.Channels != 1 {
		return fmt.Errorf("only mono audio is supported, got %d channels", f.Channels)
	}
	if f.BitsPerSample != 16 {
		return fmt.Errorf("bits per sample must be 16, got %d", f.BitsPerSample)
	}
	return nil
}

// BlockAlign is the size in bytes of one frame (one sample per channel).
func (f Format) BlockAlign() int {
	return f.Channels * f.BitsPerSample / 8
}

// ByteRate is the number of bytes per second of audio.
func (f Format) ByteRate() int {
	return f.SampleRate * f.BlockAlign()
}

// Duration returns how long n bytes of audio in this format play for.
func (f Format) Duration(n int) time.Duration {
	rate := f.ByteRate()
	if rate == 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(rate)
}

// BytesFor returns the number of bytes needed to hold d of audio, rounded
// down to a whole frame.
func (f Format) BytesFor(d time.Duration) int {
	align := f.BlockAlign()
	if align == 0 {
		return 0
	}
	n := int(int64(f.ByteRate()) * int64(d) / int64(time.Second))
	return n - n%align
}
