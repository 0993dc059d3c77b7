package audio

import (
	"io"
	"time"
)

// Payload is a finalized, immutable audio buffer ready for transmission.
type Payload struct {
	data   []byte
	format Format
}

// NewPayload copies data into a new payload.
func NewPayload(data []byte, format Format) Payload {
	owned := make([]byte, len(data))
	copy(owned, data)
	return Payload{data: owned, format: format}
}

// Format returns the declared encoding of the payload.
func (p Payload) Format() Format {
	return p.format
}

// Len returns the payload size in bytes.
func (p Payload) Len() int {
	return len(p.data)
}

// Duration returns the playback length of the payload.
func (p Payload) Duration() time.Duration {
	return p.format.Duration(len(p.data))
}

// Bytes returns a copy of the raw audio.
func (p Payload) Bytes() []byte {
	out := make([]byte, len(p.data))
	copy(out, p.data)
	return out
}

// WriteTo writes the raw audio to w without copying it.
func (p Payload) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(p.data)
	return int64(n), err
}
