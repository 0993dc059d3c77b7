package audio

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrBufferFull is returned by Append when a chunk would push the buffer past
// its byte limit.
var ErrBufferFull = errors.New("audio buffer limit reached")

// ErrNoAudio is returned by Payload when nothing was captured.
var ErrNoAudio = errors.New("no audio captured")

// Buffer accumulates raw chunks in arrival order for a single session.
// It has a single writer and is not safe for concurrent use.
type Buffer struct {
	format   Format
	maxBytes int
	data     *bytes.Buffer
	chunks   int
}

// BufferStats represents buffer statistics for logging
type BufferStats struct {
	Chunks   int `json:"chunks"`
	Bytes    int `json:"bytes"`
	MaxBytes int `json:"max_bytes"`
}

// NewBuffer creates a buffer for audio in the given format. maxBytes <= 0
// means no limit.
func NewBuffer(format Format, maxBytes int) *Buffer {
	return &Buffer{
		format:   format,
		maxBytes: maxBytes,
		data:     bytes.NewBuffer(make([]byte, 0, format.ByteRate()*2)),
	}
}

// Append copies chunk onto the end of the buffer. Empty chunks are ignored.
func (b *Buffer) Append(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	if b.maxBytes > 0 && b.data.Len()+len(chunk) > b.maxBytes {
		return fmt.Errorf("%w: %d bytes buffered, chunk of %d exceeds %d",
			ErrBufferFull, b.data.Len(), len(chunk), b.maxBytes)
	}
	b.data.Write(chunk)
	b.chunks++
	return nil
}

// Len returns the number of buffered bytes.
func (b *Buffer) Len() int {
	return b.data.Len()
}

// Chunks returns the number of chunks appended so far.
func (b *Buffer) Chunks() int {
	return b.chunks
}

// Stats returns current buffer statistics
func (b *Buffer) Stats() BufferStats {
	return BufferStats{
		Chunks:   b.chunks,
		Bytes:    b.data.Len(),
		MaxBytes: b.maxBytes,
	}
}

// Payload concatenates the buffered chunks into an immutable payload.
func (b *Buffer) Payload() (Payload, error) {
	if b.data.Len() == 0 {
		return Payload{}, ErrNoAudio
	}
	if err := b.format.Validate(); err != nil {
		return Payload{}, fmt.Errorf("invalid capture format: %w", err)
	}
	if align := b.format.BlockAlign(); b.data.Len()%align != 0 {
		return Payload{}, fmt.Errorf("captured %d bytes, not a multiple of the %d byte frame size",
			b.data.Len(), align)
	}
	return NewPayload(b.data.Bytes(), b.format), nil
}

// Reset discards all buffered audio.
func (b *Buffer) Reset() {
	b.data.Reset()
	b.chunks = 0
}
