package audio

import (
	"bytes"
	"fmt"
)

// Chunker slices a continuous PCM stream into fixed-duration chunks, the way
// a capture device hands audio over.
type Chunker struct {
	format      Format
	chunkSizeMs int
	chunkBytes  int
	buffer      *bytes.Buffer
}

// NewChunker creates a chunker producing chunkSizeMs-long chunks.
func NewChunker(format Format, chunkSizeMs int) (*Chunker, error) {
	if chunkSizeMs <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d ms", chunkSizeMs)
	}
	bytesPerMs := format.ByteRate() / 1000
	chunkBytes := chunkSizeMs * bytesPerMs
	if align := format.BlockAlign(); align > 0 {
		chunkBytes -= chunkBytes % align
	}
	if chunkBytes <= 0 {
		return nil, fmt.Errorf("chunk of %d ms holds no whole frame", chunkSizeMs)
	}

	return &Chunker{
		format:      format,
		chunkSizeMs: chunkSizeMs,
		chunkBytes:  chunkBytes,
		buffer:      bytes.NewBuffer(nil),
	}, nil
}

// ChunkBytes returns the size of every full chunk.
func (c *Chunker) ChunkBytes() int {
	return c.chunkBytes
}

// Write adds data and returns every full chunk now available.
func (c *Chunker) Write(data []byte) ([][]byte, error) {
	if _, err := c.buffer.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}

	var chunks [][]byte
	for c.buffer.Len() >= c.chunkBytes {
		chunk := make([]byte, c.chunkBytes)
		if _, err := c.buffer.Read(chunk); err != nil {
			return nil, fmt.Errorf("failed to read from buffer: %w", err)
		}
		chunks = append(chunks, chunk)
	}

	return chunks, nil
}

// Flush returns whatever partial chunk remains, or nil.
func (c *Chunker) Flush() []byte {
	if c.buffer.Len() == 0 {
		return nil
	}
	rest := make([]byte, c.buffer.Len())
	copy(rest, c.buffer.Bytes())
	c.buffer.Reset()
	return rest
}

// Reset resets the buffer
func (c *Chunker) Reset() {
	c.buffer.Reset()
}
