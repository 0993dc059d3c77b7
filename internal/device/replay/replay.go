// Package replay plays a WAV file through the capture device interface, in
// real time, as if it were spoken into a microphone.
package replay

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/yegors/neurai-voice/internal/audio"
	"github.com/yegors/neurai-voice/internal/capture"
	"github.com/yegors/neurai-voice/internal/device"
	"github.com/yegors/neurai-voice/pkg/logger"
)

// Config contains replay device configuration
type Config struct {
	Path        string
	ChunkSizeMs int
	// Realtime paces chunks at playback speed; off delivers as fast as the
	// consumer reads.
	Realtime  bool
	QueueSize int
}

// Device replays one decoded WAV file per Acquire
type Device struct {
	config  Config
	payload audio.Payload
	logger  *logger.Logger

	mu   sync.Mutex
	busy bool
}

var _ capture.Device = (*Device)(nil)

// New loads and decodes the WAV file at config.Path
func New(config Config, log *logger.Logger) (*Device, error) {
	data, err := os.ReadFile(config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read replay file: %w", err)
	}
	return NewFromWAV(data, config, log)
}

// NewFromWAV builds a replay device from in-memory WAV data
func NewFromWAV(data []byte, config Config, log *logger.Logger) (*Device, error) {
	payload, err := audio.DecodeWAV(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode replay file: %w", err)
	}
	if err := payload.Format().Validate(); err != nil {
		return nil, fmt.Errorf("unsupported replay file: %w", err)
	}
	if config.ChunkSizeMs <= 0 {
		config.ChunkSizeMs = 100
	}

	d := &Device{
		config:  config,
		payload: payload,
		logger:  log.Named("replay-device"),
	}

	d.logger.Info("Replay device ready",
		logger.String("path", config.Path),
		logger.Duration("duration", payload.Duration()),
		logger.Int("sample_rate", payload.Format().SampleRate))

	return d, nil
}

// Acquire opens the file for one recording. Only one stream may be open.
func (d *Device) Acquire(ctx context.Context) (capture.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.busy {
		return nil, fmt.Errorf("replay device is busy")
	}

	chunker, err := audio.NewChunker(d.payload.Format(), d.config.ChunkSizeMs)
	if err != nil {
		return nil, err
	}

	blocks, err := chunker.Write(d.payload.Bytes())
	if err != nil {
		return nil, err
	}
	if rest := chunker.Flush(); rest != nil {
		blocks = append(blocks, rest)
	}

	src := &source{
		device: d,
		blocks: blocks,
	}
	if d.config.Realtime {
		src.interval = time.Duration(d.config.ChunkSizeMs) * time.Millisecond
	}

	d.busy = true
	d.logger.Debug("Replay stream opened", logger.Int("chunks", len(blocks)))

	return device.NewStream(d.payload.Format(), src, d.config.QueueSize, d.logger), nil
}

func (d *Device) releaseBusy() {
	d.mu.Lock()
	d.busy = false
	d.mu.Unlock()
}

// source hands out pre-cut blocks, optionally paced.
type source struct {
	device   *Device
	blocks   [][]byte
	interval time.Duration
	next     time.Time
}

func (s *source) Read() ([]byte, error) {
	if len(s.blocks) == 0 {
		return nil, io.EOF
	}

	if s.interval > 0 {
		now := time.Now()
		if s.next.IsZero() {
			s.next = now
		}
		if wait := s.next.Sub(now); wait > 0 {
			time.Sleep(wait)
		}
		s.next = s.next.Add(s.interval)
	}

	block := s.blocks[0]
	s.blocks = s.blocks[1:]
	return block, nil
}

func (s *source) Close() error {
	s.device.releaseBusy()
	return nil
}
