// Package mic captures from the default system input through PortAudio.
package mic

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/yegors/neurai-voice/internal/audio"
	"github.com/yegors/neurai-voice/internal/capture"
	"github.com/yegors/neurai-voice/internal/device"
	"github.com/yegors/neurai-voice/pkg/logger"
)

// Config contains microphone configuration
type Config struct {
	SampleRate  int
	ChunkSizeMs int
	QueueSize   int
}

// Device is the default PortAudio input
type Device struct {
	config Config
	format audio.Format
	logger *logger.Logger

	mu   sync.Mutex
	busy bool
}

var _ capture.Device = (*Device)(nil)

// New creates a microphone device. Nothing is opened until Acquire.
func New(config Config, log *logger.Logger) (*Device, error) {
	if config.SampleRate == 0 {
		config.SampleRate = audio.DefaultFormat.SampleRate
	}
	if config.ChunkSizeMs <= 0 {
		config.ChunkSizeMs = 100
	}

	format := audio.DefaultFormat
	format.SampleRate = config.SampleRate
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid microphone format: %w", err)
	}

	return &Device{
		config: config,
		format: format,
		logger: log.Named("mic-device"),
	}, nil
}

// Acquire opens and starts the default input stream
func (d *Device) Acquire(ctx context.Context) (capture.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.busy {
		return nil, fmt.Errorf("microphone is busy")
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	frames := d.format.SampleRate * d.config.ChunkSizeMs / 1000
	in := make([]int16, frames*d.format.Channels)

	stream, err := portaudio.OpenDefaultStream(d.format.Channels, 0, float64(d.format.SampleRate), frames, in)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to start input stream: %w", err)
	}

	d.busy = true
	d.logger.Info("Microphone opened",
		logger.Int("sample_rate", d.format.SampleRate),
		logger.Int("frames_per_buffer", frames))

	src := &source{device: d, stream: stream, in: in}
	return device.NewStream(d.format, src, d.config.QueueSize, d.logger), nil
}

// source reads one PortAudio buffer per call.
type source struct {
	device *Device
	stream *portaudio.Stream
	in     []int16
}

func (s *source) Read() ([]byte, error) {
	if err := s.stream.Read(); err != nil {
		if !errors.Is(err, portaudio.InputOverflowed) {
			return nil, fmt.Errorf("microphone read failed: %w", err)
		}
		s.device.logger.Debug("Input overflowed, samples dropped by the driver")
	}

	block := make([]byte, len(s.in)*2)
	for i, sample := range s.in {
		binary.LittleEndian.PutUint16(block[i*2:], uint16(sample))
	}
	return block, nil
}

func (s *source) Close() error {
	defer func() {
		s.device.mu.Lock()
		s.device.busy = false
		s.device.mu.Unlock()
	}()

	var errs []error
	if err := s.stream.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop input stream: %w", err))
	}
	if err := s.stream.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close input stream: %w", err))
	}
	if err := portaudio.Terminate(); err != nil {
		errs = append(errs, fmt.Errorf("failed to terminate portaudio: %w", err))
	}

	s.device.logger.Info("Microphone released")
	return errors.Join(errs...)
}
