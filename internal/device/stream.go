// Package device adapts blocking audio sources to the capture.Stream
// contract.
package device

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/yegors/neurai-voice/internal/audio"
	"github.com/yegors/neurai-voice/pkg/logger"
)

// DefaultQueueSize is the number of chunks a stream buffers ahead of its
// consumer.
const DefaultQueueSize = 64

// ErrReleased is returned by operations on a released stream.
var ErrReleased = errors.New("stream already released")

// Source is a blocking audio input. Read returns the next block of PCM and
// io.EOF once the input is exhausted; any other error means the device was
// lost.
type Source interface {
	Read() ([]byte, error)
	Close() error
}

// Stream runs a single reader goroutine that moves blocks from a Source onto
// a bounded chunk channel.
type Stream struct {
	format audio.Format
	source Source
	logger *logger.Logger

	chunks chan []byte
	stop   chan struct{}
	quit   chan struct{}
	done   chan struct{}

	stopOnce    sync.Once
	releaseOnce sync.Once
	releaseErr  error

	mu       sync.Mutex
	err      error
	released bool
}

// NewStream starts reading from source. queueSize <= 0 uses DefaultQueueSize.
func NewStream(format audio.Format, source Source, queueSize int, log *logger.Logger) *Stream {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	s := &Stream{
		format: format,
		source: source,
		logger: log,
		chunks: make(chan []byte, queueSize),
		stop:   make(chan struct{}),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	go s.run()

	return s
}

func (s *Stream) run() {
	defer close(s.done)
	defer close(s.chunks)

	exhausted := false
	for !exhausted {
		select {
		case <-s.stop:
			return
		case <-s.quit:
			return
		default:
		}

		data, err := s.source.Read()
		if len(data) > 0 {
			select {
			case s.chunks <- data:
			case <-s.quit:
				return
			}
		}

		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.mu.Lock()
				s.err = err
				s.mu.Unlock()
				s.logger.Error("Audio source failed", logger.Error(err))
				return
			}
			exhausted = true
		}
	}

	// An exhausted source behaves like a silent microphone until stopped.
	s.logger.Debug("Audio source exhausted, waiting for stop")
	select {
	case <-s.stop:
	case <-s.quit:
	}
}

// Format returns the stream's PCM format
func (s *Stream) Format() audio.Format {
	return s.format
}

// Chunks returns the channel of captured blocks
func (s *Stream) Chunks() <-chan []byte {
	return s.chunks
}

// SignalStop asks the reader to finish the block in progress and close the
// channel.
func (s *Stream) SignalStop() error {
	s.mu.Lock()
	released := s.released
	s.mu.Unlock()
	if released {
		return ErrReleased
	}

	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

// Err reports why the source stopped early, if it did
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Release stops the reader and closes the source. It never waits on the
// consumer, only on the block being read.
func (s *Stream) Release() error {
	s.releaseOnce.Do(func() {
		s.mu.Lock()
		s.released = true
		s.mu.Unlock()

		close(s.quit)
		<-s.done

		if err := s.source.Close(); err != nil {
			s.releaseErr = fmt.Errorf("failed to close audio source: %w", err)
		}
	})
	return s.releaseErr
}
