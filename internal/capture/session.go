package capture

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/yegors/neurai-voice/internal/audio"
	"github.com/yegors/neurai-voice/pkg/logger"
)

// session is one start-to-finish recording attempt.
type session struct {
	id        string
	stream    Stream
	format    audio.Format
	buffer    *audio.Buffer
	startedAt time.Time
	logger    *logger.Logger

	// closed by the pump once the chunk channel is drained
	done chan struct{}
	// written by the pump before done is closed
	overflow error

	captured atomic.Int64

	releaseOnce sync.Once
	releaseErr  error
}

func newSession(stream Stream, maxBytes int, log *logger.Logger) *session {
	id := uuid.NewString()
	format := stream.Format()
	return &session{
		id:        id,
		stream:    stream,
		format:    format,
		buffer:    audio.NewBuffer(format, maxBytes),
		startedAt: time.Now(),
		logger:    log.WithSessionID(id),
		done:      make(chan struct{}),
	}
}

// release gives the device back. Only the first call reaches the device.
func (s *session) release() error {
	s.releaseOnce.Do(func() {
		s.releaseErr = s.stream.Release()
		if s.releaseErr != nil {
			s.logger.Warn("Failed to release audio device", logger.Error(s.releaseErr))
		} else {
			s.logger.Debug("Audio device released")
		}
	})
	return s.releaseErr
}

// capturedBytes is safe to call from any goroutine.
func (s *session) capturedBytes() int {
	return int(s.captured.Load())
}
