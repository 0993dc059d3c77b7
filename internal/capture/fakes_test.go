package capture

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yegors/neurai-voice/internal/audio"
	"github.com/yegors/neurai-voice/internal/voice"
)

// fakeDevice counts acquisitions and releases across every stream it hands out.
type fakeDevice struct {
	acquireErr error
	format     audio.Format
	// holdFlush keeps the chunk channel open after SignalStop until flush is called
	holdFlush bool
	// prefill queues this many 320-byte chunks before Acquire returns
	prefill int

	acquires atomic.Int32
	releases atomic.Int32

	mu      sync.Mutex
	streams []*fakeStream
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{format: audio.DefaultFormat}
}

func (d *fakeDevice) Acquire(ctx context.Context) (Stream, error) {
	if d.acquireErr != nil {
		return nil, d.acquireErr
	}
	d.acquires.Add(1)

	s := &fakeStream{
		device: d,
		chunks: make(chan []byte, 1024),
	}
	for i := 0; i < d.prefill; i++ {
		s.chunks <- make([]byte, 320)
	}
	d.mu.Lock()
	d.streams = append(d.streams, s)
	d.mu.Unlock()
	return s, nil
}

func (d *fakeDevice) current() *fakeStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streams[len(d.streams)-1]
}

type fakeStream struct {
	device *fakeDevice
	chunks chan []byte

	mu       sync.Mutex
	closed   bool
	stopped  bool
	released int
	err      error
	stopErr  error
}

func (s *fakeStream) Format() audio.Format  { return s.device.format }
func (s *fakeStream) Chunks() <-chan []byte { return s.chunks }

func (s *fakeStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// emit queues a chunk as if the device captured it. It reports false once
// the device stopped delivering.
func (s *fakeStream) emit(chunk []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.stopped {
		return false
	}
	s.chunks <- chunk
	return true
}

func (s *fakeStream) closeLocked() {
	if !s.closed {
		s.closed = true
		close(s.chunks)
	}
}

func (s *fakeStream) SignalStop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopErr != nil {
		return s.stopErr
	}
	s.stopped = true
	if !s.device.holdFlush {
		s.closeLocked()
	}
	return nil
}

// flush finishes a held stop.
func (s *fakeStream) flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

// lose simulates a hardware disconnect.
func (s *fakeStream) lose(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	s.closeLocked()
}

func (s *fakeStream) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released++
	s.device.releases.Add(1)
	s.closeLocked()
	return nil
}

func (s *fakeStream) releaseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// transcriberFunc adapts a function to the Transcriber interface.
type transcriberFunc func(ctx context.Context, payload audio.Payload) (string, error)

func (f transcriberFunc) Transcribe(ctx context.Context, payload audio.Payload) (string, error) {
	return f(ctx, payload)
}

func staticTranscriber(text string, err error) transcriberFunc {
	return func(ctx context.Context, payload audio.Payload) (string, error) {
		return text, err
	}
}

var errUnplugged = errors.New("usb device unplugged")

func waitForStatus(t *testing.T, c *Controller, want voice.Status) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Status().Status == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("Timed out waiting for status %s, last status %s", want, c.Status().Status)
}

func waitForBytes(t *testing.T, c *Controller, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Status().CapturedBytes == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %d captured bytes, have %d", want, c.Status().CapturedBytes)
}
