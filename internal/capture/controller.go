package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/yegors/neurai-voice/internal/audio"
	"github.com/yegors/neurai-voice/internal/voice"
	"github.com/yegors/neurai-voice/pkg/logger"
)

// Config bounds a recording session
type Config struct {
	// MaxDuration caps how much audio one session may buffer. Zero disables it.
	MaxDuration time.Duration
	// MaxPayloadBytes is an absolute cap on buffered audio. Zero disables it.
	MaxPayloadBytes int
	// FlushTimeout bounds the wait for the device to hand over queued chunks
	// after the stop signal. Zero waits until the device closes its stream.
	FlushTimeout time.Duration
}

// State is a snapshot of the controller for polling callers
type State struct {
	Status           voice.Status
	SessionID        string
	StartedAt        time.Time
	CapturedBytes    int
	CapturedDuration time.Duration
	LastError        error
}

// Observer is notified once per finished session.
type Observer func(voice.Summary)

// Option configures a Controller
type Option func(*Controller)

// WithObserver registers a callback for finished sessions. Observers run on
// the goroutine that finished the session, after the controller lock is
// released.
func WithObserver(fn Observer) Option {
	return func(c *Controller) {
		c.observers = append(c.observers, fn)
	}
}

// Controller owns the microphone and the recording state machine. At most
// one session is active at a time; the controller is reusable after a
// session completes or fails.
type Controller struct {
	device      Device
	transcriber Transcriber
	config      Config
	logger      *logger.Logger
	observers   []Observer

	mu        sync.Mutex
	status    voice.Status
	acquiring bool
	session   *session
	lastID    string
	lastStart time.Time
	lastBytes int
	lastErr   error
}

// NewController creates a capture controller
func NewController(device Device, transcriber Transcriber, config Config, log *logger.Logger, opts ...Option) (*Controller, error) {
	if device == nil {
		return nil, fmt.Errorf("device cannot be nil")
	}
	if transcriber == nil {
		return nil, fmt.Errorf("transcriber cannot be nil")
	}
	if config.MaxDuration < 0 || config.MaxPayloadBytes < 0 || config.FlushTimeout < 0 {
		return nil, fmt.Errorf("capture limits cannot be negative")
	}

	c := &Controller{
		device:      device,
		transcriber: transcriber,
		config:      config,
		logger:      log.Named("capture-controller"),
		status:      voice.StatusIdle,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Start acquires the device and begins buffering audio.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.acquiring {
		c.mu.Unlock()
		return voice.Errorf(voice.KindInvalidState, "start", "device acquisition already in progress")
	}
	if c.session != nil {
		status, id := c.status, c.session.id
		c.mu.Unlock()
		return voice.Errorf(voice.KindInvalidState, "start", "session %s is still %s", id, status)
	}
	c.acquiring = true
	c.mu.Unlock()

	stream, err := c.device.Acquire(ctx)

	c.mu.Lock()
	c.acquiring = false
	if err != nil {
		c.status = voice.StatusIdle
		c.lastID = ""
		derr := voice.NewError(voice.KindDevice, "start", err)
		c.lastErr = derr
		c.mu.Unlock()
		c.logger.Warn("Failed to acquire audio device", logger.Error(err))
		return derr
	}

	format := stream.Format()
	if err := format.Validate(); err != nil {
		c.status = voice.StatusIdle
		c.lastID = ""
		derr := voice.NewError(voice.KindDevice, "start", fmt.Errorf("unsupported device format: %w", err))
		c.lastErr = derr
		c.mu.Unlock()
		if relErr := stream.Release(); relErr != nil {
			c.logger.Warn("Failed to release rejected device", logger.Error(relErr))
		}
		return derr
	}

	maxBytes := c.maxBytes(format)
	s := newSession(stream, maxBytes, c.logger)
	c.session = s
	c.status = voice.StatusRecording
	c.lastID = s.id
	c.lastStart = s.startedAt
	c.lastBytes = 0
	c.lastErr = nil
	c.mu.Unlock()

	// s.buffer belongs to the pump from here until s.done is closed.
	go c.pump(s)

	s.logger.Info("Recording started",
		logger.Int("sample_rate", format.SampleRate),
		logger.Int("channels", format.Channels),
		logger.Int("max_bytes", maxBytes))

	return nil
}

// maxBytes combines the duration and absolute caps; the smaller one wins.
func (c *Controller) maxBytes(format audio.Format) int {
	limit := c.config.MaxPayloadBytes
	if c.config.MaxDuration > 0 {
		byDuration := format.BytesFor(c.config.MaxDuration)
		if limit == 0 || byDuration < limit {
			limit = byDuration
		}
	}
	return limit
}

// pump is the single consumer of the session's chunk channel. It runs until
// the device closes the channel.
func (c *Controller) pump(s *session) {
	defer close(s.done)

	for chunk := range s.stream.Chunks() {
		if s.overflow != nil {
			continue
		}
		if err := s.buffer.Append(chunk); err != nil {
			s.overflow = err
			c.abort(s, voice.NewError(voice.KindEncoding, "record", err))
			continue
		}
		s.captured.Add(int64(len(chunk)))
	}

	if s.overflow != nil {
		return
	}
	if err := s.stream.Err(); err != nil {
		c.abort(s, voice.NewError(voice.KindDevice, "record", fmt.Errorf("audio device lost: %w", err)))
		return
	}
	c.abort(s, voice.Errorf(voice.KindDevice, "record", "audio device stopped delivering audio"))
}

// abort fails a session that is still Recording. It is a no-op once Stop has
// taken over the session.
func (c *Controller) abort(s *session, err *voice.Error) {
	c.mu.Lock()
	if c.session != s || c.status != voice.StatusRecording {
		c.mu.Unlock()
		return
	}
	c.status = voice.StatusFinalizing
	c.mu.Unlock()

	s.logger.Error("Recording aborted", logger.Error(err))
	c.fail(s, err)
}

// Stop ends the recording, hands the payload to the transcriber and returns
// its result. The device is released before the transcriber is called.
func (c *Controller) Stop(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.session == nil || c.status != voice.StatusRecording {
		status := c.status
		c.mu.Unlock()
		return "", voice.Errorf(voice.KindInvalidState, "stop", "no recording in progress (status %s)", status)
	}
	s := c.session
	c.status = voice.StatusFinalizing
	c.mu.Unlock()

	s.logger.Debug("Stopping recording")

	if err := s.stream.SignalStop(); err != nil {
		return "", c.fail(s, voice.NewError(voice.KindDevice, "stop", fmt.Errorf("failed to signal device stop: %w", err)))
	}

	// A caller that gives up mid-stop does not abort the flush; only
	// FlushTimeout bounds it.
	flushCtx := context.WithoutCancel(ctx)
	if c.config.FlushTimeout > 0 {
		var cancel context.CancelFunc
		flushCtx, cancel = context.WithTimeout(flushCtx, c.config.FlushTimeout)
		defer cancel()
	}

	select {
	case <-s.done:
	case <-flushCtx.Done():
		return "", c.fail(s, voice.NewError(voice.KindDevice, "stop",
			fmt.Errorf("device did not flush queued audio: %w", flushCtx.Err())))
	}

	payload, assembleErr := c.assemble(s)
	s.release()
	if assembleErr != nil {
		return "", c.finish(s, "", assembleErr)
	}

	c.mu.Lock()
	c.status = voice.StatusProcessing
	c.mu.Unlock()

	s.logger.Info("Recording finalized, transcribing",
		logger.Int("bytes", payload.Len()),
		logger.Int("chunks", s.buffer.Chunks()),
		logger.Duration("audio_duration", payload.Duration()))

	// The exchange is not cancellable once handed off; the client timeout
	// bounds it and callers that give up just drop the result.
	text, err := c.transcriber.Transcribe(context.WithoutCancel(ctx), payload)
	if err != nil {
		return "", c.finish(s, "", classify(err))
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", c.finish(s, "", voice.Errorf(voice.KindEmptyResult, "transcribe", "no speech recognized"))
	}

	return text, c.finish(s, text, nil)
}

// assemble builds the payload once the pump has drained the device. Anything
// the transcriber could not encode fails here, before Processing.
func (c *Controller) assemble(s *session) (audio.Payload, error) {
	if s.overflow != nil {
		return audio.Payload{}, voice.NewError(voice.KindEncoding, "stop", s.overflow)
	}
	if err := s.stream.Err(); err != nil {
		return audio.Payload{}, voice.NewError(voice.KindDevice, "stop", fmt.Errorf("audio device lost while finalizing: %w", err))
	}

	payload, err := s.buffer.Payload()
	if err != nil {
		return audio.Payload{}, voice.NewError(voice.KindEncoding, "stop", err)
	}
	if err := audio.CheckWAV(payload); err != nil {
		return audio.Payload{}, voice.NewError(voice.KindEncoding, "stop", err)
	}
	return payload, nil
}

// classify makes sure every transcriber failure carries a kind.
func classify(err error) error {
	var verr *voice.Error
	if errors.As(err, &verr) {
		return err
	}
	return voice.NewError(voice.KindService, "transcribe", err)
}

// fail releases the device and ends the session with err.
func (c *Controller) fail(s *session, err error) error {
	s.release()
	return c.finish(s, "", err)
}

// finish moves the session to its terminal status, tears it down and
// notifies observers.
func (c *Controller) finish(s *session, text string, err error) error {
	summary := voice.Summary{
		SessionID:     s.id,
		Text:          text,
		Err:           err,
		AudioBytes:    s.capturedBytes(),
		AudioDuration: s.format.Duration(s.capturedBytes()),
		StartedAt:     s.startedAt,
		FinishedAt:    time.Now(),
	}

	c.mu.Lock()
	if err != nil {
		c.status = voice.StatusFailed
	} else {
		c.status = voice.StatusCompleted
	}
	summary.Status = c.status
	c.lastErr = err
	c.lastBytes = summary.AudioBytes
	if c.session == s {
		c.session = nil
	}
	c.mu.Unlock()

	if err != nil {
		s.logger.Warn("Session failed",
			logger.String("kind", voice.KindOf(err).String()),
			logger.Error(err))
	} else {
		s.logger.Info("Session completed",
			logger.Int("text_length", len(text)),
			logger.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)))
	}

	for _, observe := range c.observers {
		observe(summary)
	}

	return err
}

// Close aborts an active recording so the device is not left open on
// shutdown. A session already past Recording runs to completion.
func (c *Controller) Close() error {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()

	if s != nil {
		c.abort(s, voice.Errorf(voice.KindDevice, "close", "controller closed"))
	}
	return nil
}

// IsRecording reports whether a session is capturing audio
func (c *Controller) IsRecording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status == voice.StatusRecording
}

// IsProcessing reports whether a stopped session is being finalized or
// transcribed
func (c *Controller) IsProcessing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status == voice.StatusFinalizing || c.status == voice.StatusProcessing
}

// Status returns a snapshot of the controller state
func (c *Controller) Status() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := State{
		Status:        c.status,
		SessionID:     c.lastID,
		StartedAt:     c.lastStart,
		CapturedBytes: c.lastBytes,
		LastError:     c.lastErr,
	}
	if c.session != nil {
		state.CapturedBytes = c.session.capturedBytes()
		state.CapturedDuration = c.session.format.Duration(state.CapturedBytes)
	}
	return state
}
