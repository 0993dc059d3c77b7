package capture

import (
	"context"

	"github.com/yegors/neurai-voice/internal/audio"
)

// Device is a platform audio input that can be opened for one recording at
// a time.
type Device interface {
	// Acquire opens the input. It fails if the device is missing, busy, or
	// permission is denied; on failure nothing stays open.
	Acquire(ctx context.Context) (Stream, error)
}

// Stream is an open device handle. It is owned by exactly one recording
// session.
//
// The chunk channel is closed exactly once: after SignalStop, once every
// chunk captured before the signal has been queued; after Release; or when
// the device is lost, in which case Err reports why. Release must not block
// waiting for the consumer to read.
type Stream interface {
	Format() audio.Format
	Chunks() <-chan []byte
	SignalStop() error
	Err() error
	Release() error
}

// Transcriber turns a finished payload into text.
type Transcriber interface {
	Transcribe(ctx context.Context, payload audio.Payload) (string, error)
}
