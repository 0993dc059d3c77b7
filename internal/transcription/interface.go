package transcription

import (
	"context"

	"github.com/yegors/neurai-voice/internal/audio"
)

// TranscriberInterface defines the interface for payload transcribers
type TranscriberInterface interface {
	Transcribe(ctx context.Context, payload audio.Payload) (string, error)
}

// Ensure the client implements the interface
var _ TranscriberInterface = (*Client)(nil)
