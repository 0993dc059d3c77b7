package sqlite

import (
	"time"

	"github.com/yegors/neurai-voice/internal/voice"
)

// TranscriptionRecord is the stored outcome of one recording session
type TranscriptionRecord struct {
	ID            int64         `json:"id"`
	SessionID     string        `json:"session_id"`
	Status        string        `json:"status"` // "completed" or "failed"
	Text          string        `json:"text,omitempty"`
	ErrorKind     string        `json:"error_kind,omitempty"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	AudioBytes    int           `json:"audio_bytes"`
	AudioDuration time.Duration `json:"audio_duration"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`
}

// RecordFromSummary converts a finished session into a storable record
func RecordFromSummary(s voice.Summary) *TranscriptionRecord {
	record := &TranscriptionRecord{
		SessionID:     s.SessionID,
		Status:        s.Status.String(),
		Text:          s.Text,
		AudioBytes:    s.AudioBytes,
		AudioDuration: s.AudioDuration,
		StartedAt:     s.StartedAt,
		FinishedAt:    s.FinishedAt,
	}
	if s.Err != nil {
		record.ErrorKind = s.ErrorKind().String()
		record.ErrorMessage = s.Err.Error()
	}
	return record
}
