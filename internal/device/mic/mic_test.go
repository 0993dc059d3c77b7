package mic

import (
	"testing"

	"github.com/yegors/neurai-voice/pkg/logger"
)

func TestNewDefaults(t *testing.T) {
	d, err := New(Config{}, logger.NewNop())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if d.format.SampleRate != 16000 {
		t.Errorf("Expected 16000 Hz default, got %d", d.format.SampleRate)
	}
	if d.config.ChunkSizeMs != 100 {
		t.Errorf("Expected 100ms default chunk, got %d", d.config.ChunkSizeMs)
	}
}

func TestNewRejectsUnsupportedRate(t *testing.T) {
	if _, err := New(Config{SampleRate: 192000}, logger.NewNop()); err == nil {
		t.Error("Expected error for unsupported sample rate")
	}
}
