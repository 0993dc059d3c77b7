package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func testPayload(d time.Duration) Payload {
	raw := make([]byte, DefaultFormat.BytesFor(d))
	for i := 0; i+1 < len(raw); i += 2 {
		binary.LittleEndian.PutUint16(raw[i:], uint16(int16(i%2000-1000)))
	}
	return NewPayload(raw, DefaultFormat)
}

func TestEncodeWAVHeader(t *testing.T) {
	payload := testPayload(250 * time.Millisecond)

	data, err := EncodeWAV(payload)
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}

	if len(data) != wavHeaderSize+payload.Len() {
		t.Fatalf("Expected %d bytes, got %d", wavHeaderSize+payload.Len(), len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" || string(data[36:40]) != "data" {
		t.Error("Expected canonical RIFF/WAVE/data markers")
	}
	if got := binary.LittleEndian.Uint32(data[24:28]); got != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", got)
	}
	if got := binary.LittleEndian.Uint32(data[40:44]); int(got) != payload.Len() {
		t.Errorf("Expected data size %d, got %d", payload.Len(), got)
	}
	if !bytes.Equal(data[wavHeaderSize:], payload.Bytes()) {
		t.Error("Expected PCM data to follow the header unchanged")
	}
}

func TestCheckWAV(t *testing.T) {
	format24 := DefaultFormat
	format24.BitsPerSample = 24

	tests := []struct {
		name    string
		payload Payload
		wantErr bool
	}{
		{"valid", testPayload(10 * time.Millisecond), false},
		{"empty", NewPayload(nil, DefaultFormat), true},
		{"misaligned", NewPayload([]byte{1, 2, 3}, DefaultFormat), true},
		{"unsupported format", NewPayload(make([]byte, 6), format24), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckWAV(tt.payload)
			if (err != nil) != tt.wantErr {
				t.Errorf("Expected error %v, got %v", tt.wantErr, err)
			}
			_, encErr := EncodeWAV(tt.payload)
			if (encErr != nil) != (err != nil) {
				t.Errorf("Expected EncodeWAV to agree with CheckWAV, got %v vs %v", encErr, err)
			}
		})
	}
}

func TestEncodeWAVRejectsEmptyPayload(t *testing.T) {
	if _, err := EncodeWAV(NewPayload(nil, DefaultFormat)); !errors.Is(err, ErrNoAudio) {
		t.Errorf("Expected ErrNoAudio, got %v", err)
	}
}

func TestEncodeWAVRejectsUnsupportedFormat(t *testing.T) {
	format := DefaultFormat
	format.BitsPerSample = 24
	if _, err := EncodeWAV(NewPayload(make([]byte, 6), format)); err == nil {
		t.Error("Expected error for 24-bit payload")
	}
}

func TestInspectWAV(t *testing.T) {
	data, err := EncodeWAV(testPayload(time.Second))
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}

	info, err := InspectWAV(data)
	if err != nil {
		t.Fatalf("Failed to inspect: %v", err)
	}
	if info.SampleRate != 16000 || info.Channels != 1 || info.BitDepth != 16 {
		t.Errorf("Unexpected format: %+v", info)
	}
	if info.Duration != time.Second {
		t.Errorf("Expected 1s duration, got %v", info.Duration)
	}
}

func TestInspectWAVRejectsGarbage(t *testing.T) {
	if _, err := InspectWAV([]byte("definitely not a wav file, just text")); !errors.Is(err, ErrInvalidWAV) {
		t.Errorf("Expected ErrInvalidWAV, got %v", err)
	}
}

func TestDecodeWAV(t *testing.T) {
	original := testPayload(100 * time.Millisecond)
	data, err := EncodeWAV(original)
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}

	decoded, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if decoded.Format() != DefaultFormat {
		t.Errorf("Expected format %+v, got %+v", DefaultFormat, decoded.Format())
	}
	if !bytes.Equal(decoded.Bytes(), original.Bytes()) {
		t.Error("Expected decoded samples to match the original PCM")
	}
}

func TestDecodeWAVWrittenByGoAudio(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}

	samples := []int{0, 1000, -1000, 32767, -32768, 42}
	enc := wav.NewEncoder(f, 16000, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: 16000},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("Failed to write samples: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Failed to close encoder: %v", err)
	}
	f.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}

	payload, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if payload.Format() != DefaultFormat {
		t.Errorf("Expected default format, got %+v", payload.Format())
	}

	raw := payload.Bytes()
	if len(raw) != len(samples)*2 {
		t.Fatalf("Expected %d bytes, got %d", len(samples)*2, len(raw))
	}
	for i, want := range samples {
		got := int(int16(binary.LittleEndian.Uint16(raw[i*2:])))
		if got != want {
			t.Errorf("Sample %d: expected %d, got %d", i, want, got)
		}
	}
}
