package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavHeaderSize = 44

// maxWAVData is the largest data chunk a 32-bit RIFF size can describe.
const maxWAVData = uint64(^uint32(0)) - 36

// wavHeader represents a canonical PCM WAV header
type wavHeader struct {
	// RIFF chunk descriptor
	ChunkID   [4]byte // "RIFF"
	ChunkSize uint32  // 36 + data size
	Format    [4]byte // "WAVE"

	// "fmt " sub-chunk
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16

	// "data" sub-chunk
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32
}

func newWAVHeader(format Format, dataSize int) wavHeader {
	return wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(36 + dataSize),
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   uint16(format.Channels),
		SampleRate:    uint32(format.SampleRate),
		ByteRate:      uint32(format.ByteRate()),
		BlockAlign:    uint16(format.BlockAlign()),
		BitsPerSample: uint16(format.BitsPerSample),
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(dataSize),
	}
}

// CheckWAV reports whether EncodeWAV would accept the payload.
func CheckWAV(p Payload) error {
	if err := p.format.Validate(); err != nil {
		return fmt.Errorf("cannot encode payload: %w", err)
	}
	if p.Len() == 0 {
		return ErrNoAudio
	}
	if p.Len()%p.format.BlockAlign() != 0 {
		return fmt.Errorf("payload of %d bytes is not frame aligned", p.Len())
	}
	if uint64(p.Len()) > maxWAVData {
		return fmt.Errorf("payload of %d bytes is too large for WAV", p.Len())
	}
	return nil
}

// EncodeWAV wraps the payload's PCM data in a WAV container.
func EncodeWAV(p Payload) ([]byte, error) {
	if err := CheckWAV(p); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + p.Len())

	// binary.Write lays the fixed-size struct out field by field, little-endian
	if err := binary.Write(&buf, binary.LittleEndian, newWAVHeader(p.format, p.Len())); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	if _, err := p.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write WAV data: %w", err)
	}

	return buf.Bytes(), nil
}

// WAVInfo describes a decoded WAV file.
type WAVInfo struct {
	SampleRate int
	Channels   int
	BitDepth   int
	DataBytes  int
	Duration   time.Duration
}

// ErrInvalidWAV is returned when data is not a readable WAV file.
var ErrInvalidWAV = errors.New("invalid WAV data")

// InspectWAV validates a WAV file and reports its format and length.
func InspectWAV(data []byte) (WAVInfo, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	if !decoder.IsValidFile() {
		if err := decoder.Err(); err != nil {
			return WAVInfo{}, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
		}
		return WAVInfo{}, ErrInvalidWAV
	}

	if err := decoder.FwdToPCM(); err != nil {
		return WAVInfo{}, fmt.Errorf("%w: no PCM data chunk: %v", ErrInvalidWAV, err)
	}

	info := WAVInfo{
		SampleRate: int(decoder.SampleRate),
		Channels:   int(decoder.NumChans),
		BitDepth:   int(decoder.BitDepth),
		DataBytes:  int(decoder.PCMLen()),
	}
	if byteRate := info.SampleRate * info.Channels * info.BitDepth / 8; byteRate > 0 {
		info.Duration = time.Duration(decoder.PCMLen()) * time.Second / time.Duration(byteRate)
	}

	return info, nil
}

// DecodeWAV reads a 16-bit PCM WAV file into a payload.
func DecodeWAV(data []byte) (Payload, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	if !decoder.IsValidFile() {
		return Payload{}, ErrInvalidWAV
	}
	if decoder.BitDepth != 16 {
		return Payload{}, fmt.Errorf("%w: expected 16-bit samples, got %d", ErrInvalidWAV, decoder.BitDepth)
	}

	pcm, err := decoder.FullPCMBuffer()
	if err != nil {
		return Payload{}, fmt.Errorf("failed to read PCM data: %w", err)
	}

	format := Format{
		Encoding:      EncodingPCM16,
		SampleRate:    int(decoder.SampleRate),
		Channels:      int(decoder.NumChans),
		BitsPerSample: 16,
	}

	return Payload{data: pcm16Bytes(pcm), format: format}, nil
}

// pcm16Bytes packs 16-bit samples as little-endian bytes.
func pcm16Bytes(buf *goaudio.IntBuffer) []byte {
	raw := make([]byte, len(buf.Data)*2)
	for i, sample := range buf.Data {
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(int16(sample)))
	}
	return raw
}
