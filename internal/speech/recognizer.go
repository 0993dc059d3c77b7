package speech

import (
	"bytes"
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/yegors/neurai-voice/internal/audio"
	"github.com/yegors/neurai-voice/pkg/logger"
)

// Recognizer turns a validated WAV file into text. language is the caller's
// ISO-639-1 hint and may be empty. An empty string means nothing was
// recognized and is not an error.
type Recognizer interface {
	Recognize(ctx context.Context, wav []byte, info audio.WAVInfo, language string) (string, error)
}

// OpenAIConfig contains Whisper recognizer configuration
type OpenAIConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
	Prompt   string
}

// OpenAIRecognizer sends audio to the OpenAI transcription endpoint
type OpenAIRecognizer struct {
	client openai.Client
	config OpenAIConfig
	logger *logger.Logger
}

// NewOpenAIRecognizer creates a recognizer backed by the OpenAI API
func NewOpenAIRecognizer(config OpenAIConfig, log *logger.Logger) (*OpenAIRecognizer, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if config.Model == "" {
		config.Model = string(openai.AudioModelWhisper1)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(0),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &OpenAIRecognizer{
		client: openai.NewClient(opts...),
		config: config,
		logger: log.Named("openai-recognizer"),
	}, nil
}

// Recognize uploads the file and returns the transcript. The request language
// takes precedence over the configured one.
func (r *OpenAIRecognizer) Recognize(ctx context.Context, wav []byte, info audio.WAVInfo, language string) (string, error) {
	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(wav), "audio.wav", "audio/wav"),
		Model: openai.AudioModel(r.config.Model),
	}
	if language == "" {
		language = r.config.Language
	}
	if language != "" {
		params.Language = openai.String(language)
	}
	if r.config.Prompt != "" {
		params.Prompt = openai.String(r.config.Prompt)
	}

	r.logger.Debug("Sending audio to OpenAI",
		logger.String("model", r.config.Model),
		logger.String("language", language),
		logger.Duration("audio_duration", info.Duration),
		logger.Int("bytes", len(wav)))

	transcription, err := r.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("OpenAI transcription failed: %w", err)
	}

	return transcription.Text, nil
}
