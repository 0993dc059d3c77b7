package transcription

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/net/http2"

	"github.com/yegors/neurai-voice/internal/audio"
	"github.com/yegors/neurai-voice/internal/voice"
	"github.com/yegors/neurai-voice/pkg/logger"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "neurai-voice/1.0"
	// maxResponseBytes bounds how much of a response body we read
	maxResponseBytes = 1 << 20
)

// Client sends finished payloads to a remote transcription service. Every
// call is a single, independent round trip: no retries, no caching.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *logger.Logger

	mu    sync.Mutex
	stats ClientStats
}

// NewClient creates a new transcription HTTP client
func NewClient(config Config, log *logger.Logger) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}
	if !strings.HasPrefix(config.Endpoint, "http://") && !strings.HasPrefix(config.Endpoint, "https://") {
		return nil, fmt.Errorf("endpoint must be an http(s) URL, got %q", config.Endpoint)
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.UserAgent == "" {
		config.UserAgent = defaultUserAgent
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, fmt.Errorf("failed to enable HTTP/2: %w", err)
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
		logger: log.Named("transcription-client"),
	}, nil
}

// Transcribe encodes the payload and exchanges it with the service.
func (c *Client) Transcribe(ctx context.Context, payload audio.Payload) (string, error) {
	body, err := c.encode(payload)
	if err != nil {
		return "", voice.NewError(voice.KindEncoding, "transcribe", err)
	}

	c.mu.Lock()
	c.stats.TotalRequests++
	c.mu.Unlock()

	start := time.Now()
	resp, err := c.send(ctx, body)
	latency := time.Since(start)

	if err != nil {
		c.record(latency, func(s *ClientStats) { s.FailedRequests++ })
		c.logger.Warn("Transcription request failed",
			logger.Duration("latency", latency),
			logger.Error(err))
		return "", voice.NewError(voice.KindService, "transcribe", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		c.record(latency, func(s *ClientStats) { s.EmptyResults++ })
		c.logger.Info("Transcription service recognized no speech",
			logger.Duration("latency", latency),
			logger.Int("audio_bytes", payload.Len()))
		return "", voice.Errorf(voice.KindEmptyResult, "transcribe", "service returned no text")
	}

	c.record(latency, func(s *ClientStats) { s.SuccessRequests++ })
	c.logger.Debug("Transcription received",
		logger.Duration("latency", latency),
		logger.Int("text_length", len(text)))

	return text, nil
}

// encode wraps the PCM payload in WAV and base64-encodes it into the
// request body.
func (c *Client) encode(payload audio.Payload) ([]byte, error) {
	wav, err := audio.EncodeWAV(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode WAV: %w", err)
	}

	body, err := json.Marshal(Request{
		Audio:    base64.StdEncoding.EncodeToString(wav),
		Format:   "wav",
		Language: c.config.Language,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return body, nil
}

// send performs the single HTTP round trip.
func (c *Client) send(ctx context.Context, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var parsed Response
	decodeErr := json.Unmarshal(respBody, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if decodeErr == nil && parsed.Error != "" {
			return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, parsed.Error)
		}
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w", decodeErr)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("service error: %s", parsed.Error)
	}

	return &parsed, nil
}

func (c *Client) record(latency time.Duration, update func(*ClientStats)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	update(&c.stats)
	c.stats.LastLatency = latency
}

// GetStats returns current client statistics
func (c *Client) GetStats() ClientStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// back off to a rune boundary
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
