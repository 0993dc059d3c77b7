package transcription

import "time"

// Config contains transcription client configuration
type Config struct {
	Endpoint  string
	APIKey    string
	Timeout   time.Duration
	Language  string
	UserAgent string
}

// Request is the body sent to the transcription service
type Request struct {
	Audio    string `json:"audio"`
	Format   string `json:"format,omitempty"`
	Language string `json:"language,omitempty"`
}

// Response is the body returned by the transcription service. A failed
// exchange carries Error; a successful one carries Text, which may be empty
// when nothing was recognized.
type Response struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// ClientStats represents client statistics
type ClientStats struct {
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	EmptyResults    uint64        `json:"empty_results"`
	FailedRequests  uint64        `json:"failed_requests"`
	LastLatency     time.Duration `json:"last_latency"`
}
