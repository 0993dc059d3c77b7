package voice

import "time"

// Summary describes a finished session. It is handed to observers once the
// session reaches Completed or Failed.
type Summary struct {
	SessionID     string
	Status        Status
	Text          string
	Err           error
	AudioBytes    int
	AudioDuration time.Duration
	StartedAt     time.Time
	FinishedAt    time.Time
}

// ErrorKind returns the kind of the session error, or KindUnknown on success.
func (s Summary) ErrorKind() Kind {
	if s.Err == nil {
		return KindUnknown
	}
	return KindOf(s.Err)
}
