// Package voice holds the types shared by the capture controller and the
// transcription client: session status, the error taxonomy, and the
// per-session summary handed to observers.
package voice

// Status is the lifecycle state of a recording session.
type Status int

const (
	StatusIdle Status = iota
	StatusRecording
	StatusFinalizing
	StatusProcessing
	StatusCompleted
	StatusFailed
)

var statusNames = map[Status]string{
	StatusIdle:       "idle",
	StatusRecording:  "recording",
	StatusFinalizing: "finalizing",
	StatusProcessing: "processing",
	StatusCompleted:  "completed",
	StatusFailed:     "failed",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// HoldsDevice reports whether a session in this status owns the device handle.
func (s Status) HoldsDevice() bool {
	return s == StatusRecording || s == StatusFinalizing
}

// Terminal reports whether the status ends a session.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ParseStatus maps a status name back to its value.
func ParseStatus(name string) (Status, bool) {
	for status, n := range statusNames {
		if n == name {
			return status, true
		}
	}
	return StatusIdle, false
}
