package publishers

import (
	"time"
)

// Event describes a completed API exchange published downstream.
type Event struct {
	ProfileID   string    `json:"profile_id"`
	Method      string    `json:"method"`
	URL         string    `json:"url"`
	Status      int       `json:"status"`
	Outcome     string    `json:"outcome"`
	DurationMs  int64     `json:"duration_ms"`
	Error       string    `json:"error,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// NewEvent constructs an Event stamped with the current time.
func NewEvent(profileID, method, url string, status int, outcome string, elapsed time.Duration, errMsg string) Event {
	return Event{
		ProfileID:   profileID,
		Method:      method,
		URL:         url,
		Status:      status,
		Outcome:     outcome,
		DurationMs:  elapsed.Milliseconds(),
		Error:       errMsg,
		CompletedAt: time.Now().UTC(),
	}
}
