package health

import (
	"encoding/json"
	"time"
)

// Status represents the health state of a component.
type Status string

const (
	StatusUnknown Status = "unknown"
	StatusOK      Status = "ok"
	StatusError   Status = "error"
)

// Well-known component ids.
const (
	ComponentDaemon  = "daemon"
	ComponentStorage = "storage"
)

// Item is the last known state of one checked component.
type Item struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Status    Status     `json:"status"`
	Message   string     `json:"message,omitempty"`
	CheckedAt *time.Time `json:"checkedAt,omitempty"`
	// Since is when the component entered its current non-OK status.
	Since *time.Time `json:"since,omitempty"`
}

// MarshalJSON omits the failure details for healthy components.
func (i Item) MarshalJSON() ([]byte, error) {
	type alias Item
	a := alias(i)
	if i.Status == StatusOK {
		a.Message = ""
		a.Since = nil
	}
	return json.Marshal(a)
}

// Summary is the response for the health endpoint.
type Summary struct {
	Healthy bool   `json:"healthy"`
	Items   []Item `json:"items"`
}

// UpdatePayload is broadcast when a component changes status.
type UpdatePayload struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}
