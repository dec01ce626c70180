package logger

import (
	"encoding/json"
	"sync"
)

// Publisher pushes log entries to live subscribers.
type Publisher interface {
	Broadcast(msgType string, payload any)
}

// Entry is a parsed log line as shown in the admin log view.
type Entry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Recent is an io.Writer that keeps the last N zerolog JSON entries in a
// circular buffer and optionally forwards each entry to a Publisher.
type Recent struct {
	mu      sync.RWMutex
	entries []Entry
	next    int
	full    bool
	pub     Publisher
}

// NewRecent creates a buffer holding up to size entries.
func NewRecent(size int) *Recent {
	return &Recent{entries: make([]Entry, size)}
}

// SetPublisher attaches a live publisher. Safe to call after logging started.
func (r *Recent) SetPublisher(p Publisher) {
	r.mu.Lock()
	r.pub = p
	r.mu.Unlock()
}

// Write implements io.Writer. Malformed lines are dropped.
func (r *Recent) Write(p []byte) (int, error) {
	entry, ok := parseEntry(p)
	if !ok {
		return len(p), nil
	}

	r.mu.Lock()
	r.entries[r.next] = entry
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
	pub := r.pub
	r.mu.Unlock()

	if pub != nil {
		pub.Broadcast("log:entry", entry)
	}
	return len(p), nil
}

// Entries returns buffered entries from oldest to newest.
func (r *Recent) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.full {
		out := make([]Entry, r.next)
		copy(out, r.entries[:r.next])
		return out
	}

	out := make([]Entry, 0, len(r.entries))
	out = append(out, r.entries[r.next:]...)
	out = append(out, r.entries[:r.next]...)
	return out
}

func parseEntry(data []byte) (Entry, bool) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Entry{}, false
	}

	entry := Entry{}
	take := func(key string) string {
		v, _ := raw[key].(string)
		delete(raw, key)
		return v
	}
	entry.Timestamp = take("time")
	entry.Level = take("level")
	entry.Component = take("component")
	entry.Message = take("message")

	if len(raw) > 0 {
		entry.Fields = raw
	}
	return entry, true
}
