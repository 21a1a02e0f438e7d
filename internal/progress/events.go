// Package progress streams live audit progress to any number of
// subscribers. Each campaign gets its own broker; late subscribers receive
// the last published event on attach so a reconnecting client immediately
// learns the current state, and result rows are kept in an append-only log
// that can be snapshotted for export.
package progress

import "time"

// EventType discriminates progress events.
type EventType string

// Event types published by the orchestrator.
const (
	EventStatus   EventType = "status"
	EventProgress EventType = "progress"
	EventRow      EventType = "row"
	EventDone     EventType = "done"
	EventError    EventType = "error"
	EventPing     EventType = "ping"
)

// Row is one completed prompt run, shaped for table display and CSV export.
type Row struct {
	Prompt    string  `json:"prompt"`
	Run       int     `json:"run"`
	Provider  string  `json:"provider"`
	Model     string  `json:"model"`
	Mentioned bool    `json:"mentioned"`
	Mentions  int     `json:"mentions"`
	Rank      int     `json:"rank,omitempty"` // 0 means unranked
	Elapsed   float64 `json:"elapsed_seconds"`
	CacheHit  bool    `json:"cache_hit"`
	Failed    bool    `json:"failed"`
	Error     string  `json:"error,omitempty"`
}

// Event is a single progress notification.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Message   string                 `json:"message,omitempty"`
	Completed int                    `json:"completed,omitempty"`
	Total     int                    `json:"total,omitempty"`
	Row       *Row                   `json:"row,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}
