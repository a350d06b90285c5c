package models

import "time"

// SummaryState is the running incident summary for one system
type SummaryState struct {
	SystemKey      string    `json:"system_key" db:"system_key"`
	SummaryText    string    `json:"summary" db:"summary"`
	LastActivityAt time.Time `json:"last_activity_at" db:"last_received"`
	Version        int64     `json:"version" db:"version"`
}

// Empty reports whether the system currently has no summary
func (s SummaryState) Empty() bool {
	return s.SummaryText == ""
}

// IdleFor returns how long the system has been without activity at now
func (s SummaryState) IdleFor(now time.Time) time.Duration {
	return now.Sub(s.LastActivityAt)
}

// SummaryEventType identifies what happened to a summary
type SummaryEventType string

const (
	SummaryUpdated SummaryEventType = "updated"
	SummaryCleared SummaryEventType = "cleared"
)

// SummaryEvent is emitted after a summary has been committed to the store
type SummaryEvent struct {
	Type  SummaryEventType `json:"type"`
	State SummaryState     `json:"state"`
}
