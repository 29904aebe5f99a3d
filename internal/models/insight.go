package models

import "time"

// PollStatus represents the remote submission status.
type PollStatus string

const (
	StatusInProgress PollStatus = "IN_PROGRESS"
	StatusDone       PollStatus = "DONE"
	StatusFailed     PollStatus = "FAILED"
	StatusError      PollStatus = "ERROR"
)

// Terminal reports whether the status ends the polling loop.
func (s PollStatus) Terminal() bool {
	return s == StatusDone || s == StatusFailed || s == StatusError
}

// ResultPayload is the assembled outcome of a completed submission. Different
// fields may live on different sub-messages; the first occurrence of each
// field wins.
type ResultPayload struct {
	Columns       []string                 `json:"columns"`
	Rows          []map[string]interface{} `json:"rows"`
	Reasoning     string                   `json:"reasoning,omitempty"`
	TotalRowCount *int                     `json:"total_row_count,omitempty"`
	DownloadURL   string                   `json:"download_url,omitempty"`
}

// Insight is the normalized, cache-ready result exposed to the rest of the
// system. FromCache is set only by the cache layer.
type Insight struct {
	ID            string                   `json:"id"`
	Question      string                   `json:"question"`
	Columns       []string                 `json:"columns"`
	Rows          []map[string]interface{} `json:"rows"`
	Reasoning     string                   `json:"reasoning,omitempty"`
	QueriedAt     time.Time                `json:"queried_at"`
	TotalRowCount *int                     `json:"total_row_count,omitempty"`
	DownloadURL   string                   `json:"download_url,omitempty"`
	FromCache     bool                     `json:"from_cache"`
}
