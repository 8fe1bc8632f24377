// Package crawl defines core types shared across subsystems.
package crawl

import "time"

// Status represents the lifecycle state of a crawl record.
type Status string

// Status values persisted in the record store.
const (
	StatusAccepted Status = "Accepted"
	StatusRunning  Status = "Running"
	StatusComplete Status = "Complete"
	StatusError    Status = "Error"
)

// Terminal reports whether no further automatic transition occurs
// absent a new dispatch.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

// Record is the persisted state of one submitted URL.
//
// URL and ContentHash are immutable after creation. ArtifactRef is
// non-empty exactly when Status is Complete. TaskID tracks the most
// recently dispatched queue task for the record.
type Record struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	ContentHash string    `json:"content_hash"`
	Status      Status    `json:"status"`
	ArtifactRef string    `json:"artifact_ref,omitempty"`
	TaskID      string    `json:"task_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Task wraps one unit of queued work: process the record identified
// by CrawlID. Attempt counts deliveries for the same task id.
type Task struct {
	TaskID    string `json:"task_id"`
	CrawlID   string `json:"crawl_id"`
	Attempt   int    `json:"attempt"`
	Submitted int64  `json:"submitted"`
}

// StatusView is the read-only projection returned by status queries.
// ArtifactRef is populated only for Complete records.
type StatusView struct {
	Status      Status `json:"status"`
	ArtifactRef string `json:"artifact_ref,omitempty"`
}
