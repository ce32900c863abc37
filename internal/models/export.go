package models

import "time"

// ExportStatus tracks an export job through the queue.
type ExportStatus string

const (
	ExportStatusPending ExportStatus = "pending"
	ExportStatusDone    ExportStatus = "done"
	ExportStatusFailed  ExportStatus = "failed"
)

// ExportJob is the cached record of one grid export request. Jobs live
// in Redis with a TTL matching the download token lifetime.
type ExportJob struct {
	ID          string       `json:"id"`
	SchoolID    string       `json:"school_id"`
	TimetableID string       `json:"timetable_id"`
	Status      ExportStatus `json:"status"`
	File        string       `json:"file,omitempty"`
	Token       string       `json:"token,omitempty"`
	ExpiresAt   *time.Time   `json:"expires_at,omitempty"`
	Error       string       `json:"error,omitempty"`
	RequestedBy string       `json:"requested_by"`
	CreatedAt   time.Time    `json:"created_at"`
}
