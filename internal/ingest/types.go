package ingest

import (
	"fmt"
	"time"
)

// Priority orders pending documents; higher values dispatch first.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParsePriority maps a priority name to its value.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "low":
		return PriorityLow, nil
	case "medium":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	case "critical":
		return PriorityCritical, nil
	default:
		return PriorityMedium, fmt.Errorf("unknown priority %q", s)
	}
}

// ChangeKind classifies the filesystem event that produced a queue entry.
type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeChanged ChangeKind = "changed"
	ChangeMoved   ChangeKind = "moved"
)

// QueuedDocument is a pending unit of ingestion work.
type QueuedDocument struct {
	ID         string     `json:"id"`
	Path       string     `json:"path"`
	DetectedAt time.Time  `json:"detected_at"`
	Size       int64      `json:"size"`
	Priority   Priority   `json:"priority"`
	RetryCount int        `json:"retry_count"`
	Change     ChangeKind `json:"change"`
}

// ProcessingJob is a queued document bound to an in-flight pipeline run.
// At most one job exists per document id at any time.
type ProcessingJob struct {
	Doc       QueuedDocument `json:"doc"`
	Stage     string         `json:"stage"`
	Percent   float64        `json:"percent"`
	StartedAt time.Time      `json:"started_at"`
}

// CompletedDocument is the terminal record of a successful run.
type CompletedDocument struct {
	DocumentID   string        `json:"document_id"`
	Path         string        `json:"path"`
	CompletedAt  time.Time     `json:"completed_at"`
	Duration     time.Duration `json:"duration"`
	QualityScore float64       `json:"quality_score"`
	Nodes        int           `json:"nodes"`
	Images       int           `json:"images"`
}

// FailedDocument is the terminal record of a permanently failed run.
// It stays visible until manually retried or cleared.
type FailedDocument struct {
	DocumentID string    `json:"document_id"`
	Path       string    `json:"path"`
	LastError  string    `json:"last_error"`
	RetryCount int       `json:"retry_count"`
	FailedAt   time.Time `json:"failed_at"`
}

// Stats are the queue's rolling counters.
type Stats struct {
	Enqueued      int64   `json:"enqueued"`
	Completed     int64   `json:"completed"`
	Failed        int64   `json:"failed"`
	Skipped       int64   `json:"skipped"`
	Dropped       int64   `json:"dropped"`
	Retried       int64   `json:"retried"`
	AvgDurationMS float64 `json:"avg_duration_ms"`
	TotalNodes    int64   `json:"total_nodes"`
	TotalImages   int64   `json:"total_images"`
}

// Status is a point-in-time snapshot of queue state.
type Status struct {
	Pending    int             `json:"pending"`
	Active     int             `json:"active"`
	FailedDocs int             `json:"failed_docs"`
	Jobs       []ProcessingJob `json:"jobs"`
	Stats      Stats           `json:"stats"`
}
