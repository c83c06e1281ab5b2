package db

import (
	"time"

	"github.com/google/uuid"
)

// Run statuses
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Cluster outcome kinds
const (
	OutcomeInserted  = "inserted"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

// Run represents a pipeline_runs row
type Run struct {
	ID           uuid.UUID  `json:"id"`
	Status       string     `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Counts       RunCounts  `json:"counts"`
	ErrorMessage *string    `json:"error_message,omitempty"`
}

// RunCounts are the per-cycle tallies stored on completion
type RunCounts struct {
	Archived       int `json:"archived"`
	Discovered     int `json:"discovered"`
	ShortDiscarded int `json:"short_discarded"`
	Clusters       int `json:"clusters"`
	Inserted       int `json:"inserted"`
	Duplicates     int `json:"duplicates"`
	Failed         int `json:"failed"`
}

// ClusterOutcome records what happened to one cluster within a run
type ClusterOutcome struct {
	Outcome  string   `json:"outcome"`
	Category string   `json:"category,omitempty"`
	RecordID string   `json:"record_id,omitempty"`
	URLs     []string `json:"urls"`
	Reason   string   `json:"reason,omitempty"`
}
