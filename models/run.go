package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
)

// IngestRun records one batch pass over the export source
type IngestRun struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	Source            string          `json:"source" db:"source"`
	StartedAt         time.Time       `json:"started_at" db:"started_at"`
	FinishedAt        *time.Time      `json:"finished_at" db:"finished_at"`
	Status            RunStatus       `json:"status" db:"status"`
	FilesProcessed    int             `json:"files_processed" db:"files_processed"`
	MessagesSeen      int             `json:"messages_seen" db:"messages_seen"`
	PropertyMessages  int             `json:"property_messages" db:"property_messages"`
	PropertiesCreated int             `json:"properties_created" db:"properties_created"`
	UsersCreated      int             `json:"users_created" db:"users_created"`
	ErrorsCount       int             `json:"errors_count" db:"errors_count"`
	Metadata          json.RawMessage `json:"metadata" db:"metadata"`
}
