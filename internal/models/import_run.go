package models

import (
	"time"

	"github.com/google/uuid"
)

// RunKind identifies the operation an import run performed
type RunKind string

const (
	RunKindOrderFile        RunKind = "order_file"
	RunKindShippingManifest RunKind = "shipping_manifest"
	RunKindRemoteFetch      RunKind = "remote_fetch"
)

// RunStatus represents the state of an import run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// ImportRun is the audit record of one import, manifest reconciliation or remote fetch
type ImportRun struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Kind    RunKind   `gorm:"type:varchar(32);not null;index:idx_import_runs_kind" json:"kind"`
	Status  RunStatus `gorm:"type:varchar(20);not null;default:'running'" json:"status"`
	Label   string    `gorm:"type:varchar(500)" json:"label,omitempty"`
	Dialect string    `gorm:"type:varchar(20)" json:"dialect,omitempty"`

	// Import counters
	Imported   int `json:"imported"`
	Duplicates int `json:"duplicates"`
	Skipped    int `json:"skipped"`

	// Reconciliation counters
	Updated      int `json:"updated"`
	NotFound     int `json:"notFound"`
	FuzzyMatched int `json:"fuzzyMatched"`
	Ambiguous    int `json:"ambiguous"`

	Warnings     int    `json:"warnings"`
	ErrorMessage string `gorm:"type:text" json:"errorMessage,omitempty"`

	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// TableName specifies the table name
func (ImportRun) TableName() string {
	return "import_runs"
}
