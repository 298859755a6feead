package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the value a job handler returns for expected outcomes.
// Skipped is not an error and never triggers a retry; Failed is a
// business-level failure that is recorded but not retried either.
// Infrastructure errors are returned as errors and consume the queue's
// retry budget instead.
type JobStatus string

const (
	JobStatusSuccess JobStatus = "success"
	JobStatusSkipped JobStatus = "skipped"
	JobStatusFailed  JobStatus = "failed"
)

// AssetJob targets a single asset (detection, thumbnails, transcoding).
type AssetJob struct {
	AssetID uuid.UUID `json:"asset_id"`
}

// FaceJob targets a single face for recognition. Deferred marks the second
// pass of a face that lacked corroborating matches on its first pass.
type FaceJob struct {
	FaceID   uuid.UUID `json:"face_id"`
	Deferred bool      `json:"deferred"`
}

// PersonJob targets a single person (thumbnail generation).
type PersonJob struct {
	PersonID uuid.UUID `json:"person_id"`
}

// ScanJob is the payload of a backfill producer. Force re-processes
// everything, destructively pre-clearing derived state first.
type ScanJob struct {
	Force bool `json:"force"`
}

// SweepJob is the payload of a recognition sweep producer. Nightly sweeps
// are gated on whether any face was added since the last recorded run.
type SweepJob struct {
	Force   bool `json:"force"`
	Nightly bool `json:"nightly"`
}

// FileJob lists derived-artifact paths to remove from the working tree and
// the blob mirror.
type FileJob struct {
	Paths []string `json:"paths"`
}

// JobEvent is the lifecycle record published after a job finishes, for
// live delivery to API clients.
type JobEvent struct {
	Queue      string    `json:"queue"`
	Job        string    `json:"job"`
	Status     JobStatus `json:"status"`
	DurationMS int64     `json:"duration_ms"`
	At         time.Time `json:"at"`
}
