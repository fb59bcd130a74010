package domain

import (
	"fmt"
	"time"
)

type JobStatus string

const (
	StatusQueued    JobStatus = "QUEUED"
	StatusRunning   JobStatus = "RUNNING"
	StatusCompleted JobStatus = "COMPLETED"
	StatusCancelled JobStatus = "CANCELLED"
	StatusError     JobStatus = "ERROR"
)

// KindObjectStorage marks a job whose payload lives in object storage
// instead of being inlined in the submit call.
const KindObjectStorage = "q-object-external-storage"

// Job is the control-plane view of a submitted job.
type Job struct {
	ID           string     `json:"id"`
	Backend      string     `json:"backend,omitempty"`
	Status       JobStatus  `json:"status"`
	Kind         string     `json:"kind,omitempty"`
	Shots        int        `json:"shots,omitempty"`
	CreationDate *time.Time `json:"creationDate,omitempty"`
	EndDate      *time.Time `json:"endDate,omitempty"`
}

// IsTerminal reports whether the status can no longer change.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusError
}

func (s JobStatus) String() string {
	return string(s)
}

// ParseStatus maps a wire status string onto the known enumeration.
// Both the stream and the REST path go through here so the two sources
// reconcile to the same values.
func ParseStatus(raw string) (JobStatus, error) {
	switch JobStatus(raw) {
	case StatusQueued, StatusRunning, StatusCompleted, StatusCancelled, StatusError:
		return JobStatus(raw), nil
	default:
		return "", fmt.Errorf("unknown job status %q", raw)
	}
}

func (j *Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// UsesObjectStorage reports whether the job's payload was staged
// through object storage.
func (j *Job) UsesObjectStorage() bool {
	return j.Kind == KindObjectStorage
}
