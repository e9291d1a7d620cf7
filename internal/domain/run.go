package domain

import (
	"errors"
	"strings"
	"time"
)

// Run statuses. A run's provenance record exists from "registered" onward;
// later transitions never touch the invocation record itself.
const (
	RunStatusRegistered = "registered"
	RunStatusRunning    = "running"
	RunStatusFinished   = "finished"
	RunStatusCrashed    = "crashed"
)

// Run is one registered experiment execution, anchored to the run directory
// its invocation record lives in.
type Run struct {
	ID              string
	ExperimentID    string
	Variant         string
	RunDir          string
	Status          string
	StartedAt       time.Time
	EndedAt         *time.Time
	Params          Metadata
	CreatedBy       string
	IntegritySHA256 string
}

func (r Run) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("run id is required")
	}
	if strings.TrimSpace(r.ExperimentID) == "" {
		return errors.New("experiment id is required")
	}
	if strings.TrimSpace(r.RunDir) == "" {
		return errors.New("run directory is required")
	}
	if !ValidRunStatus(r.Status) {
		return errors.New("status is invalid")
	}
	if strings.TrimSpace(r.IntegritySHA256) == "" {
		return errors.New("integrity sha256 is required")
	}
	return nil
}

func ValidRunStatus(status string) bool {
	switch strings.TrimSpace(status) {
	case RunStatusRegistered, RunStatusRunning, RunStatusFinished, RunStatusCrashed:
		return true
	default:
		return false
	}
}
