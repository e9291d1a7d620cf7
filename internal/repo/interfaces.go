package repo

import (
	"context"
	"errors"
	"time"

	"github.com/runcap-labs/runcap-go/internal/domain"
)

var ErrNotFound = errors.New("not found")

type RunFilter struct {
	ExperimentID string
	Variant      string
	Status       string
	Limit        int
}

// RunRepository manages run state with immutable identity.
type RunRepository interface {
	CreateRun(ctx context.Context, run domain.Run) error
	GetRun(ctx context.Context, id string) (domain.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]domain.Run, error)
	UpdateRunStatus(ctx context.Context, id string, status string, endedAt *time.Time) error
}

// InvocationRepository manages insert-only invocation records.
type InvocationRepository interface {
	CreateInvocation(ctx context.Context, record domain.InvocationRecord) error
	GetInvocation(ctx context.Context, runID string) (domain.InvocationRecord, error)
}
