package importjob

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrJobNotFound = errors.New("import job not found")
)

type Repository interface {
	Create(ctx context.Context, job *ImportJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*ImportJob, error)
	// FindFinishedByChecksum returns the most recent job of the same tenant
	// with the given checksum that finished (completed or partial) after
	// `since`, excluding `exclude`. ErrJobNotFound when there is none.
	FindFinishedByChecksum(ctx context.Context, tenantID uuid.UUID, checksum string, since time.Time, exclude uuid.UUID) (*ImportJob, error)
	// Update persists status, counters, metadata and timestamps.
	Update(ctx context.Context, job *ImportJob) error
	AddItems(ctx context.Context, items []Item) error
	ListItems(ctx context.Context, jobID uuid.UUID) ([]Item, error)
}
