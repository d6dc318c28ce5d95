package sheet

import (
	"context"

	"github.com/google/uuid"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionSkip   Action = "skip"
)

// EntityResult is the outcome of one draft's upsert attempt.
type EntityResult struct {
	Type     EntityType
	Key      string
	Rows     []int
	Owned    []int
	ID       uuid.UUID
	Action   Action
	Warnings []string
	// Err is set for resolution failures (e.g. an activity whose initiative
	// could not be found); such drafts are never inserted.
	Err string
}

// BatchResult aggregates outcomes of one EntityBatch upsert, in the order the
// statements were issued.
type BatchResult struct {
	Results []EntityResult
}

func (r *BatchResult) Add(res EntityResult) {
	r.Results = append(r.Results, res)
}

// Scope carries the identifiers every upserted row is stamped with.
type Scope struct {
	TenantID    uuid.UUID
	AreaID      *uuid.UUID
	SubmittedBy uuid.UUID
}

// BatchRepository performs the dependency-ordered bulk upsert of one
// EntityBatch. ApplyBatch must be called with a transaction bound to ctx;
// reference resolution consults batch-local results first and already
// committed rows second (case-insensitive exact match).
type BatchRepository interface {
	ApplyBatch(ctx context.Context, scope Scope, batch *EntityBatch) (*BatchResult, error)
}
