package importjob

import (
	"time"

	"github.com/google/uuid"

	"github.com/stratix-hq/stratix-sdk/modules/okr/domain/entities/sheet"
)

type ItemStatus string

const (
	ItemStatusPending ItemStatus = "pending"
	ItemStatusSuccess ItemStatus = "success"
	ItemStatusError   ItemStatus = "error"
	ItemStatusSkipped ItemStatus = "skipped"
)

// Item is the durable per-row outcome record of an import job. Rows that
// collapse into one entity share a single item carrying every contributing
// row number in its metadata.
type Item struct {
	ID          uuid.UUID
	JobID       uuid.UUID
	RowNumber   int
	EntityType  sheet.EntityType
	NaturalKey  string
	EntityID    *uuid.UUID
	Action      sheet.Action
	Status      ItemStatus
	Error       string
	Warnings    []string
	RawRows     []int
	ProcessedAt time.Time
}

func NewSuccessItem(jobID uuid.UUID, res sheet.EntityResult) Item {
	entityID := res.ID
	return Item{
		ID:          uuid.New(),
		JobID:       jobID,
		RowNumber:   firstRow(res.Rows),
		EntityType:  res.Type,
		NaturalKey:  res.Key,
		EntityID:    &entityID,
		Action:      res.Action,
		Status:      ItemStatusSuccess,
		Warnings:    res.Warnings,
		RawRows:     res.Rows,
		ProcessedAt: time.Now().UTC(),
	}
}

func NewErrorItem(jobID uuid.UUID, entityType sheet.EntityType, key string, rows []int, message string) Item {
	return Item{
		ID:          uuid.New(),
		JobID:       jobID,
		RowNumber:   firstRow(rows),
		EntityType:  entityType,
		NaturalKey:  key,
		Action:      sheet.ActionSkip,
		Status:      ItemStatusError,
		Error:       message,
		RawRows:     rows,
		ProcessedAt: time.Now().UTC(),
	}
}

// NewSkippedItem records a no-op row: none of the entity key columns were
// populated.
func NewSkippedItem(jobID uuid.UUID, rowNumber int) Item {
	return Item{
		ID:          uuid.New(),
		JobID:       jobID,
		RowNumber:   rowNumber,
		Action:      sheet.ActionSkip,
		Status:      ItemStatusSkipped,
		RawRows:     []int{rowNumber},
		ProcessedAt: time.Now().UTC(),
	}
}

func firstRow(rows []int) int {
	if len(rows) == 0 {
		return 0
	}
	return rows[0]
}
