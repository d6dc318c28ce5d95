package sheet

import (
	"fmt"
	"time"
)

type EntityType string

const (
	EntityTypeArea       EntityType = "area"
	EntityTypeUser       EntityType = "user"
	EntityTypeObjective  EntityType = "objective"
	EntityTypeInitiative EntityType = "initiative"
	EntityTypeActivity   EntityType = "activity"
)

// Draft is the part shared by all entity drafts: the normalized natural key,
// the 1-based source rows that contributed fields, and any non-blocking
// validation warnings retained for UI surfacing.
type Draft struct {
	Key      string
	Rows     []int
	Warnings []string
	// Owned are the rows this draft accounts for in the job counters: every
	// source row is owned by exactly one draft (its most specific entity).
	Owned []int
	// Faults are unparsable cell values recorded during classification; the
	// validator folds them into blocking errors.
	Faults []string
}

func (d *Draft) AddRow(n int) {
	for _, existing := range d.Rows {
		if existing == n {
			return
		}
	}
	d.Rows = append(d.Rows, n)
}

func (d *Draft) Own(n int) {
	d.AddRow(n)
	for _, existing := range d.Owned {
		if existing == n {
			return
		}
	}
	d.Owned = append(d.Owned, n)
}

func (d *Draft) Warn(msg string) {
	d.Warnings = append(d.Warnings, msg)
}

func (d *Draft) Faultf(format string, args ...any) {
	d.Faults = append(d.Faults, fmt.Sprintf(format, args...))
}

// FirstRow is the row number recorded on the durable job item for this draft.
func (d *Draft) FirstRow() int {
	if len(d.Rows) == 0 {
		return 0
	}
	return d.Rows[0]
}

type AreaDraft struct {
	Draft
	Name        string
	Description string
}

type UserDraft struct {
	Draft
	Email    string
	FullName string
	Role     string
}

type ObjectiveDraft struct {
	Draft
	Title       string
	Description string
	Progress    *float64
	Priority    string
	Status      string
	StartDate   *time.Time
	EndDate     *time.Time
}

type InitiativeDraft struct {
	Draft
	Title          string
	ObjectiveTitle string
	Description    string
	Progress       *float64
	Status         string
	StartDate      *time.Time
	DueDate        *time.Time
	Budget         *float64
	ActualCost     *float64
}

type ActivityDraft struct {
	Draft
	Title           string
	InitiativeTitle string
	Description     string
	DueDate         *time.Time
}
