package services

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/stratix-hq/stratix-sdk/modules/okr/domain/entities/sheet"
)

var fieldValidator = validator.New(validator.WithRequiredStructEnabled())

const (
	defaultPriority         = "medium"
	defaultObjectiveStatus  = "planning"
	defaultInitiativeStatus = "in_progress"
)

var (
	priorities         = map[string]struct{}{"high": {}, "medium": {}, "low": {}}
	objectiveStatuses  = map[string]struct{}{"planning": {}, "in_progress": {}, "completed": {}, "overdue": {}}
	initiativeStatuses = map[string]struct{}{"planning": {}, "in_progress": {}, "completed": {}, "on_hold": {}}
)

// ValidationErrors maps a draft's composite identity (type + key) to the
// blocking problems found on it. Drafts without an entry passed validation;
// drafts may still carry non-blocking warnings on their Draft.Warnings.
type ValidationErrors map[string][]string

func (v ValidationErrors) add(t sheet.EntityType, key, msg string) {
	id := string(t) + ":" + key
	v[id] = append(v[id], msg)
}

func (v ValidationErrors) For(t sheet.EntityType, key string) []string {
	return v[string(t)+":"+key]
}

// Activities carry no dedup key, so their errors are scoped by source row to
// keep two same-titled activities apart.
func (v ValidationErrors) ForActivity(d *sheet.ActivityDraft) []string {
	return v.For(sheet.EntityTypeActivity, activityErrKey(d))
}

func activityErrKey(d *sheet.ActivityDraft) string {
	return fmt.Sprintf("%s#%d", d.Key, d.FirstRow())
}

// Validate applies the import rules to every draft in the set. Recoverable
// problems (unknown priority or status values) are replaced with defaults and
// recorded as warnings on the draft; structural problems (out-of-range
// progress, inverted date ranges, an activity with no parent initiative,
// unparsable cells) become blocking errors that fail the draft's rows without
// stopping the rest of the import.
func Validate(set *sheet.ClassifiedSet) ValidationErrors {
	errs := ValidationErrors{}

	for _, d := range set.Areas() {
		foldFaults(errs, sheet.EntityTypeArea, &d.Draft)
	}

	for _, d := range set.Users() {
		foldFaults(errs, sheet.EntityTypeUser, &d.Draft)
		if err := fieldValidator.Var(d.Email, "email"); err != nil {
			d.Warn(fmt.Sprintf("email %q looks malformed", d.Email))
		}
	}

	for _, d := range set.Objectives() {
		foldFaults(errs, sheet.EntityTypeObjective, &d.Draft)
		d.Priority = normalizeEnum(&d.Draft, "priority", d.Priority, priorities, defaultPriority)
		d.Status = normalizeEnum(&d.Draft, "status", d.Status, objectiveStatuses, defaultObjectiveStatus)
		checkProgress(errs, sheet.EntityTypeObjective, &d.Draft, d.Progress)
		if d.StartDate != nil && d.EndDate != nil && d.EndDate.Before(*d.StartDate) {
			errs.add(sheet.EntityTypeObjective, d.Key, "end_date precedes start_date")
		}
	}

	for _, d := range set.Initiatives() {
		foldFaults(errs, sheet.EntityTypeInitiative, &d.Draft)
		d.Status = normalizeEnum(&d.Draft, "status", d.Status, initiativeStatuses, defaultInitiativeStatus)
		checkProgress(errs, sheet.EntityTypeInitiative, &d.Draft, d.Progress)
		if d.StartDate != nil && d.DueDate != nil && d.DueDate.Before(*d.StartDate) {
			errs.add(sheet.EntityTypeInitiative, d.Key, "due_date precedes start_date")
		}
		if d.Budget != nil && *d.Budget < 0 {
			errs.add(sheet.EntityTypeInitiative, d.Key, "budget is negative")
		}
		if d.ActualCost != nil && *d.ActualCost < 0 {
			errs.add(sheet.EntityTypeInitiative, d.Key, "actual_cost is negative")
		}
	}

	for _, d := range set.Activities() {
		key := activityErrKey(d)
		for _, f := range d.Faults {
			errs.add(sheet.EntityTypeActivity, key, f)
		}
		if strings.TrimSpace(d.InitiativeTitle) == "" {
			errs.add(sheet.EntityTypeActivity, key, "activity has no initiative_title")
		}
	}

	return errs
}

func foldFaults(errs ValidationErrors, t sheet.EntityType, d *sheet.Draft) {
	for _, f := range d.Faults {
		errs.add(t, d.Key, f)
	}
}

func normalizeEnum(d *sheet.Draft, field, value string, allowed map[string]struct{}, fallback string) string {
	if value == "" {
		return fallback
	}
	normalized := sheet.NormalizeKey(strings.ReplaceAll(value, " ", "_"))
	if _, ok := allowed[normalized]; ok {
		return normalized
	}
	d.Warn(fmt.Sprintf("unknown %s %q, defaulting to %q", field, value, fallback))
	return fallback
}

func checkProgress(errs ValidationErrors, t sheet.EntityType, d *sheet.Draft, progress *float64) {
	if progress == nil {
		return
	}
	if *progress < 0 || *progress > 100 {
		errs.add(t, d.Key, fmt.Sprintf("progress %v outside 0..100", *progress))
	}
}
