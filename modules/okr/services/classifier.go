package services

import (
	"strconv"
	"time"

	"github.com/stratix-hq/stratix-sdk/modules/okr/domain/entities/sheet"
)

// Column aliases accepted per field. Header matching is case-insensitive and
// treats spaces, dashes and underscores alike, so "Objective Title" and
// "objective_title" are the same column.
var (
	objectiveTitleCols       = []string{"objective_title", "objective"}
	objectiveDescriptionCols = []string{"objective_description"}
	objectiveProgressCols    = []string{"objective_progress"}
	objectivePriorityCols    = []string{"objective_priority", "priority"}
	objectiveStatusCols      = []string{"objective_status"}
	objectiveStartCols       = []string{"objective_start_date"}
	objectiveEndCols         = []string{"objective_end_date"}

	initiativeTitleCols       = []string{"initiative_title", "initiative"}
	initiativeDescriptionCols = []string{"initiative_description"}
	initiativeProgressCols    = []string{"initiative_progress"}
	initiativeStatusCols      = []string{"initiative_status"}
	initiativeStartCols       = []string{"initiative_start_date"}
	initiativeDueCols         = []string{"initiative_due_date", "target_date"}
	initiativeBudgetCols      = []string{"budget"}
	initiativeCostCols        = []string{"actual_cost"}

	activityTitleCols       = []string{"activity_title", "activity"}
	activityDescriptionCols = []string{"activity_description"}
	activityDueCols         = []string{"activity_due_date"}

	userEmailCols = []string{"user_email", "email"}
	userNameCols  = []string{"user_name", "full_name"}
	userRoleCols  = []string{"user_role", "role"}

	areaNameCols        = []string{"area_name", "area"}
	areaDescriptionCols = []string{"area_description"}

	// shared columns claimed by the row's most specific entity
	genericDescriptionCols = []string{"description"}
	genericProgressCols    = []string{"progress"}
	genericStatusCols      = []string{"status"}
	genericStartCols       = []string{"start_date"}
	genericEndCols         = []string{"end_date"}
	genericDueCols         = []string{"due_date"}
)

// ClassifyRows folds an ordered row list into entity drafts keyed by natural
// key. A single logical entity may be described incrementally across rows; a
// later non-empty value overrides an earlier one. Every row is owned by
// exactly one draft (its most specific entity shape) for counter accounting;
// rows with none of the key columns populated are recorded as no-ops.
func ClassifyRows(rows []sheet.ParsedRow) *sheet.ClassifiedSet {
	set := sheet.NewClassifiedSet()
	for _, row := range rows {
		classifyRow(set, row)
	}
	return set
}

func classifyRow(set *sheet.ClassifiedSet, row sheet.ParsedRow) {
	objectiveTitle := row.Get(objectiveTitleCols...)
	initiativeTitle := row.Get(initiativeTitleCols...)
	activityTitle := row.Get(activityTitleCols...)
	email := row.Get(userEmailCols...)
	areaName := row.Get(areaNameCols...)

	var owner *sheet.Draft
	dominant := sheet.EntityType("")
	switch {
	case activityTitle != "":
		dominant = sheet.EntityTypeActivity
	case initiativeTitle != "":
		dominant = sheet.EntityTypeInitiative
	case objectiveTitle != "":
		dominant = sheet.EntityTypeObjective
	case email != "":
		dominant = sheet.EntityTypeUser
	case areaName != "":
		dominant = sheet.EntityTypeArea
	default:
		set.NoOpRows = append(set.NoOpRows, row.Number)
		return
	}

	if areaName != "" {
		d := set.PutArea(&sheet.AreaDraft{
			Draft: sheet.Draft{Key: sheet.NormalizeKey(areaName)},
			Name:  areaName,
		})
		d.AddRow(row.Number)
		setString(&d.Description, row.Get(areaDescriptionCols...))
		if dominant == sheet.EntityTypeArea {
			owner = &d.Draft
			setString(&d.Description, row.Get(genericDescriptionCols...))
		}
	}

	if email != "" {
		d := set.PutUser(&sheet.UserDraft{
			Draft: sheet.Draft{Key: sheet.NormalizeKey(email)},
			Email: email,
		})
		d.AddRow(row.Number)
		setString(&d.FullName, row.Get(userNameCols...))
		setString(&d.Role, row.Get(userRoleCols...))
		if dominant == sheet.EntityTypeUser {
			owner = &d.Draft
		}
	}

	if objectiveTitle != "" {
		d := set.PutObjective(&sheet.ObjectiveDraft{
			Draft: sheet.Draft{Key: sheet.NormalizeKey(objectiveTitle)},
			Title: objectiveTitle,
		})
		d.AddRow(row.Number)
		setString(&d.Description, row.Get(objectiveDescriptionCols...))
		setString(&d.Priority, row.Get(objectivePriorityCols...))
		setString(&d.Status, row.Get(objectiveStatusCols...))
		setFloat(&d.Draft, &d.Progress, "progress", row.Get(objectiveProgressCols...))
		setDate(&d.Draft, &d.StartDate, "start_date", row.Get(objectiveStartCols...))
		setDate(&d.Draft, &d.EndDate, "end_date", row.Get(objectiveEndCols...))
		if dominant == sheet.EntityTypeObjective {
			owner = &d.Draft
			setString(&d.Description, row.Get(genericDescriptionCols...))
			setString(&d.Status, row.Get(genericStatusCols...))
			setFloat(&d.Draft, &d.Progress, "progress", row.Get(genericProgressCols...))
			setDate(&d.Draft, &d.StartDate, "start_date", row.Get(genericStartCols...))
			setDate(&d.Draft, &d.EndDate, "end_date", row.Get(genericEndCols...))
		}
	}

	if initiativeTitle != "" {
		d := set.PutInitiative(&sheet.InitiativeDraft{
			Draft:          sheet.Draft{Key: sheet.InitiativeKey(objectiveTitle, initiativeTitle)},
			Title:          initiativeTitle,
			ObjectiveTitle: objectiveTitle,
		})
		d.AddRow(row.Number)
		setString(&d.ObjectiveTitle, objectiveTitle)
		setString(&d.Description, row.Get(initiativeDescriptionCols...))
		setString(&d.Status, row.Get(initiativeStatusCols...))
		setFloat(&d.Draft, &d.Progress, "progress", row.Get(initiativeProgressCols...))
		setFloat(&d.Draft, &d.Budget, "budget", row.Get(initiativeBudgetCols...))
		setFloat(&d.Draft, &d.ActualCost, "actual_cost", row.Get(initiativeCostCols...))
		setDate(&d.Draft, &d.StartDate, "start_date", row.Get(initiativeStartCols...))
		setDate(&d.Draft, &d.DueDate, "due_date", row.Get(initiativeDueCols...))
		if dominant == sheet.EntityTypeInitiative {
			owner = &d.Draft
			setString(&d.Description, row.Get(genericDescriptionCols...))
			setString(&d.Status, row.Get(genericStatusCols...))
			setFloat(&d.Draft, &d.Progress, "progress", row.Get(genericProgressCols...))
			setDate(&d.Draft, &d.StartDate, "start_date", row.Get(genericStartCols...))
			setDate(&d.Draft, &d.DueDate, "due_date", row.Get(genericDueCols...))
		}
	}

	if activityTitle != "" {
		// activities carry no dedup key: every activity row is independent
		d := &sheet.ActivityDraft{
			Draft:           sheet.Draft{Key: sheet.NormalizeKey(activityTitle)},
			Title:           activityTitle,
			InitiativeTitle: initiativeTitle,
		}
		d.AddRow(row.Number)
		setString(&d.Description, row.Get(activityDescriptionCols...))
		setDate(&d.Draft, &d.DueDate, "due_date", row.Get(activityDueCols...))
		if d.InitiativeTitle == "" {
			d.InitiativeTitle = row.Get("parent_initiative")
		}
		if dominant == sheet.EntityTypeActivity {
			owner = &d.Draft
			setString(&d.Description, row.Get(genericDescriptionCols...))
			setDate(&d.Draft, &d.DueDate, "due_date", row.Get(genericDueCols...))
		}
		set.AddActivity(d)
	}

	if owner != nil {
		owner.Own(row.Number)
	}
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func setFloat(d *sheet.Draft, dst **float64, field, value string) {
	if value == "" {
		return
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		d.Faultf("%s: not a number: %q", field, value)
		return
	}
	*dst = &f
}

var dateLayouts = []string{"2006-01-02", "2006/01/02", time.RFC3339}

func setDate(d *sheet.Draft, dst **time.Time, field, value string) {
	if value == "" {
		return
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			u := t.UTC()
			*dst = &u
			return
		}
	}
	d.Faultf("%s: not a date: %q", field, value)
}
