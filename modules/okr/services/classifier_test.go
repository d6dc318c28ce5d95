package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratix-hq/stratix-sdk/modules/okr/domain/entities/sheet"
	"github.com/stratix-hq/stratix-sdk/modules/okr/services"
)

func row(number int, cells map[string]string) sheet.ParsedRow {
	return sheet.ParsedRow{Number: number, Cells: cells}
}

func TestClassifyRows_DedupByNaturalKey(t *testing.T) {
	t.Parallel()

	set := services.ClassifyRows([]sheet.ParsedRow{
		row(1, map[string]string{"objective_title": "Grow Revenue", "description": "first pass"}),
		row(2, map[string]string{"objective_title": "  grow revenue  ", "priority": "high"}),
	})

	require.Len(t, set.Objectives(), 1)
	obj := set.Objectives()[0]
	assert.Equal(t, "grow revenue", obj.Key)
	assert.Equal(t, "Grow Revenue", obj.Title)
	assert.Equal(t, "first pass", obj.Description)
	assert.Equal(t, "high", obj.Priority)
	assert.Equal(t, []int{1, 2}, obj.Rows)
	assert.Equal(t, []int{1, 2}, obj.Owned)
}

func TestClassifyRows_LastNonEmptyValueWins(t *testing.T) {
	t.Parallel()

	set := services.ClassifyRows([]sheet.ParsedRow{
		row(1, map[string]string{"objective_title": "Ship v2", "description": "old"}),
		row(2, map[string]string{"objective_title": "Ship v2", "description": ""}),
		row(3, map[string]string{"objective_title": "Ship v2", "description": "new"}),
	})

	require.Len(t, set.Objectives(), 1)
	assert.Equal(t, "new", set.Objectives()[0].Description)
}

func TestClassifyRows_RowOwnedByMostSpecificEntity(t *testing.T) {
	t.Parallel()

	set := services.ClassifyRows([]sheet.ParsedRow{
		row(1, map[string]string{
			"objective_title":  "Grow revenue",
			"initiative_title": "Launch EU site",
			"user_email":       "ana@example.com",
		}),
	})

	require.Len(t, set.Objectives(), 1)
	require.Len(t, set.Initiatives(), 1)
	require.Len(t, set.Users(), 1)

	// the row contributes to all three but is owned by the initiative only
	assert.Empty(t, set.Objectives()[0].Owned)
	assert.Empty(t, set.Users()[0].Owned)
	assert.Equal(t, []int{1}, set.Initiatives()[0].Owned)
	assert.Equal(t, []int{1}, set.Objectives()[0].Rows)
}

func TestClassifyRows_InitiativeKeyIncludesObjective(t *testing.T) {
	t.Parallel()

	set := services.ClassifyRows([]sheet.ParsedRow{
		row(1, map[string]string{"objective_title": "Obj A", "initiative_title": "Kickoff"}),
		row(2, map[string]string{"objective_title": "Obj B", "initiative_title": "Kickoff"}),
	})

	require.Len(t, set.Initiatives(), 2)
	assert.Equal(t, "obj a::kickoff", set.Initiatives()[0].Key)
	assert.Equal(t, "obj b::kickoff", set.Initiatives()[1].Key)
}

func TestClassifyRows_ActivitiesNeverDedup(t *testing.T) {
	t.Parallel()

	set := services.ClassifyRows([]sheet.ParsedRow{
		row(1, map[string]string{"activity_title": "Weekly sync", "initiative_title": "Kickoff"}),
		row(2, map[string]string{"activity_title": "Weekly sync", "initiative_title": "Kickoff"}),
	})

	require.Len(t, set.Activities(), 2)
	assert.Equal(t, []int{1}, set.Activities()[0].Owned)
	assert.Equal(t, []int{2}, set.Activities()[1].Owned)
	// the shared parent initiative is deduped as usual
	require.Len(t, set.Initiatives(), 1)
}

func TestClassifyRows_NoOpRows(t *testing.T) {
	t.Parallel()

	set := services.ClassifyRows([]sheet.ParsedRow{
		row(1, map[string]string{"description": "floating note"}),
		row(2, map[string]string{"objective_title": "Real"}),
	})

	assert.Equal(t, []int{1}, set.NoOpRows)
	assert.Equal(t, 1, set.EntityCount())
}

func TestClassifyRows_ParsesTypedFields(t *testing.T) {
	t.Parallel()

	set := services.ClassifyRows([]sheet.ParsedRow{
		row(1, map[string]string{
			"objective_title": "Grow revenue",
			"progress":        "42.5",
			"start_date":      "2026-01-01",
			"end_date":        "2026-06-30",
		}),
		row(2, map[string]string{
			"objective_title":  "Grow revenue",
			"initiative_title": "Launch EU site",
			"budget":           "150000",
			"target_date":      "2026-03-31",
		}),
	})

	require.Len(t, set.Objectives(), 1)
	obj := set.Objectives()[0]
	require.NotNil(t, obj.Progress)
	assert.InDelta(t, 42.5, *obj.Progress, 0.001)
	require.NotNil(t, obj.StartDate)
	assert.Equal(t, "2026-01-01", obj.StartDate.Format("2006-01-02"))

	require.Len(t, set.Initiatives(), 1)
	init := set.Initiatives()[0]
	require.NotNil(t, init.Budget)
	assert.InDelta(t, 150000, *init.Budget, 0.001)
	require.NotNil(t, init.DueDate)
}

func TestClassifyRows_UnparsableCellRecordsFault(t *testing.T) {
	t.Parallel()

	set := services.ClassifyRows([]sheet.ParsedRow{
		row(1, map[string]string{"objective_title": "Grow revenue", "progress": "lots"}),
		row(2, map[string]string{"objective_title": "Grow revenue", "start_date": "someday"}),
	})

	require.Len(t, set.Objectives(), 1)
	obj := set.Objectives()[0]
	require.Len(t, obj.Faults, 2)
	assert.Contains(t, obj.Faults[0], "not a number")
	assert.Contains(t, obj.Faults[1], "not a date")
	assert.Nil(t, obj.Progress)
}

func TestClassifyRows_UserAndAreaRows(t *testing.T) {
	t.Parallel()

	set := services.ClassifyRows([]sheet.ParsedRow{
		row(1, map[string]string{"email": "Ana@Example.com", "full_name": "Ana Costa", "role": "lead"}),
		row(2, map[string]string{"area_name": "Engineering", "description": "builds things"}),
	})

	require.Len(t, set.Users(), 1)
	assert.Equal(t, "ana@example.com", set.Users()[0].Key)
	assert.Equal(t, "Ana Costa", set.Users()[0].FullName)

	require.Len(t, set.Areas(), 1)
	assert.Equal(t, "engineering", set.Areas()[0].Key)
	assert.Equal(t, "builds things", set.Areas()[0].Description)
}
