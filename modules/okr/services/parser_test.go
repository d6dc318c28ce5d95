package services_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/stratix-hq/stratix-sdk/modules/okr/domain/entities/sheet"
	"github.com/stratix-hq/stratix-sdk/modules/okr/domain/entities/sheetfile"
	"github.com/stratix-hq/stratix-sdk/modules/okr/services"
)

func TestParseBuffer_CSV(t *testing.T) {
	t.Parallel()

	data := strings.Join([]string{
		"Objective Title,Initiative Title,Priority",
		"Grow revenue,,high",
		",,",
		"Grow revenue,Launch EU site,",
	}, "\n")

	rows, err := services.ParseBuffer([]byte(data), "text/csv; charset=utf-8")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 1, rows[0].Number)
	assert.Equal(t, "Grow revenue", rows[0].Get("objective_title"))
	assert.Equal(t, "high", rows[0].Get("priority"))

	// empty row keeps its number but is dropped
	assert.Equal(t, 3, rows[1].Number)
	assert.Equal(t, "Launch EU site", rows[1].Get("initiative_title"))
}

func TestParseBuffer_CSVWithBOM(t *testing.T) {
	t.Parallel()

	data := "\xEF\xBB\xBFobjective_title\nShip v2\n"
	rows, err := services.ParseBuffer([]byte(data), sheetfile.ContentTypeCSV)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ship v2", rows[0].Get("objective_title"))
}

func TestParseBuffer_CSVRaggedRows(t *testing.T) {
	t.Parallel()

	data := "objective_title,priority\nShip v2\n"
	rows, err := services.ParseBuffer([]byte(data), sheetfile.ContentTypeCSV)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "", rows[0].Get("priority"))
}

func TestParseBuffer_CSVMissingHeader(t *testing.T) {
	t.Parallel()

	_, err := services.ParseBuffer(nil, sheetfile.ContentTypeCSV)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header")
}

func TestParseBuffer_UnsupportedFormat(t *testing.T) {
	t.Parallel()

	_, err := services.ParseBuffer([]byte("{}"), "application/json")
	require.ErrorIs(t, err, services.ErrUnsupportedFormat)
}

func TestParseBuffer_XLSXPrefersWorkbookSheet(t *testing.T) {
	t.Parallel()

	f := excelize.NewFile()
	_, err := f.NewSheet(services.WorkbookSheetName)
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"objective_title"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"decoy"}))
	require.NoError(t, f.SetSheetRow(services.WorkbookSheetName, "A1", &[]any{"objective_title", "priority"}))
	require.NoError(t, f.SetSheetRow(services.WorkbookSheetName, "A2", &[]any{"Grow revenue", "low"}))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	rows, err := services.ParseBuffer(buf.Bytes(), sheetfile.ContentTypeXLSX)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Grow revenue", rows[0].Get("objective_title"))
	assert.Equal(t, "low", rows[0].Get("priority"))
}

func TestParseBuffer_XLSXFallsBackToFirstSheet(t *testing.T) {
	t.Parallel()

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"area_name"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"Engineering"}))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	rows, err := services.ParseBuffer(buf.Bytes(), sheetfile.ContentTypeXLSX)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Engineering", rows[0].Get("area_name"))
}

func TestStreamCSVRows(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	sb.WriteString("objective_title\n")
	for i := 0; i < 7; i++ {
		sb.WriteString("Objective ")
		sb.WriteByte(byte('A' + i))
		sb.WriteString("\n")
	}

	var chunks [][]sheet.ParsedRow
	total, err := services.StreamCSVRows(strings.NewReader(sb.String()), 3, func(rows []sheet.ParsedRow) error {
		copied := make([]sheet.ParsedRow, len(rows))
		copy(copied, rows)
		chunks = append(chunks, copied)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 3)
	assert.Len(t, chunks[1], 3)
	assert.Len(t, chunks[2], 1)
	assert.Equal(t, "Objective A", chunks[0][0].Get("objective_title"))
	assert.Equal(t, 7, chunks[2][0].Number)
}

func TestStreamCSVRows_FlushErrorStops(t *testing.T) {
	t.Parallel()

	data := "objective_title\na\nb\nc\nd\n"
	calls := 0
	_, err := services.StreamCSVRows(strings.NewReader(data), 2, func([]sheet.ParsedRow) error {
		calls++
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, calls)
}
