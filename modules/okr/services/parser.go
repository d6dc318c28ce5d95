package services

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/stratix-hq/stratix-sdk/modules/okr/domain/entities/sheet"
	"github.com/stratix-hq/stratix-sdk/modules/okr/domain/entities/sheetfile"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")

// WorkbookSheetName is the sheet the parser prefers when present; otherwise
// the first sheet of the workbook is read.
const WorkbookSheetName = "OKR_Bulk"

var spreadsheetContentTypes = map[string]struct{}{
	sheetfile.ContentTypeXLSX:    {},
	"application/vnd.ms-excel":   {},
	"application/x-vnd.ms-excel": {},
}

func IsCSVContentType(contentType string) bool {
	mime := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	return mime == sheetfile.ContentTypeCSV
}

func IsSpreadsheetContentType(contentType string) bool {
	mime := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	_, ok := spreadsheetContentTypes[mime]
	return ok
}

// ParseBuffer converts a raw file buffer plus its declared content type into
// the ordered row list. It is a pure transform: no side effects, no state.
func ParseBuffer(data []byte, contentType string) ([]sheet.ParsedRow, error) {
	switch {
	case IsCSVContentType(contentType):
		return parseCSV(bytes.NewReader(data))
	case IsSpreadsheetContentType(contentType):
		return parseXLSX(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, contentType)
	}
}

func parseCSV(r io.Reader) ([]sheet.ParsedRow, error) {
	cr, header, err := openCSV(r)
	if err != nil {
		return nil, err
	}

	var rows []sheet.ParsedRow
	number := 0
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("csv row %d: %w", number+1, err)
		}
		number++
		row := recordToRow(header, rec, number)
		if row.IsEmpty() {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// StreamCSVRows parses CSV incrementally, invoking flush with fixed-size row
// chunks so only one chunk of rows is resident at a time. It returns the
// total number of data rows read. CSV is the only format that streams;
// spreadsheets are always parsed in memory.
func StreamCSVRows(r io.Reader, chunkSize int, flush func([]sheet.ParsedRow) error) (int, error) {
	if chunkSize <= 0 {
		return 0, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	cr, header, err := openCSV(r)
	if err != nil {
		return 0, err
	}

	chunk := make([]sheet.ParsedRow, 0, chunkSize)
	number := 0
	delivered := 0
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return delivered, fmt.Errorf("csv row %d: %w", number+1, err)
		}
		number++
		row := recordToRow(header, rec, number)
		if row.IsEmpty() {
			continue
		}
		chunk = append(chunk, row)
		delivered++
		if len(chunk) == chunkSize {
			if err := flush(chunk); err != nil {
				return delivered, err
			}
			chunk = make([]sheet.ParsedRow, 0, chunkSize)
		}
	}
	if len(chunk) > 0 {
		if err := flush(chunk); err != nil {
			return delivered, err
		}
	}
	return delivered, nil
}

func openCSV(r io.Reader) (*csv.Reader, []string, error) {
	br := stripUTF8BOM(bufio.NewReader(r))

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("missing header row")
		}
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	return cr, header, nil
}

func stripUTF8BOM(r *bufio.Reader) *bufio.Reader {
	b, err := r.Peek(3)
	if err == nil && len(b) == 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		_, _ = r.Discard(3)
	}
	return r
}

func recordToRow(header []string, rec []string, number int) sheet.ParsedRow {
	cells := make(map[string]string, len(header))
	for i, name := range header {
		if name == "" {
			continue
		}
		// missing trailing cells default to empty, never a gap
		value := ""
		if i < len(rec) {
			value = strings.TrimSpace(rec[i])
		}
		cells[name] = value
	}
	return sheet.ParsedRow{Number: number, Cells: cells}
}

func parseXLSX(data []byte) ([]sheet.ParsedRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %v", ErrUnsupportedFormat, err)
	}
	defer func() { _ = f.Close() }()

	sheetName := ""
	for _, name := range f.GetSheetList() {
		if name == WorkbookSheetName {
			sheetName = name
			break
		}
	}
	if sheetName == "" {
		list := f.GetSheetList()
		if len(list) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheetName = list[0]
	}

	records, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheetName, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}

	var rows []sheet.ParsedRow
	for i, rec := range records[1:] {
		row := recordToRow(header, rec, i+1)
		if row.IsEmpty() {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}
