package guide

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
)

// ParseCSV reads guide rows from CSV. Expected columns are
// operation, vehicle, low hours, high hours; a three column form with
// a single book-hours value is also accepted. Header rows and rows
// whose hour columns do not parse are skipped.
func ParseCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.Comment = '#'
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "guide: read csv")
	}
	return fromRecords(records)
}

// ParseXLSX reads guide rows from workbook bytes, using the named
// sheet or the first sheet when name is empty. Columns follow the
// same layout as ParseCSV.
func ParseXLSX(data []byte, sheetName string) ([]Row, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "guide: open workbook")
	}

	sheet, err := pickSheet(f, sheetName)
	if err != nil {
		return nil, err
	}

	records := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		records = append(records, cells)
	}
	return fromRecords(records)
}

func pickSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("guide: sheet %q not found", name)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("guide: workbook has no sheets")
	}
	return f.Sheets[0], nil
}

func fromRecords(records [][]string) ([]Row, error) {
	rows := make([]Row, 0, len(records))
	skipped := 0
	for _, rec := range records {
		row, ok := rowFromRecord(rec)
		if !ok {
			skipped++
			continue
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, eris.Errorf("guide: no usable rows (%d skipped)", skipped)
	}
	if skipped > 0 {
		zap.L().Debug("guide: skipped unusable rows", zap.Int("skipped", skipped))
	}
	return rows, nil
}

// rowFromRecord parses one record. Trailing empty cells, common in
// spreadsheet exports, are dropped before the column count is checked.
func rowFromRecord(fields []string) (Row, bool) {
	trimmed := make([]string, len(fields))
	for i, f := range fields {
		trimmed[i] = strings.TrimSpace(f)
	}
	for len(trimmed) > 0 && trimmed[len(trimmed)-1] == "" {
		trimmed = trimmed[:len(trimmed)-1]
	}
	if len(trimmed) < 3 {
		return Row{}, false
	}

	low, err := strconv.ParseFloat(trimmed[2], 64)
	if err != nil {
		return Row{}, false
	}
	high := low
	if len(trimmed) >= 4 {
		high, err = strconv.ParseFloat(trimmed[3], 64)
		if err != nil {
			return Row{}, false
		}
	}

	row := Row{
		Operation: trimmed[0],
		Vehicle:   trimmed[1],
		LowHours:  low,
		HighHours: high,
	}
	if !row.WellFormed() {
		return Row{}, false
	}
	return row, true
}
