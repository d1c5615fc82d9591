package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Row is one recipient row, keyed by column name. Every row parsed from a
// sheet carries a value (possibly empty) for every column in the header.
type Row map[string]string

// Sheet is a parsed recipient table: the header columns in file order and
// the data rows in file order.
type Sheet struct {
	Columns []string
	Rows    []Row
}

// ParseSheet parses spreadsheet bytes into a Sheet. The format is chosen by
// the key's extension: .csv is read as CSV, everything else as xlsx.
func ParseSheet(key string, data []byte) (*Sheet, error) {
	if strings.ToLower(filepath.Ext(key)) == ".csv" {
		return parseCSV(data)
	}
	return parseXLSX(data)
}

func parseXLSX(data []byte) (*Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("spreadsheet contains no sheets")
	}

	// Only the first sheet is read; multi-sheet workbooks are out of scope.
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}

	return buildSheet(rows), nil
}

func parseCSV(data []byte) (*Sheet, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1 // ragged rows are padded below

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}

	return buildSheet(records), nil
}

func buildSheet(raw [][]string) *Sheet {
	if len(raw) == 0 {
		return &Sheet{}
	}

	columns := make([]string, 0, len(raw[0]))
	for _, name := range raw[0] {
		columns = append(columns, strings.TrimSpace(name))
	}

	sheet := &Sheet{Columns: columns}
	for _, cells := range raw[1:] {
		if isEmptyRow(cells) {
			continue
		}
		row := make(Row, len(columns))
		for i, name := range columns {
			if i < len(cells) {
				row[name] = cells[i]
			} else {
				row[name] = "" // short rows are padded to the full column set
			}
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet
}

func isEmptyRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
