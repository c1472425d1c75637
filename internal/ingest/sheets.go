package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/xuri/excelize/v2"
)

var (
	zipMagic  = []byte("PK\x03\x04")
	ole2Magic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	utf8BOM   = []byte{0xEF, 0xBB, 0xBF}
)

// sheet is the first worksheet of an upload as rows of cell text.
type sheet struct {
	Name   string
	Others []string
	Cells  [][]string
}

func readCSV(data []byte) (*sheet, error) {
	cr := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	cells, err := cr.ReadAll()
	if err != nil {
		return nil, &ParseError{Format: string(FormatCSV), Err: fmt.Errorf("read csv: %w", err)}
	}
	return &sheet{Name: "Sheet1", Cells: cells}, nil
}

// sniffWorkbook identifies a binary workbook from its leading bytes.
func sniffWorkbook(data []byte) (Format, error) {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return FormatXLSX, nil
	case bytes.HasPrefix(data, ole2Magic):
		return FormatXLS, nil
	default:
		return "", &ParseError{Format: "workbook", Err: fmt.Errorf("unrecognised workbook signature")}
	}
}

func readXLSX(data []byte) (*sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{Format: string(FormatXLSX), Err: fmt.Errorf("open xlsx: %w", err)}
	}
	defer f.Close()

	names := f.GetSheetList()
	if len(names) == 0 {
		return nil, &ParseError{Format: string(FormatXLSX), Err: fmt.Errorf("workbook has no sheets")}
	}
	// Raw values keep percent- or date-formatted cells numeric.
	cells, err := f.GetRows(names[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &ParseError{Format: string(FormatXLSX), Err: fmt.Errorf("read sheet %q: %w", names[0], err)}
	}
	dropBooleans(f, names[0], cells)
	return &sheet{Name: names[0], Others: names[1:], Cells: cells}, nil
}

// dropBooleans clears boolean cells, whose raw values "1" and "0" would
// otherwise read as numbers.
func dropBooleans(f *excelize.File, name string, cells [][]string) {
	for r, line := range cells {
		for c, v := range line {
			if v != "0" && v != "1" {
				continue
			}
			ref, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				continue
			}
			if t, err := f.GetCellType(name, ref); err == nil && t == excelize.CellTypeBool {
				line[c] = ""
			}
		}
	}
}

// rowsToRaw keys each row by the header row. Leading and interior blank rows
// are dropped, empty cells are left out, and repeated headers get _1, _2
// suffixes so the first occurrence keeps the bare name.
func rowsToRaw(cells [][]string) []RawRow {
	start := 0
	for start < len(cells) && isBlank(cells[start]) {
		start++
	}
	if start >= len(cells) {
		return []RawRow{}
	}

	header := headerKeys(cells[start])
	rows := make([]RawRow, 0, len(cells)-start-1)
	for _, line := range cells[start+1:] {
		if isBlank(line) {
			continue
		}
		row := make(RawRow, len(header))
		for j, v := range line {
			if j >= len(header) || header[j] == "" || v == "" {
				continue
			}
			row[header[j]] = v
		}
		rows = append(rows, row)
	}
	return rows
}

func headerKeys(line []string) []string {
	keys := make([]string, len(line))
	seen := make(map[string]int, len(line))
	for i, h := range line {
		if h == "" {
			continue
		}
		if n, ok := seen[h]; ok {
			seen[h] = n + 1
			keys[i] = fmt.Sprintf("%s_%d", h, n+1)
			continue
		}
		seen[h] = 0
		keys[i] = h
	}
	return keys
}

func isBlank(line []string) bool {
	for _, v := range line {
		if v != "" {
			return false
		}
	}
	return true
}
