package inventory

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Column keyword sets for header resolution. Headers are matched
// case-insensitively by substring, so "DBH (cm)" and "girth_cm" both
// resolve. Species, measurement, and both coordinate columns are required.
var (
	speciesHeaders = []string{"species", "spp", "prajati"}
	heightHeaders  = []string{"height", "ht", "uchai"}
	classHeaders   = []string{"class", "grade"}
	xHeaders       = []string{"x", "easting", "lon", "longitude"}
	yHeaders       = []string{"y", "northing", "lat", "latitude"}
)

// measurementHeaders reuses the detector keyword lists: any girth or
// diameter keyword identifies the measurement column.
func measurementHeaders() []string {
	return append(append([]string{}, girthKeywords...), diameterKeywords...)
}

// Dataset is the ingested tabular input for one validation pass: typed
// rows built once, so downstream stages never do dynamic column lookups.
type Dataset struct {
	Rows []RawRow
	// MeasurementLabel is the measurement column's original header, fed to
	// the measurement-type detector's keyword step.
	MeasurementLabel string
	// Columns maps role to the resolved 0-based column index.
	Columns map[string]int
}

// ErrNoCoordinateColumns makes the one unrecoverable ingestion failure
// distinguishable: with no coordinates at all, continued analysis is
// meaningless and the pass short-circuits with a minimal report.
var ErrNoCoordinateColumns = fmt.Errorf("no coordinate columns found")

// ReadWorkbook opens an XLSX workbook and ingests its first sheet.
func ReadWorkbook(path string) (*Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
	}
	return IngestRows(rows)
}

// IngestRows builds a Dataset from raw string rows (header row first).
// Column roles are resolved from the header by keyword; blank rows are
// skipped. Row numbers are 1-based data-row ordinals, matching what the
// surveyor sees in their spreadsheet minus the header.
func IngestRows(raw [][]string) (*Dataset, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("sheet is empty")
	}

	header := raw[0]
	cols := map[string]int{}
	if i, ok := findColumn(header, speciesHeaders); ok {
		cols["species"] = i
	} else {
		return nil, fmt.Errorf("missing species column (looked for %s)", strings.Join(speciesHeaders, ", "))
	}
	measurementLabel := ""
	if i, ok := findColumn(header, measurementHeaders()); ok {
		cols["measurement"] = i
		measurementLabel = strings.TrimSpace(header[i])
	} else {
		return nil, fmt.Errorf("missing girth/diameter column")
	}
	xi, xok := findColumn(header, xHeaders)
	yi, yok := findColumn(header, yHeaders)
	if !xok || !yok {
		return nil, ErrNoCoordinateColumns
	}
	cols["x"] = xi
	cols["y"] = yi
	if i, ok := findColumn(header, heightHeaders); ok {
		cols["height"] = i
	}
	if i, ok := findColumn(header, classHeaders); ok {
		cols["class"] = i
	}

	ds := &Dataset{MeasurementLabel: measurementLabel, Columns: cols}
	rowNumber := 0
	for r := 1; r < len(raw); r++ {
		cells := raw[r]
		if isBlankRow(cells) {
			continue
		}
		rowNumber++

		measurement, err := parseCell(cells, cols["measurement"])
		if err != nil {
			return nil, fmt.Errorf("row %d: measurement: %w", rowNumber, err)
		}
		x, err := parseCell(cells, cols["x"])
		if err != nil {
			return nil, fmt.Errorf("row %d: x coordinate: %w", rowNumber, err)
		}
		y, err := parseCell(cells, cols["y"])
		if err != nil {
			return nil, fmt.Errorf("row %d: y coordinate: %w", rowNumber, err)
		}

		row := RawRow{
			RowNumber:    rowNumber,
			SpeciesToken: strings.TrimSpace(cellAt(cells, cols["species"])),
			Measurement:  measurement,
			X:            x,
			Y:            y,
		}
		if i, ok := cols["height"]; ok {
			if h, err := parseCell(cells, i); err == nil {
				row.Height = &h
			}
		}
		if i, ok := cols["class"]; ok {
			row.ClassCode = strings.TrimSpace(cellAt(cells, i))
		}
		ds.Rows = append(ds.Rows, row)
	}

	if len(ds.Rows) == 0 {
		return nil, fmt.Errorf("sheet has a header but no data rows")
	}
	return ds, nil
}

// findColumn returns the first header cell containing any keyword. Short
// keywords ("x", "y") must match the whole trimmed header to avoid
// matching inside longer words.
func findColumn(header []string, keywords []string) (int, bool) {
	for i, cell := range header {
		h := strings.ToLower(strings.TrimSpace(cell))
		if h == "" {
			continue
		}
		for _, kw := range keywords {
			if len(kw) <= 2 {
				if h == kw {
					return i, true
				}
				continue
			}
			if strings.Contains(h, kw) {
				return i, true
			}
		}
	}
	return 0, false
}

func cellAt(cells []string, i int) string {
	if i < len(cells) {
		return cells[i]
	}
	return ""
}

// parseCell parses a numeric cell leniently: surrounding whitespace is
// trimmed and decimal commas accepted, since exports from regional
// spreadsheet locales use them.
func parseCell(cells []string, i int) (float64, error) {
	s := strings.TrimSpace(cellAt(cells, i))
	if s == "" {
		return 0, fmt.Errorf("empty cell")
	}
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return v, nil
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
