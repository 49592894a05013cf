package ingest

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Format names an input file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// DetectFormat picks the format from the file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", eris.Errorf("ingest: unsupported file type %q", filepath.Ext(path))
}

// ReadFile reads every row from path, dispatching on its extension.
// sheet selects the XLSX worksheet and is ignored for other formats.
func ReadFile(ctx context.Context, path, sheet string) ([]Row, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	if format == FormatXLSX {
		return ReadXLSX(ctx, path, sheet)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	if format == FormatJSON {
		return ReadJSON(ctx, f)
	}
	return ReadCSV(ctx, f)
}

// ReadCSV decodes a headered CSV stream.
func ReadCSV(ctx context.Context, r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read csv header")
	}
	return decodeRows(ctx, cr, header)
}

// ReadXLSX decodes the named worksheet, or the first one when sheet is
// empty. The first row is the header.
func ReadXLSX(ctx context.Context, path, sheet string) ([]Row, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open xlsx %s", path)
	}

	s, err := getSheet(f, sheet)
	if err != nil {
		return nil, err
	}
	if len(s.Rows) == 0 {
		return nil, nil
	}

	rows := make([][]string, 0, len(s.Rows)-1)
	for _, row := range s.Rows[1:] {
		rows = append(rows, rowToStrings(row))
	}
	return decodeRows(ctx, &sliceReader{rows: rows}, rowToStrings(s.Rows[0]))
}

// ReadJSON decodes either a bare array of rows or an object with a
// "records" array.
func ReadJSON(ctx context.Context, r io.Reader) ([]Row, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read opening token")
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return nil, eris.Errorf("ingest: expected '[' or '{', got %v", tok)
	}
	if delim == '{' {
		if err := seekRecords(dec); err != nil {
			return nil, err
		}
	} else if delim != '[' {
		return nil, eris.Errorf("ingest: expected '[' or '{', got %v", delim)
	}

	var rows []Row
	for line := 1; dec.More(); line++ {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "ingest: context cancelled")
		}
		var row Row
		if err := dec.Decode(&row); err != nil {
			return nil, eris.Wrapf(err, "ingest: decode element %d", line)
		}
		row.Line = line
		rows = append(rows, row)
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, eris.Wrap(err, "ingest: read closing token")
	}
	return rows, nil
}

// seekRecords advances dec to the first element of the "records" array,
// skipping any other keys.
func seekRecords(dec *json.Decoder) error {
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return eris.Wrap(err, "ingest: read object key")
		}
		if key, _ := tok.(string); key == "records" {
			tok, err := dec.Token()
			if err != nil {
				return eris.Wrap(err, "ingest: read records array")
			}
			if d, ok := tok.(json.Delim); !ok || d != '[' {
				return eris.Errorf("ingest: records must be an array, got %v", tok)
			}
			return nil
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return eris.Wrap(err, "ingest: skip object value")
		}
	}
	return eris.New("ingest: object has no records array")
}

// decodeRows maps data rows onto Row through the normalized header.
// Data rows are numbered from 2 so the number matches the line a person
// sees in a spreadsheet.
func decodeRows(ctx context.Context, r csvutil.Reader, header []string) ([]Row, error) {
	dec, err := csvutil.NewDecoder(&padReader{r: r, width: len(header)}, normalizeHeader(header)...)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: build decoder")
	}

	var rows []Row
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "ingest: context cancelled")
		}
		var row Row
		if err := dec.Decode(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, eris.Wrapf(err, "ingest: decode line %d", line)
		}
		if blank(dec.Record()) {
			continue
		}
		row.Line = line
		rows = append(rows, row)
	}
	return rows, nil
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// padReader squares ragged rows to the header width; spreadsheets drop
// trailing empty cells.
type padReader struct {
	r     csvutil.Reader
	width int
}

func (p *padReader) Read() ([]string, error) {
	rec, err := p.r.Read()
	if err != nil {
		return nil, err
	}
	switch {
	case len(rec) < p.width:
		rec = append(rec, make([]string, p.width-len(rec))...)
	case len(rec) > p.width:
		rec = rec[:p.width]
	}
	return rec, nil
}

// sliceReader feeds pre-read rows to csvutil.
type sliceReader struct {
	rows [][]string
	next int
}

func (s *sliceReader) Read() ([]string, error) {
	if s.next >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.next]
	s.next++
	return row, nil
}

func getSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("ingest: sheet %q not found", name)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("ingest: workbook has no sheets")
	}
	return f.Sheets[0], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
