package export

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/readiness-cli/internal/model"
)

// Sheet names in the XLSX workbook.
const (
	SheetScores     = "scores"
	SheetPillars    = "pillars"
	SheetIndicators = "indicators"
	SheetRejections = "rejections"
)

// WriteCSV writes one row per country. The header is written even when
// the run has no scores.
func WriteCSV(w io.Writer, run *model.AssessmentRun) error {
	if run == nil {
		return eris.New("export: nil run")
	}
	cw := csv.NewWriter(w)
	if err := encodeTable(cw, ScoreRow{}, ScoreRows(run)); err != nil {
		return eris.Wrap(err, "export: scores csv")
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// WriteXLSX writes the scores, pillars, indicators and rejections sheets.
func WriteXLSX(w io.Writer, run *model.AssessmentRun) error {
	if run == nil {
		return eris.New("export: nil run")
	}
	f := xlsx.NewFile()

	sheets := []struct {
		name  string
		write func(csvutil.Writer) error
	}{
		{SheetScores, func(sw csvutil.Writer) error { return encodeTable(sw, ScoreRow{}, ScoreRows(run)) }},
		{SheetPillars, func(sw csvutil.Writer) error { return encodeTable(sw, PillarRow{}, PillarRows(run)) }},
		{SheetIndicators, func(sw csvutil.Writer) error { return encodeTable(sw, IndicatorRow{}, IndicatorRows(run)) }},
		{SheetRejections, func(sw csvutil.Writer) error { return encodeTable(sw, RejectionRow{}, RejectionRows(run)) }},
	}
	for _, s := range sheets {
		sheet, err := f.AddSheet(s.name)
		if err != nil {
			return eris.Wrapf(err, "export: add sheet %s", s.name)
		}
		if err := s.write(&sheetWriter{sheet: sheet}); err != nil {
			return eris.Wrapf(err, "export: %s sheet", s.name)
		}
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write xlsx")
	}
	return nil
}

// encodeTable writes the header for zero followed by rows.
func encodeTable[T any](w csvutil.Writer, zero T, rows []T) error {
	enc := csvutil.NewEncoder(w)
	if err := enc.EncodeHeader(zero); err != nil {
		return err
	}
	for i := range rows {
		if err := enc.Encode(rows[i]); err != nil {
			return err
		}
	}
	return nil
}

// sheetWriter adapts an XLSX sheet to csvutil. Finite numbers become
// numeric cells so spreadsheet formulas work on them.
type sheetWriter struct {
	sheet *xlsx.Sheet
}

func (s *sheetWriter) Write(record []string) error {
	row := s.sheet.AddRow()
	for _, v := range record {
		cell := row.AddCell()
		if f, ok := numeric(v); ok {
			cell.SetFloat(f)
			continue
		}
		cell.SetString(v)
	}
	return nil
}

func numeric(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
