// Package export renders assessment runs for downstream consumers: the
// self-describing JSON document the dashboard reads, a flat CSV for
// analysis tooling and a multi-sheet XLSX workbook.
package export

import (
	"encoding/json"
	"io"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/readiness-cli/internal/model"
)

// Schema identifies the JSON document layout.
const Schema = "readiness.assessment/v1"

// Document is the JSON envelope around a run.
type Document struct {
	Schema      string    `json:"schema"`
	GeneratedAt time.Time `json:"generated_at"`
	*model.AssessmentRun
}

// NewDocument wraps run for serialization.
func NewDocument(run *model.AssessmentRun, now time.Time) Document {
	return Document{Schema: Schema, GeneratedAt: now.UTC(), AssessmentRun: run}
}

// WriteJSON writes run as an indented Document.
func WriteJSON(w io.Writer, run *model.AssessmentRun, now time.Time) error {
	if run == nil {
		return eris.New("export: nil run")
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewDocument(run, now)); err != nil {
		return eris.Wrapf(err, "export: encode run %s", run.ID)
	}
	return nil
}
