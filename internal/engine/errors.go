package engine

import (
	"fmt"

	"github.com/sells-group/readiness-cli/internal/model"
	"github.com/sells-group/readiness-cli/internal/registry"
)

// DefinitionError reports a malformed methodology. It aborts the run.
type DefinitionError = registry.DefinitionError

// UnknownIndicatorError is returned when a record names an indicator the
// methodology does not define.
type UnknownIndicatorError struct {
	Code string
}

func (e *UnknownIndicatorError) Error() string {
	return fmt.Sprintf("engine: unknown indicator %q", e.Code)
}

// RecordError excludes one record from a run. It never aborts the run.
type RecordError struct {
	RecordID string
	Reason   model.RejectionReason
	Err      error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("engine: record %s rejected (%s): %v", e.RecordID, e.Reason, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

func recordErr(rec model.IndicatorRecord, reason model.RejectionReason, err error) *RecordError {
	return &RecordError{RecordID: rec.ID, Reason: reason, Err: err}
}

// rejection converts a record error into its audit entry.
func rejection(rec model.IndicatorRecord, country string, e *RecordError) model.RecordRejection {
	if country == "" {
		country = rec.CountryCode
	}
	detail := string(e.Reason)
	if e.Err != nil {
		detail = e.Err.Error()
	}
	return model.RecordRejection{
		RecordID:      rec.ID,
		CountryCode:   country,
		IndicatorCode: rec.IndicatorCode,
		Reason:        e.Reason,
		Detail:        detail,
	}
}
