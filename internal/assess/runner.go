// Package assess orchestrates an assessment run: claim the methodology
// version, load the record set and the prior run, score, and persist the
// result as one unit. Any failure after the claim marks the run failed;
// a partial run is never completed.
package assess

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/readiness-cli/internal/engine"
	"github.com/sells-group/readiness-cli/internal/model"
	"github.com/sells-group/readiness-cli/internal/store"
)

// failTimeout bounds the FailRun write after the run's own context ends.
const failTimeout = 10 * time.Second

// Options tunes one run.
type Options struct {
	// ReferenceYear anchors staleness; 0 uses the latest year in the records.
	ReferenceYear int
	// Records narrows the record set loaded from the store.
	Records store.RecordFilter
}

// Runner executes assessment runs against a store.
type Runner struct {
	store  store.Store
	engine *engine.Engine
	now    func() time.Time
	newID  func() string
}

// NewRunner returns a runner that scores with eng and persists to st.
func NewRunner(st store.Store, eng *engine.Engine) *Runner {
	return &Runner{
		store:  st,
		engine: eng,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// Run executes one assessment run and returns it completed. It returns
// store.ErrRunInProgress (wrapped) when another run holds the
// methodology version and store.ErrStaleBaseline when a competing run
// completed first.
func (r *Runner) Run(ctx context.Context, opts Options) (*model.AssessmentRun, error) {
	reg := r.engine.Registry()
	log := zap.L().With(zap.String("methodology_version", reg.Version))

	prior, err := r.store.LatestCompletedRun(ctx, reg.Version)
	if err != nil {
		return nil, eris.Wrap(err, "assess: load prior run")
	}

	run := &model.AssessmentRun{
		ID:                 r.newID(),
		MethodologyVersion: reg.Version,
		ReferenceYear:      opts.ReferenceYear,
		Methodology:        reg.Snapshot(),
		Rejections:         []model.RecordRejection{},
		StartedAt:          r.now(),
	}
	if prior != nil {
		run.PriorRunID = prior.ID
	}

	if err := r.store.BeginRun(ctx, run); err != nil {
		return nil, eris.Wrap(err, "assess: claim run")
	}
	log = log.With(zap.String("assessment_id", run.ID))
	log.Info("assess: run started", zap.String("prior_run_id", run.PriorRunID))

	if err := r.execute(ctx, run, prior, opts); err != nil {
		r.fail(ctx, run, err, log)
		return nil, err
	}

	log.Info("assess: run complete",
		zap.Int("countries", len(run.Scores)),
		zap.Int("records", run.RecordCount),
		zap.Int("rejections", len(run.Rejections)),
		zap.Int("reference_year", run.ReferenceYear),
	)
	return run, nil
}

func (r *Runner) execute(ctx context.Context, run *model.AssessmentRun, prior *model.AssessmentRun, opts Options) error {
	records, err := r.store.ListRecords(ctx, opts.Records)
	if err != nil {
		return eris.Wrap(err, "assess: load records")
	}

	res, err := r.engine.Run(ctx, engine.Input{
		Records:       records,
		ReferenceYear: opts.ReferenceYear,
		Prior:         PriorTotals(prior),
	})
	if err != nil {
		return eris.Wrap(err, "assess: score")
	}

	run.ReferenceYear = res.ReferenceYear
	run.RecordCount = res.RecordCount
	run.Rejections = res.Rejections
	run.Scores = res.Scores

	if err := r.store.CompleteRun(ctx, run); err != nil {
		return eris.Wrap(err, "assess: persist run")
	}
	return nil
}

// fail records the cause on the run. It uses a fresh context so a
// cancelled run is still released.
func (r *Runner) fail(ctx context.Context, run *model.AssessmentRun, cause error, log *zap.Logger) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failTimeout)
	defer cancel()

	run.Status = model.RunStatusFailed
	run.Error = cause.Error()
	if err := r.store.FailRun(fctx, run.ID, run.Error); err != nil {
		log.Error("assess: mark run failed", zap.Error(err), zap.NamedError("cause", cause))
		return
	}
	log.Warn("assess: run failed", zap.Error(cause))
}

// PriorTotals maps country code to total score for a completed run; nil
// for no run. Countries the prior run had no data for are left out so
// their next assessment reads as a baseline, not an improvement from 0.
func PriorTotals(run *model.AssessmentRun) map[string]float64 {
	if run == nil {
		return nil
	}
	out := make(map[string]float64, len(run.Scores))
	for _, cs := range run.Scores {
		if !assessed(cs) {
			continue
		}
		out[cs.CountryCode] = cs.TotalScore
	}
	return out
}

func assessed(cs model.CountryScore) bool {
	for _, p := range cs.Pillars {
		if p.Available {
			return true
		}
	}
	return false
}
