package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/readiness-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db, goose.DialectSQLite3, "sqlite")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) AppendRecords(ctx context.Context, records []model.IndicatorRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: append records: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO indicator_records (`+strings.Join(recordColumns, ", ")+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: append records: prepare")
	}
	defer stmt.Close() //nolint:errcheck

	var inserted int
	for _, r := range records {
		row, err := recordRow(r)
		if err != nil {
			return 0, err
		}
		res, err := stmt.ExecContext(ctx, row...)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert record %s", r.ID)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: rows affected")
		}
		inserted += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: append records: commit")
	}
	return inserted, nil
}

func (s *SQLiteStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.IndicatorRecord, error) {
	query := `SELECT ` + strings.Join(recordColumns, ", ") + ` FROM indicator_records WHERE 1=1`
	var args []any
	if filter.CountryCode != "" {
		query += ` AND country_code = ?`
		args = append(args, filter.CountryCode)
	}
	if filter.IndicatorCode != "" {
		query += ` AND indicator_code = ?`
		args = append(args, filter.IndicatorCode)
	}
	if filter.FromYear > 0 {
		query += ` AND period_year >= ?`
		args = append(args, filter.FromYear)
	}
	if filter.ToYear > 0 {
		query += ` AND period_year <= ?`
		args = append(args, filter.ToYear)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close() //nolint:errcheck

	out := []model.IndicatorRecord{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list records iterate")
}

func (s *SQLiteStore) BeginRun(ctx context.Context, run *model.AssessmentRun) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	run.Status = model.RunStatusRunning
	methodology, rejections, err := marshalRunMeta(run)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO assessment_runs (id, methodology_version, methodology_hash, status, reference_year,
		 prior_run_id, methodology, record_count, rejection_count, rejections, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.MethodologyVersion, run.Methodology.Hash, string(run.Status), run.ReferenceYear,
		run.PriorRunID, string(methodology), run.RecordCount, len(run.Rejections), string(rejections), run.StartedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return eris.Wrapf(ErrRunInProgress, "methodology %s", run.MethodologyVersion)
		}
		return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
	}
	return nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, run *model.AssessmentRun) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: complete run: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var latest string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM assessment_runs WHERE methodology_version = ? AND status = ?
		 ORDER BY completed_at DESC, id DESC LIMIT 1`,
		run.MethodologyVersion, string(model.RunStatusComplete),
	).Scan(&latest)
	if err != nil && err != sql.ErrNoRows {
		return eris.Wrap(err, "sqlite: read latest run")
	}
	if err := checkBaseline(run, latest); err != nil {
		return err
	}

	recStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO reconciled_indicators (assessment_id, country_code, indicator_code, pillar,
		 value, confidence, conflict, is_proxy, document) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare reconciled insert")
	}
	defer recStmt.Close() //nolint:errcheck

	scoreStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO country_scores (assessment_id, country_code, total_score, readiness_tier,
		 overall_confidence, document) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare score insert")
	}
	defer scoreStmt.Close() //nolint:errcheck

	for _, cs := range run.Scores {
		for _, ri := range cs.Reconciled {
			doc, err := json.Marshal(ri)
			if err != nil {
				return eris.Wrap(err, "sqlite: marshal reconciled indicator")
			}
			if _, err := recStmt.ExecContext(ctx, run.ID, ri.CountryCode, ri.IndicatorCode, string(ri.Pillar),
				ri.Value, ri.Confidence, ri.Conflict, ri.IsProxy, string(doc)); err != nil {
				return eris.Wrapf(err, "sqlite: insert reconciled %s/%s", ri.CountryCode, ri.IndicatorCode)
			}
		}
		doc, err := scoreDocument(cs)
		if err != nil {
			return err
		}
		if _, err := scoreStmt.ExecContext(ctx, run.ID, cs.CountryCode, cs.TotalScore, int(cs.Tier),
			cs.OverallConfidence, string(doc)); err != nil {
			return eris.Wrapf(err, "sqlite: insert score %s", cs.CountryCode)
		}
	}

	now := time.Now().UTC()
	_, rejections, err := marshalRunMeta(run)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE assessment_runs SET status = ?, reference_year = ?, record_count = ?, rejection_count = ?,
		 rejections = ?, completed_at = ? WHERE id = ? AND status = ?`,
		string(model.RunStatusComplete), run.ReferenceYear, run.RecordCount, len(run.Rejections),
		string(rejections), now, run.ID, string(model.RunStatusRunning),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", run.ID)
	}
	if err := checkRowsAffected(res, run.ID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: complete run: commit")
	}
	run.Status = model.RunStatusComplete
	run.CompletedAt = &now
	return nil
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE assessment_runs SET status = ?, error = ?, completed_at = ? WHERE id = ? AND status = ?`,
		string(model.RunStatusFailed), reason, time.Now().UTC(), runID, string(model.RunStatusRunning),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

const sqliteRunColumns = `id, methodology_version, status, reference_year, prior_run_id, methodology,
	record_count, rejections, error, started_at, completed_at`

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.AssessmentRun, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteRunColumns+` FROM assessment_runs WHERE id = ?`, runID)
	run, err := scanSQLiteRun(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	if err != nil {
		return nil, err
	}

	scores, err := s.loadScores(ctx, runID)
	if err != nil {
		return nil, err
	}
	recs, err := s.loadReconciled(ctx, runID)
	if err != nil {
		return nil, err
	}
	attachReconciled(scores, recs)
	run.Scores = scores
	return run, nil
}

func (s *SQLiteStore) loadScores(ctx context.Context, runID string) ([]model.CountryScore, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT document FROM country_scores WHERE assessment_id = ? ORDER BY country_code`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: load scores %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	scores := []model.CountryScore{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan score")
		}
		var cs model.CountryScore
		if err := json.Unmarshal([]byte(doc), &cs); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal score")
		}
		scores = append(scores, cs)
	}
	return scores, eris.Wrap(rows.Err(), "sqlite: load scores iterate")
}

func (s *SQLiteStore) loadReconciled(ctx context.Context, runID string) ([]model.ReconciledIndicator, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT document FROM reconciled_indicators WHERE assessment_id = ? ORDER BY country_code, indicator_code`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: load reconciled %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ReconciledIndicator
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan reconciled")
		}
		var ri model.ReconciledIndicator
		if err := json.Unmarshal([]byte(doc), &ri); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal reconciled")
		}
		out = append(out, ri)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: load reconciled iterate")
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.RunSummary, error) {
	query := `SELECT r.id, r.methodology_version, r.status, r.reference_year, r.prior_run_id,
		(SELECT COUNT(*) FROM country_scores c WHERE c.assessment_id = r.id),
		r.record_count, r.rejection_count, r.error, r.started_at, r.completed_at
		FROM assessment_runs r WHERE 1=1`
	var args []any
	if filter.MethodologyVersion != "" {
		query += ` AND r.methodology_version = ?`
		args = append(args, filter.MethodologyVersion)
	}
	if filter.Status != "" {
		query += ` AND r.status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY r.started_at DESC, r.id DESC LIMIT ?`
	args = append(args, listLimit(filter))
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	out := []model.RunSummary{}
	for rows.Next() {
		var (
			rs        model.RunSummary
			status    string
			completed sql.NullTime
		)
		if err := rows.Scan(&rs.ID, &rs.MethodologyVersion, &status, &rs.ReferenceYear, &rs.PriorRunID,
			&rs.CountryCount, &rs.RecordCount, &rs.RejectionCount, &rs.Error, &rs.StartedAt, &completed); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run summary")
		}
		rs.Status = model.RunStatus(status)
		if completed.Valid {
			t := completed.Time
			rs.CompletedAt = &t
		}
		out = append(out, rs)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) LatestCompletedRun(ctx context.Context, methodologyVersion string) (*model.AssessmentRun, error) {
	query := `SELECT id FROM assessment_runs WHERE status = ?`
	args := []any{string(model.RunStatusComplete)}
	if methodologyVersion != "" {
		query += ` AND methodology_version = ?`
		args = append(args, methodologyVersion)
	}
	query += ` ORDER BY completed_at DESC, id DESC LIMIT 1`

	var id string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest completed run")
	}
	return s.GetRun(ctx, id)
}

func (s *SQLiteStore) ReleaseRuns(ctx context.Context, methodologyVersion string) (int, error) {
	query := `UPDATE assessment_runs SET status = ?, error = ?, completed_at = ? WHERE status = ?`
	args := []any{string(model.RunStatusFailed), releasedReason, time.Now().UTC(), string(model.RunStatusRunning)}
	if methodologyVersion != "" {
		query += ` AND methodology_version = ?`
		args = append(args, methodologyVersion)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: release runs")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// helpers

func checkRowsAffected(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrRunNotActive, "run %s", runID)
	}
	return nil
}

func scanSQLiteRun(row scannable) (*model.AssessmentRun, error) {
	var (
		r           model.AssessmentRun
		status      string
		methodology string
		rejections  string
		completed   sql.NullTime
	)
	err := row.Scan(&r.ID, &r.MethodologyVersion, &status, &r.ReferenceYear, &r.PriorRunID, &methodology,
		&r.RecordCount, &rejections, &r.Error, &r.StartedAt, &completed)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	r.Status = model.RunStatus(status)
	if completed.Valid {
		t := completed.Time
		r.CompletedAt = &t
	}
	if err := unmarshalRunMeta(&r, []byte(methodology), []byte(rejections)); err != nil {
		return nil, err
	}
	return &r, nil
}
