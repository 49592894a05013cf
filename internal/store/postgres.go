package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/lock"
	"github.com/rotisserie/eris"

	"github.com/sells-group/readiness-cli/internal/db"
	"github.com/sells-group/readiness-cli/internal/model"
)

// uniqueViolation is the SQLSTATE for a unique constraint violation.
const uniqueViolation = "23505"

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	raw     *pgxpool.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// queries holds the hot-path statements. pgx caches their prepared form
// per connection.
var queries = map[string]string{
	"insert_run":     `INSERT INTO assessment_runs (id, methodology_version, methodology_hash, status, reference_year, prior_run_id, methodology, record_count, rejection_count, rejections, started_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
	"fail_run":       `UPDATE assessment_runs SET status = $1, error = $2, completed_at = $3 WHERE id = $4 AND status = $5`,
	"get_run":        `SELECT ` + pgRunColumns + ` FROM assessment_runs WHERE id = $1`,
	"get_scores":     `SELECT document FROM country_scores WHERE assessment_id = $1 ORDER BY country_code`,
	"get_reconciled": `SELECT document FROM reconciled_indicators WHERE assessment_id = $1 ORDER BY country_code, indicator_code`,
}

const pgRunColumns = `id, methodology_version, status, reference_year, prior_run_id, methodology, record_count, rejections, error, started_at, completed_at`

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, raw: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

// Migrate applies the embedded goose migrations under a Postgres
// advisory session lock so overlapping deploys never race.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if s.raw == nil {
		return eris.New("postgres: migrate requires a live pool")
	}
	locker, err := lock.NewPostgresSessionLocker()
	if err != nil {
		return eris.Wrap(err, "postgres: migration locker")
	}
	sqlDB := stdlib.OpenDBFromPool(s.raw)
	defer sqlDB.Close() //nolint:errcheck
	return runMigrations(ctx, sqlDB, goose.DialectPostgres, "postgres", goose.WithSessionLocker(locker))
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) AppendRecords(ctx context.Context, records []model.IndicatorRecord) (int, error) {
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		row, err := recordRow(r)
		if err != nil {
			return 0, err
		}
		rows = append(rows, row)
	}
	n, err := db.BulkInsertIgnore(ctx, s.pool, db.InsertConfig{
		Table:        "indicator_records",
		Columns:      recordColumns,
		ConflictKeys: []string{"id"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: append records")
	}
	return int(n), nil
}

func (s *PostgresStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.IndicatorRecord, error) {
	query := `SELECT ` + strings.Join(recordColumns, ", ") + ` FROM indicator_records WHERE 1=1`
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		query += " AND " + cond + " $" + strconv.Itoa(len(args))
	}
	if filter.CountryCode != "" {
		add("country_code =", filter.CountryCode)
	}
	if filter.IndicatorCode != "" {
		add("indicator_code =", filter.IndicatorCode)
	}
	if filter.FromYear > 0 {
		add("period_year >=", filter.FromYear)
	}
	if filter.ToYear > 0 {
		add("period_year <=", filter.ToYear)
	}
	query += ` ORDER BY id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	out := []model.IndicatorRecord{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list records iterate")
}

func (s *PostgresStore) BeginRun(ctx context.Context, run *model.AssessmentRun) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	run.Status = model.RunStatusRunning
	methodology, rejections, err := marshalRunMeta(run)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, queries["insert_run"],
		run.ID, run.MethodologyVersion, run.Methodology.Hash, string(run.Status), run.ReferenceYear,
		run.PriorRunID, methodology, run.RecordCount, len(run.Rejections), rejections, run.StartedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return eris.Wrapf(ErrRunInProgress, "methodology %s", run.MethodologyVersion)
		}
		return eris.Wrapf(err, "postgres: insert run %s", run.ID)
	}
	return nil
}

var (
	reconciledColumns = []string{"assessment_id", "country_code", "indicator_code", "pillar", "value", "confidence", "conflict", "is_proxy", "document"}
	scoreColumns      = []string{"assessment_id", "country_code", "total_score", "readiness_tier", "overall_confidence", "document"}
)

func (s *PostgresStore) CompleteRun(ctx context.Context, run *model.AssessmentRun) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: complete run: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Serialize completions per methodology version for the baseline check.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, run.MethodologyVersion); err != nil {
		return eris.Wrap(err, "postgres: lock methodology version")
	}

	var latest string
	err = tx.QueryRow(ctx,
		`SELECT id FROM assessment_runs WHERE methodology_version = $1 AND status = $2
		 ORDER BY completed_at DESC, id DESC LIMIT 1`,
		run.MethodologyVersion, string(model.RunStatusComplete),
	).Scan(&latest)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return eris.Wrap(err, "postgres: read latest run")
	}
	if err := checkBaseline(run, latest); err != nil {
		return err
	}

	var recRows, scoreRows [][]any
	for _, cs := range run.Scores {
		for _, ri := range cs.Reconciled {
			doc, err := json.Marshal(ri)
			if err != nil {
				return eris.Wrap(err, "postgres: marshal reconciled indicator")
			}
			recRows = append(recRows, []any{run.ID, ri.CountryCode, ri.IndicatorCode, string(ri.Pillar),
				ri.Value, ri.Confidence, ri.Conflict, ri.IsProxy, doc})
		}
		doc, err := scoreDocument(cs)
		if err != nil {
			return err
		}
		scoreRows = append(scoreRows, []any{run.ID, cs.CountryCode, cs.TotalScore, int16(cs.Tier), cs.OverallConfidence, doc})
	}
	if _, err := db.CopyFrom(ctx, tx, "reconciled_indicators", reconciledColumns, recRows); err != nil {
		return eris.Wrap(err, "postgres: write reconciled indicators")
	}
	if _, err := db.CopyFrom(ctx, tx, "country_scores", scoreColumns, scoreRows); err != nil {
		return eris.Wrap(err, "postgres: write country scores")
	}

	_, rejections, err := marshalRunMeta(run)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	tag, err := tx.Exec(ctx,
		`UPDATE assessment_runs SET status = $1, reference_year = $2, record_count = $3, rejection_count = $4,
		 rejections = $5, completed_at = $6 WHERE id = $7 AND status = $8`,
		string(model.RunStatusComplete), run.ReferenceYear, run.RecordCount, len(run.Rejections),
		rejections, now, run.ID, string(model.RunStatusRunning),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrRunNotActive, "run %s", run.ID)
	}
	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: complete run: commit")
	}
	run.Status = model.RunStatusComplete
	run.CompletedAt = &now
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID, reason string) error {
	tag, err := s.pool.Exec(ctx, queries["fail_run"],
		string(model.RunStatusFailed), reason, time.Now().UTC(), runID, string(model.RunStatusRunning),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrRunNotActive, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.AssessmentRun, error) {
	var (
		r           model.AssessmentRun
		status      string
		methodology []byte
		rejections  []byte
	)
	err := s.pool.QueryRow(ctx, queries["get_run"], runID).Scan(
		&r.ID, &r.MethodologyVersion, &status, &r.ReferenceYear, &r.PriorRunID, &methodology,
		&r.RecordCount, &rejections, &r.Error, &r.StartedAt, &r.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	r.Status = model.RunStatus(status)
	if err := unmarshalRunMeta(&r, methodology, rejections); err != nil {
		return nil, err
	}

	scores := []model.CountryScore{}
	if err := s.loadDocuments(ctx, queries["get_scores"], runID, func(doc []byte) error {
		var cs model.CountryScore
		if err := json.Unmarshal(doc, &cs); err != nil {
			return eris.Wrap(err, "postgres: unmarshal score")
		}
		scores = append(scores, cs)
		return nil
	}); err != nil {
		return nil, err
	}

	var recs []model.ReconciledIndicator
	if err := s.loadDocuments(ctx, queries["get_reconciled"], runID, func(doc []byte) error {
		var ri model.ReconciledIndicator
		if err := json.Unmarshal(doc, &ri); err != nil {
			return eris.Wrap(err, "postgres: unmarshal reconciled")
		}
		recs = append(recs, ri)
		return nil
	}); err != nil {
		return nil, err
	}

	attachReconciled(scores, recs)
	r.Scores = scores
	return &r, nil
}

func (s *PostgresStore) loadDocuments(ctx context.Context, query, runID string, fn func([]byte) error) error {
	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return eris.Wrapf(err, "postgres: load documents %s", runID)
	}
	defer rows.Close()
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return eris.Wrap(err, "postgres: scan document")
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return eris.Wrap(rows.Err(), "postgres: load documents iterate")
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.RunSummary, error) {
	query := `SELECT r.id, r.methodology_version, r.status, r.reference_year, r.prior_run_id,
		(SELECT COUNT(*) FROM country_scores c WHERE c.assessment_id = r.id),
		r.record_count, r.rejection_count, r.error, r.started_at, r.completed_at
		FROM assessment_runs r WHERE 1=1`
	var args []any
	argN := 1

	if filter.MethodologyVersion != "" {
		query += ` AND r.methodology_version = $` + strconv.Itoa(argN)
		args = append(args, filter.MethodologyVersion)
		argN++
	}
	if filter.Status != "" {
		query += ` AND r.status = $` + strconv.Itoa(argN)
		args = append(args, string(filter.Status))
		argN++
	}
	query += ` ORDER BY r.started_at DESC, r.id DESC LIMIT $` + strconv.Itoa(argN)
	args = append(args, listLimit(filter))
	argN++
	if filter.Offset > 0 {
		query += ` OFFSET $` + strconv.Itoa(argN)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	out := []model.RunSummary{}
	for rows.Next() {
		var (
			rs     model.RunSummary
			status string
		)
		if err := rows.Scan(&rs.ID, &rs.MethodologyVersion, &status, &rs.ReferenceYear, &rs.PriorRunID,
			&rs.CountryCount, &rs.RecordCount, &rs.RejectionCount, &rs.Error, &rs.StartedAt, &rs.CompletedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run summary")
		}
		rs.Status = model.RunStatus(status)
		out = append(out, rs)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) LatestCompletedRun(ctx context.Context, methodologyVersion string) (*model.AssessmentRun, error) {
	query := `SELECT id FROM assessment_runs WHERE status = $1`
	args := []any{string(model.RunStatusComplete)}
	if methodologyVersion != "" {
		query += ` AND methodology_version = $2`
		args = append(args, methodologyVersion)
	}
	query += ` ORDER BY completed_at DESC, id DESC LIMIT 1`

	var id string
	err := s.pool.QueryRow(ctx, query, args...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest completed run")
	}
	return s.GetRun(ctx, id)
}

func (s *PostgresStore) ReleaseRuns(ctx context.Context, methodologyVersion string) (int, error) {
	query := `UPDATE assessment_runs SET status = $1, error = $2, completed_at = $3 WHERE status = $4`
	args := []any{string(model.RunStatusFailed), releasedReason, time.Now().UTC(), string(model.RunStatusRunning)}
	if methodologyVersion != "" {
		query += ` AND methodology_version = $5`
		args = append(args, methodologyVersion)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: release runs")
	}
	return int(tag.RowsAffected()), nil
}
