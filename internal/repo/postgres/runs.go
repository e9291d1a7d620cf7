package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/runcap-labs/runcap-go/internal/domain"
	"github.com/runcap-labs/runcap-go/internal/repo"
)

type RunStore struct {
	db DB
}

func NewRunStore(db DB) *RunStore {
	if db == nil {
		return nil
	}
	return &RunStore{db: db}
}

const insertRunQuery = `INSERT INTO runs (
	run_id,
	experiment_id,
	variant,
	run_dir,
	status,
	started_at,
	ended_at,
	params,
	created_by,
	integrity_sha256
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`

const selectRunColumns = `run_id, experiment_id, variant, run_dir, status, started_at, ended_at, params, created_by, integrity_sha256`

func (s *RunStore) CreateRun(ctx context.Context, run domain.Run) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("run store not initialized")
	}
	if err := run.Validate(); err != nil {
		return err
	}
	paramsJSON, err := encodeMetadata(run.Params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	startedAt := normalizeTime(run.StartedAt)
	var endedAt sql.NullTime
	if run.EndedAt != nil {
		endedAt = sql.NullTime{Time: run.EndedAt.UTC(), Valid: true}
	}
	_, err = s.db.ExecContext(
		ctx,
		insertRunQuery,
		strings.TrimSpace(run.ID),
		strings.TrimSpace(run.ExperimentID),
		nullIfEmpty(run.Variant),
		strings.TrimSpace(run.RunDir),
		strings.TrimSpace(run.Status),
		startedAt,
		endedAt,
		paramsJSON,
		nullIfEmpty(run.CreatedBy),
		strings.TrimSpace(run.IntegritySHA256),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *RunStore) GetRun(ctx context.Context, id string) (domain.Run, error) {
	if s == nil || s.db == nil {
		return domain.Run{}, fmt.Errorf("run store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Run{}, fmt.Errorf("run id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+selectRunColumns+` FROM runs WHERE run_id = $1`,
		id,
	)
	run, err := scanRun(row)
	if err != nil {
		return domain.Run{}, handleNotFound(err)
	}
	return run, nil
}

func (s *RunStore) ListRuns(ctx context.Context, filter repo.RunFilter) ([]domain.Run, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("run store not initialized")
	}
	clauses := make([]string, 0, 3)
	args := make([]any, 0, 4)

	if strings.TrimSpace(filter.ExperimentID) != "" {
		args = append(args, strings.TrimSpace(filter.ExperimentID))
		clauses = append(clauses, fmt.Sprintf("experiment_id = $%d", len(args)))
	}
	if strings.TrimSpace(filter.Variant) != "" {
		args = append(args, strings.TrimSpace(filter.Variant))
		clauses = append(clauses, fmt.Sprintf("variant = $%d", len(args)))
	}
	if strings.TrimSpace(filter.Status) != "" {
		args = append(args, strings.TrimSpace(filter.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + selectRunColumns + ` FROM runs`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]domain.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

func (s *RunStore) UpdateRunStatus(ctx context.Context, id string, status string, endedAt *time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("run store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("run id is required")
	}
	status = strings.TrimSpace(status)
	if !domain.ValidRunStatus(status) {
		return fmt.Errorf("status is invalid")
	}
	var ended sql.NullTime
	if endedAt != nil {
		ended = sql.NullTime{Time: endedAt.UTC(), Valid: true}
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE runs SET status = $1, ended_at = $2 WHERE run_id = $3`,
		status,
		ended,
		id,
	)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	if rows == 0 {
		return repo.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (domain.Run, error) {
	var run domain.Run
	var variant sql.NullString
	var createdBy sql.NullString
	var endedAt sql.NullTime
	var paramsJSON []byte
	if err := row.Scan(&run.ID, &run.ExperimentID, &variant, &run.RunDir, &run.Status,
		&run.StartedAt, &endedAt, &paramsJSON, &createdBy, &run.IntegritySHA256); err != nil {
		return domain.Run{}, err
	}
	if variant.Valid {
		run.Variant = variant.String
	}
	if createdBy.Valid {
		run.CreatedBy = createdBy.String
	}
	if endedAt.Valid {
		ended := endedAt.Time.UTC()
		run.EndedAt = &ended
	}
	params, err := decodeMetadata(paramsJSON)
	if err != nil {
		return domain.Run{}, fmt.Errorf("decode params: %w", err)
	}
	run.Params = params
	return run, nil
}
