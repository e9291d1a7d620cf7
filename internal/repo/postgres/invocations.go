package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/runcap-labs/runcap-go/internal/domain"
)

type InvocationStore struct {
	db DB
}

func NewInvocationStore(db DB) *InvocationStore {
	if db == nil {
		return nil
	}
	return &InvocationStore{db: db}
}

// Records are historical facts: the insert is idempotent on the natural key
// and there is no update or delete path.
const insertInvocationQuery = `INSERT INTO invocation_records (
	run_id,
	executable,
	args,
	object_key,
	script_sha256,
	created_at,
	created_by
) VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (run_id) DO NOTHING`

const selectInvocationQuery = `SELECT run_id, executable, args, object_key, script_sha256, created_at, created_by
FROM invocation_records
WHERE run_id = $1`

func (s *InvocationStore) CreateInvocation(ctx context.Context, record domain.InvocationRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("invocation store not initialized")
	}
	if err := record.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(
		ctx,
		insertInvocationQuery,
		strings.TrimSpace(record.RunID),
		strings.TrimSpace(record.Executable),
		record.ArgsJSON,
		nullIfEmpty(record.ObjectKey),
		strings.TrimSpace(record.SHA256),
		normalizeTime(record.CreatedAt),
		nullIfEmpty(record.CreatedBy),
	)
	if err != nil {
		return fmt.Errorf("insert invocation record: %w", err)
	}
	return nil
}

func (s *InvocationStore) GetInvocation(ctx context.Context, runID string) (domain.InvocationRecord, error) {
	if s == nil || s.db == nil {
		return domain.InvocationRecord{}, fmt.Errorf("invocation store not initialized")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return domain.InvocationRecord{}, fmt.Errorf("run id is required")
	}
	var record domain.InvocationRecord
	var objectKey sql.NullString
	var createdBy sql.NullString
	row := s.db.QueryRowContext(ctx, selectInvocationQuery, runID)
	if err := row.Scan(&record.RunID, &record.Executable, &record.ArgsJSON,
		&objectKey, &record.SHA256, &record.CreatedAt, &createdBy); err != nil {
		return domain.InvocationRecord{}, handleNotFound(err)
	}
	if objectKey.Valid {
		record.ObjectKey = objectKey.String
	}
	if createdBy.Valid {
		record.CreatedBy = createdBy.String
	}
	return record, nil
}
