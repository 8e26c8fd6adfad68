package jobstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
)

// PostgresStore persists job records in a jobs table. Useful where job
// history should outlive the Redis TTL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres opens the database and runs the schema migration.
func NewPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	s := &PostgresStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	// Use advisory lock to prevent concurrent migrations from multiple services.
	// Note: In production, use dedicated migration tools (e.g., golang-migrate/migrate)
	// that run as a separate deployment step before app services start.
	const lockID = 924031745 // arbitrary number for this application's migration lock

	var acquired bool
	err := s.db.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, lockID).Scan(&acquired)
	if err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}

	if !acquired {
		// Another service is running migrations; wait briefly and skip
		time.Sleep(2 * time.Second)
		return nil
	}

	defer func() {
		_, _ = s.db.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, lockID)
	}()

	_, err = s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS jobs (
		id UUID PRIMARY KEY,
		operation TEXT NOT NULL,
		status TEXT NOT NULL,
		result JSONB,
		error TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS jobs_created_at_idx ON jobs (created_at DESC)`)
	return err
}

func (s *PostgresStore) Create(ctx context.Context, id uuid.UUID, operation string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO jobs(id, operation, status) VALUES($1,$2,$3)`,
		id, operation, StatusPending)
	return err
}

func (s *PostgresStore) SetRunning(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, `UPDATE jobs SET status=$1, updated_at=now()
		WHERE id=$2 AND status NOT IN ('SUCCESS','FAILURE')`, StatusRunning)
}

func (s *PostgresStore) Complete(ctx context.Context, id uuid.UUID, result any) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE jobs SET status=$1, result=$2, updated_at=now()
		WHERE id=$3 AND status NOT IN ('SUCCESS','FAILURE')`, StatusSuccess, data, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (s *PostgresStore) Fail(ctx context.Context, id uuid.UUID, errMsg string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE jobs SET status=$1, error=$2, updated_at=now()
		WHERE id=$3 AND status NOT IN ('SUCCESS','FAILURE')`, StatusFailure, errMsg, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (Job, error) {
	var (
		job    Job
		result []byte
		errMsg sql.NullString
	)
	row := s.db.QueryRowContext(ctx, `SELECT id, operation, status, result, error, created_at, updated_at
		FROM jobs WHERE id=$1`, id)
	if err := row.Scan(&job.ID, &job.Operation, &job.Status, &result, &errMsg, &job.CreatedAt, &job.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, ErrJobNotFound
		}
		return Job{}, fmt.Errorf("failed to get job %s: %w", id, err)
	}
	job.Result = result
	job.Error = errMsg.String
	return job, nil
}

func (s *PostgresStore) List(ctx context.Context, operations []string, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, operation, status, result, error, created_at, updated_at FROM jobs`
	args := []any{}
	if len(operations) > 0 {
		query += ` WHERE operation = ANY($1)`
		args = append(args, pq.Array(operations))
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var (
			job    Job
			result []byte
			errMsg sql.NullString
		)
		if err := rows.Scan(&job.ID, &job.Operation, &job.Status, &result, &errMsg, &job.CreatedAt, &job.UpdatedAt); err != nil {
			return nil, err
		}
		job.Result = result
		job.Error = errMsg.String
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) transition(ctx context.Context, id uuid.UUID, query string, status Status) error {
	res, err := s.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func checkAffected(res sql.Result) error {
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrJobNotFound
	}
	return nil
}
