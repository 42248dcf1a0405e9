package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Armada/internal/domain"
)

// JobRepo — репозиторий для работы с jobs.
type JobRepo struct {
	pool *pgxpool.Pool
}

// NewJobRepo создаёт новый JobRepo.
func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

// CreateWithTasks создаёт job и все его tasks в одной транзакции.
// Либо персистится весь batch, либо ничего — частичных batch в БД
// не бывает.
func (r *JobRepo) CreateWithTasks(ctx context.Context, job *domain.Job, tasks []domain.Task) error {
	metaJSON, err := json.Marshal(job.Meta)
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO jobs (id, batch_id, submitter, status, total, succeeded, failed, meta, created_at)
		VALUES ($1, $2, $3, $4, $5, 0, 0, $6, $7)
	`,
		job.ID,
		job.BatchID,
		nullString(job.Submitter),
		job.Status,
		job.Total,
		metaJSON,
		job.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("job batch_id %s: %w", job.BatchID, ErrAlreadyExists)
		}
		return fmt.Errorf("insert job: %w", err)
	}

	for i := range tasks {
		task := &tasks[i]
		paramsJSON, err := json.Marshal(task.Params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO tasks (id, job_id, index, tenant, params, status, attempts,
			                   idempotency_key, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $9)
		`,
			task.ID,
			task.JobID,
			task.Index,
			nullString(task.Tenant),
			paramsJSON,
			task.Status,
			task.IdempotencyKey,
			task.CreatedAt,
			task.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert task %d: %w", task.Index, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByID возвращает job по ID.
func (r *JobRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `
		SELECT id, batch_id, submitter, status, total, succeeded, failed, meta, created_at
		FROM jobs
		WHERE id = $1
	`
	return scanJob(r.pool.QueryRow(ctx, query, id))
}

// GetByBatchID возвращает job по batch_id.
// Используется для идемпотентного повторного submit.
func (r *JobRepo) GetByBatchID(ctx context.Context, batchID string) (*domain.Job, error) {
	query := `
		SELECT id, batch_id, submitter, status, total, succeeded, failed, meta, created_at
		FROM jobs
		WHERE batch_id = $1
	`
	return scanJob(r.pool.QueryRow(ctx, query, batchID))
}

// --- Helpers ---

func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	var submitter *string
	var metaJSON []byte

	err := row.Scan(
		&job.ID,
		&job.BatchID,
		&submitter,
		&job.Status,
		&job.Total,
		&job.Succeeded,
		&job.Failed,
		&metaJSON,
		&job.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}

	if submitter != nil {
		job.Submitter = *submitter
	}
	if metaJSON != nil {
		if err := json.Unmarshal(metaJSON, &job.Meta); err != nil {
			return nil, fmt.Errorf("unmarshal meta: %w", err)
		}
	}

	return &job, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
