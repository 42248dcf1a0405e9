package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Armada/internal/domain"
)

const taskColumns = `id, job_id, index, tenant, params, status, attempts,
       last_error, cloud_instance_id, idempotency_key, created_at, updated_at`

// TaskRepo — репозиторий для работы с tasks.
//
// Все переходы статусов — guarded UPDATE с проверкой текущего статуса
// (WHERE status = ...), поэтому конкурирующие воркеры не могут дважды
// забрать одну task и терминальный статус не пересматривается.
type TaskRepo struct {
	pool *pgxpool.Pool
}

// NewTaskRepo создаёт новый TaskRepo.
func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

// GetByID возвращает task по ID.
func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	return scanTask(r.pool.QueryRow(ctx, query, id))
}

// ListByJobID возвращает все tasks для job в порядке исходного batch.
func (r *TaskRepo) ListByJobID(ctx context.Context, jobID uuid.UUID) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE job_id = $1 ORDER BY index ASC`
	rows, err := r.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("list tasks by job_id: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// MarkInProgress переводит task из PENDING в IN_PROGRESS и инкрементирует
// attempts. Возвращает ErrInvalidTransition, если task не в PENDING
// (дубликат доставки или конкурирующий воркер уже забрал её).
func (r *TaskRepo) MarkInProgress(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `
		UPDATE tasks
		SET status = $2, attempts = attempts + 1, updated_at = now()
		WHERE id = $1 AND status = $3
		RETURNING ` + taskColumns
	task, err := scanTask(r.pool.QueryRow(ctx, query, id, domain.TaskStatusInProgress, domain.TaskStatusPending))
	if errors.Is(err, ErrNotFound) {
		// Либо task нет вовсе, либо она не в PENDING — различаем.
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrInvalidTransition
	}
	return task, err
}

// RequeueForRetry возвращает task из IN_PROGRESS в PENDING после
// transient-ошибки или отказа admission-контроля. Attempts не трогаем —
// попытка уже была посчитана в MarkInProgress.
func (r *TaskRepo) RequeueForRetry(ctx context.Context, id uuid.UUID, lastError string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE tasks
		SET status = $2, last_error = $3, updated_at = now()
		WHERE id = $1 AND status = $4
	`, id, domain.TaskStatusPending, nullString(lastError), domain.TaskStatusInProgress)
	if err != nil {
		return fmt.Errorf("requeue task: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// MarkDeferred сдвигает updated_at отложенной admission-контролем task,
// чтобы recovery sweep не публиковал дубликаты, пока отложенное
// сообщение ждёт в retry-очереди. Best-effort: если task уже не
// PENDING, ничего не делает.
func (r *TaskRepo) MarkDeferred(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE tasks
		SET updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, domain.TaskStatusPending)
	if err != nil {
		return fmt.Errorf("mark task deferred: %w", err)
	}
	return nil
}

// FinishSuccess переводит task в SUCCESS и обновляет агрегат job
// в одной транзакции. Агрегат инкрементируется только при реальном
// переходе из IN_PROGRESS, поэтому task учитывается не более одного раза.
func (r *TaskRepo) FinishSuccess(ctx context.Context, id uuid.UUID, instanceID string) (*domain.Job, error) {
	return r.finish(ctx, id, domain.TaskStatusSuccess, instanceID, "")
}

// FinishFailed переводит task в FAILED с текстом ошибки и обновляет
// агрегат job в одной транзакции.
func (r *TaskRepo) FinishFailed(ctx context.Context, id uuid.UUID, lastError string) (*domain.Job, error) {
	return r.finish(ctx, id, domain.TaskStatusFailed, "", lastError)
}

// finish — общий путь терминального перехода task + агрегации job.
func (r *TaskRepo) finish(ctx context.Context, id uuid.UUID, status domain.TaskStatus, instanceID, lastError string) (*domain.Job, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var jobID uuid.UUID
	err = tx.QueryRow(ctx, `
		UPDATE tasks
		SET status = $2, cloud_instance_id = $3, last_error = $4, updated_at = now()
		WHERE id = $1 AND status = $5
		RETURNING job_id
	`, id, status, nullString(instanceID), nullString(lastError), domain.TaskStatusInProgress).Scan(&jobID)
	if errors.Is(err, pgx.ErrNoRows) {
		// Task не в IN_PROGRESS: уже терминальна или не существует.
		// Агрегат не трогаем.
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrInvalidTransition
	}
	if err != nil {
		return nil, fmt.Errorf("finish task: %w", err)
	}

	// Инкремент счётчика под row-level lock job'а.
	counter := "succeeded"
	if status == domain.TaskStatusFailed {
		counter = "failed"
	}

	var total, succeeded, failed int
	err = tx.QueryRow(ctx, `
		UPDATE jobs
		SET `+counter+` = `+counter+` + 1
		WHERE id = $1
		RETURNING total, succeeded, failed
	`, jobID).Scan(&total, &succeeded, &failed)
	if err != nil {
		return nil, fmt.Errorf("update job counters: %w", err)
	}

	// Терминальный статус job выставляется ровно когда все tasks терминальны.
	newStatus := domain.AggregateStatus(total, succeeded, failed)
	if newStatus != domain.JobStatusPending {
		if _, err := tx.Exec(ctx, `UPDATE jobs SET status = $2 WHERE id = $1`, jobID, newStatus); err != nil {
			return nil, fmt.Errorf("update job status: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &domain.Job{
		ID:        jobID,
		Status:    newStatus,
		Total:     total,
		Succeeded: succeeded,
		Failed:    failed,
	}, nil
}

// ListStalled возвращает нетерминальные tasks, не менявшиеся дольше
// olderThan. Используется recovery sweep'ом для повторной публикации:
// PENDING — если dispatch-сообщение потерялось после commit,
// IN_PROGRESS — если вместе с воркером пропала и редоставка (воркер
// разбирает такие на месте, см. обработку redelivery).
func (r *TaskRepo) ListStalled(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE status = ANY($1) AND updated_at < now() - $2::interval
		ORDER BY updated_at ASC
		LIMIT $3
	`
	statuses := []string{string(domain.TaskStatusPending), string(domain.TaskStatusInProgress)}
	interval := fmt.Sprintf("%d seconds", int(olderThan.Seconds()))
	rows, err := r.pool.Query(ctx, query, statuses, interval, limit)
	if err != nil {
		return nil, fmt.Errorf("list stalled tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// --- Helpers ---

func scanTask(row pgx.Row) (*domain.Task, error) {
	var task domain.Task
	var tenant, lastError, instanceID *string
	var paramsJSON []byte

	err := row.Scan(
		&task.ID,
		&task.JobID,
		&task.Index,
		&tenant,
		&paramsJSON,
		&task.Status,
		&task.Attempts,
		&lastError,
		&instanceID,
		&task.IdempotencyKey,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	if tenant != nil {
		task.Tenant = *tenant
	}
	if lastError != nil {
		task.LastError = *lastError
	}
	if instanceID != nil {
		task.CloudInstanceID = *instanceID
	}
	if paramsJSON != nil {
		if err := json.Unmarshal(paramsJSON, &task.Params); err != nil {
			return nil, fmt.Errorf("unmarshal params: %w", err)
		}
	}

	return &task, nil
}
