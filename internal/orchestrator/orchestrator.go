package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Armada/internal/domain"
	"github.com/shaiso/Armada/internal/repo"
)

// Default configuration values.
const (
	defaultMaxBatchSize  = 10000
	defaultSweepInterval = time.Minute
	defaultSweepAge      = 5 * time.Minute
	defaultSweepBatch    = 100
)

// JobStore — персистенция jobs, нужная оркестратору.
type JobStore interface {
	CreateWithTasks(ctx context.Context, job *domain.Job, tasks []domain.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	GetByBatchID(ctx context.Context, batchID string) (*domain.Job, error)
}

// TaskStore — персистенция tasks, нужная оркестратору.
type TaskStore interface {
	ListByJobID(ctx context.Context, jobID uuid.UUID) ([]domain.Task, error)
	ListStalled(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Task, error)
}

// Queue — исходящий контракт dispatch-очереди.
type Queue interface {
	PublishTaskProvision(ctx context.Context, taskID, jobID uuid.UUID) error
}

// Orchestrator принимает batch-заявки и раскладывает их на tasks.
//
// Порядок side effects при submit фиксирован: сначала commit job+tasks
// в одной транзакции, затем по одному dispatch-сообщению на task.
// Если публикация упала после commit — task остаётся PENDING в БД,
// и её подберёт recovery sweep (периодическая перепубликация PENDING
// tasks старше порога).
type Orchestrator struct {
	jobs   JobStore
	tasks  TaskStore
	queue  Queue
	logger *slog.Logger

	maxBatchSize  int
	sweepInterval time.Duration
	sweepAge      time.Duration
	sweepBatch    int

	// Lifecycle
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Orchestrator.
type Config struct {
	JobStore  JobStore
	TaskStore TaskStore
	Queue     Queue

	// MaxBatchSize — максимум инстансов в одном batch (default: 10000).
	MaxBatchSize int

	// SweepInterval — период recovery sweep'а (default: 1m).
	SweepInterval time.Duration

	// SweepAge — возраст нетерминальной task для перепубликации (default: 5m).
	SweepAge time.Duration

	// SweepBatch — максимум tasks за один проход sweep'а (default: 100).
	SweepBatch int

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	maxBatchSize := cfg.MaxBatchSize
	if maxBatchSize <= 0 {
		maxBatchSize = defaultMaxBatchSize
	}
	sweepInterval := cfg.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}
	sweepAge := cfg.SweepAge
	if sweepAge <= 0 {
		sweepAge = defaultSweepAge
	}
	sweepBatch := cfg.SweepBatch
	if sweepBatch <= 0 {
		sweepBatch = defaultSweepBatch
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		jobs:          cfg.JobStore,
		tasks:         cfg.TaskStore,
		queue:         cfg.Queue,
		logger:        logger,
		maxBatchSize:  maxBatchSize,
		sweepInterval: sweepInterval,
		sweepAge:      sweepAge,
		sweepBatch:    sweepBatch,
	}
}

// SubmitRequest — batch-заявка.
type SubmitRequest struct {
	// BatchID — идентификатор batch от вызывающей стороны.
	// Пустой — будет сгенерирован.
	BatchID string

	// Submitter — идентичность вызывающей стороны (может быть пустой).
	Submitter string

	// Instances — параметры создаваемых инстансов.
	Instances []domain.InstanceParams

	// Meta — произвольные атрибуты batch.
	Meta map[string]any

	// DryRun — только валидация и проекция, без персистенции и dispatch.
	DryRun bool
}

// SubmitResult — результат submit.
type SubmitResult struct {
	Job   *domain.Job
	Tasks []domain.Task

	// Existing — batch_id уже был обработан ранее; возвращён
	// существующий job, новых tasks не создано.
	Existing bool
}

// Submit принимает batch, персистит job со всеми tasks и публикует
// dispatch-сообщения. Повторный submit с тем же batch_id идемпотентен.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if err := o.validate(req); err != nil {
		return nil, err
	}

	// Идемпотентный повторный submit: существующий batch_id
	// возвращает существующий job без побочных эффектов.
	if req.BatchID != "" {
		existing, err := o.jobs.GetByBatchID(ctx, req.BatchID)
		if err == nil {
			tasks, err := o.tasks.ListByJobID(ctx, existing.ID)
			if err != nil {
				return nil, fmt.Errorf("list tasks for existing job: %w", err)
			}
			return &SubmitResult{Job: existing, Tasks: tasks, Existing: true}, nil
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("lookup batch_id: %w", err)
		}
	}

	batchID := req.BatchID
	if batchID == "" {
		batchID = uuid.New().String()
	}

	job, tasks := domain.NewJob(batchID, req.Submitter, req.Instances, req.Meta)

	if req.DryRun {
		// Проекция без персистенции и dispatch.
		return &SubmitResult{Job: job, Tasks: tasks}, nil
	}

	// Персистенция строго до публикации: частичный batch в БД
	// невозможен, а потерянное сообщение восстановимо sweep'ом.
	if err := o.jobs.CreateWithTasks(ctx, job, tasks); err != nil {
		if errors.Is(err, repo.ErrAlreadyExists) {
			// Гонка двух submit с одним batch_id: вторым пришли — отдаём выигравший job.
			existing, getErr := o.jobs.GetByBatchID(ctx, batchID)
			if getErr != nil {
				return nil, fmt.Errorf("lookup winning batch: %w", getErr)
			}
			existingTasks, getErr := o.tasks.ListByJobID(ctx, existing.ID)
			if getErr != nil {
				return nil, fmt.Errorf("list tasks for winning batch: %w", getErr)
			}
			return &SubmitResult{Job: existing, Tasks: existingTasks, Existing: true}, nil
		}
		return nil, fmt.Errorf("persist batch: %w", err)
	}

	o.logger.Info("batch accepted",
		"job_id", job.ID,
		"batch_id", job.BatchID,
		"total", job.Total,
		"submitter", job.Submitter,
	)

	// Ровно одно dispatch-сообщение на task.
	for i := range tasks {
		task := &tasks[i]
		if err := o.queue.PublishTaskProvision(ctx, task.ID, job.ID); err != nil {
			o.logger.Warn("failed to publish task, sweep will recover it",
				"task_id", task.ID,
				"job_id", job.ID,
				"error", err,
			)
		}
	}

	return &SubmitResult{Job: job, Tasks: tasks}, nil
}

// validate проверяет batch до каких-либо побочных эффектов.
func (o *Orchestrator) validate(req SubmitRequest) error {
	if len(req.Instances) == 0 {
		return ErrEmptyBatch
	}
	if len(req.Instances) > o.maxBatchSize {
		return fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(req.Instances), o.maxBatchSize)
	}
	if err := domain.ValidateBatch(req.Instances); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}

// GetJob возвращает job по ID.
func (o *Orchestrator) GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	return o.jobs.GetByID(ctx, id)
}

// ListTasks возвращает tasks job'а в порядке исходного batch.
func (o *Orchestrator) ListTasks(ctx context.Context, jobID uuid.UUID) ([]domain.Task, error) {
	if _, err := o.jobs.GetByID(ctx, jobID); err != nil {
		return nil, err
	}
	return o.tasks.ListByJobID(ctx, jobID)
}

// Start запускает recovery sweep.
func (o *Orchestrator) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	o.cancelFunc = cancel

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.sweepLoop(ctx)
	}()

	o.logger.Info("orchestrator started",
		"sweep_interval", o.sweepInterval,
		"sweep_age", o.sweepAge,
	)
}

// Stop останавливает sweep и дожидается завершения.
func (o *Orchestrator) Stop() {
	if o.cancelFunc != nil {
		o.cancelFunc()
	}
	o.wg.Wait()
	o.logger.Info("orchestrator stopped")
}

// sweepLoop периодически перепубликовывает застрявшие tasks.
func (o *Orchestrator) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(o.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.Sweep(ctx)
		}
	}
}

// Sweep публикует заново dispatch-сообщения для нетерминальных tasks,
// не менявшихся дольше sweepAge: PENDING с потерянным сообщением и
// IN_PROGRESS, осиротевшие после падения воркера. Лишняя публикация
// безопасна: дубликат доставки воркер разбирает по статусу task.
func (o *Orchestrator) Sweep(ctx context.Context) {
	stalled, err := o.tasks.ListStalled(ctx, o.sweepAge, o.sweepBatch)
	if err != nil {
		o.logger.Error("failed to list stalled tasks", "error", err)
		return
	}

	if len(stalled) == 0 {
		return
	}

	o.logger.Info("sweep found stalled tasks", "count", len(stalled))

	for i := range stalled {
		task := &stalled[i]
		if err := o.queue.PublishTaskProvision(ctx, task.ID, task.JobID); err != nil {
			o.logger.Warn("failed to republish stalled task",
				"task_id", task.ID,
				"error", err,
			)
		}
	}
}
