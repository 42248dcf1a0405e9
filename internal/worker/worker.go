package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/shaiso/Armada/internal/admission"
	"github.com/shaiso/Armada/internal/cloud"
	"github.com/shaiso/Armada/internal/domain"
	"github.com/shaiso/Armada/internal/mq"
	"github.com/shaiso/Armada/internal/retry"
)

// Default configuration values.
const (
	defaultPrefetch       = 1
	defaultAdapterTimeout = 30 * time.Second
	defaultAdapterRPS     = 10.0
	defaultRecoveryAge    = 2 * time.Minute
)

// TaskStore — персистенция tasks, нужная воркеру.
type TaskStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	MarkInProgress(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	RequeueForRetry(ctx context.Context, id uuid.UUID, lastError string) error
	MarkDeferred(ctx context.Context, id uuid.UUID) error
	FinishSuccess(ctx context.Context, id uuid.UUID, instanceID string) (*domain.Job, error)
	FinishFailed(ctx context.Context, id uuid.UUID, lastError string) (*domain.Job, error)
}

// Queue — исходящий контракт очереди для отложенной редоставки.
type Queue interface {
	PublishTaskRetry(ctx context.Context, taskID, jobID uuid.UUID, delay time.Duration) error
}

// Admission — контроль допуска на общем счётчике.
type Admission interface {
	TryAcquire(ctx context.Context, key string) (admission.Decision, error)
	ConsumeDailyQuota(ctx context.Context, tenant string) (admission.Decision, error)
}

// Worker выполняет отдельные provisioning tasks.
//
// Worker — stateless компонент системы, который:
//   - Получает tasks из очереди RabbitMQ (prefetch=1, late ack)
//   - Проверяет rate limit и daily quota tenant'а перед выполнением
//   - Вызывает cloud adapter идемпотентно (по idempotency key task'а)
//   - При transient-ошибке возвращает task в PENDING и планирует
//     редоставку с exponential backoff через retry-очередь
//   - При permanent-ошибке или исчерпании попыток фиксирует FAILED
//   - Восстанавливает tasks, чья попытка оборвалась падением воркера
//     (redelivery застаёт task в IN_PROGRESS)
//
// Workers масштабируются горизонтально — несколько экземпляров
// могут потреблять из одной очереди.
type Worker struct {
	// Stores
	tasks TaskStore

	// MQ
	queue Queue
	conn  *mq.Connection

	// Admission
	admission Admission

	// Cloud adapters
	registry *cloud.Registry

	// Retry policy
	policy retry.Policy

	// Локальный троттлинг вызовов adapter'а (в дополнение к
	// общему rate limit'у на стороне admission).
	limiter *rate.Limiter

	// Configuration
	adapterTimeout time.Duration
	recoveryAge    time.Duration
	prefetch       int

	// Consumer
	consumer *mq.Consumer

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Worker.
type Config struct {
	// Stores
	TaskStore TaskStore

	// MQ
	Queue Queue
	Conn  *mq.Connection

	// Admission
	Admission Admission

	// Cloud adapter registry (опционально; если nil — используется cloud.NewRegistry())
	Registry *cloud.Registry

	// Retry policy (zero value → retry.Default())
	Policy retry.Policy

	// AdapterTimeout — таймаут одного вызова cloud adapter'а (default: 30s)
	AdapterTimeout time.Duration

	// AdapterRPS — локальный лимит вызовов adapter'а в секунду (default: 10)
	AdapterRPS float64

	// RecoveryAge — возраст IN_PROGRESS task'и, после которого redelivery
	// считается восстановлением после падения воркера, а не дубликатом
	// живой попытки. Должен превышать AdapterTimeout (default: 2m).
	RecoveryAge time.Duration

	// Prefetch — количество недоставленных сообщений на consumer (default: 1)
	Prefetch int

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registry := cfg.Registry
	if registry == nil {
		registry = cloud.NewRegistry()
	}

	policy := cfg.Policy
	if policy.MaxRetries == 0 && policy.InitialDelay == 0 && policy.MaxDelay == 0 {
		policy = retry.Default()
	}

	adapterTimeout := cfg.AdapterTimeout
	if adapterTimeout <= 0 {
		adapterTimeout = defaultAdapterTimeout
	}

	rps := cfg.AdapterRPS
	if rps <= 0 {
		rps = defaultAdapterRPS
	}

	recoveryAge := cfg.RecoveryAge
	if recoveryAge <= 0 {
		recoveryAge = defaultRecoveryAge
		if 2*adapterTimeout > recoveryAge {
			recoveryAge = 2 * adapterTimeout
		}
	}

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}

	return &Worker{
		tasks:          cfg.TaskStore,
		queue:          cfg.Queue,
		conn:           cfg.Conn,
		admission:      cfg.Admission,
		registry:       registry,
		policy:         policy,
		limiter:        rate.NewLimiter(rate.Limit(rps), 1),
		adapterTimeout: adapterTimeout,
		recoveryAge:    recoveryAge,
		prefetch:       prefetch,
		logger:         logger,
	}
}

// Start запускает Worker.
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker",
		"max_retries", w.policy.MaxRetries,
		"adapter_timeout", w.adapterTimeout,
		"providers", w.registry.Providers(),
	)

	// Создаём consumer
	w.consumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
		Queue:    string(mq.QueueTasksProvision),
		Handler:  w.handleTaskProvision,
		Prefetch: w.prefetch,
	})

	// Запускаем consumer
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("task consumer error", "error", err)
		}
	}()

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}

	if w.consumer != nil {
		w.consumer.Stop()
	}

	// Ждём завершения горутин
	w.wg.Wait()

	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}
