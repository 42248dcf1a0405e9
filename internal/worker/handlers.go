package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Armada/internal/cloud"
	"github.com/shaiso/Armada/internal/domain"
	"github.com/shaiso/Armada/internal/mq"
	"github.com/shaiso/Armada/internal/repo"
)

// handleTaskProvision обрабатывает dispatch-сообщение из очереди
// tasks.provision. Возврат ошибки ведёт к nack+requeue, поэтому
// ошибкой завершаются только инфраструктурные сбои (БД недоступна);
// все бизнес-исходы — включая отказ admission и permanent-ошибку
// провайдера — фиксируются в БД и подтверждаются ack.
// Settlement доставки целиком на consumer'е.
func (w *Worker) handleTaskProvision(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.TaskProvisionPayload](&delivery.Message)
	if err != nil {
		// Некорректный payload не станет корректным при redelivery —
		// consumer отправит сообщение в DLQ.
		return fmt.Errorf("%w: parse task.provision payload: %v", mq.ErrUnprocessable, err)
	}

	w.logger.Debug("received task.provision event",
		"task_id", payload.TaskID,
		"job_id", payload.JobID,
	)

	if err := w.processTask(ctx, payload.TaskID); err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			// Task удалён или сообщение из чужого окружения — ack.
			w.logger.Debug("task not processed", "task_id", payload.TaskID, "reason", err)
			return nil
		}
		w.logger.Error("failed to process task", "task_id", payload.TaskID, "error", err)
		return err
	}

	return nil
}

// processTask проводит task через машину состояний провижининга.
func (w *Worker) processTask(ctx context.Context, taskID uuid.UUID) error {
	// 1. Загружаем task из БД
	task, err := w.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
		}
		return fmt.Errorf("get task: %w", err)
	}

	// 2. Дубликат доставки: терминальная task — no-op.
	// При at-least-once это штатная ситуация, а не ошибка.
	if task.Status.IsTerminal() {
		w.logger.Debug("task already finished, ignoring duplicate delivery",
			"task_id", task.ID,
			"status", task.Status,
		)
		tasksDuplicate.Inc()
		return nil
	}

	// 3. Redelivery незавершённой попытки: воркер упал или был отменён
	// между MarkInProgress и финализацией исхода. Попытка уже посчитана
	// в attempts, поэтому исчерпание проверяется до сброса в PENDING.
	if task.Status == domain.TaskStatusInProgress {
		if time.Since(task.UpdatedAt) < w.recoveryAge {
			// Свежий IN_PROGRESS может быть дубликатом от sweep'а,
			// пока другой воркер ещё держит task — проверим позже.
			w.logger.Debug("task in progress elsewhere, deferring recheck", "task_id", task.ID)
			if err := w.queue.PublishTaskRetry(ctx, task.ID, task.JobID, w.recoveryAge); err != nil {
				return fmt.Errorf("defer in-progress recheck: %w", err)
			}
			return nil
		}

		w.logger.Warn("recovering task from interrupted attempt",
			"task_id", task.ID,
			"job_id", task.JobID,
			"attempt", task.Attempts,
		)
		if w.policy.Exhausted(task.Attempts) {
			job, err := w.tasks.FinishFailed(ctx, task.ID,
				fmt.Sprintf("%s: attempt interrupted", ErrRetryExhausted))
			if err != nil {
				return fmt.Errorf("finish interrupted task: %w", err)
			}
			tasksProcessed.WithLabelValues("failed").Inc()
			w.logJobIfFinished(job)
			return nil
		}
		if err := w.tasks.RequeueForRetry(ctx, task.ID, "attempt interrupted"); err != nil {
			return fmt.Errorf("requeue interrupted task: %w", err)
		}
		// Дальше обычный путь: admission и новая попытка.
	}

	// 4. Admission: rate limit и daily quota на общем счётчике.
	// Отказ не трогает attempts — это не попытка выполнения.
	allowed, retryAfter, err := w.admit(ctx, task)
	if err != nil {
		return fmt.Errorf("admission check: %w", err)
	}
	if !allowed {
		w.logger.Info("task deferred by admission control",
			"task_id", task.ID,
			"tenant", task.Tenant,
			"retry_after", retryAfter,
		)
		admissionDenied.WithLabelValues(task.Tenant).Inc()
		if err := w.queue.PublishTaskRetry(ctx, task.ID, task.JobID, retryAfter); err != nil {
			return fmt.Errorf("schedule deferred redelivery: %w", err)
		}
		// Сдвигаем updated_at, чтобы sweep не плодил дубликаты,
		// пока отложенное сообщение лежит в retry-очереди.
		if err := w.tasks.MarkDeferred(ctx, task.ID); err != nil {
			w.logger.Warn("failed to mark task deferred", "task_id", task.ID, "error", err)
		}
		return nil
	}

	// 5. PENDING → IN_PROGRESS (guarded, attempts+1).
	task, err = w.tasks.MarkInProgress(ctx, task.ID)
	if err != nil {
		if errors.Is(err, repo.ErrInvalidTransition) {
			// Параллельная доставка успела раньше — no-op.
			w.logger.Debug("task no longer pending, ignoring delivery", "task_id", taskID)
			return nil
		}
		return fmt.Errorf("mark task in progress: %w", err)
	}

	w.logger.Info("task started",
		"task_id", task.ID,
		"job_id", task.JobID,
		"tenant", task.Tenant,
		"cloud", task.Params.Cloud,
		"attempt", task.Attempts,
	)

	// 6. Вызываем cloud adapter.
	instanceID, execErr := w.createInstance(ctx, task)

	// 7. Успех → SUCCESS + инкремент счётчика job'а.
	if execErr == nil {
		job, err := w.tasks.FinishSuccess(ctx, task.ID, instanceID)
		if err != nil {
			return fmt.Errorf("finish task success: %w", err)
		}
		tasksProcessed.WithLabelValues("success").Inc()

		w.logger.Info("task succeeded",
			"task_id", task.ID,
			"job_id", task.JobID,
			"instance_id", instanceID,
			"attempt", task.Attempts,
		)
		w.logJobIfFinished(job)
		return nil
	}

	// 8. Transient-ошибка с оставшимися попытками → PENDING + отложенная
	// редоставка с backoff. Attempts уже инкрементирован на шаге 5.
	if cloud.IsTransient(execErr) && !w.policy.Exhausted(task.Attempts) {
		delay := w.policy.Backoff(task.Attempts)

		w.logger.Warn("task failed transiently, scheduling retry",
			"task_id", task.ID,
			"job_id", task.JobID,
			"attempt", task.Attempts,
			"delay", delay,
			"error", execErr,
		)

		if err := w.tasks.RequeueForRetry(ctx, task.ID, execErr.Error()); err != nil {
			return fmt.Errorf("requeue task for retry: %w", err)
		}
		tasksProcessed.WithLabelValues("retry").Inc()

		if err := w.queue.PublishTaskRetry(ctx, task.ID, task.JobID, delay); err != nil {
			return fmt.Errorf("schedule retry redelivery: %w", err)
		}
		return nil
	}

	// 9. Permanent-ошибка или исчерпанные попытки → FAILED.
	errMsg := execErr.Error()
	if cloud.IsTransient(execErr) {
		errMsg = fmt.Sprintf("%s: %s", ErrRetryExhausted, errMsg)
	}

	job, err := w.tasks.FinishFailed(ctx, task.ID, errMsg)
	if err != nil {
		return fmt.Errorf("finish task failed: %w", err)
	}
	tasksProcessed.WithLabelValues("failed").Inc()

	w.logger.Warn("task failed",
		"task_id", task.ID,
		"job_id", task.JobID,
		"attempt", task.Attempts,
		"error", errMsg,
	)
	w.logJobIfFinished(job)
	return nil
}

// admit проверяет rate limit и daily quota tenant'а.
// Возвращает allowed=false и задержку до следующей попытки при отказе.
func (w *Worker) admit(ctx context.Context, task *domain.Task) (bool, time.Duration, error) {
	tenant := task.Tenant
	if tenant == "" {
		tenant = "default"
	}

	decision, err := w.admission.TryAcquire(ctx, tenant)
	if err != nil {
		return false, 0, fmt.Errorf("rate limit: %w", err)
	}
	if !decision.Allowed {
		return false, decision.RetryAfter, nil
	}

	decision, err = w.admission.ConsumeDailyQuota(ctx, tenant)
	if err != nil {
		return false, 0, fmt.Errorf("daily quota: %w", err)
	}
	if !decision.Allowed {
		return false, decision.RetryAfter, nil
	}

	return true, 0, nil
}

// createInstance вызывает cloud adapter с локальным троттлингом
// и таймаутом. Idempotency key task'а гарантирует, что повторный
// вызов после обрыва не создаст второй инстанс.
func (w *Worker) createInstance(ctx context.Context, task *domain.Task) (string, error) {
	adapter, err := w.registry.Get(task.Params.Cloud)
	if err != nil {
		// Неизвестный провайдер прошёл бы валидацию только при рассинхроне
		// конфигураций оркестратора и воркера. Retry не поможет.
		return "", cloud.Permanentf("%v", err)
	}

	if err := w.limiter.Wait(ctx); err != nil {
		return "", cloud.Transientf("adapter throttle: %v", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, w.adapterTimeout)
	defer cancel()

	instanceID, err := adapter.CreateInstance(callCtx, task.Params, task.IdempotencyKey)
	if err != nil {
		if cloud.IsPermanent(err) {
			adapterErrors.WithLabelValues(task.Params.Cloud, "permanent").Inc()
		} else {
			adapterErrors.WithLabelValues(task.Params.Cloud, "transient").Inc()
		}
		return "", err
	}

	return instanceID, nil
}

// logJobIfFinished логирует достижение job'ом терминального статуса.
func (w *Worker) logJobIfFinished(job *domain.Job) {
	if job == nil || !job.Status.IsTerminal() {
		return
	}
	w.logger.Info("job finished",
		"job_id", job.ID,
		"status", job.Status,
		"total", job.Total,
		"succeeded", job.Succeeded,
		"failed", job.Failed,
	)
	jobsFinished.WithLabelValues(string(job.Status)).Inc()
}
