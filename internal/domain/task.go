package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Task — одна единица provisioning-работы: создание одного инстанса.
//
// Task создаётся вместе с родительским job и выполняется Worker'ом.
// Каждая попытка выполнения проходит через admission-контроль и
// облачный адаптер; transient-ошибки возвращают task в PENDING
// с отложенной повторной доставкой через очередь.
type Task struct {
	// ID — уникальный идентификатор task.
	ID uuid.UUID `json:"id"`

	// JobID — ссылка на родительский job.
	JobID uuid.UUID `json:"job_id"`

	// Index — позиция в исходном batch (0-based, стабильная).
	// Используется для сопоставления результатов с порядком входа.
	Index int `json:"index"`

	// Tenant — идентичность владельца (копия Job.Submitter).
	// Денормализована, чтобы worker гейтил попытку без загрузки job.
	Tenant string `json:"tenant,omitempty"`

	// Params — параметры инстанса. Оркестратор их не интерпретирует,
	// кроме поля Cloud для выбора адаптера.
	Params InstanceParams `json:"params"`

	// Status — текущий статус task.
	Status TaskStatus `json:"status"`

	// Attempts — количество попыток выполнения (монотонно растёт).
	// Ограничено retry-политикой.
	Attempts int `json:"attempts"`

	// LastError — текст последней ошибки.
	LastError string `json:"last_error,omitempty"`

	// CloudInstanceID — идентификатор созданного инстанса.
	// Заполняется только при SUCCESS.
	CloudInstanceID string `json:"cloud_instance_id,omitempty"`

	// IdempotencyKey — стабильный ключ, производный от job id + index.
	// Передаётся адаптеру на каждой попытке: повторный вызов с тем же
	// ключом не создаёт второй инстанс.
	IdempotencyKey string `json:"idempotency_key"`

	// CreatedAt — время создания task.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего изменения.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTask создаёт task для позиции index внутри job.
func NewTask(job *Job, index int, params InstanceParams) Task {
	now := time.Now()
	return Task{
		ID:             uuid.New(),
		JobID:          job.ID,
		Index:          index,
		Tenant:         job.Submitter,
		Params:         params,
		Status:         TaskStatusPending,
		IdempotencyKey: IdempotencyKey(job.ID, index),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// IdempotencyKey строит ключ идемпотентности для пары (job, index).
// Ключ стабилен между попытками и рестартами.
func IdempotencyKey(jobID uuid.UUID, index int) string {
	return fmt.Sprintf("%s/%d", jobID, index)
}

// IsFinished возвращает true, если task в терминальном статусе.
func (t *Task) IsFinished() bool {
	return t.Status.IsTerminal()
}

// CanRetry проверяет, остались ли попытки.
func (t *Task) CanRetry(maxRetries int) bool {
	return t.Attempts < maxRetries
}
