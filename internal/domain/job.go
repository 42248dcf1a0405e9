package domain

import (
	"time"

	"github.com/google/uuid"
)

// Job — одна batch-заявка на создание облачных инстансов.
//
// Job создаётся атомарно вместе со всеми своими tasks (один на инстанс).
// После создания job мутируется только агрегацией: worker при переводе
// task в терминальный статус инкрементирует succeeded/failed, и когда
// succeeded + failed == total — job получает терминальный статус.
//
// Инвариант: succeeded + failed <= total в любой момент времени.
type Job struct {
	// ID — уникальный идентификатор job.
	ID uuid.UUID `json:"id"`

	// BatchID — идентификатор batch, переданный вызывающей стороной
	// (или сгенерированный, если не передан). Уникален; повторный submit
	// с тем же batch_id возвращает существующий job.
	BatchID string `json:"batch_id"`

	// Submitter — идентичность вызывающей стороны (пустая строка для anonymous).
	Submitter string `json:"submitter,omitempty"`

	// Status — агрегатный статус (см. AggregateStatus).
	Status JobStatus `json:"status"`

	// Total — количество tasks в batch.
	Total int `json:"total"`

	// Succeeded — количество успешно завершённых tasks.
	Succeeded int `json:"succeeded"`

	// Failed — количество проваленных tasks.
	Failed int `json:"failed"`

	// Meta — произвольные атрибуты, снятые при создании. Неизменяемы.
	Meta map[string]any `json:"meta,omitempty"`

	// CreatedAt — время создания job.
	CreatedAt time.Time `json:"created_at"`
}

// IsFinished возвращает true, если job завершён.
func (j *Job) IsFinished() bool {
	return j.Status.IsTerminal()
}

// NewJob создаёт job в статусе PENDING со всеми tasks для batch.
// Tasks получают стабильный index и idempotency key, производный
// от job id и index.
func NewJob(batchID, submitter string, instances []InstanceParams, meta map[string]any) (*Job, []Task) {
	job := &Job{
		ID:        uuid.New(),
		BatchID:   batchID,
		Submitter: submitter,
		Status:    JobStatusPending,
		Total:     len(instances),
		Meta:      meta,
		CreatedAt: time.Now(),
	}

	tasks := make([]Task, len(instances))
	for i, params := range instances {
		tasks[i] = NewTask(job, i, params)
	}

	return job, tasks
}
