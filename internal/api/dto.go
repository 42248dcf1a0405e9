package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Armada/internal/domain"
)

// Job DTOs

// SubmitJobRequest — запрос на создание batch job.
type SubmitJobRequest struct {
	// BatchID — клиентский идентификатор batch для идемпотентного
	// повторного submit. Пустой — генерируется сервером.
	BatchID string `json:"batch_id,omitempty"`

	// Submitter — tenant, от имени которого создаются инстансы.
	Submitter string `json:"submitter,omitempty"`

	// Instances — параметры создаваемых инстансов, по одной task на элемент.
	Instances []domain.InstanceParams `json:"instances"`

	// Meta — произвольные атрибуты batch.
	Meta map[string]any `json:"meta,omitempty"`

	// DryRun — только валидация и проекция tasks, без создания.
	DryRun bool `json:"dry_run,omitempty"`
}

// JobResponse — ответ с job.
type JobResponse struct {
	ID        uuid.UUID      `json:"id"`
	BatchID   string         `json:"batch_id"`
	Submitter string         `json:"submitter,omitempty"`
	Status    string         `json:"status"`
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Meta      map[string]any `json:"meta,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// JobFromDomain конвертирует domain.Job в JobResponse.
func JobFromDomain(j domain.Job) JobResponse {
	return JobResponse{
		ID:        j.ID,
		BatchID:   j.BatchID,
		Submitter: j.Submitter,
		Status:    string(j.Status),
		Total:     j.Total,
		Succeeded: j.Succeeded,
		Failed:    j.Failed,
		Meta:      j.Meta,
		CreatedAt: j.CreatedAt,
	}
}

// SubmitJobResponse — ответ на submit: job плюс флаг идемпотентного повтора.
type SubmitJobResponse struct {
	Job JobResponse `json:"job"`

	// Existing — batch_id уже был принят ранее, возвращён существующий job.
	Existing bool `json:"existing,omitempty"`

	// DryRun — job не был создан, это проекция.
	DryRun bool `json:"dry_run,omitempty"`
}

// Task DTOs

// TaskResponse — ответ с task.
type TaskResponse struct {
	ID              uuid.UUID             `json:"id"`
	JobID           uuid.UUID             `json:"job_id"`
	Index           int                   `json:"index"`
	Tenant          string                `json:"tenant,omitempty"`
	Params          domain.InstanceParams `json:"params"`
	Status          string                `json:"status"`
	Attempts        int                   `json:"attempts"`
	LastError       string                `json:"last_error,omitempty"`
	CloudInstanceID string                `json:"cloud_instance_id,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// TaskFromDomain конвертирует domain.Task в TaskResponse.
func TaskFromDomain(t domain.Task) TaskResponse {
	return TaskResponse{
		ID:              t.ID,
		JobID:           t.JobID,
		Index:           t.Index,
		Tenant:          t.Tenant,
		Params:          t.Params,
		Status:          string(t.Status),
		Attempts:        t.Attempts,
		LastError:       t.LastError,
		CloudInstanceID: t.CloudInstanceID,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}
