package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/Armada/internal/orchestrator"
)

// SubmitJob принимает batch-заявку на создание инстансов.
// POST /api/v1/jobs
func (h *Handler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req SubmitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	result, err := h.orchestrator.Submit(r.Context(), orchestrator.SubmitRequest{
		BatchID:   req.BatchID,
		Submitter: req.Submitter,
		Instances: req.Instances,
		Meta:      req.Meta,
		DryRun:    req.DryRun,
	})
	if err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrEmptyBatch),
			errors.Is(err, orchestrator.ErrBatchTooLarge),
			errors.Is(err, orchestrator.ErrInvalidParams):
			BadRequest(w, err.Error())
		default:
			InternalError(w, h.logger, err)
		}
		return
	}

	resp := SubmitJobResponse{
		Job:      JobFromDomain(*result.Job),
		Existing: result.Existing,
		DryRun:   req.DryRun,
	}

	// Идемпотентный повтор и dry run — 200, новый job — 201.
	if result.Existing || req.DryRun {
		Success(w, resp)
		return
	}
	Created(w, resp)
}

// GetJob возвращает job по ID.
// GET /api/v1/jobs/{id}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid job id")
		return
	}

	job, err := h.orchestrator.GetJob(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "job not found") {
		return
	}

	Success(w, JobFromDomain(*job))
}

// ListJobTasks возвращает tasks job'а в порядке исходного batch.
// GET /api/v1/jobs/{id}/tasks
func (h *Handler) ListJobTasks(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid job id")
		return
	}

	tasks, err := h.orchestrator.ListTasks(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "job not found") {
		return
	}

	result := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		result[i] = TaskFromDomain(t)
	}

	List(w, result, len(result))
}
