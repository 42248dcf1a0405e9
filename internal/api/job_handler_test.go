package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/shaiso/Armada/internal/domain"
	"github.com/shaiso/Armada/internal/orchestrator"
	"github.com/shaiso/Armada/internal/repo"
)

type fakeOrchestrator struct {
	submitResult *orchestrator.SubmitResult
	submitErr    error

	jobs  map[uuid.UUID]*domain.Job
	tasks map[uuid.UUID][]domain.Task
}

func (f *fakeOrchestrator) Submit(_ context.Context, _ orchestrator.SubmitRequest) (*orchestrator.SubmitResult, error) {
	return f.submitResult, f.submitErr
}

func (f *fakeOrchestrator) GetJob(_ context.Context, id uuid.UUID) (*domain.Job, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return job, nil
}

func (f *fakeOrchestrator) ListTasks(_ context.Context, jobID uuid.UUID) ([]domain.Task, error) {
	if _, ok := f.jobs[jobID]; !ok {
		return nil, repo.ErrNotFound
	}
	return f.tasks[jobID], nil
}

func testServer(orch Orchestrator) *httptest.Server {
	h := NewHandler(Config{
		Orchestrator: orch,
		Logger:       slog.New(slog.DiscardHandler),
	})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return httptest.NewServer(mux)
}

func seedOrchestrator() (*fakeOrchestrator, *domain.Job, []domain.Task) {
	job, tasks := domain.NewJob("batch-1", "tenant-a", []domain.InstanceParams{
		{Cloud: "aws", Region: "eu-west-1", InstanceType: "t3.micro", Image: "ami-0abc"},
		{Cloud: "aws", Region: "eu-west-1", InstanceType: "t3.micro", Image: "ami-0abc"},
	}, nil)

	orch := &fakeOrchestrator{
		submitResult: &orchestrator.SubmitResult{Job: job, Tasks: tasks},
		jobs:         map[uuid.UUID]*domain.Job{job.ID: job},
		tasks:        map[uuid.UUID][]domain.Task{job.ID: tasks},
	}
	return orch, job, tasks
}

func TestSubmitJobCreated(t *testing.T) {
	orch, job, _ := seedOrchestrator()
	srv := testServer(orch)
	defer srv.Close()

	body := `{"batch_id":"batch-1","submitter":"tenant-a","instances":[{"cloud":"aws","region":"eu-west-1","instance_type":"t3.micro","image":"ami-0abc"}]}`
	resp, err := http.Post(srv.URL+"/api/v1/jobs", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /jobs: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var out struct {
		Data SubmitJobResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Data.Job.ID != job.ID {
		t.Errorf("expected job %s, got %s", job.ID, out.Data.Job.ID)
	}
	if out.Data.Existing {
		t.Error("expected a fresh job")
	}
}

func TestSubmitJobExistingReturns200(t *testing.T) {
	orch, _, _ := seedOrchestrator()
	orch.submitResult.Existing = true
	srv := testServer(orch)
	defer srv.Close()

	body := `{"batch_id":"batch-1","instances":[{"cloud":"aws","region":"eu-west-1","instance_type":"t3.micro","image":"ami-0abc"}]}`
	resp, err := http.Post(srv.URL+"/api/v1/jobs", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /jobs: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for idempotent resubmit, got %d", resp.StatusCode)
	}
}

func TestSubmitJobValidationError(t *testing.T) {
	orch, _, _ := seedOrchestrator()
	orch.submitResult = nil
	orch.submitErr = orchestrator.ErrEmptyBatch
	srv := testServer(orch)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/jobs", "application/json", strings.NewReader(`{"instances":[]}`))
	if err != nil {
		t.Fatalf("POST /jobs: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSubmitJobMalformedBody(t *testing.T) {
	orch, _, _ := seedOrchestrator()
	srv := testServer(orch)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/jobs", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST /jobs: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetJob(t *testing.T) {
	orch, job, _ := seedOrchestrator()
	srv := testServer(orch)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/jobs/" + job.ID.String())
	if err != nil {
		t.Fatalf("GET /jobs/{id}: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var out struct {
		Data JobResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Data.BatchID != "batch-1" || out.Data.Total != 2 {
		t.Errorf("unexpected payload: %+v", out.Data)
	}
}

func TestGetJobNotFound(t *testing.T) {
	orch, _, _ := seedOrchestrator()
	srv := testServer(orch)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/jobs/" + uuid.NewString())
	if err != nil {
		t.Fatalf("GET /jobs/{id}: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestGetJobInvalidID(t *testing.T) {
	orch, _, _ := seedOrchestrator()
	srv := testServer(orch)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/jobs/not-a-uuid")
	if err != nil {
		t.Fatalf("GET /jobs/{id}: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestListJobTasks(t *testing.T) {
	orch, job, tasks := seedOrchestrator()
	srv := testServer(orch)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/jobs/" + job.ID.String() + "/tasks")
	if err != nil {
		t.Fatalf("GET /jobs/{id}/tasks: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var out struct {
		Data  []TaskResponse `json:"data"`
		Total int            `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(out.Data) != len(tasks) {
		t.Fatalf("expected %d tasks, got %d", len(tasks), len(out.Data))
	}
	if out.Data[0].Index != 0 || out.Data[1].Index != 1 {
		t.Error("tasks must preserve batch order")
	}
}
