package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
)

func TestAggregateStatus(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		succeeded int
		failed    int
		want      JobStatus
	}{
		{"no progress", 3, 0, 0, JobStatusPending},
		{"partial progress", 3, 1, 1, JobStatusPending},
		{"all succeeded", 3, 3, 0, JobStatusCompleted},
		{"all failed", 3, 0, 3, JobStatusFailed},
		{"mixed outcome", 3, 2, 1, JobStatusPartiallyFailed},
		{"single success", 1, 1, 0, JobStatusCompleted},
		{"single failure", 1, 0, 1, JobStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AggregateStatus(tt.total, tt.succeeded, tt.failed)
			if got != tt.want {
				t.Errorf("AggregateStatus(%d, %d, %d) = %s, want %s",
					tt.total, tt.succeeded, tt.failed, got, tt.want)
			}
		})
	}
}

func TestNewJobDecomposition(t *testing.T) {
	params := []InstanceParams{
		{Cloud: "aws", Region: "eu-west-1", InstanceType: "t3.micro", Image: "ami-1"},
		{Cloud: "aws", Region: "us-east-1", InstanceType: "m5.large", Image: "ami-2"},
	}

	job, tasks := NewJob("batch-x", "tenant-a", params, map[string]any{"team": "infra"})

	if job.Status != JobStatusPending {
		t.Errorf("expected PENDING, got %s", job.Status)
	}
	if job.Total != 2 || job.Succeeded != 0 || job.Failed != 0 {
		t.Errorf("unexpected counters: %d/%d/%d", job.Total, job.Succeeded, job.Failed)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}

	for i, task := range tasks {
		if task.JobID != job.ID {
			t.Errorf("task %d: wrong job id", i)
		}
		if task.Index != i {
			t.Errorf("task %d: index = %d", i, task.Index)
		}
		if task.Tenant != "tenant-a" {
			t.Errorf("task %d: tenant = %q", i, task.Tenant)
		}
		if task.Status != TaskStatusPending {
			t.Errorf("task %d: status = %s", i, task.Status)
		}
		if task.Params.Region != params[i].Region {
			t.Errorf("task %d: params not preserved", i)
		}
	}
}

func TestIdempotencyKeyIsStable(t *testing.T) {
	jobID := uuid.New()

	key := IdempotencyKey(jobID, 7)
	want := fmt.Sprintf("%s/7", jobID)
	if key != want {
		t.Errorf("IdempotencyKey = %q, want %q", key, want)
	}
	if key != IdempotencyKey(jobID, 7) {
		t.Error("key must be deterministic")
	}
	if key == IdempotencyKey(jobID, 8) {
		t.Error("different indexes must produce different keys")
	}
	if key == IdempotencyKey(uuid.New(), 7) {
		t.Error("different jobs must produce different keys")
	}
}

func TestInstanceParamsValidate(t *testing.T) {
	valid := InstanceParams{Cloud: "aws", Region: "eu-west-1", InstanceType: "t3.micro", Image: "ami-1"}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid params: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*InstanceParams)
		want   error
	}{
		{"missing cloud", func(p *InstanceParams) { p.Cloud = "" }, ErrMissingCloud},
		{"missing region", func(p *InstanceParams) { p.Region = "" }, ErrMissingRegion},
		{"missing type", func(p *InstanceParams) { p.InstanceType = "" }, ErrMissingInstanceType},
		{"missing image", func(p *InstanceParams) { p.Image = "" }, ErrMissingImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			if err := p.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestValidateBatchReportsIndex(t *testing.T) {
	batch := []InstanceParams{
		{Cloud: "aws", Region: "eu-west-1", InstanceType: "t3.micro", Image: "ami-1"},
		{Cloud: "aws", Region: "eu-west-1", InstanceType: "t3.micro"},
	}

	err := ValidateBatch(batch)
	if !errors.Is(err, ErrMissingImage) {
		t.Fatalf("expected ErrMissingImage, got %v", err)
	}
	if got := err.Error(); got != "instance 1: image is required" {
		t.Errorf("unexpected message: %q", got)
	}
}

func TestStatusTerminality(t *testing.T) {
	if JobStatusPending.IsTerminal() {
		t.Error("PENDING job must not be terminal")
	}
	for _, s := range []JobStatus{JobStatusCompleted, JobStatusPartiallyFailed, JobStatusFailed} {
		if !s.IsTerminal() {
			t.Errorf("%s must be terminal", s)
		}
	}

	if TaskStatusPending.IsTerminal() || TaskStatusInProgress.IsTerminal() {
		t.Error("PENDING and IN_PROGRESS tasks must not be terminal")
	}
	for _, s := range []TaskStatus{TaskStatusSuccess, TaskStatusFailed} {
		if !s.IsTerminal() {
			t.Errorf("%s must be terminal", s)
		}
	}
}
