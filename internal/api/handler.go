package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/Armada/internal/domain"
	"github.com/shaiso/Armada/internal/orchestrator"
)

// Orchestrator — контракт оркестратора, нужный API.
type Orchestrator interface {
	Submit(ctx context.Context, req orchestrator.SubmitRequest) (*orchestrator.SubmitResult, error)
	GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	ListTasks(ctx context.Context, jobID uuid.UUID) ([]domain.Task, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	orchestrator Orchestrator
	logger       *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Orchestrator Orchestrator
	Logger       *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		orchestrator: cfg.Orchestrator,
		logger:       cfg.Logger,
	}
}
