package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/recipeshelf/import-service/internal/api/dto"
	"github.com/recipeshelf/import-service/internal/orchestrator"
	"github.com/recipeshelf/import-service/internal/registry"
)

// Resyncer triggers a pending-import drain
type Resyncer interface {
	Drain(ctx context.Context) (int, error)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger       *slog.Logger
	Registry     *registry.Registry
	Orchestrator *orchestrator.Orchestrator
	Resyncer     Resyncer
}

// ImportHandler handles import-related HTTP requests
type ImportHandler struct {
	logger       *slog.Logger
	registry     *registry.Registry
	orchestrator *orchestrator.Orchestrator
	resyncer     Resyncer
}

// NewImportHandler creates a new ImportHandler instance
func NewImportHandler(deps *Dependencies) *ImportHandler {
	return &ImportHandler{
		logger:       deps.Logger,
		registry:     deps.Registry,
		orchestrator: deps.Orchestrator,
		resyncer:     deps.Resyncer,
	}
}

func toDTO(job *registry.Job) dto.ImportJobDTO {
	return dto.ImportJobDTO{
		JobID:          job.ID,
		URL:            job.URL,
		UserID:         job.UserID,
		CollectionID:   job.CollectionID,
		CollectionName: job.CollectionName,
		Status:         string(job.Status),
		Progress:       job.Progress,
		Message:        job.Message,
		Tier:           job.Tier,
		ResultID:       job.ResultID,
		ResultTitle:    job.ResultTitle,
		ErrorMessage:   job.ErrorMessage,
		CreatedAt:      job.CreatedAt.Format(time.RFC3339),
	}
}
