package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/recipeshelf/import-service/internal/api/dto"
)

// SubmitImport handles POST /api/v1/imports
// Registers a new import job and starts the extraction pipeline
func (h *ImportHandler) SubmitImport(c *gin.Context) {
	var req dto.SubmitImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	jobID := h.registry.Add(req.URL, req.UserID, req.CollectionID, req.CollectionName)
	h.orchestrator.Start(c.Request.Context(), jobID)

	h.logger.Info("Import submitted",
		slog.String("job_id", jobID),
		slog.String("url", req.URL),
	)

	c.JSON(http.StatusAccepted, gin.H{
		"job_id": jobID,
		"status": "checking",
	})
}

// ListImports handles GET /api/v1/imports
// Returns all tracked jobs, newest first
func (h *ImportHandler) ListImports(c *gin.Context) {
	jobs := h.registry.List()

	imports := make([]dto.ImportJobDTO, len(jobs))
	for i, job := range jobs {
		imports[i] = toDTO(job)
	}

	c.JSON(http.StatusOK, dto.ListImportsResponse{
		Imports: imports,
	})
}

// GetImport handles GET /api/v1/imports/:job_id
func (h *ImportHandler) GetImport(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	job := h.registry.Get(jobID)
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "import not found",
		})
		return
	}

	c.JSON(http.StatusOK, toDTO(job))
}

// GetActiveImport handles GET /api/v1/imports/active
// Returns the most recently created non-terminal job, if any
func (h *ImportHandler) GetActiveImport(c *gin.Context) {
	job := h.registry.ActiveJob()
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "no active import",
		})
		return
	}

	c.JSON(http.StatusOK, toDTO(job))
}

// GetRecentImport handles GET /api/v1/imports/recent
// Returns the most recent terminal job not yet dismissed, if any
func (h *ImportHandler) GetRecentImport(c *gin.Context) {
	job := h.registry.RecentlyCompleted()
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "no recently completed import",
		})
		return
	}

	c.JSON(http.StatusOK, toDTO(job))
}

// CancelImport handles POST /api/v1/imports/:job_id/cancel
// Closes the job's live stream. The record keeps its last status; use
// dismiss to remove it.
func (h *ImportHandler) CancelImport(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	if h.registry.Get(jobID) == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "import not found",
		})
		return
	}

	h.orchestrator.Cancel(jobID)

	h.logger.Info("Import canceled",
		slog.String("job_id", jobID),
	)

	c.JSON(http.StatusOK, gin.H{
		"job_id": jobID,
		"status": "canceled",
	})
}

// DismissImport handles DELETE /api/v1/imports/:job_id
// Cancels any live stream and removes the record entirely
func (h *ImportHandler) DismissImport(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	h.orchestrator.Dismiss(jobID)

	h.logger.Info("Import dismissed",
		slog.String("job_id", jobID),
	)

	c.Status(http.StatusNoContent)
}

// TriggerResync handles POST /api/v1/imports/resync
// Drains the external pending-import queue in the background
func (h *ImportHandler) TriggerResync(c *gin.Context) {
	// Detached from the request: the drain outlives this response
	ctx := context.WithoutCancel(c.Request.Context())
	go func() {
		if _, err := h.resyncer.Drain(ctx); err != nil {
			h.logger.Error("Resync failed", slog.String("error", err.Error()))
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"status": "resync started",
	})
}
