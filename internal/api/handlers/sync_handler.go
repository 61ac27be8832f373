package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"golang-workspace-automation/internal/services/syncrun"
	"golang-workspace-automation/internal/services/workspace"
)

type SyncHandler struct {
	supervisor syncrun.SupervisorService
	resolver   *workspace.Resolver
	directory  workspace.DirectoryService
	logger     *logrus.Logger
}

func NewSyncHandler(supervisor syncrun.SupervisorService, resolver *workspace.Resolver, directory workspace.DirectoryService, logger *logrus.Logger) *SyncHandler {
	return &SyncHandler{
		supervisor: supervisor,
		resolver:   resolver,
		directory:  directory,
		logger:     logger,
	}
}

func (h *SyncHandler) currentWorkspaceID(c *gin.Context) (uint, bool) {
	ctx := c.Request.Context()
	identifier, ok := h.resolver.Identifier(ctx)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": workspace.ErrNoWorkspaceContext.Error()})
		return 0, false
	}
	descriptor, err := h.directory.Resolve(ctx, identifier)
	if err != nil {
		if errors.Is(err, workspace.ErrWorkspaceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return 0, false
		}
		h.logger.WithError(err).Error("failed to resolve workspace")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return 0, false
	}
	return descriptor.ID, true
}

// StartSync handles POST /api/v1/integrations/:id/sync
func (h *SyncHandler) StartSync(c *gin.Context) {
	workspaceID, ok := h.currentWorkspaceID(c)
	if !ok {
		return
	}
	integrationID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid integration id"})
		return
	}

	taskID, err := h.supervisor.Start(c.Request.Context(), workspaceID, uint(integrationID))
	if err != nil {
		var inProgress *syncrun.RunInProgressError
		switch {
		case errors.As(err, &inProgress):
			c.JSON(http.StatusConflict, gin.H{
				"error":      inProgress.Error(),
				"task_id":    inProgress.TaskID,
				"status":     inProgress.Status,
				"percentage": inProgress.Percentage,
			})
		case errors.Is(err, syncrun.ErrIntegrationNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, syncrun.ErrSyncDisabled):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.WithError(err).Error("failed to start sync run")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"task_id": taskID})
}

// GetRun handles GET /api/v1/sync-runs/:taskId
func (h *SyncHandler) GetRun(c *gin.Context) {
	workspaceID, ok := h.currentWorkspaceID(c)
	if !ok {
		return
	}

	run, err := h.supervisor.GetRun(c.Request.Context(), workspaceID, c.Param("taskId"))
	if err != nil {
		if errors.Is(err, syncrun.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logger.WithError(err).Error("failed to load sync run")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"task_id":          run.TaskID,
		"integration_id":   run.IntegrationID,
		"integration_name": run.IntegrationName,
		"status":           run.Status,
		"percentage":       run.Percentage,
		"message":          run.Message,
		"totals": gin.H{
			"total":     run.TotalCount,
			"processed": run.ProcessedCount,
			"succeeded": run.SucceededCount,
			"failed":    run.FailedCount,
		},
		"started_at":   run.StartedAt,
		"completed_at": nullableTime(run.CompletedAt),
	})
}

// CancelRun handles DELETE /api/v1/sync-runs/:taskId
func (h *SyncHandler) CancelRun(c *gin.Context) {
	workspaceID, ok := h.currentWorkspaceID(c)
	if !ok {
		return
	}

	err := h.supervisor.Cancel(c.Request.Context(), workspaceID, c.Param("taskId"))
	if err != nil {
		if errors.Is(err, syncrun.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logger.WithError(err).Error("failed to cancel sync run")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"task_id": c.Param("taskId")})
}
