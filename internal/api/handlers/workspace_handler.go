package handlers

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"golang-workspace-automation/internal/models"
	"golang-workspace-automation/internal/services/workspace"
	"golang-workspace-automation/internal/utils"
)

type WorkspaceHandler struct {
	directory workspace.DirectoryService
	logger    *logrus.Logger
}

func NewWorkspaceHandler(directory workspace.DirectoryService, logger *logrus.Logger) *WorkspaceHandler {
	return &WorkspaceHandler{directory: directory, logger: logger}
}

// HealthCheck handles GET /health
func (h *WorkspaceHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"service":   "workspace-automation",
	})
}

// ListWorkspaces handles GET /api/v1/workspaces
func (h *WorkspaceHandler) ListWorkspaces(c *gin.Context) {
	param := &models.GetWorkspaceParam{}
	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
			return
		}
		param.Offset = utils.ToPointer(offset)
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		param.Limit = utils.ToPointer(limit)
	}

	descriptors, err := h.directory.ListAll(c.Request.Context(), param)
	if err != nil {
		h.logger.WithError(err).Error("failed to list workspaces")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"workspaces": descriptors})
}

// EvictWorkspaceCache handles DELETE /api/v1/workspaces/:identifier/cache
func (h *WorkspaceHandler) EvictWorkspaceCache(c *gin.Context) {
	identifier := c.Param("identifier")
	if err := h.directory.Evict(c.Request.Context(), identifier); err != nil {
		h.logger.WithError(err).WithField("identifier", identifier).Error("failed to evict workspace cache entry")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"evicted": identifier})
}

func nullableTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}
