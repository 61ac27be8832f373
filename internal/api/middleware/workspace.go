package middleware

import (
	"github.com/gin-gonic/gin"

	"golang-workspace-automation/internal/services/workspace"
)

// WorkspaceHeader is the explicit per-request workspace switch. When
// present it always wins over the authenticated principal's pointers.
const WorkspaceHeader = "X-Workspace-ID"

// WorkspaceContext captures the request's workspace signals into the
// request context for the resolver. Authentication itself happens
// upstream; this middleware only reads what it left behind.
func WorkspaceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if override := c.GetHeader(WorkspaceHeader); override != "" {
			ctx = workspace.WithOverride(ctx, override)
		}
		if principal, exists := c.Get("principal"); exists {
			if p, ok := principal.(*workspace.Principal); ok {
				ctx = workspace.WithPrincipal(ctx, p)
			}
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
