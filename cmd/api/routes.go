package main

import (
	"database/sql"
	"net/http"
	"time"

	"telecom-calls/internal/auth"
	"telecom-calls/internal/httpapi"
	"telecom-calls/internal/membership"
	"telecom-calls/internal/signaling"
	"telecom-calls/pkg/utils"

	"github.com/gin-gonic/gin"
)

// Route registration lives here; keep this file free of business logic.

func registerPublicRoutes(r *gin.Engine, db *sql.DB) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		if db != nil {
			if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
}

// registerDevRoutes mounts token issuance and, on the memory store, conversation seeding.
// Never mounted in production.
func registerDevRoutes(r *gin.Engine, h httpapi.Handlers, members *membership.MemoryDirectory) {
	dev := r.Group("/v1")
	dev.POST("/auth/login", h.Login)

	if members == nil {
		return
	}
	type seedRequest struct {
		UserIDs []string `json:"user_ids"`
	}
	dev.POST("/dev/conversations/:conversation_id/members", func(c *gin.Context) {
		var req seedRequest
		if err := c.ShouldBindJSON(&req); err != nil || len(req.UserIDs) == 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_ids required"})
			return
		}
		members.Add(c.Param("conversation_id"), req.UserIDs...)
		c.Status(http.StatusNoContent)
	})
}

func registerProtectedRoutes(r *gin.Engine, m *auth.Manager, h httpapi.Handlers, ws *signaling.Handler) {
	r.GET("/v1/ws", auth.RequireSignalingTicket(m), ws.Serve)

	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(m))
	httpapi.RegisterCallRoutes(v1, h)
}
