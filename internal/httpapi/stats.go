package httpapi

import (
	"net/http"
	"strings"

	"telecom-calls/internal/reporting"

	"github.com/gin-gonic/gin"
)

// MyCallStats returns statistics over the caller's own calls.
func (h Handlers) MyCallStats(c *gin.Context) {
	actorID, ok := actor(c)
	if !ok {
		return
	}
	h.callStats(c, actorID)
}

// AdminCallStats returns platform-wide statistics, optionally scoped with ?user_id=.
// RBAC: support or admin.
func (h Handlers) AdminCallStats(c *gin.Context) {
	h.callStats(c, strings.TrimSpace(c.Query("user_id")))
}

func (h Handlers) callStats(c *gin.Context, userID string) {
	if h.Stats == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	r, ok := rangeFromQuery(c)
	if !ok {
		return
	}
	out, err := h.Stats.CallStats(c.Request.Context(), reporting.CallStatsRequest{UserID: userID, Range: r})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// CallAuditTrail returns the moderation trail of one call.
// RBAC: support or admin.
func (h Handlers) CallAuditTrail(c *gin.Context) {
	if h.Audit == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "audit not configured"})
		return
	}
	events, err := h.Audit.ForCall(c.Request.Context(), c.Param("call_id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
