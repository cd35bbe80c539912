package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"telecom-calls/internal/audit"
	"telecom-calls/internal/auth"
	"telecom-calls/internal/calls"
	"telecom-calls/internal/rbac"
	"telecom-calls/internal/reporting"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth  *auth.Manager
	Calls *calls.Manager
	Stats *reporting.Service
	Audit *audit.Service
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: development-only endpoint. It is not mounted in production; real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
		return
	}
	if req.Role == "" {
		req.Role = rbac.RoleUser
	}
	if !rbac.IsKnownRole(req.Role) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, pair)
}

// SignalingTicket issues the short-lived ticket a client presents when opening /v1/ws.
func (h Handlers) SignalingTicket(c *gin.Context) {
	uid, ok := actor(c)
	if !ok {
		return
	}
	role, _ := auth.Role(c.Request.Context())
	tk, err := h.Auth.IssueSignalingTicket(time.Now(), uid, role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "ticket issuance failed"})
		return
	}
	c.JSON(http.StatusOK, tk)
}

func (h Handlers) Me(c *gin.Context) {
	uid, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"user_id": uid, "role": role})
}

// actor returns the authenticated user or aborts with 401.
func actor(c *gin.Context) (string, bool) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return uid, true
}

// bindOptionalJSON decodes the body when one is present. An empty body leaves dst untouched.
func bindOptionalJSON(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return false
	}
	return true
}

func pageFromQuery(c *gin.Context) calls.Page {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	return calls.Page{Limit: limit, Offset: offset}
}

// defaultStatsWindow applies when the caller omits from/to.
const defaultStatsWindow = 30 * 24 * time.Hour

func rangeFromQuery(c *gin.Context) (reporting.TimeRange, bool) {
	now := time.Now().UTC()
	r := reporting.TimeRange{From: now.Add(-defaultStatsWindow), To: now}
	for key, dst := range map[string]*time.Time{"from": &r.From, "to": &r.To} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": key + " must be RFC3339"})
			return reporting.TimeRange{}, false
		}
		*dst = t.UTC()
	}
	return r, true
}
