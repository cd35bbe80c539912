package httpapi

import (
	"errors"
	"net/http"

	"telecom-calls/internal/calls"
	"telecom-calls/internal/reporting"
	"telecom-calls/pkg/logger"

	"github.com/gin-gonic/gin"
)

// writeError maps domain errors to HTTP responses.
// Body shape: {"error": message, "code": machine_code[, "retryable": true]}.
func writeError(c *gin.Context, err error) {
	status, code := classify(err)
	body := gin.H{"error": err.Error(), "code": code}
	if code == "conflict" {
		body["retryable"] = true
	}
	if status >= http.StatusInternalServerError {
		logger.FromGin(c).Error("request failed", "code", code, "err", err)
		if status == http.StatusInternalServerError {
			body["error"] = "internal error"
		}
	}
	c.AbortWithStatusJSON(status, body)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, calls.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, calls.ErrTargetNotFound):
		return http.StatusNotFound, "target_not_found"
	case errors.Is(err, calls.ErrUnauthorized):
		return http.StatusForbidden, "unauthorized"
	case errors.Is(err, calls.ErrLocked):
		return http.StatusConflict, "locked"
	case errors.Is(err, calls.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, calls.ErrCallEnded):
		return http.StatusConflict, "call_ended"
	case errors.Is(err, calls.ErrConflict), errors.Is(err, calls.ErrLiveCallExists):
		return http.StatusConflict, "conflict"
	case errors.Is(err, calls.ErrInvalidArgument), errors.Is(err, reporting.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, calls.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusInternalServerError, "internal"
}
