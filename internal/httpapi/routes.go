package httpapi

import (
	"telecom-calls/internal/rbac"

	"github.com/gin-gonic/gin"
)

// RegisterCallRoutes mounts the call API on an authenticated group.
func RegisterCallRoutes(v1 *gin.RouterGroup, h Handlers) {
	v1.GET("/me", h.Me)
	v1.POST("/signaling/ticket", h.SignalingTicket)

	c := v1.Group("/calls")
	{
		c.POST("", h.InitiateCall)
		c.GET("", h.ListHistory)
		c.GET("/missed", h.ListMissed)
		c.GET("/waiting", h.ListWaiting)
		c.GET("/stats", h.MyCallStats)
		c.POST("/seen", h.MarkSeen)

		c.GET("/:call_id", h.GetCall)
		c.POST("/:call_id/join", h.JoinCall)
		c.POST("/:call_id/leave", h.LeaveCall)
		c.POST("/:call_id/decline", h.DeclineCall)
		c.POST("/:call_id/hold", h.HoldCall)

		c.POST("/:call_id/mute-all", h.MuteAll)
		c.POST("/:call_id/lock", h.LockCall)
		c.POST("/:call_id/unlock", h.UnlockCall)
		c.POST("/:call_id/end-all", h.EndAll)
		c.POST("/:call_id/invite", h.InviteParticipants)

		c.POST("/:call_id/participants/:user_id/mute", h.MuteParticipant)
		c.POST("/:call_id/participants/:user_id/remove", h.RemoveParticipant)
		c.POST("/:call_id/participants/:user_id/promote", h.PromoteParticipant)

		c.POST("/:call_id/transfer", h.RequestTransfer)
		c.POST("/:call_id/transfer/accept", h.AcceptTransfer)
		c.POST("/:call_id/transfer/decline", h.DeclineTransfer)

		c.POST("/:call_id/recording/start", h.StartRecording)
		c.POST("/:call_id/recording/stop", h.StopRecording)
		c.POST("/:call_id/quality", h.ReportQuality)
	}

	// Only support/admin can access admin endpoints.
	admin := v1.Group("/admin")
	admin.Use(rbac.RequireAnyRole(rbac.RoleSupport, rbac.RoleAdmin))
	{
		admin.GET("/calls/stats", h.AdminCallStats)
		admin.GET("/calls/:call_id/audit", h.CallAuditTrail)
	}
}
