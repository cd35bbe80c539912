package signaling

import (
	"context"
	"net/http"
	"time"

	"telecom-calls/internal/auth"
	"telecom-calls/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers send cross-origin upgrades from the web client; auth is by token, not cookie.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const releaseTimeout = 2 * time.Second

// Handler upgrades authenticated requests to signaling connections.
// The route must sit behind auth.RequireSignalingTicket.
type Handler struct {
	hub     *Hub
	limiter ConnLimiter
}

func NewHandler(hub *Hub, limiter ConnLimiter) *Handler {
	return &Handler{hub: hub, limiter: limiter}
}

func (h *Handler) Serve(c *gin.Context) {
	ctx := c.Request.Context()
	userID, err := auth.UserID(ctx)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	log := logger.From(ctx)

	if h.limiter != nil {
		ok, err := h.limiter.Acquire(ctx, userID)
		if err != nil {
			log.Error("ws conn limiter failed", "user_id", userID, "err", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "signaling unavailable"})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many connections"})
			return
		}
		defer func() {
			rctx, cancel := context.WithTimeout(logger.Detach(ctx), releaseTimeout)
			defer cancel()
			if err := h.limiter.Release(rctx, userID); err != nil {
				log.Warn("ws conn slot release failed", "user_id", userID, "err", err)
			}
		}()
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("ws upgrade failed", "user_id", userID, "err", err)
		return
	}

	client := newClient(h.hub, conn, userID)
	if !h.hub.Register(client) {
		_ = conn.Close()
		return
	}
	client.sendEnvelope(Envelope{Op: OpReady, Data: gin.H{"user_id": userID}})

	go client.WritePump()
	client.ReadPump()
}
