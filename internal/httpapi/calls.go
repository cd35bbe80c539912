package httpapi

import (
	"context"
	"net/http"

	"telecom-calls/internal/calls"

	"github.com/gin-gonic/gin"
)

// view strips the roster log from responses; clients read the projected participants.
func view(c calls.Call) calls.Call {
	c.History = nil
	return c
}

func views(list []calls.Call) []calls.Call {
	out := make([]calls.Call, 0, len(list))
	for _, c := range list {
		out = append(out, view(c))
	}
	return out
}

type callAction func(ctx context.Context, callID, actorID string) (calls.Call, error)

// runAction is the shape shared by every body-less call mutation.
func runAction(c *gin.Context, fn callAction) {
	actorID, ok := actor(c)
	if !ok {
		return
	}
	call, err := fn(c.Request.Context(), c.Param("call_id"), actorID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view(call))
}

// --- Lifecycle ---

type initiateResponse struct {
	calls.Call
	Created bool `json:"created"`
}

func (h Handlers) InitiateCall(c *gin.Context) {
	actorID, ok := actor(c)
	if !ok {
		return
	}
	var req calls.InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	res, err := h.Calls.Initiate(c.Request.Context(), actorID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	c.JSON(status, initiateResponse{Call: view(res.Call), Created: res.Created})
}

func (h Handlers) GetCall(c *gin.Context)     { runAction(c, h.Calls.Get) }
func (h Handlers) JoinCall(c *gin.Context)    { runAction(c, h.Calls.Join) }
func (h Handlers) LeaveCall(c *gin.Context)   { runAction(c, h.Calls.Leave) }
func (h Handlers) DeclineCall(c *gin.Context) { runAction(c, h.Calls.Decline) }

// --- Participant state ---

type muteRequest struct {
	Muted *bool `json:"muted"`
}

// MuteParticipant mutes (default) or unmutes :user_id.
func (h Handlers) MuteParticipant(c *gin.Context) {
	actorID, ok := actor(c)
	if !ok {
		return
	}
	var req muteRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	muted := req.Muted == nil || *req.Muted
	call, err := h.Calls.Mute(c.Request.Context(), c.Param("call_id"), actorID, c.Param("user_id"), muted)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view(call))
}

type holdRequest struct {
	OnHold *bool `json:"on_hold"`
}

func (h Handlers) HoldCall(c *gin.Context) {
	actorID, ok := actor(c)
	if !ok {
		return
	}
	var req holdRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	onHold := req.OnHold == nil || *req.OnHold
	call, err := h.Calls.Hold(c.Request.Context(), c.Param("call_id"), actorID, onHold)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view(call))
}

// --- Moderation ---

func (h Handlers) MuteAll(c *gin.Context)    { runAction(c, h.Calls.MuteAll) }
func (h Handlers) LockCall(c *gin.Context)   { runAction(c, h.Calls.Lock) }
func (h Handlers) UnlockCall(c *gin.Context) { runAction(c, h.Calls.Unlock) }
func (h Handlers) EndAll(c *gin.Context)     { runAction(c, h.Calls.EndAll) }

type inviteRequest struct {
	UserIDs []string `json:"user_ids"`
}

type inviteResponse struct {
	calls.Call
	ValidUserIDs []string `json:"valid_user_ids"`
}

func (h Handlers) InviteParticipants(c *gin.Context) {
	actorID, ok := actor(c)
	if !ok {
		return
	}
	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	res, err := h.Calls.Invite(c.Request.Context(), c.Param("call_id"), actorID, req.UserIDs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, inviteResponse{Call: view(res.Call), ValidUserIDs: res.ValidUserIDs})
}

func (h Handlers) targetAction(c *gin.Context, fn func(ctx context.Context, callID, actorID, targetID string) (calls.Call, error)) {
	actorID, ok := actor(c)
	if !ok {
		return
	}
	call, err := fn(c.Request.Context(), c.Param("call_id"), actorID, c.Param("user_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view(call))
}

func (h Handlers) RemoveParticipant(c *gin.Context)  { h.targetAction(c, h.Calls.Remove) }
func (h Handlers) PromoteParticipant(c *gin.Context) { h.targetAction(c, h.Calls.Promote) }

// --- Transfer ---

type transferRequest struct {
	TargetUserID string `json:"target_user_id"`
}

func (h Handlers) RequestTransfer(c *gin.Context) {
	actorID, ok := actor(c)
	if !ok {
		return
	}
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	call, err := h.Calls.RequestTransfer(c.Request.Context(), c.Param("call_id"), actorID, req.TargetUserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view(call))
}

func (h Handlers) AcceptTransfer(c *gin.Context)  { runAction(c, h.Calls.AcceptTransfer) }
func (h Handlers) DeclineTransfer(c *gin.Context) { runAction(c, h.Calls.DeclineTransfer) }

// --- Recording & quality ---

func (h Handlers) StartRecording(c *gin.Context) { runAction(c, h.Calls.StartRecording) }
func (h Handlers) StopRecording(c *gin.Context)  { runAction(c, h.Calls.StopRecording) }

func (h Handlers) ReportQuality(c *gin.Context) {
	actorID, ok := actor(c)
	if !ok {
		return
	}
	var req calls.QualityScores
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	call, err := h.Calls.ReportQuality(c.Request.Context(), c.Param("call_id"), actorID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view(call))
}

// --- Listings ---

func (h Handlers) ListHistory(c *gin.Context) {
	actorID, ok := actor(c)
	if !ok {
		return
	}
	list, err := h.Calls.History(c.Request.Context(), actorID, pageFromQuery(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": views(list)})
}

func (h Handlers) ListMissed(c *gin.Context) {
	actorID, ok := actor(c)
	if !ok {
		return
	}
	list, err := h.Calls.Missed(c.Request.Context(), actorID, pageFromQuery(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": views(list)})
}

func (h Handlers) ListWaiting(c *gin.Context) {
	actorID, ok := actor(c)
	if !ok {
		return
	}
	list, err := h.Calls.Waiting(c.Request.Context(), actorID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": views(list)})
}

type markSeenRequest struct {
	CallIDs []string `json:"call_ids"`
}

func (h Handlers) MarkSeen(c *gin.Context) {
	actorID, ok := actor(c)
	if !ok {
		return
	}
	var req markSeenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	marked, err := h.Calls.MarkSeen(c.Request.Context(), actorID, req.CallIDs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": marked})
}
