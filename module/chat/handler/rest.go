// Package handler exposes the REST surface the chat UI consumes next to
// the websocket channel: history, recent conversations, edit/delete, and
// the activity heartbeat.
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pulsehr/logger"
	"pulsehr/middleware"
	chatsvc "pulsehr/module/chat/service"
	"pulsehr/service/chat"
	"pulsehr/service/storage"
	"pulsehr/tools/errs"
)

type Rest struct {
	svc      *chatsvc.ChatService
	registry chat.Registry
	activity storage.ActivityStore
}

func NewRest(svc *chatsvc.ChatService, registry chat.Registry, activity storage.ActivityStore) *Rest {
	return &Rest{svc: svc, registry: registry, activity: activity}
}

// Mount attaches the chat routes to an authenticated router group.
func (h *Rest) Mount(g *gin.RouterGroup) {
	g.GET("/messages/:userA/:userB", h.History)
	g.PUT("/messages/:id", h.Edit)
	g.DELETE("/messages/:id", h.Delete)
	g.GET("/chats/:userId", h.RecentConversations)
	g.POST("/users/heartbeat", h.Heartbeat)
	g.GET("/users/:id/presence", h.Presence)
}

func (h *Rest) History(c *gin.Context) {
	msgs, err := h.svc.History(c.Request.Context(), c.Param("userA"), c.Param("userB"))
	if err != nil {
		logger.Errorf("[rest] history: %v", err)
		c.JSON(http.StatusInternalServerError, errs.ErrInternal)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *Rest) RecentConversations(c *gin.Context) {
	convs, err := h.svc.RecentConversations(c.Request.Context(), c.Param("userId"))
	if err != nil {
		logger.Errorf("[rest] recent conversations: %v", err)
		c.JSON(http.StatusInternalServerError, errs.ErrInternal)
		return
	}
	c.JSON(http.StatusOK, convs)
}

type editRequest struct {
	Text string `json:"text" binding:"required"`
}

func (h *Rest) Edit(c *gin.Context) {
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail(err.Error()))
		return
	}
	msg, err := h.svc.Edit(c.Request.Context(), middleware.AuthUser(c), c.Param("id"), req.Text)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *Rest) Delete(c *gin.Context) {
	msg, err := h.svc.Delete(c.Request.Context(), middleware.AuthUser(c), c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// Heartbeat records activity for the authenticated user. The web client
// posts one every 15 seconds while the tab is active.
func (h *Rest) Heartbeat(c *gin.Context) {
	userID := middleware.AuthUser(c)
	if err := h.activity.Heartbeat(c.Request.Context(), userID); err != nil {
		logger.Errorf("[rest] heartbeat user=%s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, errs.ErrInternal)
		return
	}
	c.Status(http.StatusNoContent)
}

type presenceResponse struct {
	UserID       string     `json:"userId"`
	Online       bool       `json:"online"`
	Status       string     `json:"status"` // ACTIVE / IDLE / OFFLINE
	LastActivity *time.Time `json:"last_activity,omitempty"`
}

// Presence merges the two presence signals: socket registry membership
// (online at all) and heartbeat recency (ACTIVE vs IDLE).
func (h *Rest) Presence(c *gin.Context) {
	userID := chat.CanonicalID(c.Param("id"))
	resp := presenceResponse{UserID: userID, Status: "OFFLINE"}

	if _, online := h.registry.Lookup(userID); online {
		resp.Online = true
		status, last, err := h.activity.Status(c.Request.Context(), userID)
		if err != nil {
			logger.Errorf("[rest] presence user=%s: %v", userID, err)
			c.JSON(http.StatusInternalServerError, errs.ErrInternal)
			return
		}
		resp.Status = string(status)
		if !last.IsZero() {
			resp.LastActivity = &last
		}
	}
	c.JSON(http.StatusOK, resp)
}

func writeServiceError(c *gin.Context, err error) {
	switch {
	case errs.ErrRecordNotFound.Is(err):
		c.JSON(http.StatusNotFound, err)
	case errs.ErrNotAuthorized.Is(err):
		c.JSON(http.StatusForbidden, err)
	case errs.ErrArgs.Is(err):
		c.JSON(http.StatusBadRequest, err)
	default:
		logger.Errorf("[rest] %v", err)
		c.JSON(http.StatusInternalServerError, errs.ErrInternal)
	}
}
