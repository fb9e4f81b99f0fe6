package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-client/internal/session"
)

// SessionHandler exposes session lifecycle and connection/presence state.
type SessionHandler struct {
	registry *session.Registry
}

// NewSessionHandler constructs a SessionHandler.
func NewSessionHandler(registry *session.Registry) *SessionHandler {
	return &SessionHandler{registry: registry}
}

type openSessionRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Token  string `json:"token" binding:"required"`
}

// OpenSession opens (or returns) the realtime session for a user.
func (h *SessionHandler) OpenSession(c *gin.Context) {
	var req openSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and token are required"})
		return
	}

	s := h.registry.Open(req.UserID, req.Token)
	c.JSON(http.StatusCreated, gin.H{
		"user_id": s.UserID(),
		"status":  s.Status(),
	})
}

// CloseSession tears down a user's session.
func (h *SessionHandler) CloseSession(c *gin.Context) {
	if !h.registry.Close(c.Param("user_id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// GetStatus reports the connection state so the UI can render it
// continuously.
func (h *SessionHandler) GetStatus(c *gin.Context) {
	s, ok := h.registry.Get(c.Param("user_id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, s.Status())
}

// GetPresence returns the online set, or one user's status with ?user_id=.
func (h *SessionHandler) GetPresence(c *gin.Context) {
	s, ok := h.registry.Get(c.Param("user_id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	if queried := c.Query("user_id"); queried != "" {
		c.JSON(http.StatusOK, gin.H{"user_id": queried, "is_online": s.IsOnline(queried)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"online": s.OnlineUsers()})
}

// GetTyping reports whether a peer is composing toward this user.
func (h *SessionHandler) GetTyping(c *gin.Context) {
	s, ok := h.registry.Get(c.Param("user_id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	peerID := c.Param("peer_id")
	c.JSON(http.StatusOK, gin.H{"peer_id": peerID, "is_typing": s.IsTyping(peerID)})
}
