package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-client/internal/history"
	"chat-client/internal/realtime"
	"chat-client/internal/session"
)

// ChatHandler exposes conversation state and realtime send operations.
type ChatHandler struct {
	registry *session.Registry
}

// NewChatHandler constructs a ChatHandler.
func NewChatHandler(registry *session.Registry) *ChatHandler {
	return &ChatHandler{registry: registry}
}

func (h *ChatHandler) sessionOrAbort(c *gin.Context) (*session.Session, bool) {
	s, ok := h.registry.Get(c.Param("user_id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil, false
	}
	return s, true
}

// ActivateConversation switches the active conversation and loads its
// history. Fetch failures are reported, not swallowed.
func (h *ChatHandler) ActivateConversation(c *gin.Context) {
	s, ok := h.sessionOrAbort(c)
	if !ok {
		return
	}

	conversationID := c.Param("conversation_id")
	if err := s.SetActiveConversation(c.Request.Context(), conversationID); err != nil {
		var fetchErr *history.FetchError
		if errors.As(err, &fetchErr) {
			c.JSON(http.StatusBadGateway, gin.H{"error": fetchErr.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversation_id": conversationID,
		"messages":        s.Messages(conversationID),
	})
}

// GetMessages returns the ordered timeline plus the unread count.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	s, ok := h.sessionOrAbort(c)
	if !ok {
		return
	}

	conversationID := c.Param("conversation_id")
	c.JSON(http.StatusOK, gin.H{
		"conversation_id": conversationID,
		"messages":        s.Messages(conversationID),
		"unread_count":    s.UnreadCount(conversationID),
	})
}

type postMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// PostMessage sends a message over the realtime channel. Refused while the
// connection is not open, since sends are never queued.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	s, ok := h.sessionOrAbort(c)
	if !ok {
		return
	}

	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}

	if s.Status().State != realtime.StateConnected {
		c.JSON(http.StatusConflict, gin.H{"error": "not connected"})
		return
	}

	msg := s.SendMessage(c.Param("conversation_id"), req.Content)
	c.JSON(http.StatusAccepted, gin.H{"message": msg})
}

type editMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// EditMessage edits a message locally and on the server.
func (h *ChatHandler) EditMessage(c *gin.Context) {
	s, ok := h.sessionOrAbort(c)
	if !ok {
		return
	}

	var req editMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}

	if s.Status().State != realtime.StateConnected {
		c.JSON(http.StatusConflict, gin.H{"error": "not connected"})
		return
	}

	s.EditMessage(c.Param("message_id"), req.Content)
	c.Status(http.StatusAccepted)
}

// DeleteMessage removes a message locally and on the server.
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	s, ok := h.sessionOrAbort(c)
	if !ok {
		return
	}

	if s.Status().State != realtime.StateConnected {
		c.JSON(http.StatusConflict, gin.H{"error": "not connected"})
		return
	}

	s.DeleteMessage(c.Param("message_id"))
	c.Status(http.StatusAccepted)
}

type postTypingRequest struct {
	IsTyping *bool `json:"is_typing" binding:"required"`
}

// PostTyping forwards a typing signal toward the conversation peer.
func (h *ChatHandler) PostTyping(c *gin.Context) {
	s, ok := h.sessionOrAbort(c)
	if !ok {
		return
	}

	var req postTypingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "is_typing is required"})
		return
	}

	s.NotifyTyping(c.Param("peer_id"), *req.IsTyping)
	c.Status(http.StatusAccepted)
}
