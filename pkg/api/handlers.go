package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/meansend/ladder/pkg/models"
)

// Chat handles POST /interview/chat. An empty session_id starts a new
// session; the assigned ID comes back in Next.session_id.
func (s *Server) Chat(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	vars := req.TemplateVars
	if req.TemplateName != "" {
		merged := map[string]any{"template_name": req.TemplateName}
		for k, v := range req.TemplateVars {
			merged[k] = v
		}
		vars = merged
	}

	resp, err := s.sessions.Chat(c.Request.Context(), req.SessionID, req.Stimulus, req.Message, vars)
	if err != nil {
		slog.Error("Chat turn failed", "session_id", req.SessionID, "stimulus", req.Stimulus, "error", err)
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Load handles POST /interview/load.
func (s *Server) Load(c *gin.Context) {
	var req models.LoadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	history, err := s.sessions.History(req.SessionID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, history)
}

// SaveOrder handles POST /interview/save_order.
func (s *Server) SaveOrder(c *gin.Context) {
	var req models.SaveOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.sessions.SaveOrder(req.SessionID, req.StimuliOrder); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Messages handles POST /interview/all_chat_messages.
func (s *Server) Messages(c *gin.Context) {
	var req models.MessagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := s.sessions.Messages(req.SessionID, req.Offset, req.Limit)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// DeleteSession handles DELETE /session/:id.
func (s *Server) DeleteSession(c *gin.Context) {
	id := c.Param("id")
	if err := s.sessions.Delete(id); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	slog.Info("Session deleted", "session_id", id)
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
