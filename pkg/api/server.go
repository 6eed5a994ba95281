// Package api exposes the interview engine over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/meansend/ladder/pkg/models"
	"github.com/meansend/ladder/pkg/session"
)

// SessionService is the session layer the handlers talk to.
// *session.Manager satisfies it; tests substitute a stub.
type SessionService interface {
	Chat(ctx context.Context, sessionID, stimulus, message string, templateVars map[string]any) (models.InterviewResponse, error)
	History(sessionID string) (models.History, error)
	Messages(sessionID string, offset, limit int) (models.MessagesResponse, error)
	SaveOrder(sessionID string, order []string) error
	Delete(sessionID string) error
}

// Server is the HTTP server around the session layer.
type Server struct {
	sessions SessionService
	engine   *gin.Engine
	http     *http.Server
}

// NewServer creates the server and registers all routes.
func NewServer(sessions SessionService) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{sessions: sessions, engine: engine}

	engine.GET("/health", s.Health)
	interview := engine.Group("/interview")
	{
		interview.POST("/chat", s.Chat)
		interview.POST("/load", s.Load)
		interview.POST("/save_order", s.SaveOrder)
		interview.POST("/all_chat_messages", s.Messages)
	}
	engine.DELETE("/session/:id", s.DeleteSession)
	return s
}

// Router exposes the gin engine, used by handler tests.
func (s *Server) Router() *gin.Engine { return s.engine }

// Start serves until Shutdown is called or the listener fails.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// Health reports liveness.
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// statusFor maps session-layer errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case isNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, session.ErrUnknownSession) || errors.Is(err, session.ErrUnknownStimulus)
}
