// Package api exposes the copy-trade control surface over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"aptos-copytrade/internal/aptos"
	"aptos-copytrade/internal/copytrade"
	"aptos-copytrade/internal/domain"
	"aptos-copytrade/internal/storage"
)

// SessionService is the session control surface, implemented by copytrade.Manager.
type SessionService interface {
	Start(ctx context.Context, followerID, masterAddress string) (*domain.CopyTradeSession, error)
	Stop(ctx context.Context, followerID, sessionID string) error
	List(ctx context.Context, followerID string) ([]*domain.CopyTradeSession, error)
}

var _ SessionService = (*copytrade.Manager)(nil)

// Options contains configuration for creating a Server.
type Options struct {
	Sessions SessionService
	Events   http.Handler // websocket event feed; nil disables /ws
	Metrics  http.Handler // nil disables /metrics
	Logger   logrus.FieldLogger
}

// Server routes control requests to the session service.
type Server struct {
	sessions SessionService
	events   http.Handler
	metrics  http.Handler
	log      logrus.FieldLogger
}

// New creates a Server.
func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		sessions: opts.Sessions,
		events:   opts.Events,
		metrics:  opts.Metrics,
		log:      log,
	}
}

// Router builds the gin engine.
func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics))
	}
	if s.events != nil {
		r.GET("/ws", gin.WrapH(s.events))
	}

	sessions := r.Group("/api/followers/:followerID/sessions")
	sessions.GET("", s.handleList)
	sessions.POST("", s.handleStart)
	sessions.DELETE("/:sessionID", s.handleStop)

	return r
}

type startRequest struct {
	MasterAddress string `json:"master_address" binding:"required"`
}

type sessionResponse struct {
	ID              string    `json:"id"`
	FollowerID      string    `json:"follower_id"`
	MasterAddress   string    `json:"master_address"`
	Active          bool      `json:"active"`
	LastSeenVersion uint64    `json:"last_seen_version,string"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toResponse(s *domain.CopyTradeSession) sessionResponse {
	return sessionResponse{
		ID:              s.ID,
		FollowerID:      s.FollowerID,
		MasterAddress:   s.MasterAddress,
		Active:          s.Active,
		LastSeenVersion: s.LastSeenVersion,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

func (s *Server) handleStart(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "master_address is required"})
		return
	}

	session, err := s.sessions.Start(c.Request.Context(), c.Param("followerID"), req.MasterAddress)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toResponse(session))
}

func (s *Server) handleList(c *gin.Context) {
	sessions, err := s.sessions.List(c.Request.Context(), c.Param("followerID"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	out := make([]sessionResponse, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, toResponse(session))
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

// handleStop answers 202: the runner observes the stop at its next tick.
func (s *Server) handleStop(c *gin.Context) {
	if err := s.sessions.Stop(c.Request.Context(), c.Param("followerID"), c.Param("sessionID")); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "stopping"})
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, copytrade.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, copytrade.ErrSessionActive):
		status = http.StatusConflict
	case errors.Is(err, copytrade.ErrNoWallet), errors.Is(err, aptos.ErrInvalidPrivateKey):
		status = http.StatusUnprocessableEntity
	case aptos.IsTransient(err):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		s.log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("http request")
	}
}
