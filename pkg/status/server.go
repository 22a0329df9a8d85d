// Package status is the worker's admin surface: a small HTTP server with a
// health probe, a JSON status snapshot, and an SSE tail of recent phase
// events. Everything it serves is process-local and ephemeral; durable
// workspace state lives in the control-plane.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/foundry-works/workspace-worker/pkg/worker"
)

// Server exposes the admin endpoints for one worker.
type Server struct {
	engine    *gin.Engine
	worker    *worker.Worker
	collector *Collector
	logger    *slog.Logger
}

// NewServer wires the admin routes for w, serving the event tail from c.
func NewServer(w *worker.Worker, c *Collector, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine:    engine,
		worker:    w,
		collector: c,
		logger:    logger,
	}

	engine.GET("/healthz", s.healthz)
	engine.GET("/status", s.status)
	engine.GET("/events", s.eventsSSE)
	return s
}

// Handler returns the underlying HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves the admin surface on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("status server shutdown", "error", err)
		}
	}()

	s.logger.Info("status server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) status(c *gin.Context) {
	identity := s.worker.Identity()
	c.JSON(http.StatusOK, gin.H{
		"worker_id": s.worker.WorkerID(),
		"region":    identity.Region,
		"version":   identity.Version.String(),
		"operation": identity.Operation,
		"limit":     identity.Limit,
		"running":   s.worker.Running(),
	})
}

// eventsSSE streams the recent-event tail every 2 seconds until the client
// disconnects.
func (s *Server) eventsSSE(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	clientGone := c.Request.Context().Done()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-clientGone:
			return
		case <-ticker.C:
			events := s.collector.Recent()
			data, err := json.Marshal(events)
			if err != nil {
				continue
			}
			fmt.Fprintf(c.Writer, "event: phases\n")
			fmt.Fprintf(c.Writer, "data: %s\n\n", data)
			c.Writer.Flush()
		}
	}
}
