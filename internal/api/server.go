// Package api is the operational HTTP surface: health probes,
// Prometheus metrics, and a run-trigger endpoint for external
// schedulers that prefer HTTP over exec.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tubemetrics/trendpipe/internal/config"
	"github.com/tubemetrics/trendpipe/internal/metrics"
	"github.com/tubemetrics/trendpipe/internal/pipeline"
)

// RunFunc executes one full pipeline run.
type RunFunc func(ctx context.Context) ([]pipeline.Result, error)

// Run tracks one triggered pipeline run.
type Run struct {
	ID         string            `json:"id"`
	Status     string            `json:"status"` // "running", "succeeded", "failed"
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
	Steps      []pipeline.Result `json:"steps,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// Server serves the operational API.
type Server struct {
	config     *config.Config
	logger     *zap.Logger
	router     *mux.Router
	httpServer *http.Server
	metrics    *metrics.Metrics
	runFn      RunFunc
	limiter    *rate.Limiter
	startTime  time.Time

	mu      sync.Mutex
	runs    map[string]*Run
	running bool
}

// NewServer creates the API server around a pipeline run function.
func NewServer(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics, runFn RunFunc) *Server {
	s := &Server{
		config:    cfg,
		logger:    logger,
		router:    mux.NewRouter(),
		metrics:   m,
		runFn:     runFn,
		limiter:   rate.NewLimiter(rate.Limit(cfg.Server.RateLimit), int(cfg.Server.RateLimit)+1),
		startTime: time.Now(),
		runs:      make(map[string]*Run),
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/ready", s.handleReady).Methods("GET")
	s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")

	s.router.HandleFunc("/api/v1/runs", s.handleTriggerRun).Methods("POST")
	s.router.HandleFunc("/api/v1/runs", s.handleListRuns).Methods("GET")
	s.router.HandleFunc("/api/v1/runs/{id}", s.handleGetRun).Methods("GET")

	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.rateLimitMiddleware)
}

// Start serves until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("api server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Shutdown drains connections.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleTriggerRun starts a pipeline run in the background. Only one
// run may be in flight: the dataset and model store are owned
// exclusively by the running pipeline.
func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a run is already in progress"})
		return
	}
	run := &Run{
		ID:        uuid.New().String(),
		Status:    "running",
		StartedAt: time.Now().UTC(),
	}
	s.runs[run.ID] = run
	s.running = true
	accepted := *run
	s.mu.Unlock()

	go s.executeRun(run.ID)

	writeJSON(w, http.StatusAccepted, accepted)
}

func (s *Server) executeRun(id string) {
	results, err := s.runFn(context.Background())

	s.mu.Lock()
	defer s.mu.Unlock()
	run := s.runs[id]
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.Steps = results
	if err != nil {
		run.Status = "failed"
		run.Error = err.Error()
	} else {
		run.Status = "succeeded"
	}
	s.running = false
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]Run, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, *run)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	run, ok := s.runs[id]
	var out Run
	if ok {
		out = *run
	}
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown run"})
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
