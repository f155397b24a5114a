// Package server exposes the research pipeline over HTTP.
//
// Endpoints:
//
//	POST /research        submit a research request, returns a research ID
//	GET  /research/{id}   fetch one task and its result
//	GET  /research        list tasks, optionally filtered by status
//	GET  /health          liveness probe
//
// Research runs in the background; clients poll GET /research/{id} until the
// task reaches a terminal status.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/probeworks/deepscout/llm"
	"github.com/probeworks/deepscout/research"
	"github.com/probeworks/deepscout/search"
	"github.com/probeworks/deepscout/storage"
)

// Version is reported by GET /health.
const Version = "0.1.0"

// Research modes accepted by POST /research.
const (
	ModeSingle = "single"
	ModeMulti  = "multi"
)

// Server handles research requests over HTTP.
type Server struct {
	provider llm.Provider
	searcher search.Provider
	store    *storage.TaskStore
	opts     research.Options
	log      *zap.Logger

	httpServer *http.Server
	tasks      sync.WaitGroup
}

// New creates a server. The store must be open; the caller owns its lifetime.
func New(addr string, provider llm.Provider, searcher search.Provider, store *storage.TaskStore, opts research.Options, log *zap.Logger) *Server {
	s := &Server{
		provider: provider,
		searcher: searcher,
		store:    store,
		opts:     opts,
		log:      log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /research", s.handleSubmit)
	mux.HandleFunc("GET /research/{id}", s.handleGet)
	mux.HandleFunc("GET /research", s.handleList)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler, exposed for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	s.log.Info("server listening", zap.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests and waits for in-flight research tasks.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

type submitRequest struct {
	Query        string `json:"query"`
	ResearchType string `json:"research_type"`
}

type submitResponse struct {
	ResearchID string `json:"research_id"`
	Status     string `json:"status"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	mode := req.ResearchType
	if mode == "" {
		mode = ModeMulti
	}
	if mode != ModeSingle && mode != ModeMulti {
		writeError(w, http.StatusBadRequest, "research_type must be \"single\" or \"multi\"")
		return
	}

	researchID := uuid.NewString()
	if err := s.store.Create(r.Context(), researchID, req.Query, mode); err != nil {
		s.log.Error("failed to create task", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create task")
		return
	}

	s.tasks.Add(1)
	go s.runResearch(researchID, req.Query, mode)

	s.log.Info("research submitted",
		zap.String("research_id", researchID),
		zap.String("mode", mode))
	writeJSON(w, http.StatusAccepted, submitResponse{ResearchID: researchID, Status: storage.StatusPending})
}

// runResearch executes one task in the background and records the outcome.
func (s *Server) runResearch(researchID, query, mode string) {
	defer s.tasks.Done()

	ctx := context.Background()
	if err := s.store.UpdateStatus(ctx, researchID, storage.StatusRunning); err != nil {
		s.log.Error("failed to mark task running",
			zap.String("research_id", researchID), zap.Error(err))
		return
	}

	var payload interface{}
	var runErr error
	if mode == ModeSingle {
		payload, runErr = research.RunSingleAgent(ctx, s.provider, s.searcher, query, s.opts)
	} else {
		payload, runErr = research.RunSupervised(ctx, s.provider, s.searcher, query, s.opts)
	}

	if runErr != nil {
		s.log.Error("research failed",
			zap.String("research_id", researchID), zap.Error(runErr))
		if err := s.store.FailWithError(ctx, researchID, runErr.Error()); err != nil {
			s.log.Error("failed to record task failure",
				zap.String("research_id", researchID), zap.Error(err))
		}
		return
	}

	result, err := json.Marshal(payload)
	if err != nil {
		s.log.Error("failed to encode result",
			zap.String("research_id", researchID), zap.Error(err))
		_ = s.store.FailWithError(ctx, researchID, "failed to encode result")
		return
	}

	if err := s.store.CompleteWithResult(ctx, researchID, result); err != nil {
		s.log.Error("failed to record task result",
			zap.String("research_id", researchID), zap.Error(err))
		return
	}
	s.log.Info("research completed", zap.String("research_id", researchID))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	task, err := s.store.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrTaskNotFound) {
		writeError(w, http.StatusNotFound, "research task not found")
		return
	}
	if err != nil {
		s.log.Error("failed to get task", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	var tasks []storage.Task
	var err error
	if status := r.URL.Query().Get("status"); status != "" {
		tasks, err = s.store.ListByStatus(r.Context(), status)
	} else {
		tasks, err = s.store.List(r.Context())
	}
	if err != nil {
		s.log.Error("failed to list tasks", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": Version})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
