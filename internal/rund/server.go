// Package rund is benchkeepd's HTTP shell: a long-lived process that keeps
// one task's warm state (its resolved task root) across invocations so an
// editor integration driving repeated runs doesn't pay cold-start cost on
// every keystroke-triggered check. Grounded on the teacher's internal/proxy
// package (net/http.Server with Start/Stop/Addr, a JSON error writer, one
// mutex serializing the shared resource it fronts).
package rund

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/taskforge/benchkeep/internal/cli"
)

// Config holds benchkeepd's own configuration.
type Config struct {
	Listen   string // e.g. "127.0.0.1:4117"
	TaskRoot string // default task root a bare POST /run targets
}

// Server serializes pipeline invocations onto a single mutex: the
// pipeline itself is single-threaded cooperative per spec.md §5, and
// pipelinelock already refuses a second concurrent run against the same
// task root, so the server-side lock just turns "refuse with an error"
// into "queue and wait."
type Server struct {
	cfg Config
	srv *http.Server

	mu   sync.Mutex
	addr string
}

// New creates a benchkeepd server. It does not start listening.
func New(cfg Config) *Server {
	return &Server{cfg: cfg}
}

// Start begins listening and returns the bound address.
func (s *Server) Start() (string, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("POST /run", s.handleRun)

	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return "", fmt.Errorf("benchkeepd listen %s: %w", s.cfg.Listen, err)
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.srv = &http.Server{Handler: mux}
	s.mu.Unlock()

	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("benchkeepd server error", "error", err)
		}
	}()

	slog.Info("benchkeepd started", "addr", s.addr, "task_root", s.cfg.TaskRoot)
	return s.addr, nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// Addr returns the listening address after Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// runRequestBody is the wire shape of a POST /run body. Every field is
// optional; an empty TaskRoot falls back to the server's configured
// default.
type runRequestBody struct {
	TaskRoot   string `json:"task_root,omitempty"`
	ConfigFile string `json:"config_file,omitempty"`
	Strict     bool   `json:"strict,omitempty"`
	FailFast   bool   `json:"fail_fast,omitempty"`
	Workers    int    `json:"workers,omitempty"`
	TestingLog bool   `json:"testing_log,omitempty"`
}

type runResponseBody struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var body runRequestBody
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, runResponseBody{Error: "invalid request body: " + err.Error()})
			return
		}
	}

	taskRoot := body.TaskRoot
	if taskRoot == "" {
		taskRoot = s.cfg.TaskRoot
	}
	taskRootAbs, err := filepath.Abs(taskRoot)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, runResponseBody{Error: "resolve task root: " + err.Error()})
		return
	}
	cfgFile := body.ConfigFile
	if cfgFile == "" {
		cfgFile = ".benchkeep.yml"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = cli.Invoke(r.Context(), taskRootAbs, cfgFile, cli.RunRequest{
		Strict:     body.Strict,
		FailFast:   body.FailFast,
		Workers:    body.Workers,
		TestingLog: body.TestingLog,
	})
	if err != nil {
		writeJSON(w, http.StatusOK, runResponseBody{OK: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, runResponseBody{OK: true})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
