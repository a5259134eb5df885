package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"reelsmith/internal/api"
	"reelsmith/internal/assembly"
	"reelsmith/internal/config"
	"reelsmith/internal/fetch"
	"reelsmith/internal/logging"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	maxRequestBytes  = 1 << 20
)

type apiServer struct {
	bind     string
	token    string
	audioDir string
	logger   *slog.Logger
	daemon   *Daemon
	runs     *api.RunService
	runner   Runner

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, errors.New("api server requires config and daemon")
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:     bind,
		token:    cfg.Paths.APIToken,
		audioDir: cfg.Paths.AudioDir,
		logger:   logger,
		daemon:   d,
		runs:     api.NewRunService(d.store),
		runner:   d.newRunner(SourceAPI),
	}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Submissions block until the run finishes, so writes are not bounded.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", authMiddleware(s.token, s.handleStatus))
	mux.HandleFunc("/api/runs", authMiddleware(s.token, s.handleRuns))
	mux.HandleFunc("/api/runs/", authMiddleware(s.token, s.handleRun))
	mux.HandleFunc("/api/audio", authMiddleware(s.token, s.handleAudio))
	return mux
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, api.ServiceStatus{
		Running:       status.Running,
		PID:           status.PID,
		RunStorePath:  status.RunStorePath,
		LockFilePath:  status.LockFilePath,
		IntakeEnabled: status.IntakeEnabled,
		Runs:          api.FromSummary(status.Summary),
		Dependencies:  api.FromDependencies(status.Dependencies),
		Checks:        api.FromChecks(status.Checks),
	})
}

func (s *apiServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listRuns(w, r)
	case http.MethodPost:
		s.submitRun(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) listRuns(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var statuses []assembly.Stage
	for _, value := range query["status"] {
		for _, part := range strings.Split(value, ",") {
			trimmed := strings.ToLower(strings.TrimSpace(part))
			if trimmed == "" {
				continue
			}
			stage, ok := assembly.ParseStage(trimmed)
			if !ok {
				s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", trimmed))
				return
			}
			statuses = append(statuses, stage)
		}
	}
	limit := defaultListLimit
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(parsed, maxListLimit)
	}

	runs, err := s.runs.List(r.Context(), limit, statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []api.Run{}
	}
	s.writeJSON(w, http.StatusOK, api.RunListResponse{Runs: runs})
}

func (s *apiServer) submitRun(w http.ResponseWriter, r *http.Request) {
	var req assembly.Request
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if err := req.Validate(); err != nil {
		s.writeJSON(w, http.StatusUnprocessableEntity, api.NewSubmitResponse(assembly.Result{}, err))
		return
	}

	result, err := s.runner.Run(r.Context(), req)
	s.writeJSON(w, api.HTTPStatus(err), api.NewSubmitResponse(result, err))
}

func (s *apiServer) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	run, err := s.runs.Describe(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.RunResponse{Run: *run})
}

func (s *apiServer) handleAudio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	files, err := fetch.ListAudio(s.audioDir)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.AudioListResponse{Files: api.FromAudioFiles(files)})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
