package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"assetwatch/internal/archive"
	"assetwatch/internal/config"
	"assetwatch/internal/history"
	"assetwatch/internal/logging"
	"assetwatch/internal/logs"
)

const (
	defaultListLimit = 50
	defaultLogLines  = 100
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.API.Bind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(cfg.API.Token),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes(token string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware(token))
		r.Get("/status", s.handleStatus)
		r.Get("/assets", s.handleAssets)
		r.Get("/assets/{name}/events", s.handleAssetEvents)
		r.Get("/events", s.handleEvents)
		r.Get("/errors", s.handleErrors)
		r.Get("/snapshots", s.handleSnapshots)
		r.Get("/logs", s.handleLogs)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, fromStatus(s.daemon.Status(r.Context())))
}

func (s *apiServer) handleAssets(w http.ResponseWriter, r *http.Request) {
	states, err := s.daemon.history.States(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	live := s.daemon.workflow.Status().Assets
	s.writeJSON(w, http.StatusOK, fromAssets(live, states))
}

func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.listEvents(w, r, filter)
}

func (s *apiServer) handleAssetEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.Asset = chi.URLParam(r, "name")
	if !s.tracked(filter.Asset) {
		s.writeError(w, http.StatusNotFound, "asset not tracked")
		return
	}
	s.listEvents(w, r, filter)
}

func (s *apiServer) listEvents(w http.ResponseWriter, r *http.Request, filter history.Filter) {
	events, err := s.daemon.history.Events(r.Context(), filter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, fromEvents(events))
}

func (s *apiServer) handleErrors(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := s.daemon.history.Errors(r.Context(), filter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, fromErrors(rows))
}

func (s *apiServer) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := archive.List(s.daemon.cfg.Paths.DataDir)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if limit, err := parseLimit(r.URL.Query().Get("limit")); err == nil && limit < len(snaps) {
		snaps = snaps[:limit]
	}
	s.writeJSON(w, http.StatusOK, fromSnapshots(snaps))
}

// handleLogs returns the tail of the daemon log, or the lines after ?offset=.
func (s *apiServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	opts := logs.Options{
		Offset: -1,
		Limit:  defaultLogLines,
		Filter: logs.Filter{
			Asset:    strings.TrimSpace(query.Get("asset")),
			CycleID:  strings.TrimSpace(query.Get("cycle")),
			MinLevel: strings.TrimSpace(query.Get("level")),
		},
	}
	if raw := strings.TrimSpace(query.Get("offset")); raw != "" {
		offset, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || offset < 0 {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid offset %q", raw))
			return
		}
		opts.Offset = offset
	}
	if raw := query.Get("limit"); strings.TrimSpace(raw) != "" {
		limit, err := parseLimit(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts.Limit = limit
	}

	path := filepath.Join(s.daemon.cfg.Paths.LogDir, logging.LogFileName)
	res, err := logs.Tail(r.Context(), path, opts)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if res.Lines == nil {
		res.Lines = []string{}
	}
	s.writeJSON(w, http.StatusOK, LogsResponse{Lines: res.Lines, Offset: res.Offset})
}

func (s *apiServer) tracked(name string) bool {
	for _, a := range s.daemon.workflow.Assets() {
		if a.LocalName == name {
			return true
		}
	}
	return false
}

func parseFilter(r *http.Request) (history.Filter, error) {
	query := r.URL.Query()
	filter := history.Filter{Asset: strings.TrimSpace(query.Get("asset"))}
	limit, err := parseLimit(query.Get("limit"))
	if err != nil {
		return history.Filter{}, err
	}
	filter.Limit = limit
	if since := strings.TrimSpace(query.Get("since")); since != "" {
		ts, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return history.Filter{}, fmt.Errorf("invalid since %q: want RFC3339", since)
		}
		filter.Since = ts
	}
	return filter, nil
}

func parseLimit(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return defaultListLimit, nil
	}
	limit, err := strconv.Atoi(value)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit %q", value)
	}
	return limit, nil
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
