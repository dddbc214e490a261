package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/reeldav/reeldav/internal/config"
	"github.com/reeldav/reeldav/internal/logger"
	"github.com/reeldav/reeldav/pkg/version"
	"github.com/reeldav/reeldav/pkg/vfs"
	"github.com/reeldav/reeldav/pkg/webdav"
)

type Server struct {
	router *chi.Mux
	vfs    *vfs.VFS
	logger zerolog.Logger
}

func New(dav *webdav.Handler, v *vfs.VFS) *Server {
	s := &Server{
		vfs:    v,
		logger: logger.New("http"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/logs", s.getLogs)
	r.Mount("/", dav.Readiness(dav))

	s.router = r
	return s
}

func (s *Server) Start(ctx context.Context) error {
	cfg := config.Get()

	addr := fmt.Sprintf("%s:%s", cfg.BindAddress, cfg.Port)
	s.logger.Info().Msgf("Starting server on %s", addr)
	srv := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msgf("Error starting server")
		}
	}()

	<-ctx.Done()
	s.logger.Info().Msg("Shutting down gracefully...")
	return srv.Shutdown(context.Background())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.vfs.Stats()

	status := "ok"
	if !s.vfs.IsReady() {
		status = "initializing"
	}

	payload := struct {
		Status  string `json:"status"`
		Version string `json:"version"`
		vfs.Stats
		SnapshotAge string `json:"snapshot_age,omitempty"`
	}{
		Status:  status,
		Version: version.GetInfo().Version,
		Stats:   stats,
	}
	if !stats.LastBuild.IsZero() {
		payload.SnapshotAge = time.Since(stats.LastBuild).Round(time.Second).String()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error().Err(err).Msg("Error encoding health response")
	}
}

func (s *Server) getLogs(w http.ResponseWriter, r *http.Request) {
	logFile := logger.GetLogPath()

	file, err := os.Open(logFile)
	if err != nil {
		http.Error(w, "Error reading log file", http.StatusInternalServerError)
		return
	}
	defer func(file *os.File) {
		err := file.Close()
		if err != nil {
			s.logger.Error().Err(err).Msg("Error closing log file")
		}
	}(file)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", "inline; filename=application.log")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

	_, err = io.Copy(w, file)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error streaming log file")
	}
}
