// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the read-mostly debug surface of a session factory:
// health, metrics, session records with their timelines, and live event
// streams.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ManuGH/adsession/internal/api/middleware"
	"github.com/ManuGH/adsession/internal/config"
	"github.com/ManuGH/adsession/internal/domain/session/manager"
	"github.com/ManuGH/adsession/internal/log"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const (
	defaultHeartbeat = 15 * time.Second
	shutdownTimeout  = 5 * time.Second
)

// Server exposes a manager.Factory over HTTP.
type Server struct {
	factory   *manager.Factory
	cfg       config.APIConfig
	heartbeat time.Duration
	logger    zerolog.Logger
}

func New(f *manager.Factory, cfg config.APIConfig) *Server {
	return &Server{
		factory:   f,
		cfg:       cfg,
		heartbeat: defaultHeartbeat,
		logger:    log.WithComponent("api"),
	}
}

// Handler returns the routed handler with the ingress stack applied.
func (s *Server) Handler() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:  true,
		TracingService: "adsession-api",
		EnableLogging:  true,
		RateLimit:      s.cfg.RateLimit,
		RateWindow:     s.cfg.RateWindow,
	})
	s.routes(r)
	return r
}

func (s *Server) routes(r chi.Router) {
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.handleListSessions)
		r.Get("/{token}", s.handleGetSession)
		r.Delete("/{token}", s.handleDeleteSession)
		r.Get("/{token}/events", s.handleEvents)
	})
}

// ListenAndServe serves on cfg.Listen until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		// No WriteTimeout: event streams are long lived.
		IdleTimeout: 60 * time.Second,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("debug api listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
