// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/adsession/internal/log"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const reloadDebounce = 500 * time.Millisecond

// Holder serves the current AppConfig and swaps it atomically on reload.
// A failed reload keeps the previous configuration.
type Holder struct {
	mu         sync.RWMutex
	current    AppConfig
	loader     *Loader
	configPath string
	watcher    *fsnotify.Watcher
	logger     zerolog.Logger

	listenMu  sync.RWMutex
	listeners []chan<- AppConfig
}

// NewHolder creates a holder seeded with initial.
func NewHolder(initial AppConfig, loader *Loader, configPath string) *Holder {
	return &Holder{
		current:    initial,
		loader:     loader,
		configPath: configPath,
		logger:     log.WithComponent("config"),
	}
}

// Get returns the current configuration.
func (h *Holder) Get() AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cfg := h.current
	cfg.Properties = cfg.Properties.Clone()
	return cfg
}

// Reload loads and validates a fresh configuration.
func (h *Holder) Reload(_ context.Context) error {
	h.logger.Info().Str("event", "config.reload_start").Msg("reloading configuration")

	next, err := h.loader.Load()
	if err != nil {
		h.logger.Error().Err(err).Str("event", "config.reload_failed").Msg("failed to load new configuration")
		return fmt.Errorf("load config: %w", err)
	}

	h.mu.Lock()
	prev := h.current
	h.current = next
	h.mu.Unlock()

	h.notify(next)
	h.logChanges(prev, next)
	h.logger.Info().Str("event", "config.reload_success").Msg("configuration reloaded")
	return nil
}

// StartWatcher reloads on file writes. It is a no-op without a config file.
func (h *Holder) StartWatcher(ctx context.Context) error {
	if h.configPath == "" {
		h.logger.Info().Str("event", "config.watcher_disabled").Msg("no config file, watcher disabled")
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(h.configPath); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch config file: %w", err)
	}
	h.watcher = w
	h.logger.Info().Str("event", "config.watcher_started").Str("path", h.configPath).Msg("watching config file")
	go h.watchLoop(ctx, w)
	return nil
}

func (h *Holder) watchLoop(ctx context.Context, w *fsnotify.Watcher) {
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			_ = w.Close()
			h.logger.Info().Str("event", "config.watcher_stopped").Msg("config watcher stopped")
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			h.logger.Debug().Str("event", "config.file_changed").Str("op", ev.Op.String()).Msg("config file changed")
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				if err := h.Reload(ctx); err != nil {
					h.logger.Error().Err(err).Str("event", "config.auto_reload_failed").Msg("automatic reload failed")
				}
			})
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Str("event", "config.watcher_error").Msg("config watcher error")
		}
	}
}

// Stop closes the watcher if one is running.
func (h *Holder) Stop() {
	if h.watcher != nil {
		_ = h.watcher.Close()
	}
}

// RegisterListener subscribes ch to successful reloads. Sends never block;
// a full channel misses the update.
func (h *Holder) RegisterListener(ch chan<- AppConfig) {
	h.listenMu.Lock()
	defer h.listenMu.Unlock()
	h.listeners = append(h.listeners, ch)
}

func (h *Holder) notify(cfg AppConfig) {
	h.listenMu.RLock()
	defer h.listenMu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- cfg:
		default:
			h.logger.Warn().Str("event", "config.listener_skip").Msg("listener channel full, update skipped")
		}
	}
}

func (h *Holder) logChanges(prev, next AppConfig) {
	if prev.LogLevel != next.LogLevel {
		h.logger.Info().Str("old", prev.LogLevel).Str("new", next.LogLevel).Msg("config changed: logLevel")
	}
	if prev.Properties.Timeout != next.Properties.Timeout {
		h.logger.Info().Dur("old", prev.Properties.Timeout).Dur("new", next.Properties.Timeout).Msg("config changed: timeout")
	}
	if prev.Properties.PollInterval != next.Properties.PollInterval {
		h.logger.Info().Dur("old", prev.Properties.PollInterval).Dur("new", next.Properties.PollInterval).Msg("config changed: pollInterval")
	}
	if prev.Tracking.RatePerSecond != next.Tracking.RatePerSecond {
		h.logger.Info().Float64("old", prev.Tracking.RatePerSecond).Float64("new", next.Tracking.RatePerSecond).Msg("config changed: tracking.ratePerSecond")
	}
	if prev.Outbox.Backend != next.Outbox.Backend {
		h.logger.Info().Str("old", prev.Outbox.Backend).Str("new", next.Outbox.Backend).
			Msg("config changed: outbox.backend (takes effect on restart)")
	}
}
