// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Validate checks the resolved configuration and reports every problem at once.
func Validate(cfg AppConfig) error {
	var errs []string
	add := func(format string, args ...any) { errs = append(errs, fmt.Sprintf(format, args...)) }

	if _, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel)); err != nil {
		add("logLevel %q is not a valid level", cfg.LogLevel)
	}
	if err := cfg.Properties.Validate(); err != nil {
		add("%v", err)
	}
	if cfg.CSM.BreakerThreshold < 1 {
		add("csm.breakerThreshold must be >= 1")
	}
	if cfg.CSM.BreakerReset <= 0 {
		add("csm.breakerReset must be positive")
	}
	if cfg.CSM.MaxWrapperDepth < 1 || cfg.CSM.MaxWrapperDepth > 10 {
		add("csm.maxWrapperDepth must be within [1,10]")
	}
	if cfg.CSM.MaxPollFailures < 1 {
		add("csm.maxPollFailures must be >= 1")
	}
	if cfg.Tracking.Workers < 1 {
		add("tracking.workers must be >= 1")
	}
	if cfg.Tracking.QueueSize < 1 {
		add("tracking.queueSize must be >= 1")
	}
	if cfg.Tracking.RatePerSecond <= 0 {
		add("tracking.ratePerSecond must be positive")
	}
	if cfg.Tracking.Burst < 1 {
		add("tracking.burst must be >= 1")
	}
	if cfg.Tracking.MaxAttempts < 1 {
		add("tracking.maxAttempts must be >= 1")
	}
	switch cfg.Outbox.Backend {
	case "memory":
	case "sqlite", "badger":
		if cfg.Outbox.Path == "" {
			add("outbox.path is required for backend %q", cfg.Outbox.Backend)
		}
	case "redis":
		if cfg.Outbox.RedisAddr == "" {
			add("outbox.redisAddr is required for backend redis")
		}
	default:
		add("outbox.backend %q is not one of memory, sqlite, badger, redis", cfg.Outbox.Backend)
	}
	if cfg.Telemetry.Enabled {
		if cfg.Telemetry.Exporter != "grpc" && cfg.Telemetry.Exporter != "http" {
			add("telemetry.exporter must be grpc or http")
		}
		if cfg.Telemetry.Endpoint == "" {
			add("telemetry.endpoint is required when telemetry is enabled")
		}
	}
	if cfg.Telemetry.SamplingRatio < 0 || cfg.Telemetry.SamplingRatio > 1 {
		add("telemetry.samplingRatio must be within [0,1]")
	}
	if cfg.API.RateLimit < 0 {
		add("api.rateLimit must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}
