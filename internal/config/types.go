// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the probe configuration and the default session
// properties: defaults, then a strict YAML file, then ADSESSION_* environment
// variables, then validation.
package config

import (
	"errors"
	"time"
)

var (
	ErrInvalidProperties = errors.New("invalid session properties")
	ErrInvalidConfig     = errors.New("invalid configuration")
)

// AppConfig is the fully resolved configuration.
type AppConfig struct {
	Version    string
	LogLevel   string
	Properties Properties
	CSM        CSMConfig
	Tracking   TrackingConfig
	Outbox     OutboxConfig
	Telemetry  TelemetryConfig
	API        APIConfig
}

// CSMConfig tunes the session manager client.
type CSMConfig struct {
	BreakerThreshold int
	BreakerReset     time.Duration
	MaxWrapperDepth  int
	// MaxPollFailures is how many consecutive poll failures demote a session to NoAnalytics.
	MaxPollFailures int
}

// TrackingConfig tunes the beacon dispatcher.
type TrackingConfig struct {
	Workers        int
	QueueSize      int
	RatePerSecond  float64
	Burst          int
	RequestTimeout time.Duration
	MaxAttempts    int
	RetryBase      time.Duration
	ReplayInterval time.Duration
}

// OutboxConfig selects where undelivered beacons wait for retry.
type OutboxConfig struct {
	Backend   string // memory, sqlite, badger, redis
	Path      string
	RedisAddr string
	RedisKey  string
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled       bool
	ServiceName   string
	Exporter      string // grpc or http
	Endpoint      string
	SamplingRatio float64
}

// APIConfig configures the debug HTTP surface.
type APIConfig struct {
	Listen     string
	RateLimit  int
	RateWindow time.Duration
}

// FileConfig is the YAML document shape. Pointers distinguish unset from zero.
type FileConfig struct {
	LogLevel   string          `yaml:"logLevel"`
	Properties *FileProperties `yaml:"properties"`
	CSM        *FileCSM        `yaml:"csm"`
	Tracking   *FileTracking   `yaml:"tracking"`
	Outbox     *FileOutbox     `yaml:"outbox"`
	Telemetry  *FileTelemetry  `yaml:"telemetry"`
	API        *FileAPI        `yaml:"api"`
}

type FileProperties struct {
	Timeout                    *time.Duration    `yaml:"timeout"`
	ResourceTimeout            *time.Duration    `yaml:"resourceTimeout"`
	PollInterval               *time.Duration    `yaml:"pollInterval"`
	KeepProxyAlive             *bool             `yaml:"keepProxyAlive"`
	UserAgent                  *string           `yaml:"userAgent"`
	ProxyUserAgent             *string           `yaml:"proxyUserAgent"`
	PrefetchNonLinearResources *bool             `yaml:"prefetchNonLinearResources"`
	FireHistoricalBeacons      *bool             `yaml:"fireHistoricalBeacons"`
	ApplyEncryptedTracking     *bool             `yaml:"applyEncryptedTracking"`
	ExcludeFromSuppression     []string          `yaml:"excludeFromSuppression"`
	ConsecutiveBreakTolerance  *time.Duration    `yaml:"consecutiveBreakTolerance"`
	CustomHeaders              map[string]string `yaml:"customHeaders"`
	DebugFlags                 []string          `yaml:"debugFlags"`
	RetryWithoutAds            *bool             `yaml:"retryWithoutAds"`
}

type FileCSM struct {
	BreakerThreshold *int           `yaml:"breakerThreshold"`
	BreakerReset     *time.Duration `yaml:"breakerReset"`
	MaxWrapperDepth  *int           `yaml:"maxWrapperDepth"`
	MaxPollFailures  *int           `yaml:"maxPollFailures"`
}

type FileTracking struct {
	Workers        *int           `yaml:"workers"`
	QueueSize      *int           `yaml:"queueSize"`
	RatePerSecond  *float64       `yaml:"ratePerSecond"`
	Burst          *int           `yaml:"burst"`
	RequestTimeout *time.Duration `yaml:"requestTimeout"`
	MaxAttempts    *int           `yaml:"maxAttempts"`
	RetryBase      *time.Duration `yaml:"retryBase"`
	ReplayInterval *time.Duration `yaml:"replayInterval"`
}

type FileOutbox struct {
	Backend   *string `yaml:"backend"`
	Path      *string `yaml:"path"`
	RedisAddr *string `yaml:"redisAddr"`
	RedisKey  *string `yaml:"redisKey"`
}

type FileTelemetry struct {
	Enabled       *bool    `yaml:"enabled"`
	ServiceName   *string  `yaml:"serviceName"`
	Exporter      *string  `yaml:"exporter"`
	Endpoint      *string  `yaml:"endpoint"`
	SamplingRatio *float64 `yaml:"samplingRatio"`
}

type FileAPI struct {
	Listen     *string        `yaml:"listen"`
	RateLimit  *int           `yaml:"rateLimit"`
	RateWindow *time.Duration `yaml:"rateWindow"`
}
