// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader resolves an AppConfig with precedence ENV > file > defaults.
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a loader. An empty configPath skips the file step.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) key(name string) string {
	k := EnvPrefix + name
	l.ConsumedEnvKeys[k] = struct{}{}
	return k
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel:   "info",
		Properties: DefaultProperties(),
		CSM: CSMConfig{
			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
			MaxWrapperDepth:  5,
			MaxPollFailures:  3,
		},
		Tracking: TrackingConfig{
			Workers:        4,
			QueueSize:      256,
			RatePerSecond:  50,
			Burst:          20,
			RequestTimeout: 5 * time.Second,
			MaxAttempts:    3,
			RetryBase:      200 * time.Millisecond,
			ReplayInterval: 30 * time.Second,
		},
		Outbox: OutboxConfig{
			Backend:  "memory",
			RedisKey: "adsession:outbox",
		},
		Telemetry: TelemetryConfig{
			ServiceName:   "adsession",
			Exporter:      "grpc",
			Endpoint:      "localhost:4317",
			SamplingRatio: 1.0,
		},
		API: APIConfig{
			Listen:     "127.0.0.1:8089",
			RateLimit:  120,
			RateWindow: time.Minute,
		},
	}
}

// Load runs defaults, the strict file parse, env overrides and validation in that order.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		fc, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := mergeFileConfig(&cfg, fc); err != nil {
			return cfg, fmt.Errorf("merge file config: %w", err)
		}
	}

	if err := l.mergeEnvConfig(&cfg); err != nil {
		return cfg, fmt.Errorf("merge env config: %w", err)
	}
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile parses path strictly: unknown keys and multiple documents are errors.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- path comes from the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return decodeStrict(data)
}

func decodeStrict(data []byte) (*FileConfig, error) {
	var fc FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return &fc, nil
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func mergeFileConfig(cfg *AppConfig, fc *FileConfig) error {
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
	if p := fc.Properties; p != nil {
		dst := &cfg.Properties
		set(&dst.Timeout, p.Timeout)
		set(&dst.ResourceTimeout, p.ResourceTimeout)
		set(&dst.PollInterval, p.PollInterval)
		set(&dst.KeepProxyAlive, p.KeepProxyAlive)
		set(&dst.UserAgent, p.UserAgent)
		set(&dst.ProxyUserAgent, p.ProxyUserAgent)
		set(&dst.PrefetchNonLinearResources, p.PrefetchNonLinearResources)
		set(&dst.FireHistoricalBeacons, p.FireHistoricalBeacons)
		set(&dst.ApplyEncryptedTracking, p.ApplyEncryptedTracking)
		set(&dst.ConsecutiveBreakTolerance, p.ConsecutiveBreakTolerance)
		set(&dst.RetryWithoutAds, p.RetryWithoutAds)
		for k, v := range p.CustomHeaders {
			dst.CustomHeaders[k] = v
		}
		if p.ExcludeFromSuppression != nil {
			c, err := ParseCategories(p.ExcludeFromSuppression)
			if err != nil {
				return err
			}
			dst.ExcludeFromSuppression = c
		}
		if p.DebugFlags != nil {
			d, err := ParseDebugFlags(p.DebugFlags)
			if err != nil {
				return err
			}
			dst.DebugFlags = d
		}
	}
	if c := fc.CSM; c != nil {
		set(&cfg.CSM.BreakerThreshold, c.BreakerThreshold)
		set(&cfg.CSM.BreakerReset, c.BreakerReset)
		set(&cfg.CSM.MaxWrapperDepth, c.MaxWrapperDepth)
		set(&cfg.CSM.MaxPollFailures, c.MaxPollFailures)
	}
	if t := fc.Tracking; t != nil {
		set(&cfg.Tracking.Workers, t.Workers)
		set(&cfg.Tracking.QueueSize, t.QueueSize)
		set(&cfg.Tracking.RatePerSecond, t.RatePerSecond)
		set(&cfg.Tracking.Burst, t.Burst)
		set(&cfg.Tracking.RequestTimeout, t.RequestTimeout)
		set(&cfg.Tracking.MaxAttempts, t.MaxAttempts)
		set(&cfg.Tracking.RetryBase, t.RetryBase)
		set(&cfg.Tracking.ReplayInterval, t.ReplayInterval)
	}
	if o := fc.Outbox; o != nil {
		set(&cfg.Outbox.Backend, o.Backend)
		set(&cfg.Outbox.Path, o.Path)
		set(&cfg.Outbox.RedisAddr, o.RedisAddr)
		set(&cfg.Outbox.RedisKey, o.RedisKey)
	}
	if t := fc.Telemetry; t != nil {
		set(&cfg.Telemetry.Enabled, t.Enabled)
		set(&cfg.Telemetry.ServiceName, t.ServiceName)
		set(&cfg.Telemetry.Exporter, t.Exporter)
		set(&cfg.Telemetry.Endpoint, t.Endpoint)
		set(&cfg.Telemetry.SamplingRatio, t.SamplingRatio)
	}
	if a := fc.API; a != nil {
		set(&cfg.API.Listen, a.Listen)
		set(&cfg.API.RateLimit, a.RateLimit)
		set(&cfg.API.RateWindow, a.RateWindow)
	}
	return nil
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) error {
	cfg.LogLevel = ParseString(l.key("LOG_LEVEL"), cfg.LogLevel)

	p := &cfg.Properties
	p.Timeout = ParseDuration(l.key("TIMEOUT"), p.Timeout)
	p.ResourceTimeout = ParseDuration(l.key("RESOURCE_TIMEOUT"), p.ResourceTimeout)
	p.PollInterval = ParseDuration(l.key("POLL_INTERVAL"), p.PollInterval)
	p.KeepProxyAlive = ParseBool(l.key("KEEP_PROXY_ALIVE"), p.KeepProxyAlive)
	p.UserAgent = ParseString(l.key("USER_AGENT"), p.UserAgent)
	p.ProxyUserAgent = ParseString(l.key("PROXY_USER_AGENT"), p.ProxyUserAgent)
	p.PrefetchNonLinearResources = ParseBool(l.key("PREFETCH_NONLINEAR"), p.PrefetchNonLinearResources)
	p.FireHistoricalBeacons = ParseBool(l.key("FIRE_HISTORICAL_BEACONS"), p.FireHistoricalBeacons)
	p.ApplyEncryptedTracking = ParseBool(l.key("ENCRYPTED_TRACKING"), p.ApplyEncryptedTracking)
	p.ConsecutiveBreakTolerance = ParseDuration(l.key("BREAK_TOLERANCE"), p.ConsecutiveBreakTolerance)
	p.RetryWithoutAds = ParseBool(l.key("RETRY_WITHOUT_ADS"), p.RetryWithoutAds)
	for k, v := range ParseHeaders(l.key("CUSTOM_HEADERS"), nil) {
		p.CustomHeaders[k] = v
	}
	if names := ParseList(l.key("EXCLUDE_FROM_SUPPRESSION"), nil); names != nil {
		c, err := ParseCategories(names)
		if err != nil {
			return err
		}
		p.ExcludeFromSuppression = c
	}
	if names := ParseList(l.key("DEBUG"), nil); names != nil {
		d, err := ParseDebugFlags(names)
		if err != nil {
			return err
		}
		p.DebugFlags = d
	}

	c := &cfg.CSM
	c.BreakerThreshold = ParseInt(l.key("CSM_BREAKER_THRESHOLD"), c.BreakerThreshold)
	c.BreakerReset = ParseDuration(l.key("CSM_BREAKER_RESET"), c.BreakerReset)
	c.MaxWrapperDepth = ParseInt(l.key("CSM_MAX_WRAPPER_DEPTH"), c.MaxWrapperDepth)
	c.MaxPollFailures = ParseInt(l.key("CSM_MAX_POLL_FAILURES"), c.MaxPollFailures)

	t := &cfg.Tracking
	t.Workers = ParseInt(l.key("TRACKING_WORKERS"), t.Workers)
	t.QueueSize = ParseInt(l.key("TRACKING_QUEUE_SIZE"), t.QueueSize)
	t.RatePerSecond = ParseFloat(l.key("TRACKING_RATE"), t.RatePerSecond)
	t.Burst = ParseInt(l.key("TRACKING_BURST"), t.Burst)
	t.RequestTimeout = ParseDuration(l.key("TRACKING_TIMEOUT"), t.RequestTimeout)
	t.MaxAttempts = ParseInt(l.key("TRACKING_MAX_ATTEMPTS"), t.MaxAttempts)
	t.RetryBase = ParseDuration(l.key("TRACKING_RETRY_BASE"), t.RetryBase)
	t.ReplayInterval = ParseDuration(l.key("TRACKING_REPLAY_INTERVAL"), t.ReplayInterval)

	o := &cfg.Outbox
	o.Backend = ParseString(l.key("OUTBOX_BACKEND"), o.Backend)
	o.Path = ParseString(l.key("OUTBOX_PATH"), o.Path)
	o.RedisAddr = ParseString(l.key("OUTBOX_REDIS_ADDR"), o.RedisAddr)
	o.RedisKey = ParseString(l.key("OUTBOX_REDIS_KEY"), o.RedisKey)

	tel := &cfg.Telemetry
	tel.Enabled = ParseBool(l.key("OTEL_ENABLED"), tel.Enabled)
	tel.ServiceName = ParseString(l.key("OTEL_SERVICE_NAME"), tel.ServiceName)
	tel.Exporter = ParseString(l.key("OTEL_EXPORTER"), tel.Exporter)
	tel.Endpoint = ParseString(l.key("OTEL_ENDPOINT"), tel.Endpoint)
	tel.SamplingRatio = ParseFloat(l.key("OTEL_SAMPLING_RATIO"), tel.SamplingRatio)

	a := &cfg.API
	a.Listen = ParseString(l.key("API_LISTEN"), a.Listen)
	a.RateLimit = ParseInt(l.key("API_RATE_LIMIT"), a.RateLimit)
	a.RateWindow = ParseDuration(l.key("API_RATE_WINDOW"), a.RateWindow)
	return nil
}
