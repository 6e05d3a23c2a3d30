// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/adsession/internal/domain/session/model"
	"github.com/ManuGH/adsession/internal/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader("", "v1.2.3").Load()
	require.NoError(t, err)
	assert.Equal(t, "v1.2.3", cfg.Version)
	assert.Equal(t, 5*time.Second, cfg.Properties.Timeout)
	assert.Equal(t, "memory", cfg.Outbox.Backend)
	assert.Equal(t, 5, cfg.CSM.MaxWrapperDepth)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeConfig(t, `
logLevel: debug
properties:
  timeout: 8s
  userAgent: player/2
  excludeFromSuppression: [break]
  debugFlags: [polling, reports]
  customHeaders:
    X-Device: tv
tracking:
  workers: 2
outbox:
  backend: sqlite
  path: /tmp/outbox.db
`)
	t.Setenv("ADSESSION_TIMEOUT", "3s")
	t.Setenv("ADSESSION_TRACKING_RATE", "12.5")
	t.Setenv("ADSESSION_CUSTOM_HEADERS", "X-Region=eu")

	l := NewLoader(path, "dev")
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 3*time.Second, cfg.Properties.Timeout, "env wins over file")
	assert.Equal(t, "player/2", cfg.Properties.UserAgent)
	assert.Equal(t, model.CategoryBreakEvents, cfg.Properties.ExcludeFromSuppression)
	assert.Equal(t, log.DebugPolling|log.DebugReports, cfg.Properties.DebugFlags)
	assert.Equal(t, map[string]string{"X-Device": "tv", "X-Region": "eu"}, cfg.Properties.CustomHeaders)
	assert.Equal(t, 2, cfg.Tracking.Workers)
	assert.InDelta(t, 12.5, cfg.Tracking.RatePerSecond, 1e-9)
	assert.Equal(t, "sqlite", cfg.Outbox.Backend)
	assert.Contains(t, l.ConsumedEnvKeys, "ADSESSION_TIMEOUT")
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "properties:\n  timeoutz: 1s\n")
	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strict config parse error")
}

func TestLoadRejectsMultipleDocuments(t *testing.T) {
	path := writeConfig(t, "logLevel: info\n---\nlogLevel: debug\n")
	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple documents")
}

func TestLoadRejectsNonYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
}

func TestInvalidEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("ADSESSION_TRACKING_WORKERS", "many")
	t.Setenv("ADSESSION_KEEP_PROXY_ALIVE", "yes")
	cfg, err := NewLoader("", "").Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Tracking.Workers)
	assert.True(t, cfg.Properties.KeepProxyAlive)
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Properties.Timeout = 0
	cfg.Outbox.Backend = "redis"
	cfg.Tracking.Workers = 0
	err := Validate(cfg)
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "timeout must be positive")
	assert.Contains(t, err.Error(), "redisAddr is required")
	assert.Contains(t, err.Error(), "tracking.workers")
}

func TestPropertiesCloneIsIndependent(t *testing.T) {
	p := DefaultProperties()
	p.CustomHeaders["A"] = "1"
	c := p.Clone()
	c.CustomHeaders["A"] = "2"
	assert.Equal(t, "1", p.CustomHeaders["A"])
}

func TestParseCategoriesUnknown(t *testing.T) {
	_, err := ParseCategories([]string{"break", "bogus"})
	require.Error(t, err)
	c, err := ParseCategories([]string{"Break", "timeline"})
	require.NoError(t, err)
	assert.Equal(t, model.CategoryAll, c)
}

func TestHolderReloadNotifiesAndKeepsOldOnFailure(t *testing.T) {
	path := writeConfig(t, "logLevel: info\n")
	l := NewLoader(path, "")
	initial, err := l.Load()
	require.NoError(t, err)

	h := NewHolder(initial, l, path)
	ch := make(chan AppConfig, 1)
	h.RegisterListener(ch)

	require.NoError(t, os.WriteFile(path, []byte("logLevel: warn\n"), 0o600))
	require.NoError(t, h.Reload(context.Background()))
	select {
	case got := <-ch:
		assert.Equal(t, "warn", got.LogLevel)
	case <-time.After(time.Second):
		t.Fatal("listener not notified")
	}

	require.NoError(t, os.WriteFile(path, []byte("logLevel: shouting\n"), 0o600))
	require.Error(t, h.Reload(context.Background()))
	assert.Equal(t, "warn", h.Get().LogLevel)
}

func TestHolderWatcherReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "logLevel: info\n")
	l := NewLoader(path, "")
	initial, err := l.Load()
	require.NoError(t, err)

	h := NewHolder(initial, l, path)
	ch := make(chan AppConfig, 1)
	h.RegisterListener(ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, h.StartWatcher(ctx))
	defer h.Stop()

	require.NoError(t, os.WriteFile(path, []byte("logLevel: error\n"), 0o600))
	select {
	case got := <-ch:
		assert.Equal(t, "error", got.LogLevel)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not reload")
	}
}
