// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/adsession/internal/log"
)

// EnvPrefix is prepended to every environment key the loader reads.
const EnvPrefix = "ADSESSION_"

// parseEnv resolves key through parse and logs where the value came from.
// An unset or empty variable yields def; an unparsable one yields def and a warning.
func parseEnv[T any](key string, def T, parse func(string) (T, bool)) T {
	logger := log.WithComponent("config")
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		logger.Debug().Str("key", key).Interface("default", def).Str("source", "default").Msg("using default value")
		return def
	}
	v, ok := parse(raw)
	if !ok {
		logger.Warn().Str("key", key).Str("value", redact(key, raw)).Interface("default", def).
			Msg("invalid value in environment variable, using default")
		return def
	}
	ev := logger.Debug().Str("key", key).Str("source", "environment")
	if isSensitive(key) {
		ev = ev.Bool("sensitive", true)
	} else {
		ev = ev.Interface("value", v)
	}
	ev.Msg("using environment variable")
	return v
}

func isSensitive(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "token") || strings.Contains(k, "password") || strings.Contains(k, "secret")
}

func redact(key, v string) string {
	if isSensitive(key) {
		return "***"
	}
	return v
}

// ParseString reads a string from the environment or returns defaultValue.
func ParseString(key, defaultValue string) string {
	return parseEnv(key, defaultValue, func(s string) (string, bool) { return s, true })
}

// ParseInt reads an integer from the environment or returns defaultValue.
func ParseInt(key string, defaultValue int) int {
	return parseEnv(key, defaultValue, func(s string) (int, bool) {
		i, err := strconv.Atoi(strings.TrimSpace(s))
		return i, err == nil
	})
}

// ParseFloat reads a float64 from the environment or returns defaultValue.
func ParseFloat(key string, defaultValue float64) float64 {
	return parseEnv(key, defaultValue, func(s string) (float64, bool) {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	})
}

// ParseDuration reads a Go duration ("5s", "250ms") from the environment.
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	return parseEnv(key, defaultValue, func(s string) (time.Duration, bool) {
		d, err := time.ParseDuration(strings.TrimSpace(s))
		return d, err == nil
	})
}

// ParseBool accepts true/false, 1/0 and yes/no, case-insensitively.
func ParseBool(key string, defaultValue bool) bool {
	return parseEnv(key, defaultValue, func(s string) (bool, bool) {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "1", "yes":
			return true, true
		case "false", "0", "no":
			return false, true
		}
		return false, false
	})
}

// ParseList reads a comma separated list. Blank entries are dropped.
func ParseList(key string, defaultValue []string) []string {
	return parseEnv(key, defaultValue, func(s string) ([]string, bool) {
		var out []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, true
	})
}

// ParseHeaders reads "Name=value;Other=value" pairs.
func ParseHeaders(key string, defaultValue map[string]string) map[string]string {
	return parseEnv(key, defaultValue, func(s string) (map[string]string, bool) {
		out := map[string]string{}
		for _, p := range strings.Split(s, ";") {
			if strings.TrimSpace(p) == "" {
				continue
			}
			name, value, ok := strings.Cut(p, "=")
			if !ok || strings.TrimSpace(name) == "" {
				return nil, false
			}
			out[strings.TrimSpace(name)] = strings.TrimSpace(value)
		}
		return out, true
	})
}
