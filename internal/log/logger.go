package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config captures options for configuring the global logger.
type Config struct {
	Level   string    // optional log level ("debug", "info", etc.)
	Output  io.Writer // optional writer (defaults to os.Stderr)
	Service string    // optional service name attached to every log entry
	Version string
}

var (
	mu   sync.RWMutex
	once sync.Once
	base zerolog.Logger
)

// Configure initialises the global zerolog logger. Only the first call wins,
// later calls are ignored so that library users cannot clobber the host setup.
func Configure(cfg Config) {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		base = build(cfg)
	})
}

// Reconfigure replaces the base logger unconditionally. Used by the CLI after
// the configuration file has been loaded and by tests.
func Reconfigure(cfg Config) {
	once.Do(func() {})
	mu.Lock()
	defer mu.Unlock()
	base = build(cfg)
}

func build(cfg Config) zerolog.Logger {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil {
			level = parsed
		}
	} else if env := os.Getenv("ADSESSION_LOG_LEVEL"); env != "" {
		if parsed, err := zerolog.ParseLevel(env); err == nil {
			level = parsed
		}
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	writer := cfg.Output
	if writer == nil {
		writer = os.Stderr
	}

	service := cfg.Service
	if service == "" {
		service = "adsession"
	}

	ctx := zerolog.New(writer).With().Timestamp().Str("service", service)
	if cfg.Version != "" {
		ctx = ctx.Str("version", cfg.Version)
	}
	return ctx.Logger()
}

func logger() zerolog.Logger {
	Configure(Config{})
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Base returns the configured base logger instance.
func Base() zerolog.Logger {
	return logger()
}

// WithComponent returns a child logger annotated with the given component name.
func WithComponent(component string) zerolog.Logger {
	return logger().With().Str(FieldComponent, component).Logger()
}

// Derive attaches arbitrary fields to a child logger using the provided builder function.
func Derive(build func(*zerolog.Context)) zerolog.Logger {
	ctx := logger().With()
	if build != nil {
		build(&ctx)
	}
	return ctx.Logger()
}
