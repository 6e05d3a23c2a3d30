// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ManuGH/adsession/internal/api"
	"github.com/ManuGH/adsession/internal/bus"
	"github.com/ManuGH/adsession/internal/config"
	"github.com/ManuGH/adsession/internal/csm"
	"github.com/ManuGH/adsession/internal/domain/session/manager"
	"github.com/ManuGH/adsession/internal/domain/session/model"
	"github.com/ManuGH/adsession/internal/log"
	"github.com/ManuGH/adsession/internal/outbox"
	"github.com/ManuGH/adsession/internal/telemetry"
	"github.com/ManuGH/adsession/internal/tracking"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type playOptions struct {
	mode       string
	configPath string
	listen     string
	speed      float64
	tick       time.Duration
	maxTime    time.Duration
	snapshot   string
	hold       bool
}

func newPlayCmd() *cobra.Command {
	opts := playOptions{}
	cmd := &cobra.Command{
		Use:   "play <url>",
		Short: "Create a session and play it with a simulated player",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.mode, "mode", string(model.ModeVOD), "playback mode: VOD, LIVE, DVR_LIVE or NONLINEAR_START_OVER")
	f.StringVar(&opts.configPath, "config", "", "path to config file (YAML)")
	f.StringVar(&opts.listen, "listen", "", "serve the debug API on this address")
	f.Float64Var(&opts.speed, "speed", 1, "playback speed multiplier")
	f.DurationVar(&opts.tick, "tick", 250*time.Millisecond, "interval between playhead reports")
	f.DurationVar(&opts.maxTime, "max-time", 0, "stop after this much wall time (0 plays a VOD to the end, live until interrupted)")
	f.StringVar(&opts.snapshot, "snapshot", "", "write the final session view as JSON to this file")
	f.BoolVar(&opts.hold, "hold", false, "keep the debug API running after playback ends")
	return cmd
}

// probe owns everything one play run wires together.
type probe struct {
	cfg      config.AppConfig
	holder   *config.Holder
	tracer   *telemetry.Provider
	store    outbox.Store
	sender   *tracking.Sender
	factory  *manager.Factory
	shutdown []func(context.Context) error
}

func newProbe(ctx context.Context, configPath string) (*probe, error) {
	loader := config.NewLoader(configPath, version)
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	log.Reconfigure(log.Config{Level: cfg.LogLevel, Service: "adprobe", Version: version})

	p := &probe{cfg: cfg, holder: config.NewHolder(cfg, loader, configPath)}

	p.tracer, err = telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	p.shutdown = append(p.shutdown, p.tracer.Shutdown)

	p.store, err = outbox.Open(outbox.Config{
		Backend:   cfg.Outbox.Backend,
		Path:      cfg.Outbox.Path,
		RedisAddr: cfg.Outbox.RedisAddr,
		RedisKey:  cfg.Outbox.RedisKey,
	})
	if err != nil {
		_ = p.close()
		return nil, fmt.Errorf("outbox: %w", err)
	}
	p.shutdown = append(p.shutdown, func(context.Context) error { return p.store.Close() })

	p.sender = tracking.NewSender(tracking.SenderConfig{
		Workers:        cfg.Tracking.Workers,
		QueueSize:      cfg.Tracking.QueueSize,
		RatePerSecond:  cfg.Tracking.RatePerSecond,
		Burst:          cfg.Tracking.Burst,
		RequestTimeout: cfg.Tracking.RequestTimeout,
		MaxAttempts:    cfg.Tracking.MaxAttempts,
		RetryBase:      cfg.Tracking.RetryBase,
		ReplayInterval: cfg.Tracking.ReplayInterval,
		OutboxBackend:  cfg.Outbox.Backend,
	}, p.store)
	p.sender.Start(ctx)
	p.shutdown = append(p.shutdown, p.sender.Close)
	logger := log.WithComponent("adprobe")
	if n, err := p.sender.Replay(ctx); err != nil {
		logger.Warn().Err(err).Msg("outbox replay failed")
	} else if n > 0 {
		logger.Info().Int("sent", n).Msg("delivered beacons left over from a previous run")
	}

	client := csm.NewClient(csm.Config{
		Timeout:          cfg.Properties.Timeout,
		ResourceTimeout:  cfg.Properties.ResourceTimeout,
		UserAgent:        cfg.Properties.UserAgent,
		ProxyUserAgent:   cfg.Properties.ProxyUserAgent,
		CustomHeaders:    cfg.Properties.CustomHeaders,
		BreakerThreshold: cfg.CSM.BreakerThreshold,
		BreakerReset:     cfg.CSM.BreakerReset,
	})
	p.factory = manager.NewFactory(
		manager.NewCSMAdapter(client, cfg.CSM.MaxWrapperDepth),
		p.sender,
		manager.WithMaxPollFailures(cfg.CSM.MaxPollFailures),
	)
	// Sessions go first so their last beacons reach the sender.
	p.shutdown = append(p.shutdown, p.factory.ShutdownAll)
	return p, nil
}

// close runs the shutdown hooks in reverse registration order.
func (p *probe) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	var errs []error
	for i := len(p.shutdown) - 1; i >= 0; i-- {
		if err := p.shutdown[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	p.shutdown = nil
	return errors.Join(errs...)
}

func runPlay(ctx context.Context, out io.Writer, url string, opts playOptions) (err error) {
	mode, ok := model.ParsePlaybackMode(opts.mode)
	if !ok {
		return fmt.Errorf("unknown playback mode %q", opts.mode)
	}
	if opts.speed <= 0 || opts.tick <= 0 {
		return errors.New("speed and tick must be positive")
	}

	p, err := newProbe(ctx, opts.configPath)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, p.close()) }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := p.holder.StartWatcher(ctx); err != nil {
		return err
	}
	defer p.holder.Stop()

	updates := make(chan config.AppConfig, 1)
	p.holder.RegisterListener(updates)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case cfg := <-updates:
				log.Reconfigure(log.Config{Level: cfg.LogLevel, Service: "adprobe", Version: version})
			}
		}
	})
	g.Go(func() error {
		sw := &manager.Sweeper{Factory: p.factory, Conf: manager.SweeperConfig{
			Interval:  30 * time.Second,
			Retention: 5 * time.Minute,
		}}
		sw.Run(gctx)
		return nil
	})
	if opts.listen != "" {
		apiCfg := p.cfg.API
		apiCfg.Listen = opts.listen
		g.Go(func() error { return api.New(p.factory, apiCfg).ListenAndServe(gctx) })
	}
	g.Go(func() error {
		perr := play(gctx, out, p, url, mode, opts)
		if !opts.hold || perr != nil {
			cancel()
		}
		return perr
	})
	return g.Wait()
}

// play creates one session and feeds it playhead reports until the content
// ends, maxTime passes or ctx is cancelled.
func play(ctx context.Context, w io.Writer, p *probe, url string, mode model.PlaybackMode, opts playOptions) error {
	out := &lockedWriter{w: w}
	props := p.holder.Get().Properties
	s, err := p.factory.Prepare(ctx, url, mode, props)
	if err != nil {
		return err
	}
	sub, err := s.Subscribe(ctx)
	if err != nil {
		return err
	}
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for ev := range sub.C() {
			printEvent(out, ev)
		}
	}()
	defer func() {
		_ = sub.Close()
		<-printed
	}()

	ready := make(chan struct{})
	s.Start(func(*manager.Session) { close(ready) })
	select {
	case <-ready:
	case <-ctx.Done():
		return nil
	}
	fmt.Fprintf(out, "session %s: %s (%s)\n", s.Token(), s.Result(), s.PlaybackURL())
	if s.Result() == model.ResultFailed {
		return fmt.Errorf("session failed with code %d", s.ResultCode())
	}

	var deadline <-chan time.Time
	if opts.maxTime > 0 {
		timer := time.NewTimer(opts.maxTime)
		defer timer.Stop()
		deadline = timer.C
	}
	ticker := time.NewTicker(opts.tick)
	defer ticker.Stop()

	playhead := 0.0
	step := opts.tick.Seconds() * opts.speed
	_ = s.PlayerEventDidOccur(model.PlayerStart, playhead)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-deadline:
			break loop
		case <-ticker.C:
			playhead += step
			if err := s.PlayheadDidChange(playhead); err != nil {
				break loop
			}
			if st := s.Stream(); mode == model.ModeVOD && st != nil && st.Duration() > 0 && playhead >= st.Duration() {
				break loop
			}
		}
	}
	_ = s.PlayerEventDidOccur(model.PlayerStop, playhead)

	if opts.snapshot != "" {
		if err := writeSnapshot(opts.snapshot, s); err != nil {
			return err
		}
	}
	return nil
}

func printEvent(w io.Writer, ev bus.Event) {
	detail := ""
	switch {
	case ev.Tracking != nil:
		detail = ev.Tracking.Event
	case ev.Advert != nil:
		detail = ev.Advert.ID
	case ev.Break != nil:
		detail = ev.Break.ID
	case ev.Warning != nil:
		detail = ev.Warning.Message
	case ev.Session != nil:
		detail = string(ev.Session.Result)
	}
	fmt.Fprintf(w, "%9.3f  %-28s %s\n", ev.Playhead, ev.Kind, detail)
}

// lockedWriter serialises the event printer and the player loop.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
