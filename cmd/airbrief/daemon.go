package main

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/cmkoo/airbrief/internal/config"
	"github.com/cmkoo/airbrief/internal/feed"
	"github.com/cmkoo/airbrief/internal/ingest"
	"github.com/cmkoo/airbrief/internal/logging"
	"github.com/cmkoo/airbrief/internal/notam"
	"github.com/cmkoo/airbrief/internal/store"
	"github.com/cmkoo/airbrief/internal/track"
	"github.com/cmkoo/airbrief/internal/ubikais"
	"github.com/cmkoo/airbrief/internal/weather"
	"github.com/cmkoo/airbrief/internal/web"
)

// daemon owns the serve-mode services in construction order: store, buffer,
// feed, ingest, web. Close tears them down in reverse and flushes whatever
// the buffer still holds.
type daemon struct {
	configPath string

	ring    *web.LogBuffer
	log     *logging.Logger
	store   *store.Store
	buffer  *track.Buffer
	source  feed.Source
	ingest  *ingest.Service
	weather *weather.Client
	server  *web.Server

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu  sync.Mutex // serializes Apply; guards cfg once the daemon runs
	cfg config.Config
}

func newDaemon(ctx context.Context, configPath string) (*daemon, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}

	ring := web.NewLogBuffer(0)
	d := &daemon{
		configPath: configPath,
		cfg:        cfg,
		ring:       ring,
		log: logging.New(logging.Options{
			Level:      cfg.Log.Level,
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
		}, ring),
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	st, err := store.Open(storePath(cfg))
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("store open failed: %w", err)
	}
	d.store = st

	d.buffer = track.NewBuffer(track.BufferConfig{
		MaxAircraft: cfg.Track.MaxAircraft,
		MaxPoints:   cfg.Track.MaxPoints,
		TTL:         cfg.Track.LiveTTL,
	})

	if err := d.initFeed(runCtx); err != nil {
		d.Close()
		return nil, err
	}

	if cfg.NOTAM.Username != "" {
		portal, err := ubikais.New(ubikais.Config{
			BaseURL:    cfg.NOTAM.BaseURL,
			Username:   cfg.NOTAM.Username,
			Password:   cfg.NOTAM.Password,
			FIR:        cfg.NOTAM.FIR,
			Series:     cfg.NOTAM.Series,
			RatePerSec: cfg.NOTAM.RatePerSec,
			Timeout:    cfg.NOTAM.Timeout,
		}, d.log.Component("ubikais"))
		if err != nil {
			d.Close()
			return nil, err
		}
		d.ingest = ingest.New(ingest.Config{
			Airports: cfg.NOTAM.Airports,
			FIR:      cfg.NOTAM.FIR,
			Interval: cfg.NOTAM.Interval,
		}, portal, st, d.log.Component("ingest"))
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.ingest.Run(runCtx)
		}()
	} else {
		// The archive and API still serve whatever an earlier fetch stored.
		d.log.Warn("notam fetching disabled: no portal credentials configured")
	}

	d.weather = weather.New(weather.Config{
		BaseURL:  cfg.Weather.BaseURL,
		CacheTTL: cfg.Weather.CacheTTL,
		Timeout:  cfg.Weather.Timeout,
	}, d.log.Component("weather"))

	d.wg.Add(1)
	go d.flushLoop(runCtx, cfg.Track.FlushInterval, cfg.Track.FlushIdle)

	period, _ := notam.ParsePeriod(cfg.NOTAM.DefaultPeriod)
	srv := &web.Server{
		Store:         st,
		Buffer:        d.buffer,
		Weather:       d.weather,
		Settings:      web.SettingsStore{ConfigPath: configPath, Apply: d.Apply},
		Logs:          ring,
		Resolver:      resolverFor(cfg),
		DefaultPeriod: period,
		Airports:      cfg.NOTAM.Airports,
		DataDir:       cfg.DataDir,
		Start:         d.log.Start,
	}
	if d.ingest != nil {
		srv.IngestSnapshot = d.ingest.Snapshot
	}
	if d.source != nil {
		srv.FeedSnapshot = d.source.Snapshot
	}
	d.server = srv

	return d, nil
}

// initFeed builds and starts the configured live position source. An empty
// source means the live side stays off and only archived tracks are served.
func (d *daemon) initFeed(ctx context.Context) error {
	var src feed.Source
	switch d.cfg.Feed.Source {
	case "":
		return nil
	case "file":
		p, err := feed.NewFilePoller(feed.FilePollerConfig{
			Path:     d.cfg.Feed.Path,
			Interval: d.cfg.Feed.Interval,
		})
		if err != nil {
			return fmt.Errorf("feed file: %w", err)
		}
		src = p
	case "tcp":
		c, err := feed.NewTCPClient(feed.TCPClientConfig{Addr: d.cfg.Feed.Addr})
		if err != nil {
			return fmt.Errorf("feed tcp: %w", err)
		}
		src = c
	case "exec":
		e, err := feed.NewExec(feed.ExecConfig{
			Command: d.cfg.Feed.Command,
			Args:    d.cfg.Feed.Args,
			Restart: true,
		})
		if err != nil {
			return fmt.Errorf("feed exec: %w", err)
		}
		src = e
	case "sim":
		src = feed.NewSim(feed.SimConfig{
			Count:        d.cfg.Feed.Sim.Count,
			CenterLatDeg: d.cfg.Feed.Sim.CenterLatDeg,
			CenterLonDeg: d.cfg.Feed.Sim.CenterLonDeg,
			RadiusNm:     d.cfg.Feed.Sim.RadiusNm,
			Period:       d.cfg.Feed.Sim.Period,
			GroundKt:     float64(d.cfg.Feed.Sim.GroundKt),
			AltFeet:      float64(d.cfg.Feed.Sim.AltFeet),
			Interval:     d.cfg.Feed.Interval,
		})
	default:
		return fmt.Errorf("feed.source %q is not supported", d.cfg.Feed.Source)
	}

	if err := src.Start(ctx, func(updates []feed.Update) {
		now := time.Now().UTC()
		for _, u := range updates {
			d.buffer.Add(now, u.ID, u.Callsign, []track.Point{u.Point})
		}
	}); err != nil {
		src.Close()
		return fmt.Errorf("feed start: %w", err)
	}
	d.source = src
	d.log.Info("feed started", "source", d.cfg.Feed.Source)
	return nil
}

// flushLoop archives idle aircraft every flush interval so the live buffer
// stays bounded while track history accumulates.
func (d *daemon) flushLoop(ctx context.Context, every, idleFor time.Duration) {
	defer d.wg.Done()

	log := d.log.Component("flusher")
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			d.archive(d.buffer.TakeIdle(time.Now().UTC(), idleFor), log)
		}
	}
}

func (d *daemon) archive(segments map[string][]track.Point, log *slog.Logger) {
	for id, points := range segments {
		if err := d.store.AppendTrackSegment(id, points); err != nil {
			log.Error("track archive failed", "id", id, "error", err)
			continue
		}
		log.Debug("track segment archived", "id", id, "points", len(points))
	}
}

func (d *daemon) Close() {
	if d == nil {
		return
	}
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	if d.source != nil {
		d.source.Close()
		d.source = nil
	}
	if d.buffer != nil && d.store != nil {
		d.archive(d.buffer.Drain(), d.log.Component("flusher"))
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.log.Error("store close failed", "error", err)
		}
		d.store = nil
	}
	if d.log != nil {
		_ = d.log.Close()
	}
}

// Apply is the settings hook: it accepts the edited config when every change
// is live-appliable, retargets the fetch cycle and request tunables, and
// rejects anything that would need a service rebuild.
func (d *daemon) Apply(next config.Config) error {
	if d == nil {
		return fmt.Errorf("runtime is nil")
	}

	c := next
	if err := config.DefaultAndValidate(&c); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// Keep live scope intentionally small/safe.
	if c.Listen != d.cfg.Listen {
		return fmt.Errorf("listen requires restart")
	}
	if c.DataDir != d.cfg.DataDir {
		return fmt.Errorf("data_dir requires restart")
	}
	if c.Log != d.cfg.Log {
		return fmt.Errorf("log settings require restart")
	}
	if c.Weather != d.cfg.Weather {
		return fmt.Errorf("weather settings require restart")
	}
	if c.Track != d.cfg.Track {
		return fmt.Errorf("track settings require restart")
	}
	if !feedConfigEqual(c.Feed, d.cfg.Feed) {
		return fmt.Errorf("feed settings require restart")
	}
	if !portalConfigEqual(c.NOTAM, d.cfg.NOTAM) {
		return fmt.Errorf("notam portal settings require restart")
	}
	if c.NOTAM.FailClosed != d.cfg.NOTAM.FailClosed {
		return fmt.Errorf("notam.fail_closed requires restart")
	}

	// Commit: retarget the fetch cycle.
	if d.ingest != nil {
		d.ingest.Apply(ingest.Config{
			Airports: c.NOTAM.Airports,
			FIR:      c.NOTAM.FIR,
			Interval: c.NOTAM.Interval,
		})
	}

	// Commit: request-time tunables.
	period, _ := notam.ParsePeriod(c.NOTAM.DefaultPeriod)
	d.server.Retune(period, c.NOTAM.Airports)

	d.cfg = c
	return nil
}

func feedConfigEqual(a, b config.FeedConfig) bool {
	if a.Source != b.Source || a.Path != b.Path || a.Addr != b.Addr ||
		a.Interval != b.Interval || a.Command != b.Command {
		return false
	}
	if !slices.Equal(a.Args, b.Args) {
		return false
	}
	return a.Sim == b.Sim
}

// portalConfigEqual compares the NOTAM settings baked into the upstream
// client at construction. Airports, interval, and default period are the
// live-appliable remainder.
func portalConfigEqual(a, b config.NOTAMConfig) bool {
	if a.BaseURL != b.BaseURL || a.Username != b.Username || a.Password != b.Password ||
		a.FIR != b.FIR || a.RatePerSec != b.RatePerSec || a.Timeout != b.Timeout {
		return false
	}
	return slices.Equal(a.Series, b.Series)
}
