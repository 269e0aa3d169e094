// Package ingest refreshes the stored NOTAM batches and flight boards from
// the portal on a fixed interval. A location that fails to fetch keeps its
// previous stored batch; the cycle carries on with the rest.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cmkoo/airbrief/internal/notam"
	"github.com/cmkoo/airbrief/internal/store"
	"github.com/cmkoo/airbrief/internal/ubikais"
)

// fetchConcurrency bounds parallel portal requests per cycle. The portal is a
// session-walled legacy app; four in flight is already generous.
const fetchConcurrency = 4

// Portal is the slice of the ubikais client the service needs.
type Portal interface {
	NOTAMs(ctx context.Context, icao string) ([]notam.Record, error)
	FIRNOTAMs(ctx context.Context) ([]notam.Record, error)
	Flights(ctx context.Context, icao string, dir ubikais.Direction) ([]ubikais.Flight, error)
}

// Config controls what a cycle covers and how often cycles run.
type Config struct {
	Airports []string
	FIR      string
	Interval time.Duration
}

// Cycle summarizes one refresh pass.
type Cycle struct {
	Fetched   int
	Failed    int
	Records   int
	Cancelled int
	Flights   int
	Elapsed   time.Duration
}

// Snapshot is the service state served under /api/status.
type Snapshot struct {
	State     string    `json:"state"`
	Cycles    int       `json:"cycles"`
	LastStart time.Time `json:"last_start,omitzero"`
	LastEnd   time.Time `json:"last_end,omitzero"`
	LastError string    `json:"last_error,omitempty"`
	Fetched   int       `json:"fetched"`
	Failed    int       `json:"failed"`
	Records   int       `json:"records"`
	Cancelled int       `json:"cancelled"`
	Flights   int       `json:"flights"`
}

// Service drives periodic refresh cycles against one portal client.
type Service struct {
	portal Portal
	store  *store.Store
	log    *slog.Logger

	mu       sync.Mutex
	airports []string
	fir      string
	interval time.Duration
	ticker   *time.Ticker
	snap     Snapshot
}

func New(cfg Config, portal Portal, st *store.Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	return &Service{
		portal:   portal,
		store:    st,
		log:      log,
		airports: slices.Clone(cfg.Airports),
		fir:      cfg.FIR,
		interval: cfg.Interval,
		snap:     Snapshot{State: "idle"},
	}
}

// Apply updates the cycle scope in place. A running ticker is reset when the
// interval changes, so the next cycle fires on the new schedule.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(cfg.Airports) > 0 {
		s.airports = slices.Clone(cfg.Airports)
	}
	if cfg.FIR != "" {
		s.fir = cfg.FIR
	}
	if cfg.Interval > 0 && cfg.Interval != s.interval {
		s.interval = cfg.Interval
		if s.ticker != nil {
			s.ticker.Reset(cfg.Interval)
		}
	}
}

// Run fetches once immediately, then on every tick until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
		s.log.Error("initial ingest cycle failed", "error", err)
	}

	s.mu.Lock()
	s.ticker = time.NewTicker(s.interval)
	ticker := s.ticker
	s.mu.Unlock()
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
				s.log.Error("ingest cycle failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce performs a single refresh cycle and reports its outcome. The only
// hard failure is a cycle where no airport could be fetched at all; partial
// failures are logged and reflected in the counters.
func (s *Service) RunOnce(ctx context.Context) (Cycle, error) {
	s.mu.Lock()
	airports := slices.Clone(s.airports)
	fir := s.fir
	s.snap.State = "running"
	s.snap.LastStart = time.Now().UTC()
	s.mu.Unlock()

	start := time.Now()
	var (
		cmu      sync.Mutex
		cycle    Cycle
		lastFail error
	)

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(fetchConcurrency)

	if fir != "" {
		eg.Go(func() error {
			recs, err := s.portal.FIRNOTAMs(gctx)
			if err != nil {
				s.log.Warn("fir notam fetch failed", "fir", fir, "error", err)
				cmu.Lock()
				lastFail = err
				cmu.Unlock()
				return nil
			}
			if err := s.store.PutNOTAMBatch(fir, recs); err != nil {
				return fmt.Errorf("store fir batch: %w", err)
			}
			cmu.Lock()
			cycle.Records += len(recs)
			cycle.Cancelled += len(notam.BuildCancelledSet(recs))
			cmu.Unlock()
			return nil
		})
	}

	for _, icao := range airports {
		icao := icao
		eg.Go(func() error {
			recs, err := s.portal.NOTAMs(gctx, icao)
			if err != nil {
				s.log.Warn("notam fetch failed", "airport", icao, "error", err)
				cmu.Lock()
				cycle.Failed++
				lastFail = err
				cmu.Unlock()
				return nil
			}
			if err := s.store.PutNOTAMBatch(icao, recs); err != nil {
				return fmt.Errorf("store %s batch: %w", icao, err)
			}
			cmu.Lock()
			cycle.Fetched++
			cycle.Records += len(recs)
			cycle.Cancelled += len(notam.BuildCancelledSet(recs))
			cmu.Unlock()

			for _, dir := range []ubikais.Direction{ubikais.Departures, ubikais.Arrivals} {
				flights, err := s.portal.Flights(gctx, icao, dir)
				if err != nil {
					s.log.Warn("flight board fetch failed", "airport", icao, "direction", dir, "error", err)
					continue
				}
				if err := s.store.PutFlightBoard(icao, dir, flights); err != nil {
					return fmt.Errorf("store %s %s board: %w", icao, dir, err)
				}
				cmu.Lock()
				cycle.Flights += len(flights)
				cmu.Unlock()
			}
			return nil
		})
	}

	err := eg.Wait()
	cycle.Elapsed = time.Since(start)

	s.mu.Lock()
	s.snap.State = "idle"
	s.snap.Cycles++
	s.snap.LastEnd = time.Now().UTC()
	s.snap.Fetched = cycle.Fetched
	s.snap.Failed = cycle.Failed
	s.snap.Records = cycle.Records
	s.snap.Cancelled = cycle.Cancelled
	s.snap.Flights = cycle.Flights
	s.snap.LastError = ""
	if err != nil {
		s.snap.LastError = err.Error()
	} else if lastFail != nil {
		s.snap.LastError = lastFail.Error()
	}
	s.mu.Unlock()

	if err != nil {
		return cycle, err
	}
	if ctx.Err() != nil {
		return cycle, ctx.Err()
	}
	if len(airports) > 0 && cycle.Fetched == 0 {
		return cycle, fmt.Errorf("ingest: all %d airports failed: %w", cycle.Failed, lastFail)
	}

	s.log.Info("ingest cycle complete",
		"fetched", cycle.Fetched,
		"failed", cycle.Failed,
		"records", cycle.Records,
		"cancelled", cycle.Cancelled,
		"flights", cycle.Flights,
		"elapsed", cycle.Elapsed.Round(time.Millisecond))
	return cycle, nil
}

// Snapshot returns a copy of the current service state.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}
