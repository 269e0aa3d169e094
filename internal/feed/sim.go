package feed

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cmkoo/airbrief/internal/track"
)

// SimConfig drives the synthetic source. Zero values fall back to a small
// circuit over Gimpo.
type SimConfig struct {
	Count        int
	CenterLatDeg float64
	CenterLonDeg float64
	RadiusNm     float64
	Period       time.Duration
	GroundKt     float64
	AltFeet      float64
	Interval     time.Duration
}

// Sim emits synthetic aircraft flying a circular circuit, for exercising the
// buffer and API without a receiver attached.
type Sim struct {
	cfg SimConfig

	started atomic.Bool
	closed  atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}

	batches  atomic.Uint64
	aircraft atomic.Uint64

	mu       sync.RWMutex
	state    string
	lastSeen time.Time
}

func NewSim(cfg SimConfig) *Sim {
	if cfg.Count <= 0 {
		cfg.Count = 3
	}
	if cfg.CenterLatDeg == 0 && cfg.CenterLonDeg == 0 {
		cfg.CenterLatDeg = 37.5583
		cfg.CenterLonDeg = 126.7906
	}
	if cfg.RadiusNm <= 0 {
		cfg.RadiusNm = 5
	}
	if cfg.Period <= 0 {
		cfg.Period = 90 * time.Second
	}
	if cfg.GroundKt <= 0 {
		cfg.GroundKt = 120
	}
	if cfg.AltFeet <= 0 {
		cfg.AltFeet = 3000
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	return &Sim{cfg: cfg, state: "stopped", done: make(chan struct{})}
}

func (s *Sim) Start(ctx context.Context, fn Handler) error {
	if fn == nil {
		return fmt.Errorf("feed: handler is nil")
	}
	if s.closed.Load() {
		return fmt.Errorf("feed: sim source is closed")
	}
	if s.started.Swap(true) {
		return fmt.Errorf("feed: sim source already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.runLoop(runCtx, fn)
	return nil
}

func (s *Sim) Close() {
	if s.closed.Swap(true) {
		return
	}
	if !s.started.Load() {
		close(s.done)
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
}

func (s *Sim) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Source:   "sim",
		Endpoint: fmt.Sprintf("%d synthetic aircraft", s.cfg.Count),
		State:    s.state,
		Batches:  s.batches.Load(),
		Aircraft: s.aircraft.Load(),
	}
	if !s.lastSeen.IsZero() {
		snap.LastSeenUTC = s.lastSeen.UTC().Format(time.RFC3339Nano)
	}
	return snap
}

func (s *Sim) runLoop(ctx context.Context, fn Handler) {
	defer close(s.done)

	s.mu.Lock()
	s.state = "running"
	s.mu.Unlock()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.emit(time.Now(), fn)
	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.state = "stopped"
			s.mu.Unlock()
			return
		case <-ticker.C:
			s.emit(time.Now(), fn)
		}
	}
}

func (s *Sim) emit(now time.Time, fn Handler) {
	updates := make([]Update, 0, s.cfg.Count)
	sec := float64(now.UnixMilli()) / 1000.0

	// One degree of latitude is sixty nautical miles; longitude shrinks with
	// the cosine of the latitude.
	radiusDeg := s.cfg.RadiusNm / 60.0
	phase := float64(now.UnixNano()%s.cfg.Period.Nanoseconds()) / float64(s.cfg.Period.Nanoseconds())

	for i := 0; i < s.cfg.Count; i++ {
		theta := 2*math.Pi*phase + 2*math.Pi*float64(i)/float64(s.cfg.Count)
		lat := s.cfg.CenterLatDeg + radiusDeg*math.Cos(theta)
		lon := s.cfg.CenterLonDeg + radiusDeg*math.Sin(theta)/math.Cos(lat*math.Pi/180)

		t := sec
		alt := s.cfg.AltFeet + float64(i-s.cfg.Count/2)*300
		gs := s.cfg.GroundKt
		onGround := false
		updates = append(updates, Update{
			ID:       fmt.Sprintf("sim%02d", i+1),
			Callsign: fmt.Sprintf("SIM%03d", i+1),
			Point: track.Point{
				Lat:      lat,
				Lon:      lon,
				TimeSec:  &t,
				AltFt:    &alt,
				GroundKt: &gs,
				OnGround: &onGround,
			},
		})
	}

	fn(updates)
	s.batches.Add(1)
	s.aircraft.Add(uint64(len(updates)))
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}
