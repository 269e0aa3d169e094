package track

import (
	"sort"
	"sync"
	"time"
)

type BufferConfig struct {
	// MaxAircraft limits memory use. When exceeded, stalest aircraft are evicted.
	MaxAircraft int
	// MaxPoints caps the trace kept per aircraft; oldest points are dropped.
	MaxPoints int
	// TTL controls how long an aircraft is kept without updates.
	TTL time.Duration
}

// Buffer accumulates live points per aircraft until the flusher archives
// them. Points are kept strictly timestamp-monotonic per aircraft, and the
// monotonic floor survives a flush so an archived segment can never overlap
// the points that follow it.
type Buffer struct {
	mu sync.RWMutex

	cfg BufferConfig

	aircraft map[string]*trace
}

type trace struct {
	callsign string
	points   []Point
	lastMs   int64
	seenAt   time.Time
}

// AircraftInfo is the listing view of one buffered aircraft.
type AircraftInfo struct {
	ID       string    `json:"id"`
	Callsign string    `json:"callsign,omitempty"`
	Points   int       `json:"points"`
	LastSeen time.Time `json:"last_seen"`
}

func NewBuffer(cfg BufferConfig) *Buffer {
	if cfg.MaxAircraft <= 0 {
		cfg.MaxAircraft = 200
	}
	if cfg.MaxPoints <= 0 {
		cfg.MaxPoints = 1800
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Minute
	}
	return &Buffer{
		cfg:      cfg,
		aircraft: make(map[string]*trace),
	}
}

// Add appends points for one aircraft. Points at or before the aircraft's
// newest known timestamp are dropped; callsign updates the label when
// non-empty.
func (b *Buffer) Add(nowUTC time.Time, id, callsign string, points []Point) {
	if b == nil || id == "" || len(points) == 0 {
		return
	}
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	tr := b.aircraft[id]
	if tr == nil {
		tr = &trace{}
		b.aircraft[id] = tr
	}
	if callsign != "" {
		tr.callsign = callsign
	}
	for _, p := range points {
		ts := p.TimestampMs()
		if ts <= tr.lastMs {
			continue
		}
		tr.points = append(tr.points, p)
		tr.lastMs = ts
	}
	if len(tr.points) > b.cfg.MaxPoints {
		drop := len(tr.points) - b.cfg.MaxPoints
		tr.points = append(tr.points[:0], tr.points[drop:]...)
	}
	tr.seenAt = nowUTC.UTC()

	if len(b.aircraft) <= b.cfg.MaxAircraft {
		return
	}
	// Evict stalest until within limit.
	for len(b.aircraft) > b.cfg.MaxAircraft {
		var oldestID string
		var oldestAt time.Time
		first := true
		for k, v := range b.aircraft {
			if first || v.seenAt.Before(oldestAt) {
				oldestID = k
				oldestAt = v.seenAt
				first = false
			}
		}
		delete(b.aircraft, oldestID)
	}
}

// Snapshot copies the buffered points for one aircraft.
func (b *Buffer) Snapshot(id string) []Point {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	tr := b.aircraft[id]
	if tr == nil || len(tr.points) == 0 {
		return nil
	}
	out := make([]Point, len(tr.points))
	copy(out, tr.points)
	return out
}

// Active purges stale aircraft and lists the rest, sorted by id.
func (b *Buffer) Active(nowUTC time.Time) []AircraftInfo {
	if b == nil {
		return nil
	}
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}

	b.mu.Lock()
	if b.cfg.TTL > 0 {
		cutoff := nowUTC.UTC().Add(-b.cfg.TTL)
		for k, v := range b.aircraft {
			if v.seenAt.Before(cutoff) {
				delete(b.aircraft, k)
			}
		}
	}
	out := make([]AircraftInfo, 0, len(b.aircraft))
	for id, tr := range b.aircraft {
		out = append(out, AircraftInfo{
			ID:       id,
			Callsign: tr.callsign,
			Points:   len(tr.points),
			LastSeen: tr.seenAt,
		})
	}
	b.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count reports how many aircraft are buffered.
func (b *Buffer) Count() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.aircraft)
}

// TakeIdle removes and returns the points of every aircraft that has been
// quiet for at least idleFor. The aircraft entry itself stays behind with its
// timestamp floor intact; entries with no points age out through Active's
// TTL purge.
func (b *Buffer) TakeIdle(nowUTC time.Time, idleFor time.Duration) map[string][]Point {
	if b == nil || idleFor <= 0 {
		return nil
	}
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	cutoff := nowUTC.UTC().Add(-idleFor)

	b.mu.Lock()
	defer b.mu.Unlock()

	var out map[string][]Point
	for id, tr := range b.aircraft {
		if len(tr.points) == 0 || tr.seenAt.After(cutoff) {
			continue
		}
		if out == nil {
			out = make(map[string][]Point)
		}
		out[id] = tr.points
		tr.points = nil
	}
	return out
}

// Drain removes and returns every buffered point regardless of idle time, for
// the final archive flush at shutdown.
func (b *Buffer) Drain() map[string][]Point {
	if b == nil {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var out map[string][]Point
	for id, tr := range b.aircraft {
		if len(tr.points) == 0 {
			continue
		}
		if out == nil {
			out = make(map[string][]Point)
		}
		out[id] = tr.points
		tr.points = nil
	}
	return out
}
