// Package feed ingests live aircraft positions from a receiver and delivers
// them to the track buffer. Every source is tolerant of the JSON shapes
// receivers actually emit: a dump1090-fa aircraft.json wrap, a bare array, or
// one object per NDJSON line. A document that cannot be used is skipped, never
// an error that would kill the stream.
package feed

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cmkoo/airbrief/internal/track"
)

// Update is one aircraft's position delta from a source.
type Update struct {
	ID       string
	Callsign string
	Point    track.Point
}

// Handler receives each batch of updates from a source. It must be fast; slow
// work belongs on the handler's own goroutine.
type Handler func(updates []Update)

// Source is a live position producer. Exactly one source runs per daemon,
// selected by configuration.
type Source interface {
	Start(ctx context.Context, fn Handler) error
	Snapshot() Snapshot
	Close()
}

// Snapshot is the status view every source serves under /api/status.
type Snapshot struct {
	Source      string   `json:"source"`
	Endpoint    string   `json:"endpoint,omitempty"`
	State       string   `json:"state"`
	PID         int      `json:"pid,omitempty"`
	LastError   string   `json:"last_error,omitempty"`
	LastSeenUTC string   `json:"last_seen_utc,omitempty"`
	Reads       uint64   `json:"reads,omitempty"`
	Skips       uint64   `json:"skips,omitempty"`
	Errors      uint64   `json:"errors"`
	Batches     uint64   `json:"batches"`
	Aircraft    uint64   `json:"aircraft"`
	Tail        []string `json:"tail,omitempty"`
}

// aircraftDoc is the dump1090-fa aircraft.json wrap: a "now" stamp in epoch
// seconds plus one entry per aircraft. Entries decode individually so one bad
// row cannot sink the document.
type aircraftDoc struct {
	Now      *float64          `json:"now"`
	Aircraft []json.RawMessage `json:"aircraft"`
}

type aircraftEntry struct {
	Hex     string   `json:"hex"`
	Flight  string   `json:"flight"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
	AltBaro any      `json:"alt_baro"` // feet, or the string "ground"
	AltGeom *float64 `json:"alt_geom"`
	GS      *float64 `json:"gs"`
	SeenPos *float64 `json:"seen_pos"`
	TimeSec *float64 `json:"time"`
	StampMs *float64 `json:"timestamp"`
	Ground  *bool    `json:"ground"`
	GND     *bool    `json:"gnd"`
}

func (e aircraftEntry) toUpdate(docSec, fallbackSec float64) (Update, bool) {
	id := strings.TrimSpace(e.Hex)
	if id == "" || e.Lat == nil || e.Lon == nil {
		return Update{}, false
	}

	p := track.Point{Lat: *e.Lat, Lon: *e.Lon, GroundKt: e.GS}

	// Position time: the entry's own stamp wins; otherwise the document time
	// backdated by the position age, then the receive time.
	switch {
	case e.TimeSec != nil:
		p.TimeSec = e.TimeSec
	case e.StampMs != nil:
		p.StampMs = e.StampMs
	default:
		sec := docSec
		if sec <= 0 {
			sec = fallbackSec
		}
		if e.SeenPos != nil && *e.SeenPos > 0 {
			sec -= *e.SeenPos
		}
		if sec > 0 {
			p.TimeSec = &sec
		}
	}

	if e.AltGeom != nil {
		p.AltFt = e.AltGeom
	} else if alt, ok := e.AltBaro.(float64); ok {
		p.AltFt = &alt
	}

	// An explicit ground flag wins; dump1090 also spells it as the altitude
	// string "ground".
	switch {
	case e.Ground != nil:
		p.OnGround = e.Ground
	case e.GND != nil:
		p.OnGround = e.GND
	default:
		if s, ok := e.AltBaro.(string); ok && strings.EqualFold(strings.TrimSpace(s), "ground") {
			t := true
			p.OnGround = &t
		}
	}

	return Update{ID: id, Callsign: strings.TrimSpace(e.Flight), Point: p}, true
}

// parseDocument extracts updates from one receiver document. fallbackSec
// stamps entries that carry no time of their own. Anything unusable yields
// nil.
func parseDocument(raw []byte, fallbackSec float64) []Update {
	var doc aircraftDoc
	if err := json.Unmarshal(raw, &doc); err == nil && len(doc.Aircraft) > 0 {
		docSec := 0.0
		if doc.Now != nil {
			docSec = *doc.Now
		}
		return decodeEntries(doc.Aircraft, docSec, fallbackSec)
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err == nil && len(elems) > 0 {
		return decodeEntries(elems, 0, fallbackSec)
	}

	var single aircraftEntry
	if err := json.Unmarshal(raw, &single); err == nil {
		if u, ok := single.toUpdate(0, fallbackSec); ok {
			return []Update{u}
		}
	}
	return nil
}

func decodeEntries(elems []json.RawMessage, docSec, fallbackSec float64) []Update {
	out := make([]Update, 0, len(elems))
	for _, el := range elems {
		var e aircraftEntry
		if err := json.Unmarshal(el, &e); err != nil {
			continue
		}
		if u, ok := e.toUpdate(docSec, fallbackSec); ok {
			out = append(out, u)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func nowSeconds() float64 {
	return float64(time.Now().UnixMilli()) / 1000.0
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
