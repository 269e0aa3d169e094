package track

import (
	"math"
	"time"
)

// recentWindow marks a trace whose newest point is fresh enough that
// consumers label the endpoint "current position" rather than a timestamp.
const recentWindow = 2 * time.Minute

// Summary reduces one trace to its listing form.
type Summary struct {
	StartMs         int64   `json:"start_ms"`
	EndMs           int64   `json:"end_ms"`
	Recent          bool    `json:"recent"`
	DurationMinutes int64   `json:"duration_minutes"`
	AltitudeDeltaFt float64 `json:"altitude_delta_ft"`
}

// Summarize computes the listing summary over the points that carry a usable
// altitude (present, numeric, non-negative). Fewer than two such points
// reports ok false; malformed points are skipped, never an error.
func Summarize(points []Point, now time.Time) (Summary, bool) {
	first, last, n := -1, -1, 0
	for i, p := range points {
		if !usableAltitude(p) {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
		n++
	}
	if n < 2 {
		return Summary{}, false
	}

	start := points[first].TimestampMs()
	end := points[last].TimestampMs()
	return Summary{
		StartMs:         start,
		EndMs:           end,
		Recent:          now.UnixMilli()-end < recentWindow.Milliseconds(),
		DurationMinutes: int64(math.Round(float64(end-start) / 60000)),
		AltitudeDeltaFt: points[last].AltitudeFt() - points[first].AltitudeFt(),
	}, true
}

func usableAltitude(p Point) bool {
	if !p.HasAltitude() {
		return false
	}
	alt := p.AltitudeFt()
	return !math.IsNaN(alt) && alt >= 0
}
