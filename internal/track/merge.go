package track

// DefaultTrimLookahead bounds how far TrimGroundNoise looks for the first
// airborne point.
const DefaultTrimLookahead = 20

// Merge joins an archived trace with live points from a second source.
// historical is assumed pre-sorted; live points at or before the historical
// tail are discarded rather than interleaved, so the result is non-decreasing
// in canonical timestamp by construction.
func Merge(historical, live []Point) []Point {
	if len(historical) == 0 {
		return live
	}
	if len(live) == 0 {
		return historical
	}
	tail := historical[len(historical)-1].TimestampMs()
	out := make([]Point, 0, len(historical)+len(live))
	out = append(out, historical...)
	for _, p := range live {
		if p.TimestampMs() > tail {
			out = append(out, p)
		}
	}
	return out
}

// TrimGroundNoise drops taxi and ground-roll samples off the front of a
// trace: leading points that are flagged on ground or sit below 100 ft.
// Only the first lookahead points (default 20, for lookahead <= 0) are
// candidates, and scanning stops at the first clean point, so a transient
// low-altitude dip later in the trace is never cut.
func TrimGroundNoise(points []Point, lookahead int) []Point {
	if lookahead <= 0 {
		lookahead = DefaultTrimLookahead
	}
	limit := lookahead
	if limit > len(points) {
		limit = len(points)
	}
	i := 0
	for i < limit {
		p := points[i]
		if !p.Grounded() && p.AltitudeFt() >= 100 {
			break
		}
		i++
	}
	return points[i:]
}
