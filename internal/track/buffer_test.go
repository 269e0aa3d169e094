package track

import (
	"fmt"
	"testing"
	"time"
)

func TestBufferAdd_MonotonicPerAircraft(t *testing.T) {
	b := NewBuffer(BufferConfig{})
	now := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

	b.Add(now, "71c001", "KAL123", []Point{
		{TimeSec: fp(1000), AltFt: fp(500)},
		{TimeSec: fp(1001), AltFt: fp(520)},
	})
	// Replays and out-of-order points are dropped.
	b.Add(now, "71c001", "", []Point{
		{TimeSec: fp(1001), AltFt: fp(520)},
		{TimeSec: fp(999), AltFt: fp(480)},
		{TimeSec: fp(1002), AltFt: fp(540)},
	})

	pts := b.Snapshot("71c001")
	if len(pts) != 3 {
		t.Fatalf("got %d points, want 3", len(pts))
	}
	for i := 1; i < len(pts); i++ {
		if pts[i].TimestampMs() <= pts[i-1].TimestampMs() {
			t.Fatalf("timestamps not strictly increasing at %d", i)
		}
	}
}

func TestBufferAdd_PointCapDropsOldest(t *testing.T) {
	b := NewBuffer(BufferConfig{MaxPoints: 5})
	now := time.Now().UTC()
	var pts []Point
	for i := 0; i < 8; i++ {
		pts = append(pts, Point{TimeSec: fp(float64(1000 + i)), AltFt: fp(500)})
	}
	b.Add(now, "71c001", "", pts)

	got := b.Snapshot("71c001")
	if len(got) != 5 {
		t.Fatalf("got %d points, want 5", len(got))
	}
	if got[0].TimestampMs() != 1003000 {
		t.Fatalf("oldest kept point at %d, want 1003000", got[0].TimestampMs())
	}
}

func TestBuffer_AircraftCapEvictsStalest(t *testing.T) {
	b := NewBuffer(BufferConfig{MaxAircraft: 2})
	base := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("71c00%d", i)
		b.Add(base.Add(time.Duration(i)*time.Second), id, "", []Point{{TimeSec: fp(float64(1000 + i)), AltFt: fp(500)}})
	}
	if b.Count() != 2 {
		t.Fatalf("count = %d, want 2", b.Count())
	}
	if pts := b.Snapshot("71c000"); pts != nil {
		t.Fatalf("stalest aircraft not evicted")
	}
	if pts := b.Snapshot("71c002"); len(pts) != 1 {
		t.Fatalf("newest aircraft missing")
	}
}

func TestBufferActive_PurgesStale(t *testing.T) {
	b := NewBuffer(BufferConfig{TTL: time.Minute})
	base := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

	b.Add(base, "71c001", "KAL123", []Point{{TimeSec: fp(1000), AltFt: fp(500)}})
	b.Add(base.Add(50*time.Second), "71c002", "AAR456", []Point{{TimeSec: fp(1050), AltFt: fp(900)}})

	out := b.Active(base.Add(70 * time.Second))
	if len(out) != 1 {
		t.Fatalf("got %d aircraft, want 1", len(out))
	}
	if out[0].ID != "71c002" || out[0].Callsign != "AAR456" {
		t.Fatalf("unexpected survivor: %+v", out[0])
	}
}

func TestBufferTakeIdle_KeepsTimestampFloor(t *testing.T) {
	b := NewBuffer(BufferConfig{})
	base := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

	b.Add(base, "71c001", "", []Point{
		{TimeSec: fp(1000), AltFt: fp(500)},
		{TimeSec: fp(1001), AltFt: fp(520)},
	})
	b.Add(base.Add(time.Second), "71c002", "", []Point{{TimeSec: fp(2000), AltFt: fp(900)}})

	taken := b.TakeIdle(base.Add(3*time.Minute), 2*time.Minute)
	if len(taken) != 2 {
		t.Fatalf("took %d aircraft, want 2", len(taken))
	}
	if len(taken["71c001"]) != 2 {
		t.Fatalf("took %d points for 71c001, want 2", len(taken["71c001"]))
	}
	if pts := b.Snapshot("71c001"); pts != nil {
		t.Fatalf("points remained buffered after take")
	}

	// Replayed old points must still be rejected after the flush.
	b.Add(base.Add(4*time.Minute), "71c001", "", []Point{
		{TimeSec: fp(1001), AltFt: fp(520)},
		{TimeSec: fp(1002), AltFt: fp(540)},
	})
	pts := b.Snapshot("71c001")
	if len(pts) != 1 || pts[0].TimestampMs() != 1002000 {
		t.Fatalf("timestamp floor lost across flush: %+v", pts)
	}
}

func TestBufferTakeIdle_SkipsFreshAircraft(t *testing.T) {
	b := NewBuffer(BufferConfig{})
	base := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

	b.Add(base, "71c001", "", []Point{{TimeSec: fp(1000), AltFt: fp(500)}})
	if taken := b.TakeIdle(base.Add(30*time.Second), 2*time.Minute); taken != nil {
		t.Fatalf("fresh aircraft flushed: %v", taken)
	}
	if len(b.Snapshot("71c001")) != 1 {
		t.Fatalf("fresh aircraft lost its points")
	}
}

func TestBufferDrain_TakesEverything(t *testing.T) {
	b := NewBuffer(BufferConfig{})
	base := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

	b.Add(base, "71c001", "KAL123", []Point{{TimeSec: fp(1000), AltFt: fp(500)}})
	b.Add(base, "71c002", "", []Point{{TimeSec: fp(2000), AltFt: fp(900)}})

	taken := b.Drain()
	if len(taken) != 2 || len(taken["71c001"]) != 1 || len(taken["71c002"]) != 1 {
		t.Fatalf("drained %d aircraft", len(taken))
	}
	if b.Drain() != nil {
		t.Fatalf("second drain returned points")
	}

	// The timestamp floor survives a drain like it does a flush.
	b.Add(base.Add(time.Minute), "71c001", "", []Point{{TimeSec: fp(999), AltFt: fp(480)}})
	if pts := b.Snapshot("71c001"); pts != nil {
		t.Fatalf("stale point accepted after drain: %+v", pts)
	}
}
