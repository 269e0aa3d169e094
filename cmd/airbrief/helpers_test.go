package main

import (
	"slices"
	"testing"
	"time"

	"github.com/cmkoo/airbrief/internal/config"
	"github.com/cmkoo/airbrief/internal/notam"
)

func TestNormalizeICAOs(t *testing.T) {
	got, err := normalizeICAOs([]string{" rksi", "rkpc", "RKSI"})
	if err != nil {
		t.Fatalf("normalizeICAOs() error: %v", err)
	}
	if !slices.Equal(got, []string{"RKSI", "RKPC"}) {
		t.Fatalf("normalizeICAOs() = %v", got)
	}

	if _, err := normalizeICAOs([]string{"RK"}); err == nil {
		t.Fatal("expected error for a two-letter code")
	}
}

func TestClip(t *testing.T) {
	if got := clip("RWY 15L/33R  CLSD\nDUE TO MAINT", 60); got != "RWY 15L/33R CLSD DUE TO MAINT" {
		t.Fatalf("clip() = %q", got)
	}
	if got := clip("abcdefghij", 8); got != "abcde..." {
		t.Fatalf("clip() = %q", got)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "  ", "KE607"); got != "KE607" {
		t.Fatalf("firstNonEmpty() = %q", got)
	}
	if got := firstNonEmpty("", ""); got != "-" {
		t.Fatalf("firstNonEmpty() = %q", got)
	}
}

func TestValidityLabel(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		a    notam.Annotated
		want string
	}{
		{"cancellation", notam.Annotated{Effect: notam.EffectCancel}, "cancellation"},
		{"cancelled", notam.Annotated{Effect: notam.EffectNew, Cancelled: true}, "cancelled"},
		{"active", notam.Annotated{Effect: notam.EffectNew, Validity: notam.ValidityActive}, "active"},
		{"future", notam.Annotated{Effect: notam.EffectNew, Validity: notam.ValidityFuture}, "future"},
		{"expired", notam.Annotated{Effect: notam.EffectNew, End: now.Add(-time.Hour)}, "expired"},
		{"unknown", notam.Annotated{Effect: notam.EffectNew}, "-"},
	}
	for _, tc := range cases {
		if got := validityLabel(tc.a, now); got != tc.want {
			t.Errorf("%s: validityLabel() = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestNOTAMEndLabel(t *testing.T) {
	end := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		a    notam.Annotated
		want string
	}{
		{"permanent", notam.Annotated{Permanent: true}, "PERM"},
		{"open", notam.Annotated{}, "-"},
		{"estimated only", notam.Annotated{EndEstimated: true}, "EST"},
		{"dated", notam.Annotated{End: end}, "2025-07-01 10:00"},
		{"dated estimate", notam.Annotated{End: end, EndEstimated: true}, "2025-07-01 10:00 EST"},
	}
	for _, tc := range cases {
		if got := notamEndLabel(tc.a); got != tc.want {
			t.Errorf("%s: notamEndLabel() = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestFeedConfigEqual(t *testing.T) {
	a := config.FeedConfig{Source: "exec", Command: "dump1090", Args: []string{"--net"}, Interval: time.Second}
	b := config.FeedConfig{Source: "exec", Command: "dump1090", Args: []string{"--net"}, Interval: time.Second}
	if !feedConfigEqual(a, b) {
		t.Fatal("identical feed configs reported unequal")
	}
	b.Args = []string{"--net", "--quiet"}
	if feedConfigEqual(a, b) {
		t.Fatal("differing args reported equal")
	}
	b = a
	b.Sim.Count = 7
	if feedConfigEqual(a, b) {
		t.Fatal("differing sim settings reported equal")
	}
}

func TestPortalConfigEqual(t *testing.T) {
	a := config.NOTAMConfig{
		BaseURL:  "https://ubikais.fois.go.kr:8030",
		Username: "ops",
		Password: "secret",
		FIR:      "RKRR",
		Series:   []string{"C", "A", "D"},
		Airports: []string{"RKSI"},
		Interval: 5 * time.Minute,
	}
	b := a
	b.Airports = []string{"RKPC", "RKSS"}
	b.Interval = time.Hour
	b.DefaultPeriod = "all"
	if !portalConfigEqual(a, b) {
		t.Fatal("live-tunable fields should not affect portal equality")
	}
	b.Series = []string{"C"}
	if portalConfigEqual(a, b) {
		t.Fatal("differing series reported equal")
	}
	b = a
	b.Username = "other"
	if portalConfigEqual(a, b) {
		t.Fatal("differing credentials reported equal")
	}
}
