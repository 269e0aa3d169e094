package notam

import (
	"strings"
	"time"
)

// Validity is the lifecycle state a record presents to consumers. The empty
// value means the record is not in effect (cancelled, expired, or
// unresolvable under a fail-closed policy) and should be hidden.
type Validity string

const (
	ValidityNone   Validity = ""
	ValidityActive Validity = "active"
	ValidityFuture Validity = "future"
)

// Policy decides what happens when a record's start date cannot be resolved
// from either the structured fields or the message body. The zero value fails
// open: a record that declares a window it cannot parse stays visible.
type Policy int

const (
	FailOpen Policy = iota
	FailClosed
)

// Period selects a reporting window for listings.
type Period string

const (
	PeriodCurrent Period = "current"
	PeriodMonth   Period = "1month"
	PeriodYear    Period = "1year"
	PeriodAll     Period = "all"
)

// ParsePeriod maps a query string onto a known Period.
func ParsePeriod(s string) (Period, bool) {
	switch Period(strings.ToLower(strings.TrimSpace(s))) {
	case PeriodCurrent:
		return PeriodCurrent, true
	case PeriodMonth:
		return PeriodMonth, true
	case PeriodYear:
		return PeriodYear, true
	case PeriodAll:
		return PeriodAll, true
	}
	return "", false
}

// Resolver resolves lifecycle state for records within one batch. It is
// stateless and safe for concurrent use; the zero value fails open.
type Resolver struct {
	Policy Policy
}

// Validity reports whether rec is in effect at now, given the cancellations
// derived from its batch.
//
// Resolution order: cancellation records themselves are never valid; records
// voided by the batch's cancelled set are not valid; the start date comes
// from the structured field with the message body as fallback, the end date
// likewise except that PERM pins it to PermanentEnd and EST defers to the
// body; a record whose start cannot be resolved stays visible under the
// fail-open policy only when the body at least carries a B) item; otherwise
// expiry and the future/active split follow from plain comparison.
func (r Resolver) Validity(rec Record, cancelled CancelledSet, now time.Time) Validity {
	if ClassifyEffect(rec.Text) == EffectCancel {
		return ValidityNone
	}
	if rec.Number != "" && cancelled.Has(rec.Number) {
		return ValidityNone
	}

	start, end, _ := r.resolveDates(rec)

	if start.IsZero() {
		// A B) item we could not parse still marks a declared window.
		if r.Policy == FailOpen && strings.Contains(rec.Text, "B)") {
			return ValidityActive
		}
		return ValidityNone
	}
	if !end.IsZero() && now.After(end) {
		return ValidityNone
	}
	if now.Before(start) {
		return ValidityFuture
	}
	return ValidityActive
}

// InPeriod reports whether rec belongs in a listing for the given reporting
// window. Cancellation records and cancelled records never appear, under any
// window.
func (r Resolver) InPeriod(rec Record, period Period, cancelled CancelledSet, now time.Time) bool {
	if ClassifyEffect(rec.Text) == EffectCancel {
		return false
	}
	if rec.Number != "" && cancelled.Has(rec.Number) {
		return false
	}

	start, end, _ := r.resolveDates(rec)

	if start.IsZero() && end.IsZero() {
		return period == PeriodAll
	}
	if start.IsZero() {
		// Only the end is known: list while unexpired.
		return period == PeriodAll || !now.After(end)
	}

	switch period {
	case PeriodAll:
		return true
	case PeriodCurrent:
		return end.IsZero() || !now.After(end)
	case PeriodMonth, PeriodYear:
		w := 30 * 24 * time.Hour
		if period == PeriodYear {
			w = 365 * 24 * time.Hour
		}
		if !end.IsZero() && end.Before(now.Add(-w)) {
			return false
		}
		if start.After(now.Add(w)) {
			return false
		}
		return true
	}
	return false
}

// resolveDates resolves the effective window, preferring the structured
// fields and falling back to the B)/C) items in the body. estimated reports
// an EST end marker, which otherwise behaves exactly like a missing field.
func (r Resolver) resolveDates(rec Record) (start, end time.Time, estimated bool) {
	textStart, textEnd := DatesFromText(rec.Text)

	if s := strings.TrimSpace(rec.EffectiveStart); len(s) >= 10 {
		start = ParseTime(s)
	}
	if start.IsZero() {
		start = textStart
	}

	e := strings.TrimSpace(rec.EffectiveEnd)
	switch {
	case strings.Contains(e, "PERM"):
		end = PermanentEnd
	case strings.Contains(e, "EST"):
		estimated = true
	case len(e) >= 10:
		end = ParseTime(e)
	}
	if end.IsZero() {
		end = textEnd
	}
	return start, end, estimated
}

// Annotated is a Record together with its resolved lifecycle state, the form
// the HTTP API and CLI listings serve.
type Annotated struct {
	Record
	Effect       Effect    `json:"effect"`
	Validity     Validity  `json:"validity,omitempty"`
	Cancelled    bool      `json:"cancelled,omitempty"`
	Cancels      string    `json:"cancels,omitempty"`
	Start        time.Time `json:"start,omitzero"`
	End          time.Time `json:"end,omitzero"`
	Permanent    bool      `json:"permanent,omitempty"`
	EndEstimated bool      `json:"end_estimated,omitempty"`
}

// Annotate resolves a whole batch at once: the cancelled set is derived from
// records itself, so a record and the cancellation that voids it can arrive
// in any order.
func (r Resolver) Annotate(records []Record, now time.Time) []Annotated {
	cancelled := BuildCancelledSet(records)
	out := make([]Annotated, 0, len(records))
	for _, rec := range records {
		start, end, estimated := r.resolveDates(rec)
		a := Annotated{
			Record:       rec,
			Effect:       ClassifyEffect(rec.Text),
			Validity:     r.Validity(rec, cancelled, now),
			Cancelled:    rec.Number != "" && cancelled.Has(rec.Number),
			Start:        start,
			End:          end,
			EndEstimated: estimated,
		}
		if a.Effect != EffectNew {
			if ref, ok := CancelledReference(rec.Text); ok {
				a.Cancels = ref
			}
		}
		if end.Equal(PermanentEnd) {
			a.Permanent = true
			a.End = time.Time{}
		}
		out = append(out, a)
	}
	return out
}
