package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/cmkoo/airbrief/internal/notam"
	"github.com/cmkoo/airbrief/internal/store"
)

// LocationNOTAMs is one location's annotated batch as served by the API.
type LocationNOTAMs struct {
	Location  string            `json:"location"`
	FetchedAt time.Time         `json:"fetched_at"`
	Count     int               `json:"count"`
	NOTAMs    []notam.Annotated `json:"notams"`
}

// period parses the reporting window from the query, falling back to the
// configured default. ok false means the query named an unknown window.
func (s *Server) period(r *http.Request) (notam.Period, bool) {
	q := r.URL.Query().Get("period")
	if q == "" {
		if p := s.defaultPeriod(); p != "" {
			return p, true
		}
		return notam.PeriodCurrent, true
	}
	return notam.ParsePeriod(q)
}

func includeAll(r *http.Request) bool {
	switch strings.ToLower(r.URL.Query().Get("all")) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// annotateBatch resolves one stored batch against now. With all unset,
// cancellation records, cancelled records, and records outside the window are
// dropped; with all set every record is served with its resolved state
// attached.
func (s *Server) annotateBatch(batch store.NOTAMBatch, period notam.Period, all bool, now time.Time) LocationNOTAMs {
	annotated := s.Resolver.Annotate(batch.Records, now)
	if !all {
		cancelled := notam.BuildCancelledSet(batch.Records)
		kept := make([]notam.Annotated, 0, len(annotated))
		for _, a := range annotated {
			if s.Resolver.InPeriod(a.Record, period, cancelled, now) {
				kept = append(kept, a)
			}
		}
		annotated = kept
	}
	return LocationNOTAMs{
		Location:  batch.Location,
		FetchedAt: batch.FetchedAt,
		Count:     len(annotated),
		NOTAMs:    annotated,
	}
}

func (s *Server) handleNOTAMIndex(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}
	period, ok := s.period(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "period must be one of all, current, 1month, 1year")
		return
	}

	batches, err := s.Store.AllNOTAMBatches()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	now := time.Now().UTC()
	all := includeAll(r)
	locations := make([]LocationNOTAMs, 0, len(batches))
	total := 0
	for _, batch := range batches {
		loc := s.annotateBatch(batch, period, all, now)
		total += loc.Count
		locations = append(locations, loc)
	}

	respondData(w, struct {
		Period    notam.Period     `json:"period"`
		Count     int              `json:"count"`
		Locations []LocationNOTAMs `json:"locations"`
	}{Period: period, Count: total, Locations: locations})
}

func (s *Server) handleNOTAMLocation(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}
	icao := strings.TrimPrefix(r.URL.Path, "/api/notam/")
	if icao == "" || strings.Contains(icao, "/") {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	period, ok := s.period(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "period must be one of all, current, 1month, 1year")
		return
	}

	batch, found, err := s.Store.GetNOTAMBatch(icao)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "no stored batch for "+strings.ToUpper(strings.TrimSpace(icao)))
		return
	}

	loc := s.annotateBatch(batch, period, includeAll(r), time.Now().UTC())

	respondData(w, struct {
		LocationNOTAMs
		Period notam.Period `json:"period"`
	}{LocationNOTAMs: loc, Period: period})
}
