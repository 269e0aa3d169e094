package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/cmkoo/airbrief/internal/track"
)

func (s *Server) handleTracks(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}

	var live []track.AircraftInfo
	if s.Buffer != nil {
		live = s.Buffer.Active(time.Now().UTC())
	}
	if live == nil {
		live = []track.AircraftInfo{}
	}

	stored, err := s.Store.TrackIDs()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if stored == nil {
		stored = []string{}
	}

	respondData(w, struct {
		Count     int                  `json:"count"`
		Aircraft  []track.AircraftInfo `json:"aircraft"`
		StoredIDs []string             `json:"stored_ids"`
	}{Count: len(live), Aircraft: live, StoredIDs: stored})
}

// TrackResponse is one aircraft's full trace: stored segments and the live
// buffer merged in time order, ground noise trimmed off the start.
type TrackResponse struct {
	ID      string         `json:"id"`
	Count   int            `json:"count"`
	Summary *track.Summary `json:"summary,omitempty"`
	Points  []track.Point  `json:"points"`
}

func (s *Server) handleTrackByID(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/tracks/")
	if id == "" || strings.Contains(id, "/") {
		respondError(w, http.StatusNotFound, "not found")
		return
	}

	history, err := s.Store.TrackHistory(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var live []track.Point
	if s.Buffer != nil {
		live = s.Buffer.Snapshot(id)
	}

	merged := track.Merge(history, live)
	if len(merged) == 0 {
		respondError(w, http.StatusNotFound, "no track for "+id)
		return
	}
	trimmed := track.TrimGroundNoise(merged, track.DefaultTrimLookahead)

	resp := TrackResponse{ID: id, Count: len(trimmed), Points: trimmed}
	if summary, ok := track.Summarize(trimmed, time.Now().UTC()); ok {
		resp.Summary = &summary
	}
	respondData(w, resp)
}
