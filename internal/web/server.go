// Package web serves the HTTP API: stored NOTAM batches with resolved
// validity, flight boards, live and archived tracks, weather, and the
// operational surface (status, logs, settings, about).
package web

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"github.com/cmkoo/airbrief/internal/feed"
	"github.com/cmkoo/airbrief/internal/ingest"
	"github.com/cmkoo/airbrief/internal/notam"
	"github.com/cmkoo/airbrief/internal/store"
	"github.com/cmkoo/airbrief/internal/track"
	"github.com/cmkoo/airbrief/internal/ubikais"
	"github.com/cmkoo/airbrief/internal/weather"
)

// Server carries the dependencies the handlers read. Optional fields may stay
// nil; the affected endpoints then degrade or report unavailable.
type Server struct {
	Store    *store.Store
	Buffer   *track.Buffer
	Weather  *weather.Client
	Settings SettingsStore
	Logs     *LogBuffer

	Resolver      notam.Resolver
	DefaultPeriod notam.Period
	Airports      []string
	DataDir       string
	Start         time.Time

	// Snapshot providers are wired by the runtime; nil means the subsystem is
	// not running.
	IngestSnapshot func() ingest.Snapshot
	FeedSnapshot   func() feed.Snapshot

	tunedPeriod   atomic.Value // notam.Period
	tunedAirports atomic.Value // []string
}

// Retune swaps the request-time tunables while requests are in flight. The
// runtime's settings apply hook calls it once the edited config validates;
// everything else on Server is fixed at construction.
func (s *Server) Retune(period notam.Period, airports []string) {
	s.tunedPeriod.Store(period)
	s.tunedAirports.Store(append([]string(nil), airports...))
}

func (s *Server) defaultPeriod() notam.Period {
	if p, ok := s.tunedPeriod.Load().(notam.Period); ok && p != "" {
		return p
	}
	return s.DefaultPeriod
}

func (s *Server) airportList() []string {
	if a, ok := s.tunedAirports.Load().([]string); ok {
		return a
	}
	return s.Airports
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", s.handleStatus)

	mux.HandleFunc("/api/notam", s.handleNOTAMIndex)
	mux.HandleFunc("/api/notam/", s.handleNOTAMLocation)

	mux.HandleFunc("/api/flights", s.handleFlights)
	mux.HandleFunc("/api/flights/departures", s.handleBoardSide(ubikais.Departures))
	mux.HandleFunc("/api/flights/arrivals", s.handleBoardSide(ubikais.Arrivals))
	mux.HandleFunc("/api/flights/search", s.handleFlightSearch)
	mux.HandleFunc("/api/flights/route", s.handleFlightRoute)

	mux.HandleFunc("/api/tracks", s.handleTracks)
	mux.HandleFunc("/api/tracks/", s.handleTrackByID)

	mux.HandleFunc("/api/weather/metar/", s.handleWeather(weatherMETAR))
	mux.HandleFunc("/api/weather/taf/", s.handleWeather(weatherTAF))

	mux.HandleFunc("/api/airports", s.handleAirports)
	mux.HandleFunc("/api/airports/", s.handleAirportInfo)

	mux.Handle("/api/settings", s.Settings.Handler())
	if s.Logs != nil {
		mux.HandleFunc("/api/logs", s.handleLogs)
	}
	mux.HandleFunc("/api/about", s.handleAbout)

	mux.HandleFunc("/", s.handleIndex)

	return mux
}

var apiEndpoints = []string{
	"/api/about",
	"/api/airports",
	"/api/airports/{icao}",
	"/api/flights",
	"/api/flights/arrivals",
	"/api/flights/departures",
	"/api/flights/route",
	"/api/flights/search",
	"/api/logs",
	"/api/notam",
	"/api/notam/{icao}",
	"/api/settings",
	"/api/status",
	"/api/tracks",
	"/api/tracks/{id}",
	"/api/weather/metar/{station}",
	"/api/weather/taf/{station}",
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}
	if r.URL.Path != "/" {
		respondError(w, http.StatusNotFound, "not found")
		return
	}

	endpoints := append([]string(nil), apiEndpoints...)
	sort.Strings(endpoints)
	respondData(w, struct {
		Service   string   `json:"service"`
		Endpoints []string `json:"endpoints"`
	}{Service: "airbrief", Endpoints: endpoints})
}

// Serve runs the API server until ctx is cancelled, then shuts down
// gracefully.
func Serve(ctx context.Context, listenAddr string, handler http.Handler, log *slog.Logger) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	if log != nil {
		log.Info("http server listening", "addr", listenAddr)
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
