package web

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cmkoo/airbrief/internal/ubikais"
)

const defaultFlightLimit = 100

// BoardFlight is one board row with its board's context attached.
type BoardFlight struct {
	Airport   string            `json:"airport"`
	Direction ubikais.Direction `json:"direction"`
	FetchedAt time.Time         `json:"fetched_at"`
	ubikais.Flight
}

type boardFilter struct {
	airport   string
	direction ubikais.Direction
}

func parseLimit(r *http.Request, fallback int) (int, bool) {
	s := strings.TrimSpace(r.URL.Query().Get("limit"))
	if s == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return 0, false
	}
	return v, true
}

// boardRows flattens the stored boards matching the filter, most recently
// fetched board first.
func (s *Server) boardRows(filter boardFilter) ([]BoardFlight, error) {
	boards, err := s.Store.AllFlightBoards()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(boards, func(i, j int) bool {
		return boards[i].FetchedAt.After(boards[j].FetchedAt)
	})

	rows := make([]BoardFlight, 0, 64)
	for _, board := range boards {
		if filter.airport != "" && board.Airport != filter.airport {
			continue
		}
		if filter.direction != "" && board.Direction != filter.direction {
			continue
		}
		for _, f := range board.Flights {
			rows = append(rows, BoardFlight{
				Airport:   board.Airport,
				Direction: board.Direction,
				FetchedAt: board.FetchedAt,
				Flight:    f,
			})
		}
	}
	return rows, nil
}

func normalizeAirport(r *http.Request) string {
	return strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("airport")))
}

func (s *Server) handleFlights(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}

	filter := boardFilter{airport: normalizeAirport(r)}
	if q := r.URL.Query().Get("direction"); q != "" {
		dir, ok := ubikais.ParseDirection(q)
		if !ok {
			respondError(w, http.StatusBadRequest, "direction must be dep or arr")
			return
		}
		filter.direction = dir
	}
	limit, ok := parseLimit(r, defaultFlightLimit)
	if !ok {
		respondError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	rows, err := s.boardRows(filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}

	respondData(w, struct {
		Count   int           `json:"count"`
		Flights []BoardFlight `json:"flights"`
	}{Count: len(rows), Flights: rows})
}

// handleBoardSide serves /api/flights/departures and /api/flights/arrivals.
func (s *Server) handleBoardSide(dir ubikais.Direction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireGET(w, r) {
			return
		}
		limit, ok := parseLimit(r, defaultFlightLimit)
		if !ok {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}

		rows, err := s.boardRows(boardFilter{airport: normalizeAirport(r), direction: dir})
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if len(rows) > limit {
			rows = rows[:limit]
		}

		respondData(w, struct {
			Count   int           `json:"count"`
			Flights []BoardFlight `json:"flights"`
		}{Count: len(rows), Flights: rows})
	}
}

const searchLimit = 10

func (s *Server) handleFlightSearch(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("flight"))
	if query == "" {
		query = strings.TrimSpace(r.URL.Query().Get("callsign"))
	}
	if query == "" {
		respondError(w, http.StatusBadRequest, "flight parameter required")
		return
	}
	query = strings.ToUpper(query)

	rows, err := s.boardRows(boardFilter{})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	matches := make([]BoardFlight, 0, searchLimit)
	for _, row := range rows {
		if !matchesFlight(row.Flight, query) {
			continue
		}
		matches = append(matches, row)
		if len(matches) == searchLimit {
			break
		}
	}

	respondData(w, struct {
		Found   bool          `json:"found"`
		Count   int           `json:"count"`
		Flights []BoardFlight `json:"flights"`
	}{Found: len(matches) > 0, Count: len(matches), Flights: matches})
}

func matchesFlight(f ubikais.Flight, upperQuery string) bool {
	return strings.Contains(strings.ToUpper(f.Callsign), upperQuery) ||
		strings.Contains(strings.ToUpper(f.Number), upperQuery)
}

type routeEndpoint struct {
	ICAO string `json:"icao"`
}

type routeAircraft struct {
	Type         string `json:"type,omitempty"`
	Registration string `json:"registration,omitempty"`
}

// RouteResponse is the origin/destination extract a moving-map client asks
// for by callsign. A miss is a success with null fields, matching the shape
// clients already handle.
type RouteResponse struct {
	Source      *string        `json:"source"`
	Callsign    string         `json:"callsign,omitempty"`
	Origin      *routeEndpoint `json:"origin"`
	Destination *routeEndpoint `json:"destination"`
	Aircraft    *routeAircraft `json:"aircraft,omitempty"`
	Status      string         `json:"status,omitempty"`
}

func (s *Server) handleFlightRoute(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}

	callsign := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("callsign")))
	reg := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("reg")))
	if callsign == "" && reg == "" {
		respondError(w, http.StatusBadRequest, "callsign or reg required")
		return
	}

	rows, err := s.boardRows(boardFilter{})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var match *BoardFlight
	if callsign != "" {
		for i, row := range rows {
			if matchesFlight(row.Flight, callsign) {
				match = &rows[i]
				break
			}
		}
	}
	if match == nil && reg != "" {
		for i, row := range rows {
			if strings.ToUpper(row.Registration) == reg {
				match = &rows[i]
				break
			}
		}
	}

	if match == nil {
		respondData(w, RouteResponse{})
		return
	}

	source := "ubikais"
	resp := RouteResponse{
		Source:      &source,
		Callsign:    match.Callsign,
		Origin:      &routeEndpoint{ICAO: match.Departure},
		Destination: &routeEndpoint{ICAO: match.Arrival},
		Status:      match.Status,
	}
	if match.AircraftType != "" || match.Registration != "" {
		resp.Aircraft = &routeAircraft{Type: match.AircraftType, Registration: match.Registration}
	}
	respondData(w, resp)
}
