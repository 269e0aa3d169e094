package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/cmkoo/airbrief/internal/weather"
)

type weatherProduct string

const (
	weatherMETAR weatherProduct = "metar"
	weatherTAF   weatherProduct = "taf"
)

func (s *Server) handleWeather(product weatherProduct) http.HandlerFunc {
	prefix := "/api/weather/" + string(product) + "/"
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireGET(w, r) {
			return
		}
		if s.Weather == nil {
			respondError(w, http.StatusServiceUnavailable, "weather client not configured")
			return
		}
		station := strings.TrimPrefix(r.URL.Path, prefix)
		if station == "" || strings.Contains(station, "/") {
			respondError(w, http.StatusNotFound, "not found")
			return
		}

		var (
			data any
			err  error
		)
		switch product {
		case weatherMETAR:
			data, err = s.Weather.METAR(r.Context(), station)
		case weatherTAF:
			data, err = s.Weather.TAF(r.Context(), station)
		}
		if err != nil {
			if errors.Is(err, weather.ErrNoReport) {
				respondError(w, http.StatusNotFound, err.Error())
				return
			}
			respondError(w, http.StatusBadGateway, err.Error())
			return
		}
		respondData(w, data)
	}
}
