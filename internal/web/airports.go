package web

import (
	"net/http"
	"strings"
	"time"
)

// Airport is static reference data for the aerodromes the portal covers.
type Airport struct {
	ICAO        string  `json:"icao"`
	IATA        string  `json:"iata"`
	Name        string  `json:"name"`
	NameKo      string  `json:"name_ko"`
	Lat         float64 `json:"lat,omitempty"`
	Lon         float64 `json:"lon,omitempty"`
	ElevationFt int     `json:"elevation,omitempty"`
}

// KoreanAirports covers the civil aerodromes of the Incheon FIR.
var KoreanAirports = []Airport{
	{ICAO: "RKSI", IATA: "ICN", Name: "Incheon International", NameKo: "인천국제공항", Lat: 37.4692, Lon: 126.4505, ElevationFt: 23},
	{ICAO: "RKSS", IATA: "GMP", Name: "Gimpo International", NameKo: "김포국제공항", Lat: 37.5583, Lon: 126.7906, ElevationFt: 59},
	{ICAO: "RKPK", IATA: "PUS", Name: "Gimhae International", NameKo: "김해국제공항", Lat: 35.1795, Lon: 128.9382, ElevationFt: 6},
	{ICAO: "RKPC", IATA: "CJU", Name: "Jeju International", NameKo: "제주국제공항", Lat: 33.5113, Lon: 126.4930, ElevationFt: 118},
	{ICAO: "RKTU", IATA: "CJJ", Name: "Cheongju International", NameKo: "청주국제공항", Lat: 36.7166, Lon: 127.4991, ElevationFt: 191},
	{ICAO: "RKTN", IATA: "TAE", Name: "Daegu International", NameKo: "대구국제공항", Lat: 35.8941, Lon: 128.6589, ElevationFt: 116},
	{ICAO: "RKJJ", IATA: "KWJ", Name: "Gwangju", NameKo: "광주공항", Lat: 35.1264, Lon: 126.8089, ElevationFt: 39},
	{ICAO: "RKJY", IATA: "RSU", Name: "Yeosu", NameKo: "여수공항", Lat: 34.8423, Lon: 127.6168, ElevationFt: 53},
	{ICAO: "RKPU", IATA: "USN", Name: "Ulsan", NameKo: "울산공항", Lat: 35.5936, Lon: 129.3519, ElevationFt: 45},
	{ICAO: "RKTH", IATA: "KPO", Name: "Pohang", NameKo: "포항공항", Lat: 35.9879, Lon: 129.4205, ElevationFt: 70},
	{ICAO: "RKPS", IATA: "HIN", Name: "Sacheon", NameKo: "사천공항", Lat: 35.0886, Lon: 128.0704, ElevationFt: 25},
	{ICAO: "RKJB", IATA: "MWX", Name: "Muan International", NameKo: "무안국제공항", Lat: 34.9914, Lon: 126.3828, ElevationFt: 35},
	{ICAO: "RKNY", IATA: "YNY", Name: "Yangyang International", NameKo: "양양국제공항", Lat: 38.0613, Lon: 128.6690, ElevationFt: 241},
	{ICAO: "RKNW", IATA: "WJU", Name: "Wonju", NameKo: "원주공항", Lat: 37.4381, Lon: 127.9601, ElevationFt: 329},
	{ICAO: "RKJK", IATA: "KUV", Name: "Gunsan", NameKo: "군산공항", Lat: 35.9038, Lon: 126.6159, ElevationFt: 29},
}

func lookupAirport(icao string) (Airport, bool) {
	for _, a := range KoreanAirports {
		if a.ICAO == icao {
			return a, true
		}
	}
	return Airport{}, false
}

// AirportSummary pairs the static airport data with what the archive holds
// for it.
type AirportSummary struct {
	Airport
	Records   int        `json:"records"`
	FetchedAt *time.Time `json:"fetched_at,omitempty"`
}

func (s *Server) airportSummary(icao string) AirportSummary {
	out := AirportSummary{Airport: Airport{ICAO: icao}}
	if a, ok := lookupAirport(icao); ok {
		out.Airport = a
	}
	if s.Store != nil {
		if batch, found, err := s.Store.GetNOTAMBatch(icao); err == nil && found {
			out.Records = len(batch.Records)
			fetched := batch.FetchedAt
			out.FetchedAt = &fetched
		}
	}
	return out
}

// configuredAirports is the fetch set, or the whole static table when the
// config names none.
func (s *Server) configuredAirports() []string {
	if list := s.airportList(); len(list) > 0 {
		return list
	}
	out := make([]string, 0, len(KoreanAirports))
	for _, a := range KoreanAirports {
		out = append(out, a.ICAO)
	}
	return out
}

func (s *Server) handleAirports(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}

	icaos := s.configuredAirports()
	airports := make([]AirportSummary, 0, len(icaos))
	for _, icao := range icaos {
		airports = append(airports, s.airportSummary(icao))
	}

	respondData(w, struct {
		Count    int              `json:"count"`
		Airports []AirportSummary `json:"airports"`
	}{Count: len(airports), Airports: airports})
}

func (s *Server) handleAirportInfo(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}
	icao := strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/api/airports/")))
	if icao == "" || strings.Contains(icao, "/") {
		respondError(w, http.StatusNotFound, "not found")
		return
	}

	if _, known := lookupAirport(icao); !known {
		configured := false
		for _, a := range s.airportList() {
			if a == icao {
				configured = true
				break
			}
		}
		if !configured {
			respondError(w, http.StatusNotFound, "Airport "+icao+" not found")
			return
		}
	}

	respondData(w, s.airportSummary(icao))
}
