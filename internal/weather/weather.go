// Package weather fetches METAR and TAF reports from an aviationweather.gov
// style JSON API and caches them per station. A report that cannot be
// refreshed is served stale from cache rather than failing the caller; only a
// station with nothing cached at all returns an error.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultBaseURL  = "https://aviationweather.gov/api/data"
	defaultCacheTTL = 5 * time.Minute
	defaultTimeout  = 10 * time.Second

	// Reports older than this are useless even as a degraded answer; the
	// cache drops them on its own.
	staleTTL  = 6 * time.Hour
	cacheSize = 64
)

// ErrNoReport is wrapped by METAR and TAF when the upstream answered but has
// nothing for the station.
var ErrNoReport = errors.New("no report available")

// METAR is one surface observation.
type METAR struct {
	Station        string    `json:"station"`
	ObservedAt     time.Time `json:"observed_at"`
	TempC          float64   `json:"temp_c"`
	DewpointC      float64   `json:"dewpoint_c"`
	WindDirDeg     *int      `json:"wind_dir_deg"` // nil for variable winds
	WindSpeedKt    int       `json:"wind_speed_kt"`
	WindGustKt     int       `json:"wind_gust_kt,omitempty"`
	Visibility     string    `json:"visibility,omitempty"`
	AltimeterHPa   float64   `json:"altimeter_hpa"`
	FlightCategory string    `json:"flight_category,omitempty"`
	Raw            string    `json:"raw"`
	FetchedAt      time.Time `json:"fetched_at"`
}

// AltimeterInHg converts the hectopascal altimeter setting to inches of
// mercury: 29.92 * (hPa / 1013.2).
func (m METAR) AltimeterInHg() float64 {
	return 0.02953 * m.AltimeterHPa
}

// TAF is one terminal forecast, kept as raw text.
type TAF struct {
	Station   string    `json:"station"`
	IssuedAt  time.Time `json:"issued_at"`
	Raw       string    `json:"raw"`
	Remarks   string    `json:"remarks,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// metarResponse matches one element of the JSON array the API returns. Wind
// direction is a number or the string "VRB"; visibility is a number or a
// string like "10+".
type metarResponse struct {
	ICAOId     string  `json:"icaoId"`
	ReportTime string  `json:"reportTime"`
	Temp       float64 `json:"temp"`
	Dewp       float64 `json:"dewp"`
	Wdir       any     `json:"wdir"`
	Wspd       int     `json:"wspd"`
	Wgst       int     `json:"wgst"`
	Visib      any     `json:"visib"`
	Altim      float64 `json:"altim"`
	FltCat     string  `json:"fltCat"`
	RawOb      string  `json:"rawOb"`
}

type tafResponse struct {
	ICAOId    string `json:"icaoId"`
	IssueTime string `json:"issueTime"`
	RawTAF    string `json:"rawTAF"`
	Remarks   string `json:"remarks"`
}

func (r metarResponse) windDirection() *int {
	if d, ok := r.Wdir.(float64); ok {
		dir := int(d)
		return &dir
	}
	return nil
}

func visibilityString(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func parseReportTime(s string) time.Time {
	for _, layout := range []string{time.DateTime, "2006-01-02T15:04:05.999Z"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// Config controls the upstream endpoint and cache freshness.
type Config struct {
	BaseURL  string
	CacheTTL time.Duration
	Timeout  time.Duration
}

// Client fetches reports and keeps the most recent one per station.
type Client struct {
	baseURL    string
	ttl        time.Duration
	httpClient *http.Client
	log        *slog.Logger

	metars *expirable.LRU[string, METAR]
	tafs   *expirable.LRU[string, TAF]
}

func New(cfg Config, log *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		ttl:        cfg.CacheTTL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
		metars:     expirable.NewLRU[string, METAR](cacheSize, nil, staleTTL),
		tafs:       expirable.NewLRU[string, TAF](cacheSize, nil, staleTTL),
	}
}

// METAR returns the current observation for a station, from cache when it is
// fresh enough. When the upstream fails and a stale report is still cached,
// the stale report is returned instead of the error.
func (c *Client) METAR(ctx context.Context, station string) (METAR, error) {
	station = strings.ToUpper(strings.TrimSpace(station))
	if station == "" {
		return METAR{}, errors.New("weather: station is required")
	}

	if m, ok := c.metars.Get(station); ok && time.Since(m.FetchedAt) < c.ttl {
		return m, nil
	}

	var reports []metarResponse
	if err := c.fetchJSON(ctx, "metar", station, &reports); err != nil {
		if m, ok := c.metars.Get(station); ok {
			c.log.Warn("serving stale METAR", "station", station, "age", time.Since(m.FetchedAt).Round(time.Second), "error", err)
			return m, nil
		}
		return METAR{}, err
	}
	if len(reports) == 0 {
		return METAR{}, fmt.Errorf("weather: %w: no METAR for %s", ErrNoReport, station)
	}

	r := reports[0]
	m := METAR{
		Station:        r.ICAOId,
		ObservedAt:     parseReportTime(r.ReportTime),
		TempC:          r.Temp,
		DewpointC:      r.Dewp,
		WindDirDeg:     r.windDirection(),
		WindSpeedKt:    r.Wspd,
		WindGustKt:     r.Wgst,
		Visibility:     visibilityString(r.Visib),
		AltimeterHPa:   r.Altim,
		FlightCategory: r.FltCat,
		Raw:            r.RawOb,
		FetchedAt:      time.Now().UTC(),
	}
	if m.Station == "" {
		m.Station = station
	}
	c.metars.Add(station, m)
	return m, nil
}

// TAF returns the current forecast for a station with the same cache and
// stale-fallback behavior as METAR.
func (c *Client) TAF(ctx context.Context, station string) (TAF, error) {
	station = strings.ToUpper(strings.TrimSpace(station))
	if station == "" {
		return TAF{}, errors.New("weather: station is required")
	}

	if t, ok := c.tafs.Get(station); ok && time.Since(t.FetchedAt) < c.ttl {
		return t, nil
	}

	var reports []tafResponse
	if err := c.fetchJSON(ctx, "taf", station, &reports); err != nil {
		if t, ok := c.tafs.Get(station); ok {
			c.log.Warn("serving stale TAF", "station", station, "age", time.Since(t.FetchedAt).Round(time.Second), "error", err)
			return t, nil
		}
		return TAF{}, err
	}
	if len(reports) == 0 {
		return TAF{}, fmt.Errorf("weather: %w: no TAF for %s", ErrNoReport, station)
	}

	r := reports[0]
	t := TAF{
		Station:   r.ICAOId,
		IssuedAt:  parseReportTime(r.IssueTime),
		Raw:       r.RawTAF,
		Remarks:   r.Remarks,
		FetchedAt: time.Now().UTC(),
	}
	if t.Station == "" {
		t.Station = station
	}
	c.tafs.Add(station, t)
	return t, nil
}

func (c *Client) fetchJSON(ctx context.Context, product, station string, out any) error {
	u := fmt.Sprintf("%s/%s?ids=%s&format=json", c.baseURL, product, url.QueryEscape(station))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("weather: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("weather: fetch %s: %w", product, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("weather: fetch %s: status %d", product, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("weather: decode %s: %w", product, err)
	}
	return nil
}
