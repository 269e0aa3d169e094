// Package ubikais implements the HTTP client for the UBIKAIS flight
// information portal. All methods are context-aware, respect the shared rate
// limiter, and retry on transient errors (429, 5xx). The portal is a
// login-walled browser application, so the client keeps a cookie session and
// logs back in once when it expires.
package ubikais

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/cmkoo/airbrief/internal/notam"
)

const (
	defaultBaseURL = "https://ubikais.fois.go.kr:8030"
	systemID       = "sysUbikais"
	maxRetries     = 4

	// The portal rejects non-browser user agents.
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

	loginPath    = "/common/login"
	loginProc    = "/common/loginProc"
	mainPath     = "/sysUbikais/biz/main.ubikais"
	notamADPath  = "/sysUbikais/biz/nps/selectNotamRecAd.fois"
	notamFIRPath = "/sysUbikais/biz/nps/selectNotamRecFir.fois"
	flightsPath  = "/main/selectIfr.fois"
)

type Config struct {
	BaseURL    string
	Username   string
	Password   string
	FIR        string
	Series     []string
	RatePerSec float64
	Timeout    time.Duration
}

// Client is the UBIKAIS portal HTTP client.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *slog.Logger
	now        func() time.Time

	mu       sync.Mutex
	loggedIn bool
}

// New creates a Client. Credentials are mandatory; there is no anonymous
// access to the portal.
func New(cfg Config, log *slog.Logger) (*Client, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("ubikais: username and password are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.FIR == "" {
		cfg.FIR = "RKRR"
	}
	if len(cfg.Series) == 0 {
		cfg.Series = []string{"C", "A", "D"}
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("ubikais: cookie jar: %w", err)
	}
	burst := int(cfg.RatePerSec)
	if burst < 1 {
		burst = 1
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Jar:     jar,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst),
		log:     log,
		now:     time.Now,
	}, nil
}

// NOTAMs fetches the current NOTAM batch for one aerodrome, merging the
// configured series. Records without a location are stamped with icao.
func (c *Client) NOTAMs(ctx context.Context, icao string) ([]notam.Record, error) {
	icao = strings.ToUpper(strings.TrimSpace(icao))
	if icao == "" {
		return nil, fmt.Errorf("ubikais: icao is required")
	}
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}

	var merged []notam.Record
	seen := make(map[string]struct{})
	for _, series := range c.cfg.Series {
		params := c.recordParams(series)
		params.Set("srchAd", icao)
		recs, err := c.records(ctx, notamADPath, params)
		if err != nil {
			return nil, fmt.Errorf("notams %s series %s: %w", icao, series, err)
		}
		for _, r := range recs {
			if r.Location == "" {
				r.Location = icao
			}
			if r.Number != "" {
				if _, dup := seen[r.Number]; dup {
					continue
				}
				seen[r.Number] = struct{}{}
			}
			merged = append(merged, r)
		}
	}
	return merged, nil
}

// FIRNOTAMs fetches the FIR-wide batch, merging the configured series.
func (c *Client) FIRNOTAMs(ctx context.Context) ([]notam.Record, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}

	var merged []notam.Record
	seen := make(map[string]struct{})
	for _, series := range c.cfg.Series {
		params := c.recordParams(series)
		params.Set("srchAd", c.cfg.FIR)
		recs, err := c.records(ctx, notamFIRPath, params)
		if err != nil {
			return nil, fmt.Errorf("fir notams series %s: %w", series, err)
		}
		for _, r := range recs {
			if r.Location == "" {
				r.Location = c.cfg.FIR
			}
			if r.Number != "" {
				if _, dup := seen[r.Number]; dup {
					continue
				}
				seen[r.Number] = struct{}{}
			}
			merged = append(merged, r)
		}
	}
	return merged, nil
}

// Flights fetches one side of an aerodrome's IFR flight board.
func (c *Client) Flights(ctx context.Context, icao string, dir Direction) ([]Flight, error) {
	icao = strings.ToUpper(strings.TrimSpace(icao))
	if icao == "" {
		return nil, fmt.Errorf("ubikais: icao is required")
	}
	if dir != Departures && dir != Arrivals {
		return nil, fmt.Errorf("ubikais: unknown board direction %q", dir)
	}
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("depArr", string(dir))
	params.Set("apIcao", icao)

	body, err := c.fetchGrid(ctx, flightsPath, params)
	if err != nil {
		return nil, fmt.Errorf("flights %s %s: %w", icao, dir, err)
	}
	return ParseFlights(body), nil
}

// recordParams builds the query the portal's NOTAM grid sends, scoped to
// records valid today.
func (c *Client) recordParams(series string) url.Values {
	now := c.now()
	short := now.Format("060102")

	params := url.Values{}
	params.Set("downloadYn", "1")
	params.Set("srchFir", c.cfg.FIR)
	params.Set("srchSeries", series)
	params.Set("srchValid", now.Format("2006-01-02"))
	params.Set("srchValidsh", short+"2359")
	params.Set("srchValidsh2", short+"0000")
	params.Set("srchValid2", "1")
	params.Set("cmd", "get-records")
	params.Set("limit", "1000")
	params.Set("offset", "0")
	return params
}

// records fetches and decodes one NOTAM grid page.
func (c *Client) records(ctx context.Context, endpoint string, params url.Values) ([]notam.Record, error) {
	body, err := c.fetchGrid(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}
	return notam.ParseRecords(body), nil
}

// fetchGrid performs a grid request, logging back in once if the session
// expired and the portal answered with its HTML login page instead of JSON.
func (c *Client) fetchGrid(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	body, err := c.getJSON(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}
	if !looksLikeHTML(body) {
		return body, nil
	}

	if err := c.relogin(ctx); err != nil {
		return nil, err
	}
	if body, err = c.getJSON(ctx, endpoint, params); err != nil {
		return nil, err
	}
	if looksLikeHTML(body) {
		return nil, fmt.Errorf("expected JSON, got HTML after relogin")
	}
	return body, nil
}

// looksLikeHTML reports whether the portal answered with a page rather than
// grid JSON, which is how an expired session presents.
func looksLikeHTML(body []byte) bool {
	return strings.HasPrefix(strings.TrimSpace(string(body)), "<")
}

// ensureSession logs in on first use.
func (c *Client) ensureSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loggedIn {
		return nil
	}
	if err := c.login(ctx); err != nil {
		return err
	}
	c.loggedIn = true
	return nil
}

// relogin drops the current session and logs in again.
func (c *Client) relogin(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loggedIn = false
	if err := c.login(ctx); err != nil {
		return err
	}
	c.loggedIn = true
	return nil
}

// login walks the portal's browser login flow: landing page for the session
// cookie, credential POST, then the main page to verify the session took.
func (c *Client) login(ctx context.Context) error {
	landing := c.cfg.BaseURL + loginPath + "?systemId=" + systemID

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, landing, nil)
	if err != nil {
		return fmt.Errorf("ubikais login: %w", err)
	}
	c.setBrowserHeaders(req)
	if err := c.drain(req); err != nil {
		return fmt.Errorf("ubikais login page: %w", err)
	}

	form := url.Values{}
	form.Set("userId", c.cfg.Username)
	form.Set("userPw", c.cfg.Password)
	form.Set("systemId", systemID)

	req, err = http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+loginProc, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("ubikais login: %w", err)
	}
	c.setBrowserHeaders(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", landing)
	if err := c.drain(req); err != nil {
		return fmt.Errorf("ubikais login post: %w", err)
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+mainPath, nil)
	if err != nil {
		return fmt.Errorf("ubikais login: %w", err)
	}
	c.setBrowserHeaders(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ubikais main page: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("ubikais main page: %w", err)
	}

	if !strings.Contains(strings.ToLower(string(body)), "logout") {
		return fmt.Errorf("ubikais: login failed: session not verified")
	}
	c.log.Info("ubikais session established", slog.String("user", c.cfg.Username))
	return nil
}

func (c *Client) setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
}

// drain performs req and discards the body, keeping only the cookies.
func (c *Client) drain(req *http.Request) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}

// getJSON performs a paced grid request, retrying transient failures with
// exponential backoff.
func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := c.cfg.BaseURL + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))*500) * time.Millisecond
			c.log.Debug("retrying after backoff", slog.Int("attempt", attempt), slog.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
		req.Header.Set("Referer", c.cfg.BaseURL+mainPath)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http: %w", err)
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("reading body: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, snippet(body))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, snippet(body))
		}
		return body, nil
	}
	return nil, fmt.Errorf("after %d attempts: %w", maxRetries, lastErr)
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
