package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cmkoo/airbrief/internal/config"
)

func writeSettingsConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "airbrief.yaml")
	content := "data_dir: '" + filepath.Join(dir, "data") + "'\n" +
		"notam:\n" +
		"  airports: [RKSI, RKSS]\n" +
		"  interval: 5m\n" +
		"  default_period: current\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func settingsServer(t *testing.T, ss SettingsStore) *httptest.Server {
	t.Helper()
	srv := &Server{Settings: ss, Start: time.Now().UTC()}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postSettings(t *testing.T, url, contentType, body string, wantCode int) apiReply {
	t.Helper()
	resp, err := http.Post(url, contentType, strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("POST: read body: %v", err)
	}
	if resp.StatusCode != wantCode {
		t.Fatalf("POST: status=%d body=%s", resp.StatusCode, raw)
	}
	var reply apiReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		t.Fatalf("POST: decode: %v body=%s", err, raw)
	}
	return reply
}

func TestSettings_GetReturnsCurrent(t *testing.T) {
	path := writeSettingsConfig(t)
	ts := settingsServer(t, SettingsStore{ConfigPath: path})

	var payload SettingsPayload
	decodeData(t, getReply(t, ts.URL+"/api/settings", http.StatusOK), &payload)
	if len(payload.Airports) != 2 || payload.Airports[0] != "RKSI" || payload.Airports[1] != "RKSS" {
		t.Fatalf("airports=%v", payload.Airports)
	}
	if payload.Interval != "5m0s" {
		t.Fatalf("interval=%q", payload.Interval)
	}
	if payload.DefaultPeriod != "current" {
		t.Fatalf("default_period=%q", payload.DefaultPeriod)
	}
}

func TestSettings_PostAppliesAndSaves(t *testing.T) {
	path := writeSettingsConfig(t)
	appliedCh := make(chan config.Config, 1)
	ts := settingsServer(t, SettingsStore{
		ConfigPath: path,
		Apply: func(cfg config.Config) error {
			appliedCh <- cfg
			return nil
		},
	})

	body := `{"airports":["rkpc","RKSI"],"interval":"10m","default_period":"1month"}`
	reply := postSettings(t, ts.URL+"/api/settings", "application/json", body, http.StatusOK)

	var payload SettingsPayload
	decodeData(t, reply, &payload)
	if len(payload.Airports) != 2 || payload.Airports[0] != "RKPC" {
		t.Fatalf("payload airports=%v", payload.Airports)
	}
	if payload.Interval != "10m0s" || payload.DefaultPeriod != "1month" {
		t.Fatalf("payload=%+v", payload)
	}

	select {
	case applied := <-appliedCh:
		if applied.NOTAM.Interval != 10*time.Minute {
			t.Fatalf("applied interval=%s", applied.NOTAM.Interval)
		}
		if len(applied.NOTAM.Airports) != 2 || applied.NOTAM.Airports[0] != "RKPC" {
			t.Fatalf("applied airports=%v", applied.NOTAM.Airports)
		}
	default:
		t.Fatalf("Apply was not called")
	}

	saved, err := config.Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if saved.NOTAM.Interval != 10*time.Minute || saved.NOTAM.DefaultPeriod != "1month" {
		t.Fatalf("saved=%+v", saved.NOTAM)
	}
}

func TestSettings_ApplyFailureDoesNotSave(t *testing.T) {
	path := writeSettingsConfig(t)
	ts := settingsServer(t, SettingsStore{
		ConfigPath: path,
		Apply: func(config.Config) error {
			return errors.New("listen requires restart")
		},
	})

	body := `{"airports":["RKPC"],"interval":"10m","default_period":"all"}`
	reply := postSettings(t, ts.URL+"/api/settings", "application/json", body, http.StatusBadRequest)
	if !strings.Contains(reply.Message, "apply failed") {
		t.Fatalf("message=%q", reply.Message)
	}

	saved, err := config.Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if saved.NOTAM.Interval != 5*time.Minute || len(saved.NOTAM.Airports) != 2 {
		t.Fatalf("config was saved despite apply failure: %+v", saved.NOTAM)
	}
}

func TestSettings_RejectsMalformedPayloads(t *testing.T) {
	path := writeSettingsConfig(t)
	ts := settingsServer(t, SettingsStore{ConfigPath: path})

	cases := []struct {
		name     string
		body     string
		wantCode int
		wantMsg  string
	}{
		{
			name:     "missing key",
			body:     `{"airports":["RKSI"],"interval":"5m"}`,
			wantCode: http.StatusBadRequest,
			wantMsg:  `missing required key "default_period"`,
		},
		{
			name:     "unknown key",
			body:     `{"airports":["RKSI"],"interval":"5m","default_period":"all","listen":":9999"}`,
			wantCode: http.StatusBadRequest,
			wantMsg:  `unknown key "listen"`,
		},
		{
			name:     "duplicate key",
			body:     `{"airports":["RKSI"],"airports":["RKSS"],"interval":"5m","default_period":"all"}`,
			wantCode: http.StatusBadRequest,
			wantMsg:  `duplicate key "airports"`,
		},
		{
			name:     "null value",
			body:     `{"airports":null,"interval":"5m","default_period":"all"}`,
			wantCode: http.StatusBadRequest,
			wantMsg:  `"airports" cannot be null`,
		},
		{
			name:     "trailing data",
			body:     `{"airports":["RKSI"],"interval":"5m","default_period":"all"} {}`,
			wantCode: http.StatusBadRequest,
			wantMsg:  "trailing data",
		},
		{
			name:     "not an object",
			body:     `["RKSI"]`,
			wantCode: http.StatusBadRequest,
			wantMsg:  "expected object",
		},
		{
			name:     "empty airports",
			body:     `{"airports":[],"interval":"5m","default_period":"all"}`,
			wantCode: http.StatusBadRequest,
			wantMsg:  "airports must list at least one ICAO code",
		},
		{
			name:     "interval below minimum",
			body:     `{"airports":["RKSI"],"interval":"30s","default_period":"all"}`,
			wantCode: http.StatusBadRequest,
			wantMsg:  "notam.interval must be at least 1m",
		},
		{
			name:     "unknown period",
			body:     `{"airports":["RKSI"],"interval":"5m","default_period":"weekly"}`,
			wantCode: http.StatusBadRequest,
			wantMsg:  "notam.default_period must be one of",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reply := postSettings(t, ts.URL+"/api/settings", "application/json", tc.body, tc.wantCode)
			if !strings.Contains(reply.Message, tc.wantMsg) {
				t.Fatalf("message=%q want substring %q", reply.Message, tc.wantMsg)
			}
		})
	}

	// Content type is enforced before the body is read.
	resp, err := http.Post(ts.URL+"/api/settings", "text/plain", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("status=%d", resp.StatusCode)
	}
}

func TestSettings_RequiresConfigPath(t *testing.T) {
	ts := settingsServer(t, SettingsStore{})
	reply := getReply(t, ts.URL+"/api/settings", http.StatusNotImplemented)
	if !strings.Contains(reply.Message, "no config path") {
		t.Fatalf("message=%q", reply.Message)
	}
}
