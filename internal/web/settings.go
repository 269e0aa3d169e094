package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cmkoo/airbrief/internal/config"
)

// SettingsPayload is the live-tunable slice of the config exposed over the
// API. Listen address and data directory changes need a restart and are
// rejected by the runtime Apply hook.
type SettingsPayload struct {
	Airports      []string `json:"airports"`
	Interval      string   `json:"interval"`
	DefaultPeriod string   `json:"default_period"`
}

// SettingsPayloadIn is the strict POST schema.
//
// All fields are required (no partial updates) to avoid hidden defaults and
// prevent accidental schema drift.
type SettingsPayloadIn struct {
	Airports      *[]string `json:"airports"`
	Interval      *string   `json:"interval"`
	DefaultPeriod *string   `json:"default_period"`
}

var settingsPostKeys = []string{
	"airports",
	"interval",
	"default_period",
}

func decodeSettingsPayloadInStrict(body []byte) (SettingsPayloadIn, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()

	// First pass: stream tokens to enforce strict object rules and detect duplicate keys.
	allowed := make(map[string]struct{}, len(settingsPostKeys))
	for _, k := range settingsPostKeys {
		allowed[k] = struct{}{}
	}
	seen := make(map[string]struct{}, len(settingsPostKeys))

	tok, err := dec.Token()
	if err != nil {
		return SettingsPayloadIn{}, fmt.Errorf("invalid json: %w", err)
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return SettingsPayloadIn{}, errors.New("invalid json: expected object")
	}

	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return SettingsPayloadIn{}, fmt.Errorf("invalid json: %w", err)
		}
		key, ok := kt.(string)
		if !ok {
			return SettingsPayloadIn{}, errors.New("invalid json: expected string key")
		}
		if _, ok := allowed[key]; !ok {
			return SettingsPayloadIn{}, fmt.Errorf("invalid json: unknown key %q", key)
		}
		if _, dup := seen[key]; dup {
			return SettingsPayloadIn{}, fmt.Errorf("invalid json: duplicate key %q", key)
		}
		seen[key] = struct{}{}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return SettingsPayloadIn{}, fmt.Errorf("invalid json: %w", err)
		}
		if strings.TrimSpace(string(raw)) == "null" {
			return SettingsPayloadIn{}, fmt.Errorf("invalid json: %q cannot be null", key)
		}
	}

	end, err := dec.Token()
	if err != nil {
		return SettingsPayloadIn{}, fmt.Errorf("invalid json: %w", err)
	}
	delim, ok = end.(json.Delim)
	if !ok || delim != '}' {
		return SettingsPayloadIn{}, errors.New("invalid json: expected end of object")
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return SettingsPayloadIn{}, errors.New("invalid json: trailing data")
	}

	for _, k := range settingsPostKeys {
		if _, ok := seen[k]; !ok {
			return SettingsPayloadIn{}, fmt.Errorf("invalid json: missing required key %q", k)
		}
	}

	// Second pass: decode into the typed struct.
	var out SettingsPayloadIn
	dec2 := json.NewDecoder(bytes.NewReader(body))
	dec2.DisallowUnknownFields()
	if err := dec2.Decode(&out); err != nil {
		return SettingsPayloadIn{}, fmt.Errorf("invalid json: %w", err)
	}
	if err := dec2.Decode(&struct{}{}); err != io.EOF {
		return SettingsPayloadIn{}, errors.New("invalid json: trailing data")
	}

	return out, nil
}

func configToSettingsPayload(cfg config.Config) SettingsPayload {
	return SettingsPayload{
		Airports:      append([]string(nil), cfg.NOTAM.Airports...),
		Interval:      cfg.NOTAM.Interval.String(),
		DefaultPeriod: cfg.NOTAM.DefaultPeriod,
	}
}

func validateSettingsPayloadIn(p SettingsPayloadIn) error {
	if p.Airports == nil {
		return errors.New("airports is required")
	}
	if len(*p.Airports) == 0 {
		return errors.New("airports must list at least one ICAO code")
	}
	if p.Interval == nil {
		return errors.New("interval is required")
	}
	if strings.TrimSpace(*p.Interval) == "" {
		return errors.New("interval must be non-empty")
	}
	if p.DefaultPeriod == nil {
		return errors.New("default_period is required")
	}
	if strings.TrimSpace(*p.DefaultPeriod) == "" {
		return errors.New("default_period must be non-empty")
	}
	return nil
}

func applySettingsPayload(cfg *config.Config, p SettingsPayloadIn) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if err := validateSettingsPayloadIn(p); err != nil {
		return err
	}

	airports := make([]string, 0, len(*p.Airports))
	for _, ap := range *p.Airports {
		ap = strings.ToUpper(strings.TrimSpace(ap))
		if ap == "" {
			return errors.New("airports entries must be non-empty")
		}
		airports = append(airports, ap)
	}
	cfg.NOTAM.Airports = airports

	intervalStr := strings.TrimSpace(*p.Interval)
	d, err := time.ParseDuration(intervalStr)
	if err != nil {
		return fmt.Errorf("invalid interval %q: %w", intervalStr, err)
	}
	cfg.NOTAM.Interval = d

	cfg.NOTAM.DefaultPeriod = strings.ToLower(strings.TrimSpace(*p.DefaultPeriod))
	return nil
}

type SettingsStore struct {
	ConfigPath string
	// Apply, when set, is called after validation and before saving.
	// If Apply returns an error, the config is not saved.
	// Apply is expected to make the new config effective immediately.
	Apply func(cfg config.Config) error
}

func (s SettingsStore) load() (config.Config, error) {
	return config.Load(s.ConfigPath)
}

func (s SettingsStore) save(cfg config.Config) error {
	if err := config.DefaultAndValidate(&cfg); err != nil {
		return err
	}
	return config.Save(s.ConfigPath, cfg)
}

func (s SettingsStore) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/settings", func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimSpace(s.ConfigPath) == "" {
			respondError(w, http.StatusNotImplemented, "settings not available (no config path)")
			return
		}

		switch r.Method {
		case http.MethodGet:
			cfg, err := s.load()
			if err != nil {
				respondError(w, http.StatusInternalServerError, fmt.Sprintf("load failed: %v", err))
				return
			}
			respondData(w, configToSettingsPayload(cfg))
			return

		case http.MethodPost:
			if ct := strings.TrimSpace(r.Header.Get("Content-Type")); ct != "application/json" {
				respondError(w, http.StatusUnsupportedMediaType, "content-type must be application/json")
				return
			}

			// Small config payload; cap to prevent unbounded reads.
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MiB
			body, err := io.ReadAll(r.Body)
			if err != nil {
				respondError(w, http.StatusBadRequest, fmt.Sprintf("read failed: %v", err))
				return
			}
			p, err := decodeSettingsPayloadInStrict(body)
			if err != nil {
				respondError(w, http.StatusBadRequest, err.Error())
				return
			}

			oldCfg, err := s.load()
			if err != nil {
				respondError(w, http.StatusInternalServerError, fmt.Sprintf("load failed: %v", err))
				return
			}

			cfg := oldCfg
			if err := applySettingsPayload(&cfg, p); err != nil {
				respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid settings: %v", err))
				return
			}
			if err := config.DefaultAndValidate(&cfg); err != nil {
				respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid config: %v", err))
				return
			}

			if s.Apply != nil {
				if err := s.Apply(cfg); err != nil {
					respondError(w, http.StatusBadRequest, fmt.Sprintf("apply failed: %v", err))
					return
				}
			}

			if err := s.save(cfg); err != nil {
				// Best-effort rollback to keep runtime consistent with disk.
				if s.Apply != nil {
					_ = s.Apply(oldCfg)
				}
				respondError(w, http.StatusInternalServerError, fmt.Sprintf("save failed: %v", err))
				return
			}

			respondData(w, configToSettingsPayload(cfg))
			return
		default:
			w.Header().Set("Allow", "GET, POST")
			respondError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
	})

	return mux
}
