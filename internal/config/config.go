package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Listen  string        `yaml:"listen"`
	DataDir string        `yaml:"data_dir"`
	Log     LogConfig     `yaml:"log"`
	NOTAM   NOTAMConfig   `yaml:"notam"`
	Weather WeatherConfig `yaml:"weather"`
	Feed    FeedConfig    `yaml:"feed"`
	Track   TrackConfig   `yaml:"track"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

type NOTAMConfig struct {
	BaseURL string `yaml:"base_url"`
	// Portal credentials. No defaults; fetching is disabled without them.
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	FIR           string        `yaml:"fir"`
	Series        []string      `yaml:"series"`
	Airports      []string      `yaml:"airports"`
	Interval      time.Duration `yaml:"interval"`
	RatePerSec    float64       `yaml:"rate_per_sec"`
	Timeout       time.Duration `yaml:"timeout"`
	DefaultPeriod string        `yaml:"default_period"`
	FailClosed    bool          `yaml:"fail_closed"`
}

type WeatherConfig struct {
	BaseURL  string        `yaml:"base_url"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
	Timeout  time.Duration `yaml:"timeout"`
}

type FeedConfig struct {
	Source   string        `yaml:"source"`
	Path     string        `yaml:"path"`
	Addr     string        `yaml:"addr"`
	Interval time.Duration `yaml:"interval"`
	Command  string        `yaml:"command"`
	Args     []string      `yaml:"args"`
	Sim      SimConfig     `yaml:"sim"`
}

type SimConfig struct {
	Count        int           `yaml:"count"`
	CenterLatDeg float64       `yaml:"center_lat_deg"`
	CenterLonDeg float64       `yaml:"center_lon_deg"`
	RadiusNm     float64       `yaml:"radius_nm"`
	Period       time.Duration `yaml:"period"`
	GroundKt     int           `yaml:"ground_kt"`
	AltFeet      int           `yaml:"alt_feet"`
}

type TrackConfig struct {
	MaxAircraft   int           `yaml:"max_aircraft"`
	MaxPoints     int           `yaml:"max_points"`
	LiveTTL       time.Duration `yaml:"live_ttl"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	FlushIdle     time.Duration `yaml:"flush_idle"`
}

// DefaultAirports is the aerodrome set fetched when the config names none.
var DefaultAirports = []string{
	"RKSI", "RKSS", "RKPC", "RKPK", "RKTN",
	"RKTU", "RKJJ", "RKJB", "RKJY", "RKNY",
	"RKPU", "RKTH", "RKJK", "RKNW", "RKPS",
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		var te *yaml.TypeError
		if errors.As(err, &te) {
			return Config{}, fmt.Errorf("config contains unknown fields: %s", strings.Join(stripLinePrefixes(te.Errors), "; "))
		}
		return Config{}, err
	}

	if err := DefaultAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// stripLinePrefixes drops the "line N: " prefix yaml puts on each TypeError
// entry so config errors read the same regardless of file layout.
func stripLinePrefixes(errs []string) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		if strings.HasPrefix(e, "line ") {
			if i := strings.Index(e, ": "); i >= 0 {
				e = e[i+2:]
			}
		}
		out = append(out, e)
	}
	return out
}

// DefaultAndValidate fills zero values and rejects contradictory settings.
// It is called by Load and again by the settings endpoint before applying an
// edited config.
func DefaultAndValidate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if cfg.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if cfg.Listen == "" {
		cfg.Listen = ":8040"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	if cfg.Log.File == "" {
		cfg.Log.File = filepath.Join(cfg.DataDir, "airbrief.log")
	}
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = 10
	}
	if cfg.Log.MaxBackups <= 0 {
		cfg.Log.MaxBackups = 3
	}

	if cfg.NOTAM.BaseURL == "" {
		cfg.NOTAM.BaseURL = "https://ubikais.fois.go.kr:8030"
	}
	if cfg.NOTAM.FIR == "" {
		cfg.NOTAM.FIR = "RKRR"
	}
	if len(cfg.NOTAM.Series) == 0 {
		cfg.NOTAM.Series = []string{"C", "A", "D"}
	}
	for _, s := range cfg.NOTAM.Series {
		if len(s) != 1 || s[0] < 'A' || s[0] > 'Z' {
			return fmt.Errorf("notam.series entries must be single letters A-Z")
		}
	}
	if len(cfg.NOTAM.Airports) == 0 {
		cfg.NOTAM.Airports = append([]string(nil), DefaultAirports...)
	}
	for i, ap := range cfg.NOTAM.Airports {
		ap = strings.ToUpper(strings.TrimSpace(ap))
		if len(ap) != 4 {
			return fmt.Errorf("notam.airports entries must be 4-letter ICAO codes")
		}
		cfg.NOTAM.Airports[i] = ap
	}
	if cfg.NOTAM.Interval <= 0 {
		cfg.NOTAM.Interval = 5 * time.Minute
	}
	if cfg.NOTAM.Interval < time.Minute {
		return fmt.Errorf("notam.interval must be at least 1m")
	}
	if cfg.NOTAM.RatePerSec <= 0 {
		cfg.NOTAM.RatePerSec = 2
	}
	if cfg.NOTAM.Timeout <= 0 {
		cfg.NOTAM.Timeout = 15 * time.Second
	}
	if cfg.NOTAM.DefaultPeriod == "" {
		cfg.NOTAM.DefaultPeriod = "current"
	}
	switch cfg.NOTAM.DefaultPeriod {
	case "all", "current", "1month", "1year":
	default:
		return fmt.Errorf("notam.default_period must be one of all, current, 1month, 1year")
	}
	if (cfg.NOTAM.Username == "") != (cfg.NOTAM.Password == "") {
		return fmt.Errorf("notam.username and notam.password must be set together")
	}

	if cfg.Weather.BaseURL == "" {
		cfg.Weather.BaseURL = "https://aviationweather.gov/api/data"
	}
	if cfg.Weather.CacheTTL <= 0 {
		cfg.Weather.CacheTTL = 5 * time.Minute
	}
	if cfg.Weather.Timeout <= 0 {
		cfg.Weather.Timeout = 10 * time.Second
	}

	switch cfg.Feed.Source {
	case "", "file", "tcp", "exec", "sim":
	default:
		return fmt.Errorf("feed.source must be one of file, tcp, exec, sim")
	}
	if cfg.Feed.Source == "file" && cfg.Feed.Path == "" {
		return fmt.Errorf("feed.path is required when feed.source is 'file'")
	}
	if cfg.Feed.Source == "tcp" && cfg.Feed.Addr == "" {
		return fmt.Errorf("feed.addr is required when feed.source is 'tcp'")
	}
	if cfg.Feed.Source == "exec" && cfg.Feed.Command == "" {
		return fmt.Errorf("feed.command is required when feed.source is 'exec'")
	}
	if cfg.Feed.Interval <= 0 {
		cfg.Feed.Interval = 1 * time.Second
	}

	// Simulator defaults (safe even when the sim source is not selected).
	if cfg.Feed.Sim.Count <= 0 {
		cfg.Feed.Sim.Count = 3
	}
	if cfg.Feed.Sim.CenterLatDeg == 0 && cfg.Feed.Sim.CenterLonDeg == 0 {
		// Gimpo.
		cfg.Feed.Sim.CenterLatDeg = 37.5583
		cfg.Feed.Sim.CenterLonDeg = 126.7906
	}
	if cfg.Feed.Sim.RadiusNm <= 0 {
		cfg.Feed.Sim.RadiusNm = 5
	}
	if cfg.Feed.Sim.Period <= 0 {
		cfg.Feed.Sim.Period = 90 * time.Second
	}
	if cfg.Feed.Sim.GroundKt <= 0 {
		cfg.Feed.Sim.GroundKt = 120
	}
	if cfg.Feed.Sim.AltFeet <= 0 {
		cfg.Feed.Sim.AltFeet = 3000
	}

	if cfg.Track.MaxAircraft <= 0 {
		cfg.Track.MaxAircraft = 200
	}
	if cfg.Track.MaxPoints <= 0 {
		cfg.Track.MaxPoints = 1800
	}
	if cfg.Track.LiveTTL <= 0 {
		cfg.Track.LiveTTL = 15 * time.Minute
	}
	if cfg.Track.FlushInterval <= 0 {
		cfg.Track.FlushInterval = 1 * time.Minute
	}
	if cfg.Track.FlushIdle <= 0 {
		cfg.Track.FlushIdle = 5 * time.Minute
	}
	if cfg.Track.FlushIdle < cfg.Track.FlushInterval {
		return fmt.Errorf("track.flush_idle must be >= track.flush_interval")
	}

	return nil
}

// Save writes cfg back to path atomically. Used by the settings endpoint.
func Save(path string, cfg Config) error {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
