package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

func TestLoad_RequiresDataDir(t *testing.T) {
	path := writeTempConfig(t, "listen: ':8040'\n")
	_, err := Load(path)
	requireErrEq(t, err, "data_dir is required")
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeTempConfig(t, "data_dir: '/tmp/airbrief'\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Listen != ":8040" {
		t.Fatalf("listen=%q want :8040", cfg.Listen)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("log level=%q want info", cfg.Log.Level)
	}
	if cfg.Log.File != filepath.Join("/tmp/airbrief", "airbrief.log") {
		t.Fatalf("log file=%q", cfg.Log.File)
	}
	if cfg.NOTAM.FIR != "RKRR" {
		t.Fatalf("fir=%q want RKRR", cfg.NOTAM.FIR)
	}
	if len(cfg.NOTAM.Airports) != len(DefaultAirports) {
		t.Fatalf("airports=%d want %d", len(cfg.NOTAM.Airports), len(DefaultAirports))
	}
	if cfg.NOTAM.Interval != 5*time.Minute {
		t.Fatalf("interval=%s want 5m", cfg.NOTAM.Interval)
	}
	if cfg.NOTAM.DefaultPeriod != "current" {
		t.Fatalf("default_period=%q want current", cfg.NOTAM.DefaultPeriod)
	}
	if cfg.NOTAM.Username != "" || cfg.NOTAM.Password != "" {
		t.Fatalf("credentials must have no defaults")
	}
	if cfg.Weather.CacheTTL != 5*time.Minute {
		t.Fatalf("weather cache_ttl=%s want 5m", cfg.Weather.CacheTTL)
	}
	if cfg.Track.MaxAircraft != 200 || cfg.Track.MaxPoints != 1800 {
		t.Fatalf("track caps=%d/%d want 200/1800", cfg.Track.MaxAircraft, cfg.Track.MaxPoints)
	}

	// Simulator defaults should be populated even if feed.sim is absent.
	if cfg.Feed.Sim.Count <= 0 || cfg.Feed.Sim.RadiusNm <= 0 || cfg.Feed.Sim.Period <= 0 {
		t.Fatalf("expected sim defaults applied")
	}
}

func TestLoad_CredentialsMustBePaired(t *testing.T) {
	path := writeTempConfig(t, "data_dir: '/tmp/a'\nnotam:\n  username: someone\n")
	_, err := Load(path)
	requireErrEq(t, err, "notam.username and notam.password must be set together")
}

func TestLoad_FeedSourceValidation(t *testing.T) {
	cases := []struct {
		name  string
		extra string
		want  string
	}{
		{
			name:  "UnknownSource",
			extra: "feed:\n  source: radio\n",
			want:  "feed.source must be one of file, tcp, exec, sim",
		},
		{
			name:  "FileRequiresPath",
			extra: "feed:\n  source: file\n",
			want:  "feed.path is required when feed.source is 'file'",
		},
		{
			name:  "TcpRequiresAddr",
			extra: "feed:\n  source: tcp\n",
			want:  "feed.addr is required when feed.source is 'tcp'",
		},
		{
			name:  "ExecRequiresCommand",
			extra: "feed:\n  source: exec\n",
			want:  "feed.command is required when feed.source is 'exec'",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := "data_dir: '/tmp/a'\n" + tc.extra
			path := writeTempConfig(t, body)
			_, err := Load(path)
			requireErrEq(t, err, tc.want)
		})
	}
}

func TestLoad_AirportsNormalized(t *testing.T) {
	path := writeTempConfig(t, "data_dir: '/tmp/a'\nnotam:\n  airports: [' rkss ', 'RKPC']\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.NOTAM.Airports[0] != "RKSS" || cfg.NOTAM.Airports[1] != "RKPC" {
		t.Fatalf("airports=%v want [RKSS RKPC]", cfg.NOTAM.Airports)
	}
}

func TestLoad_BadAirportRejected(t *testing.T) {
	path := writeTempConfig(t, "data_dir: '/tmp/a'\nnotam:\n  airports: ['GIMPO']\n")
	_, err := Load(path)
	requireErrEq(t, err, "notam.airports entries must be 4-letter ICAO codes")
}

func TestLoad_BadPeriodRejected(t *testing.T) {
	path := writeTempConfig(t, "data_dir: '/tmp/a'\nnotam:\n  default_period: weekly\n")
	_, err := Load(path)
	requireErrEq(t, err, "notam.default_period must be one of all, current, 1month, 1year")
}

func TestLoad_IntervalFloor(t *testing.T) {
	path := writeTempConfig(t, "data_dir: '/tmp/a'\nnotam:\n  interval: 10s\n")
	_, err := Load(path)
	requireErrEq(t, err, "notam.interval must be at least 1m")
}

func TestLoad_FlushIdleBelowIntervalRejected(t *testing.T) {
	path := writeTempConfig(t, "data_dir: '/tmp/a'\ntrack:\n  flush_interval: 2m\n  flush_idle: 1m\n")
	_, err := Load(path)
	requireErrEq(t, err, "track.flush_idle must be >= track.flush_interval")
}

func TestLoad_RejectsUnknownField(t *testing.T) {
	path := writeTempConfig(t, "data_dir: '/tmp/a'\nnotam:\n  dest: x\n")
	_, err := Load(path)
	requireErrEq(t, err, "config contains unknown fields: field dest not found in type config.NOTAMConfig")
}

func TestDefaultAndValidate_NilConfig(t *testing.T) {
	requireErrEq(t, DefaultAndValidate(nil), "config is nil")
}

func TestSave_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	cfg := Config{DataDir: dir}
	if err := DefaultAndValidate(&cfg); err != nil {
		t.Fatalf("DefaultAndValidate() error: %v", err)
	}
	cfg.NOTAM.Airports = []string{"RKSS"}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(got.NOTAM.Airports) != 1 || got.NOTAM.Airports[0] != "RKSS" {
		t.Fatalf("airports=%v want [RKSS]", got.NOTAM.Airports)
	}
}
