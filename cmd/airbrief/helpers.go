package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/cmkoo/airbrief/internal/config"
	"github.com/cmkoo/airbrief/internal/logging"
	"github.com/cmkoo/airbrief/internal/notam"
	"github.com/cmkoo/airbrief/internal/store"
)

const tableTimeFormat = "2006-01-02 15:04"

func loadConfig() (config.Config, error) {
	return config.Load(globalFlags.ConfigPath)
}

func storePath(cfg config.Config) string {
	return filepath.Join(cfg.DataDir, "airbrief.db")
}

func openStore(cfg config.Config) (*store.Store, error) {
	return store.Open(storePath(cfg))
}

// cliLogger builds a human-readable stderr logger for the one-shot commands.
// The daemon uses the JSON file logger instead.
func cliLogger(level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logging.ParseLevel(level),
	}))
}

func resolverFor(cfg config.Config) notam.Resolver {
	if cfg.NOTAM.FailClosed {
		return notam.Resolver{Policy: notam.FailClosed}
	}
	return notam.Resolver{Policy: notam.FailOpen}
}

// printSimpleTable renders rows in the house table style: full border,
// left-aligned, no wrapping.
func printSimpleTable(w io.Writer, headers []string, rows [][]string) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(headers)
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAutoWrapText(false)
	for _, row := range rows {
		tw.Append(row)
	}
	tw.Render()
}

// normalizeICAOs upper-cases the codes and removes duplicates while
// preserving order.
func normalizeICAOs(args []string) ([]string, error) {
	seen := make(map[string]bool)
	out := make([]string, 0, len(args))
	for _, a := range args {
		icao := strings.ToUpper(strings.TrimSpace(a))
		if len(icao) != 4 {
			return nil, fmt.Errorf("invalid ICAO code %q", a)
		}
		if seen[icao] {
			continue
		}
		seen[icao] = true
		out = append(out, icao)
	}
	return out, nil
}

// clip shortens s to max bytes for table cells, collapsing newlines first.
func clip(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if max <= 3 || len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func formatStamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(tableTimeFormat)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return "-"
}
