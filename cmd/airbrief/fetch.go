package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cmkoo/airbrief/internal/ingest"
	"github.com/cmkoo/airbrief/internal/ubikais"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [ICAO...]",
	Short: "Run one ingest cycle into the archive",
	Long: `Fetch the current NOTAM batches and flight boards from the UBIKAIS portal
and store them in the archive, then exit. With no arguments the configured
airport set is fetched; naming airports overrides it for this run.

Portal credentials must be configured; there is no anonymous access.`,
	Example: `  airbrief fetch
  airbrief fetch RKSI RKPC`,
	Args: cobra.ArbitraryArgs,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.NOTAM.Username == "" {
		return fmt.Errorf("notam.username and notam.password must be configured to fetch")
	}

	airports := cfg.NOTAM.Airports
	if len(args) > 0 {
		airports, err = normalizeICAOs(args)
		if err != nil {
			return err
		}
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	log := cliLogger(cfg.Log.Level)
	portal, err := ubikais.New(ubikais.Config{
		BaseURL:    cfg.NOTAM.BaseURL,
		Username:   cfg.NOTAM.Username,
		Password:   cfg.NOTAM.Password,
		FIR:        cfg.NOTAM.FIR,
		Series:     cfg.NOTAM.Series,
		RatePerSec: cfg.NOTAM.RatePerSec,
		Timeout:    cfg.NOTAM.Timeout,
	}, log)
	if err != nil {
		return err
	}

	svc := ingest.New(ingest.Config{
		Airports: airports,
		FIR:      cfg.NOTAM.FIR,
		Interval: cfg.NOTAM.Interval,
	}, portal, st, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cycle, err := svc.RunOnce(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(),
		"fetched %d airports (%d failed): %d notams (%d cancelled), %d flights in %s\n",
		cycle.Fetched, cycle.Failed, cycle.Records, cycle.Cancelled, cycle.Flights,
		cycle.Elapsed.Round(time.Millisecond))
	return nil
}
