package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cmkoo/airbrief/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the briefing daemon",
	Long: `Run the airbrief daemon: periodic NOTAM and flight board ingest, the live
position feed with track archiving, and the HTTP API.

The daemon keeps running until interrupted; SIGINT or SIGTERM triggers a
graceful shutdown that flushes buffered tracks to the archive.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := newDaemon(ctx, globalFlags.ConfigPath)
	if err != nil {
		return err
	}
	defer d.Close()

	d.log.Info("airbrief starting",
		"version", Version,
		"listen", d.cfg.Listen,
		"data_dir", d.cfg.DataDir)

	err = web.Serve(ctx, d.cfg.Listen, d.server.Handler(), d.log.Component("web"))
	d.log.Info("airbrief stopping")
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
