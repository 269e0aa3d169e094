// Command airbrief is a self-hosted aeronautical briefing daemon and its
// operator CLI. It ingests NOTAMs and flight boards for a configured set of
// Korean aerodromes, archives them locally, resolves NOTAM validity, records
// live aircraft position feeds into per-flight tracks, and serves the lot
// over an HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// globalFlags holds the parsed values of the persistent flags. Every command
// starts from the config file it names.
var globalFlags struct {
	ConfigPath string
}

// rootCmd is the base command. Running `airbrief` with no subcommand prints
// help.
var rootCmd = &cobra.Command{
	Use:   "airbrief",
	Short: "airbrief is a self-hosted briefing service for Korean airspace",
	Long: `airbrief ingests NOTAMs and departure/arrival boards for a configured set
of Korean aerodromes from the UBIKAIS portal, archives them locally, resolves
each NOTAM's validity and lifecycle state, records live aircraft position
feeds into per-flight tracks, and serves everything over an HTTP API.

Quick start:
  airbrief serve --config airbrief.yaml    # run the daemon
  airbrief fetch RKSI                      # one-shot ingest for Incheon
  airbrief notam list --location RKSI      # archived NOTAMs with validity`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalFlags.ConfigPath, "config", "airbrief.yaml",
		"path to the YAML config file")
}
