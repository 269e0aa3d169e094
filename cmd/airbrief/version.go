package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version is the canonical release string. The default here is the fallback
// for `go run` and untagged builds; release builds overwrite it via:
//
//	go build -ldflags "-X main.Version=v0.3.0"
var Version = "v0.2.0"

// BuildTime is optionally injected at build time alongside Version:
//
//	-ldflags "-X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var BuildTime = ""

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the airbrief version and build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "airbrief %s\n", Version)
		fmt.Fprintf(out, "go       %s\n", runtime.Version())
		fmt.Fprintf(out, "os       %s/%s\n", runtime.GOOS, runtime.GOARCH)
		if BuildTime != "" {
			fmt.Fprintf(out, "built    %s\n", BuildTime)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
