package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write the whole archive to a portable container",
	Long: `Write every stored NOTAM batch, flight board, and track segment to a
single msgpack+zstd container. The conventional suffix is .msgpack.zst.`,
	Example: `  airbrief export backup.msgpack.zst`,
	Args:    cobra.ExactArgs(1),
	RunE:    runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Merge an exported container into the archive",
	Long: `Read a container written by export and merge it into the archive. Existing
entries with the same keys are overwritten; everything else is kept.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	f, err := os.Create(args[0])
	if err != nil {
		return err
	}
	if err := st.Export(f); err != nil {
		f.Close()
		os.Remove(args[0])
		return fmt.Errorf("export failed: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "archive exported to %s\n", args[0])
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	if err := st.Import(f); err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	stats, err := st.Stats()
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(stats))
	for _, bs := range stats {
		rows = append(rows, []string{bs.Name, strconv.Itoa(bs.Count), strconv.FormatInt(bs.Bytes, 10)})
	}
	printSimpleTable(cmd.OutOrStdout(), []string{"BUCKET", "ENTRIES", "BYTES"}, rows)
	return nil
}
