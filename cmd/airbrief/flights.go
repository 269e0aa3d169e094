package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cmkoo/airbrief/internal/ubikais"
)

var flightsArrivals bool

var flightsCmd = &cobra.Command{
	Use:   "flights <ICAO>",
	Short: "Show a stored departure or arrival board",
	Example: `  airbrief flights RKSI
  airbrief flights RKPC --arrivals`,
	Args: cobra.ExactArgs(1),
	RunE: runFlights,
}

func init() {
	flightsCmd.Flags().BoolVar(&flightsArrivals, "arrivals", false,
		"show the arrival board instead of departures")
	rootCmd.AddCommand(flightsCmd)
}

func runFlights(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	icao := strings.ToUpper(strings.TrimSpace(args[0]))
	dir := ubikais.Departures
	label := "departure"
	if flightsArrivals {
		dir = ubikais.Arrivals
		label = "arrival"
	}

	board, found, err := st.GetFlightBoard(icao, dir)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no stored %s board for %s", label, icao)
	}

	rows := make([][]string, 0, len(board.Flights))
	for _, f := range board.Flights {
		t := firstNonEmpty(f.ATD, f.EOBT)
		if dir == ubikais.Arrivals {
			t = firstNonEmpty(f.ATA, f.ETA, f.STA)
		}
		rows = append(rows, []string{
			firstNonEmpty(f.Callsign, f.Number),
			firstNonEmpty(f.AircraftType),
			firstNonEmpty(f.Registration),
			firstNonEmpty(f.Departure),
			firstNonEmpty(f.Arrival),
			t,
			firstNonEmpty(f.Status),
		})
	}

	out := cmd.OutOrStdout()
	printSimpleTable(out,
		[]string{"CALLSIGN", "TYPE", "REG", "FROM", "TO", "TIME", "STATUS"}, rows)
	fmt.Fprintf(out, "%s %s board: %d flights, fetched %s\n",
		icao, label, len(board.Flights), formatStamp(board.FetchedAt))
	return nil
}
