package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/cmkoo/airbrief/internal/track"
)

var tracksCmd = &cobra.Command{
	Use:   "tracks",
	Short: "Inspect archived flight tracks",
}

var tracksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived tracks with their time spans",
	Args:  cobra.NoArgs,
	RunE:  runTracksList,
}

var tracksShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one track's summary and most recent points",
	Args:  cobra.ExactArgs(1),
	RunE:  runTracksShow,
}

var tracksDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove one aircraft's archived track segments",
	Args:  cobra.ExactArgs(1),
	RunE:  runTracksDelete,
}

func init() {
	tracksCmd.AddCommand(tracksListCmd)
	tracksCmd.AddCommand(tracksShowCmd)
	tracksCmd.AddCommand(tracksDeleteCmd)
	rootCmd.AddCommand(tracksCmd)
}

func runTracksList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ids, err := st.TrackIDs()
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		points, err := st.TrackHistory(id)
		if err != nil {
			return err
		}
		if len(points) == 0 {
			continue
		}
		first := time.UnixMilli(points[0].TimestampMs()).UTC()
		last := time.UnixMilli(points[len(points)-1].TimestampMs()).UTC()
		rows = append(rows, []string{
			id,
			strconv.Itoa(len(points)),
			formatStamp(first),
			formatStamp(last),
			last.Sub(first).Round(time.Second).String(),
		})
	}

	printSimpleTable(cmd.OutOrStdout(),
		[]string{"ID", "POINTS", "FIRST", "LAST", "SPAN"}, rows)
	fmt.Fprintf(cmd.OutOrStdout(), "%d archived tracks\n", len(rows))
	return nil
}

func runTracksShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	id := args[0]
	history, err := st.TrackHistory(id)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return fmt.Errorf("no archived track %s", id)
	}

	points := track.TrimGroundNoise(history, 0)
	out := cmd.OutOrStdout()

	rows := [][]string{
		{"ID", id},
		{"Points", strconv.Itoa(len(points))},
	}
	if summary, ok := track.Summarize(points, time.Now().UTC()); ok {
		rows = append(rows,
			[]string{"Start", formatStamp(time.UnixMilli(summary.StartMs).UTC())},
			[]string{"End", formatStamp(time.UnixMilli(summary.EndMs).UTC())},
			[]string{"Duration", fmt.Sprintf("%d min", summary.DurationMinutes)},
			[]string{"Altitude delta", fmt.Sprintf("%.0f ft", summary.AltitudeDeltaFt)},
			[]string{"Recent", strconv.FormatBool(summary.Recent)},
		)
	}
	printSimpleTable(out, []string{"FIELD", "VALUE"}, rows)

	tail := points
	if len(tail) > 10 {
		tail = tail[len(tail)-10:]
	}
	pointRows := make([][]string, 0, len(tail))
	for _, p := range tail {
		alt := "-"
		if p.HasAltitude() {
			alt = fmt.Sprintf("%.0f", p.AltitudeFt())
		}
		gs := "-"
		if p.GroundKt != nil {
			gs = fmt.Sprintf("%.0f", *p.GroundKt)
		}
		pointRows = append(pointRows, []string{
			formatStamp(time.UnixMilli(p.TimestampMs()).UTC()),
			fmt.Sprintf("%.4f", p.Lat),
			fmt.Sprintf("%.4f", p.Lon),
			alt,
			gs,
		})
	}
	fmt.Fprintln(out)
	printSimpleTable(out, []string{"TIME", "LAT", "LON", "ALT FT", "GS KT"}, pointRows)
	return nil
}

func runTracksDelete(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	id := args[0]
	history, err := st.TrackHistory(id)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return fmt.Errorf("no archived track %s", id)
	}
	if err := st.DeleteTrack(id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted track %s (%d points)\n", id, len(history))
	return nil
}
