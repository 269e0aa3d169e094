package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cmkoo/airbrief/internal/notam"
	"github.com/cmkoo/airbrief/internal/store"
)

var notamCmd = &cobra.Command{
	Use:   "notam",
	Short: "Inspect archived NOTAMs",
}

var (
	notamLocation string
	notamPeriod   string
	notamAll      bool
)

var notamListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived NOTAMs with their resolved validity",
	Example: `  airbrief notam list
  airbrief notam list --location RKSI --period 1month
  airbrief notam list --all`,
	Args: cobra.NoArgs,
	RunE: runNOTAMList,
}

var notamShowCmd = &cobra.Command{
	Use:   "show <number>",
	Short: "Show one archived NOTAM in full",
	Args:  cobra.ExactArgs(1),
	RunE:  runNOTAMShow,
}

func init() {
	notamListCmd.Flags().StringVar(&notamLocation, "location", "",
		"restrict the listing to one ICAO location")
	notamListCmd.Flags().StringVar(&notamPeriod, "period", "",
		"reporting window: all|current|1month|1year (default from config)")
	notamListCmd.Flags().BoolVar(&notamAll, "all", false,
		"include cancelled, expired, and cancellation records")
	notamCmd.AddCommand(notamListCmd)
	notamCmd.AddCommand(notamShowCmd)
	rootCmd.AddCommand(notamCmd)
}

func runNOTAMList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	choice := notamPeriod
	if choice == "" {
		choice = cfg.NOTAM.DefaultPeriod
	}
	period, ok := notam.ParsePeriod(choice)
	if !ok {
		return fmt.Errorf("period must be one of all, current, 1month, 1year")
	}

	var batches []store.NOTAMBatch
	if notamLocation != "" {
		icao := strings.ToUpper(strings.TrimSpace(notamLocation))
		batch, found, err := st.GetNOTAMBatch(icao)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("no stored batch for %s", icao)
		}
		batches = []store.NOTAMBatch{batch}
	} else {
		batches, err = st.AllNOTAMBatches()
		if err != nil {
			return err
		}
	}

	res := resolverFor(cfg)
	now := time.Now().UTC()
	var rows [][]string
	for _, batch := range batches {
		cancelled := notam.BuildCancelledSet(batch.Records)
		for _, a := range res.Annotate(batch.Records, now) {
			if !notamAll && !res.InPeriod(a.Record, period, cancelled, now) {
				continue
			}
			rows = append(rows, []string{
				a.Number,
				batch.Location,
				string(a.Effect),
				validityLabel(a, now),
				formatStamp(a.Start),
				notamEndLabel(a),
				clip(a.Text, 56),
			})
		}
	}

	printSimpleTable(cmd.OutOrStdout(),
		[]string{"NUMBER", "LOCATION", "EFFECT", "VALIDITY", "FROM", "TO", "TEXT"}, rows)
	fmt.Fprintf(cmd.OutOrStdout(), "%d records (period %s)\n", len(rows), period)
	return nil
}

func runNOTAMShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	number := strings.ToUpper(strings.TrimSpace(args[0]))
	batches, err := st.AllNOTAMBatches()
	if err != nil {
		return err
	}

	res := resolverFor(cfg)
	now := time.Now().UTC()
	for _, batch := range batches {
		for _, a := range res.Annotate(batch.Records, now) {
			if a.Number != number {
				continue
			}
			out := cmd.OutOrStdout()
			printSimpleTable(out, []string{"FIELD", "VALUE"}, [][]string{
				{"Number", a.Number},
				{"Location", batch.Location},
				{"Series", firstNonEmpty(a.Series)},
				{"Q code", firstNonEmpty(a.QCode)},
				{"Effect", string(a.Effect)},
				{"Validity", validityLabel(a, now)},
				{"From", formatStamp(a.Start)},
				{"To", notamEndLabel(a)},
				{"Schedule", firstNonEmpty(a.Schedule)},
				{"Issued", firstNonEmpty(a.IssuedAt)},
				{"Fetched", formatStamp(batch.FetchedAt)},
			})
			if text := strings.TrimSpace(a.Text); text != "" {
				fmt.Fprintln(out)
				fmt.Fprintln(out, text)
			}
			return nil
		}
	}
	return fmt.Errorf("no archived NOTAM %s", number)
}

// validityLabel renders the resolved lifecycle state for tables. Hidden
// records get a reason instead of a blank cell.
func validityLabel(a notam.Annotated, now time.Time) string {
	switch {
	case a.Effect == notam.EffectCancel:
		return "cancellation"
	case a.Cancelled:
		return "cancelled"
	case a.Validity == notam.ValidityActive:
		return "active"
	case a.Validity == notam.ValidityFuture:
		return "future"
	case !a.End.IsZero() && now.After(a.End):
		return "expired"
	default:
		return "-"
	}
}

func notamEndLabel(a notam.Annotated) string {
	switch {
	case a.Permanent:
		return "PERM"
	case a.End.IsZero():
		if a.EndEstimated {
			return "EST"
		}
		return "-"
	case a.EndEstimated:
		return formatStamp(a.End) + " EST"
	default:
		return formatStamp(a.End)
	}
}
