package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/assayfit-cli/internal/history"
	"github.com/KaramelBytes/assayfit-cli/internal/utils"
)

var (
	histLabel string
	histLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List recorded fits, or show one by run id",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := currentConfig()
		store, err := openHistory(c)
		if err != nil {
			return err
		}
		if store == nil {
			return fmt.Errorf("fit history is disabled (set history_db or pass --history-db)")
		}
		defer store.Close()
		out := cmd.OutOrStdout()

		if len(args) == 1 {
			rec, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			b, err := utils.PrettyJSON(rec)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}

		recs, err := store.List(cmd.Context(), histLabel, histLimit)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Fprintln(out, "(no fits recorded)")
			return nil
		}
		for _, r := range recs {
			fmt.Fprintf(out, "- %s  %s  %-20s %-18s %s\n", r.CreatedAt.Local().Format("2006-01-02 15:04"), r.RunID, r.Label, r.Layout, headline(r))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVar(&histLabel, "label", "", "only fits with this label")
	historyCmd.Flags().IntVar(&histLimit, "limit", history.DefaultLimit, "maximum number of fits to list")
}

// headline is the one-line parameter summary of a record.
func headline(r history.Record) string {
	switch {
	case r.T50 != nil:
		return fmt.Sprintf("T50=%s k=%s", pm(r.T50, nil, 2), pm(r.K, nil, 3))
	case r.HighKM:
		return fmt.Sprintf("kcat/KM=%s (high KM)", pm(r.KcatOverKM, nil, 3))
	default:
		return fmt.Sprintf("kcat=%s KM=%s", pm(r.Kcat, nil, 2), pm(r.KM, nil, 3))
	}
}
