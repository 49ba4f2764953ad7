package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/assayfit-cli/internal/assay"
	"github.com/KaramelBytes/assayfit-cli/internal/table"
)

var (
	detDelimiter string
	detSheet     string
)

var detectCmd = &cobra.Command{
	Use:   "detect <file>",
	Short: "Print the detected layout of an export and how many points it yields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		opt, err := tableOptions(currentConfig(), detDelimiter, "", detSheet)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		t, err := table.Read(filepath.Base(path), data, opt)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		kind, err := assay.Detect(t)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %s\n", filepath.Base(path), kind)
		s, err := assay.Extract(t, kind)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  usable points: %d of %d\n", s.Len(), len(s.Mask))
		for _, w := range s.Warnings {
			fmt.Fprintf(out, "⚠ Warning: %s\n", w)
		}
		if kind == assay.KineticAssay {
			uc, err := assay.ReadUnitContext(t)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "  slope unit: %s, yield: %g %s, dilution: %g\n", uc.SlopeUnit, uc.Yield, uc.YieldUnit, uc.Dilution)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(detectCmd)
	detectCmd.Flags().StringVar(&detDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (auto-detect if omitted)")
	detectCmd.Flags().StringVar(&detSheet, "sheet", "", "XLSX: sheet name (first sheet if omitted)")
}
