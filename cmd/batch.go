package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/assayfit-cli/internal/assay"
	"github.com/KaramelBytes/assayfit-cli/internal/utils"
)

var (
	bOutput    string
	bExpect    string
	bDelimiter string
	bDecimal   string
	bSheet     string
	bQuiet     bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <files...>",
	Short: "Fit many exports with progress; writes one result directory per file",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files := expandInputs(args)
		if len(files) == 0 {
			return fmt.Errorf("no input files matched")
		}
		var want []assay.LayoutKind
		if bExpect != "" {
			k, err := assay.ParseLayoutKind(bExpect)
			if err != nil {
				return err
			}
			want = append(want, k)
		}

		c := currentConfig()
		opt, err := tableOptions(c, bDelimiter, bDecimal, bSheet)
		if err != nil {
			return err
		}
		a, closeDiag, err := newAnalyzer(c, opt)
		if err != nil {
			return err
		}
		defer closeDiag()
		hist, err := openHistory(c)
		if err != nil {
			return err
		}
		if hist != nil {
			defer hist.Close()
		}

		out := cmd.OutOrStdout()
		total := len(files)
		var failed []string
		used := map[string]struct{}{}
		for i, path := range files {
			if !bQuiet {
				fmt.Fprintf(out, "[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			res, err := fitFile(cmd.Context(), a, hist, path, "", want)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Warning: %v\n", err)
				failed = append(failed, path)
				continue
			}
			if bOutput != "" {
				dir := uniqueDir(bOutput, utils.SafeName(path), used)
				if err := writeOutputs(dir, res, chartSize(c)); err != nil {
					return err
				}
				if !bQuiet {
					fmt.Fprintf(out, "✓ %s -> %s\n", filepath.Base(path), dir)
				}
			} else if !bQuiet {
				printResult(out, res)
			}
		}
		if !bQuiet {
			fmt.Fprintf(out, "✓ %d of %d files fitted\n", total-len(failed), total)
		}
		if len(failed) > 0 {
			return fmt.Errorf("%d of %d files failed: %v", len(failed), total, failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().StringVarP(&bOutput, "output", "o", "", "directory receiving one result folder per input")
	batchCmd.Flags().StringVar(&bExpect, "expect", "", "count a file as failed unless its layout is kinetic|thermo-vertical|thermo-horizontal")
	batchCmd.Flags().StringVar(&bDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (auto-detect if omitted)")
	batchCmd.Flags().StringVar(&bDecimal, "decimal", "", "decimal separator: '.'|'comma' (overrides config)")
	batchCmd.Flags().StringVar(&bSheet, "sheet", "", "XLSX: sheet name (first sheet if omitted)")
	batchCmd.Flags().BoolVar(&bQuiet, "quiet", false, "suppress progress and non-essential output")
}

// expandInputs resolves globs, keeps literal paths that exist, drops
// duplicates and sorts the result.
func expandInputs(args []string) []string {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			// treat as literal path if exists
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files
}

// uniqueDir returns root/base, or root/base__N for the first N >= 2 not yet
// used in this run or present on disk.
func uniqueDir(root, base string, used map[string]struct{}) string {
	cand := filepath.Join(root, base)
	for idx := 2; ; idx++ {
		_, taken := used[cand]
		_, statErr := os.Stat(cand)
		if !taken && os.IsNotExist(statErr) {
			used[cand] = struct{}{}
			return cand
		}
		cand = filepath.Join(root, fmt.Sprintf("%s__%d", base, idx))
	}
}
