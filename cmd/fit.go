package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/assayfit-cli/internal/analysis"
	"github.com/KaramelBytes/assayfit-cli/internal/assay"
	"github.com/KaramelBytes/assayfit-cli/internal/chart"
	"github.com/KaramelBytes/assayfit-cli/internal/history"
	"github.com/KaramelBytes/assayfit-cli/internal/utils"
)

var (
	fitLabel     string
	fitOutput    string
	fitFormat    string
	fitExpect    string
	fitDelimiter string
	fitDecimal   string
	fitSheet     string
)

var fitCmd = &cobra.Command{
	Use:   "fit <file>",
	Short: "Fit a kinetic or thermostability export and print the parameters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		format := strings.ToLower(strings.TrimSpace(fitFormat))
		switch format {
		case "text", "json", "yaml":
		default:
			return fmt.Errorf("unsupported --format: %s (use text|json|yaml)", fitFormat)
		}
		var want []assay.LayoutKind
		if fitExpect != "" {
			k, err := assay.ParseLayoutKind(fitExpect)
			if err != nil {
				return err
			}
			want = append(want, k)
		}

		c := currentConfig()
		opt, err := tableOptions(c, fitDelimiter, fitDecimal, fitSheet)
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

		res, err := fitFile(cmd.Context(), a, hist, path, fitLabel, want)
		if err != nil {
			return err
		}
		if fitOutput != "" {
			if err := writeOutputs(fitOutput, res, chartSize(c)); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		switch format {
		case "json":
			b, err := utils.PrettyJSON(summary(res))
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
		case "yaml":
			b, err := yaml.Marshal(summary(res))
			if err != nil {
				return fmt.Errorf("marshal yaml: %w", err)
			}
			fmt.Fprint(out, string(b))
		default:
			printResult(out, res)
			if fitOutput != "" {
				fmt.Fprintf(out, "✓ Wrote result.json and %d chart(s) to %s\n", len(res.Charts), fitOutput)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fitCmd)
	fitCmd.Flags().StringVarP(&fitLabel, "label", "l", "", "variant name shown in charts (X0X is shown as WT)")
	fitCmd.Flags().StringVarP(&fitOutput, "output", "o", "", "directory for result.json and PNG charts")
	fitCmd.Flags().StringVarP(&fitFormat, "format", "f", "text", "stdout format: text|json|yaml")
	fitCmd.Flags().StringVar(&fitExpect, "expect", "", "fail unless the layout is kinetic|thermo-vertical|thermo-horizontal")
	fitCmd.Flags().StringVar(&fitDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (auto-detect if omitted)")
	fitCmd.Flags().StringVar(&fitDecimal, "decimal", "", "decimal separator: '.'|'comma' (overrides config)")
	fitCmd.Flags().StringVar(&fitSheet, "sheet", "", "XLSX: sheet name (first sheet if omitted)")
}

// fitFile runs the pipeline on one file and records it in hist when set.
func fitFile(ctx context.Context, a *analysis.Analyzer, hist *history.Store, path, label string, want []assay.LayoutKind) (*analysis.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	res, err := a.Analyze(analysis.Input{Name: filepath.Base(path), Data: data, Label: label, Want: want})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if hist != nil {
		if err := hist.Save(ctx, res); err != nil {
			slog.Warn("history save failed", "run_id", res.RunID, "error", err)
		}
	}
	return res, nil
}

// summary is the flat key set printed by --format json|yaml.
func summary(res *analysis.Result) map[string]any {
	m := res.Fields()
	m["label"] = res.Label
	m["points"] = res.Points
	if res.Source != "" {
		m["source"] = res.Source
	}
	if len(res.Warnings) > 0 {
		m["warnings"] = res.Warnings
	}
	return m
}

// writeOutputs writes result.json and one PNG per chart into dir.
func writeOutputs(dir string, res *analysis.Result, size chart.Size) error {
	if err := utils.EnsureDir(dir); err != nil {
		return err
	}
	// chart specs are written as images only
	flat := *res
	flat.Charts = nil
	b, err := utils.PrettyJSON(&flat)
	if err != nil {
		return err
	}
	if err := utils.SafeWriteFile(filepath.Join(dir, "result.json"), b); err != nil {
		return err
	}
	for _, nc := range res.Charts {
		var buf bytes.Buffer
		if err := chart.Render(nc.Spec, size, &buf); err != nil {
			return fmt.Errorf("render %s: %w", nc.Key, err)
		}
		if err := utils.SafeWriteFile(filepath.Join(dir, nc.Key+".png"), buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

func printResult(w io.Writer, res *analysis.Result) {
	fmt.Fprintf(w, "✓ %s: %s layout, %d points (run %s)\n", res.Label, res.Layout, res.Points, res.RunID)
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "⚠ Warning: %s\n", warn)
	}
	if k := res.Kinetic; k != nil {
		if k.HighKM {
			fmt.Fprintf(w, "  KM above %.0f mM: saturation not reached, kcat and KM not reported\n", assay.HighKMThreshold)
		}
		fmt.Fprintf(w, "  kcat:     %s 1/min\n", pm(k.Kcat, k.KcatSD, 2))
		fmt.Fprintf(w, "  KM:       %s mM\n", pm(k.KM, k.KMSD, 3))
		fmt.Fprintf(w, "  kcat/KM:  %s 1/(mM·min)\n", pm(k.KcatOverKM, k.KcatOverKMSD, 3))
		fmt.Fprintf(w, "  vmax:     %s mM/min\n", pm(k.Vmax, k.VmaxSD, 5))
		rp := k.Reciprocal
		if rp.Fallback {
			fmt.Fprintln(w, "  Lineweaver-Burk: no converging fit")
		} else {
			fmt.Fprintf(w, "  Lineweaver-Burk: KM %s mM, vmax %s mM/min (%d points, %d removed)\n",
				pm(rp.KM, nil, 3), pm(rp.Vmax, nil, 5), rp.Points, rp.RemovedPoints)
		}
	}
	if th := res.Thermo; th != nil {
		fmt.Fprintf(w, "  T50:      %s °C\n", pm(th.T50, th.T50SD, 2))
		fmt.Fprintf(w, "  k:        %s 1/°C\n", pm(th.K, th.KSD, 3))
	}
}

func pm(v, sd *float64, prec int) string {
	if v == nil {
		return "n/a"
	}
	if sd == nil {
		return fmt.Sprintf("%.*f", prec, *v)
	}
	return fmt.Sprintf("%.*f ± %.*f", prec, *v, prec, *sd)
}
