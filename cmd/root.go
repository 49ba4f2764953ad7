package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/assayfit-cli/internal/analysis"
	"github.com/KaramelBytes/assayfit-cli/internal/chart"
	cfgpkg "github.com/KaramelBytes/assayfit-cli/internal/config"
	"github.com/KaramelBytes/assayfit-cli/internal/diagnostics"
	"github.com/KaramelBytes/assayfit-cli/internal/history"
	"github.com/KaramelBytes/assayfit-cli/internal/table"
)

var (
	// Global flags
	cfgFile      string
	debug        bool
	flagLogLevel string
	flagDebugLog string
	flagHistory  string

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "assayfit",
	Short: "assayfit: fit enzyme kinetics and thermostability from plate-reader exports",
	Long: `assayfit reads kinetic and thermostability exports from a plate reader (CSV or XLSX),
fits Michaelis-Menten, Lineweaver-Burk and logistic models, and reports the parameters
with charts, either from the command line or as an HTTP service.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	// Initialize configuration before executing commands
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent global flags available to all subcommands
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.assayfit/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output (same as --log-level debug)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagDebugLog, "debug-log", "", "write fit diagnostics to this file (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagHistory, "history-db", "", "sqlite file recording every successful fit (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: fall back to defaults
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		c = cfgpkg.Defaults()
	}
	cfg = c

	// Apply CLI overrides if provided
	f := rootCmd.PersistentFlags()
	if f.Changed("log-level") && flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if debug {
		cfg.LogLevel = "debug"
	}
	if f.Changed("debug-log") {
		cfg.DebugLog = flagDebugLog
	}
	if f.Changed("history-db") {
		cfg.HistoryDB = flagHistory
	}
	setupLogging(cfg.LogLevel)
}

// currentConfig returns the loaded configuration, loading it on first use.
func currentConfig() *cfgpkg.Global {
	if cfg == nil {
		loadConfig()
	}
	return cfg
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func setupLogging(level string) {
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(level)})
	slog.SetDefault(slog.New(h))
}

// tableOptions maps the configuration and per-command overrides onto the
// table reader settings.
func tableOptions(c *cfgpkg.Global, delimiter, decimal, sheet string) (table.Options, error) {
	opt := table.DefaultOptions()
	if c.CSVEncoding != "" {
		opt.Encoding = c.CSVEncoding
	}
	opt.DecimalSeparator = c.DecimalRune()
	switch delimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", delimiter)
	}
	switch strings.ToLower(strings.TrimSpace(decimal)) {
	case ",", "comma":
		opt.DecimalSeparator = ','
	case ".", "dot":
		opt.DecimalSeparator = '.'
	case "":
	default:
		return opt, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", decimal)
	}
	opt.Sheet = sheet
	return opt, nil
}

func chartSize(c *cfgpkg.Global) chart.Size {
	size := chart.Size{Width: c.ChartWidth, Height: c.ChartHeight}
	if size.Width <= 0 || size.Height <= 0 {
		return chart.DefaultSize
	}
	return size
}

// newAnalyzer builds the pipeline with the configured diagnostics sink. The
// returned function closes the sink.
func newAnalyzer(c *cfgpkg.Global, opt table.Options) (*analysis.Analyzer, func() error, error) {
	diag, closeDiag, err := diagnostics.Open(c.DebugLog, c.DebugLogMaxMB)
	if err != nil {
		return nil, nil, err
	}
	a := analysis.NewAnalyzer()
	a.Table = opt
	a.Diagnostics = diag
	return a, closeDiag, nil
}

// openHistory returns nil when no history database is configured.
func openHistory(c *cfgpkg.Global) (*history.Store, error) {
	if c.HistoryDB == "" {
		return nil, nil
	}
	return history.Open(c.HistoryDB)
}
