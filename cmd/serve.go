package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/assayfit-cli/internal/metrics"
	"github.com/KaramelBytes/assayfit-cli/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the upload endpoints over HTTP",
	Long: `Serve /plot_kinetic, /plotit and /plot_temperature for browser uploads, plus
/healthz, /metrics and, when history_db is set, /api/history.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := currentConfig()
		addr := listenAddr(cmd.Flags().Changed("addr"), serveAddr, c.ListenAddr)

		opt, err := tableOptions(c, "", "", "")
		if err != nil {
			return err
		}
		a, closeDiag, err := newAnalyzer(c, opt)
		if err != nil {
			return err
		}
		defer closeDiag()

		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		fm, err := metrics.NewFitMetrics(registry)
		if err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		a.Recorder = fm

		hist, err := openHistory(c)
		if err != nil {
			return err
		}
		if hist != nil {
			defer hist.Close()
			slog.Info("fit history enabled", "db", c.HistoryDB)
		}

		srv := server.New(a, server.Options{
			CORSOrigins: c.CORSOrigins,
			MaxUploadMB: c.MaxUploadMB,
			ChartSize:   chartSize(c),
		}, hist, fm, slog.Default())

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.Run(ctx, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, or :$PORT)")
}

// listenAddr picks the flag value, then $PORT, then the configured address.
func listenAddr(flagSet bool, flagVal, configured string) string {
	if flagSet && flagVal != "" {
		return flagVal
	}
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	if configured != "" {
		return configured
	}
	return ":5002"
}

