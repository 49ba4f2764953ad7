package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/assayfit-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set assayfit configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := currentConfig()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "listen_addr: %s\n", c.ListenAddr)
		fmt.Fprintf(out, "cors_origins: %s\n", strings.Join(c.CORSOrigins, ","))
		fmt.Fprintf(out, "max_upload_mb: %d\n", c.MaxUploadMB)
		fmt.Fprintf(out, "csv_encoding: %s\n", c.CSVEncoding)
		fmt.Fprintf(out, "decimal_separator: %s\n", c.DecimalSeparator)
		fmt.Fprintf(out, "chart_width: %d\n", c.ChartWidth)
		fmt.Fprintf(out, "chart_height: %d\n", c.ChartHeight)
		if c.DebugLog != "" {
			fmt.Fprintf(out, "debug_log: %s\n", c.DebugLog)
			fmt.Fprintf(out, "debug_log_max_mb: %d\n", c.DebugLogMaxMB)
		}
		if c.HistoryDB != "" {
			fmt.Fprintf(out, "history_db: %s\n", c.HistoryDB)
		}
		fmt.Fprintf(out, "log_level: %s\n", c.LogLevel)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		c := currentConfig()
		switch key {
		case "listen_addr":
			c.ListenAddr = val
		case "cors_origins":
			var origins []string
			for _, o := range strings.Split(val, ",") {
				if o = strings.TrimSpace(o); o != "" {
					origins = append(origins, o)
				}
			}
			c.CORSOrigins = origins
		case "max_upload_mb", "chart_width", "chart_height", "debug_log_max_mb":
			i, err := strconv.Atoi(val)
			if err != nil || i < 0 {
				return fmt.Errorf("invalid int for %s: %v", key, val)
			}
			switch key {
			case "max_upload_mb":
				c.MaxUploadMB = i
			case "chart_width":
				c.ChartWidth = i
			case "chart_height":
				c.ChartHeight = i
			default:
				c.DebugLogMaxMB = i
			}
		case "csv_encoding":
			c.CSVEncoding = strings.ToLower(val)
		case "decimal_separator":
			switch strings.ToLower(val) {
			case ",", "comma":
				c.DecimalSeparator = ","
			case ".", "dot":
				c.DecimalSeparator = "."
			default:
				return fmt.Errorf("invalid decimal_separator: %s (use '.' or 'comma')", val)
			}
		case "debug_log":
			c.DebugLog = val
		case "history_db":
			c.HistoryDB = val
		case "log_level":
			switch strings.ToLower(val) {
			case "debug", "info", "warn", "error":
				c.LogLevel = strings.ToLower(val)
			default:
				return fmt.Errorf("invalid log_level: %s (use debug|info|warn|error)", val)
			}
		default:
			return fmt.Errorf("unknown key: %s", key)
		}
		if err := c.Validate(); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
