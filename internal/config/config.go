package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	// HTTP service
	ListenAddr  string   `mapstructure:"listen_addr" yaml:"listen_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
	MaxUploadMB int      `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`

	// Table parsing
	CSVEncoding      string `mapstructure:"csv_encoding" yaml:"csv_encoding"`
	DecimalSeparator string `mapstructure:"decimal_separator" yaml:"decimal_separator"`

	// Chart output
	ChartWidth  int `mapstructure:"chart_width" yaml:"chart_width"`
	ChartHeight int `mapstructure:"chart_height" yaml:"chart_height"`

	// Diagnostics sink; empty disables it
	DebugLog      string `mapstructure:"debug_log" yaml:"debug_log"`
	DebugLogMaxMB int    `mapstructure:"debug_log_max_mb" yaml:"debug_log_max_mb"`

	// Fit history database; empty disables it
	HistoryDB string `mapstructure:"history_db" yaml:"history_db"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// Defaults returns the configuration used when no file or env value is set.
func Defaults() *Global {
	return &Global{
		ListenAddr:       ":5002",
		CORSOrigins:      []string{"*"},
		MaxUploadMB:      10,
		CSVEncoding:      "auto",
		DecimalSeparator: ".",
		ChartWidth:       500,
		ChartHeight:      500,
		DebugLogMaxMB:    10,
		LogLevel:         "info",
	}
}

// Dir returns ~/.assayfit.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".assayfit"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.assayfit/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("ASSAYFIT")
	v.AutomaticEnv()

	d := Defaults()
	v.SetDefault("listen_addr", d.ListenAddr)
	v.SetDefault("cors_origins", d.CORSOrigins)
	v.SetDefault("max_upload_mb", d.MaxUploadMB)
	v.SetDefault("csv_encoding", d.CSVEncoding)
	v.SetDefault("decimal_separator", d.DecimalSeparator)
	v.SetDefault("chart_width", d.ChartWidth)
	v.SetDefault("chart_height", d.ChartHeight)
	v.SetDefault("debug_log", d.DebugLog)
	v.SetDefault("debug_log_max_mb", d.DebugLogMaxMB)
	v.SetDefault("history_db", d.HistoryDB)
	v.SetDefault("log_level", d.LogLevel)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects values the pipeline cannot use.
func (c *Global) Validate() error {
	switch c.CSVEncoding {
	case "", "auto", "utf-8", "utf8", "iso-8859-1", "latin1", "latin-1":
	default:
		return fmt.Errorf("csv_encoding must be auto, utf-8 or iso-8859-1, got %q", c.CSVEncoding)
	}
	if len([]rune(c.DecimalSeparator)) > 1 {
		return fmt.Errorf("decimal_separator must be a single character, got %q", c.DecimalSeparator)
	}
	if c.MaxUploadMB < 0 || c.ChartWidth < 0 || c.ChartHeight < 0 || c.DebugLogMaxMB < 0 {
		return fmt.Errorf("sizes must not be negative")
	}
	return nil
}

// DecimalRune returns the configured decimal separator, '.' when unset.
func (c *Global) DecimalRune() rune {
	for _, r := range c.DecimalSeparator {
		return r
	}
	return '.'
}
