package cmd

import (
	"fmt"
	"os"

	cfgpkg "github.com/KaramelBytes/edaloom/internal/config"
	"github.com/KaramelBytes/edaloom/internal/dataset"
	"github.com/KaramelBytes/edaloom/internal/ingest"
	"github.com/KaramelBytes/edaloom/internal/logger"
	"github.com/KaramelBytes/edaloom/internal/profile"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	debug   bool
	// Ingest flags (override config if set)
	flagMaxRows   int
	flagSeed      int64
	flagDelimiter string
	flagEncoding  string
	flagDecimal   string
	flagThousands string

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "edaloom",
	Short: "edaloom: exploratory data analysis reports for CSV files",
	Long: `edaloom profiles CSV files: it decodes and samples the data, infers column types,
and produces an HTML or Markdown report with statistics, alerts, correlations and charts.
Run "edaloom serve" for the browser upload page or "edaloom profile" for batch use.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", userMessage(err))
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.edaloom/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().IntVar(&flagMaxRows, "max-rows", 0, "sample datasets above this many rows (overrides config)")
	rootCmd.PersistentFlags().Int64Var(&flagSeed, "seed", 0, "sampling seed (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' | 'pipe' (sniffed if omitted)")
	rootCmd.PersistentFlags().StringVar(&flagEncoding, "encoding", "", "fallback encoding for non UTF-8 input, e.g. latin1, windows-1252 (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagDecimal, "decimal", "", "decimal separator for numbers: '.'|'comma' (auto-detect if omitted)")
	rootCmd.PersistentFlags().StringVar(&flagThousands, "thousands", "", "thousands separator for numbers: ','|'.'|'space' (auto-detect if omitted)")
}

func loadConfig() {
	logger.SetVerbose(debug)
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: fall back to defaults
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		d := defaultConfig()
		c = &d
	}
	cfg = c

	// Apply CLI overrides if provided
	f := rootCmd.PersistentFlags()
	if f.Changed("max-rows") && flagMaxRows > 0 {
		cfg.MaxRows = flagMaxRows
	}
	if f.Changed("seed") {
		cfg.SampleSeed = flagSeed
	}
	if f.Changed("delimiter") {
		cfg.Delimiter = flagDelimiter
	}
	if f.Changed("encoding") {
		cfg.FallbackEncoding = flagEncoding
	}
	logger.Debug("config: max_rows=%d seed=%d encoding=%q delimiter=%q", cfg.MaxRows, cfg.SampleSeed, cfg.FallbackEncoding, cfg.Delimiter)
}

func defaultConfig() cfgpkg.Global {
	return cfgpkg.Global{
		ListenAddr:       "127.0.0.1:8080",
		MaxUploadMB:      200,
		UploadsPerSecond: 2,
		UploadBurst:      4,
		SessionTTLMin:    60,
		MaxRows:          100000,
		SampleSeed:       42,
		FallbackEncoding: "latin1",
		PreviewRows:      10,
		ReportTitle:      "Profiling Report",
		ReportMode:       "explorative",
		HistogramBins:    20,
		TopValues:        10,
	}
}

// ingestOptions builds ingest options from the effective config and flags.
func ingestOptions() (ingest.Options, error) {
	opt := ingest.DefaultOptions()
	opt.MaxRows = cfg.MaxRows
	opt.Seed = cfg.SampleSeed
	enc, err := ingest.LookupEncoding(cfg.FallbackEncoding)
	if err != nil {
		return opt, err
	}
	opt.Fallback = enc
	if opt.Delimiter, err = cfg.DelimiterRune(); err != nil {
		return opt, err
	}
	if opt.Parse, err = parseLocale(flagDecimal, flagThousands); err != nil {
		return opt, err
	}
	return opt, nil
}

func parseLocale(decimal, thousands string) (dataset.ParseOptions, error) {
	var po dataset.ParseOptions
	switch decimal {
	case ",", "comma":
		po.DecimalSeparator = ','
	case ".", "dot":
		po.DecimalSeparator = '.'
	case "":
	default:
		return po, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", decimal)
	}
	switch thousands {
	case ",":
		po.ThousandsSeparator = ','
	case ".":
		po.ThousandsSeparator = '.'
	case "space", " ":
		po.ThousandsSeparator = ' '
	case "":
	default:
		return po, fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", thousands)
	}
	return po, nil
}

// profileOptions builds profiling options for a report mode.
func profileOptions(minimal bool) profile.Options {
	opt := profile.DefaultOptions()
	opt.Minimal = minimal
	opt.Explorative = !minimal
	if cfg.HistogramBins > 0 {
		opt.Bins = cfg.HistogramBins
	}
	if cfg.TopValues > 0 {
		opt.TopN = cfg.TopValues
	}
	if cfg.PreviewRows > 0 {
		opt.SampleRows = cfg.PreviewRows
	}
	return opt
}
