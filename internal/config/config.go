package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	// Server
	ListenAddr       string  `mapstructure:"listen_addr" yaml:"listen_addr"`
	MaxUploadMB      int     `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	UploadsPerSecond float64 `mapstructure:"uploads_per_second" yaml:"uploads_per_second"`
	UploadBurst      int     `mapstructure:"upload_burst" yaml:"upload_burst"`
	SessionTTLMin    int     `mapstructure:"session_ttl_min" yaml:"session_ttl_min"`

	// Ingest
	MaxRows          int    `mapstructure:"max_rows" yaml:"max_rows"`
	SampleSeed       int64  `mapstructure:"sample_seed" yaml:"sample_seed"`
	FallbackEncoding string `mapstructure:"fallback_encoding" yaml:"fallback_encoding"`
	Delimiter        string `mapstructure:"delimiter" yaml:"delimiter"`
	PreviewRows      int    `mapstructure:"preview_rows" yaml:"preview_rows"`

	// Report
	ReportDir     string `mapstructure:"report_dir" yaml:"report_dir"`
	ReportTitle   string `mapstructure:"report_title" yaml:"report_title"`
	ReportMode    string `mapstructure:"report_mode" yaml:"report_mode"`
	HistogramBins int    `mapstructure:"histogram_bins" yaml:"histogram_bins"`
	TopValues     int    `mapstructure:"top_values" yaml:"top_values"`
}

// Keys lists the settable configuration keys in display order.
var Keys = []string{
	"listen_addr", "max_upload_mb", "uploads_per_second", "upload_burst", "session_ttl_min",
	"max_rows", "sample_seed", "fallback_encoding", "delimiter", "preview_rows",
	"report_dir", "report_title", "report_mode", "histogram_bins", "top_values",
}

// Dir returns ~/.edaloom.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".edaloom"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.edaloom/config.yaml, creating the directory if necessary.
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
// Precedence: flags (applied by the caller) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("EDALOOM")
	v.AutomaticEnv()

	v.SetDefault("listen_addr", "127.0.0.1:8080")
	v.SetDefault("max_upload_mb", 200)
	v.SetDefault("uploads_per_second", 2.0)
	v.SetDefault("upload_burst", 4)
	v.SetDefault("session_ttl_min", 60)
	v.SetDefault("max_rows", 100000)
	v.SetDefault("sample_seed", 42)
	v.SetDefault("fallback_encoding", "latin1")
	v.SetDefault("delimiter", "")
	v.SetDefault("preview_rows", 10)
	v.SetDefault("report_dir", "")
	v.SetDefault("report_title", "Profiling Report")
	v.SetDefault("report_mode", "explorative")
	v.SetDefault("histogram_bins", 20)
	v.SetDefault("top_values", 10)

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

// Validate rejects values the server and CLI cannot work with.
func (c *Global) Validate() error {
	switch {
	case c.MaxUploadMB <= 0:
		return fmt.Errorf("max_upload_mb must be positive, got %d", c.MaxUploadMB)
	case c.MaxRows <= 0:
		return fmt.Errorf("max_rows must be positive, got %d", c.MaxRows)
	case c.UploadsPerSecond < 0:
		return fmt.Errorf("uploads_per_second must not be negative")
	case c.ReportMode != "explorative" && c.ReportMode != "minimal":
		return fmt.Errorf("report_mode must be explorative or minimal, got %q", c.ReportMode)
	}
	if _, err := c.DelimiterRune(); err != nil {
		return err
	}
	return nil
}

// DelimiterRune returns the configured delimiter, or 0 to sniff it.
func (c *Global) DelimiterRune() (rune, error) {
	return ParseDelimiter(c.Delimiter)
}

// ParseDelimiter accepts a single character or the names "tab", "comma",
// "semicolon" and "pipe". Empty means auto-detect.
func ParseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "":
		return 0, nil
	case "tab", `\t`:
		return '\t', nil
	case "comma":
		return ',', nil
	case "semicolon":
		return ';', nil
	case "pipe":
		return '|', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("invalid delimiter %q: want a single character", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		return 0, fmt.Errorf("invalid delimiter %q", s)
	}
	return r, nil
}

// Set assigns one key from its string form. On error c is left unchanged.
func (c *Global) Set(key, val string) error {
	prev := *c
	atoi := func() (int, error) {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("invalid int for %s: %w", key, err)
		}
		return i, nil
	}
	var err error
	switch key {
	case "listen_addr":
		c.ListenAddr = val
	case "max_upload_mb":
		c.MaxUploadMB, err = atoi()
	case "uploads_per_second":
		c.UploadsPerSecond, err = strconv.ParseFloat(val, 64)
		if err != nil {
			err = fmt.Errorf("invalid float for %s: %w", key, err)
		}
	case "upload_burst":
		c.UploadBurst, err = atoi()
	case "session_ttl_min":
		c.SessionTTLMin, err = atoi()
	case "max_rows":
		c.MaxRows, err = atoi()
	case "sample_seed":
		c.SampleSeed, err = strconv.ParseInt(val, 10, 64)
		if err != nil {
			err = fmt.Errorf("invalid int for %s: %w", key, err)
		}
	case "fallback_encoding":
		c.FallbackEncoding = val
	case "delimiter":
		c.Delimiter = val
	case "preview_rows":
		c.PreviewRows, err = atoi()
	case "report_dir":
		c.ReportDir = val
	case "report_title":
		c.ReportTitle = val
	case "report_mode":
		c.ReportMode = strings.ToLower(val)
	case "histogram_bins":
		c.HistogramBins, err = atoi()
	case "top_values":
		c.TopValues, err = atoi()
	default:
		known := append([]string(nil), Keys...)
		sort.Strings(known)
		return fmt.Errorf("unknown key: %s (known: %s)", key, strings.Join(known, ", "))
	}
	if err == nil {
		err = c.Validate()
	}
	if err != nil {
		*c = prev
		return err
	}
	return nil
}

// Get returns one key in string form.
func (c *Global) Get(key string) (string, bool) {
	switch key {
	case "listen_addr":
		return c.ListenAddr, true
	case "max_upload_mb":
		return strconv.Itoa(c.MaxUploadMB), true
	case "uploads_per_second":
		return strconv.FormatFloat(c.UploadsPerSecond, 'g', -1, 64), true
	case "upload_burst":
		return strconv.Itoa(c.UploadBurst), true
	case "session_ttl_min":
		return strconv.Itoa(c.SessionTTLMin), true
	case "max_rows":
		return strconv.Itoa(c.MaxRows), true
	case "sample_seed":
		return strconv.FormatInt(c.SampleSeed, 10), true
	case "fallback_encoding":
		return c.FallbackEncoding, true
	case "delimiter":
		return c.Delimiter, true
	case "preview_rows":
		return strconv.Itoa(c.PreviewRows), true
	case "report_dir":
		return c.ReportDir, true
	case "report_title":
		return c.ReportTitle, true
	case "report_mode":
		return c.ReportMode, true
	case "histogram_bins":
		return strconv.Itoa(c.HistogramBins), true
	case "top_values":
		return strconv.Itoa(c.TopValues), true
	}
	return "", false
}
