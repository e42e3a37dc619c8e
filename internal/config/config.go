// Package config loads the merge settings from defaults, an optional config
// file, SHEETMERGE_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/ryabkov82/sheetmerge/internal/metadata"
)

// Keys bound to command-line flags.
const (
	KeySheet          = "reader.sheet"
	KeyTypePolicy     = "merge.type_policy"
	KeySourceColumn   = "merge.source_column"
	KeySampleRows     = "writer.sample_rows"
	KeySheetName      = "writer.sheet_name"
	KeyFreezeHeader   = "writer.freeze_header"
	KeyMaxFieldLength = "validation.max_field_length"
	KeyLogLevel       = "log.level"
	KeyLogFormat      = "log.format"
)

// Type policies understood by the merge engine.
const (
	PolicyText   = "text"
	PolicyStrict = "strict"
)

// Config is the complete configuration of a merge.
type Config struct {
	Reader     ReaderConfig      `mapstructure:"reader"`
	Merge      MergeConfig       `mapstructure:"merge"`
	Writer     WriterConfig      `mapstructure:"writer"`
	Validation ValidationConfig  `mapstructure:"validation"`
	Log        LogConfig         `mapstructure:"log"`
	Metadata   map[string]string `mapstructure:"metadata"` // default metadata values
}

// ReaderConfig controls how input workbooks are loaded.
type ReaderConfig struct {
	Sheet string `mapstructure:"sheet"` // empty reads every sheet
}

// MergeConfig controls column reconciliation and the source column.
type MergeConfig struct {
	TypePolicy       string `mapstructure:"type_policy"`
	SourceColumn     bool   `mapstructure:"source_column"`
	SourceColumnName string `mapstructure:"source_column_name"`
}

// WriterConfig controls the output workbook layout.
type WriterConfig struct {
	SheetName    string `mapstructure:"sheet_name"`
	SampleRows   int    `mapstructure:"sample_rows"` // rows analysed for column widths
	FreezeHeader bool   `mapstructure:"freeze_header"`
}

// ValidationConfig limits accepted paths and metadata values.
type ValidationConfig struct {
	MaxFieldLength   int      `mapstructure:"max_field_length"`
	InputExtensions  []string `mapstructure:"input_extensions"`
	OutputExtensions []string `mapstructure:"output_extensions"`
}

// LogConfig selects the slog level and handler format.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// KnownInputExtensions are the extensions the reader can open.
var KnownInputExtensions = []string{".xlsx", ".xlsm", ".xls"}

// KnownOutputExtensions are the extensions the writer can produce.
var KnownOutputExtensions = []string{".xlsx"}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeySheet, "")
	v.SetDefault(KeyTypePolicy, PolicyText)
	v.SetDefault(KeySourceColumn, false)
	v.SetDefault("merge.source_column_name", "source_file")
	v.SetDefault(KeySheetName, "Merged")
	v.SetDefault(KeySampleRows, 1000)
	v.SetDefault(KeyFreezeHeader, true)
	v.SetDefault(KeyMaxFieldLength, 256)
	v.SetDefault("validation.input_extensions", []string{".xlsx", ".xls"})
	v.SetDefault("validation.output_extensions", []string{".xlsx"})
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	for _, k := range metadata.Keys {
		v.SetDefault("metadata."+k, "")
	}
}

// NewViper returns a viper instance with defaults and env overrides applied.
// When configFile is empty, $HOME/.config/sheetmerge/config.toml is read if
// it exists.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SHEETMERGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
		return v, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return v, nil
	}
	v.AddConfigPath(filepath.Join(home, ".config", "sheetmerge"))
	v.SetConfigName("config")
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// Load unmarshals, normalises and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := Load(v)
	if err != nil {
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return cfg
}

func (c *Config) normalize() {
	c.Merge.TypePolicy = strings.ToLower(strings.TrimSpace(c.Merge.TypePolicy))
	c.Validation.InputExtensions = normalizeExtensions(c.Validation.InputExtensions)
	c.Validation.OutputExtensions = normalizeExtensions(c.Validation.OutputExtensions)
	c.Reader.Sheet = strings.TrimSpace(c.Reader.Sheet)
	if c.Metadata == nil {
		c.Metadata = map[string]string{}
	}
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Merge.TypePolicy {
	case PolicyText, PolicyStrict:
	default:
		errs = append(errs, fmt.Errorf("merge.type_policy must be %q or %q, got %q", PolicyText, PolicyStrict, c.Merge.TypePolicy))
	}
	if c.Merge.SourceColumn && strings.TrimSpace(c.Merge.SourceColumnName) == "" {
		errs = append(errs, errors.New("merge.source_column_name must not be empty"))
	}
	if metadata.IsKey(c.Merge.SourceColumnName) {
		errs = append(errs, fmt.Errorf("merge.source_column_name %q collides with a metadata column", c.Merge.SourceColumnName))
	}
	if strings.TrimSpace(c.Writer.SheetName) == "" {
		errs = append(errs, errors.New("writer.sheet_name must not be empty"))
	}
	if len(c.Writer.SheetName) > 31 {
		errs = append(errs, fmt.Errorf("writer.sheet_name %q exceeds 31 characters", c.Writer.SheetName))
	}
	if c.Writer.SampleRows < 0 {
		errs = append(errs, fmt.Errorf("writer.sample_rows must be >= 0, got %d", c.Writer.SampleRows))
	}
	if c.Validation.MaxFieldLength <= 0 {
		errs = append(errs, fmt.Errorf("validation.max_field_length must be positive, got %d", c.Validation.MaxFieldLength))
	}
	if len(c.Validation.InputExtensions) == 0 {
		errs = append(errs, errors.New("validation.input_extensions must not be empty"))
	}
	for _, e := range c.Validation.InputExtensions {
		if !contains(KnownInputExtensions, e) {
			errs = append(errs, fmt.Errorf("unsupported input extension %q", e))
		}
	}
	if len(c.Validation.OutputExtensions) == 0 {
		errs = append(errs, errors.New("validation.output_extensions must not be empty"))
	}
	for _, e := range c.Validation.OutputExtensions {
		if !contains(KnownOutputExtensions, e) {
			errs = append(errs, fmt.Errorf("unsupported output extension %q", e))
		}
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of text, json", c.Log.Format))
	}

	return errors.Join(errs...)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
