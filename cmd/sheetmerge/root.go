package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ryabkov82/sheetmerge/internal/config"
	"github.com/ryabkov82/sheetmerge/internal/logging"
	"github.com/ryabkov82/sheetmerge/internal/metadata"
)

// errFailed reports that a command already printed its failure.
var errFailed = errors.New("failed")

// app is the state shared by all subcommands once flags are parsed.
type app struct {
	configFile string
	cfg        *config.Config
	v          *viper.Viper
}

// flagKeys binds command-line flags to configuration keys.
var flagKeys = map[string]string{
	"sheet":      config.KeySheet,
	"policy":     config.KeyTypePolicy,
	"add-source": config.KeySourceColumn,
	"sheet-name": config.KeySheetName,
	"log-level":  config.KeyLogLevel,
	"log-format": config.KeyLogFormat,
}

func init() {
	for _, k := range metadata.Keys {
		flagKeys[metadataFlag(k)] = "metadata." + k
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "sheetmerge",
		Short: "Merge spreadsheets into one workbook with report metadata",
		Long: `Merge the rows of several spreadsheets (.xlsx, .xls) into a single .xlsx
workbook. Columns are matched by name; every output row carries the report
metadata (project, department, analyst, report date, version).

Commands:
  merge     Merge files into one workbook.
  batch     Run every merge job of a TOML manifest.
  validate  Check input files without merging them.

Settings are read from --config, $HOME/.config/sheetmerge/config.toml, a .env
file and SHEETMERGE_* environment variables, in increasing priority; flags
override all of them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Flags())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (TOML, YAML or JSON)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text or json")

	root.AddCommand(newMergeCmd(a), newBatchCmd(a), newValidateCmd(a))
	return root
}

func (a *app) setup(flags *pflag.FlagSet) error {
	envErr := godotenv.Load()

	v, err := config.NewViper(a.configFile)
	if err != nil {
		return err
	}
	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	logging.Setup(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	switch {
	case envErr == nil:
		slog.Debug("loaded .env file")
	case !errors.Is(envErr, fs.ErrNotExist):
		slog.Warn("ignoring .env file", "error", envErr)
	}
	slog.Debug("configuration loaded",
		"config_file", v.ConfigFileUsed(),
		"type_policy", cfg.Merge.TypePolicy,
		"sheet", cfg.Reader.Sheet,
	)

	a.v = v
	a.cfg = cfg
	return nil
}

// metadataFlag returns the flag name of a metadata key: project_name → project-name.
func metadataFlag(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

func addMetadataFlags(flags *pflag.FlagSet) {
	for _, k := range metadata.Keys {
		flags.String(metadataFlag(k), "", metadata.Labels[k])
	}
}

// metadataRecord collects metadata from flags, environment and config.
func (a *app) metadataRecord() metadata.Record {
	raw := make(map[string]string, len(metadata.Keys))
	for _, k := range metadata.Keys {
		raw[k] = a.v.GetString("metadata." + k)
	}
	return metadata.New(raw)
}
