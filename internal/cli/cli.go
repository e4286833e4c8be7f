// Package cli implements the pdfgrid command-line interface.
//
// # Commands
//
//   - render: lay out a grid file (YAML, JSON, HTML or Markdown) as a PDF table
//   - stamp: caption every page of a PDF and overlay a translucent image
//   - inspect: print the page tree and cross-reference layout of a PDF
//
// # Configuration
//
// Defaults come from a TOML file given with --config. Command flags override
// the file. --verbose forces debug logging.
package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/pboffice01/PDFGeneral/config"
	"github.com/pboffice01/PDFGeneral/observability"
)

const appName = "pdfgrid"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	verbose    bool
	cfg        config.Config
}

// New creates a CLI logging to w.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		}),
		cfg: config.Default(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "pdfgrid renders merged-cell tables and stamps PDF pages",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath, !cmd.Flags().Changed("config"))
			if err != nil {
				return err
			}
			c.cfg = cfg
			level := cfg.LogLevel()
			if c.verbose {
				level = LogDebug
			}
			c.SetLogLevel(level)
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", defaultConfigPath(), "TOML settings file")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(c.renderCommand())
	root.AddCommand(c.stampCommand())
	root.AddCommand(c.inspectCommand())
	return root
}

// logger adapts the charm logger for library packages.
func (c *CLI) logger() observability.Logger {
	return observability.NewCharmLogger(c.Logger)
}

// defaultConfigPath is pdfgrid.toml in the user config directory, or empty
// when that directory is unknown.
func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, appName, appName+".toml")
}

// writeFile replaces path with data without leaving a partial file behind.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
