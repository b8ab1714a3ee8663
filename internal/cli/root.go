// Package cli implements watchtower-cli, the operator tool for the IOC store.
package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/hive-corporation/watchtower-chat/internal/adapter/repository"
	"github.com/hive-corporation/watchtower-chat/internal/core/ports"
	"github.com/hive-corporation/watchtower-chat/internal/logging"
)

// CLI output formatters
var (
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

const defaultTimeout = 5 * time.Minute

type app struct {
	v *viper.Viper
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds a fresh command tree with its own viper instance.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	var cfgFile string
	var noColor bool

	root := &cobra.Command{
		Use:   "watchtower-cli",
		Short: "Inspect and export IOCs collected from chat messages",
		Long: `watchtower-cli reads the IOC store written by the watchtower service.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (DATABASE_URL, TLD_FILE, ...), including .env
3. Config file (--config)
4. Defaults`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if noColor {
				color.NoColor = true
			}
			_ = godotenv.Load()
			if cfgFile != "" {
				a.v.SetConfigFile(cfgFile)
				if err := a.v.ReadInConfig(); err != nil {
					return fmt.Errorf("error reading config file: %w", err)
				}
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	flags.BoolVar(&noColor, "no-color", false, "Disable colored output")
	flags.String("database-url", "ioc_database.db", "Postgres URL or SQLite path")
	flags.Bool("json", false, "Output in JSON format")
	flags.String("log-level", "warn", "log level for diagnostics on stderr")

	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	for _, name := range []string{"database-url", "json", "log-level"} {
		_ = a.v.BindPFlag(strings.ReplaceAll(name, "-", "_"), flags.Lookup(name))
	}

	root.AddCommand(
		a.newStatsCmd(),
		a.newListCmd(),
		a.newSearchCmd(),
		a.newUniqueCmd(),
		a.newExportCmd(),
		a.newScanCmd(),
	)
	return root
}

func (a *app) logger() *zap.SugaredLogger {
	logger, err := logging.New(a.v.GetString("log_level"), "console")
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return logger
}

// withRepo opens the store for the duration of fn.
func (a *app) withRepo(cmd *cobra.Command, fn func(ctx context.Context, repo ports.IOCRepository) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
	defer cancel()

	repo, err := repository.Open(ctx, a.v.GetString("database_url"), a.logger())
	if err != nil {
		return err
	}
	defer repo.Close()

	return fn(ctx, repo)
}

func (a *app) jsonOutput() bool {
	return a.v.GetBool("json")
}
