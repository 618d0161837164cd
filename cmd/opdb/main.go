// Command opdb reads canonical blocks out of a legacy chain database
// for migration into a new storage engine.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/luxfi/geth/log"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version information (set by ldflags)
var Version = "0.1.0"

func main() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:          "opdb",
		Short:        "Legacy chain database reader for offline migration",
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(v, configFile); err != nil {
				return err
			}
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			setupLogging(v.GetInt("verbosity"))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ./opdb.yaml)")
	rootCmd.PersistentFlags().IntP("verbosity", "v", 2, "verbosity level (0-4)")

	rootCmd.AddCommand(newMigrateCmd(v), newInspectCmd(v))
	return rootCmd
}

// initConfig loads the optional config file and OPDB_* environment
// overrides. A missing default config file is not an error.
func initConfig(v *viper.Viper, configFile string) error {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("opdb")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("OPDB")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

func setupLogging(verbosity int) {
	handler := log.NewTerminalHandlerWithLevel(os.Stderr, verbosityLevel(verbosity), isatty.IsTerminal(os.Stderr.Fd()))
	log.SetDefault(log.NewLogger(handler))
}

// verbosityLevel maps 0-4 onto error, warn, info, debug and trace.
func verbosityLevel(verbosity int) slog.Level {
	switch {
	case verbosity <= 0:
		return log.LevelError
	case verbosity == 1:
		return log.LevelWarn
	case verbosity == 2:
		return log.LevelInfo
	case verbosity == 3:
		return log.LevelDebug
	default:
		return log.LevelTrace
	}
}
