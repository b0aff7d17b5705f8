package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Boblepointu/chaosbrowser/internal/config"
	"github.com/Boblepointu/chaosbrowser/internal/observability"
)

var cfgFile string

// rootCmd is the base command; all functionality lives in subcommands.
var rootCmd = &cobra.Command{
	Use:     "chaosbrowser",
	Short:   "Drives fleets of remote browser sessions disguised as distinct human users.",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initializeConfig(); err != nil {
			return fmt.Errorf("failed to initialize configuration: %w", err)
		}

		if err := config.Load(viper.GetViper()); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg := config.Get()

		observability.InitializeLogger(cfg.Logger)
		logger := observability.GetLogger()
		logger.Info("Starting chaosbrowser", zap.String("version", Version))
		return nil
	},
}

// Execute runs the root command with the context supplied by main, so a
// signal-driven cancellation reaches every worker.
func Execute(ctx context.Context) error {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger := observability.GetLogger(); logger != nil {
			if ctx.Err() == nil {
				logger.Error("Command execution failed", zap.Error(err))
			}
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")

	rootCmd.AddCommand(crawlCmd)
	rootCmd.AddCommand(personasCmd)
	rootCmd.AddCommand(versionCmd)
}

// initializeConfig layers defaults, an optional config file, and
// CHAOSBROWSER_* environment variables, in ascending precedence.
func initializeConfig() error {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("CHAOSBROWSER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("farm.address", "CHAOSBROWSER_FARM_ADDRESS")
	_ = viper.BindEnv("rotation.strategy", "CHAOSBROWSER_ROTATION_STRATEGY")
	_ = viper.BindEnv("rotation.max_age_days", "CHAOSBROWSER_ROTATION_MAX_AGE_DAYS")
	_ = viper.BindEnv("rotation.max_uses", "CHAOSBROWSER_ROTATION_MAX_USES")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine; defaults plus environment carry the run.
	}
	return nil
}
