package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Boblepointu/chaosbrowser/internal/config"
	"github.com/Boblepointu/chaosbrowser/internal/engine"
	"github.com/Boblepointu/chaosbrowser/internal/observability"
)

var targetsFlag string

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Visit every target in the list, one persona per session.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		logger := observability.GetLogger()
		defer observability.Sync()

		targetsFile := cfg.Crawl.TargetsFile
		if targetsFlag != "" {
			targetsFile = targetsFlag
		}
		if targetsFile == "" {
			return fmt.Errorf("no targets file given (set crawl.targets_file or --targets)")
		}

		targets, err := engine.LoadTargets(targetsFile)
		if err != nil {
			return err
		}

		eng, err := engine.New(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := eng.Close(); cerr != nil {
				logger.Warn("Failed to close identity store", zap.Error(cerr))
			}
		}()

		succeeded, err := eng.Run(cmd.Context(), targets)
		if err != nil {
			return err
		}
		if succeeded == 0 {
			return fmt.Errorf("no target was browsed successfully")
		}
		return nil
	},
}

func init() {
	crawlCmd.Flags().StringVarP(&targetsFlag, "targets", "t", "", "line-oriented file of destination addresses")
}
