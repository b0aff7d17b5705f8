package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Boblepointu/chaosbrowser/internal/config"
	"github.com/Boblepointu/chaosbrowser/internal/engine"
	"github.com/Boblepointu/chaosbrowser/internal/observability"
)

var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "Inspect and maintain the identity store.",
}

var personasStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print pool statistics.",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := engine.New(cmd.Context(), config.Get(), observability.GetLogger())
		if err != nil {
			return err
		}
		defer eng.Close()

		stats := eng.Manager().Stats()
		fmt.Printf("personas:       %d\n", stats.TotalPersonas)
		fmt.Printf("eligible:       %d\n", stats.Eligible)
		fmt.Printf("total created:  %d\n", stats.TotalCreated)
		fmt.Printf("avg use count:  %.1f\n", stats.AvgUseCount)
		fmt.Printf("use count span: %d..%d\n", stats.MinUseCount, stats.MaxUseCount)
		if !stats.OldestCreated.IsZero() {
			fmt.Printf("oldest created: %s\n", stats.OldestCreated.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var personasEvictCmd = &cobra.Command{
	Use:   "evict",
	Short: "Purge personas outside the retention window.",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()
		eng, err := engine.New(cmd.Context(), config.Get(), logger)
		if err != nil {
			return err
		}
		defer eng.Close()

		evicted := eng.Manager().EvictExpired(cmd.Context())
		logger.Info("Eviction pass complete", zap.Int("evicted", evicted))
		fmt.Printf("evicted %d personas\n", evicted)
		return nil
	},
}

func init() {
	personasCmd.AddCommand(personasStatsCmd)
	personasCmd.AddCommand(personasEvictCmd)
}
