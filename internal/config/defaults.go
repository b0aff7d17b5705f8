package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// SetDefaults registers defaults so the app can run with a minimal config.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "chaosbrowser")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	v.SetDefault("store.backend", "file")
	v.SetDefault("store.path", filepath.Join(xdg.DataHome, "chaosbrowser", "personas.json"))
	v.SetDefault("store.max_personas", 1000)
	v.SetDefault("store.retention_days", 90)

	v.SetDefault("rotation.strategy", "weighted")
	v.SetDefault("rotation.max_age_days", 30)
	v.SetDefault("rotation.max_uses", 100)

	v.SetDefault("farm.address", "selenium-hub:4444")
	v.SetDefault("farm.connect_retries", 5)
	v.SetDefault("farm.retry_backoff", "3s")

	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("browser.query_timeout", "10s")

	v.SetDefault("automaton.max_attempts", 3)
	v.SetDefault("automaton.min_delay", "300ms")
	v.SetDefault("automaton.max_delay", "2500ms")
	v.SetDefault("automaton.automatic_wait", "6s")

	v.SetDefault("crawl.workers", 3)
	v.SetDefault("crawl.max_depth", 40)
	v.SetDefault("crawl.dwell_min", "2s")
	v.SetDefault("crawl.dwell_max", "5s")
}
