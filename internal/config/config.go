package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/Boblepointu/chaosbrowser/internal/browser/humanoid"
)

var (
	instance *Config
	once     sync.Once
)

// Config is the root configuration structure for the entire application.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Store     StoreConfig     `mapstructure:"store"`
	Rotation  RotationConfig  `mapstructure:"rotation"`
	Farm      FarmConfig      `mapstructure:"farm"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Automaton AutomatonConfig `mapstructure:"automaton"`
	Crawl     CrawlConfig     `mapstructure:"crawl"`
}

// ColorConfig defines the console colors for each log level.
type ColorConfig struct {
	Debug string `mapstructure:"debug"`
	Info  string `mapstructure:"info"`
	Warn  string `mapstructure:"warn"`
	Error string `mapstructure:"error"`
	Fatal string `mapstructure:"fatal"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level"`
	Format      string      `mapstructure:"format"`
	AddSource   bool        `mapstructure:"add_source"`
	ServiceName string      `mapstructure:"service_name"`
	LogFile     string      `mapstructure:"log_file"`
	MaxSize     int         `mapstructure:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups"`
	MaxAge      int         `mapstructure:"max_age"`
	Compress    bool        `mapstructure:"compress"`
	Colors      ColorConfig `mapstructure:"colors"`
}

// StoreConfig selects and tunes the identity store backend.
type StoreConfig struct {
	// Backend is one of "file", "sqlite" or "memory".
	Backend string `mapstructure:"backend"`
	// Path is the location of the persisted document (file backend) or
	// database (sqlite backend). Ignored by the memory backend.
	Path string `mapstructure:"path"`
	// MaxPersonas caps the active pool during cleanup passes.
	MaxPersonas int `mapstructure:"max_personas"`
	// RetentionDays controls when expired personas are purged entirely.
	RetentionDays int `mapstructure:"retention_days"`
}

// RotationConfig governs persona selection for new sessions.
type RotationConfig struct {
	// Strategy is one of "weighted", "random", "round-robin" or "new".
	Strategy   string `mapstructure:"strategy"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxUses    int    `mapstructure:"max_uses"`
}

// FarmConfig holds settings for the remote browser-session broker.
type FarmConfig struct {
	// Address is the host:port of the browser farm (CDP websocket broker).
	Address        string        `mapstructure:"address"`
	ConnectRetries int           `mapstructure:"connect_retries"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
}

// BrowserConfig holds per-session browser settings.
type BrowserConfig struct {
	NavigationTimeout time.Duration   `mapstructure:"navigation_timeout"`
	QueryTimeout      time.Duration   `mapstructure:"query_timeout"`
	Humanoid          humanoid.Config `mapstructure:"humanoid"`
}

// AutomatonConfig tunes the challenge-clearing state machine.
type AutomatonConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
	// AutomaticWait is how long to sit out a passive browser check before
	// re-running detection.
	AutomaticWait time.Duration `mapstructure:"automatic_wait"`
}

// CrawlConfig holds settings for the crawl supervisor.
type CrawlConfig struct {
	// TargetsFile is a line-oriented list of destination addresses.
	TargetsFile string        `mapstructure:"targets_file"`
	Workers     int           `mapstructure:"workers"`
	MaxDepth    int           `mapstructure:"max_depth"`
	DwellMin    time.Duration `mapstructure:"dwell_min"`
	DwellMax    time.Duration `mapstructure:"dwell_max"`
}

// ValidStrategies enumerates the rotation strategies Validate accepts.
var ValidStrategies = []string{"weighted", "random", "round-robin", "new"}

// ValidBackends enumerates the store backends Validate accepts.
var ValidBackends = []string{"file", "sqlite", "memory"}

// Validate checks the configuration for errors that must abort startup.
func (c *Config) Validate() error {
	if !contains(ValidStrategies, c.Rotation.Strategy) {
		return fmt.Errorf("unknown rotation strategy %q (valid: %v)", c.Rotation.Strategy, ValidStrategies)
	}
	if !contains(ValidBackends, c.Store.Backend) {
		return fmt.Errorf("unknown store backend %q (valid: %v)", c.Store.Backend, ValidBackends)
	}
	if c.Store.Backend != "memory" && c.Store.Path == "" {
		return fmt.Errorf("store backend %q requires store.path", c.Store.Backend)
	}
	if c.Rotation.MaxAgeDays <= 0 {
		return fmt.Errorf("rotation.max_age_days must be positive, got %d", c.Rotation.MaxAgeDays)
	}
	if c.Rotation.MaxUses <= 0 {
		return fmt.Errorf("rotation.max_uses must be positive, got %d", c.Rotation.MaxUses)
	}
	if c.Farm.Address == "" {
		return fmt.Errorf("farm.address is required")
	}
	if c.Automaton.MaxAttempts <= 0 {
		return fmt.Errorf("automaton.max_attempts must be positive, got %d", c.Automaton.MaxAttempts)
	}
	if c.Automaton.MinDelay > c.Automaton.MaxDelay {
		return fmt.Errorf("automaton.min_delay exceeds automaton.max_delay")
	}
	if c.Crawl.Workers <= 0 {
		return fmt.Errorf("crawl.workers must be positive, got %d", c.Crawl.Workers)
	}
	return nil
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// Load initializes the configuration singleton from Viper.
func Load(v *viper.Viper) error {
	var loadErr error
	once.Do(func() {
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			loadErr = fmt.Errorf("error unmarshaling config: %w", err)
			return
		}
		if err := cfg.Validate(); err != nil {
			loadErr = err
			return
		}
		instance = &cfg
	})
	return loadErr
}

// Set stores a pre-built configuration. Intended for tests and for callers
// that bypass viper entirely.
func Set(cfg *Config) {
	instance = cfg
}

// Get returns the loaded configuration instance.
func Get() *Config {
	if instance == nil {
		panic("Configuration not initialized. Call config.Load() in the root command.")
	}
	return instance
}
