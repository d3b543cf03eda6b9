// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Conflict  ConflictConfig  `yaml:"conflict" mapstructure:"conflict"`
	Staleness StalenessConfig `yaml:"staleness" mapstructure:"staleness"`
	Chase     ChaseConfig     `yaml:"chase" mapstructure:"chase"`
	Carrier   CarrierConfig   `yaml:"carrier" mapstructure:"carrier"`
	Notify    NotifyConfig    `yaml:"notify" mapstructure:"notify"`
	Scheduler SchedulerConfig `yaml:"scheduler" mapstructure:"scheduler"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ConflictConfig holds the variance tolerances for conflict detection.
// These are deliberately configuration, not hard-coded behavior: the policy
// owner for the exact values is outside this codebase.
type ConflictConfig struct {
	// ProgressThresholdPts is the percent-complete variance (in percentage
	// points) above which a supplier/internal disagreement opens a conflict.
	ProgressThresholdPts float64 `yaml:"progress_threshold_pts" mapstructure:"progress_threshold_pts"`
	// ScheduleToleranceDays is how far a carrier-verified ETA may slip past
	// the milestone's required date before a schedule conflict opens.
	ScheduleToleranceDays int `yaml:"schedule_tolerance_days" mapstructure:"schedule_tolerance_days"`
}

// StalenessConfig holds the freshness windows for the forecast flagger.
type StalenessConfig struct {
	// DefaultWindowDays is the normal freshness window for reports.
	DefaultWindowDays int `yaml:"default_window_days" mapstructure:"default_window_days"`
	// NearDueWindowDays is the tightened window used close to the due date.
	NearDueWindowDays int `yaml:"near_due_window_days" mapstructure:"near_due_window_days"`
	// NearDueProximityDays defines "close to the due date".
	NearDueProximityDays int `yaml:"near_due_proximity_days" mapstructure:"near_due_proximity_days"`
}

// ChaseConfig configures the chase/escalation engine.
type ChaseConfig struct {
	// Reminder cadence per risk tier.
	LowCadence      time.Duration `yaml:"low_cadence" mapstructure:"low_cadence"`
	MediumCadence   time.Duration `yaml:"medium_cadence" mapstructure:"medium_cadence"`
	HighCadence     time.Duration `yaml:"high_cadence" mapstructure:"high_cadence"`
	CriticalCadence time.Duration `yaml:"critical_cadence" mapstructure:"critical_cadence"`

	// MissesPerEscalation is how many consecutive unanswered reminders
	// advance the recipient chain one level.
	MissesPerEscalation int `yaml:"misses_per_escalation" mapstructure:"misses_per_escalation"`

	// ScanBudget is the wall-clock budget for one chase scan.
	ScanBudget time.Duration `yaml:"scan_budget" mapstructure:"scan_budget"`
	// MaxConcurrent bounds how many milestones are chased in parallel.
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`

	// PolicyPath optionally points at a YAML escalation-policy file mapping
	// escalation levels to recipients.
	PolicyPath string `yaml:"policy_path" mapstructure:"policy_path"`
}

// CarrierConfig configures outbound carrier tracking lookups.
type CarrierConfig struct {
	// Endpoints are tried in priority order; the first success wins.
	// Carrier API shape differs by integration path, so more than one
	// variant is usually configured.
	Endpoints      []string      `yaml:"endpoints" mapstructure:"endpoints"`
	Timeout        time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries     int           `yaml:"max_retries" mapstructure:"max_retries"`
	RequestsPerSec float64       `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	APIKey         string        `yaml:"api_key" mapstructure:"api_key"`
}

// NotifyConfig configures the reminder/escalation webhook collaborator.
type NotifyConfig struct {
	WebhookURL string        `yaml:"webhook_url" mapstructure:"webhook_url"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// SchedulerConfig configures the periodic task runner.
type SchedulerConfig struct {
	ChaseSpec  string `yaml:"chase_spec" mapstructure:"chase_spec"`
	DigestSpec string `yaml:"digest_spec" mapstructure:"digest_spec"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/infradyn")

	// Environment
	v.SetEnvPrefix("INFRADYN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("conflict.progress_threshold_pts", 5.0)
	v.SetDefault("conflict.schedule_tolerance_days", 3)
	v.SetDefault("staleness.default_window_days", 7)
	v.SetDefault("staleness.near_due_window_days", 3)
	v.SetDefault("staleness.near_due_proximity_days", 3)
	v.SetDefault("chase.low_cadence", "168h")
	v.SetDefault("chase.medium_cadence", "72h")
	v.SetDefault("chase.high_cadence", "24h")
	v.SetDefault("chase.critical_cadence", "24h")
	v.SetDefault("chase.misses_per_escalation", 2)
	v.SetDefault("chase.scan_budget", "10m")
	v.SetDefault("chase.max_concurrent", 8)
	v.SetDefault("carrier.timeout", "10s")
	v.SetDefault("carrier.max_retries", 3)
	v.SetDefault("carrier.requests_per_sec", 5.0)
	v.SetDefault("notify.timeout", "10s")
	v.SetDefault("scheduler.chase_spec", "@every 4h")
	v.SetDefault("scheduler.digest_spec", "@every 24h")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that required settings are present for the given
// subsystem ("store", "serve", "chase").
func (c *Config) Validate(subsystem string) error {
	switch subsystem {
	case "store":
		if c.Store.Driver != "postgres" && c.Store.Driver != "sqlite" {
			return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
		}
		if c.Store.DatabaseURL == "" {
			return eris.New("config: store.database_url is required")
		}
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			return eris.Errorf("config: invalid server port %d", c.Server.Port)
		}
	case "chase":
		if c.Chase.MissesPerEscalation <= 0 {
			return eris.New("config: chase.misses_per_escalation must be positive")
		}
		if c.Chase.ScanBudget <= 0 {
			return eris.New("config: chase.scan_budget must be positive")
		}
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
