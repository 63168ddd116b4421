package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "MEDTRACK"

// Config es la configuración completa del proceso.
// Orden de precedencia: defaults < archivo YAML < env MEDTRACK_*.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Log       LogConfig       `mapstructure:"log"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Doses     DosesConfig     `mapstructure:"doses"`
	Triage    TriageConfig    `mapstructure:"triage"`
	Reminders RemindersConfig `mapstructure:"reminders"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Seed      SeedConfig      `mapstructure:"seed"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig: DSN vacío => adapters in-memory (modo dev).
type DatabaseConfig struct {
	DSN     string `mapstructure:"dsn"`
	Migrate bool   `mapstructure:"migrate"`
}

// AuthConfig: VerifyURL vacío => modo dev con X-Debug-User-ID.
type AuthConfig struct {
	VerifyURL    string        `mapstructure:"verify_url"`
	APIKey       string        `mapstructure:"api_key"`
	APIKeyHeader string        `mapstructure:"api_key_header"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ScheduleConfig: horarios por defecto ("HH:MM") por regla de frecuencia.
type ScheduleConfig struct {
	Timezone    string        `mapstructure:"timezone"`
	HorizonDays int           `mapstructure:"horizon_days"`
	Times       ScheduleTimes `mapstructure:"times"`
}

type ScheduleTimes struct {
	OnceDaily       []string `mapstructure:"once_daily"`
	TwiceDaily      []string `mapstructure:"twice_daily"`
	ThreeTimesDaily []string `mapstructure:"three_times_daily"`
	FourTimesDaily  []string `mapstructure:"four_times_daily"`
	Weekly          []string `mapstructure:"weekly"`
	Monthly         []string `mapstructure:"monthly"`
}

type DosesConfig struct {
	ClockSkew time.Duration  `mapstructure:"clock_skew"`
	AutoMiss  AutoMissConfig `mapstructure:"auto_miss"`
}

type AutoMissConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	GracePeriod time.Duration `mapstructure:"grace_period"`
}

type TriageConfig struct {
	UpcomingHorizon time.Duration `mapstructure:"upcoming_horizon"`
}

type RemindersConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	TickInterval time.Duration `mapstructure:"tick_interval"`
	// Lookahead acota el offset más grande que el tick puede servir.
	Lookahead time.Duration `mapstructure:"lookahead"`
	// MaxCatchUp: cuánto recupera un tick atrasado.
	MaxCatchUp time.Duration `mapstructure:"max_catch_up"`
}

type NotifyConfig struct {
	Webhook WebhookConfig `mapstructure:"webhook"`
}

// WebhookConfig: URL vacía => las intenciones solo se loguean.
type WebhookConfig struct {
	URL           string        `mapstructure:"url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	QueueSize     int           `mapstructure:"queue_size"`
}

type SeedConfig struct {
	File string `mapstructure:"file"`
}

// Load arma la config. configPath puede venir vacío; si es así se usa MEDTRACK_CONFIG.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if strings.TrimSpace(configPath) == "" {
		configPath = os.Getenv(envPrefix + "_CONFIG")
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	// MEDTRACK_SERVER_PORT, MEDTRACK_DOSES_AUTO_MISS_GRACE_PERIOD, etc.
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// PORT plano (PaaS) pisa server.port.
	if p := strings.TrimSpace(os.Getenv("PORT")); p != "" {
		var port int
		if _, err := fmt.Sscanf(p, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "medtrack")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.migrate", true)

	v.SetDefault("auth.verify_url", "")
	v.SetDefault("auth.api_key", "")
	v.SetDefault("auth.api_key_header", "X-Api-Key")
	v.SetDefault("auth.timeout", 3*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("schedule.timezone", "UTC")
	v.SetDefault("schedule.horizon_days", 7)
	v.SetDefault("schedule.times.once_daily", []string{"08:00"})
	v.SetDefault("schedule.times.twice_daily", []string{"08:00", "20:00"})
	v.SetDefault("schedule.times.three_times_daily", []string{"08:00", "14:00", "20:00"})
	v.SetDefault("schedule.times.four_times_daily", []string{"08:00", "12:00", "16:00", "20:00"})
	v.SetDefault("schedule.times.weekly", []string{"08:00"})
	v.SetDefault("schedule.times.monthly", []string{"08:00"})

	v.SetDefault("doses.clock_skew", 5*time.Minute)
	v.SetDefault("doses.auto_miss.enabled", true)
	v.SetDefault("doses.auto_miss.grace_period", 24*time.Hour)

	v.SetDefault("triage.upcoming_horizon", 120*time.Minute)

	v.SetDefault("reminders.enabled", true)
	v.SetDefault("reminders.tick_interval", 60*time.Second)
	v.SetDefault("reminders.lookahead", 24*time.Hour)
	v.SetDefault("reminders.max_catch_up", 15*time.Minute)

	v.SetDefault("notify.webhook.url", "")
	v.SetDefault("notify.webhook.timeout", 5*time.Second)
	v.SetDefault("notify.webhook.rate_per_second", 10.0)
	v.SetDefault("notify.webhook.queue_size", 256)

	v.SetDefault("seed.file", "")
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Auth.VerifyURL != "" && strings.TrimSpace(c.Auth.APIKey) == "" {
		errs = append(errs, errors.New("auth.api_key is required when auth.verify_url is set"))
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("schedule.timezone: %w", err))
	}
	if c.Schedule.HorizonDays < 0 {
		errs = append(errs, errors.New("schedule.horizon_days must be >= 0"))
	}
	if c.Doses.ClockSkew < 0 {
		errs = append(errs, errors.New("doses.clock_skew must be >= 0"))
	}
	if c.Doses.AutoMiss.Enabled && c.Doses.AutoMiss.GracePeriod <= 0 {
		errs = append(errs, errors.New("doses.auto_miss.grace_period must be > 0 when enabled"))
	}
	if c.Triage.UpcomingHorizon <= 0 {
		errs = append(errs, errors.New("triage.upcoming_horizon must be > 0"))
	}
	if c.Reminders.Enabled && c.Reminders.TickInterval < time.Second {
		errs = append(errs, errors.New("reminders.tick_interval must be >= 1s"))
	}
	if c.Reminders.Enabled && c.Reminders.Lookahead <= 0 {
		errs = append(errs, errors.New("reminders.lookahead must be > 0"))
	}
	if c.Reminders.Enabled && c.Reminders.MaxCatchUp < 0 {
		errs = append(errs, errors.New("reminders.max_catch_up must be >= 0"))
	}
	if c.Notify.Webhook.URL != "" && c.Notify.Webhook.QueueSize <= 0 {
		errs = append(errs, errors.New("notify.webhook.queue_size must be > 0"))
	}

	return errors.Join(errs...)
}

// Location devuelve la zona horaria de los horarios de dosis.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Addr devuelve ":8080".
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
