package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/pulsewatch/pulsewatch/internal/emission"
	"github.com/pulsewatch/pulsewatch/internal/series"
	"github.com/pulsewatch/pulsewatch/pkg/errors"
)

// Config is the full configuration surface of the engine.
type Config struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	MetricsPort int    `mapstructure:"metrics_port"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// TickInterval is how often the timer loop fires for every series.
	TickInterval time.Duration `mapstructure:"tick_interval"`

	Redis  RedisConfig     `mapstructure:"redis"`
	Influx InfluxConfig    `mapstructure:"influx"`
	Alerts AlertConfig     `mapstructure:"alerts"`
	Series []series.Config `mapstructure:"series"`
}

// RedisConfig configures the optional shared alert throttle.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// InfluxConfig configures the optional InfluxDB emission sink.
type InfluxConfig struct {
	Enabled               bool `mapstructure:"enabled"`
	emission.InfluxConfig `mapstructure:",squash"`
}

// AlertConfig configures alert delivery.
type AlertConfig struct {
	Cooldown   time.Duration `mapstructure:"cooldown"`
	WebhookURL string        `mapstructure:"webhook_url"`
}

// Load reads configuration from the given file (or the default search path)
// plus PULSEWATCH_* environment variables, applying defaults for every knob.
func Load(cfgFile string) (*Config, error) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/pulsewatch")
		viper.SetConfigName("pulsewatch")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("PULSEWATCH")
	viper.AutomaticEnv()

	viper.SetDefault("host", "0.0.0.0")
	viper.SetDefault("port", 8080)
	viper.SetDefault("metrics_port", 9090)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")
	viper.SetDefault("tick_interval", time.Minute)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("alerts.cooldown", 90*time.Second)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.WrapError(err, errors.ErrorTypeConfiguration,
				errors.CodeInvalidConfig, "failed to read config file")
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeConfiguration,
			errors.CodeInvalidConfig, "failed to unmarshal config")
	}

	for i := range config.Series {
		applySeriesDefaults(&config.Series[i], config.Alerts.Cooldown)
	}
	return config, nil
}

// applySeriesDefaults fills the per-series knobs: a 1440-row window of
// 60-second buckets over the slow-query fields, and the global cooldown.
func applySeriesDefaults(sc *series.Config, cooldown time.Duration) {
	if sc.Rows <= 0 {
		sc.Rows = 1440
	}
	if sc.SecPerRow <= 0 {
		sc.SecPerRow = 60
	}
	if len(sc.Fields) == 0 {
		sc.Fields = []string{"query_time", "lock_time", "response_size"}
	}
	if sc.Cooldown <= 0 {
		sc.Cooldown = cooldown
	}
}
