package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	DB     DBConfig     `mapstructure:"db"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Cron   CronConfig   `mapstructure:"cron"`

	HealthMonitor HealthMonitorConfig `mapstructure:"health_monitor"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
	Dedup         DedupConfig         `mapstructure:"dedup"`
	Resolver      ResolverConfig      `mapstructure:"resolver"`
	Pipelines     PipelinesConfig     `mapstructure:"pipelines"`
	Alerts        AlertsConfig        `mapstructure:"alerts"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CronConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	HealthMonitor  string `mapstructure:"health_monitor"`
	Dispatch       string `mapstructure:"dispatch"`
	Resolver       string `mapstructure:"resolver"`
	Pipelines      string `mapstructure:"pipelines"`
	Alerts         string `mapstructure:"alerts"`
	ProbeRetention string `mapstructure:"probe_retention"`
}

type HealthMonitorConfig struct {
	Concurrency      int           `mapstructure:"concurrency"`
	ProbeTimeout     time.Duration `mapstructure:"probe_timeout"`
	FailingThreshold int           `mapstructure:"failing_threshold"`
	RetentionDays    int           `mapstructure:"retention_days"`
}

type SchedulerConfig struct {
	BatchSize        int           `mapstructure:"batch_size"`
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout"`
	InterCallDelay   time.Duration `mapstructure:"inter_call_delay"`
	LeaseTTL         time.Duration `mapstructure:"lease_ttl"`
	FailingThreshold int           `mapstructure:"failing_threshold"`
}

type DedupConfig struct {
	GeoPrecision int `mapstructure:"geo_precision"`
	BatchSize    int `mapstructure:"batch_size"`
}

type ResolverConfig struct {
	BatchSize int `mapstructure:"batch_size"`
}

type PipelinesConfig struct {
	BatchSize int           `mapstructure:"batch_size"`
	LeaseTTL  time.Duration `mapstructure:"lease_ttl"`
}

type AlertsConfig struct {
	DefaultLookback      time.Duration `mapstructure:"default_lookback"`
	HighOpportunityScore float64       `mapstructure:"high_opportunity_score"`
	LeaseTTL             time.Duration `mapstructure:"lease_ttl"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.health_monitor", "@every 5m")
	v.SetDefault("cron.dispatch", "@every 1m")
	v.SetDefault("cron.resolver", "@every 2m")
	v.SetDefault("cron.pipelines", "@every 1m")
	v.SetDefault("cron.alerts", "@every 2m")
	v.SetDefault("cron.probe_retention", "@every 24h")

	v.SetDefault("health_monitor.concurrency", 5)
	v.SetDefault("health_monitor.probe_timeout", "10s")
	v.SetDefault("health_monitor.failing_threshold", 2)
	v.SetDefault("health_monitor.retention_days", 30)

	v.SetDefault("scheduler.batch_size", 10)
	v.SetDefault("scheduler.fetch_timeout", "10s")
	v.SetDefault("scheduler.inter_call_delay", "750ms")
	v.SetDefault("scheduler.lease_ttl", "2m")
	v.SetDefault("scheduler.failing_threshold", 2)

	v.SetDefault("dedup.geo_precision", 4)
	v.SetDefault("dedup.batch_size", 500)

	v.SetDefault("resolver.batch_size", 100)

	v.SetDefault("pipelines.batch_size", 10)
	v.SetDefault("pipelines.lease_ttl", "2m")

	v.SetDefault("alerts.default_lookback", "24h")
	v.SetDefault("alerts.high_opportunity_score", 80)
	v.SetDefault("alerts.lease_ttl", "2m")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
