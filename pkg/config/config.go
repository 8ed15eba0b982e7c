package config

import (
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("config", fx.Provide(Load))

// Config is the immutable configuration snapshot handed to every component at
// construction time. Tests build one by hand with deterministic values.
type Config struct {
	AppEnv  string `mapstructure:"APP_ENV"`
	AppName string `mapstructure:"APP_NAME"`

	Server struct {
		Addr         string        `mapstructure:"ADDR"`
		Mode         string        `mapstructure:"MODE"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`

	TLS struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`

	Database struct {
		Type     string `mapstructure:"TYPE"`
		Host     string `mapstructure:"HOST"`
		Port     string `mapstructure:"PORT"`
		DBName   string `mapstructure:"DBNAME"`
		User     string `mapstructure:"USER"`
		Password string `mapstructure:"PASSWORD"`
		SSLMode  string `mapstructure:"SSLMODE"`
		Timezone string `mapstructure:"TIMEZONE"`

		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`

	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`

	Reports ReportsConfig `mapstructure:"REPORTS"`
}

// ReportsConfig carries the report scheduling knobs. The bounds mirror the
// dynamic settings of the upstream scheduler: idle pollers back off by a
// random interval inside [MinPollingSeconds, MaxPollingSeconds], and a single
// poll call attempts at most MaxLockRetries lock candidates.
type ReportsConfig struct {
	MinPollingSeconds      int    `mapstructure:"MIN_POLLING_SECONDS"`
	MaxPollingSeconds      int    `mapstructure:"MAX_POLLING_SECONDS"`
	MaxLockRetries         int    `mapstructure:"MAX_LOCK_RETRIES"`
	DefaultItemsQueryCount int    `mapstructure:"DEFAULT_ITEMS_QUERY_COUNT"`
	PollConcurrency        int    `mapstructure:"POLL_CONCURRENCY"`
	RbacEnabled            bool   `mapstructure:"RBAC_ENABLED"`
	PollAccessUser         string `mapstructure:"POLL_ACCESS_USER"`

	ResourceSharing struct {
		ReportDefinition bool `mapstructure:"REPORT_DEFINITION"`
		ReportInstance   bool `mapstructure:"REPORT_INSTANCE"`
	} `mapstructure:"RESOURCE_SHARING"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "reporting-scheduler")
	v.SetDefault("HTTP_SERVER.ADDR", ":8080")
	v.SetDefault("HTTP_SERVER.MODE", "release")
	v.SetDefault("HTTP_SERVER.READ_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_SERVER.WRITE_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_SERVER.IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("DATABASE.TYPE", "sqlite")
	v.SetDefault("DATABASE.DBNAME", "reporting.db")
	v.SetDefault("REDIS.ADDR", "127.0.0.1:6379")
	v.SetDefault("REDIS.POOL_SIZE", 10)
	v.SetDefault("REDIS.POOL_TIMEOUT", 30*time.Second)
	v.SetDefault("REPORTS.MIN_POLLING_SECONDS", 300)
	v.SetDefault("REPORTS.MAX_POLLING_SECONDS", 900)
	v.SetDefault("REPORTS.MAX_LOCK_RETRIES", 4)
	v.SetDefault("REPORTS.DEFAULT_ITEMS_QUERY_COUNT", 100)
	v.SetDefault("REPORTS.POLL_CONCURRENCY", 2)
	v.SetDefault("REPORTS.RBAC_ENABLED", false)
	v.SetDefault("REPORTS.POLL_ACCESS_USER", "reports_worker")
}

// Load reads configuration from config.yaml (working directory or /etc/reporting)
// plus REPORTING_* environment overrides. The config file is watched so report
// settings can be tuned without a restart.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/reporting")

	v.SetEnvPrefix("REPORTING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		zap.L().Info("[Config] no config file found, using defaults and environment")
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		zap.L().Info("[Config] config file changed", zap.String("file", e.Name))
		if err := v.Unmarshal(cfg); err != nil {
			zap.L().Error("[Config] failed to reload config", zap.Error(err))
		}
	})
	v.WatchConfig()

	return cfg, nil
}
