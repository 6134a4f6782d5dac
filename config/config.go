package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Fanout   FanoutConfig   `mapstructure:"fanout"`
	Relay    RelayConfig    `mapstructure:"relay"`
	Janitor  JanitorConfig  `mapstructure:"janitor"`
	Mail     MailConfig     `mapstructure:"mail"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Sentry   SentryConfig   `mapstructure:"sentry"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	BaseURL string `mapstructure:"base_url"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// EmbeddedWorkers 在 API 进程内启动的投递 worker 数量，0 表示只依赖独立 worker 进程
	EmbeddedWorkers int `mapstructure:"embedded_workers"`

	// OperatorToken 运维接口（批次查询/取消）的共享密钥，为空时运维接口不可用
	OperatorToken string `mapstructure:"operator_token"`
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"` // postgres, mysql, sqlite
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	FilePath        string `mapstructure:"file_path"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // minutes
	LogLevel        string `mapstructure:"log_level"`         // silent, error, warn, info
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// QueueConfig 异步执行层（任务队列 + worker 池）
type QueueConfig struct {
	Driver        string        `mapstructure:"driver"` // memory, redis, kafka
	Name          string        `mapstructure:"name"`
	Capacity      int           `mapstructure:"capacity"`
	Workers       int           `mapstructure:"workers"`
	RetryMax      int           `mapstructure:"retry_max"`
	RetryBase     time.Duration `mapstructure:"retry_base"`
	RetryMaxDelay time.Duration `mapstructure:"retry_max_delay"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerSec    int           `mapstructure:"rate_per_sec"`
	Kafka         KafkaConfig   `mapstructure:"kafka"`

	// RequeueOnStart worker 启动时把 redis processing 列表中的遗留任务放回队列，仅在单 worker 部署时开启
	RequeueOnStart bool `mapstructure:"requeue_on_start"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type FanoutConfig struct {
	PageSize     int           `mapstructure:"page_size"`
	UnitSize     int           `mapstructure:"unit_size"`
	BatchTTL     time.Duration `mapstructure:"batch_ttl"`
	UserCacheTTL time.Duration `mapstructure:"user_cache_ttl"`
}

// RelayConfig outbox 转发
type RelayConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	ClaimLimit  int           `mapstructure:"claim_limit"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Lease       time.Duration `mapstructure:"lease"`
}

type JanitorConfig struct {
	Schedule        string        `mapstructure:"schedule"`
	BatchRetention  time.Duration `mapstructure:"batch_retention"`
	OutboxRetention time.Duration `mapstructure:"outbox_retention"`
}

type MailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expire time.Duration `mapstructure:"expire"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, console
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
	Insecure    bool    `mapstructure:"insecure"`
}

type SentryConfig struct {
	DSN              string  `mapstructure:"dsn"`
	TracesSampleRate float64 `mapstructure:"traces_sample_rate"`
}

// Load 读取 config/config.yaml（可选）并叠加 APP_ 前缀的环境变量
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "favorite-notify")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.base_url", "http://localhost:8080")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.embedded_workers", 0)
	v.SetDefault("server.operator_token", "")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.file_path", "./data/favorite-notify.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)

	v.SetDefault("queue.driver", "redis")
	v.SetDefault("queue.name", "notifications")
	v.SetDefault("queue.capacity", 10000)
	v.SetDefault("queue.workers", 8)
	v.SetDefault("queue.retry_max", 3)
	v.SetDefault("queue.retry_base", "500ms")
	v.SetDefault("queue.retry_max_delay", "15s")
	v.SetDefault("queue.timeout", "60s")
	v.SetDefault("queue.rate_per_sec", 200)
	v.SetDefault("queue.requeue_on_start", false)
	v.SetDefault("queue.kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("queue.kafka.topic", "notifications")
	v.SetDefault("queue.kafka.group_id", "favorite-notify-worker")

	v.SetDefault("fanout.page_size", 10000)
	v.SetDefault("fanout.unit_size", 100)
	v.SetDefault("fanout.batch_ttl", "168h")
	v.SetDefault("fanout.user_cache_ttl", "10m")

	v.SetDefault("relay.interval", "200ms")
	v.SetDefault("relay.claim_limit", 64)
	v.SetDefault("relay.max_attempts", 5)
	v.SetDefault("relay.lease", "5m")

	v.SetDefault("janitor.schedule", "@every 10m")
	v.SetDefault("janitor.batch_retention", "24h")
	v.SetDefault("janitor.outbox_retention", "168h")

	v.SetDefault("mail.enabled", false)
	v.SetDefault("mail.host", "localhost")
	v.SetDefault("mail.port", 1025)
	v.SetDefault("mail.from", "no-reply@favorite-notify.local")

	v.SetDefault("jwt.secret", "change-me")
	v.SetDefault("jwt.expire", "72h")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.service_name", "favorite-notify")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("tracing.insecure", true)

	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.traces_sample_rate", 0.0)
}
