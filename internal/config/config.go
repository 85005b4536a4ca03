package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMongo    = "mongo"
	StorageDriverMemory   = "memory"

	BrokerDriverRedis = "redis"
	BrokerDriverKafka = "kafka"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Broker    BrokerConfig    `mapstructure:"broker"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Booking   BookingConfig   `mapstructure:"booking"`
	Outbox    OutboxConfig    `mapstructure:"outbox"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN prefers an explicit URL over the individual parts.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type KafkaConfig struct {
	Brokers  []string `mapstructure:"brokers"`
	GroupID  string   `mapstructure:"group_id"`
	ClientID string   `mapstructure:"client_id"`
}

type BrokerConfig struct {
	Driver string `mapstructure:"driver"`
	Topic  string `mapstructure:"topic"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type BookingConfig struct {
	PlatformFee float64 `mapstructure:"platform_fee"`
	DepositRate float64 `mapstructure:"deposit_rate"`
	Currency    string  `mapstructure:"currency"`
	// Timezone is where business days start and end.
	Timezone string `mapstructure:"timezone"`
}

// Location resolves Timezone, defaulting to UTC.
func (c BookingConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

type OutboxConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	Lease         time.Duration `mapstructure:"lease"`
	Retention     time.Duration `mapstructure:"retention"`
}

type ReconcileConfig struct {
	Schedule  string        `mapstructure:"schedule"`
	Grace     time.Duration `mapstructure:"grace"`
	BatchSize int           `mapstructure:"batch_size"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type CacheConfig struct {
	BusinessTTL time.Duration `mapstructure:"business_ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// envOverrides are the BOOKING_* variables applied on top of the file.
type envOverrides struct {
	DatabaseURL   string   `envconfig:"DATABASE_URL"`
	StorageDriver string   `envconfig:"STORAGE_DRIVER"`
	MongoURI      string   `envconfig:"MONGO_URI"`
	RedisURL      string   `envconfig:"REDIS_URL"`
	KafkaBrokers  []string `envconfig:"KAFKA_BROKERS"`
	BrokerDriver  string   `envconfig:"BROKER_DRIVER"`
	JWTSecret     string   `envconfig:"JWT_SECRET"`
	Port          int      `envconfig:"PORT"`
	LogLevel      string   `envconfig:"LOG_LEVEL"`
	SMTPPassword  string   `envconfig:"SMTP_PASSWORD"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("storage.driver", StorageDriverPostgres)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "booking")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("mongo.uri", "mongodb://localhost:27017/?replicaSet=rs0")
	v.SetDefault("mongo.database", "booking")

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.group_id", "booking-notifications")
	v.SetDefault("kafka.client_id", "booking-api")

	v.SetDefault("broker.driver", BrokerDriverRedis)
	v.SetDefault("broker.topic", "booking.notifications")

	v.SetDefault("jwt.issuer", "booking-api")

	v.SetDefault("booking.platform_fee", 1.99)
	v.SetDefault("booking.deposit_rate", 0.10)
	v.SetDefault("booking.currency", "USD")
	v.SetDefault("booking.timezone", "UTC")

	v.SetDefault("outbox.batch_size", 50)
	v.SetDefault("outbox.poll_interval", 2*time.Second)
	v.SetDefault("outbox.retry_attempts", 5)
	v.SetDefault("outbox.retry_delay", 10*time.Second)
	v.SetDefault("outbox.lease", time.Minute)
	v.SetDefault("outbox.retention", 7*24*time.Hour)

	v.SetDefault("reconcile.schedule", "@every 5m")
	v.SetDefault("reconcile.grace", 10*time.Minute)
	v.SetDefault("reconcile.batch_size", 200)

	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.from", "no-reply@booking.local")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 20.0)
	v.SetDefault("rate_limit.burst", 40)

	v.SetDefault("cache.business_ttl", 5*time.Minute)

	v.SetDefault("log.level", "info")
}

// LoadConfig reads config.yml from the given directories (or the usual
// locations), then applies .env and BOOKING_* overrides. A missing config
// file is not an error.
func LoadConfig(paths ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !isNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	if len(paths) == 0 {
		paths = []string{".", "./config", "/app/config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !stderrors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var env envOverrides
	if err := envconfig.Process("booking", &env); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	cfg.applyOverrides(env)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyOverrides(env envOverrides) {
	if env.DatabaseURL != "" {
		c.Database.URL = env.DatabaseURL
	}
	if env.StorageDriver != "" {
		c.Storage.Driver = env.StorageDriver
	}
	if env.MongoURI != "" {
		c.Mongo.URI = env.MongoURI
	}
	if env.RedisURL != "" {
		c.Redis.URL = env.RedisURL
	}
	if len(env.KafkaBrokers) > 0 {
		c.Kafka.Brokers = env.KafkaBrokers
	}
	if env.BrokerDriver != "" {
		c.Broker.Driver = env.BrokerDriver
	}
	if env.JWTSecret != "" {
		c.JWT.Secret = env.JWTSecret
	}
	if env.Port != 0 {
		c.Server.Port = env.Port
	}
	if env.LogLevel != "" {
		c.Log.Level = env.LogLevel
	}
	if env.SMTPPassword != "" {
		c.SMTP.Password = env.SMTPPassword
	}
}

func (c *Config) Validate() error {
	var problems []string

	switch c.Storage.Driver {
	case StorageDriverPostgres, StorageDriverMongo, StorageDriverMemory:
	default:
		problems = append(problems, fmt.Sprintf("unknown storage.driver %q", c.Storage.Driver))
	}
	switch c.Broker.Driver {
	case BrokerDriverRedis, BrokerDriverKafka:
	default:
		problems = append(problems, fmt.Sprintf("unknown broker.driver %q", c.Broker.Driver))
	}
	if c.Server.Port <= 0 {
		problems = append(problems, "server.port must be positive")
	}
	if c.Booking.DepositRate <= 0 || c.Booking.DepositRate >= 1 {
		problems = append(problems, "booking.deposit_rate must be between 0 and 1")
	}
	if c.Booking.PlatformFee < 0 {
		problems = append(problems, "booking.platform_fee must not be negative")
	}
	if _, err := c.Booking.Location(); err != nil {
		problems = append(problems, fmt.Sprintf("booking.timezone: %v", err))
	}
	if c.Outbox.BatchSize <= 0 || c.Outbox.PollInterval <= 0 || c.Outbox.RetryAttempts <= 0 || c.Outbox.RetryDelay <= 0 || c.Outbox.Lease <= 0 {
		problems = append(problems, "outbox batch_size, poll_interval, retry_attempts, retry_delay and lease must be positive")
	}
	if c.Reconcile.Grace <= 0 {
		problems = append(problems, "reconcile.grace must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func isNotExist(err error) bool {
	return stderrors.Is(err, fs.ErrNotExist)
}
