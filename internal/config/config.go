package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuongbtq/pdf-station/shared/logger"
	"github.com/cuongbtq/pdf-station/shared/postgresql"
	"github.com/cuongbtq/pdf-station/shared/rabbitmq"
	"github.com/cuongbtq/pdf-station/shared/redis"
	"github.com/cuongbtq/pdf-station/shared/sentry"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	RabbitMQ    RabbitMQConfig    `yaml:"rabbitmq"`
	Redis       RedisConfig       `yaml:"redis"`
	Storage     StorageConfig     `yaml:"storage"`
	Compression CompressionConfig `yaml:"compression"`
	Jobs        JobsConfig        `yaml:"jobs"`
	Outbox      OutboxConfig      `yaml:"outbox"`
	Sentry      SentryConfig      `yaml:"sentry"`
	Logging     LoggingConfig     `yaml:"logging"`
	App         AppConfig         `yaml:"app"`
	Worker      WorkerConfig      `yaml:"worker"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port               int           `yaml:"port"`
	ReadTimeout        time.Duration `yaml:"read_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	IdleTimeout        time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queues     QueuesConfig     `yaml:"queues"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueuesConfig names the queue behind each event channel
type QueuesConfig struct {
	Submitted  string `yaml:"submitted"`
	Status     string `yaml:"status"`
	DeadLetter string `yaml:"dead_letter"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int `yaml:"prefetch_count"`
}

// RedisConfig holds the status cache connection
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PoolSize     int           `yaml:"pool_size"`
	StatusTTL    time.Duration `yaml:"status_ttl"`
}

// StorageConfig holds the staging directories
type StorageConfig struct {
	UploadDir     string `yaml:"upload_dir"`
	OutputDir     string `yaml:"output_dir"`
	MaxUploadSize int64  `yaml:"max_upload_size"`
}

// CompressionConfig holds compression engine defaults
type CompressionConfig struct {
	DefaultQuality float64 `yaml:"default_quality"`
}

// JobsConfig holds job lifecycle settings
type JobsConfig struct {
	MaxRetries int `yaml:"max_retries"`
}

// OutboxConfig holds the outbox relay settings
type OutboxConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
}

// SentryConfig holds error reporting settings. An empty DSN disables reporting.
type SentryConfig struct {
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	Concurrency       int           `yaml:"concurrency"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// Load reads and parses the configuration file, then applies environment overrides
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnv()
	return &config, nil
}

// applyEnv lets secrets stay out of the yaml files
func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"DATABASE_PASSWORD": &c.Database.Password,
		"RABBITMQ_PASSWORD": &c.RabbitMQ.Password,
		"REDIS_PASSWORD":    &c.Redis.Password,
		"SENTRY_DSN":        &c.Sentry.DSN,
	}

	for key, target := range overrides {
		if value, ok := os.LookupEnv(key); ok {
			*target = value
		}
	}
}

// Validate checks the sections shared by every service
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if err := validatePort("database", c.Database.Port); err != nil {
		return err
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if err := validatePort("rabbitmq", c.RabbitMQ.Port); err != nil {
		return err
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	queues := c.RabbitMQ.Queues
	if queues.Submitted == "" || queues.Status == "" || queues.DeadLetter == "" {
		return fmt.Errorf("rabbitmq queues submitted, status and dead_letter are required")
	}

	if c.Jobs.MaxRetries < 0 {
		return fmt.Errorf("jobs max_retries must not be negative")
	}

	return nil
}

// ValidateAPIConfig checks the configuration needed by the API service
func (c *Config) ValidateAPIConfig() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if err := validatePort("server", c.Server.Port); err != nil {
		return err
	}

	if err := c.validateStorage(); err != nil {
		return err
	}

	if c.Storage.MaxUploadSize <= 0 {
		return fmt.Errorf("storage max_upload_size must be greater than 0")
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required")
	}

	if c.Outbox.PollInterval <= 0 {
		return fmt.Errorf("outbox poll_interval must be greater than 0")
	}

	if c.Outbox.BatchSize <= 0 {
		return fmt.Errorf("outbox batch_size must be greater than 0")
	}

	return nil
}

// ValidateWorkerConfig checks the configuration needed by the worker service
func (c *Config) ValidateWorkerConfig() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}

	if c.Worker.HeartbeatInterval <= 0 {
		return fmt.Errorf("worker heartbeat_interval must be greater than 0")
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker shutdown_timeout must be greater than 0")
	}

	if err := c.validateStorage(); err != nil {
		return err
	}

	if q := c.Compression.DefaultQuality; q < 0 || q > 1 {
		return fmt.Errorf("compression default_quality must be between 0 and 1, got %v", q)
	}

	return nil
}

func (c *Config) validateStorage() error {
	if c.Storage.UploadDir == "" {
		return errors.New("storage upload_dir is required")
	}
	if c.Storage.OutputDir == "" {
		return errors.New("storage output_dir is required")
	}
	return nil
}

func validatePort(section string, port int) error {
	if port < MinPort || port > MaxPort {
		return fmt.Errorf("invalid %s port: %d (must be between %d and %d)", section, port, MinPort, MaxPort)
	}
	return nil
}

// LoggerConfig maps the logging section onto the shared logger
func (c *LoggingConfig) LoggerConfig() *logger.Config {
	return &logger.Config{
		Level:        c.Level,
		Format:       c.Format,
		Output:       c.Output,
		EnableSource: c.EnableCaller,
		TimeFormat:   time.RFC3339,
	}
}

// ClientConfig maps the database section onto the shared PostgreSQL client
func (c *DatabaseConfig) ClientConfig() *postgresql.Config {
	return &postgresql.Config{
		Host:            c.Host,
		Port:            c.Port,
		User:            c.User,
		Password:        c.Password,
		Database:        c.Database,
		SSLMode:         c.SSLMode,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		ConnMaxIdleTime: c.ConnMaxIdleTime,
	}
}

// ClientConfig maps the rabbitmq section onto the shared client, declaring queues
func (c *RabbitMQConfig) ClientConfig(queues []rabbitmq.QueueConfig) *rabbitmq.Config {
	return &rabbitmq.Config{
		Host:               c.Host,
		Port:               c.Port,
		User:               c.User,
		Password:           c.Password,
		VHost:              c.VHost,
		ExchangeName:       c.Exchange.Name,
		ExchangeType:       c.Exchange.Type,
		ExchangeDurable:    c.Exchange.Durable,
		ExchangeAutoDelete: c.Exchange.AutoDelete,
		Queues:             queues,
		PrefetchCount:      c.Consumer.PrefetchCount,
		RetryAttempts:      c.Connection.RetryAttempts,
		RetryInterval:      c.Connection.RetryInterval,
		Heartbeat:          c.Connection.Heartbeat,
		ConnectionTimeout:  c.Connection.ConnectionTimeout,
		PublishRetries:     c.Publish.RetryAttempts,
		PublishRetryDelay:  c.Publish.RetryInterval,
		PublishBackoffMult: c.Publish.BackoffMultiplier,
	}
}

// ClientConfig maps the redis section onto the shared Redis client
func (c *RedisConfig) ClientConfig() *redis.Config {
	return &redis.Config{
		Addr:         c.Addr,
		Password:     c.Password,
		DB:           c.DB,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
		PoolSize:     c.PoolSize,
	}
}

// ReporterConfig maps the sentry section, tagging events with the app release
func (c *Config) ReporterConfig() *sentry.Config {
	env := c.Sentry.Environment
	if env == "" {
		env = c.App.Environment
	}
	return &sentry.Config{
		DSN:         c.Sentry.DSN,
		Environment: env,
		Release:     c.App.Name + "@" + c.App.Version,
	}
}
