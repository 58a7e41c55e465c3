package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Broker   BrokerConfig
	Outbox   OutboxConfig
	Consumer ConsumerConfig
	SMTP     SMTPConfig
	JWT      JWTConfig
	Web      WebConfig
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
	RateLimit      int `mapstructure:"rate_limit"`
	RateBurst      int `mapstructure:"rate_burst"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// BrokerConfig selects the bus implementation. Kind is "redis" or "kafka".
type BrokerConfig struct {
	Kind  string      `mapstructure:"kind"`
	Topic string      `mapstructure:"topic"`
	Redis RedisConfig `mapstructure:"redis"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type RedisConfig struct {
	URL          string `mapstructure:"url"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

type OutboxConfig struct {
	BatchSize         int           `mapstructure:"batch_size"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	PublishTimeout    time.Duration `mapstructure:"publish_timeout"`
	RetryInitialDelay time.Duration `mapstructure:"retry_initial_delay"`
	RetryMaxDelay     time.Duration `mapstructure:"retry_max_delay"`
	RetentionAge      time.Duration `mapstructure:"retention_age"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
}

type ConsumerConfig struct {
	Name          string `mapstructure:"name"`
	Group         string `mapstructure:"group"`
	MaxAttempts   int    `mapstructure:"max_attempts"`
	ReviewerInbox string `mapstructure:"reviewer_inbox"`
	MailerBatch   int    `mapstructure:"mailer_batch"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type WebConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix("ATS")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.timeoutSeconds", 30)
	viper.SetDefault("server.rate_limit", 100)
	viper.SetDefault("server.rate_burst", 200)

	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)

	viper.SetDefault("broker.kind", "redis")
	viper.SetDefault("broker.topic", "pipeline.events")

	viper.SetDefault("outbox.batch_size", 100)
	viper.SetDefault("outbox.poll_interval", "1s")
	viper.SetDefault("outbox.max_attempts", 10)
	viper.SetDefault("outbox.publish_timeout", "10s")
	viper.SetDefault("outbox.retry_initial_delay", "500ms")
	viper.SetDefault("outbox.retry_max_delay", "5m")
	viper.SetDefault("outbox.retention_age", "168h")
	viper.SetDefault("outbox.cleanup_interval", "1h")

	viper.SetDefault("consumer.name", "notifications")
	viper.SetDefault("consumer.group", "ats-notifier")
	viper.SetDefault("consumer.max_attempts", 5)
	viper.SetDefault("consumer.mailer_batch", 50)
}
