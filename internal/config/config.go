package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration loaded at startup.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	OrderResult  string `mapstructure:"order_result"`
	StalePending string `mapstructure:"stale_pending"`
}

type BusinessConfig struct {
	DefaultStateID      int64 `mapstructure:"default_state_id"`
	UpstreamTimeoutSecs int   `mapstructure:"upstream_timeout_seconds"`
	OrderIDMaxAttempts  int   `mapstructure:"order_id_max_attempts"`
	MaxRetryCount       int   `mapstructure:"max_retry_count"`
	RefundRetrySeconds  int   `mapstructure:"refund_retry_seconds"`
	PendingSweepMinutes int   `mapstructure:"pending_sweep_minutes"`
	LockTimeoutSeconds  int   `mapstructure:"lock_timeout_seconds"`
}

// UpstreamTimeout bounds a single upstream recharge call.
func (b BusinessConfig) UpstreamTimeout() time.Duration {
	if b.UpstreamTimeoutSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(b.UpstreamTimeoutSecs) * time.Second
}

var GlobalConfig *Config

// LoadConfig reads the YAML config file. The server cannot run without a
// usable config, so any failure here is fatal.
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("failed to read config file: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("failed to parse config file: %v", err)
	}

	GlobalConfig = config
	return config
}
