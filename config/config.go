package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.yaml.in/yaml/v4"

	"github.com/BearBump/VaultTrack/internal/jobs"
)

type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	Vault      VaultConfig      `yaml:"vault"`
	Ship24     Ship24Config     `yaml:"ship24"`
	Sendcloud  SendcloudConfig  `yaml:"sendcloud"`
	CardTrader CardTraderConfig `yaml:"cardtrader"`
	Sync       SyncConfig       `yaml:"sync"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                     string `yaml:"host"`
	Port                     int    `yaml:"port"`
	TrackingUpdatedTopicName string `yaml:"tracking_updated_topic_name"`
	NotificationsTopicName   string `yaml:"notifications_topic_name"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type VaultConfig struct {
	GRPCAddr                string `yaml:"grpc_addr"`
	HTTPAddr                string `yaml:"http_addr"`
	KafkaConsumerGroup      string `yaml:"kafka_consumer_group"`
	CurrentStatusTTLSeconds int    `yaml:"current_status_ttl_seconds"`

	FingerprintCacheTTLSeconds int `yaml:"fingerprint_cache_ttl_seconds"`
	MatchThreshold             int `yaml:"match_threshold"`
	ReconcileFanOut            int `yaml:"reconcile_fan_out"`

	WorkerPollIntervalSeconds int            `yaml:"worker_poll_interval_seconds"`
	WorkerBatchSize           int            `yaml:"worker_batch_size"`
	WorkerConcurrency         int            `yaml:"worker_concurrency"`
	WorkerLeaseSeconds        int            `yaml:"worker_lease_seconds"`
	WorkerRateLimitPerMinute  int            `yaml:"worker_rate_limit_per_minute"`
	WorkerProviderRateLimits  map[string]int `yaml:"worker_provider_rate_limits"`
	WorkerDefaultProvider     string         `yaml:"worker_default_provider"`

	WorkerHTTPAddr string `yaml:"worker_http_addr"`

	// Worker scheduling (optional). Unset means in transit 30..120 minutes,
	// pending 90 minutes, backoff 5/15/30/60 minutes.
	WorkerNextCheckInTransitMinSeconds int   `yaml:"worker_next_check_in_transit_min_seconds"`
	WorkerNextCheckInTransitMaxSeconds int   `yaml:"worker_next_check_in_transit_max_seconds"`
	WorkerNextCheckPendingSeconds      int   `yaml:"worker_next_check_pending_seconds"`
	WorkerBackoffSeconds               []int `yaml:"worker_backoff_seconds"`
}

type Ship24Config struct {
	BaseURL       string `yaml:"base_url"`
	APIKey        string `yaml:"api_key"`
	WebhookSecret string `yaml:"webhook_secret"`
}

type SendcloudConfig struct {
	BaseURL   string `yaml:"base_url"`
	PublicKey string `yaml:"public_key"`
	SecretKey string `yaml:"secret_key"`
}

type CardTraderConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
	GameID  int    `yaml:"game_id"`
}

type SyncConfig struct {
	CallDelayMillis    int           `yaml:"call_delay_ms"`
	PricingDelayMillis int           `yaml:"pricing_delay_ms"`
	ChunkSize          int           `yaml:"chunk_size"`
	BackfillLimit      int           `yaml:"backfill_limit"`
	Concurrency        int           `yaml:"concurrency"`
	Schedule           jobs.Schedule `yaml:"schedule"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}

// Load reads .env (when present), the YAML file, then lets secrets from the
// environment override the file.
func Load(filename string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := LoadConfig(filename)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrides := []struct {
		env string
		dst *string
	}{
		{"SHIP24_API_KEY", &c.Ship24.APIKey},
		{"SHIP24_WEBHOOK_SECRET", &c.Ship24.WebhookSecret},
		{"SENDCLOUD_PUBLIC_KEY", &c.Sendcloud.PublicKey},
		{"SENDCLOUD_SECRET_KEY", &c.Sendcloud.SecretKey},
		{"CARDTRADER_TOKEN", &c.CardTrader.Token},
		{"DATABASE_PASSWORD", &c.Database.Password},
		{"REDIS_PASSWORD", &c.Redis.Password},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.env); ok && v != "" {
			*o.dst = v
		}
	}
}

func (c *Config) PostgresConnString() string {
	sslMode := c.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.Username, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     "/" + c.Database.DBName,
		RawQuery: "sslmode=" + sslMode,
	}
	return u.String()
}

func (c *Config) KafkaBrokers() []string {
	return []string{fmt.Sprintf("%s:%d", c.Kafka.Host, c.Kafka.Port)}
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func (c *Config) TrackingTopic() string {
	if c.Kafka.TrackingUpdatedTopicName == "" {
		return "tracking.updated"
	}
	return c.Kafka.TrackingUpdatedTopicName
}

func (c *Config) NotificationsTopic() string {
	if c.Kafka.NotificationsTopicName == "" {
		return "notifications.created"
	}
	return c.Kafka.NotificationsTopicName
}

// Seconds converts a config value; zero or negative yields def.
func Seconds(n int, def time.Duration) time.Duration {
	if n <= 0 {
		return def
	}
	return time.Duration(n) * time.Second
}

func Millis(n int, def time.Duration) time.Duration {
	if n <= 0 {
		return def
	}
	return time.Duration(n) * time.Millisecond
}

func Or[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
