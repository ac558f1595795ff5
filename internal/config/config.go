package config

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Site     SiteConfig
	Realtime RealtimeConfig
	Search   SearchConfig
	Store    StoreConfig
	Redis    RedisConfig
	Database DatabaseConfig
	Kafka    KafkaConfig
	LogLevel slog.Level
}

var (
	ConfigInstance *Config
	once           sync.Once
)

type SiteConfig struct {
	BaseURL   string
	SessionID string
}

type RealtimeConfig struct {
	URL          string
	Token        string
	Secret       string
	TokenExpire  time.Duration
	ReplyTimeout time.Duration
}

type SearchConfig struct {
	Debounce time.Duration
}

type StoreConfig struct {
	Backend string
	// Path of the SQLite file; empty means the user config directory.
	Path string
}

type RedisConfig struct {
	URI          string
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN renders the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		d.Host, d.User, d.Password, d.DBName, d.Port, d.SSLMode)
}

type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
}

// Enabled reports whether publications should be forwarded.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// LoadConfig reads an optional .env file and the environment once.
func LoadConfig() (*Config, error) {
	var err error
	once.Do(func() {
		if loadErr := godotenv.Load(); loadErr != nil {
			slog.Debug("No .env file found, using environment variables")
		}
		v := viper.New()
		setDefaults(v)
		v.AutomaticEnv()
		ConfigInstance, err = fromViper(v)
	})
	return ConfigInstance, err
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DEVGURU_BASE_URL", "http://127.0.0.1:8000")
	v.SetDefault("CENTRIFUGE_WS_URL", "ws://127.0.0.1:8010/connection/websocket")
	v.SetDefault("CENTRIFUGE_SECRET", "")
	v.SetDefault("CENTRIFUGE_TOKEN_EXPIRE", 1800*time.Second)
	v.SetDefault("CENTRIFUGE_REPLY_TIMEOUT", 10*time.Second)
	v.SetDefault("SEARCH_DEBOUNCE", 300*time.Millisecond)
	v.SetDefault("STORE_BACKEND", "sqlite")
	v.SetDefault("STORE_PATH", "")
	v.SetDefault("REDIS_URL", "redis://127.0.0.1:6379/0")
	v.SetDefault("REDIS_MAX_RETRIES", 3)
	v.SetDefault("REDIS_DIAL_TIMEOUT", 5*time.Second)
	v.SetDefault("REDIS_READ_TIMEOUT", 3*time.Second)
	v.SetDefault("REDIS_WRITE_TIMEOUT", 3*time.Second)
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_PASSWORD", "password")
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("POSTGRES_DB", "postgres")
	v.SetDefault("POSTGRES_SSLMODE", "disable")
	v.SetDefault("KAFKA_TOPIC", "devguru.publications")
	v.SetDefault("KAFKA_CLIENT_ID", "devguru-client")
	v.SetDefault("LOG_LEVEL", "info")
}

func fromViper(v *viper.Viper) (*Config, error) {
	backend := strings.ToLower(v.GetString("STORE_BACKEND"))
	switch backend {
	case "sqlite", "redis", "postgres":
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", backend)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString("LOG_LEVEL"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	return &Config{
		Site: SiteConfig{
			BaseURL:   strings.TrimRight(v.GetString("DEVGURU_BASE_URL"), "/"),
			SessionID: v.GetString("DEVGURU_SESSION_ID"),
		},
		Realtime: RealtimeConfig{
			URL:          v.GetString("CENTRIFUGE_WS_URL"),
			Token:        v.GetString("CENTRIFUGE_TOKEN"),
			Secret:       v.GetString("CENTRIFUGE_SECRET"),
			TokenExpire:  v.GetDuration("CENTRIFUGE_TOKEN_EXPIRE"),
			ReplyTimeout: v.GetDuration("CENTRIFUGE_REPLY_TIMEOUT"),
		},
		Search: SearchConfig{
			Debounce: v.GetDuration("SEARCH_DEBOUNCE"),
		},
		Store: StoreConfig{
			Backend: backend,
			Path:    v.GetString("STORE_PATH"),
		},
		Redis: RedisConfig{
			URI:          v.GetString("REDIS_URL"),
			MaxRetries:   v.GetInt("REDIS_MAX_RETRIES"),
			DialTimeout:  v.GetDuration("REDIS_DIAL_TIMEOUT"),
			ReadTimeout:  v.GetDuration("REDIS_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("REDIS_WRITE_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("POSTGRES_HOST"),
			Port:     v.GetString("POSTGRES_PORT"),
			User:     v.GetString("POSTGRES_USER"),
			Password: v.GetString("POSTGRES_PASSWORD"),
			DBName:   v.GetString("POSTGRES_DB"),
			SSLMode:  v.GetString("POSTGRES_SSLMODE"),
		},
		Kafka: KafkaConfig{
			Brokers:  splitList(v.GetString("KAFKA_BROKERS")),
			Topic:    v.GetString("KAFKA_TOPIC"),
			ClientID: v.GetString("KAFKA_CLIENT_ID"),
		},
		LogLevel: level,
	}, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
