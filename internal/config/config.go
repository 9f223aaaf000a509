package config

import (
	"errors"
	"fmt"
	"os"

	"sobytnik/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Notify     NotifyConfig     `yaml:"notify"`
	Booking    BookingConfig    `yaml:"booking"`
	Exports    ExportConfig     `yaml:"exports"`
	Events     []models.Event   `yaml:"events"`
	// Groups: токен группы → идентификаторы ее руководителей.
	Groups map[string][]int64 `yaml:"groups"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	Port      int                `yaml:"port"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type NotifyConfig struct {
	DefaultChannel string `yaml:"default_channel"`
	QueueKey       string `yaml:"queue_key"`
	DeadLetterKey  string `yaml:"dead_letter_key"`
	SMTP           SMTPConfig     `yaml:"smtp"`
	Telegram       TelegramConfig `yaml:"telegram"`
}

type SMTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	From string `yaml:"from"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	Debug    bool   `yaml:"debug"`
}

type BookingConfig struct {
	DefaultGroupReservationLimit int64 `yaml:"default_group_reservation_limit"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// Загружаем .env если он есть; отсутствие файла не ошибка.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Notify.DefaultChannel != models.ChannelEmail && c.Notify.DefaultChannel != models.ChannelTelegram {
		return fmt.Errorf("unknown notify channel: %s", c.Notify.DefaultChannel)
	}

	if c.Notify.DefaultChannel == models.ChannelTelegram && c.Notify.Telegram.BotToken == "" {
		return errors.New("telegram bot token is required for telegram notifications")
	}

	return ValidateEvents(c.Events)
}

func ValidateEvents(events []models.Event) error {
	// Check for duplicate event IDs
	eventIDs := make(map[int64]bool)
	for _, event := range events {
		if event.ID == 0 {
			return fmt.Errorf("event '%s' has invalid ID 0", event.Title)
		}
		if eventIDs[event.ID] {
			return fmt.Errorf("duplicate event ID found: %d", event.ID)
		}
		eventIDs[event.ID] = true

		if event.NumberOfPlaces < 0 {
			return fmt.Errorf("event '%s' has negative number of places", event.Title)
		}
		if event.GroupReservationLimit < 0 {
			return fmt.Errorf("event '%s' has negative group reservation limit", event.Title)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = models.RateLimitRPS
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = models.RateLimitBurst
	}
	if c.Notify.DefaultChannel == "" {
		c.Notify.DefaultChannel = models.ChannelEmail
	}
	if c.Notify.QueueKey == "" {
		c.Notify.QueueKey = "notify:queue"
	}
	if c.Notify.DeadLetterKey == "" {
		c.Notify.DeadLetterKey = "notify:deadletter"
	}
	if c.Booking.DefaultGroupReservationLimit == 0 {
		c.Booking.DefaultGroupReservationLimit = models.DefaultGroupReservationLimit
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 10
	}
}
