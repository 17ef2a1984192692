package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/AshishSahani0/saarthi-portal/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Backend    BackendConfig    `yaml:"backend"`
	Redis      RedisConfig      `yaml:"redis"`
	Cache      CacheConfig      `yaml:"cache"`
	Logging    LoggingConfig    `yaml:"logging"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	API        APIConfig        `yaml:"api"`
	Portal     PortalConfig     `yaml:"portal"`
	Telegram   TelegramConfig   `yaml:"telegram"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

// BackendConfig points at the authoritative booking service.
type BackendConfig struct {
	BaseURL         string `yaml:"base_url"`
	APIKey          string `yaml:"api_key"`
	APIExtra        string `yaml:"api_extra"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	MaxRetries      int    `yaml:"max_retries"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// CacheConfig is the local SQLite cache holding booking snapshots,
// journal drafts and screening results across restarts.
type CacheConfig struct {
	Path string `yaml:"path"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// PortalConfig tunes the session engine itself.
type PortalConfig struct {
	InstituteID           string `yaml:"institute_id"`
	JoinGraceMinutes      int    `yaml:"join_grace_minutes"`
	RefreshSeconds        int    `yaml:"refresh_seconds"`
	ReminderWindowMinutes int    `yaml:"reminder_window_minutes"`
	ReminderSchedule      string `yaml:"reminder_schedule"`
	Timezone              string `yaml:"timezone"`
	SnapshotTTLSeconds    int    `yaml:"snapshot_ttl_seconds"`
}

type TelegramConfig struct {
	Enabled      bool    `yaml:"enabled"`
	BotToken     string  `yaml:"bot_token"`
	StaffChatIDs []int64 `yaml:"staff_chat_ids"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; env vars may already be set by the runtime.
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Expand ${VAR} references before unmarshalling.
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
	if c.Backend.BaseURL == "" {
		return errors.New("backend base_url is required")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" || c.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
			return errors.New("telegram bot token is required when telegram is enabled")
		}
		if len(c.Telegram.StaffChatIDs) == 0 {
			return errors.New("telegram staff_chat_ids is required when telegram is enabled")
		}
	}

	if c.Portal.Timezone != "" {
		if _, err := time.LoadLocation(c.Portal.Timezone); err != nil {
			return fmt.Errorf("invalid portal timezone %q: %w", c.Portal.Timezone, err)
		}
	}

	return ValidateAPIKeys(c.API.Auth.APIKeys)
}

// ValidateAPIKeys rejects duplicate or empty client keys.
func ValidateAPIKeys(keys []APIClientKey) error {
	seen := make(map[string]bool)
	for _, k := range keys {
		if k.Key == "" {
			return fmt.Errorf("api key for client '%s' is empty", k.Name)
		}
		if seen[k.Key] {
			return fmt.Errorf("duplicate api key found for client '%s'", k.Name)
		}
		seen[k.Key] = true
	}
	return nil
}

// Location resolves the portal timezone, defaulting to local time.
func (c *Config) Location() *time.Location {
	if c.Portal.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Portal.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c *Config) applyDefaults() {
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.API.Enabled && !c.API.HTTP.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	if c.Cache.Path == "" {
		c.Cache.Path = "data/portal.db"
	}

	if c.Backend.TimeoutSeconds == 0 {
		c.Backend.TimeoutSeconds = 10
	}
	if c.Backend.MaxRetries == 0 {
		c.Backend.MaxRetries = 3
	}

	// Portal defaults
	if c.Portal.JoinGraceMinutes == 0 {
		c.Portal.JoinGraceMinutes = models.JoinGraceMinutes
	}
	if c.Portal.RefreshSeconds == 0 {
		c.Portal.RefreshSeconds = models.DefaultRefreshSeconds
	}
	if c.Portal.ReminderWindowMinutes == 0 {
		c.Portal.ReminderWindowMinutes = models.DefaultReminderWindowMinutes
	}
	if c.Portal.ReminderSchedule == "" {
		// Scan every five minutes.
		c.Portal.ReminderSchedule = "*/5 * * * *"
	}
	if c.Portal.SnapshotTTLSeconds == 0 {
		c.Portal.SnapshotTTLSeconds = models.DefaultSnapshotTTL
	}
}
