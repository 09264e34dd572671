// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage engine types.
const (
	StorageJSON     = "json"
	StoragePostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Storage      StorageConfig      `mapstructure:"storage"`
	ErrorHandler ErrorHandlerConfig `mapstructure:"error_handler"`
	Economy      EconomyConfig      `mapstructure:"economy"`
	Bot          BotConfig          `mapstructure:"bot"`
	Admin        AdminConfig        `mapstructure:"admin"`
	Whitelist    WhitelistConfig    `mapstructure:"whitelist"`
	Log          LogConfig          `mapstructure:"log"`
}

// StorageConfig selects and configures the storage engine.
type StorageConfig struct {
	Type string `mapstructure:"type"`
	// Path is the JSON file used by the json engine.
	Path string `mapstructure:"path"`
	// Check enables the periodic existence check of the JSON file.
	Check           bool             `mapstructure:"check"`
	UpdateCountdown time.Duration    `mapstructure:"update_countdown"`
	Connection      ConnectionConfig `mapstructure:"connection"`
}

// ConnectionConfig holds the document store connection settings.
type ConnectionConfig struct {
	URI             string        `mapstructure:"uri"`
	DBName          string        `mapstructure:"db_name"`
	CollectionName  string        `mapstructure:"collection_name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// ErrorHandlerConfig is the start-up retry policy.
type ErrorHandlerConfig struct {
	HandleErrors bool `mapstructure:"handle_errors"`
	// Attempts bounds the connection attempts; 0 retries forever.
	Attempts int           `mapstructure:"attempts"`
	Time     time.Duration `mapstructure:"time"`
}

// EconomyConfig holds reward amounts, cooldowns and shop behaviour. Guild
// settings override the reward values per guild.
type EconomyConfig struct {
	DailyAmount   []float64 `mapstructure:"daily_amount"`
	HourlyAmount  []float64 `mapstructure:"hourly_amount"`
	WeeklyAmount  []float64 `mapstructure:"weekly_amount"`
	MonthlyAmount []float64 `mapstructure:"monthly_amount"`
	WorkAmount    []float64 `mapstructure:"work_amount"`

	DailyCooldown   time.Duration `mapstructure:"daily_cooldown"`
	HourlyCooldown  time.Duration `mapstructure:"hourly_cooldown"`
	WeeklyCooldown  time.Duration `mapstructure:"weekly_cooldown"`
	MonthlyCooldown time.Duration `mapstructure:"monthly_cooldown"`
	WorkCooldown    time.Duration `mapstructure:"work_cooldown"`

	SellItemsPercent     float64 `mapstructure:"sell_items_percent"`
	SubtractOnBuy        bool    `mapstructure:"subtract_on_buy"`
	SavePurchasesHistory bool    `mapstructure:"save_purchases_history"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token string `mapstructure:"token"`
}

// AdminConfig holds admin user configuration.
type AdminConfig struct {
	IDs []int64 `mapstructure:"ids"`
}

// WhitelistConfig holds chat whitelist configuration.
type WhitelistConfig struct {
	Chats []int64 `mapstructure:"chats"`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g. STORAGE_PATH, STORAGE_CONNECTION_URI, BOT_TOKEN
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the configuration produced by the defaults alone.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config defaults do not decode: %v", err))
	}
	return &cfg
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.type", StorageJSON)
	v.SetDefault("storage.path", "./storage.json")
	v.SetDefault("storage.check", false)
	v.SetDefault("storage.update_countdown", "1s")
	v.SetDefault("storage.connection.collection_name", "economy")
	v.SetDefault("storage.connection.pool_size", 4)
	v.SetDefault("storage.connection.connect_timeout", "10s")
	v.SetDefault("storage.connection.max_conn_lifetime", "1h")
	v.SetDefault("storage.connection.max_conn_idle_time", "30m")

	v.SetDefault("error_handler.handle_errors", true)
	v.SetDefault("error_handler.attempts", 5)
	v.SetDefault("error_handler.time", "3s")

	v.SetDefault("economy.daily_amount", []float64{100})
	v.SetDefault("economy.hourly_amount", []float64{20})
	v.SetDefault("economy.weekly_amount", []float64{1000})
	v.SetDefault("economy.monthly_amount", []float64{10000})
	v.SetDefault("economy.work_amount", []float64{10, 50})
	v.SetDefault("economy.daily_cooldown", "24h")
	v.SetDefault("economy.hourly_cooldown", "1h")
	v.SetDefault("economy.weekly_cooldown", "168h")
	v.SetDefault("economy.monthly_cooldown", "720h")
	v.SetDefault("economy.work_cooldown", "1h")
	v.SetDefault("economy.sell_items_percent", 75)
	v.SetDefault("economy.subtract_on_buy", true)
	v.SetDefault("economy.save_purchases_history", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)
}

// Validate checks that the selected storage engine is configured.
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case StorageJSON:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the %s engine", StorageJSON)
		}
		if c.Storage.Check && c.Storage.UpdateCountdown <= 0 {
			return fmt.Errorf("storage.update_countdown must be positive when storage.check is enabled")
		}
	case StoragePostgres:
		if err := c.Storage.Connection.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown storage.type %q", c.Storage.Type)
	}
	if c.ErrorHandler.Attempts < 0 {
		return fmt.Errorf("error_handler.attempts must not be negative")
	}
	return nil
}

// Validate checks that all required connection fields are set.
func (c *ConnectionConfig) Validate() error {
	var missing []string
	if c.URI == "" {
		missing = append(missing, "uri")
	}
	if c.DBName == "" {
		missing = append(missing, "db_name")
	}
	if c.CollectionName == "" {
		missing = append(missing, "collection_name")
	}
	if len(missing) > 0 {
		return fmt.Errorf("storage.connection is missing: %s", strings.Join(missing, ", "))
	}
	return nil
}

// IsAdmin checks if a user ID is in the admin list.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Admin.IDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsChatAllowed checks if a chat ID is in the whitelist.
func (c *Config) IsChatAllowed(chatID int64) bool {
	// Empty whitelist means all chats are allowed
	if len(c.Whitelist.Chats) == 0 {
		return true
	}
	for _, id := range c.Whitelist.Chats {
		if id == chatID {
			return true
		}
	}
	return false
}
