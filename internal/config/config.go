package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rewired-gh/carmarket/internal/models"
)

// Config represents the complete application configuration
type Config struct {
	Sui      SuiConfig      `mapstructure:"sui"`
	Contract ContractConfig `mapstructure:"contract"`
	Market   MarketConfig   `mapstructure:"market"`
	Server   ServerConfig   `mapstructure:"server"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// SuiConfig holds full node connection configuration
type SuiConfig struct {
	Network        string        `mapstructure:"network"` // testnet, mainnet, devnet or localnet
	RPCURL         string        `mapstructure:"rpc_url"` // overrides network when set
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// ContractConfig holds the deployed marketplace package coordinates
type ContractConfig struct {
	PackageID     string `mapstructure:"package_id"`
	Module        string `mapstructure:"module"`
	MintFunc      string `mapstructure:"mint_func"`
	ListFunc      string `mapstructure:"list_func"`
	BuyFunc       string `mapstructure:"buy_func"`
	ListedEvent   string `mapstructure:"listed_event"`
	BoughtEvent   string `mapstructure:"bought_event"`
	CarStruct     string `mapstructure:"car_struct"`
	ClockObjectID string `mapstructure:"clock_object_id"`
	MinSpeed      uint64 `mapstructure:"min_speed"`
	MaxSpeed      uint64 `mapstructure:"max_speed"`
	MaxNameLength int    `mapstructure:"max_name_length"`
}

// MarketConfig holds view refresh configuration
type MarketConfig struct {
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	ListingLimit       int           `mapstructure:"listing_limit"`
	ResolveConcurrency int           `mapstructure:"resolve_concurrency"`
	FeedPerKind        int           `mapstructure:"feed_per_kind"`
	FeedSize           int           `mapstructure:"feed_size"`
	StatsLimit         int           `mapstructure:"stats_limit"`
	OwnedLimit         int           `mapstructure:"owned_limit"`
	Account            string        `mapstructure:"account"` // address whose cars count as user_cars
}

// ServerConfig holds HTTP API configuration
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	NotifyActivity bool          `mapstructure:"notify_activity"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds snapshot store configuration
type StorageConfig struct {
	DBPath      string `mapstructure:"db_path"` // empty or ":memory:" keeps views in memory
	MaxNotified int    `mapstructure:"max_notified"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	setDefaults(v)

	// CARMARKET_SUI_NETWORK overrides sui.network, and so on
	v.SetEnvPrefix("CARMARKET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Sui defaults
	v.SetDefault("sui.network", "testnet")
	v.SetDefault("sui.timeout", "15s")
	v.SetDefault("sui.max_retries", 2)
	v.SetDefault("sui.retry_delay_base", "500ms")

	// Contract defaults
	v.SetDefault("contract.module", "car_nft")
	v.SetDefault("contract.mint_func", "mint_car")
	v.SetDefault("contract.list_func", "list_car")
	v.SetDefault("contract.buy_func", "buy_car")
	v.SetDefault("contract.listed_event", "CarListed")
	v.SetDefault("contract.bought_event", "CarBought")
	v.SetDefault("contract.car_struct", "Car")
	v.SetDefault("contract.clock_object_id", "0x6")
	v.SetDefault("contract.min_speed", 0)
	v.SetDefault("contract.max_speed", 300)
	v.SetDefault("contract.max_name_length", 50)

	// Market defaults
	v.SetDefault("market.poll_interval", "10s")
	v.SetDefault("market.listing_limit", 50)
	v.SetDefault("market.resolve_concurrency", 4)
	v.SetDefault("market.feed_per_kind", 10)
	v.SetDefault("market.feed_size", 15)
	v.SetDefault("market.stats_limit", 100)
	v.SetDefault("market.owned_limit", 50)

	// Server defaults
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.request_timeout", "30s")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.notify_activity", true)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Storage defaults
	v.SetDefault("storage.db_path", ":memory:")
	v.SetDefault("storage.max_notified", 500)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Sui config
	if c.Sui.RPCURL == "" {
		switch c.Sui.Network {
		case "mainnet", "testnet", "devnet", "localnet":
		default:
			return fmt.Errorf("sui.network must be one of: mainnet, testnet, devnet, localnet")
		}
	}
	if c.Sui.Timeout < 1*time.Second {
		return fmt.Errorf("sui.timeout must be at least 1 second")
	}
	if c.Sui.MaxRetries < 0 {
		return fmt.Errorf("sui.max_retries must not be negative")
	}

	// Validate Contract config
	if err := c.Contract.Model().Validate(); err != nil {
		return fmt.Errorf("contract: %w", err)
	}
	if c.Contract.MinSpeed > c.Contract.MaxSpeed {
		return fmt.Errorf("contract.min_speed must not exceed contract.max_speed")
	}
	if c.Contract.MaxNameLength < 1 {
		return fmt.Errorf("contract.max_name_length must be at least 1")
	}

	// Validate Market config
	if c.Market.PollInterval < 1*time.Second {
		return fmt.Errorf("market.poll_interval must be at least 1 second")
	}
	if c.Market.ListingLimit < 1 || c.Market.ListingLimit > 50 {
		return fmt.Errorf("market.listing_limit must be between 1 and 50")
	}
	if c.Market.ResolveConcurrency < 1 {
		return fmt.Errorf("market.resolve_concurrency must be at least 1")
	}
	if c.Market.FeedPerKind < 1 || c.Market.FeedPerKind > 50 {
		return fmt.Errorf("market.feed_per_kind must be between 1 and 50")
	}
	if c.Market.FeedSize < 1 {
		return fmt.Errorf("market.feed_size must be at least 1")
	}
	if c.Market.StatsLimit < 1 || c.Market.StatsLimit > 1000 {
		return fmt.Errorf("market.stats_limit must be between 1 and 1000")
	}
	if c.Market.OwnedLimit < 1 || c.Market.OwnedLimit > 50 {
		return fmt.Errorf("market.owned_limit must be between 1 and 50")
	}

	// Validate Server config
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.RequestTimeout < 1*time.Second {
		return fmt.Errorf("server.request_timeout must be at least 1 second")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Storage config
	if c.Storage.MaxNotified < 1 {
		return fmt.Errorf("storage.max_notified must be at least 1")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// Model returns the contract coordinates as a domain value.
func (c ContractConfig) Model() models.Contract {
	return models.Contract{
		PackageID:     c.PackageID,
		Module:        c.Module,
		MintFunc:      c.MintFunc,
		ListFunc:      c.ListFunc,
		BuyFunc:       c.BuyFunc,
		ListedEvent:   c.ListedEvent,
		BoughtEvent:   c.BoughtEvent,
		CarStruct:     c.CarStruct,
		ClockObjectID: c.ClockObjectID,
	}
}
