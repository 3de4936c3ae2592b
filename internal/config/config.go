package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	MainnetRESTURL = "https://api.hyperliquid.xyz"
	MainnetWSURL   = "wss://api.hyperliquid.xyz/ws"
	TestnetRESTURL = "https://api.hyperliquid-testnet.xyz"
	TestnetWSURL   = "wss://api.hyperliquid-testnet.xyz/ws"

	// ArbitrumChainID hosts the vault contracts.
	ArbitrumChainID = 42161
)

type Config struct {
	Log       LoggingConfig   `yaml:"log"`
	Mainnet   NetworkConfig   `yaml:"mainnet"`
	Testnet   NetworkConfig   `yaml:"testnet"`
	REST      RESTConfig      `yaml:"rest"`
	WS        WSConfig        `yaml:"ws"`
	Market    MarketConfig    `yaml:"market"`
	Rebalance RebalanceConfig `yaml:"rebalance"`
	State     StateConfig     `yaml:"state"`
	Journal   JournalConfig   `yaml:"journal"`
	Server    ServerConfig    `yaml:"server"`
	Vault     VaultConfig     `yaml:"vault"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Telegram  TelegramConfig  `yaml:"telegram"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

type NetworkConfig struct {
	RESTURL string        `yaml:"rest_url"`
	WSURL   string        `yaml:"ws_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type RESTConfig struct {
	Retries int `yaml:"retries"`
}

type WSConfig struct {
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	PingInterval   time.Duration `yaml:"ping_interval"`
}

type MarketConfig struct {
	RefreshWindow time.Duration `yaml:"refresh_window"`
}

type RebalanceConfig struct {
	MinTradeNotional float64 `yaml:"min_trade_notional"`
	SellSlippage     float64 `yaml:"sell_slippage"`
	BuySlippage      float64 `yaml:"buy_slippage"`
	QuoteAsset       string  `yaml:"quote_asset"`
}

type StateConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Driver  string `yaml:"driver"`
	DSN     string `yaml:"dsn"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type VaultConfig struct {
	ChainID      int64    `yaml:"chain_id"`
	Addresses    []string `yaml:"addresses"`
	SyncSchedule string   `yaml:"sync_schedule"`
}

type SchedulerConfig struct {
	RebalanceSchedule string   `yaml:"rebalance_schedule"`
	RebalanceSymbols  []string `yaml:"rebalance_symbols"`
	RebalanceTestnet  bool     `yaml:"rebalance_testnet"`
	WatchAssets       []string `yaml:"watch_assets"`
}

type MetricsConfig struct {
	Enabled *bool `yaml:"enabled"`
}

func (m MetricsConfig) EnabledValue() bool {
	return m.Enabled == nil || *m.Enabled
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
}

// Network returns the endpoints for mainnet or testnet.
func (c *Config) Network(testnet bool) NetworkConfig {
	if testnet {
		return c.Testnet
	}
	return c.Mainnet
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyDefaults(&cfg)
	return &cfg, validate(&cfg)
}

// LoadOrDefault is Load with a missing file treated as an empty one.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg, validate(cfg)
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Encoding == "" {
		cfg.Log.Encoding = "json"
	}
	applyNetworkDefaults(&cfg.Mainnet, MainnetRESTURL, MainnetWSURL)
	applyNetworkDefaults(&cfg.Testnet, TestnetRESTURL, TestnetWSURL)
	if cfg.REST.Retries == 0 {
		cfg.REST.Retries = 2
	}
	if cfg.WS.ReconnectDelay == 0 {
		cfg.WS.ReconnectDelay = 3 * time.Second
	}
	if cfg.WS.PingInterval == 0 {
		cfg.WS.PingInterval = 30 * time.Second
	}
	if cfg.Market.RefreshWindow == 0 {
		cfg.Market.RefreshWindow = 5 * time.Second
	}
	if cfg.Rebalance.MinTradeNotional == 0 {
		cfg.Rebalance.MinTradeNotional = 10
	}
	if cfg.Rebalance.SellSlippage == 0 {
		cfg.Rebalance.SellSlippage = 0.05
	}
	if cfg.Rebalance.BuySlippage == 0 {
		cfg.Rebalance.BuySlippage = 0.05
	}
	if cfg.Rebalance.QuoteAsset == "" {
		cfg.Rebalance.QuoteAsset = "USDC"
	}
	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = "data/duncan.db"
	}
	if cfg.Journal.Driver == "" {
		cfg.Journal.Driver = "sqlite"
	}
	if cfg.Journal.DSN == "" && cfg.Journal.Driver == "sqlite" {
		cfg.Journal.DSN = cfg.State.SQLitePath
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Vault.ChainID == 0 {
		cfg.Vault.ChainID = ArbitrumChainID
	}
	if cfg.Vault.SyncSchedule == "" {
		cfg.Vault.SyncSchedule = "@every 1h"
	}
	if cfg.Metrics.Enabled == nil {
		enabled := true
		cfg.Metrics.Enabled = &enabled
	}
}

func applyNetworkDefaults(n *NetworkConfig, restURL, wsURL string) {
	if n.RESTURL == "" {
		n.RESTURL = restURL
	}
	if n.WSURL == "" {
		n.WSURL = wsURL
	}
	if n.Timeout == 0 {
		n.Timeout = 10 * time.Second
	}
}

func validate(cfg *Config) error {
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q must be one of debug, info, warn, error", cfg.Log.Level)
	}
	switch cfg.Log.Encoding {
	case "json", "console":
	default:
		return fmt.Errorf("log.encoding %q must be json or console", cfg.Log.Encoding)
	}
	if cfg.Rebalance.MinTradeNotional < 0 {
		return errors.New("rebalance.min_trade_notional must be >= 0")
	}
	if cfg.Rebalance.SellSlippage < 0 || cfg.Rebalance.SellSlippage >= 1 {
		return errors.New("rebalance.sell_slippage must be in [0, 1)")
	}
	if cfg.Rebalance.BuySlippage < 0 {
		return errors.New("rebalance.buy_slippage must be >= 0")
	}
	if cfg.REST.Retries < 0 {
		return errors.New("rest.retries must be >= 0")
	}
	switch strings.ToLower(cfg.Journal.Driver) {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("journal.driver %q must be sqlite or postgres", cfg.Journal.Driver)
	}
	if cfg.Journal.Enabled && cfg.Journal.DSN == "" {
		return errors.New("journal.dsn is required when journal is enabled")
	}
	if cfg.Scheduler.RebalanceSchedule != "" && len(cfg.Scheduler.RebalanceSymbols) == 0 {
		return errors.New("scheduler.rebalance_symbols is required with scheduler.rebalance_schedule")
	}
	return nil
}
