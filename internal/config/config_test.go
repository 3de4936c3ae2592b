package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	if cfg.Mainnet.RESTURL != MainnetRESTURL || cfg.Testnet.RESTURL != TestnetRESTURL {
		t.Fatalf("unexpected rest urls %q %q", cfg.Mainnet.RESTURL, cfg.Testnet.RESTURL)
	}
	if cfg.Testnet.WSURL != TestnetWSURL {
		t.Fatalf("unexpected testnet ws url %q", cfg.Testnet.WSURL)
	}
	if cfg.Mainnet.Timeout != 10*time.Second {
		t.Fatalf("expected 10s timeout, got %v", cfg.Mainnet.Timeout)
	}
	if cfg.Rebalance.MinTradeNotional != 10 {
		t.Fatalf("expected min trade notional 10, got %v", cfg.Rebalance.MinTradeNotional)
	}
	if cfg.Rebalance.SellSlippage != 0.05 || cfg.Rebalance.BuySlippage != 0.05 {
		t.Fatalf("unexpected slippage %+v", cfg.Rebalance)
	}
	if cfg.Rebalance.QuoteAsset != "USDC" {
		t.Fatalf("expected USDC quote, got %q", cfg.Rebalance.QuoteAsset)
	}
	if cfg.Journal.DSN != cfg.State.SQLitePath {
		t.Fatalf("expected sqlite journal to share state db, got %q", cfg.Journal.DSN)
	}
	if cfg.Vault.ChainID != ArbitrumChainID {
		t.Fatalf("expected arbitrum chain id, got %d", cfg.Vault.ChainID)
	}
	if !cfg.Metrics.EnabledValue() {
		t.Fatalf("expected metrics enabled default")
	}
}

func TestLoadAcceptsFullBuySlippage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("rebalance:\n  buy_slippage: 1\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Rebalance.BuySlippage != 1 || cfg.Rebalance.SellSlippage != 0.05 {
		t.Fatalf("unexpected slippage %+v", cfg.Rebalance)
	}
}

func TestNetworkSelection(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	if cfg.Network(true).RESTURL != TestnetRESTURL {
		t.Fatalf("expected testnet url")
	}
	if cfg.Network(false).RESTURL != MainnetRESTURL {
		t.Fatalf("expected mainnet url")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "" +
		"log:\n  level: debug\n  encoding: console\n" +
		"testnet:\n  rest_url: http://localhost:3001\n  timeout: 2s\n" +
		"rebalance:\n  min_trade_notional: 25\n" +
		"metrics:\n  enabled: false\n" +
		"scheduler:\n  rebalance_schedule: \"@every 10m\"\n  rebalance_symbols: [ETH, BTC]\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Encoding != "console" {
		t.Fatalf("unexpected log config %+v", cfg.Log)
	}
	if cfg.Testnet.RESTURL != "http://localhost:3001" || cfg.Testnet.Timeout != 2*time.Second {
		t.Fatalf("unexpected testnet config %+v", cfg.Testnet)
	}
	if cfg.Testnet.WSURL != TestnetWSURL {
		t.Fatalf("expected ws default to fill in, got %q", cfg.Testnet.WSURL)
	}
	if cfg.Rebalance.MinTradeNotional != 25 {
		t.Fatalf("expected 25, got %v", cfg.Rebalance.MinTradeNotional)
	}
	if cfg.Metrics.EnabledValue() {
		t.Fatalf("expected metrics disabled")
	}
	if len(cfg.Scheduler.RebalanceSymbols) != 2 {
		t.Fatalf("unexpected symbols %v", cfg.Scheduler.RebalanceSymbols)
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Mainnet.RESTURL != MainnetRESTURL {
		t.Fatalf("expected defaults, got %+v", cfg.Mainnet)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"level":    func(c *Config) { c.Log.Level = "trace" },
		"encoding": func(c *Config) { c.Log.Encoding = "xml" },
		"slippage": func(c *Config) { c.Rebalance.SellSlippage = 1.5 },
		"driver":   func(c *Config) { c.Journal.Driver = "mysql" },
		"schedule": func(c *Config) { c.Scheduler.RebalanceSchedule = "@hourly" },
		"journal": func(c *Config) {
			c.Journal.Enabled = true
			c.Journal.Driver = "postgres"
			c.Journal.DSN = ""
		},
	}
	for name, mutate := range cases {
		cfg := &Config{}
		applyDefaults(cfg)
		mutate(cfg)
		if err := validate(cfg); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}
