package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingCredential = errors.New("missing credential")

// Credentials are secrets read from the environment, never from yaml.
type Credentials struct {
	WalletAddress   string `envconfig:"HL_WALLET_ADDRESS"`
	PrivateKey      string `envconfig:"HL_PRIVATE_KEY"`
	VaultAddress    string `envconfig:"HL_VAULT_ADDRESS"`
	APIKey          string `envconfig:"DUNCAN_API_KEY"`
	ArbitrumRPCURL  string `envconfig:"ARBITRUM_RPC_URL"`
	VaultPrivateKey string `envconfig:"VAULT_PRIVATE_KEY"`
	TelegramToken   string `envconfig:"TELEGRAM_TOKEN"`
	TelegramChatID  string `envconfig:"TELEGRAM_CHAT_ID"`
}

// LoadEnv loads .env.<env> and then .env from dir. Missing files are
// skipped and variables already set in the process win.
func LoadEnv(dir, env string) error {
	if env == "" {
		env = "development"
	}
	var files []string
	for _, name := range []string{".env." + env, ".env"} {
		path := name
		if dir != "" {
			path = dir + string(os.PathSeparator) + name
		}
		if _, err := os.Stat(path); err == nil {
			files = append(files, path)
		}
	}
	if len(files) == 0 {
		return nil
	}
	return godotenv.Load(files...)
}

func LoadCredentials() (Credentials, error) {
	var creds Credentials
	if err := envconfig.Process("", &creds); err != nil {
		return Credentials{}, fmt.Errorf("process env: %w", err)
	}
	creds.WalletAddress = strings.TrimSpace(creds.WalletAddress)
	creds.PrivateKey = strings.TrimSpace(creds.PrivateKey)
	creds.VaultAddress = strings.TrimSpace(creds.VaultAddress)
	if creds.VaultPrivateKey == "" {
		creds.VaultPrivateKey = creds.PrivateKey
	}
	return creds, nil
}

// ApplyTo lets environment telegram settings override the yaml ones.
func (c Credentials) ApplyTo(cfg *Config) {
	if c.TelegramToken != "" {
		cfg.Telegram.Token = c.TelegramToken
	}
	if c.TelegramChatID != "" {
		cfg.Telegram.ChatID = c.TelegramChatID
	}
}

func (c Credentials) RequireSigner() error {
	if c.WalletAddress == "" {
		return missing("HL_WALLET_ADDRESS")
	}
	if c.PrivateKey == "" {
		return missing("HL_PRIVATE_KEY")
	}
	return nil
}

func (c Credentials) RequireAPIKey() error {
	if c.APIKey == "" {
		return missing("DUNCAN_API_KEY")
	}
	return nil
}

func (c Credentials) RequireVault() error {
	if c.ArbitrumRPCURL == "" {
		return missing("ARBITRUM_RPC_URL")
	}
	if c.VaultPrivateKey == "" {
		return missing("VAULT_PRIVATE_KEY")
	}
	return nil
}

func missing(name string) error {
	return fmt.Errorf("%w: %s is not set", ErrMissingCredential, name)
}
