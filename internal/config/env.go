package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Credential names resolved at startup.
const (
	EnvVenuePrivateKey  = "HYPERLIQUID_PRIVATE_KEY"
	EnvVenueAddress     = "HYPERLIQUID_ACCOUNT_ADDRESS"
	EnvOracleAPIKey     = "PERPLEXITY_API_KEY"
	EnvTelegramToken    = "TELEGRAM_BOT_TOKEN"
	EnvTelegramChatID   = "TELEGRAM_CHAT_ID"
	EnvFarmerPrivateKey = "FARMER_PRIVATE_KEY"
)

// EnvLoader resolves credentials from the process environment first and an
// optional shell-style env file second.
type EnvLoader struct {
	fileVars map[string]string
}

// NewEnvLoader reads the env file at path if it exists. The file uses
// KEY=VALUE lines; "export " prefixes, surrounding quotes and comment
// lines are tolerated.
func NewEnvLoader(path string) (*EnvLoader, error) {
	l := &EnvLoader{fileVars: make(map[string]string)}

	if path == "" {
		return l, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, fmt.Errorf("failed to open env file %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)
		if key != "" {
			l.fileVars[key] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read env file %s: %w", path, err)
	}

	log.Debug().
		Str("path", path).
		Int("vars", len(l.fileVars)).
		Msg("Loaded env file")

	return l, nil
}

// Get returns the value for key, preferring the process environment over
// the env file. The boolean reports whether the key was found at all.
func (l *EnvLoader) Get(key string) (string, bool) {
	if v := os.Getenv(key); v != "" {
		return v, true
	}
	if v, ok := l.fileVars[key]; ok && v != "" {
		return v, true
	}
	return "", false
}

// Require returns the value for key or an error naming the missing key.
func (l *EnvLoader) Require(key string) (string, error) {
	v, ok := l.Get(key)
	if !ok {
		return "", fmt.Errorf("required credential %s not set in environment or env file", key)
	}
	return v, nil
}

// ApplySecrets fills credential fields on cfg from the loader and, when
// configured, from Vault. Vault values take lowest precedence so local
// overrides always win.
func (l *EnvLoader) ApplySecrets(cfg *Config) error {
	if cfg.Vault.Address != "" {
		vaultVars, err := fetchVaultSecrets(cfg.Vault)
		if err != nil {
			log.Warn().Err(err).Msg("Vault secrets unavailable, falling back to environment")
		} else {
			for k, v := range vaultVars {
				if _, ok := l.Get(k); !ok {
					l.fileVars[k] = v
				}
			}
		}
	}

	if v, ok := l.Get(EnvVenuePrivateKey); ok {
		cfg.Venue.PrivateKey = v
	}
	if v, ok := l.Get(EnvVenueAddress); ok {
		cfg.Venue.AccountAddress = v
	}
	if v, ok := l.Get(EnvOracleAPIKey); ok {
		cfg.Oracle.APIKey = v
	}
	if v, ok := l.Get(EnvFarmerPrivateKey); ok {
		cfg.Farming.PrivateKey = v
	}
	if v, ok := l.Get(EnvTelegramToken); ok {
		cfg.Telegram.BotToken = v
	}
	if v, ok := l.Get(EnvTelegramChatID); ok {
		chatID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvTelegramChatID, err)
		}
		cfg.Telegram.ChatID = chatID
	}
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != 0 {
		cfg.Telegram.Enabled = true
	}

	return nil
}
