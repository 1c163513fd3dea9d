package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WriteDefaultConfig writes a starter YAML config to path. Fails if the
// file already exists so a live config is never clobbered.
func WriteDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}

	defaults := map[string]interface{}{
		"app": map[string]interface{}{
			"name":       "hyperfarm",
			"log_level":  "info",
			"log_format": "console",
		},
		"venue": map[string]interface{}{
			"api_url":        "https://api.hyperliquid.xyz",
			"ws_url":         "wss://api.hyperliquid.xyz/ws",
			"timeout_ms":     10000,
			"rate_limit_rps": 10,
		},
		"trading": map[string]interface{}{
			"assets":                []string{"BTC", "ETH", "SOL", "HYPE", "CRV", "DYDX", "ZRO", "xyz:GOLD", "xyz:SILVER"},
			"max_open_positions":    3,
			"loop_interval_seconds": 45,
		},
		"oracle": map[string]interface{}{
			"model":             "sonar-pro",
			"cache_ttl_minutes": 60,
		},
		"farming": map[string]interface{}{
			"budget_usd":        2.00,
			"gas_reserve_pct":   0.25,
			"daily_gas_usd":     0.10,
			"campaign_days":     60,
			"daily_max_actions": 5,
		},
		"metrics": map[string]interface{}{
			"enabled": true,
			"port":    9090,
		},
		"state": map[string]interface{}{
			"dir": ".",
		},
	}

	data, err := yaml.Marshal(defaults)
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}

	header := []byte("# hyperfarm configuration\n# Secrets (API keys, wallet keys) come from the environment or env file,\n# never from this file.\n")
	if err := os.WriteFile(path, append(header, data...), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
