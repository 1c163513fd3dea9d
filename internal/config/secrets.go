package config

import (
	"fmt"

	vault "github.com/hashicorp/vault/api"
	"github.com/rs/zerolog/log"
)

// fetchVaultSecrets reads string secrets from a KV path in Vault. Only used
// when vault.address is configured; every value is optional.
func fetchVaultSecrets(cfg VaultConfig) (map[string]string, error) {
	vaultCfg := vault.DefaultConfig()
	vaultCfg.Address = cfg.Address

	client, err := vault.NewClient(vaultCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}

	path := cfg.SecretPath
	if path == "" {
		path = "secret/data/hyperfarm"
	}

	secret, err := client.Logical().Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vault path %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("no secret at vault path %s", path)
	}

	// KV v2 nests the payload under "data"
	data := secret.Data
	if nested, ok := secret.Data["data"].(map[string]interface{}); ok {
		data = nested
	}

	out := make(map[string]string, len(data))
	for k, v := range data {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}

	log.Info().
		Str("path", path).
		Int("keys", len(out)).
		Msg("Loaded secrets from Vault")

	return out, nil
}
