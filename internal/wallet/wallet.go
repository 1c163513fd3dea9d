// Package wallet manages the farming keys. Keys live in a single
// 0600-permission state file; the primary wallet can be imported from
// the environment and secondary wallets are generated on demand for
// inter-wallet activity.
package wallet

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ajitpratap0/hyperfarm/internal/evm"
	"github.com/ajitpratap0/hyperfarm/internal/statefile"
)

// PrimaryName is the wallet used for mainnet farming actions
const PrimaryName = "primary"

// Wallet is one stored key
type Wallet struct {
	Name       string    `json:"name"`
	Address    string    `json:"address"`
	PrivateKey string    `json:"private_key"`
	CreatedAt  time.Time `json:"created_at"`
}

// Key parses the wallet's signing key
func (w Wallet) Key() (*evm.Key, error) {
	return evm.ParseKey(w.PrivateKey)
}

type walletsFile struct {
	Wallets []Wallet `json:"wallets"`
}

// Vault owns farming_wallets.json
type Vault struct {
	mu      sync.Mutex
	store   *statefile.Store
	wallets []Wallet
	logger  zerolog.Logger
}

// Open loads the wallet file (which must be a secret store)
func Open(store *statefile.Store, logger zerolog.Logger) (*Vault, error) {
	v := &Vault{store: store, logger: logger}

	var file walletsFile
	if err := store.Load(&file); err != nil {
		return nil, fmt.Errorf("failed to load wallets: %w", err)
	}
	v.wallets = file.Wallets

	logger.Info().Int("wallets", len(v.wallets)).Msg("Wallet vault opened")
	return v, nil
}

func (v *Vault) save() error {
	return v.store.Save(walletsFile{Wallets: v.wallets})
}

// ImportPrimary stores the primary key from an external source. When a
// primary already exists the key must match; silently replacing a funded
// wallet would strand its balance.
func (v *Vault) ImportPrimary(hexKey string) (Wallet, error) {
	key, err := evm.ParseKey(hexKey)
	if err != nil {
		return Wallet{}, fmt.Errorf("invalid primary key: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	for _, w := range v.wallets {
		if w.Name == PrimaryName {
			if w.Address != key.Address() {
				return Wallet{}, fmt.Errorf("primary wallet already exists with address %s", w.Address)
			}
			return w, nil
		}
	}

	w := Wallet{
		Name:       PrimaryName,
		Address:    key.Address(),
		PrivateKey: key.Hex(),
		CreatedAt:  time.Now(),
	}
	v.wallets = append(v.wallets, w)

	v.logger.Info().Str("address", w.Address).Msg("Primary wallet imported")
	return w, v.save()
}

// Ensure returns the named wallet, generating a fresh key if missing
func (v *Vault) Ensure(name string) (Wallet, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, w := range v.wallets {
		if w.Name == name {
			return w, nil
		}
	}

	key, err := evm.GenerateKey()
	if err != nil {
		return Wallet{}, err
	}
	w := Wallet{
		Name:       name,
		Address:    key.Address(),
		PrivateKey: key.Hex(),
		CreatedAt:  time.Now(),
	}
	v.wallets = append(v.wallets, w)

	v.logger.Info().
		Str("name", name).
		Str("address", w.Address).
		Msg("Generated new wallet")

	return w, v.save()
}

// Get looks up a wallet by name
func (v *Vault) Get(name string) (Wallet, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, w := range v.wallets {
		if w.Name == name {
			return w, true
		}
	}
	return Wallet{}, false
}

// Primary returns the primary wallet
func (v *Vault) Primary() (Wallet, bool) {
	return v.Get(PrimaryName)
}

// All returns a copy of every stored wallet
func (v *Vault) All() []Wallet {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]Wallet, len(v.wallets))
	copy(out, v.wallets)
	return out
}
