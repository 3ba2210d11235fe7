package payload

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/hashicorp/vault/api"
)

// vaultPayloadField is the key holding the payload inside the Vault secret.
const vaultPayloadField = "payload"

// VaultBackend persists the payload in a HashiCorp Vault KV v2 secret.
// The payload bytes are stored base64-encoded in a single field.
type VaultBackend struct {
	client      *api.Client
	mountPath   string
	dataPath    string
	log         *slog.Logger
	locationURI string
}

// NewVaultBackend creates a Vault persistence backend.
//
// Parameters:
//   - address: Vault server address (e.g. https://vault.example.com:8200)
//   - mountPath: KV v2 mount path (e.g. "secret")
//   - dataPath: path within the mount (e.g. "factory/payload")
//   - token: Vault token; if empty, the client falls back to VAULT_TOKEN
//   - log: structured logger
func NewVaultBackend(address, mountPath, dataPath, token string, log *slog.Logger) (*VaultBackend, error) {
	config := api.DefaultConfig()
	config.Address = address

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if token != "" {
		client.SetToken(token)
	}

	return &VaultBackend{
		client:      client,
		mountPath:   mountPath,
		dataPath:    dataPath,
		log:         log,
		locationURI: fmt.Sprintf("vault://%s/%s/%s", config.Address, mountPath, dataPath),
	}, nil
}

// Load reads the persisted payload from the KV store. Returns
// ErrPayloadNotFound if the secret or field does not exist.
func (b *VaultBackend) Load(ctx context.Context) ([]byte, error) {
	secret, err := b.client.KVv2(b.mountPath).Get(ctx, b.dataPath)
	if err != nil {
		if err == api.ErrSecretNotFound {
			return nil, errNotFound(b.locationURI)
		}
		return nil, fmt.Errorf("failed to read payload from vault: %w", err)
	}

	encoded, ok := secret.Data[vaultPayloadField].(string)
	if !ok {
		return nil, errNotFound(b.locationURI)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("corrupt payload encoding in vault: %w", err)
	}

	b.log.Debug("Loaded payload from vault",
		slog.String("path", b.dataPath),
		slog.Int("size", len(data)))

	return data, nil
}

// Save writes the payload to the KV store, superseding the previous version.
func (b *VaultBackend) Save(ctx context.Context, payload []byte) error {
	_, err := b.client.KVv2(b.mountPath).Put(ctx, b.dataPath, map[string]interface{}{
		vaultPayloadField: base64.StdEncoding.EncodeToString(payload),
	})
	if err != nil {
		return fmt.Errorf("failed to write payload to vault: %w", err)
	}

	b.log.Debug("Saved payload to vault",
		slog.String("path", b.dataPath),
		slog.Int("size", len(payload)))

	return nil
}

// LocationURI returns the backend's URI for logging and diagnostics.
func (b *VaultBackend) LocationURI() string {
	return b.locationURI
}
