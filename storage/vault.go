package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/hashicorp/vault/api"

	"github.com/chainballot/voter-oracle/interfaces"
)

// VaultDirectory stores profiles in HashiCorp Vault KV v2. Profiles carry
// biometric templates, so a secrets store is a natural home for them.
// Authentication uses the standard VAULT_TOKEN environment variable.
type VaultDirectory struct {
	client      *api.Client
	mountPath   string
	dataPath    string
	log         *slog.Logger
	locationURI string
}

// NewVaultDirectory creates a Vault-backed identity directory.
//
// Parameters:
//   - address: Vault server address (e.g. https://vault.example.com:8200)
//   - mountPath: KV v2 mount (e.g. "secret")
//   - dataPath: path within the mount (e.g. "voters")
func NewVaultDirectory(address, mountPath, dataPath string, log *slog.Logger) (*VaultDirectory, error) {
	config := api.DefaultConfig()
	config.Address = address

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}

	mountPath = strings.Trim(mountPath, "/")
	dataPath = strings.Trim(dataPath, "/")

	return &VaultDirectory{
		client:      client,
		mountPath:   mountPath,
		dataPath:    dataPath,
		log:         log,
		locationURI: fmt.Sprintf("vault://%s/%s/%s", strings.TrimPrefix(address, "https://"), mountPath, dataPath),
	}, nil
}

func (d *VaultDirectory) secretPath(id interfaces.VoterID) string {
	return fmt.Sprintf("%s/data/%s/%s", d.mountPath, d.dataPath, url.PathEscape(string(id)))
}

// LoadAll lists the directory's metadata keys and reads every profile.
func (d *VaultDirectory) LoadAll(ctx context.Context) ([]interfaces.Profile, error) {
	listPath := fmt.Sprintf("%s/metadata/%s", d.mountPath, d.dataPath)
	secret, err := d.client.Logical().ListWithContext(ctx, listPath)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, nil
	}

	keys, ok := secret.Data["keys"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected list response from Vault")
	}

	profiles := make([]interfaces.Profile, 0, len(keys))
	for _, key := range keys {
		name, ok := key.(string)
		if !ok {
			continue
		}
		id, err := url.PathUnescape(name)
		if err != nil {
			id = name
		}
		p, err := d.Load(ctx, interfaces.VoterID(id))
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}

	d.log.Debug("Loaded profiles from Vault",
		slog.Int("count", len(profiles)),
		slog.String("path", d.dataPath))
	return profiles, nil
}

// Load reads a single profile from the KV v2 data endpoint.
func (d *VaultDirectory) Load(ctx context.Context, id interfaces.VoterID) (interfaces.Profile, error) {
	secret, err := d.client.Logical().ReadWithContext(ctx, d.secretPath(id))
	if err != nil {
		return interfaces.Profile{}, fmt.Errorf("failed to read profile: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return interfaces.Profile{}, interfaces.ErrProfileNotFound
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return interfaces.Profile{}, interfaces.ErrProfileNotFound
	}
	encoded, ok := data["profile"].(string)
	if !ok {
		return interfaces.Profile{}, fmt.Errorf("malformed profile secret for %s", id)
	}

	var p interfaces.Profile
	if err := json.Unmarshal([]byte(encoded), &p); err != nil {
		return interfaces.Profile{}, fmt.Errorf("failed to decode profile: %w", err)
	}
	return p, nil
}

// Store writes the profile as a new KV v2 version. Vault versions whole
// secrets, so readers never observe a partial write.
func (d *VaultDirectory) Store(ctx context.Context, profile interfaces.Profile) error {
	encoded, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	_, err = d.client.Logical().WriteWithContext(ctx, d.secretPath(profile.ID), map[string]interface{}{
		"data": map[string]interface{}{
			"profile": string(encoded),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to store profile: %w", err)
	}

	d.log.Debug("Stored profile in Vault", slog.String("voter", string(profile.ID)))
	return nil
}

// Available checks the Vault health endpoint.
func (d *VaultDirectory) Available(ctx context.Context) bool {
	health, err := d.client.Sys().HealthWithContext(ctx)
	if err != nil {
		d.log.Debug("Vault directory unavailable", "err", err)
		return false
	}
	return health.Initialized && !health.Sealed
}

// LocationURI returns the URI this directory was created from.
func (d *VaultDirectory) LocationURI() string {
	return d.locationURI
}
