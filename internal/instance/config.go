// Package instance manages on-disk skill instance configuration: per
// (skill, instance) directories, a TOML config file, and resolution of
// secret values through the platform keychain.
package instance

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/kubiyabot/skill-engine/internal/credentials"
	"github.com/kubiyabot/skill-engine/pkg/models"
)

// configFilename is the name of the per-instance config file.
const configFilename = "config.toml"

// Dir returns the on-disk directory for a skill instance, rooted under
// root (typically "<data-home>/instances").
func Dir(root, skillName, instanceName string) string {
	return filepath.Join(root, skillName, instanceName)
}

// ConfigPath returns the config file path for a skill instance.
func ConfigPath(root, skillName, instanceName string) string {
	return filepath.Join(Dir(root, skillName, instanceName), configFilename)
}

// LoadConfig reads and parses an instance's config.toml.
func LoadConfig(path string) (*models.InstanceConfig, error) {
	var cfg models.InstanceConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("load instance config: %w", err)
	}
	return &cfg, nil
}

// SaveConfig writes an instance's config.toml atomically: it writes to a
// temp file in the same directory and renames it into place, so a crash
// mid-write never leaves a truncated config behind.
func SaveConfig(cfg *models.InstanceConfig, path string) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open temp config file: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode instance config: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp config file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename instance config into place: %w", err)
	}
	return nil
}

// GetConfig returns a plain (non-secret) config value. Secret entries are
// only available through GetSecretConfig.
func GetConfig(cfg *models.InstanceConfig, key string) (string, bool) {
	v, ok := cfg.Config[key]
	if !ok || v.Secret {
		return "", false
	}
	return v.Value, true
}

// Resolver is the credential-read capability config resolution needs.
// Both credentials.Store and the caching credentials.Manager satisfy it.
type Resolver interface {
	Get(ctx context.Context, skill, instance, key string) (*credentials.SecureString, error)
}

// GetSecretConfig resolves a secret config entry through the platform
// keychain. Returns nil, nil if the key is absent or not marked secret.
// The caller must Close the returned SecureString once done with it.
func GetSecretConfig(ctx context.Context, store Resolver, cfg *models.InstanceConfig, key string) (*credentials.SecureString, error) {
	v, ok := cfg.Config[key]
	if !ok || !v.Secret {
		return nil, nil
	}

	ref, err := credentials.ParseReference(v.Value)
	if err != nil {
		return nil, fmt.Errorf("resolve secret config %q: %w", key, err)
	}

	return store.Get(ctx, ref.Skill, ref.Instance, ref.Key)
}

// GetAllConfig resolves every config entry, secrets included, into a flat
// map of SecureStrings. The caller must Close each value once done.
func GetAllConfig(ctx context.Context, store Resolver, cfg *models.InstanceConfig) (map[string]*credentials.SecureString, error) {
	result := make(map[string]*credentials.SecureString, len(cfg.Config))
	for key, v := range cfg.Config {
		if v.Secret {
			secret, err := GetSecretConfig(ctx, store, cfg, key)
			if err != nil {
				return nil, err
			}
			if secret != nil {
				result[key] = secret
			}
			continue
		}
		result[key] = credentials.NewSecureString(v.Value)
	}
	return result, nil
}

// SetConfig sets a plain configuration value and bumps UpdatedAt.
// Secret-backed values go through Manager.CreateInstance or
// Manager.UpdateSecret instead.
func SetConfig(cfg *models.InstanceConfig, key, value string) {
	cfg.Config[key] = models.ConfigValue{Value: value, Secret: false}
	cfg.Metadata.UpdatedAt = time.Now().UTC()
}
