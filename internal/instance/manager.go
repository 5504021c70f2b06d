package instance

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kubiyabot/skill-engine/internal/credentials"
	"github.com/kubiyabot/skill-engine/pkg/models"
)

// Manager owns the on-disk instance tree rooted at instancesRoot and the
// credential store secrets are written to and read from.
type Manager struct {
	instancesRoot string
	credentials   *credentials.Store

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewManager creates a Manager rooted at instancesRoot, creating the
// directory if it does not already exist.
func NewManager(instancesRoot string, store *credentials.Store) (*Manager, error) {
	if err := os.MkdirAll(instancesRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create instances root: %w", err)
	}
	return &Manager{
		instancesRoot: instancesRoot,
		credentials:   store,
		locks:         make(map[string]*sync.Mutex),
	}, nil
}

// lockFor returns the mutex guarding a single (skill, instance) pair,
// creating one on first use. Per-pair locking lets unrelated instances be
// created, saved, or deleted concurrently.
func (m *Manager) lockFor(skillName, instanceName string) *sync.Mutex {
	key := skillName + "/" + instanceName
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

// CreateInstance provisions a new instance directory, stores the given
// secrets in the platform keychain, rewrites the config with keyring
// references in place of the raw secret values, and persists it.
func (m *Manager) CreateInstance(ctx context.Context, skillName, instanceName string, cfg *models.InstanceConfig, secrets map[string]string) error {
	lock := m.lockFor(skillName, instanceName)
	lock.Lock()
	defer lock.Unlock()

	dir := Dir(m.instancesRoot, skillName, instanceName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create instance directory: %w", err)
	}

	stored := make([]string, 0, len(secrets))
	rollback := func() {
		for _, key := range stored {
			_ = m.credentials.Delete(ctx, skillName, instanceName, key)
		}
	}

	for key, value := range secrets {
		if err := m.credentials.Store(ctx, skillName, instanceName, key, value); err != nil {
			rollback()
			return fmt.Errorf("store secret %q: %w", key, err)
		}
		stored = append(stored, key)

		ref := credentials.Reference{Skill: skillName, Instance: instanceName, Key: key}
		cfg.Config[key] = models.ConfigValue{Value: ref.String(), Secret: true}
	}

	if err := SaveConfig(cfg, ConfigPath(m.instancesRoot, skillName, instanceName)); err != nil {
		rollback()
		return err
	}

	return nil
}

// ListInstances returns the instance names configured for a skill.
func (m *Manager) ListInstances(skillName string) ([]string, error) {
	skillDir := filepath.Join(m.instancesRoot, skillName)
	entries, err := os.ReadDir(skillDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list instances for %q: %w", skillName, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// LoadInstance reads an instance's persisted configuration.
func (m *Manager) LoadInstance(skillName, instanceName string) (*models.InstanceConfig, error) {
	return LoadConfig(ConfigPath(m.instancesRoot, skillName, instanceName))
}

// SaveInstance persists an instance's configuration.
func (m *Manager) SaveInstance(skillName, instanceName string, cfg *models.InstanceConfig) error {
	lock := m.lockFor(skillName, instanceName)
	lock.Lock()
	defer lock.Unlock()

	cfg.Metadata.UpdatedAt = time.Now().UTC()
	return SaveConfig(cfg, ConfigPath(m.instancesRoot, skillName, instanceName))
}

// DeleteInstance removes every secret the instance's config references from
// the keychain, then deletes the instance directory.
func (m *Manager) DeleteInstance(ctx context.Context, skillName, instanceName string) error {
	lock := m.lockFor(skillName, instanceName)
	lock.Lock()
	defer lock.Unlock()

	if cfg, err := m.LoadInstance(skillName, instanceName); err == nil {
		for _, v := range cfg.Config {
			if !v.Secret {
				continue
			}
			ref, err := credentials.ParseReference(v.Value)
			if err != nil {
				continue
			}
			_ = m.credentials.Delete(ctx, ref.Skill, ref.Instance, ref.Key)
		}
	}

	dir := Dir(m.instancesRoot, skillName, instanceName)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete instance directory: %w", err)
	}
	return nil
}

// UpdateSecret rotates a single secret value for an instance in the
// keychain. The instance's config already holds the stable keyring
// reference, so no config rewrite is needed.
func (m *Manager) UpdateSecret(ctx context.Context, skillName, instanceName, key, value string) error {
	return m.credentials.Store(ctx, skillName, instanceName, key, value)
}
