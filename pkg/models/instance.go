package models

import "time"

// ConfigValue is one entry in an instance's config map: either a plain value
// or a keyring:// secret reference, never both.
type ConfigValue struct {
	Value  string `json:"value" toml:"value"`
	Secret bool   `json:"secret" toml:"secret"`
}

// Capabilities is the capability set granted to an instance.
type Capabilities struct {
	NetworkAccess         bool     `json:"network_access" toml:"network_access"`
	AllowedPaths          []string `json:"allowed_paths,omitempty" toml:"allowed_paths"`
	MaxConcurrentRequests int      `json:"max_concurrent_requests" toml:"max_concurrent_requests"`
	TimeoutSeconds        int      `json:"timeout_seconds,omitempty" toml:"timeout_seconds"`
}

// DefaultMaxConcurrentRequests is the default per-instance semaphore size.
const DefaultMaxConcurrentRequests = 10

// DefaultTimeoutSeconds is used when an instance does not override
// Capabilities.TimeoutSeconds; runtimes apply their own default below this
// when neither is set.
const DefaultTimeoutSeconds = 30

// InstanceMetadata records provenance and lifecycle timestamps for an
// instance.
type InstanceMetadata struct {
	SkillName    string    `json:"skill_name" toml:"skill_name"`
	SkillVersion string    `json:"skill_version,omitempty" toml:"skill_version"`
	InstanceName string    `json:"instance_name" toml:"instance_name"`
	CreatedAt    time.Time `json:"created_at" toml:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" toml:"updated_at"`
}

// InstanceConfig is the on-disk representation of a (skill, instance) pair,
// persisted at <data-home>/instances/<skill>/<instance>/config.toml.
type InstanceConfig struct {
	Metadata     InstanceMetadata       `json:"metadata" toml:"metadata"`
	Config       map[string]ConfigValue `json:"config" toml:"config"`
	Environment  map[string]string      `json:"environment" toml:"environment"`
	Capabilities Capabilities           `json:"capabilities" toml:"capabilities"`
}

// NewInstanceConfig returns an InstanceConfig with defaulted capabilities and
// initialised maps, ready to accept config entries.
func NewInstanceConfig(skillName, skillVersion, instanceName string) *InstanceConfig {
	now := nowUTC()
	return &InstanceConfig{
		Metadata: InstanceMetadata{
			SkillName:    skillName,
			SkillVersion: skillVersion,
			InstanceName: instanceName,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		Config:      map[string]ConfigValue{},
		Environment: map[string]string{},
		Capabilities: Capabilities{
			MaxConcurrentRequests: DefaultMaxConcurrentRequests,
			TimeoutSeconds:        DefaultTimeoutSeconds,
		},
	}
}
