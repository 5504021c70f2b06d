package sandbox

import (
	"github.com/kubiyabot/skill-engine/internal/config"
)

// SandboxMode determines which module-runtime invocations get sandboxed.
type SandboxMode string

const (
	// ModeOff disables sandboxing entirely; modules run unisolated.
	ModeOff SandboxMode = "off"
	// ModeAll sandboxes every invocation.
	ModeAll SandboxMode = "all"
	// ModeNonMain sandboxes every skill except the manifest's designated
	// primary skill.
	ModeNonMain SandboxMode = "non-main"
)

// SandboxScope determines how sandboxes are keyed and reused.
type SandboxScope string

const (
	// ScopeInstance creates one sandbox per (skill, instance) pair (default).
	ScopeInstance SandboxScope = "instance"
	// ScopeRequest creates a fresh sandbox for every invocation.
	ScopeRequest SandboxScope = "request"
	// ScopeShared pools a single sandbox set across the whole process.
	ScopeShared SandboxScope = "shared"
)

// ModeConfig holds resolved sandbox mode configuration.
type ModeConfig struct {
	Mode  SandboxMode
	Scope SandboxScope
}

// ResolveModeConfig extracts mode and scope from config with defaults.
func ResolveModeConfig(cfg config.SandboxConfig) ModeConfig {
	mc := ModeConfig{
		Mode:  ModeOff,
		Scope: ScopeInstance,
	}

	if !cfg.Enabled {
		return mc
	}

	switch SandboxMode(cfg.Mode) {
	case ModeAll, ModeNonMain:
		mc.Mode = SandboxMode(cfg.Mode)
	default:
		mc.Mode = ModeAll
	}

	switch SandboxScope(cfg.Scope) {
	case ScopeRequest, ScopeShared:
		mc.Scope = SandboxScope(cfg.Scope)
	default:
		mc.Scope = ScopeInstance
	}

	return mc
}

// ShouldSandbox reports whether a given skill invocation should be
// sandboxed, given whether it is the manifest's designated primary skill.
func (mc ModeConfig) ShouldSandbox(skillName string, isPrimarySkill bool) bool {
	switch mc.Mode {
	case ModeOff:
		return false
	case ModeAll:
		return true
	case ModeNonMain:
		return !isPrimarySkill
	default:
		return false
	}
}

// SandboxKey generates the pool key a module invocation should be scoped
// under, given the configured scope.
func (mc ModeConfig) SandboxKey(skillName, instanceName string) string {
	switch mc.Scope {
	case ScopeRequest:
		return "request"
	case ScopeShared:
		return "shared"
	case ScopeInstance:
		fallthrough
	default:
		return skillName + ":" + instanceName
	}
}
