package container

import (
	"strings"

	"github.com/kubiyabot/skill-engine/pkg/models"
)

// defaultBlockedBindPrefixes is the floor of the policy: it is always
// enforced, and a deployment's BlockedBindPrefixes are added to it.
var defaultBlockedBindPrefixes = []string{
	"/etc/passwd",
	"/etc/shadow",
	"/root",
}

// checkPolicy enforces the container runtime's security policy against a
// skill's declared container config before any command is constructed.
// Every rule here fails closed: a violation is reported and the invocation
// is refused, never silently stripped.
func checkPolicy(cfg *models.ContainerConfig, blockedBindPrefixes []string, requireResourceLimits bool) *models.ExecError {
	for _, arg := range cfg.ExtraArgs {
		if strings.Contains(arg, "--privileged") {
			return models.NewPolicyViolation("container config requests privileged mode")
		}
	}

	prefixes := append(append([]string{}, defaultBlockedBindPrefixes...), blockedBindPrefixes...)
	prefixes = append(prefixes, "docker.sock")

	for _, vol := range cfg.Volumes {
		source := vol
		if idx := strings.Index(vol, ":"); idx >= 0 {
			source = vol[:idx]
		}
		if strings.Contains(source, "docker.sock") {
			return models.NewPolicyViolation("container config mounts the container socket: " + vol)
		}
		for _, prefix := range prefixes {
			if prefix == "docker.sock" {
				continue
			}
			if strings.HasPrefix(source, prefix) {
				return models.NewPolicyViolation("container config mounts a blocked host path: " + vol)
			}
		}
	}

	if cfg.Network == "host" {
		return models.NewPolicyViolation("container config requests host network mode")
	}

	if requireResourceLimits {
		if strings.TrimSpace(cfg.Memory) == "" || strings.TrimSpace(cfg.CPUs) == "" {
			return models.NewPolicyViolation("container config omits a required memory or CPU limit")
		}
	}

	return nil
}
