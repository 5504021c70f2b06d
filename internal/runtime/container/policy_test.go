package container

import (
	"testing"

	"github.com/kubiyabot/skill-engine/pkg/models"
)

func TestCheckPolicyBlocksPrivileged(t *testing.T) {
	cfg := &models.ContainerConfig{Image: "alpine", ExtraArgs: []string{"--privileged"}}
	if err := checkPolicy(cfg, nil, false); err == nil || err.Kind != models.KindPolicyViolation {
		t.Fatalf("checkPolicy() = %v, want a policy violation", err)
	}
}

func TestCheckPolicyBlocksDockerSocketMount(t *testing.T) {
	cfg := &models.ContainerConfig{
		Image:   "alpine",
		Volumes: []string{"/var/run/docker.sock:/var/run/docker.sock"},
	}
	if err := checkPolicy(cfg, nil, false); err == nil || err.Kind != models.KindPolicyViolation {
		t.Fatalf("checkPolicy() = %v, want a policy violation", err)
	}
}

func TestCheckPolicyBlocksHostNetwork(t *testing.T) {
	cfg := &models.ContainerConfig{Image: "alpine", Network: "host"}
	if err := checkPolicy(cfg, nil, false); err == nil || err.Kind != models.KindPolicyViolation {
		t.Fatalf("checkPolicy() = %v, want a policy violation", err)
	}
}

func TestCheckPolicyBlocksSensitiveBindSource(t *testing.T) {
	cfg := &models.ContainerConfig{
		Image:   "alpine",
		Volumes: []string{"/etc/shadow:/etc/shadow:ro"},
	}
	if err := checkPolicy(cfg, nil, false); err == nil || err.Kind != models.KindPolicyViolation {
		t.Fatalf("checkPolicy() = %v, want a policy violation", err)
	}
}

func TestCheckPolicyBlocksCustomBlockedPrefix(t *testing.T) {
	cfg := &models.ContainerConfig{
		Image:   "alpine",
		Volumes: []string{"/var/secrets:/secrets:ro"},
	}
	if err := checkPolicy(cfg, []string{"/var/secrets"}, false); err == nil || err.Kind != models.KindPolicyViolation {
		t.Fatalf("checkPolicy() = %v, want a policy violation", err)
	}
}

func TestCheckPolicyRequiresResourceLimits(t *testing.T) {
	cfg := &models.ContainerConfig{Image: "alpine"}
	if err := checkPolicy(cfg, nil, true); err == nil || err.Kind != models.KindPolicyViolation {
		t.Fatalf("checkPolicy() = %v, want a policy violation", err)
	}

	cfg.Memory = "256m"
	cfg.CPUs = "1.0"
	if err := checkPolicy(cfg, nil, true); err != nil {
		t.Fatalf("checkPolicy() with limits set = %v, want nil", err)
	}
}

func TestCheckPolicyAllowsBenignConfig(t *testing.T) {
	cfg := &models.ContainerConfig{
		Image:   "alpine",
		Network: "none",
		Volumes: []string{"/home/user/work:/work:ro"},
	}
	if err := checkPolicy(cfg, nil, false); err != nil {
		t.Fatalf("checkPolicy() = %v, want nil", err)
	}
}
