package container

import (
	"strings"
	"testing"

	"github.com/kubiyabot/skill-engine/pkg/models"
)

func TestBuildArgvDefaultsToNetworkNone(t *testing.T) {
	rt := New(Config{})
	cfg := &models.ContainerConfig{Image: "alpine"}
	inv := &Invocation{
		Skill: &models.Skill{Name: "fetcher", Container: cfg},
		Tool:  &models.Tool{Name: "fetch", SkillName: "fetcher"},
		Args:  []string{"echo", "hi"},
	}

	argv := rt.buildArgv(cfg, inv)
	joined := strings.Join(argv, " ")
	if !strings.Contains(joined, "--network none") {
		t.Errorf("argv = %q, want --network none", joined)
	}
	if !strings.Contains(joined, "--rm") {
		t.Errorf("argv = %q, want --rm", joined)
	}
	if argv[len(argv)-2] != "echo" || argv[len(argv)-1] != "hi" {
		t.Errorf("argv tail = %v, want the tool args appended last", argv[len(argv)-2:])
	}
}

func TestBuildArgvIncludesResourceLimitsAndMounts(t *testing.T) {
	rt := New(Config{})
	cfg := &models.ContainerConfig{
		Image:   "alpine",
		Memory:  "512m",
		CPUs:    "2",
		Volumes: []string{"/home/user/work:/work:ro"},
		User:    "1000:1000",
	}
	inv := &Invocation{
		Skill: &models.Skill{Name: "fetcher", Container: cfg},
		Tool:  &models.Tool{Name: "fetch", SkillName: "fetcher"},
		Env:   map[string]string{"TOKEN": "abc"},
	}

	argv := rt.buildArgv(cfg, inv)
	joined := strings.Join(argv, " ")
	for _, want := range []string{"--memory 512m", "--cpus 2", "-v /home/user/work:/work:ro", "-u 1000:1000", "-e TOKEN=abc", "alpine"} {
		if !strings.Contains(joined, want) {
			t.Errorf("argv = %q, want it to contain %q", joined, want)
		}
	}
}
