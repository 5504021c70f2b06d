package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kubiyabot/skill-engine/pkg/models"
)

func TestLoad(t *testing.T) {
	root := t.TempDir()

	manifestTOML := `
[skills.kubectl]
source = "./kubectl"
runtime = "native"
description = "manifest description"

[[skills.kubectl.services]]
name = "cluster-proxy"
optional = true
default_port = 8001
`
	if err := os.WriteFile(filepath.Join(root, ManifestFilename), []byte(manifestTOML), 0o644); err != nil {
		t.Fatal(err)
	}

	skillDir := filepath.Join(root, "kubectl")
	if err := os.MkdirAll(skillDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(skillDir, SkillMDFilename), []byte(sampleDoc), 0o644); err != nil {
		t.Fatal(err)
	}

	skills, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(skills) != 1 {
		t.Fatalf("got %d skills, want 1: %+v", len(skills), skills)
	}

	s := skills[0]
	if s.Name != "kubectl" {
		t.Fatalf("Name = %q", s.Name)
	}
	if s.Runtime != models.RuntimeNative {
		t.Fatalf("Runtime = %q", s.Runtime)
	}
	if s.Description != "manifest description" {
		t.Fatalf("Description = %q, want manifest table entry to win", s.Description)
	}
	if s.Source != filepath.Join(root, "kubectl") {
		t.Fatalf("Source = %q", s.Source)
	}
	if len(s.Services) != 1 || s.Services[0].Name != "cluster-proxy" {
		t.Fatalf("unexpected services: %+v", s.Services)
	}
	if len(s.Tools) != 1 || s.Tools[0].Name != "list_pods" {
		t.Fatalf("unexpected tools: %+v", s.Tools)
	}
}

func TestLoadSkillDocWithoutManifestEntry(t *testing.T) {
	root := t.TempDir()
	skillDir := filepath.Join(root, "kubectl")
	if err := os.MkdirAll(skillDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(skillDir, SkillMDFilename), []byte(sampleDoc), 0o644); err != nil {
		t.Fatal(err)
	}

	skills, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(skills) != 1 {
		t.Fatalf("got %d skills, want 1", len(skills))
	}
	if skills[0].Runtime != models.RuntimeNative {
		t.Fatalf("Runtime = %q, want native default", skills[0].Runtime)
	}
	if skills[0].Description != "Inspect and manage Kubernetes workloads" {
		t.Fatalf("Description = %q, want SKILL.md value", skills[0].Description)
	}
}

func TestParseFileRejectsUnknownSkillKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ManifestFilename)
	bad := "[skills.kubectl]\nsource = \"./kubectl\"\nruntime = \"native\"\nbogus_key = \"x\"\n"
	if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseFile(path); err == nil {
		t.Fatal("expected error for unknown manifest key")
	}
}
