package pluginsdk

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleManifest = `{
	"id": "greeter",
	"name": "Greeter",
	"version": "1.2.0",
	"configSchema": {
		"type": "object",
		"properties": {
			"GREETING": {"type": "string"}
		},
		"required": ["GREETING"]
	},
	"metadata": {"language": "python"}
}`

func TestDecodeManifest(t *testing.T) {
	m, err := DecodeManifest([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("DecodeManifest: %v", err)
	}
	if m.ID != "greeter" || m.Version != "1.2.0" {
		t.Fatalf("manifest = %+v", m)
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestDecodeManifestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ManifestFilename)
	if err := os.WriteFile(path, []byte(sampleManifest), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := DecodeManifestFile(path)
	if err != nil {
		t.Fatalf("DecodeManifestFile: %v", err)
	}
	if m.ID != "greeter" {
		t.Fatalf("ID = %q", m.ID)
	}
}

func TestValidateRejectsMissingFields(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"missing id", `{"configSchema": {"type": "object"}}`, "id"},
		{"missing schema", `{"id": "x"}`, "configSchema"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := DecodeManifest([]byte(tc.body))
			if err != nil {
				t.Fatalf("DecodeManifest: %v", err)
			}
			err = m.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want mention of %s", err, tc.want)
			}
		})
	}
}

func TestValidateConfig(t *testing.T) {
	m, err := DecodeManifest([]byte(sampleManifest))
	if err != nil {
		t.Fatal(err)
	}

	if err := m.ValidateConfig(map[string]string{"GREETING": "hello"}); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	err = m.ValidateConfig(map[string]string{})
	if err == nil || !strings.Contains(err.Error(), "GREETING") {
		t.Fatalf("err = %v, want required GREETING violation", err)
	}

	err = m.ValidateConfig(map[string]any{"GREETING": 7})
	if err == nil {
		t.Fatal("wrong-typed config should be rejected")
	}
}
