package manifest

import (
	"os"
	"testing"
)

func TestResolveSource(t *testing.T) {
	cases := []struct {
		dir, source, want string
	}{
		{"/skills", "./kubectl", "/skills/kubectl"},
		{"/skills", "../shared/kubectl", "/shared/kubectl"},
		{"/skills", "/abs/path", "/abs/path"},
		{"/skills", "oci://registry.example/kubectl:1", "oci://registry.example/kubectl:1"},
		{"/skills", "", ""},
	}
	for _, c := range cases {
		if got := ResolveSource(c.dir, c.source); got != c.want {
			t.Errorf("ResolveSource(%q, %q) = %q, want %q", c.dir, c.source, got, c.want)
		}
	}
}

func TestExpandVars(t *testing.T) {
	os.Setenv("SKILL_ENGINE_TEST_VAR", "configured")
	defer os.Unsetenv("SKILL_ENGINE_TEST_VAR")

	cases := []struct {
		in, want string
	}{
		{"${SKILL_ENGINE_TEST_VAR}", "configured"},
		{"$SKILL_ENGINE_TEST_VAR", "configured"},
		{"${UNSET_SKILL_ENGINE_VAR:-fallback}", "fallback"},
		{"${UNSET_SKILL_ENGINE_VAR}", ""},
		{"prefix-${SKILL_ENGINE_TEST_VAR}-suffix", "prefix-configured-suffix"},
	}
	for _, c := range cases {
		if got := ExpandVars(c.in); got != c.want {
			t.Errorf("ExpandVars(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
