package native

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kubiyabot/skill-engine/pkg/models"
)

func echoSkill() *models.Skill {
	return &models.Skill{
		Name:            "greeter",
		Runtime:         models.RuntimeNative,
		AllowedCommands: []string{"echo"},
	}
}

func echoTool() *models.Tool {
	return &models.Tool{
		Name:      "say",
		SkillName: "greeter",
		Command:   "echo $msg",
	}
}

func TestRunSubstitutesArgsAndExecutes(t *testing.T) {
	rt := New(Config{DefaultTimeout: 5 * time.Second})
	inv := &Invocation{
		Skill: echoSkill(),
		Tool:  echoTool(),
		Args:  map[string]string{"msg": "hello-native"},
	}

	result, execErr := rt.Run(context.Background(), inv)
	if execErr != nil {
		t.Fatalf("Run() error = %v", execErr)
	}
	if got := strings.TrimSpace(result.Output); got != "hello-native" {
		t.Errorf("Output = %q, want %q", got, "hello-native")
	}
}

func TestRunRejectsCommandNotInAllowlist(t *testing.T) {
	rt := New(Config{DefaultTimeout: 5 * time.Second})
	skill := echoSkill()
	skill.AllowedCommands = []string{"cat"}
	inv := &Invocation{
		Skill: skill,
		Tool:  echoTool(),
		Args:  map[string]string{"msg": "hello"},
	}

	_, execErr := rt.Run(context.Background(), inv)
	if execErr == nil {
		t.Fatal("expected a policy violation, got nil")
	}
	if execErr.Kind != models.KindPolicyViolation {
		t.Errorf("Kind = %v, want %v", execErr.Kind, models.KindPolicyViolation)
	}
}

func TestRunRejectsMissingRequiredArg(t *testing.T) {
	rt := New(Config{DefaultTimeout: 5 * time.Second})
	inv := &Invocation{
		Skill: echoSkill(),
		Tool:  echoTool(),
		Args:  map[string]string{},
	}

	_, execErr := rt.Run(context.Background(), inv)
	if execErr == nil {
		t.Fatal("expected a validation error, got nil")
	}
	if execErr.Kind != models.KindValidationError {
		t.Errorf("Kind = %v, want %v", execErr.Kind, models.KindValidationError)
	}
	if execErr.Field != "msg" {
		t.Errorf("Field = %q, want %q", execErr.Field, "msg")
	}
}

func TestRunRejectsShellMetacharacterArg(t *testing.T) {
	rt := New(Config{DefaultTimeout: 5 * time.Second})
	inv := &Invocation{
		Skill: echoSkill(),
		Tool:  echoTool(),
		Args:  map[string]string{"msg": "hi; rm -rf /"},
	}

	_, execErr := rt.Run(context.Background(), inv)
	if execErr == nil {
		t.Fatal("expected a policy violation, got nil")
	}
	if execErr.Kind != models.KindPolicyViolation {
		t.Errorf("Kind = %v, want %v", execErr.Kind, models.KindPolicyViolation)
	}
}

func TestRunMapsNonZeroExit(t *testing.T) {
	rt := New(Config{DefaultTimeout: 5 * time.Second})
	skill := &models.Skill{Name: "failer", AllowedCommands: []string{"false"}}
	tool := &models.Tool{Name: "fail", SkillName: "failer", Command: "false"}
	inv := &Invocation{Skill: skill, Tool: tool, Args: map[string]string{}}

	_, execErr := rt.Run(context.Background(), inv)
	if execErr == nil {
		t.Fatal("expected a non-zero-exit error, got nil")
	}
	if execErr.Kind != models.KindNonZeroExit {
		t.Errorf("Kind = %v, want %v", execErr.Kind, models.KindNonZeroExit)
	}
}

func TestRunMapsCommandNotFound(t *testing.T) {
	rt := New(Config{DefaultTimeout: 5 * time.Second})
	skill := &models.Skill{Name: "ghost", AllowedCommands: []string{"this-binary-does-not-exist-anywhere"}}
	tool := &models.Tool{Name: "vanish", SkillName: "ghost", Command: "this-binary-does-not-exist-anywhere"}
	inv := &Invocation{Skill: skill, Tool: tool, Args: map[string]string{}}

	_, execErr := rt.Run(context.Background(), inv)
	if execErr == nil {
		t.Fatal("expected a not-found error, got nil")
	}
	if execErr.Kind != models.KindNotFound {
		t.Errorf("Kind = %v, want %v", execErr.Kind, models.KindNotFound)
	}
}

func TestRunEnforcesTimeout(t *testing.T) {
	rt := New(Config{DefaultTimeout: 50 * time.Millisecond})
	skill := &models.Skill{Name: "sleeper", AllowedCommands: []string{"sleep"}}
	tool := &models.Tool{Name: "nap", SkillName: "sleeper", Command: "sleep 2"}
	inv := &Invocation{Skill: skill, Tool: tool, Args: map[string]string{}}

	_, execErr := rt.Run(context.Background(), inv)
	if execErr == nil {
		t.Fatal("expected a timeout error, got nil")
	}
	if execErr.Kind != models.KindTimeout {
		t.Errorf("Kind = %v, want %v", execErr.Kind, models.KindTimeout)
	}
}

func TestBuildEnvOverlaysOnInherited(t *testing.T) {
	rt := New(Config{InheritEnv: false})
	env := rt.buildEnv(map[string]string{"FOO": "bar"})
	if len(env) != 1 || env[0] != "FOO=bar" {
		t.Errorf("buildEnv(no inherit) = %v, want [FOO=bar]", env)
	}

	rtInherit := New(Config{InheritEnv: true})
	env = rtInherit.buildEnv(map[string]string{"FOO": "bar"})
	found := false
	for _, e := range env {
		if e == "FOO=bar" {
			found = true
		}
	}
	if !found {
		t.Errorf("buildEnv(inherit) missing overlay entry, got %v", env)
	}
}
