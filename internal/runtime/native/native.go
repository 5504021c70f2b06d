// Package native executes a skill's tools as allowlisted host subprocesses.
// There is no container and no sandbox here: the only isolation is the
// allowlist a skill declares in its SKILL.md frontmatter and the
// shell-injection validators in internal/exec, so every command and
// argument is checked before exec.CommandContext ever sees it.
package native

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	execsafety "github.com/kubiyabot/skill-engine/internal/exec"
	"github.com/kubiyabot/skill-engine/pkg/models"
)

// Config controls the native runtime's defaults.
type Config struct {
	// DefaultTimeout bounds an invocation when Invocation.Timeout is unset.
	DefaultTimeout time.Duration

	// InheritEnv copies the host process environment into every invocation
	// before overlaying Invocation.Env on top.
	InheritEnv bool
}

// Runtime executes native-skill tools as host subprocesses.
type Runtime struct {
	config Config
}

// New builds a Runtime from config, filling DefaultTimeout if unset.
func New(config Config) *Runtime {
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = time.Minute
	}
	return &Runtime{config: config}
}

// Invocation is one native tool call, resolved against its skill and
// instance by the caller: the command template's arguments and the
// environment to inject are already substituted, nothing here reaches back
// into the instance manager.
type Invocation struct {
	Skill   *models.Skill
	Tool    *models.Tool
	Args    map[string]string
	Env     map[string]string
	Timeout time.Duration
}

// Run validates the invocation's command against its skill's allowlist,
// substitutes and sanitizes its arguments, and executes it as a subprocess.
func (r *Runtime) Run(ctx context.Context, inv *Invocation) (*models.ExecResult, *models.ExecError) {
	if inv == nil || inv.Skill == nil || inv.Tool == nil {
		return nil, models.NewInternal("native invocation missing skill or tool", nil)
	}

	argv, execErr := r.buildArgv(inv)
	if execErr != nil {
		return nil, execErr
	}

	if execErr := checkAllowlist(inv.Skill, argv[0]); execErr != nil {
		return nil, execErr
	}

	timeout := inv.Timeout
	if timeout <= 0 {
		timeout = r.config.DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Env = r.buildEnv(inv.Env)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded {
		return nil, models.NewTimeout(fmt.Sprintf("native command %q timed out after %s", argv[0], timeout))
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return nil, models.NewNonZeroExit(
				fmt.Sprintf("native command %q exited %d", argv[0], exitErr.ExitCode()),
				strings.TrimSpace(stderr.String()),
			)
		}
		return nil, models.NewNotFound(fmt.Sprintf("native command %q: %v", argv[0], runErr))
	}

	return &models.ExecResult{
		Output:   stdout.String(),
		Duration: duration,
	}, nil
}

// buildArgv tokenizes the tool's command template, substitutes "$name"
// placeholders from inv.Args, and sanitizes the resulting executable name
// and every argument before they reach exec.CommandContext.
func (r *Runtime) buildArgv(inv *Invocation) ([]string, *models.ExecError) {
	fields := strings.Fields(inv.Tool.Command)
	if len(fields) == 0 {
		return nil, models.NewInvalidManifest(fmt.Sprintf("tool %s has no native command template", inv.Tool.ID()))
	}

	command, err := execsafety.SanitizeExecutableValue(fields[0])
	if err != nil {
		return nil, models.NewInvalidManifest(fmt.Sprintf("tool %s command %q is unsafe: %v", inv.Tool.ID(), fields[0], err))
	}

	rawArgs := make([]string, 0, len(fields)-1)
	for _, field := range fields[1:] {
		if !strings.HasPrefix(field, "$") {
			rawArgs = append(rawArgs, field)
			continue
		}
		name := strings.TrimPrefix(field, "$")
		value, ok := inv.Args[name]
		if !ok {
			return nil, models.NewValidationError(name, fmt.Sprintf("tool %s is missing required argument %q", inv.Tool.ID(), name))
		}
		rawArgs = append(rawArgs, value)
	}

	sanitizedArgs, argErr := execsafety.SanitizeArguments(rawArgs)
	if argErr != nil {
		return nil, models.NewPolicyViolation(fmt.Sprintf("tool %s rejected an unsafe argument: %v", inv.Tool.ID(), argErr))
	}

	return append([]string{command}, sanitizedArgs...), nil
}

// checkAllowlist refuses any command not named in the skill's
// allowed-tools frontmatter. A skill with no allowlist permits nothing:
// native execution is default-deny.
func checkAllowlist(skill *models.Skill, command string) *models.ExecError {
	for _, allowed := range skill.AllowedCommands {
		if allowed == command {
			return nil
		}
	}
	return models.NewPolicyViolation(fmt.Sprintf("command %q is not in skill %q's allowed_commands", command, skill.Name))
}

// buildEnv overlays env on top of the host environment when InheritEnv is
// set, otherwise env is the invocation's entire environment.
func (r *Runtime) buildEnv(env map[string]string) []string {
	var result []string
	if r.config.InheritEnv {
		result = append(result, os.Environ()...)
	}
	for k, v := range env {
		result = append(result, k+"="+v)
	}
	return result
}
