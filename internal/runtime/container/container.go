// Package container executes a skill's tools inside a declared container
// image. It generalises internal/tools/sandbox's fixed per-language image
// table to a per-skill image, adding the security policy, image-presence
// check, and ephemeral-container lifecycle a multi-tenant container runtime
// needs on top of that pattern.
package container

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kubiyabot/skill-engine/pkg/models"

	"os/exec"
)

// Config controls the container runtime's defaults and policy floor.
type Config struct {
	// Binary is the container CLI invoked for every command ("docker" or
	// "podman"); the constructed argv is CLI-compatible with either.
	Binary string

	// RequireResourceLimits rejects container configs that omit a memory
	// limit or a CPU limit.
	RequireResourceLimits bool

	// DefaultNetwork is applied when a skill's container config leaves
	// Network unset.
	DefaultNetwork string

	// DefaultTimeout bounds an invocation when none is given explicitly.
	DefaultTimeout time.Duration

	// BlockedBindPrefixes lists host path prefixes that may never be bind
	// mounted into a container, beyond the built-in floor.
	BlockedBindPrefixes []string
}

// Runtime executes container-skill tools as ephemeral, policy-checked
// containers.
type Runtime struct {
	config  Config
	images  *imageEnsurer
}

// New builds a Runtime from config, filling defaults.
func New(config Config) *Runtime {
	if config.Binary == "" {
		config.Binary = "docker"
	}
	if config.DefaultNetwork == "" {
		config.DefaultNetwork = "none"
	}
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = 2 * time.Minute
	}
	return &Runtime{
		config: config,
		images: newImageEnsurer(config.Binary),
	}
}

// Invocation is one container tool call: the skill's container config, the
// environment to inject, the argv tail passed to the entrypoint, and an
// optional per-call timeout override.
type Invocation struct {
	Skill   *models.Skill
	Tool    *models.Tool
	Env     map[string]string
	Args    []string
	Timeout time.Duration
}

// Run checks the invocation's container config against the security
// policy, ensures the image is present, and runs it as an ephemeral,
// network-isolated-by-default container.
func (r *Runtime) Run(ctx context.Context, inv *Invocation) (*models.ExecResult, *models.ExecError) {
	if inv == nil || inv.Skill == nil || inv.Tool == nil || inv.Skill.Container == nil {
		return nil, models.NewInternal("container invocation missing skill, tool, or container config", nil)
	}
	cfg := inv.Skill.Container

	if execErr := checkPolicy(cfg, r.config.BlockedBindPrefixes, r.config.RequireResourceLimits); execErr != nil {
		return nil, execErr
	}

	if err := r.images.ensure(ctx, cfg.Image); err != nil {
		return nil, models.NewProviderError(fmt.Sprintf("pulling image %q", cfg.Image), err)
	}

	argv := r.buildArgv(cfg, inv)

	timeout := inv.Timeout
	if timeout <= 0 {
		timeout = r.config.DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.config.Binary, argv...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded {
		return nil, models.NewTimeout(fmt.Sprintf("container invocation for skill %q timed out after %s", inv.Skill.Name, timeout))
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return nil, models.NewNonZeroExit(
				fmt.Sprintf("container for skill %q exited %d", inv.Skill.Name, exitErr.ExitCode()),
				strings.TrimSpace(stderr.String()),
			)
		}
		return nil, models.NewProviderError(fmt.Sprintf("running container for skill %q", inv.Skill.Name), runErr)
	}

	return &models.ExecResult{
		Output:   stdout.String(),
		Duration: duration,
	}, nil
}

// buildArgv constructs the ephemeral, policy-compliant `docker run` argv:
// network mode, resource caps, working directory, user, GPUs, read-only
// root, platform, bind mounts, environment, entrypoint override, image,
// and the tool's argv tail.
func (r *Runtime) buildArgv(cfg *models.ContainerConfig, inv *Invocation) []string {
	argv := []string{"run", "--rm"}

	network := cfg.Network
	if network == "" {
		network = r.config.DefaultNetwork
	}
	argv = append(argv, "--network", network)

	if cfg.Memory != "" {
		argv = append(argv, "--memory", cfg.Memory, "--memory-swap", cfg.Memory)
	}
	if cfg.CPUs != "" {
		argv = append(argv, "--cpus", cfg.CPUs)
	}
	if cfg.GPUs != "" {
		argv = append(argv, "--gpus", cfg.GPUs)
	}
	if cfg.WorkingDir != "" {
		argv = append(argv, "-w", cfg.WorkingDir)
	}
	if cfg.User != "" {
		argv = append(argv, "-u", cfg.User)
	}
	if cfg.Platform != "" {
		argv = append(argv, "--platform", cfg.Platform)
	}
	if cfg.ReadOnly {
		argv = append(argv, "--read-only")
	}
	argv = append(argv, "--pids-limit", "256")

	for _, v := range cfg.Volumes {
		argv = append(argv, "-v", v)
	}
	for _, e := range cfg.Environment {
		argv = append(argv, "-e", e)
	}
	for k, v := range inv.Env {
		argv = append(argv, "-e", k+"="+v)
	}
	argv = append(argv, cfg.ExtraArgs...)

	if cfg.Entrypoint != "" {
		argv = append(argv, "--entrypoint", cfg.Entrypoint)
	}

	argv = append(argv, cfg.Image)
	argv = append(argv, cfg.Command...)
	argv = append(argv, inv.Args...)

	return argv
}
