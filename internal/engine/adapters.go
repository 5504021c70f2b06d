package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	execsafety "github.com/kubiyabot/skill-engine/internal/exec"
	"github.com/kubiyabot/skill-engine/internal/runtime/container"
	"github.com/kubiyabot/skill-engine/internal/runtime/module"
	"github.com/kubiyabot/skill-engine/internal/runtime/native"
	"github.com/kubiyabot/skill-engine/pkg/models"
)

// ModuleRuntime adapts *module.Runtime to the Engine's Runtime interface,
// loading (and AOT-caching) each skill's module on first use and reusing
// it across subsequent invocations.
type ModuleRuntime struct {
	runtime *module.Runtime

	mu      sync.RWMutex
	modules map[string]*module.Module
}

// NewModuleRuntime wraps runtime for dispatch by the Engine.
func NewModuleRuntime(runtime *module.Runtime) *ModuleRuntime {
	return &ModuleRuntime{runtime: runtime, modules: make(map[string]*module.Module)}
}

func (a *ModuleRuntime) Execute(ctx context.Context, inv *Invocation) (*models.ExecResult, *models.ExecError) {
	mod, execErr := a.load(inv.Skill)
	if execErr != nil {
		return nil, execErr
	}
	return a.runtime.Execute(ctx, &module.Invocation{
		Module:   mod,
		Instance: inv.Instance,
		Resolved: inv.Resolved,
		Tool:     inv.Tool,
		Args:     inv.Args,
		Timeout:  inv.Timeout,
	})
}

// load returns the cached Module for skill.Source, loading it the first
// time this skill is invoked. A skill's source path is immutable for the
// lifetime of the process; changes require a restart or a manifest-reload
// path that clears this cache.
func (a *ModuleRuntime) load(skill *models.Skill) (*module.Module, *models.ExecError) {
	a.mu.RLock()
	mod, ok := a.modules[skill.Name]
	a.mu.RUnlock()
	if ok {
		return mod, nil
	}

	mod, execErr := module.Load(skill.Source)
	if execErr != nil {
		return nil, execErr
	}

	a.mu.Lock()
	a.modules[skill.Name] = mod
	a.mu.Unlock()
	return mod, nil
}

// ContainerRuntime adapts *container.Runtime to the Engine's Runtime
// interface, rendering the tool's command template into the container's
// entrypoint argv tail.
type ContainerRuntime struct {
	runtime *container.Runtime
}

// NewContainerRuntime wraps runtime for dispatch by the Engine.
func NewContainerRuntime(runtime *container.Runtime) *ContainerRuntime {
	return &ContainerRuntime{runtime: runtime}
}

func (a *ContainerRuntime) Execute(ctx context.Context, inv *Invocation) (*models.ExecResult, *models.ExecError) {
	argv, execErr := renderArgv(inv.Tool, inv.Args)
	if execErr != nil {
		return nil, execErr
	}
	return a.runtime.Run(ctx, &container.Invocation{
		Skill:   inv.Skill,
		Tool:    inv.Tool,
		Env:     stringifyEnv(inv),
		Args:    argv,
		Timeout: inv.Timeout,
	})
}

// NativeRuntime adapts *native.Runtime to the Engine's Runtime interface.
type NativeRuntime struct {
	runtime *native.Runtime
}

// NewNativeRuntime wraps runtime for dispatch by the Engine.
func NewNativeRuntime(runtime *native.Runtime) *NativeRuntime {
	return &NativeRuntime{runtime: runtime}
}

func (a *NativeRuntime) Execute(ctx context.Context, inv *Invocation) (*models.ExecResult, *models.ExecError) {
	return a.runtime.Run(ctx, &native.Invocation{
		Skill:   inv.Skill,
		Tool:    inv.Tool,
		Args:    stringifyArgs(inv.Args),
		Env:     stringifyEnv(inv),
		Timeout: inv.Timeout,
	})
}

// renderArgv substitutes "$name" placeholders in a tool's command
// template from args and sanitizes the result into the container's
// entrypoint argv tail. Unlike the native runtime, every token becomes an
// argv element: a container tool has no separate "executable" token,
// since the image's entrypoint already is one.
func renderArgv(tool *models.Tool, args map[string]any) ([]string, *models.ExecError) {
	fields := strings.Fields(tool.Command)
	if len(fields) == 0 {
		return nil, nil
	}

	argv := make([]string, 0, len(fields))
	for _, field := range fields {
		value := field
		if strings.HasPrefix(field, "$") {
			name := strings.TrimPrefix(field, "$")
			v, ok := args[name]
			if !ok {
				return nil, models.NewValidationError(name, fmt.Sprintf("tool %s is missing required argument %q", tool.ID(), name))
			}
			value = fmt.Sprintf("%v", v)
		}
		sanitized, err := execsafety.SanitizeArgument(value)
		if err != nil {
			return nil, models.NewPolicyViolation(fmt.Sprintf("tool %s rejected an unsafe argument: %v", tool.ID(), err))
		}
		argv = append(argv, sanitized)
	}
	return argv, nil
}

func stringifyArgs(args map[string]any) map[string]string {
	out := make(map[string]string, len(args))
	for k, v := range args {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}

func stringifyEnv(inv *Invocation) map[string]string {
	env := make(map[string]string, len(inv.Instance.Environment)+len(inv.Resolved))
	for k, v := range inv.Instance.Environment {
		env[k] = v
	}
	for k, v := range inv.Resolved {
		env[k] = v.String()
	}
	return env
}
