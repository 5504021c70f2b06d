package module

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kubiyabot/skill-engine/internal/credentials"
	"github.com/kubiyabot/skill-engine/internal/tools/sandbox"
	"github.com/kubiyabot/skill-engine/pkg/models"
)

// Config controls the module runtime's cache location, scratch lifetime,
// and the sandbox pool it draws executors from.
type Config struct {
	CacheDir             string
	ScratchDir           string
	ScratchSweepInterval time.Duration
	ScratchMaxAge        time.Duration
}

// Runtime loads and executes module-runtime skills: one capability-scoped
// sandbox per invocation, drawn from and returned to a shared pool of
// warm per-language sandboxes.
type Runtime struct {
	config   Config
	cache    *Cache
	pool     *sandbox.Pool
	sweeper  *scratchSweeper
}

// New builds a Runtime backed by pool, with an AOT cache and scratch
// directory rooted under config.CacheDir/config.ScratchDir.
func New(config Config, pool *sandbox.Pool) (*Runtime, error) {
	if config.ScratchSweepInterval <= 0 {
		config.ScratchSweepInterval = 10 * time.Minute
	}
	if config.ScratchMaxAge <= 0 {
		config.ScratchMaxAge = time.Hour
	}
	cache, err := NewCache(config.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("open module cache: %w", err)
	}
	if err := os.MkdirAll(config.ScratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &Runtime{
		config:  config,
		cache:   cache,
		pool:    pool,
		sweeper: newScratchSweeper(config.ScratchDir, config.ScratchSweepInterval, config.ScratchMaxAge),
	}, nil
}

// Start begins the background scratch-dir sweeper.
func (r *Runtime) Start() {
	r.sweeper.Start()
}

// Close stops the background scratch-dir sweeper.
func (r *Runtime) Close() error {
	r.sweeper.Close()
	return nil
}

// Invocation is one module tool call: the loaded module, the instance
// config its capability grant is derived from, the tool and its arguments.
type Invocation struct {
	Module   *Module
	Instance *models.InstanceConfig
	Resolved map[string]*credentials.SecureString
	Tool     *models.Tool
	Args     map[string]any
	Timeout  time.Duration
}

// Execute ensures the module is in the AOT cache, builds a per-invocation
// capability grant from the instance config, and runs the tool call in a
// fresh sandbox. The sandbox's scratch directory never survives past this
// call.
func (r *Runtime) Execute(ctx context.Context, inv *Invocation) (*models.ExecResult, *models.ExecError) {
	if inv == nil || inv.Module == nil || inv.Instance == nil || inv.Tool == nil {
		return nil, models.NewInternal("module invocation missing module, instance, or tool", nil)
	}

	if _, err := r.cache.Ensure(inv.Module); err != nil {
		return nil, models.NewInvalidModule("record module in AOT cache", err)
	}

	if err := inv.Module.Manifest.ValidateConfig(resolvedConfig(inv.Resolved)); err != nil {
		return nil, models.NewValidationError("config", fmt.Sprintf("instance config rejected by module schema: %v", err))
	}

	scratch, err := os.MkdirTemp(r.config.ScratchDir, "inv-*")
	if err != nil {
		return nil, models.NewInternal("create invocation scratch directory", err)
	}
	defer os.RemoveAll(scratch)

	argsJSON, err := json.Marshal(inv.Args)
	if err != nil {
		return nil, models.NewValidationError("args", fmt.Sprintf("encode tool arguments: %v", err))
	}

	executor, err := r.pool.Get(ctx, inv.Module.Language)
	if err != nil {
		return nil, models.NewProviderError("acquire sandbox executor", err)
	}
	defer r.pool.Put(executor)

	timeout := inv.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	params := &sandbox.ExecuteParams{
		Language:       inv.Module.Language,
		Code:           inv.Module.Source,
		Files:          inv.Module.Files,
		Stdin:          string(argsJSON),
		Env:            buildCapabilityEnv(inv.Instance, inv.Resolved),
		NetworkEnabled: inv.Instance.Capabilities.NetworkAccess,
		AllowedPaths:   inv.Instance.Capabilities.AllowedPaths,
		Timeout:        int(timeout.Seconds()),
	}

	result, runErr := executor.Run(ctx, params, scratch)
	if runErr != nil {
		return nil, models.NewProviderError("run module sandbox", runErr)
	}

	if result.Timeout {
		return nil, models.NewTimeout(fmt.Sprintf("module %q timed out after %s", inv.Module.Manifest.ID, timeout))
	}
	if result.ExitCode == 137 || strings.Contains(strings.ToLower(result.Error), "oom") {
		return nil, &models.ExecError{Kind: models.KindResourceExhausted, Message: fmt.Sprintf("module %q exhausted its resource limits", inv.Module.Manifest.ID), Details: result.Stderr}
	}
	if result.ExitCode != 0 || result.Error != "" {
		return nil, models.NewRuntimeTrap(fmt.Sprintf("module %q trapped", inv.Module.Manifest.ID), firstNonEmpty(result.Error, result.Stderr))
	}

	return &models.ExecResult{
		Output:   result.Stdout,
		Duration: result.Duration,
	}, nil
}

// buildCapabilityEnv derives a module invocation's environment from the
// instance's resolved config and secrets, plus SKILL_INSTANCE_ID. Nothing
// else from the host environment is visible: default-deny.
func buildCapabilityEnv(inst *models.InstanceConfig, resolved map[string]*credentials.SecureString) map[string]string {
	env := make(map[string]string, len(resolved)+len(inst.Environment)+1)
	for k, v := range inst.Environment {
		env[k] = v
	}
	for k, v := range resolved {
		env[k] = v.String()
	}
	env["SKILL_INSTANCE_ID"] = inst.Metadata.InstanceName
	return env
}

// resolvedConfig flattens the materialised secret map into the plain
// key/value shape the module's configSchema validates.
func resolvedConfig(resolved map[string]*credentials.SecureString) map[string]string {
	cfg := make(map[string]string, len(resolved))
	for k, v := range resolved {
		cfg[k] = v.String()
	}
	return cfg
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
