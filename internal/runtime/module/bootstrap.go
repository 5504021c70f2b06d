package module

import (
	"context"
	"fmt"

	"github.com/kubiyabot/skill-engine/internal/config"
	"github.com/kubiyabot/skill-engine/internal/tools/sandbox"
	"github.com/kubiyabot/skill-engine/internal/tools/sandbox/firecracker"
)

// NewSandboxPool builds the executor pool the module runtime draws from,
// selecting the isolation backend from config. "firecracker" requires a
// linux host with KVM and provisioned kernel/rootfs images; when it is
// requested but unavailable the pool falls back to throwaway Docker
// containers rather than refusing to serve module skills at all.
func NewSandboxPool(ctx context.Context, cfg config.ModuleRuntimeConfig, networkEnabled bool) (*sandbox.Pool, func() error, error) {
	sandboxCfg := &sandbox.Config{
		Backend:        sandbox.Backend(cfg.Backend),
		PoolSize:       cfg.PoolSize,
		MaxPoolSize:    cfg.MaxPoolSize,
		NetworkEnabled: networkEnabled,
	}

	cleanup := func() error { return nil }
	if sandboxCfg.Backend == sandbox.BackendFirecracker && firecracker.Available() {
		fcCfg := firecracker.DefaultConfig()
		fcCfg.NetworkEnabled = networkEnabled
		backend, err := firecracker.NewBackend(fcCfg)
		if err == nil {
			if err := backend.Start(ctx); err != nil {
				backend.Close()
				return nil, nil, fmt.Errorf("start firecracker backend: %w", err)
			}
			sandboxCfg.Factory = backend.Factory()
			cleanup = backend.Close
		}
	}

	pool, err := sandbox.NewPool(sandboxCfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return pool, cleanup, nil
}
