//go:build linux

// Package firecracker backs the sandbox pool with pooled Firecracker
// microVMs: hardware-level isolation for module invocations on hosts with
// KVM, at a cold-start cost the warm pool amortises away. Each VM runs a
// guest agent reached over vsock; the host syncs the module's entrypoint
// and files into the guest workspace and asks the agent to run them.
package firecracker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/kubiyabot/skill-engine/internal/tools/sandbox"
)

// Config describes the host artefacts and sizing the backend needs. The
// kernel and per-language rootfs images are operator-provisioned; the
// backend refuses to start without them.
type Config struct {
	KernelPath   string
	RootFSImages map[string]string // language -> rootfs image
	CloneDir     string            // where per-VM rootfs clones live

	VCPUs          int64
	MemMB          int64
	NetworkEnabled bool

	Pool PoolConfig
}

// DefaultConfig returns the conventional /var/lib/firecracker layout with
// one vCPU and 512 MB per VM and networking off.
func DefaultConfig() Config {
	return Config{
		KernelPath: "/var/lib/firecracker/vmlinux",
		RootFSImages: map[string]string{
			"python": "/var/lib/firecracker/rootfs-python.ext4",
			"nodejs": "/var/lib/firecracker/rootfs-nodejs.ext4",
			"go":     "/var/lib/firecracker/rootfs-go.ext4",
			"bash":   "/var/lib/firecracker/rootfs-bash.ext4",
		},
		CloneDir: "/var/lib/firecracker/clones",
		VCPUs:    1,
		MemMB:    512,
		Pool:     DefaultPoolConfig(),
	}
}

// Backend owns the VM pool and exposes sandboxed execution over it.
type Backend struct {
	config Config
	pool   *vmPool

	mu     sync.RWMutex
	closed bool
}

// NewBackend validates the host (binary, KVM, kernel, at least one rootfs)
// and builds the backend. The pool stays cold until Start.
func NewBackend(config Config) (*Backend, error) {
	if err := CheckHost(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(config.KernelPath); err != nil {
		return nil, fmt.Errorf("firecracker: kernel image: %w", err)
	}
	usable := 0
	for _, path := range config.RootFSImages {
		if _, err := os.Stat(path); err == nil {
			usable++
		}
	}
	if usable == 0 {
		return nil, errors.New("firecracker: no rootfs images present")
	}
	if err := os.MkdirAll(config.CloneDir, 0o755); err != nil {
		return nil, fmt.Errorf("firecracker: clone dir: %w", err)
	}

	return &Backend{
		config: config,
		pool:   newVMPool(config),
	}, nil
}

// Start warms the pool.
func (b *Backend) Start(ctx context.Context) error {
	return b.pool.start(ctx)
}

// Run executes one sandboxed invocation in a pooled microVM. The guest
// workspace is reset between borrowers of the same VM by the agent's
// reset command, so no invocation observes a predecessor's files.
func (b *Backend) Run(ctx context.Context, params *sandbox.ExecuteParams, workspace string) (*sandbox.ExecuteResult, error) {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return nil, errors.New("firecracker: backend closed")
	}

	vm, err := b.pool.get(ctx, params.Language)
	if err != nil {
		return nil, fmt.Errorf("firecracker: acquire vm: %w", err)
	}
	defer b.pool.put(vm)

	agent, err := vm.agent(ctx)
	if err != nil {
		vm.markBroken()
		return nil, fmt.Errorf("firecracker: guest agent: %w", err)
	}

	files := map[string]string{entrypointName(params.Language): params.Code}
	for name, content := range params.Files {
		files[name] = content
	}
	if err := agent.syncFiles(ctx, files); err != nil {
		vm.markBroken()
		return nil, fmt.Errorf("firecracker: sync files: %w", err)
	}

	timeout := time.Duration(params.Timeout) * time.Second
	if timeout <= 0 {
		timeout = b.config.Pool.MaxExecTime
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := agent.execute(execCtx, params)
	if err != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			vm.markBroken() // the guest may still be running the workload
			return &sandbox.ExecuteResult{Timeout: true, Error: "execution timeout"}, nil
		}
		vm.markBroken()
		return nil, fmt.Errorf("firecracker: execute: %w", err)
	}

	return &sandbox.ExecuteResult{
		Stdout:   resp.Stdout,
		Stderr:   resp.Stderr,
		ExitCode: resp.ExitCode,
		Error:    resp.Error,
		Timeout:  resp.Timeout,
		Duration: time.Duration(resp.DurationMS) * time.Millisecond,
	}, nil
}

// Close tears down the pool and every VM in it.
func (b *Backend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()
	return b.pool.close()
}

// Stats reports pool occupancy.
func (b *Backend) Stats() PoolStats {
	return b.pool.stats()
}

// Factory adapts the backend to the sandbox pool's executor factory, the
// injection point that selects Firecracker over the Docker default.
func (b *Backend) Factory() sandbox.ExecutorFactory {
	return func(language string) (sandbox.RuntimeExecutor, error) {
		if _, ok := b.config.RootFSImages[language]; !ok {
			return nil, fmt.Errorf("firecracker: no rootfs for language %q", language)
		}
		return &executor{backend: b, language: language}, nil
	}
}

// executor is a thin per-language handle; the backend's pool does the
// actual VM management, so closing an executor releases nothing.
type executor struct {
	backend  *Backend
	language string
}

func (e *executor) Run(ctx context.Context, params *sandbox.ExecuteParams, workspace string) (*sandbox.ExecuteResult, error) {
	return e.backend.Run(ctx, params, workspace)
}

func (e *executor) Language() string { return e.language }

func (e *executor) Close() error { return nil }

// Available reports whether the firecracker binary is on PATH.
func Available() bool {
	_, err := exec.LookPath("firecracker")
	return err == nil
}

// CheckHost verifies the firecracker binary and usable KVM access.
func CheckHost() error {
	if _, err := exec.LookPath("firecracker"); err != nil {
		return fmt.Errorf("firecracker binary not found: %w", err)
	}
	kvm, err := os.OpenFile("/dev/kvm", os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("kvm unavailable: %w", err)
	}
	kvm.Close()
	return nil
}

// entrypointName matches the filename the guest agent expects for each
// language's entrypoint.
func entrypointName(language string) string {
	switch language {
	case "python":
		return "main.py"
	case "nodejs":
		return "main.js"
	case "go":
		return "main.go"
	case "bash":
		return "main.sh"
	default:
		return "main"
	}
}
