//go:build !linux

// Firecracker requires KVM; on other platforms the backend declines to
// construct and the sandbox pool falls back to its Docker default.
package firecracker

import (
	"context"
	"errors"
	"time"

	"github.com/kubiyabot/skill-engine/internal/tools/sandbox"
)

// Config mirrors the linux build's fields so callers can be written
// portably.
type Config struct {
	KernelPath   string
	RootFSImages map[string]string
	CloneDir     string

	VCPUs          int64
	MemMB          int64
	NetworkEnabled bool

	Pool PoolConfig
}

// PoolConfig mirrors the linux build's pool sizing fields.
type PoolConfig struct {
	WarmPerLanguage int
	MaxPerLanguage  int
	MaxExecsPerVM   int
	MaxVMUptime     time.Duration
	MaxVMIdle       time.Duration
	SweepInterval   time.Duration
	MaxExecTime     time.Duration
}

// DefaultConfig returns zero-value defaults; the backend cannot start
// here regardless.
func DefaultConfig() Config { return Config{Pool: DefaultPoolConfig()} }

// DefaultPoolConfig mirrors the linux defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		WarmPerLanguage: 1,
		MaxPerLanguage:  4,
		MaxExecsPerVM:   100,
		MaxVMUptime:     30 * time.Minute,
		MaxVMIdle:       5 * time.Minute,
		SweepInterval:   30 * time.Second,
		MaxExecTime:     5 * time.Minute,
	}
}

// Backend is unavailable off linux.
type Backend struct{}

// PoolStats mirrors the linux build's shape.
type PoolStats struct {
	Idle   map[string]int `json:"idle"`
	Active map[string]int `json:"active"`
}

var errUnsupported = errors.New("firecracker: requires linux with KVM")

// NewBackend always fails off linux.
func NewBackend(Config) (*Backend, error) { return nil, errUnsupported }

// Start is unreachable: NewBackend never returns a Backend here.
func (b *Backend) Start(context.Context) error { return errUnsupported }

// Run is unreachable: NewBackend never returns a Backend here.
func (b *Backend) Run(context.Context, *sandbox.ExecuteParams, string) (*sandbox.ExecuteResult, error) {
	return nil, errUnsupported
}

// Close is a no-op.
func (b *Backend) Close() error { return nil }

// Stats reports an empty pool.
func (b *Backend) Stats() PoolStats { return PoolStats{} }

// Factory returns a factory that always fails, so a misconfigured
// non-linux host surfaces the error at pool construction.
func (b *Backend) Factory() sandbox.ExecutorFactory {
	return func(string) (sandbox.RuntimeExecutor, error) { return nil, errUnsupported }
}

// Available reports whether Firecracker can run here.
func Available() bool { return false }

// CheckHost explains why Firecracker cannot run here.
func CheckHost() error { return errUnsupported }
