//go:build linux

package firecracker

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	fcsdk "github.com/firecracker-microvm/firecracker-go-sdk"
	fcmodels "github.com/firecracker-microvm/firecracker-go-sdk/client/models"
	"github.com/google/uuid"
)

// guestCID is the vsock context id assigned to every guest. CIDs 0-2 are
// reserved by the vsock spec; VMs never talk to each other, so a shared
// CID is fine.
const guestCID = 3

// machine is one booted microVM: a firecracker process, its API socket,
// a private rootfs clone, and the vsock path its guest agent listens
// behind. All mutable state is guarded by mu; the pool is the only caller.
type machine struct {
	id       string
	language string
	config   Config

	mu      sync.Mutex
	fc      *fcsdk.Machine
	conn    *guestConn
	broken  bool
	bootAt  time.Time
	usedAt  time.Time
	execs   int
	workDir string
}

// newMachine clones the language's rootfs, boots a firecracker VM over
// it, and waits for the VMM to come up. The clone and the work directory
// are removed on stop.
func newMachine(ctx context.Context, cfg Config, language string) (*machine, error) {
	rootfs, ok := cfg.RootFSImages[language]
	if !ok {
		return nil, fmt.Errorf("no rootfs for language %q", language)
	}

	id := uuid.NewString()
	workDir := filepath.Join(os.TempDir(), "skill-engine-fc", id)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("vm work dir: %w", err)
	}

	clone := filepath.Join(cfg.CloneDir, id+".ext4")
	if err := cloneRootFS(rootfs, clone); err != nil {
		os.Remove(clone)
		os.RemoveAll(workDir)
		return nil, fmt.Errorf("clone rootfs: %w", err)
	}

	m := &machine{
		id:       id,
		language: language,
		config:   cfg,
		workDir:  workDir,
	}

	socketPath := filepath.Join(workDir, "api.sock")
	vsockPath := filepath.Join(workDir, "vsock.sock")

	fcConfig := fcsdk.Config{
		SocketPath:      socketPath,
		LogPath:         filepath.Join(workDir, "vm.log"),
		LogLevel:        "Warning",
		KernelImagePath: cfg.KernelPath,
		KernelArgs:      "console=ttyS0 reboot=k panic=1 pci=off",
		Drives: []fcmodels.Drive{{
			DriveID:      fcsdk.String("rootfs"),
			PathOnHost:   fcsdk.String(clone),
			IsRootDevice: fcsdk.Bool(true),
			IsReadOnly:   fcsdk.Bool(false),
		}},
		MachineCfg: fcmodels.MachineConfiguration{
			VcpuCount:  fcsdk.Int64(cfg.VCPUs),
			MemSizeMib: fcsdk.Int64(cfg.MemMB),
			Smt:        fcsdk.Bool(false),
		},
		VsockDevices: []fcsdk.VsockDevice{{
			Path: vsockPath,
			CID:  guestCID,
		}},
	}
	if cfg.NetworkEnabled {
		fcConfig.NetworkInterfaces = fcsdk.NetworkInterfaces{{
			StaticConfiguration: &fcsdk.StaticNetworkConfiguration{
				MacAddress:  "AA:FC:00:00:00:01",
				HostDevName: "tap0",
			},
		}}
	}

	bin, err := exec.LookPath("firecracker")
	if err != nil {
		m.cleanup(clone)
		return nil, err
	}
	cmd := fcsdk.VMCommandBuilder{}.
		WithBin(bin).
		WithSocketPath(socketPath).
		Build(ctx)

	fc, err := fcsdk.NewMachine(ctx, fcConfig, fcsdk.WithProcessRunner(cmd))
	if err != nil {
		m.cleanup(clone)
		return nil, fmt.Errorf("new machine: %w", err)
	}
	if err := fc.Start(ctx); err != nil {
		m.cleanup(clone)
		return nil, fmt.Errorf("boot machine: %w", err)
	}

	m.fc = fc
	m.conn = newGuestConn(vsockPath)
	m.bootAt = time.Now()
	m.usedAt = m.bootAt
	return m, nil
}

// agent returns a connected guest-agent handle, dialling lazily so a VM
// that booted moments ago has time to bring the agent up.
func (m *machine) agent(ctx context.Context) (*guestConn, error) {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return nil, fmt.Errorf("vm %s has no vsock device", m.id)
	}
	if err := conn.connect(ctx); err != nil {
		return nil, err
	}
	return conn, nil
}

// markBroken flags the machine for recycling instead of reuse. Called
// after any agent-level failure, since the guest's state is then unknown.
func (m *machine) markBroken() {
	m.mu.Lock()
	m.broken = true
	m.mu.Unlock()
}

func (m *machine) isBroken() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.broken
}

// touch records a completed execution for the recycling policy.
func (m *machine) touch() {
	m.mu.Lock()
	m.execs++
	m.usedAt = time.Now()
	m.mu.Unlock()
}

// expired reports whether the recycling policy wants this VM replaced:
// too many executions, too old, or idle too long.
func (m *machine) expired(p PoolConfig) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.broken {
		return true
	}
	if p.MaxExecsPerVM > 0 && m.execs >= p.MaxExecsPerVM {
		return true
	}
	if p.MaxVMUptime > 0 && time.Since(m.bootAt) > p.MaxVMUptime {
		return true
	}
	if p.MaxVMIdle > 0 && time.Since(m.usedAt) > p.MaxVMIdle {
		return true
	}
	return false
}

// stop shuts the VMM down and deletes the rootfs clone and work dir.
// Safe to call more than once.
func (m *machine) stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if m.conn != nil {
		if err := m.conn.close(); err != nil {
			errs = append(errs, err)
		}
		m.conn = nil
	}
	if m.fc != nil {
		if err := m.fc.StopVMM(); err != nil {
			errs = append(errs, fmt.Errorf("stop vmm: %w", err))
		}
		m.fc = nil
	}
	m.cleanup(filepath.Join(m.config.CloneDir, m.id+".ext4"))

	if len(errs) > 0 {
		return fmt.Errorf("stop vm %s: %v", m.id, errs)
	}
	return nil
}

func (m *machine) cleanup(clone string) {
	os.Remove(clone)
	os.RemoveAll(m.workDir)
}

// cloneRootFS copies the base image to dst, preferring a reflink clone
// (free on btrfs/xfs) and falling back to a plain copy elsewhere.
func cloneRootFS(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	if err := reflink(out, in); err == nil {
		return nil
	}

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if err := out.Truncate(info.Size()); err != nil {
		return err
	}
	_, err = out.ReadFrom(in)
	return err
}

// reflink issues the FICLONE ioctl, sharing extents between the base
// image and the clone until the guest writes.
func reflink(dst, src *os.File) error {
	const ficlone = 0x40049409
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, dst.Fd(), ficlone, src.Fd())
	if errno != 0 {
		return errno
	}
	return nil
}
