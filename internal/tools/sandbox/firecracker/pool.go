//go:build linux

package firecracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// PoolConfig sizes the VM pool and its recycling policy.
type PoolConfig struct {
	// WarmPerLanguage is how many VMs Start boots ahead of demand for each
	// language with a rootfs present.
	WarmPerLanguage int
	// MaxPerLanguage caps concurrent VMs per language.
	MaxPerLanguage int

	// MaxExecsPerVM recycles a VM after this many executions; guest state
	// drifts and a fresh boot is cheaper than debugging it.
	MaxExecsPerVM int
	// MaxVMUptime recycles a VM regardless of use.
	MaxVMUptime time.Duration
	// MaxVMIdle recycles a VM the sweeper finds idle this long.
	MaxVMIdle time.Duration

	// SweepInterval is the recycling sweep cadence.
	SweepInterval time.Duration

	// MaxExecTime is the fallback execution deadline when the invocation
	// carries none.
	MaxExecTime time.Duration
}

// DefaultPoolConfig mirrors the sizing that keeps one warm VM per
// language on a developer host without holding more than a few hundred
// MB of memory.
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

// vmPool keeps warm machines per language and replaces them per the
// recycling policy. get prefers an idle machine, boots a new one under
// the cap, and otherwise waits for a return.
type vmPool struct {
	config Config

	mu     sync.Mutex
	idle   map[string][]*machine
	active map[string]int
	closed bool

	done chan struct{}
	wg   sync.WaitGroup
}

func newVMPool(config Config) *vmPool {
	return &vmPool{
		config: config,
		idle:   make(map[string][]*machine),
		active: make(map[string]int),
		done:   make(chan struct{}),
	}
}

// start boots the warm set and launches the recycling sweeper. A language
// whose rootfs is missing is skipped rather than failing the others.
func (p *vmPool) start(ctx context.Context) error {
	for language := range p.config.RootFSImages {
		for i := 0; i < p.config.Pool.WarmPerLanguage; i++ {
			vm, err := newMachine(ctx, p.config, language)
			if err != nil {
				break
			}
			p.mu.Lock()
			p.idle[language] = append(p.idle[language], vm)
			p.active[language]++
			p.mu.Unlock()
		}
	}

	p.wg.Add(1)
	go p.sweep()
	return nil
}

// get returns a machine for language, booting one if under the cap.
func (p *vmPool) get(ctx context.Context, language string) (*machine, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, errors.New("vm pool closed")
		}
		if vms := p.idle[language]; len(vms) > 0 {
			vm := vms[len(vms)-1]
			p.idle[language] = vms[:len(vms)-1]
			p.mu.Unlock()
			if vm.expired(p.config.Pool) {
				p.retire(vm)
				continue
			}
			return vm, nil
		}
		if p.active[language] < p.config.Pool.MaxPerLanguage {
			p.active[language]++
			p.mu.Unlock()
			vm, err := newMachine(ctx, p.config, language)
			if err != nil {
				p.mu.Lock()
				p.active[language]--
				p.mu.Unlock()
				return nil, err
			}
			return vm, nil
		}
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// put returns a machine after an execution. Broken or expired machines
// are retired instead of re-idled.
func (p *vmPool) put(vm *machine) {
	vm.touch()
	if vm.isBroken() || vm.expired(p.config.Pool) {
		p.retire(vm)
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.retire(vm)
		return
	}
	p.idle[vm.language] = append(p.idle[vm.language], vm)
	p.mu.Unlock()
}

// retire stops a machine and releases its capacity slot.
func (p *vmPool) retire(vm *machine) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	vm.stop(ctx)

	p.mu.Lock()
	if p.active[vm.language] > 0 {
		p.active[vm.language]--
	}
	p.mu.Unlock()
}

// sweep periodically retires idle machines the recycling policy has
// expired, so a quiet host sheds VMs back to zero.
func (p *vmPool) sweep() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.config.Pool.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
		}

		var expired []*machine
		p.mu.Lock()
		for language, vms := range p.idle {
			keep := vms[:0]
			for _, vm := range vms {
				if vm.expired(p.config.Pool) {
					expired = append(expired, vm)
				} else {
					keep = append(keep, vm)
				}
			}
			p.idle[language] = keep
		}
		p.mu.Unlock()

		for _, vm := range expired {
			p.retire(vm)
		}
	}
}

// close stops the sweeper and every idle machine. Machines out on loan
// are retired when put back.
func (p *vmPool) close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	var all []*machine
	for language, vms := range p.idle {
		all = append(all, vms...)
		p.idle[language] = nil
	}
	p.mu.Unlock()

	close(p.done)
	p.wg.Wait()

	var errs []error
	for _, vm := range all {
		if err := vm.stop(context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close vm pool: %v", errs)
	}
	return nil
}

// PoolStats is the pool's occupancy snapshot.
type PoolStats struct {
	Idle   map[string]int `json:"idle"`
	Active map[string]int `json:"active"`
}

func (p *vmPool) stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := PoolStats{
		Idle:   make(map[string]int, len(p.idle)),
		Active: make(map[string]int, len(p.active)),
	}
	for language, vms := range p.idle {
		s.Idle[language] = len(vms)
	}
	for language, n := range p.active {
		s.Active[language] = n
	}
	return s
}
