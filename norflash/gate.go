package norflash

import (
	"context"
	"fmt"
	"sync"
)

// CriticalSection masks and unmasks whatever could touch the memory-mapped
// window concurrently, typically interrupts. Enter masks and Exit unmasks;
// neither nests.
type CriticalSection interface {
	Enter()
	Exit()
}

// CacheMaintainer discards cached copies of flash contents.
type CacheMaintainer interface {
	InvalidateInstructionCache()
	InvalidateDataCache()
}

type nopCriticalSection struct{}

func (nopCriticalSection) Enter() {}
func (nopCriticalSection) Exit()  {}

type nopCache struct{}

func (nopCache) InvalidateInstructionCache() {}
func (nopCache) InvalidateDataCache()        {}

// Gate keeps a Flash in memory-mapped mode and leaves it only for the
// duration of writes and erases.
type Gate struct {
	mu    sync.Mutex
	flash *Flash
	cs    CriticalSection
	cache CacheMaintainer
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithCriticalSection sets the critical section used around mode switches
// and mapped reads.
func WithCriticalSection(cs CriticalSection) GateOption {
	return func(g *Gate) {
		if cs != nil {
			g.cs = cs
		}
	}
}

// WithCacheMaintainer sets the caches invalidated when leaving
// memory-mapped mode.
func WithCacheMaintainer(c CacheMaintainer) GateOption {
	return func(g *Gate) {
		if c != nil {
			g.cache = c
		}
	}
}

// NewGate returns a Gate for f. NewGate panics if f is nil.
func NewGate(f *Flash, opts ...GateOption) *Gate {
	if f == nil {
		panic("norflash: flash cannot be nil")
	}
	g := &Gate{
		flash: f,
		cs:    nopCriticalSection{},
		cache: nopCache{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Flash returns the underlying Flash.
func (g *Gate) Flash() *Flash {
	return g.flash
}

// Init probes for a device and enters memory-mapped mode.
func (g *Gate) Init(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, err := g.flash.Probe(ctx); err != nil {
		return err
	}
	return g.flash.MemoryMapped(ctx)
}

// EnterMemoryMapped re-probes and switches to memory-mapped mode, then
// leaves the critical section. On failure the critical section is left
// entered.
func (g *Gate) EnterMemoryMapped(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enter(ctx)
}

// ExitMemoryMapped enters the critical section, invalidates caches and
// re-probes, which returns the bus to command mode.
func (g *Gate) ExitMemoryMapped(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.exit(ctx)
}

func (g *Gate) enter(ctx context.Context) error {
	// A failed probe is reported by MemoryMapped as ErrNotBound.
	_, _ = g.flash.Probe(ctx)
	if err := g.flash.MemoryMapped(ctx); err != nil {
		return fmt.Errorf("enter memory-mapped mode: %w", err)
	}
	g.cs.Exit()
	return nil
}

func (g *Gate) exit(ctx context.Context) error {
	g.cs.Enter()
	g.cache.InvalidateInstructionCache()
	g.cache.InvalidateDataCache()
	if _, err := g.flash.Probe(ctx); err != nil {
		return fmt.Errorf("exit memory-mapped mode: %w", err)
	}
	return nil
}

// Write leaves memory-mapped mode, writes and re-enters memory-mapped
// mode. Re-entry is attempted even if ctx is cancelled or the write fails.
func (g *Gate) Write(ctx context.Context, address uint32, data []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.unmapped(ctx, "write", func(ctx context.Context) error {
		return g.flash.Write(ctx, address, data)
	})
}

// EraseSector leaves memory-mapped mode, erases the sector containing
// address and re-enters memory-mapped mode.
func (g *Gate) EraseSector(ctx context.Context, address uint32) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.unmapped(ctx, "erase sector", func(ctx context.Context) error {
		return g.flash.EraseSector(ctx, address)
	})
}

// Read reads inside the critical section without changing mode.
func (g *Gate) Read(ctx context.Context, address uint32, data []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.cs.Enter()
	defer g.cs.Exit()
	return g.flash.Read(ctx, address, data)
}

func (g *Gate) unmapped(ctx context.Context, op string, fn func(context.Context) error) error {
	err := g.exit(ctx)
	if err == nil {
		err = fn(ctx)
	}
	if remapErr := g.enter(context.WithoutCancel(ctx)); remapErr != nil {
		return &RemapError{Op: op, OpErr: err, RemapErr: remapErr}
	}
	return err
}
