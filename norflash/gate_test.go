package norflash

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/moffa90/go-norflash/flashsim"
	"github.com/moffa90/go-norflash/xspi"
)

// recorder implements CriticalSection and CacheMaintainer.
type recorder struct {
	events []string
}

func (r *recorder) Enter()                      { r.events = append(r.events, "mask") }
func (r *recorder) Exit()                       { r.events = append(r.events, "unmask") }
func (r *recorder) InvalidateInstructionCache() { r.events = append(r.events, "icache") }
func (r *recorder) InvalidateDataCache()        { r.events = append(r.events, "dcache") }

// remapBus fails MemoryMapped while fail is set.
type remapBus struct {
	*flashsim.Sim
	fail error
}

func (b *remapBus) MemoryMapped(ctx context.Context, cfg xspi.MemoryMappedConfig) error {
	if b.fail != nil {
		return b.fail
	}
	return b.Sim.MemoryMapped(ctx, cfg)
}

func newGate(t *testing.T) (*Gate, *remapBus, *recorder) {
	t.Helper()
	bus := &remapBus{Sim: flashsim.New()}
	rec := &recorder{}
	g := NewGate(New(bus, WithTimeouts(testTimeouts())),
		WithCriticalSection(rec),
		WithCacheMaintainer(rec),
	)
	if err := g.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if !g.Flash().Mapped() {
		t.Fatal("Mapped() = false after Init")
	}
	return g, bus, rec
}

func TestNewGatePanicsOnNilFlash(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewGate(nil) did not panic")
		}
	}()
	NewGate(nil)
}

func TestGateInitNoDevice(t *testing.T) {
	g := NewGate(New(flashsim.New(flashsim.WithID(0x00, 0x00)), WithTimeouts(testTimeouts())))
	if err := g.Init(context.Background()); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("Init() error = %v, want ErrUnknownDevice", err)
	}
}

func TestGateWrite(t *testing.T) {
	ctx := context.Background()
	g, _, rec := newGate(t)

	data := pattern(300)
	if err := g.Write(ctx, 0x5000, data); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !g.Flash().Mapped() {
		t.Error("Mapped() = false after Write")
	}
	if diff := cmp.Diff([]string{"mask", "icache", "dcache", "unmask"}, rec.events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}

	got := make([]byte, len(data))
	if err := g.Read(ctx, 0x5000, got); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if diff := cmp.Diff(data, got); diff != "" {
		t.Errorf("Read() mismatch (-want +got):\n%s", diff)
	}
}

func TestGateEraseSector(t *testing.T) {
	ctx := context.Background()
	g, _, _ := newGate(t)

	if err := g.Write(ctx, 0x6000, pattern(32)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := g.EraseSector(ctx, 0x6000); err != nil {
		t.Fatalf("EraseSector() error = %v", err)
	}
	if !g.Flash().Mapped() {
		t.Error("Mapped() = false after EraseSector")
	}
	got := make([]byte, 32)
	if err := g.Read(ctx, 0x6000, got); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if diff := cmp.Diff(fill(32, 0xFF), got); diff != "" {
		t.Errorf("sector not erased (-want +got):\n%s", diff)
	}
}

func TestGateReadInCriticalSection(t *testing.T) {
	g, _, rec := newGate(t)
	if err := g.Read(context.Background(), 0, make([]byte, 3)); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if diff := cmp.Diff([]string{"mask", "unmask"}, rec.events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if !g.Flash().Mapped() {
		t.Error("Read() changed mode")
	}
}

func TestGateOperationErrorKeepsMapping(t *testing.T) {
	g, _, _ := newGate(t)

	err := g.Write(context.Background(), g.Flash().ChipSize(), []byte{1})
	var rangeErr *RangeError
	if !errors.As(err, &rangeErr) {
		t.Fatalf("Write() error = %v, want *RangeError", err)
	}
	var remapErr *RemapError
	if errors.As(err, &remapErr) {
		t.Errorf("Write() error = %v, want no *RemapError", err)
	}
	if !g.Flash().Mapped() {
		t.Error("Mapped() = false after failed Write")
	}
}

func TestGateRemapFailure(t *testing.T) {
	remap := errors.New("controller refused")

	t.Run("operation succeeded", func(t *testing.T) {
		g, bus, _ := newGate(t)
		bus.fail = remap

		err := g.Write(context.Background(), 0, pattern(4))
		var remapErr *RemapError
		if !errors.As(err, &remapErr) {
			t.Fatalf("Write() error = %v, want *RemapError", err)
		}
		if remapErr.OpErr != nil {
			t.Errorf("OpErr = %v, want nil", remapErr.OpErr)
		}
		if !errors.Is(err, remap) {
			t.Errorf("errors.Is(err, remap) = false for %v", err)
		}

		bus.fail = nil
		got := make([]byte, 4)
		if err := g.Flash().Read(context.Background(), 0, got); err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if diff := cmp.Diff(pattern(4), got); diff != "" {
			t.Errorf("write lost (-want +got):\n%s", diff)
		}
	})

	t.Run("operation and remap failed", func(t *testing.T) {
		g, bus, _ := newGate(t)
		bus.fail = remap

		err := g.EraseSector(context.Background(), g.Flash().ChipSize())
		var rangeErr *RangeError
		if !errors.As(err, &rangeErr) || !errors.Is(err, remap) {
			t.Errorf("EraseSector() error = %v, want both *RangeError and remap failure", err)
		}
	})
}

func TestGateCancelledStillRemaps(t *testing.T) {
	g, _, _ := newGate(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := g.Write(ctx, 0, pattern(4)); !errors.Is(err, context.Canceled) {
		t.Errorf("Write() error = %v, want context.Canceled", err)
	}
	if !g.Flash().Mapped() {
		t.Error("Mapped() = false after cancelled Write")
	}
}

func TestGateExitAndEnter(t *testing.T) {
	ctx := context.Background()
	g, _, rec := newGate(t)

	if err := g.ExitMemoryMapped(ctx); err != nil {
		t.Fatalf("ExitMemoryMapped() error = %v", err)
	}
	if g.Flash().Mapped() {
		t.Error("Mapped() = true after ExitMemoryMapped")
	}
	if err := g.Flash().EraseSector(ctx, 0); err != nil {
		t.Errorf("EraseSector() after exit error = %v", err)
	}
	if err := g.EnterMemoryMapped(ctx); err != nil {
		t.Fatalf("EnterMemoryMapped() error = %v", err)
	}
	if !g.Flash().Mapped() {
		t.Error("Mapped() = false after EnterMemoryMapped")
	}
	if diff := cmp.Diff([]string{"mask", "icache", "dcache", "unmask"}, rec.events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}
