package bootloader

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/moffa90/go-norflash/flashsim"
	"github.com/moffa90/go-norflash/norflash"
)

func testTimeouts() norflash.Timeouts {
	t := norflash.DefaultTimeouts()
	t.ResetSettle = 0
	return t
}

// newGate returns a gate on a simulated single chip holding image at
// offset.
func newGate(t *testing.T, offset uint32, image []byte, simOpts ...flashsim.Option) *norflash.Gate {
	t.Helper()
	sim := flashsim.New(simOpts...)
	if image != nil {
		buf := bytes.Repeat([]byte{0xFF}, int(offset))
		buf = append(buf, image...)
		if err := sim.LoadImage(bytes.NewReader(buf)); err != nil {
			t.Fatalf("LoadImage() error = %v", err)
		}
	}
	return norflash.NewGate(norflash.New(sim, norflash.WithTimeouts(testTimeouts())))
}

func vectors(sp, reset uint32) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b[0:], sp)
	binary.LittleEndian.PutUint32(b[4:], reset)
	return b
}

type recordingJumper struct {
	called bool
	vt     VectorTable
	err    error
}

func (j *recordingJumper) Jump(ctx context.Context, vt VectorTable) error {
	j.called = true
	j.vt = vt
	return j.err
}

func TestNewPanics(t *testing.T) {
	gate := newGate(t, 0, nil)
	tests := []struct {
		name   string
		gate   *norflash.Gate
		jumper Jumper
	}{
		{"nil gate", nil, &recordingJumper{}},
		{"nil jumper", gate, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("New() did not panic")
				}
			}()
			New(tt.gate, tt.jumper)
		})
	}
}

func TestBoot(t *testing.T) {
	const offset = 0x20000
	jumper := &recordingJumper{}
	var phases []string
	gate := newGate(t, offset, vectors(0x20020000, 0x90020401))

	l := New(gate, jumper,
		WithAppOffset(offset),
		WithProgressCallback(func(p Progress) { phases = append(phases, p.Phase) }),
	)

	err := l.Boot(context.Background())
	if !errors.Is(err, ErrJumpReturned) {
		t.Fatalf("Boot() error = %v, want ErrJumpReturned", err)
	}
	if !jumper.called {
		t.Fatal("jumper not called")
	}
	want := VectorTable{StackPointer: 0x20020000, ResetHandler: 0x90020401}
	if diff := cmp.Diff(want, jumper.vt); diff != "" {
		t.Errorf("vector table mismatch (-want +got):\n%s", diff)
	}
	if jumper.vt.Entry() != 0x90020400 {
		t.Errorf("Entry() = 0x%08X, want 0x90020400", jumper.vt.Entry())
	}
	if diff := cmp.Diff([]string{PhaseProbing, PhaseMapping, PhaseValidating, PhaseJumping}, phases); diff != "" {
		t.Errorf("phases mismatch (-want +got):\n%s", diff)
	}
	if !gate.Flash().Mapped() {
		t.Error("flash not left memory-mapped")
	}
}

func TestBootJumpError(t *testing.T) {
	failed := errors.New("peripheral reset failed")
	jumper := &recordingJumper{err: failed}
	l := New(newGate(t, 0, vectors(0x20001000, 0x90000101)), jumper)

	if err := l.Boot(context.Background()); !errors.Is(err, failed) {
		t.Errorf("Boot() error = %v, want %v", err, failed)
	}
}

func TestBootRejectsImage(t *testing.T) {
	tests := []struct {
		name   string
		image  []byte
		opts   []Option
		reason string
	}{
		{
			name:   "erased flash",
			reason: "flash is erased",
		},
		{
			name:   "stack pointer below RAM",
			image:  vectors(0x1000, 0x90000101),
			reason: "stack pointer outside RAM",
		},
		{
			name:   "stack pointer above RAM",
			image:  vectors(0x20080008, 0x90000101),
			reason: "stack pointer outside RAM",
		},
		{
			name:   "misaligned stack pointer",
			image:  vectors(0x20001004, 0x90000101),
			reason: "8-byte aligned",
		},
		{
			name:   "ARM mode reset handler",
			image:  vectors(0x20001000, 0x90000100),
			reason: "Thumb",
		},
		{
			name:   "reset handler outside window",
			image:  vectors(0x20001000, 0x08000101),
			reason: "outside mapped window",
		},
		{
			name:   "reset handler past chip end",
			image:  vectors(0x20001000, 0x91000001),
			reason: "outside mapped window",
		},
		{
			name:   "custom RAM range",
			image:  vectors(0x20001000, 0x90000101),
			opts:   []Option{WithRAMRange(0x24000000, 0x24080000)},
			reason: "stack pointer outside RAM",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jumper := &recordingJumper{}
			l := New(newGate(t, 0, tt.image), jumper, tt.opts...)

			err := l.Boot(context.Background())
			var imgErr *InvalidImageError
			if !errors.As(err, &imgErr) {
				t.Fatalf("Boot() error = %v, want *InvalidImageError", err)
			}
			if !bytes.Contains([]byte(imgErr.Reason), []byte(tt.reason)) {
				t.Errorf("Reason = %q, want it to mention %q", imgErr.Reason, tt.reason)
			}
			if jumper.called {
				t.Error("jumper called for an invalid image")
			}
		})
	}
}

func TestBootNoFlash(t *testing.T) {
	jumper := &recordingJumper{}
	l := New(newGate(t, 0, nil, flashsim.WithID(0x00, 0x00)), jumper)

	err := l.Boot(context.Background())
	if !errors.Is(err, norflash.ErrUnknownDevice) {
		t.Errorf("Boot() error = %v, want ErrUnknownDevice", err)
	}
	if jumper.called {
		t.Error("jumper called without flash")
	}
}

func TestBootWithMappedBase(t *testing.T) {
	jumper := &recordingJumper{}
	l := New(newGate(t, 0, vectors(0x20001000, 0x70000201)), jumper, WithMappedBase(0x70000000))

	if err := l.Boot(context.Background()); !errors.Is(err, ErrJumpReturned) {
		t.Errorf("Boot() error = %v, want ErrJumpReturned", err)
	}
}
