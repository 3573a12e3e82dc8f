package bootloader

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/moffa90/go-norflash/norflash"
)

// VectorTable is the start of a Cortex-M vector table.
type VectorTable struct {
	// StackPointer is the initial main stack pointer
	StackPointer uint32

	// ResetHandler is the address of the reset handler, Thumb bit included
	ResetHandler uint32
}

// Entry returns the reset handler address without the Thumb bit.
func (v VectorTable) Entry() uint32 {
	return v.ResetHandler &^ 1
}

// Jumper transfers control to the application. Jump does not return on
// success.
type Jumper interface {
	Jump(ctx context.Context, vt VectorTable) error
}

// JumperFunc adapts a function to Jumper.
type JumperFunc func(ctx context.Context, vt VectorTable) error

// Jump calls f.
func (f JumperFunc) Jump(ctx context.Context, vt VectorTable) error {
	return f(ctx, vt)
}

// Loader boots an application from memory-mapped NOR flash.
type Loader struct {
	gate   *norflash.Gate
	jumper Jumper
	config Config
}

// New creates a Loader.
//
// New panics if gate or jumper is nil.
func New(gate *norflash.Gate, jumper Jumper, opts ...Option) *Loader {
	if gate == nil {
		panic("bootloader: gate cannot be nil")
	}
	if jumper == nil {
		panic("bootloader: jumper cannot be nil")
	}

	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	return &Loader{
		gate:   gate,
		jumper: jumper,
		config: config,
	}
}

// Boot probes the flash, maps it, validates the application vector table
// and jumps to it. It only returns on failure.
func (l *Loader) Boot(ctx context.Context) error {
	startTime := time.Now()
	flash := l.gate.Flash()

	l.reportProgress(PhaseProbing, 0, startTime)
	typ, err := flash.Probe(ctx)
	if err != nil {
		l.logError("Flash probe failed", "error", err)
		return fmt.Errorf("probe flash: %w", err)
	}
	l.logInfo("Flash found", "type", typ.String(), "size", flash.ChipSize())

	l.reportProgress(PhaseMapping, 25, startTime)
	if err := flash.MemoryMapped(ctx); err != nil {
		l.logError("Memory-mapped mode failed", "error", err)
		return fmt.Errorf("map flash: %w", err)
	}

	l.reportProgress(PhaseValidating, 50, startTime)
	vt, err := l.ReadVectorTable(ctx)
	if err != nil {
		return err
	}
	if err := l.validate(vt, flash.ChipSize()); err != nil {
		l.logError("Image rejected", "error", err)
		return err
	}

	l.reportProgress(PhaseJumping, 75, startTime)
	l.logInfo("Jumping to application",
		"sp", fmt.Sprintf("0x%08X", vt.StackPointer),
		"entry", fmt.Sprintf("0x%08X", vt.Entry()))
	if err := l.jumper.Jump(ctx, vt); err != nil {
		return fmt.Errorf("jump to 0x%08X: %w", vt.Entry(), err)
	}
	return ErrJumpReturned
}

// ReadVectorTable reads the first two words at the application offset.
func (l *Loader) ReadVectorTable(ctx context.Context) (VectorTable, error) {
	var buf [8]byte
	if err := l.gate.Read(ctx, l.config.AppOffset, buf[:]); err != nil {
		return VectorTable{}, fmt.Errorf("read vector table: %w", err)
	}
	return VectorTable{
		StackPointer: binary.LittleEndian.Uint32(buf[0:4]),
		ResetHandler: binary.LittleEndian.Uint32(buf[4:8]),
	}, nil
}

// validate checks vt against the RAM range and the mapped window of a
// chipSize byte device.
func (l *Loader) validate(vt VectorTable, chipSize uint32) error {
	invalid := func(reason string) error {
		return &InvalidImageError{Offset: l.config.AppOffset, Vector: vt, Reason: reason}
	}

	if vt.StackPointer == 0xFFFFFFFF && vt.ResetHandler == 0xFFFFFFFF {
		return invalid("flash is erased")
	}
	if vt.StackPointer < l.config.RAMStart || vt.StackPointer > l.config.RAMEnd {
		return invalid(fmt.Sprintf("stack pointer outside RAM 0x%08X-0x%08X", l.config.RAMStart, l.config.RAMEnd))
	}
	if vt.StackPointer%8 != 0 {
		return invalid("stack pointer not 8-byte aligned")
	}
	if vt.ResetHandler&1 == 0 {
		return invalid("reset handler is not a Thumb address")
	}

	lo := uint64(l.config.MappedBase) + uint64(l.config.AppOffset)
	hi := uint64(l.config.MappedBase) + uint64(chipSize)
	if entry := uint64(vt.Entry()); entry < lo || entry >= hi {
		return invalid(fmt.Sprintf("reset handler outside mapped window 0x%08X-0x%08X", lo, hi-1))
	}
	return nil
}

func (l *Loader) reportProgress(phase string, pct float64, startTime time.Time) {
	l.logDebug("Boot phase", "phase", phase)
	if l.config.ProgressCallback != nil {
		l.config.ProgressCallback(Progress{
			Phase:       phase,
			Percentage:  pct,
			ElapsedTime: time.Since(startTime),
		})
	}
}

func (l *Loader) logDebug(msg string, keysAndValues ...interface{}) {
	if l.config.Logger != nil {
		l.config.Logger.Debug(msg, keysAndValues...)
	}
}

func (l *Loader) logInfo(msg string, keysAndValues ...interface{}) {
	if l.config.Logger != nil {
		l.config.Logger.Info(msg, keysAndValues...)
	}
}

func (l *Loader) logError(msg string, keysAndValues ...interface{}) {
	if l.config.Logger != nil {
		l.config.Logger.Error(msg, keysAndValues...)
	}
}
