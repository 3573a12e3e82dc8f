package norflash

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/moffa90/go-norflash/xspi"
)

// Flash binds one device from a probe list to a bus and dispatches
// operations to it. All methods are safe for concurrent use; calls are
// serialized.
type Flash struct {
	mu      sync.Mutex
	bus     xspi.Bus
	config  Config
	devices []Device
	bound   Device
	scratch []byte
}

// New creates a Flash on bus. Nothing is bound until Probe succeeds.
//
// New panics if bus is nil or if a device in the probe list has
// inconsistent geometry.
func New(bus xspi.Bus, opts ...Option) *Flash {
	if bus == nil {
		panic("norflash: bus cannot be nil")
	}

	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.Devices == nil {
		config.Devices = DefaultDevices(config.Timeouts)
	}
	if err := config.validate(); err != nil {
		panic("norflash: " + err.Error())
	}

	return &Flash{
		bus:     bus,
		config:  config,
		devices: config.Devices,
		scratch: make([]byte, config.ScratchSize),
	}
}

// Probe unbinds any bound device, then tries each device in order and
// binds the first whose Init succeeds.
//
// A bus configuration failure stops probing. Devices whose Init is
// unsupported are skipped. When nothing binds, Probe returns TypeUnknown
// and an *UnknownDeviceError.
func (f *Flash) Probe(ctx context.Context) (Type, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probe(ctx)
}

func (f *Flash) probe(ctx context.Context) (Type, error) {
	if err := ctx.Err(); err != nil {
		return TypeUnknown, err
	}
	if f.bound != nil {
		if err := f.unbind(ctx); err != nil {
			f.observe("probe", err)
			return TypeUnknown, fmt.Errorf("unbind %s: %w", f.bound.Name(), err)
		}
	}

	var errs error
	for _, dev := range f.devices {
		f.logDebug("Trying device", "device", dev.Name())

		if err := f.bus.Configure(ctx, dev.BusConfig()); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: configure bus: %w", dev.Name(), err))
			break
		}

		err := dev.Init(ctx, f.bus)
		if errors.Is(err, ErrUnsupported) {
			f.logDebug("Device has no init sequence, skipping", "device", dev.Name())
			continue
		}
		if err != nil {
			f.logDebug("Device init failed", "device", dev.Name(), "error", err)
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", dev.Name(), err))
			continue
		}

		f.bound = dev
		p := dev.Parameters()
		f.logInfo("Device bound",
			"device", dev.Name(),
			"chip_size", p.ChipSize,
			"sector_size", p.SectorSize,
			"page_size", p.PageSize)
		f.observe("probe", nil)
		return dev.Type(), nil
	}

	err := &UnknownDeviceError{Err: errs}
	f.logError("No device bound", "error", err)
	f.observe("probe", err)
	return TypeUnknown, err
}

// Unbind deinitialises the bound device and the bus. The binding is kept
// if either step fails.
func (f *Flash) Unbind(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unbind(ctx)
}

func (f *Flash) unbind(ctx context.Context) error {
	if f.bound == nil {
		return ErrNotBound
	}
	if err := f.bound.Deinit(ctx, f.bus); err != nil && !errors.Is(err, ErrUnsupported) {
		return f.opError("deinit", 0, err)
	}
	if err := f.bus.Deinit(ctx); err != nil {
		return fmt.Errorf("deinit bus: %w", err)
	}
	f.logDebug("Device unbound", "device", f.bound.Name())
	f.bound = nil
	return nil
}

// Bound returns the bound device.
func (f *Flash) Bound() (Device, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bound, f.bound != nil
}

// Type returns the bound device type, or TypeUnknown.
func (f *Flash) Type() Type {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bound == nil {
		return TypeUnknown
	}
	return f.bound.Type()
}

// Parameters returns the geometry of the bound device. All fields are zero
// when nothing is bound.
func (f *Flash) Parameters() Parameters {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bound == nil {
		return Parameters{}
	}
	return f.bound.Parameters()
}

// ChipSize returns the bound device's size in bytes, or 0.
func (f *Flash) ChipSize() uint32 { return f.Parameters().ChipSize }

// BlockSize returns the bound device's erase block size, or 0.
func (f *Flash) BlockSize() uint32 { return f.Parameters().BlockSize }

// SectorSize returns the bound device's erase sector size, or 0.
func (f *Flash) SectorSize() uint32 { return f.Parameters().SectorSize }

// PageSize returns the bound device's program page size, or 0.
func (f *Flash) PageSize() uint32 { return f.Parameters().PageSize }

// EmptyValue returns the value erased cells read back as, or 0.
func (f *Flash) EmptyValue() byte { return f.Parameters().EmptyValue }

// Mapped reports whether the bus is in memory-mapped mode.
func (f *Flash) Mapped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bus.State() == xspi.StateBusyMemoryMapped
}

// EraseChip erases the whole device.
func (f *Flash) EraseChip(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkDirect(ctx); err != nil {
		return err
	}
	f.logInfo("Erasing chip", "device", f.bound.Name())
	err := f.bound.EraseChip(ctx, f.bus)
	f.observe("erase_chip", err)
	if err != nil {
		return f.opError("erase chip", 0, err)
	}
	return nil
}

// EraseBlock erases the block containing address.
func (f *Flash) EraseBlock(ctx context.Context, address uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkDirect(ctx); err != nil {
		return err
	}
	if err := f.checkRange(address, 1); err != nil {
		return err
	}
	err := f.bound.EraseBlock(ctx, f.bus, address)
	f.observe("erase_block", err)
	if err != nil {
		return f.opError("erase block", address, err)
	}
	return nil
}

// EraseSector erases the sector containing address.
func (f *Flash) EraseSector(ctx context.Context, address uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.eraseSector(ctx, address)
}

func (f *Flash) eraseSector(ctx context.Context, address uint32) error {
	if err := f.checkDirect(ctx); err != nil {
		return err
	}
	if err := f.checkRange(address, 1); err != nil {
		return err
	}
	err := f.bound.EraseSector(ctx, f.bus, address)
	f.observe("erase_sector", err)
	if err != nil {
		return f.opError("erase sector", address, err)
	}
	f.config.Metrics.addSectorErase()
	return nil
}

// ProgramPage programs data, at most one page, at address. Only 1 bits
// are cleared; the target must already be erased for the data to read
// back unchanged.
func (f *Flash) ProgramPage(ctx context.Context, address uint32, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.programPage(ctx, address, data)
}

func (f *Flash) programPage(ctx context.Context, address uint32, data []byte) error {
	if err := f.checkDirect(ctx); err != nil {
		return err
	}
	if pageSize := int(f.bound.Parameters().PageSize); len(data) > pageSize {
		return &LengthError{Op: "program page", Length: len(data), Max: pageSize}
	}
	if err := f.checkRange(address, len(data)); err != nil {
		return err
	}
	err := f.bound.ProgramPage(ctx, f.bus, address, data)
	f.observe("program_page", err)
	if err != nil {
		return f.opError("program page", address, err)
	}
	f.config.Metrics.addProgrammed(len(data))
	return nil
}

// Read fills data from address. While memory-mapped the bytes are loaded
// from the bus window instead of issuing commands.
func (f *Flash) Read(ctx context.Context, address uint32, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read(ctx, address, data)
}

func (f *Flash) read(ctx context.Context, address uint32, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.bound == nil {
		return ErrNotBound
	}
	if err := f.checkRange(address, len(data)); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	if f.bus.State() == xspi.StateBusyMemoryMapped {
		w := f.bus.Window()
		if w == nil {
			return f.opError("read", address, xspi.ErrUnsupported)
		}
		readWindow(w, address, data)
		f.observe("read_mapped", nil)
		f.config.Metrics.addRead(len(data))
		return nil
	}

	err := f.bound.Read(ctx, f.bus, address, data)
	f.observe("read", err)
	if err != nil {
		return f.opError("read", address, err)
	}
	f.config.Metrics.addRead(len(data))
	return nil
}

// readWindow copies with 16-bit loads and one trailing byte load for odd
// lengths.
func readWindow(w xspi.Window, address uint32, data []byte) {
	n := len(data) &^ 1
	for i := 0; i < n; i += 2 {
		binary.LittleEndian.PutUint16(data[i:], w.Load16(address+uint32(i)))
	}
	if n < len(data) {
		data[n] = w.Load8(address + uint32(n))
	}
}

// MemoryMapped switches the bus to memory-mapped mode. It is a no-op when
// the bus is already mapped.
func (f *Flash) MemoryMapped(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if f.bound == nil {
		return ErrNotBound
	}
	if f.bus.State() == xspi.StateBusyMemoryMapped {
		return nil
	}
	err := f.bound.MemoryMapped(ctx, f.bus)
	f.observe("memory_mapped", err)
	if err != nil {
		return f.opError("memory-mapped", 0, err)
	}
	f.logDebug("Memory-mapped mode enabled", "device", f.bound.Name())
	return nil
}

func (f *Flash) checkDirect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.bound == nil {
		return ErrNotBound
	}
	if f.bus.State() == xspi.StateBusyMemoryMapped {
		return ErrMemoryMapped
	}
	return nil
}

func (f *Flash) checkRange(address uint32, length int) error {
	chip := f.bound.Parameters().ChipSize
	if uint64(address)+uint64(length) > uint64(chip) || (length == 0 && address > chip) {
		return &RangeError{Address: address, Length: length, ChipSize: chip}
	}
	return nil
}

func (f *Flash) opError(op string, address uint32, err error) error {
	return &OpError{Op: op, Device: f.bound.Type(), Address: address, Err: err}
}

func (f *Flash) observe(op string, err error) {
	f.config.Metrics.observe(op, err)
}

func (f *Flash) logDebug(msg string, keysAndValues ...interface{}) {
	if f.config.Logger != nil {
		f.config.Logger.Debug(msg, keysAndValues...)
	}
}

func (f *Flash) logInfo(msg string, keysAndValues ...interface{}) {
	if f.config.Logger != nil {
		f.config.Logger.Info(msg, keysAndValues...)
	}
}

func (f *Flash) logError(msg string, keysAndValues ...interface{}) {
	if f.config.Logger != nil {
		f.config.Logger.Error(msg, keysAndValues...)
	}
}
