package norflash

import (
	"context"
	"fmt"

	"github.com/moffa90/go-norflash/xspi"
)

// Type identifies a supported flash part.
type Type uint8

const (
	// TypeUnknown is reported when no device could be bound
	TypeUnknown Type = iota

	// TypeW25Q128Dual is two W25Q128 (or BY25FQ128) chips in dual organisation
	TypeW25Q128Dual

	// TypeW25Q128Single is a single W25Q128 (or BY25FQ128) chip
	TypeW25Q128Single
)

func (t Type) String() string {
	switch t {
	case TypeUnknown:
		return "unknown"
	case TypeW25Q128Dual:
		return "w25q128-dual"
	case TypeW25Q128Single:
		return "w25q128"
	default:
		return fmt.Sprintf("Type(%d)", t)
	}
}

// Parameters is the fixed geometry of a device.
type Parameters struct {
	// EmptyValue is what erased cells read back as
	EmptyValue byte

	ChipSize   uint32
	BlockSize  uint32
	SectorSize uint32
	PageSize   uint32
}

// PagesPerSector returns SectorSize / PageSize.
func (p Parameters) PagesPerSector() uint32 {
	if p.PageSize == 0 {
		return 0
	}
	return p.SectorSize / p.PageSize
}

// Validate checks that pages tile sectors, sectors tile blocks and blocks
// tile the chip.
func (p Parameters) Validate() error {
	if p.PageSize == 0 || p.SectorSize == 0 || p.BlockSize == 0 || p.ChipSize == 0 {
		return fmt.Errorf("geometry has a zero size: %+v", p)
	}
	if p.PageSize*p.PagesPerSector() != p.SectorSize {
		return fmt.Errorf("page size 0x%X does not divide sector size 0x%X", p.PageSize, p.SectorSize)
	}
	if p.BlockSize%p.SectorSize != 0 {
		return fmt.Errorf("sector size 0x%X does not divide block size 0x%X", p.SectorSize, p.BlockSize)
	}
	if p.ChipSize%p.BlockSize != 0 {
		return fmt.Errorf("block size 0x%X does not divide chip size 0x%X", p.BlockSize, p.ChipSize)
	}
	return nil
}

// Device sequences the bus transactions of one flash family.
//
// Operations a device does not support return ErrUnsupported. Embed
// Unimplemented to get that behaviour for every operation not overridden.
type Device interface {
	Type() Type
	Name() string
	Parameters() Parameters

	// BusConfig is applied to the bus before Init is attempted.
	BusConfig() xspi.Config

	Init(ctx context.Context, bus xspi.Bus) error
	Deinit(ctx context.Context, bus xspi.Bus) error
	EraseChip(ctx context.Context, bus xspi.Bus) error
	EraseBlock(ctx context.Context, bus xspi.Bus, address uint32) error
	EraseSector(ctx context.Context, bus xspi.Bus, address uint32) error
	ProgramPage(ctx context.Context, bus xspi.Bus, address uint32, data []byte) error
	Read(ctx context.Context, bus xspi.Bus, address uint32, data []byte) error
	MemoryMapped(ctx context.Context, bus xspi.Bus) error
}

// Unimplemented returns ErrUnsupported from every optional operation.
type Unimplemented struct{}

// Init, Deinit and the operations below all return ErrUnsupported.
func (Unimplemented) Init(context.Context, xspi.Bus) error   { return ErrUnsupported }
func (Unimplemented) Deinit(context.Context, xspi.Bus) error { return ErrUnsupported }
func (Unimplemented) EraseChip(context.Context, xspi.Bus) error {
	return ErrUnsupported
}
func (Unimplemented) EraseBlock(context.Context, xspi.Bus, uint32) error {
	return ErrUnsupported
}
func (Unimplemented) EraseSector(context.Context, xspi.Bus, uint32) error {
	return ErrUnsupported
}
func (Unimplemented) ProgramPage(context.Context, xspi.Bus, uint32, []byte) error {
	return ErrUnsupported
}
func (Unimplemented) Read(context.Context, xspi.Bus, uint32, []byte) error {
	return ErrUnsupported
}
func (Unimplemented) MemoryMapped(context.Context, xspi.Bus) error {
	return ErrUnsupported
}

// DefaultDevices returns the supported devices in probe priority order.
func DefaultDevices(t Timeouts) []Device {
	return []Device{
		NewW25Q128Dual(t),
		NewW25Q128Single(t),
	}
}
