package norflash

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

var (
	// ErrNotBound is returned by operations that need a bound device.
	ErrNotBound = errors.New("norflash: no device bound")

	// ErrMemoryMapped is returned by direct operations while the bus is
	// in memory-mapped mode.
	ErrMemoryMapped = errors.New("norflash: bus is memory-mapped")

	// ErrUnsupported is returned by a device for an operation it does not
	// implement.
	ErrUnsupported = errors.New("norflash: operation not supported by device")

	// ErrUnknownDevice is matched by *UnknownDeviceError.
	ErrUnknownDevice = errors.New("norflash: unknown device")
)

// LengthError is returned when a buffer is longer than an operation allows.
type LengthError struct {
	Op     string
	Length int
	Max    int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("%s: length %d exceeds maximum %d", e.Op, e.Length, e.Max)
}

// RangeError is returned when [Address, Address+Length) does not fit in the chip.
type RangeError struct {
	Address  uint32
	Length   int
	ChipSize uint32
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("address range 0x%08X+%d exceeds chip size 0x%X", e.Address, e.Length, e.ChipSize)
}

// BufferTooSmallError is returned by Write when the scratch buffer cannot
// hold one sector of the bound device.
type BufferTooSmallError struct {
	SectorSize uint32
	Capacity   int
}

func (e *BufferTooSmallError) Error() string {
	return fmt.Sprintf("scratch buffer of %d bytes cannot hold a 0x%X byte sector", e.Capacity, e.SectorSize)
}

// IdentificationError reports the IDs read when none was accepted.
// IDs holds one entry per lane.
type IdentificationError struct {
	IDs []uint16
}

func (e *IdentificationError) Error() string {
	return fmt.Sprintf("unrecognised device ID %04X", e.IDs)
}

// VerificationError is returned when a register read back does not hold
// the bits just written.
type VerificationError struct {
	Register string
	Want     uint32
	Got      uint32
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%s: want bits 0x%X set, got 0x%X", e.Register, e.Want, e.Got)
}

// OpError wraps a device failure with the operation and address.
type OpError struct {
	Op      string
	Device  Type
	Address uint32
	Err     error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s %s at 0x%08X: %v", e.Device, e.Op, e.Address, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// UnknownDeviceError is returned by Probe when no device could be bound.
// Err combines the failure of every candidate tried.
type UnknownDeviceError struct {
	Err error
}

func (e *UnknownDeviceError) Error() string {
	if e.Err == nil {
		return ErrUnknownDevice.Error()
	}
	return fmt.Sprintf("%v: %v", ErrUnknownDevice, e.Err)
}

func (e *UnknownDeviceError) Is(target error) bool {
	return target == ErrUnknownDevice
}

func (e *UnknownDeviceError) Unwrap() []error {
	return multierr.Errors(e.Err)
}

// RemapError is returned by Gate operations when memory-mapped mode could
// not be restored afterwards. OpErr is nil if the operation itself succeeded.
type RemapError struct {
	Op       string
	OpErr    error
	RemapErr error
}

func (e *RemapError) Error() string {
	if e.OpErr == nil {
		return fmt.Sprintf("%s: restore memory-mapped mode: %v", e.Op, e.RemapErr)
	}
	return fmt.Sprintf("%s: %v; restore memory-mapped mode: %v", e.Op, e.OpErr, e.RemapErr)
}

func (e *RemapError) Unwrap() []error {
	return multierr.Errors(multierr.Combine(e.OpErr, e.RemapErr))
}
