package xspi

import "context"

// Bus is the hardware command/transfer/poll engine.
//
// Implementations are not required to be safe for concurrent use; the
// norflash package serializes every call.
type Bus interface {
	// Configure (re)initialises the controller for a device family.
	Configure(ctx context.Context, cfg Config) error

	// Deinit tears the controller down and leaves memory-mapped mode.
	Deinit(ctx context.Context) error

	// Command issues a command. Commands with a data phase stay pending
	// until Transmit, Receive or AutoPoll completes them.
	Command(ctx context.Context, cmd Command) error

	// Transmit sends the data phase of the pending command.
	Transmit(ctx context.Context, data []byte) error

	// Receive reads the data phase of the pending command into data.
	Receive(ctx context.Context, data []byte) error

	// AutoPoll repeats the pending status command until p matches.
	// It returns ErrTimeout when p.Timeout elapses first.
	AutoPoll(ctx context.Context, p Poll) error

	// MemoryMapped switches the controller to memory-mapped mode.
	MemoryMapped(ctx context.Context, cfg MemoryMappedConfig) error

	// State returns the current handle state.
	State() State

	// Window returns the memory-mapped address window. Loads are only
	// meaningful while State is StateBusyMemoryMapped.
	Window() Window
}

// Window is the memory-mapped view of flash, addressed by flash offset.
type Window interface {
	Load16(offset uint32) uint16
	Load8(offset uint32) byte
}
