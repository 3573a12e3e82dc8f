// Package xspi describes the bus transaction primitive that NOR flash command
// sequencers are written against.
//
// # Transaction Model
//
// A transaction is a single Command made of up to four phases, each with its
// own line width:
//
//	[INSTRUCTION][ADDRESS][DUMMY CYCLES][DATA...]
//
// A Command without a data phase executes immediately. A Command with a data
// phase is completed by exactly one of Transmit, Receive or AutoPoll:
//
//	bus.Command(ctx, xspi.Command{Instruction: 0x05, InstructionLines: xspi.Lines1,
//	    DataLines: xspi.Lines1, DataLength: 1})
//	bus.AutoPoll(ctx, xspi.Poll{Match: 0, Mask: 0x01, Timeout: 400 * time.Millisecond})
//
// # Memory-Mapped Mode
//
// MemoryMapped hands the bus over to the controller, which translates loads
// from a fixed address window into read commands. While mapped, every direct
// Command fails with ErrState and flash contents are read through Window.
//
// # Implementations
//
// This package does NOT implement a transport. See the flashsim package for an
// in-memory simulation and the spidev package for Linux spidev devices.
package xspi
