package xspi

import (
	"fmt"
	"time"
)

// Lines is the number of data lines a phase is transferred on.
type Lines uint8

// Phase widths.
const (
	LinesNone Lines = 0
	Lines1    Lines = 1
	Lines2    Lines = 2
	Lines4    Lines = 4
	Lines8    Lines = 8
)

func (l Lines) valid() bool {
	switch l {
	case LinesNone, Lines1, Lines2, Lines4, Lines8:
		return true
	}
	return false
}

// Command is one bus transaction.
type Command struct {
	// Instruction is the opcode sent in the instruction phase
	Instruction byte

	// InstructionLines is the instruction phase width (never LinesNone)
	InstructionLines Lines

	// Address is sent when AddressLines is not LinesNone
	Address uint32

	// AddressLines is the address phase width
	AddressLines Lines

	// AddressBits is the address width, 24 or 32. Zero means 24.
	AddressBits int

	// DataLines is the data phase width
	DataLines Lines

	// DataLength is the number of bytes in the data phase. Transmit and
	// Receive may override it with the length of their buffer.
	DataLength int

	// DummyCycles is the number of clock cycles between address and data
	DummyCycles int
}

// HasData reports whether the command has a data phase.
func (c Command) HasData() bool {
	return c.DataLines != LinesNone
}

// AddressBytes returns the number of bytes in the address phase.
func (c Command) AddressBytes() int {
	if c.AddressLines == LinesNone {
		return 0
	}
	if c.AddressBits == 32 {
		return 4
	}
	return 3
}

// Validate checks the phase layout of the command.
func (c Command) Validate() error {
	if c.InstructionLines == LinesNone || !c.InstructionLines.valid() {
		return &PhaseError{Phase: "instruction", Lines: c.InstructionLines}
	}
	if !c.AddressLines.valid() {
		return &PhaseError{Phase: "address", Lines: c.AddressLines}
	}
	if c.AddressBits != 0 && c.AddressBits != 24 && c.AddressBits != 32 {
		return fmt.Errorf("invalid address width: %d bits", c.AddressBits)
	}
	if !c.DataLines.valid() {
		return &PhaseError{Phase: "data", Lines: c.DataLines}
	}
	if c.DummyCycles < 0 || c.DummyCycles > 31 {
		return fmt.Errorf("invalid dummy cycles: %d", c.DummyCycles)
	}
	if c.DataLength < 0 {
		return fmt.Errorf("invalid data length: %d", c.DataLength)
	}
	return nil
}

// MatchMode selects how masked status bits are compared.
type MatchMode uint8

const (
	// MatchAnd requires every masked bit to equal Match
	MatchAnd MatchMode = iota

	// MatchOr requires any masked bit to equal Match
	MatchOr
)

// Poll repeatedly reads the status returned by the preceding Command until
// the masked bits match or Timeout elapses.
type Poll struct {
	Match    uint32
	Mask     uint32
	Mode     MatchMode
	Interval time.Duration
	Timeout  time.Duration
}

// Matches reports whether status satisfies the poll condition.
func (p Poll) Matches(status uint32) bool {
	if p.Mode == MatchOr {
		for bit := uint32(1); bit != 0; bit <<= 1 {
			if p.Mask&bit != 0 && status&bit == p.Match&bit {
				return true
			}
		}
		return p.Mask == 0
	}
	return status&p.Mask == p.Match&p.Mask
}

// Organization is how many physical chips sit behind the bus.
type Organization uint8

const (
	// SingleMemory drives one chip
	SingleMemory Organization = iota

	// DualMemory drives two chips in lockstep, one byte lane each
	DualMemory
)

func (o Organization) String() string {
	switch o {
	case SingleMemory:
		return "single"
	case DualMemory:
		return "dual"
	default:
		return fmt.Sprintf("Organization(%d)", o)
	}
}

// Lanes returns the number of chips addressed in lockstep.
func (o Organization) Lanes() int {
	if o == DualMemory {
		return 2
	}
	return 1
}

// MemoryType is the vendor protocol flavour the controller is configured for.
type MemoryType uint8

const (
	MemoryMicron MemoryType = iota
	MemoryMacronix
	MemoryAPMemory
)

// Config holds the electrical and protocol parameters a device family needs.
type Config struct {
	Organization Organization
	MemoryType   MemoryType

	// ClockPrescaler divides the kernel clock by ClockPrescaler+1
	ClockPrescaler uint8

	// ChipSelectHighCycles is the minimum chip-select deassertion time
	ChipSelectHighCycles uint8

	// SizeBits is log2 of the addressable memory size
	SizeBits uint8
}

// MemoryMappedConfig describes the commands the controller issues on its own
// while memory-mapped.
type MemoryMappedConfig struct {
	Read  Command
	Write Command

	// TimeoutCounter releases chip select after TimeoutPeriod idle cycles
	TimeoutCounter bool
	TimeoutPeriod  int
}

// State is the bus handle state.
type State uint8

const (
	StateReset State = iota
	StateReady
	StateBusyCommand
	StateBusyMemoryMapped
	StateFault
)

func (s State) String() string {
	switch s {
	case StateReset:
		return "reset"
	case StateReady:
		return "ready"
	case StateBusyCommand:
		return "busy-command"
	case StateBusyMemoryMapped:
		return "busy-memory-mapped"
	case StateFault:
		return "fault"
	default:
		return fmt.Sprintf("State(%d)", s)
	}
}
