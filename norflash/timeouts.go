package norflash

import (
	"fmt"
	"time"
)

// Timeouts bounds every busy-wait the sequencers perform, by operation class.
type Timeouts struct {
	// Command bounds short status waits such as the write-enable latch
	Command time.Duration

	// PageProgram bounds the busy wait after a page program
	PageProgram time.Duration

	// SectorErase bounds the busy wait after a sector erase
	SectorErase time.Duration

	// BlockErase bounds the busy wait after a block erase
	BlockErase time.Duration

	// ChipErase bounds the busy wait after a chip erase
	ChipErase time.Duration

	// ResetSettle is slept after a software reset
	ResetSettle time.Duration

	// PollInterval is the spacing between status reads
	PollInterval time.Duration
}

// DefaultTimeouts returns the timeouts used with real W25Q128 parts.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Command:      5 * time.Second,
		PageProgram:  3 * time.Millisecond,
		SectorErase:  400 * time.Millisecond,
		BlockErase:   400 * time.Millisecond,
		ChipErase:    200 * time.Second,
		ResetSettle:  time.Millisecond,
		PollInterval: 10 * time.Microsecond,
	}
}

// Validate checks that the classes are ordered
// chip erase > block erase >= sector erase > page program > 0.
func (t Timeouts) Validate() error {
	if t.PageProgram <= 0 || t.Command <= 0 {
		return fmt.Errorf("timeouts must be positive: command=%s page_program=%s", t.Command, t.PageProgram)
	}
	if t.SectorErase <= t.PageProgram {
		return fmt.Errorf("sector erase timeout %s must exceed page program timeout %s", t.SectorErase, t.PageProgram)
	}
	if t.BlockErase < t.SectorErase {
		return fmt.Errorf("block erase timeout %s is shorter than sector erase timeout %s", t.BlockErase, t.SectorErase)
	}
	if t.ChipErase <= t.BlockErase {
		return fmt.Errorf("chip erase timeout %s must exceed block erase timeout %s", t.ChipErase, t.BlockErase)
	}
	if t.PollInterval < 0 || t.ResetSettle < 0 {
		return fmt.Errorf("poll interval and reset settle must not be negative")
	}
	return nil
}
