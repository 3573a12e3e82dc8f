package bootloader

import (
	"time"

	"github.com/moffa90/go-norflash/norflash"
)

// Boot phases.
const (
	PhaseProbing    = "probing"
	PhaseMapping    = "mapping"
	PhaseValidating = "validating"
	PhaseJumping    = "jumping"
)

// Progress contains information about the boot progress.
// Passed to ProgressCallback at the start of each phase.
type Progress struct {
	// Phase is one of PhaseProbing, PhaseMapping, PhaseValidating or
	// PhaseJumping
	Phase string

	// Percentage is the completion percentage (0.0 to 100.0)
	Percentage float64

	// ElapsedTime is the time elapsed since Boot was called
	ElapsedTime time.Duration
}

// ProgressCallback is called at each phase change.
// Implementations should return quickly.
//
// Example:
//
//	l := bootloader.New(gate, jumper,
//	    bootloader.WithProgressCallback(func(p bootloader.Progress) {
//	        fmt.Printf("[%s] %.0f%%\n", p.Phase, p.Percentage)
//	    }),
//	)
type ProgressCallback func(Progress)

// Logger is the same logging interface the norflash package uses, so one
// logger can be shared.
type Logger = norflash.Logger
