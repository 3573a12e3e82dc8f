// Package flashsim simulates one or two W25Q128-class quad-SPI NOR chips
// behind an xspi.Bus.
//
// The simulator models what the norflash sequencers depend on: the status
// registers (BUSY, WEL, QE), NOR programming semantics (program only
// clears bits, erase sets them), page wrap-around, dual-memory byte
// interleaving and memory-mapped mode. Time is virtual: each AutoPoll
// iteration advances a clock by the poll interval, so operation latencies
// and timeouts behave realistically without sleeping.
//
//	sim := flashsim.New(flashsim.WithChips(2))
//	f := norflash.New(sim)
//	typ, err := f.Probe(ctx)
//
// Faults can be injected with WithStuckBusy, WithQuadEnableLocked,
// WithFailOpcode and WithConfigureError.
package flashsim
