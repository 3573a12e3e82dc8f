// Package norflash drives quad-SPI NOR flash through an xspi.Bus.
//
// # Overview
//
// The package is split into four parts:
//   - Device sequencers, which turn erase/program/read requests into bus
//     transactions for one flash family (W25Q128 single and dual)
//   - Flash, which probes a list of devices, binds the first that answers
//     and dispatches operations to it
//   - Flash.Write, which writes arbitrary ranges, erasing a sector only
//     when the existing bytes cannot be programmed over
//   - Gate, which keeps the bus memory-mapped and leaves that mode only
//     for the duration of writes and erases
//
// # Basic Usage
//
//	bus := flashsim.New(flashsim.WithChips(2))
//	f := norflash.New(bus)
//
//	typ, err := f.Probe(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("found", typ)
//
//	if err := f.Write(ctx, 0x1000, payload); err != nil {
//	    log.Fatal(err)
//	}
//
// # Memory-Mapped Mode
//
// While the bus is memory-mapped the controller issues reads on its own and
// direct commands are refused with ErrMemoryMapped. Read still works: it
// loads from the bus window. Use a Gate to write without giving up the
// mapping for longer than necessary:
//
//	g := norflash.NewGate(f,
//	    norflash.WithCriticalSection(irq),
//	    norflash.WithCacheMaintainer(scb),
//	)
//	if err := g.Init(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	err := g.Write(ctx, 0x2000, payload)
//
// If the write succeeds but the mapping cannot be restored, Gate returns a
// *RemapError; errors.Is sees through it to both causes.
//
// # Error Handling
//
// Precondition failures are sentinels (ErrNotBound, ErrMemoryMapped) or
// typed errors returned before any bus traffic (*LengthError, *RangeError,
// *BufferTooSmallError). Device failures are wrapped in *OpError:
//
//	var opErr *norflash.OpError
//	if errors.As(err, &opErr) {
//	    fmt.Printf("%s failed at 0x%08X\n", opErr.Op, opErr.Address)
//	}
//	if errors.Is(err, xspi.ErrTimeout) {
//	    // the chip stayed busy
//	}
//
// # Concurrency
//
// Flash and Gate serialize their methods with a mutex. A bus must not be
// shared between two Flash values.
package norflash
