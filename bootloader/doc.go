// Package bootloader hands control from a small boot image to an
// application stored in external NOR flash and executed in place.
//
// # Overview
//
// Boot runs four phases:
//   - probing: bind the flash device behind the quad-SPI bus
//   - mapping: switch the bus to memory-mapped mode
//   - validating: read and check the application's vector table
//   - jumping: hand the vector table to a Jumper
//
// The Jumper is the part that cannot be written in portable Go: it masks
// interrupts, resets peripherals, loads the main stack pointer and branches
// to the reset handler. On hosts and in tests any function will do.
//
// # Basic Usage
//
//	f := norflash.New(bus)
//	gate := norflash.NewGate(f, norflash.WithCriticalSection(irq))
//
//	l := bootloader.New(gate, bootloader.JumperFunc(jumpToApp),
//	    bootloader.WithAppOffset(0x0),
//	    bootloader.WithLogger(logger),
//	)
//	if err := l.Boot(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Vector Table Checks
//
// The first two words at the application offset must be a plausible
// Cortex-M vector table:
//   - the initial stack pointer lies inside the configured RAM range and
//     is 8-byte aligned
//   - the reset handler lies inside the memory-mapped window and has the
//     Thumb bit set
//
// A failed check returns *InvalidImageError and the jumper is not called.
//
// # Error Handling
//
//	err := l.Boot(ctx)
//	var imgErr *bootloader.InvalidImageError
//	switch {
//	case errors.As(err, &imgErr):
//	    fmt.Println("no bootable image:", imgErr.Reason)
//	case errors.Is(err, norflash.ErrUnknownDevice):
//	    fmt.Println("no flash found")
//	}
package bootloader
