// Package spidev implements xspi.Bus on a Linux spidev device, for
// programming a W25Q128 wired to a host's SPI controller.
//
// Every command becomes one SPI_IOC_MESSAGE with a transfer per phase
// (instruction, address, dummy, data), each carrying its own bus width,
// so quad phases work on controllers whose driver accepts tx/rx nbits of 4.
// Status polling is done in software.
//
// Memory-mapped mode and dual-memory organisation need a dedicated
// controller and return xspi.ErrUnsupported.
//
//	bus, err := spidev.Open("/dev/spidev0.0", spidev.WithSpeed(10_000_000))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer bus.Close()
//
//	f := norflash.New(bus, norflash.WithDevices(norflash.NewW25Q128Single(norflash.DefaultTimeouts())))
package spidev
