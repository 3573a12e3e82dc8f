package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/moffa90/go-norflash/flashsim"
	"github.com/moffa90/go-norflash/spidev"
	"github.com/moffa90/go-norflash/xspi"
)

// openBus opens the bus named by cfg.Bus. The returned close function
// saves simulator contents to cfg.Image.
func openBus(cfg Config) (xspi.Bus, func() error, error) {
	switch {
	case cfg.Bus == "sim" || cfg.Bus == "sim-dual":
		chips := 1
		if cfg.Bus == "sim-dual" {
			chips = 2
		}
		sim := flashsim.New(flashsim.WithChips(chips))
		if cfg.Image == "" {
			return sim, func() error { return nil }, nil
		}
		if err := loadSimImage(sim, cfg.Image); err != nil {
			return nil, nil, err
		}
		return sim, func() error { return saveSimImage(sim, cfg.Image) }, nil

	case strings.HasPrefix(cfg.Bus, "spidev:"):
		bus, err := spidev.Open(strings.TrimPrefix(cfg.Bus, "spidev:"), spidev.WithSpeed(cfg.SpeedHz))
		if err != nil {
			return nil, nil, err
		}
		return bus, bus.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown bus %q (want sim, sim-dual or spidev:PATH)", cfg.Bus)
}

func loadSimImage(sim *flashsim.Sim, path string) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return sim.LoadImage(f)
}

func saveSimImage(sim *flashsim.Sim, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := sim.SaveImage(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
