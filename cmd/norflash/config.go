package main

import (
	"fmt"
	"os"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/moffa90/go-norflash/bootloader"
	"github.com/moffa90/go-norflash/norflash"
)

// Config is the YAML configuration file. Flags given on the command line
// override it.
type Config struct {
	// Bus is "sim", "sim-dual" or "spidev:/dev/spidevB.C"
	Bus string `json:"bus,omitempty"`

	// Image persists simulator contents between runs
	Image string `json:"image,omitempty"`

	SpeedHz     uint32 `json:"speedHz,omitempty"`
	ScratchSize int    `json:"scratchSize,omitempty"`
	AppOffset   uint32 `json:"appOffset,omitempty"`
	MappedBase  uint32 `json:"mappedBase,omitempty"`

	// RAMStart and RAMEnd bound the application's initial stack pointer
	RAMStart uint32 `json:"ramStart,omitempty"`
	RAMEnd   uint32 `json:"ramEnd,omitempty"`

	Timeouts TimeoutConfig `json:"timeouts,omitempty"`
}

// TimeoutConfig holds durations in time.ParseDuration syntax. Empty
// fields keep their defaults.
type TimeoutConfig struct {
	Command      string `json:"command,omitempty"`
	PageProgram  string `json:"pageProgram,omitempty"`
	SectorErase  string `json:"sectorErase,omitempty"`
	BlockErase   string `json:"blockErase,omitempty"`
	ChipErase    string `json:"chipErase,omitempty"`
	ResetSettle  string `json:"resetSettle,omitempty"`
	PollInterval string `json:"pollInterval,omitempty"`
}

func defaultCLIConfig() Config {
	return Config{
		Bus:         "sim-dual",
		SpeedHz:     10_000_000,
		ScratchSize: norflash.DefaultScratchSize,
		MappedBase:  bootloader.DefaultMappedBase,
		RAMStart:    bootloader.DefaultRAMStart,
		RAMEnd:      bootloader.DefaultRAMEnd,
	}
}

// loadConfig reads path over the defaults. Unknown keys are an error.
func loadConfig(path string) (Config, error) {
	cfg := defaultCLIConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Resolve applies the configured durations over base and validates the
// result.
func (t TimeoutConfig) Resolve(base norflash.Timeouts) (norflash.Timeouts, error) {
	fields := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"command", t.Command, &base.Command},
		{"pageProgram", t.PageProgram, &base.PageProgram},
		{"sectorErase", t.SectorErase, &base.SectorErase},
		{"blockErase", t.BlockErase, &base.BlockErase},
		{"chipErase", t.ChipErase, &base.ChipErase},
		{"resetSettle", t.ResetSettle, &base.ResetSettle},
		{"pollInterval", t.PollInterval, &base.PollInterval},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		d, err := time.ParseDuration(f.value)
		if err != nil {
			return base, fmt.Errorf("timeouts.%s: %w", f.name, err)
		}
		*f.dst = d
	}
	if err := base.Validate(); err != nil {
		return base, fmt.Errorf("timeouts: %w", err)
	}
	return base, nil
}
