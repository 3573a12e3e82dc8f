package norflash

import "fmt"

// DefaultScratchSize is large enough for one sector of every shipped device.
const DefaultScratchSize = 0x2000

// Config holds the Flash configuration.
type Config struct {
	// Devices is the probe order. Nil means DefaultDevices(Timeouts).
	Devices []Device

	// Timeouts are handed to the default devices
	Timeouts Timeouts

	// ScratchSize is the capacity of the sector buffer used by Write
	ScratchSize int

	// ProgressCallback is called during Write (optional)
	ProgressCallback ProgressCallback

	// Logger is used for logging operations (optional)
	Logger Logger

	// Metrics counts operations (optional)
	Metrics *Metrics
}

func defaultConfig() Config {
	return Config{
		Timeouts:    DefaultTimeouts(),
		ScratchSize: DefaultScratchSize,
	}
}

// Option is a functional option for configuring a Flash.
type Option func(*Config)

// WithDevices replaces the probe list. Devices are tried in the order given.
//
// Example:
//
//	f := norflash.New(bus, norflash.WithDevices(norflash.NewW25Q128Single(norflash.DefaultTimeouts())))
func WithDevices(devices ...Device) Option {
	return func(c *Config) {
		c.Devices = devices
	}
}

// WithTimeouts sets the timeouts used by the default devices. It has no
// effect on devices passed with WithDevices.
func WithTimeouts(t Timeouts) Option {
	return func(c *Config) {
		c.Timeouts = t
	}
}

// WithScratchSize sets the sector buffer capacity. Non-positive sizes are ignored.
func WithScratchSize(size int) Option {
	return func(c *Config) {
		if size > 0 {
			c.ScratchSize = size
		}
	}
}

// WithProgressCallback sets a callback to track Write progress.
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for flash operations.
//
// Example:
//
//	f := norflash.New(bus, norflash.WithLogger(myLogger))
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithMetrics counts operations in m.
//
// Example:
//
//	m := norflash.NewMetrics(prometheus.DefaultRegisterer)
//	f := norflash.New(bus, norflash.WithMetrics(m))
func WithMetrics(m *Metrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

// validate rejects misordered timeouts and device lists with inconsistent
// geometry.
func (c Config) validate() error {
	if err := c.Timeouts.Validate(); err != nil {
		return err
	}
	for _, dev := range c.Devices {
		if dev == nil {
			return fmt.Errorf("nil device in probe list")
		}
		if err := dev.Parameters().Validate(); err != nil {
			return fmt.Errorf("%s: %w", dev.Name(), err)
		}
	}
	return nil
}
