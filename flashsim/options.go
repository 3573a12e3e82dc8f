package flashsim

import "time"

// Config holds the simulator configuration.
type Config struct {
	// Chips is the number of chips present, 1 or 2
	Chips int

	// ChipSize is the size of each chip in bytes, a multiple of 64 KiB
	ChipSize uint32

	// Manufacturer and Device are returned by the 0x90 ID command
	Manufacturer byte
	Device       byte

	PageLatency   time.Duration
	SectorLatency time.Duration
	BlockLatency  time.Duration
	ChipLatency   time.Duration

	// StuckBusy keeps BUSY set forever
	StuckBusy bool

	// QuadEnableLocked makes writes to QE ignored
	QuadEnableLocked bool

	// FailOpcodes makes Command fail for the given instructions
	FailOpcodes map[byte]error

	// ConfigureError is returned by Configure when not nil
	ConfigureError error
}

func defaultConfig() Config {
	return Config{
		Chips:         1,
		ChipSize:      16 << 20,
		Manufacturer:  0xEF,
		Device:        0x17,
		PageLatency:   400 * time.Microsecond,
		SectorLatency: 30 * time.Millisecond,
		BlockLatency:  150 * time.Millisecond,
		ChipLatency:   20 * time.Second,
	}
}

// Option is a functional option for configuring a Sim.
type Option func(*Config)

// WithChips sets the number of chips present. Values other than 1 and 2
// are ignored.
func WithChips(n int) Option {
	return func(c *Config) {
		if n == 1 || n == 2 {
			c.Chips = n
		}
	}
}

// WithChipSize sets the size of each chip. Sizes that are not a positive
// multiple of 64 KiB are ignored.
func WithChipSize(size uint32) Option {
	return func(c *Config) {
		if size > 0 && size%blockSize == 0 {
			c.ChipSize = size
		}
	}
}

// WithID sets the manufacturer and device ID bytes.
//
// Example, a BoyaMicro BY25FQ128:
//
//	sim := flashsim.New(flashsim.WithID(0x68, 0x17))
func WithID(manufacturer, device byte) Option {
	return func(c *Config) {
		c.Manufacturer = manufacturer
		c.Device = device
	}
}

// WithLatencies sets how long BUSY stays set after each operation class.
func WithLatencies(page, sector, block, chip time.Duration) Option {
	return func(c *Config) {
		c.PageLatency = page
		c.SectorLatency = sector
		c.BlockLatency = block
		c.ChipLatency = chip
	}
}

// WithStuckBusy keeps BUSY set so every ready wait times out.
func WithStuckBusy() Option {
	return func(c *Config) {
		c.StuckBusy = true
	}
}

// WithQuadEnableLocked ignores writes to the QE bit.
func WithQuadEnableLocked() Option {
	return func(c *Config) {
		c.QuadEnableLocked = true
	}
}

// WithFailOpcode makes every Command with instruction op return err.
func WithFailOpcode(op byte, err error) Option {
	return func(c *Config) {
		if c.FailOpcodes == nil {
			c.FailOpcodes = make(map[byte]error)
		}
		c.FailOpcodes[op] = err
	}
}

// WithConfigureError makes Configure fail with err.
func WithConfigureError(err error) Option {
	return func(c *Config) {
		c.ConfigureError = err
	}
}
