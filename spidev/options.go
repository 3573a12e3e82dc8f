package spidev

// Mode is the spidev SPI_IOC_WR_MODE32 bit set.
type Mode uint32

// Mode bits from include/uapi/linux/spi/spi.h.
const (
	CPHA Mode = 1 << iota
	CPOL
	CSHigh
	LSBFirst
	ThreeWire
	Loop
	NoCS
	Ready
	TxDual
	TxQuad
	RxDual
	RxQuad
)

// Config holds the spidev configuration.
type Config struct {
	// SpeedHz is the clock rate of every transfer
	SpeedHz uint32

	// Mode is written to the device on Open
	Mode Mode
}

func defaultConfig() Config {
	return Config{
		SpeedHz: 10_000_000,
		Mode:    TxQuad | RxQuad,
	}
}

// Option is a functional option for configuring a Bus.
type Option func(*Config)

// WithSpeed sets the SPI clock rate. Zero is ignored.
func WithSpeed(hz uint32) Option {
	return func(c *Config) {
		if hz > 0 {
			c.SpeedHz = hz
		}
	}
}

// WithMode sets the SPI mode bits. Include TxQuad and RxQuad for the
// quad-wide read and program commands.
func WithMode(m Mode) Option {
	return func(c *Config) {
		c.Mode = m
	}
}
