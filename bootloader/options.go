package bootloader

// Default memory layout of an STM32H7 with the flash window at 0x90000000.
const (
	DefaultMappedBase = 0x90000000
	DefaultRAMStart   = 0x20000000
	DefaultRAMEnd     = 0x20080000
)

// Config holds the loader configuration.
type Config struct {
	// AppOffset is the flash offset of the application's vector table
	AppOffset uint32

	// MappedBase is the CPU address of flash offset 0 in memory-mapped mode
	MappedBase uint32

	// RAMStart and RAMEnd bound the valid initial stack pointer
	// (RAMEnd inclusive, since the stack grows down from it)
	RAMStart uint32
	RAMEnd   uint32

	// ProgressCallback is called at each phase change (optional)
	ProgressCallback ProgressCallback

	// Logger is used for logging operations (optional)
	Logger Logger
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		MappedBase: DefaultMappedBase,
		RAMStart:   DefaultRAMStart,
		RAMEnd:     DefaultRAMEnd,
	}
}

// Option is a functional option for configuring the Loader.
type Option func(*Config)

// WithAppOffset sets the flash offset of the application image.
//
// Example:
//
//	l := bootloader.New(gate, jumper, bootloader.WithAppOffset(0x20000))
func WithAppOffset(offset uint32) Option {
	return func(c *Config) {
		c.AppOffset = offset
	}
}

// WithMappedBase sets the CPU address of the memory-mapped window.
func WithMappedBase(base uint32) Option {
	return func(c *Config) {
		c.MappedBase = base
	}
}

// WithRAMRange sets the range the initial stack pointer must lie in.
// Ranges with start > end are ignored.
//
// Example, AXI SRAM on an STM32H743:
//
//	l := bootloader.New(gate, jumper, bootloader.WithRAMRange(0x24000000, 0x24080000))
func WithRAMRange(start, end uint32) Option {
	return func(c *Config) {
		if start <= end {
			c.RAMStart = start
			c.RAMEnd = end
		}
	}
}

// WithProgressCallback sets a callback function to track boot progress.
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for the loader.
//
// Example:
//
//	l := bootloader.New(gate, jumper, bootloader.WithLogger(myLogger))
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}
