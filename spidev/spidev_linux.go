//go:build linux

package spidev

import (
	"encoding/binary"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ioctl numbers from include/uapi/linux/spi/spidev.h.
const (
	iocWrMode32     = 0x40046b05
	iocWrMaxSpeedHz = 0x40046b04
)

// iocTransfer mirrors struct spi_ioc_transfer.
type iocTransfer struct {
	TxBuf          uint64
	RxBuf          uint64
	Length         uint32
	SpeedHz        uint32
	DelayUsecs     uint16
	BitsPerWord    uint8
	CSChange       uint8
	TxNBits        uint8
	RxNBits        uint8
	WordDelayUsecs uint8
	Pad            uint8
}

// iocMessage returns SPI_IOC_MESSAGE(n).
func iocMessage(n int) uintptr {
	size := uint32(n * binary.Size(iocTransfer{}))
	return uintptr(0x40006b00 | (size << 16))
}

type device struct {
	f *os.File
}

// Open opens a spidev character device such as /dev/spidev0.0 and applies
// the mode and speed.
func Open(path string, opts ...Option) (*Bus, error) {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	d := &device{f: f}

	mode := uint32(config.Mode)
	if err := d.ioctl(iocWrMode32, unsafe.Pointer(&mode)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("spidev: set mode: %w", err)
	}
	speed := config.SpeedHz
	if err := d.ioctl(iocWrMaxSpeedHz, unsafe.Pointer(&speed)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("spidev: set speed: %w", err)
	}
	return newBus(d, config), nil
}

func (d *device) ioctl(req uintptr, arg unsafe.Pointer) error {
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, d.f.Fd(), req, uintptr(arg)); errno != 0 {
		return errno
	}
	return nil
}

// Transfer sends all transfers in one message with chip select held.
// Buffers are staged in anonymous mmap memory the garbage collector does
// not move.
func (d *device) Transfer(transfers []Transfer) error {
	size := 0
	for _, t := range transfers {
		size += len(t.Tx) + len(t.Rx)
	}
	if size == 0 {
		return nil
	}
	buf, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return err
	}
	defer func() { _ = unix.Munmap(buf) }()

	it := make([]iocTransfer, 0, len(transfers))
	offset := 0
	for _, t := range transfers {
		x := iocTransfer{SpeedHz: t.SpeedHz, TxNBits: t.TxNBits, RxNBits: t.RxNBits}
		if len(t.Tx) > 0 {
			copy(buf[offset:], t.Tx)
			x.TxBuf = uint64(uintptr(unsafe.Pointer(&buf[offset])))
			x.Length = uint32(len(t.Tx))
			offset += len(t.Tx)
		}
		if len(t.Rx) > 0 {
			x.RxBuf = uint64(uintptr(unsafe.Pointer(&buf[offset])))
			x.Length = uint32(len(t.Rx))
			offset += len(t.Rx)
		}
		it = append(it, x)
	}

	if err := d.ioctl(iocMessage(len(it)), unsafe.Pointer(&it[0])); err != nil {
		return err
	}

	offset = 0
	for _, t := range transfers {
		offset += len(t.Tx)
		copy(t.Rx, buf[offset:])
		offset += len(t.Rx)
	}
	return nil
}

func (d *device) Close() error {
	return d.f.Close()
}
