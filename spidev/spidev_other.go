//go:build !linux

package spidev

import (
	"fmt"

	"github.com/moffa90/go-norflash/xspi"
)

// Open is only available on Linux.
func Open(path string, opts ...Option) (*Bus, error) {
	return nil, fmt.Errorf("spidev: %s: %w", path, xspi.ErrUnsupported)
}
