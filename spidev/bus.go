package spidev

import (
	"context"
	"fmt"
	"time"

	"github.com/moffa90/go-norflash/xspi"
)

// conn is the message-level interface to the kernel.
type conn interface {
	Transfer(transfers []Transfer) error
	Close() error
}

// Bus is an xspi.Bus on a spidev device. It is not safe for concurrent
// use.
type Bus struct {
	conn    conn
	config  Config
	state   xspi.State
	pending *xspi.Command
}

var _ xspi.Bus = (*Bus)(nil)

func newBus(c conn, config Config) *Bus {
	return &Bus{conn: c, config: config, state: xspi.StateReset}
}

// Close releases the device.
func (b *Bus) Close() error {
	return b.conn.Close()
}

// Configure accepts single-memory configurations only.
func (b *Bus) Configure(ctx context.Context, cfg xspi.Config) error {
	if cfg.Organization != xspi.SingleMemory {
		return fmt.Errorf("spidev: %s organisation: %w", cfg.Organization, xspi.ErrUnsupported)
	}
	b.pending = nil
	b.state = xspi.StateReady
	return nil
}

// Deinit drops any pending command and returns to the reset state.
func (b *Bus) Deinit(ctx context.Context) error {
	b.pending = nil
	b.state = xspi.StateReset
	return nil
}

// Command sends cmd at once, or holds it until its data phase when it has one.
func (b *Bus) Command(ctx context.Context, cmd xspi.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.state != xspi.StateReady {
		return &xspi.StateError{Operation: "command", State: b.state}
	}
	if err := cmd.Validate(); err != nil {
		return err
	}
	if cmd.HasData() {
		b.pending = &cmd
		return nil
	}
	b.pending = nil
	return b.send(cmd, nil, nil)
}

// Transmit sends the pending command with data as its data phase.
func (b *Bus) Transmit(ctx context.Context, data []byte) error {
	cmd, err := b.take(ctx, "transmit")
	if err != nil {
		return err
	}
	return b.send(cmd, data, nil)
}

// Receive runs the pending command and reads its data phase into data.
func (b *Bus) Receive(ctx context.Context, data []byte) error {
	cmd, err := b.take(ctx, "receive")
	if err != nil {
		return err
	}
	return b.send(cmd, nil, data)
}

// AutoPoll re-sends the pending status command every p.Interval until it
// matches or p.Timeout passes.
func (b *Bus) AutoPoll(ctx context.Context, p xspi.Poll) error {
	cmd, err := b.take(ctx, "auto-poll")
	if err != nil {
		return err
	}
	n := cmd.DataLength
	if n <= 0 || n > 4 {
		return fmt.Errorf("spidev: cannot poll a %d byte status", n)
	}

	buf := make([]byte, n)
	deadline := time.Now().Add(p.Timeout)
	for {
		if err := b.send(cmd, nil, buf); err != nil {
			return err
		}
		var status uint32
		for i, v := range buf {
			status |= uint32(v) << (8 * i)
		}
		if p.Matches(status) {
			return nil
		}
		if !time.Now().Before(deadline) {
			return xspi.ErrTimeout
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		time.Sleep(p.Interval)
	}
}

// MemoryMapped is not available through spidev.
func (b *Bus) MemoryMapped(ctx context.Context, cfg xspi.MemoryMappedConfig) error {
	return fmt.Errorf("spidev: memory-mapped mode: %w", xspi.ErrUnsupported)
}

// State returns the handle state.
func (b *Bus) State() xspi.State {
	return b.state
}

// Window returns nil; there is no memory-mapped window.
func (b *Bus) Window() xspi.Window {
	return nil
}

func (b *Bus) take(ctx context.Context, op string) (xspi.Command, error) {
	if err := ctx.Err(); err != nil {
		return xspi.Command{}, err
	}
	if b.state != xspi.StateReady {
		return xspi.Command{}, &xspi.StateError{Operation: op, State: b.state}
	}
	if b.pending == nil {
		return xspi.Command{}, fmt.Errorf("spidev: %s without a pending command", op)
	}
	cmd := *b.pending
	b.pending = nil
	return cmd, nil
}

func (b *Bus) send(cmd xspi.Command, tx, rx []byte) error {
	transfers, err := buildTransfers(cmd, tx, rx, b.config.SpeedHz)
	if err != nil {
		return err
	}
	if err := b.conn.Transfer(transfers); err != nil {
		return fmt.Errorf("spidev: opcode 0x%02X: %w", cmd.Instruction, err)
	}
	return nil
}
