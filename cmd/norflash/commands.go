package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/moffa90/go-norflash/bootloader"
	"github.com/moffa90/go-norflash/ihex"
	"github.com/moffa90/go-norflash/norflash"
)

func (c *cli) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "info":
		return c.info(ctx, args)
	case "read":
		return c.read(ctx, args)
	case "write":
		return c.write(ctx, args)
	case "erase":
		return c.erase(ctx, args)
	case "program":
		return c.program(ctx, args)
	case "boot":
		return c.boot(ctx, args)
	default:
		fmt.Fprintf(c.stderr, "unknown command %q\n", cmd)
		return errUsage
	}
}

func (c *cli) probe(ctx context.Context) error {
	typ, err := c.flash.Probe(ctx)
	if err != nil {
		return fmt.Errorf("probe: %w", err)
	}
	c.logger.V(1).Info("Device bound", "type", typ.String())
	return nil
}

func (c *cli) info(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	if err := c.probe(ctx); err != nil {
		return err
	}
	dev, _ := c.flash.Bound()
	p := c.flash.Parameters()
	fmt.Fprintf(c.stdout, "device:      %s (%s)\n", dev.Name(), dev.Type())
	fmt.Fprintf(c.stdout, "chip size:   %d bytes\n", p.ChipSize)
	fmt.Fprintf(c.stdout, "block size:  %d bytes\n", p.BlockSize)
	fmt.Fprintf(c.stdout, "sector size: %d bytes\n", p.SectorSize)
	fmt.Fprintf(c.stdout, "page size:   %d bytes\n", p.PageSize)
	fmt.Fprintf(c.stdout, "empty value: 0x%02X\n", p.EmptyValue)
	return nil
}

func (c *cli) read(ctx context.Context, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return errUsage
	}
	addr, err := parseUint32(args[0])
	if err != nil {
		return err
	}
	n, err := parseUint32(args[1])
	if err != nil {
		return err
	}
	if err := c.probe(ctx); err != nil {
		return err
	}

	if n > c.flash.ChipSize() {
		return &norflash.RangeError{Address: addr, Length: int(n), ChipSize: c.flash.ChipSize()}
	}
	data := make([]byte, n)
	if err := c.flash.Read(ctx, addr, data); err != nil {
		return err
	}
	if len(args) == 3 {
		return os.WriteFile(args[2], data, 0o644)
	}
	d := hex.Dumper(c.stdout)
	if _, err := d.Write(data); err != nil {
		return err
	}
	return d.Close()
}

func (c *cli) write(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	addr, err := parseUint32(args[0])
	if err != nil {
		return err
	}
	data, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}
	if err := c.probe(ctx); err != nil {
		return err
	}
	if err := c.flash.Write(ctx, addr, data); err != nil {
		return err
	}
	c.logger.Info("Write complete", "address", fmt.Sprintf("0x%08X", addr), "bytes", len(data))
	return nil
}

func (c *cli) erase(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	var op func(context.Context) error
	switch {
	case args[0] == "chip" && len(args) == 1:
		op = c.flash.EraseChip
	case (args[0] == "sector" || args[0] == "block") && len(args) == 2:
		addr, err := parseUint32(args[1])
		if err != nil {
			return err
		}
		if args[0] == "sector" {
			op = func(ctx context.Context) error { return c.flash.EraseSector(ctx, addr) }
		} else {
			op = func(ctx context.Context) error { return c.flash.EraseBlock(ctx, addr) }
		}
	default:
		return errUsage
	}

	if err := c.probe(ctx); err != nil {
		return err
	}
	return op(ctx)
}

// program writes every segment of an Intel HEX image and reads it back.
// Images linked for the memory-mapped window are rebased to flash offsets.
func (c *cli) program(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	img, err := ihex.Parse(args[0])
	if err != nil {
		return err
	}
	if len(img.Segments) > 0 && img.Segments[0].Address >= c.cfg.MappedBase {
		if img, err = img.Base(c.cfg.MappedBase); err != nil {
			return err
		}
	}
	if err := c.probe(ctx); err != nil {
		return err
	}

	for _, seg := range img.Segments {
		c.logger.Info("Programming segment",
			"address", fmt.Sprintf("0x%08X", seg.Address), "bytes", len(seg.Data))
		if err := c.flash.Write(ctx, seg.Address, seg.Data); err != nil {
			return err
		}
	}
	for _, seg := range img.Segments {
		got := make([]byte, len(seg.Data))
		if err := c.flash.Read(ctx, seg.Address, got); err != nil {
			return fmt.Errorf("verify: %w", err)
		}
		if !bytes.Equal(got, seg.Data) {
			return fmt.Errorf("verify: segment at 0x%08X does not match", seg.Address)
		}
	}
	c.logger.Info("Program complete", "segments", len(img.Segments), "bytes", img.Size())
	return nil
}

// boot runs the boot sequence up to the jump. The host cannot execute the
// image, so reaching the jump counts as success.
func (c *cli) boot(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	gate := norflash.NewGate(c.flash)
	jumper := bootloader.JumperFunc(func(ctx context.Context, vt bootloader.VectorTable) error {
		fmt.Fprintf(c.stdout, "entry: 0x%08X\nstack: 0x%08X\n", vt.Entry(), vt.StackPointer)
		return nil
	})
	loader := bootloader.New(gate, jumper,
		bootloader.WithAppOffset(c.cfg.AppOffset),
		bootloader.WithMappedBase(c.cfg.MappedBase),
		bootloader.WithRAMRange(c.cfg.RAMStart, c.cfg.RAMEnd),
		bootloader.WithLogger(norflash.LogrLogger(c.logger)),
	)
	if err := loader.Boot(ctx); !errors.Is(err, bootloader.ErrJumpReturned) {
		return err
	}
	return nil
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return uint32(v), nil
}
