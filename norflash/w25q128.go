package norflash

import (
	"context"
	"fmt"
	"time"

	"github.com/moffa90/go-norflash/xspi"
)

// W25Q128 opcodes.
const (
	cmdEnableReset         = 0x66
	cmdReset               = 0x99
	cmdReadID              = 0x90
	cmdReadStatus1         = 0x05
	cmdReadStatus2         = 0x35
	cmdWriteEnable         = 0x06
	cmdWriteStatus2        = 0x31
	cmdChipErase           = 0xC7
	cmdBlockErase          = 0xD8
	cmdSectorErase         = 0x20
	cmdQuadPageProgram     = 0x32
	cmdFastReadQuadIO      = 0xEB
	fastReadQuadIODummy    = 6
	w25q128AddressBits     = 24
	w25q128MemorySizeBits  = 28
	w25q128ClockPrescaler  = 3
	w25q128ChipSelectCycle = 1
)

// Status register bits, per chip.
const (
	statusBusy        = 1 << 0 // SR1
	statusWriteEnable = 1 << 1 // SR1
	statusQuadEnable  = 1 << 1 // SR2
)

// Manufacturer and device ID pairs as read by 0x90, device byte high.
const (
	IDWinbondW25Q128 uint16 = 0x17EF
	IDBoyaBY25FQ128  uint16 = 0x1768
)

// Geometry of one chip.
const (
	w25q128ChipSize   = 16 << 20
	w25q128BlockSize  = 64 << 10
	w25q128SectorSize = 4 << 10
	w25q128PageSize   = 256
)

// W25Q128 sequences commands for W25Q128-class quad SPI NOR chips.
// With two lanes the bus drives two chips in lockstep and every status
// byte, ID byte and geometry value is doubled.
type W25Q128 struct {
	Unimplemented

	lanes    int
	timeouts Timeouts
	accepted []uint16
}

// NewW25Q128Dual returns the sequencer for two chips in dual organisation.
func NewW25Q128Dual(t Timeouts) *W25Q128 {
	return &W25Q128{lanes: 2, timeouts: t, accepted: []uint16{IDWinbondW25Q128, IDBoyaBY25FQ128}}
}

// NewW25Q128Single returns the sequencer for a single chip.
func NewW25Q128Single(t Timeouts) *W25Q128 {
	return &W25Q128{lanes: 1, timeouts: t, accepted: []uint16{IDWinbondW25Q128, IDBoyaBY25FQ128}}
}

// Lanes returns the number of chips driven in lockstep.
func (d *W25Q128) Lanes() int { return d.lanes }

// Type returns TypeW25Q128Dual or TypeW25Q128Single.
func (d *W25Q128) Type() Type {
	if d.lanes == 2 {
		return TypeW25Q128Dual
	}
	return TypeW25Q128Single
}

// Name returns the part name, suffixed with "dual" for two lanes.
func (d *W25Q128) Name() string {
	if d.lanes == 2 {
		return "W25Q128 dual"
	}
	return "W25Q128"
}

// Parameters returns the geometry of one chip multiplied by the lane count.
func (d *W25Q128) Parameters() Parameters {
	n := uint32(d.lanes)
	return Parameters{
		EmptyValue: 0xFF,
		ChipSize:   w25q128ChipSize * n,
		BlockSize:  w25q128BlockSize * n,
		SectorSize: w25q128SectorSize * n,
		PageSize:   w25q128PageSize * n,
	}
}

// BusConfig selects dual organisation for two lanes and single otherwise.
func (d *W25Q128) BusConfig() xspi.Config {
	cfg := xspi.Config{
		Organization:         xspi.SingleMemory,
		MemoryType:           xspi.MemoryMicron,
		ClockPrescaler:       w25q128ClockPrescaler,
		ChipSelectHighCycles: w25q128ChipSelectCycle,
		SizeBits:             w25q128MemorySizeBits,
	}
	if d.lanes == 2 {
		cfg.Organization = xspi.DualMemory
		cfg.MemoryType = xspi.MemoryAPMemory
	}
	return cfg
}

// Init resets the chips, checks their IDs and enables quad mode.
func (d *W25Q128) Init(ctx context.Context, bus xspi.Bus) error {
	if err := d.reset(ctx, bus); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	if err := d.identify(ctx, bus); err != nil {
		return fmt.Errorf("identify: %w", err)
	}
	if err := d.enableQuad(ctx, bus); err != nil {
		return fmt.Errorf("enable quad mode: %w", err)
	}
	return nil
}

// EraseChip erases every chip on the bus.
func (d *W25Q128) EraseChip(ctx context.Context, bus xspi.Bus) error {
	return d.erase(ctx, bus, xspi.Command{
		Instruction:      cmdChipErase,
		InstructionLines: xspi.Lines1,
	}, d.timeouts.ChipErase)
}

// EraseBlock erases the block containing address.
func (d *W25Q128) EraseBlock(ctx context.Context, bus xspi.Bus, address uint32) error {
	return d.erase(ctx, bus, d.addressed(cmdBlockErase, address), d.timeouts.BlockErase)
}

// EraseSector erases the sector containing address.
func (d *W25Q128) EraseSector(ctx context.Context, bus xspi.Bus, address uint32) error {
	return d.erase(ctx, bus, d.addressed(cmdSectorErase, address), d.timeouts.SectorErase)
}

// ProgramPage programs at most one page using the quad input page program.
func (d *W25Q128) ProgramPage(ctx context.Context, bus xspi.Bus, address uint32, data []byte) error {
	pageSize := int(d.Parameters().PageSize)
	if len(data) > pageSize {
		return &LengthError{Op: "program page", Length: len(data), Max: pageSize}
	}
	if len(data) == 0 {
		return nil
	}
	if err := d.writeEnable(ctx, bus); err != nil {
		return err
	}
	cmd := d.programCommand()
	cmd.Address = address
	cmd.DataLength = len(data)
	if err := bus.Command(ctx, cmd); err != nil {
		return err
	}
	if err := bus.Transmit(ctx, data); err != nil {
		return err
	}
	return d.waitReady(ctx, bus, d.timeouts.PageProgram)
}

// Read uses the fast read quad I/O command.
func (d *W25Q128) Read(ctx context.Context, bus xspi.Bus, address uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	cmd := d.readCommand()
	cmd.Address = address
	cmd.DataLength = len(data)
	if err := bus.Command(ctx, cmd); err != nil {
		return err
	}
	return bus.Receive(ctx, data)
}

// MemoryMapped sets the write-enable latch and hands reads and writes to
// the controller.
func (d *W25Q128) MemoryMapped(ctx context.Context, bus xspi.Bus) error {
	if err := d.writeEnable(ctx, bus); err != nil {
		return err
	}
	return bus.MemoryMapped(ctx, xspi.MemoryMappedConfig{
		Read:           d.readCommand(),
		Write:          d.programCommand(),
		TimeoutCounter: true,
	})
}

func (d *W25Q128) readCommand() xspi.Command {
	return xspi.Command{
		Instruction:      cmdFastReadQuadIO,
		InstructionLines: xspi.Lines1,
		AddressLines:     xspi.Lines4,
		AddressBits:      w25q128AddressBits,
		DataLines:        xspi.Lines4,
		DummyCycles:      fastReadQuadIODummy,
	}
}

func (d *W25Q128) programCommand() xspi.Command {
	return xspi.Command{
		Instruction:      cmdQuadPageProgram,
		InstructionLines: xspi.Lines1,
		AddressLines:     xspi.Lines1,
		AddressBits:      w25q128AddressBits,
		DataLines:        xspi.Lines4,
	}
}

func (d *W25Q128) addressed(op byte, address uint32) xspi.Command {
	return xspi.Command{
		Instruction:      op,
		InstructionLines: xspi.Lines1,
		Address:          address,
		AddressLines:     xspi.Lines1,
		AddressBits:      w25q128AddressBits,
	}
}

func (d *W25Q128) erase(ctx context.Context, bus xspi.Bus, cmd xspi.Command, timeout time.Duration) error {
	if err := d.writeEnable(ctx, bus); err != nil {
		return err
	}
	if err := bus.Command(ctx, cmd); err != nil {
		return err
	}
	return d.waitReady(ctx, bus, timeout)
}

func (d *W25Q128) reset(ctx context.Context, bus xspi.Bus) error {
	for _, op := range []byte{cmdEnableReset, cmdReset} {
		if err := bus.Command(ctx, xspi.Command{Instruction: op, InstructionLines: xspi.Lines1}); err != nil {
			return err
		}
	}
	if d.timeouts.ResetSettle > 0 {
		time.Sleep(d.timeouts.ResetSettle)
	}
	return nil
}

// identify reads two ID bytes per lane. The bytes arrive interleaved, one
// per lane, manufacturer byte first.
func (d *W25Q128) identify(ctx context.Context, bus xspi.Bus) error {
	buf := make([]byte, 2*d.lanes)
	err := bus.Command(ctx, xspi.Command{
		Instruction:      cmdReadID,
		InstructionLines: xspi.Lines1,
		AddressLines:     xspi.Lines1,
		AddressBits:      w25q128AddressBits,
		DataLines:        xspi.Lines1,
		DataLength:       len(buf),
	})
	if err != nil {
		return err
	}
	if err := bus.Receive(ctx, buf); err != nil {
		return err
	}

	ids := make([]uint16, d.lanes)
	for lane := range ids {
		ids[lane] = uint16(buf[lane]) | uint16(buf[d.lanes+lane])<<8
	}
	for _, want := range d.accepted {
		match := true
		for _, id := range ids {
			if id != want {
				match = false
				break
			}
		}
		if match {
			return nil
		}
	}
	return &IdentificationError{IDs: ids}
}

func (d *W25Q128) enableQuad(ctx context.Context, bus xspi.Bus) error {
	sr2, err := d.readStatus(ctx, bus, cmdReadStatus2)
	if err != nil {
		return fmt.Errorf("read status register 2: %w", err)
	}
	if err := d.writeEnable(ctx, bus); err != nil {
		return err
	}

	sr2 |= d.perLane(statusQuadEnable)
	buf := make([]byte, d.lanes)
	for i := range buf {
		buf[i] = byte(sr2 >> (8 * i))
	}
	err = bus.Command(ctx, xspi.Command{
		Instruction:      cmdWriteStatus2,
		InstructionLines: xspi.Lines1,
		DataLines:        xspi.Lines1,
		DataLength:       len(buf),
	})
	if err != nil {
		return err
	}
	if err := bus.Transmit(ctx, buf); err != nil {
		return err
	}
	if err := d.waitReady(ctx, bus, d.timeouts.Command); err != nil {
		return err
	}

	got, err := d.readStatus(ctx, bus, cmdReadStatus2)
	if err != nil {
		return fmt.Errorf("read status register 2: %w", err)
	}
	want := d.perLane(statusQuadEnable)
	if got&want != want {
		return &VerificationError{Register: "status register 2", Want: want, Got: got}
	}
	return nil
}

// readStatus returns one status byte per lane, lane 0 in the low byte.
func (d *W25Q128) readStatus(ctx context.Context, bus xspi.Bus, op byte) (uint32, error) {
	if err := bus.Command(ctx, d.statusCommand(op)); err != nil {
		return 0, err
	}
	buf := make([]byte, d.lanes)
	if err := bus.Receive(ctx, buf); err != nil {
		return 0, err
	}
	var v uint32
	for i, b := range buf {
		v |= uint32(b) << (8 * i)
	}
	return v, nil
}

func (d *W25Q128) statusCommand(op byte) xspi.Command {
	return xspi.Command{
		Instruction:      op,
		InstructionLines: xspi.Lines1,
		DataLines:        xspi.Lines1,
		DataLength:       d.lanes,
	}
}

func (d *W25Q128) writeEnable(ctx context.Context, bus xspi.Bus) error {
	err := bus.Command(ctx, xspi.Command{Instruction: cmdWriteEnable, InstructionLines: xspi.Lines1})
	if err != nil {
		return fmt.Errorf("write enable: %w", err)
	}
	mask := d.perLane(statusWriteEnable)
	if err := d.poll(ctx, bus, mask, mask, d.timeouts.Command); err != nil {
		return fmt.Errorf("wait for write enable latch: %w", err)
	}
	return nil
}

func (d *W25Q128) waitReady(ctx context.Context, bus xspi.Bus, timeout time.Duration) error {
	if err := d.poll(ctx, bus, 0, d.perLane(statusBusy), timeout); err != nil {
		return fmt.Errorf("wait for ready: %w", err)
	}
	return nil
}

func (d *W25Q128) poll(ctx context.Context, bus xspi.Bus, match, mask uint32, timeout time.Duration) error {
	if err := bus.Command(ctx, d.statusCommand(cmdReadStatus1)); err != nil {
		return err
	}
	return bus.AutoPoll(ctx, xspi.Poll{
		Match:    match,
		Mask:     mask,
		Mode:     xspi.MatchAnd,
		Interval: d.timeouts.PollInterval,
		Timeout:  timeout,
	})
}

// perLane replicates a status bit into every lane's byte.
func (d *W25Q128) perLane(bits uint32) uint32 {
	var v uint32
	for i := 0; i < d.lanes; i++ {
		v |= bits << (8 * i)
	}
	return v
}
