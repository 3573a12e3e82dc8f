package flashsim

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/moffa90/go-norflash/xspi"
)

// Opcodes understood by the simulated chips.
const (
	opEnableReset     = 0x66
	opReset           = 0x99
	opReadID          = 0x90
	opReadStatus1     = 0x05
	opReadStatus2     = 0x35
	opWriteEnable     = 0x06
	opWriteDisable    = 0x04
	opWriteStatus2    = 0x31
	opChipErase       = 0xC7
	opBlockErase      = 0xD8
	opSectorErase     = 0x20
	opQuadPageProgram = 0x32
	opFastReadQuadIO  = 0xEB
)

const minPollInterval = time.Microsecond

// Sim is an in-memory xspi.Bus with one or two chips attached.
// It is safe for concurrent use.
type Sim struct {
	mu      sync.Mutex
	config  Config
	chips   []*chip
	lanes   int
	state   xspi.State
	pending *xspi.Command
	mapped  xspi.MemoryMappedConfig
	now     time.Duration
	trace   []byte
}

var _ xspi.Bus = (*Sim)(nil)

// New creates a simulator with erased chips. The bus starts in StateReset
// and must be configured before use.
func New(opts ...Option) *Sim {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	s := &Sim{
		config: config,
		lanes:  1,
		state:  xspi.StateReset,
	}
	for i := 0; i < config.Chips; i++ {
		s.chips = append(s.chips, newChip(config))
	}
	return s
}

// Configure sets the organisation and leaves memory-mapped mode.
func (s *Sim) Configure(ctx context.Context, cfg xspi.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if s.config.ConfigureError != nil {
		return s.config.ConfigureError
	}
	s.lanes = cfg.Organization.Lanes()
	s.pending = nil
	s.state = xspi.StateReady
	return nil
}

// Deinit returns the bus to StateReset.
func (s *Sim) Deinit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = nil
	s.state = xspi.StateReset
	return nil
}

// Command validates cmd and records it in the trace. Commands with a data
// phase wait for Transmit, Receive or AutoPoll.
func (s *Sim) Command(ctx context.Context, cmd xspi.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if s.state != xspi.StateReady {
		return &xspi.StateError{Operation: "command", State: s.state}
	}
	if err := cmd.Validate(); err != nil {
		return err
	}

	s.trace = append(s.trace, cmd.Instruction)
	if err, ok := s.config.FailOpcodes[cmd.Instruction]; ok {
		return err
	}

	if cmd.HasData() {
		s.pending = &cmd
		return nil
	}
	s.pending = nil
	s.execute(cmd)
	return nil
}

// execute runs a command without a data phase on every present lane.
func (s *Sim) execute(cmd xspi.Command) {
	for _, c := range s.laneChips() {
		if c == nil {
			continue
		}
		chipAddr := cmd.Address / uint32(s.lanes)

		switch cmd.Instruction {
		case opEnableReset:
			c.resetArmed = true
			continue
		case opReset:
			if c.resetArmed {
				c.reset()
			}
		case opWriteEnable:
			if !c.busy(s.now) {
				c.wel = true
			}
		case opWriteDisable:
			if !c.busy(s.now) {
				c.wel = false
			}
		case opSectorErase:
			if c.wel && !c.busy(s.now) {
				c.erase(chipAddr, sectorSize)
				c.wel = false
				c.busyUntil = s.now + s.config.SectorLatency
			}
		case opBlockErase:
			if c.wel && !c.busy(s.now) {
				c.erase(chipAddr, blockSize)
				c.wel = false
				c.busyUntil = s.now + s.config.BlockLatency
			}
		case opChipErase:
			if c.wel && !c.busy(s.now) {
				c.eraseAll()
				c.wel = false
				c.busyUntil = s.now + s.config.ChipLatency
			}
		}
		c.resetArmed = false
	}
}

// Transmit completes a pending status write or page program.
func (s *Sim) Transmit(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	cmd, err := s.takePending("transmit")
	if err != nil {
		return err
	}

	switch cmd.Instruction {
	case opWriteStatus2:
		for lane, c := range s.laneChips() {
			if c == nil || lane >= len(data) || !c.wel || c.busy(s.now) {
				continue
			}
			v := data[lane]
			if c.lockedQuad {
				v = v&^srQuadEnable | c.sr2&srQuadEnable
			}
			c.sr2 = v
			c.wel = false
		}
	case opQuadPageProgram:
		s.program(cmd.Address, data)
	default:
		return fmt.Errorf("flashsim: opcode 0x%02X has no transmit phase", cmd.Instruction)
	}
	return nil
}

// program splits data across lanes and programs each lane's bytes,
// wrapping inside the chip page the lane starts in.
func (s *Sim) program(address uint32, data []byte) {
	lanes := uint32(s.lanes)
	for lane, c := range s.laneChips() {
		if c == nil || !c.wel || !c.quad() || c.busy(s.now) {
			continue
		}
		var start uint32
		found := false
		n := uint32(0)
		for k := range data {
			logical := address + uint32(k)
			if int(logical%lanes) != lane {
				continue
			}
			if !found {
				start = logical / lanes
				found = true
			}
			base := start &^ (pageSize - 1)
			c.program(base+(start-base+n)%pageSize, data[k])
			n++
		}
		c.wel = false
		c.busyUntil = s.now + s.config.PageLatency
	}
}

// Receive completes a pending status, ID or quad read.
func (s *Sim) Receive(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	cmd, err := s.takePending("receive")
	if err != nil {
		return err
	}

	switch cmd.Instruction {
	case opReadStatus1, opReadStatus2, opReadID:
		chips := s.laneChips()
		for k := range data {
			c := chips[k%s.lanes]
			if c == nil {
				data[k] = 0xFF
				continue
			}
			switch cmd.Instruction {
			case opReadStatus1:
				data[k] = c.status1(s.now)
			case opReadStatus2:
				data[k] = c.sr2
			default:
				data[k] = c.id[(k/s.lanes)%2]
			}
		}
	case opFastReadQuadIO:
		s.readLogical(cmd.Address, data, true)
	default:
		return fmt.Errorf("flashsim: opcode 0x%02X has no receive phase", cmd.Instruction)
	}
	return nil
}

// readLogical fills data from the interleaved address space. Missing
// chips, and chips without quad mode when quad is set, read as 0xFF.
func (s *Sim) readLogical(address uint32, data []byte, quad bool) {
	chips := s.laneChips()
	lanes := uint32(s.lanes)
	for k := range data {
		logical := address + uint32(k)
		c := chips[logical%lanes]
		if c == nil || (quad && !c.quad()) {
			data[k] = 0xFF
			continue
		}
		data[k] = c.load(logical / lanes)
	}
}

// AutoPoll repeats the pending status read, advancing the virtual clock by
// p.Interval between reads.
func (s *Sim) AutoPoll(ctx context.Context, p xspi.Poll) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	cmd, err := s.takePending("auto-poll")
	if err != nil {
		return err
	}
	if cmd.Instruction != opReadStatus1 && cmd.Instruction != opReadStatus2 {
		return fmt.Errorf("flashsim: opcode 0x%02X cannot be polled", cmd.Instruction)
	}

	interval := p.Interval
	if interval < minPollInterval {
		interval = minPollInterval
	}
	for elapsed := time.Duration(0); ; elapsed += interval {
		if p.Matches(s.status(cmd.Instruction)) {
			return nil
		}
		if elapsed >= p.Timeout {
			return xspi.ErrTimeout
		}
		s.now += interval
	}
}

// status packs one status byte per lane, lane 0 lowest.
func (s *Sim) status(op byte) uint32 {
	var v uint32
	for lane, c := range s.laneChips() {
		b := byte(0xFF)
		if c != nil {
			if op == opReadStatus1 {
				b = c.status1(s.now)
			} else {
				b = c.sr2
			}
		}
		v |= uint32(b) << (8 * lane)
	}
	return v
}

// MemoryMapped records cfg and serves Window loads until Deinit or Configure.
func (s *Sim) MemoryMapped(ctx context.Context, cfg xspi.MemoryMappedConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if s.state != xspi.StateReady {
		return &xspi.StateError{Operation: "memory-mapped", State: s.state}
	}
	if err := cfg.Read.Validate(); err != nil {
		return err
	}
	s.pending = nil
	s.mapped = cfg
	s.state = xspi.StateBusyMemoryMapped
	return nil
}

// State returns the handle state.
func (s *Sim) State() xspi.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Window returns loads served from flash contents. Outside memory-mapped
// mode every load returns all ones.
func (s *Sim) Window() xspi.Window {
	return window{s: s}
}

type window struct {
	s *Sim
}

func (w window) Load16(offset uint32) uint16 {
	var b [2]byte
	w.s.loadMapped(offset, b[:])
	return uint16(b[0]) | uint16(b[1])<<8
}

func (w window) Load8(offset uint32) byte {
	var b [1]byte
	w.s.loadMapped(offset, b[:])
	return b[0]
}

func (s *Sim) loadMapped(offset uint32, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != xspi.StateBusyMemoryMapped {
		for i := range data {
			data[i] = 0xFF
		}
		return
	}
	s.readLogical(offset, data, false)
}

// Trace returns the instructions issued since the last ResetTrace.
func (s *Sim) Trace() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.trace...)
}

// ResetTrace clears the instruction trace.
func (s *Sim) ResetTrace() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trace = nil
}

// Now returns the virtual clock.
func (s *Sim) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Size returns the combined size of all chips.
func (s *Sim) Size() uint32 {
	return s.config.ChipSize * uint32(len(s.chips))
}

// LoadImage overwrites flash contents from r, starting at offset 0. With
// two chips the image is interleaved byte by byte as in dual organisation.
func (s *Sim) LoadImage(r io.Reader) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	br := bufio.NewReader(r)
	n := uint32(len(s.chips))
	for addr := uint32(0); ; addr++ {
		b, err := br.ReadByte()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if addr >= s.config.ChipSize*n {
			return fmt.Errorf("flashsim: image larger than %d bytes", s.config.ChipSize*n)
		}
		s.chips[addr%n].store(addr/n, b)
	}
}

// SaveImage writes the full flash contents to w in the layout LoadImage reads.
func (s *Sim) SaveImage(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bw := bufio.NewWriter(w)
	n := uint32(len(s.chips))
	for addr := uint32(0); addr < s.config.ChipSize*n; addr++ {
		if err := bw.WriteByte(s.chips[addr%n].load(addr / n)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// laneChips returns the chip on each configured lane, nil where no chip is
// fitted.
func (s *Sim) laneChips() []*chip {
	out := make([]*chip, s.lanes)
	for i := range out {
		if i < len(s.chips) {
			out[i] = s.chips[i]
		}
	}
	return out
}

func (s *Sim) takePending(op string) (xspi.Command, error) {
	if s.state != xspi.StateReady {
		return xspi.Command{}, &xspi.StateError{Operation: op, State: s.state}
	}
	if s.pending == nil {
		return xspi.Command{}, fmt.Errorf("flashsim: %s without a pending command", op)
	}
	cmd := *s.pending
	s.pending = nil
	return cmd, nil
}

// MappedConfig returns the configuration of the last MemoryMapped call.
func (s *Sim) MappedConfig() xspi.MemoryMappedConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapped
}
