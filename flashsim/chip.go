package flashsim

import "time"

const (
	pageSize   = 256
	sectorSize = 4 << 10
	blockSize  = 64 << 10
)

// Status register bits.
const (
	srBusy        = 1 << 0
	srWriteEnable = 1 << 1
	srQuadEnable  = 1 << 1
)

// chip is one NOR die. Sectors that were never programmed since the last
// erase are absent from mem and read as 0xFF.
type chip struct {
	size       uint32
	mem        map[uint32][]byte
	id         [2]byte
	wel        bool
	sr2        byte
	busyUntil  time.Duration
	resetArmed bool
	stuckBusy  bool
	lockedQuad bool
}

func newChip(cfg Config) *chip {
	return &chip{
		size:       cfg.ChipSize,
		mem:        make(map[uint32][]byte),
		id:         [2]byte{cfg.Manufacturer, cfg.Device},
		stuckBusy:  cfg.StuckBusy,
		lockedQuad: cfg.QuadEnableLocked,
	}
}

func (c *chip) busy(now time.Duration) bool {
	return c.stuckBusy || now < c.busyUntil
}

func (c *chip) status1(now time.Duration) byte {
	var sr byte
	if c.busy(now) {
		sr |= srBusy
	}
	if c.wel {
		sr |= srWriteEnable
	}
	return sr
}

func (c *chip) quad() bool {
	return c.sr2&srQuadEnable != 0
}

func (c *chip) load(addr uint32) byte {
	addr %= c.size
	sector, ok := c.mem[addr/sectorSize]
	if !ok {
		return 0xFF
	}
	return sector[addr%sectorSize]
}

// program clears the bits of v that are 0 at addr.
func (c *chip) program(addr uint32, v byte) {
	if sector := c.sectorFor(addr, v != 0xFF); sector != nil {
		sector[addr%c.size%sectorSize] &= v
	}
}

// store overwrites addr without NOR semantics.
func (c *chip) store(addr uint32, v byte) {
	if sector := c.sectorFor(addr, v != 0xFF); sector != nil {
		sector[addr%c.size%sectorSize] = v
	}
}

// sectorFor returns the sector holding addr. An absent sector is allocated
// erased when alloc is set and nil is returned otherwise.
func (c *chip) sectorFor(addr uint32, alloc bool) []byte {
	index := addr % c.size / sectorSize
	sector, ok := c.mem[index]
	if ok || !alloc {
		return sector
	}
	sector = make([]byte, sectorSize)
	for i := range sector {
		sector[i] = 0xFF
	}
	c.mem[index] = sector
	return sector
}

// erase sets [addr, addr+size) to 0xFF. addr is aligned down to size.
func (c *chip) erase(addr, size uint32) {
	addr %= c.size
	start := addr &^ (size - 1)
	for s := start / sectorSize; s < (start+size)/sectorSize; s++ {
		delete(c.mem, s)
	}
}

func (c *chip) eraseAll() {
	c.mem = make(map[uint32][]byte)
}

func (c *chip) reset() {
	c.wel = false
	c.busyUntil = 0
	c.resetArmed = false
}
