package norflash

import (
	"context"
	"testing"

	"github.com/moffa90/go-norflash/flashsim"
	"github.com/moffa90/go-norflash/xspi"
)

func testTimeouts() Timeouts {
	t := DefaultTimeouts()
	t.ResetSettle = 0
	return t
}

type programCall struct {
	Address uint32
	Length  int
}

// countingDevice records the erase and program calls reaching a device.
type countingDevice struct {
	Device
	erases   []uint32
	programs []programCall
}

func (d *countingDevice) EraseSector(ctx context.Context, bus xspi.Bus, address uint32) error {
	d.erases = append(d.erases, address)
	return d.Device.EraseSector(ctx, bus, address)
}

func (d *countingDevice) ProgramPage(ctx context.Context, bus xspi.Bus, address uint32, data []byte) error {
	d.programs = append(d.programs, programCall{Address: address, Length: len(data)})
	return d.Device.ProgramPage(ctx, bus, address, data)
}

func (d *countingDevice) reset() {
	d.erases = nil
	d.programs = nil
}

// newBound returns a Flash bound to a simulated single chip through a
// counting device.
func newBound(t *testing.T, simOpts []flashsim.Option, opts ...Option) (*Flash, *flashsim.Sim, *countingDevice) {
	t.Helper()
	sim := flashsim.New(simOpts...)
	dev := &countingDevice{Device: NewW25Q128Single(testTimeouts())}
	f := New(sim, append([]Option{WithDevices(dev)}, opts...)...)
	typ, err := f.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if typ != TypeW25Q128Single {
		t.Fatalf("Probe() = %v, want %v", typ, TypeW25Q128Single)
	}
	sim.ResetTrace()
	return f, sim, dev
}

func fill(n int, v byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = v
	}
	return b
}

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*31 + 7)
	}
	return b
}

// stubDevice has no init sequence.
type stubDevice struct {
	Unimplemented
}

func (stubDevice) Type() Type   { return TypeUnknown }
func (stubDevice) Name() string { return "stub" }
func (stubDevice) Parameters() Parameters {
	return Parameters{EmptyValue: 0xFF, ChipSize: 1 << 20, BlockSize: 64 << 10, SectorSize: 4 << 10, PageSize: 256}
}
func (stubDevice) BusConfig() xspi.Config { return xspi.Config{} }
