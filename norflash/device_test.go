package norflash

import (
	"testing"
	"time"
)

func TestDefaultDevicesGeometry(t *testing.T) {
	for _, dev := range DefaultDevices(DefaultTimeouts()) {
		t.Run(dev.Name(), func(t *testing.T) {
			p := dev.Parameters()
			if err := p.Validate(); err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if p.PagesPerSector()*p.PageSize != p.SectorSize {
				t.Errorf("pages do not tile the sector: %+v", p)
			}
			if p.SectorSize > DefaultScratchSize {
				t.Errorf("sector size 0x%X exceeds default scratch size", p.SectorSize)
			}
			if p.EmptyValue != 0xFF {
				t.Errorf("EmptyValue = 0x%02X, want 0xFF", p.EmptyValue)
			}
		})
	}
}

func TestDefaultDevicesOrder(t *testing.T) {
	devs := DefaultDevices(DefaultTimeouts())
	want := []Type{TypeW25Q128Dual, TypeW25Q128Single}
	if len(devs) != len(want) {
		t.Fatalf("DefaultDevices() returned %d devices, want %d", len(devs), len(want))
	}
	for i, dev := range devs {
		if dev.Type() != want[i] {
			t.Errorf("device %d = %v, want %v", i, dev.Type(), want[i])
		}
	}
}

func TestParametersValidate(t *testing.T) {
	tests := []struct {
		name    string
		params  Parameters
		wantErr bool
	}{
		{
			name:   "w25q128",
			params: Parameters{ChipSize: 16 << 20, BlockSize: 64 << 10, SectorSize: 4 << 10, PageSize: 256},
		},
		{
			name:    "zero page",
			params:  Parameters{ChipSize: 16 << 20, BlockSize: 64 << 10, SectorSize: 4 << 10},
			wantErr: true,
		},
		{
			name:    "page does not divide sector",
			params:  Parameters{ChipSize: 16 << 20, BlockSize: 64 << 10, SectorSize: 4 << 10, PageSize: 384},
			wantErr: true,
		},
		{
			name:    "sector does not divide block",
			params:  Parameters{ChipSize: 16 << 20, BlockSize: 64 << 10, SectorSize: 24 << 10, PageSize: 256},
			wantErr: true,
		},
		{
			name:    "block does not divide chip",
			params:  Parameters{ChipSize: 100 << 10, BlockSize: 64 << 10, SectorSize: 4 << 10, PageSize: 256},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTimeoutsValidate(t *testing.T) {
	if err := DefaultTimeouts().Validate(); err != nil {
		t.Fatalf("DefaultTimeouts().Validate() error = %v", err)
	}

	d := DefaultTimeouts()
	if !(d.ChipErase > d.BlockErase && d.BlockErase >= d.SectorErase && d.SectorErase > d.PageProgram && d.PageProgram > 0) {
		t.Errorf("default timeouts out of order: %+v", d)
	}

	tests := []struct {
		name   string
		modify func(*Timeouts)
	}{
		{"zero page program", func(t *Timeouts) { t.PageProgram = 0 }},
		{"sector not above page", func(t *Timeouts) { t.SectorErase = t.PageProgram }},
		{"block below sector", func(t *Timeouts) { t.BlockErase = t.SectorErase - time.Millisecond }},
		{"chip not above block", func(t *Timeouts) { t.ChipErase = t.BlockErase }},
		{"negative poll interval", func(t *Timeouts) { t.PollInterval = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			to := DefaultTimeouts()
			tt.modify(&to)
			if err := to.Validate(); err == nil {
				t.Error("Validate() error = nil, want error")
			}
		})
	}
}

func TestTypeString(t *testing.T) {
	tests := []struct {
		typ  Type
		want string
	}{
		{TypeUnknown, "unknown"},
		{TypeW25Q128Dual, "w25q128-dual"},
		{TypeW25Q128Single, "w25q128"},
		{Type(9), "Type(9)"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.typ, got, tt.want)
		}
	}
}
