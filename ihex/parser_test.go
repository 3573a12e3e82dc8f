package ihex

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseReader(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    *Image
		wantErr bool
		errMsg  string
	}{
		{
			name: "adjacent records merge",
			input: ":0400000001020304F2\n" +
				":020004000506EF\n" +
				":00000001FF\n",
			want: &Image{Segments: []Segment{
				{Address: 0, Data: []byte{1, 2, 3, 4, 5, 6}},
			}},
		},
		{
			name: "gap starts a new segment",
			input: ":0400000001020304F2\n" +
				":01001000AA45\n" +
				":00000001FF\n",
			want: &Image{Segments: []Segment{
				{Address: 0, Data: []byte{1, 2, 3, 4}},
				{Address: 0x10, Data: []byte{0xAA}},
			}},
		},
		{
			name: "out of order records are sorted",
			input: ":01001000AA45\n" +
				":0400000001020304F2\n" +
				":00000001FF\n",
			want: &Image{Segments: []Segment{
				{Address: 0, Data: []byte{1, 2, 3, 4}},
				{Address: 0x10, Data: []byte{0xAA}},
			}},
		},
		{
			name: "extended linear address and start address",
			input: ":0200000490006A\n" +
				":04010000DEADBEEFC3\n" +
				":040000059000010165\n" +
				":00000001FF\n",
			want: &Image{
				Segments:     []Segment{{Address: 0x90000100, Data: []byte{0xDE, 0xAD, 0xBE, 0xEF}}},
				StartAddress: 0x90000101,
				HasStart:     true,
			},
		},
		{
			name: "extended segment address",
			input: ":020000021000EC\n" +
				":0400000001020304F2\n" +
				":0400000312340010A3\n" +
				":00000001FF\n",
			want: &Image{
				Segments:     []Segment{{Address: 0x10000, Data: []byte{1, 2, 3, 4}}},
				StartAddress: 0x12340 + 0x10,
				HasStart:     true,
			},
		},
		{
			name: "record crossing a 64K offset boundary",
			input: ":04FFFE0001020304F5\n" +
				":00000001FF\n",
			want: &Image{Segments: []Segment{{Address: 0xFFFE, Data: []byte{1, 2, 3, 4}}}},
		},
		{
			name: "blank lines and trailing garbage after EOF",
			input: "\n:0400000001020304F2\n\n:00000001FF\nnot a record\n",
			want: &Image{Segments: []Segment{{Address: 0, Data: []byte{1, 2, 3, 4}}}},
		},
		{
			name:    "missing EOF",
			input:   ":0400000001020304F2\n",
			wantErr: true,
			errMsg:  "missing end-of-file record",
		},
		{
			name:    "no colon",
			input:   "0400000001020304F2\n",
			wantErr: true,
			errMsg:  "must start with ':'",
		},
		{
			name:    "checksum mismatch",
			input:   ":0400000001020304FF\n:00000001FF\n",
			wantErr: true,
			errMsg:  "checksum mismatch",
		},
		{
			name:    "length mismatch",
			input:   ":0500000001020304F1\n:00000001FF\n",
			wantErr: true,
			errMsg:  "data length mismatch",
		},
		{
			name:    "invalid hex",
			input:   ":04000000010203ZZF2\n",
			wantErr: true,
			errMsg:  "invalid hex data",
		},
		{
			name:    "too short",
			input:   ":0000\n",
			wantErr: true,
			errMsg:  "record too short",
		},
		{
			name:    "unsupported record type",
			input:   ":00000006FA\n",
			wantErr: true,
			errMsg:  "unsupported record type 0x06",
		},
		{
			name: "overlapping data",
			input: ":0400000001020304F2\n" +
				":020002000909EA\n" +
				":00000001FF\n",
			wantErr: true,
			errMsg:  "overlaps segment",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReader(strings.NewReader(tt.input))

			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.errMsg)
				}
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("error = %v, want substring %q", err, tt.errMsg)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("image mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.hex")
	if err := os.WriteFile(path, []byte(":0400000001020304F2\n:00000001FF\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	img, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if img.Size() != 4 {
		t.Errorf("Size() = %d, want 4", img.Size())
	}

	if _, err := Parse(filepath.Join(t.TempDir(), "missing.hex")); err == nil {
		t.Error("Parse() of missing file error = nil, want error")
	}
}

func TestImageBase(t *testing.T) {
	img := &Image{
		Segments: []Segment{
			{Address: 0x90000000, Data: []byte{1, 2}},
			{Address: 0x90010000, Data: []byte{3}},
		},
		StartAddress: 0x90000401,
		HasStart:     true,
	}

	got, err := img.Base(0x90000000)
	if err != nil {
		t.Fatalf("Base() error = %v", err)
	}
	want := &Image{
		Segments: []Segment{
			{Address: 0, Data: []byte{1, 2}},
			{Address: 0x10000, Data: []byte{3}},
		},
		StartAddress: 0x90000401,
		HasStart:     true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Base() mismatch (-want +got):\n%s", diff)
	}

	if _, err := img.Base(0x90000001); err == nil {
		t.Error("Base() above first segment error = nil, want error")
	}
}
