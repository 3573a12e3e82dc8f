package ihex

import "fmt"

// Segment is a contiguous run of bytes.
type Segment struct {
	Address uint32
	Data    []byte
}

// End returns the address one past the last byte.
func (s Segment) End() uint64 {
	return uint64(s.Address) + uint64(len(s.Data))
}

// Image is a parsed HEX file. Segments are sorted by address and never
// overlap or touch.
type Image struct {
	Segments []Segment

	// StartAddress is the entry point from a type 03 or 05 record
	StartAddress uint32

	// HasStart reports whether a start address record was present
	HasStart bool
}

// Size returns the number of data bytes in the image.
func (img *Image) Size() int {
	n := 0
	for _, s := range img.Segments {
		n += len(s.Data)
	}
	return n
}

// Base returns a copy of the image with base subtracted from every
// address. It fails if any segment lies below base.
//
// Example, an image linked for the memory-mapped window:
//
//	img, err = img.Base(0x90000000)
func (img *Image) Base(base uint32) (*Image, error) {
	out := &Image{
		Segments:     make([]Segment, 0, len(img.Segments)),
		StartAddress: img.StartAddress,
		HasStart:     img.HasStart,
	}
	for _, s := range img.Segments {
		if s.Address < base {
			return nil, fmt.Errorf("segment at 0x%08X lies below base 0x%08X", s.Address, base)
		}
		out.Segments = append(out.Segments, Segment{Address: s.Address - base, Data: s.Data})
	}
	return out, nil
}
