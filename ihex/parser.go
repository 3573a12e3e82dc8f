package ihex

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// Record types.
const (
	RecordData                   = 0x00
	RecordEOF                    = 0x01
	RecordExtendedSegmentAddress = 0x02
	RecordStartSegmentAddress    = 0x03
	RecordExtendedLinearAddress  = 0x04
	RecordStartLinearAddress     = 0x05
)

// recordOverhead is length + address + type + checksum, in bytes
const recordOverhead = 5

// Parse parses an Intel HEX file from the given path.
//
// Example:
//
//	img, err := ihex.Parse("app.hex")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%d bytes in %d segments\n", img.Size(), len(img.Segments))
func Parse(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseReader(f)
}

type record struct {
	length int
	offset uint16
	typ    byte
	data   []byte
}

// ParseReader parses an Intel HEX image from any io.Reader. Parsing stops
// at the end-of-file record.
func ParseReader(r io.Reader) (*Image, error) {
	scanner := bufio.NewScanner(r)
	img := &Image{}

	var chunks []Segment
	var base uint32
	lineNum := 0
	sawEOF := false

	for !sawEOF && scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		rec, err := parseRecord(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		switch rec.typ {
		case RecordData:
			if len(rec.data) > 0 {
				data := make([]byte, len(rec.data))
				copy(data, rec.data)
				chunks = append(chunks, Segment{Address: base + uint32(rec.offset), Data: data})
			}
		case RecordEOF:
			sawEOF = true
		case RecordExtendedSegmentAddress:
			if len(rec.data) != 2 {
				return nil, fmt.Errorf("line %d: extended segment address needs 2 bytes, got %d", lineNum, len(rec.data))
			}
			base = (uint32(rec.data[0])<<8 | uint32(rec.data[1])) << 4
		case RecordExtendedLinearAddress:
			if len(rec.data) != 2 {
				return nil, fmt.Errorf("line %d: extended linear address needs 2 bytes, got %d", lineNum, len(rec.data))
			}
			base = (uint32(rec.data[0])<<8 | uint32(rec.data[1])) << 16
		case RecordStartSegmentAddress:
			if len(rec.data) != 4 {
				return nil, fmt.Errorf("line %d: start segment address needs 4 bytes, got %d", lineNum, len(rec.data))
			}
			cs := uint32(rec.data[0])<<8 | uint32(rec.data[1])
			ip := uint32(rec.data[2])<<8 | uint32(rec.data[3])
			img.StartAddress = cs<<4 + ip
			img.HasStart = true
		case RecordStartLinearAddress:
			if len(rec.data) != 4 {
				return nil, fmt.Errorf("line %d: start linear address needs 4 bytes, got %d", lineNum, len(rec.data))
			}
			img.StartAddress = uint32(rec.data[0])<<24 | uint32(rec.data[1])<<16 |
				uint32(rec.data[2])<<8 | uint32(rec.data[3])
			img.HasStart = true
		default:
			return nil, fmt.Errorf("line %d: unsupported record type 0x%02X", lineNum, rec.typ)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if !sawEOF {
		return nil, fmt.Errorf("missing end-of-file record")
	}

	segments, err := coalesce(chunks)
	if err != nil {
		return nil, err
	}
	img.Segments = segments
	return img, nil
}

// parseRecord decodes and checksums one line.
func parseRecord(line string) (*record, error) {
	if line[0] != ':' {
		return nil, fmt.Errorf("record must start with ':'")
	}
	raw, err := hex.DecodeString(line[1:])
	if err != nil {
		return nil, fmt.Errorf("invalid hex data: %w", err)
	}
	if len(raw) < recordOverhead {
		return nil, fmt.Errorf("record too short: got %d bytes, minimum is %d", len(raw), recordOverhead)
	}

	length := int(raw[0])
	if len(raw) != length+recordOverhead {
		return nil, fmt.Errorf("data length mismatch: got %d bytes, expected %d", len(raw)-recordOverhead, length)
	}

	var sum byte
	for _, b := range raw {
		sum += b
	}
	if sum != 0 {
		want := raw[len(raw)-1] - sum
		return nil, fmt.Errorf("checksum mismatch: got 0x%02X, expected 0x%02X", raw[len(raw)-1], want)
	}

	return &record{
		length: length,
		offset: uint16(raw[1])<<8 | uint16(raw[2]),
		typ:    raw[3],
		data:   raw[4 : 4+length],
	}, nil
}

// coalesce sorts chunks and merges those that touch. Overlapping chunks
// are an error.
func coalesce(chunks []Segment) ([]Segment, error) {
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Address < chunks[j].Address
	})

	var out []Segment
	for _, c := range chunks {
		if n := len(out); n > 0 {
			last := &out[n-1]
			switch {
			case uint64(c.Address) < last.End():
				return nil, fmt.Errorf("data at 0x%08X overlaps segment 0x%08X-0x%08X",
					c.Address, last.Address, last.End()-1)
			case uint64(c.Address) == last.End():
				last.Data = append(last.Data, c.Data...)
				continue
			}
		}
		out = append(out, Segment{Address: c.Address, Data: c.Data})
	}
	return out, nil
}
