// Package ihex parses Intel HEX firmware images for programming into NOR
// flash.
//
// # File Format
//
// Each line is one record:
//
//	:LLAAAATT<data>CC
//
// LL is the data length, AAAA the 16-bit load offset, TT the record type
// and CC the two's-complement checksum of every preceding byte. Supported
// record types:
//   - 00 data
//   - 01 end of file
//   - 02 extended segment address (base = value << 4)
//   - 03 start segment address (CS:IP)
//   - 04 extended linear address (base = value << 16)
//   - 05 start linear address
//
// # Usage
//
//	img, err := ihex.Parse("app.hex")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	// Linked for the memory-mapped window at 0x90000000.
//	img, err = img.Base(0x90000000)
//	for _, seg := range img.Segments {
//	    if err := flash.Write(ctx, seg.Address, seg.Data); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//
// Records that are adjacent in memory are merged, so a typical image
// produces one segment per linker section.
package ihex
