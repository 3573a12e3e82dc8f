package norflash

import (
	"context"
	"fmt"
	"time"
)

// Write stores data at address, erasing only the sectors whose existing
// contents cannot be turned into data by clearing bits.
//
// Each touched sector is read into the scratch buffer. If the target range
// within it is entirely erased, data is programmed page by page straight
// from the caller's slice. Otherwise the sector is erased and rewritten in
// full from the buffer, so bytes outside the range are preserved.
//
// ctx is checked before each sector. A sector that has been started runs
// to completion.
func (f *Flash) Write(ctx context.Context, address uint32, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.write(ctx, address, data)
}

func (f *Flash) write(ctx context.Context, address uint32, data []byte) error {
	if err := f.checkDirect(ctx); err != nil {
		return err
	}
	params := f.bound.Parameters()
	if int(params.SectorSize) > len(f.scratch) {
		return &BufferTooSmallError{SectorSize: params.SectorSize, Capacity: len(f.scratch)}
	}
	if err := f.checkRange(address, len(data)); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	sectorSize := params.SectorSize
	pageSize := params.PageSize
	sector := address / sectorSize
	offset := address % sectorSize
	total := int((uint64(address)+uint64(len(data))-1)/uint64(sectorSize) - uint64(sector) + 1)

	f.logInfo("Writing",
		"address", fmt.Sprintf("0x%08X", address),
		"length", len(data),
		"sectors", total)

	// Sectors already started are not interrupted by cancellation.
	opCtx := context.WithoutCancel(ctx)
	startTime := time.Now()
	written := 0
	report := func(phase string, index int) {
		f.reportProgress(Progress{
			Phase:        phase,
			Sector:       index,
			TotalSectors: total,
			Percentage:   float64(written) / float64(written+len(data)) * 100,
			BytesWritten: written,
			ElapsedTime:  time.Since(startTime),
		})
	}

	for index := 0; len(data) > 0; index++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cancelled: %w", err)
		}

		n := int(sectorSize - offset)
		if n > len(data) {
			n = len(data)
		}
		base := sector * sectorSize
		buf := f.scratch[:sectorSize]

		report(PhaseReading, index)
		if err := f.read(opCtx, base, buf); err != nil {
			return fmt.Errorf("read sector %d: %w", sector, err)
		}

		if erased(buf[offset:offset+uint32(n)], params.EmptyValue) {
			report(PhaseProgramming, index)
			if err := f.programRange(opCtx, base+offset, data[:n], pageSize); err != nil {
				return fmt.Errorf("program sector %d: %w", sector, err)
			}
		} else {
			report(PhaseErasing, index)
			if err := f.eraseSector(opCtx, base); err != nil {
				return fmt.Errorf("erase sector %d: %w", sector, err)
			}
			copy(buf[offset:], data[:n])

			report(PhaseProgramming, index)
			for page := uint32(0); page < sectorSize; page += pageSize {
				if err := f.programPage(opCtx, base+page, buf[page:page+pageSize]); err != nil {
					return fmt.Errorf("program sector %d: %w", sector, err)
				}
			}
		}

		data = data[n:]
		written += n
		sector++
		offset = 0
	}

	f.reportProgress(Progress{
		Phase:        PhaseComplete,
		Sector:       total - 1,
		TotalSectors: total,
		Percentage:   100,
		BytesWritten: written,
		ElapsedTime:  time.Since(startTime),
	})
	f.logInfo("Write complete", "bytes", written, "elapsed", time.Since(startTime))
	return nil
}

// programRange programs data at address, split so no program crosses a
// page boundary.
func (f *Flash) programRange(ctx context.Context, address uint32, data []byte, pageSize uint32) error {
	for len(data) > 0 {
		n := int(pageSize - address%pageSize)
		if n > len(data) {
			n = len(data)
		}
		if err := f.programPage(ctx, address, data[:n]); err != nil {
			return err
		}
		address += uint32(n)
		data = data[n:]
	}
	return nil
}

func erased(b []byte, empty byte) bool {
	for _, v := range b {
		if v != empty {
			return false
		}
	}
	return true
}

func (f *Flash) reportProgress(p Progress) {
	if f.config.ProgressCallback != nil {
		f.config.ProgressCallback(p)
	}
}
