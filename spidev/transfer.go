package spidev

import (
	"fmt"

	"github.com/moffa90/go-norflash/xspi"
)

// Transfer is one segment of a SPI message. Exactly one of Tx and Rx is
// set.
type Transfer struct {
	Tx      []byte
	Rx      []byte
	TxNBits uint8
	RxNBits uint8
	SpeedHz uint32
}

func nbits(l xspi.Lines, phase string) (uint8, error) {
	switch l {
	case xspi.Lines1, xspi.Lines2, xspi.Lines4:
		return uint8(l), nil
	}
	return 0, &xspi.PhaseError{Phase: phase, Lines: l}
}

// buildTransfers lays out cmd as one transfer per phase. tx is the data
// phase to send, or rx the buffer to receive it into; at most one may be
// non-empty.
func buildTransfers(cmd xspi.Command, tx, rx []byte, speed uint32) ([]Transfer, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if len(tx) > 0 && len(rx) > 0 {
		return nil, fmt.Errorf("spidev: data phase cannot both send and receive")
	}

	var out []Transfer

	n, err := nbits(cmd.InstructionLines, "instruction")
	if err != nil {
		return nil, err
	}
	out = append(out, Transfer{Tx: []byte{cmd.Instruction}, TxNBits: n, SpeedHz: speed})

	// Dummy cycles are clocked at the address width, or the instruction
	// width when there is no address.
	dummyLines := cmd.InstructionLines
	if cmd.AddressLines != xspi.LinesNone {
		n, err := nbits(cmd.AddressLines, "address")
		if err != nil {
			return nil, err
		}
		size := cmd.AddressBytes()
		addr := make([]byte, size)
		for i := 0; i < size; i++ {
			addr[i] = byte(cmd.Address >> (8 * (size - 1 - i)))
		}
		out = append(out, Transfer{Tx: addr, TxNBits: n, SpeedHz: speed})
		dummyLines = cmd.AddressLines
	}

	if cmd.DummyCycles > 0 {
		bits := cmd.DummyCycles * int(dummyLines)
		if bits%8 != 0 {
			return nil, fmt.Errorf("spidev: %d dummy cycles on %d lines is not a whole number of bytes: %w",
				cmd.DummyCycles, dummyLines, xspi.ErrUnsupported)
		}
		n, _ := nbits(dummyLines, "dummy")
		out = append(out, Transfer{Tx: make([]byte, bits/8), TxNBits: n, SpeedHz: speed})
	}

	if cmd.HasData() && (len(tx) > 0 || len(rx) > 0) {
		n, err := nbits(cmd.DataLines, "data")
		if err != nil {
			return nil, err
		}
		if len(tx) > 0 {
			out = append(out, Transfer{Tx: tx, TxNBits: n, SpeedHz: speed})
		} else {
			out = append(out, Transfer{Rx: rx, RxNBits: n, SpeedHz: speed})
		}
	}
	return out, nil
}
