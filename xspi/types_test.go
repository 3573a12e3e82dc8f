package xspi

import (
	"errors"
	"strings"
	"testing"
)

func TestPollMatches(t *testing.T) {
	tests := []struct {
		name   string
		poll   Poll
		status uint32
		want   bool
	}{
		{
			name:   "busy bit clear on both lanes",
			poll:   Poll{Match: 0x0000, Mask: 0x0101},
			status: 0x0202,
			want:   true,
		},
		{
			name:   "busy bit set on second lane",
			poll:   Poll{Match: 0x0000, Mask: 0x0101},
			status: 0x0100,
			want:   false,
		},
		{
			name:   "write enable latch set on both lanes",
			poll:   Poll{Match: 0x0202, Mask: 0x0202},
			status: 0x0303,
			want:   true,
		},
		{
			name:   "or mode with one lane matching",
			poll:   Poll{Match: 0x0202, Mask: 0x0202, Mode: MatchOr},
			status: 0x0002,
			want:   true,
		},
		{
			name:   "or mode with no lane matching",
			poll:   Poll{Match: 0x0202, Mask: 0x0202, Mode: MatchOr},
			status: 0x0000,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.poll.Matches(tt.status); got != tt.want {
				t.Errorf("Matches(0x%04X) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestCommandValidate(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		wantErr bool
	}{
		{
			name: "instruction only",
			cmd:  Command{Instruction: 0x06, InstructionLines: Lines1},
		},
		{
			name: "quad read",
			cmd: Command{Instruction: 0xEB, InstructionLines: Lines1, AddressLines: Lines4,
				AddressBits: 24, DataLines: Lines4, DataLength: 16, DummyCycles: 6},
		},
		{
			name:    "missing instruction phase",
			cmd:     Command{Instruction: 0x06},
			wantErr: true,
		},
		{
			name:    "three line data phase",
			cmd:     Command{Instruction: 0x03, InstructionLines: Lines1, DataLines: Lines(3)},
			wantErr: true,
		},
		{
			name:    "sixteen bit address",
			cmd:     Command{Instruction: 0x03, InstructionLines: Lines1, AddressLines: Lines1, AddressBits: 16},
			wantErr: true,
		},
		{
			name:    "negative dummy cycles",
			cmd:     Command{Instruction: 0x0B, InstructionLines: Lines1, DummyCycles: -1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate()
			if tt.wantErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestCommandAddressBytes(t *testing.T) {
	if n := (Command{}).AddressBytes(); n != 0 {
		t.Errorf("no address phase: got %d bytes, want 0", n)
	}
	if n := (Command{AddressLines: Lines1}).AddressBytes(); n != 3 {
		t.Errorf("default width: got %d bytes, want 3", n)
	}
	if n := (Command{AddressLines: Lines4, AddressBits: 32}).AddressBytes(); n != 4 {
		t.Errorf("32-bit width: got %d bytes, want 4", n)
	}
}

func TestStateError(t *testing.T) {
	err := &StateError{Operation: "command", State: StateBusyMemoryMapped}

	if !errors.Is(err, ErrState) {
		t.Error("StateError should match ErrState")
	}
	if !strings.Contains(err.Error(), "busy-memory-mapped") {
		t.Errorf("error message should name the state, got: %s", err.Error())
	}
}

func TestOrganizationLanes(t *testing.T) {
	if SingleMemory.Lanes() != 1 {
		t.Errorf("SingleMemory.Lanes() = %d, want 1", SingleMemory.Lanes())
	}
	if DualMemory.Lanes() != 2 {
		t.Errorf("DualMemory.Lanes() = %d, want 2", DualMemory.Lanes())
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateReset, "reset"},
		{StateReady, "ready"},
		{StateBusyCommand, "busy-command"},
		{StateBusyMemoryMapped, "busy-memory-mapped"},
		{StateFault, "fault"},
		{State(42), "State(42)"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", uint8(tt.state), got, tt.want)
		}
	}

	// The fault state and the error type are distinct identifiers.
	var err error = &StateError{Operation: "receive", State: StateFault}
	if !strings.Contains(err.Error(), "fault") {
		t.Errorf("error message should name the fault state, got: %s", err.Error())
	}
}
