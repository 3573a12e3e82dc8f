package bootloader

import (
	"strings"
	"testing"
)

func TestInvalidImageError(t *testing.T) {
	err := &InvalidImageError{
		Offset: 0x20000,
		Vector: VectorTable{StackPointer: 0x20080004, ResetHandler: 0x90000401},
		Reason: "stack pointer not 8-byte aligned",
	}

	errMsg := err.Error()

	for _, want := range []string{"0x00020000", "8-byte aligned", "sp=0x20080004", "reset=0x90000401"} {
		if !strings.Contains(errMsg, want) {
			t.Errorf("error message should contain %q, got: %s", want, errMsg)
		}
	}
}
