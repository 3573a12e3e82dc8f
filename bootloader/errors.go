package bootloader

import (
	"errors"
	"fmt"
)

// ErrJumpReturned is returned when the Jumper returns without error.
// A successful hand-off never returns.
var ErrJumpReturned = errors.New("bootloader: jump returned")

// InvalidImageError indicates the vector table at the application offset
// is not bootable.
type InvalidImageError struct {
	Offset uint32
	Vector VectorTable
	Reason string
}

func (e *InvalidImageError) Error() string {
	return fmt.Sprintf("invalid image at offset 0x%08X: %s (sp=0x%08X, reset=0x%08X)",
		e.Offset, e.Reason, e.Vector.StackPointer, e.Vector.ResetHandler)
}
