package main

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/moffa90/go-norflash/norflash"
)

// progressPrinter returns a callback drawing a one-line progress bar, or
// nil when w is not a terminal.
func progressPrinter(w io.Writer) norflash.ProgressCallback {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	width := 40
	if cols, _, err := term.GetSize(int(f.Fd())); err == nil && cols > 40 {
		width = cols - 40
	}
	return func(p norflash.Progress) {
		filled := int(p.Percentage / 100 * float64(width))
		bar := make([]byte, width)
		for i := range bar {
			if i < filled {
				bar[i] = '#'
			} else {
				bar[i] = '.'
			}
		}
		fmt.Fprintf(w, "\r%-11s [%s] %5.1f%% %d/%d", p.Phase, bar, p.Percentage, p.Sector+1, p.TotalSectors)
		if p.Phase == norflash.PhaseComplete {
			fmt.Fprintln(w)
		}
	}
}
