package norflash

import (
	"time"

	"github.com/go-logr/logr"
)

// Write phases reported through ProgressCallback.
const (
	PhaseReading     = "reading"
	PhaseErasing     = "erasing"
	PhaseProgramming = "programming"
	PhaseComplete    = "complete"
)

// Progress describes how far a Write has got.
type Progress struct {
	// Phase is one of PhaseReading, PhaseErasing, PhaseProgramming or
	// PhaseComplete
	Phase string

	// Sector is the index of the sector being worked on, counted from the
	// first sector the write touches
	Sector int

	// TotalSectors is the number of sectors the write touches
	TotalSectors int

	// Percentage is the completion percentage (0.0 to 100.0)
	Percentage float64

	// BytesWritten is the number of caller bytes committed so far
	BytesWritten int

	// ElapsedTime is the time since the write started
	ElapsedTime time.Duration
}

// ProgressCallback is called from the writing goroutine and should return
// quickly.
//
// Example:
//
//	f := norflash.New(bus,
//	    norflash.WithProgressCallback(func(p norflash.Progress) {
//	        fmt.Printf("[%s] %.1f%% - sector %d/%d\n",
//	            p.Phase, p.Percentage, p.Sector+1, p.TotalSectors)
//	    }),
//	)
type ProgressCallback func(Progress)

// Logger is an optional logging interface so any logging framework can be
// plugged in. LogrLogger adapts a logr.Logger.
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...interface{})
}

type logrLogger struct {
	log logr.Logger
}

// LogrLogger returns a Logger writing to l. Debug messages go to V(1).
//
// Example with zap:
//
//	zl, _ := zap.NewDevelopment()
//	f := norflash.New(bus, norflash.WithLogger(norflash.LogrLogger(zapr.NewLogger(zl))))
func LogrLogger(l logr.Logger) Logger {
	return logrLogger{log: l}
}

func (l logrLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.log.V(1).Info(msg, keysAndValues...)
}

func (l logrLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Info(msg, keysAndValues...)
}

// Error lifts an "error" key out of keysAndValues so logr sees it as the
// error value.
func (l logrLogger) Error(msg string, keysAndValues ...interface{}) {
	var err error
	rest := make([]interface{}, 0, len(keysAndValues))
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 < len(keysAndValues) && keysAndValues[i] == "error" {
			if e, ok := keysAndValues[i+1].(error); ok && err == nil {
				err = e
				continue
			}
		}
		rest = append(rest, keysAndValues[i])
		if i+1 < len(keysAndValues) {
			rest = append(rest, keysAndValues[i+1])
		}
	}
	l.log.Error(err, msg, rest...)
}
