// Package monitoring holds the process-wide diagnostic logger shared by the
// command, storage and HTTP layers.
package monitoring

import (
	"fmt"
	"log"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// RunLogf logs a message tagged with a simulation run ID so interleaved output
// from concurrent runs (API server) can be told apart.
func RunLogf(runID string, format string, v ...interface{}) {
	if len(runID) > 8 {
		runID = runID[:8]
	}
	Logf("[run %s] %s", runID, fmt.Sprintf(format, v...))
}
