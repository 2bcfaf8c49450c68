// Package monitoring holds the process-wide diagnostic logger.
package monitoring

import (
	"fmt"
	"log"
)

// Logf is the package-level diagnostic logger used by the ingest pipeline,
// stream connections and HTTP middleware. It defaults to log.Printf and may
// be replaced by SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op
// logger, which mutes diagnostics entirely.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Capture redirects the package logger into the returned slice pointer and
// gives back a restore function. Tests use it to assert on dropped-payload
// and reconnect diagnostics.
func Capture() (*[]string, func()) {
	original := Logf
	var lines []string
	Logf = func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	}
	return &lines, func() { Logf = original }
}
