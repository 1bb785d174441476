// Package debug provides conditional debug logging for burrow.
//
// Debug logging is enabled by setting the BURROW_DEBUG environment variable:
//
//	BURROW_DEBUG=1 burrow --db ops.db
//
// Messages are written to stderr with timestamps, or to the file named by
// BURROW_DEBUG_FILE so they do not tear the running TUI. When disabled
// (default), all debug functions are no-ops with zero overhead.
//
// Usage:
//
//	import "github.com/vanderheijden86/burrow/pkg/debug"
//
//	func myFunc() {
//	    debug.Logf("rendering %d nodes", count)
//	    // ...
//	    debug.LogTiming("myFunc", elapsed)
//	}
package debug

import (
	"fmt"
	"log"
	"os"
	"time"
)

var (
	// enabled is true when the BURROW_DEBUG env var is set
	enabled bool
	// logger writes to stderr (or BURROW_DEBUG_FILE) with a [BURROW_DEBUG] prefix
	logger *log.Logger
)

func init() {
	if os.Getenv("BURROW_DEBUG") == "" {
		return
	}
	enabled = true
	logger = log.New(debugWriter(), "[BURROW_DEBUG] ", log.Ltime|log.Lmicroseconds)
}

func debugWriter() *os.File {
	if path := os.Getenv("BURROW_DEBUG_FILE"); path != "" {
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			return f
		}
	}
	return os.Stderr
}

// Enabled returns whether debug logging is enabled.
func Enabled() bool {
	return enabled
}

// SetEnabled allows programmatic control of debug logging.
func SetEnabled(e bool) {
	enabled = e
	if e && logger == nil {
		logger = log.New(debugWriter(), "[BURROW_DEBUG] ", log.Ltime|log.Lmicroseconds)
	}
}

// Log writes a plain debug message if debug logging is enabled.
func Log(msg string) {
	if !enabled {
		return
	}
	logger.Print(msg)
}

// Logf writes a formatted debug message if debug logging is enabled.
func Logf(format string, args ...any) {
	if !enabled {
		return
	}
	logger.Printf(format, args...)
}

// LogTiming writes a timing message if debug logging is enabled.
func LogTiming(name string, d time.Duration) {
	if !enabled {
		return
	}
	logger.Printf("%s took %v", name, d)
}

// LogEnterExit logs function entry and exit with timing.
// Usage:
//
//	func myFunc() {
//	    defer debug.LogEnterExit("myFunc")()
//	    // ...
//	}
func LogEnterExit(name string) func() {
	if !enabled {
		return func() {}
	}
	logger.Printf("-> %s", name)
	start := time.Now()
	return func() {
		logger.Printf("<- %s (%v)", name, time.Since(start))
	}
}

// Dump logs a value with its type for debugging complex structures.
func Dump(name string, v any) {
	if !enabled {
		return
	}
	logger.Printf("%s: %T = %+v", name, v, v)
}

// Section logs a section header for visual organization in debug output.
func Section(name string) {
	if !enabled {
		return
	}
	logger.Printf("=== %s ===", name)
}

// Assert logs a message and panics if the condition is false.
// Only active when debug is enabled.
func Assert(cond bool, msg string) {
	if !enabled {
		return
	}
	if !cond {
		logger.Printf("ASSERTION FAILED: %s", msg)
		panic(fmt.Sprintf("debug assertion failed: %s", msg))
	}
}

// AssertNoError logs and panics if err is not nil.
// Only active when debug is enabled.
func AssertNoError(err error, context string) {
	if !enabled {
		return
	}
	if err != nil {
		logger.Printf("ASSERTION FAILED: %s: %v", context, err)
		panic(fmt.Sprintf("debug assertion failed: %s: %v", context, err))
	}
}
