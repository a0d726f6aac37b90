package observability

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic absorbs a panic in a background task, logging the value
// and stack. Call it in a defer; operation names the task for the log
// line. The panic is not re-raised.
func RecoverPanic(logger *Logger, operation string) {
	r := recover()
	if r == nil {
		return
	}
	logger.WithFields(map[string]interface{}{
		"panic":     r,
		"stack":     string(debug.Stack()),
		"operation": operation,
	}).Error("PANIC recovered")
}

// MustRecover turns a recovered panic value into an error, nil when no
// panic occurred.
func MustRecover(r interface{}) error {
	if r == nil {
		return nil
	}
	return fmt.Errorf("panic: %v", r)
}
