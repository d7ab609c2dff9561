// internal/recovery/recovery.go
package recovery

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"
)

// ErrPanic marks an error produced from a recovered panic
var ErrPanic = errors.New("panic")

// PanicError carries a recovered panic value and the stack at the panic site.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Is reports whether target is ErrPanic
func (e *PanicError) Is(target error) bool {
	return target == ErrPanic
}

// HandlePanic should be deferred at the top of main().
// It logs panic details and exits with code 1.
func HandlePanic() {
	if r := recover(); r != nil {
		_, _ = fmt.Fprintf(os.Stderr, "FATAL: %v\n\nStack trace:\n%s\n", r, debug.Stack())
		os.Exit(1)
	}
}

// Capture runs fn and converts a panic into a *PanicError, so one bad input
// fails its own work item instead of the whole process.
func Capture(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}

// Usage in worker goroutines:
//g.Go(func() error {
//	rows[i].Err = recovery.Capture(func() error {
//		return process(files[i])
//	})
//	return nil
//})
