// Package recovery wraps command runs with panic recovery and timing logs.
// Ensures a panic inside a writer or parser surfaces as an error instead of
// crashing the CLI.
package recovery

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
)

// RecoverToError wraps a function call with panic recovery.
// If the function panics, converts the panic to an error.
//
// Example:
//
//	err := recovery.RecoverToError(logger, "WriteGeoParquet", func() error {
//	    return table.WriteGeoParquet(w, t, opts)
//	})
func RecoverToError(logger *slog.Logger, operation string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()

			logger.Error("Panic recovered",
				"operation", operation,
				"panic", r,
				"stack", string(stack),
			)

			err = fmt.Errorf("%s panicked: %v", operation, r)
		}
	}()

	return fn()
}

// RecoverToValue wraps a function that returns a value and error.
// If the function panics, returns zero value and error.
func RecoverToValue[T any](logger *slog.Logger, operation string, fn func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()

			logger.Error("Panic recovered",
				"operation", operation,
				"panic", r,
				"stack", string(stack),
			)

			var zero T
			result = zero
			err = fmt.Errorf("%s panicked: %v", operation, r)
		}
	}()

	return fn()
}

// Track runs fn under RecoverToError and logs its start time, outcome,
// total duration and finish time.
//
// Example:
//
//	err := recovery.Track(logger, "search", func() error {
//	    return run(ctx)
//	})
func Track(logger *slog.Logger, operation string, fn func() error) error {
	return track(logger, operation, time.Now, fn)
}

func track(logger *slog.Logger, operation string, now func() time.Time, fn func() error) error {
	if logger == nil {
		logger = slog.Default()
	}

	start := now()
	logger.Info("Started", "operation", operation, "at", start.Format(time.RFC3339))

	err := RecoverToError(logger, operation, fn)

	end := now()
	if err != nil {
		logger.Error("FAIL", "operation", operation, "error", err)
	} else {
		logger.Info("SUCCESS", "operation", operation)
	}
	logger.Info("Total time", "operation", operation, "duration", end.Sub(start).Round(time.Millisecond).String())
	logger.Info("Finished", "operation", operation, "at", end.Format(time.RFC3339))

	return err
}
