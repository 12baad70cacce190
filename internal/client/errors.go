// Package client attaches, removes and inspects effects on a mounted
// badfs filesystem through its extended-attribute protocol.
//
// This file contains error types and error handling utilities.
package client

import (
	"fmt"

	"badfs/internal/logging"
)

var errLogger = logging.GetLogger().WithPrefix("error")

// Error wraps attribute-protocol errors with context about the operation
// and the affected target. The underlying syscall error is preserved
// verbatim; the client never retries or masks it.
type Error struct {
	Op     string // Operation that failed (e.g. "attach", "stats")
	Target string // Affected path or descriptor
	Err    error  // Underlying error
}

// Error implements the error interface, providing a formatted error message
func (e *Error) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("operation %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("operation %s on %s failed: %v", e.Op, e.Target, e.Err)
}

// Unwrap implements error unwrapping for the errors.Is/As functions
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op string, target Target, err error) *Error {
	cerr := &Error{Op: op, Target: target.String(), Err: err}
	errLogger.Debug("Created new client error: %v", cerr)
	return cerr
}

// Common operation names for consistent logging and error reporting
const (
	OpAttach     = "attach"      // Writing an effect's record
	OpRemove     = "remove"      // Deleting a specific effect
	OpClear      = "clear"       // Dropping all effects on a target
	OpDisplay    = "display"     // Reading back a stored effect
	OpDisplayAll = "display-all" // Listing every effect in scope
	OpStats      = "stats"       // Reading aggregate counters
	OpInode      = "inode"       // Reading the inode sentinel
)
