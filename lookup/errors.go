/*
errors.go - Error types for the lookup engine

PURPOSE:
  Expected negatives (blank query, not found, corrupt history) are NOT
  errors; they travel in Result or are absorbed by History. What remains
  here are the genuine failures.

ERROR CATEGORIES:
  1. Resolution errors - backend failed during the cascade
  2. Configuration errors - table definitions that cannot be used
  3. History errors - invalid capacity requests

USAGE:
    res := resolver.Resolve(ctx, q, cfg)
    if errors.Is(res.Err, lookup.ErrResolutionFailed) {
        var rerr *lookup.RemoteError
        errors.As(res.Err, &rerr) // rerr.Strategy, rerr.Field
    }

SEE ALSO:
  - resolver.go: Produces RemoteError
  - history.go:  Returns ErrInvalidCapacity
*/
package lookup

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrResolutionFailed marks a lookup aborted by a backend error.
	// Distinct from "not found", which is not an error at all.
	ErrResolutionFailed = errors.New("resolution failed")

	// ErrInvalidCapacity is returned by History.Resize for capacities < 1.
	ErrInvalidCapacity = errors.New("history capacity must be a positive integer")

	// ErrInvalidTableConfig is returned for table definitions missing required fields.
	ErrInvalidTableConfig = errors.New("invalid table config")

	// ErrTableNotConfigured is returned when a caller names a table with no config.
	ErrTableNotConfigured = errors.New("table not configured")

	// ErrUnknownTable is returned by backends when the table does not exist.
	ErrUnknownTable = errors.New("table does not exist")

	// ErrNotConnected is returned by backends that have no credentials.
	ErrNotConnected = errors.New("backend not connected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// RemoteError describes the cascade step that failed.
type RemoteError struct {
	Table    string
	Field    string
	Strategy string
	Err      error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("lookup on %s failed at %s: %v", e.Table, e.Strategy, e.Err)
}

// Unwrap exposes both ErrResolutionFailed and the backend cause.
func (e *RemoteError) Unwrap() []error {
	return []error{ErrResolutionFailed, e.Err}
}

// ConfigError describes an unusable TableConfig.
type ConfigError struct {
	Table  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("invalid table config: %s", e.Reason)
	}
	return fmt.Sprintf("invalid table config %q: %s", e.Table, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidTableConfig
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRemoteFailure returns true if the error came from the backend during a lookup.
func IsRemoteFailure(err error) bool {
	return errors.Is(err, ErrResolutionFailed)
}

// IsClientError returns true if the error is due to caller input.
// A bad table definition is the operator's problem, not the caller's.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidCapacity) ||
		errors.Is(err, ErrTableNotConfigured)
}
