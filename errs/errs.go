// Package errs defines the error taxonomy shared by the scanner and its
// upstream clients. The orchestrator and HTTP layer branch on these types
// with errors.As; everything else wraps them with fmt.Errorf("%w").
package errs

import "fmt"

// ConfigError reports a missing or invalid required configuration value.
// It is fatal: the process refuses to start rather than computing spreads
// from a silently defaulted value.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}

// AuthError reports a credential rejected (or absent) for one upstream.
// It is fatal for that upstream's calls and surfaced to the caller.
type AuthError struct {
	Source string
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s auth: %s", e.Source, e.Reason)
}

// UpstreamError reports a non-auth upstream failure: transport error,
// unexpected HTTP status or a malformed payload. Status is zero when the
// failure happened before a response arrived.
type UpstreamError struct {
	Source string
	Status int
	Reason string
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Source, e.Status, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Reason)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ParseError reports a raw record that could not be normalized. Rows
// carrying it are dropped, never fatal.
type ParseError struct {
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.Field, e.Reason)
}
