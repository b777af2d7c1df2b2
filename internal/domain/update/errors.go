package update

import (
	"errors"
	"fmt"
)

// errLastBuildMissing is returned when a manifest has no last_build field.
var errLastBuildMissing = errors.New("last_build field is missing")

// ParseError reports a manifest that could not be decoded.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid manifest: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// FetchError reports an artifact that could not be retrieved from the
// content source. It is transient: nothing local was mutated and the
// next scheduled cycle retries.
type FetchError struct {
	// Name is the artifact name that was requested.
	Name string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Name, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// VerificationError reports a signature that did not verify against the
// trust anchor. It is a trust failure, reported distinctly from fetch
// problems because it may indicate tampering; the artifact is discarded.
type VerificationError struct {
	// Artifact is the artifact name whose signature failed.
	Artifact string
	Err      error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verify %s: %v", e.Artifact, e.Err)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

// RuntimeError reports a container runtime operation that failed.
// The swap stage it occurred in is aborted; wherever the failure landed
// before the unit-swap point, the prior canonical unit keeps serving.
type RuntimeError struct {
	// Op is the runtime operation that failed (load, start, stop, ...).
	Op  string
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime %s: %v", e.Op, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// StateError reports a local state read or write failure. It is fatal
// for the cycle: the agent never commits on an uncertain write outcome.
type StateError struct {
	// Op is the state operation that failed (load, commit).
	Op  string
	Err error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state %s: %v", e.Op, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}
