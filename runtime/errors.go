// Package runtime acquires usable remote compute runtimes.
//
// This file defines the acquisition error taxonomy. Callers use
// errors.As with *AcquisitionError (or the Is* helpers) rather than
// string matching.
package runtime

import (
	"errors"
	"fmt"
)

// AcquisitionErrorKind classifies acquisition failures.
type AcquisitionErrorKind int

const (
	// AcquisitionUnavailable indicates the provider has no capacity or
	// reported a terminal failure for the requested runtime.
	AcquisitionUnavailable AcquisitionErrorKind = iota
	// AcquisitionQuota indicates the caller's quota is exhausted.
	AcquisitionQuota
	// AcquisitionTimeout indicates the overall acquisition deadline passed.
	AcquisitionTimeout
	// AcquisitionAuth indicates the token provider or provider API
	// rejected the caller's credentials.
	AcquisitionAuth
)

// AcquisitionError is a fatal runtime acquisition failure.
// No partial channel exists when one of these is returned.
type AcquisitionError struct {
	Kind AcquisitionErrorKind
	Msg  string
	Err  error
}

func (e *AcquisitionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

// IsQuotaError returns true if acquisition failed on quota.
func IsQuotaError(err error) bool {
	return acquisitionKind(err) == AcquisitionQuota
}

// IsTimeoutError returns true if acquisition hit its deadline.
func IsTimeoutError(err error) bool {
	return acquisitionKind(err) == AcquisitionTimeout
}

// IsAuthError returns true if acquisition failed on credentials.
func IsAuthError(err error) bool {
	return acquisitionKind(err) == AcquisitionAuth
}

// IsUnavailableError returns true if the provider could not supply a runtime.
func IsUnavailableError(err error) bool {
	return acquisitionKind(err) == AcquisitionUnavailable
}

func acquisitionKind(err error) AcquisitionErrorKind {
	var acqErr *AcquisitionError
	if errors.As(err, &acqErr) {
		return acqErr.Kind
	}
	return AcquisitionErrorKind(-1)
}
