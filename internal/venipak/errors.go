package venipak

import (
	"errors"
	"fmt"
)

// ErrNotConfigured means carrier credentials are absent; checked before any
// network call.
var ErrNotConfigured = errors.New("venipak credentials are not configured")

// ErrPickupPointCode is the promoted data-quality failure: a pickup-point
// order without a carrier-issued point code. The carrier would reject the
// manifest anyway, so the builder fails fast instead of submitting an empty
// company_code.
var ErrPickupPointCode = errors.New("pickup point carrier code is missing")

// TransportError covers network failures, timeouts and non-2xx responses.
// Raw status and body are kept for diagnostics.
type TransportError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("venipak %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("venipak %s failed: status %d", e.Op, e.Status)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ParseError means a carrier response could not be interpreted as the
// expected XML, PDF or JSON.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("venipak response unreadable: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("venipak response unreadable: %s", e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// CarrierError is an explicit rejection from the carrier with its literal,
// operator-facing reason text.
type CarrierError struct {
	Reason string
}

func (e *CarrierError) Error() string {
	return fmt.Sprintf("carrier rejected shipment: %s", e.Reason)
}
