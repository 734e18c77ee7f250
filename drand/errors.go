package drand

import (
	"errors"
	"fmt"
)

// ErrInvalidChainHash means there was an error or a mismatch with the chain hash
var ErrInvalidChainHash = errors.New("incorrect chain hash")

// ErrUnsupported means the transport in use cannot serve the request
var ErrUnsupported = errors.New("unsupported by this transport")

// Error kinds. Every error returned while fetching or verifying randomness
// matches exactly one of these with errors.Is.
var (
	// ErrTransport means the request itself failed: connection, timeout or non-2xx status.
	ErrTransport = errors.New("transport error")
	// ErrInvalidResponse means a response body did not have the expected shape.
	ErrInvalidResponse = errors.New("invalid response")
	// ErrMalformedHex means a hex field was not valid hex or had the wrong length.
	ErrMalformedHex = errors.New("malformed hex")
	// ErrInvalidPoint means a public key is not a valid group element.
	ErrInvalidPoint = errors.New("invalid point")
	// ErrVerification means the signature check could not be evaluated.
	ErrVerification = errors.New("cannot verify randomness")
)

// TransportError is returned when a request could not be completed.
// StatusCode is zero when no response was received.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: GET %s: unexpected status %d", ErrTransport, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s: GET %s: %v", ErrTransport, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// InvalidResponseError carries the raw text of a response that did not parse.
type InvalidResponseError struct {
	Raw string
	Err error
}

func (e *InvalidResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %q", ErrInvalidResponse, e.Err, e.Raw)
	}
	return fmt.Sprintf("%s: %q", ErrInvalidResponse, e.Raw)
}

func (e *InvalidResponseError) Unwrap() error { return e.Err }

func (e *InvalidResponseError) Is(target error) bool { return target == ErrInvalidResponse }

// MalformedHexError names the field that failed to decode.
type MalformedHexError struct {
	Field string
	Err   error
}

func (e *MalformedHexError) Error() string {
	return fmt.Sprintf("%s in %s: %v", ErrMalformedHex, e.Field, e.Err)
}

func (e *MalformedHexError) Unwrap() error { return e.Err }

func (e *MalformedHexError) Is(target error) bool { return target == ErrMalformedHex }

// InvalidPointError wraps the group decoding failure of a public key.
type InvalidPointError struct {
	Err error
}

func (e *InvalidPointError) Error() string {
	return fmt.Sprintf("%s: %v", ErrInvalidPoint, e.Err)
}

func (e *InvalidPointError) Unwrap() error { return e.Err }

func (e *InvalidPointError) Is(target error) bool { return target == ErrInvalidPoint }

// VerificationError wraps a failure raised inside the signature check.
type VerificationError struct {
	Err error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%s: %v", ErrVerification, e.Err)
}

func (e *VerificationError) Unwrap() error { return e.Err }

func (e *VerificationError) Is(target error) bool { return target == ErrVerification }
