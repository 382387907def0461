package signer

import (
	"errors"
	"fmt"

	"github.com/0xERR0R/dnstestbed/model"
)

var (
	// ErrUnsupportedAlgorithm is returned for signing algorithms the signer can't generate keys for
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")

	// ErrUnsupportedDigest is returned for DS digest types the signer can't compute
	ErrUnsupportedDigest = errors.New("unsupported digest type")

	// ErrMalformedZone is returned if the zone can't be signed as it is
	ErrMalformedZone = errors.New("malformed zone")
)

// SigningError is returned for every failure while signing a zone
type SigningError struct {
	Zone model.FQDN
	Err  error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("can't sign zone %s: %v", e.Zone, e.Err)
}

func (e *SigningError) Unwrap() error {
	return e.Err
}

func newSigningError(zone model.FQDN, format string, args ...any) *SigningError {
	return &SigningError{Zone: zone, Err: fmt.Errorf(format, args...)}
}
