package resolve

import (
	"errors"
	"fmt"
)

// Sentinel errors for configuration problems found during resolution. They
// are always wrapped in a *ResolutionError; use errors.Is to classify.
var (
	ErrUnknownFirmware     = errors.New("firmware filter references unknown firmware")
	ErrDuplicateFirmware   = errors.New("duplicate firmware name")
	ErrUnsupportedKind     = errors.New("unsupported firmware kind")
	ErrDuplicateBootloader = errors.New("duplicate bootloaders for HDK")
	ErrDuplicateTarget     = errors.New("multiple targets for board id")
	ErrTargetMismatch      = errors.New("target board id does not match firmware")
	ErrHDKMismatch         = errors.New("HDK id mismatch")
)

// ResolutionError is a fatal problem with the catalogs. It is reported
// before any hardware is touched.
type ResolutionError struct {
	Kind   error
	Detail string
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Unwrap exposes Kind to errors.Is.
func (e *ResolutionError) Unwrap() error {
	return e.Kind
}

func newError(kind error, format string, args ...interface{}) *ResolutionError {
	return &ResolutionError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
