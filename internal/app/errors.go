package app

import "errors"

var (
	// ErrInvalidArguments reports an option combination that cannot run.
	ErrInvalidArguments = errors.New("invalid arguments")
	// ErrFirmwareMissing reports a filtered firmware name absent from the
	// release bundle.
	ErrFirmwareMissing = errors.New("firmware missing - aborting test")
	// ErrNotAllTestable reports an explicit firmware filter that left some
	// firmware without a configuration.
	ErrNotAllTestable = errors.New("exiting because not all firmware could be tested")
	// ErrTestsFailed reports a completed run with at least one failure.
	ErrTestsFailed = errors.New("test failed")
)
