package runner

import (
	"context"
	"errors"

	"dapcheck/internal/catalog"
	"dapcheck/internal/resolve"
	"dapcheck/internal/testinfo"
)

var (
	// ErrInvalidState is returned when an operation is not allowed in the
	// current state of the run.
	ErrInvalidState = errors.New("invalid run state")
	// ErrNothingToTest is returned by Run when resolution produced no
	// configurations.
	ErrNothingToTest = errors.New("nothing that can be tested")
)

// BoardLoader programs firmware onto one physical board.
//
// Implementations report diagnostic detail through log. A returned error is
// recorded as a failure on the configuration by the runner.
type BoardLoader interface {
	LoadInterface(ctx context.Context, path string, log *testinfo.TestInfo) error
	LoadBootloader(ctx context.Context, path string, log *testinfo.TestInfo) error
	// SetCheckFSOnRemount enables filesystem content checks each time the
	// board's drive comes back after a reset.
	SetCheckFSOnRemount(enabled bool)
}

// LoaderFactory returns the loader for a board.
type LoaderFactory interface {
	Loader(board catalog.Board) (BoardLoader, error)
}

// LoaderFactoryFunc adapts a function to LoaderFactory.
type LoaderFactoryFunc func(board catalog.Board) (BoardLoader, error)

// Loader calls f(board).
func (f LoaderFactoryFunc) Loader(board catalog.Board) (BoardLoader, error) {
	return f(board)
}

// Validator runs one verification stage against a loaded configuration.
type Validator interface {
	Validate(ctx context.Context, cfg *TestConfiguration, log *testinfo.TestInfo) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(ctx context.Context, cfg *TestConfiguration, log *testinfo.TestInfo) error

// Validate calls f(ctx, cfg, log).
func (f ValidatorFunc) Validate(ctx context.Context, cfg *TestConfiguration, log *testinfo.TestInfo) error {
	return f(ctx, cfg, log)
}

// Progress receives notifications while a run executes. Both methods are
// called from the goroutine that called Run.
type Progress interface {
	OnConfigurationStart(index, total int, cfg *TestConfiguration)
	OnConfigurationDone(index, total int, cfg *TestConfiguration)
}

// TestConfiguration is a resolved configuration together with its
// diagnostic log. Info is nil until the configuration has been executed.
type TestConfiguration struct {
	resolve.Configuration
	Info *testinfo.TestInfo
}

// Passed reports whether the configuration ran without failures.
func (c *TestConfiguration) Passed() bool {
	return c.Info != nil && !c.Info.Failed()
}
