// Package runner drives resolved test configurations through the
// load, validate, report lifecycle.
//
// A run moves through three states, each with its own type:
//
//	Manager        collects flags and catalogs (INIT)
//	ConfiguredRun  holds the resolved plan (CONFIGURED)
//	CompletedRun   holds per-configuration results (COMPLETE)
//
// Manager.Build and ConfiguredRun.Run are single use. Calling either a
// second time, or mutating a Manager after Build, returns ErrInvalidState.
//
// Hardware access goes through the LoaderFactory, BoardLoader and
// Validator interfaces so the state machine can be exercised with fakes.
// Configurations are executed sequentially; boards are physical devices and
// a run is never parallelized.
package runner
