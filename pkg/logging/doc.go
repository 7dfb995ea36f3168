// Package logging provides subsystem-tagged structured logging for dapcheck.
//
// It is a thin layer over the standard slog package. Every entry carries a
// subsystem attribute so output from the resolution engine, the test runner
// and the DAPLink adapter can be told apart:
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Resolve", "Resolved %d configurations", n)
//	logging.Warn("DAPLink", "Board %s has no details.txt", id)
//	logging.Error("Runner", err, "Loader for %s unavailable", name)
//
// Process logging is separate from the per-configuration diagnostic log kept
// in internal/testinfo, which is what ends up in the test report files.
//
// Before InitForCLI is called, Debug and Info are dropped and Warn and Error
// go to stderr.
package logging
