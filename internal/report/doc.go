// Package report renders run plans and results for humans and machines.
//
// Console output is filtered by Verbosity. Per-configuration log files are
// written by WriteDir into a fresh directory, and a Summary of the whole run
// can be stored as JSON or YAML next to them.
package report
