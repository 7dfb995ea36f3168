// Package app wires a dapcheck invocation together.
//
// It sits between the cobra commands and the domain packages:
//
//   - Config carries the command line options, NewApplication merges them
//     with the loaded configuration and rejects impossible combinations
//     before any catalog is read
//   - InitializeServices loads the release bundle, board inventory and
//     target bundle concurrently and creates the DAPLink drive factory
//   - Run resolves the plan with a runner.Manager and either prints it
//     (dry run) or executes it, then prints and writes the results
//
// Errors are returned as sentinels or typed errors from the domain packages
// so the command layer can map them to exit codes with errors.Is/As.
package app
