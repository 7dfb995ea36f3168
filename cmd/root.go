package cmd

import (
	"errors"
	"os"

	"dapcheck/internal/app"
	"dapcheck/internal/config"
	"dapcheck/internal/report"
	"dapcheck/internal/resolve"
	"dapcheck/internal/runner"
	"dapcheck/pkg/logging"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates every configuration passed.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a test failure or a general error.
	ExitCodeError = 1
	// ExitCodeConfig indicates an invalid configuration, bad flags or a
	// catalog resolution error. No hardware was touched.
	ExitCodeConfig = 2
	// ExitCodeNothingToTest indicates no configuration could be built.
	ExitCodeNothingToTest = 3
)

// rootDebug enables debug logging for every subcommand.
var rootDebug bool

// rootCmd represents the base command for the dapcheck application.
var rootCmd = &cobra.Command{
	Use:   "dapcheck",
	Short: "Run DAPLink firmware release tests against attached boards",
	Long: `dapcheck matches a bundle of DAPLink firmware images against the boards
attached to this machine and a bundle of target test images, then loads and
validates every resulting configuration.

Use 'dapcheck plan' to see what would be tested and 'dapcheck run' to test it.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := logging.LevelWarn
		if rootDebug {
			level = logging.LevelDebug
		}
		logging.InitForCLI(level, cmd.ErrOrStderr())
	},
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "dapcheck version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}

	if errors.Is(err, runner.ErrNothingToTest) {
		return ExitCodeNothingToTest
	}

	var resolutionErr *resolve.ResolutionError
	if errors.As(err, &resolutionErr) {
		return ExitCodeConfig
	}

	var configErr config.ConfigurationError
	if errors.As(err, &configErr) {
		return ExitCodeConfig
	}

	if errors.Is(err, app.ErrInvalidArguments) ||
		errors.Is(err, app.ErrFirmwareMissing) ||
		errors.Is(err, report.ErrReportDirExists) {
		return ExitCodeConfig
	}

	return ExitCodeError
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())

	rootCmd.PersistentFlags().BoolVar(&rootDebug, "debug", false, "Enable debug logging")
}
