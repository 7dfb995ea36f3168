package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"dapcheck/internal/app"
	"dapcheck/internal/config"
	"dapcheck/internal/report"

	"github.com/spf13/cobra"
)

// runOptions holds the flags shared by run and plan.
type runOptions struct {
	targetDir      string
	firmwareDir    string
	firmware       []string
	boards         string
	logDir         string
	verbosity      string
	configPath     string
	noLoadIF       bool
	noLoadBL       bool
	noTestEndpoint bool
	noTestDAPLink  bool
	testFirst      bool
	dryRun         bool
	quiet          bool
}

// runOpts and planOpts are bound to the run and plan flags.
var runOpts, planOpts runOptions

// appConfig converts the flags into an application configuration.
func (o *runOptions) appConfig(cmd *cobra.Command) *app.Config {
	cfg := &app.Config{
		ConfigPath:       o.configPath,
		FirmwareDir:      o.firmwareDir,
		TargetDir:        o.targetDir,
		BoardInventory:   o.boards,
		LogDir:           o.logDir,
		Verbosity:        o.verbosity,
		NoLoadInterface:  o.noLoadIF,
		NoLoadBootloader: o.noLoadBL,
		NoTestEndpoints:  o.noTestEndpoint,
		NoTestDAPLink:    o.noTestDAPLink,
		TestFirstOnly:    o.testFirst,
		DryRun:           o.dryRun,
		Quiet:            o.quiet,
		Out:              cmd.OutOrStdout(),
	}
	if cmd.Flags().Changed("firmware") {
		cfg.Firmware = o.firmware
	}
	return cfg
}

// addSelectionFlags registers the flags that decide what gets tested.
func (o *runOptions) addSelectionFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.firmwareDir, "firmwaredir", "", "Directory with the firmware images to test")
	cmd.Flags().StringVar(&o.targetDir, "targetdir", "", "Directory with pre-built target test images (<name>.hex and <name>.bin)")
	cmd.Flags().StringVar(&o.boards, "boards", "", "yaml inventory of the attached boards")
	cmd.Flags().StringArrayVar(&o.firmware, "firmware", nil, "Interface firmware to test, repeatable (default: all)")

	cmd.Flags().BoolVar(&o.noLoadIF, "noloadif", false, "Skip loading the interface firmware")
	cmd.Flags().BoolVar(&o.noLoadBL, "noloadbl", false, "Skip loading the bootloader")
	cmd.Flags().BoolVar(&o.noTestEndpoint, "notestendpt", false, "Skip the mass storage endpoint tests")
	cmd.Flags().BoolVar(&o.noTestDAPLink, "notestdl", false, "Skip the DAPLink product tests")
	cmd.Flags().BoolVar(&o.testFirst, "testfirst", false, "Test only the first board of each board id")

	cmd.Flags().StringVar(&o.verbosity, "verbose", "", "Result verbosity: Minimal, Normal, Verbose or All (default from config)")
	cmd.Flags().StringVar(&o.configPath, "config-path", "", "Configuration directory (default ~/.config/dapcheck)")

	_ = cmd.RegisterFlagCompletionFunc("verbose", completeVerbosityFlag)
}

// runCmd loads, validates and reports on every configuration.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load and test DAPLink firmware on the attached boards",
	Long: `Resolves the firmware bundle, attached boards and target images into test
configurations and runs each of them in turn:

  1. load the interface firmware (unless --noloadif)
  2. load the bootloader, when the bundle has one for the board's HDK (unless --noloadbl)
  3. run the DAPLink product tests (unless --notestdl)
  4. run the mass storage endpoint tests with the target image (unless --notestendpt)

Failures are recorded per configuration and never stop the run. Results are
printed at the selected verbosity and written to --logdir, which must not
exist yet.

Exit codes:
  0  all configurations passed
  1  a configuration failed, or a general error
  2  invalid configuration, arguments or catalogs (no board was touched)
  3  nothing could be tested

Example usage:
  dapcheck run --firmwaredir ./firmware --boards boards.yaml --targetdir ./targets
  dapcheck run --firmware k20dx_k22f_if --firmware kl26z_microbit_if --notestendpt
  dapcheck run --dryrun                        # print the plan only`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	return execute(cmd, runOpts.appConfig(cmd))
}

// execute runs an application until it finishes or the process is
// interrupted. An interrupt lets the current configuration finish and
// still writes the results.
func execute(cmd *cobra.Command, cfg *app.Config) error {
	application, err := app.NewApplication(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return application.Run(ctx)
}

// completeVerbosityFlag provides shell completion for the verbose flag
func completeVerbosityFlag(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	names := make([]string, 0, len(report.Verbosities))
	for _, v := range report.Verbosities {
		names = append(names, string(v))
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

func init() {
	rootCmd.AddCommand(runCmd)

	runOpts.addSelectionFlags(runCmd)
	runCmd.Flags().StringVar(&runOpts.logDir, "logdir", "", "Directory for the result files, must not exist (default from config, "+config.DefaultLogDir+")")
	runCmd.Flags().BoolVar(&runOpts.dryRun, "dryrun", false, "Print the test plan and exit")
	runCmd.Flags().BoolVar(&runOpts.quiet, "quiet", false, "Disable the progress spinner")
}
