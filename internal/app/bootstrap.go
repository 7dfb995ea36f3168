package app

import (
	"context"
	"fmt"
	"os"

	"dapcheck/internal/config"
	"dapcheck/internal/report"
	"dapcheck/pkg/logging"
)

// Application is one dapcheck invocation: validated options plus the report
// settings derived from them.
//
// The Application follows a two-phase pattern:
//  1. NewApplication loads configuration and rejects bad option combinations
//     before any catalog is read.
//  2. Run loads the catalogs, resolves the plan and, unless this is a dry
//     run, executes it.
type Application struct {
	config    *Config
	printer   *report.Printer
	verbosity report.Verbosity
	format    report.Format
}

// NewApplication validates cfg and loads the dapcheck configuration when
// cfg.Dapcheck is nil. A ConfigurationError from loading is returned
// unwrapped so callers can classify it.
func NewApplication(cfg *Config) (*Application, error) {
	if cfg.Dapcheck == nil {
		configPath := cfg.ConfigPath
		if configPath == "" {
			configPath = config.GetDefaultConfigPathOrPanic()
		}
		dc, err := config.LoadConfig(configPath)
		if err != nil {
			logging.Error("CLI", err, "Failed to load configuration from %s", configPath)
			return nil, err
		}
		cfg.Dapcheck = &dc
	}
	cfg.applyDefaults()

	verbosity, err := report.ParseVerbosity(cfg.Verbosity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	format, err := report.ParseFormat(cfg.Dapcheck.Report.Format)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	printer, err := report.NewPrinter(verbosity, cfg.Dapcheck.Report.HeaderTemplate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}

	if err := checkOptions(cfg); err != nil {
		return nil, err
	}

	return &Application{
		config:    cfg,
		printer:   printer,
		verbosity: verbosity,
		format:    format,
	}, nil
}

// checkOptions rejects combinations that would fail only after the
// hardware has been touched.
func checkOptions(cfg *Config) error {
	if cfg.FirmwareDir == "" {
		return fmt.Errorf("%w: a firmware directory is required (--firmwaredir or firmwareDir)", ErrInvalidArguments)
	}
	if cfg.BoardInventory == "" {
		return fmt.Errorf("%w: a board inventory is required (--boards or boardInventory)", ErrInvalidArguments)
	}
	if !cfg.NoTestEndpoints && cfg.TargetDir == "" {
		return fmt.Errorf("%w: endpoint testing requires a target directory (--targetdir) or --notestendpt", ErrInvalidArguments)
	}
	if cfg.Firmware != nil && len(cfg.Firmware) == 0 {
		return fmt.Errorf("%w: the firmware filter is empty", ErrInvalidArguments)
	}
	if !cfg.DryRun {
		if cfg.LogDir == "" {
			return fmt.Errorf("%w: a log directory is required (--logdir or logDir)", ErrInvalidArguments)
		}
		if _, err := os.Stat(cfg.LogDir); err == nil {
			return fmt.Errorf("%w: %s", report.ErrReportDirExists, cfg.LogDir)
		}
	}
	return nil
}

// Run loads the catalogs and runs the selected mode. It honours ctx
// cancellation between configurations.
func (a *Application) Run(ctx context.Context) error {
	services, err := InitializeServices(a.config)
	if err != nil {
		logging.Error("CLI", err, "Failed to load catalogs")
		return err
	}

	if a.config.DryRun {
		return a.runPlanMode(services)
	}
	return a.runTestMode(ctx, services)
}
