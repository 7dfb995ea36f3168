package app

import (
	"context"
	"errors"
	"fmt"

	"dapcheck/internal/catalog"
	"dapcheck/internal/daplink"
	"dapcheck/internal/report"
	"dapcheck/internal/runner"
	"dapcheck/internal/testinfo"
	"dapcheck/pkg/logging"
)

// buildRun configures a runner.Manager from the options and services and
// resolves the plan. Resolution notes are printed at verbose levels.
func (a *Application) buildRun(services *Services) (*runner.ConfiguredRun, error) {
	cfg := a.config

	if err := checkFirmwarePresent(cfg, services.Firmware()); err != nil {
		return nil, err
	}

	m := runner.NewManager(services.Drives)
	setters := []error{
		m.SetTestFirstBoardOnly(cfg.TestFirstOnly),
		m.SetLoadInterface(!cfg.NoLoadInterface),
		m.SetLoadBootloader(!cfg.NoLoadBootloader),
		m.SetTestDAPLink(!cfg.NoTestDAPLink),
		m.SetTestEndpoints(!cfg.NoTestEndpoints),
		m.SetStrictHDK(cfg.Dapcheck.StrictHDK),
		m.SetProductValidator(daplink.NewProductValidator(services.Drives)),
		m.SetEndpointValidator(daplink.NewEndpointValidator(services.Drives)),
		m.AddFirmware(services.Firmware()...),
		m.AddBoards(services.Boards...),
		m.AddTargets(services.TargetList()...),
	}
	if cfg.Firmware != nil {
		setters = append(setters, m.SetFirmwareFilter(cfg.Firmware))
	}
	if !cfg.Quiet && !cfg.DryRun {
		setters = append(setters, m.SetProgress(newSpinnerProgress(cfg.Out)))
	}
	if err := errors.Join(setters...); err != nil {
		return nil, err
	}

	log := testinfo.New("resolve")
	run, err := m.Build(log)
	if err != nil {
		return nil, err
	}
	if a.verbosity == report.VerbosityVerbose || a.verbosity == report.VerbosityAll {
		level, depth := a.verbosity.Filter()
		if err := log.PrintMsg(cfg.Out, level, depth); err != nil {
			return nil, err
		}
	}
	return run, nil
}

// checkFirmwarePresent fails early when a filtered name is not in the
// release bundle.
func checkFirmwarePresent(cfg *Config, firmware []catalog.Firmware) error {
	if cfg.Firmware == nil {
		return nil
	}
	names := make(map[string]bool, len(firmware))
	for _, fw := range firmware {
		names[fw.Name] = true
	}
	var missing bool
	for _, name := range cfg.Firmware {
		if !names[name] {
			fmt.Fprintf(cfg.Out, "Cannot find firmware %s\n", name)
			missing = true
		}
	}
	if missing {
		return ErrFirmwareMissing
	}
	return nil
}

// describePlan prints the plan and reports plans that must not run.
func (a *Application) describePlan(services *Services, run *runner.ConfiguredRun) error {
	out := a.config.Out
	if sha := services.Release.BuildSHA(); sha != "" {
		fmt.Fprintf(out, "Firmware built from %s (local modifications: %t)\n", sha, services.Release.BuildLocalMods())
	}
	report.RenderPlan(out, run.Plan())

	if len(run.Configurations()) == 0 {
		fmt.Fprintln(out, "Nothing that can be tested")
		return runner.ErrNothingToTest
	}
	if a.config.Firmware != nil && len(run.Untested()) > 0 {
		return ErrNotAllTestable
	}
	return nil
}

// runPlanMode resolves and prints the plan without touching any board.
func (a *Application) runPlanMode(services *Services) error {
	run, err := a.buildRun(services)
	if err != nil {
		return err
	}
	return a.describePlan(services, run)
}

// runTestMode executes the plan and writes the results.
//
// Result files are written even when the run was cancelled or failed, so
// the failure can be inspected afterwards.
func (a *Application) runTestMode(ctx context.Context, services *Services) error {
	cfg := a.config
	out := cfg.Out

	run, err := a.buildRun(services)
	if err != nil {
		return err
	}
	if err := a.describePlan(services, run); err != nil {
		return err
	}

	completed, err := run.Run(ctx)
	if err != nil {
		return err
	}

	if err := a.printer.Print(out, completed.Configurations()); err != nil {
		return err
	}
	report.RenderResults(out, completed)

	if err := report.WriteDir(cfg.LogDir, completed.Configurations(), cfg.Dapcheck.Report.Level()); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	if a.format != report.FormatNone {
		path, err := report.WriteSummary(cfg.LogDir, report.NewSummary(completed), a.format)
		if err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
		logging.Info("Report", "Wrote summary to %s", path)
	}

	if err := report.PrintOutcome(out, completed); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run interrupted: %w", err)
	}
	if !completed.AllTestsPass() {
		return ErrTestsFailed
	}
	return nil
}
