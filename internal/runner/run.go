package runner

import (
	"context"
	"fmt"
	"time"

	"dapcheck/internal/resolve"
	"dapcheck/internal/testinfo"
	"dapcheck/pkg/logging"

	"github.com/google/uuid"
)

// ConfiguredRun is a resolved plan waiting to be executed.
type ConfiguredRun struct {
	stages   stages
	loaders  LoaderFactory
	product  Validator
	endpoint Validator
	progress Progress

	configurations []*TestConfiguration
	untested       []resolve.Untested

	ran bool
}

// Configurations returns the configurations in execution order.
func (r *ConfiguredRun) Configurations() []*TestConfiguration {
	return r.configurations
}

// Untested returns the firmware for which no configuration exists.
func (r *ConfiguredRun) Untested() []resolve.Untested {
	return r.untested
}

// Plan returns the resolved configurations and coverage gaps as a plan.
func (r *ConfiguredRun) Plan() *resolve.Plan {
	plan := &resolve.Plan{
		Configurations: make([]resolve.Configuration, 0, len(r.configurations)),
		Untested:       append([]resolve.Untested{}, r.untested...),
	}
	for _, c := range r.configurations {
		plan.Configurations = append(plan.Configurations, c.Configuration)
	}
	return plan
}

// Run executes every configuration in order. It returns ErrNothingToTest if
// the plan is empty and ErrInvalidState if called twice.
//
// Failures are recorded in each configuration's diagnostic log and never
// abort the run. ctx is checked between configurations only: loaders and
// validators get a context that is never cancelled, so a board is not left
// half programmed. Once ctx is done the remaining configurations are marked
// failed without touching hardware.
func (r *ConfiguredRun) Run(ctx context.Context) (*CompletedRun, error) {
	if r.ran {
		return nil, fmt.Errorf("%w: run already executed", ErrInvalidState)
	}
	r.ran = true

	if len(r.configurations) == 0 {
		return nil, ErrNothingToTest
	}

	result := &CompletedRun{
		RunID:          uuid.New().String(),
		Started:        time.Now(),
		configurations: r.configurations,
		untested:       r.untested,
	}

	hwCtx := context.WithoutCancel(ctx)
	total := len(r.configurations)
	for i, cfg := range r.configurations {
		cfg.Info = testinfo.New(cfg.Name)
		if r.progress != nil {
			r.progress.OnConfigurationStart(i, total, cfg)
		}

		if err := ctx.Err(); err != nil {
			cfg.Info.Failure("run cancelled: %v", err)
		} else {
			logging.Info("Runner", "Testing configuration %s", cfg)
			r.execute(hwCtx, cfg)
		}

		if r.progress != nil {
			r.progress.OnConfigurationDone(i, total, cfg)
		}
	}

	result.Finished = time.Now()
	result.allPass = true
	for _, cfg := range r.configurations {
		if !cfg.Passed() {
			result.allPass = false
		}
	}
	logging.Info("Runner", "Run %s finished in %s, all tests pass: %t", result.RunID, result.Finished.Sub(result.Started).Round(time.Millisecond), result.allPass)

	return result, nil
}

func (r *ConfiguredRun) execute(ctx context.Context, cfg *TestConfiguration) {
	info := cfg.Info

	if r.loaders == nil {
		info.Failure("no loader available for board %s", cfg.Board.Name)
		return
	}
	loader, err := r.loaders.Loader(cfg.Board)
	if err != nil {
		info.Failure("no loader available for board %s: %v", cfg.Board.Name, err)
		return
	}

	if r.stages.loadInterface {
		if err := loader.LoadInterface(ctx, cfg.IFFirmware.HexPath, info); err != nil {
			info.Failure("loading interface %s failed: %v", cfg.IFFirmware.Name, err)
		}
	}
	if r.stages.loadBootloader && cfg.BLFirmware != nil {
		if err := loader.LoadBootloader(ctx, cfg.BLFirmware.HexPath, info); err != nil {
			info.Failure("loading bootloader %s failed: %v", cfg.BLFirmware.Name, err)
		}
	}

	loader.SetCheckFSOnRemount(true)

	if r.stages.testDAPLink {
		runValidator(ctx, "daplink", r.product, cfg, info)
	}
	if r.stages.testEndpoints {
		runValidator(ctx, "endpoints", r.endpoint, cfg, info)
	}
}

func runValidator(ctx context.Context, stage string, v Validator, cfg *TestConfiguration, info *testinfo.TestInfo) {
	if v == nil {
		info.Info("%s tests skipped, no validator configured", stage)
		return
	}
	if err := v.Validate(ctx, cfg, info); err != nil {
		info.Failure("%s tests failed: %v", stage, err)
	}
}

// CompletedRun holds the outcome of an executed run.
type CompletedRun struct {
	RunID    string
	Started  time.Time
	Finished time.Time

	configurations []*TestConfiguration
	untested       []resolve.Untested
	allPass        bool
}

// AllTestsPass reports whether no configuration recorded a failure.
func (r *CompletedRun) AllTestsPass() bool {
	return r.allPass
}

// Configurations returns the executed configurations in execution order.
func (r *CompletedRun) Configurations() []*TestConfiguration {
	return r.configurations
}

// Untested returns the firmware for which no configuration existed.
func (r *CompletedRun) Untested() []resolve.Untested {
	return r.untested
}
