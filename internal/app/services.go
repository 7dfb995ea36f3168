package app

import (
	"fmt"

	"dapcheck/internal/catalog"
	"dapcheck/internal/daplink"
	"dapcheck/pkg/logging"

	"golang.org/x/sync/errgroup"
)

// Services holds the catalogs and hardware adapters one run works with.
//
// The three catalogs are independent, so they are loaded concurrently.
// Nothing here touches a board; the Drives factory opens drives lazily when
// the runner first needs them.
type Services struct {
	// Release is the firmware bundle under test.
	Release *catalog.ReleaseBundle
	// Boards are the attached boards listed in the inventory.
	Boards []catalog.Board
	// Targets is nil when no target directory was given.
	Targets *catalog.TargetBundle
	// Drives hands out one mass storage drive per board.
	Drives *daplink.Factory
}

// Firmware returns the firmware of the release bundle.
func (s *Services) Firmware() []catalog.Firmware {
	return s.Release.FirmwareList()
}

// TargetList returns the target images, or nil when none were loaded.
func (s *Services) TargetList() []catalog.Target {
	if s.Targets == nil {
		return nil
	}
	return s.Targets.TargetList()
}

// InitializeServices loads the release bundle, board inventory and target
// bundle named by cfg. The first loading error is returned once all
// loaders have finished.
func InitializeServices(cfg *Config) (*Services, error) {
	table := cfg.Dapcheck.Table()
	services := &Services{
		Drives: daplink.NewFactory(daplink.Options{
			RemountTimeout: cfg.Dapcheck.RemountTimeout,
			PollInterval:   cfg.Dapcheck.PollInterval,
			FlushDelay:     cfg.Dapcheck.FlushDelay,
		}),
	}

	var g errgroup.Group

	g.Go(func() error {
		release, err := catalog.LoadReleaseBundle(cfg.FirmwareDir, table)
		if err != nil {
			return fmt.Errorf("failed to load firmware: %w", err)
		}
		services.Release = release
		return nil
	})

	g.Go(func() error {
		boards, err := catalog.LoadBoardInventory(cfg.BoardInventory)
		if err != nil {
			return fmt.Errorf("failed to load boards: %w", err)
		}
		services.Boards = boards
		return nil
	})

	if cfg.TargetDir != "" {
		g.Go(func() error {
			targets, err := catalog.LoadTargetBundle(cfg.TargetDir, table)
			if err != nil {
				return fmt.Errorf("failed to load targets: %w", err)
			}
			services.Targets = targets
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	logging.Info("Catalog", "Loaded %d firmware, %d boards and %d targets",
		len(services.Firmware()), len(services.Boards), len(services.TargetList()))
	return services, nil
}
