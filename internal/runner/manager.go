package runner

import (
	"fmt"

	"dapcheck/internal/catalog"
	"dapcheck/internal/resolve"
	"dapcheck/internal/testinfo"
	"dapcheck/pkg/logging"
)

// Manager collects the options and catalogs of a run. The zero value is not
// usable; create one with NewManager.
type Manager struct {
	loaders  LoaderFactory
	product  Validator
	endpoint Validator
	progress Progress

	firstBoardOnly bool
	loadInterface  bool
	loadBootloader bool
	testDAPLink    bool
	testEndpoints  bool
	strictHDK      bool

	filter    []string
	filterSet bool

	firmware []catalog.Firmware
	boards   []catalog.Board
	targets  []catalog.Target

	built bool
}

// NewManager creates a manager with every stage enabled. loaders supplies
// the per-board loader used during Run.
func NewManager(loaders LoaderFactory) *Manager {
	return &Manager{
		loaders:        loaders,
		loadInterface:  true,
		loadBootloader: true,
		testDAPLink:    true,
		testEndpoints:  true,
	}
}

func (m *Manager) checkInit() error {
	if m.built {
		return fmt.Errorf("%w: manager already built", ErrInvalidState)
	}
	return nil
}

// SetTestFirstBoardOnly keeps only the first board of each board id.
func (m *Manager) SetTestFirstBoardOnly(first bool) error {
	if err := m.checkInit(); err != nil {
		return err
	}
	m.firstBoardOnly = first
	return nil
}

// SetLoadInterface controls whether interface firmware is loaded.
func (m *Manager) SetLoadInterface(load bool) error {
	if err := m.checkInit(); err != nil {
		return err
	}
	m.loadInterface = load
	return nil
}

// SetLoadBootloader controls whether bootloader firmware is loaded.
func (m *Manager) SetLoadBootloader(load bool) error {
	if err := m.checkInit(); err != nil {
		return err
	}
	m.loadBootloader = load
	return nil
}

// SetTestDAPLink controls whether the product validator runs.
func (m *Manager) SetTestDAPLink(test bool) error {
	if err := m.checkInit(); err != nil {
		return err
	}
	m.testDAPLink = test
	return nil
}

// SetTestEndpoints controls whether the endpoint validator runs.
func (m *Manager) SetTestEndpoints(test bool) error {
	if err := m.checkInit(); err != nil {
		return err
	}
	m.testEndpoints = test
	return nil
}

// SetStrictHDK turns HDK id mismatches into resolution errors.
func (m *Manager) SetStrictHDK(strict bool) error {
	if err := m.checkInit(); err != nil {
		return err
	}
	m.strictHDK = strict
	return nil
}

// SetFirmwareFilter restricts the interface firmware under test. It may be
// called at most once.
func (m *Manager) SetFirmwareFilter(names []string) error {
	if err := m.checkInit(); err != nil {
		return err
	}
	if m.filterSet {
		return fmt.Errorf("%w: firmware filter already set", ErrInvalidState)
	}
	m.filter = append([]string{}, names...)
	m.filterSet = true
	return nil
}

// SetProductValidator sets the validator run when DAPLink testing is on.
func (m *Manager) SetProductValidator(v Validator) error {
	if err := m.checkInit(); err != nil {
		return err
	}
	m.product = v
	return nil
}

// SetEndpointValidator sets the validator run when endpoint testing is on.
func (m *Manager) SetEndpointValidator(v Validator) error {
	if err := m.checkInit(); err != nil {
		return err
	}
	m.endpoint = v
	return nil
}

// SetProgress registers a progress hook for Run.
func (m *Manager) SetProgress(p Progress) error {
	if err := m.checkInit(); err != nil {
		return err
	}
	m.progress = p
	return nil
}

// AddFirmware appends firmware to the catalog.
func (m *Manager) AddFirmware(fws ...catalog.Firmware) error {
	if err := m.checkInit(); err != nil {
		return err
	}
	m.firmware = append(m.firmware, fws...)
	return nil
}

// AddBoards appends boards to the catalog.
func (m *Manager) AddBoards(boards ...catalog.Board) error {
	if err := m.checkInit(); err != nil {
		return err
	}
	m.boards = append(m.boards, boards...)
	return nil
}

// AddTargets appends targets to the catalog. Invalid targets are dropped.
func (m *Manager) AddTargets(targets ...catalog.Target) error {
	if err := m.checkInit(); err != nil {
		return err
	}
	for _, t := range targets {
		if !t.Valid() {
			logging.Warn("Runner", "Skipping target %s without hex and bin image", t.Name)
			continue
		}
		m.targets = append(m.targets, t)
	}
	return nil
}

// Policy returns the resolution policy derived from the manager's flags.
//
// A target is only required when neither endpoint nor DAPLink testing will
// run, and a bootloader only when it is neither loaded nor exercised by the
// DAPLink tests.
func (m *Manager) Policy() resolve.Policy {
	var filter []string
	if m.filterSet {
		filter = append([]string{}, m.filter...)
	}
	return resolve.Policy{
		FirstBoardOnly:     m.firstBoardOnly,
		FirmwareFilter:     filter,
		TargetRequired:     !m.testEndpoints && !m.testDAPLink,
		BootloaderRequired: !m.loadBootloader && !m.testDAPLink,
		StrictHDK:          m.strictHDK,
	}
}

// Build resolves the catalogs into a ConfiguredRun. Resolution info and
// warnings go to log, which may be nil. On a resolution error the manager
// stays usable so the caller can report the error and exit.
func (m *Manager) Build(log *testinfo.TestInfo) (*ConfiguredRun, error) {
	if err := m.checkInit(); err != nil {
		return nil, err
	}

	plan, err := resolve.Resolve(m.firmware, m.boards, m.targets, m.Policy(), log)
	if err != nil {
		return nil, err
	}
	m.built = true

	configs := make([]*TestConfiguration, 0, len(plan.Configurations))
	for _, c := range plan.Configurations {
		configs = append(configs, &TestConfiguration{Configuration: c})
	}
	logging.Info("Runner", "Configured %d configurations, %d firmware untested", len(configs), len(plan.Untested))

	return &ConfiguredRun{
		stages:         m.stages(),
		loaders:        m.loaders,
		product:        m.product,
		endpoint:       m.endpoint,
		progress:       m.progress,
		configurations: configs,
		untested:       plan.Untested,
	}, nil
}

type stages struct {
	loadInterface  bool
	loadBootloader bool
	testDAPLink    bool
	testEndpoints  bool
}

func (m *Manager) stages() stages {
	return stages{
		loadInterface:  m.loadInterface,
		loadBootloader: m.loadBootloader,
		testDAPLink:    m.testDAPLink,
		testEndpoints:  m.testEndpoints,
	}
}
