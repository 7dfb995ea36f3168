package runner

import (
	"context"
	"errors"
	"sync"
	"testing"

	"dapcheck/internal/catalog"
	"dapcheck/internal/testinfo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLoader struct {
	mu      sync.Mutex
	board   string
	calls   []string
	failIF  bool
	checkFS bool
	// onLoad runs inside LoadInterface; ctxErr is the loader context's
	// error once it returns.
	onLoad func()
	ctxErr error
}

func (l *fakeLoader) record(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *fakeLoader) LoadInterface(ctx context.Context, path string, log *testinfo.TestInfo) error {
	l.record("if:" + path)
	if l.onLoad != nil {
		l.onLoad()
		l.ctxErr = ctx.Err()
	}
	if l.failIF {
		return errors.New("drive did not remount")
	}
	log.Info("loaded %s", path)
	return nil
}

func (l *fakeLoader) LoadBootloader(_ context.Context, path string, log *testinfo.TestInfo) error {
	l.record("bl:" + path)
	return nil
}

func (l *fakeLoader) SetCheckFSOnRemount(enabled bool) {
	l.record("checkfs")
	l.checkFS = enabled
}

type fakeFactory struct {
	loaders map[string]*fakeLoader
	failFor string
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{loaders: map[string]*fakeLoader{}}
}

func (f *fakeFactory) Loader(board catalog.Board) (BoardLoader, error) {
	if board.Name == f.failFor {
		return nil, errors.New("board not connected")
	}
	l, ok := f.loaders[board.Name]
	if !ok {
		l = &fakeLoader{board: board.Name}
		f.loaders[board.Name] = l
	}
	return l, nil
}

type recordingProgress struct {
	started []string
	done    []string
}

func (p *recordingProgress) OnConfigurationStart(_, _ int, cfg *TestConfiguration) {
	p.started = append(p.started, cfg.Name)
}

func (p *recordingProgress) OnConfigurationDone(_, _ int, cfg *TestConfiguration) {
	p.done = append(p.done, cfg.Name)
}

func fixtures() ([]catalog.Firmware, []catalog.Board, []catalog.Target) {
	fws := []catalog.Firmware{
		{Name: "k20dx_k22f_if", Kind: catalog.KindInterface, HDKID: 0x646c0000, BoardID: 0x0231, HasBoardID: true, HexPath: "k22f_if.hex"},
		{Name: "kl26z_microbit_if", Kind: catalog.KindInterface, HDKID: 0x646c0001, BoardID: 0x9900, HasBoardID: true, HexPath: "microbit_if.hex"},
		{Name: "k20dx_bl", Kind: catalog.KindBootloader, HDKID: 0x646c0000, HexPath: "k20dx_bl.hex"},
	}
	boards := []catalog.Board{
		{Name: "k22f", BoardID: 0x0231, HDKID: 0x646c0000},
		{Name: "microbit", BoardID: 0x9900, HDKID: 0x646c0001},
	}
	targets := []catalog.Target{
		{Name: "FRDM-K22F", BoardID: 0x0231, HexPath: "t.hex", BinPath: "t.bin"},
		{Name: "Microbit", BoardID: 0x9900, HexPath: "m.hex"},
	}
	return fws, boards, targets
}

func newManager(t *testing.T, factory LoaderFactory) *Manager {
	t.Helper()
	fws, boards, targets := fixtures()
	m := NewManager(factory)
	require.NoError(t, m.AddFirmware(fws...))
	require.NoError(t, m.AddBoards(boards...))
	require.NoError(t, m.AddTargets(targets...))
	return m
}

func TestManager_Policy(t *testing.T) {
	tests := []struct {
		name        string
		loadBL      bool
		testDL      bool
		testEP      bool
		wantTarget  bool
		wantBLoader bool
	}{
		{name: "all stages", loadBL: true, testDL: true, testEP: true},
		{name: "no daplink tests", loadBL: true, testEP: true},
		{name: "load only", loadBL: true, wantTarget: true},
		{name: "nothing", wantTarget: true, wantBLoader: true},
		{name: "daplink only", testDL: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(nil)
			require.NoError(t, m.SetLoadBootloader(tt.loadBL))
			require.NoError(t, m.SetTestDAPLink(tt.testDL))
			require.NoError(t, m.SetTestEndpoints(tt.testEP))

			p := m.Policy()
			assert.Equal(t, tt.wantTarget, p.TargetRequired)
			assert.Equal(t, tt.wantBLoader, p.BootloaderRequired)
			assert.Nil(t, p.FirmwareFilter)
		})
	}
}

func TestManager_FilterOnlyOnce(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.SetFirmwareFilter([]string{"k20dx_k22f_if"}))
	err := m.SetFirmwareFilter([]string{"kl26z_microbit_if"})
	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.Equal(t, []string{"k20dx_k22f_if"}, m.Policy().FirmwareFilter)
}

func TestManager_InvalidAfterBuild(t *testing.T) {
	m := newManager(t, newFakeFactory())
	_, err := m.Build(nil)
	require.NoError(t, err)

	assert.ErrorIs(t, m.AddBoards(catalog.Board{Name: "late"}), ErrInvalidState)
	assert.ErrorIs(t, m.SetLoadInterface(false), ErrInvalidState)
	assert.ErrorIs(t, m.SetFirmwareFilter(nil), ErrInvalidState)
	_, err = m.Build(nil)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestManager_InvalidTargetsDropped(t *testing.T) {
	m := newManager(t, newFakeFactory())
	run, err := m.Build(nil)
	require.NoError(t, err)

	cfgs := run.Configurations()
	require.Len(t, cfgs, 2)
	require.NotNil(t, cfgs[0].Target)
	assert.Equal(t, "FRDM-K22F", cfgs[0].Target.Name)
	assert.Nil(t, cfgs[1].Target)
}

func TestManager_BuildErrorKeepsManagerUsable(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.SetFirmwareFilter([]string{"missing_if"}))
	_, err := m.Build(nil)
	require.Error(t, err)
	assert.NoError(t, m.SetTestFirstBoardOnly(true))
}

func TestRun_ExecutesStagesInOrder(t *testing.T) {
	factory := newFakeFactory()
	m := newManager(t, factory)

	var stages []string
	require.NoError(t, m.SetProductValidator(ValidatorFunc(func(_ context.Context, cfg *TestConfiguration, log *testinfo.TestInfo) error {
		stages = append(stages, "daplink:"+cfg.Name)
		return nil
	})))
	require.NoError(t, m.SetEndpointValidator(ValidatorFunc(func(_ context.Context, cfg *TestConfiguration, log *testinfo.TestInfo) error {
		stages = append(stages, "endpoints:"+cfg.Name)
		return nil
	})))
	progress := &recordingProgress{}
	require.NoError(t, m.SetProgress(progress))

	run, err := m.Build(nil)
	require.NoError(t, err)
	done, err := run.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, done.AllTestsPass())
	assert.NotEmpty(t, done.RunID)
	assert.False(t, done.Finished.Before(done.Started))

	assert.Equal(t, []string{"if:k22f_if.hex", "bl:k20dx_bl.hex", "checkfs"}, factory.loaders["k22f"].calls)
	// No bootloader for the microbit HDK.
	assert.Equal(t, []string{"if:microbit_if.hex", "checkfs"}, factory.loaders["microbit"].calls)
	assert.True(t, factory.loaders["k22f"].checkFS)

	assert.Equal(t, []string{
		"daplink:k20dx_k22f_if k22f",
		"endpoints:k20dx_k22f_if k22f",
		"daplink:kl26z_microbit_if microbit",
		"endpoints:kl26z_microbit_if microbit",
	}, stages)
	assert.Equal(t, []string{"k20dx_k22f_if k22f", "kl26z_microbit_if microbit"}, progress.started)
	assert.Equal(t, progress.started, progress.done)

	for _, cfg := range done.Configurations() {
		require.NotNil(t, cfg.Info)
		assert.Equal(t, cfg.Name, cfg.Info.Name())
	}
}

func TestRun_DisabledStages(t *testing.T) {
	factory := newFakeFactory()
	m := newManager(t, factory)
	require.NoError(t, m.SetLoadInterface(false))
	require.NoError(t, m.SetLoadBootloader(false))
	require.NoError(t, m.SetTestEndpoints(false))

	called := false
	require.NoError(t, m.SetProductValidator(ValidatorFunc(func(context.Context, *TestConfiguration, *testinfo.TestInfo) error {
		called = true
		return nil
	})))

	run, err := m.Build(nil)
	require.NoError(t, err)
	done, err := run.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, done.AllTestsPass())
	assert.True(t, called)
	assert.Equal(t, []string{"checkfs"}, factory.loaders["k22f"].calls)
}

func TestRun_AggregateLaw(t *testing.T) {
	tests := []struct {
		name     string
		failFor  string
		failIF   string
		failVal  string
		wantPass bool
	}{
		{name: "all pass", wantPass: true},
		{name: "factory error", failFor: "microbit"},
		{name: "load error", failIF: "k22f"},
		{name: "validator error", failVal: "kl26z_microbit_if microbit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := newFakeFactory()
			factory.failFor = tt.failFor
			if tt.failIF != "" {
				factory.loaders[tt.failIF] = &fakeLoader{board: tt.failIF, failIF: true}
			}
			m := newManager(t, factory)
			require.NoError(t, m.SetEndpointValidator(ValidatorFunc(func(_ context.Context, cfg *TestConfiguration, _ *testinfo.TestInfo) error {
				if cfg.Name == tt.failVal {
					return errors.New("FAIL.TXT present")
				}
				return nil
			})))

			run, err := m.Build(nil)
			require.NoError(t, err)
			done, err := run.Run(context.Background())
			require.NoError(t, err)

			assert.Equal(t, tt.wantPass, done.AllTestsPass())
			// Every configuration runs even after a failure.
			for _, cfg := range done.Configurations() {
				require.NotNil(t, cfg.Info)
			}
			want := true
			for _, cfg := range done.Configurations() {
				want = want && cfg.Passed()
			}
			assert.Equal(t, want, done.AllTestsPass())
		})
	}
}

func TestRun_NothingToTest(t *testing.T) {
	m := NewManager(newFakeFactory())
	run, err := m.Build(nil)
	require.NoError(t, err)
	_, err = run.Run(context.Background())
	assert.ErrorIs(t, err, ErrNothingToTest)
}

func TestRun_OnlyOnce(t *testing.T) {
	m := newManager(t, newFakeFactory())
	run, err := m.Build(nil)
	require.NoError(t, err)
	_, err = run.Run(context.Background())
	require.NoError(t, err)
	_, err = run.Run(context.Background())
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRun_Cancelled(t *testing.T) {
	factory := newFakeFactory()
	m := newManager(t, factory)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, m.SetProgress(&cancelAfterFirst{cancel: cancel}))

	run, err := m.Build(nil)
	require.NoError(t, err)
	done, err := run.Run(ctx)
	require.NoError(t, err)

	cfgs := done.Configurations()
	assert.True(t, cfgs[0].Passed())
	assert.False(t, cfgs[1].Passed())
	assert.False(t, done.AllTestsPass())
	assert.NotContains(t, factory.loaders, "microbit")

	msgs := cfgs[1].Info.Messages(testinfo.LevelFailure)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Message, "run cancelled")
}

func TestRun_InterruptDoesNotReachLoaders(t *testing.T) {
	factory := newFakeFactory()
	m := newManager(t, factory)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	k22f := &fakeLoader{board: "k22f", onLoad: cancel}
	factory.loaders["k22f"] = k22f

	run, err := m.Build(nil)
	require.NoError(t, err)
	done, err := run.Run(ctx)
	require.NoError(t, err)

	assert.NoError(t, k22f.ctxErr)
	cfgs := done.Configurations()
	assert.True(t, cfgs[0].Passed(), "configuration in flight runs to completion")
	assert.False(t, cfgs[1].Passed())
	assert.Contains(t, cfgs[1].Info.Messages(testinfo.LevelFailure)[0].Message, "run cancelled")
}

type cancelAfterFirst struct {
	cancel context.CancelFunc
}

func (c *cancelAfterFirst) OnConfigurationStart(int, int, *TestConfiguration) {}

func (c *cancelAfterFirst) OnConfigurationDone(index, _ int, _ *TestConfiguration) {
	if index == 0 {
		c.cancel()
	}
}

func TestConfiguredRun_Plan(t *testing.T) {
	m := newManager(t, newFakeFactory())
	require.NoError(t, m.SetFirmwareFilter([]string{"k20dx_k22f_if"}))
	run, err := m.Build(nil)
	require.NoError(t, err)

	plan := run.Plan()
	require.Len(t, plan.Configurations, 1)
	assert.Equal(t, "k20dx_k22f_if k22f", plan.Configurations[0].Name)
	assert.Empty(t, run.Untested())
}
