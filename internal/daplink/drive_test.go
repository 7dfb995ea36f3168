package daplink

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"dapcheck/internal/catalog"
	"dapcheck/internal/resolve"
	"dapcheck/internal/runner"
	"dapcheck/internal/testinfo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testOptions = Options{
	RemountTimeout: 5 * time.Second,
	PollInterval:   5 * time.Millisecond,
}

// fakeDevice emulates a DAPLink drive: writing START_BL.CFG, START_IF.CFG or
// an image makes the mount point disappear and come back.
type fakeDevice struct {
	mount string

	mu     sync.Mutex
	mode   Mode
	loaded []string

	stop chan struct{}
	done chan struct{}
}

func newFakeDevice(t *testing.T, mode Mode) *fakeDevice {
	t.Helper()
	f := &fakeDevice{
		mount: filepath.Join(t.TempDir(), "DAPLINK"),
		mode:  mode,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	require.NoError(t, f.populate(mode, ""))
	return f
}

func (f *fakeDevice) start(t *testing.T) {
	go f.loop()
	t.Cleanup(func() {
		close(f.stop)
		<-f.done
	})
}

func (f *fakeDevice) board() catalog.Board {
	return catalog.Board{Name: "k64f", UniqueID: testUniqueID, BoardID: 0x0240, MountPoint: f.mount, MSD: true}
}

func (f *fakeDevice) Loaded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.loaded...)
}

// populate builds the drive contents next to the mount point and renames
// them into place so a reader never sees a half written drive.
func (f *fakeDevice) populate(mode Mode, failure string) error {
	staging := f.mount + ".staging"
	if err := os.MkdirAll(staging, 0755); err != nil {
		return err
	}
	page := "MBED.HTM"
	if mode == ModeBootloader {
		page = "HELP_FAQ.HTM"
	}
	files := map[string]string{
		DetailsFile: detailsText(testUniqueID, "97969900", mode),
		page:        "<html></html>\r\n",
	}
	if failure != "" {
		files[FailFile] = failure
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(staging, name), []byte(content), 0644); err != nil {
			return err
		}
	}
	return os.Rename(staging, f.mount)
}

func (f *fakeDevice) loop() {
	defer close(f.done)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-f.stop:
			return
		case <-ticker.C:
			f.poll()
		}
	}
}

func (f *fakeDevice) poll() {
	entries, err := os.ReadDir(f.mount)
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		switch {
		case name == StartBLFile:
			f.reset(ModeBootloader, "")
			return
		case name == StartIFFile:
			f.reset(ModeInterface, "")
			return
		case strings.HasSuffix(name, ".hex") || strings.HasSuffix(name, ".bin"):
			// Let the host finish writing.
			time.Sleep(20 * time.Millisecond)
			data, _ := os.ReadFile(filepath.Join(f.mount, name))
			failure := ""
			if len(data) > 0 && bytes.Count(data, []byte{0xff}) == len(data) {
				failure = FailTransferTimeout
			}
			f.mu.Lock()
			f.loaded = append(f.loaded, name)
			f.mu.Unlock()
			f.reset(ModeInterface, failure)
			return
		}
	}
}

func (f *fakeDevice) reset(mode Mode, failure string) {
	_ = os.RemoveAll(f.mount)
	time.Sleep(30 * time.Millisecond)
	f.mu.Lock()
	f.mode = mode
	f.mu.Unlock()
	_ = f.populate(mode, failure)
}

func writeImage(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestNewDrive(t *testing.T) {
	dev := newFakeDevice(t, ModeInterface)
	d, err := NewDrive(dev.board(), testOptions)
	require.NoError(t, err)
	assert.Equal(t, ModeInterface, d.Mode())
	assert.Equal(t, "97969900", d.Details()[KeyHDKID])
	assert.Nil(t, d.Assert())
	assert.True(t, d.Connected())

	msg, err := d.FailureMessage()
	require.NoError(t, err)
	assert.Empty(t, msg)

	_, err = NewDrive(catalog.Board{Name: "nomount"}, testOptions)
	assert.Error(t, err)

	_, err = NewDrive(catalog.Board{Name: "gone", MountPoint: filepath.Join(t.TempDir(), "x")}, testOptions)
	assert.Error(t, err)

	_, err = NewDrive(catalog.Board{Name: "blank", MountPoint: t.TempDir()}, testOptions)
	assert.Error(t, err)
}

func TestDrive_LoadInterface(t *testing.T) {
	dev := newFakeDevice(t, ModeInterface)
	dev.start(t)

	d, err := NewDrive(dev.board(), testOptions)
	require.NoError(t, err)
	d.SetCheckFSOnRemount(true)

	image := writeImage(t, "k20dx_k64f_if.hex", []byte(":00000001FF\r\n"))
	log := testinfo.New("cfg")
	require.NoError(t, d.LoadInterface(context.Background(), image, log))

	assert.False(t, log.Failed(), failureMessages(log))
	assert.Equal(t, ModeInterface, d.Mode())
	assert.Equal(t, []string{"k20dx_k64f_if.hex"}, dev.Loaded())

	var infos []string
	for _, m := range log.Messages(testinfo.LevelInfo) {
		infos = append(infos, m.Message)
	}
	assert.Contains(t, infos, "changing mode IF -> BL")
}

func TestDrive_LoadBootloader(t *testing.T) {
	dev := newFakeDevice(t, ModeBootloader)
	dev.start(t)

	d, err := NewDrive(dev.board(), testOptions)
	require.NoError(t, err)

	image := writeImage(t, "k20dx_bl.hex", []byte(":00000001FF\r\n"))
	log := testinfo.New("cfg")
	require.NoError(t, d.LoadBootloader(context.Background(), image, log))
	assert.False(t, log.Failed(), failureMessages(log))
	assert.Equal(t, []string{"k20dx_bl.hex"}, dev.Loaded())
}

func TestDrive_DeviceReportsFailure(t *testing.T) {
	dev := newFakeDevice(t, ModeBootloader)
	dev.start(t)

	d, err := NewDrive(dev.board(), testOptions)
	require.NoError(t, err)

	image := writeImage(t, "blank.bin", bytes.Repeat([]byte{0xff}, 64))
	log := testinfo.New("cfg")
	require.NoError(t, d.LoadInterface(context.Background(), image, log))
	assert.Equal(t, []string{"Device reported failure: The transfer timed out."}, failureMessages(log))
}

func TestDrive_RemountTimeout(t *testing.T) {
	// The device never resets.
	dev := newFakeDevice(t, ModeBootloader)
	opts := testOptions
	opts.RemountTimeout = 100 * time.Millisecond

	d, err := NewDrive(dev.board(), opts)
	require.NoError(t, err)

	image := writeImage(t, "k20dx_k64f_if.hex", []byte("x"))
	log := testinfo.New("cfg")
	err = d.LoadInterface(context.Background(), image, log)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRemountTimeout))
	assert.False(t, log.Failed(), "returned errors are left for the caller to record")
}

func TestDrive_FailedModeSwitchCountedOnce(t *testing.T) {
	// The device never resets, so START_BL.CFG is ignored.
	dev := newFakeDevice(t, ModeInterface)
	opts := testOptions
	opts.RemountTimeout = 100 * time.Millisecond

	m := runner.NewManager(NewFactory(opts))
	require.NoError(t, m.AddFirmware(catalog.Firmware{
		Name: "k20dx_k64f_if", Kind: catalog.KindInterface, BoardID: 0x0240, HasBoardID: true,
		HexPath: writeImage(t, "k20dx_k64f_if.hex", []byte("x")),
	}))
	require.NoError(t, m.AddBoards(dev.board()))
	require.NoError(t, m.SetLoadBootloader(false))
	require.NoError(t, m.SetTestEndpoints(false))

	run, err := m.Build(nil)
	require.NoError(t, err)
	done, err := run.Run(context.Background())
	require.NoError(t, err)

	cfgs := done.Configurations()
	require.Len(t, cfgs, 1)
	assert.Equal(t, 1, cfgs[0].Info.Failures())
	msgs := failureMessages(cfgs[0].Info)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "loading interface k20dx_k64f_if failed")
	assert.Contains(t, msgs[0], "changing mode to")
}

func TestDrive_ContextCancelled(t *testing.T) {
	dev := newFakeDevice(t, ModeInterface)
	d, err := NewDrive(dev.board(), testOptions)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = d.SetMode(ctx, ModeBootloader, testinfo.New("cfg"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFactory_CachesDrives(t *testing.T) {
	dev := newFakeDevice(t, ModeInterface)
	f := NewFactory(testOptions)

	a, err := f.Drive(dev.board())
	require.NoError(t, err)
	b, err := f.Loader(dev.board())
	require.NoError(t, err)
	assert.Same(t, a, b)

	_, err = f.Loader(catalog.Board{Name: "missing"})
	assert.Error(t, err)
}

func testConfiguration(dev *fakeDevice, target *catalog.Target, ifHex string) *runner.TestConfiguration {
	return &runner.TestConfiguration{Configuration: resolve.Configuration{
		Name:       "k20dx_k64f_if k64f",
		Board:      dev.board(),
		IFFirmware: catalog.Firmware{Name: "k20dx_k64f_if", Kind: catalog.KindInterface, HexPath: ifHex},
		Target:     target,
	}}
}

func TestProductValidator(t *testing.T) {
	dev := newFakeDevice(t, ModeInterface)
	dev.start(t)

	ifHex := writeImage(t, "k20dx_k64f_if.hex", []byte(":00000001FF\r\n"))
	v := NewProductValidator(NewFactory(testOptions))
	log := testinfo.New("cfg")
	require.NoError(t, v.Validate(context.Background(), testConfiguration(dev, nil, ifHex), log))
	assert.False(t, log.Failed(), failureMessages(log))
	assert.Equal(t, []string{"k20dx_k64f_if.hex"}, dev.Loaded())
}

func TestEndpointValidator(t *testing.T) {
	dev := newFakeDevice(t, ModeInterface)
	dev.start(t)

	bin := bytes.Repeat([]byte{0x01, 0x02, 0x03, 0x04}, 0x800)
	target := &catalog.Target{
		Name:    "FRDM-K64F",
		BoardID: 0x0240,
		BinPath: writeImage(t, "FRDM-K64F.bin", bin),
		HexPath: writeImage(t, "FRDM-K64F.hex", []byte(":00000001FF\r\n")),
	}

	v := NewEndpointValidator(NewFactory(testOptions))
	log := testinfo.New("cfg")
	require.NoError(t, v.Validate(context.Background(), testConfiguration(dev, target, ""), log))
	assert.False(t, log.Failed(), failureMessages(log))
	assert.Equal(t, []string{
		"FRDM-K64F.bin",
		"image.bin",
		"FRDM-K64F.hex",
		"image.hex",
		"image.bin",
		"image.bin",
		"image.bin",
	}, dev.Loaded())

	var infos []string
	for _, m := range log.Messages(testinfo.LevelInfo) {
		infos = append(infos, m.Message)
	}
	assert.Contains(t, infos, "Failure as expected: The transfer timed out.")
}

func TestEndpointValidator_NoTarget(t *testing.T) {
	dev := newFakeDevice(t, ModeInterface)
	v := NewEndpointValidator(NewFactory(testOptions))
	log := testinfo.New("cfg")
	require.NoError(t, v.Validate(context.Background(), testConfiguration(dev, nil, ""), log))
	assert.False(t, log.Failed())
	assert.Equal(t, 1, log.Warnings())
}
