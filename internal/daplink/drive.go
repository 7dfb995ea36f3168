package daplink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dapcheck/internal/catalog"
	"dapcheck/internal/runner"
	"dapcheck/internal/testinfo"
	"dapcheck/pkg/logging"

	"github.com/dustin/go-humanize"
)

// Default timings.
const (
	DefaultRemountTimeout = 15 * time.Second
	DefaultPollInterval   = 100 * time.Millisecond
	DefaultFlushDelay     = 100 * time.Millisecond
)

// Options tunes drive timings. A zero RemountTimeout or PollInterval selects
// the default; a zero FlushDelay writes chunks back to back.
type Options struct {
	// RemountTimeout bounds the whole unmount plus mount cycle.
	RemountTimeout time.Duration
	// PollInterval is the fallback polling period while waiting for a remount.
	PollInterval time.Duration
	// FlushDelay is the pause between chunks when simulating flushed writes.
	FlushDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.RemountTimeout <= 0 {
		o.RemountTimeout = DefaultRemountTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	return o
}

// Drive is the mass storage view of one DAPLink board. Problems found on
// the drive are logged as failures; returned errors are not, since the
// caller records them.
type Drive struct {
	board   catalog.Board
	opts    Options
	mode    Mode
	details map[string]string
	assert  *AssertInfo
	checkFS bool
}

var _ runner.BoardLoader = (*Drive)(nil)

// NewDrive opens the drive of board. The drive must be mounted.
func NewDrive(board catalog.Board, opts Options) (*Drive, error) {
	if board.MountPoint == "" {
		return nil, fmt.Errorf("board %s has no mount point", board.Name)
	}
	d := &Drive{board: board, opts: opts.withDefaults()}
	if err := d.refresh(); err != nil {
		return nil, fmt.Errorf("board %s: %w", board.Name, err)
	}
	return d, nil
}

// refresh re-reads everything that can change across a remount.
func (d *Drive) refresh() error {
	if !isDir(d.board.MountPoint) {
		return fmt.Errorf("drive %s is not mounted", d.board.MountPoint)
	}
	details, err := ParseKVPFile(d.FilePath(DetailsFile), nil)
	if err != nil {
		return err
	}
	mode, err := DetectMode(d.board.MountPoint, details)
	if err != nil {
		return err
	}
	assert, err := ReadAssert(d.board.MountPoint)
	if err != nil {
		return err
	}
	d.details = details
	d.mode = mode
	d.assert = assert
	return nil
}

// Board returns the board this drive belongs to.
func (d *Drive) Board() catalog.Board {
	return d.board
}

// Mode returns the mode seen at the last mount.
func (d *Drive) Mode() Mode {
	return d.mode
}

// Details returns details.txt as parsed at the last mount.
func (d *Drive) Details() map[string]string {
	return d.details
}

// Assert returns the firmware assertion seen at the last mount, if any.
func (d *Drive) Assert() *AssertInfo {
	return d.assert
}

// FilePath returns the path of name on the drive.
func (d *Drive) FilePath(name string) string {
	return filepath.Join(d.board.MountPoint, name)
}

// Connected reports whether the drive is currently mounted.
func (d *Drive) Connected() bool {
	return isDir(d.board.MountPoint)
}

// FailureMessage returns the contents of FAIL.TXT, or "" if it is absent.
func (d *Drive) FailureMessage() (string, error) {
	if !d.Connected() {
		return "", fmt.Errorf("board %s not connected", d.board.Name)
	}
	data, err := os.ReadFile(d.FilePath(FailFile))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", FailFile, err)
	}
	return string(data), nil
}

// SetCheckFSOnRemount enables CheckFSContents after every remount.
func (d *Drive) SetCheckFSOnRemount(enabled bool) {
	d.checkFS = enabled
}

// SetMode switches the board to mode by creating START_BL.CFG or
// START_IF.CFG and waiting for the drive to come back.
func (d *Drive) SetMode(ctx context.Context, mode Mode, parent *testinfo.TestInfo) error {
	log := parent.CreateSubtest("set_mode")
	if d.mode == mode {
		return nil
	}

	var trigger string
	switch mode {
	case ModeBootloader:
		log.Info("changing mode IF -> BL")
		trigger = StartBLFile
	case ModeInterface:
		log.Info("changing mode BL -> IF")
		trigger = StartIFFile
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}

	err := d.remountAfter(ctx, log, func() error {
		f, err := os.Create(d.FilePath(trigger))
		if err != nil {
			return err
		}
		return f.Close()
	})
	if err != nil {
		return fmt.Errorf("changing mode to %s: %w", mode, err)
	}

	if d.mode != mode {
		return fmt.Errorf("could not change board mode to %s, board in %s mode", mode, d.mode)
	}
	return nil
}

// LoadInterface programs an interface image from the bootloader.
func (d *Drive) LoadInterface(ctx context.Context, path string, parent *testinfo.TestInfo) error {
	log := parent.CreateSubtest("load_interface")
	if err := d.SetMode(ctx, ModeBootloader, log); err != nil {
		return err
	}
	return d.loadImage(ctx, path, log)
}

// LoadBootloader programs a bootloader image from the interface firmware.
func (d *Drive) LoadBootloader(ctx context.Context, path string, parent *testinfo.TestInfo) error {
	log := parent.CreateSubtest("load_bootloader")
	if err := d.SetMode(ctx, ModeInterface, log); err != nil {
		return err
	}
	return d.loadImage(ctx, path, log)
}

func (d *Drive) loadImage(ctx context.Context, path string, log *testinfo.TestInfo) error {
	var (
		took    time.Duration
		written int64
	)
	err := d.remountAfter(ctx, log, func() error {
		start := time.Now()
		n, err := copyFile(path, d.FilePath(filepath.Base(path)))
		took, written = time.Since(start), n
		return err
	})
	log.Info("programming %s took %s", humanize.IBytes(uint64(written)), took.Round(time.Millisecond))
	if err != nil {
		return fmt.Errorf("loading %s: %w", filepath.Base(path), err)
	}

	msg, err := d.FailureMessage()
	if err != nil {
		return err
	}
	if msg != "" {
		log.Failure("Device reported failure: %s", strings.TrimSpace(msg))
	}
	return nil
}

// remountAfter runs trigger and waits for the drive to unmount and mount
// again. The watcher is armed before trigger so a fast reset is not missed.
func (d *Drive) remountAfter(ctx context.Context, parent *testinfo.TestInfo, trigger func() error) error {
	w := newMountWatcher(d.board.MountPoint, d.opts.PollInterval)
	defer w.Close()

	if err := trigger(); err != nil {
		return err
	}
	return d.waitForRemount(ctx, w, parent)
}

func (d *Drive) waitForRemount(ctx context.Context, w *mountWatcher, parent *testinfo.TestInfo) error {
	log := parent.CreateSubtest("wait_for_remount")
	deadline := time.Now().Add(d.opts.RemountTimeout)

	start := time.Now()
	if err := w.waitFor(ctx, deadline, func() bool { return !d.Connected() }); err != nil {
		return fmt.Errorf("dismount: %w", err)
	}
	log.Info("unmount took %s", time.Since(start).Round(time.Millisecond))

	start = time.Now()
	err := w.waitFor(ctx, deadline, func() bool {
		return d.Connected() && d.refresh() == nil
	})
	if err != nil {
		return fmt.Errorf("mount: %w", err)
	}
	log.Info("mount took %s", time.Since(start).Round(time.Millisecond))
	logging.Debug("DAPLink", "Board %s remounted in %s mode", d.board.Name, d.mode)

	if d.assert != nil {
		log.Failure("Firmware assert at %s:%s", d.assert.File, d.assert.Line)
	}
	if d.checkFS {
		CheckFSContents(d.board.MountPoint, d.board.UniqueID, log)
	}
	return nil
}

// copyFile copies src to dst and returns the number of bytes written.
func copyFile(src, dst string) (n int64, err error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return io.Copy(out, in)
}
