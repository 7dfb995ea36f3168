package daplink

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"dapcheck/internal/catalog"
	"dapcheck/internal/runner"
	"dapcheck/internal/testinfo"

	"github.com/dustin/go-humanize"
)

// Factory hands out one Drive per board and implements runner.LoaderFactory.
type Factory struct {
	opts Options

	mu     sync.Mutex
	drives map[string]*Drive
}

var _ runner.LoaderFactory = (*Factory)(nil)

// NewFactory creates a factory whose drives use opts.
func NewFactory(opts Options) *Factory {
	return &Factory{opts: opts, drives: make(map[string]*Drive)}
}

// Drive returns the cached drive for board, opening it on first use.
func (f *Factory) Drive(board catalog.Board) (*Drive, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := board.Name + "|" + board.MountPoint
	if d, ok := f.drives[key]; ok {
		return d, nil
	}
	d, err := NewDrive(board, f.opts)
	if err != nil {
		return nil, err
	}
	f.drives[key] = d
	return d, nil
}

// Loader implements runner.LoaderFactory.
func (f *Factory) Loader(board catalog.Board) (runner.BoardLoader, error) {
	return f.Drive(board)
}

// msdTest copies one image onto the drive and checks the reported outcome.
type msdTest struct {
	name string
	// source is copied as a whole when set; otherwise data is written to
	// fileName, in flushSize chunks when flushSize is non zero.
	source          string
	data            []byte
	fileName        string
	flushSize       int
	expectedFailure string
}

func (d *Drive) runMSDTest(ctx context.Context, t msdTest, parent *testinfo.TestInfo) error {
	log := parent.CreateSubtest(t.name)

	start := time.Now()
	written := int64(len(t.data))
	err := d.remountAfter(ctx, log, func() error {
		if t.source != "" {
			n, err := copyFile(t.source, d.FilePath(filepath.Base(t.source)))
			written = n
			return err
		}
		return d.writeChunked(ctx, d.FilePath(t.fileName), t.data, t.flushSize)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", t.name, err)
	}
	log.Info("Loading %s took %s", humanize.IBytes(uint64(written)), time.Since(start).Round(time.Millisecond))

	msg, err := d.FailureMessage()
	if err != nil {
		return err
	}
	switch {
	case msg != "" && t.expectedFailure == "":
		log.Failure("Device reported failure: %s", strings.TrimSpace(msg))
	case msg == "" && t.expectedFailure != "":
		log.Failure("Failure expected but did not occur")
	case msg != "" && msg != t.expectedFailure:
		log.Failure("Failure but wrong string: %q vs %q", msg, t.expectedFailure)
	case msg != "":
		log.Info("Failure as expected: %s", strings.TrimSpace(msg))
	}
	return nil
}

func (d *Drive) writeChunked(ctx context.Context, path string, data []byte, chunk int) error {
	if chunk <= 0 {
		return os.WriteFile(path, data, 0644)
	}
	for off := 0; off < len(data); off += chunk {
		end := off + chunk
		if end > len(data) {
			end = len(data)
		}
		// Reopen for each chunk so every write is flushed and closed on its own.
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		if _, err := f.Write(data[off:end]); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		if d.opts.FlushDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.opts.FlushDelay):
			}
		}
	}
	return nil
}

// ProductValidator runs the DAPLink specific tests: the board is put into
// bootloader mode and the interface image is reloaded through the drive.
type ProductValidator struct {
	drives *Factory
}

var _ runner.Validator = (*ProductValidator)(nil)

// NewProductValidator creates a validator that shares drives with f.
func NewProductValidator(f *Factory) *ProductValidator {
	return &ProductValidator{drives: f}
}

// Validate implements runner.Validator.
func (v *ProductValidator) Validate(ctx context.Context, cfg *runner.TestConfiguration, parent *testinfo.TestInfo) error {
	log := parent.CreateSubtest("daplink_test")
	d, err := v.drives.Drive(cfg.Board)
	if err != nil {
		return err
	}
	if err := d.SetMode(ctx, ModeBootloader, log); err != nil {
		return err
	}
	return d.runMSDTest(ctx, msdTest{
		name:   "Shutil hex file load",
		source: cfg.IFFirmware.HexPath,
	}, log)
}

// Messages DAPLink writes to FAIL.TXT.
const (
	FailTransferTimeout = "The transfer timed out.\r\n"
	blankImageSize      = 0x2000
	smallImageSize      = 0x789
	flushChunk          = 0x1000
)

// EndpointValidator exercises the USB endpoints. Only the mass storage
// endpoint is tested; HID and serial need a debug probe protocol and are
// reported as skipped.
type EndpointValidator struct {
	drives *Factory
}

var _ runner.Validator = (*EndpointValidator)(nil)

// NewEndpointValidator creates a validator that shares drives with f.
func NewEndpointValidator(f *Factory) *EndpointValidator {
	return &EndpointValidator{drives: f}
}

// Validate implements runner.Validator.
func (v *EndpointValidator) Validate(ctx context.Context, cfg *runner.TestConfiguration, parent *testinfo.TestInfo) error {
	log := parent.CreateSubtest("test_endpoints")
	log.Info("HID endpoint test skipped")
	log.Info("Serial endpoint test skipped")

	if cfg.Target == nil {
		log.Warning("No target image for board %s, mass storage test skipped", cfg.Board.Name)
		return nil
	}
	d, err := v.drives.Drive(cfg.Board)
	if err != nil {
		return err
	}
	if err := d.SetMode(ctx, ModeInterface, log); err != nil {
		return err
	}
	return d.testMassStorage(ctx, *cfg.Target, log)
}

func (d *Drive) testMassStorage(ctx context.Context, target catalog.Target, parent *testinfo.TestInfo) error {
	log := parent.CreateSubtest("test_mass_storage")

	bin, err := os.ReadFile(target.BinPath)
	if err != nil {
		return fmt.Errorf("reading target image: %w", err)
	}
	hex, err := os.ReadFile(target.HexPath)
	if err != nil {
		return fmt.Errorf("reading target image: %w", err)
	}
	small := bin
	if len(small) > smallImageSize {
		small = small[:smallImageSize]
	}

	tests := []msdTest{
		{name: "Shutil binary file load", source: target.BinPath},
		{name: "Load binary with flushes", data: bin, fileName: "image.bin", flushSize: flushChunk},
		{name: "Shutil hex file load", source: target.HexPath},
		{name: "Load hex with flushes", data: hex, fileName: "image.hex", flushSize: flushChunk},
		{name: "Load .bin smaller than sector", data: small, fileName: "image.bin"},
		{name: "Load blank binary", data: bytes.Repeat([]byte{0xff}, blankImageSize), fileName: "image.bin", expectedFailure: FailTransferTimeout},
		{name: "Load good binary to restore state", data: bin, fileName: "image.bin"},
	}
	for _, t := range tests {
		if err := d.runMSDTest(ctx, t, log); err != nil {
			return err
		}
	}
	return nil
}
