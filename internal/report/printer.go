package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"dapcheck/internal/runner"
	"dapcheck/internal/testinfo"
	"dapcheck/pkg/logging"

	"github.com/Masterminds/sprig/v3"
	"github.com/jedib0t/go-pretty/v6/text"
)

// ErrReportDirExists is returned by WriteDir when the target directory is
// already present. Results are never merged into an older run.
var ErrReportDirExists = errors.New("report directory already exists")

// headerData is the value passed to a header template.
type headerData struct {
	Name       string
	Board      string
	UniqueID   string
	Interface  string
	Bootloader string
	Target     string
	Passed     bool
	Warnings   int
	Failures   int
}

func newHeaderData(cfg *runner.TestConfiguration) headerData {
	d := headerData{
		Name:      cfg.Name,
		Board:     cfg.Board.Name,
		UniqueID:  cfg.Board.UniqueID,
		Interface: cfg.IFFirmware.Name,
		Passed:    cfg.Passed(),
	}
	if cfg.BLFirmware != nil {
		d.Bootloader = cfg.BLFirmware.Name
	}
	if cfg.Target != nil {
		d.Target = cfg.Target.Name
	}
	if cfg.Info != nil {
		d.Warnings = cfg.Info.Warnings()
		d.Failures = cfg.Info.Failures()
	}
	return d
}

// Printer writes configuration logs to a console.
type Printer struct {
	verbosity Verbosity
	header    *template.Template
}

// NewPrinter creates a printer. headerTemplate is optional; when set it is
// parsed as a text/template with the sprig function map and rendered above
// each configuration's log.
func NewPrinter(verbosity Verbosity, headerTemplate string) (*Printer, error) {
	p := &Printer{verbosity: verbosity}
	if headerTemplate == "" {
		return p, nil
	}
	tmpl, err := template.New("header").Funcs(sprig.TxtFuncMap()).Parse(headerTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing header template: %w", err)
	}
	p.header = tmpl
	return p, nil
}

// Print writes each configuration's log filtered by the printer verbosity.
func (p *Printer) Print(w io.Writer, configs []*runner.TestConfiguration) error {
	level, depth := p.verbosity.Filter()
	for _, cfg := range configs {
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
		if p.header != nil {
			if err := p.renderHeader(w, cfg); err != nil {
				return err
			}
		}
		if cfg.Info == nil {
			if _, err := fmt.Fprintf(w, "%s\n  not executed\n", cfg.Name); err != nil {
				return err
			}
			continue
		}
		if err := cfg.Info.PrintMsg(w, level, depth); err != nil {
			return err
		}
	}
	return nil
}

func (p *Printer) renderHeader(w io.Writer, cfg *runner.TestConfiguration) error {
	var sb strings.Builder
	if err := p.header.Execute(&sb, newHeaderData(cfg)); err != nil {
		return fmt.Errorf("rendering header for %s: %w", cfg.Name, err)
	}
	line := strings.TrimRight(sb.String(), "\n")
	_, err := fmt.Fprintln(w, line)
	return err
}

// Print writes each configuration's log filtered by verbosity.
func Print(w io.Writer, configs []*runner.TestConfiguration, verbosity Verbosity) error {
	p := &Printer{verbosity: verbosity}
	return p.Print(w, configs)
}

// PrintOutcome writes one warning per untested firmware followed by the
// overall verdict.
func PrintOutcome(w io.Writer, run *runner.CompletedRun) error {
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	for _, u := range run.Untested() {
		msg := fmt.Sprintf("Warning - configuration %s is untested (%s)", u.Firmware.Name, u.Reason)
		if _, err := fmt.Fprintln(w, text.FgYellow.Sprint(msg)); err != nil {
			return err
		}
	}
	verdict := text.FgGreen.Sprint("All boards passed")
	if !run.AllTestsPass() {
		verdict = text.FgRed.Sprint("Test Failed")
	}
	_, err := fmt.Fprintln(w, verdict)
	return err
}

// WriteDir creates dir and writes one <configuration name>.txt file per
// configuration containing every message at or above level. dir must not
// exist; its parent must.
func WriteDir(dir string, configs []*runner.TestConfiguration, level testinfo.Level) error {
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("%w: %s", ErrReportDirExists, dir)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking report directory %s: %w", dir, err)
	}
	if err := os.Mkdir(dir, 0755); err != nil {
		return fmt.Errorf("creating report directory %s: %w", dir, err)
	}

	for _, cfg := range configs {
		if cfg.Info == nil {
			continue
		}
		if err := writeConfigFile(filepath.Join(dir, resultFileName(cfg.Name)), cfg.Info, level); err != nil {
			return err
		}
	}
	logging.Info("Report", "Wrote %d result files to %s", len(configs), dir)
	return nil
}

// resultFileName keeps a configuration's file inside the report directory
// whatever characters the board name carries.
func resultFileName(name string) string {
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, name)
	return name + ".txt"
}

func writeConfigFile(path string, info *testinfo.TestInfo, level testinfo.Level) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", path, cerr)
		}
	}()
	if err := info.PrintMsg(f, level, testinfo.Unlimited); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
