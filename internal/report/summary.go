package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dapcheck/internal/runner"
	"dapcheck/internal/testinfo"

	"gopkg.in/yaml.v3"
)

// Format is a machine readable summary encoding.
type Format string

const (
	FormatNone Format = "none"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts "none", "json" or "yaml". An empty string means none.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(name)) {
	case "", FormatNone:
		return FormatNone, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown summary format %q", name)
	}
}

// Summary is the machine readable outcome of a run.
type Summary struct {
	RunID          string                 `json:"runId" yaml:"runId"`
	Started        time.Time              `json:"started" yaml:"started"`
	Finished       time.Time              `json:"finished" yaml:"finished"`
	AllPassed      bool                   `json:"allPassed" yaml:"allPassed"`
	Configurations []ConfigurationSummary `json:"configurations" yaml:"configurations"`
	Untested       []UntestedSummary      `json:"untested" yaml:"untested"`
}

// ConfigurationSummary describes one executed configuration.
type ConfigurationSummary struct {
	Name       string             `json:"name" yaml:"name"`
	Board      string             `json:"board" yaml:"board"`
	UniqueID   string             `json:"uniqueId,omitempty" yaml:"uniqueId,omitempty"`
	Interface  string             `json:"interface" yaml:"interface"`
	Bootloader string             `json:"bootloader,omitempty" yaml:"bootloader,omitempty"`
	Target     string             `json:"target,omitempty" yaml:"target,omitempty"`
	Passed     bool               `json:"passed" yaml:"passed"`
	Warnings   int                `json:"warnings" yaml:"warnings"`
	Failures   []testinfo.Message `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// UntestedSummary describes firmware that had no configuration.
type UntestedSummary struct {
	Firmware string `json:"firmware" yaml:"firmware"`
	Reason   string `json:"reason" yaml:"reason"`
}

// NewSummary builds a summary from a completed run.
func NewSummary(run *runner.CompletedRun) *Summary {
	s := &Summary{
		RunID:          run.RunID,
		Started:        run.Started,
		Finished:       run.Finished,
		AllPassed:      run.AllTestsPass(),
		Configurations: []ConfigurationSummary{},
		Untested:       []UntestedSummary{},
	}
	for _, cfg := range run.Configurations() {
		d := newHeaderData(cfg)
		cs := ConfigurationSummary{
			Name:       d.Name,
			Board:      d.Board,
			UniqueID:   d.UniqueID,
			Interface:  d.Interface,
			Bootloader: d.Bootloader,
			Target:     d.Target,
			Passed:     d.Passed,
			Warnings:   d.Warnings,
		}
		if cfg.Info != nil {
			cs.Failures = cfg.Info.Messages(testinfo.LevelFailure)
		}
		s.Configurations = append(s.Configurations, cs)
	}
	for _, u := range run.Untested() {
		s.Untested = append(s.Untested, UntestedSummary{Firmware: u.Firmware.Name, Reason: u.Reason.String()})
	}
	return s
}

// Encode writes the summary in the given format.
func (s *Summary) Encode(w io.Writer, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("cannot encode summary as %q", format)
	}
}

// WriteSummary stores the summary as summary.<format> in dir and returns the
// file path. FormatNone writes nothing.
func WriteSummary(dir string, s *Summary, format Format) (string, error) {
	if format == FormatNone {
		return "", nil
	}
	path := filepath.Join(dir, "summary."+string(format))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating summary: %w", err)
	}
	if err := s.Encode(f, format); err != nil {
		f.Close()
		return "", fmt.Errorf("encoding summary: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing summary: %w", err)
	}
	return path, nil
}
