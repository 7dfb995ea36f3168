package config

import (
	"time"

	"dapcheck/internal/catalog"
	"dapcheck/internal/testinfo"
)

// DapcheckConfig is the top-level configuration structure for dapcheck.
type DapcheckConfig struct {
	// IDTable maps firmware, HDK and target names to hardware identities.
	IDTable catalog.IDTableSpec `yaml:"idTable"`

	LogDir         string `yaml:"logDir,omitempty"`         // Directory the result files are written to (must not exist)
	Verbosity      string `yaml:"verbosity,omitempty"`      // Minimal, Normal, Verbose or All
	TargetDir      string `yaml:"targetDir,omitempty"`      // Directory with pre-built target test images
	FirmwareDir    string `yaml:"firmwareDir,omitempty"`    // Directory with firmware images to test
	BoardInventory string `yaml:"boardInventory,omitempty"` // yaml list of attached boards

	RemountTimeout time.Duration `yaml:"remountTimeout,omitempty"` // Bound on a drive unmount plus mount cycle
	PollInterval   time.Duration `yaml:"pollInterval,omitempty"`   // Fallback polling period for remount detection
	FlushDelay     time.Duration `yaml:"flushDelay,omitempty"`     // Pause between chunks in flushed mass storage writes

	StrictHDK bool `yaml:"strictHDK,omitempty"` // Treat HDK id mismatches as resolution errors

	Report ReportConfig `yaml:"report"`
}

// ReportConfig controls result output.
type ReportConfig struct {
	Format         string `yaml:"format,omitempty"`         // none, json or yaml summary next to the result files
	HeaderTemplate string `yaml:"headerTemplate,omitempty"` // text/template with sprig functions, printed above each configuration
	FileLevel      string `yaml:"fileLevel,omitempty"`      // Minimum level written to result files: Info, Warning or Failure
}

// Table builds the identity table described by the configuration.
func (c DapcheckConfig) Table() *catalog.IDTable {
	return catalog.NewIDTable(c.IDTable)
}

// Level returns the minimum level written to result files.
func (r ReportConfig) Level() testinfo.Level {
	level, err := testinfo.ParseLevel(r.FileLevel)
	if err != nil {
		return testinfo.LevelInfo
	}
	return level
}
