package app

import (
	"io"
	"os"

	"dapcheck/internal/config"
)

// Config holds the options of one dapcheck invocation. Empty string fields
// fall back to the loaded DapcheckConfig.
type Config struct {
	// Custom configuration directory (optional)
	ConfigPath string

	FirmwareDir    string
	TargetDir      string
	BoardInventory string
	LogDir         string
	Verbosity      string

	// Firmware is the explicit interface firmware filter. Nil tests everything.
	Firmware []string

	NoLoadInterface  bool
	NoLoadBootloader bool
	NoTestEndpoints  bool
	NoTestDAPLink    bool
	TestFirstOnly    bool

	// DryRun prints the plan and exits without touching hardware.
	DryRun bool
	// Quiet disables the progress spinner.
	Quiet bool

	// Out receives the plan, results and outcome.
	Out io.Writer

	// Dapcheck is loaded from ConfigPath by NewApplication when nil.
	Dapcheck *config.DapcheckConfig
}

// NewConfig creates an application configuration that reads its settings
// from configPath and prints to stdout.
func NewConfig(configPath string) *Config {
	return &Config{
		ConfigPath: configPath,
		Out:        os.Stdout,
	}
}

// applyDefaults fills empty options from the loaded configuration.
func (c *Config) applyDefaults() {
	d := c.Dapcheck
	if c.FirmwareDir == "" {
		c.FirmwareDir = d.FirmwareDir
	}
	if c.TargetDir == "" {
		c.TargetDir = d.TargetDir
	}
	if c.BoardInventory == "" {
		c.BoardInventory = d.BoardInventory
	}
	if c.LogDir == "" {
		c.LogDir = d.LogDir
	}
	if c.Verbosity == "" {
		c.Verbosity = d.Verbosity
	}
	if c.Out == nil {
		c.Out = os.Stdout
	}
}
