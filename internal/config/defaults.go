package config

import (
	"time"

	"dapcheck/internal/catalog"
)

const (
	DefaultLogDir         = "../test_results"
	DefaultVerbosity      = "Normal"
	DefaultRemountTimeout = 15 * time.Second
	DefaultPollInterval   = 100 * time.Millisecond
	DefaultFlushDelay     = 100 * time.Millisecond
	DefaultReportFormat   = "none"
	DefaultFileLevel      = "Info"
)

// GetDefaultConfig returns the configuration used when no config.yaml exists.
func GetDefaultConfig() DapcheckConfig {
	return DapcheckConfig{
		IDTable:        catalog.DefaultIDTableSpec(),
		LogDir:         DefaultLogDir,
		Verbosity:      DefaultVerbosity,
		RemountTimeout: DefaultRemountTimeout,
		PollInterval:   DefaultPollInterval,
		FlushDelay:     DefaultFlushDelay,
		Report: ReportConfig{
			Format:    DefaultReportFormat,
			FileLevel: DefaultFileLevel,
		},
	}
}
