package report

import (
	"fmt"
	"strings"

	"dapcheck/internal/testinfo"
)

// Verbosity selects how much of each configuration's log is printed.
type Verbosity string

const (
	VerbosityMinimal Verbosity = "Minimal"
	VerbosityNormal  Verbosity = "Normal"
	VerbosityVerbose Verbosity = "Verbose"
	VerbosityAll     Verbosity = "All"
)

// Verbosities lists the accepted values in increasing order.
var Verbosities = []Verbosity{VerbosityMinimal, VerbosityNormal, VerbosityVerbose, VerbosityAll}

// ParseVerbosity accepts any casing of a known verbosity name.
func ParseVerbosity(name string) (Verbosity, error) {
	for _, v := range Verbosities {
		if strings.EqualFold(name, string(v)) {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown verbosity %q (expected one of %s)", name, verbosityNames())
}

func verbosityNames() string {
	names := make([]string, len(Verbosities))
	for i, v := range Verbosities {
		names[i] = string(v)
	}
	return strings.Join(names, ", ")
}

// Filter returns the minimum level and maximum subtest depth printed at this
// verbosity. Minimal only shows top-level failures.
func (v Verbosity) Filter() (testinfo.Level, int) {
	switch v {
	case VerbosityMinimal:
		return testinfo.LevelFailure, 0
	case VerbosityAll:
		return testinfo.LevelInfo, testinfo.Unlimited
	default:
		return testinfo.LevelWarning, testinfo.Unlimited
	}
}
