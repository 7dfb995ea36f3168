package config

import (
	"fmt"
	"sort"
	"strings"

	"dapcheck/internal/report"
	"dapcheck/internal/testinfo"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// Validate checks every field that has a restricted set of values.
func Validate(c DapcheckConfig) ValidationErrors {
	var errs ValidationErrors

	if _, err := report.ParseVerbosity(c.Verbosity); err != nil {
		errs.Add("verbosity", err.Error(), c.Verbosity)
	}
	if _, err := report.ParseFormat(c.Report.Format); err != nil {
		errs.Add("report.format", err.Error(), c.Report.Format)
	}
	if c.Report.HeaderTemplate != "" {
		if _, err := report.NewPrinter(report.VerbosityNormal, c.Report.HeaderTemplate); err != nil {
			errs.Add("report.headerTemplate", err.Error(), c.Report.HeaderTemplate)
		}
	}
	if _, err := testinfo.ParseLevel(c.Report.FileLevel); err != nil {
		errs.Add("report.fileLevel", err.Error(), c.Report.FileLevel)
	}
	if c.RemountTimeout <= 0 {
		errs.Add("remountTimeout", "must be positive", c.RemountTimeout)
	}
	if c.PollInterval <= 0 {
		errs.Add("pollInterval", "must be positive", c.PollInterval)
	}
	if c.FlushDelay < 0 {
		errs.Add("flushDelay", "must not be negative", c.FlushDelay)
	}
	names := make([]string, 0, len(c.IDTable.Firmware))
	for name := range c.IDTable.Firmware {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !strings.HasSuffix(name, "_if") {
			errs.Add("idTable.firmware", fmt.Sprintf("%q is not an interface firmware name", name), name)
		}
	}

	return errs
}
