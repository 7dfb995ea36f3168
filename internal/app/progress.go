package app

import (
	"fmt"
	"io"
	"time"

	"dapcheck/internal/runner"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
)

// spinnerProgress shows a spinner while a configuration executes and a
// one-line verdict once it is done.
type spinnerProgress struct {
	out     io.Writer
	spinner *spinner.Spinner
}

var _ runner.Progress = (*spinnerProgress)(nil)

func newSpinnerProgress(out io.Writer) *spinnerProgress {
	return &spinnerProgress{
		out:     out,
		spinner: spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out)),
	}
}

func (p *spinnerProgress) OnConfigurationStart(index, total int, cfg *runner.TestConfiguration) {
	p.spinner.Suffix = fmt.Sprintf(" [%d/%d] Testing %s...", index+1, total, cfg.Name)
	p.spinner.Start()
}

func (p *spinnerProgress) OnConfigurationDone(index, total int, cfg *runner.TestConfiguration) {
	p.spinner.Stop()
	verdict := text.FgGreen.Sprint("passed")
	if !cfg.Passed() {
		verdict = text.FgRed.Sprint("failed")
	}
	fmt.Fprintf(p.out, "[%d/%d] %s %s\n", index+1, total, cfg.Name, verdict)
}
