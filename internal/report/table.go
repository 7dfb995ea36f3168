package report

import (
	"fmt"
	"io"

	"dapcheck/internal/resolve"
	"dapcheck/internal/runner"
	"dapcheck/internal/testinfo"
	pkgstrings "dapcheck/pkg/strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const none = "-"

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

func header(cols ...string) table.Row {
	row := make(table.Row, len(cols))
	for i, c := range cols {
		row[i] = text.FgHiCyan.Sprint(c)
	}
	return row
}

// RenderPlan prints the configurations that would run and the firmware that
// cannot be tested.
func RenderPlan(w io.Writer, plan *resolve.Plan) {
	if len(plan.Configurations) == 0 {
		fmt.Fprintln(w, text.FgYellow.Sprint("No test configurations"))
	} else {
		t := newTable(w)
		t.SetTitle("Test configurations to be run")
		t.AppendHeader(header("#", "INTERFACE", "BOOTLOADER", "BOARD", "TARGET"))
		for i, cfg := range plan.Configurations {
			bl, target := none, none
			if cfg.BLFirmware != nil {
				bl = cfg.BLFirmware.Name
			}
			if cfg.Target != nil {
				target = cfg.Target.Name
			}
			t.AppendRow(table.Row{i, cfg.IFFirmware.Name, bl, cfg.Board.Name, target})
		}
		t.Render()
	}

	if len(plan.Untested) == 0 {
		fmt.Fprintln(w, text.FgGreen.Sprint("All firmware can be tested"))
		return
	}
	t := newTable(w)
	t.SetTitle("Firmware that will not be tested")
	t.AppendHeader(header("FIRMWARE", "BOARD ID", "REASON"))
	for _, u := range plan.Untested {
		boardID := none
		if u.Firmware.HasBoardID {
			boardID = u.Firmware.BoardID.String()
		}
		t.AppendRow(table.Row{u.Firmware.Name, boardID, text.FgYellow.Sprint(u.Reason.String())})
	}
	t.Render()
}

// RenderResults prints one row per executed configuration, with the first
// failure of each failed configuration cut to a single line.
func RenderResults(w io.Writer, run *runner.CompletedRun) {
	t := newTable(w)
	t.SetTitle("Run " + run.RunID)
	t.AppendHeader(header("CONFIGURATION", "RESULT", "WARNINGS", "FAILURES", "FIRST FAILURE"))
	for _, cfg := range run.Configurations() {
		result := text.FgGreen.Sprint("PASS")
		if !cfg.Passed() {
			result = text.FgRed.Sprint("FAIL")
		}
		warnings, failures, first := 0, 0, none
		if cfg.Info != nil {
			warnings = cfg.Info.Warnings()
			failures = cfg.Info.Failures()
			if msgs := cfg.Info.Messages(testinfo.LevelFailure); len(msgs) > 0 {
				first = pkgstrings.SingleLine(msgs[0].Message, pkgstrings.DefaultCellMaxLen)
			}
		}
		t.AppendRow(table.Row{cfg.Name, result, warnings, failures, first})
	}
	t.Render()
}
