// Package export writes finished test case records to the console, to JSON
// files and to the report database.
package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/y0f/apifuzz/internal/report"
)

// Console prints one line per test case and a closing summary.
type Console struct {
	mu  sync.Mutex
	out io.Writer

	success *color.Color
	warn    *color.Color
	fail    *color.Color
	dim     *color.Color
}

// NewConsole writes to out. mode is "on", "off" or "auto"; auto colours the
// output only when out is a terminal.
func NewConsole(out io.Writer, mode string) *Console {
	c := &Console{
		out:     out,
		success: color.New(color.FgGreen, color.Bold),
		warn:    color.New(color.FgYellow, color.Bold),
		fail:    color.New(color.FgRed, color.Bold),
		dim:     color.New(color.Faint),
	}
	enabled := mode == "on" || (mode == "auto" && isTerminal(out))
	for _, col := range []*color.Color{c.success, c.warn, c.fail, c.dim} {
		if enabled {
			col.EnableColor()
		} else {
			col.DisableColor()
		}
	}
	return c
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (c *Console) paint(result string) *color.Color {
	switch result {
	case report.ResultSuccess:
		return c.success
	case report.ResultWarning:
		return c.warn
	default:
		return c.fail
	}
}

func (c *Console) WriteToFile(_ context.Context, r *report.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	line := fmt.Sprintf("%-10s %-8s %s %s %s",
		r.TestID,
		c.paint(r.Result).Sprint(r.Result),
		r.Fuzzer,
		r.Request.Method,
		r.Path,
	)
	if r.Response.Code > 0 {
		line += fmt.Sprintf(" -> %d", r.Response.Code)
	}
	if r.ResultDetails != "" {
		line += c.dim.Sprint(" | " + r.ResultDetails)
	}
	_, err := fmt.Fprintln(c.out, line)
	return err
}

func (c *Console) WriteSummary(_ context.Context, _ []*report.Record, total, success, warn, errors int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := fmt.Fprintf(c.out, "\n%d tests: %s, %s, %s\n",
		total,
		c.success.Sprintf("%d success", success),
		c.warn.Sprintf("%d warnings", warn),
		c.fail.Sprintf("%d errors", errors),
	)
	return err
}

// WriteReportFiles is a no-op; the console has nothing left to flush.
func (c *Console) WriteReportFiles(context.Context) error { return nil }
