package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"github.com/tos-network/anchorgen/dsl/diag"
)

// useColor reports whether w is a terminal that should receive colour.
func useColor(c *cli.Context, w io.Writer) bool {
	if c.Bool(noColorFlag.Name) {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) && os.Getenv("TERM") != "dumb"
}

type painter struct {
	errLabel *color.Color
	location *color.Color
	note     *color.Color
}

func newPainter(enabled bool) painter {
	p := painter{
		errLabel: color.New(color.FgRed, color.Bold),
		location: color.New(color.FgCyan),
		note:     color.New(color.Faint),
	}
	if enabled {
		p.errLabel.EnableColor()
		p.location.EnableColor()
		p.note.EnableColor()
	} else {
		p.errLabel.DisableColor()
		p.location.DisableColor()
		p.note.DisableColor()
	}
	return p
}

// formatDiagnostic renders d in a compiler-style block:
//
//	error[ANC3001] MissingBumpField: state type 'S' has no bump field 'bump'
//	  --> p.ts:4:5
//	  = instruction run, account s, field bump
func (p painter) formatDiagnostic(d diag.Diagnostic) string {
	var b strings.Builder
	b.WriteString(p.errLabel.Sprintf("error[%s]", d.Code))
	fmt.Fprintf(&b, " %s: %s\n", d.Kind, d.Message)
	if d.Span.File != "" {
		loc := d.Span.File
		if d.Span.Start.Line > 0 {
			loc = fmt.Sprintf("%s:%d:%d", loc, d.Span.Start.Line, d.Span.Start.Column)
		}
		b.WriteString("  --> " + p.location.Sprint(loc) + "\n")
	}
	var ctx []string
	if d.Instruction != "" {
		ctx = append(ctx, "instruction "+d.Instruction)
	}
	if d.Account != "" {
		ctx = append(ctx, "account "+d.Account)
	}
	if d.Field != "" {
		ctx = append(ctx, "field "+d.Field)
	}
	if len(ctx) > 0 {
		b.WriteString("  = " + p.note.Sprint(strings.Join(ctx, ", ")) + "\n")
	}
	return b.String()
}

// report writes err to w, expanding every diagnostic it carries.
func (p painter) report(w io.Writer, err error) {
	var ds diag.Diagnostics
	var d diag.Diagnostic
	switch {
	case asDiagnostics(err, &ds):
		for _, one := range ds {
			fmt.Fprint(w, p.formatDiagnostic(one))
		}
	case asDiagnostic(err, &d):
		fmt.Fprint(w, p.formatDiagnostic(d))
	default:
		fmt.Fprintln(w, p.errLabel.Sprint("error")+": "+err.Error())
	}
}

func asDiagnostics(err error, out *diag.Diagnostics) bool {
	return errors.As(err, out) && len(*out) > 0
}

func asDiagnostic(err error, out *diag.Diagnostic) bool {
	d, ok := diag.First(err)
	if ok {
		*out = d
	}
	return ok
}
