package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"airgen/internal/diag"
	"airgen/internal/source"
)

type palette struct {
	err, warn, info, code, loc, gutter, mark, note *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		err:    color.New(color.FgRed, color.Bold),
		warn:   color.New(color.FgYellow, color.Bold),
		info:   color.New(color.FgCyan),
		code:   color.New(color.Bold),
		loc:    color.New(color.FgWhite, color.Bold),
		gutter: color.New(color.FgBlue),
		mark:   color.New(color.FgGreen, color.Bold),
		note:   color.New(color.FgCyan, color.Bold),
	}
	for _, c := range []*color.Color{p.err, p.warn, p.info, p.code, p.loc, p.gutter, p.mark, p.note} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) severity(s diag.Severity) *color.Color {
	switch s {
	case diag.SevError, diag.SevFatal:
		return p.err
	case diag.SevWarning:
		return p.warn
	}
	return p.info
}

// Pretty форматирует диагностики в человекочитаемый вид.
// Идёт по bag.Items() (ожидается bag.Sort() заранее).
// Для каждого diag печатает:
// <path>:<line>:<col>: <SEV> <CODE>: <Message>
// затем контекст строки с подчёркиванием ^~~~ по Span, затем Notes с аналогичным форматом.
// Цвет включается опцией.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	if bag == nil {
		return
	}
	p := newPalette(opts.Color)
	for i, d := range bag.Items() {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s: %s %s: %s\n",
			p.loc.Sprint(location(fs, d.Primary, opts.PathMode, opts.BaseDir)),
			p.severity(d.Severity).Sprint(d.Severity.String()),
			p.code.Sprint(d.Code.ID()),
			d.Message)
		writeContext(w, fs, d.Primary, opts, p)
		if d.Detail != "" {
			for _, line := range strings.Split(d.Detail, "\n") {
				fmt.Fprintf(w, "  %s\n", line)
			}
		}
		if !opts.ShowNotes {
			continue
		}
		for _, n := range d.Notes {
			fmt.Fprintf(w, "  %s %s: %s\n",
				p.note.Sprint("note:"),
				location(fs, n.Span, opts.PathMode, opts.BaseDir),
				n.Msg)
		}
	}
}

func location(fs *source.FileSet, sp source.Span, mode PathMode, base string) string {
	if sp.IsBuiltin() {
		return "<builtin>"
	}
	f := fs.Get(sp.File)
	if f == nil {
		return sp.String()
	}
	start, _ := fs.Resolve(sp)
	return fmt.Sprintf("%s:%d:%d", formatPath(f.Path, mode, base), start.Line, start.Col)
}

func writeContext(w io.Writer, fs *source.FileSet, sp source.Span, opts PrettyOpts, p palette) {
	if sp.IsBuiltin() {
		return
	}
	f := fs.Get(sp.File)
	if f == nil {
		return
	}
	start, end := fs.Resolve(sp)
	last := uint32(len(f.LineIdx)) + 1 // #nosec G115 -- line count fits the span offsets
	ctx := uint32(max(opts.Context, 0)) // #nosec G115 -- non-negative int8
	from := uint32(1)
	if start.Line > ctx {
		from = start.Line - ctx
	}
	to := min(start.Line+ctx, last)
	gw := len(fmt.Sprint(to))
	for ln := from; ln <= to; ln++ {
		text := f.Line(ln)
		if ln != start.Line && strings.TrimSpace(text) == "" {
			continue
		}
		if opts.Width > 0 {
			text = runewidth.Truncate(text, int(opts.Width), "…")
		}
		fmt.Fprintf(w, "%s %s\n", p.gutter.Sprintf("%*d |", gw, ln), text)
		if ln != start.Line {
			continue
		}
		stop := end.Col
		if end.Line != start.Line {
			stop = uint32(len(f.Line(ln))) + 1 // #nosec G115 -- bounded by file size
		}
		fmt.Fprintf(w, "%s %s\n",
			p.gutter.Sprintf("%*s |", gw, ""),
			p.mark.Sprint(underline(f.Line(ln), start.Col, stop)))
	}
}

// underline builds "  ^~~~" under the byte columns [from, to) of line.
func underline(line string, from, to uint32) string {
	var sb strings.Builder
	lead := int(from) - 1
	if lead > len(line) {
		lead = len(line)
	}
	for _, r := range line[:lead] {
		if r == '\t' {
			sb.WriteByte('\t')
			continue
		}
		sb.WriteString(strings.Repeat(" ", runewidth.RuneWidth(r)))
	}
	stop := int(to) - 1
	if stop > len(line) {
		stop = len(line)
	}
	width := 1
	if stop > lead {
		width = max(runewidth.StringWidth(line[lead:stop]), 1)
	}
	sb.WriteByte('^')
	sb.WriteString(strings.Repeat("~", width-1))
	return sb.String()
}
