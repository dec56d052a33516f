package mono

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// DumpOptions configures Dump.
type DumpOptions struct {
	// OnlyInstantiated skips clazzes no instance of which can exist.
	OnlyInstantiated bool
	// MaxName truncates long clazz names; 0 keeps them whole.
	MaxName int
}

// Dump writes one aligned line per clazz.
func Dump(w io.Writer, r *Registry, opts DumpOptions) error {
	if w == nil || r == nil {
		return nil
	}
	ids := r.All()
	names := make([]string, len(ids))
	width := 0
	for i, id := range ids {
		n := r.Name(id)
		if opts.MaxName > 0 {
			n = runewidth.Truncate(n, opts.MaxName, "…")
		}
		names[i] = n
		width = max(width, runewidth.StringWidth(n))
	}
	for i, id := range ids {
		if opts.OnlyInstantiated && !r.IsInstantiated(id) {
			continue
		}
		var flags []string
		if r.IsInstantiated(id) {
			flags = append(flags, "inst")
		}
		if r.IsCalled(id) {
			flags = append(flags, "called")
		}
		if r.IsCalledAsOuter(id) {
			flags = append(flags, "outer")
		}
		if r.Clazz(id).Normalized {
			flags = append(flags, "norm")
		}
		if s := r.SpecialOf(id); s != SpecialNone {
			flags = append(flags, "special="+s.String())
		}
		line := fmt.Sprintf("#%-4d %s  outer=#%d heirs=%v %s",
			id, runewidth.FillRight(names[i], width), r.Clazz(id).Outer, r.Heirs(id), strings.Join(flags, ","))
		if _, err := fmt.Fprintln(w, strings.TrimRight(line, " ")); err != nil {
			return err
		}
	}
	return nil
}
