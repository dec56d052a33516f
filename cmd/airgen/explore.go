package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"airgen/internal/fuir"
	"airgen/internal/mono"
)

const (
	explorePrompt  = "air> "
	exploreHistory = ".airgen_history"
)

var exploreCmd = &cobra.Command{
	Use:   "explore <program.yaml|file.air>",
	Short: "Browse an IR interactively",
	Args:  cobra.ExactArgs(1),
	RunE:  exploreExecution,
}

func exploreExecution(cmd *cobra.Command, args []string) error {
	ir, _, err := loadIR(cmd, args[0])
	if err != nil {
		return err
	}
	ex := &explorer{ir: ir, out: cmd.OutOrStdout()}
	fmt.Fprintf(ex.out, "%s: %d clazzes, %d sites; type help for commands\n",
		args[0], ir.LastClazz()-ir.FirstClazz()+1, ir.SiteEnd()-ir.FirstSite())

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(ex.complete)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, exploreHistory)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	for {
		line, err := ln.Prompt(explorePrompt)
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			fmt.Fprintln(ex.out)
			return nil
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		ln.AppendHistory(line)
		if ex.exec(line) {
			return nil
		}
	}
}

var exploreCommands = []string{"clazz", "site", "code", "heirs", "specials", "find", "sites", "help", "quit"}

// explorer answers REPL commands about one IR.
type explorer struct {
	ir  fuir.IR
	out io.Writer
}

// exec runs one command line and reports whether the session should end.
func (e *explorer) exec(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	arg := strings.Join(fields[1:], " ")
	var err error
	switch fields[0] {
	case "quit", "exit", "q":
		return true
	case "help", "?":
		e.help()
	case "clazz", "c":
		err = e.clazz(arg)
	case "site", "s":
		err = e.site(arg)
	case "code":
		err = e.code(arg)
	case "heirs":
		err = e.heirs(arg)
	case "specials":
		e.specials()
	case "find", "f":
		err = e.find(arg)
	case "sites":
		err = e.sites(arg)
	default:
		err = fmt.Errorf("unknown command %q, try help", fields[0])
	}
	if err != nil {
		fmt.Fprintf(e.out, "error: %v\n", err)
	}
	return false
}

func (e *explorer) complete(line string) []string {
	var out []string
	for _, c := range exploreCommands {
		if strings.HasPrefix(c, line) {
			out = append(out, c)
		}
	}
	return out
}

func (e *explorer) help() {
	fmt.Fprint(e.out, `commands:
  clazz <id|name>   show one clazz
  site <id>         show one site
  code <id|name>    list the code of a clazz
  heirs <id|name>   instantiated heirs of a ref clazz
  specials          special clazzes present in the IR
  find <text>       clazzes whose name contains text
  sites <kind>      sites of one expression kind, e.g. Call
  quit              leave
ids are relative (C3, S12) or absolute (0x10000003)
`)
}

// number parses "12", "C12"/"S12" (relative to base) or "0x..." (absolute).
func number(s string, prefix byte, base int64) (int64, bool) {
	if s == "" {
		return 0, false
	}
	if s[0] == prefix || s[0] == prefix+'a'-'A' {
		n, err := strconv.ParseInt(s[1:], 10, 32)
		return base + n, err == nil
	}
	n, err := strconv.ParseInt(s, 0, 32)
	if err != nil {
		return 0, false
	}
	if n < base {
		n += base
	}
	return n, true
}

func (e *explorer) clazzArg(arg string) (fuir.ClazzID, error) {
	if arg == "" {
		return fuir.NoClazz, errors.New("missing clazz")
	}
	ir := e.ir
	if n, ok := number(arg, 'C', int64(ir.FirstClazz())); ok {
		c := fuir.ClazzID(n) // #nosec G115 -- parsed with bitSize 32
		if c < ir.FirstClazz() || c > ir.LastClazz() {
			return fuir.NoClazz, fmt.Errorf("no clazz %s", arg)
		}
		return c, nil
	}
	if c, ok := fuir.ClazzByName(ir, arg); ok {
		return c, nil
	}
	return fuir.NoClazz, fmt.Errorf("no clazz named %q", arg)
}

func (e *explorer) name(c fuir.ClazzID) string {
	if !c.IsValid() {
		return "_"
	}
	return fmt.Sprintf("C%d %s", c-e.ir.FirstClazz(), e.ir.ClazzAsString(c))
}

func (e *explorer) clazz(arg string) error {
	c, err := e.clazzArg(arg)
	if err != nil {
		return err
	}
	ir := e.ir
	fmt.Fprintf(e.out, "%s\n", e.name(c))
	fmt.Fprintf(e.out, "  kind      %s\n", ir.ClazzKind(c))
	fmt.Fprintf(e.out, "  original  %s\n", ir.ClazzOriginalName(c))
	fmt.Fprintf(e.out, "  type      %s\n", ir.ClazzTypeName(c))
	fmt.Fprintf(e.out, "  outer     %s\n", e.name(ir.ClazzOuterClazz(c)))
	fmt.Fprintf(e.out, "  result    %s\n", e.name(ir.ClazzResultClazz(c)))
	fmt.Fprintf(e.out, "  lifetime  %s\n", ir.LifeTime(c))
	if s := ir.ClazzSpecial(c); s != mono.SpecialNone {
		fmt.Fprintf(e.out, "  special   %s\n", s)
	}
	if v := ir.ClazzAsValue(c); v.IsValid() && v != c {
		fmt.Fprintf(e.out, "  value     %s\n", e.name(v))
	}
	e.list("args", ir.ClazzArgs(c))
	e.list("fields", ir.ClazzFields(c))
	e.list("choices", ir.ClazzChoices(c))
	e.list("generics", ir.ClazzActualGenerics(c))
	if s := ir.ClazzCode(c); s.IsValid() {
		fmt.Fprintf(e.out, "  code      S%d (%d sites)\n", s-ir.FirstSite(), fuir.CodeSize(ir, s))
	}
	return nil
}

func (e *explorer) list(label string, cs []fuir.ClazzID) {
	if len(cs) == 0 {
		return
	}
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = e.name(c)
	}
	fmt.Fprintf(e.out, "  %-9s %s\n", label, strings.Join(names, ", "))
}

func (e *explorer) site(arg string) error {
	ir := e.ir
	n, ok := number(arg, 'S', int64(ir.FirstSite()))
	s := fuir.SiteID(n) // #nosec G115 -- parsed with bitSize 32
	if !ok || s < ir.FirstSite() || s >= ir.SiteEnd() {
		return fmt.Errorf("no site %q", arg)
	}
	if !ir.WithinCode(s) {
		fmt.Fprintf(e.out, "S%d: end of code\n", s-ir.FirstSite())
		return nil
	}
	fmt.Fprintf(e.out, "S%d: %s\n", s-ir.FirstSite(), fuir.SiteString(ir, s))
	fmt.Fprintf(e.out, "  in   %s\n", e.name(ir.ClazzAt(s)))
	if pos := ir.SitePos(s); pos != "" {
		fmt.Fprintf(e.out, "  at   %s\n", pos)
	}
	if ir.AlwaysResultsInVoid(s) {
		fmt.Fprintln(e.out, "  never returns")
	}
	return nil
}

func (e *explorer) code(arg string) error {
	c, err := e.clazzArg(arg)
	if err != nil {
		return err
	}
	if !e.ir.ClazzNeedsCode(c) {
		return fmt.Errorf("%s has no code", e.name(c))
	}
	return fuir.PrintClazz(e.out, e.ir, c, fuir.PrintOptions{Positions: true})
}

func (e *explorer) heirs(arg string) error {
	c, err := e.clazzArg(arg)
	if err != nil {
		return err
	}
	hs := e.ir.ClazzInstantiatedHeirs(c)
	if len(hs) == 0 {
		fmt.Fprintln(e.out, "no instantiated heirs")
		return nil
	}
	for _, h := range hs {
		fmt.Fprintln(e.out, e.name(h))
	}
	return nil
}

func (e *explorer) specials() {
	for s := mono.SpecialClazz(1); int(s) < mono.NumSpecials(); s++ {
		if c := e.ir.SpecialClazz(s); c.IsValid() {
			fmt.Fprintf(e.out, "%-14s %s\n", s, e.name(c))
		}
	}
}

func (e *explorer) find(arg string) error {
	if arg == "" {
		return errors.New("missing text")
	}
	n := 0
	for c := e.ir.FirstClazz(); c <= e.ir.LastClazz(); c++ {
		if strings.Contains(e.ir.ClazzAsString(c), arg) {
			fmt.Fprintln(e.out, e.name(c))
			n++
		}
	}
	if n == 0 {
		fmt.Fprintf(e.out, "no clazz matches %q\n", arg)
	}
	return nil
}

func (e *explorer) sites(arg string) error {
	k, ok := fuir.ParseExprKind(arg)
	if !ok || k == fuir.ExprNone {
		return fmt.Errorf("unknown expression kind %q", arg)
	}
	ir := e.ir
	n := 0
	for s := ir.FirstSite(); s < ir.SiteEnd(); s++ {
		if ir.WithinCode(s) && ir.CodeAt(s) == k {
			fmt.Fprintf(e.out, "S%d: %s in %s\n", s-ir.FirstSite(), fuir.SiteString(ir, s), e.name(ir.ClazzAt(s)))
			n++
		}
	}
	if n == 0 {
		fmt.Fprintf(e.out, "no %s sites\n", k)
	}
	return nil
}
