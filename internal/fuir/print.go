package fuir

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// PrintOptions configures IR dumping.
type PrintOptions struct {
	// All prints clazzes that need no code too.
	All bool
	// Positions appends the source position to every site.
	Positions bool
}

// Print writes a human-readable listing of ir: every clazz with its flags,
// followed by the code of the clazzes that have any.
func Print(w io.Writer, ir IR, opt PrintOptions) error {
	if w == nil || ir == nil {
		return nil
	}
	p := &printer{w: w, ir: ir, opt: opt}
	p.printf("main=%s universe=%s clazzes=%d sites=%d\n",
		ir.ClazzAsString(ir.MainClazz()), ir.ClazzAsString(ir.UniverseClazz()),
		ir.LastClazz()-ir.FirstClazz()+1, ir.SiteEnd()-ir.FirstSite())
	for c := ir.FirstClazz(); c <= ir.LastClazz(); c++ {
		if !opt.All && !ir.ClazzNeedsCode(c) && !ir.ClazzIsChoice(c) {
			continue
		}
		p.clazz(c)
	}
	return p.err
}

// PrintClazz writes the listing of c alone.
func PrintClazz(w io.Writer, ir IR, c ClazzID, opt PrintOptions) error {
	p := &printer{w: w, ir: ir, opt: opt}
	p.clazz(c)
	return p.err
}

// SiteString renders one site the way Print does.
func SiteString(ir IR, s SiteID) string {
	return (&printer{ir: ir}).site(s)
}

type printer struct {
	w   io.Writer
	ir  IR
	opt PrintOptions
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) name(c ClazzID) string {
	if !c.IsValid() {
		return "_"
	}
	return p.ir.ClazzAsString(c)
}

func (p *printer) names(cs []ClazzID) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = p.name(c)
	}
	return strings.Join(parts, ", ")
}

func (p *printer) clazz(c ClazzID) {
	ir := p.ir
	var flags []string
	if ir.ClazzIsRef(c) {
		flags = append(flags, "ref")
	}
	if ir.ClazzIsUnitType(c) {
		flags = append(flags, "unit")
	}
	if ir.ClazzIsVoidType(c) {
		flags = append(flags, "void")
	}
	if ir.ClazzIsChoiceWithRefs(c) {
		flags = append(flags, "refs")
	}
	if ir.ClazzIsChoiceOfOnlyRefs(c) {
		flags = append(flags, "onlyrefs")
	}
	fl := ""
	if len(flags) > 0 {
		fl = " [" + strings.Join(flags, " ") + "]"
	}
	p.printf("C%d %s %s%s\n", c-ir.FirstClazz(), ir.ClazzKind(c), p.name(c), fl)
	if fs := ir.ClazzFields(c); len(fs) > 0 {
		p.printf("  fields: %s\n", p.names(fs))
	}
	if cs := ir.ClazzChoices(c); len(cs) > 0 {
		p.printf("  choices: %s\n", p.names(cs))
	}
	if s := ir.ClazzCode(c); s.IsValid() {
		p.block(s, 2)
	}
	for _, ck := range []ContractKind{ContractPre, ContractPost} {
		for ix := 0; ; ix++ {
			s := ir.ClazzContract(c, ck, ix)
			if !s.IsValid() {
				break
			}
			p.printf("  %s %d:\n", ck, ix)
			p.block(s, 4)
		}
	}
}

func (p *printer) block(s SiteID, indent int) {
	pad := strings.Repeat(" ", indent)
	for ; p.ir.WithinCode(s); s++ {
		p.printf("%s%d: %s", pad, s-p.ir.FirstSite(), p.site(s))
		if p.opt.Positions {
			p.printf("  @%s", p.ir.SitePos(s))
		}
		p.printf("\n")
		if p.ir.CodeAt(s) == ExprMatch {
			for cix := 0; cix < p.ir.MatchCaseCount(s); cix++ {
				p.printf("%s  case %v", pad, p.ir.MatchCaseTags(s, cix))
				if f := p.ir.MatchCaseField(s, cix); f.IsValid() {
					p.printf(" %s", p.name(f))
				}
				p.printf(":\n")
				p.block(p.ir.MatchCaseCode(s, cix), indent+4)
			}
		}
	}
}

func (p *printer) site(s SiteID) string {
	ir := p.ir
	k := ir.CodeAt(s)
	switch k {
	case ExprCall:
		dyn := ""
		if ir.AccessIsDynamic(s) {
			dyn = " dynamic"
		}
		return fmt.Sprintf("Call %s on %s%s (%s)", p.name(ir.AccessedClazz(s)), p.name(ir.AccessTargetClazz(s)), dyn, p.names(ir.AccessedClazzes(s)))
	case ExprAssign:
		if ir.AccessIsDynamic(s) {
			return fmt.Sprintf("Assign %s on %s dynamic (%s)", p.name(ir.AccessedClazz(s)), p.name(ir.AccessTargetClazz(s)), p.names(ir.AccessedClazzes(s)))
		}
		return fmt.Sprintf("Assign %s on %s", p.name(ir.AccessedClazz(s)), p.name(ir.AccessTargetClazz(s)))
	case ExprConst:
		return fmt.Sprintf("Const %s %s", p.name(ir.ConstClazz(s)), hex.EncodeToString(ir.ConstData(s)))
	case ExprTag:
		return fmt.Sprintf("Tag %s -> %s #%d", p.name(ir.TagValueClazz(s)), p.name(ir.TagNewClazz(s)), ir.TagTagNum(s))
	case ExprBox:
		return fmt.Sprintf("Box %s -> %s", p.name(ir.BoxValueClazz(s)), p.name(ir.BoxResultClazz(s)))
	case ExprEnv:
		return "Env " + p.name(ir.EnvClazz(s))
	case ExprMatch:
		return "Match " + p.name(ir.MatchStaticSubject(s))
	case ExprComment:
		return "Comment " + ir.Comment(s)
	}
	return k.String()
}
