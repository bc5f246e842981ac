// Package codegen renders a translated program as Rust source for the Anchor
// framework.
package codegen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tos-network/anchorgen/dsl/model"
	"github.com/tos-network/anchorgen/dsl/resolve"
	"github.com/tos-network/anchorgen/dsl/translate"
	"github.com/tos-network/anchorgen/dsl/types"
)

// UncheckedDoc is the safety comment Anchor requires on unchecked accounts.
const UncheckedDoc = "/// CHECK: This acc is safe"

// maxInlineConstraints is the most constraints kept on one attribute line.
const maxInlineConstraints = 3

// Generate emits the state structs, the context structs and the program
// module of p, in that order. The output depends only on p.
func Generate(p *translate.Program) (string, error) {
	if p == nil || p.Resolved == nil || p.Resolved.Unit == nil {
		return "", errors.New("codegen: invalid translated program")
	}
	g := &generator{prog: p, unit: p.Resolved.Unit}
	g.header()
	for i := range g.unit.States {
		g.state(&g.unit.States[i])
		g.emitLine("")
	}
	for i, h := range p.Handlers {
		g.context(h, p.Resolved.Instructions[i])
		g.emitLine("")
	}
	g.module()
	return g.sb.String(), nil
}

type generator struct {
	sb     strings.Builder
	indent int
	prog   *translate.Program
	unit   *model.ProgramUnit
}

func (g *generator) emitLine(s string) {
	if s == "" {
		g.sb.WriteString("\n")
		return
	}
	g.sb.WriteString(strings.Repeat("    ", g.indent))
	g.sb.WriteString(s)
	g.sb.WriteString("\n")
}

func (g *generator) emitLinef(format string, args ...any) {
	g.emitLine(fmt.Sprintf(format, args...))
}

func (g *generator) incIndent() { g.indent++ }
func (g *generator) decIndent() { g.indent-- }

func (g *generator) header() {
	res := g.prog.Resolved
	g.emitLine("use anchor_lang::prelude::*;")
	if res.UsesSystemTransfer {
		g.emitLine("use anchor_lang::system_program::{transfer, Transfer};")
	}
	if res.UsesAssociatedToken {
		g.emitLine("use anchor_spl::associated_token::AssociatedToken;")
	}
	if res.UsesToken {
		g.emitLine("use anchor_spl::token::{self, Mint, Token, TokenAccount};")
	}
	g.emitLine("")
	g.emitLinef("declare_id!(%q);", g.unit.ProgramID)
	g.emitLine("")
}

func (g *generator) state(st *model.StateType) {
	g.emitLine("#[account]")
	g.emitLinef("pub struct %s {", st.Name)
	g.incIndent()
	for _, f := range st.Fields {
		g.emitLinef("pub %s: %s,", translate.Ident(f.Name), f.Type.Rust())
	}
	g.decIndent()
	g.emitLine("}")
}

func (g *generator) context(h translate.Handler, ix *resolve.Instruction) {
	g.emitLine("#[derive(Accounts)]")
	if ix.ArgSeeds {
		args := make([]string, len(h.Args))
		for i, a := range h.Args {
			args[i] = a.Name + ": " + a.Type
		}
		g.emitLinef("#[instruction(%s)]", strings.Join(args, ", "))
	}
	g.emitLinef("pub struct %s<'info> {", h.Context)
	g.incIndent()
	for _, a := range ix.Accounts {
		g.constraints(Constraints(a))
		if a.Role() == types.RoleUnchecked {
			g.emitLine(UncheckedDoc)
		}
		g.emitLinef("pub %s: %s,", translate.Ident(a.Name), a.Type.Rust())
	}
	for _, pa := range ix.Programs {
		g.emitLinef("pub %s: %s,", pa.Name, pa.Rust)
	}
	g.decIndent()
	g.emitLine("}")
}

func (g *generator) constraints(cs []string) {
	switch {
	case len(cs) == 0:
	case len(cs) <= maxInlineConstraints:
		g.emitLinef("#[account(%s)]", strings.Join(cs, ", "))
	default:
		g.emitLine("#[account(")
		g.incIndent()
		for _, c := range cs {
			g.emitLine(c + ",")
		}
		g.decIndent()
		g.emitLine(")]")
	}
}

// Constraints returns the #[account(...)] constraints of a, in emission order.
func Constraints(a *resolve.AccountRef) []string {
	var cs []string
	switch {
	case a.Initializes:
		cs = append(cs, "init")
	case a.MutatesState:
		cs = append(cs, "mut")
	}
	if a.Initializes {
		cs = append(cs, "payer = "+translate.Ident(a.Payer))
		if a.Role() == types.RoleState {
			cs = append(cs, fmt.Sprintf("space = %d", a.Space))
		}
	}
	if a.IsPDA() {
		seeds := make([]string, len(a.Seeds))
		for i, s := range a.Seeds {
			seeds[i] = ConstraintSeed(s)
		}
		cs = append(cs, "seeds = ["+strings.Join(seeds, ", ")+"]")
		if a.BumpField != nil {
			cs = append(cs, "bump = "+translate.Ident(a.BumpField.Account)+"."+translate.Ident(a.BumpField.Field))
		} else {
			cs = append(cs, "bump")
		}
	}
	if a.Mint != "" {
		prefix := "token"
		if a.Associated {
			prefix = "associated_token"
		}
		cs = append(cs,
			prefix+"::mint = "+translate.Ident(a.Mint),
			prefix+"::authority = "+translate.Ident(a.Authority))
	}
	if a.CloseTo != "" {
		cs = append(cs, "close = "+translate.Ident(a.CloseTo))
	}
	return cs
}

// ConstraintSeed renders a seed inside a seeds constraint, where accounts
// and instruction arguments are in scope by name.
func ConstraintSeed(s resolve.Seed) string {
	switch s.Kind {
	case resolve.SeedLiteral:
		return translate.ByteString(s.Literal)
	case resolve.SeedAccountKey:
		return translate.Ident(s.Account) + ".key().as_ref()"
	}
	var src string
	if s.Kind == resolve.SeedStateField {
		src = translate.Ident(s.Account) + "." + translate.Ident(s.Field)
	} else {
		src = translate.Ident(s.Arg)
	}
	switch s.Type.Value {
	case types.ValueString:
		return src + ".as_bytes()"
	case types.ValuePubkey:
		return src + ".as_ref()"
	default:
		return src + ".to_le_bytes().as_ref()"
	}
}

func (g *generator) module() {
	g.emitLine("#[program]")
	g.emitLinef("pub mod %s {", g.prog.Module)
	g.incIndent()
	g.emitLine("use super::*;")
	for _, h := range g.prog.Handlers {
		g.emitLine("")
		g.handler(h)
	}
	g.decIndent()
	g.emitLine("}")
}

func (g *generator) handler(h translate.Handler) {
	params := []string{"ctx: Context<" + h.Context + ">"}
	for _, a := range h.Args {
		params = append(params, a.Name+": "+a.Type)
	}
	g.emitLinef("pub fn %s(%s) -> Result<()> {", h.Name, strings.Join(params, ", "))
	g.incIndent()
	for _, st := range h.Body {
		g.stmt(st)
	}
	g.emitLine("Ok(())")
	g.decIndent()
	g.emitLine("}")
}

func (g *generator) stmt(st translate.Stmt) {
	switch st.Kind {
	case translate.StmtFieldWrite:
		g.emitLinef("%s = %s;", st.Target, st.Expr)
	case translate.StmtLet:
		decl := "let "
		if st.Mutable {
			decl += "mut "
		}
		decl += st.Target
		if st.Type != "" {
			decl += ": " + st.Type
		}
		g.emitLinef("%s = %s;", decl, st.Expr)
	case translate.StmtCPI:
		g.cpi(st.CPI)
	}
}

func (g *generator) cpi(c *translate.CPI) {
	g.emitLinef("let %s = %s {", c.AccountsVar, c.Struct)
	g.incIndent()
	for _, a := range c.Accounts {
		g.emitLinef("%s: %s,", a.Name, a.Expr)
	}
	g.decIndent()
	g.emitLine("};")

	ctor := "CpiContext::new"
	if c.Signed() {
		for _, b := range c.Bindings {
			g.stmt(b)
		}
		g.emitLinef("let %s: &[&[&[u8]]; 1] = &[&[", c.SeedsVar)
		g.incIndent()
		for _, s := range c.SignerSeeds {
			g.emitLine(s + ",")
		}
		g.decIndent()
		g.emitLine("]];")
		ctor = "CpiContext::new_with_signer"
	}

	g.emitLinef("let %s = %s(", c.ContextVar, ctor)
	g.incIndent()
	g.emitLine(c.Program + ",")
	g.emitLine(c.AccountsVar + ",")
	if c.Signed() {
		g.emitLine(c.SeedsVar + ",")
	}
	g.decIndent()
	g.emitLine(");")
	g.emitLinef("%s(%s, %s)?;", c.Func, c.ContextVar, c.Amount)
}
