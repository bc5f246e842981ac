// Package translate turns resolved instruction bodies into the handler
// statements of the generated program module.
package translate

import (
	"fmt"
	"strings"

	"github.com/tos-network/anchorgen/dsl/ast"
	"github.com/tos-network/anchorgen/dsl/diag"
	"github.com/tos-network/anchorgen/dsl/model"
	"github.com/tos-network/anchorgen/dsl/resolve"
	"github.com/tos-network/anchorgen/dsl/types"
)

// Program is a resolved program with its translated handlers.
type Program struct {
	Resolved *resolve.Program
	// Module is the snake_case name of the program module.
	Module   string
	Handlers []Handler
}

// Handler is one instruction handler function.
type Handler struct {
	Name    string
	Context string
	Args    []Arg
	Body    []Stmt
	Source  *resolve.Instruction
}

type Arg struct {
	Name string
	Type string
}

type StmtKind int

const (
	StmtFieldWrite StmtKind = iota + 1
	StmtLet
	StmtCPI
)

// Stmt is a target statement. Target is the written place of a field write
// or the binding name of a let.
type Stmt struct {
	Kind    StmtKind
	Target  string
	Mutable bool
	Type    string
	Expr    string
	CPI     *CPI
}

// CPI is a cross-program invocation through the framework helpers.
type CPI struct {
	Call     model.CallKind
	Struct   string
	Func     string
	Program  string
	Accounts []AccountInit
	Amount   string

	// Names of the handler locals holding the accounts struct, the signer
	// seeds and the CPI context.
	AccountsVar string
	SeedsVar    string
	ContextVar  string

	// Bindings hold byte buffers borrowed by SignerSeeds.
	Bindings    []Stmt
	SignerSeeds []string
}

// Signed reports whether the invocation carries signer seeds.
func (c *CPI) Signed() bool { return c.SignerSeeds != nil }

type AccountInit struct {
	Name string
	Expr string
}

// Translate converts every handler body of prog. It fails with the first
// diagnostic.
func Translate(prog *resolve.Program) (*Program, error) {
	out := &Program{Resolved: prog, Module: SnakeCase(prog.Unit.Name)}
	for _, ix := range prog.Instructions {
		t := &translator{
			unit:      prog.Unit,
			ix:        ix,
			names:     map[string]string{},
			generated: map[string]bool{},
			bound:     map[string]bool{},
		}
		h, err := t.handler()
		if err != nil {
			return nil, err
		}
		out.Handlers = append(out.Handlers, h)
	}
	return out, nil
}

type translator struct {
	unit *model.ProgramUnit
	ix   *resolve.Instruction

	// names maps every Rust identifier in the handler scope to its DSL name.
	names map[string]string
	// generated holds identifiers introduced by the translation.
	generated map[string]bool
	// bound holds the locals declared so far.
	bound map[string]bool
}

func (t *translator) handler() (Handler, error) {
	src := t.ix.Source
	h := Handler{Name: Ident(src.Name), Context: ContextName(src.Name), Source: t.ix}
	for _, p := range src.Params {
		if err := t.declare(p.Name, p.Pos); err != nil {
			return h, err
		}
		if !p.Type.IsAccount() {
			h.Args = append(h.Args, Arg{Name: Ident(p.Name), Type: p.Type.Rust()})
		}
	}
	for _, st := range src.Body {
		if st.Kind == model.StmtLocal {
			if err := t.declare(st.Local.Name, st.Pos); err != nil {
				return h, err
			}
		}
	}

	for i, st := range src.Body {
		switch st.Kind {
		case model.StmtAssign:
			expr, err := t.expr(st.Assign.Value)
			if err != nil {
				return h, err
			}
			h.Body = append(h.Body, Stmt{
				Kind:   StmtFieldWrite,
				Target: t.place(st.Assign.Account, st.Assign.Field),
				Expr:   expr,
			})
		case model.StmtLocal:
			l := st.Local
			expr, err := t.expr(l.Value)
			if err != nil {
				return h, err
			}
			let := Stmt{Kind: StmtLet, Target: Ident(l.Name), Mutable: l.Mutable, Expr: expr}
			if l.Declared != nil {
				let.Type = l.Declared.Rust()
			}
			t.bound[l.Name] = true
			h.Body = append(h.Body, let)
		case model.StmtCall:
			cpi, err := t.cpi(st.Call, t.ix.SignerSeeds(i))
			if err != nil {
				return h, err
			}
			h.Body = append(h.Body, Stmt{Kind: StmtCPI, CPI: cpi})
		}
		// Derivations and closes live in the account constraints.
	}
	return h, nil
}

// declare reserves the Rust identifier of a DSL name in the handler scope.
func (t *translator) declare(name string, pos ast.Pos) error {
	id := Ident(name)
	if id == "ctx" {
		return t.errorf(diag.KindUnsupportedConstruct, pos, "", "'%s' clashes with the handler context parameter", name)
	}
	if prev, ok := t.names[id]; ok && prev != name {
		return t.errorf(diag.KindDuplicateDeclaration, pos, "", "'%s' and '%s' both map to '%s'", prev, name, id)
	}
	t.names[id] = name
	return nil
}

// fresh returns an identifier based on base that nothing in the handler
// uses yet.
func (t *translator) fresh(base string) string {
	id := t.avoid(base, true)
	t.generated[id] = true
	return id
}

// avoid returns base, suffixed when it would shadow a DSL name (or, with
// unique, any earlier generated name).
func (t *translator) avoid(base string, unique bool) string {
	id := base
	for n := 2; ; n++ {
		_, user := t.names[id]
		if !user && !(unique && t.generated[id]) {
			return id
		}
		id = fmt.Sprintf("%s%d", base, n)
	}
}

func (t *translator) place(account, field string) string {
	return "ctx.accounts." + Ident(account) + "." + Ident(field)
}

func (t *translator) account(name string) string {
	return "ctx.accounts." + Ident(name) + ".to_account_info()"
}

func (t *translator) cpi(c *model.CrossProgramCall, seeds []resolve.Seed) (*CPI, error) {
	out := &CPI{Call: c.Kind}
	switch c.Kind {
	case model.CallSystemTransfer:
		out.Struct, out.Func = "Transfer", "transfer"
		out.Program = t.account("system_program")
		out.Accounts = []AccountInit{{"from", t.account(c.From)}, {"to", t.account(c.To)}}
	case model.CallTokenTransfer:
		out.Struct, out.Func = "token::Transfer", "token::transfer"
		out.Accounts = []AccountInit{{"from", t.account(c.From)}, {"to", t.account(c.To)}, {"authority", t.account(c.Authority)}}
	case model.CallTokenMintTo:
		out.Struct, out.Func = "token::MintTo", "token::mint_to"
		out.Accounts = []AccountInit{{"mint", t.account(c.Mint)}, {"to", t.account(c.To)}, {"authority", t.account(c.Authority)}}
	case model.CallTokenBurn:
		out.Struct, out.Func = "token::Burn", "token::burn"
		out.Accounts = []AccountInit{{"mint", t.account(c.Mint)}, {"from", t.account(c.From)}, {"authority", t.account(c.Authority)}}
	default:
		return nil, t.errorf(diag.KindUnsupportedConstruct, c.Amount.Pos, "", "unsupported call %s", c.Kind)
	}
	if c.Kind != model.CallSystemTransfer {
		out.Program = t.account(t.ix.TokenProgram)
	}
	fn := out.Func[strings.LastIndex(out.Func, ":")+1:]
	out.AccountsVar = t.avoid(fn+"_accounts", false)
	out.ContextVar = t.avoid("cpi_ctx", false)

	amount, err := t.expr(c.Amount)
	if err != nil {
		return nil, err
	}
	out.Amount = amount

	if c.HasSeeds {
		out.SeedsVar = t.avoid("signer_seeds", false)
		out.SignerSeeds = []string{}
		for _, s := range seeds {
			expr, binding := t.signerSeed(s)
			if binding != nil {
				out.Bindings = append(out.Bindings, *binding)
			}
			out.SignerSeeds = append(out.SignerSeeds, expr)
		}
	}
	return out, nil
}

// signerSeed renders a seed borrowed by the signer-seed array. Integer seeds
// need a named byte buffer that outlives the array.
func (t *translator) signerSeed(s resolve.Seed) (string, *Stmt) {
	switch s.Kind {
	case resolve.SeedLiteral:
		return ByteString(s.Literal), nil
	case resolve.SeedAccountKey:
		return t.account(s.Account) + ".key.as_ref()", nil
	case resolve.SeedBump:
		switch {
		case s.Local != "":
			return "&[" + Ident(s.Local) + "]", nil
		case s.Field != "":
			return "&[" + t.place(s.Account, s.Field) + "]", nil
		default:
			return "&[ctx.bumps." + Ident(s.Account) + "]", nil
		}
	}

	var src, base string
	if s.Kind == resolve.SeedStateField {
		src = t.place(s.Account, s.Field)
		base = Ident(s.Account) + "_" + SnakeCase(s.Field)
	} else {
		src = Ident(s.Arg)
		base = SnakeCase(s.Arg)
	}
	switch s.Type.Value {
	case types.ValueString:
		return src + ".as_bytes()", nil
	case types.ValuePubkey:
		return src + ".as_ref()", nil
	}
	name := t.fresh(base + "_bytes")
	return name + ".as_ref()", &Stmt{Kind: StmtLet, Target: name, Expr: src + ".to_le_bytes()"}
}

// expr renders a value as a Rust expression inside a handler.
func (t *translator) expr(v model.Value) (string, error) {
	switch v.Kind {
	case model.ValInt:
		return IntLiteral(v.Text), nil
	case model.ValBool:
		return v.Text, nil
	case model.ValString:
		return "String::from(" + StringLiteral(v.Text) + ")", nil
	case model.ValArg:
		p, _ := t.ix.Source.Param(v.Text)
		return t.owned(Ident(v.Text), p.Type), nil
	case model.ValLocal:
		if !t.bound[v.Text] {
			return "", t.errorf(diag.KindUnresolvedReference, v.Pos, "", "'%s' is not declared before use", v.Text)
		}
		return t.owned(Ident(v.Text), t.ix.Locals[v.Text]), nil
	case model.ValAccountKey:
		if _, ok := t.ix.Account(v.Account); !ok {
			return "", t.errorf(diag.KindUnresolvedReference, v.Pos, v.Account, "'%s' is not an account parameter", v.Account)
		}
		return "ctx.accounts." + Ident(v.Account) + ".key()", nil
	case model.ValField:
		ref, ok := t.ix.Account(v.Account)
		if !ok || ref.Role() != types.RoleState {
			return "", t.errorf(diag.KindUnresolvedReference, v.Pos, v.Account, "'%s' is not a state account parameter", v.Account)
		}
		st, _ := t.unit.State(ref.Type.StateName)
		f, ok := st.Field(v.Field)
		if !ok {
			return "", t.errorf(diag.KindUnresolvedReference, v.Pos, v.Account, "state type '%s' has no field '%s'", st.Name, v.Field)
		}
		return t.owned(t.place(v.Account, v.Field), f.Type), nil
	case model.ValBump:
		ref, ok := t.ix.Account(v.Account)
		if !ok || !ref.IsPDA() {
			return "", t.errorf(diag.KindUnresolvedReference, v.Pos, v.Account, "'%s' has no derived bump", v.Account)
		}
		return "ctx.bumps." + Ident(v.Account), nil
	case model.ValBinary:
		l, err := t.expr(*v.Left)
		if err != nil {
			return "", err
		}
		r, err := t.expr(*v.Right)
		if err != nil {
			return "", err
		}
		return l + " " + v.Op + " " + r, nil
	case model.ValNeg:
		inner, err := t.expr(*v.Left)
		if err != nil {
			return "", err
		}
		return "-" + inner, nil
	case model.ValParen:
		inner, err := t.expr(*v.Left)
		if err != nil {
			return "", err
		}
		return "(" + inner + ")", nil
	}
	return "", t.errorf(diag.KindUnsupportedConstruct, v.Pos, v.Account, "cannot translate '%s'", v.String())
}

// owned clones String places so a read never moves out of an account.
func (t *translator) owned(expr string, typ types.Type) string {
	if typ.Value == types.ValueString {
		return expr + ".clone()"
	}
	return expr
}

func (t *translator) errorf(kind diag.Kind, pos ast.Pos, account, format string, args ...any) diag.Diagnostic {
	p := diag.Position{Line: pos.Line, Column: pos.Column}
	span := diag.Span{File: t.unit.File, Start: p, End: p}
	return diag.New(kind, span, format, args...).In(t.ix.Source.Name, account)
}

// IntLiteral normalises a DSL integer literal for Rust.
func IntLiteral(lit string) string {
	return strings.ToLower(lit)
}

// StringLiteral quotes s as a Rust string literal.
func StringLiteral(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case 0:
			b.WriteString(`\0`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\u{%x}`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// ByteString quotes s as a Rust byte string literal.
func ByteString(s string) string {
	var b strings.Builder
	b.WriteString(`b"`)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c >= 0x20 && c < 0x7f:
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, `\x%02x`, c)
		}
	}
	b.WriteByte('"')
	return b.String()
}
