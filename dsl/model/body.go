package model

import (
	"strings"

	"github.com/tos-network/anchorgen/dsl/ast"
	"github.com/tos-network/anchorgen/dsl/diag"
	"github.com/tos-network/anchorgen/dsl/types"
)

// Receivers of the cross-program calls the DSL exposes.
const (
	systemProgramObject = "SystemProgram"
	tokenProgramObject  = "TokenProgram"
)

type bodyBuilder struct {
	x      *extractor
	ix     *Instruction
	locals map[string]bool
}

func (b *bodyBuilder) statement(s ast.Statement) (Statement, error) {
	switch s.Kind {
	case "const", "let":
		return b.local(s)
	case "expr":
		switch s.Expr.Kind {
		case "assign":
			return b.assign(s)
		case "call":
			return b.call(s.Expr)
		}
		return Statement{}, b.errorf(diag.KindUnsupportedConstruct, s.Pos, "expression '%s' has no effect", s.Expr.String())
	default:
		return Statement{}, b.errorf(diag.KindUnsupportedConstruct, s.Pos, "unsupported statement '%s'", s.Kind)
	}
}

func (b *bodyBuilder) local(s ast.Statement) (Statement, error) {
	if b.locals == nil {
		b.locals = map[string]bool{}
	}
	if _, isParam := b.ix.Param(s.Name); isParam || b.locals[s.Name] {
		return Statement{}, b.errorf(diag.KindDuplicateDeclaration, s.Pos, "'%s' is already declared", s.Name)
	}
	val, err := b.value(s.Expr)
	if err != nil {
		return Statement{}, err
	}
	local := &Local{Name: s.Name, Mutable: s.Kind == "let", Value: val}
	if s.Type != nil {
		typ, ok := types.Lookup(s.Type.Name, s.Type.Arg, nil, b.x.opts.StringMaxLen)
		if !ok {
			return Statement{}, b.errorf(diag.KindUnknownType, s.Type.Pos, "unknown type '%s' for local '%s'", s.Type.String(), s.Name)
		}
		local.Declared = &typ
	}
	b.locals[s.Name] = true
	return Statement{Kind: StmtLocal, Pos: s.Pos, Local: local}, nil
}

func (b *bodyBuilder) assign(s ast.Statement) (Statement, error) {
	path := s.Expr.Left.MemberPath()
	if len(path) != 2 {
		return Statement{}, b.errorf(diag.KindUnsupportedConstruct, s.Pos,
			"assignment target '%s' must be <account>.<field>", s.Expr.Left.String())
	}
	val, err := b.value(s.Expr.Right)
	if err != nil {
		return Statement{}, err
	}
	return Statement{
		Kind:   StmtAssign,
		Pos:    s.Pos,
		Assign: &Assign{Account: path[0], Field: path[1], Value: val},
	}, nil
}

func (b *bodyBuilder) call(e *ast.Expr) (Statement, error) {
	if e.Callee.Kind != "member" {
		return Statement{}, b.errorf(diag.KindUnsupportedConstruct, e.Pos, "unsupported call '%s'", e.String())
	}
	method := e.Callee.Member
	obj := e.Callee.Object

	if method == "init" {
		if obj.Kind != "call" || obj.Callee.Kind != "member" || (obj.Callee.Member != "derive" && obj.Callee.Member != "deriveWithBump") {
			return Statement{}, b.errorf(diag.KindUnsupportedConstruct, e.Pos, ".init() must follow derive(...)")
		}
		st, err := b.derive(obj)
		if err != nil {
			return st, err
		}
		st.Derive.Init = true
		switch len(e.Args) {
		case 0:
		case 1:
			name, ok := accountName(e.Args[0])
			if !ok {
				return st, b.errorf(diag.KindInvalidPayer, e.Args[0].Pos, "payer '%s' must be an account name", e.Args[0].String()).In(b.ix.Name, st.Derive.Account)
			}
			st.Derive.Payer = name
			st.Derive.PayerPos = e.Args[0].Pos
		default:
			return st, b.errorf(diag.KindUnsupportedConstruct, e.Pos, ".init() takes at most one payer argument")
		}
		return st, nil
	}

	if obj.Kind == "ident" {
		switch {
		case obj.Value == systemProgramObject && method == "transfer":
			return b.cpi(e, CallSystemTransfer)
		case obj.Value == tokenProgramObject:
			switch method {
			case "transfer":
				return b.cpi(e, CallTokenTransfer)
			case "mintTo":
				return b.cpi(e, CallTokenMintTo)
			case "burn":
				return b.cpi(e, CallTokenBurn)
			}
		case method == "derive" || method == "deriveWithBump":
			return b.derive(e)
		case method == "close":
			if len(e.Args) != 1 {
				return Statement{}, b.errorf(diag.KindUnsupportedConstruct, e.Pos, "close expects exactly one destination account")
			}
			dest, ok := accountName(e.Args[0])
			if !ok {
				return Statement{}, b.errorf(diag.KindUnsupportedConstruct, e.Args[0].Pos, "close destination must be an account name")
			}
			return Statement{Kind: StmtClose, Pos: e.Pos, Close: &Close{Account: obj.Value, Destination: dest}}, nil
		}
	}
	return Statement{}, b.errorf(diag.KindUnsupportedConstruct, e.Pos, "unsupported call '%s'", e.Callee.String())
}

func (b *bodyBuilder) derive(e *ast.Expr) (Statement, error) {
	obj := e.Callee.Object
	if obj.Kind != "ident" {
		return Statement{}, b.errorf(diag.KindUnsupportedConstruct, e.Pos, "derive must be called on an account parameter")
	}
	d := &Derive{Account: obj.Value}
	args := e.Args
	var err error

	switch e.Callee.Member {
	case "derive":
		switch {
		case len(args) >= 1 && args[0].Kind == "array":
			if d.Seeds, err = b.seeds(args[0]); err != nil {
				return Statement{}, err
			}
			switch len(args) {
			case 1:
			case 3:
				if err := b.tokenParties(d, args[1], args[2]); err != nil {
					return Statement{}, err
				}
			default:
				return Statement{}, b.errorf(diag.KindUnsupportedConstruct, e.Pos,
					"derive expects ([seeds]) or ([seeds], mint, authority)").In(b.ix.Name, d.Account)
			}
		case len(args) == 2:
			d.Associated = true
			if err := b.tokenParties(d, args[0], args[1]); err != nil {
				return Statement{}, err
			}
		default:
			return Statement{}, b.errorf(diag.KindUnsupportedConstruct, e.Pos,
				"derive expects a seed array").In(b.ix.Name, d.Account)
		}
	case "deriveWithBump":
		if len(args) != 2 || args[0].Kind != "array" {
			return Statement{}, b.errorf(diag.KindUnsupportedConstruct, e.Pos,
				"deriveWithBump expects ([seeds], <state>.<bumpField>)").In(b.ix.Name, d.Account)
		}
		if d.Seeds, err = b.seeds(args[0]); err != nil {
			return Statement{}, err
		}
		bump, err := b.value(args[1])
		if err != nil {
			return Statement{}, err
		}
		d.WithBump = true
		d.Bump = &bump
	}
	return Statement{Kind: StmtDerive, Pos: e.Pos, Derive: d}, nil
}

func (b *bodyBuilder) tokenParties(d *Derive, mint, authority *ast.Expr) error {
	m, ok := accountName(mint)
	if !ok {
		return b.errorf(diag.KindUnsupportedConstruct, mint.Pos, "token mint '%s' must be an account name", mint.String()).In(b.ix.Name, d.Account)
	}
	a, ok := accountName(authority)
	if !ok {
		return b.errorf(diag.KindUnsupportedConstruct, authority.Pos, "token authority '%s' must be an account", authority.String()).In(b.ix.Name, d.Account)
	}
	d.Mint, d.Authority = m, a
	return nil
}

func (b *bodyBuilder) seeds(arr *ast.Expr) ([]Value, error) {
	out := make([]Value, 0, len(arr.Elems))
	for _, el := range arr.Elems {
		v, err := b.value(el)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (b *bodyBuilder) cpi(e *ast.Expr, kind CallKind) (Statement, error) {
	parties := 3
	if kind == CallSystemTransfer {
		parties = 2
	}
	if len(e.Args) != parties+1 && len(e.Args) != parties+2 {
		return Statement{}, b.errorf(diag.KindUnsupportedConstruct, e.Pos,
			"%s expects %d accounts, an amount and optional signer seeds", kind, parties)
	}
	names := make([]string, parties)
	for i := 0; i < parties; i++ {
		name, ok := accountName(e.Args[i])
		if !ok {
			return Statement{}, b.errorf(diag.KindUnsupportedConstruct, e.Args[i].Pos,
				"%s argument %d must be an account name, got '%s'", kind, i+1, e.Args[i].String())
		}
		names[i] = name
	}
	amount, err := b.value(e.Args[parties])
	if err != nil {
		return Statement{}, err
	}
	c := &CrossProgramCall{Kind: kind, Amount: amount}
	switch kind {
	case CallSystemTransfer:
		c.From, c.To = names[0], names[1]
	case CallTokenTransfer:
		c.From, c.To, c.Authority = names[0], names[1], names[2]
	case CallTokenMintTo:
		c.Mint, c.To, c.Authority = names[0], names[1], names[2]
	case CallTokenBurn:
		c.Mint, c.From, c.Authority = names[0], names[1], names[2]
	}
	if len(e.Args) == parties+2 {
		seeds := e.Args[parties+1]
		if seeds.Kind != "array" {
			return Statement{}, b.errorf(diag.KindInvalidSignerSeeds, seeds.Pos,
				"signer seeds of %s must be an array literal", kind).In(b.ix.Name, c.Signer())
		}
		if c.SignerSeeds, err = b.seeds(seeds); err != nil {
			return Statement{}, err
		}
		c.HasSeeds = true
	}
	return Statement{Kind: StmtCall, Pos: e.Pos, Call: c}, nil
}

// value converts an expression into a Value. Names are classified against the
// instruction parameters; anything else is treated as a local and checked in
// source order by the resolver.
func (b *bodyBuilder) value(e *ast.Expr) (Value, error) {
	switch e.Kind {
	case "number":
		if !isIntegerLiteral(e.Value) {
			return Value{}, b.errorf(diag.KindUnsupportedConstruct, e.Pos, "unsupported numeric literal '%s'", e.Value)
		}
		return Value{Kind: ValInt, Text: e.Value, Pos: e.Pos}, nil
	case "string":
		return Value{Kind: ValString, Text: e.Value, Pos: e.Pos}, nil
	case "bool":
		return Value{Kind: ValBool, Text: e.Value, Pos: e.Pos}, nil
	case "ident":
		if p, ok := b.ix.Param(e.Value); ok {
			if p.Type.IsAccount() {
				return Value{Kind: ValAccount, Account: e.Value, Pos: e.Pos}, nil
			}
			return Value{Kind: ValArg, Text: e.Value, Pos: e.Pos}, nil
		}
		return Value{Kind: ValLocal, Text: e.Value, Pos: e.Pos}, nil
	case "member":
		path := e.MemberPath()
		if len(path) != 2 {
			return Value{}, b.errorf(diag.KindUnsupportedConstruct, e.Pos, "unsupported member access '%s'", e.String())
		}
		if path[1] == "key" {
			return Value{Kind: ValAccountKey, Account: path[0], Pos: e.Pos}, nil
		}
		return Value{Kind: ValField, Account: path[0], Field: path[1], Pos: e.Pos}, nil
	case "call":
		if e.Callee.Kind == "member" && len(e.Args) == 0 {
			switch e.Callee.Member {
			case "getBump":
				if e.Callee.Object.Kind == "ident" {
					return Value{Kind: ValBump, Account: e.Callee.Object.Value, Pos: e.Pos}, nil
				}
			case "toBytes":
				inner, err := b.value(e.Callee.Object)
				if err != nil {
					return Value{}, err
				}
				switch inner.Kind {
				case ValArg, ValField, ValLocal, ValAccountKey:
					inner.ToBytes = true
					return inner, nil
				}
			}
		}
		return Value{}, b.errorf(diag.KindUnsupportedConstruct, e.Pos, "unsupported call '%s' in expression", e.String())
	case "paren":
		inner, err := b.value(e.Left)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: ValParen, Left: &inner, Pos: e.Pos}, nil
	case "unary":
		if e.Op != "-" {
			return Value{}, b.errorf(diag.KindUnsupportedConstruct, e.Pos, "unsupported operator '%s'", e.Op)
		}
		inner, err := b.value(e.Right)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: ValNeg, Left: &inner, Pos: e.Pos}, nil
	case "binary":
		switch e.Op {
		case "+", "-", "*", "/", "%":
		default:
			return Value{}, b.errorf(diag.KindUnsupportedConstruct, e.Pos, "unsupported operator '%s'", e.Op)
		}
		left, err := b.value(e.Left)
		if err != nil {
			return Value{}, err
		}
		right, err := b.value(e.Right)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: ValBinary, Op: e.Op, Left: &left, Right: &right, Pos: e.Pos}, nil
	default:
		return Value{}, b.errorf(diag.KindUnsupportedConstruct, e.Pos, "unsupported expression '%s'", e.String())
	}
}

// accountName accepts `acct` or `acct.key` as a reference to an account.
func accountName(e *ast.Expr) (string, bool) {
	path := e.MemberPath()
	switch {
	case len(path) == 1:
		return path[0], true
	case len(path) == 2 && path[1] == "key":
		return path[0], true
	default:
		return "", false
	}
}

func isIntegerLiteral(lit string) bool {
	s := strings.ReplaceAll(strings.ToLower(lit), "_", "")
	if s == "" {
		return false
	}
	digits := "0123456789"
	switch {
	case strings.HasPrefix(s, "0x"):
		s, digits = s[2:], "0123456789abcdef"
	case strings.HasPrefix(s, "0b"):
		s, digits = s[2:], "01"
	case strings.HasPrefix(s, "0o"):
		s, digits = s[2:], "01234567"
	}
	if s == "" {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune(digits, r) {
			return false
		}
	}
	return true
}

func (b *bodyBuilder) errorf(kind diag.Kind, pos ast.Pos, format string, args ...any) diag.Diagnostic {
	return b.x.errorf(kind, pos, format, args...).In(b.ix.Name, "")
}
