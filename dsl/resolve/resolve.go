// Package resolve builds the per-instruction account records: derivation,
// seeds, bump source, initialisation, payer and mutability.
package resolve

import (
	"math/big"

	"github.com/tos-network/anchorgen/dsl/ast"
	"github.com/tos-network/anchorgen/dsl/diag"
	"github.com/tos-network/anchorgen/dsl/model"
	"github.com/tos-network/anchorgen/dsl/types"
)

// Derivation is how an account address is established.
type Derivation int

const (
	DerivationNone Derivation = iota
	DerivationDerive
	DerivationDeriveWithBump
)

func (d Derivation) String() string {
	switch d {
	case DerivationDerive:
		return "derive"
	case DerivationDeriveWithBump:
		return "deriveWithBump"
	default:
		return "none"
	}
}

// FieldRef names a field of a state account parameter.
type FieldRef struct {
	Account string
	Field   string
}

// AccountRef is the resolved record of one account parameter in one
// instruction.
type AccountRef struct {
	Name string
	Type types.Type

	Derivation Derivation
	Seeds      []Seed
	// BumpField is the stored bump of a re-derived account.
	BumpField *FieldRef

	Initializes  bool
	Payer        string
	MutatesState bool

	// Space is the allocation size of an initialised state account.
	Space int

	// Token account constraints.
	Associated bool
	Mint       string
	Authority  string

	// CloseTo is the refund destination when the account is closed.
	CloseTo string

	Pos ast.Pos

	derivedAt int
}

// Role returns the account role.
func (a *AccountRef) Role() types.Role { return a.Type.Role }

// IsPDA reports whether the account address is program derived.
func (a *AccountRef) IsPDA() bool {
	return a.Derivation != DerivationNone && !a.Associated
}

// ProgramAccount is a program account appended to a context struct.
type ProgramAccount struct {
	Name string // snake_case field name
	Rust string
}

var (
	systemProgramAccount          = ProgramAccount{Name: "system_program", Rust: "Program<'info, System>"}
	tokenProgramAccount           = ProgramAccount{Name: "token_program", Rust: "Program<'info, Token>"}
	associatedTokenProgramAccount = ProgramAccount{Name: "associated_token_program", Rust: "Program<'info, AssociatedToken>"}
)

// Instruction is an instruction with its resolved accounts.
type Instruction struct {
	Source   *model.Instruction
	Accounts []*AccountRef
	Programs []ProgramAccount

	// ArgSeeds is set when a constraint seed reads an instruction argument.
	ArgSeeds bool
	// TokenProgram is the context field holding the token program.
	TokenProgram string
	// Locals holds the type of every local binding of the body.
	Locals map[string]types.Type

	index       map[string]*AccountRef
	signerSeeds map[int][]Seed
}

// Account returns the record of an account parameter.
func (ix *Instruction) Account(name string) (*AccountRef, bool) {
	a, ok := ix.index[name]
	return a, ok
}

// SignerSeeds returns the classified signer-seed override of the call at
// body statement stmt, or nil when the call has none.
func (ix *Instruction) SignerSeeds(stmt int) []Seed {
	return ix.signerSeeds[stmt]
}

// Program is a fully resolved ProgramUnit.
type Program struct {
	Unit         *model.ProgramUnit
	Instructions []*Instruction

	UsesSystemTransfer  bool
	UsesToken           bool
	UsesAssociatedToken bool
}

// Resolve analyses every instruction of unit. It fails with the first
// diagnostic, attributed to the instruction and account involved.
func Resolve(unit *model.ProgramUnit) (*Program, error) {
	prog := &Program{Unit: unit}
	for i := range unit.Instructions {
		ix, err := resolveInstruction(unit, &unit.Instructions[i])
		if err != nil {
			return nil, err
		}
		prog.Instructions = append(prog.Instructions, ix)
		for _, st := range ix.Source.Body {
			if st.Kind == model.StmtCall && st.Call.Kind == model.CallSystemTransfer {
				prog.UsesSystemTransfer = true
			}
		}
		for _, pa := range ix.Programs {
			if pa == associatedTokenProgramAccount {
				prog.UsesAssociatedToken = true
			}
		}
		if ix.TokenProgram != "" {
			prog.UsesToken = true
		}
		for _, a := range ix.Accounts {
			if a.Role().IsToken() {
				prog.UsesToken = true
			}
		}
	}
	return prog, nil
}

type scope struct {
	unit *model.ProgramUnit
	src  *model.Instruction
	ix   *Instruction

	// derives maps every derived account to its derive statement index.
	derives map[string]int
	// locals holds bindings declared so far with their types.
	locals map[string]types.Type
	// consts holds untyped locals bound to constant integers.
	consts map[string]*big.Int
	// assigned holds state fields written so far, keyed "account.field".
	assigned map[string]bool

	stmt int
}

func resolveInstruction(unit *model.ProgramUnit, src *model.Instruction) (*Instruction, error) {
	ix := &Instruction{Source: src, index: map[string]*AccountRef{}, signerSeeds: map[int][]Seed{}}
	for _, p := range src.Accounts() {
		ref := &AccountRef{Name: p.Name, Type: p.Type, Pos: p.Pos, derivedAt: -1}
		ix.Accounts = append(ix.Accounts, ref)
		ix.index[p.Name] = ref
	}
	sc := &scope{
		unit:     unit,
		src:      src,
		ix:       ix,
		derives:  map[string]int{},
		locals:   map[string]types.Type{},
		consts:   map[string]*big.Int{},
		assigned: map[string]bool{},
	}

	// Derivations are collected first: account constraints hold for the whole
	// instruction, and later checks need to know which accounts are PDAs.
	for i, st := range src.Body {
		if st.Kind != model.StmtDerive {
			continue
		}
		name := st.Derive.Account
		if _, ok := ix.index[name]; !ok {
			return nil, sc.errorf(diag.KindUnresolvedReference, st.Pos, name, "'%s' is not an account parameter of '%s'", name, src.Name)
		}
		if prev, dup := sc.derives[name]; dup {
			return nil, sc.errorf(diag.KindDuplicateDerivation, st.Pos, name,
				"account '%s' is derived more than once (first at line %d)", name, src.Body[prev].Pos.Line)
		}
		sc.derives[name] = i
	}

	for i, st := range src.Body {
		sc.stmt = i
		var err error
		switch st.Kind {
		case model.StmtDerive:
			err = sc.derive(st)
		case model.StmtAssign:
			err = sc.assign(st)
		case model.StmtCall:
			err = sc.call(st)
		case model.StmtLocal:
			err = sc.local(st)
		case model.StmtClose:
			err = sc.close(st)
		}
		if err != nil {
			return nil, err
		}
	}

	sc.finish()
	ix.Locals = sc.locals
	return ix, nil
}

func (sc *scope) derive(st model.Statement) error {
	d := st.Derive
	ref := sc.ix.index[d.Account]
	ref.derivedAt = sc.stmt

	switch ref.Role() {
	case types.RoleSigner, types.RoleTokenProgram:
		return sc.errorf(diag.KindInvalidDerivation, st.Pos, d.Account, "a %s account cannot be derived", ref.Type.Name)
	}
	if d.Associated != (ref.Role() == types.RoleAssociatedToken) {
		if d.Associated {
			return sc.errorf(diag.KindInvalidDerivation, st.Pos, d.Account,
				"derive(mint, authority) is only valid on an AssociatedTokenAccount")
		}
		return sc.errorf(diag.KindInvalidDerivation, st.Pos, d.Account,
			"an AssociatedTokenAccount is derived with derive(mint, authority)")
	}
	if d.Mint != "" && !d.Associated && ref.Role() != types.RoleTokenAccount {
		return sc.errorf(diag.KindInvalidDerivation, st.Pos, d.Account,
			"mint and authority arguments are only valid on a TokenAccount")
	}
	if d.WithBump && d.Init {
		return sc.errorf(diag.KindInvalidDerivation, st.Pos, d.Account,
			"deriveWithBump cannot be combined with init: an initialised account has no stored bump yet")
	}

	if d.Associated {
		ref.Associated = true
	} else {
		ref.Derivation = DerivationDerive
		if d.WithBump {
			ref.Derivation = DerivationDeriveWithBump
		}
		seeds, err := sc.seeds(d.Seeds, d.Account, false)
		if err != nil {
			return err
		}
		ref.Seeds = seeds
	}

	if d.Mint != "" {
		if err := sc.tokenParties(ref, d, st.Pos); err != nil {
			return err
		}
	}

	if d.WithBump {
		bf, err := sc.bumpField(*d.Bump, d.Account)
		if err != nil {
			return err
		}
		ref.BumpField = bf
	}

	if d.Init {
		if err := sc.init(ref, d, st.Pos); err != nil {
			return err
		}
	}
	return nil
}

func (sc *scope) tokenParties(ref *AccountRef, d *model.Derive, pos ast.Pos) error {
	mint, ok := sc.ix.index[d.Mint]
	if !ok || mint.Role() != types.RoleMint {
		return sc.errorf(diag.KindUnresolvedReference, pos, ref.Name, "token mint '%s' is not a Mint account parameter", d.Mint)
	}
	if _, ok := sc.ix.index[d.Authority]; !ok {
		return sc.errorf(diag.KindUnresolvedReference, pos, ref.Name, "token authority '%s' is not an account parameter", d.Authority)
	}
	ref.Mint = d.Mint
	ref.Authority = d.Authority
	return nil
}

func (sc *scope) bumpField(v model.Value, account string) (*FieldRef, error) {
	if v.Kind != model.ValField {
		return nil, sc.errorf(diag.KindInvalidBumpField, v.Pos, account,
			"bump argument '%s' must be a <state>.<field> reference", v.String())
	}
	holder, ok := sc.ix.index[v.Account]
	if !ok || holder.Role() != types.RoleState {
		return nil, sc.errorf(diag.KindUnresolvedReference, v.Pos, account,
			"bump holder '%s' is not a state account parameter", v.Account)
	}
	st, _ := sc.unit.State(holder.Type.StateName)
	f, ok := st.Field(v.Field)
	if !ok {
		return nil, sc.errorf(diag.KindMissingBumpField, v.Pos, account,
			"state type '%s' has no bump field '%s'", st.Name, v.Field).WithField(v.Field)
	}
	if !isBumpType(f.Type) {
		return nil, sc.errorf(diag.KindInvalidBumpField, v.Pos, account,
			"bump field '%s.%s' must be u8, found %s", st.Name, v.Field, f.Type.Name).WithField(v.Field)
	}
	if sc.initializes(v.Account) {
		return nil, sc.errorf(diag.KindUnresolvedReference, v.Pos, account,
			"bump field '%s.%s' is read while '%s' is being initialised", v.Account, v.Field, v.Account).WithField(v.Field)
	}
	return &FieldRef{Account: v.Account, Field: v.Field}, nil
}

func (sc *scope) init(ref *AccountRef, d *model.Derive, pos ast.Pos) error {
	switch ref.Role() {
	case types.RoleState:
		st, _ := sc.unit.State(ref.Type.StateName)
		ref.Space = st.Space()
	case types.RoleTokenAccount:
		if d.Mint == "" {
			return sc.errorf(diag.KindInvalidDerivation, pos, ref.Name,
				"initialising a TokenAccount requires derive([seeds], mint, authority)")
		}
	case types.RoleAssociatedToken:
	default:
		return sc.errorf(diag.KindInvalidDerivation, pos, ref.Name, "a %s account cannot be initialised", ref.Type.Name)
	}
	ref.Initializes = true
	ref.MutatesState = true

	payer, err := sc.payer(ref, d)
	if err != nil {
		return err
	}
	ref.Payer = payer
	sc.ix.index[payer].MutatesState = true
	return nil
}

// payer resolves the rent payer of an initialised account. An explicit payer
// must be a signer; an implicit one must be the only signer in scope.
func (sc *scope) payer(ref *AccountRef, d *model.Derive) (string, error) {
	if d.Payer != "" {
		p, ok := sc.ix.index[d.Payer]
		if !ok {
			return "", sc.errorf(diag.KindInvalidPayer, d.PayerPos, ref.Name, "payer '%s' is not an account parameter", d.Payer)
		}
		if p.Role() != types.RoleSigner {
			return "", sc.errorf(diag.KindInvalidPayer, d.PayerPos, ref.Name,
				"payer '%s' must be a Signer, found %s", d.Payer, p.Type.Name)
		}
		return d.Payer, nil
	}
	var signers []string
	for _, a := range sc.ix.Accounts {
		if a.Role() == types.RoleSigner {
			signers = append(signers, a.Name)
		}
	}
	switch len(signers) {
	case 1:
		return signers[0], nil
	case 0:
		return "", sc.errorf(diag.KindInvalidPayer, ref.Pos, ref.Name,
			"no Signer account in scope to pay for initialising '%s'", ref.Name)
	default:
		return "", sc.errorf(diag.KindAmbiguousPayer, ref.Pos, ref.Name,
			"several signers (%v) could pay for '%s'; name one with .init(payer)", signers, ref.Name)
	}
}

func (sc *scope) initializes(account string) bool {
	i, ok := sc.derives[account]
	return ok && sc.src.Body[i].Derive.Init
}

func (sc *scope) finish() {
	needsSystem, needsToken, needsATA := false, false, false
	for _, a := range sc.ix.Accounts {
		if a.Role() == types.RoleSystemAccount && a.Derivation != DerivationNone {
			a.MutatesState = true
		}
		if a.Initializes {
			needsSystem = true
			if a.Role().IsToken() {
				needsToken = true
			}
			if a.Associated {
				needsATA = true
			}
		}
		if a.Role() == types.RoleTokenAccount || a.Role() == types.RoleAssociatedToken || a.Role() == types.RoleMint {
			needsToken = true
		}
		if a.Role() == types.RoleTokenProgram {
			sc.ix.TokenProgram = a.Name
		}
	}
	for _, st := range sc.src.Body {
		if st.Kind != model.StmtCall {
			continue
		}
		if st.Call.Kind == model.CallSystemTransfer {
			needsSystem = true
		} else {
			needsToken = true
		}
	}

	if needsSystem {
		sc.ix.Programs = append(sc.ix.Programs, systemProgramAccount)
	}
	if needsToken && sc.ix.TokenProgram == "" {
		sc.ix.Programs = append(sc.ix.Programs, tokenProgramAccount)
		sc.ix.TokenProgram = tokenProgramAccount.Name
	}
	if needsATA {
		sc.ix.Programs = append(sc.ix.Programs, associatedTokenProgramAccount)
	}
}

func (sc *scope) errorf(kind diag.Kind, pos ast.Pos, account, format string, args ...any) diag.Diagnostic {
	p := diag.Position{Line: pos.Line, Column: pos.Column}
	span := diag.Span{File: sc.unit.File, Start: p, End: p}
	return diag.New(kind, span, format, args...).In(sc.src.Name, account)
}
