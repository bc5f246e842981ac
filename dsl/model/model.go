// Package model builds the program IR from a parsed DSL file.
package model

import (
	"github.com/tos-network/anchorgen/dsl/ast"
	"github.com/tos-network/anchorgen/dsl/types"
)

// AccountDiscriminatorSize is the prefix Anchor reserves in every account.
const AccountDiscriminatorSize = 8

// ProgramUnit is one compilation unit. It is not modified after Extract returns.
type ProgramUnit struct {
	File         string
	Name         string
	ProgramID    string
	Instructions []Instruction
	States       []StateType
}

// State returns the state type with the given name.
func (u *ProgramUnit) State(name string) (*StateType, bool) {
	for i := range u.States {
		if u.States[i].Name == name {
			return &u.States[i], true
		}
	}
	return nil, false
}

// StateType is an account-state interface persisted on chain.
type StateType struct {
	Name   string
	Fields []Field
	Pos    ast.Pos
}

type Field struct {
	Name string
	Type types.Type
	Pos  ast.Pos
}

func (s *StateType) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Space is the account allocation size: discriminator plus every field.
func (s *StateType) Space() int {
	n := AccountDiscriminatorSize
	for _, f := range s.Fields {
		n += f.Type.Size()
	}
	return n
}

// Instruction is one program entry point.
type Instruction struct {
	Name    string
	Params  []Param
	Body    []Statement
	Returns string
	Pos     ast.Pos
}

type Param struct {
	Name string
	Type types.Type
	Pos  ast.Pos
}

func (ix *Instruction) Param(name string) (Param, bool) {
	for _, p := range ix.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Accounts returns the account-typed parameters in declaration order.
func (ix *Instruction) Accounts() []Param {
	out := []Param{}
	for _, p := range ix.Params {
		if p.Type.IsAccount() {
			out = append(out, p)
		}
	}
	return out
}

// Args returns the plain instruction arguments in declaration order.
func (ix *Instruction) Args() []Param {
	out := []Param{}
	for _, p := range ix.Params {
		if !p.Type.IsAccount() {
			out = append(out, p)
		}
	}
	return out
}

type StmtKind int

const (
	StmtDerive StmtKind = iota + 1
	StmtAssign
	StmtCall
	StmtLocal
	StmtClose
)

func (k StmtKind) String() string {
	switch k {
	case StmtDerive:
		return "derive"
	case StmtAssign:
		return "assign"
	case StmtCall:
		return "call"
	case StmtLocal:
		return "local"
	case StmtClose:
		return "close"
	default:
		return "unknown"
	}
}

// Statement is one instruction body statement; exactly one payload is set.
type Statement struct {
	Kind   StmtKind
	Pos    ast.Pos
	Derive *Derive
	Assign *Assign
	Call   *CrossProgramCall
	Local  *Local
	Close  *Close
}

// Derive is a derive / deriveWithBump call, optionally chained with init.
type Derive struct {
	Account  string
	Seeds    []Value
	WithBump bool
	Bump     *Value

	Init     bool
	Payer    string
	PayerPos ast.Pos

	// Token account forms: derive(mint, owner.key) for associated token
	// accounts, derive([seeds], mint, owner.key) for PDA token accounts.
	Associated bool
	Mint       string
	Authority  string
}

// Assign writes a value into a state field.
type Assign struct {
	Account string
	Field   string
	Value   Value
}

type CallKind int

const (
	CallSystemTransfer CallKind = iota + 1
	CallTokenTransfer
	CallTokenMintTo
	CallTokenBurn
)

func (k CallKind) String() string {
	switch k {
	case CallSystemTransfer:
		return "SystemProgram.transfer"
	case CallTokenTransfer:
		return "TokenProgram.transfer"
	case CallTokenMintTo:
		return "TokenProgram.mintTo"
	case CallTokenBurn:
		return "TokenProgram.burn"
	default:
		return "unknown"
	}
}

// CrossProgramCall is a value transfer or token operation. Participants are
// account parameter names; Signer is the party that authorises the call.
type CrossProgramCall struct {
	Kind      CallKind
	From      string
	To        string
	Mint      string
	Authority string
	Amount    Value

	SignerSeeds []Value
	HasSeeds    bool
}

// Signer returns the account whose signature the call requires.
func (c *CrossProgramCall) Signer() string {
	if c.Kind == CallSystemTransfer {
		return c.From
	}
	return c.Authority
}

// Local binds a name to a value for later statements. A Local whose value is
// a bump read is the BumpRead statement.
type Local struct {
	Name     string
	Mutable  bool
	Declared *types.Type
	Value    Value
}

// IsBumpRead reports whether the binding reads a derived account's bump.
func (l *Local) IsBumpRead() bool { return l.Value.Kind == ValBump }

// Close closes an account and refunds its lamports to Destination.
type Close struct {
	Account     string
	Destination string
}

type ValueKind int

const (
	ValInt ValueKind = iota + 1
	ValBool
	ValString
	ValArg
	ValLocal
	ValAccount
	ValAccountKey
	ValField
	ValBump
	ValBinary
	ValNeg
	ValParen
)

// Value is an expression inside an instruction body.
type Value struct {
	Kind    ValueKind
	Text    string // literal text, argument or local name
	Account string
	Field   string
	Op      string
	Left    *Value
	Right   *Value

	// ToBytes marks an explicit .toBytes() conversion, used in seed lists.
	ToBytes bool
	Pos     ast.Pos
}

func (v Value) String() string {
	switch v.Kind {
	case ValInt, ValBool, ValArg, ValLocal:
		return v.Text
	case ValString:
		return "'" + v.Text + "'"
	case ValAccount:
		return v.Account
	case ValAccountKey:
		return v.Account + ".key"
	case ValField:
		return v.Account + "." + v.Field
	case ValBump:
		return v.Account + ".getBump()"
	case ValBinary:
		return v.Left.String() + " " + v.Op + " " + v.Right.String()
	case ValNeg:
		return "-" + v.Left.String()
	case ValParen:
		return "(" + v.Left.String() + ")"
	default:
		return "?"
	}
}
