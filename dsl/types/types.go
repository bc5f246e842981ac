// Package types holds the fixed DSL type vocabulary and its mapping onto
// Anchor/Rust types. The table is read-only process-wide data.
package types

import (
	"fmt"
	"math/big"
	"strconv"
)

// Role is the closed set of account kinds an instruction parameter can take.
// RoleNone marks plain instruction arguments.
type Role int

const (
	RoleNone Role = iota
	RoleSigner
	RoleSystemAccount
	RoleUnchecked
	RoleMint
	RoleTokenAccount
	RoleAssociatedToken
	RoleTokenProgram
	RoleState
)

func (r Role) String() string {
	switch r {
	case RoleNone:
		return "none"
	case RoleSigner:
		return "signer"
	case RoleSystemAccount:
		return "system-account"
	case RoleUnchecked:
		return "unchecked"
	case RoleMint:
		return "mint"
	case RoleTokenAccount:
		return "token-account"
	case RoleAssociatedToken:
		return "associated-token-account"
	case RoleTokenProgram:
		return "token-program"
	case RoleState:
		return "state"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Category folds a role into the signer / state / auxiliary partition.
func (r Role) Category() string {
	switch r {
	case RoleSigner:
		return "signer"
	case RoleState:
		return "state"
	case RoleNone:
		return ""
	default:
		return "auxiliary"
	}
}

// IsToken reports whether the role belongs to the SPL token family.
func (r Role) IsToken() bool {
	switch r {
	case RoleMint, RoleTokenAccount, RoleAssociatedToken, RoleTokenProgram:
		return true
	}
	return false
}

// ValueKind classifies plain value types.
type ValueKind int

const (
	ValueNone ValueKind = iota
	ValueInt
	ValueBool
	ValueString
	ValuePubkey
)

func (k ValueKind) String() string {
	switch k {
	case ValueInt:
		return "integer"
	case ValueBool:
		return "bool"
	case ValueString:
		return "string"
	case ValuePubkey:
		return "pubkey"
	default:
		return "none"
	}
}

// Type is a resolved DSL type.
type Type struct {
	Name  string // DSL spelling, e.g. "u64" or "Str<16>"
	Role  Role
	Value ValueKind

	Bits   int
	Signed bool
	MaxLen int // strings only

	// StateName is the user state type for RoleState.
	StateName string
}

// IsAccount reports whether the type is an account role.
func (t Type) IsAccount() bool { return t.Role != RoleNone }

// IsInt reports whether the type is a fixed-width integer.
func (t Type) IsInt() bool { return t.Value == ValueInt }

// Fits reports whether n is representable in the integer type t.
func (t Type) Fits(n *big.Int) bool {
	if !t.IsInt() || t.Bits == 0 {
		return false
	}
	if !t.Signed {
		return n.Sign() >= 0 && n.BitLen() <= t.Bits
	}
	limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Bits-1))
	if n.Sign() >= 0 {
		return n.Cmp(limit) < 0
	}
	return n.Cmp(limit.Neg(limit)) >= 0
}

// Size returns the borsh-encoded on-chain size of a value type.
func (t Type) Size() int {
	switch t.Value {
	case ValueInt:
		return t.Bits / 8
	case ValueBool:
		return 1
	case ValueString:
		return 4 + t.MaxLen
	case ValuePubkey:
		return 32
	default:
		return 0
	}
}

// Rust returns the target-language type.
func (t Type) Rust() string {
	switch t.Role {
	case RoleSigner:
		return "Signer<'info>"
	case RoleSystemAccount:
		return "SystemAccount<'info>"
	case RoleUnchecked:
		return "UncheckedAccount<'info>"
	case RoleMint:
		return "Account<'info, Mint>"
	case RoleTokenAccount, RoleAssociatedToken:
		return "Account<'info, TokenAccount>"
	case RoleTokenProgram:
		return "Program<'info, Token>"
	case RoleState:
		return "Account<'info, " + t.StateName + ">"
	}
	switch t.Value {
	case ValueInt:
		if t.Signed {
			return "i" + strconv.Itoa(t.Bits)
		}
		return "u" + strconv.Itoa(t.Bits)
	case ValueBool:
		return "bool"
	case ValueString:
		return "String"
	case ValuePubkey:
		return "Pubkey"
	}
	return ""
}

// IDL returns the Anchor IDL primitive name of a value type.
func (t Type) IDL() string {
	switch t.Value {
	case ValueInt:
		return t.Rust()
	case ValueBool:
		return "bool"
	case ValueString:
		return "string"
	case ValuePubkey:
		return "pubkey"
	default:
		return ""
	}
}

// AssignableFrom reports whether a value of type src can be stored in t.
func (t Type) AssignableFrom(src Type) bool {
	if t.Value == ValueNone || src.Value == ValueNone {
		return false
	}
	return t.Value == src.Value
}

var intTypes = map[string]Type{
	"u8":   {Name: "u8", Value: ValueInt, Bits: 8},
	"u16":  {Name: "u16", Value: ValueInt, Bits: 16},
	"u32":  {Name: "u32", Value: ValueInt, Bits: 32},
	"u64":  {Name: "u64", Value: ValueInt, Bits: 64},
	"u128": {Name: "u128", Value: ValueInt, Bits: 128},
	"i8":   {Name: "i8", Value: ValueInt, Bits: 8, Signed: true},
	"i16":  {Name: "i16", Value: ValueInt, Bits: 16, Signed: true},
	"i32":  {Name: "i32", Value: ValueInt, Bits: 32, Signed: true},
	"i64":  {Name: "i64", Value: ValueInt, Bits: 64, Signed: true},
	"i128": {Name: "i128", Value: ValueInt, Bits: 128, Signed: true},
}

var accountRoles = map[string]Role{
	"Signer":                 RoleSigner,
	"SystemAccount":          RoleSystemAccount,
	"UncheckedAccount":       RoleUnchecked,
	"Mint":                   RoleMint,
	"TokenAccount":           RoleTokenAccount,
	"AssociatedTokenAccount": RoleAssociatedToken,
	"TokenProgram":           RoleTokenProgram,
}

// DefaultStringMaxLen is the space reserved for an unbounded string field.
const DefaultStringMaxLen = 32

// Lookup resolves a DSL type name with an optional generic argument against
// the fixed vocabulary. State type names resolve only when isState reports
// true for them. The bool result is false for names outside the vocabulary.
func Lookup(name, arg string, isState func(string) bool, stringMaxLen int) (Type, bool) {
	if stringMaxLen <= 0 {
		stringMaxLen = DefaultStringMaxLen
	}
	if arg != "" {
		if name != "Str" {
			return Type{}, false
		}
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 {
			return Type{}, false
		}
		return Type{Name: "Str<" + arg + ">", Value: ValueString, MaxLen: n}, true
	}
	if t, ok := intTypes[name]; ok {
		return t, true
	}
	switch name {
	case "boolean", "bool":
		return Type{Name: name, Value: ValueBool}, true
	case "string":
		return Type{Name: name, Value: ValueString, MaxLen: stringMaxLen}, true
	case "Pubkey":
		return Type{Name: name, Value: ValuePubkey}, true
	}
	if role, ok := accountRoles[name]; ok {
		return Type{Name: name, Role: role}, true
	}
	if isState != nil && isState(name) {
		return Type{Name: name, Role: RoleState, StateName: name}, true
	}
	return Type{}, false
}

// IntLiteral is the type given to bare numeric literals before context
// narrows them.
var IntLiteral = Type{Name: "integer", Value: ValueInt, Bits: 64}
