package resolve

import (
	"github.com/tos-network/anchorgen/dsl/ast"
	"github.com/tos-network/anchorgen/dsl/diag"
	"github.com/tos-network/anchorgen/dsl/model"
	"github.com/tos-network/anchorgen/dsl/types"
)

const (
	// MaxSeeds is the runtime limit on seeds per address, bump included.
	MaxSeeds = 16
	// MaxSeedLen is the runtime limit on the length of one seed.
	MaxSeedLen = 32
)

type SeedKind int

const (
	SeedLiteral SeedKind = iota + 1
	SeedAccountKey
	SeedStateField
	SeedArgument
	SeedBump
)

func (k SeedKind) String() string {
	switch k {
	case SeedLiteral:
		return "literal"
	case SeedAccountKey:
		return "account key"
	case SeedStateField:
		return "state field"
	case SeedArgument:
		return "argument"
	case SeedBump:
		return "bump"
	default:
		return "unknown"
	}
}

// Seed is one classified element of a seed list, in source order.
//
// A bump seed reads either a stored field (Account and Field), the bump
// computed by the account constraint (Account only), or a local (Local).
type Seed struct {
	Kind    SeedKind
	Literal string
	Account string
	Field   string
	Arg     string
	Local   string
	Type    types.Type
	Pos     ast.Pos
}

// IsStoredBump reports whether a bump seed reads a state field.
func (s Seed) IsStoredBump() bool { return s.Kind == SeedBump && s.Field != "" }

// seeds classifies the seed list of account. In signer context the list is
// the signer-seed override of a CPI and may end with a bump.
func (sc *scope) seeds(vals []model.Value, account string, signer bool) ([]Seed, error) {
	limit := MaxSeeds
	if !signer {
		limit-- // the constraint appends the bump
	}
	if len(vals) > limit {
		return nil, sc.errorf(diag.KindInvalidSeed, vals[limit].Pos, account,
			"'%s' has %d seeds, at most %d are allowed", account, len(vals), limit)
	}
	out := make([]Seed, 0, len(vals))
	for i, v := range vals {
		last := i == len(vals)-1
		s, err := sc.seed(v, account, signer, last)
		if err != nil {
			return nil, err
		}
		if s.Kind == SeedArgument && !signer {
			sc.ix.ArgSeeds = true
		}
		out = append(out, s)
	}
	return out, nil
}

func (sc *scope) seed(v model.Value, account string, signer, last bool) (Seed, error) {
	s := Seed{Pos: v.Pos}
	switch v.Kind {
	case model.ValString:
		if len(v.Text) > MaxSeedLen {
			return s, sc.errorf(diag.KindInvalidSeed, v.Pos, account,
				"seed '%s' is %d bytes, the limit is %d", v.Text, len(v.Text), MaxSeedLen)
		}
		s.Kind, s.Literal = SeedLiteral, v.Text
		return s, nil

	case model.ValAccountKey:
		if _, ok := sc.ix.index[v.Account]; !ok {
			return s, sc.errorf(diag.KindUnresolvedReference, v.Pos, account,
				"seed '%s' references '%s', which is not an account parameter of '%s'", v.String(), v.Account, sc.src.Name)
		}
		s.Kind, s.Account, s.Type = SeedAccountKey, v.Account, pubkeyType
		return s, nil

	case model.ValArg:
		p, _ := sc.src.Param(v.Text)
		if err := sc.seedValueType(p.Type, v, account); err != nil {
			return s, err
		}
		s.Kind, s.Arg, s.Type = SeedArgument, v.Text, p.Type
		return s, nil

	case model.ValField:
		f, err := sc.stateField(v.Account, v.Field, v.Pos)
		if err != nil {
			return s, err
		}
		if !signer && sc.initializes(v.Account) {
			return s, sc.errorf(diag.KindUnresolvedReference, v.Pos, account,
				"seed '%s' reads a field of '%s', which is being initialised", v.String(), v.Account).WithField(v.Field)
		}
		if signer {
			plain := v
			plain.ToBytes = false
			if _, err := sc.valueType(plain, account); err != nil {
				return s, err
			}
		}
		s.Account, s.Field, s.Type = v.Account, v.Field, f.Type
		if signer && last && isBumpType(f.Type) {
			s.Kind = SeedBump
			return s, nil
		}
		if err := sc.seedValueType(f.Type, v, account); err != nil {
			return s, err
		}
		s.Kind = SeedStateField
		return s, nil

	case model.ValBump:
		if !signer {
			return s, sc.errorf(diag.KindInvalidSeed, v.Pos, account,
				"bump '%s' cannot appear in a derivation seed list", v.String())
		}
		if !last {
			return s, sc.errorf(diag.KindInvalidSeed, v.Pos, account,
				"bump '%s' must be the last signer seed", v.String())
		}
		if err := sc.bumpRead(v); err != nil {
			return s, err
		}
		s.Kind, s.Account, s.Type = SeedBump, v.Account, u8Type
		return s, nil

	case model.ValLocal:
		t, ok := sc.locals[v.Text]
		if !ok {
			return s, sc.errorf(diag.KindUnresolvedReference, v.Pos, account, "'%s' is not declared before use", v.Text)
		}
		if signer && last && isBumpType(t) {
			s.Kind, s.Local, s.Type = SeedBump, v.Text, t
			return s, nil
		}
		return s, sc.errorf(diag.KindInvalidSeed, v.Pos, account,
			"local '%s' can only be used as the trailing bump of a signer seed list", v.Text)
	}
	return s, sc.errorf(diag.KindInvalidSeed, v.Pos, account,
		"'%s' is not a valid seed (use a string literal, <account>.key, <state>.<field> or an argument)", v.String())
}

// seedValueType rejects value types that have no byte representation.
func (sc *scope) seedValueType(t types.Type, v model.Value, account string) error {
	switch t.Value {
	case types.ValueInt, types.ValueString, types.ValuePubkey:
		return nil
	}
	return sc.errorf(diag.KindInvalidSeed, v.Pos, account, "seed '%s' of type %s has no byte form", v.String(), t.Name)
}

func isBumpType(t types.Type) bool {
	return t.Value == types.ValueInt && t.Bits == 8 && !t.Signed
}
