package resolve

import (
	"github.com/tos-network/anchorgen/dsl/ast"
	"github.com/tos-network/anchorgen/dsl/diag"
	"github.com/tos-network/anchorgen/dsl/model"
	"github.com/tos-network/anchorgen/dsl/types"
)

var (
	pubkeyType = types.Type{Name: "Pubkey", Value: types.ValuePubkey}
	u8Type     = types.Type{Name: "u8", Value: types.ValueInt, Bits: 8}
	boolType   = types.Type{Name: "boolean", Value: types.ValueBool}
	stringType = types.Type{Name: "string", Value: types.ValueString}
)

func (sc *scope) assign(st model.Statement) error {
	a := st.Assign
	field, err := sc.stateField(a.Account, a.Field, st.Pos)
	if err != nil {
		return err
	}
	src, err := sc.valueType(a.Value, a.Account)
	if err != nil {
		return err
	}
	if !assignable(field.Type, src) {
		return sc.errorf(diag.KindTypeMismatch, a.Value.Pos, a.Account,
			"cannot assign %s (%s) to field '%s' of type %s", a.Value.String(), src.Name, a.Field, field.Type.Name).WithField(a.Field)
	}
	if err := sc.checkInt(field.Type, a.Value, a.Account); err != nil {
		if d, ok := err.(diag.Diagnostic); ok {
			return d.WithField(a.Field)
		}
		return err
	}
	if a.Value.Kind == model.ValString && field.Type.MaxLen > 0 && len(a.Value.Text) > field.Type.MaxLen {
		return sc.errorf(diag.KindTypeMismatch, a.Value.Pos, a.Account,
			"string of %d bytes does not fit field '%s' (%s)", len(a.Value.Text), a.Field, field.Type.Name).WithField(a.Field)
	}
	sc.ix.index[a.Account].MutatesState = true
	sc.assigned[a.Account+"."+a.Field] = true
	return nil
}

// stateField looks up account.field where account is a state parameter.
func (sc *scope) stateField(account, field string, pos ast.Pos) (model.Field, error) {
	ref, ok := sc.ix.index[account]
	if !ok {
		return model.Field{}, sc.errorf(diag.KindUnresolvedReference, pos, account,
			"'%s' is not an account parameter of '%s'", account, sc.src.Name).WithField(field)
	}
	if ref.Role() != types.RoleState {
		return model.Field{}, sc.errorf(diag.KindUnresolvedReference, pos, account,
			"account '%s' (%s) has no state field '%s'", account, ref.Type.Name, field).WithField(field)
	}
	st, _ := sc.unit.State(ref.Type.StateName)
	f, ok := st.Field(field)
	if !ok {
		return model.Field{}, sc.errorf(diag.KindUnresolvedReference, pos, account,
			"state type '%s' has no field '%s'", st.Name, field).WithField(field)
	}
	return f, nil
}

func (sc *scope) call(st model.Statement) error {
	c := st.Call
	for _, name := range []string{c.From, c.To, c.Mint, c.Authority} {
		if name == "" {
			continue
		}
		if _, ok := sc.ix.index[name]; !ok {
			return sc.errorf(diag.KindUnresolvedReference, st.Pos, name,
				"%s references '%s', which is not an account parameter", c.Kind, name)
		}
	}

	switch c.Kind {
	case model.CallSystemTransfer:
		sc.markMut(c.From, c.To)
	case model.CallTokenTransfer:
		if err := sc.expectRoles(st, c.From, types.RoleTokenAccount, types.RoleAssociatedToken); err != nil {
			return err
		}
		if err := sc.expectRoles(st, c.To, types.RoleTokenAccount, types.RoleAssociatedToken); err != nil {
			return err
		}
		sc.markMut(c.From, c.To)
	case model.CallTokenMintTo:
		if err := sc.expectRoles(st, c.Mint, types.RoleMint); err != nil {
			return err
		}
		if err := sc.expectRoles(st, c.To, types.RoleTokenAccount, types.RoleAssociatedToken); err != nil {
			return err
		}
		sc.markMut(c.Mint, c.To)
	case model.CallTokenBurn:
		if err := sc.expectRoles(st, c.Mint, types.RoleMint); err != nil {
			return err
		}
		if err := sc.expectRoles(st, c.From, types.RoleTokenAccount, types.RoleAssociatedToken); err != nil {
			return err
		}
		sc.markMut(c.Mint, c.From)
	}

	amount, err := sc.valueType(c.Amount, c.Signer())
	if err != nil {
		return err
	}
	if !amount.IsInt() {
		return sc.errorf(diag.KindTypeMismatch, c.Amount.Pos, c.Signer(), "%s amount must be an integer, found %s", c.Kind, amount.Name)
	}
	if amount != types.IntLiteral && (amount.Bits != 64 || amount.Signed) {
		return sc.errorf(diag.KindTypeMismatch, c.Amount.Pos, c.Signer(), "%s amount must be u64, found %s", c.Kind, amount.Name)
	}
	if err := sc.checkInt(u64Type, c.Amount, c.Signer()); err != nil {
		return err
	}

	signer := c.Signer()
	_, derived := sc.derives[signer]
	switch {
	case c.HasSeeds && !derived:
		return sc.errorf(diag.KindInvalidSignerSeeds, st.Pos, signer,
			"signer seeds given but '%s' is not a derived account", signer)
	case !c.HasSeeds && derived && !sc.ix.index[signer].Associated:
		return sc.errorf(diag.KindInvalidSignerSeeds, st.Pos, signer,
			"'%s' is a PDA and needs signer seeds to authorise %s", signer, c.Kind)
	case c.HasSeeds:
		seeds, err := sc.seeds(c.SignerSeeds, signer, true)
		if err != nil {
			return err
		}
		if len(seeds) == 0 || seeds[len(seeds)-1].Kind != SeedBump {
			return sc.errorf(diag.KindInvalidSignerSeeds, st.Pos, signer, "signer seeds must end with the bump of '%s'", signer)
		}
		sc.ix.signerSeeds[sc.stmt] = seeds
	}
	return nil
}

func (sc *scope) expectRoles(st model.Statement, name string, roles ...types.Role) error {
	ref := sc.ix.index[name]
	for _, r := range roles {
		if ref.Role() == r {
			return nil
		}
	}
	return sc.errorf(diag.KindTypeMismatch, st.Pos, name, "%s cannot use '%s' of type %s here", st.Call.Kind, name, ref.Type.Name)
}

func (sc *scope) markMut(names ...string) {
	for _, n := range names {
		if ref, ok := sc.ix.index[n]; ok {
			ref.MutatesState = true
		}
	}
}

func (sc *scope) local(st model.Statement) error {
	l := st.Local
	typ, err := sc.valueType(l.Value, "")
	if err != nil {
		return err
	}
	if l.Declared != nil {
		if !assignable(*l.Declared, typ) {
			return sc.errorf(diag.KindTypeMismatch, l.Value.Pos, "",
				"cannot initialise '%s: %s' with %s (%s)", l.Name, l.Declared.Name, l.Value.String(), typ.Name)
		}
		typ = *l.Declared
	}
	if typ == types.IntLiteral {
		if n, ok := sc.constValue(l.Value); ok {
			sc.consts[l.Name] = n
		}
	} else if err := sc.checkInt(typ, l.Value, ""); err != nil {
		return err
	}
	sc.locals[l.Name] = typ
	return nil
}

func (sc *scope) close(st model.Statement) error {
	c := st.Close
	ref, ok := sc.ix.index[c.Account]
	if !ok {
		return sc.errorf(diag.KindUnresolvedReference, st.Pos, c.Account, "'%s' is not an account parameter", c.Account)
	}
	if ref.Role() != types.RoleState {
		return sc.errorf(diag.KindTypeMismatch, st.Pos, c.Account, "only state accounts can be closed, '%s' is %s", c.Account, ref.Type.Name)
	}
	if ref.Initializes {
		return sc.errorf(diag.KindInvalidDerivation, st.Pos, c.Account, "'%s' is initialised and closed in the same instruction", c.Account)
	}
	if ref.CloseTo != "" {
		return sc.errorf(diag.KindDuplicateDerivation, st.Pos, c.Account, "'%s' is closed more than once", c.Account)
	}
	if _, ok := sc.ix.index[c.Destination]; !ok {
		return sc.errorf(diag.KindUnresolvedReference, st.Pos, c.Account, "close destination '%s' is not an account parameter", c.Destination)
	}
	ref.CloseTo = c.Destination
	sc.markMut(c.Account, c.Destination)
	return nil
}

// valueType types a value in source order. account gives diagnostic context.
func (sc *scope) valueType(v model.Value, account string) (types.Type, error) {
	if v.ToBytes {
		return types.Type{}, sc.errorf(diag.KindUnsupportedConstruct, v.Pos, account, "toBytes() is only valid inside a seed list")
	}
	switch v.Kind {
	case model.ValInt:
		return types.IntLiteral, nil
	case model.ValBool:
		return boolType, nil
	case model.ValString:
		return stringType, nil
	case model.ValArg:
		p, _ := sc.src.Param(v.Text)
		return p.Type, nil
	case model.ValLocal:
		t, ok := sc.locals[v.Text]
		if !ok {
			return types.Type{}, sc.errorf(diag.KindUnresolvedReference, v.Pos, account, "'%s' is not declared before use", v.Text)
		}
		return t, nil
	case model.ValAccount:
		return types.Type{}, sc.errorf(diag.KindTypeMismatch, v.Pos, v.Account,
			"account '%s' used as a value; use %s.key for its address", v.Account, v.Account)
	case model.ValAccountKey:
		if _, ok := sc.ix.index[v.Account]; !ok {
			return types.Type{}, sc.errorf(diag.KindUnresolvedReference, v.Pos, v.Account, "'%s' is not an account parameter", v.Account)
		}
		return pubkeyType, nil
	case model.ValField:
		f, err := sc.stateField(v.Account, v.Field, v.Pos)
		if err != nil {
			return types.Type{}, err
		}
		if sc.initializes(v.Account) && !sc.assigned[v.Account+"."+v.Field] {
			return types.Type{}, sc.errorf(diag.KindUnresolvedReference, v.Pos, v.Account,
				"field '%s.%s' is read before it is written in the instruction that initialises '%s'", v.Account, v.Field, v.Account).WithField(v.Field)
		}
		return f.Type, nil
	case model.ValBump:
		if err := sc.bumpRead(v); err != nil {
			return types.Type{}, err
		}
		return u8Type, nil
	case model.ValParen, model.ValNeg:
		t, err := sc.valueType(*v.Left, account)
		if err != nil {
			return t, err
		}
		if v.Kind == model.ValNeg && (!t.IsInt() || (!t.Signed && t != types.IntLiteral)) {
			return t, sc.errorf(diag.KindTypeMismatch, v.Pos, account, "cannot negate %s", t.Name)
		}
		return t, nil
	case model.ValBinary:
		l, err := sc.valueType(*v.Left, account)
		if err != nil {
			return l, err
		}
		r, err := sc.valueType(*v.Right, account)
		if err != nil {
			return r, err
		}
		if !l.IsInt() || !r.IsInt() {
			return l, sc.errorf(diag.KindTypeMismatch, v.Pos, account, "operator '%s' needs integers, found %s and %s", v.Op, l.Name, r.Name)
		}
		switch {
		case l == types.IntLiteral:
			return r, nil
		case r == types.IntLiteral, l == r:
			return l, nil
		}
		return l, sc.errorf(diag.KindTypeMismatch, v.Pos, account, "operator '%s' mixes %s and %s", v.Op, l.Name, r.Name)
	}
	return types.Type{}, sc.errorf(diag.KindUnsupportedConstruct, v.Pos, account, "unsupported value '%s'", v.String())
}

// bumpRead checks that the account behind getBump() is derived earlier.
func (sc *scope) bumpRead(v model.Value) error {
	ref, ok := sc.ix.index[v.Account]
	if !ok {
		return sc.errorf(diag.KindUnresolvedReference, v.Pos, v.Account, "'%s' is not an account parameter", v.Account)
	}
	if ref.Derivation == DerivationNone || ref.derivedAt >= sc.stmt {
		return sc.errorf(diag.KindUnresolvedReference, v.Pos, v.Account,
			"%s.getBump() is used before '%s' is derived", v.Account, v.Account)
	}
	return nil
}

func assignable(dst, src types.Type) bool {
	if !dst.AssignableFrom(src) {
		return false
	}
	if dst.IsInt() && src != types.IntLiteral {
		return dst.Bits == src.Bits && dst.Signed == src.Signed
	}
	return true
}
