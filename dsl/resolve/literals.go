package resolve

import (
	"math/big"
	"strings"

	"github.com/tos-network/anchorgen/dsl/diag"
	"github.com/tos-network/anchorgen/dsl/model"
	"github.com/tos-network/anchorgen/dsl/types"
)

var u64Type = types.Type{Name: "u64", Value: types.ValueInt, Bits: 64}

// parseIntLiteral reads a DSL integer literal. Unprefixed literals are
// decimal even with a leading zero.
func parseIntLiteral(lit string) (*big.Int, bool) {
	s := strings.ReplaceAll(strings.ToLower(lit), "_", "")
	base := 10
	switch {
	case strings.HasPrefix(s, "0x"):
		s, base = s[2:], 16
	case strings.HasPrefix(s, "0b"):
		s, base = s[2:], 2
	case strings.HasPrefix(s, "0o"):
		s, base = s[2:], 8
	}
	return new(big.Int).SetString(s, base)
}

// constValue folds v when it is built only from integer literals and
// locals bound to them.
func (sc *scope) constValue(v model.Value) (*big.Int, bool) {
	switch v.Kind {
	case model.ValInt:
		return parseIntLiteral(v.Text)
	case model.ValLocal:
		n, ok := sc.consts[v.Text]
		return n, ok
	case model.ValParen:
		return sc.constValue(*v.Left)
	case model.ValNeg:
		n, ok := sc.constValue(*v.Left)
		if !ok {
			return nil, false
		}
		return new(big.Int).Neg(n), true
	case model.ValBinary:
		l, ok := sc.constValue(*v.Left)
		if !ok {
			return nil, false
		}
		r, ok := sc.constValue(*v.Right)
		if !ok {
			return nil, false
		}
		return fold(v.Op, l, r)
	}
	return nil, false
}

func fold(op string, l, r *big.Int) (*big.Int, bool) {
	switch op {
	case "+":
		return new(big.Int).Add(l, r), true
	case "-":
		return new(big.Int).Sub(l, r), true
	case "*":
		return new(big.Int).Mul(l, r), true
	case "/":
		if r.Sign() == 0 {
			return nil, false
		}
		return new(big.Int).Quo(l, r), true
	case "%":
		if r.Sign() == 0 {
			return nil, false
		}
		return new(big.Int).Rem(l, r), true
	}
	return nil, false
}

// checkInt checks an integer expression against the type dst it takes in
// the generated code. Unsigned values cannot be negated, and every literal
// and constant subexpression must fit dst, since rustc evaluates constant
// arithmetic in that type.
func (sc *scope) checkInt(dst types.Type, v model.Value, account string) error {
	if !dst.IsInt() || dst == types.IntLiteral {
		return nil
	}
	switch v.Kind {
	case model.ValParen:
		return sc.checkInt(dst, *v.Left, account)
	case model.ValNeg:
		if !dst.Signed {
			return sc.errorf(diag.KindTypeMismatch, v.Pos, account, "cannot negate %s value %s", dst.Name, v.Left.String())
		}
		if err := sc.checkInt(dst, *v.Left, account); err != nil {
			return err
		}
	case model.ValBinary:
		if err := sc.checkInt(dst, *v.Left, account); err != nil {
			return err
		}
		if err := sc.checkInt(dst, *v.Right, account); err != nil {
			return err
		}
		if v.Op == "/" || v.Op == "%" {
			if r, ok := sc.constValue(*v.Right); ok && r.Sign() == 0 {
				return sc.errorf(diag.KindTypeMismatch, v.Pos, account, "division by zero in '%s'", v.String())
			}
		}
	}
	n, ok := sc.constValue(v)
	if ok && !dst.Fits(n) {
		return sc.errorf(diag.KindTypeMismatch, v.Pos, account, "%s is out of range for %s", n.String(), dst.Name)
	}
	return nil
}
