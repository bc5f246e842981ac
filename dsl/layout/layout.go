// Package layout decodes raw state account data using the field layout of a
// DSL state type.
package layout

import (
	"bytes"
	"fmt"
	"math/big"
	"reflect"
	"strconv"

	"github.com/mr-tron/base58"
	"github.com/near/borsh-go"

	"github.com/tos-network/anchorgen/dsl/idl"
	"github.com/tos-network/anchorgen/dsl/model"
	"github.com/tos-network/anchorgen/dsl/translate"
	"github.com/tos-network/anchorgen/dsl/types"
)

// Value is one decoded field.
type Value struct {
	Name  string
	Type  types.Type
	Value any // uint64, int64, *big.Int, bool, string or [32]byte
}

// String renders the value the way a block explorer would.
func (v Value) String() string {
	switch x := v.Value.(type) {
	case [32]byte:
		return base58.Encode(x[:])
	case string:
		return strconv.Quote(x)
	case *big.Int:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// Record is a decoded state account.
type Record struct {
	Type   string
	Fields []Value
}

// Field returns the decoded field with the given DSL name.
func (r *Record) Field(name string) (Value, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Value{}, false
}

// MinSize is the smallest account that can hold st: strings may be shorter
// than their reserved length.
func MinSize(st *model.StateType) int {
	n := model.AccountDiscriminatorSize
	for _, f := range st.Fields {
		if f.Type.Value == types.ValueString {
			n += 4
			continue
		}
		n += f.Type.Size()
	}
	return n
}

// Decode checks the account discriminator and decodes the fields of st.
// Bytes past the last field are allocation slack and are ignored.
func Decode(st *model.StateType, data []byte) (*Record, error) {
	if len(data) < MinSize(st) {
		return nil, fmt.Errorf("account data is %d bytes, %s needs at least %d", len(data), st.Name, MinSize(st))
	}
	want := idl.AccountDiscriminator(st.Name)
	if !bytes.Equal(data[:model.AccountDiscriminatorSize], want[:]) {
		return nil, fmt.Errorf("account discriminator %x does not match %s (%x)",
			data[:model.AccountDiscriminatorSize], st.Name, want)
	}
	rt, err := structType(st)
	if err != nil {
		return nil, err
	}
	ptr := reflect.New(rt)
	if err := borsh.Deserialize(ptr.Interface(), data[model.AccountDiscriminatorSize:]); err != nil {
		return nil, fmt.Errorf("decode %s: %w", st.Name, err)
	}
	rec := &Record{Type: st.Name, Fields: make([]Value, len(st.Fields))}
	v := ptr.Elem()
	for i, f := range st.Fields {
		val, err := fieldValue(f, v.Field(i))
		if err != nil {
			return nil, err
		}
		rec.Fields[i] = Value{Name: f.Name, Type: f.Type, Value: val}
	}
	return rec, nil
}

// Encode produces account data for st from values keyed by DSL field name,
// padded to the allocated space. Missing fields encode as zero values; integers
// outside a field's range and over-long strings are rejected.
func Encode(st *model.StateType, values map[string]any) ([]byte, error) {
	rt, err := structType(st)
	if err != nil {
		return nil, err
	}
	v := reflect.New(rt).Elem()
	for i, f := range st.Fields {
		x, ok := values[f.Name]
		if !ok {
			continue
		}
		if err := setField(f, v.Field(i), x); err != nil {
			return nil, err
		}
	}
	body, err := borsh.Serialize(v.Interface())
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", st.Name, err)
	}
	disc := idl.AccountDiscriminator(st.Name)
	out := make([]byte, 0, st.Space())
	out = append(out, disc[:]...)
	out = append(out, body...)
	for len(out) < st.Space() {
		out = append(out, 0)
	}
	return out, nil
}

func structType(st *model.StateType) (reflect.Type, error) {
	fields := make([]reflect.StructField, len(st.Fields))
	for i, f := range st.Fields {
		t, err := goType(f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s.%s: %w", st.Name, translate.SnakeCase(f.Name), err)
		}
		fields[i] = reflect.StructField{Name: "F" + strconv.Itoa(i), Type: t}
	}
	return reflect.StructOf(fields), nil
}

func goType(t types.Type) (reflect.Type, error) {
	switch t.Value {
	case types.ValueBool:
		return reflect.TypeOf(false), nil
	case types.ValueString:
		return reflect.TypeOf(""), nil
	case types.ValuePubkey:
		return reflect.TypeOf([32]byte{}), nil
	case types.ValueInt:
		switch t.Bits {
		case 8:
			if t.Signed {
				return reflect.TypeOf(int8(0)), nil
			}
			return reflect.TypeOf(uint8(0)), nil
		case 16:
			if t.Signed {
				return reflect.TypeOf(int16(0)), nil
			}
			return reflect.TypeOf(uint16(0)), nil
		case 32:
			if t.Signed {
				return reflect.TypeOf(int32(0)), nil
			}
			return reflect.TypeOf(uint32(0)), nil
		case 64:
			if t.Signed {
				return reflect.TypeOf(int64(0)), nil
			}
			return reflect.TypeOf(uint64(0)), nil
		case 128:
			return reflect.TypeOf([16]byte{}), nil
		}
	}
	return nil, fmt.Errorf("type %s has no account layout", t.Name)
}

var (
	two128 = new(big.Int).Lsh(big.NewInt(1), 128)
	two127 = new(big.Int).Lsh(big.NewInt(1), 127)
)

func fieldValue(f model.Field, v reflect.Value) (any, error) {
	switch f.Type.Value {
	case types.ValueBool:
		return v.Bool(), nil
	case types.ValueString:
		s := v.String()
		if f.Type.MaxLen > 0 && len(s) > f.Type.MaxLen {
			return nil, fmt.Errorf("field %s holds %d bytes, more than its %d-byte reservation", f.Name, len(s), f.Type.MaxLen)
		}
		return s, nil
	case types.ValuePubkey:
		return v.Interface().([32]byte), nil
	}
	if f.Type.Bits == 128 {
		le := v.Interface().([16]byte)
		be := make([]byte, len(le))
		for i, b := range le {
			be[len(le)-1-i] = b
		}
		n := new(big.Int).SetBytes(be)
		if f.Type.Signed && n.Cmp(two127) >= 0 {
			n.Sub(n, two128)
		}
		return n, nil
	}
	if f.Type.Signed {
		return v.Int(), nil
	}
	return v.Uint(), nil
}

func setField(f model.Field, v reflect.Value, x any) error {
	mismatch := func() error {
		return fmt.Errorf("field %s: cannot store %T in %s", f.Name, x, f.Type.Name)
	}
	switch f.Type.Value {
	case types.ValueBool:
		b, ok := x.(bool)
		if !ok {
			return mismatch()
		}
		v.SetBool(b)
	case types.ValueString:
		s, ok := x.(string)
		if !ok {
			return mismatch()
		}
		if f.Type.MaxLen > 0 && len(s) > f.Type.MaxLen {
			return fmt.Errorf("field %s: %d bytes exceed the %d-byte reservation", f.Name, len(s), f.Type.MaxLen)
		}
		v.SetString(s)
	case types.ValuePubkey:
		k, ok := x.([32]byte)
		if !ok {
			return mismatch()
		}
		v.Set(reflect.ValueOf(k))
	case types.ValueInt:
		var n *big.Int
		switch y := x.(type) {
		case int:
			n = big.NewInt(int64(y))
		case int64:
			n = big.NewInt(y)
		case uint64:
			n = new(big.Int).SetUint64(y)
		case *big.Int:
			n = new(big.Int).Set(y)
		default:
			return mismatch()
		}
		if !f.Type.Fits(n) {
			return fmt.Errorf("field %s: %s does not fit %s", f.Name, n, f.Type.Name)
		}
		switch {
		case f.Type.Bits == 128:
			if n.Sign() < 0 {
				n.Add(n, two128)
			}
			var le [16]byte
			be := n.FillBytes(make([]byte, 16))
			for i, b := range be {
				le[15-i] = b
			}
			v.Set(reflect.ValueOf(le))
		case f.Type.Signed:
			v.SetInt(n.Int64())
		default:
			v.SetUint(n.Uint64())
		}
	}
	return nil
}
