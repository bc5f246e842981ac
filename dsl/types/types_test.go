package types

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isVault(name string) bool { return name == "Vault" }

func TestLookupValues(t *testing.T) {
	cases := []struct {
		name, arg string
		rust      string
		size      int
	}{
		{"u8", "", "u8", 1},
		{"u16", "", "u16", 2},
		{"u32", "", "u32", 4},
		{"u64", "", "u64", 8},
		{"u128", "", "u128", 16},
		{"i8", "", "i8", 1},
		{"i64", "", "i64", 8},
		{"i128", "", "i128", 16},
		{"boolean", "", "bool", 1},
		{"bool", "", "bool", 1},
		{"Pubkey", "", "Pubkey", 32},
		{"string", "", "String", 4 + DefaultStringMaxLen},
		{"Str", "10", "String", 14},
	}
	for _, tc := range cases {
		typ, ok := Lookup(tc.name, tc.arg, isVault, 0)
		require.True(t, ok, tc.name)
		assert.False(t, typ.IsAccount(), tc.name)
		assert.Equal(t, tc.rust, typ.Rust(), tc.name)
		assert.Equal(t, tc.size, typ.Size(), tc.name)
	}

	s, ok := Lookup("string", "", nil, 64)
	require.True(t, ok)
	assert.Equal(t, 68, s.Size())
}

func TestLookupAccounts(t *testing.T) {
	cases := map[string]struct {
		role Role
		rust string
	}{
		"Signer":                 {RoleSigner, "Signer<'info>"},
		"SystemAccount":          {RoleSystemAccount, "SystemAccount<'info>"},
		"UncheckedAccount":       {RoleUnchecked, "UncheckedAccount<'info>"},
		"Mint":                   {RoleMint, "Account<'info, Mint>"},
		"TokenAccount":           {RoleTokenAccount, "Account<'info, TokenAccount>"},
		"AssociatedTokenAccount": {RoleAssociatedToken, "Account<'info, TokenAccount>"},
		"TokenProgram":           {RoleTokenProgram, "Program<'info, Token>"},
		"Vault":                  {RoleState, "Account<'info, Vault>"},
	}
	for name, want := range cases {
		typ, ok := Lookup(name, "", isVault, 0)
		require.True(t, ok, name)
		assert.Equal(t, want.role, typ.Role, name)
		assert.Equal(t, want.rust, typ.Rust(), name)
	}
	assert.Equal(t, "state", RoleState.Category())
	assert.Equal(t, "signer", RoleSigner.Category())
	assert.Equal(t, "auxiliary", RoleMint.Category())
	assert.True(t, RoleAssociatedToken.IsToken())
	assert.False(t, RoleSystemAccount.IsToken())
}

func TestLookupRejectsUnknown(t *testing.T) {
	for _, name := range []string{"f64", "number", "Vec", "Other", "u256"} {
		_, ok := Lookup(name, "", isVault, 0)
		assert.False(t, ok, name)
	}
	_, ok := Lookup("Str", "x", isVault, 0)
	assert.False(t, ok)
	_, ok = Lookup("Vec", "8", isVault, 0)
	assert.False(t, ok)
}

func TestAssignableFrom(t *testing.T) {
	u8, _ := Lookup("u8", "", nil, 0)
	pk, _ := Lookup("Pubkey", "", nil, 0)
	signer, _ := Lookup("Signer", "", nil, 0)
	assert.True(t, u8.AssignableFrom(IntLiteral))
	assert.False(t, u8.AssignableFrom(pk))
	assert.False(t, pk.AssignableFrom(signer))
}

func TestFits(t *testing.T) {
	cases := []struct {
		typ  string
		n    string
		fits bool
	}{
		{"u8", "255", true},
		{"u8", "256", false},
		{"u8", "-1", false},
		{"i8", "127", true},
		{"i8", "128", false},
		{"i8", "-128", true},
		{"i8", "-129", false},
		{"u64", "18446744073709551615", true},
		{"u64", "18446744073709551616", false},
		{"i128", "170141183460469231731687303715884105727", true},
		{"i128", "170141183460469231731687303715884105728", false},
		{"u128", "340282366920938463463374607431768211455", true},
	}
	for _, tc := range cases {
		typ, ok := Lookup(tc.typ, "", nil, 0)
		require.True(t, ok)
		n, ok := new(big.Int).SetString(tc.n, 10)
		require.True(t, ok)
		assert.Equal(t, tc.fits, typ.Fits(n), "%s %s", tc.typ, tc.n)
	}

	b, _ := Lookup("boolean", "", nil, 0)
	assert.False(t, b.Fits(big.NewInt(0)))
}
