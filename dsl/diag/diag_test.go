package diag

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiagnosticErrorFormat(t *testing.T) {
	d := New(KindMissingBumpField, Span{File: "vault.ts", Start: Position{Line: 4, Column: 9}}, "state type %q has no field %q", "Vault", "authBump").
		In("withdraw", "auth").
		WithField("authBump")
	assert.Equal(t, CodeMissingBumpField, d.Code)
	assert.Equal(t,
		`vault.ts:4:9: [ANC3001 MissingBumpField] state type "Vault" has no field "authBump" (instruction withdraw, account auth, field authBump)`,
		d.Error())

	bare := New(KindMissingProgramDeclaration, Span{}, "no default exported program class")
	assert.Equal(t, "[ANC2001 MissingProgramDeclaration] no default exported program class", bare.Error())
}

func TestIsKindThroughWrapping(t *testing.T) {
	d := New(KindUnknownType, Span{}, "unknown type %q", "f64")
	wrapped := errors.Wrap(d, "compile vault.ts")
	require.True(t, IsKind(wrapped, KindUnknownType))
	require.False(t, IsKind(wrapped, KindSyntaxError))

	list := Diagnostics{d, New(KindSyntaxError, Span{}, "x")}
	require.True(t, IsKind(list, KindUnknownType))
	assert.Contains(t, list.Error(), "(and 1 more error(s))")

	_, ok := First(errors.New("plain"))
	require.False(t, ok)
}

func TestEveryKindHasCode(t *testing.T) {
	for k := range kindCodes {
		assert.NotEqual(t, "ANC0000", CodeFor(k), string(k))
	}
	assert.Equal(t, "ANC0000", CodeFor(Kind("Nope")))
}
