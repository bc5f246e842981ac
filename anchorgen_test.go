package anchorgen

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tos-network/anchorgen/dsl/diag"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	src, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return src
}

func TestCompileVault(t *testing.T) {
	want := readFixture(t, "vault.rs")
	got, err := Compile(readFixture(t, "vault.ts"), "vault.ts")
	require.NoError(t, err)
	assert.Equal(t, string(want), got)

	again, err := Compile(readFixture(t, "vault.ts"), "vault.ts")
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestCompileWithOptionsIDL(t *testing.T) {
	out, err := CompileWithOptions(readFixture(t, "escrow.ts"), "escrow.ts", Options{EmitIDL: true})
	require.NoError(t, err)
	assert.Equal(t, "EscrowProgram", out.Program)
	assert.Equal(t, "escrow_program", out.Module)
	assert.Equal(t, "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA", out.ProgramID)
	require.NotNil(t, out.Unit)
	assert.Len(t, out.Unit.Instructions, 3)

	var doc struct {
		Address      string `json:"address"`
		Instructions []struct {
			Name string `json:"name"`
		} `json:"instructions"`
	}
	require.NoError(t, json.Unmarshal(out.IDL, &doc))
	assert.Equal(t, out.ProgramID, doc.Address)
	require.Len(t, doc.Instructions, 3)
	assert.Equal(t, "make", doc.Instructions[0].Name)

	plain, err := CompileWithOptions(readFixture(t, "escrow.ts"), "escrow.ts", Options{})
	require.NoError(t, err)
	assert.Nil(t, plain.IDL)
	assert.Equal(t, out.Rust, plain.Rust)
}

func TestStringMaxLenOption(t *testing.T) {
	src := []byte(`export default class Notes {
  static PROGRAM_ID = new Pubkey("11111111111111111111111111111111")
  write(author: Signer, note: Note, text: string) {
    note.derive(["note", author.key]).init()
    note.text = text
  }
}
export interface Note extends Account { text: string }
`)
	out, err := CompileWithOptions(src, "notes.ts", Options{StringMaxLen: 64})
	require.NoError(t, err)
	assert.Contains(t, out.Rust, "space = 76,")
}

func TestCompileDiagnostics(t *testing.T) {
	cases := []struct {
		name string
		src  string
		kind diag.Kind
	}{
		{"syntax", "export default class P {", diag.KindSyntaxError},
		{"no program", "export interface S extends Account { a: u8 }", diag.KindMissingProgramDeclaration},
		{"unknown type", `export default class P {
  static PROGRAM_ID = new Pubkey("11111111111111111111111111111111")
  run(x: float) {}
}`, diag.KindUnknownType},
		{"missing bump field", `export default class P {
  static PROGRAM_ID = new Pubkey("11111111111111111111111111111111")
  run(owner: Signer, s: S) {
    s.deriveWithBump(["s", owner.key], s.bump)
  }
}
export interface S extends Account { owner: Pubkey }`, diag.KindMissingBumpField},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compile([]byte(tc.src), "p.ts")
			require.Error(t, err)
			d, ok := diag.First(err)
			require.True(t, ok, "%v", err)
			assert.Equal(t, tc.kind, d.Kind)
			var single diag.Diagnostic
			assert.ErrorAs(t, err, &single, "compile errors are single diagnostics")
		})
	}
}

func TestParseModule(t *testing.T) {
	file, err := ParseModule(readFixture(t, "vault.ts"), "vault.ts")
	require.NoError(t, err)
	require.Len(t, file.Classes, 1)
	assert.Equal(t, "VaultProgram", file.Classes[0].Name)

	_, err = ParseModule([]byte("export default class {"), "bad.ts")
	var ds diag.Diagnostics
	require.ErrorAs(t, err, &ds)
	assert.NotEmpty(t, ds)
}
