package main

import (
	"bytes"
	"encoding/base64"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mr-tron/base58"
	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tos-network/anchorgen"
	"github.com/tos-network/anchorgen/dsl/diag"
	"github.com/tos-network/anchorgen/dsl/layout"
)

const brokenSource = `export default class Broken {
  static PROGRAM_ID = new Pubkey("11111111111111111111111111111111")
  run(owner: Signer, s: S) {
    s.deriveWithBump(["s", owner.key], s.bump)
  }
}
export interface S extends Account { owner: Pubkey }
`

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := newApp()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	err := app.Run(append([]string{"anchorgen", "--no-color"}, args...))
	return stdout.String(), stderr.String(), err
}

func TestCompileCommand(t *testing.T) {
	want, err := os.ReadFile("../../testdata/vault.rs")
	require.NoError(t, err)

	stdout, _, err := run(t, "compile", "../../testdata/vault.ts")
	require.NoError(t, err)
	assert.Equal(t, string(want), stdout)

	dir := t.TempDir()
	out := filepath.Join(dir, "vault.rs")
	idlPath := filepath.Join(dir, "vault.json")
	stdout, _, err = run(t, "compile", "-o", out, "--idl", idlPath, "../../testdata/vault.ts")
	require.NoError(t, err)
	assert.Empty(t, stdout)
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
	idl, err := os.ReadFile(idlPath)
	require.NoError(t, err)
	assert.Contains(t, string(idl), `"name": "vault_program"`)
}

func TestCompileCommandDiagnostics(t *testing.T) {
	input := filepath.Join(t.TempDir(), "broken.ts")
	require.NoError(t, os.WriteFile(input, []byte(brokenSource), 0o644))

	stdout, stderr, err := run(t, "compile", input)
	require.ErrorIs(t, err, errCompileFailed)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "error[ANC3001] MissingBumpField: state type 'S' has no bump field 'bump'\n")
	assert.Contains(t, stderr, "  --> "+input+":4:")
	assert.Contains(t, stderr, "  = instruction run, account s, field bump\n")

	_, _, err = run(t, "compile")
	require.ErrorContains(t, err, "exactly one input file")
}

const notesSource = `export default class Notes {
  static PROGRAM_ID = new Pubkey("11111111111111111111111111111111")
  write(author: Signer, note: Note, text: string) {
    note.derive(["note", author.key]).init()
    note.text = text
  }
}
export interface Note extends Account { text: string }
`

func TestCompileCommandStringMaxLen(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "notes.ts")
	require.NoError(t, os.WriteFile(input, []byte(notesSource), 0o644))
	cfgPath := filepath.Join(dir, "anchorgen.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("compiler:\n  string_max_len: 64\n"), 0o644))

	stdout, _, err := run(t, "compile", input)
	require.NoError(t, err)
	assert.Contains(t, stdout, "space = 44,")

	stdout, _, err = run(t, "--config", cfgPath, "compile", input)
	require.NoError(t, err)
	assert.Contains(t, stdout, "space = 76,")

	stdout, _, err = run(t, "--config", cfgPath, "compile", "--string-max-len", "200", input)
	require.NoError(t, err)
	assert.Contains(t, stdout, "space = 212,")

	_, _, err = run(t, "--config", filepath.Join(dir, "missing.yaml"), "compile", input)
	require.ErrorContains(t, err, "read config")
}

func TestIDLCommand(t *testing.T) {
	stdout, _, err := run(t, "idl", "../../testdata/escrow.ts")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "{\n"))
	assert.Contains(t, stdout, `"address": "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"`)
}

func TestInspectCommand(t *testing.T) {
	src, err := os.ReadFile("../../testdata/vault.ts")
	require.NoError(t, err)
	unit, err := anchorgen.ExtractProgram(src, "vault.ts", anchorgen.Options{})
	require.NoError(t, err)
	st, ok := unit.State("Vault")
	require.True(t, ok)

	var owner [32]byte
	owner[0] = 7
	data, err := layout.Encode(st, map[string]any{"owner": owner, "stateBump": 255, "authBump": 254, "vaultBump": 253})
	require.NoError(t, err)

	dir := t.TempDir()
	raw := filepath.Join(dir, "vault.bin")
	require.NoError(t, os.WriteFile(raw, data, 0o644))
	b64 := filepath.Join(dir, "vault.b64")
	require.NoError(t, os.WriteFile(b64, []byte(base64.StdEncoding.EncodeToString(data)+"\n"), 0o644))

	stdout, _, err := run(t, "inspect", "../../testdata/vault.ts", raw)
	require.NoError(t, err)
	assert.Equal(t, "Vault (43 bytes)\n"+
		"  owner: Pubkey = "+base58.Encode(owner[:])+"\n"+
		"  stateBump: u8 = 255\n"+
		"  authBump: u8 = 254\n"+
		"  vaultBump: u8 = 253\n", stdout)

	again, _, err := run(t, "inspect", "--encoding", "base64", "--type", "Vault", "../../testdata/vault.ts", b64)
	require.NoError(t, err)
	assert.Equal(t, stdout, again)

	_, _, err = run(t, "inspect", "--type", "Missing", "../../testdata/vault.ts", raw)
	require.ErrorContains(t, err, `no state type "Missing"`)
	_, _, err = run(t, "inspect", "--encoding", "hex", "../../testdata/vault.ts", raw)
	require.ErrorContains(t, err, `unknown encoding "hex"`)
}

func TestBuildCommand(t *testing.T) {
	root := t.TempDir()
	programs := filepath.Join(root, "ts-programs", "src")
	require.NoError(t, os.MkdirAll(programs, 0o755))
	src, err := os.ReadFile("../../testdata/vault.ts")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(programs, "vault.ts"), src, 0o644))

	cfgPath := filepath.Join(root, "anchorgen.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("logger:\n  level: error\nworkspace:\n  root: "+root+"\n"), 0o644))

	stdout, _, err := run(t, "--config", cfgPath, "build")
	require.NoError(t, err)
	assert.Contains(t, stdout, "vault.ts -> "+filepath.Join(root, "programs", "vault.rs"))

	stdout, _, err = run(t, "--config", cfgPath, "build")
	require.NoError(t, err)
	assert.Contains(t, stdout, "vault.ts: up to date")

	require.NoError(t, os.WriteFile(filepath.Join(programs, "broken.ts"), []byte(brokenSource), 0o644))
	_, stderr, err := run(t, "--config", cfgPath, "build")
	require.ErrorIs(t, err, errCompileFailed)
	assert.Contains(t, err.Error(), "1 of 2 file(s)")
	assert.Contains(t, stderr, "MissingBumpField")
}

type scriptReader struct {
	lines   []string
	prompts []string
}

func (r *scriptReader) Readline() (string, error) {
	if len(r.lines) == 0 {
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

func (r *scriptReader) SetPrompt(prompt string) { r.prompts = append(r.prompts, prompt) }

func TestREPL(t *testing.T) {
	src, err := os.ReadFile("../../testdata/vault.ts")
	require.NoError(t, err)
	want, err := os.ReadFile("../../testdata/vault.rs")
	require.NoError(t, err)

	lines := []string{""}
	for _, line := range strings.Split(string(src), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	lines = append(lines, "", "export default class Broken { static = }", "")
	r := &scriptReader{lines: lines}

	var out bytes.Buffer
	require.NoError(t, doREPL(r, &out, newPainter(false)))
	assert.True(t, strings.HasPrefix(out.String(), string(want)))
	assert.Contains(t, out.String(), "error[ANC1001] SyntaxError")
	assert.Equal(t, "> ", r.prompts[0])
	assert.Contains(t, r.prompts, ">> ")
}

func TestFormatDiagnostic(t *testing.T) {
	d := diag.New(diag.KindInvalidSeed, diag.Span{File: "p.ts", Start: diag.Position{Line: 3, Column: 9}}, "seed '%s' is not a byte source", "flag").In("run", "s")
	assert.Equal(t, "error[ANC3007] InvalidSeed: seed 'flag' is not a byte source\n  --> p.ts:3:9\n  = instruction run, account s\n",
		newPainter(false).formatDiagnostic(d))

	var out bytes.Buffer
	newPainter(false).report(&out, diag.Diagnostics{d, d.WithField("x")})
	assert.Equal(t, 2, strings.Count(out.String(), "error[ANC3007]"))

	out.Reset()
	newPainter(false).report(&out, pkgerrors.Wrap(diag.Diagnostics{d, d.WithField("x")}, "build"))
	assert.Equal(t, 2, strings.Count(out.String(), "error[ANC3007]"))
	assert.Contains(t, out.String(), "field x")

	out.Reset()
	newPainter(false).report(&out, io.ErrUnexpectedEOF)
	assert.Equal(t, "error: unexpected EOF\n", out.String())
}
