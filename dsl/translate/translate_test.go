package translate

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tos-network/anchorgen/dsl/diag"
	"github.com/tos-network/anchorgen/dsl/model"
	"github.com/tos-network/anchorgen/dsl/parser"
	"github.com/tos-network/anchorgen/dsl/resolve"
)

const header = "export default class P {\n  static PROGRAM_ID = new Pubkey(\"11111111111111111111111111111111\")\n"

const state = "\nexport interface S extends Account { owner: Pubkey\n bump: u8\n count: u64\n name: string\n seed: u64 }\n"

func translateSource(t *testing.T, src string) (*Program, error) {
	t.Helper()
	file, diags := parser.ParseFile("test.ts", []byte(src))
	require.False(t, diags.HasErrors(), "%v", diags)
	unit, err := model.Extract("test.ts", file, model.Options{})
	require.NoError(t, err)
	prog, err := resolve.Resolve(unit)
	require.NoError(t, err)
	return Translate(prog)
}

func translateFixture(t *testing.T, name string) *Program {
	t.Helper()
	src, err := os.ReadFile("../../testdata/" + name)
	require.NoError(t, err)
	prog, err := translateSource(t, string(src))
	require.NoError(t, err)
	return prog
}

func TestTranslateVault(t *testing.T) {
	prog := translateFixture(t, "vault.ts")
	assert.Equal(t, "vault_program", prog.Module)
	require.Len(t, prog.Handlers, 3)

	initialize := prog.Handlers[0]
	assert.Equal(t, "initialize", initialize.Name)
	assert.Equal(t, "InitializeContext", initialize.Context)
	assert.Empty(t, initialize.Args)
	assert.Equal(t, []Stmt{
		{Kind: StmtFieldWrite, Target: "ctx.accounts.state.owner", Expr: "ctx.accounts.owner.key()"},
		{Kind: StmtFieldWrite, Target: "ctx.accounts.state.state_bump", Expr: "ctx.bumps.state"},
		{Kind: StmtFieldWrite, Target: "ctx.accounts.state.auth_bump", Expr: "ctx.bumps.auth"},
		{Kind: StmtFieldWrite, Target: "ctx.accounts.state.vault_bump", Expr: "ctx.bumps.vault"},
	}, initialize.Body)

	deposit := prog.Handlers[1]
	assert.Equal(t, []Arg{{Name: "amount", Type: "u64"}}, deposit.Args)
	require.Len(t, deposit.Body, 1)
	cpi := deposit.Body[0].CPI
	require.NotNil(t, cpi)
	assert.Equal(t, "Transfer", cpi.Struct)
	assert.Equal(t, "transfer", cpi.Func)
	assert.Equal(t, "ctx.accounts.system_program.to_account_info()", cpi.Program)
	assert.Equal(t, []AccountInit{
		{Name: "from", Expr: "ctx.accounts.owner.to_account_info()"},
		{Name: "to", Expr: "ctx.accounts.vault.to_account_info()"},
	}, cpi.Accounts)
	assert.Equal(t, "amount", cpi.Amount)
	assert.False(t, cpi.Signed())
	assert.Equal(t, "transfer_accounts", cpi.AccountsVar)
	assert.Equal(t, "cpi_ctx", cpi.ContextVar)
	assert.Empty(t, cpi.SeedsVar)

	withdraw := prog.Handlers[2].Body[0].CPI
	require.True(t, withdraw.Signed())
	assert.Equal(t, "signer_seeds", withdraw.SeedsVar)
	assert.Empty(t, withdraw.Bindings)
	assert.Equal(t, []string{
		`b"vault"`,
		"ctx.accounts.state.to_account_info().key.as_ref()",
		"&[ctx.accounts.state.auth_bump]",
	}, withdraw.SignerSeeds)
}

func TestTranslateEscrowSignerSeedBindings(t *testing.T) {
	prog := translateFixture(t, "escrow.ts")
	refund := prog.Handlers[1]
	require.Len(t, refund.Body, 1)
	cpi := refund.Body[0].CPI
	assert.Equal(t, "token::Transfer", cpi.Struct)
	assert.Equal(t, "token::transfer", cpi.Func)
	assert.Equal(t, "ctx.accounts.token_program.to_account_info()", cpi.Program)
	assert.Equal(t, "authority", cpi.Accounts[2].Name)
	assert.Equal(t, "ctx.accounts.escrow.to_account_info()", cpi.Accounts[2].Expr)
	assert.Equal(t, []Stmt{
		{Kind: StmtLet, Target: "escrow_seed_bytes", Expr: "ctx.accounts.escrow.seed.to_le_bytes()"},
	}, cpi.Bindings)
	assert.Equal(t, []string{
		`b"escrow"`,
		"ctx.accounts.maker.to_account_info().key.as_ref()",
		"escrow_seed_bytes.as_ref()",
		"&[ctx.accounts.escrow.auth_bump]",
	}, cpi.SignerSeeds)

	mk := prog.Handlers[0]
	assert.Equal(t, "make", mk.Name)
	assert.Equal(t, []Arg{{"deposit_amount", "u64"}, {"offer_amount", "u64"}, {"seed", "u64"}}, mk.Args)
	assert.Equal(t, "ctx.accounts.escrow.auth_bump", mk.Body[0].Target)
	assert.Equal(t, "ctx.bumps.escrow", mk.Body[0].Expr)
	assert.Equal(t, "ctx.accounts.maker_mint.key()", mk.Body[2].Expr)
}

func TestTranslateLocalsAndArithmetic(t *testing.T) {
	prog, err := translateSource(t, header+`  run(owner: Signer, s: S, amount: u64, label: string, type: u8) {
    s.deriveWithBump(["s", owner.key], s.bump)
    const half = (amount + 0X10) / 2
    let total: u64 = s.count + half * 3
    s.count = total
    const copy = s.name
    s.name = copy
    s.name = label
    s.name = "it's \"x\""
    s.bump = type
  }
}`+state)
	require.NoError(t, err)
	h := prog.Handlers[0]
	assert.Equal(t, []Arg{{"amount", "u64"}, {"label", "String"}, {"r#type", "u8"}}, h.Args)
	assert.Equal(t, []Stmt{
		{Kind: StmtLet, Target: "half", Expr: "(amount + 0x10) / 2"},
		{Kind: StmtLet, Target: "total", Mutable: true, Type: "u64", Expr: "ctx.accounts.s.count + half * 3"},
		{Kind: StmtFieldWrite, Target: "ctx.accounts.s.count", Expr: "total"},
		{Kind: StmtLet, Target: "copy", Expr: "ctx.accounts.s.name.clone()"},
		{Kind: StmtFieldWrite, Target: "ctx.accounts.s.name", Expr: "copy.clone()"},
		{Kind: StmtFieldWrite, Target: "ctx.accounts.s.name", Expr: "label.clone()"},
		{Kind: StmtFieldWrite, Target: "ctx.accounts.s.name", Expr: `String::from("it's \"x\"")`},
		{Kind: StmtFieldWrite, Target: "ctx.accounts.s.bump", Expr: "r#type"},
	}, h.Body)
}

func TestTranslateArgumentSeedBinding(t *testing.T) {
	prog, err := translateSource(t, header+`  run(owner: Signer, s: S, vault: SystemAccount, seed: u64, seedBytes: u8) {
    vault.derive(["v", seed.toBytes()])
    SystemProgram.transfer(vault, owner, 5, ["v", seed.toBytes(), vault.getBump()])
    SystemProgram.transfer(vault, owner, 6, ["v", seed.toBytes(), vault.getBump()])
  }
}`+state)
	require.NoError(t, err)
	h := prog.Handlers[0]
	first, second := h.Body[0].CPI, h.Body[1].CPI
	assert.Equal(t, "seed_bytes2", first.Bindings[0].Target, "seed_bytes is a parameter")
	assert.Equal(t, "seed.to_le_bytes()", first.Bindings[0].Expr)
	assert.Equal(t, "seed_bytes3", second.Bindings[0].Target)
	assert.Equal(t, []string{`b"v"`, "seed_bytes3.as_ref()", "&[ctx.bumps.vault]"}, second.SignerSeeds)
	assert.Equal(t, "6", second.Amount)
}

func TestTranslateNameClashes(t *testing.T) {
	_, err := translateSource(t, header+"  run(fooBar: u8, foo_bar: u8) {}\n}")
	require.True(t, diag.IsKind(err, diag.KindDuplicateDeclaration), "%v", err)

	_, err = translateSource(t, header+"  run(ctx: u8) {}\n}")
	require.True(t, diag.IsKind(err, diag.KindUnsupportedConstruct), "%v", err)
}

func TestNames(t *testing.T) {
	cases := map[string]string{
		"stateBump":     "state_bump",
		"makerATA":      "maker_ata",
		"ATAProgram":    "ata_program",
		"VaultProgram":  "vault_program",
		"seed2Value":    "seed2_value",
		"already_snake": "already_snake",
		"x":             "x",
	}
	for in, want := range cases {
		assert.Equal(t, want, SnakeCase(in), in)
	}
	assert.Equal(t, "MakeOffer", PascalCase("makeOffer"))
	assert.Equal(t, "MakeOffer", PascalCase("make_offer"))
	assert.Equal(t, "InitializeContext", ContextName("initialize"))
	assert.Equal(t, "r#type", Ident("type"))
	assert.Equal(t, "r#move", Ident("move"))
	assert.Equal(t, "owner", Ident("owner"))
}

func TestLiterals(t *testing.T) {
	assert.Equal(t, `b"a\"b\\c\x00\xc3\xa9"`, ByteString("a\"b\\c\x00é"))
	assert.Equal(t, `"tab\there\u{1}é"`, StringLiteral("tab\there\x01é"))
	assert.Equal(t, "0xff_ff", IntLiteral("0xFF_FF"))
}
