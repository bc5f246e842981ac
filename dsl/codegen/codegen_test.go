package codegen

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tos-network/anchorgen/dsl/model"
	"github.com/tos-network/anchorgen/dsl/parser"
	"github.com/tos-network/anchorgen/dsl/resolve"
	"github.com/tos-network/anchorgen/dsl/translate"
	"github.com/tos-network/anchorgen/dsl/types"
)

func generateFixture(t *testing.T, name string) string {
	t.Helper()
	src, err := os.ReadFile("../../testdata/" + name)
	require.NoError(t, err)
	file, diags := parser.ParseFile(name, src)
	require.False(t, diags.HasErrors(), "%v", diags)
	unit, err := model.Extract(name, file, model.Options{})
	require.NoError(t, err)
	res, err := resolve.Resolve(unit)
	require.NoError(t, err)
	prog, err := translate.Translate(res)
	require.NoError(t, err)
	out, err := Generate(prog)
	require.NoError(t, err)
	return out
}

func TestGenerateVaultGolden(t *testing.T) {
	want, err := os.ReadFile("../../testdata/vault.rs")
	require.NoError(t, err)
	got := generateFixture(t, "vault.ts")
	assert.Equal(t, string(want), got)
	assert.Equal(t, got, generateFixture(t, "vault.ts"), "output must be deterministic")
}

func TestGenerateVaultRoundTrip(t *testing.T) {
	out := generateFixture(t, "vault.ts")
	contexts := strings.Split(out, "#[derive(Accounts)]")
	require.Len(t, contexts, 4)

	initialize := contexts[1]
	assert.Contains(t, initialize, "        init,\n        payer = owner,\n        space = 43,")
	assert.Equal(t, 1, strings.Count(initialize, "init,"))
	assert.Equal(t, 3, strings.Count(initialize, "seeds = ["))
	for _, ctx := range contexts[2:] {
		assert.NotContains(t, ctx, "init,")
		assert.Equal(t, 3, strings.Count(ctx, "seeds = ["))
		assert.Equal(t, 3, strings.Count(ctx, "bump = state."))
	}

	stateAt := strings.Index(out, "pub struct Vault")
	contextAt := strings.Index(out, "pub struct InitializeContext")
	moduleAt := strings.Index(out, "pub mod vault_program")
	assert.True(t, stateAt < contextAt && contextAt < moduleAt, "state structs, contexts, then the module")
}

func TestGenerateEscrow(t *testing.T) {
	out := generateFixture(t, "escrow.ts")
	assert.Contains(t, out, "use anchor_spl::associated_token::AssociatedToken;\nuse anchor_spl::token::{self, Mint, Token, TokenAccount};\n")
	assert.NotContains(t, out, "system_program::{transfer")
	assert.Contains(t, out, "#[derive(Accounts)]\n#[instruction(deposit_amount: u64, offer_amount: u64, seed: u64)]\npub struct MakeContext<'info> {")
	assert.Contains(t, out, "    #[account(mut, associated_token::mint = maker_mint, associated_token::authority = maker)]\n    pub maker_ata: Account<'info, TokenAccount>,")
	assert.Contains(t, out, `        seeds = [b"escrow", maker.key().as_ref(), seed.to_le_bytes().as_ref()],`)
	assert.Contains(t, out, "        space = 121,")
	assert.Contains(t, out, `    #[account(
        init,
        payer = maker,
        seeds = [b"vault", escrow.key().as_ref()],
        bump,
        token::mint = maker_mint,
        token::authority = escrow,
    )]
    pub vault: Account<'info, TokenAccount>,`)
	assert.Contains(t, out, `    #[account(
        mut,
        seeds = [b"escrow", maker.key().as_ref(), escrow.seed.to_le_bytes().as_ref()],
        bump = escrow.auth_bump,
        close = maker,
    )]
    pub escrow: Account<'info, EscrowState>,`)
	assert.Contains(t, out, "    pub token_program: Program<'info, Token>,\n    pub associated_token_program: Program<'info, AssociatedToken>,\n}")
	assert.Contains(t, out, `        let escrow_seed_bytes = ctx.accounts.escrow.seed.to_le_bytes();
        let signer_seeds: &[&[&[u8]]; 1] = &[&[
            b"escrow",
            ctx.accounts.maker.to_account_info().key.as_ref(),
            escrow_seed_bytes.as_ref(),
            &[ctx.accounts.escrow.auth_bump],
        ]];
        let cpi_ctx = CpiContext::new_with_signer(
            ctx.accounts.token_program.to_account_info(),
            transfer_accounts,
            signer_seeds,
        );
        token::transfer(cpi_ctx, amount)?;`)
	assert.Contains(t, out, "        let transfer_accounts = token::Transfer {\n            from: ctx.accounts.maker_ata.to_account_info(),")
}

func TestConstraintOrder(t *testing.T) {
	a := &resolve.AccountRef{
		Name:         "pool",
		Type:         types.Type{Name: "TokenAccount", Role: types.RoleTokenAccount},
		Derivation:   resolve.DerivationDeriveWithBump,
		Seeds:        []resolve.Seed{{Kind: resolve.SeedLiteral, Literal: "pool"}},
		BumpField:    &resolve.FieldRef{Account: "config", Field: "poolBump"},
		MutatesState: true,
		Mint:         "mint",
		Authority:    "config",
		CloseTo:      "admin",
	}
	assert.Equal(t, []string{
		"mut",
		`seeds = [b"pool"]`,
		"bump = config.pool_bump",
		"token::mint = mint",
		"token::authority = config",
		"close = admin",
	}, Constraints(a))

	signer := &resolve.AccountRef{Name: "payer", Type: types.Type{Name: "Signer", Role: types.RoleSigner}}
	assert.Empty(t, Constraints(signer))
}

func TestConstraintSeed(t *testing.T) {
	u64 := types.Type{Name: "u64", Value: types.ValueInt, Bits: 64}
	cases := []struct {
		seed resolve.Seed
		want string
	}{
		{resolve.Seed{Kind: resolve.SeedLiteral, Literal: "a\"b"}, `b"a\"b"`},
		{resolve.Seed{Kind: resolve.SeedAccountKey, Account: "makerAta"}, "maker_ata.key().as_ref()"},
		{resolve.Seed{Kind: resolve.SeedStateField, Account: "cfg", Field: "admin", Type: types.Type{Value: types.ValuePubkey}}, "cfg.admin.as_ref()"},
		{resolve.Seed{Kind: resolve.SeedStateField, Account: "cfg", Field: "label", Type: types.Type{Value: types.ValueString}}, "cfg.label.as_bytes()"},
		{resolve.Seed{Kind: resolve.SeedArgument, Arg: "poolId", Type: u64}, "pool_id.to_le_bytes().as_ref()"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ConstraintSeed(tc.seed))
	}
}

func TestGenerateRejectsNil(t *testing.T) {
	_, err := Generate(nil)
	require.Error(t, err)
}
