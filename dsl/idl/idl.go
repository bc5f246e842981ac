// Package idl emits the Anchor interface description of a resolved program:
// instructions with their accounts and arguments, account discriminators and
// state type layouts, in the JSON shape client generators consume.
package idl

import (
	"crypto/sha256"
	"encoding/json"
	"errors"

	"github.com/blocto/solana-go-sdk/common"

	"github.com/tos-network/anchorgen/dsl/resolve"
	"github.com/tos-network/anchorgen/dsl/translate"
	"github.com/tos-network/anchorgen/dsl/types"
)

// SpecVersion is the IDL layout version written into metadata.
const SpecVersion = "0.1.0"

// DiscriminatorSize is the length of instruction and account discriminators.
const DiscriminatorSize = 8

type IDL struct {
	Address      string        `json:"address"`
	Metadata     Metadata      `json:"metadata"`
	Instructions []Instruction `json:"instructions"`
	Accounts     []AccountDef  `json:"accounts,omitempty"`
	Types        []TypeDef     `json:"types,omitempty"`
}

type Metadata struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Spec    string `json:"spec"`
}

type Instruction struct {
	Name          string    `json:"name"`
	Discriminator []int     `json:"discriminator"`
	Accounts      []Account `json:"accounts"`
	Args          []Field   `json:"args"`
}

type Account struct {
	Name     string `json:"name"`
	Writable bool   `json:"writable,omitempty"`
	Signer   bool   `json:"signer,omitempty"`
	Address  string `json:"address,omitempty"`
	PDA      *PDA   `json:"pda,omitempty"`
}

// PDA describes how a client re-derives an account address. Program is set
// only when the address belongs to a program other than this one.
type PDA struct {
	Seeds   []Seed `json:"seeds"`
	Program *Seed  `json:"program,omitempty"`
}

type Seed struct {
	Kind    string `json:"kind"`
	Value   []int  `json:"value,omitempty"`
	Path    string `json:"path,omitempty"`
	Account string `json:"account,omitempty"`
}

type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type AccountDef struct {
	Name          string `json:"name"`
	Discriminator []int  `json:"discriminator"`
}

type TypeDef struct {
	Name string   `json:"name"`
	Type TypeBody `json:"type"`
}

type TypeBody struct {
	Kind   string  `json:"kind"`
	Fields []Field `json:"fields"`
}

// InstructionDiscriminator is the 8-byte selector Anchor prefixes to
// instruction data.
func InstructionDiscriminator(name string) [DiscriminatorSize]byte {
	return discriminator("global:" + translate.SnakeCase(name))
}

// AccountDiscriminator is the 8-byte prefix Anchor writes into every account
// of the named state type.
func AccountDiscriminator(name string) [DiscriminatorSize]byte {
	return discriminator("account:" + name)
}

func discriminator(preimage string) [DiscriminatorSize]byte {
	sum := sha256.Sum256([]byte(preimage))
	var d [DiscriminatorSize]byte
	copy(d[:], sum[:DiscriminatorSize])
	return d
}

var programAddresses = map[string]common.PublicKey{
	"system_program":           common.SystemProgramID,
	"token_program":            common.TokenProgramID,
	"associated_token_program": common.SPLAssociatedTokenAccountProgramID,
}

// Build describes p. The result depends only on p.
func Build(p *resolve.Program) (*IDL, error) {
	if p == nil || p.Unit == nil {
		return nil, errors.New("idl: invalid resolved program")
	}
	unit := p.Unit
	programID := common.PublicKeyFromString(unit.ProgramID)
	out := &IDL{
		Address: unit.ProgramID,
		Metadata: Metadata{
			Name:    translate.SnakeCase(unit.Name),
			Version: "0.1.0",
			Spec:    SpecVersion,
		},
		Instructions: make([]Instruction, 0, len(p.Instructions)),
	}
	for _, ix := range p.Instructions {
		out.Instructions = append(out.Instructions, instruction(ix, programID))
	}
	for _, st := range unit.States {
		d := AccountDiscriminator(st.Name)
		out.Accounts = append(out.Accounts, AccountDef{Name: st.Name, Discriminator: ints(d[:])})
		body := TypeBody{Kind: "struct", Fields: make([]Field, 0, len(st.Fields))}
		for _, f := range st.Fields {
			body.Fields = append(body.Fields, Field{Name: translate.SnakeCase(f.Name), Type: f.Type.IDL()})
		}
		out.Types = append(out.Types, TypeDef{Name: st.Name, Type: body})
	}
	return out, nil
}

// Marshal builds the IDL of p and encodes it as indented JSON.
func Marshal(p *resolve.Program) ([]byte, error) {
	doc, err := Build(p)
	if err != nil {
		return nil, err
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func instruction(ix *resolve.Instruction, programID common.PublicKey) Instruction {
	d := InstructionDiscriminator(ix.Source.Name)
	out := Instruction{
		Name:          translate.SnakeCase(ix.Source.Name),
		Discriminator: ints(d[:]),
		Accounts:      make([]Account, 0, len(ix.Accounts)+len(ix.Programs)),
		Args:          []Field{},
	}
	for _, a := range ix.Accounts {
		out.Accounts = append(out.Accounts, account(a, programID))
	}
	for _, pa := range ix.Programs {
		acc := Account{Name: pa.Name}
		if addr, ok := programAddresses[pa.Name]; ok {
			acc.Address = addr.ToBase58()
		}
		out.Accounts = append(out.Accounts, acc)
	}
	for _, arg := range ix.Source.Args() {
		out.Args = append(out.Args, Field{Name: translate.SnakeCase(arg.Name), Type: arg.Type.IDL()})
	}
	return out
}

func account(a *resolve.AccountRef, programID common.PublicKey) Account {
	acc := Account{
		Name:     translate.SnakeCase(a.Name),
		Writable: a.MutatesState || a.Initializes,
		Signer:   a.Role() == types.RoleSigner,
	}
	if a.Role() == types.RoleTokenProgram {
		acc.Address = common.TokenProgramID.ToBase58()
	}
	switch {
	case a.IsPDA():
		acc.PDA = &PDA{Seeds: make([]Seed, 0, len(a.Seeds))}
		for _, s := range a.Seeds {
			acc.PDA.Seeds = append(acc.PDA.Seeds, seed(s))
		}
		if addr, ok := constantAddress(a.Seeds, programID); ok {
			acc.Address = addr
		}
	case a.Associated:
		acc.PDA = &PDA{
			Seeds: []Seed{
				{Kind: "account", Path: translate.SnakeCase(a.Authority)},
				{Kind: "const", Value: ints(common.TokenProgramID.Bytes())},
				{Kind: "account", Path: translate.SnakeCase(a.Mint)},
			},
			Program: &Seed{Kind: "const", Value: ints(common.SPLAssociatedTokenAccountProgramID.Bytes())},
		}
	}
	return acc
}

func seed(s resolve.Seed) Seed {
	switch s.Kind {
	case resolve.SeedLiteral:
		return Seed{Kind: "const", Value: ints([]byte(s.Literal))}
	case resolve.SeedAccountKey:
		return Seed{Kind: "account", Path: translate.SnakeCase(s.Account)}
	case resolve.SeedStateField:
		return Seed{Kind: "account", Path: translate.SnakeCase(s.Account) + "." + translate.SnakeCase(s.Field)}
	default:
		return Seed{Kind: "arg", Path: translate.SnakeCase(s.Arg)}
	}
}

// constantAddress derives the address of a PDA whose seeds are all literals.
func constantAddress(seeds []resolve.Seed, programID common.PublicKey) (string, bool) {
	raw := make([][]byte, 0, len(seeds))
	for _, s := range seeds {
		if s.Kind != resolve.SeedLiteral {
			return "", false
		}
		raw = append(raw, []byte(s.Literal))
	}
	addr, _, err := common.FindProgramAddress(raw, programID)
	if err != nil {
		return "", false
	}
	return addr.ToBase58(), true
}

func ints(b []byte) []int {
	out := make([]int, len(b))
	for i, v := range b {
		out[i] = int(v)
	}
	return out
}
