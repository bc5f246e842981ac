// Package anchorgen compiles Poseidon-style TypeScript program descriptions
// into Rust source for the Anchor framework.
//
// Compilation is a pure function of the source text: parse, extract the
// program model, resolve accounts and PDA derivations, translate handler
// bodies, then emit. The first diagnostic aborts the file.
package anchorgen

import (
	"fmt"

	"github.com/tos-network/anchorgen/dsl/ast"
	"github.com/tos-network/anchorgen/dsl/codegen"
	"github.com/tos-network/anchorgen/dsl/idl"
	"github.com/tos-network/anchorgen/dsl/model"
	"github.com/tos-network/anchorgen/dsl/parser"
	"github.com/tos-network/anchorgen/dsl/resolve"
	"github.com/tos-network/anchorgen/dsl/translate"
	"github.com/tos-network/anchorgen/dsl/types"
)

const (
	PackageName    = "anchorgen"
	PackageVersion = "0.3.0"

	// CompilerID is recorded in build manifests.
	CompilerID = PackageName + "/" + PackageVersion
)

// Options tunes compilation.
type Options struct {
	// StringMaxLen is the byte budget of a `string` state field.
	StringMaxLen int
	// EmitIDL also produces the Anchor IDL document.
	EmitIDL bool
}

// Fingerprint names the option values that shape generated output.
func (o Options) Fingerprint() string {
	n := o.StringMaxLen
	if n <= 0 {
		n = types.DefaultStringMaxLen
	}
	return fmt.Sprintf("string_max_len=%d,emit_idl=%t", n, o.EmitIDL)
}

// Output is the result of compiling one file.
type Output struct {
	Program   string // DSL class name
	Module    string // Rust module name
	ProgramID string
	Rust      string
	IDL       []byte // nil unless Options.EmitIDL

	Unit *model.ProgramUnit
}

// ParseModule parses DSL source into a syntax tree.
func ParseModule(source []byte, name string) (*ast.File, error) {
	file, diags := parser.ParseFile(name, source)
	if diags.HasErrors() {
		return nil, diags
	}
	return file, nil
}

// ExtractProgram parses source and builds its program model.
func ExtractProgram(source []byte, name string, opts Options) (*model.ProgramUnit, error) {
	file, diags := parser.ParseFile(name, source)
	if diags.HasErrors() {
		return nil, diags[0]
	}
	return model.Extract(name, file, model.Options{StringMaxLen: opts.StringMaxLen})
}

// BuildProgram runs every stage up to emission.
func BuildProgram(source []byte, name string, opts Options) (*translate.Program, error) {
	unit, err := ExtractProgram(source, name, opts)
	if err != nil {
		return nil, err
	}
	res, err := resolve.Resolve(unit)
	if err != nil {
		return nil, err
	}
	return translate.Translate(res)
}

// Compile turns DSL source into Anchor Rust source. A compile failure is a
// diag.Diagnostic.
func Compile(source []byte, name string) (string, error) {
	out, err := CompileWithOptions(source, name, Options{})
	if err != nil {
		return "", err
	}
	return out.Rust, nil
}

// CompileWithOptions is Compile with tuning and optional IDL output.
func CompileWithOptions(source []byte, name string, opts Options) (*Output, error) {
	prog, err := BuildProgram(source, name, opts)
	if err != nil {
		return nil, err
	}
	rust, err := codegen.Generate(prog)
	if err != nil {
		return nil, err
	}
	unit := prog.Resolved.Unit
	out := &Output{
		Program:   unit.Name,
		Module:    prog.Module,
		ProgramID: unit.ProgramID,
		Rust:      rust,
		Unit:      unit,
	}
	if opts.EmitIDL {
		if out.IDL, err = idl.Marshal(prog.Resolved); err != nil {
			return nil, err
		}
	}
	return out, nil
}
