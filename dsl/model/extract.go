package model

import (
	"fmt"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/tos-network/anchorgen/dsl/ast"
	"github.com/tos-network/anchorgen/dsl/diag"
	"github.com/tos-network/anchorgen/dsl/types"
)

// StateMarker is the interface a state type must extend.
const StateMarker = "Account"

const programIDProperty = "PROGRAM_ID"

// Options tunes extraction.
type Options struct {
	// StringMaxLen is the byte budget reserved for a `string` field.
	StringMaxLen int
}

type extractor struct {
	filename string
	opts     Options
	states   map[string]bool
}

// Extract builds the ProgramUnit of a parsed file. It fails with the first
// diagnostic found.
func Extract(filename string, file *ast.File, opts Options) (*ProgramUnit, error) {
	if file == nil {
		return nil, diag.New(diag.KindMissingProgramDeclaration, spanAt(filename, ast.Pos{}), "empty source file")
	}
	if opts.StringMaxLen <= 0 {
		opts.StringMaxLen = types.DefaultStringMaxLen
	}
	x := &extractor{filename: filename, opts: opts, states: map[string]bool{}}

	cls, err := x.programClass(file)
	if err != nil {
		return nil, err
	}
	unit := &ProgramUnit{File: filename, Name: cls.Name}

	for _, in := range file.Interfaces {
		if in.Extends != StateMarker {
			continue
		}
		if x.states[in.Name] {
			return nil, x.errorf(diag.KindDuplicateDeclaration, in.Pos, "duplicate state type '%s'", in.Name)
		}
		x.states[in.Name] = true
	}
	for _, in := range file.Interfaces {
		if in.Extends != StateMarker {
			continue
		}
		st, err := x.stateType(in)
		if err != nil {
			return nil, err
		}
		unit.States = append(unit.States, st)
	}

	id, err := x.programID(cls)
	if err != nil {
		return nil, err
	}
	unit.ProgramID = id

	seen := map[string]bool{}
	for _, m := range cls.Methods {
		if seen[m.Name] {
			return nil, x.errorf(diag.KindDuplicateDeclaration, m.Pos, "duplicate instruction '%s'", m.Name)
		}
		seen[m.Name] = true
		ix, err := x.instruction(m)
		if err != nil {
			return nil, err
		}
		unit.Instructions = append(unit.Instructions, ix)
	}
	return unit, nil
}

func (x *extractor) programClass(file *ast.File) (*ast.ClassDecl, error) {
	var program *ast.ClassDecl
	for i := range file.Classes {
		cls := &file.Classes[i]
		if !cls.Default {
			continue
		}
		if program != nil {
			return nil, x.errorf(diag.KindDuplicateProgramDeclaration, cls.Pos,
				"class '%s' is a second default-exported program class (first is '%s')", cls.Name, program.Name)
		}
		program = cls
	}
	if program == nil {
		return nil, x.errorf(diag.KindMissingProgramDeclaration, ast.Pos{Line: 1, Column: 1},
			"no default-exported program class found")
	}
	for i := range file.Classes {
		cls := &file.Classes[i]
		if cls == program {
			continue
		}
		if hasProperty(cls, programIDProperty) {
			return nil, x.errorf(diag.KindDuplicateProgramDeclaration, cls.Pos,
				"class '%s' declares %s but '%s' is the program", cls.Name, programIDProperty, program.Name)
		}
		return nil, x.errorf(diag.KindUnsupportedConstruct, cls.Pos,
			"class '%s': only the default-exported program class is supported", cls.Name)
	}
	return program, nil
}

func hasProperty(cls *ast.ClassDecl, name string) bool {
	for _, p := range cls.Properties {
		if p.Name == name {
			return true
		}
	}
	return false
}

func (x *extractor) programID(cls *ast.ClassDecl) (string, error) {
	var prop *ast.PropertyDecl
	for i := range cls.Properties {
		p := &cls.Properties[i]
		if p.Name != programIDProperty || !p.Static {
			return "", x.errorf(diag.KindUnsupportedConstruct, p.Pos,
				"unsupported class property '%s' (only static %s is allowed)", p.Name, programIDProperty)
		}
		if prop != nil {
			return "", x.errorf(diag.KindDuplicateDeclaration, p.Pos, "duplicate %s", programIDProperty)
		}
		prop = p
	}
	if prop == nil {
		return "", x.errorf(diag.KindMissingProgramID, cls.Pos,
			"program class '%s' has no static %s = new Pubkey(\"...\")", cls.Name, programIDProperty)
	}
	v := prop.Value
	if v.Kind != "new" || v.Value != "Pubkey" || len(v.Args) != 1 || v.Args[0].Kind != "string" {
		return "", x.errorf(diag.KindInvalidProgramID, prop.Pos,
			"%s must be new Pubkey(\"<base58>\"), got %s", programIDProperty, v.String())
	}
	id := strings.TrimSpace(v.Args[0].Value)
	if err := ValidateProgramID(id); err != nil {
		return "", x.errorf(diag.KindInvalidProgramID, prop.Pos, "%s: %v", programIDProperty, err)
	}
	return id, nil
}

// ValidateProgramID checks that id is a base58 encoded 32-byte public key.
func ValidateProgramID(id string) error {
	raw, err := base58.Decode(id)
	if err != nil {
		return fmt.Errorf("%q is not valid base58: %v", id, err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("%q decodes to %d bytes, want 32", id, len(raw))
	}
	return nil
}

func (x *extractor) stateType(in ast.InterfaceDecl) (StateType, error) {
	st := StateType{Name: in.Name, Pos: in.Pos}
	seen := map[string]bool{}
	for _, fd := range in.Fields {
		if seen[fd.Name] {
			return st, x.errorf(diag.KindDuplicateDeclaration, fd.Pos, "duplicate field '%s' in state type '%s'", fd.Name, in.Name)
		}
		seen[fd.Name] = true
		typ, ok := types.Lookup(fd.Type.Name, fd.Type.Arg, x.isState, x.opts.StringMaxLen)
		if !ok || typ.IsAccount() {
			d := diag.New(diag.KindUnknownType, x.span(fd.Type.Pos), "unknown type '%s' for field '%s' of state type '%s'", fd.Type.String(), fd.Name, in.Name)
			return st, d.WithField(fd.Name)
		}
		st.Fields = append(st.Fields, Field{Name: fd.Name, Type: typ, Pos: fd.Pos})
	}
	return st, nil
}

func (x *extractor) isState(name string) bool { return x.states[name] }

func (x *extractor) instruction(m ast.MethodDecl) (Instruction, error) {
	ix := Instruction{Name: m.Name, Pos: m.Pos}
	if m.Name == "constructor" {
		return ix, x.errorf(diag.KindUnsupportedConstruct, m.Pos, "constructors are not supported in the program class")
	}
	if m.Return != nil {
		switch m.Return.String() {
		case "Result", "void":
			ix.Returns = m.Return.Name
		default:
			return ix, diag.New(diag.KindUnknownType, x.span(m.Return.Pos),
				"unknown return type '%s' (expected Result or void)", m.Return.String()).In(m.Name, "")
		}
	}

	seen := map[string]bool{}
	for _, p := range m.Params {
		if seen[p.Name] {
			return ix, diag.New(diag.KindDuplicateDeclaration, x.span(p.Pos), "duplicate parameter '%s'", p.Name).In(m.Name, p.Name)
		}
		seen[p.Name] = true
		typ, ok := types.Lookup(p.Type.Name, p.Type.Arg, x.isState, x.opts.StringMaxLen)
		if !ok {
			return ix, diag.New(diag.KindUnknownType, x.span(p.Type.Pos), "unknown type '%s' for parameter '%s'", p.Type.String(), p.Name).In(m.Name, p.Name)
		}
		ix.Params = append(ix.Params, Param{Name: p.Name, Type: typ, Pos: p.Pos})
	}

	b := &bodyBuilder{x: x, ix: &ix}
	for i, s := range m.Body {
		if s.Kind == "return" {
			if s.Expr != nil || i != len(m.Body)-1 {
				return ix, b.errorf(diag.KindUnsupportedConstruct, s.Pos, "only a bare trailing 'return' is supported")
			}
			continue
		}
		stmt, err := b.statement(s)
		if err != nil {
			return ix, err
		}
		ix.Body = append(ix.Body, stmt)
	}
	return ix, nil
}

func (x *extractor) errorf(kind diag.Kind, pos ast.Pos, format string, args ...any) diag.Diagnostic {
	return diag.New(kind, x.span(pos), format, args...)
}

func (x *extractor) span(pos ast.Pos) diag.Span {
	return spanAt(x.filename, pos)
}

func spanAt(filename string, pos ast.Pos) diag.Span {
	p := diag.Position{Line: pos.Line, Column: pos.Column}
	return diag.Span{File: filename, Start: p, End: p}
}
