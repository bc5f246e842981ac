package ast

import (
	"fmt"
	"strings"
)

// Pos is a 1-based source position.
type Pos struct {
	Line   int
	Column int
}

// File is the root node for a DSL source file.
type File struct {
	Imports    []ImportDecl
	Classes    []ClassDecl
	Interfaces []InterfaceDecl
}

type ImportDecl struct {
	Names []string
	From  string
	Pos   Pos
}

// ClassDecl is a class declaration; the default-exported one is the program.
type ClassDecl struct {
	Name       string
	Exported   bool
	Default    bool
	Properties []PropertyDecl
	Methods    []MethodDecl
	Pos        Pos
}

type PropertyDecl struct {
	Name   string
	Static bool
	Value  *Expr
	Pos    Pos
}

type MethodDecl struct {
	Name   string
	Params []FieldDecl
	Return *TypeRef
	Body   []Statement
	Pos    Pos
}

type InterfaceDecl struct {
	Name     string
	Exported bool
	Extends  string
	Fields   []FieldDecl
	Pos      Pos
}

// FieldDecl is a name/type pair used for interface fields and method parameters.
type FieldDecl struct {
	Name string
	Type TypeRef
	Pos  Pos
}

// TypeRef is a type name with an optional single generic argument, as in Str<32>.
type TypeRef struct {
	Name string
	Arg  string
	Pos  Pos
}

func (t TypeRef) String() string {
	if t.Arg == "" {
		return t.Name
	}
	return t.Name + "<" + t.Arg + ">"
}

// Statement kinds: "const", "let", "expr", "return".
type Statement struct {
	Kind string
	Name string
	Type *TypeRef
	Expr *Expr
	Pos  Pos
}

// Expr kinds: "ident", "number", "string", "bool", "array", "new", "paren",
// "unary", "binary", "assign", "call", "member", "index".
type Expr struct {
	Kind   string
	Value  string
	Op     string
	Left   *Expr
	Right  *Expr
	Callee *Expr
	Args   []*Expr
	Object *Expr
	Member string
	Index  *Expr
	Elems  []*Expr
	Pos    Pos
}

// MemberPath returns the dotted identifier path of an ident/member chain
// ("state.owner" -> ["state", "owner"]), or nil for any other shape.
func (e *Expr) MemberPath() []string {
	if e == nil {
		return nil
	}
	switch e.Kind {
	case "ident":
		return []string{e.Value}
	case "member":
		base := e.Object.MemberPath()
		if base == nil {
			return nil
		}
		return append(base, e.Member)
	case "paren":
		return e.Left.MemberPath()
	default:
		return nil
	}
}

func (e *Expr) String() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case "ident", "number", "bool":
		return e.Value
	case "string":
		return fmt.Sprintf("%q", e.Value)
	case "array":
		return "[" + joinExprs(e.Elems) + "]"
	case "new":
		return "new " + e.Value + "(" + joinExprs(e.Args) + ")"
	case "paren":
		return "(" + e.Left.String() + ")"
	case "unary":
		return e.Op + e.Right.String()
	case "binary", "assign":
		return e.Left.String() + " " + e.Op + " " + e.Right.String()
	case "call":
		return e.Callee.String() + "(" + joinExprs(e.Args) + ")"
	case "member":
		return e.Object.String() + "." + e.Member
	case "index":
		return e.Object.String() + "[" + e.Index.String() + "]"
	default:
		return "<" + e.Kind + ">"
	}
}

func joinExprs(list []*Expr) string {
	parts := make([]string, 0, len(list))
	for _, x := range list {
		parts = append(parts, x.String())
	}
	return strings.Join(parts, ", ")
}

func (f *File) String() string {
	if f == nil {
		return "<nil>"
	}
	var sb strings.Builder
	for _, imp := range f.Imports {
		fmt.Fprintf(&sb, "import { %s } from %q\n", strings.Join(imp.Names, ", "), imp.From)
	}
	for _, c := range f.Classes {
		prefix := ""
		if c.Exported {
			prefix = "export "
		}
		if c.Default {
			prefix += "default "
		}
		fmt.Fprintf(&sb, "%sclass %s {\n", prefix, c.Name)
		for _, p := range c.Properties {
			static := ""
			if p.Static {
				static = "static "
			}
			fmt.Fprintf(&sb, "  %s%s = %s\n", static, p.Name, p.Value.String())
		}
		for _, m := range c.Methods {
			params := make([]string, 0, len(m.Params))
			for _, p := range m.Params {
				params = append(params, p.Name+": "+p.Type.String())
			}
			ret := ""
			if m.Return != nil {
				ret = ": " + m.Return.String()
			}
			fmt.Fprintf(&sb, "  %s(%s)%s { ... } // stmts=%d\n", m.Name, strings.Join(params, ", "), ret, len(m.Body))
		}
		sb.WriteString("}\n")
	}
	for _, in := range f.Interfaces {
		ext := ""
		if in.Extends != "" {
			ext = " extends " + in.Extends
		}
		fmt.Fprintf(&sb, "interface %s%s {\n", in.Name, ext)
		for _, fd := range in.Fields {
			fmt.Fprintf(&sb, "  %s: %s\n", fd.Name, fd.Type.String())
		}
		sb.WriteString("}\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
