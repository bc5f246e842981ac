package translate

import (
	"strings"
	"unicode"
)

var rustKeywords = map[string]bool{
	"as": true, "async": true, "await": true, "box": true, "break": true, "const": true, "continue": true,
	"dyn": true, "else": true, "enum": true, "extern": true, "false": true, "fn": true,
	"for": true, "if": true, "impl": true, "in": true, "let": true, "loop": true, "match": true, "mod": true,
	"move": true, "mut": true, "pub": true, "ref": true, "return": true, "static": true, "struct": true,
	"trait": true, "true": true, "type": true, "unsafe": true, "use": true, "where": true, "while": true,
	"yield": true, "abstract": true, "become": true, "do": true, "final": true, "macro": true,
	"override": true, "priv": true, "try": true, "typeof": true, "unsized": true, "virtual": true,
}

// SnakeCase converts a camelCase or PascalCase name to snake_case.
// Acronyms stay together: makerATA becomes maker_ata.
func SnakeCase(name string) string {
	rs := []rune(name)
	var b strings.Builder
	for i, r := range rs {
		if unicode.IsUpper(r) {
			if i > 0 && rs[i-1] != '_' {
				prevLower := unicode.IsLower(rs[i-1]) || unicode.IsDigit(rs[i-1])
				nextLower := i+1 < len(rs) && unicode.IsLower(rs[i+1])
				if prevLower || (unicode.IsUpper(rs[i-1]) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// PascalCase converts a camelCase or snake_case name to PascalCase.
func PascalCase(name string) string {
	var b strings.Builder
	upper := true
	for _, r := range name {
		if r == '_' {
			upper = true
			continue
		}
		if upper {
			b.WriteRune(unicode.ToUpper(r))
			upper = false
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Ident returns the Rust identifier for a DSL name, raw-escaped when the
// snake_case form is a keyword.
func Ident(name string) string {
	s := SnakeCase(name)
	if rustKeywords[s] {
		return "r#" + s
	}
	return s
}

// ContextName is the accounts struct name of an instruction.
func ContextName(instruction string) string {
	return PascalCase(instruction) + "Context"
}
