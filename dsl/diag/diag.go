package diag

import (
	"errors"
	"fmt"
	"strings"
)

// Kind names a diagnostic category. Every kind is fatal to the file being compiled.
type Kind string

const (
	KindSyntaxError                 Kind = "SyntaxError"
	KindMissingProgramDeclaration   Kind = "MissingProgramDeclaration"
	KindDuplicateProgramDeclaration Kind = "DuplicateProgramDeclaration"
	KindMissingProgramID            Kind = "MissingProgramId"
	KindInvalidProgramID            Kind = "InvalidProgramId"
	KindUnknownType                 Kind = "UnknownType"
	KindDuplicateDeclaration        Kind = "DuplicateDeclaration"
	KindUnsupportedConstruct        Kind = "UnsupportedConstruct"
	KindMissingBumpField            Kind = "MissingBumpField"
	KindInvalidBumpField            Kind = "InvalidBumpField"
	KindInvalidPayer                Kind = "InvalidPayer"
	KindAmbiguousPayer              Kind = "AmbiguousPayer"
	KindDuplicateDerivation         Kind = "DuplicateDerivation"
	KindInvalidDerivation           Kind = "InvalidDerivation"
	KindInvalidSeed                 Kind = "InvalidSeed"
	KindUnresolvedReference         Kind = "UnresolvedReference"
	KindInvalidSignerSeeds          Kind = "InvalidSignerSeeds"
	KindTypeMismatch                Kind = "TypeMismatch"
)

const (
	CodeSyntax                      = "ANC1001"
	CodeMissingProgramDeclaration   = "ANC2001"
	CodeDuplicateProgramDeclaration = "ANC2002"
	CodeMissingProgramID            = "ANC2003"
	CodeInvalidProgramID            = "ANC2004"
	CodeUnknownType                 = "ANC2005"
	CodeDuplicateDeclaration        = "ANC2006"
	CodeUnsupportedConstruct        = "ANC2007"
	CodeMissingBumpField            = "ANC3001"
	CodeInvalidBumpField            = "ANC3002"
	CodeInvalidPayer                = "ANC3003"
	CodeAmbiguousPayer              = "ANC3004"
	CodeDuplicateDerivation         = "ANC3005"
	CodeInvalidDerivation           = "ANC3006"
	CodeInvalidSeed                 = "ANC3007"
	CodeUnresolvedReference         = "ANC3008"
	CodeInvalidSignerSeeds          = "ANC3009"
	CodeTypeMismatch                = "ANC4001"
)

var kindCodes = map[Kind]string{
	KindSyntaxError:                 CodeSyntax,
	KindMissingProgramDeclaration:   CodeMissingProgramDeclaration,
	KindDuplicateProgramDeclaration: CodeDuplicateProgramDeclaration,
	KindMissingProgramID:            CodeMissingProgramID,
	KindInvalidProgramID:            CodeInvalidProgramID,
	KindUnknownType:                 CodeUnknownType,
	KindDuplicateDeclaration:        CodeDuplicateDeclaration,
	KindUnsupportedConstruct:        CodeUnsupportedConstruct,
	KindMissingBumpField:            CodeMissingBumpField,
	KindInvalidBumpField:            CodeInvalidBumpField,
	KindInvalidPayer:                CodeInvalidPayer,
	KindAmbiguousPayer:              CodeAmbiguousPayer,
	KindDuplicateDerivation:         CodeDuplicateDerivation,
	KindInvalidDerivation:           CodeInvalidDerivation,
	KindInvalidSeed:                 CodeInvalidSeed,
	KindUnresolvedReference:         CodeUnresolvedReference,
	KindInvalidSignerSeeds:          CodeInvalidSignerSeeds,
	KindTypeMismatch:                CodeTypeMismatch,
}

// CodeFor returns the stable diagnostic code of a kind.
func CodeFor(k Kind) string {
	if code, ok := kindCodes[k]; ok {
		return code
	}
	return "ANC0000"
}

// Position describes a line/column position in a source file.
type Position struct {
	Line   int
	Column int
}

// Span describes a source range.
type Span struct {
	File  string
	Start Position
	End   Position
}

// Diagnostic is a structured compile-time error.
type Diagnostic struct {
	Code    string
	Kind    Kind
	Message string
	Span    Span

	// Context of the failing construct; empty when not applicable.
	Instruction string
	Account     string
	Field       string
}

// New builds a diagnostic of the given kind with a formatted message.
func New(kind Kind, span Span, format string, args ...any) Diagnostic {
	return Diagnostic{
		Code:    CodeFor(kind),
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Span:    span,
	}
}

// In returns a copy of d attributed to an instruction and account.
func (d Diagnostic) In(instruction, account string) Diagnostic {
	d.Instruction = instruction
	d.Account = account
	return d
}

// WithField returns a copy of d attributed to a state field.
func (d Diagnostic) WithField(field string) Diagnostic {
	d.Field = field
	return d
}

func (d Diagnostic) Error() string {
	msg := d.Message
	if ctx := d.context(); ctx != "" {
		msg += " (" + ctx + ")"
	}
	if d.Span.File == "" || d.Span.Start.Line <= 0 || d.Span.Start.Column <= 0 {
		return fmt.Sprintf("[%s %s] %s", d.Code, d.Kind, msg)
	}
	return fmt.Sprintf("%s:%d:%d: [%s %s] %s",
		d.Span.File,
		d.Span.Start.Line,
		d.Span.Start.Column,
		d.Code,
		d.Kind,
		msg,
	)
}

func (d Diagnostic) context() string {
	parts := make([]string, 0, 3)
	if d.Instruction != "" {
		parts = append(parts, "instruction "+d.Instruction)
	}
	if d.Account != "" {
		parts = append(parts, "account "+d.Account)
	}
	if d.Field != "" {
		parts = append(parts, "field "+d.Field)
	}
	return strings.Join(parts, ", ")
}

// Diagnostics is an ordered diagnostic list.
type Diagnostics []Diagnostic

func (ds Diagnostics) Error() string {
	if len(ds) == 0 {
		return ""
	}
	if len(ds) == 1 {
		return ds[0].Error()
	}
	return fmt.Sprintf("%s (and %d more error(s))", ds[0].Error(), len(ds)-1)
}

func (ds Diagnostics) HasErrors() bool { return len(ds) > 0 }

// First returns the first diagnostic of an error chain, if any.
func First(err error) (Diagnostic, bool) {
	var d Diagnostic
	if errors.As(err, &d) {
		return d, true
	}
	var ds Diagnostics
	if errors.As(err, &ds) && len(ds) > 0 {
		return ds[0], true
	}
	return Diagnostic{}, false
}

// IsKind reports whether err carries a diagnostic of kind k.
func IsKind(err error, k Kind) bool {
	d, ok := First(err)
	return ok && d.Kind == k
}
