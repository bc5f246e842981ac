package lexer

type Type int

const (
	TokenIllegal Type = iota
	TokenEOF
	TokenIdent
	TokenNumber
	TokenString
	TokenLParen
	TokenRParen
	TokenLBrace
	TokenRBrace
	TokenLBracket
	TokenRBracket
	TokenColon
	TokenSemicolon
	TokenComma
	TokenDot
	TokenQuestion
	TokenFatArrow
	TokenAssign
	TokenEq
	TokenNe
	TokenLT
	TokenLE
	TokenGT
	TokenGE
	TokenBang
	TokenAndAnd
	TokenOrOr
	TokenPlus
	TokenMinus
	TokenStar
	TokenSlash
	TokenPercent
	TokenKwImport
	TokenKwExport
	TokenKwDefault
	TokenKwClass
	TokenKwInterface
	TokenKwExtends
	TokenKwStatic
	TokenKwPublic
	TokenKwConst
	TokenKwLet
	TokenKwReturn
	TokenKwNew
	TokenKwTrue
	TokenKwFalse
)

func (t Type) String() string {
	switch t {
	case TokenIllegal:
		return "ILLEGAL"
	case TokenEOF:
		return "EOF"
	case TokenIdent:
		return "IDENT"
	case TokenNumber:
		return "NUMBER"
	case TokenString:
		return "STRING"
	case TokenLParen:
		return "("
	case TokenRParen:
		return ")"
	case TokenLBrace:
		return "{"
	case TokenRBrace:
		return "}"
	case TokenLBracket:
		return "["
	case TokenRBracket:
		return "]"
	case TokenColon:
		return ":"
	case TokenSemicolon:
		return ";"
	case TokenComma:
		return ","
	case TokenDot:
		return "."
	case TokenQuestion:
		return "?"
	case TokenFatArrow:
		return "=>"
	case TokenAssign:
		return "="
	case TokenEq:
		return "=="
	case TokenNe:
		return "!="
	case TokenLT:
		return "<"
	case TokenLE:
		return "<="
	case TokenGT:
		return ">"
	case TokenGE:
		return ">="
	case TokenBang:
		return "!"
	case TokenAndAnd:
		return "&&"
	case TokenOrOr:
		return "||"
	case TokenPlus:
		return "+"
	case TokenMinus:
		return "-"
	case TokenStar:
		return "*"
	case TokenSlash:
		return "/"
	case TokenPercent:
		return "%"
	case TokenKwImport:
		return "import"
	case TokenKwExport:
		return "export"
	case TokenKwDefault:
		return "default"
	case TokenKwClass:
		return "class"
	case TokenKwInterface:
		return "interface"
	case TokenKwExtends:
		return "extends"
	case TokenKwStatic:
		return "static"
	case TokenKwPublic:
		return "public"
	case TokenKwConst:
		return "const"
	case TokenKwLet:
		return "let"
	case TokenKwReturn:
		return "return"
	case TokenKwNew:
		return "new"
	case TokenKwTrue:
		return "true"
	case TokenKwFalse:
		return "false"
	default:
		return "UNKNOWN"
	}
}

type Position struct {
	Offset int
	Line   int
	Column int
}

type Token struct {
	Type    Type
	Literal string
	Start   Position
	End     Position

	// NewlineBefore is set when a line break separates this token from the previous one.
	NewlineBefore bool
}

func keywordType(lit string) Type {
	switch lit {
	case "import":
		return TokenKwImport
	case "export":
		return TokenKwExport
	case "default":
		return TokenKwDefault
	case "class":
		return TokenKwClass
	case "interface":
		return TokenKwInterface
	case "extends":
		return TokenKwExtends
	case "static":
		return TokenKwStatic
	case "public":
		return TokenKwPublic
	case "const":
		return TokenKwConst
	case "let":
		return TokenKwLet
	case "return":
		return TokenKwReturn
	case "new":
		return TokenKwNew
	case "true":
		return TokenKwTrue
	case "false":
		return TokenKwFalse
	default:
		return TokenIdent
	}
}
