package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(src string) []Token {
	l := New([]byte(src))
	var out []Token
	for {
		tok := l.Next()
		out = append(out, tok)
		if tok.Type == TokenEOF {
			return out
		}
	}
}

func TestLexerTokenTypes(t *testing.T) {
	toks := collect(`export default class Vault { static PROGRAM_ID = new Pubkey("11"); a === b !== c <= >= && || => ? }`)
	want := []Type{
		TokenKwExport, TokenKwDefault, TokenKwClass, TokenIdent, TokenLBrace,
		TokenKwStatic, TokenIdent, TokenAssign, TokenKwNew, TokenIdent, TokenLParen, TokenString, TokenRParen, TokenSemicolon,
		TokenIdent, TokenEq, TokenIdent, TokenNe, TokenIdent, TokenLE, TokenGE, TokenAndAnd, TokenOrOr, TokenFatArrow, TokenQuestion,
		TokenRBrace, TokenEOF,
	}
	got := make([]Type, 0, len(toks))
	for _, tok := range toks {
		got = append(got, tok.Type)
	}
	require.Equal(t, want, got)
	assert.Equal(t, `"11"`, toks[11].Literal)
}

func TestLexerNewlineBefore(t *testing.T) {
	toks := collect("a.derive(x)\n  .init() // trailing\n/* block\n */ b")
	require.Len(t, toks, 12)
	assert.False(t, toks[1].NewlineBefore)
	assert.True(t, toks[6].NewlineBefore, "dot on next line")
	assert.Equal(t, TokenDot, toks[6].Type)
	assert.True(t, toks[10].NewlineBefore, "identifier after block comment")
	assert.Equal(t, "b", toks[10].Literal)
	assert.Equal(t, 4, toks[10].Start.Line)
}

func TestLexerStringsAndNumbers(t *testing.T) {
	toks := collect(`'state' "a\"b" 1_000 0xff from`)
	assert.Equal(t, `'state'`, toks[0].Literal)
	assert.Equal(t, `"a\"b"`, toks[1].Literal)
	assert.Equal(t, "1_000", toks[2].Literal)
	assert.Equal(t, "0xff", toks[3].Literal)
	assert.Equal(t, TokenIdent, toks[4].Type)
}

func TestLexerIllegal(t *testing.T) {
	toks := collect("a & b")
	assert.Equal(t, TokenIllegal, toks[1].Type)
	assert.Equal(t, "&", toks[1].Literal)
}

func TestLexerUnterminatedBlockComment(t *testing.T) {
	toks := collect("a\n  /* no end\n b")
	require.Len(t, toks, 3)
	assert.Equal(t, TokenIllegal, toks[1].Type)
	assert.Equal(t, "/*", toks[1].Literal)
	assert.Equal(t, 2, toks[1].Start.Line)
	assert.Equal(t, 3, toks[1].Start.Column)
	assert.Equal(t, TokenEOF, toks[2].Type)
}
