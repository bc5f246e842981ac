package lexer

type Lexer struct {
	src  []byte
	idx  int
	line int
	col  int

	newline bool
	// openComment is set when the input ends inside a block comment.
	openComment *Position
}

func New(src []byte) *Lexer {
	return &Lexer{
		src:  src,
		line: 1,
		col:  1,
	}
}

// Next returns the next token. Line breaks and comments are skipped but
// recorded on the following token as NewlineBefore.
func (l *Lexer) Next() Token {
	l.newline = false
	l.skipSpaceAndComments()
	tok := l.scan()
	tok.NewlineBefore = l.newline
	return tok
}

func (l *Lexer) scan() Token {
	start := l.pos()
	if l.eof() {
		if c := l.openComment; c != nil {
			l.openComment = nil
			return Token{Type: TokenIllegal, Literal: "/*", Start: *c, End: start}
		}
		return Token{Type: TokenEOF, Start: start, End: start}
	}

	ch := l.peek()
	switch ch {
	case '(':
		return l.single(TokenLParen, start)
	case ')':
		return l.single(TokenRParen, start)
	case '{':
		return l.single(TokenLBrace, start)
	case '}':
		return l.single(TokenRBrace, start)
	case '[':
		return l.single(TokenLBracket, start)
	case ']':
		return l.single(TokenRBracket, start)
	case ':':
		return l.single(TokenColon, start)
	case ';':
		return l.single(TokenSemicolon, start)
	case ',':
		return l.single(TokenComma, start)
	case '.':
		return l.single(TokenDot, start)
	case '?':
		return l.single(TokenQuestion, start)
	case '+':
		return l.single(TokenPlus, start)
	case '-':
		return l.single(TokenMinus, start)
	case '*':
		return l.single(TokenStar, start)
	case '/':
		return l.single(TokenSlash, start)
	case '%':
		return l.single(TokenPercent, start)
	case '=':
		if l.peekN(1) == '>' {
			return l.double(TokenFatArrow, start)
		}
		if l.peekN(1) == '=' {
			// === is folded into ==.
			if l.peekN(2) == '=' {
				l.advance()
			}
			return l.double(TokenEq, start)
		}
		return l.single(TokenAssign, start)
	case '!':
		if l.peekN(1) == '=' {
			if l.peekN(2) == '=' {
				l.advance()
			}
			return l.double(TokenNe, start)
		}
		return l.single(TokenBang, start)
	case '<':
		if l.peekN(1) == '=' {
			return l.double(TokenLE, start)
		}
		return l.single(TokenLT, start)
	case '>':
		if l.peekN(1) == '=' {
			return l.double(TokenGE, start)
		}
		return l.single(TokenGT, start)
	case '&':
		if l.peekN(1) == '&' {
			return l.double(TokenAndAnd, start)
		}
	case '|':
		if l.peekN(1) == '|' {
			return l.double(TokenOrOr, start)
		}
	case '"', '\'', '`':
		lit := l.readString(ch)
		end := l.lastPos()
		return Token{Type: TokenString, Literal: lit, Start: start, End: end}
	}

	if isIdentStart(ch) {
		lit := l.readIdent()
		end := l.lastPos()
		return Token{Type: keywordType(lit), Literal: lit, Start: start, End: end}
	}

	if isDigit(ch) {
		lit := l.readNumber()
		end := l.lastPos()
		return Token{Type: TokenNumber, Literal: lit, Start: start, End: end}
	}

	l.advance()
	end := l.lastPos()
	return Token{Type: TokenIllegal, Literal: string([]byte{ch}), Start: start, End: end}
}

func (l *Lexer) single(tt Type, start Position) Token {
	lit := string(l.src[l.idx : l.idx+1])
	l.advance()
	return Token{Type: tt, Literal: lit, Start: start, End: l.lastPos()}
}

func (l *Lexer) double(tt Type, start Position) Token {
	l.advance()
	l.advance()
	return Token{Type: tt, Literal: tt.String(), Start: start, End: l.lastPos()}
}

func (l *Lexer) skipSpaceAndComments() {
	for !l.eof() {
		ch := l.peek()
		if isSpace(ch) {
			if ch == '\n' {
				l.newline = true
			}
			l.advance()
			continue
		}
		if ch == '/' && l.peekN(1) == '/' {
			for !l.eof() && l.peek() != '\n' {
				l.advance()
			}
			continue
		}
		if ch == '/' && l.peekN(1) == '*' {
			open := l.pos()
			l.advance()
			l.advance()
			closed := false
			for !l.eof() {
				if l.peek() == '*' && l.peekN(1) == '/' {
					l.advance()
					l.advance()
					closed = true
					break
				}
				if l.peek() == '\n' {
					l.newline = true
				}
				l.advance()
			}
			if !closed {
				l.openComment = &open
			}
			continue
		}
		break
	}
}

func (l *Lexer) readIdent() string {
	start := l.idx
	for !l.eof() && isIdentPart(l.peek()) {
		l.advance()
	}
	return string(l.src[start:l.idx])
}

// readNumber accepts decimal literals with '_' separators and 0x/0b/0o prefixed forms.
func (l *Lexer) readNumber() string {
	start := l.idx
	for !l.eof() {
		ch := l.peek()
		if isDigit(ch) || ch == '_' || isIdentStart(ch) {
			l.advance()
			continue
		}
		break
	}
	return string(l.src[start:l.idx])
}

func (l *Lexer) readString(quote byte) string {
	start := l.idx
	l.advance() // opening quote
	for !l.eof() {
		ch := l.peek()
		if ch == '\\' {
			l.advance()
			if !l.eof() {
				l.advance()
			}
			continue
		}
		l.advance()
		if ch == quote {
			break
		}
	}
	return string(l.src[start:l.idx])
}

func (l *Lexer) eof() bool {
	return l.idx >= len(l.src)
}

func (l *Lexer) peek() byte {
	return l.src[l.idx]
}

func (l *Lexer) peekN(n int) byte {
	if l.idx+n >= len(l.src) {
		return 0
	}
	return l.src[l.idx+n]
}

func (l *Lexer) advance() {
	if l.eof() {
		return
	}
	ch := l.src[l.idx]
	l.idx++
	if ch == '\n' {
		l.line++
		l.col = 1
		return
	}
	l.col++
}

func (l *Lexer) pos() Position {
	return Position{
		Offset: l.idx,
		Line:   l.line,
		Column: l.col,
	}
}

func (l *Lexer) lastPos() Position {
	if l.col <= 1 {
		return Position{
			Offset: l.idx,
			Line:   l.line - 1,
			Column: 1,
		}
	}
	return Position{
		Offset: l.idx,
		Line:   l.line,
		Column: l.col - 1,
	}
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_' || ch == '$'
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}
