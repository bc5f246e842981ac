package parser

import (
	"fmt"
	"strings"

	"github.com/tos-network/anchorgen/dsl/ast"
	"github.com/tos-network/anchorgen/dsl/diag"
	"github.com/tos-network/anchorgen/dsl/lexer"
)

type Parser struct {
	filename string
	lex      *lexer.Lexer
	cur      lexer.Token
	diags    diag.Diagnostics
	errAtEOF bool
}

// ParseFile parses one DSL source file. Parsing stops at the first syntax
// error, so the returned list holds at most one diagnostic.
func ParseFile(filename string, src []byte) (*ast.File, diag.Diagnostics) {
	p := &Parser{
		filename: filename,
		lex:      lexer.New(src),
	}
	p.next()
	file := p.parseFile()
	if p.diags.HasErrors() {
		return nil, p.diags
	}
	return file, nil
}

func (p *Parser) parseFile() *ast.File {
	file := &ast.File{}

	for p.cur.Type == lexer.TokenKwImport {
		imp, ok := p.parseImport()
		if !ok {
			return file
		}
		file.Imports = append(file.Imports, imp)
	}

	for p.cur.Type != lexer.TokenEOF {
		if p.cur.Type == lexer.TokenSemicolon {
			p.next()
			continue
		}
		exported, isDefault := false, false
		if p.cur.Type == lexer.TokenKwExport {
			exported = true
			p.next()
			if p.cur.Type == lexer.TokenKwDefault {
				isDefault = true
				p.next()
			}
		}
		switch p.cur.Type {
		case lexer.TokenKwClass:
			cls, ok := p.parseClass()
			if !ok {
				return file
			}
			cls.Exported = exported
			cls.Default = isDefault
			file.Classes = append(file.Classes, cls)
		case lexer.TokenKwInterface:
			if isDefault {
				p.errorf(p.cur, "default-exported interfaces are not supported")
				return file
			}
			in, ok := p.parseInterface()
			if !ok {
				return file
			}
			in.Exported = exported
			file.Interfaces = append(file.Interfaces, in)
		case lexer.TokenKwImport:
			p.errorf(p.cur, "import declarations must precede all other declarations")
			return file
		default:
			p.errorf(p.cur, "unexpected token '%s' at top level, expected class or interface declaration", p.cur.Literal)
			return file
		}
	}
	return file
}

func (p *Parser) parseImport() (ast.ImportDecl, bool) {
	imp := ast.ImportDecl{Pos: p.pos(p.cur)}
	if !p.expect(lexer.TokenKwImport, "expected 'import'") {
		return imp, false
	}
	switch p.cur.Type {
	case lexer.TokenLBrace:
		p.next()
		for p.cur.Type != lexer.TokenRBrace {
			nameTok := p.cur
			if !p.expect(lexer.TokenIdent, "expected imported name") {
				return imp, false
			}
			imp.Names = append(imp.Names, nameTok.Literal)
			if p.cur.Type != lexer.TokenComma {
				break
			}
			p.next()
		}
		if !p.expect(lexer.TokenRBrace, "expected '}' to close import list") {
			return imp, false
		}
	case lexer.TokenIdent:
		imp.Names = append(imp.Names, p.cur.Literal)
		p.next()
	default:
		p.errorf(p.cur, "expected '{' or identifier after 'import'")
		return imp, false
	}
	if p.cur.Type != lexer.TokenIdent || p.cur.Literal != "from" {
		p.errorf(p.cur, "expected 'from' in import declaration")
		return imp, false
	}
	p.next()
	srcTok := p.cur
	if !p.expect(lexer.TokenString, "expected module path string after 'from'") {
		return imp, false
	}
	from, ok := unquote(srcTok.Literal)
	if !ok {
		p.errorf(srcTok, "invalid string literal %s", srcTok.Literal)
		return imp, false
	}
	imp.From = from
	return imp, p.endStatement("import declaration")
}

func (p *Parser) parseClass() (ast.ClassDecl, bool) {
	cls := ast.ClassDecl{Pos: p.pos(p.cur)}
	if !p.expect(lexer.TokenKwClass, "expected 'class'") {
		return cls, false
	}
	nameTok := p.cur
	if !p.expect(lexer.TokenIdent, "expected class name") {
		return cls, false
	}
	cls.Name = nameTok.Literal
	if !p.expect(lexer.TokenLBrace, "expected '{' after class name") {
		return cls, false
	}

	for p.cur.Type != lexer.TokenRBrace && p.cur.Type != lexer.TokenEOF {
		if p.cur.Type == lexer.TokenSemicolon {
			p.next()
			continue
		}
		if !p.parseClassMember(&cls) {
			return cls, false
		}
	}
	if !p.expect(lexer.TokenRBrace, "expected '}' to close class body") {
		return cls, false
	}
	return cls, true
}

func (p *Parser) parseClassMember(cls *ast.ClassDecl) bool {
	static := false
	if p.cur.Type == lexer.TokenKwPublic {
		p.next()
	}
	if p.cur.Type == lexer.TokenKwStatic {
		static = true
		p.next()
	}
	nameTok := p.cur
	if !p.expect(lexer.TokenIdent, "expected class member name") {
		return false
	}

	switch p.cur.Type {
	case lexer.TokenAssign:
		p.next()
		value, ok := p.parseExpression()
		if !ok {
			return false
		}
		cls.Properties = append(cls.Properties, ast.PropertyDecl{
			Name:   nameTok.Literal,
			Static: static,
			Value:  value,
			Pos:    p.pos(nameTok),
		})
		return p.endStatement("property declaration")
	case lexer.TokenLParen:
		if static {
			p.errorf(nameTok, "static methods are not supported")
			return false
		}
		m, ok := p.parseMethod(nameTok)
		if !ok {
			return false
		}
		cls.Methods = append(cls.Methods, m)
		return true
	default:
		p.errorf(p.cur, "expected '=' or '(' after class member name '%s'", nameTok.Literal)
		return false
	}
}

func (p *Parser) parseMethod(nameTok lexer.Token) (ast.MethodDecl, bool) {
	m := ast.MethodDecl{Name: nameTok.Literal, Pos: p.pos(nameTok)}
	params, ok := p.parseParamList()
	if !ok {
		return m, false
	}
	m.Params = params
	if p.cur.Type == lexer.TokenColon {
		p.next()
		ret, ok := p.parseType()
		if !ok {
			return m, false
		}
		m.Return = &ret
	}
	body, ok := p.parseBlock("method body")
	if !ok {
		return m, false
	}
	m.Body = body
	return m, true
}

func (p *Parser) parseParamList() ([]ast.FieldDecl, bool) {
	if !p.expect(lexer.TokenLParen, "expected '(' to start parameter list") {
		return nil, false
	}
	params := []ast.FieldDecl{}
	for p.cur.Type != lexer.TokenRParen {
		fd, ok := p.parseField("parameter")
		if !ok {
			return nil, false
		}
		params = append(params, fd)
		if p.cur.Type != lexer.TokenComma {
			break
		}
		p.next()
	}
	if !p.expect(lexer.TokenRParen, "expected ')' after parameter list") {
		return nil, false
	}
	return params, true
}

func (p *Parser) parseField(what string) (ast.FieldDecl, bool) {
	nameTok := p.cur
	if !p.expect(lexer.TokenIdent, "expected "+what+" name") {
		return ast.FieldDecl{}, false
	}
	if p.cur.Type == lexer.TokenQuestion {
		p.errorf(p.cur, "optional %s '%s' is not supported", what, nameTok.Literal)
		return ast.FieldDecl{}, false
	}
	if !p.expect(lexer.TokenColon, fmt.Sprintf("expected ':' after %s name '%s'", what, nameTok.Literal)) {
		return ast.FieldDecl{}, false
	}
	typ, ok := p.parseType()
	if !ok {
		return ast.FieldDecl{}, false
	}
	return ast.FieldDecl{Name: nameTok.Literal, Type: typ, Pos: p.pos(nameTok)}, true
}

func (p *Parser) parseType() (ast.TypeRef, bool) {
	nameTok := p.cur
	if !p.expect(lexer.TokenIdent, "expected type name") {
		return ast.TypeRef{}, false
	}
	typ := ast.TypeRef{Name: nameTok.Literal, Pos: p.pos(nameTok)}
	if p.cur.Type == lexer.TokenLT {
		p.next()
		if p.cur.Type != lexer.TokenNumber && p.cur.Type != lexer.TokenIdent {
			p.errorf(p.cur, "expected type argument in '%s<...>'", nameTok.Literal)
			return typ, false
		}
		typ.Arg = p.cur.Literal
		p.next()
		if !p.expect(lexer.TokenGT, "expected '>' to close type argument") {
			return typ, false
		}
	}
	if p.cur.Type == lexer.TokenLBracket {
		p.errorf(p.cur, "array types are not supported")
		return typ, false
	}
	return typ, true
}

func (p *Parser) parseInterface() (ast.InterfaceDecl, bool) {
	in := ast.InterfaceDecl{Pos: p.pos(p.cur)}
	if !p.expect(lexer.TokenKwInterface, "expected 'interface'") {
		return in, false
	}
	nameTok := p.cur
	if !p.expect(lexer.TokenIdent, "expected interface name") {
		return in, false
	}
	in.Name = nameTok.Literal
	if p.cur.Type == lexer.TokenKwExtends {
		p.next()
		baseTok := p.cur
		if !p.expect(lexer.TokenIdent, "expected base interface name after 'extends'") {
			return in, false
		}
		in.Extends = baseTok.Literal
	}
	if !p.expect(lexer.TokenLBrace, "expected '{' after interface name") {
		return in, false
	}
	for p.cur.Type != lexer.TokenRBrace && p.cur.Type != lexer.TokenEOF {
		fd, ok := p.parseField("field")
		if !ok {
			return in, false
		}
		in.Fields = append(in.Fields, fd)
		switch {
		case p.cur.Type == lexer.TokenSemicolon || p.cur.Type == lexer.TokenComma:
			p.next()
		case p.cur.Type == lexer.TokenRBrace || p.cur.NewlineBefore:
		default:
			p.errorf(p.cur, "expected ';' after interface field '%s'", fd.Name)
			return in, false
		}
	}
	if !p.expect(lexer.TokenRBrace, "expected '}' to close interface body") {
		return in, false
	}
	return in, true
}

func (p *Parser) parseBlock(what string) ([]ast.Statement, bool) {
	if !p.expect(lexer.TokenLBrace, "expected '{' before "+what) {
		return nil, false
	}
	stmts := []ast.Statement{}
	for p.cur.Type != lexer.TokenRBrace {
		if p.cur.Type == lexer.TokenEOF {
			p.errorf(p.cur, "unexpected EOF while parsing %s", what)
			return nil, false
		}
		if p.cur.Type == lexer.TokenSemicolon {
			p.next()
			continue
		}
		stmt, ok := p.parseStatement()
		if !ok {
			return nil, false
		}
		stmts = append(stmts, stmt)
	}
	p.next()
	return stmts, true
}

func (p *Parser) parseStatement() (ast.Statement, bool) {
	switch p.cur.Type {
	case lexer.TokenKwConst, lexer.TokenKwLet:
		return p.parseBinding()
	case lexer.TokenKwReturn:
		stmt := ast.Statement{Kind: "return", Pos: p.pos(p.cur)}
		p.next()
		if p.cur.Type != lexer.TokenSemicolon && p.cur.Type != lexer.TokenRBrace && !p.cur.NewlineBefore {
			expr, ok := p.parseExpression()
			if !ok {
				return stmt, false
			}
			stmt.Expr = expr
		}
		return stmt, p.endStatement("return statement")
	default:
		stmt := ast.Statement{Kind: "expr", Pos: p.pos(p.cur)}
		expr, ok := p.parseExpression()
		if !ok {
			return stmt, false
		}
		stmt.Expr = expr
		return stmt, p.endStatement("expression statement")
	}
}

func (p *Parser) parseBinding() (ast.Statement, bool) {
	stmt := ast.Statement{Kind: p.cur.Literal, Pos: p.pos(p.cur)}
	p.next()
	nameTok := p.cur
	if !p.expect(lexer.TokenIdent, fmt.Sprintf("expected variable name after '%s'", stmt.Kind)) {
		return stmt, false
	}
	stmt.Name = nameTok.Literal
	if p.cur.Type == lexer.TokenColon {
		p.next()
		typ, ok := p.parseType()
		if !ok {
			return stmt, false
		}
		stmt.Type = &typ
	}
	if !p.expect(lexer.TokenAssign, fmt.Sprintf("expected '=' in declaration of '%s'", stmt.Name)) {
		return stmt, false
	}
	expr, ok := p.parseExpression()
	if !ok {
		return stmt, false
	}
	stmt.Expr = expr
	return stmt, p.endStatement("variable declaration")
}

// endStatement accepts an explicit ';' or an implicit terminator: a line
// break, a closing brace, or EOF.
func (p *Parser) endStatement(what string) bool {
	switch {
	case p.cur.Type == lexer.TokenSemicolon:
		p.next()
		return true
	case p.cur.Type == lexer.TokenRBrace, p.cur.Type == lexer.TokenEOF, p.cur.NewlineBefore:
		return true
	default:
		p.errorf(p.cur, "expected ';' after %s, got '%s'", what, p.cur.Literal)
		return false
	}
}

const (
	exprPrecLowest  = 1
	exprPrecAssign  = 2
	exprPrecOr      = 3
	exprPrecAnd     = 4
	exprPrecCmp     = 5
	exprPrecAdd     = 6
	exprPrecMul     = 7
	exprPrecPrefix  = 8
	exprPrecPostfix = 9
)

func (p *Parser) parseExpression() (*ast.Expr, bool) {
	return p.parseExprPrec(exprPrecLowest)
}

func (p *Parser) parseExprPrec(minPrec int) (*ast.Expr, bool) {
	left, ok := p.parsePrefixExpr()
	if !ok {
		return nil, false
	}

	for {
		if p.isPostfixStart() {
			if exprPrecPostfix < minPrec {
				break
			}
			left, ok = p.parsePostfixExpr(left)
			if !ok {
				return nil, false
			}
			continue
		}

		prec, rightAssoc := infixPrecedence(p.cur.Type)
		if prec < minPrec || prec == 0 {
			break
		}

		opTok := p.cur
		p.next()
		nextMin := prec + 1
		if rightAssoc {
			nextMin = prec
		}
		right, ok := p.parseExprPrec(nextMin)
		if !ok {
			return nil, false
		}

		kind := "binary"
		if opTok.Type == lexer.TokenAssign {
			kind = "assign"
		}
		left = &ast.Expr{
			Kind:  kind,
			Op:    opTok.Literal,
			Left:  left,
			Right: right,
			Pos:   left.Pos,
		}
	}
	return left, true
}

// isPostfixStart reports whether the current token continues the expression
// as a call, member access or index. A '(' or '[' on a new line starts a new
// statement instead; a leading '.' always continues a method chain.
func (p *Parser) isPostfixStart() bool {
	switch p.cur.Type {
	case lexer.TokenDot:
		return true
	case lexer.TokenLParen, lexer.TokenLBracket:
		return !p.cur.NewlineBefore
	default:
		return false
	}
}

func (p *Parser) parsePrefixExpr() (*ast.Expr, bool) {
	tok := p.cur
	pos := p.pos(tok)
	switch tok.Type {
	case lexer.TokenIdent:
		p.next()
		return &ast.Expr{Kind: "ident", Value: tok.Literal, Pos: pos}, true
	case lexer.TokenNumber:
		p.next()
		return &ast.Expr{Kind: "number", Value: tok.Literal, Pos: pos}, true
	case lexer.TokenString:
		val, ok := unquote(tok.Literal)
		if !ok {
			p.errorf(tok, "invalid string literal %s", tok.Literal)
			return nil, false
		}
		p.next()
		return &ast.Expr{Kind: "string", Value: val, Pos: pos}, true
	case lexer.TokenKwTrue, lexer.TokenKwFalse:
		p.next()
		return &ast.Expr{Kind: "bool", Value: tok.Literal, Pos: pos}, true
	case lexer.TokenLBracket:
		p.next()
		elems, ok := p.parseExprList(lexer.TokenRBracket, "array literal")
		if !ok {
			return nil, false
		}
		return &ast.Expr{Kind: "array", Elems: elems, Pos: pos}, true
	case lexer.TokenKwNew:
		p.next()
		nameTok := p.cur
		if !p.expect(lexer.TokenIdent, "expected class name after 'new'") {
			return nil, false
		}
		if !p.expect(lexer.TokenLParen, "expected '(' after 'new "+nameTok.Literal+"'") {
			return nil, false
		}
		args, ok := p.parseExprList(lexer.TokenRParen, "constructor arguments")
		if !ok {
			return nil, false
		}
		return &ast.Expr{Kind: "new", Value: nameTok.Literal, Args: args, Pos: pos}, true
	case lexer.TokenLParen:
		p.next()
		inner, ok := p.parseExpression()
		if !ok {
			return nil, false
		}
		if !p.expect(lexer.TokenRParen, "expected ')' to close expression") {
			return nil, false
		}
		return &ast.Expr{Kind: "paren", Left: inner, Pos: pos}, true
	case lexer.TokenMinus, lexer.TokenBang:
		p.next()
		right, ok := p.parseExprPrec(exprPrecPrefix)
		if !ok {
			return nil, false
		}
		return &ast.Expr{Kind: "unary", Op: tok.Literal, Right: right, Pos: pos}, true
	case lexer.TokenEOF:
		p.errorf(tok, "unexpected EOF, expected expression")
		return nil, false
	default:
		p.errorf(tok, "unexpected token '%s' in expression", tok.Literal)
		return nil, false
	}
}

func (p *Parser) parsePostfixExpr(left *ast.Expr) (*ast.Expr, bool) {
	switch p.cur.Type {
	case lexer.TokenLParen:
		p.next()
		args, ok := p.parseExprList(lexer.TokenRParen, "argument list")
		if !ok {
			return nil, false
		}
		return &ast.Expr{Kind: "call", Callee: left, Args: args, Pos: left.Pos}, true
	case lexer.TokenDot:
		p.next()
		memberTok := p.cur
		if !p.expectName("expected member name after '.'") {
			return nil, false
		}
		return &ast.Expr{Kind: "member", Object: left, Member: memberTok.Literal, Pos: p.pos(memberTok)}, true
	case lexer.TokenLBracket:
		p.next()
		idx, ok := p.parseExpression()
		if !ok {
			return nil, false
		}
		if !p.expect(lexer.TokenRBracket, "expected ']' after index expression") {
			return nil, false
		}
		return &ast.Expr{Kind: "index", Object: left, Index: idx, Pos: left.Pos}, true
	default:
		return left, true
	}
}

// parseExprList parses comma separated expressions up to and including the
// closing token; a trailing comma is allowed.
func (p *Parser) parseExprList(closing lexer.Type, what string) ([]*ast.Expr, bool) {
	list := []*ast.Expr{}
	for p.cur.Type != closing {
		x, ok := p.parseExpression()
		if !ok {
			return nil, false
		}
		list = append(list, x)
		if p.cur.Type != lexer.TokenComma {
			break
		}
		p.next()
	}
	if !p.expect(closing, fmt.Sprintf("expected '%s' to close %s", closing, what)) {
		return nil, false
	}
	return list, true
}

func infixPrecedence(tt lexer.Type) (int, bool) {
	switch tt {
	case lexer.TokenAssign:
		return exprPrecAssign, true
	case lexer.TokenOrOr:
		return exprPrecOr, false
	case lexer.TokenAndAnd:
		return exprPrecAnd, false
	case lexer.TokenEq, lexer.TokenNe, lexer.TokenLT, lexer.TokenLE, lexer.TokenGT, lexer.TokenGE:
		return exprPrecCmp, false
	case lexer.TokenPlus, lexer.TokenMinus:
		return exprPrecAdd, false
	case lexer.TokenStar, lexer.TokenSlash, lexer.TokenPercent:
		return exprPrecMul, false
	default:
		return 0, false
	}
}

// unquote strips the quotes of a single, double or backtick quoted literal
// and resolves the common escapes.
func unquote(lit string) (string, bool) {
	if len(lit) < 2 {
		return "", false
	}
	quote := lit[0]
	if (quote != '"' && quote != '\'' && quote != '`') || lit[len(lit)-1] != quote {
		return "", false
	}
	body := lit[1 : len(lit)-1]
	if !strings.ContainsRune(body, '\\') {
		return body, true
	}
	var sb strings.Builder
	for i := 0; i < len(body); i++ {
		ch := body[i]
		if ch != '\\' {
			sb.WriteByte(ch)
			continue
		}
		i++
		if i >= len(body) {
			return "", false
		}
		switch body[i] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case '0':
			sb.WriteByte(0)
		default:
			sb.WriteByte(body[i])
		}
	}
	return sb.String(), true
}

func (p *Parser) expect(tt lexer.Type, message string) bool {
	if p.cur.Type != tt {
		p.errorf(p.cur, "%s", message)
		return false
	}
	p.next()
	return true
}

// expectName accepts identifiers and keywords, since keywords are valid
// property names after '.'.
func (p *Parser) expectName(message string) bool {
	if p.cur.Type == lexer.TokenIdent || (p.cur.Type >= lexer.TokenKwImport && p.cur.Type <= lexer.TokenKwFalse) {
		p.next()
		return true
	}
	p.errorf(p.cur, "%s", message)
	return false
}

func (p *Parser) next() {
	p.cur = p.lex.Next()
	if p.cur.Type == lexer.TokenIllegal && p.cur.Literal == "/*" && !p.diags.HasErrors() {
		p.errorf(p.cur, "unterminated block comment")
		// more input may close it
		p.errAtEOF = true
	}
}

func (p *Parser) errorf(tok lexer.Token, format string, args ...any) {
	if p.diags.HasErrors() {
		return
	}
	p.errAtEOF = tok.Type == lexer.TokenEOF
	p.diags = append(p.diags, diag.New(diag.KindSyntaxError, p.span(tok), format, args...))
}

func (p *Parser) pos(tok lexer.Token) ast.Pos {
	return ast.Pos{Line: tok.Start.Line, Column: tok.Start.Column}
}

func (p *Parser) span(tok lexer.Token) diag.Span {
	return diag.Span{
		File: p.filename,
		Start: diag.Position{
			Line:   tok.Start.Line,
			Column: tok.Start.Column,
		},
		End: diag.Position{
			Line:   tok.End.Line,
			Column: tok.End.Column,
		},
	}
}

// Incomplete reports whether src fails to parse only because input ended
// early, as with an unclosed class body.
func Incomplete(filename string, src []byte) bool {
	p := &Parser{
		filename: filename,
		lex:      lexer.New(src),
	}
	p.next()
	p.parseFile()
	return p.errAtEOF
}
