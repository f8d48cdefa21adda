// Package parser implements the recursive-descent/Pratt parser for the
// hammer scripting language.
//
// It consumes a token stream from [lexer.Lexer] and builds an [ast.Module].
// Expression parsing follows the same precedence-climbing scheme as the
// teacher it is grounded on: a table of binding powers plus a prefix/infix
// parse function registry, extended here with assignment, logical
// short-circuit operators, field access, and the keyword-led container
// literals hammer adds on top of the Monkey grammar.
package parser

import (
	"fmt"
	"strconv"

	"github.com/dr8co/hammer/ast"
	"github.com/dr8co/hammer/lexer"
	"github.com/dr8co/hammer/token"
)

// Operator precedence levels, lowest to highest binding power.
const (
	_ int = iota
	Lowest
	Assign      // =
	LogicalOr   // ||
	LogicalAnd  // &&
	Equals      // == !=
	LessGreater // < > <= >=
	Sum         // + -
	Product     // * / %
	Prefix      // -x !x
	Call        // f(x)
	Index       // arr[x] rec.x
)

var precedences = map[token.Type]int{
	token.ASSIGN:   Assign,
	token.OR:       LogicalOr,
	token.AND:      LogicalAnd,
	token.EQ:       Equals,
	token.NOT_EQ:   Equals,
	token.LT:       LessGreater,
	token.GT:       LessGreater,
	token.LTE:      LessGreater,
	token.GTE:      LessGreater,
	token.PLUS:     Sum,
	token.MINUS:    Sum,
	token.SLASH:    Product,
	token.ASTERISK: Product,
	token.PERCENT:  Product,
	token.LPAREN:   Call,
	token.LBRACKET: Index,
	token.DOT:      Index,
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

// Parser turns a token stream into an [ast.Module].
type Parser struct {
	l      *lexer.Lexer
	errors []string

	currentToken token.Token
	peekToken    token.Token

	nextID ast.NodeID
	events []Event

	prefixParseFns map[token.Type]prefixParseFn
	infixParseFns  map[token.Type]infixParseFn
}

// New creates a Parser reading tokens from l.
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l, errors: []string{}}

	p.prefixParseFns = make(map[token.Type]prefixParseFn)
	p.registerPrefix(token.IDENT, p.parseIdentifier)
	p.registerPrefix(token.INT, p.parseIntegerLiteral)
	p.registerPrefix(token.FLOAT, p.parseFloatLiteral)
	p.registerPrefix(token.STRING, p.parseStringLiteral)
	p.registerPrefix(token.FSTRING_BEGIN, p.parseFormatExpr)
	p.registerPrefix(token.BANG, p.parsePrefixExpression)
	p.registerPrefix(token.MINUS, p.parsePrefixExpression)
	p.registerPrefix(token.TRUE, p.parseBoolLiteral)
	p.registerPrefix(token.FALSE, p.parseBoolLiteral)
	p.registerPrefix(token.NULL, p.parseNullLiteral)
	p.registerPrefix(token.LPAREN, p.parseGroupedOrTuple)
	p.registerPrefix(token.IF, p.parseIfExpression)
	p.registerPrefix(token.FUNC, p.parseFuncLiteral)
	p.registerPrefix(token.LBRACKET, p.parseArrayLiteral)
	p.registerPrefix(token.LBRACE, p.parseBlockAsExpression)
	p.registerPrefix(token.MAP, p.parseMapLiteral)
	p.registerPrefix(token.SET, p.parseSetLiteral)
	p.registerPrefix(token.RECORD, p.parseRecordLiteral)

	p.infixParseFns = make(map[token.Type]infixParseFn)
	p.registerInfix(token.PLUS, p.parseInfixExpression)
	p.registerInfix(token.MINUS, p.parseInfixExpression)
	p.registerInfix(token.SLASH, p.parseInfixExpression)
	p.registerInfix(token.ASTERISK, p.parseInfixExpression)
	p.registerInfix(token.PERCENT, p.parseInfixExpression)
	p.registerInfix(token.EQ, p.parseInfixExpression)
	p.registerInfix(token.NOT_EQ, p.parseInfixExpression)
	p.registerInfix(token.LT, p.parseInfixExpression)
	p.registerInfix(token.LTE, p.parseInfixExpression)
	p.registerInfix(token.GT, p.parseInfixExpression)
	p.registerInfix(token.GTE, p.parseInfixExpression)
	p.registerInfix(token.AND, p.parseLogicalExpression)
	p.registerInfix(token.OR, p.parseLogicalExpression)
	p.registerInfix(token.ASSIGN, p.parseAssignExpression)
	p.registerInfix(token.LPAREN, p.parseCallExpression)
	p.registerInfix(token.LBRACKET, p.parseIndexExpression)
	p.registerInfix(token.DOT, p.parseFieldExpression)

	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) registerPrefix(t token.Type, fn prefixParseFn) { p.prefixParseFns[t] = fn }
func (p *Parser) registerInfix(t token.Type, fn infixParseFn)   { p.infixParseFns[t] = fn }

// Errors returns the accumulated list of parse error messages.
func (p *Parser) Errors() []string { return p.errors }

func (p *Parser) id() ast.NodeID {
	p.nextID++
	return p.nextID
}

func (p *Parser) base() ast.Base {
	return ast.Base{NID: p.id(), Tok: p.currentToken}
}

func (p *Parser) nextToken() {
	p.currentToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) currentTokenIs(t token.Type) bool { return p.currentToken.Type == t }
func (p *Parser) peekTokenIs(t token.Type) bool    { return p.peekToken.Type == t }

func (p *Parser) expectPeek(t token.Type) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(t)
	return false
}

func (p *Parser) peekError(t token.Type) {
	msg := fmt.Sprintf("line %d: expected next token to be %s, got %s instead",
		p.peekToken.Line, t, p.peekToken.Type)
	p.errors = append(p.errors, msg)
}

func (p *Parser) noPrefixParseFnError(t token.Type) {
	msg := fmt.Sprintf("line %d: no prefix parse function for %s found", p.currentToken.Line, t)
	p.errors = append(p.errors, msg)
}

func (p *Parser) peekPrecedence() int {
	if pr, ok := precedences[p.peekToken.Type]; ok {
		return pr
	}
	return Lowest
}

func (p *Parser) currentPrecedence() int {
	if pr, ok := precedences[p.currentToken.Type]; ok {
		return pr
	}
	return Lowest
}

// ParseModule parses a complete source file into an [ast.Module].
func (p *Parser) ParseModule() *ast.Module {
	mod := &ast.Module{Base: p.base()}
	p.emit(Enter, mod.ID(), "Module")
	for !p.currentTokenIs(token.EOF) {
		item := p.parseItem()
		if item != nil {
			mod.Items = append(mod.Items, item)
		}
		p.nextToken()
	}
	p.emit(Leave, mod.ID(), "Module")
	return mod
}

func (p *Parser) parseItem() ast.Item {
	exported := false
	if p.currentTokenIs(token.EXPORT) {
		exported = true
		p.nextToken()
	}

	switch p.currentToken.Type {
	case token.FUNC:
		return p.parseFuncItem(exported)
	case token.VAR, token.CONST:
		return p.parseVarItem(exported)
	case token.IMPORT:
		if exported {
			p.errors = append(p.errors, "line "+strconv.Itoa(p.currentToken.Line)+": import cannot be exported")
		}
		return p.parseImportItem()
	default:
		p.errors = append(p.errors, fmt.Sprintf("line %d: expected a top-level item, got %s",
			p.currentToken.Line, p.currentToken.Type))
		return nil
	}
}

func (p *Parser) parseFuncItem(exported bool) *ast.FuncItem {
	b := p.base()
	item := &ast.FuncItem{Base: b, Exported: exported}
	p.emit(Enter, item.ID(), "FuncItem")
	defer p.emit(Leave, item.ID(), "FuncItem")

	if !p.expectPeek(token.IDENT) {
		return item
	}
	item.Name = p.currentToken.Literal

	if !p.expectPeek(token.LPAREN) {
		return item
	}
	item.Params = p.parseFunctionParameters()

	if !p.expectPeek(token.LBRACE) {
		return item
	}
	item.Body = p.parseBlockExpr()
	return item
}

func (p *Parser) parseVarItem(exported bool) *ast.VarItem {
	b := p.base()
	item := &ast.VarItem{Base: b, Exported: exported, Const: p.currentTokenIs(token.CONST)}
	p.emit(Enter, item.ID(), "VarItem")
	defer p.emit(Leave, item.ID(), "VarItem")

	if !p.expectPeek(token.IDENT) {
		return item
	}
	item.Name = &ast.Identifier{Base: p.base(), Value: p.currentToken.Literal}

	if !p.expectPeek(token.ASSIGN) {
		return item
	}
	p.nextToken()
	item.Value = p.parseExpression(Lowest)

	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
	}
	return item
}

func (p *Parser) parseImportItem() *ast.ImportItem {
	b := p.base()
	item := &ast.ImportItem{Base: b}
	p.emit(Enter, item.ID(), "ImportItem")
	defer p.emit(Leave, item.ID(), "ImportItem")

	if !p.expectPeek(token.IDENT) {
		return item
	}
	item.Name = p.currentToken.Literal

	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
	}
	return item
}

// parseStatement parses one local statement, used inside [ast.BlockExpr].
func (p *Parser) parseStatement() ast.Statement {
	switch p.currentToken.Type {
	case token.VAR, token.CONST:
		return p.parseVarDeclStatement()
	case token.RETURN:
		return p.parseReturnStatement()
	case token.BREAK:
		return p.parseBreakStatement()
	case token.CONTINUE:
		return p.parseContinueStatement()
	case token.WHILE:
		return p.parseWhileStatement()
	case token.FOR:
		return p.parseForStatement()
	default:
		return p.parseExprStatement()
	}
}

func (p *Parser) parseVarDeclStatement() *ast.VarDeclStmt {
	b := p.base()
	stmt := &ast.VarDeclStmt{Base: b, Const: p.currentTokenIs(token.CONST)}
	p.emit(Enter, stmt.ID(), "VarDeclStmt")
	defer p.emit(Leave, stmt.ID(), "VarDeclStmt")

	if !p.expectPeek(token.IDENT) {
		return stmt
	}
	stmt.Name = &ast.Identifier{Base: p.base(), Value: p.currentToken.Literal}

	if !p.expectPeek(token.ASSIGN) {
		return stmt
	}
	p.nextToken()
	stmt.Value = p.parseExpression(Lowest)

	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parseReturnStatement() *ast.ReturnStmt {
	b := p.base()
	stmt := &ast.ReturnStmt{Base: b}
	p.emit(Enter, stmt.ID(), "ReturnStmt")
	defer p.emit(Leave, stmt.ID(), "ReturnStmt")

	if !p.peekTokenIs(token.SEMICOLON) && !p.peekTokenIs(token.RBRACE) {
		p.nextToken()
		stmt.Value = p.parseExpression(Lowest)
	}
	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parseBreakStatement() *ast.BreakStmt {
	stmt := &ast.BreakStmt{Base: p.base()}
	p.emit(Enter, stmt.ID(), "BreakStmt")
	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
	}
	p.emit(Leave, stmt.ID(), "BreakStmt")
	return stmt
}

func (p *Parser) parseContinueStatement() *ast.ContinueStmt {
	stmt := &ast.ContinueStmt{Base: p.base()}
	p.emit(Enter, stmt.ID(), "ContinueStmt")
	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
	}
	p.emit(Leave, stmt.ID(), "ContinueStmt")
	return stmt
}

func (p *Parser) parseWhileStatement() *ast.WhileStmt {
	b := p.base()
	stmt := &ast.WhileStmt{Base: b}
	p.emit(Enter, stmt.ID(), "WhileStmt")
	defer p.emit(Leave, stmt.ID(), "WhileStmt")

	if !p.expectPeek(token.LPAREN) {
		return stmt
	}
	p.nextToken()
	stmt.Cond = p.parseExpression(Lowest)
	if !p.expectPeek(token.RPAREN) {
		return stmt
	}
	if !p.expectPeek(token.LBRACE) {
		return stmt
	}
	stmt.Body = p.parseBlockExpr()
	return stmt
}

// parseForStatement parses `for (init; cond; post) body`. Any of init, cond,
// or post may be omitted but the two separating semicolons are mandatory.
func (p *Parser) parseForStatement() *ast.ForStmt {
	b := p.base()
	stmt := &ast.ForStmt{Base: b}
	p.emit(Enter, stmt.ID(), "ForStmt")
	defer p.emit(Leave, stmt.ID(), "ForStmt")

	if !p.expectPeek(token.LPAREN) {
		return stmt
	}

	if !p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
		stmt.Init = p.parseStatement()
	} else {
		p.nextToken()
	}
	if !p.currentTokenIs(token.SEMICOLON) && !p.expectPeek(token.SEMICOLON) {
		return stmt
	}

	if !p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
		stmt.Cond = p.parseExpression(Lowest)
	}
	if !p.expectPeek(token.SEMICOLON) {
		return stmt
	}

	if !p.peekTokenIs(token.RPAREN) {
		p.nextToken()
		stmt.Post = p.parseExprStatement()
	}
	if !p.expectPeek(token.RPAREN) {
		return stmt
	}
	if !p.expectPeek(token.LBRACE) {
		return stmt
	}
	stmt.Body = p.parseBlockExpr()
	return stmt
}

func (p *Parser) parseExprStatement() *ast.ExprStmt {
	b := p.base()
	stmt := &ast.ExprStmt{Base: b}
	p.emit(Enter, stmt.ID(), "ExprStmt")
	stmt.Expression = p.parseExpression(Lowest)
	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
	}
	p.emit(Leave, stmt.ID(), "ExprStmt")
	return stmt
}

// parseBlockExpr parses a `{ ... }` block given that currentToken is the
// opening '{'. The last statement is reinterpreted as the block's tail
// expression if it is a bare [ast.ExprStmt] not followed by its own
// semicolon, matching the "last bare expression is the block's value" rule.
func (p *Parser) parseBlockExpr() *ast.BlockExpr {
	b := p.base()
	block := &ast.BlockExpr{Base: b}
	p.emit(Enter, block.ID(), "BlockExpr")
	defer p.emit(Leave, block.ID(), "BlockExpr")

	p.nextToken()
	for !p.currentTokenIs(token.RBRACE) && !p.currentTokenIs(token.EOF) {
		hadSemicolon := false
		stmt := p.parseStatementTrackingSemicolon(&hadSemicolon)
		if stmt != nil {
			if es, ok := stmt.(*ast.ExprStmt); ok && !hadSemicolon && p.peekTokenIs(token.RBRACE) {
				block.Tail = es.Expression
			} else {
				block.Statements = append(block.Statements, stmt)
			}
		}
		p.nextToken()
	}
	return block
}

// parseStatementTrackingSemicolon behaves like parseStatement but also
// reports, via sawSemicolon, whether the statement consumed a trailing ';'.
func (p *Parser) parseStatementTrackingSemicolon(sawSemicolon *bool) ast.Statement {
	switch p.currentToken.Type {
	case token.VAR, token.CONST, token.RETURN, token.BREAK, token.CONTINUE, token.WHILE, token.FOR:
		*sawSemicolon = true
		return p.parseStatement()
	default:
		b := p.base()
		stmt := &ast.ExprStmt{Base: b}
		p.emit(Enter, stmt.ID(), "ExprStmt")
		stmt.Expression = p.parseExpression(Lowest)
		if p.peekTokenIs(token.SEMICOLON) {
			p.nextToken()
			*sawSemicolon = true
		}
		p.emit(Leave, stmt.ID(), "ExprStmt")
		return stmt
	}
}

// parseBlockAsExpression lets `{ ... }` appear directly in expression
// position (e.g. as a standalone scoping construct).
func (p *Parser) parseBlockAsExpression() ast.Expression {
	return p.parseBlockExpr()
}

func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix := p.prefixParseFns[p.currentToken.Type]
	if prefix == nil {
		p.noPrefixParseFnError(p.currentToken.Type)
		return nil
	}
	leftExp := prefix()

	for !p.peekTokenIs(token.SEMICOLON) && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return leftExp
		}
		p.nextToken()
		leftExp = infix(leftExp)
	}
	return leftExp
}

func (p *Parser) parseIdentifier() ast.Expression {
	return &ast.Identifier{Base: p.base(), Value: p.currentToken.Literal}
}

func (p *Parser) parseIntegerLiteral() ast.Expression {
	lit := &ast.IntegerLiteral{Base: p.base()}
	value, err := strconv.ParseInt(p.currentToken.Literal, 0, 64)
	if err != nil {
		p.errors = append(p.errors, fmt.Sprintf("line %d: could not parse %q as integer",
			p.currentToken.Line, p.currentToken.Literal))
		return nil
	}
	lit.Value = value
	return lit
}

func (p *Parser) parseFloatLiteral() ast.Expression {
	lit := &ast.FloatLiteral{Base: p.base()}
	value, err := strconv.ParseFloat(p.currentToken.Literal, 64)
	if err != nil {
		p.errors = append(p.errors, fmt.Sprintf("line %d: could not parse %q as float",
			p.currentToken.Line, p.currentToken.Literal))
		return nil
	}
	lit.Value = value
	return lit
}

func (p *Parser) parseStringLiteral() ast.Expression {
	return &ast.StringLiteral{Base: p.base(), Value: p.currentToken.Literal}
}

// parseFormatExpr parses an interpolated string starting at a FSTRING_BEGIN
// token, alternating literal chunks with recursively-parsed expression
// holes until it consumes the matching FSTRING_END.
func (p *Parser) parseFormatExpr() ast.Expression {
	b := p.base()
	fe := &ast.FormatExpr{Base: b}
	p.emit(Enter, fe.ID(), "FormatExpr")
	defer p.emit(Leave, fe.ID(), "FormatExpr")

	fe.Parts = append(fe.Parts, ast.FormatPart{Literal: p.currentToken.Literal})
	for {
		p.nextToken()
		expr := p.parseExpression(Lowest)
		fe.Parts = append(fe.Parts, ast.FormatPart{Expr: expr})

		if !p.expectPeek(token.FSTRING_MID) {
			if p.peekTokenIs(token.FSTRING_END) {
				p.nextToken()
				fe.Parts = append(fe.Parts, ast.FormatPart{Literal: p.currentToken.Literal})
				break
			}
			p.errors = append(p.errors, fmt.Sprintf("line %d: unterminated interpolated string", p.currentToken.Line))
			break
		}
		fe.Parts = append(fe.Parts, ast.FormatPart{Literal: p.currentToken.Literal})
	}
	return fe
}

func (p *Parser) parseBoolLiteral() ast.Expression {
	return &ast.BoolLiteral{Base: p.base(), Value: p.currentTokenIs(token.TRUE)}
}

func (p *Parser) parseNullLiteral() ast.Expression {
	return &ast.NullLiteral{Base: p.base()}
}

func (p *Parser) parsePrefixExpression() ast.Expression {
	b := p.base()
	expr := &ast.PrefixExpr{Base: b, Operator: p.currentToken.Literal}
	p.nextToken()
	expr.Right = p.parseExpression(Prefix)
	return expr
}

func (p *Parser) parseInfixExpression(left ast.Expression) ast.Expression {
	b := p.base()
	expr := &ast.InfixExpr{Base: b, Left: left, Operator: p.currentToken.Literal}
	precedence := p.currentPrecedence()
	p.nextToken()
	expr.Right = p.parseExpression(precedence)
	return expr
}

func (p *Parser) parseLogicalExpression(left ast.Expression) ast.Expression {
	b := p.base()
	expr := &ast.LogicalExpr{Base: b, Left: left, Operator: p.currentToken.Literal}
	precedence := p.currentPrecedence()
	p.nextToken()
	expr.Right = p.parseExpression(precedence)
	return expr
}

// parseAssignExpression parses `target = value` right-associatively: the
// right-hand side is parsed at one precedence below Assign so chained
// assignments (`a = b = c`) associate to the right.
func (p *Parser) parseAssignExpression(left ast.Expression) ast.Expression {
	b := p.base()
	expr := &ast.AssignExpr{Base: b, Target: left}
	p.nextToken()
	expr.Value = p.parseExpression(Assign - 1)
	return expr
}

// parseGroupedOrTuple parses `(expr)` as a grouped expression, or
// `(a, b, ...)` / `()` as a [ast.TupleLiteral].
func (p *Parser) parseGroupedOrTuple() ast.Expression {
	b := p.base()
	p.nextToken()

	if p.currentTokenIs(token.RPAREN) {
		return &ast.TupleLiteral{Base: b}
	}

	first := p.parseExpression(Lowest)
	if !p.peekTokenIs(token.COMMA) {
		if !p.expectPeek(token.RPAREN) {
			return nil
		}
		return first
	}

	tup := &ast.TupleLiteral{Base: b, Elements: []ast.Expression{first}}
	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		tup.Elements = append(tup.Elements, p.parseExpression(Lowest))
	}
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return tup
}

func (p *Parser) parseIfExpression() ast.Expression {
	b := p.base()
	expr := &ast.IfExpr{Base: b}
	p.emit(Enter, expr.ID(), "IfExpr")
	defer p.emit(Leave, expr.ID(), "IfExpr")

	if !p.expectPeek(token.LPAREN) {
		return expr
	}
	p.nextToken()
	expr.Cond = p.parseExpression(Lowest)
	if !p.expectPeek(token.RPAREN) {
		return expr
	}
	if !p.expectPeek(token.LBRACE) {
		return expr
	}
	expr.Then = p.parseBlockExpr()

	if p.peekTokenIs(token.ELSE) {
		p.nextToken()
		switch {
		case p.peekTokenIs(token.IF):
			p.nextToken()
			expr.Else = p.parseIfExpression()
		case p.expectPeek(token.LBRACE):
			expr.Else = p.parseBlockExpr()
		}
	}
	return expr
}

func (p *Parser) parseFuncLiteral() ast.Expression {
	b := p.base()
	lit := &ast.FuncLiteral{Base: b}
	p.emit(Enter, lit.ID(), "FuncLiteral")
	defer p.emit(Leave, lit.ID(), "FuncLiteral")

	if p.peekTokenIs(token.IDENT) {
		p.nextToken()
		lit.Name = p.currentToken.Literal
	}

	if !p.expectPeek(token.LPAREN) {
		return lit
	}
	lit.Params = p.parseFunctionParameters()

	if !p.expectPeek(token.LBRACE) {
		return lit
	}
	lit.Body = p.parseBlockExpr()
	return lit
}

func (p *Parser) parseFunctionParameters() []*ast.Identifier {
	var params []*ast.Identifier

	if p.peekTokenIs(token.RPAREN) {
		p.nextToken()
		return params
	}
	p.nextToken()
	params = append(params, &ast.Identifier{Base: p.base(), Value: p.currentToken.Literal})

	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		params = append(params, &ast.Identifier{Base: p.base(), Value: p.currentToken.Literal})
	}

	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return params
}

func (p *Parser) parseCallExpression(callee ast.Expression) ast.Expression {
	b := p.base()
	expr := &ast.CallExpr{Base: b, Callee: callee}
	expr.Args = p.parseExpressionList(token.RPAREN)
	return expr
}

func (p *Parser) parseArrayLiteral() ast.Expression {
	b := p.base()
	arr := &ast.ArrayLiteral{Base: b}
	arr.Elements = p.parseExpressionList(token.RBRACKET)
	return arr
}

func (p *Parser) parseExpressionList(end token.Type) []ast.Expression {
	var list []ast.Expression

	if p.peekTokenIs(end) {
		p.nextToken()
		return list
	}
	p.nextToken()
	list = append(list, p.parseExpression(Lowest))

	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		list = append(list, p.parseExpression(Lowest))
	}

	if !p.expectPeek(end) {
		return nil
	}
	return list
}

func (p *Parser) parseIndexExpression(left ast.Expression) ast.Expression {
	b := p.base()
	expr := &ast.IndexExpr{Base: b, Left: left}
	p.nextToken()
	expr.Index = p.parseExpression(Lowest)
	if !p.expectPeek(token.RBRACKET) {
		return nil
	}
	return expr
}

func (p *Parser) parseFieldExpression(left ast.Expression) ast.Expression {
	b := p.base()
	expr := &ast.FieldExpr{Base: b, Left: left}
	if !p.expectPeek(token.IDENT) {
		return nil
	}
	expr.Name = p.currentToken.Literal
	return expr
}

// parseRecordLiteral parses `record { name: value, ... }`, entered with
// currentToken on the `record` keyword.
func (p *Parser) parseRecordLiteral() ast.Expression {
	b := p.base()
	rec := &ast.RecordLiteral{Base: b}
	p.emit(Enter, rec.ID(), "RecordLiteral")
	defer p.emit(Leave, rec.ID(), "RecordLiteral")

	if !p.expectPeek(token.LBRACE) {
		return rec
	}
	if p.peekTokenIs(token.RBRACE) {
		p.nextToken()
		return rec
	}
	p.nextToken()
	rec.Fields = append(rec.Fields, p.parseRecordField())
	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		rec.Fields = append(rec.Fields, p.parseRecordField())
	}
	if !p.expectPeek(token.RBRACE) {
		return rec
	}
	return rec
}

func (p *Parser) parseRecordField() ast.RecordField {
	field := ast.RecordField{Name: p.currentToken.Literal}
	if !p.expectPeek(token.COLON) {
		return field
	}
	p.nextToken()
	field.Value = p.parseExpression(Lowest)
	return field
}

// parseMapLiteral parses `map { key: value, ... }`, entered with
// currentToken on the `map` keyword.
func (p *Parser) parseMapLiteral() ast.Expression {
	b := p.base()
	m := &ast.MapLiteral{Base: b}
	p.emit(Enter, m.ID(), "MapLiteral")
	defer p.emit(Leave, m.ID(), "MapLiteral")

	if !p.expectPeek(token.LBRACE) {
		return m
	}
	if p.peekTokenIs(token.RBRACE) {
		p.nextToken()
		return m
	}
	p.nextToken()
	m.Pairs = append(m.Pairs, p.parseMapPair())
	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		m.Pairs = append(m.Pairs, p.parseMapPair())
	}
	if !p.expectPeek(token.RBRACE) {
		return m
	}
	return m
}

func (p *Parser) parseMapPair() ast.MapPair {
	key := p.parseExpression(Lowest)
	pair := ast.MapPair{Key: key}
	if !p.expectPeek(token.COLON) {
		return pair
	}
	p.nextToken()
	pair.Value = p.parseExpression(Lowest)
	return pair
}

// parseSetLiteral parses `set { elem, ... }`, entered with currentToken on
// the `set` keyword.
func (p *Parser) parseSetLiteral() ast.Expression {
	b := p.base()
	s := &ast.SetLiteral{Base: b}
	p.emit(Enter, s.ID(), "SetLiteral")
	defer p.emit(Leave, s.ID(), "SetLiteral")

	if !p.expectPeek(token.LBRACE) {
		return s
	}
	s.Elements = p.parseExpressionListBrace()
	return s
}

// parseExpressionListBrace is parseExpressionList specialized to a
// brace-delimited list, since RecordLiteral/MapLiteral/SetLiteral all use
// '{' '}' rather than the bracket/paren delimiters [parseExpressionList]
// handles.
func (p *Parser) parseExpressionListBrace() []ast.Expression {
	var list []ast.Expression

	if p.peekTokenIs(token.RBRACE) {
		p.nextToken()
		return list
	}
	p.nextToken()
	list = append(list, p.parseExpression(Lowest))

	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		list = append(list, p.parseExpression(Lowest))
	}

	if !p.expectPeek(token.RBRACE) {
		return nil
	}
	return list
}
