package frontend

import (
	"loxc/internal/ast"
)

// maxArgs bounds both parameter and argument lists; spec.md: 255 parameters/arguments are
// accepted, 256 is reported as a (non-fatal) error.
const maxArgs = 255

// parseError unwinds the recursive descent call stack to the nearest synchronize point. It is
// never propagated past Parse: every call site that can produce one recovers via synchronize.
type parseError struct{}

func (parseError) Error() string { return "parse error" }

// parser is a recursive descent, precedence-climbing parser over a token stream pulled lazily
// from a scanner goroutine. current/previous give one token of lookahead/lookbehind, which is
// all the grammar in spec.md §4.2 requires.
type parser struct {
	s        *scanner
	current  Token
	previous Token
}

// Parse scans and parses src into a list of top-level declarations. Errors are reported via the
// package reporter (report/errorAt) and accumulate in HadError(); Parse itself never returns an
// error value, matching the "collect everything, abort before next phase" pipeline discipline in
// spec.md §7.
func Parse(src string) []ast.Stmt {
	ResetErrors()
	p := &parser{s: newScanner(src)}
	p.advance()

	var stmts []ast.Stmt
	for !p.isAtEnd() {
		if d := p.declaration(); d != nil {
			stmts = append(stmts, d)
		}
	}
	return stmts
}

// TokenStream drains the scanner over src and returns a human-readable token dump (consumed by
// the -ts CLI flag).
func TokenStream(src string) []string {
	var lines []string
	for _, t := range scanAll(src) {
		if t.Kind == End {
			break
		}
		lines = append(lines, formatToken(t))
	}
	return lines
}

// --------------------------
// ----- Token plumbing -----
// --------------------------

func (p *parser) advance() Token {
	p.previous = p.current
	p.current = p.s.nextItem()
	return p.previous
}

func (p *parser) check(k TokenKind) bool {
	if p.isAtEnd() {
		return k == End
	}
	return p.current.Kind == k
}

func (p *parser) match(kinds ...TokenKind) bool {
	for _, k := range kinds {
		if p.check(k) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *parser) consume(k TokenKind, msg string) Token {
	if p.check(k) {
		return p.advance()
	}
	p.fail(p.current, msg)
	panic(parseError{})
}

func (p *parser) isAtEnd() bool { return p.current.Kind == End }

func (p *parser) fail(t Token, msg string) {
	errorAt(t, msg)
}

// synchronize discards tokens until a statement boundary, so a single malformed statement doesn't
// suppress diagnostics for the rest of the file.
func (p *parser) synchronize() {
	p.advance()
	for !p.isAtEnd() {
		if p.previous.Kind == Semicolon {
			return
		}
		switch p.current.Kind {
		case Class, Fun, Var, For, If, While, Print, Return:
			return
		}
		p.advance()
	}
}

// --------------------------
// ----- Declarations   -----
// --------------------------

func (p *parser) declaration() (result ast.Stmt) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(parseError); ok {
				p.synchronize()
				result = nil
				return
			}
			panic(r)
		}
	}()

	switch {
	case p.match(Class):
		return p.classDecl()
	case p.match(Fun):
		return p.function(ast.FunctionPlain)
	case p.match(Var):
		return p.varDecl()
	default:
		return p.statement()
	}
}

func (p *parser) classDecl() ast.Stmt {
	line := p.previous.Line
	name := p.consume(Identifier, "Expect class name.")

	var super *ast.Variable
	if p.match(Less) {
		sup := p.consume(Identifier, "Expect superclass name.")
		super = ast.NewVariable(sup.Line, sup.Lexeme)
	}

	p.consume(LeftBrace, "Expect '{' before class body.")
	var methods []*ast.FunctionStmt
	for !p.check(RightBrace) && !p.isAtEnd() {
		typ := ast.FunctionMethod
		m := p.function(typ)
		if fn, ok := m.(*ast.FunctionStmt); ok {
			if fn.Name == "init" {
				fn.Type = ast.FunctionInitializer
			}
			methods = append(methods, fn)
		}
	}
	p.consume(RightBrace, "Expect '}' after class body.")
	return ast.NewClassStmt(line, name.Lexeme, super, methods)
}

func (p *parser) function(typ ast.FunctionType) ast.Stmt {
	kind := "function"
	if typ != ast.FunctionPlain {
		kind = "method"
	}
	name := p.consume(Identifier, "Expect "+kind+" name.")
	p.consume(LeftParen, "Expect '(' after "+kind+" name.")
	var params []string
	if !p.check(RightParen) {
		for {
			if len(params) >= maxArgs {
				p.fail(p.current, "Can't have more than 255 parameters.")
			}
			pn := p.consume(Identifier, "Expect parameter name.")
			params = append(params, pn.Lexeme)
			if !p.match(Comma) {
				break
			}
		}
	}
	p.consume(RightParen, "Expect ')' after parameters.")
	p.consume(LeftBrace, "Expect '{' before "+kind+" body.")
	body := p.block()
	return ast.NewFunctionStmt(name.Line, name.Lexeme, params, body, typ)
}

func (p *parser) varDecl() ast.Stmt {
	line := p.previous.Line
	name := p.consume(Identifier, "Expect variable name.")
	var init ast.Expr
	if p.match(Equal) {
		init = p.expression()
	}
	p.consume(Semicolon, "Expect ';' after variable declaration.")
	return ast.NewVarStmt(line, name.Lexeme, init)
}

// --------------------------
// ----- Statements     -----
// --------------------------

func (p *parser) statement() ast.Stmt {
	switch {
	case p.match(Print):
		return p.printStmt()
	case p.match(LeftBrace):
		line := p.previous.Line
		return ast.NewBlockStmt(line, p.block())
	case p.match(If):
		return p.ifStmt()
	case p.match(While):
		return p.whileStmt()
	case p.match(For):
		return p.forStmt()
	case p.match(Return):
		return p.returnStmt()
	default:
		return p.exprStmt()
	}
}

func (p *parser) printStmt() ast.Stmt {
	line := p.previous.Line
	v := p.expression()
	p.consume(Semicolon, "Expect ';' after value.")
	return ast.NewPrintStmt(line, v)
}

func (p *parser) exprStmt() ast.Stmt {
	e := p.expression()
	p.consume(Semicolon, "Expect ';' after expression.")
	return ast.NewExpressionStmt(e.Line(), e)
}

func (p *parser) block() []ast.Stmt {
	var stmts []ast.Stmt
	for !p.check(RightBrace) && !p.isAtEnd() {
		if d := p.declaration(); d != nil {
			stmts = append(stmts, d)
		}
	}
	p.consume(RightBrace, "Expect '}' after block.")
	return stmts
}

func (p *parser) ifStmt() ast.Stmt {
	line := p.previous.Line
	p.consume(LeftParen, "Expect '(' after 'if'.")
	cond := p.expression()
	p.consume(RightParen, "Expect ')' after if condition.")
	then := p.statement()
	var els ast.Stmt
	if p.match(Else) {
		els = p.statement()
	}
	return ast.NewIfStmt(line, cond, then, els)
}

func (p *parser) whileStmt() ast.Stmt {
	line := p.previous.Line
	p.consume(LeftParen, "Expect '(' after 'while'.")
	cond := p.expression()
	p.consume(RightParen, "Expect ')' after condition.")
	body := p.statement()
	return ast.NewWhileStmt(line, cond, body)
}

// forStmt desugars `for (init; cond; inc) body` at parse time into
// `{ init; while (cond) { body; inc; } }`, with cond defaulting to the literal `true`.
func (p *parser) forStmt() ast.Stmt {
	line := p.previous.Line
	p.consume(LeftParen, "Expect '(' after 'for'.")

	var init ast.Stmt
	switch {
	case p.match(Semicolon):
		init = nil
	case p.match(Var):
		init = p.varDecl()
	default:
		init = p.exprStmt()
	}

	var cond ast.Expr
	if !p.check(Semicolon) {
		cond = p.expression()
	}
	p.consume(Semicolon, "Expect ';' after loop condition.")

	var inc ast.Expr
	if !p.check(RightParen) {
		inc = p.expression()
	}
	p.consume(RightParen, "Expect ')' after for clauses.")

	body := p.statement()

	if inc != nil {
		body = ast.NewBlockStmt(line, []ast.Stmt{body, ast.NewExpressionStmt(inc.Line(), inc)})
	}
	if cond == nil {
		cond = ast.NewLiteral(line, true)
	}
	body = ast.NewWhileStmt(line, cond, body)

	if init != nil {
		body = ast.NewBlockStmt(line, []ast.Stmt{init, body})
	}
	return body
}

func (p *parser) returnStmt() ast.Stmt {
	line := p.previous.Line
	var value ast.Expr
	if !p.check(Semicolon) {
		value = p.expression()
	}
	p.consume(Semicolon, "Expect ';' after return value.")
	return ast.NewReturnStmt(line, value)
}

// --------------------------
// ----- Expressions    -----
// --------------------------

func (p *parser) expression() ast.Expr { return p.assignment() }

// assignment → ( call "." )? IDENT "=" assignment | logic_or
func (p *parser) assignment() ast.Expr {
	e := p.or()
	if p.match(Equal) {
		eq := p.previous
		value := p.assignment()

		switch target := e.(type) {
		case *ast.Variable:
			return ast.NewAssign(eq.Line, target.Name, value)
		case *ast.Get:
			return ast.NewSet(eq.Line, target.Object, target.Name, value)
		default:
			p.fail(eq, "Invalid assignment target.")
		}
	}
	return e
}

func (p *parser) or() ast.Expr {
	e := p.and()
	for p.match(Or) {
		op := p.previous
		right := p.and()
		e = ast.NewLogical(op.Line, e, "or", right)
	}
	return e
}

func (p *parser) and() ast.Expr {
	e := p.equality()
	for p.match(And) {
		op := p.previous
		right := p.equality()
		e = ast.NewLogical(op.Line, e, "and", right)
	}
	return e
}

func (p *parser) equality() ast.Expr {
	e := p.comparison()
	for p.match(BangEqual, EqualEqual) {
		op := p.previous
		right := p.comparison()
		e = ast.NewBinary(op.Line, e, op.Kind.String(), right)
	}
	return e
}

func (p *parser) comparison() ast.Expr {
	e := p.term()
	for p.match(Greater, GreaterEqual, Less, LessEqual) {
		op := p.previous
		right := p.term()
		e = ast.NewBinary(op.Line, e, op.Kind.String(), right)
	}
	return e
}

func (p *parser) term() ast.Expr {
	e := p.factor()
	for p.match(Plus, Minus) {
		op := p.previous
		right := p.factor()
		e = ast.NewBinary(op.Line, e, op.Kind.String(), right)
	}
	return e
}

func (p *parser) factor() ast.Expr {
	e := p.unary()
	for p.match(Star, Slash) {
		op := p.previous
		right := p.unary()
		e = ast.NewBinary(op.Line, e, op.Kind.String(), right)
	}
	return e
}

func (p *parser) unary() ast.Expr {
	if p.match(Bang, Minus) {
		op := p.previous
		right := p.unary()
		return ast.NewUnary(op.Line, op.Kind.String(), right)
	}
	return p.call()
}

// call → primary ( "(" args? ")" | "." IDENT )*
func (p *parser) call() ast.Expr {
	e := p.primary()
	for {
		switch {
		case p.match(LeftParen):
			e = p.finishCall(e)
		case p.match(Dot):
			name := p.consume(Identifier, "Expect property name after '.'.")
			e = ast.NewGet(name.Line, e, name.Lexeme)
		default:
			return e
		}
	}
}

func (p *parser) finishCall(callee ast.Expr) ast.Expr {
	var args []ast.Expr
	if !p.check(RightParen) {
		for {
			if len(args) >= maxArgs {
				p.fail(p.current, "Can't have more than 255 arguments.")
			}
			args = append(args, p.expression())
			if !p.match(Comma) {
				break
			}
		}
	}
	paren := p.consume(RightParen, "Expect ')' after arguments.")
	return ast.NewCall(paren.Line, callee, paren.Line, args)
}

func (p *parser) primary() ast.Expr {
	switch {
	case p.match(False, True, Nil, Number, String):
		return ast.NewLiteral(p.previous.Line, p.previous.Literal)
	case p.match(This):
		return ast.NewThis(p.previous.Line)
	case p.match(Super):
		line := p.previous.Line
		p.consume(Dot, "Expect '.' after 'super'.")
		method := p.consume(Identifier, "Expect superclass method name.")
		return ast.NewSuper(line, method.Lexeme)
	case p.match(Identifier):
		return ast.NewVariable(p.previous.Line, p.previous.Lexeme)
	case p.match(LeftParen):
		line := p.previous.Line
		e := p.expression()
		p.consume(RightParen, "Expect ')' after expression.")
		return ast.NewGrouping(line, e)
	}
	p.fail(p.current, "Expect expression.")
	panic(parseError{})
}
