// Package parser implements recursive-descent parsing over the lexer's
// token stream, building the ast package's tree. Grounded directly on
// _examples/original_source/исходники/синтаксис.rs's grammar and
// precedence-climbing binop parser (разобрать_биноп), carried over with
// Go error returns in place of Rust's Результат.
package parser

import (
	"strconv"

	"github.com/q60/good-training-language/internal/ast"
	"github.com/q60/good-training-language/internal/diag"
	"github.com/q60/good-training-language/internal/lexer"
)

type Parser struct {
	lx  *lexer.Lexer
	log *diag.Logger
	tok lexer.Token
	ok  bool // false once a parse error has been reported
}

// New constructs a Parser reading tokens from lx, reporting syntax
// errors to log.
func New(lx *lexer.Lexer, log *diag.Logger) *Parser {
	p := &Parser{lx: lx, log: log, ok: true}
	p.advance()
	return p
}

func (p *Parser) advance() { p.tok = p.lx.Next() }

func (p *Parser) fail(loc diag.Loc, format string, args ...interface{}) {
	p.ok = false
	p.log.Reportf(loc, diag.SeverityError, format, args...)
}

func (p *Parser) expect(kinds ...lexer.Kind) lexer.Token {
	for _, k := range kinds {
		if p.tok.Kind == k {
			t := p.tok
			p.advance()
			return t
		}
	}
	p.fail(p.tok.Loc, "неожиданный токен %v", p.tok.Kind)
	return p.tok
}

// Parse parses a whole compilation unit: top-level "пер"/"конст"
// globals interleaved with procedure definitions, until EOF.
func (p *Parser) Parse() (*ast.File, bool) {
	f := &ast.File{}
	for p.tok.Kind != lexer.EOF {
		switch p.tok.Kind {
		case lexer.KwVar:
			f.Globals = append(f.Globals, &ast.Global{Loc: p.tok.Loc, Decl: p.parseVarDecl()})
		case lexer.KwConst:
			f.Globals = append(f.Globals, &ast.Global{Loc: p.tok.Loc, Decl: p.parseConstDecl()})
		case lexer.Ident:
			f.Procedures = append(f.Procedures, p.parseProcedure())
		default:
			p.fail(p.tok.Loc, "ожидалось определение процедуры, переменной или константы, получено %v", p.tok.Kind)
			p.advance()
		}
	}
	return f, p.ok
}

func (p *Parser) parseVarDecl() *ast.VarDecl {
	loc := p.tok.Loc
	p.advance() // пер
	name := p.expect(lexer.Ident)
	p.expect(lexer.Colon)
	typ := p.parseType()
	var value ast.Expr
	switch p.expect(lexer.Semicolon, lexer.Assign).Kind {
	case lexer.Assign:
		value = p.parseExpr()
		p.expect(lexer.Semicolon)
	}
	return &ast.VarDecl{Loc: loc, Name: name.Text, Type: typ, Value: value}
}

func (p *Parser) parseConstDecl() *ast.ConstDecl {
	loc := p.tok.Loc
	p.advance() // конст
	name := p.expect(lexer.Ident)
	p.expect(lexer.Assign)
	value := p.parseExpr()
	p.expect(lexer.Semicolon)
	return &ast.ConstDecl{Loc: loc, Name: name.Text, Value: value}
}

func (p *Parser) parseType() ast.TypeExpr {
	loc := p.tok.Loc
	if p.tok.Kind == lexer.LBracket {
		p.advance()
		n := p.expect(lexer.IntLit)
		length, _ := strconv.ParseInt(n.Text, 10, 64)
		p.expect(lexer.RBracket)
		elem := p.parseType()
		return ast.TypeExpr{Loc: loc, ArrayOf: &elem, ArrayN: length}
	}
	name := p.expect(lexer.Ident)
	return ast.TypeExpr{Loc: loc, Name: name.Text}
}

func (p *Parser) parseProcedure() *ast.Procedure {
	loc := p.tok.Loc
	name := p.expect(lexer.Ident)
	params := p.parseParams()

	var result *ast.TypeExpr
	if p.tok.Kind == lexer.Colon {
		p.advance()
		t := p.parseType()
		result = &t
	}

	if p.tok.Kind == lexer.KwExtern {
		p.advance()
		sym := p.expect(lexer.StringLit)
		p.expect(lexer.Semicolon)
		return &ast.Procedure{Loc: loc, Name: name.Text, Params: params, Result: result, Extern: sym.Text}
	}

	body := p.parseBlock()
	return &ast.Procedure{Loc: loc, Name: name.Text, Params: params, Result: result, Body: body}
}

func (p *Parser) parseParams() []ast.Param {
	p.expect(lexer.LParen)
	var params []ast.Param
	if p.tok.Kind == lexer.RParen {
		p.advance()
		return params
	}
	for {
		nameTok := p.expect(lexer.Ident)
		p.expect(lexer.Colon)
		typ := p.parseType()
		params = append(params, ast.Param{Loc: nameTok.Loc, Name: nameTok.Text, Type: typ})
		if p.tok.Kind == lexer.RParen {
			p.advance()
			break
		}
		p.expect(lexer.Comma)
	}
	return params
}

// parseBlock parses "нч ... кц" or the single-statement "то stmt" form,
// matching разобрать_блок_кода.
func (p *Parser) parseBlock() []ast.Stmt {
	switch p.expect(lexer.KwBegin, lexer.KwThen).Kind {
	case lexer.KwBegin:
		var stmts []ast.Stmt
		for p.tok.Kind != lexer.KwEnd && p.tok.Kind != lexer.EOF {
			stmts = append(stmts, p.parseStmt())
		}
		p.expect(lexer.KwEnd)
		return stmts
	default: // то
		return []ast.Stmt{p.parseStmt()}
	}
}

func (p *Parser) parseStmt() ast.Stmt {
	switch p.tok.Kind {
	case lexer.KwIf:
		return p.parseIf()
	case lexer.KwWhile:
		return p.parseWhile()
	case lexer.KwReturn:
		return p.parseReturn()
	case lexer.KwVar:
		return p.parseVarDecl()
	case lexer.KwConst:
		return p.parseConstDecl()
	case lexer.KwPrint:
		loc := p.tok.Loc
		p.advance()
		x := p.parseExpr()
		p.expect(lexer.Semicolon)
		return &ast.Print{Loc: loc, X: x}
	default:
		loc := p.tok.Loc
		x := p.parseExpr()
		switch p.expect(lexer.Assign, lexer.Semicolon).Kind {
		case lexer.Assign:
			value := p.parseExpr()
			p.expect(lexer.Semicolon)
			return &ast.Assign{Loc: loc, Target: x, Value: value}
		default:
			return &ast.ExprStmt{Loc: loc, X: x}
		}
	}
}

func (p *Parser) parseIf() ast.Stmt {
	loc := p.tok.Loc
	p.advance()
	cond := p.parseExpr()
	then := p.parseBlock()
	var els []ast.Stmt
	if p.tok.Kind == lexer.KwElse {
		p.advance()
		els = p.parseBlock()
	}
	return &ast.If{Loc: loc, Cond: cond, Then: then, Else: els}
}

func (p *Parser) parseWhile() ast.Stmt {
	loc := p.tok.Loc
	p.advance()
	cond := p.parseExpr()
	body := p.parseBlock()
	return &ast.While{Loc: loc, Cond: cond, Body: body}
}

func (p *Parser) parseReturn() ast.Stmt {
	loc := p.tok.Loc
	p.advance()
	if p.tok.Kind == lexer.Semicolon {
		p.advance()
		return &ast.Return{Loc: loc}
	}
	value := p.parseExpr()
	p.expect(lexer.Semicolon)
	return &ast.Return{Loc: loc, Value: value}
}

// precedence table, grounded on ВидБинопа::приоритет: lowest binds
// loosest. Unlike синтаксис.rs's field-access/cast operators (not part
// of this language's surface, see SPEC_FULL.md), "." is omitted.
var precedence = map[lexer.Kind]int{
	lexer.KwOr:      1,
	lexer.KwAnd:     2,
	lexer.EqEq:      3,
	lexer.NotEq:     3,
	lexer.Less:      3,
	lexer.Greater:   3,
	lexer.LessEq:    3,
	lexer.GreaterEq: 3,
	lexer.Plus:      4,
	lexer.Minus:     4,
	lexer.Star:      5,
	lexer.Slash:     5,
	lexer.KwMod:     5,
}

var opText = map[lexer.Kind]string{
	lexer.KwOr: "или", lexer.KwAnd: "и", lexer.EqEq: "==", lexer.NotEq: "!=",
	lexer.Less: "<", lexer.Greater: ">", lexer.LessEq: "<=", lexer.GreaterEq: ">=",
	lexer.Plus: "+", lexer.Minus: "-", lexer.Star: "*", lexer.Slash: "/", lexer.KwMod: "ост",
}

func (p *Parser) parseExpr() ast.Expr { return p.parseBinop(1) }

func (p *Parser) parseBinop(minPrec int) ast.Expr {
	left := p.parseUnary()
	for {
		prec, ok := precedence[p.tok.Kind]
		if !ok || prec < minPrec {
			return left
		}
		op := opText[p.tok.Kind]
		loc := p.tok.Loc
		p.advance()
		right := p.parseBinop(prec + 1)
		left = &ast.BinOp{Loc: loc, Op: op, X: left, Y: right}
	}
}

func (p *Parser) parseUnary() ast.Expr {
	switch p.tok.Kind {
	case lexer.Minus:
		loc := p.tok.Loc
		p.advance()
		return &ast.Unary{Loc: loc, Op: "-", X: p.parseUnary()}
	case lexer.Not:
		loc := p.tok.Loc
		p.advance()
		return &ast.Unary{Loc: loc, Op: "не", X: p.parseUnary()}
	default:
		return p.parsePrimary()
	}
}

func (p *Parser) parsePrimary() ast.Expr {
	tok := p.tok
	switch tok.Kind {
	case lexer.IntLit:
		p.advance()
		v, err := strconv.ParseInt(tok.Text, 10, 64)
		if err != nil {
			p.fail(tok.Loc, "слишком большое целое «%s»", tok.Text)
		}
		return &ast.IntLit{Loc: tok.Loc, Value: v}
	case lexer.StringLit:
		p.advance()
		return &ast.StringLit{Loc: tok.Loc, Value: tok.Text}
	case lexer.KwTrue:
		p.advance()
		return &ast.BoolLit{Loc: tok.Loc, Value: true}
	case lexer.KwFalse:
		p.advance()
		return &ast.BoolLit{Loc: tok.Loc, Value: false}
	case lexer.Ident:
		p.advance()
		var e ast.Expr = &ast.Ident{Loc: tok.Loc, Name: tok.Text}
		return p.parsePostfix(e)
	case lexer.LParen:
		p.advance()
		e := p.parseExpr()
		p.expect(lexer.RParen)
		return e
	default:
		p.fail(tok.Loc, "ожидалось выражение, получено %v", tok.Kind)
		p.advance()
		return &ast.IntLit{Loc: tok.Loc}
	}
}

// parsePostfix handles call and index chains: f(a, b)[i](c).
func (p *Parser) parsePostfix(e ast.Expr) ast.Expr {
	for {
		switch p.tok.Kind {
		case lexer.LParen:
			loc := p.tok.Loc
			p.advance()
			var args []ast.Expr
			if p.tok.Kind != lexer.RParen {
				for {
					args = append(args, p.parseExpr())
					if p.tok.Kind != lexer.Comma {
						break
					}
					p.advance()
				}
			}
			p.expect(lexer.RParen)
			e = &ast.Call{Loc: loc, Callee: e, Args: args}
		case lexer.LBracket:
			loc := p.tok.Loc
			p.advance()
			idx := p.parseExpr()
			p.expect(lexer.RBracket)
			e = &ast.Index{Loc: loc, Array: e, Index: idx}
		default:
			return e
		}
	}
}
