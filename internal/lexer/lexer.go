package lexer

import (
	"io"
	"unicode"

	"github.com/q60/good-training-language/internal/diag"
	"github.com/q60/good-training-language/internal/fileinput"
)

// Lexer scans a named source into Tokens. One Lexer per compiled file,
// grounded on the teacher's internal/fileinput.Input: it queues the file
// as a single io.Reader and relies on Input's line tracking, adding
// column tracking here since fileinput.Input doesn't provide it.
type Lexer struct {
	in     fileinput.Input
	path   string
	col    int
	peeked *rune
	log    *diag.Logger
}

// New returns a Lexer reading r, reporting syntax errors to log.
func New(path string, r io.Reader, log *diag.Logger) *Lexer {
	lx := &Lexer{path: path, log: log}
	lx.in.Queue = []io.Reader{namedReader{r, path}}
	lx.col = 0
	return lx
}

type namedReader struct {
	io.Reader
	name string
}

func (nr namedReader) Name() string { return nr.name }

func (lx *Lexer) readRune() (rune, bool) {
	if lx.peeked != nil {
		r := *lx.peeked
		lx.peeked = nil
		if r == 0 {
			return 0, false
		}
		lx.advanceCol(r)
		return r, true
	}
	r, _, err := lx.in.ReadRune()
	if err != nil {
		return 0, false
	}
	lx.advanceCol(r)
	return r, true
}

func (lx *Lexer) advanceCol(r rune) {
	if r == '\n' {
		lx.col = 0
	} else {
		lx.col++
	}
}

func (lx *Lexer) peekRune() (rune, bool) {
	if lx.peeked == nil {
		r, _, err := lx.in.ReadRune()
		if err != nil {
			var zero rune
			lx.peeked = &zero
			return 0, false
		}
		lx.peeked = &r
	}
	if *lx.peeked == 0 {
		return 0, false
	}
	return *lx.peeked, true
}

func (lx *Lexer) loc() diag.Loc {
	return diag.Loc{Path: lx.path, Line: lx.in.Scan.Line, Column: lx.col}
}

// Next scans and returns the next token, EOF at end of input.
func (lx *Lexer) Next() Token {
	lx.skipSpaceAndComments()
	loc := lx.loc()

	r, ok := lx.peekRune()
	if !ok {
		return Token{Kind: EOF, Loc: loc}
	}

	switch {
	case unicode.IsDigit(r):
		return lx.scanNumber(loc)
	case r == '"':
		return lx.scanString(loc)
	case isIdentStart(r):
		return lx.scanIdentOrKeyword(loc)
	default:
		return lx.scanOperator(loc)
	}
}

func (lx *Lexer) skipSpaceAndComments() {
	for {
		r, ok := lx.peekRune()
		if !ok {
			return
		}
		if unicode.IsSpace(r) {
			lx.readRune()
			continue
		}
		if r == '#' {
			for {
				r, ok := lx.readRune()
				if !ok || r == '\n' {
					break
				}
			}
			continue
		}
		return
	}
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentCont(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}

func (lx *Lexer) scanIdentOrKeyword(loc diag.Loc) Token {
	var text []rune
	for {
		r, ok := lx.peekRune()
		if !ok || !isIdentCont(r) {
			break
		}
		lx.readRune()
		text = append(text, r)
	}
	s := string(text)
	if kind, ok := keywords[s]; ok {
		return Token{Kind: kind, Text: s, Loc: loc}
	}
	return Token{Kind: Ident, Text: s, Loc: loc}
}

func (lx *Lexer) scanNumber(loc diag.Loc) Token {
	var text []rune
	for {
		r, ok := lx.peekRune()
		if !ok || !unicode.IsDigit(r) {
			break
		}
		lx.readRune()
		text = append(text, r)
	}
	return Token{Kind: IntLit, Text: string(text), Loc: loc}
}

func (lx *Lexer) scanString(loc diag.Loc) Token {
	lx.readRune() // opening quote
	var text []rune
	for {
		r, ok := lx.readRune()
		if !ok {
			lx.log.Reportf(loc, diag.SeverityError, "незакрытая строковая константа")
			break
		}
		if r == '"' {
			break
		}
		if r == '\\' {
			esc, ok := lx.readRune()
			if !ok {
				break
			}
			switch esc {
			case 'n':
				r = '\n'
			case 't':
				r = '\t'
			case '"', '\\':
				r = esc
			default:
				r = esc
			}
		}
		text = append(text, r)
	}
	return Token{Kind: StringLit, Text: string(text), Loc: loc}
}

// two-rune operator table, longest prefix first.
var twoRune = map[string]Kind{
	":=": ArrowSet, "==": EqEq, "!=": NotEq, "<=": LessEq, ">=": GreaterEq, "..": DotDot,
}

func (lx *Lexer) scanOperator(loc diag.Loc) Token {
	r, _ := lx.readRune()
	if r2, ok := lx.peekRune(); ok {
		if kind, ok := twoRune[string([]rune{r, r2})]; ok {
			lx.readRune()
			return Token{Kind: kind, Text: string([]rune{r, r2}), Loc: loc}
		}
	}
	single := map[rune]Kind{
		':': Colon, ';': Semicolon, ',': Comma, '.': Dot,
		'=': Assign, '(': LParen, ')': RParen, '[': LBracket, ']': RBracket,
		'+': Plus, '-': Minus, '*': Star, '/': Slash,
		'<': Less, '>': Greater,
	}
	if kind, ok := single[r]; ok {
		return Token{Kind: kind, Text: string(r), Loc: loc}
	}
	lx.log.Reportf(loc, diag.SeverityError, "неожиданный символ «%c»", r)
	return Token{Kind: EOF, Loc: loc}
}
