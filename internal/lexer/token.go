// Package lexer turns source text into a token stream, the first stage
// of the front end spec.md §6 calls "straightforward, re-implement
// conventionally". Grounded on
// _examples/original_source/исходники/синтаксис.rs's lexeme vocabulary
// and on the teacher's internal/fileinput.Input for line-tracked rune
// input, extended here with column tracking (see DESIGN.md's Open
// Questions).
package lexer

import "github.com/q60/good-training-language/internal/diag"

// Kind enumerates the token vocabulary.
type Kind int

const (
	EOF Kind = iota
	Ident
	IntLit
	StringLit

	Colon
	Semicolon
	Comma
	Dot
	DotDot
	Assign   // =
	ArrowSet // :=  (lexed, but no parser rule accepts it)
	LParen
	RParen
	LBracket
	RBracket

	Plus
	Minus
	Star
	Slash
	Not

	EqEq
	NotEq
	Less
	Greater
	LessEq
	GreaterEq

	KwIf      // если
	KwElse    // иначе
	KwWhile   // пока
	KwReturn  // вернуть
	KwVar     // пер
	KwConst   // конст
	KwExtern  // внешняя
	KwBegin   // нч
	KwEnd     // кц
	KwThen    // то (single-statement block)
	KwTrue    // истина
	KwFalse   // ложь
	KwMod     // ост
	KwOr      // или
	KwAnd     // и
	KwPrint   // печать (builtin statement)
)

var names = map[Kind]string{
	EOF: "EOF", Ident: "Ident", IntLit: "IntLit", StringLit: "StringLit",
	Colon: "':'", Semicolon: "';'", Comma: "','", Dot: "'.'", DotDot: "'..'",
	Assign: "'='", ArrowSet: "':='", LParen: "'('", RParen: "')'",
	LBracket: "'['", RBracket: "']'",
	Plus: "'+'", Minus: "'-'", Star: "'*'", Slash: "'/'", Not: "'не'",
	EqEq: "'=='", NotEq: "'!='", Less: "'<'", Greater: "'>'", LessEq: "'<='", GreaterEq: "'>='",
	KwIf: "если", KwElse: "иначе", KwWhile: "пока", KwReturn: "вернуть",
	KwVar: "пер", KwConst: "конст", KwExtern: "внешняя", KwBegin: "нч", KwEnd: "кц",
	KwThen: "то", KwTrue: "истина", KwFalse: "ложь", KwMod: "ост", KwOr: "или", KwAnd: "и",
	KwPrint: "печать",
}

func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return "?"
}

var keywords = map[string]Kind{
	"если": KwIf, "иначе": KwElse, "пока": KwWhile, "вернуть": KwReturn,
	"пер": KwVar, "конст": KwConst, "внешняя": KwExtern, "нч": KwBegin, "кц": KwEnd,
	"то": KwThen, "истина": KwTrue, "ложь": KwFalse, "ост": KwMod, "или": KwOr, "и": KwAnd,
	"не": Not, "печать": KwPrint,
}

// Token is one lexeme: its kind, literal text, and source location.
type Token struct {
	Kind Kind
	Text string
	Loc  diag.Loc
}
