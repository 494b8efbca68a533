// Package ast defines the syntax tree the parser builds and the checker
// consumes. Shape grounded on
// _examples/original_source/исходники/синтаксис.rs's Выражение/
// Утверждение/Процедура enums, translated into Go's type-switch idiom.
package ast

import "github.com/q60/good-training-language/internal/diag"

// Expr is any expression node.
type Expr interface{ Location() diag.Loc }

type IntLit struct {
	Loc   diag.Loc
	Value int64
}

type StringLit struct {
	Loc   diag.Loc
	Value string
}

type BoolLit struct {
	Loc   diag.Loc
	Value bool
}

type Ident struct {
	Loc  diag.Loc
	Name string
}

type Index struct {
	Loc          diag.Loc
	Array, Index Expr
}

type Call struct {
	Loc      diag.Loc
	Callee   Expr
	Args     []Expr
}

type Unary struct {
	Loc diag.Loc
	Op  string // "-" or "не"
	X   Expr
}

type BinOp struct {
	Loc     diag.Loc
	Op      string
	X, Y    Expr
}

func (e *IntLit) Location() diag.Loc    { return e.Loc }
func (e *StringLit) Location() diag.Loc { return e.Loc }
func (e *BoolLit) Location() diag.Loc   { return e.Loc }
func (e *Ident) Location() diag.Loc     { return e.Loc }
func (e *Index) Location() diag.Loc     { return e.Loc }
func (e *Call) Location() diag.Loc      { return e.Loc }
func (e *Unary) Location() diag.Loc     { return e.Loc }
func (e *BinOp) Location() diag.Loc     { return e.Loc }

// TypeExpr names a type the way the surface syntax spells it: a plain
// identifier ("цел64", "цел32", "цел8", "лог", "ука") or an array form
// "[N]T" (spec.md §3's Array(element, length)).
type TypeExpr struct {
	Loc     diag.Loc
	Name    string // empty for array types
	ArrayOf *TypeExpr
	ArrayN  int64
}

// Stmt is any statement node.
type Stmt interface{ Location() diag.Loc }

type VarDecl struct {
	Loc   diag.Loc
	Name  string
	Type  TypeExpr
	Value Expr // nil if uninitialized
}

type ConstDecl struct {
	Loc   diag.Loc
	Name  string
	Value Expr
}

type Assign struct {
	Loc          diag.Loc
	Target       Expr
	Value        Expr
}

type ExprStmt struct {
	Loc diag.Loc
	X   Expr
}

type Print struct {
	Loc diag.Loc
	X   Expr
}

type If struct {
	Loc             diag.Loc
	Cond            Expr
	Then, Else      []Stmt
}

type While struct {
	Loc  diag.Loc
	Cond Expr
	Body []Stmt
}

type Return struct {
	Loc   diag.Loc
	Value Expr // nil for a value-less return
}

func (s *VarDecl) Location() diag.Loc   { return s.Loc }
func (s *ConstDecl) Location() diag.Loc { return s.Loc }
func (s *Assign) Location() diag.Loc    { return s.Loc }
func (s *ExprStmt) Location() diag.Loc  { return s.Loc }
func (s *Print) Location() diag.Loc     { return s.Loc }
func (s *If) Location() diag.Loc        { return s.Loc }
func (s *While) Location() diag.Loc     { return s.Loc }
func (s *Return) Location() diag.Loc    { return s.Loc }

// Param is one procedure parameter.
type Param struct {
	Loc  diag.Loc
	Name string
	Type TypeExpr
}

// Procedure is a top-level procedure definition; Body is nil for an
// external procedure (Extern non-empty instead), matching синтаксис.rs's
// ТелоПроцедуры::{Внутренее,Внешнее}.
type Procedure struct {
	Loc    diag.Loc
	Name   string
	Params []Param
	Result *TypeExpr // nil if no result
	Body   []Stmt
	Extern string // non-empty: external symbol name, Body is nil
}

// Global is a top-level "пер"/"конст" declaration outside any procedure.
type Global struct {
	Loc  diag.Loc
	Name string
	Decl Stmt // *VarDecl or *ConstDecl
}

// File is a whole parsed compilation unit.
type File struct {
	Procedures []*Procedure
	Globals    []*Global
}
