// Package checker type-checks the parser's AST and lowers it directly
// to the ir package's instruction set, combining "type checker" and "IR
// lowering" into one pass the way a small from-scratch compiler
// typically does (spec.md §2 names them as separate collaborators but
// only specifies the IR they must produce, §6).
//
// Calling convention (a front-end design decision, not part of the core
// ISA contract): ReadFrame/WriteFrame(k) only address slots at or below
// fp, so caller-pushed arguments sitting above fp at call time are not
// reachable that way. This checker instead gives every procedure a
// fixed data-segment slot per parameter and per result: the caller
// stores each argument into the callee's parameter slots before
// CallInternal, and the callee stores its result into its result slot
// before unwinding. Locals declared with "пер" inside a body use real
// frame-relative ReadFrame/WriteFrame, so recursion works correctly for
// local state; parameter/result slots are shared across calls, so
// reentrant (recursive or concurrent) calls to the same procedure will
// clobber each other's arguments. Acceptable for this language's scope;
// see DESIGN.md. Local arrays cannot be addressed through frame ops
// either (there is no address-of-frame-slot opcode), so they get a bss
// slot the same way globals do, with the same reentrancy caveat.
//
// Data layout: every named storage location -- globals, per-procedure
// parameter/result slots, local arrays -- lives in the uninitialized
// (bss) part of the data region, widened to a full 8-byte-aligned slot
// so Load64 (the ISA's only load opcode, always 8 bytes wide) never
// reads past a narrower variable into its neighbor; Store8/Store32
// only ever touch the low bytes of that slot. String literals are the
// only producers of initialized data, interned through an
// ir.StringPool. Because init_data must precede bss in the data region
// (the ELF emitter relies on bss being the file-less trailing part,
// spec.md §4.3), every string literal in the whole program is interned
// in a first pass before any bss offset is handed out, so the bss base
// (len(InitData)) is fixed before lowering ever bakes an offset into a
// PushPtr instruction.
package checker

import (
	"github.com/q60/good-training-language/internal/ast"
	"github.com/q60/good-training-language/internal/diag"
	"github.com/q60/good-training-language/internal/ir"
	"github.com/q60/good-training-language/internal/types"
)

// procSig is what the checker knows about a procedure before (and
// while) lowering its body: its parameter/result storage slots, so
// that calls appearing textually before a procedure's definition still
// resolve (a two-pass declare-then-lower scheme).
type procSig struct {
	loc        diag.Loc
	paramNames []string
	params     []types.Type
	paramAddrs []int
	result     *types.Type
	resultAddr int
	extern     string // non-empty: CallExternal symbol, no CallInternal entry
	entry      int    // code index of SaveFrame, valid once lowered
	patchAt    []int  // Code indices whose CallInternal.A needs entry patched in
}

// localVar is one "пер" declared inside a procedure body. Scalars get
// a real frame slot (ReadFrame/WriteFrame(slot)); arrays get a bss
// address instead, since there is no way to take the address of a
// frame slot.
type localVar struct {
	slot    int
	addr    int
	typ     types.Type
	isArray bool
}

// globalInit records a global's constant initial value. The data
// region itself is always zero-initialized bss for named variables, so
// initializers run as synthesized code at the entry procedure's start
// rather than being baked into InitData.
type globalInit struct {
	addr  int
	typ   types.Type
	value int64
	loc   diag.Loc
}

// Checker lowers one *ast.File into an *ir.Program/*ir.Names pair.
type Checker struct {
	log   *diag.Logger
	names *ir.Names
	prog  *ir.Program

	strings *ir.StringPool
	bssBase int // len(InitData) once string interning is finished
	bssUsed int // running bss allocator, offsets relative to bssBase

	consts      map[string]int64
	procs       map[string]*procSig
	globalInits []globalInit

	// per-procedure lowering state, reset at the start of each body.
	locals    map[string]localVar
	nextLocal int
	curProc   *procSig

	ok bool
}

// Check type-checks and lowers file, returning the program image, name
// tables, and whether it succeeded without error. Diagnostics are
// reported to log as they are found.
func Check(file *ast.File, log *diag.Logger) (*ir.Program, *ir.Names, bool) {
	c := &Checker{
		log:     log,
		names:   ir.NewNames(),
		prog:    &ir.Program{},
		strings: &ir.StringPool{},
		consts:  map[string]int64{},
		procs:   map[string]*procSig{},
		ok:      true,
	}

	c.collectStrings(file)
	c.prog.InitData = append(c.prog.InitData, c.strings.Data()...)
	c.bssBase = len(c.prog.InitData)

	for _, g := range file.Globals {
		c.declareGlobal(g)
	}
	for _, p := range file.Procedures {
		c.declareSignature(p)
	}
	for _, p := range file.Procedures {
		if p.Extern == "" {
			c.lowerProcedure(p)
		}
	}

	for _, sig := range c.procs {
		if sig.extern != "" {
			continue
		}
		for _, at := range sig.patchAt {
			c.prog.Code[at].A = int64(sig.entry)
		}
	}
	for name, sig := range c.procs {
		if sig.extern != "" {
			continue
		}
		info := c.names.Procedures[name]
		info.Entry = sig.entry
		c.names.Procedures[name] = info
	}

	c.prog.BSSSize = c.bssUsed
	return c.prog, c.names, c.ok
}

func (c *Checker) fail(loc diag.Loc, format string, args ...interface{}) {
	c.ok = false
	c.log.Reportf(loc, diag.SeverityError, format, args...)
}

func (c *Checker) emit(op ir.Op, loc diag.Loc) int {
	c.prog.Code = append(c.prog.Code, ir.Instr{Op: op, Loc: loc})
	return len(c.prog.Code) - 1
}

func (c *Checker) emitA(op ir.Op, a int64, loc diag.Loc) int {
	c.prog.Code = append(c.prog.Code, ir.Instr{Op: op, A: a, Loc: loc})
	return len(c.prog.Code) - 1
}

func (c *Checker) here() int { return len(c.prog.Code) }

// allocBSS reserves storageSize(t) bytes in the uninitialized data
// segment, returning a data-region-relative offset (bssBase plus a
// monotonically increasing counter).
func (c *Checker) allocBSS(t types.Type) int {
	off := c.bssBase + c.bssUsed
	c.bssUsed += storageSize(t)
	return off
}

// storageSize is the number of bytes actually allocated for a value of
// type t, distinct from types.Type.Size(): every scalar (and every
// array element) is widened to a full machine word because Load64 --
// the ISA's only load opcode -- always reads 8 bytes, and a narrower
// neighbor slot must never be clobbered by that over-read.
func storageSize(t types.Type) int {
	if t.Kind == types.Array {
		elem := zeroOr(t.Elem)
		return t.Length * storageSize(elem)
	}
	return 8
}

func zeroOr(t *types.Type) types.Type {
	if t == nil {
		return types.Type{}
	}
	return *t
}

// storeOpFor returns the narrowest Store opcode matching t's logical
// size; loads are always Load64 regardless of t, per storageSize's
// widening (an all-zero slot narrow-stored into reads back correctly
// widened).
func storeOpFor(t types.Type) ir.Op {
	switch t.Size() {
	case 1:
		return ir.Store8
	case 4:
		return ir.Store32
	default:
		return ir.Store64
	}
}

func resolveType(te ast.TypeExpr) (types.Type, bool) {
	if te.ArrayOf != nil {
		elem, ok := resolveType(*te.ArrayOf)
		return types.NewArray(elem, int(te.ArrayN)), ok
	}
	switch te.Name {
	case "цел8":
		return types.Type{Kind: types.Int8}, true
	case "цел32":
		return types.Type{Kind: types.Int32}, true
	case "цел64":
		return types.Type{Kind: types.Int64}, true
	case "ука":
		return types.Type{Kind: types.Pointer}, true
	case "лог":
		return types.Type{Kind: types.Bool}, true
	default:
		return types.Type{}, false
	}
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func paramIndex(sig *procSig, name string) (int, bool) {
	for i, n := range sig.paramNames {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// collectStrings walks every expression in the program purely to
// intern string literals, so that the bss base (len(InitData)) is
// fixed before any variable/parameter/result offset is handed out. See
// the package doc comment for why this ordering matters.
func (c *Checker) collectStrings(file *ast.File) {
	for _, g := range file.Globals {
		if v, ok := g.Decl.(*ast.VarDecl); ok && v.Value != nil {
			c.collectStringsExpr(v.Value)
		}
	}
	for _, p := range file.Procedures {
		c.collectStringsStmts(p.Body)
	}
}

func (c *Checker) collectStringsStmts(stmts []ast.Stmt) {
	for _, s := range stmts {
		switch s := s.(type) {
		case *ast.VarDecl:
			if s.Value != nil {
				c.collectStringsExpr(s.Value)
			}
		case *ast.ConstDecl:
			c.collectStringsExpr(s.Value)
		case *ast.Assign:
			c.collectStringsExpr(s.Target)
			c.collectStringsExpr(s.Value)
		case *ast.ExprStmt:
			c.collectStringsExpr(s.X)
		case *ast.Print:
			c.collectStringsExpr(s.X)
		case *ast.If:
			c.collectStringsExpr(s.Cond)
			c.collectStringsStmts(s.Then)
			c.collectStringsStmts(s.Else)
		case *ast.While:
			c.collectStringsExpr(s.Cond)
			c.collectStringsStmts(s.Body)
		case *ast.Return:
			if s.Value != nil {
				c.collectStringsExpr(s.Value)
			}
		}
	}
}

func (c *Checker) collectStringsExpr(e ast.Expr) {
	switch e := e.(type) {
	case *ast.StringLit:
		c.strings.Intern(e.Value)
	case *ast.Index:
		c.collectStringsExpr(e.Array)
		c.collectStringsExpr(e.Index)
	case *ast.Call:
		for _, a := range e.Args {
			c.collectStringsExpr(a)
		}
	case *ast.Unary:
		c.collectStringsExpr(e.X)
	case *ast.BinOp:
		c.collectStringsExpr(e.X)
		c.collectStringsExpr(e.Y)
	}
}

func (c *Checker) declareGlobal(g *ast.Global) {
	switch d := g.Decl.(type) {
	case *ast.VarDecl:
		t, ok := resolveType(d.Type)
		if !ok {
			c.fail(d.Loc, "неизвестный тип «%s»", d.Type.Name)
			return
		}
		if _, exists := c.names.Variables[d.Name]; exists {
			c.fail(d.Loc, "повторное определение глобальной переменной «%s»", d.Name)
			return
		}
		addr := c.allocBSS(t)
		c.names.DefineVariable(d.Name, ir.VarInfo{Address: addr, Type: t})
		if d.Value != nil {
			v, ok := c.evalConstInt(d.Value)
			if !ok {
				c.fail(d.Loc, "инициализатор глобальной переменной «%s» должен быть константным выражением", d.Name)
				return
			}
			c.globalInits = append(c.globalInits, globalInit{addr: addr, typ: t, value: v, loc: d.Loc})
		}
	case *ast.ConstDecl:
		v, ok := c.evalConstInt(d.Value)
		if !ok {
			c.fail(d.Loc, "константа «%s» должна быть константным выражением", d.Name)
			return
		}
		c.consts[d.Name] = v
	}
}

// evalConstInt folds a constant expression at compile time: literal
// values, named constants, and arithmetic/logical combinations of
// them. Used for "конст" declarations and for global "пер" initial
// values, which the checker must know without emitting any code.
func (c *Checker) evalConstInt(e ast.Expr) (int64, bool) {
	switch e := e.(type) {
	case *ast.IntLit:
		return e.Value, true
	case *ast.BoolLit:
		return boolInt(e.Value), true
	case *ast.Ident:
		v, ok := c.consts[e.Name]
		return v, ok
	case *ast.Unary:
		x, ok := c.evalConstInt(e.X)
		if !ok {
			return 0, false
		}
		switch e.Op {
		case "-":
			return -x, true
		case "не":
			return boolInt(x == 0), true
		}
		return 0, false
	case *ast.BinOp:
		l, ok := c.evalConstInt(e.X)
		if !ok {
			return 0, false
		}
		r, ok := c.evalConstInt(e.Y)
		if !ok {
			return 0, false
		}
		switch e.Op {
		case "+":
			return l + r, true
		case "-":
			return l - r, true
		case "*":
			return l * r, true
		case "/":
			if r == 0 {
				return 0, false
			}
			return l / r, true
		case "ост":
			if r == 0 {
				return 0, false
			}
			return l % r, true
		case "==":
			return boolInt(l == r), true
		case "!=":
			return boolInt(l != r), true
		case "<":
			return boolInt(l < r), true
		case ">":
			return boolInt(l > r), true
		case "<=":
			return boolInt(l <= r), true
		case ">=":
			return boolInt(l >= r), true
		case "и":
			return boolInt(l != 0 && r != 0), true
		case "или":
			return boolInt(l != 0 || r != 0), true
		}
	}
	return 0, false
}

func (c *Checker) declareSignature(p *ast.Procedure) {
	if _, exists := c.procs[p.Name]; exists {
		c.fail(p.Loc, "повторное определение процедуры «%s»", p.Name)
		return
	}
	sig := &procSig{loc: p.Loc, extern: p.Extern}
	for _, param := range p.Params {
		t, ok := resolveType(param.Type)
		if !ok {
			c.fail(param.Loc, "неизвестный тип параметра «%s»", param.Type.Name)
			continue
		}
		sig.paramNames = append(sig.paramNames, param.Name)
		sig.params = append(sig.params, t)
		if p.Extern == "" {
			// Extern procedures take their arguments straight off the
			// evaluation stack (see lowerCall), so they need no bss
			// parameter slot.
			sig.paramAddrs = append(sig.paramAddrs, c.allocBSS(t))
		}
	}
	if p.Result != nil {
		t, ok := resolveType(*p.Result)
		if !ok {
			c.fail(p.Loc, "неизвестный тип результата «%s»", p.Result.Name)
		} else {
			sig.result = &t
			if p.Extern == "" {
				sig.resultAddr = c.allocBSS(t)
			}
		}
	}
	c.procs[p.Name] = sig
	c.names.Procedures[p.Name] = ir.ProcInfo{ParamTypes: sig.params, Result: zeroOr(sig.result)}
}

func (c *Checker) lowerProcedure(p *ast.Procedure) {
	sig := c.procs[p.Name]
	if sig == nil {
		return
	}
	sig.entry = c.here()
	c.locals = map[string]localVar{}
	c.nextLocal = 0
	c.curProc = sig

	c.emit(ir.SaveFrame, p.Loc)

	c.reserveLocals(p.Body)
	for i := 0; i < c.nextLocal; i++ {
		c.emitA(ir.PushInt, 0, p.Loc)
	}

	if p.Name == ir.EntryProcedure {
		for _, gi := range c.globalInits {
			c.emitGlobalInit(gi)
		}
	}

	c.lowerStmts(p.Body)
	c.emitEpilogue(p.Loc)

	c.curProc = nil
	c.locals = nil
}

// reserveLocals walks a procedure body once, before any code is
// emitted for it, assigning every "пер" declaration its storage ahead
// of time: a frame slot for scalars (hoisted to an unconditional
// PushInt(0) reservation emitted right after SaveFrame, regardless of
// which branch the declaration textually sits in, so later
// frame-relative references are always valid no matter which path ran)
// or a bss address for arrays.
func (c *Checker) reserveLocals(stmts []ast.Stmt) {
	for _, s := range stmts {
		switch s := s.(type) {
		case *ast.VarDecl:
			t, ok := resolveType(s.Type)
			if !ok {
				c.fail(s.Loc, "неизвестный тип «%s»", s.Type.Name)
				continue
			}
			if _, exists := c.locals[s.Name]; exists {
				c.fail(s.Loc, "повторное определение переменной «%s»", s.Name)
				continue
			}
			if t.Kind == types.Array {
				c.locals[s.Name] = localVar{addr: c.allocBSS(t), typ: t, isArray: true}
			} else {
				c.locals[s.Name] = localVar{slot: c.nextLocal, typ: t}
				c.nextLocal++
			}
		case *ast.If:
			c.reserveLocals(s.Then)
			c.reserveLocals(s.Else)
		case *ast.While:
			c.reserveLocals(s.Body)
		}
	}
}

func (c *Checker) emitGlobalInit(gi globalInit) {
	c.emitA(ir.PushInt, gi.value, gi.loc)
	c.emitA(ir.PushPtr, int64(gi.addr), gi.loc)
	c.emit(storeOpFor(gi.typ), gi.loc)
}

func (c *Checker) emitEpilogue(loc diag.Loc) {
	if c.nextLocal > 0 {
		c.emitA(ir.Pop, int64(c.nextLocal), loc)
	}
	c.emit(ir.RestoreFrame, loc)
	c.emit(ir.Return, loc)
}

func (c *Checker) lowerStmts(stmts []ast.Stmt) {
	for _, s := range stmts {
		c.lowerStmt(s)
	}
}

func (c *Checker) lowerStmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.VarDecl:
		c.lowerLocalVarDecl(s)
	case *ast.ConstDecl:
		v, ok := c.evalConstInt(s.Value)
		if !ok {
			c.fail(s.Loc, "константа «%s» должна быть константным выражением", s.Name)
			return
		}
		c.consts[s.Name] = v
	case *ast.Assign:
		c.lowerAssign(s)
	case *ast.ExprStmt:
		if call, ok := s.X.(*ast.Call); ok {
			if c.lowerCall(call) {
				c.emitA(ir.Pop, 1, s.Loc)
			}
		} else {
			c.lowerExpr(s.X)
			c.emitA(ir.Pop, 1, s.Loc)
		}
	case *ast.Print:
		lit, ok := s.X.(*ast.StringLit)
		if !ok {
			c.fail(s.Loc, "«печать» поддерживает только строковые литералы")
			return
		}
		off := c.strings.Intern(lit.Value)
		c.emitA(ir.PushInt, int64(len(lit.Value)), s.Loc)
		c.emitA(ir.PushPtr, int64(off), s.Loc)
		c.emit(ir.PrintStr, s.Loc)
	case *ast.If:
		c.lowerExpr(s.Cond)
		jmpThen := c.emitA(ir.JumpIf, 0, s.Loc)
		jmpElse := c.emitA(ir.Jump, 0, s.Loc)
		c.prog.Code[jmpThen].A = int64(c.here())
		c.lowerStmts(s.Then)
		jmpEnd := c.emitA(ir.Jump, 0, s.Loc)
		c.prog.Code[jmpElse].A = int64(c.here())
		c.lowerStmts(s.Else)
		c.prog.Code[jmpEnd].A = int64(c.here())
	case *ast.While:
		top := c.here()
		c.lowerExpr(s.Cond)
		jmpBody := c.emitA(ir.JumpIf, 0, s.Loc)
		jmpEnd := c.emitA(ir.Jump, 0, s.Loc)
		c.prog.Code[jmpBody].A = int64(c.here())
		c.lowerStmts(s.Body)
		c.emitA(ir.Jump, int64(top), s.Loc)
		c.prog.Code[jmpEnd].A = int64(c.here())
	case *ast.Return:
		c.lowerReturn(s)
	}
}

func (c *Checker) lowerLocalVarDecl(s *ast.VarDecl) {
	lv, ok := c.locals[s.Name]
	if !ok {
		return // invalid type or duplicate name, already reported by reserveLocals
	}
	if lv.isArray {
		if s.Value != nil {
			c.fail(s.Loc, "инициализация локального массива не поддерживается")
		}
		return
	}
	if s.Value != nil {
		c.lowerExpr(s.Value)
	} else {
		c.emitA(ir.PushInt, 0, s.Loc)
	}
	c.emitA(ir.WriteFrame, int64(lv.slot), s.Loc)
}

func (c *Checker) lowerReturn(s *ast.Return) {
	if s.Value != nil {
		if c.curProc.result == nil {
			c.fail(s.Loc, "процедура не должна возвращать значение")
		} else {
			t := *c.curProc.result
			c.lowerExpr(s.Value)
			c.emitA(ir.PushPtr, int64(c.curProc.resultAddr), s.Loc)
			c.emit(storeOpFor(t), s.Loc)
		}
	} else if c.curProc.result != nil {
		c.fail(s.Loc, "процедура должна возвращать значение")
	}
	c.emitEpilogue(s.Loc)
}

func (c *Checker) lowerAssign(s *ast.Assign) {
	switch target := s.Target.(type) {
	case *ast.Ident:
		name := target.Name
		if lv, ok := c.locals[name]; ok {
			if lv.isArray {
				c.fail(s.Loc, "нельзя присвоить массиву целиком")
				return
			}
			c.lowerExpr(s.Value)
			c.emitA(ir.WriteFrame, int64(lv.slot), s.Loc)
			return
		}
		if c.curProc != nil {
			if idx, ok := paramIndex(c.curProc, name); ok {
				t := c.curProc.params[idx]
				if t.Kind == types.Array {
					c.fail(s.Loc, "нельзя присвоить массиву целиком")
					return
				}
				c.lowerExpr(s.Value)
				c.emitA(ir.PushPtr, int64(c.curProc.paramAddrs[idx]), s.Loc)
				c.emit(storeOpFor(t), s.Loc)
				return
			}
		}
		if v, ok := c.names.Variables[name]; ok {
			if v.Type.Kind == types.Array {
				c.fail(s.Loc, "нельзя присвоить массиву целиком")
				return
			}
			c.lowerExpr(s.Value)
			c.emitA(ir.PushPtr, int64(v.Address), s.Loc)
			c.emit(storeOpFor(v.Type), s.Loc)
			return
		}
		c.fail(s.Loc, "неизвестный идентификатор «%s»", name)
	case *ast.Index:
		c.lowerExpr(s.Value)
		elemT, ok := c.lowerAddr(target)
		if !ok {
			return
		}
		if elemT.Kind == types.Array {
			c.fail(s.Loc, "нельзя присвоить массиву целиком")
			return
		}
		c.emit(storeOpFor(elemT), s.Loc)
	default:
		c.fail(s.Loc, "недопустимая цель присваивания")
	}
}

// lowerCall lowers a procedure call, storing each argument into the
// callee's fixed parameter slots before CallInternal (a CallExternal's
// arguments stay on the evaluation stack instead), and
// (for an internal call with a result) loading the result slot
// afterward. Reports hasResult, so callers can tell whether a value
// was left on the stack.
func (c *Checker) lowerCall(call *ast.Call) (hasResult bool) {
	ident, ok := call.Callee.(*ast.Ident)
	if !ok {
		c.fail(call.Loc, "вызываемое выражение должно быть именем процедуры")
		return false
	}
	sig, ok := c.procs[ident.Name]
	if !ok {
		c.fail(call.Loc, "неизвестная процедура «%s»", ident.Name)
		return false
	}
	if len(call.Args) != len(sig.params) {
		c.fail(call.Loc, "процедура «%s» ожидает %d аргументов, получено %d", ident.Name, len(sig.params), len(call.Args))
		return sig.result != nil
	}
	if sig.extern != "" {
		// External procedures cross into raw syscall/ABI territory, so
		// their arguments are left on the evaluation stack in source
		// order rather than stored into the internal-call param slots:
		// the ELF emitter pops them straight into the SysV argument
		// registers (see internal/elfemit). The interpreter never
		// executes this opcode (halts, unsupported) so no pop/marshal
		// convention is needed there.
		for _, arg := range call.Args {
			c.lowerExpr(arg)
		}
		c.prog.Code = append(c.prog.Code, ir.Instr{
			Op: ir.CallExternal, Sym: sig.extern,
			B: int64(len(call.Args)), HasRet: sig.result != nil, Loc: call.Loc,
		})
		return sig.result != nil
	}
	for i, arg := range call.Args {
		c.lowerExpr(arg)
		c.emitA(ir.PushPtr, int64(sig.paramAddrs[i]), call.Loc)
		c.emit(storeOpFor(sig.params[i]), call.Loc)
	}
	at := c.emitA(ir.CallInternal, 0, call.Loc)
	sig.patchAt = append(sig.patchAt, at)
	if sig.result != nil {
		c.emitA(ir.PushPtr, int64(sig.resultAddr), call.Loc)
		c.emit(ir.Load64, call.Loc)
	}
	return sig.result != nil
}

func (c *Checker) lowerExpr(e ast.Expr) {
	switch e := e.(type) {
	case *ast.IntLit:
		c.emitA(ir.PushInt, e.Value, e.Loc)
	case *ast.BoolLit:
		c.emitA(ir.PushInt, boolInt(e.Value), e.Loc)
	case *ast.StringLit:
		c.fail(e.Loc, "строковый литерал можно использовать только в «печать»")
	case *ast.Ident:
		c.lowerIdentValue(e)
	case *ast.Index:
		elemT, ok := c.lowerAddr(e)
		if !ok {
			return
		}
		if elemT.Kind != types.Array {
			c.emit(ir.Load64, e.Loc)
		}
	case *ast.Call:
		if !c.lowerCall(e) {
			c.fail(e.Loc, "вызов не возвращает значения и не может использоваться как выражение")
		}
	case *ast.Unary:
		switch e.Op {
		case "-":
			c.emitA(ir.PushInt, 0, e.Loc)
			c.lowerExpr(e.X)
			c.emit(ir.IntSub, e.Loc)
		case "не":
			c.lowerExpr(e.X)
			c.emit(ir.LogNot, e.Loc)
		default:
			c.fail(e.Loc, "неизвестный унарный оператор «%s»", e.Op)
		}
	case *ast.BinOp:
		c.lowerBinOp(e)
	default:
		c.fail(e.Location(), "неподдерживаемое выражение")
	}
}

func (c *Checker) lowerIdentValue(e *ast.Ident) {
	name := e.Name
	if lv, ok := c.locals[name]; ok {
		if lv.isArray {
			c.emitA(ir.PushPtr, int64(lv.addr), e.Loc)
		} else {
			c.emitA(ir.ReadFrame, int64(lv.slot), e.Loc)
		}
		return
	}
	if c.curProc != nil {
		if idx, ok := paramIndex(c.curProc, name); ok {
			t := c.curProc.params[idx]
			addr := c.curProc.paramAddrs[idx]
			c.emitA(ir.PushPtr, int64(addr), e.Loc)
			if t.Kind != types.Array {
				c.emit(ir.Load64, e.Loc)
			}
			return
		}
	}
	if v, ok := c.consts[name]; ok {
		c.emitA(ir.PushInt, v, e.Loc)
		return
	}
	if v, ok := c.names.Variables[name]; ok {
		c.emitA(ir.PushPtr, int64(v.Address), e.Loc)
		if v.Type.Kind != types.Array {
			c.emit(ir.Load64, e.Loc)
		}
		return
	}
	c.fail(e.Loc, "неизвестный идентификатор «%s»", name)
}

// lowerAddr pushes the address of an addressable expression (a named
// array, or an index into one) and returns the type stored there. Used
// by Index both in value context (lowerExpr) and as an assignment
// target.
func (c *Checker) lowerAddr(e ast.Expr) (types.Type, bool) {
	switch e := e.(type) {
	case *ast.Ident:
		name := e.Name
		if lv, ok := c.locals[name]; ok {
			if !lv.isArray {
				c.fail(e.Loc, "«%s» не является массивом", name)
				return types.Type{}, false
			}
			c.emitA(ir.PushPtr, int64(lv.addr), e.Loc)
			return lv.typ, true
		}
		if c.curProc != nil {
			if idx, ok := paramIndex(c.curProc, name); ok {
				t := c.curProc.params[idx]
				if t.Kind != types.Array {
					c.fail(e.Loc, "«%s» не является массивом", name)
					return types.Type{}, false
				}
				c.emitA(ir.PushPtr, int64(c.curProc.paramAddrs[idx]), e.Loc)
				return t, true
			}
		}
		if v, ok := c.names.Variables[name]; ok {
			if v.Type.Kind != types.Array {
				c.fail(e.Loc, "«%s» не является массивом", name)
				return types.Type{}, false
			}
			c.emitA(ir.PushPtr, int64(v.Address), e.Loc)
			return v.Type, true
		}
		c.fail(e.Loc, "неизвестный идентификатор «%s»", name)
		return types.Type{}, false
	case *ast.Index:
		arrT, ok := c.lowerAddr(e.Array)
		if !ok {
			return types.Type{}, false
		}
		if arrT.Kind != types.Array {
			c.fail(e.Loc, "индексирование неиндексируемого значения")
			return types.Type{}, false
		}
		elem := zeroOr(arrT.Elem)
		c.lowerExpr(e.Index)
		c.emitA(ir.PushInt, int64(storageSize(elem)), e.Loc)
		c.emit(ir.IntMul, e.Loc)
		c.emit(ir.IntAdd, e.Loc)
		return elem, true
	default:
		c.fail(e.Location(), "выражение не является адресуемым")
		return types.Type{}, false
	}
}

// lowerBinOp lowers both operands (left, then right, matching the
// surface "X op Y" order so IntLT/IntGT/IntSub/IntDiv/IntMod -- whose
// semantics are order-sensitive -- see l=X, r=Y) and the comparisons
// and boolean connectives the ISA doesn't provide directly: "!=" is
// IntEQ negated, "<="/">=" are the strict opposite comparison negated,
// "и" is IntMul (both operands are already canonical 0/1), and "или"
// is IntAdd canonicalized back to 0/1 via ">0".
func (c *Checker) lowerBinOp(e *ast.BinOp) {
	switch e.Op {
	case "и":
		c.lowerExpr(e.X)
		c.lowerExpr(e.Y)
		c.emit(ir.IntMul, e.Loc)
	case "или":
		c.lowerExpr(e.X)
		c.lowerExpr(e.Y)
		c.emit(ir.IntAdd, e.Loc)
		c.emitA(ir.PushInt, 0, e.Loc)
		c.emit(ir.IntGT, e.Loc)
	case "==":
		c.lowerExpr(e.X)
		c.lowerExpr(e.Y)
		c.emit(ir.IntEQ, e.Loc)
	case "!=":
		c.lowerExpr(e.X)
		c.lowerExpr(e.Y)
		c.emit(ir.IntEQ, e.Loc)
		c.emit(ir.LogNot, e.Loc)
	case "<":
		c.lowerExpr(e.X)
		c.lowerExpr(e.Y)
		c.emit(ir.IntLT, e.Loc)
	case ">":
		c.lowerExpr(e.X)
		c.lowerExpr(e.Y)
		c.emit(ir.IntGT, e.Loc)
	case "<=":
		c.lowerExpr(e.X)
		c.lowerExpr(e.Y)
		c.emit(ir.IntGT, e.Loc)
		c.emit(ir.LogNot, e.Loc)
	case ">=":
		c.lowerExpr(e.X)
		c.lowerExpr(e.Y)
		c.emit(ir.IntLT, e.Loc)
		c.emit(ir.LogNot, e.Loc)
	case "+":
		c.lowerExpr(e.X)
		c.lowerExpr(e.Y)
		c.emit(ir.IntAdd, e.Loc)
	case "-":
		c.lowerExpr(e.X)
		c.lowerExpr(e.Y)
		c.emit(ir.IntSub, e.Loc)
	case "*":
		c.lowerExpr(e.X)
		c.lowerExpr(e.Y)
		c.emit(ir.IntMul, e.Loc)
	case "/":
		c.lowerExpr(e.X)
		c.lowerExpr(e.Y)
		c.emit(ir.IntDiv, e.Loc)
	case "ост":
		c.lowerExpr(e.X)
		c.lowerExpr(e.Y)
		c.emit(ir.IntMod, e.Loc)
	default:
		c.fail(e.Loc, "неизвестный оператор «%s»", e.Op)
	}
}
