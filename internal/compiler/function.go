package compiler

import (
	"loxc/internal/ast"

	"tinygo.org/x/go-llvm"
)

// function.go is the per-function code generator: it walks one FunctionStmt's body (or the
// top-level program, treated as an implicit `main` function) and lowers every statement and
// expression to LLVM IR using the value/object/table/gc helpers in the rest of the package.
//
// Local variables are plain allocas; the resolver's scope-distance annotation on every Variable/
// Assign/This/Super node is resolved against a compile-time stack of Go-level scopes rather than
// emitted as a runtime chain walk — ahead-of-time compilation gets to do at compiler-build-time
// what the tree-walking interpreter's Environment chain has to do at run time (spec.md §4.2,
// §4.5). A local captured by a nested function literal is additionally boxed in a heap Upvalue the
// first time it is captured, exactly as spec.md §4.5 describes, and that upvalue is closed when
// its defining scope exits.

type variable struct {
	slot     llvm.Value // i64* alloca
	captured bool
	boxed    llvm.Value // Upvalue*, set once captured
}

type upvalueDesc struct {
	name    string
	isLocal bool // true: index into enclosing's locals; false: index into enclosing's own upvalues
	index   int
	local   *variable // set when isLocal, so the enclosing function can hand over its boxed Upvalue*
}

// funcCompiler holds the Go-level state for compiling one Lox function (or the top-level program)
// to one LLVM function, mirroring the single-pass nested-compiler structure of a clox-style
// bytecode compiler, adapted to emit IR instead of bytecode.
type funcCompiler struct {
	rt        *runtime
	enclosing *funcCompiler
	fn        llvm.Value
	b         llvm.Builder
	scopes    [][]nameVar // stack of block scopes; each scope is declaration-ordered for shadowing.
	upvalues  []upvalueDesc
	fnType    ast.FunctionType
	className string // non-empty inside a method, names the enclosing class (for `super` lowering).
	hasSuper  bool
}

type nameVar struct {
	name string
	v    *variable
}

func newFuncCompiler(rt *runtime, enclosing *funcCompiler, fn llvm.Value) *funcCompiler {
	fc := &funcCompiler{rt: rt, enclosing: enclosing, fn: fn, b: rt.ctx.NewBuilder()}
	fc.beginScope()
	return fc
}

func (fc *funcCompiler) beginScope() { fc.scopes = append(fc.scopes, nil) }

// endScope closes any upvalue boxing an about-to-die local needed and pops the scope.
func (fc *funcCompiler) endScope() {
	top := fc.scopes[len(fc.scopes)-1]
	for i := len(top) - 1; i >= 0; i-- {
		nv := top[i]
		if nv.v.captured {
			fc.b.CreateCall(fc.rt.closeUpvalueFn(), []llvm.Value{nv.v.boxed}, "")
		}
	}
	fc.scopes = fc.scopes[:len(fc.scopes)-1]
}

// declare introduces name in the current scope. At the true top level (the implicit program
// function, at its outermost, never-popped scope) this instead defines a genuine LLVM global and
// registers it in rt.globals — Lox's global scope, unlike a nested block, is never torn down, and
// every reference the resolver leaves at Unresolved distance is looked up there directly rather
// than through the local-scope/upvalue search (see lookupNamed/storeNamed).
func (fc *funcCompiler) declare(name string) *variable {
	if fc.enclosing == nil && len(fc.scopes) == 1 {
		slot := fc.rt.declareGlobal(fc.b, name)
		return &variable{slot: slot}
	}
	slot := fc.b.CreateAlloca(word, name)
	_ = fc.b.CreateStore(uninitializedV, slot)
	v := &variable{slot: slot}
	top := len(fc.scopes) - 1
	fc.scopes[top] = append(fc.scopes[top], nameVar{name, v})
	fc.rt.pushLocalRoot(fc.b, slot)
	return v
}

// declareGlobal creates a module-level i64 slot for a top-level binding, pins it as a GC root (it
// is never popped, spec.md §4.8), and registers it so later Unresolved-distance references resolve
// to it.
func (rt *runtime) declareGlobal(b llvm.Builder, name string) llvm.Value {
	rt.mapsMx.Lock()
	slot, ok := rt.globals[name]
	rt.mapsMx.Unlock()
	if ok {
		return slot
	}
	slot = addGlobalInt(rt.m, word, "g_"+name, qnanBits|tagUninit)
	rt.pushGlobalRoot(b, slot)
	rt.mapsMx.Lock()
	rt.globals[name] = slot
	rt.mapsMx.Unlock()
	return slot
}

func (fc *funcCompiler) resolveLocal(name string) *variable {
	for s := len(fc.scopes) - 1; s >= 0; s-- {
		scope := fc.scopes[s]
		for i := len(scope) - 1; i >= 0; i-- {
			if scope[i].name == name {
				return scope[i].v
			}
		}
	}
	return nil
}

// resolveUpvalue implements the standard single-pass closure-capture search: look for name as a
// local in the immediately enclosing function; if found there, mark it captured and box it (if not
// already boxed) and record a by-local upvalue; otherwise recurse into the enclosing function's own
// upvalue list, chaining captures across more than one level of nesting.
func (fc *funcCompiler) resolveUpvalue(name string) int {
	if fc.enclosing == nil {
		return -1
	}
	if v := fc.enclosing.resolveLocal(name); v != nil {
		if !v.captured {
			v.captured = true
			v.boxed = fc.enclosing.b.CreateCall(fc.rt.makeUpvalueFn(), []llvm.Value{v.slot}, "upvalue")
		}
		return fc.addUpvalue(name, true, -1, v)
	}
	if idx := fc.enclosing.resolveUpvalue(name); idx >= 0 {
		return fc.addUpvalue(name, false, idx, nil)
	}
	return -1
}

func (fc *funcCompiler) addUpvalue(name string, isLocal bool, index int, local *variable) int {
	for i, u := range fc.upvalues {
		if u.name == name {
			return i
		}
	}
	fc.upvalues = append(fc.upvalues, upvalueDesc{name: name, isLocal: isLocal, index: index, local: local})
	return len(fc.upvalues) - 1
}

// loadUpvalue fetches the Upvalue* for the i-th captured variable from this function's own
// Closure parameter (always parameter 0 of every non-top-level compiled function, spec.md §4.5).
func (fc *funcCompiler) loadUpvalue(i int) llvm.Value {
	closureParam := fc.b.CreateBitCast(fc.fn.Param(0), fc.rt.t.closPtr, "closureparam")
	arrPtr := fc.b.CreateStructGEP(closureParam, 2, "uparrptr")
	arr := fc.b.CreateLoad(arrPtr, "uparr")
	slot := fc.b.CreateGEP(arr, []llvm.Value{constWord32(uint64(i))}, "upvslot")
	return fc.b.CreateLoad(slot, "upv")
}

func (rt *runtime) globalSlot(name string) (llvm.Value, bool) {
	rt.mapsMx.Lock()
	defer rt.mapsMx.Unlock()
	g, ok := rt.globals[name]
	return g, ok
}

// --- statement codegen ---

func (fc *funcCompiler) genStmts(stmts []ast.Stmt) {
	for _, s := range stmts {
		fc.genStmt(s)
	}
}

func (fc *funcCompiler) genStmt(s ast.Stmt) {
	switch n := s.(type) {
	case *ast.ExpressionStmt:
		fc.genExpr(n.Expr)
	case *ast.PrintStmt:
		v := fc.genExpr(n.Expr)
		fc.b.CreateCall(fc.rt.printValueFn(), []llvm.Value{v}, "")
	case *ast.VarStmt:
		var v llvm.Value = nilV
		if n.Initializer != nil {
			v = fc.genExpr(n.Initializer)
		}
		variable := fc.declare(n.Name)
		_ = fc.b.CreateStore(v, variable.slot)
	case *ast.BlockStmt:
		fc.beginScope()
		fc.genStmts(n.Stmts)
		fc.endScope()
	case *ast.IfStmt:
		fc.genIf(n)
	case *ast.WhileStmt:
		fc.genWhile(n)
	case *ast.ReturnStmt:
		var v llvm.Value = nilV
		if n.Value != nil {
			v = fc.genExpr(n.Value)
		} else if fc.fnType == ast.FunctionInitializer {
			v = fc.loadThis()
		}
		fc.b.CreateRet(v)
	case *ast.FunctionStmt:
		// Declared before compiling the body so a function can call itself by name: a nested
		// function's body resolves "name" via resolveUpvalue against this very scope.
		variable := fc.declare(n.Name)
		closureVal := fc.genFunctionLiteral(n, ast.FunctionPlain)
		_ = fc.b.CreateStore(closureVal, variable.slot)
	case *ast.ClassStmt:
		fc.genClassStmt(n)
	}
}

func (fc *funcCompiler) genIf(n *ast.IfStmt) {
	cond := fc.genExpr(n.Cond)
	truthy := isTruthy(fc.b, cond)

	thenBB := llvm.AddBasicBlock(fc.fn, "if_then")
	var elseBB llvm.BasicBlock
	convBB := llvm.AddBasicBlock(fc.fn, "if_conv")
	if n.Else != nil {
		elseBB = llvm.AddBasicBlock(fc.fn, "if_else")
	} else {
		elseBB = convBB
	}
	fc.b.CreateCondBr(truthy, thenBB, elseBB)

	fc.b.SetInsertPointAtEnd(thenBB)
	fc.genStmt(n.Then)
	fc.b.CreateBr(convBB)

	if n.Else != nil {
		fc.b.SetInsertPointAtEnd(elseBB)
		fc.genStmt(n.Else)
		fc.b.CreateBr(convBB)
	}

	fc.b.SetInsertPointAtEnd(convBB)
}

// genWhile follows the teacher's head/body/conv block layout for loop lowering.
func (fc *funcCompiler) genWhile(n *ast.WhileStmt) {
	head := llvm.AddBasicBlock(fc.fn, "while_head")
	body := llvm.AddBasicBlock(fc.fn, "while_body")
	conv := llvm.AddBasicBlock(fc.fn, "while_conv")

	fc.b.CreateBr(head)
	fc.b.SetInsertPointAtEnd(head)
	cond := fc.genExpr(n.Cond)
	fc.b.CreateCondBr(isTruthy(fc.b, cond), body, conv)

	fc.b.SetInsertPointAtEnd(body)
	fc.genStmt(n.Body)
	fc.b.CreateBr(head)

	fc.b.SetInsertPointAtEnd(conv)
}

func (fc *funcCompiler) loadThis() llvm.Value {
	v, _ := fc.lookupNamed("this", 0)
	return v
}

// --- expression codegen ---

func (fc *funcCompiler) genExpr(e ast.Expr) llvm.Value {
	switch n := e.(type) {
	case *ast.Literal:
		return fc.genLiteral(n)
	case *ast.Grouping:
		return fc.genExpr(n.Expr)
	case *ast.Unary:
		return fc.genUnary(n)
	case *ast.Binary:
		return fc.genBinary(n)
	case *ast.Logical:
		return fc.genLogical(n)
	case *ast.Variable:
		v, _ := fc.lookupNamed(n.Name, n.Distance)
		return v
	case *ast.Assign:
		return fc.genAssign(n)
	case *ast.This:
		return fc.loadThis()
	case *ast.Super:
		return fc.genSuper(n)
	case *ast.Get:
		return fc.genGet(n)
	case *ast.Set:
		return fc.genSet(n)
	case *ast.Call:
		return fc.genCall(n)
	}
	return nilV
}

func (fc *funcCompiler) genLiteral(n *ast.Literal) llvm.Value {
	switch v := n.Value.(type) {
	case nil:
		return nilV
	case bool:
		if v {
			return trueV
		}
		return falseV
	case float64:
		return numberVal(fc.b, llvm.ConstFloat(fword, v))
	case string:
		return fc.rt.constantString(fc.b, v)
	}
	return nilV
}

func (fc *funcCompiler) genUnary(n *ast.Unary) llvm.Value {
	v := fc.genExpr(n.Expr)
	switch n.Op {
	case "-":
		return numberVal(fc.b, fc.b.CreateFNeg(asNumber(fc.b, v), "neg"))
	case "!":
		return boolVal(fc.b, fc.b.CreateNot(isTruthy(fc.b, v), "not"))
	}
	return nilV
}

func (fc *funcCompiler) genLogical(n *ast.Logical) llvm.Value {
	left := fc.genExpr(n.Left)
	leftTruthy := isTruthy(fc.b, left)

	shortBB := llvm.AddBasicBlock(fc.fn, "logical_short")
	evalBB := llvm.AddBasicBlock(fc.fn, "logical_eval")
	convBB := llvm.AddBasicBlock(fc.fn, "logical_conv")

	if n.Op == "or" {
		fc.b.CreateCondBr(leftTruthy, shortBB, evalBB)
	} else {
		fc.b.CreateCondBr(leftTruthy, evalBB, shortBB)
	}

	fc.b.SetInsertPointAtEnd(shortBB)
	fc.b.CreateBr(convBB)

	fc.b.SetInsertPointAtEnd(evalBB)
	right := fc.genExpr(n.Right)
	rightBlock := fc.b.GetInsertBlock()
	fc.b.CreateBr(convBB)

	fc.b.SetInsertPointAtEnd(convBB)
	phi := fc.b.CreatePHI(word, "logicalphi")
	phi.AddIncoming([]llvm.Value{left, right}, []llvm.BasicBlock{shortBB, rightBlock})
	return phi
}

func (fc *funcCompiler) genBinary(n *ast.Binary) llvm.Value {
	l := fc.genExpr(n.Left)
	r := fc.genExpr(n.Right)
	b := fc.b
	switch n.Op {
	case "+":
		return fc.rt.genAdd(b, fc.fn, l, r)
	case "-":
		return numberVal(b, b.CreateFSub(asNumber(b, l), asNumber(b, r), "sub"))
	case "*":
		return numberVal(b, b.CreateFMul(asNumber(b, l), asNumber(b, r), "mul"))
	case "/":
		return numberVal(b, b.CreateFDiv(asNumber(b, l), asNumber(b, r), "div"))
	case ">":
		return boolVal(b, b.CreateFCmp(llvm.FloatOGT, asNumber(b, l), asNumber(b, r), "gt"))
	case ">=":
		return boolVal(b, b.CreateFCmp(llvm.FloatOGE, asNumber(b, l), asNumber(b, r), "ge"))
	case "<":
		return boolVal(b, b.CreateFCmp(llvm.FloatOLT, asNumber(b, l), asNumber(b, r), "lt"))
	case "<=":
		return boolVal(b, b.CreateFCmp(llvm.FloatOLE, asNumber(b, l), asNumber(b, r), "le"))
	case "==":
		return valuesEqual(b, fc.fn, l, r)
	case "!=":
		eq := valuesEqual(b, fc.fn, l, r)
		return boolVal(b, b.CreateNot(isTruthy(b, eq), "ne"))
	}
	return nilV
}

// genAdd implements spec.md §4.4 "+ overload": number+number adds; string+string concatenates
// (allocating a fresh interned string); any other combination raises the runtime error
// "Operands must be two numbers or two strings.", checked here since NaN-boxed values carry no
// static type.
func (rt *runtime) genAdd(b llvm.Builder, fn llvm.Value, l, r llvm.Value) llvm.Value {
	bothNum := b.CreateAnd(isNumber(b, l), isNumber(b, r), "bothnum")
	numBB := llvm.AddBasicBlock(fn, "add_num")
	strBB := llvm.AddBasicBlock(fn, "add_str")
	convBB := llvm.AddBasicBlock(fn, "add_conv")
	b.CreateCondBr(bothNum, numBB, strBB)

	b.SetInsertPointAtEnd(numBB)
	numResult := numberVal(b, b.CreateFAdd(asNumber(b, l), asNumber(b, r), "sum"))
	b.CreateBr(convBB)

	b.SetInsertPointAtEnd(strBB)
	checkBB := llvm.AddBasicBlock(fn, "add_checkstr")
	concatBB := llvm.AddBasicBlock(fn, "add_concat")
	errBB := llvm.AddBasicBlock(fn, "add_typeerr")
	b.CreateCondBr(b.CreateAnd(isObj(b, l), isObj(b, r), "bothobj"), checkBB, errBB)
	b.SetInsertPointAtEnd(checkBB)
	strTag := llvm.ConstInt(llvm.Int8Type(), objTypeString, false)
	lTag := b.CreateLoad(b.CreateStructGEP(b.CreateBitCast(objPtr(b, l), rt.t.headerPtr, "lhdr"), 0, "ltagptr"), "ltag")
	rTag := b.CreateLoad(b.CreateStructGEP(b.CreateBitCast(objPtr(b, r), rt.t.headerPtr, "rhdr"), 0, "rtagptr"), "rtag")
	bothStr := b.CreateAnd(b.CreateICmp(llvm.IntEQ, lTag, strTag, "lisstr"), b.CreateICmp(llvm.IntEQ, rTag, strTag, "risstr"), "bothstr")
	b.CreateCondBr(bothStr, concatBB, errBB)
	b.SetInsertPointAtEnd(errBB)
	rt.emitFatalError(b, constWord32(0), "Operands must be two numbers or two strings.")
	b.CreateUnreachable()
	b.SetInsertPointAtEnd(concatBB)
	strResult := b.CreateCall(rt.concatFn(), []llvm.Value{l, r}, "concat")
	b.CreateBr(convBB)

	b.SetInsertPointAtEnd(convBB)
	phi := b.CreatePHI(word, "addphi")
	phi.AddIncoming([]llvm.Value{numResult, strResult}, []llvm.BasicBlock{numBB, concatBB})
	return phi
}

func (fc *funcCompiler) genAssign(n *ast.Assign) llvm.Value {
	v := fc.genExpr(n.Value)
	fc.storeNamed(n.Name, n.Distance, v)
	return v
}

func (fc *funcCompiler) genSuper(n *ast.Super) llvm.Value {
	superVal, _ := fc.lookupNamed("super", n.Distance)
	thisVal := fc.loadThis()
	superClass := fc.b.CreateBitCast(objPtr(fc.b, superVal), fc.rt.t.clsPtr, "superclass")
	name := fc.rt.constantString(fc.b, n.Method)
	nameStr := fc.b.CreateBitCast(objPtr(fc.b, name), fc.rt.t.strPtr, "namestr")
	found := fc.b.CreateAlloca(llvm.Int1Type(), "found")
	bound := fc.b.CreateCall(fc.rt.bindMethodFn(), []llvm.Value{superClass, nameStr, thisVal, found}, "bound")
	missBB := llvm.AddBasicBlock(fc.fn, "super_undefined")
	okBB := llvm.AddBasicBlock(fc.fn, "super_ok")
	fc.b.CreateCondBr(fc.b.CreateLoad(found, "hasmethod"), okBB, missBB)
	fc.b.SetInsertPointAtEnd(missBB)
	fc.rt.emitFatalError(fc.b, constWord32(uint64(n.Line())), "Undefined property '"+n.Method+"'.")
	fc.b.CreateUnreachable()
	fc.b.SetInsertPointAtEnd(okBB)
	return bound
}

func (fc *funcCompiler) genGet(n *ast.Get) llvm.Value {
	obj := fc.genExpr(n.Object)
	inst := fc.b.CreateBitCast(objPtr(fc.b, obj), fc.rt.t.instPtr, "inst")
	name := fc.rt.constantString(fc.b, n.Name)
	nameStr := fc.b.CreateBitCast(objPtr(fc.b, name), fc.rt.t.strPtr, "namestr")
	found := fc.b.CreateAlloca(llvm.Int1Type(), "found")
	v := fc.b.CreateCall(fc.rt.getPropertyFn(), []llvm.Value{inst, nameStr, found}, "propval")
	missBB := llvm.AddBasicBlock(fc.fn, "get_undefined")
	okBB := llvm.AddBasicBlock(fc.fn, "get_ok")
	fc.b.CreateCondBr(fc.b.CreateLoad(found, "hasprop"), okBB, missBB)
	fc.b.SetInsertPointAtEnd(missBB)
	fc.rt.emitFatalError(fc.b, constWord32(uint64(n.Line())), "Undefined property '"+n.Name+"'.")
	fc.b.CreateUnreachable()
	fc.b.SetInsertPointAtEnd(okBB)
	return v
}

func (fc *funcCompiler) genSet(n *ast.Set) llvm.Value {
	obj := fc.genExpr(n.Object)
	v := fc.genExpr(n.Value)
	inst := fc.b.CreateBitCast(objPtr(fc.b, obj), fc.rt.t.instPtr, "inst")
	name := fc.rt.constantString(fc.b, n.Name)
	nameStr := fc.b.CreateBitCast(objPtr(fc.b, name), fc.rt.t.strPtr, "namestr")
	fc.b.CreateCall(fc.rt.setPropertyFn(), []llvm.Value{inst, nameStr, v}, "")
	return v
}

func (fc *funcCompiler) genCall(n *ast.Call) llvm.Value {
	callee := fc.genExpr(n.Callee)
	args := make([]llvm.Value, len(n.Args))
	for i, a := range n.Args {
		args[i] = fc.genExpr(a)
	}
	return fc.rt.genCallValue(fc.b, fc.fn, callee, args, n.Paren)
}

// lookupNamed resolves a Variable/This/Super style reference by name: a Distance of Unresolved
// loads the global slot directly; any other distance searches this function's live scopes, then
// captures the name as an upvalue from an enclosing function, then falls back to the global slot.
// The numeric distance itself is not consulted (spec.md §4.2, §4.5).
func (fc *funcCompiler) lookupNamed(name string, distance int) (llvm.Value, *variable) {
	if distance == ast.Unresolved {
		slot, ok := fc.rt.globalSlot(name)
		if !ok {
			fc.rt.emitUndefinedGlobalError(fc.b, fc.fn, name)
		}
		return fc.b.CreateLoad(slot, name), nil
	}
	if v := fc.resolveLocal(name); v != nil {
		if v.captured {
			locPtr := fc.b.CreateStructGEP(v.boxed, 1, "locptr")
			loc := fc.b.CreateLoad(locPtr, "loc")
			return fc.b.CreateLoad(loc, name), v
		}
		return fc.b.CreateLoad(v.slot, name), v
	}
	if idx := fc.resolveUpvalue(name); idx >= 0 {
		up := fc.loadUpvalue(idx)
		locPtr := fc.b.CreateStructGEP(up, 1, "locptr")
		loc := fc.b.CreateLoad(locPtr, "loc")
		return fc.b.CreateLoad(loc, name), nil
	}
	slot, _ := fc.rt.globalSlot(name)
	return fc.b.CreateLoad(slot, name), nil
}

func (fc *funcCompiler) storeNamed(name string, distance int, v llvm.Value) {
	if distance == ast.Unresolved {
		slot, ok := fc.rt.globalSlot(name)
		if !ok {
			fc.rt.emitUndefinedGlobalError(fc.b, fc.fn, name)
			return
		}
		_ = fc.b.CreateStore(v, slot)
		return
	}
	if local := fc.resolveLocal(name); local != nil {
		if local.captured {
			locPtr := fc.b.CreateStructGEP(local.boxed, 1, "locptr")
			loc := fc.b.CreateLoad(locPtr, "loc")
			_ = fc.b.CreateStore(v, loc)
			return
		}
		_ = fc.b.CreateStore(v, local.slot)
		return
	}
	if idx := fc.resolveUpvalue(name); idx >= 0 {
		up := fc.loadUpvalue(idx)
		locPtr := fc.b.CreateStructGEP(up, 1, "locptr")
		loc := fc.b.CreateLoad(locPtr, "loc")
		_ = fc.b.CreateStore(v, loc)
		return
	}
	slot, _ := fc.rt.globalSlot(name)
	_ = fc.b.CreateStore(v, slot)
}
