package compiler

import (
	"loxc/internal/ast"
	"loxc/internal/util"

	"tinygo.org/x/go-llvm"
)

// toplevel.go compiles function and class declarations: each becomes its own LLVM function (using
// the uniform callable ABI of natives.go) wrapped in a heap Function object, then a Closure that
// captures whatever upvalues the body's compilation discovered it needs. Methods additionally
// receive an implicit receiver as args[0] (spec.md §4.5 "this"), and a class with a superclass
// opens a scope binding `super` in the *enclosing* function so every method closure captures it the
// same way it would capture any other outer local (spec.md §4.5 "super resolves lexically").

// genFunctionLiteral compiles n's body into a new LLVM function and wraps it in a Closure value,
// evaluated in the caller's (fc's) current insertion point once the nested body is done. The
// Closure's upvalue array can only be built once the body has been walked (resolveUpvalue
// populates inner.upvalues lazily as the body references outer names), so header and body must be
// compiled back to back here; this is the general path used for methods and nested function
// literals, which may legitimately capture.
func (fc *funcCompiler) genFunctionLiteral(n *ast.FunctionStmt, fnType ast.FunctionType) llvm.Value {
	innerFn, inner := declareInnerFunction(fc, n, fnType)
	inner.genStmts(n.Body)
	finishBody(inner, fnType)

	functionObj := fc.rt.makeFunctionValue(fc.b, innerFn, totalArgSlots(n, fnType), n.Name, false)
	closureVal := fc.rt.makeClosureValue(fc.b, b2objptr(fc.b, functionObj), captureUpvalues(fc, inner))
	return closureVal
}

// genTopLevelFunctionHeader declares and fully wraps a top-level `fun` statement's Closure without
// compiling its body. Top-level code runs in the implicit program function's single, permanent
// scope (see funcCompiler.declare), which never holds genuine locals — so a top-level function's
// resolveUpvalue chain always bottoms out at the global table, and inner.upvalues is provably
// always empty regardless of when the body is compiled. That's what makes it sound for module.go
// to build every top-level function's Closure up front, in program order, and then hand the
// returned funcWrapper's body off to a worker goroutine: the Closure never depends on what the body
// compilation discovers.
func (fc *funcCompiler) genTopLevelFunctionHeader(n *ast.FunctionStmt) (llvm.Value, *funcWrapper) {
	innerFn, inner := declareInnerFunction(fc, n, ast.FunctionPlain)
	functionObj := fc.rt.makeFunctionValue(fc.b, innerFn, totalArgSlots(n, ast.FunctionPlain), n.Name, false)
	closureVal := fc.rt.makeClosureValue(fc.b, b2objptr(fc.b, functionObj), nil)
	return closureVal, &funcWrapper{inner: inner, body: n.Body, fnType: ast.FunctionPlain}
}

// funcWrapper pairs a function body still to be compiled with the funcCompiler already positioned
// to compile it (entry block created, params bound). module.go uses this to fan independent
// top-level bodies out across opt.Threads workers once their (order-dependent) headers have all
// been built sequentially.
type funcWrapper struct {
	inner  *funcCompiler
	body   []ast.Stmt
	fnType ast.FunctionType
}

// compileBody finishes compiling the function: its statements, the implicit fallthrough return,
// and closing its top scope. Safe to call on a goroutine of its own, since it only ever touches
// w.inner's private builder and state, never the declaring scope's.
func (w *funcWrapper) compileBody() {
	w.inner.genStmts(w.body)
	finishBody(w.inner, w.fnType)
}

// declareInnerFunction builds n's LLVM function skeleton, a funcCompiler positioned at its entry
// block, and binds the implicit receiver (for methods) plus every parameter — everything a body
// needs before genStmts can run.
func declareInnerFunction(fc *funcCompiler, n *ast.FunctionStmt, fnType ast.FunctionType) (llvm.Value, *funcCompiler) {
	rt := fc.rt
	innerFnTy := rt.nativeSig()
	innerFn := llvm.AddFunction(rt.m, mangledFnName(n.Name), innerFnTy)
	entry := llvm.AddBasicBlock(innerFn, "entry")

	inner := newFuncCompiler(rt, fc, innerFn)
	inner.fnType = fnType
	inner.b.SetInsertPointAtEnd(entry)

	isMethod := fnType == ast.FunctionMethod || fnType == ast.FunctionInitializer
	argsArr := innerFn.Param(1)
	slot := 0
	if isMethod {
		thisVar := inner.declare("this")
		thisVal := inner.b.CreateLoad(inner.b.CreateGEP(argsArr, []llvm.Value{constWord32(0)}, "thisarg"), "thisval")
		_ = inner.b.CreateStore(thisVal, thisVar.slot)
		slot++
	}
	for _, p := range n.Params {
		pv := inner.declare(p)
		argVal := inner.b.CreateLoad(inner.b.CreateGEP(argsArr, []llvm.Value{constWord32(uint64(slot))}, "arg_"+p), p)
		_ = inner.b.CreateStore(argVal, pv.slot)
		slot++
	}
	return innerFn, inner
}

// finishBody emits the implicit fallthrough return (nil, or `this` for an initializer, per
// spec.md §4.5) every function needs once every explicit path has already returned, and closes the
// function's outermost scope.
func finishBody(inner *funcCompiler, fnType ast.FunctionType) {
	if fnType == ast.FunctionInitializer {
		inner.b.CreateRet(inner.loadThis())
	} else {
		inner.b.CreateRet(nilV)
	}
	inner.endScope()
}

// totalArgSlots is the full args-array length a function's ABI expects, including the implicit
// receiver slot for methods, so invokeFunction's arity check covers both cases uniformly.
func totalArgSlots(n *ast.FunctionStmt, fnType ast.FunctionType) int {
	n2 := len(n.Params)
	if fnType == ast.FunctionMethod || fnType == ast.FunctionInitializer {
		n2++
	}
	return n2
}

// captureUpvalues reads off inner's discovered upvalues (populated by resolveUpvalue calls made
// while compiling inner's body) and resolves each one against fc, the enclosing compiler.
func captureUpvalues(fc *funcCompiler, inner *funcCompiler) []llvm.Value {
	upvalueVals := make([]llvm.Value, len(inner.upvalues))
	for i, u := range inner.upvalues {
		if u.isLocal {
			upvalueVals[i] = u.local.boxed
		} else {
			upvalueVals[i] = fc.loadUpvalue(u.index)
		}
	}
	return upvalueVals
}

// b2objptr unwraps a boxed word back to the raw i8* object pointer (a small naming convenience
// for call sites that just produced the word via makeFunctionValue/objVal and need the pointer
// back for makeClosureValue's allocateObject-shaped parameter).
func b2objptr(b llvm.Builder, v llvm.Value) llvm.Value { return objPtr(b, v) }

// mangledFnName produces a unique LLVM symbol for a Lox function literal; Lox allows shadowing and
// redeclaration that LLVM's global symbol table does not, so every compiled function gets its own
// process-unique label regardless of its source name.
func mangledFnName(srcName string) string {
	if srcName == "" {
		srcName = "anon"
	}
	return "lox_" + srcName + "_" + util.NewLabel(util.LabelFunction)
}

// makeFunctionValue allocates a Function object wrapping the LLVM function code, with arity set to
// totalSlots (the full args-array length this function's ABI expects, including the implicit
// receiver slot for methods, so invokeFunction's single arity check covers both cases uniformly).
func (rt *runtime) makeFunctionValue(b llvm.Builder, code llvm.Value, totalSlots int, name string, isNative bool) llvm.Value {
	obj := b.CreateCall(rt.allocateObjectFn(), []llvm.Value{llvm.SizeOf(rt.t.fn), llvm.ConstInt(llvm.Int8Type(), objTypeFunction, false)}, "fnobj")
	fnStruct := b.CreateBitCast(obj, rt.t.fnPtr, "fnstruct")
	arityPtr := b.CreateStructGEP(fnStruct, 1, "arityptr")
	_ = b.CreateStore(constWord32(uint64(totalSlots)), arityPtr)
	codePtr := b.CreateStructGEP(fnStruct, 2, "codeptr")
	_ = b.CreateStore(b.CreateBitCast(code, ptrTy, "codeasi8"), codePtr)
	nameVal := rt.constantString(b, name)
	namePtr := b.CreateStructGEP(fnStruct, 3, "nameptr")
	_ = b.CreateStore(b.CreateBitCast(objPtr(b, nameVal), rt.t.strPtr, "nameasstr"), namePtr)
	isNativePtr := b.CreateStructGEP(fnStruct, 4, "isnativeptr")
	nativeBit := uint64(0)
	if isNative {
		nativeBit = 1
	}
	_ = b.CreateStore(llvm.ConstInt(llvm.Int1Type(), nativeBit, false), isNativePtr)
	return objVal(b, b.CreateBitCast(fnStruct, ptrTy, "fnasi8"))
}

// genClassStmt lowers a class declaration: build the Class object, open (if there is a
// superclass) a `super` scope in the enclosing function so every method captures it as an upvalue,
// compile and install each method, then declare the class's own name.
func (fc *funcCompiler) genClassStmt(n *ast.ClassStmt) {
	rt := fc.rt
	nameVal := rt.constantString(fc.b, n.Name)

	var superVal llvm.Value = nilV
	if n.Super != nil {
		v, _ := fc.lookupNamed(n.Super.Name, n.Super.Distance)
		superVal = v
	}

	classVal := rt.makeClassValue(fc.b, nameVal, superVal)
	classVar := fc.declare(n.Name)
	_ = fc.b.CreateStore(classVal, classVar.slot)

	hadSuperScope := n.Super != nil
	if hadSuperScope {
		fc.beginScope()
		superVar := fc.declare("super")
		_ = fc.b.CreateStore(superVal, superVar.slot)
	}

	classObj := b2objptr(fc.b, classVal)
	classStruct := fc.b.CreateBitCast(classObj, rt.t.clsPtr, "classstruct")
	methodsPtr := fc.b.CreateStructGEP(classStruct, 3, "methodsptr")

	for _, m := range n.Methods {
		fnType := ast.FunctionMethod
		if m.Name == "init" {
			fnType = ast.FunctionInitializer
		}
		methodClosure := fc.genFunctionLiteral(m, fnType)
		methodName := rt.constantString(fc.b, m.Name)
		methodNameStr := fc.b.CreateBitCast(objPtr(fc.b, methodName), rt.t.strPtr, "methodnamestr")
		hashPtr := fc.b.CreateStructGEP(methodNameStr, 3, "hashptr")
		hash32 := fc.b.CreateLoad(hashPtr, "hash32")
		hash := fc.b.CreateZExt(hash32, word, "hash")
		fc.b.CreateCall(rt.tableSetFn(), []llvm.Value{methodsPtr, methodNameStr, hash, methodClosure}, "")
	}

	if hadSuperScope {
		fc.endScope()
	}
}
