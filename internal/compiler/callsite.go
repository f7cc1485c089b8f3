package compiler

import "tinygo.org/x/go-llvm"

// callsite.go lowers spec.md §4.5 "Calling": the callee is checked to be some callable object,
// dispatched on its type tag, arity-checked against the Function it ultimately runs, pushed onto
// the call stack for stack-trace purposes, and invoked through the uniform callable ABI every
// Function.function_ptr shares (see natives.go's nativeSig comment) regardless of whether it is a
// Lox closure, a bound method, or a native.

// genCallValue emits `callee(args...)`, reporting the two runtime call errors of spec.md §7
// ("Can only call functions and classes.", "Expected N arguments but got M.") and managing the call
// stack around the actual invocation.
func (rt *runtime) genCallValue(b llvm.Builder, fn llvm.Value, callee llvm.Value, args []llvm.Value, line int) llvm.Value {
	notCallableBB := llvm.AddBasicBlock(fn, "call_notcallable")
	dispatchBB := llvm.AddBasicBlock(fn, "call_dispatch")

	b.CreateCondBr(isObj(b, callee), dispatchBB, notCallableBB)

	b.SetInsertPointAtEnd(notCallableBB)
	rt.emitFatalError(b, constWord32(uint64(line)), "Can only call functions and classes.")
	b.CreateUnreachable()

	b.SetInsertPointAtEnd(dispatchBB)
	obj := b.CreateBitCast(objPtr(b, callee), rt.t.headerPtr, "callobj")
	typePtr := b.CreateStructGEP(obj, 0, "typeptr")
	tag := b.CreateLoad(typePtr, "tag")

	closureBB := llvm.AddBasicBlock(fn, "call_closure")
	classBB := llvm.AddBasicBlock(fn, "call_class")
	boundBB := llvm.AddBasicBlock(fn, "call_bound")
	badBB := llvm.AddBasicBlock(fn, "call_bad")
	convBB := llvm.AddBasicBlock(fn, "call_conv")

	sw := b.CreateSwitch(tag, badBB, 3)
	sw.AddCase(llvm.ConstInt(llvm.Int8Type(), objTypeClosure, false), closureBB)
	sw.AddCase(llvm.ConstInt(llvm.Int8Type(), objTypeClass, false), classBB)
	sw.AddCase(llvm.ConstInt(llvm.Int8Type(), objTypeBoundMethod, false), boundBB)

	b.SetInsertPointAtEnd(badBB)
	rt.emitFatalError(b, constWord32(uint64(line)), "Can only call functions and classes.")
	b.CreateUnreachable()

	b.SetInsertPointAtEnd(closureBB)
	closure := b.CreateBitCast(obj, rt.t.closPtr, "closure")
	closureResult := rt.invokeClosure(b, fn, closure, args, line)
	closureDoneBlock := b.GetInsertBlock()
	b.CreateBr(convBB)

	b.SetInsertPointAtEnd(classBB)
	class := b.CreateBitCast(obj, rt.t.clsPtr, "class")
	classResult := rt.invokeConstructor(b, fn, class, args, line)
	classDoneBlock := b.GetInsertBlock()
	b.CreateBr(convBB)

	b.SetInsertPointAtEnd(boundBB)
	bound := b.CreateBitCast(obj, rt.t.boundPtr, "bound")
	recvPtr := b.CreateStructGEP(bound, 1, "recvptr")
	receiver := b.CreateLoad(recvPtr, "receiver")
	methPtr := b.CreateStructGEP(bound, 2, "methptr")
	methodClosure := b.CreateLoad(methPtr, "methodclosure")
	boundResult := rt.invokeClosure(b, fn, methodClosure, append([]llvm.Value{receiver}, args...), line)
	boundDoneBlock := b.GetInsertBlock()
	b.CreateBr(convBB)

	b.SetInsertPointAtEnd(convBB)
	phi := b.CreatePHI(word, "callresult")
	phi.AddIncoming(
		[]llvm.Value{closureResult, classResult, boundResult},
		[]llvm.BasicBlock{closureDoneBlock, classDoneBlock, boundDoneBlock})
	return phi
}

// invokeClosure checks arity against the wrapped Function, pushes/pops a call frame, and calls
// through the function pointer with a freshly built args array (the uniform ABI, see natives.go).
func (rt *runtime) invokeClosure(b llvm.Builder, fn llvm.Value, closure llvm.Value, args []llvm.Value, line int) llvm.Value {
	fnPtr := b.CreateStructGEP(closure, 1, "fnptr")
	function := b.CreateLoad(fnPtr, "function")
	return rt.invokeFunction(b, fn, closure, function, args, line)
}

// invokeFunction performs the shared arity-check/call-frame/dispatch sequence given an already
// resolved Closure* (or null, for a direct call with no enclosing closure — not produced by this
// compiler, but kept general) and the Function* describing it.
func (rt *runtime) invokeFunction(b llvm.Builder, fn, closure, function llvm.Value, args []llvm.Value, line int) llvm.Value {
	arityPtr := b.CreateStructGEP(function, 1, "arityptr")
	arity := b.CreateLoad(arityPtr, "arity")
	gotArity := constWord32(uint64(len(args)))
	arityOK := b.CreateICmp(llvm.IntEQ, arity, gotArity, "arityok")

	mismatchBB := llvm.AddBasicBlock(fn, "call_arity_mismatch")
	okBB := llvm.AddBasicBlock(fn, "call_arity_ok")
	b.CreateCondBr(arityOK, okBB, mismatchBB)

	b.SetInsertPointAtEnd(mismatchBB)
	rt.emitFatalErrorf(b, constWord32(uint64(line)), "Expected %d arguments but got %d.", arity, gotArity)
	b.CreateUnreachable()

	b.SetInsertPointAtEnd(okBB)
	namePtr := b.CreateStructGEP(function, 3, "nameptr")
	nameStr := b.CreateLoad(namePtr, "namestr")
	nameChars := b.CreateLoad(b.CreateStructGEP(nameStr, 1, "namecharsptr"), "namechars")
	rt.pushCallFrame(b, rt.m, fn, constWord32(uint64(line)), nameChars)

	argsArr := b.CreateAlloca(llvm.ArrayType(word, len(args)+1), "callargs") // +1 keeps a valid alloca for zero-arg calls.
	for i, a := range args {
		slot := b.CreateGEP(argsArr, []llvm.Value{constWord32(0), constWord32(uint64(i))}, "argslot")
		_ = b.CreateStore(a, slot)
	}
	argsPtr := b.CreateGEP(argsArr, []llvm.Value{constWord32(0), constWord32(0)}, "argsptr")

	codePtr := b.CreateStructGEP(function, 2, "codeptr")
	code := b.CreateLoad(codePtr, "code")
	fnTy := llvm.PointerType(rt.nativeSig(), 0)
	callee := b.CreateBitCast(code, fnTy, "callee")
	closureAsI8 := b.CreateBitCast(closure, ptrTy, "closureasi8")
	result := b.CreateCall(callee, []llvm.Value{closureAsI8, argsPtr}, "result")

	rt.popCallFrame(b)
	return result
}

// invokeConstructor builds a fresh Instance and, if the class (or a superclass) defines `init`,
// invokes it bound to the new instance; the constructed instance, not init's own return value, is
// the call's result (spec.md §4.5 "init always yields the new instance").
func (rt *runtime) invokeConstructor(b llvm.Builder, fn llvm.Value, class llvm.Value, args []llvm.Value, line int) llvm.Value {
	instVal := rt.makeInstanceValue(b, objVal(b, b.CreateBitCast(class, ptrTy, "classasi8")))

	initName := rt.constantString(b, "init")
	initNameStr := b.CreateBitCast(objPtr(b, initName), rt.t.strPtr, "initnamestr")
	method := b.CreateAlloca(word, "initmethod")
	found := rt.findMethodInto(b, fn, class, initNameStr, method)

	hasInitBB := llvm.AddBasicBlock(fn, "ctor_has_init")
	noInitBB := llvm.AddBasicBlock(fn, "ctor_no_init")
	convBB := llvm.AddBasicBlock(fn, "ctor_conv")
	b.CreateCondBr(found, hasInitBB, noInitBB)

	b.SetInsertPointAtEnd(hasInitBB)
	initClosureVal := b.CreateLoad(method, "initclosureval")
	initClosure := b.CreateBitCast(objPtr(b, initClosureVal), rt.t.closPtr, "initclosure")
	rt.invokeClosure(b, fn, initClosure, append([]llvm.Value{instVal}, args...), line)
	hasInitDoneBlock := b.GetInsertBlock()
	b.CreateBr(convBB)

	b.SetInsertPointAtEnd(noInitBB)
	noArgsBB := llvm.AddBasicBlock(fn, "ctor_no_init_ok")
	tooManyBB := llvm.AddBasicBlock(fn, "ctor_too_many")
	b.CreateCondBr(b.CreateICmp(llvm.IntEQ, constWord32(uint64(len(args))), constWord32(0), "noargs"), noArgsBB, tooManyBB)
	b.SetInsertPointAtEnd(tooManyBB)
	rt.emitFatalErrorf(b, constWord32(uint64(line)), "Expected 0 arguments but got %d.", constWord32(uint64(len(args))))
	b.CreateUnreachable()
	b.SetInsertPointAtEnd(noArgsBB)
	noInitDoneBlock := b.GetInsertBlock()
	b.CreateBr(convBB)

	b.SetInsertPointAtEnd(convBB)
	phi := b.CreatePHI(word, "ctorresult")
	phi.AddIncoming([]llvm.Value{instVal, instVal}, []llvm.BasicBlock{hasInitDoneBlock, noInitDoneBlock})
	return phi
}
