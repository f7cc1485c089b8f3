package compiler

import "tinygo.org/x/go-llvm"

// classes.go lowers spec.md §4.5's object model: classes hold a method table and an optional
// superclass pointer; instances hold a class pointer and a field table; calling obj.method looks
// fields up first, then walks the superclass chain (real IR control flow, since the chain's depth
// is not known until run time — unlike upvalue-array population, which is known statically once a
// function literal's body has been compiled). Bound methods wrap a receiver with a Closure so they can be passed around and later
// invoked without re-resolving the method.

// makeClassValue allocates a Class object with the given interned name and superclass (NIL_VAL if
// none) and an empty method table; methods are added afterward via tableSet on its method table
// field as the class body is lowered.
func (rt *runtime) makeClassValue(b llvm.Builder, name llvm.Value, super llvm.Value) llvm.Value {
	obj := b.CreateCall(rt.allocateObjectFn(), []llvm.Value{llvm.SizeOf(rt.t.class), llvm.ConstInt(llvm.Int8Type(), objTypeClass, false)}, "classobj")
	class := b.CreateBitCast(obj, rt.t.clsPtr, "class")
	namePtr := b.CreateStructGEP(class, 1, "nameptr")
	_ = b.CreateStore(b.CreateBitCast(objPtr(b, name), rt.t.strPtr, "nameasstr"), namePtr)
	superPtr := b.CreateStructGEP(class, 2, "superptr")
	superClsPtr := b.CreateSelect(isObj(b, super),
		b.CreateBitCast(objPtr(b, super), rt.t.clsPtr, "superasclassptr"),
		llvm.ConstNull(rt.t.clsPtr), "superorNull")
	_ = b.CreateStore(superClsPtr, superPtr)
	methodsPtr := b.CreateStructGEP(class, 3, "methodsptr")
	_ = b.CreateStore(llvm.ConstNull(rt.t.table), methodsPtr)
	return objVal(b, b.CreateBitCast(class, ptrTy, "classasi8"))
}

// bindMethodFn emits `word bindMethod(Class* class, String* name, word receiver, i1* found)`: find
// the method (walking supers) and, if present, wrap it with the receiver in a fresh BoundMethod
// (spec.md §4.5 "Method access returns a bound method").
func (rt *runtime) bindMethodFn() llvm.Value {
	return rt.fn("bindMethod", func() llvm.Value {
		fnTy := llvm.FunctionType(word, []llvm.Type{rt.t.clsPtr, rt.t.strPtr, word, llvm.PointerType(llvm.Int1Type(), 0)}, false)
		fn := llvm.AddFunction(rt.m, "bindMethod", fnTy)
		class, name, receiver, foundOut := fn.Param(0), fn.Param(1), fn.Param(2), fn.Param(3)

		entry := llvm.AddBasicBlock(fn, "entry")
		missBlk := llvm.AddBasicBlock(fn, "miss")
		hitBlk := llvm.AddBasicBlock(fn, "hit")

		b := rt.ctx.NewBuilder()
		defer b.Dispose()
		b.SetInsertPointAtEnd(entry)
		method := b.CreateAlloca(word, "method")
		found := rt.findMethodInto(b, fn, class, name, method)
		b.CreateCondBr(found, hitBlk, missBlk)

		b.SetInsertPointAtEnd(missBlk)
		_ = b.CreateStore(llvm.ConstInt(llvm.Int1Type(), 0, false), foundOut)
		b.CreateRet(nilV)

		b.SetInsertPointAtEnd(hitBlk)
		closureVal := b.CreateLoad(method, "closureval")
		closure := b.CreateBitCast(objPtr(b, closureVal), rt.t.closPtr, "closure")
		obj := b.CreateCall(rt.allocateObjectFn(), []llvm.Value{llvm.SizeOf(rt.t.bound), llvm.ConstInt(llvm.Int8Type(), objTypeBoundMethod, false)}, "boundobj")
		bound := b.CreateBitCast(obj, rt.t.boundPtr, "bound")
		recvPtr := b.CreateStructGEP(bound, 1, "recvptr")
		_ = b.CreateStore(receiver, recvPtr)
		methPtr := b.CreateStructGEP(bound, 2, "methptr")
		_ = b.CreateStore(closure, methPtr)
		_ = b.CreateStore(llvm.ConstInt(llvm.Int1Type(), 1, false), foundOut)
		b.CreateRet(objVal(b, b.CreateBitCast(bound, ptrTy, "boundasi8")))

		return fn
	})
}

// findMethodInto walks class, then class.super, then class.super.super, … until name is found in
// some class's method table or the chain is exhausted (spec.md §4.5 "Inheritance — method
// resolution order"); *outSlot receives the method's word value, and the returned i1 reports hit
// vs. miss.
func (rt *runtime) findMethodInto(b llvm.Builder, fn llvm.Value, class llvm.Value, name llvm.Value, outSlot llvm.Value) llvm.Value {
	classSlot := b.CreateAlloca(rt.t.clsPtr, "cur")
	_ = b.CreateStore(class, classSlot)
	foundSlot := b.CreateAlloca(llvm.Int1Type(), "found")
	_ = b.CreateStore(llvm.ConstInt(llvm.Int1Type(), 0, false), foundSlot)

	head := llvm.AddBasicBlock(fn, "findmethod_head")
	lookup := llvm.AddBasicBlock(fn, "findmethod_lookup")
	hitBlk := llvm.AddBasicBlock(fn, "findmethod_hit")
	missBlk := llvm.AddBasicBlock(fn, "findmethod_miss")
	conv := llvm.AddBasicBlock(fn, "findmethod_conv")

	b.CreateBr(head)
	b.SetInsertPointAtEnd(head)
	cur := b.CreateLoad(classSlot, "curv")
	hasCur := b.CreateICmp(llvm.IntNE, b.CreatePtrToInt(cur, word, "curint"), constWord(0), "hascur")
	b.CreateCondBr(hasCur, lookup, conv)

	b.SetInsertPointAtEnd(lookup)
	methodsPtr := b.CreateStructGEP(cur, 3, "methodsptr")
	nameHashPtr := b.CreateStructGEP(name, 3, "namehashptr")
	hash32 := b.CreateLoad(nameHashPtr, "hash32")
	hash := b.CreateZExt(hash32, word, "hash")
	foundHere := b.CreateAlloca(llvm.Int1Type(), "foundhere")
	val := b.CreateCall(rt.tableGetFn(), []llvm.Value{methodsPtr, name, hash, foundHere}, "val")
	isHit := b.CreateLoad(foundHere, "ishit")
	b.CreateCondBr(isHit, hitBlk, missBlk)

	b.SetInsertPointAtEnd(hitBlk)
	_ = b.CreateStore(val, outSlot)
	_ = b.CreateStore(llvm.ConstInt(llvm.Int1Type(), 1, false), foundSlot)
	b.CreateBr(conv)

	b.SetInsertPointAtEnd(missBlk)
	superPtr := b.CreateStructGEP(cur, 2, "superptr")
	_ = b.CreateStore(b.CreateLoad(superPtr, "super"), classSlot)
	b.CreateBr(head)

	b.SetInsertPointAtEnd(conv)
	return b.CreateLoad(foundSlot, "foundfinal")
}

// makeInstanceValue allocates an Instance for class with an empty field table.
func (rt *runtime) makeInstanceValue(b llvm.Builder, class llvm.Value) llvm.Value {
	obj := b.CreateCall(rt.allocateObjectFn(), []llvm.Value{llvm.SizeOf(rt.t.inst), llvm.ConstInt(llvm.Int8Type(), objTypeInstance, false)}, "instobj")
	inst := b.CreateBitCast(obj, rt.t.instPtr, "inst")
	clsPtr := b.CreateStructGEP(inst, 1, "clsptr")
	_ = b.CreateStore(b.CreateBitCast(objPtr(b, class), rt.t.clsPtr, "classasptr"), clsPtr)
	fieldsPtr := b.CreateStructGEP(inst, 2, "fieldsptr")
	_ = b.CreateStore(llvm.ConstNull(rt.t.table), fieldsPtr)
	return objVal(b, b.CreateBitCast(inst, ptrTy, "instasi8"))
}

// getPropertyFn emits `word getProperty(Instance* inst, String* name, i1* found)`: spec.md §4.5
// "field lookup takes priority over methods" — check the instance's own field table first, then
// fall back to bindMethod walking the class's method chain.
func (rt *runtime) getPropertyFn() llvm.Value {
	return rt.fn("getProperty", func() llvm.Value {
		fnTy := llvm.FunctionType(word, []llvm.Type{rt.t.instPtr, rt.t.strPtr, llvm.PointerType(llvm.Int1Type(), 0)}, false)
		fn := llvm.AddFunction(rt.m, "getProperty", fnTy)
		inst, name, foundOut := fn.Param(0), fn.Param(1), fn.Param(2)

		entry := llvm.AddBasicBlock(fn, "entry")
		fieldHitBlk := llvm.AddBasicBlock(fn, "fieldhit")
		tryMethodBlk := llvm.AddBasicBlock(fn, "trymethod")

		b := rt.ctx.NewBuilder()
		defer b.Dispose()
		b.SetInsertPointAtEnd(entry)
		fieldsPtr := b.CreateStructGEP(inst, 2, "fieldsptr")
		nameHashPtr := b.CreateStructGEP(name, 3, "namehashptr")
		hash32 := b.CreateLoad(nameHashPtr, "hash32")
		hash := b.CreateZExt(hash32, word, "hash")
		fieldFound := b.CreateAlloca(llvm.Int1Type(), "fieldfound")
		fieldVal := b.CreateCall(rt.tableGetFn(), []llvm.Value{fieldsPtr, name, hash, fieldFound}, "fieldval")
		hasField := b.CreateLoad(fieldFound, "hasfield")
		b.CreateCondBr(hasField, fieldHitBlk, tryMethodBlk)

		b.SetInsertPointAtEnd(fieldHitBlk)
		_ = b.CreateStore(llvm.ConstInt(llvm.Int1Type(), 1, false), foundOut)
		b.CreateRet(fieldVal)

		b.SetInsertPointAtEnd(tryMethodBlk)
		clsPtr := b.CreateStructGEP(inst, 1, "clsptr")
		class := b.CreateLoad(clsPtr, "class")
		receiver := objVal(b, b.CreateBitCast(inst, ptrTy, "instasi8"))
		bound := b.CreateCall(rt.bindMethodFn(), []llvm.Value{class, name, receiver, foundOut}, "bound")
		b.CreateRet(bound)

		return fn
	})
}

// setPropertyFn emits `void setProperty(Instance* inst, String* name, word value)`, always writing
// into the instance's own field table — Lox has no declared-field list, so assignment simply
// creates the field on first write (spec.md §4.5 "Fields").
func (rt *runtime) setPropertyFn() llvm.Value {
	return rt.fn("setProperty", func() llvm.Value {
		fnTy := llvm.FunctionType(llvm.VoidType(), []llvm.Type{rt.t.instPtr, rt.t.strPtr, word}, false)
		fn := llvm.AddFunction(rt.m, "setProperty", fnTy)
		inst, name, value := fn.Param(0), fn.Param(1), fn.Param(2)
		entry := llvm.AddBasicBlock(fn, "entry")
		b := rt.ctx.NewBuilder()
		defer b.Dispose()
		b.SetInsertPointAtEnd(entry)
		fieldsPtr := b.CreateStructGEP(inst, 2, "fieldsptr")
		nameHashPtr := b.CreateStructGEP(name, 3, "namehashptr")
		hash32 := b.CreateLoad(nameHashPtr, "hash32")
		hash := b.CreateZExt(hash32, word, "hash")
		b.CreateCall(rt.tableSetFn(), []llvm.Value{fieldsPtr, name, hash, value}, "")
		b.CreateRetVoid()
		return fn
	})
}
