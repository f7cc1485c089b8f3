package compiler

import "tinygo.org/x/go-llvm"

// stringify.go lowers value-to-text conversion (spec.md §4.4 "Stringification", used by both
// `print` and `printerr`; string concatenation with a non-string operand is a runtime error raised
// by genAdd, not a conversion — only printing stringifies arbitrary values). Numbers are formatted
// by libc's snprintf with "%g", which keeps at most six significant digits and prints integral
// doubles without a trailing ".0", as the interpreter backend's stringify
// (internal/interp/interpreter.go) does for integral values.
func (rt *runtime) stringifyFn() llvm.Value {
	return rt.fn("stringify", func() llvm.Value {
		fnTy := llvm.FunctionType(ptrTy, []llvm.Type{word}, false)
		fn := llvm.AddFunction(rt.m, "stringify", fnTy)
		v := fn.Param(0)

		entry := llvm.AddBasicBlock(fn, "entry")
		nilBB := llvm.AddBasicBlock(fn, "s_nil")
		boolBB := llvm.AddBasicBlock(fn, "s_bool")
		numBB := llvm.AddBasicBlock(fn, "s_num")
		objBB := llvm.AddBasicBlock(fn, "s_obj")

		b := rt.ctx.NewBuilder()
		defer b.Dispose()
		b.SetInsertPointAtEnd(entry)
		isNilV := isNil(b, v)
		nilCheckNext := llvm.AddBasicBlock(fn, "s_check_bool")
		b.CreateCondBr(isNilV, nilBB, nilCheckNext)

		b.SetInsertPointAtEnd(nilBB)
		b.CreateRet(rt.constantCString(b, "nil"))

		b.SetInsertPointAtEnd(nilCheckNext)
		isBoolV := isBool(b, v)
		boolCheckNext := llvm.AddBasicBlock(fn, "s_check_num")
		b.CreateCondBr(isBoolV, boolBB, boolCheckNext)

		b.SetInsertPointAtEnd(boolBB)
		isTrue := b.CreateICmp(llvm.IntEQ, v, trueV, "istrue")
		b.CreateRet(b.CreateSelect(isTrue, rt.constantCString(b, "true"), rt.constantCString(b, "false"), "boolstr"))

		b.SetInsertPointAtEnd(boolCheckNext)
		isNumV := isNumber(b, v)
		b.CreateCondBr(isNumV, numBB, objBB)

		b.SetInsertPointAtEnd(numBB)
		buf := b.CreateAlloca(llvm.ArrayType(llvm.Int8Type(), 32), "numbuf")
		bufPtr := b.CreateGEP(buf, []llvm.Value{constWord32(0), constWord32(0)}, "bufptr")
		fmtStr := rt.constantCString(b, "%g")
		b.CreateCall(rt.libcSnprintf(), []llvm.Value{bufPtr, llvm.ConstInt(word, 32, false), fmtStr, asNumber(b, v)}, "")
		b.CreateRet(bufPtr)

		b.SetInsertPointAtEnd(objBB)
		b.CreateRet(rt.stringifyObjectValue(b, v))

		return fn
	})
}

// stringifyObjectValue dispatches on the object's type tag for the non-scalar cases of
// stringify: a String prints its own bytes, a Closure prints "<fn>", a Class prints its name, an
// Instance prints its class's name, and any other object prints "<object>" (spec.md §4.4).
func (rt *runtime) stringifyObjectValue(b llvm.Builder, v llvm.Value) llvm.Value {
	fn := b.GetInsertBlock().Parent()
	obj := b.CreateBitCast(objPtr(b, v), rt.t.headerPtr, "obj")
	typePtr := b.CreateStructGEP(obj, 0, "typeptr")
	tag := b.CreateLoad(typePtr, "tag")

	strBB := llvm.AddBasicBlock(fn, "stringify_str")
	fnBB := llvm.AddBasicBlock(fn, "stringify_fn")
	classBB := llvm.AddBasicBlock(fn, "stringify_class")
	instBB := llvm.AddBasicBlock(fn, "stringify_inst")
	otherBB := llvm.AddBasicBlock(fn, "stringify_other")

	sw := b.CreateSwitch(tag, otherBB, 4)
	sw.AddCase(llvm.ConstInt(llvm.Int8Type(), objTypeString, false), strBB)
	sw.AddCase(llvm.ConstInt(llvm.Int8Type(), objTypeClosure, false), fnBB)
	sw.AddCase(llvm.ConstInt(llvm.Int8Type(), objTypeClass, false), classBB)
	sw.AddCase(llvm.ConstInt(llvm.Int8Type(), objTypeInstance, false), instBB)

	b.SetInsertPointAtEnd(strBB)
	str := b.CreateBitCast(obj, rt.t.strPtr, "str")
	charsPtr := b.CreateStructGEP(str, 1, "charsptr")
	b.CreateRet(b.CreateLoad(charsPtr, "chars"))

	b.SetInsertPointAtEnd(fnBB)
	b.CreateRet(rt.constantCString(b, "<fn>"))

	b.SetInsertPointAtEnd(classBB)
	class := b.CreateBitCast(obj, rt.t.clsPtr, "class")
	namePtr := b.CreateStructGEP(class, 1, "nameptr")
	nameStr := b.CreateLoad(namePtr, "name")
	nameCharsPtr := b.CreateStructGEP(nameStr, 1, "namecharsptr")
	b.CreateRet(b.CreateLoad(nameCharsPtr, "namechars"))

	b.SetInsertPointAtEnd(instBB)
	inst := b.CreateBitCast(obj, rt.t.instPtr, "inst")
	clsPtr := b.CreateStructGEP(inst, 1, "clsptr")
	cls := b.CreateLoad(clsPtr, "cls")
	clsNamePtr := b.CreateStructGEP(cls, 1, "clsnameptr")
	clsNameStr := b.CreateLoad(clsNamePtr, "clsname")
	clsCharsPtr := b.CreateStructGEP(clsNameStr, 1, "clscharsptr")
	b.CreateRet(b.CreateLoad(clsCharsPtr, "clschars"))

	b.SetInsertPointAtEnd(otherBB)
	b.CreateRet(rt.constantCString(b, "<object>"))

	return llvm.Value{} // unreachable: every predecessor above returns directly.
}

func (rt *runtime) printValueFn() llvm.Value {
	return rt.fn("printValue", func() llvm.Value {
		fnTy := llvm.FunctionType(llvm.VoidType(), []llvm.Type{word}, false)
		fn := llvm.AddFunction(rt.m, "printValue", fnTy)
		v := fn.Param(0)
		entry := llvm.AddBasicBlock(fn, "entry")
		b := rt.ctx.NewBuilder()
		defer b.Dispose()
		b.SetInsertPointAtEnd(entry)
		text := b.CreateCall(rt.stringifyFn(), []llvm.Value{v}, "text")
		fmtStr := rt.constantCString(b, "%s\n")
		b.CreateCall(rt.libcPrintf(), []llvm.Value{fmtStr, text}, "")
		b.CreateRetVoid()
		return fn
	})
}

// concatFn implements string concatenation: allocate length(l)+length(r) bytes, memcpy both
// operands in, and intern the result (spec.md §4.4 "+ on two strings").
func (rt *runtime) concatFn() llvm.Value {
	return rt.fn("concat", func() llvm.Value {
		fnTy := llvm.FunctionType(word, []llvm.Type{word, word}, false)
		fn := llvm.AddFunction(rt.m, "concat", fnTy)
		l, r := fn.Param(0), fn.Param(1)
		entry := llvm.AddBasicBlock(fn, "entry")
		b := rt.ctx.NewBuilder()
		defer b.Dispose()
		b.SetInsertPointAtEnd(entry)

		lStr := b.CreateBitCast(objPtr(b, l), rt.t.strPtr, "lstr")
		rStr := b.CreateBitCast(objPtr(b, r), rt.t.strPtr, "rstr")
		lLen := b.CreateLoad(b.CreateStructGEP(lStr, 2, "llenptr"), "llen")
		rLen := b.CreateLoad(b.CreateStructGEP(rStr, 2, "rlenptr"), "rlen")
		totalLen := b.CreateAdd(lLen, rLen, "totallen")
		totalLenExt := b.CreateZExt(totalLen, word, "totallenext")
		buf := b.CreateCall(rt.libcMalloc(), []llvm.Value{totalLenExt}, "buf")

		lChars := b.CreateLoad(b.CreateStructGEP(lStr, 1, "lcharsptr"), "lchars")
		rChars := b.CreateLoad(b.CreateStructGEP(rStr, 1, "rcharsptr"), "rchars")
		b.CreateCall(rt.libcMemcpy(), []llvm.Value{buf, lChars, b.CreateZExt(lLen, word, "llenext")}, "")
		tailPtr := b.CreateGEP(buf, []llvm.Value{b.CreateZExt(lLen, word, "llenext2")}, "tailptr")
		b.CreateCall(rt.libcMemcpy(), []llvm.Value{tailPtr, rChars, b.CreateZExt(rLen, word, "rlenext")}, "")

		str := b.CreateCall(rt.allocateStringFn(), []llvm.Value{buf, totalLen}, "str")
		b.CreateRet(objVal(b, b.CreateBitCast(str, ptrTy, "strasi8")))
		return fn
	})
}

// constantString interns a compile-time-known string literal once per distinct text and caches
// the resulting word value for reuse across every occurrence of that literal.
// constantString interns string literal s; allocateStringFn's own runtime-level interning already
// collapses two distinct constantString calls for the same text down to one String*, so the
// strConsts cache below only needs to avoid redundant IR, not guarantee uniqueness — a harmless
// race between two goroutines both missing the cache builds the IR twice but both copies fold to
// the same interned runtime string.
func (rt *runtime) constantString(b llvm.Builder, s string) llvm.Value {
	rt.mapsMx.Lock()
	v, ok := rt.strConsts[s]
	rt.mapsMx.Unlock()
	if ok {
		return v
	}
	chars := b.CreateGlobalStringPtr(s, "")
	str := b.CreateCall(rt.allocateStringFn(), []llvm.Value{chars, constWord32(uint64(len(s)))}, "conststr")
	v = objVal(b, b.CreateBitCast(str, ptrTy, "conststrasi8"))
	rt.mapsMx.Lock()
	rt.strConsts[s] = v
	rt.mapsMx.Unlock()
	return v
}

func (rt *runtime) libcPrintf() llvm.Value {
	if f := rt.m.NamedFunction("printf"); !f.IsNil() {
		return f
	}
	return llvm.AddFunction(rt.m, "printf", llvm.FunctionType(llvm.Int32Type(), []llvm.Type{ptrTy}, true))
}

func (rt *runtime) libcSnprintf() llvm.Value {
	if f := rt.m.NamedFunction("snprintf"); !f.IsNil() {
		return f
	}
	return llvm.AddFunction(rt.m, "snprintf", llvm.FunctionType(llvm.Int32Type(), []llvm.Type{ptrTy, word, ptrTy}, true))
}

func (rt *runtime) libcMemcpy() llvm.Value {
	if f := rt.m.NamedFunction("memcpy"); !f.IsNil() {
		return f
	}
	return llvm.AddFunction(rt.m, "memcpy", llvm.FunctionType(ptrTy, []llvm.Type{ptrTy, ptrTy, word}, false))
}
