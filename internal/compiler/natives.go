package compiler

import "tinygo.org/x/go-llvm"

// natives.go lowers the five built-in natives of spec.md §6 to IR wrapper functions sharing the
// uniform callable ABI (see nativeSig below). Compile does not bind these wrappers to global names
// and nothing calls nativeImplFn, so compiled programs have no way to reach them.

// nativeArity lists the fixed arity of each native (spec.md §6's table); no call site consults it,
// and genCallValue performs no arity check against it.
var nativeArity = map[string]int{
	"clock":    0,
	"exit":     1,
	"read":     0,
	"utf":      4,
	"printerr": 1,
}

// nativeImplFn lazily builds the IR wrapper for one native function, keyed by name.
func (rt *runtime) nativeImplFn(name string) llvm.Value {
	switch name {
	case "clock":
		return rt.fn("native_clock", rt.genNativeClock)
	case "exit":
		return rt.fn("native_exit", rt.genNativeExit)
	case "read":
		return rt.fn("native_read", rt.genNativeRead)
	case "utf":
		return rt.fn("native_utf", rt.genNativeUtf)
	case "printerr":
		return rt.fn("native_printerr", rt.genNativePrinterr)
	}
	panic("compiler: unknown native " + name)
}

// nativeSig matches the uniform callable ABI every Function.function_ptr uses, whether compiled
// from Lox source or native: `word fn(i8* closure, word* args)`. Natives ignore the closure
// parameter; it exists only so call sites never need to know which kind of callable they're
// invoking.
func (rt *runtime) nativeSig() llvm.Type {
	return llvm.FunctionType(word, []llvm.Type{ptrTy, llvm.PointerType(word, 0)}, false)
}

func (rt *runtime) genNativeClock() llvm.Value {
	fn := llvm.AddFunction(rt.m, "native_clock", rt.nativeSig())
	entry := llvm.AddBasicBlock(fn, "entry")
	b := rt.ctx.NewBuilder()
	defer b.Dispose()
	b.SetInsertPointAtEnd(entry)
	ticks := b.CreateCall(rt.libcClock(), nil, "ticks")
	ticksF := b.CreateSIToFP(ticks, fword, "ticksf")
	clocksPerSec := llvm.ConstFloat(fword, 1000000.0) // CLOCKS_PER_SEC on every libc this targets.
	seconds := b.CreateFDiv(ticksF, clocksPerSec, "seconds")
	b.CreateRet(numberVal(b, seconds))
	return fn
}

func (rt *runtime) genNativeExit() llvm.Value {
	fn := llvm.AddFunction(rt.m, "native_exit", rt.nativeSig())
	entry := llvm.AddBasicBlock(fn, "entry")
	b := rt.ctx.NewBuilder()
	defer b.Dispose()
	b.SetInsertPointAtEnd(entry)
	argsArr := fn.Param(1)
	codeVal := b.CreateLoad(b.CreateGEP(argsArr, []llvm.Value{constWord32(0)}, "codeslot"), "codeval")
	code := b.CreateFPToSI(asNumber(b, codeVal), llvm.Int32Type(), "code")
	b.CreateCall(rt.libcExit(), []llvm.Value{code}, "")
	b.CreateRet(nilV)
	return fn
}

func (rt *runtime) genNativeRead() llvm.Value {
	fn := llvm.AddFunction(rt.m, "native_read", rt.nativeSig())
	entry := llvm.AddBasicBlock(fn, "entry")
	eofBB := llvm.AddBasicBlock(fn, "eof")
	byteBB := llvm.AddBasicBlock(fn, "byte")

	b := rt.ctx.NewBuilder()
	defer b.Dispose()
	b.SetInsertPointAtEnd(entry)
	c := b.CreateCall(rt.libcGetchar(), nil, "c")
	isEOF := b.CreateICmp(llvm.IntEQ, c, llvm.ConstInt(llvm.Int32Type(), 0xffffffff, false), "iseof") // EOF == -1
	b.CreateCondBr(isEOF, eofBB, byteBB)

	b.SetInsertPointAtEnd(eofBB)
	b.CreateRet(nilV)

	b.SetInsertPointAtEnd(byteBB)
	cf := b.CreateSIToFP(c, fword, "cf")
	b.CreateRet(numberVal(b, cf))
	return fn
}

// genNativeUtf composes up to 4 byte arguments (trailing nils ignored, spec.md §6) into a fresh
// interned string. Since the argument count is always exactly 4 (arity-checked before dispatch),
// the nil-trimming loop bound is a compile-time constant and is unrolled rather than looped.
func (rt *runtime) genNativeUtf() llvm.Value {
	fn := llvm.AddFunction(rt.m, "native_utf", rt.nativeSig())
	entry := llvm.AddBasicBlock(fn, "entry")
	b := rt.ctx.NewBuilder()
	defer b.Dispose()
	b.SetInsertPointAtEnd(entry)
	argsArr := fn.Param(1)

	buf := b.CreateAlloca(llvm.ArrayType(llvm.Int8Type(), 4), "buf")
	lenSlot := b.CreateAlloca(llvm.Int32Type(), "len")
	_ = b.CreateStore(constWord32(0), lenSlot)

	for i := 0; i < 4; i++ {
		argSlot := b.CreateGEP(argsArr, []llvm.Value{constWord32(uint64(i))}, "argslot")
		argVal := b.CreateLoad(argSlot, "argval")
		isNilArg := isNil(b, argVal)
		storeBB := llvm.AddBasicBlock(fn, "utf_store")
		skipBB := llvm.AddBasicBlock(fn, "utf_skip")
		b.CreateCondBr(isNilArg, skipBB, storeBB)

		b.SetInsertPointAtEnd(storeBB)
		byteVal := b.CreateFPToUI(asNumber(b, argVal), llvm.Int8Type(), "byteval")
		idx := b.CreateLoad(lenSlot, "idx")
		slot := b.CreateGEP(buf, []llvm.Value{constWord32(0), idx}, "slot")
		_ = b.CreateStore(byteVal, slot)
		_ = b.CreateStore(b.CreateAdd(idx, constWord32(1), "newlen"), lenSlot)
		b.CreateBr(skipBB)

		b.SetInsertPointAtEnd(skipBB)
	}

	length := b.CreateLoad(lenSlot, "finallen")
	bufPtr := b.CreateGEP(buf, []llvm.Value{constWord32(0), constWord32(0)}, "bufptr")
	str := b.CreateCall(rt.allocateStringFn(), []llvm.Value{bufPtr, length}, "str")
	b.CreateRet(objVal(b, b.CreateBitCast(str, ptrTy, "strasi8")))
	return fn
}

func (rt *runtime) genNativePrinterr() llvm.Value {
	fn := llvm.AddFunction(rt.m, "native_printerr", rt.nativeSig())
	entry := llvm.AddBasicBlock(fn, "entry")
	b := rt.ctx.NewBuilder()
	defer b.Dispose()
	b.SetInsertPointAtEnd(entry)
	argsArr := fn.Param(1)
	v := b.CreateLoad(b.CreateGEP(argsArr, []llvm.Value{constWord32(0)}, "argslot"), "argval")
	text := b.CreateCall(rt.stringifyFn(), []llvm.Value{v}, "text")
	fmtStr := rt.constantCString(b, "%s\n")
	b.CreateCall(rt.libcFprintf(), []llvm.Value{rt.stderrStream(b), fmtStr, text}, "")
	b.CreateRet(nilV)
	return fn
}

func (rt *runtime) libcClock() llvm.Value {
	if f := rt.m.NamedFunction("clock"); !f.IsNil() {
		return f
	}
	return llvm.AddFunction(rt.m, "clock", llvm.FunctionType(word, nil, false))
}

func (rt *runtime) libcGetchar() llvm.Value {
	if f := rt.m.NamedFunction("getchar"); !f.IsNil() {
		return f
	}
	return llvm.AddFunction(rt.m, "getchar", llvm.FunctionType(llvm.Int32Type(), nil, false))
}
