package compiler

import "tinygo.org/x/go-llvm"

// errors.go emits the runtime-error and stack-trace machinery of spec.md §7: "runtime form <msg>
// followed by [line L] in <frame> lines", terminating the process with exit code 70. Every fatal
// helper shares one format: print the message, walk the fixed-size call stack from the top down
// printing one "[line L] in <frame>" line per entry, then exit(70).

// emitFatalError prints msg (with no trailing newline added beyond printf's own "%s\n") and the
// call-stack trace, then calls libc exit(70). line is not printed: the trace lists only the
// recorded call frames, with no line for the error site itself and no closing "in script" line.
func (rt *runtime) emitFatalError(b llvm.Builder, line llvm.Value, msg string) {
	fmtStr := rt.constantCString(b, "%s\n")
	msgStr := rt.constantCString(b, msg)
	b.CreateCall(rt.libcFprintf(), []llvm.Value{rt.stderrStream(b), fmtStr, msgStr}, "")
	b.CreateCall(rt.printStackTraceFn(), nil, "")
	b.CreateCall(rt.libcExit(), []llvm.Value{llvm.ConstInt(llvm.Int32Type(), 70, false)}, "")
}

// emitFatalErrorf is emitFatalError for a message that embeds runtime-only values (e.g. an arity
// read from a Function object), built via snprintf into a stack buffer first.
func (rt *runtime) emitFatalErrorf(b llvm.Builder, line llvm.Value, format string, args ...llvm.Value) {
	buf := b.CreateAlloca(llvm.ArrayType(llvm.Int8Type(), 128), "errbuf")
	bufPtr := b.CreateGEP(buf, []llvm.Value{constWord32(0), constWord32(0)}, "errbufptr")
	fmtStr := rt.constantCString(b, format)
	callArgs := append([]llvm.Value{bufPtr, llvm.ConstInt(word, 128, false), fmtStr}, args...)
	b.CreateCall(rt.libcSnprintf(), callArgs, "")
	outFmt := rt.constantCString(b, "%s\n")
	b.CreateCall(rt.libcFprintf(), []llvm.Value{rt.stderrStream(b), outFmt, bufPtr}, "")
	b.CreateCall(rt.printStackTraceFn(), nil, "")
	b.CreateCall(rt.libcExit(), []llvm.Value{llvm.ConstInt(llvm.Int32Type(), 70, false)}, "")
}

// emitUndefinedGlobalError raises "Undefined variable '<name>'." (spec.md §7 runtime error list).
func (rt *runtime) emitUndefinedGlobalError(b llvm.Builder, fn llvm.Value, name string) {
	rt.emitFatalError(b, constWord32(0), "Undefined variable '"+name+"'.")
}

// printStackTraceFn emits `void printStackTrace()`, walking callFrames from callTop-1 down to 0
// and printing "[line L] in <frame>" for each (spec.md §7 "Stack traces").
func (rt *runtime) printStackTraceFn() llvm.Value {
	return rt.fn("printStackTrace", func() llvm.Value {
		fnTy := llvm.FunctionType(llvm.VoidType(), nil, false)
		fn := llvm.AddFunction(rt.m, "printStackTrace", fnTy)
		entry := llvm.AddBasicBlock(fn, "entry")

		b := rt.ctx.NewBuilder()
		defer b.Dispose()
		b.SetInsertPointAtEnd(entry)
		idxSlot := b.CreateAlloca(llvm.Int32Type(), "i")
		top := b.CreateLoad(rt.callTop, "top")
		start := b.CreateSub(top, constWord32(1), "start")
		_ = b.CreateStore(start, idxSlot)

		head := llvm.AddBasicBlock(fn, "trace_head")
		body := llvm.AddBasicBlock(fn, "trace_body")
		conv := llvm.AddBasicBlock(fn, "trace_conv")

		b.CreateBr(head)
		b.SetInsertPointAtEnd(head)
		i := b.CreateLoad(idxSlot, "iv")
		cont := b.CreateICmp(llvm.IntSGE, i, constWord32(0), "cont")
		b.CreateCondBr(cont, body, conv)

		b.SetInsertPointAtEnd(body)
		zero := constWord32(0)
		framePtr := b.CreateGEP(rt.callFrames, []llvm.Value{zero, i}, "frameptr")
		linePtr := b.CreateStructGEP(framePtr, 0, "lineptr")
		namePtr := b.CreateStructGEP(framePtr, 1, "nameptr")
		line := b.CreateLoad(linePtr, "line")
		name := b.CreateLoad(namePtr, "name")
		fmtStr := rt.constantCString(b, "[line %d] in %s\n")
		b.CreateCall(rt.libcFprintf(), []llvm.Value{rt.stderrStream(b), fmtStr, line, name}, "")
		next := b.CreateSub(i, constWord32(1), "next")
		_ = b.CreateStore(next, idxSlot)
		b.CreateBr(head)

		b.SetInsertPointAtEnd(conv)
		b.CreateRetVoid()
		return fn
	})
}

func (rt *runtime) constantCString(b llvm.Builder, s string) llvm.Value {
	key := "\x00c" + s
	rt.mapsMx.Lock()
	v, ok := rt.strConsts[key]
	rt.mapsMx.Unlock()
	if ok {
		return v
	}
	v = b.CreateGlobalStringPtr(s, "")
	rt.mapsMx.Lock()
	rt.strConsts[key] = v
	rt.mapsMx.Unlock()
	return v
}

func (rt *runtime) stderrStream(b llvm.Builder) llvm.Value {
	if f := rt.m.NamedGlobal("stderr"); !f.IsNil() {
		return b.CreateLoad(f, "stderr")
	}
	g := llvm.AddGlobal(rt.m, ptrTy, "stderr")
	g.SetLinkage(llvm.ExternalLinkage)
	return b.CreateLoad(g, "stderr")
}

func (rt *runtime) libcFprintf() llvm.Value {
	if f := rt.m.NamedFunction("fprintf"); !f.IsNil() {
		return f
	}
	ftyp := llvm.FunctionType(llvm.Int32Type(), []llvm.Type{ptrTy, ptrTy}, true)
	return llvm.AddFunction(rt.m, "fprintf", ftyp)
}

func (rt *runtime) libcExit() llvm.Value {
	if f := rt.m.NamedFunction("exit"); !f.IsNil() {
		return f
	}
	ftyp := llvm.FunctionType(llvm.VoidType(), []llvm.Type{llvm.Int32Type()}, false)
	return llvm.AddFunction(rt.m, "exit", ftyp)
}
