package compiler

import (
	"sync"

	"tinygo.org/x/go-llvm"
)

// maxCallStackSize bounds the fixed-size call stack (spec.md §4.8); exceeding it raises
// "Stack overflow." and prints a trace.
const maxCallStackSize = 512

// runtime bundles every module-level global the emitted program's runtime needs: the four
// stacks, the intrusive heap object list, the GC byte counters and the string intern table
// (spec.md §3 "Global mutable state", §9 "Global state"). One runtime is built per Compile call
// and threaded through every IR-emitting helper instead of being package-level, so parallel
// codegen of independent functions (opt.Threads > 1, spec.md §7 COMPILER §2) never races on it
// except where a mutex-guarded symbol table already serializes access.
type runtime struct {
	m   llvm.Module
	ctx llvm.Context
	t   *types

	objects        llvm.Value // Obj* — intrusive singly linked list of every live heap object.
	allocatedBytes llvm.Value // i64
	nextGC         llvm.Value // i64
	strings        llvm.Value // struct.Table — weak string intern table.

	globalsEntries  llvm.Value // i64** — growable array of pointers to global value slots.
	globalsCount    llvm.Value // i32
	globalsCap      llvm.Value // i32

	localsEntries llvm.Value // i64** — growable array of pointers to live local slots / pinned temporaries.
	localsCount   llvm.Value // i32
	localsCap     llvm.Value // i32

	grayEntries llvm.Value // Obj** — growable array, the mark worklist.
	grayCount   llvm.Value // i32
	grayCap     llvm.Value // i32

	callFrames llvm.Value // [maxCallStackSize]struct{line i32, name i8*} — fixed size.
	callTop    llvm.Value // i32 — one past the last pushed frame.

	fns       map[string]llvm.Value // memoized runtime helper function declarations, keyed by name.
	globals   map[string]llvm.Value // global variable name -> its i64 storage slot.
	strConsts map[string]llvm.Value // deduplicated compile-time string literal constants, by text.

	// mapsMx guards fns/globals/strConsts: with opt.Threads > 1, module.go compiles independent
	// top-level function bodies on separate goroutines (their own llvm.Builder each, per the
	// teacher's GenLLVM), and those bodies share this one runtime's lazily-memoized helpers and
	// global/string tables.
	mapsMx sync.Mutex
}

func newRuntime(ctx llvm.Context, m llvm.Module, t *types) *runtime {
	rt := &runtime{
		m: m, ctx: ctx, t: t,
		fns:       make(map[string]llvm.Value),
		globals:   make(map[string]llvm.Value),
		strConsts: make(map[string]llvm.Value),
	}

	rt.objects = addGlobalZero(m, t.headerPtr, "objects")
	rt.allocatedBytes = addGlobalZero(m, word, "allocatedBytes")
	rt.nextGC = addGlobalInt(m, word, "nextGC", 1<<20) // 1 MiB initial threshold (spec.md §4.7).
	rt.strings = addGlobalZero(m, t.table, "internedStrings")

	i64PtrPtr := llvm.PointerType(llvm.PointerType(word, 0), 0)
	rt.globalsEntries = addGlobalNull(m, i64PtrPtr, "globalsEntries")
	rt.globalsCount = addGlobalInt(m, llvm.Int32Type(), "globalsCount", 0)
	rt.globalsCap = addGlobalInt(m, llvm.Int32Type(), "globalsCap", 0)

	rt.localsEntries = addGlobalNull(m, i64PtrPtr, "localsEntries")
	rt.localsCount = addGlobalInt(m, llvm.Int32Type(), "localsCount", 0)
	rt.localsCap = addGlobalInt(m, llvm.Int32Type(), "localsCap", 0)

	objPtrPtr := llvm.PointerType(t.headerPtr, 0)
	rt.grayEntries = addGlobalNull(m, objPtrPtr, "grayEntries")
	rt.grayCount = addGlobalInt(m, llvm.Int32Type(), "grayCount", 0)
	rt.grayCap = addGlobalInt(m, llvm.Int32Type(), "grayCap", 0)

	frameTy := llvm.StructType([]llvm.Type{llvm.Int32Type(), ptrTy}, false)
	rt.callFrames = addGlobalZero(m, llvm.ArrayType(frameTy, maxCallStackSize), "callFrames")
	rt.callTop = addGlobalInt(m, llvm.Int32Type(), "callTop", 0)

	return rt
}

func addGlobalZero(m llvm.Module, ty llvm.Type, name string) llvm.Value {
	g := llvm.AddGlobal(m, ty, name)
	g.SetInitializer(llvm.ConstNull(ty))
	g.SetLinkage(llvm.InternalLinkage)
	return g
}

func addGlobalNull(m llvm.Module, ty llvm.Type, name string) llvm.Value {
	return addGlobalZero(m, ty, name)
}

func addGlobalInt(m llvm.Module, ty llvm.Type, name string, v uint64) llvm.Value {
	g := llvm.AddGlobal(m, ty, name)
	g.SetInitializer(llvm.ConstInt(ty, v, false))
	g.SetLinkage(llvm.InternalLinkage)
	return g
}

// fn memoizes a runtime helper's declaration/definition so repeated call sites (e.g. allocation
// inside a loop body) reuse one llvm.Value instead of redeclaring. mapsMx is not held while build
// runs, since a helper's build itself requests other helpers and string constants.
func (rt *runtime) fn(name string, build func() llvm.Value) llvm.Value {
	rt.mapsMx.Lock()
	v, ok := rt.fns[name]
	rt.mapsMx.Unlock()
	if ok {
		return v
	}
	v = build()
	rt.mapsMx.Lock()
	rt.fns[name] = v
	rt.mapsMx.Unlock()
	return v
}

// pushLocalRoot emits IR that pins slot (an i64* alloca) onto the locals stack, growing it first
// if necessary. Every allocation site that can trigger a GC and that produces more than one heap
// object must pin the earlier objects this way before making the next allocation (spec.md §9 "GC
// safety at allocation sites").
func (rt *runtime) pushLocalRoot(b llvm.Builder, slot llvm.Value) {
	push := rt.fn("pushLocalRoot", func() llvm.Value { return rt.genStackPush(rt.localsEntries, rt.localsCount, rt.localsCap, llvm.PointerType(word, 0), "pushLocalRoot") })
	b.CreateCall(push, []llvm.Value{slot}, "")
}

// popLocalRoots emits IR that pops n entries off the locals stack, called at scope/function exit.
func (rt *runtime) popLocalRoots(b llvm.Builder, n int) {
	if n <= 0 {
		return
	}
	pop := rt.fn("popLocalRoot", func() llvm.Value { return rt.genStackPop(rt.localsCount) })
	for i := 0; i < n; i++ {
		b.CreateCall(pop, nil, "")
	}
}

// pushGlobalRoot registers a global variable's slot with the collector; globals are never popped
// (spec.md §4.8).
func (rt *runtime) pushGlobalRoot(b llvm.Builder, slot llvm.Value) {
	push := rt.fn("pushGlobalRoot", func() llvm.Value { return rt.genStackPush(rt.globalsEntries, rt.globalsCount, rt.globalsCap, llvm.PointerType(word, 0), "pushGlobalRoot") })
	b.CreateCall(push, []llvm.Value{slot}, "")
}

// genStackPush emits a generic growable-pointer-array push: realloc ×2 (minimum 8) when full,
// matching spec.md §4.8's growth policy for the globals/locals stacks.
func (rt *runtime) genStackPush(entries, count, cap_ llvm.Value, elemPtrTy llvm.Type, name string) llvm.Value {
	fnTy := llvm.FunctionType(llvm.VoidType(), []llvm.Type{elemPtrTy}, false)
	fn := llvm.AddFunction(rt.m, name, fnTy)
	entry := llvm.AddBasicBlock(fn, "entry")
	grow := llvm.AddBasicBlock(fn, "grow")
	store := llvm.AddBasicBlock(fn, "store")

	b := rt.ctx.NewBuilder()
	defer b.Dispose()
	b.SetInsertPointAtEnd(entry)

	c := b.CreateLoad(count, "count")
	capV := b.CreateLoad(cap_, "cap")
	full := b.CreateICmp(llvm.IntSGE, c, capV, "full")
	b.CreateCondBr(full, grow, store)

	b.SetInsertPointAtEnd(grow)
	newCap := b.CreateSelect(
		b.CreateICmp(llvm.IntEQ, capV, llvm.ConstInt(llvm.Int32Type(), 0, false), "capzero"),
		llvm.ConstInt(llvm.Int32Type(), 8, false),
		b.CreateMul(capV, llvm.ConstInt(llvm.Int32Type(), 2, false), "doubled"),
		"newcap")
	sz := b.CreateMul(
		b.CreateZExt(newCap, word, "newcapext"),
		llvm.ConstInt(word, 8, false), // sizeof(elemPtrTy) == 8 on every supported target.
		"bytesize")
	old := b.CreateLoad(entries, "old")
	oldBytes := b.CreateBitCast(old, ptrTy, "oldbytes")
	reallocFn := rt.libcRealloc()
	newBytes := b.CreateCall(reallocFn, []llvm.Value{oldBytes, sz}, "newbytes")
	newEntries := b.CreateBitCast(newBytes, elemPtrTy, "newentries")
	_ = b.CreateStore(newEntries, entries)
	_ = b.CreateStore(newCap, cap_)
	b.CreateBr(store)

	b.SetInsertPointAtEnd(store)
	cur := b.CreateLoad(entries, "cur")
	idx := b.CreateLoad(count, "idx")
	slot := b.CreateGEP(cur, []llvm.Value{idx}, "slot")
	_ = b.CreateStore(fn.Param(0), slot)
	next := b.CreateAdd(idx, llvm.ConstInt(llvm.Int32Type(), 1, false), "next")
	_ = b.CreateStore(next, count)
	b.CreateRetVoid()
	return fn
}

// genStackPop emits a pop that simply decrements count; entries above the new count are treated
// as garbage until overwritten by the next push (no need to clear them: a GC never runs between
// the decrement and the next push observing the correct, smaller, count).
func (rt *runtime) genStackPop(count llvm.Value) llvm.Value {
	fnTy := llvm.FunctionType(llvm.VoidType(), nil, false)
	fn := llvm.AddFunction(rt.m, "stackPopDecrement", fnTy)
	entry := llvm.AddBasicBlock(fn, "entry")
	b := rt.ctx.NewBuilder()
	defer b.Dispose()
	b.SetInsertPointAtEnd(entry)
	c := b.CreateLoad(count, "c")
	dec := b.CreateSub(c, llvm.ConstInt(llvm.Int32Type(), 1, false), "dec")
	_ = b.CreateStore(dec, count)
	b.CreateRetVoid()
	return fn
}

// pushCallFrame pushes {line, name} onto the fixed-size call stack, raising a runtime
// "Stack overflow." error (spec.md §4.8) and aborting via the stack-trace printer if it is full.
func (rt *runtime) pushCallFrame(b llvm.Builder, m llvm.Module, fn llvm.Value, line llvm.Value, name llvm.Value) {
	helper := rt.fn("pushCallFrame", func() llvm.Value { return rt.genPushCallFrame() })
	b.CreateCall(helper, []llvm.Value{line, name}, "")
}

func (rt *runtime) genPushCallFrame() llvm.Value {
	frameArr := rt.callFrames
	frameElemTy := frameArr.Type().ElementType().ElementType() // struct{i32,i8*}
	fnTy := llvm.FunctionType(llvm.VoidType(), []llvm.Type{llvm.Int32Type(), ptrTy}, false)
	fn := llvm.AddFunction(rt.m, "pushCallFrameImpl", fnTy)
	entry := llvm.AddBasicBlock(fn, "entry")
	ok := llvm.AddBasicBlock(fn, "ok")
	overflow := llvm.AddBasicBlock(fn, "overflow")

	b := rt.ctx.NewBuilder()
	defer b.Dispose()
	b.SetInsertPointAtEnd(entry)
	top := b.CreateLoad(rt.callTop, "top")
	full := b.CreateICmp(llvm.IntSGE, top, llvm.ConstInt(llvm.Int32Type(), maxCallStackSize, false), "full")
	b.CreateCondBr(full, overflow, ok)

	b.SetInsertPointAtEnd(ok)
	zero := llvm.ConstInt(llvm.Int32Type(), 0, false)
	slotPtr := b.CreateGEP(frameArr, []llvm.Value{zero, top}, "frameslot")
	linePtr := b.CreateStructGEP(slotPtr, 0, "lineptr")
	_ = b.CreateStore(fn.Param(0), linePtr)
	namePtr := b.CreateStructGEP(slotPtr, 1, "nameptr")
	_ = b.CreateStore(fn.Param(1), namePtr)
	next := b.CreateAdd(top, llvm.ConstInt(llvm.Int32Type(), 1, false), "nexttop")
	_ = b.CreateStore(next, rt.callTop)
	b.CreateRetVoid()

	b.SetInsertPointAtEnd(overflow)
	rt.emitFatalError(b, fn.Param(0), "Stack overflow.")
	b.CreateUnreachable()

	_ = frameElemTy
	return fn
}

// popCallFrame decrements the call-stack pointer on a normal (non-overflowing) return.
func (rt *runtime) popCallFrame(b llvm.Builder) {
	helper := rt.fn("popCallFrame", func() llvm.Value { return rt.genPopCallFrame() })
	b.CreateCall(helper, nil, "")
}

func (rt *runtime) genPopCallFrame() llvm.Value {
	fnTy := llvm.FunctionType(llvm.VoidType(), nil, false)
	fn := llvm.AddFunction(rt.m, "popCallFrameImpl", fnTy)
	entry := llvm.AddBasicBlock(fn, "entry")
	b := rt.ctx.NewBuilder()
	defer b.Dispose()
	b.SetInsertPointAtEnd(entry)
	top := b.CreateLoad(rt.callTop, "top")
	dec := b.CreateSub(top, llvm.ConstInt(llvm.Int32Type(), 1, false), "dec")
	_ = b.CreateStore(dec, rt.callTop)
	b.CreateRetVoid()
	return fn
}

func (rt *runtime) libcRealloc() llvm.Value {
	if f := rt.m.NamedFunction("realloc"); !f.IsNil() {
		return f
	}
	ftyp := llvm.FunctionType(ptrTy, []llvm.Type{ptrTy, word}, false)
	return llvm.AddFunction(rt.m, "realloc", ftyp)
}
