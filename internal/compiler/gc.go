package compiler

import "tinygo.org/x/go-llvm"

// gc.go implements the precise tri-color mark-and-sweep collector of spec.md §4.7: every
// allocation runs through allocateObject, which triggers a collection once allocatedBytes crosses
// nextGC; collection marks every root (the globals stack and the locals stack),
// traces the gray worklist until empty, then sweeps the intrusive object list freeing anything left
// white, and finally grows nextGC to allocatedBytes*growthFactor (spec.md §4.7 "Heap growth").
const gcGrowthFactor = 2

const (
	markedUnmarked = 0
	markedBlack    = 1
)

// allocateObject emits `Obj* allocateObject(i64 size, i8 type)`: malloc the object, zero its
// header fields, tag its type, push it onto the front of the intrusive object list, bump
// allocatedBytes, and run a collection first if the new total would exceed nextGC.
func (rt *runtime) allocateObjectFn() llvm.Value {
	return rt.fn("allocateObject", func() llvm.Value {
		fnTy := llvm.FunctionType(rt.t.headerPtr, []llvm.Type{word, llvm.Int8Type()}, false)
		fn := llvm.AddFunction(rt.m, "allocateObject", fnTy)
		size, typeTag := fn.Param(0), fn.Param(1)

		entry := llvm.AddBasicBlock(fn, "entry")
		collectBlk := llvm.AddBasicBlock(fn, "collect")
		allocBlk := llvm.AddBasicBlock(fn, "alloc")

		b := rt.ctx.NewBuilder()
		defer b.Dispose()
		b.SetInsertPointAtEnd(entry)
		allocated := b.CreateLoad(rt.allocatedBytes, "allocated")
		projected := b.CreateAdd(allocated, size, "projected")
		threshold := b.CreateLoad(rt.nextGC, "threshold")
		needsGC := b.CreateICmp(llvm.IntUGT, projected, threshold, "needsgc")
		b.CreateCondBr(needsGC, collectBlk, allocBlk)

		b.SetInsertPointAtEnd(collectBlk)
		b.CreateCall(rt.collectGarbageFn(), nil, "")
		b.CreateBr(allocBlk)

		b.SetInsertPointAtEnd(allocBlk)
		raw := b.CreateCall(rt.libcMalloc(), []llvm.Value{size}, "raw")
		obj := b.CreateBitCast(raw, rt.t.headerPtr, "obj")
		typePtr := b.CreateStructGEP(obj, 0, "typeptr")
		_ = b.CreateStore(typeTag, typePtr)
		markedPtr := b.CreateStructGEP(obj, 1, "markedptr")
		_ = b.CreateStore(llvm.ConstInt(llvm.Int8Type(), markedUnmarked, false), markedPtr)
		nextPtr := b.CreateStructGEP(obj, 2, "nextptr")
		prevHead := b.CreateLoad(rt.objects, "prevhead")
		_ = b.CreateStore(prevHead, nextPtr)
		_ = b.CreateStore(obj, rt.objects)
		newAllocated := b.CreateAdd(allocated, size, "newallocated")
		_ = b.CreateStore(newAllocated, rt.allocatedBytes)
		b.CreateRet(obj)

		return fn
	})
}

func (rt *runtime) libcMalloc() llvm.Value {
	if f := rt.m.NamedFunction("malloc"); !f.IsNil() {
		return f
	}
	return llvm.AddFunction(rt.m, "malloc", llvm.FunctionType(ptrTy, []llvm.Type{word}, false))
}

// markValueFn emits `void markValue(i64 value)`: numbers and the small immediate singletons need
// no marking; an object value is unboxed and handed to markObject (spec.md §4.7 "What gets
// marked").
func (rt *runtime) markValueFn() llvm.Value {
	return rt.fn("markValue", func() llvm.Value {
		fnTy := llvm.FunctionType(llvm.VoidType(), []llvm.Type{word}, false)
		fn := llvm.AddFunction(rt.m, "markValue", fnTy)
		v := fn.Param(0)

		entry := llvm.AddBasicBlock(fn, "entry")
		markBlk := llvm.AddBasicBlock(fn, "mark")
		doneBlk := llvm.AddBasicBlock(fn, "done")

		b := rt.ctx.NewBuilder()
		defer b.Dispose()
		b.SetInsertPointAtEnd(entry)
		b.CreateCondBr(isObj(b, v), markBlk, doneBlk)

		b.SetInsertPointAtEnd(markBlk)
		obj := b.CreateBitCast(objPtr(b, v), rt.t.headerPtr, "obj")
		b.CreateCall(rt.markObjectFn(), []llvm.Value{obj}, "")
		b.CreateBr(doneBlk)

		b.SetInsertPointAtEnd(doneBlk)
		b.CreateRetVoid()
		return fn
	})
}

// markObjectFn emits `void markObject(Obj* obj)`: a null check, a check-and-set of the mark bit to
// avoid revisiting an already-black object, then pushing onto the gray worklist for blackenObject
// to process later (spec.md §4.7 "Tri-color invariant").
func (rt *runtime) markObjectFn() llvm.Value {
	return rt.fn("markObject", func() llvm.Value {
		fnTy := llvm.FunctionType(llvm.VoidType(), []llvm.Type{rt.t.headerPtr}, false)
		fn := llvm.AddFunction(rt.m, "markObject", fnTy)
		obj := fn.Param(0)

		entry := llvm.AddBasicBlock(fn, "entry")
		checkBlk := llvm.AddBasicBlock(fn, "check")
		markBlk := llvm.AddBasicBlock(fn, "mark")
		doneBlk := llvm.AddBasicBlock(fn, "done")

		b := rt.ctx.NewBuilder()
		defer b.Dispose()
		b.SetInsertPointAtEnd(entry)
		isNull := b.CreateICmp(llvm.IntEQ, b.CreatePtrToInt(obj, word, "objint"), constWord(0), "isnull")
		b.CreateCondBr(isNull, doneBlk, checkBlk)

		b.SetInsertPointAtEnd(checkBlk)
		markedPtr := b.CreateStructGEP(obj, 1, "markedptr")
		already := b.CreateLoad(markedPtr, "already")
		isBlack := b.CreateICmp(llvm.IntEQ, already, llvm.ConstInt(llvm.Int8Type(), markedBlack, false), "isblack")
		b.CreateCondBr(isBlack, doneBlk, markBlk)

		b.SetInsertPointAtEnd(markBlk)
		_ = b.CreateStore(llvm.ConstInt(llvm.Int8Type(), markedBlack, false), markedPtr)
		push := rt.fn("pushGray", func() llvm.Value { return rt.genStackPush(rt.grayEntries, rt.grayCount, rt.grayCap, rt.t.headerPtr, "pushGray") })
		b.CreateCall(push, []llvm.Value{obj}, "")
		b.CreateBr(doneBlk)

		b.SetInsertPointAtEnd(doneBlk)
		b.CreateRetVoid()
		return fn
	})
}

// blackenObjectFn emits the per-variant tracing of one gray object's outgoing references,
// dispatched on its type tag: a Closure marks its Function and every live Upvalue; a Function marks
// its name; an Upvalue marks its closed-over value; a Class marks its name, its superclass and every value in its method
// table; an Instance marks its class and every value in its field table; a BoundMethod marks its
// receiver and its method (spec.md §4.7 "blackenObject").
func (rt *runtime) blackenObjectFn() llvm.Value {
	return rt.fn("blackenObject", func() llvm.Value {
		fnTy := llvm.FunctionType(llvm.VoidType(), []llvm.Type{rt.t.headerPtr}, false)
		fn := llvm.AddFunction(rt.m, "blackenObject", fnTy)
		obj := fn.Param(0)

		entry := llvm.AddBasicBlock(fn, "entry")
		closureBlk := llvm.AddBasicBlock(fn, "blacken_closure")
		fnBlk := llvm.AddBasicBlock(fn, "blacken_function")
		upvalBlk := llvm.AddBasicBlock(fn, "blacken_upvalue")
		classBlk := llvm.AddBasicBlock(fn, "blacken_class")
		instBlk := llvm.AddBasicBlock(fn, "blacken_instance")
		boundBlk := llvm.AddBasicBlock(fn, "blacken_bound")
		doneBlk := llvm.AddBasicBlock(fn, "done")

		b := rt.ctx.NewBuilder()
		defer b.Dispose()
		b.SetInsertPointAtEnd(entry)
		typePtr := b.CreateStructGEP(obj, 0, "typeptr")
		tag := b.CreateLoad(typePtr, "tag")
		sw := b.CreateSwitch(tag, doneBlk, 3)
		sw.AddCase(llvm.ConstInt(llvm.Int8Type(), objTypeClosure, false), closureBlk)
		sw.AddCase(llvm.ConstInt(llvm.Int8Type(), objTypeFunction, false), fnBlk)
		sw.AddCase(llvm.ConstInt(llvm.Int8Type(), objTypeUpvalue, false), upvalBlk)
		sw.AddCase(llvm.ConstInt(llvm.Int8Type(), objTypeClass, false), classBlk)
		sw.AddCase(llvm.ConstInt(llvm.Int8Type(), objTypeInstance, false), instBlk)
		sw.AddCase(llvm.ConstInt(llvm.Int8Type(), objTypeBoundMethod, false), boundBlk)

		markObj := rt.markObjectFn()
		markVal := rt.markValueFn()

		b.SetInsertPointAtEnd(closureBlk)
		closure := b.CreateBitCast(obj, rt.t.closPtr, "closure")
		fnPtrPtr := b.CreateStructGEP(closure, 1, "fnptrptr")
		fnObj := b.CreateBitCast(b.CreateLoad(fnPtrPtr, "fnobj"), rt.t.headerPtr, "fnobjhdr")
		b.CreateCall(markObj, []llvm.Value{fnObj}, "")
		upArrPtr := b.CreateStructGEP(closure, 2, "uparrptr")
		upArr := b.CreateLoad(upArrPtr, "uparr")
		countPtr := b.CreateStructGEP(closure, 3, "upcountptr")
		count := b.CreateLoad(countPtr, "upcount")
		rt.emitMarkPointerArray(b, fn, upArr, count, rt.t.upvPtr)
		b.CreateBr(doneBlk)

		b.SetInsertPointAtEnd(fnBlk)
		function := b.CreateBitCast(obj, rt.t.fnPtr, "function")
		fnNamePtr := b.CreateStructGEP(function, 3, "fnnameptr")
		fnNameObj := b.CreateBitCast(b.CreateLoad(fnNamePtr, "fnname"), rt.t.headerPtr, "fnnameobj")
		b.CreateCall(markObj, []llvm.Value{fnNameObj}, "")
		b.CreateBr(doneBlk)

		b.SetInsertPointAtEnd(upvalBlk)
		upval := b.CreateBitCast(obj, rt.t.upvPtr, "upval")
		closedPtr := b.CreateStructGEP(upval, 2, "closedptr")
		b.CreateCall(markVal, []llvm.Value{b.CreateLoad(closedPtr, "closed")}, "")
		b.CreateBr(doneBlk)

		b.SetInsertPointAtEnd(classBlk)
		class := b.CreateBitCast(obj, rt.t.clsPtr, "class")
		namePtr := b.CreateStructGEP(class, 1, "nameptr")
		nameObj := b.CreateBitCast(b.CreateLoad(namePtr, "name"), rt.t.headerPtr, "nameobj")
		b.CreateCall(markObj, []llvm.Value{nameObj}, "")
		superPtr := b.CreateStructGEP(class, 2, "superptr")
		superObj := b.CreateBitCast(b.CreateLoad(superPtr, "super"), rt.t.headerPtr, "superobj")
		b.CreateCall(markObj, []llvm.Value{superObj}, "")
		methodsPtr := b.CreateStructGEP(class, 3, "methodsptr")
		rt.emitMarkTable(b, fn, methodsPtr)
		b.CreateBr(doneBlk)

		b.SetInsertPointAtEnd(instBlk)
		inst := b.CreateBitCast(obj, rt.t.instPtr, "inst")
		clsPtr := b.CreateStructGEP(inst, 1, "clsptr")
		clsObj := b.CreateBitCast(b.CreateLoad(clsPtr, "cls"), rt.t.headerPtr, "clsobj")
		b.CreateCall(markObj, []llvm.Value{clsObj}, "")
		fieldsPtr := b.CreateStructGEP(inst, 2, "fieldsptr")
		rt.emitMarkTable(b, fn, fieldsPtr)
		b.CreateBr(doneBlk)

		b.SetInsertPointAtEnd(boundBlk)
		bound := b.CreateBitCast(obj, rt.t.boundPtr, "bound")
		recvPtr := b.CreateStructGEP(bound, 1, "recvptr")
		b.CreateCall(markVal, []llvm.Value{b.CreateLoad(recvPtr, "recv")}, "")
		methPtr := b.CreateStructGEP(bound, 2, "methptr")
		methObj := b.CreateBitCast(b.CreateLoad(methPtr, "meth"), rt.t.headerPtr, "methobj")
		b.CreateCall(markObj, []llvm.Value{methObj}, "")
		b.CreateBr(doneBlk)

		b.SetInsertPointAtEnd(doneBlk)
		b.CreateRetVoid()
		return fn
	})
}

// emitMarkPointerArray emits a loop marking each of count Upvalue* elements of arr — the closure
// upvalue array, whose length is a runtime field rather than statically known, so (unlike closure
// creation's unrolled capture copy) this really does need IR-level loop control flow.
func (rt *runtime) emitMarkPointerArray(b llvm.Builder, fn llvm.Value, arr llvm.Value, count llvm.Value, elemPtrTy llvm.Type) {
	idxSlot := b.CreateAlloca(llvm.Int32Type(), "mpai")
	_ = b.CreateStore(constWord32(0), idxSlot)

	head := llvm.AddBasicBlock(fn, "markarr_head")
	body := llvm.AddBasicBlock(fn, "markarr_body")
	conv := llvm.AddBasicBlock(fn, "markarr_conv")

	b.CreateBr(head)
	b.SetInsertPointAtEnd(head)
	i := b.CreateLoad(idxSlot, "i")
	cont := b.CreateICmp(llvm.IntULT, i, count, "cont")
	b.CreateCondBr(cont, body, conv)

	b.SetInsertPointAtEnd(body)
	elemPtr := b.CreateGEP(arr, []llvm.Value{i}, "elemptr")
	elem := b.CreateLoad(elemPtr, "elem")
	elemObj := b.CreateBitCast(elem, rt.t.headerPtr, "elemobj")
	b.CreateCall(rt.markObjectFn(), []llvm.Value{elemObj}, "")
	next := b.CreateAdd(i, constWord32(1), "next")
	_ = b.CreateStore(next, idxSlot)
	b.CreateBr(head)

	b.SetInsertPointAtEnd(conv)
}

// emitMarkTable marks every live (non-tombstone) key and value of the Table at tablePtr.
func (rt *runtime) emitMarkTable(b llvm.Builder, fn llvm.Value, tablePtr llvm.Value) {
	capPtr := b.CreateStructGEP(tablePtr, 1, "capptr")
	cap32 := b.CreateLoad(capPtr, "cap")
	entriesPtrPtr := b.CreateStructGEP(tablePtr, 2, "entriesptrptr")
	entries := b.CreateLoad(entriesPtrPtr, "entries")

	idxSlot := b.CreateAlloca(llvm.Int32Type(), "mti")
	_ = b.CreateStore(constWord32(0), idxSlot)

	head := llvm.AddBasicBlock(fn, "marktbl_head")
	body := llvm.AddBasicBlock(fn, "marktbl_body")
	live := llvm.AddBasicBlock(fn, "marktbl_live")
	incr := llvm.AddBasicBlock(fn, "marktbl_incr")
	conv := llvm.AddBasicBlock(fn, "marktbl_conv")

	b.CreateBr(head)
	b.SetInsertPointAtEnd(head)
	i := b.CreateLoad(idxSlot, "i")
	cont := b.CreateICmp(llvm.IntULT, i, cap32, "cont")
	b.CreateCondBr(cont, body, conv)

	b.SetInsertPointAtEnd(body)
	slot := b.CreateGEP(entries, []llvm.Value{i}, "slot")
	keyPtr := b.CreateStructGEP(slot, 0, "keyptr")
	k := b.CreateLoad(keyPtr, "k")
	isNull := b.CreateICmp(llvm.IntEQ, b.CreatePtrToInt(k, word, "kint"), constWord(0), "isnull")
	b.CreateCondBr(isNull, incr, live)

	b.SetInsertPointAtEnd(live)
	keyObj := b.CreateBitCast(k, rt.t.headerPtr, "keyobj")
	b.CreateCall(rt.markObjectFn(), []llvm.Value{keyObj}, "")
	valPtr := b.CreateStructGEP(slot, 1, "valptr")
	b.CreateCall(rt.markValueFn(), []llvm.Value{b.CreateLoad(valPtr, "val")}, "")
	b.CreateBr(incr)

	b.SetInsertPointAtEnd(incr)
	next := b.CreateAdd(i, constWord32(1), "next")
	_ = b.CreateStore(next, idxSlot)
	b.CreateBr(head)

	b.SetInsertPointAtEnd(conv)
}

// collectGarbageFn emits the top-level collection: mark every root, trace the gray worklist to
// exhaustion, sweep the object list freeing everything left unmarked, clear every survivor's mark
// bit for the next cycle, and grow nextGC (spec.md §4.7).
func (rt *runtime) collectGarbageFn() llvm.Value {
	return rt.fn("collectGarbage", func() llvm.Value {
		fnTy := llvm.FunctionType(llvm.VoidType(), nil, false)
		fn := llvm.AddFunction(rt.m, "collectGarbage", fnTy)
		entry := llvm.AddBasicBlock(fn, "entry")

		b := rt.ctx.NewBuilder()
		defer b.Dispose()
		b.SetInsertPointAtEnd(entry)

		rt.emitMarkRootArray(b, fn, rt.globalsEntries, rt.globalsCount)
		rt.emitMarkRootArray(b, fn, rt.localsEntries, rt.localsCount)
		rt.emitTraceGray(b, fn)
		rt.emitSweep(b, fn)

		allocated := b.CreateLoad(rt.allocatedBytes, "allocated")
		grown := b.CreateMul(allocated, constWord(gcGrowthFactor), "grown")
		_ = b.CreateStore(grown, rt.nextGC)
		b.CreateRetVoid()
		return fn
	})
}

// emitMarkRootArray marks the value pointed to by each of count i64* entries in arr — the globals
// and locals stacks hold pointers to live slots, not the values themselves, so each is loaded
// before marking (spec.md §4.7 "Roots").
func (rt *runtime) emitMarkRootArray(b llvm.Builder, fn llvm.Value, arr, count llvm.Value) {
	idxSlot := b.CreateAlloca(llvm.Int32Type(), "mri")
	_ = b.CreateStore(constWord32(0), idxSlot)
	n := b.CreateLoad(count, "n")

	head := llvm.AddBasicBlock(fn, "markroot_head")
	body := llvm.AddBasicBlock(fn, "markroot_body")
	conv := llvm.AddBasicBlock(fn, "markroot_conv")

	b.CreateBr(head)
	b.SetInsertPointAtEnd(head)
	i := b.CreateLoad(idxSlot, "i")
	cont := b.CreateICmp(llvm.IntULT, i, n, "cont")
	b.CreateCondBr(cont, body, conv)

	b.SetInsertPointAtEnd(body)
	entryArr := b.CreateLoad(arr, "entryarr")
	slotPtrPtr := b.CreateGEP(entryArr, []llvm.Value{i}, "slotptrptr")
	slotPtr := b.CreateLoad(slotPtrPtr, "slotptr")
	val := b.CreateLoad(slotPtr, "val")
	b.CreateCall(rt.markValueFn(), []llvm.Value{val}, "")
	next := b.CreateAdd(i, constWord32(1), "next")
	_ = b.CreateStore(next, idxSlot)
	b.CreateBr(head)

	b.SetInsertPointAtEnd(conv)
}

// emitTraceGray drains the gray worklist, calling blackenObject on each entry until empty.
func (rt *runtime) emitTraceGray(b llvm.Builder, fn llvm.Value) {
	head := llvm.AddBasicBlock(fn, "tracegray_head")
	body := llvm.AddBasicBlock(fn, "tracegray_body")
	conv := llvm.AddBasicBlock(fn, "tracegray_conv")

	b.CreateBr(head)
	b.SetInsertPointAtEnd(head)
	count := b.CreateLoad(rt.grayCount, "count")
	cont := b.CreateICmp(llvm.IntSGT, count, constWord32(0), "cont")
	b.CreateCondBr(cont, body, conv)

	b.SetInsertPointAtEnd(body)
	idx := b.CreateSub(count, constWord32(1), "idx")
	entryArr := b.CreateLoad(rt.grayEntries, "entryarr")
	slotPtr := b.CreateGEP(entryArr, []llvm.Value{idx}, "slotptr")
	obj := b.CreateLoad(slotPtr, "obj")
	_ = b.CreateStore(idx, rt.grayCount)
	b.CreateCall(rt.blackenObjectFn(), []llvm.Value{obj}, "")
	b.CreateBr(head)

	b.SetInsertPointAtEnd(conv)
}

// emitSweep walks the intrusive object list: anything still marked black survives the cycle (its
// mark bit is reset for the next collection); anything unmarked is unreachable and is unlinked
// and freed via libc free (spec.md §4.7 "Sweep").
func (rt *runtime) emitSweep(b llvm.Builder, fn llvm.Value) {
	prevSlot := b.CreateAlloca(rt.t.headerPtr, "prev")
	curSlot := b.CreateAlloca(rt.t.headerPtr, "cur")
	_ = b.CreateStore(llvm.ConstNull(rt.t.headerPtr), prevSlot)
	_ = b.CreateStore(b.CreateLoad(rt.objects, "head"), curSlot)

	head := llvm.AddBasicBlock(fn, "sweep_head")
	body := llvm.AddBasicBlock(fn, "sweep_body")
	keepBlk := llvm.AddBasicBlock(fn, "sweep_keep")
	freeBlk := llvm.AddBasicBlock(fn, "sweep_free")
	conv := llvm.AddBasicBlock(fn, "sweep_conv")

	b.CreateBr(head)
	b.SetInsertPointAtEnd(head)
	cur := b.CreateLoad(curSlot, "cur")
	notNull := b.CreateICmp(llvm.IntNE, b.CreatePtrToInt(cur, word, "curint"), constWord(0), "notnull")
	b.CreateCondBr(notNull, body, conv)

	b.SetInsertPointAtEnd(body)
	markedPtr := b.CreateStructGEP(cur, 1, "markedptr")
	marked := b.CreateLoad(markedPtr, "marked")
	isBlack := b.CreateICmp(llvm.IntEQ, marked, llvm.ConstInt(llvm.Int8Type(), markedBlack, false), "isblack")
	b.CreateCondBr(isBlack, keepBlk, freeBlk)

	b.SetInsertPointAtEnd(keepBlk)
	_ = b.CreateStore(llvm.ConstInt(llvm.Int8Type(), markedUnmarked, false), markedPtr)
	_ = b.CreateStore(cur, prevSlot)
	nextPtr := b.CreateStructGEP(cur, 2, "nextptr")
	_ = b.CreateStore(b.CreateLoad(nextPtr, "next"), curSlot)
	b.CreateBr(head)

	b.SetInsertPointAtEnd(freeBlk)
	nextPtr2 := b.CreateStructGEP(cur, 2, "nextptr2")
	next := b.CreateLoad(nextPtr2, "next")
	prev := b.CreateLoad(prevSlot, "prev")
	prevIsNull := b.CreateICmp(llvm.IntEQ, b.CreatePtrToInt(prev, word, "prevint"), constWord(0), "prevnull")
	unlinkHead := llvm.AddBasicBlock(fn, "sweep_unlink_head")
	unlinkMid := llvm.AddBasicBlock(fn, "sweep_unlink_mid")
	unlinkDone := llvm.AddBasicBlock(fn, "sweep_unlink_done")
	b.CreateCondBr(prevIsNull, unlinkHead, unlinkMid)

	b.SetInsertPointAtEnd(unlinkHead)
	_ = b.CreateStore(next, rt.objects)
	b.CreateBr(unlinkDone)

	b.SetInsertPointAtEnd(unlinkMid)
	prevNextPtr := b.CreateStructGEP(prev, 2, "prevnextptr")
	_ = b.CreateStore(next, prevNextPtr)
	b.CreateBr(unlinkDone)

	b.SetInsertPointAtEnd(unlinkDone)
	freed := b.CreateBitCast(cur, ptrTy, "freed")
	b.CreateCall(rt.libcFree(), []llvm.Value{freed}, "")
	_ = b.CreateStore(next, curSlot)
	b.CreateBr(head)

	b.SetInsertPointAtEnd(conv)
}

func (rt *runtime) libcFree() llvm.Value {
	if f := rt.m.NamedFunction("free"); !f.IsNil() {
		return f
	}
	return llvm.AddFunction(rt.m, "free", llvm.FunctionType(llvm.VoidType(), []llvm.Type{ptrTy}, false))
}
