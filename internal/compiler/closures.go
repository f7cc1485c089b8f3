package compiler

import "tinygo.org/x/go-llvm"

// closures.go covers string interning (spec.md §4.6 "String interning") and upvalues (spec.md
// §4.5 "Closures and upvalues"). Unlike the hash table's probe loop or the GC's worklist drain,
// the number of upvalues a given closure captures is known at Go-compile time — by the time a
// function literal's body has been compiled, funcCompiler.resolveUpvalue has collected exactly which
// enclosing locals it closes over — so the array that holds them is populated by unrolled,
// statically-indexed stores rather than an IR loop.

// fnvOffsetBasis and fnvPrime are the FNV-1a parameters emitFNV1a uses to hash a string directly in
// IR, matching spec.md §4.6's "deterministic string hash (FNV-1a over the UTF-8 bytes)".
const (
	fnvOffsetBasis = uint64(0xcbf29ce484222325)
	fnvPrime       = uint64(0x100000001b3)
)

// emitFNV1a hashes the i8[length] buffer at chars, returning an i32 (truncated, as spec.md's
// String.hash field is i32).
func (rt *runtime) emitFNV1a(b llvm.Builder, fn llvm.Value, chars llvm.Value, length llvm.Value) llvm.Value {
	hashSlot := b.CreateAlloca(word, "hash")
	idxSlot := b.CreateAlloca(llvm.Int32Type(), "i")
	_ = b.CreateStore(llvm.ConstInt(word, fnvOffsetBasis, false), hashSlot)
	_ = b.CreateStore(constWord32(0), idxSlot)

	head := llvm.AddBasicBlock(fn, "fnv_head")
	body := llvm.AddBasicBlock(fn, "fnv_body")
	conv := llvm.AddBasicBlock(fn, "fnv_conv")

	b.CreateBr(head)
	b.SetInsertPointAtEnd(head)
	i := b.CreateLoad(idxSlot, "iv")
	cont := b.CreateICmp(llvm.IntULT, i, length, "cont")
	b.CreateCondBr(cont, body, conv)

	b.SetInsertPointAtEnd(body)
	bytePtr := b.CreateGEP(chars, []llvm.Value{i}, "byteptr")
	byte_ := b.CreateLoad(bytePtr, "byte")
	byteExt := b.CreateZExt(byte_, word, "byteext")
	h := b.CreateLoad(hashSlot, "h")
	xored := b.CreateXor(h, byteExt, "xored")
	newHash := b.CreateMul(xored, llvm.ConstInt(word, fnvPrime, false), "newhash")
	_ = b.CreateStore(newHash, hashSlot)
	next := b.CreateAdd(i, constWord32(1), "next")
	_ = b.CreateStore(next, idxSlot)
	b.CreateBr(head)

	b.SetInsertPointAtEnd(conv)
	final := b.CreateLoad(hashSlot, "final")
	return b.CreateTrunc(final, llvm.Int32Type(), "hash32")
}

// allocateStringFn emits `String* allocateString(i8* chars, i32 length)`: hash the bytes, probe
// the intern table, and return the existing String* on a hit rather than allocating a duplicate
// (spec.md §4.6 "Every string literal and every result of string concatenation is interned").
func (rt *runtime) allocateStringFn() llvm.Value {
	return rt.fn("allocateString", func() llvm.Value {
		fnTy := llvm.FunctionType(rt.t.strPtr, []llvm.Type{ptrTy, llvm.Int32Type()}, false)
		fn := llvm.AddFunction(rt.m, "allocateString", fnTy)
		chars, length := fn.Param(0), fn.Param(1)

		entry := llvm.AddBasicBlock(fn, "entry")
		hitBlk := llvm.AddBasicBlock(fn, "hit")
		missBlk := llvm.AddBasicBlock(fn, "miss")

		b := rt.ctx.NewBuilder()
		defer b.Dispose()
		b.SetInsertPointAtEnd(entry)
		hash32 := rt.emitFNV1a(b, fn, chars, length)
		hash := b.CreateZExt(hash32, word, "hashext")

		found := b.CreateAlloca(llvm.Int1Type(), "found")
		existing := rt.internGetFn()
		hit := b.CreateCall(existing, []llvm.Value{chars, length, hash32, found}, "hit")
		isHit := b.CreateLoad(found, "ishit")
		b.CreateCondBr(isHit, hitBlk, missBlk)

		b.SetInsertPointAtEnd(hitBlk)
		hitStr := b.CreateBitCast(objPtr(b, hit), rt.t.strPtr, "hitstr")
		b.CreateRet(hitStr)

		b.SetInsertPointAtEnd(missBlk)
		hdrSize := llvm.SizeOf(rt.t.str)
		obj := b.CreateCall(rt.allocateObjectFn(), []llvm.Value{hdrSize, llvm.ConstInt(llvm.Int8Type(), objTypeString, false)}, "obj")
		str := b.CreateBitCast(obj, rt.t.strPtr, "str")
		charsPtr := b.CreateStructGEP(str, 1, "charsptr")
		_ = b.CreateStore(chars, charsPtr)
		lenPtr := b.CreateStructGEP(str, 2, "lenptr")
		_ = b.CreateStore(length, lenPtr)
		hashPtr := b.CreateStructGEP(str, 3, "hashptr")
		_ = b.CreateStore(hash32, hashPtr)

		strVal := objVal(b, b.CreateBitCast(str, ptrTy, "strasi8"))
		b.CreateCall(rt.tableSetFn(), []llvm.Value{rt.strings, str, hash, strVal}, "")
		b.CreateRet(str)

		return fn
	})
}

// internGetFn emits `word internGet(i8* chars, i32 length, i32 hash, i1* found)`: a probe over the
// intern table comparing by content, not by the identity tableGet otherwise assumes, since no
// String* for these bytes may exist yet.
func (rt *runtime) internGetFn() llvm.Value {
	return rt.fn("internGet", func() llvm.Value {
		fnTy := llvm.FunctionType(word, []llvm.Type{ptrTy, llvm.Int32Type(), llvm.Int32Type(), llvm.PointerType(llvm.Int1Type(), 0)}, false)
		fn := llvm.AddFunction(rt.m, "internGet", fnTy)
		chars, length, hash32, foundOut := fn.Param(0), fn.Param(1), fn.Param(2), fn.Param(3)

		entry := llvm.AddBasicBlock(fn, "entry")
		emptyBlk := llvm.AddBasicBlock(fn, "emptytbl")
		probeBlk := llvm.AddBasicBlock(fn, "probe")

		b := rt.ctx.NewBuilder()
		defer b.Dispose()
		b.SetInsertPointAtEnd(entry)
		countPtr := b.CreateStructGEP(rt.strings, 0, "countptr")
		count := b.CreateLoad(countPtr, "count")
		b.CreateCondBr(b.CreateICmp(llvm.IntEQ, count, constWord32(0), "isempty"), emptyBlk, probeBlk)

		b.SetInsertPointAtEnd(emptyBlk)
		_ = b.CreateStore(llvm.ConstInt(llvm.Int1Type(), 0, false), foundOut)
		b.CreateRet(nilV)

		b.SetInsertPointAtEnd(probeBlk)
		capPtr := b.CreateStructGEP(rt.strings, 1, "capptr")
		cap32 := b.CreateLoad(capPtr, "cap")
		entriesPtr := b.CreateStructGEP(rt.strings, 2, "entriesptrptr")
		entries := b.CreateLoad(entriesPtr, "entries")
		hash := b.CreateZExt(hash32, word, "hashext")
		entry2 := rt.findInternEntry(b, fn, entries, cap32, chars, length, hash32, hash)
		keyPtr := b.CreateStructGEP(entry2, 0, "keyptr")
		k := b.CreateLoad(keyPtr, "k")
		isNull := b.CreateICmp(llvm.IntEQ, b.CreatePtrToInt(k, word, "kint"), constWord(0), "isnull")
		foundBlk := llvm.AddBasicBlock(fn, "found")
		notFoundBlk := llvm.AddBasicBlock(fn, "notfound")
		b.CreateCondBr(isNull, notFoundBlk, foundBlk)

		b.SetInsertPointAtEnd(foundBlk)
		valPtr := b.CreateStructGEP(entry2, 1, "valptr")
		_ = b.CreateStore(llvm.ConstInt(llvm.Int1Type(), 1, false), foundOut)
		b.CreateRet(b.CreateLoad(valPtr, "v"))

		b.SetInsertPointAtEnd(notFoundBlk)
		_ = b.CreateStore(llvm.ConstInt(llvm.Int1Type(), 0, false), foundOut)
		b.CreateRet(nilV)

		return fn
	})
}

// findInternEntry is findEntry's content-comparing twin: two keys match when their hash, length
// and byte content agree, since the whole point is to find a String* given bytes that may not
// back any existing String* yet.
func (rt *runtime) findInternEntry(b llvm.Builder, fn llvm.Value, entries, capacity, chars, length, hash32, hash llvm.Value) llvm.Value {
	idxSlot := b.CreateAlloca(llvm.Int32Type(), "ii")
	_ = b.CreateStore(b.CreateURem(hash, capacity, "hmod"), idxSlot)

	head := llvm.AddBasicBlock(fn, "intern_head")
	check := llvm.AddBasicBlock(fn, "intern_check")
	liveBlk := llvm.AddBasicBlock(fn, "intern_live")
	compareBlk := llvm.AddBasicBlock(fn, "intern_compare")
	advance := llvm.AddBasicBlock(fn, "intern_advance")
	done := llvm.AddBasicBlock(fn, "intern_done")

	b.CreateBr(head)
	b.SetInsertPointAtEnd(head)
	b.CreateBr(check)

	b.SetInsertPointAtEnd(check)
	idx := b.CreateLoad(idxSlot, "idx")
	slot := b.CreateGEP(entries, []llvm.Value{idx}, "slot")
	keyPtr := b.CreateStructGEP(slot, 0, "keyptr")
	k := b.CreateLoad(keyPtr, "k")
	isNull := b.CreateICmp(llvm.IntEQ, b.CreatePtrToInt(k, word, "kint"), constWord(0), "isnull")
	b.CreateCondBr(isNull, done, liveBlk)

	b.SetInsertPointAtEnd(liveBlk)
	khashPtr := b.CreateStructGEP(k, 3, "khashptr")
	klenPtr := b.CreateStructGEP(k, 2, "klenptr")
	sameHash := b.CreateICmp(llvm.IntEQ, b.CreateLoad(khashPtr, "kh"), hash32, "samehash")
	sameLen := b.CreateICmp(llvm.IntEQ, b.CreateLoad(klenPtr, "kl"), length, "samelen")
	candidate := b.CreateAnd(sameHash, sameLen, "candidate")
	b.CreateCondBr(candidate, compareBlk, advance)

	b.SetInsertPointAtEnd(compareBlk)
	kcharsPtr := b.CreateStructGEP(k, 1, "kcharsptr")
	kchars := b.CreateLoad(kcharsPtr, "kchars")
	cmp := b.CreateCall(rt.libcMemcmp(), []llvm.Value{kchars, chars, b.CreateZExt(length, word, "lenext")}, "cmp")
	equal := b.CreateICmp(llvm.IntEQ, cmp, llvm.ConstInt(llvm.Int32Type(), 0, false), "equal")
	b.CreateCondBr(equal, done, advance)

	b.SetInsertPointAtEnd(advance)
	next := b.CreateURem(b.CreateAdd(idx, constWord32(1), "i1"), capacity, "nextidx")
	_ = b.CreateStore(next, idxSlot)
	b.CreateBr(check)

	b.SetInsertPointAtEnd(done)
	return slot
}

func (rt *runtime) libcMemcmp() llvm.Value {
	if f := rt.m.NamedFunction("memcmp"); !f.IsNil() {
		return f
	}
	ftyp := llvm.FunctionType(llvm.Int32Type(), []llvm.Type{ptrTy, ptrTy, word}, false)
	return llvm.AddFunction(rt.m, "memcmp", ftyp)
}

// makeUpvalueFn emits `Upvalue* makeUpvalue(i64* location)`, allocating an open upvalue pointing
// at a still-live stack slot (spec.md §4.5 "Open vs. closed upvalues").
func (rt *runtime) makeUpvalueFn() llvm.Value {
	return rt.fn("makeUpvalue", func() llvm.Value {
		fnTy := llvm.FunctionType(rt.t.upvPtr, []llvm.Type{llvm.PointerType(word, 0)}, false)
		fn := llvm.AddFunction(rt.m, "makeUpvalue", fnTy)
		location := fn.Param(0)
		entry := llvm.AddBasicBlock(fn, "entry")
		b := rt.ctx.NewBuilder()
		defer b.Dispose()
		b.SetInsertPointAtEnd(entry)
		obj := b.CreateCall(rt.allocateObjectFn(), []llvm.Value{llvm.SizeOf(rt.t.upval), llvm.ConstInt(llvm.Int8Type(), objTypeUpvalue, false)}, "obj")
		up := b.CreateBitCast(obj, rt.t.upvPtr, "up")
		locPtr := b.CreateStructGEP(up, 1, "locptr")
		_ = b.CreateStore(location, locPtr)
		closedPtr := b.CreateStructGEP(up, 2, "closedptr")
		_ = b.CreateStore(nilV, closedPtr)
		b.CreateRet(up)
		return fn
	})
}

// closeUpvalueFn emits `void closeUpvalue(Upvalue* up)`: copy the still-pointed-at value into the
// upvalue's own storage and repoint location at it, so the value survives the stack slot it used
// to alias going out of scope (spec.md §4.5 "Closing").
func (rt *runtime) closeUpvalueFn() llvm.Value {
	return rt.fn("closeUpvalue", func() llvm.Value {
		fnTy := llvm.FunctionType(llvm.VoidType(), []llvm.Type{rt.t.upvPtr}, false)
		fn := llvm.AddFunction(rt.m, "closeUpvalue", fnTy)
		up := fn.Param(0)
		entry := llvm.AddBasicBlock(fn, "entry")
		b := rt.ctx.NewBuilder()
		defer b.Dispose()
		b.SetInsertPointAtEnd(entry)
		locPtr := b.CreateStructGEP(up, 1, "locptr")
		loc := b.CreateLoad(locPtr, "loc")
		val := b.CreateLoad(loc, "val")
		closedPtr := b.CreateStructGEP(up, 2, "closedptr")
		_ = b.CreateStore(val, closedPtr)
		_ = b.CreateStore(closedPtr, locPtr)
		b.CreateRetVoid()
		return fn
	})
}

// makeClosureValue allocates a Closure object wrapping fnObj and populates its upvalue array from
// upvalues — a slice already fully known at code-generation time (funcCompiler.resolveUpvalue
// collected exactly which enclosing locals this literal captures while its body was compiled), so
// the array is filled by one store per element
// instead of a runtime loop.
func (rt *runtime) makeClosureValue(b llvm.Builder, fnObj llvm.Value, upvalues []llvm.Value) llvm.Value {
	n := len(upvalues)
	obj := b.CreateCall(rt.allocateObjectFn(), []llvm.Value{llvm.SizeOf(rt.t.closure), llvm.ConstInt(llvm.Int8Type(), objTypeClosure, false)}, "closureobj")
	closure := b.CreateBitCast(obj, rt.t.closPtr, "closure")
	fnPtr := b.CreateStructGEP(closure, 1, "fnptr")
	_ = b.CreateStore(b.CreateBitCast(fnObj, rt.t.fnPtr, "fnasfn"), fnPtr)

	arrTy := llvm.PointerType(rt.t.upvPtr, 0)
	var arr llvm.Value
	if n == 0 {
		arr = llvm.ConstNull(arrTy)
	} else {
		sz := llvm.ConstInt(word, uint64(n*8), false)
		raw := b.CreateCall(rt.libcMalloc(), []llvm.Value{sz}, "upvarr")
		arr = b.CreateBitCast(raw, arrTy, "upvarrtyped")
		for i, up := range upvalues {
			slot := b.CreateGEP(arr, []llvm.Value{constWord32(uint64(i))}, "upvslot")
			_ = b.CreateStore(up, slot)
		}
	}
	arrPtr := b.CreateStructGEP(closure, 2, "arrptr")
	_ = b.CreateStore(arr, arrPtr)
	countPtr := b.CreateStructGEP(closure, 3, "countptr")
	_ = b.CreateStore(constWord32(uint64(n)), countPtr)

	return objVal(b, b.CreateBitCast(closure, ptrTy, "closureasi8"))
}
