package compiler

import "tinygo.org/x/go-llvm"

// table.go lowers the open-addressed hash table of spec.md §4.6 (one Table per Class's method
// set, per Instance's fields, and the single global string-intern table) to real IR: a probe loop
// built from basic blocks, the same way the teacher's ir/llvm/transform.go lowers VSL's while loops
// (head block tests the condition, body block does the work and branches back, conv block is the
// fallthrough) — genWhile's head/body/conv shape is reused here for the probe.
//
// Entries whose key is null and whose value is tombstoneVal (a private sentinel distinct from
// every user-representable word) mark deleted slots that must be skipped, not treated as free,
// during probing — spec.md §4.6 "Deletion (tombstones)".
const tableMaxLoad = 0.75

var tombstoneVal = constWord(qnanBits | tagTrue | 0x10) // a bit pattern no valid boxed value produces.

// findEntry emits the core probe loop shared by get/set/delete: starting at hash % capacity,
// linear-probe until an empty slot or a slot whose key matches is found, remembering the first
// tombstone seen so insertion can reuse it (spec.md §4.6).
func (rt *runtime) findEntry(b llvm.Builder, fn llvm.Value, entries llvm.Value, capacity llvm.Value, key llvm.Value, hash llvm.Value) llvm.Value {
	entryPtrTy := llvm.PointerType(rt.t.entry, 0)

	idxSlot := b.CreateAlloca(llvm.Int32Type(), "idx")
	tombstoneSlot := b.CreateAlloca(entryPtrTy, "tombstone")
	_ = b.CreateStore(b.CreateURem(hash, capacity, "hmod"), idxSlot)
	_ = b.CreateStore(llvm.ConstNull(entryPtrTy), tombstoneSlot)

	head := llvm.AddBasicBlock(fn, "probe_head")
	checkEntry := llvm.AddBasicBlock(fn, "probe_check")
	isEmptyBB := llvm.AddBasicBlock(fn, "probe_empty")
	isTombBB := llvm.AddBasicBlock(fn, "probe_tomb")
	rememberBB := llvm.AddBasicBlock(fn, "probe_remember")
	isLiveBB := llvm.AddBasicBlock(fn, "probe_live")
	matchBB := llvm.AddBasicBlock(fn, "probe_match")
	advanceBB := llvm.AddBasicBlock(fn, "probe_advance")
	emptyDoneBB := llvm.AddBasicBlock(fn, "probe_empty_done")
	doneBB := llvm.AddBasicBlock(fn, "probe_done")

	b.CreateBr(head)
	b.SetInsertPointAtEnd(head)
	b.CreateBr(checkEntry)

	b.SetInsertPointAtEnd(checkEntry)
	idx := b.CreateLoad(idxSlot, "i")
	slot := b.CreateGEP(entries, []llvm.Value{idx}, "slot")
	keyPtr := b.CreateStructGEP(slot, 0, "keyptr")
	k := b.CreateLoad(keyPtr, "k")
	keyIsNull := b.CreateICmp(llvm.IntEQ, b.CreatePtrToInt(k, word, "kint"), constWord(0), "keynull")
	b.CreateCondBr(keyIsNull, isEmptyBB, isLiveBB)

	b.SetInsertPointAtEnd(isEmptyBB)
	valPtr := b.CreateStructGEP(slot, 1, "valptr")
	v := b.CreateLoad(valPtr, "v")
	isTrueTombstone := b.CreateICmp(llvm.IntEQ, v, tombstoneVal, "vtomb")
	b.CreateCondBr(isTrueTombstone, isTombBB, emptyDoneBB)

	b.SetInsertPointAtEnd(isTombBB)
	alreadyHaveTombstone := b.CreateICmp(llvm.IntNE,
		b.CreatePtrToInt(b.CreateLoad(tombstoneSlot, "tomb"), word, "tombint"),
		constWord(0), "havetomb")
	b.CreateCondBr(alreadyHaveTombstone, advanceBB, rememberBB)

	b.SetInsertPointAtEnd(rememberBB)
	_ = b.CreateStore(slot, tombstoneSlot)
	b.CreateBr(advanceBB)

	b.SetInsertPointAtEnd(isLiveBB)
	same := b.CreateICmp(llvm.IntEQ, k, key, "samekey")
	b.CreateCondBr(same, matchBB, advanceBB)

	b.SetInsertPointAtEnd(matchBB)
	b.CreateBr(doneBB)

	b.SetInsertPointAtEnd(advanceBB)
	next := b.CreateURem(b.CreateAdd(idx, constWord32(1), "i1"), capacity, "nextidx")
	_ = b.CreateStore(next, idxSlot)
	b.CreateBr(checkEntry)

	// Reached an empty, non-tombstone slot: the key isn't present. Prefer an earlier tombstone
	// (so a later tableSet of the same key reuses it) when one was seen along the probe.
	b.SetInsertPointAtEnd(emptyDoneBB)
	haveTomb := b.CreateICmp(llvm.IntNE,
		b.CreatePtrToInt(b.CreateLoad(tombstoneSlot, "tomb2"), word, "tombint2"),
		constWord(0), "havetomb")
	emptyResult := b.CreateSelect(haveTomb, b.CreateLoad(tombstoneSlot, "tombload"), slot, "emptyresult")
	b.CreateBr(doneBB)

	b.SetInsertPointAtEnd(doneBB)
	result := b.CreatePHI(entryPtrTy, "entryresult")
	result.AddIncoming([]llvm.Value{slot, emptyResult}, []llvm.BasicBlock{matchBB, emptyDoneBB})
	return result
}

func constWord32(v uint64) llvm.Value { return llvm.ConstInt(llvm.Int32Type(), v, false) }

// tableGetFn lazily declares/defines `word tableGet(Table*, String* key, i64 hash, i1* found)`.
func (rt *runtime) tableGetFn() llvm.Value {
	return rt.fn("tableGet", func() llvm.Value {
		fnTy := llvm.FunctionType(word, []llvm.Type{rt.t.tablePtr, rt.t.strPtr, word, llvm.PointerType(llvm.Int1Type(), 0)}, false)
		fn := llvm.AddFunction(rt.m, "tableGet", fnTy)
		tbl, key, hash, foundOut := fn.Param(0), fn.Param(1), fn.Param(2), fn.Param(3)

		entryBlk := llvm.AddBasicBlock(fn, "entry")
		emptyTbl := llvm.AddBasicBlock(fn, "emptytbl")
		probeBlk := llvm.AddBasicBlock(fn, "doprobe")
		foundBlk := llvm.AddBasicBlock(fn, "found")
		notFoundBlk := llvm.AddBasicBlock(fn, "notfound")

		b := rt.ctx.NewBuilder()
		defer b.Dispose()
		b.SetInsertPointAtEnd(entryBlk)
		countPtr := b.CreateStructGEP(tbl, 0, "countptr")
		count := b.CreateLoad(countPtr, "count")
		isEmpty := b.CreateICmp(llvm.IntEQ, count, constWord32(0), "isempty")
		b.CreateCondBr(isEmpty, emptyTbl, probeBlk)

		b.SetInsertPointAtEnd(emptyTbl)
		_ = b.CreateStore(llvm.ConstInt(llvm.Int1Type(), 0, false), foundOut)
		b.CreateRet(nilV)

		b.SetInsertPointAtEnd(probeBlk)
		capPtr := b.CreateStructGEP(tbl, 1, "capptr")
		cap32 := b.CreateLoad(capPtr, "cap")
		entriesPtr := b.CreateStructGEP(tbl, 2, "entriesptrptr")
		entries := b.CreateLoad(entriesPtr, "entries")
		entry := rt.findEntry(b, fn, entries, cap32, key, hash)
		keyPtr := b.CreateStructGEP(entry, 0, "keyptr")
		k := b.CreateLoad(keyPtr, "k")
		isNull := b.CreateICmp(llvm.IntEQ, b.CreatePtrToInt(k, word, "kint"), constWord(0), "isnull")
		b.CreateCondBr(isNull, notFoundBlk, foundBlk)

		b.SetInsertPointAtEnd(foundBlk)
		valPtr := b.CreateStructGEP(entry, 1, "valptr")
		v := b.CreateLoad(valPtr, "v")
		_ = b.CreateStore(llvm.ConstInt(llvm.Int1Type(), 1, false), foundOut)
		b.CreateRet(v)

		b.SetInsertPointAtEnd(notFoundBlk)
		_ = b.CreateStore(llvm.ConstInt(llvm.Int1Type(), 0, false), foundOut)
		b.CreateRet(nilV)

		return fn
	})
}

// tableSetFn lazily declares/defines `i1 tableSet(Table*, String* key, i64 hash, word value)`,
// growing the backing array (×2, minimum 8) once load factor exceeds tableMaxLoad, and rehashing
// every live entry into the new array (spec.md §4.6 Growth & rehashing).
func (rt *runtime) tableSetFn() llvm.Value {
	return rt.fn("tableSet", func() llvm.Value {
		fnTy := llvm.FunctionType(llvm.Int1Type(), []llvm.Type{rt.t.tablePtr, rt.t.strPtr, word, word}, false)
		fn := llvm.AddFunction(rt.m, "tableSet", fnTy)
		tbl, key, hash, value := fn.Param(0), fn.Param(1), fn.Param(2), fn.Param(3)

		entry0 := llvm.AddBasicBlock(fn, "entry")
		growBlk := llvm.AddBasicBlock(fn, "grow")
		afterGrow := llvm.AddBasicBlock(fn, "aftergrow")
		isNewKeyBlk := llvm.AddBasicBlock(fn, "isnewkey")
		storeBlk := llvm.AddBasicBlock(fn, "store")

		b := rt.ctx.NewBuilder()
		defer b.Dispose()
		b.SetInsertPointAtEnd(entry0)
		countPtr := b.CreateStructGEP(tbl, 0, "countptr")
		capPtr := b.CreateStructGEP(tbl, 1, "capptr")
		count := b.CreateLoad(countPtr, "count")
		cap32 := b.CreateLoad(capPtr, "cap")
		capF := b.CreateUIToFP(cap32, fword, "capf")
		loadF := b.CreateFDiv(b.CreateUIToFP(count, fword, "countf"), capF, "load")
		tooFull := b.CreateOr(
			b.CreateICmp(llvm.IntEQ, cap32, constWord32(0), "capzero"),
			b.CreateFCmp(llvm.FloatOGT, loadF, llvm.ConstFloat(fword, tableMaxLoad), "overload"), "needgrow")
		b.CreateCondBr(tooFull, growBlk, afterGrow)

		b.SetInsertPointAtEnd(growBlk)
		newCap := b.CreateSelect(b.CreateICmp(llvm.IntEQ, cap32, constWord32(0), "z"),
			constWord32(8), b.CreateMul(cap32, constWord32(2), "doubled"), "newcap")
		rt.growTable(b, fn, tbl, newCap)
		b.CreateBr(afterGrow)

		b.SetInsertPointAtEnd(afterGrow)
		entriesPtr := b.CreateStructGEP(tbl, 2, "entriesptrptr")
		entries := b.CreateLoad(entriesPtr, "entries")
		curCap := b.CreateLoad(capPtr, "curcap")
		entry := rt.findEntry(b, fn, entries, curCap, key, hash)
		keyPtr := b.CreateStructGEP(entry, 0, "keyptr")
		k := b.CreateLoad(keyPtr, "k")
		isNewKey := b.CreateICmp(llvm.IntEQ, b.CreatePtrToInt(k, word, "kint"), constWord(0), "isnewkey")
		b.CreateCondBr(isNewKey, isNewKeyBlk, storeBlk)

		b.SetInsertPointAtEnd(isNewKeyBlk)
		valPtr0 := b.CreateStructGEP(entry, 1, "valptr0")
		wasTombstone := b.CreateICmp(llvm.IntEQ, b.CreateLoad(valPtr0, "v0"), tombstoneVal, "wastomb")
		newCount := b.CreateSelect(wasTombstone, count, b.CreateAdd(count, constWord32(1), "inc"), "newcount")
		_ = b.CreateStore(newCount, countPtr)
		b.CreateBr(storeBlk)

		b.SetInsertPointAtEnd(storeBlk)
		_ = b.CreateStore(key, keyPtr)
		valPtr := b.CreateStructGEP(entry, 1, "valptr")
		_ = b.CreateStore(value, valPtr)
		b.CreateRet(isNewKey)

		return fn
	})
}

// growTable allocates a fresh zeroed entries array of newCap and rehashes every non-tombstone,
// non-empty entry of the old array into it, recomputing count to exclude tombstones (the
// standard open-addressing rehash, spec.md §4.6).
func (rt *runtime) growTable(b llvm.Builder, fn llvm.Value, tbl llvm.Value, newCap llvm.Value) {
	entryTy := rt.t.entry
	sz := b.CreateMul(b.CreateZExt(newCap, word, "newcapext"), constWord(16), "bytesize")
	raw := b.CreateCall(rt.libcCalloc(), []llvm.Value{sz, constWord(1)}, "rawentries")
	newEntries := b.CreateBitCast(raw, llvm.PointerType(entryTy, 0), "newentries")

	countPtr := b.CreateStructGEP(tbl, 0, "countptr")
	capPtr := b.CreateStructGEP(tbl, 1, "capptr")
	entriesPtrPtr := b.CreateStructGEP(tbl, 2, "entriesptrptr")
	oldEntries := b.CreateLoad(entriesPtrPtr, "oldentries")
	oldCap := b.CreateLoad(capPtr, "oldcap")

	idxSlot := b.CreateAlloca(llvm.Int32Type(), "i")
	newCountSlot := b.CreateAlloca(llvm.Int32Type(), "newcount")
	_ = b.CreateStore(constWord32(0), idxSlot)
	_ = b.CreateStore(constWord32(0), newCountSlot)

	head := llvm.AddBasicBlock(fn, "rehash_head")
	body := llvm.AddBasicBlock(fn, "rehash_body")
	skip := llvm.AddBasicBlock(fn, "rehash_skip")
	copy_ := llvm.AddBasicBlock(fn, "rehash_copy")
	incr := llvm.AddBasicBlock(fn, "rehash_incr")
	conv := llvm.AddBasicBlock(fn, "rehash_conv")

	b.CreateBr(head)
	b.SetInsertPointAtEnd(head)
	i := b.CreateLoad(idxSlot, "iv")
	hasOld := b.CreateICmp(llvm.IntNE, oldCap, constWord32(0), "hasold")
	cont := b.CreateAnd(hasOld, b.CreateICmp(llvm.IntULT, i, oldCap, "inrange"), "cont")
	b.CreateCondBr(cont, body, conv)

	b.SetInsertPointAtEnd(body)
	slot := b.CreateGEP(oldEntries, []llvm.Value{i}, "oldslot")
	keyPtr := b.CreateStructGEP(slot, 0, "okeyptr")
	k := b.CreateLoad(keyPtr, "ok")
	isNull := b.CreateICmp(llvm.IntEQ, b.CreatePtrToInt(k, word, "okint"), constWord(0), "onull")
	b.CreateCondBr(isNull, skip, copy_)

	b.SetInsertPointAtEnd(skip)
	b.CreateBr(incr)

	b.SetInsertPointAtEnd(copy_)
	valPtr := b.CreateStructGEP(slot, 1, "ovalptr")
	v := b.CreateLoad(valPtr, "ov")
	isTomb := b.CreateICmp(llvm.IntEQ, v, tombstoneVal, "otomb")
	liveBlk := llvm.AddBasicBlock(fn, "rehash_live")
	b.CreateCondBr(isTomb, incr, liveBlk)

	b.SetInsertPointAtEnd(liveBlk)
	hashPtr := b.CreateStructGEP(k, 3, "hashptr")
	h := b.CreateLoad(hashPtr, "h")
	hExt := b.CreateZExt(h, word, "hext")
	dst := rt.findEntry(b, fn, newEntries, newCap, k, hExt)
	dstKeyPtr := b.CreateStructGEP(dst, 0, "dstkeyptr")
	_ = b.CreateStore(k, dstKeyPtr)
	dstValPtr := b.CreateStructGEP(dst, 1, "dstvalptr")
	_ = b.CreateStore(v, dstValPtr)
	nc := b.CreateAdd(b.CreateLoad(newCountSlot, "ncload"), constWord32(1), "ncinc")
	_ = b.CreateStore(nc, newCountSlot)
	b.CreateBr(incr)

	b.SetInsertPointAtEnd(incr)
	next := b.CreateAdd(i, constWord32(1), "inext")
	_ = b.CreateStore(next, idxSlot)
	b.CreateBr(head)

	b.SetInsertPointAtEnd(conv)
	_ = b.CreateStore(newEntries, entriesPtrPtr)
	_ = b.CreateStore(newCap, capPtr)
	_ = b.CreateStore(b.CreateLoad(newCountSlot, "finalcount"), countPtr)
}

// tableDeleteFn lazily declares/defines `i1 tableDelete(Table*, String* key, i64 hash)`, writing
// a tombstone {key: null, value: tombstoneVal} so subsequent probes keep walking past this slot
// (spec.md §4.6 Deletion).
func (rt *runtime) tableDeleteFn() llvm.Value {
	return rt.fn("tableDelete", func() llvm.Value {
		fnTy := llvm.FunctionType(llvm.Int1Type(), []llvm.Type{rt.t.tablePtr, rt.t.strPtr, word}, false)
		fn := llvm.AddFunction(rt.m, "tableDelete", fnTy)
		tbl, key, hash := fn.Param(0), fn.Param(1), fn.Param(2)

		entryBlk := llvm.AddBasicBlock(fn, "entry")
		emptyBlk := llvm.AddBasicBlock(fn, "emptytbl")
		probeBlk := llvm.AddBasicBlock(fn, "probe")
		foundBlk := llvm.AddBasicBlock(fn, "found")
		notFoundBlk := llvm.AddBasicBlock(fn, "notfound")

		b := rt.ctx.NewBuilder()
		defer b.Dispose()
		b.SetInsertPointAtEnd(entryBlk)
		countPtr := b.CreateStructGEP(tbl, 0, "countptr")
		count := b.CreateLoad(countPtr, "count")
		b.CreateCondBr(b.CreateICmp(llvm.IntEQ, count, constWord32(0), "isempty"), emptyBlk, probeBlk)

		b.SetInsertPointAtEnd(emptyBlk)
		b.CreateRet(llvm.ConstInt(llvm.Int1Type(), 0, false))

		b.SetInsertPointAtEnd(probeBlk)
		capPtr := b.CreateStructGEP(tbl, 1, "capptr")
		cap32 := b.CreateLoad(capPtr, "cap")
		entriesPtr := b.CreateStructGEP(tbl, 2, "entriesptrptr")
		entries := b.CreateLoad(entriesPtr, "entries")
		entry := rt.findEntry(b, fn, entries, cap32, key, hash)
		keyPtr := b.CreateStructGEP(entry, 0, "keyptr")
		k := b.CreateLoad(keyPtr, "k")
		b.CreateCondBr(b.CreateICmp(llvm.IntEQ, b.CreatePtrToInt(k, word, "kint"), constWord(0), "isnull"), notFoundBlk, foundBlk)

		b.SetInsertPointAtEnd(foundBlk)
		valPtr := b.CreateStructGEP(entry, 1, "valptr")
		_ = b.CreateStore(llvm.ConstNull(rt.t.strPtr), keyPtr)
		_ = b.CreateStore(tombstoneVal, valPtr)
		b.CreateRet(llvm.ConstInt(llvm.Int1Type(), 1, false))

		b.SetInsertPointAtEnd(notFoundBlk)
		b.CreateRet(llvm.ConstInt(llvm.Int1Type(), 0, false))

		return fn
	})
}

func (rt *runtime) libcCalloc() llvm.Value {
	if f := rt.m.NamedFunction("calloc"); !f.IsNil() {
		return f
	}
	ftyp := llvm.FunctionType(ptrTy, []llvm.Type{word, word}, false)
	return llvm.AddFunction(rt.m, "calloc", ftyp)
}
