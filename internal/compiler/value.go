// Package compiler is the ahead-of-time backend: it lowers a resolved Lox AST to LLVM IR via
// tinygo.org/x/go-llvm, the same dependency and builder API the teacher repo's own
// ir/llvm/transform.go uses to lower VSL to LLVM IR, and then drives the LLVM target-machine APIs
// to emit textual IR or a native object file.
//
// Every runtime value is one 64-bit word using NaN boxing (spec.md §3, §4.4): a non-quiet-NaN
// double is a number; QNAN|tag encodes uninitialized/nil/false/true; QNAN|SIGN|ptr encodes a
// pointer to a heap object. All of the predicate/constructor helpers below are bitcasts and
// masks lowered directly to IR — there is no runtime dispatch, matching spec.md §4.4's table.
package compiler

import "tinygo.org/x/go-llvm"

// word is the LLVM type backing every Lox runtime value.
var word = llvm.Int64Type()

// fword is the double type values are bitcast to/from when doing floating point arithmetic.
var fword = llvm.DoubleType()

// NaN-boxing masks and tags, as 64-bit immediates. Bit layout:
//
//	bit 63          sign     — set to mark an object pointer
//	bits 50-62      QNAN     — set for every non-number encoding
//	bits 0-1        tag      — uninitialized/nil/false/true when QNAN is set and sign is clear
const (
	qnanBits   = uint64(0x7ffc000000000000)
	signBit    = uint64(0x8000000000000000)
	tagUninit  = uint64(0) // QNAN | 0
	tagNil     = uint64(1) // QNAN | 1
	tagFalse   = uint64(2) // QNAN | 2
	tagTrue    = uint64(3) // QNAN | 3
	ptrPayload = uint64(0x0000ffffffffffff) // 48-bit object pointer payload
)

func constWord(v uint64) llvm.Value { return llvm.ConstInt(word, v, false) }

var (
	qnanVal         = constWord(qnanBits)
	signBitVal      = constWord(signBit)
	uninitializedV  = constWord(qnanBits | tagUninit)
	nilV            = constWord(qnanBits | tagNil)
	falseV          = constWord(qnanBits | tagFalse)
	trueV           = constWord(qnanBits | tagTrue)
	qnanSignVal     = constWord(qnanBits | signBit)
	ptrPayloadMask  = constWord(ptrPayload)
)

// numberVal reinterprets an IEEE double as a word (pure bitcast, spec.md §4.4).
func numberVal(b llvm.Builder, f llvm.Value) llvm.Value {
	return b.CreateBitCast(f, word, "numval")
}

// asNumber reinterprets a word known to be a number as a double.
func asNumber(b llvm.Builder, v llvm.Value) llvm.Value {
	return b.CreateBitCast(v, fword, "asnum")
}

// boolVal lowers an i1 to TRUE_VAL/FALSE_VAL via select, per spec.md §4.4.
func boolVal(b llvm.Builder, cond llvm.Value) llvm.Value {
	return b.CreateSelect(cond, trueV, falseV, "boolval")
}

// objVal packs a 64-bit object pointer integer into QNAN|SIGN|ptr.
func objVal(b llvm.Builder, ptr llvm.Value) llvm.Value {
	i := b.CreatePtrToInt(ptr, word, "ptrint")
	i = b.CreateAnd(i, ptrPayloadMask, "ptrmasked")
	return b.CreateOr(i, qnanSignVal, "objval")
}

// objPtr unpacks the 48-bit pointer payload of a word known to be an object, returning a generic
// i8* that call sites bitcast to the concrete object-variant pointer type they need.
func objPtr(b llvm.Builder, v llvm.Value) llvm.Value {
	i := b.CreateAnd(v, ptrPayloadMask, "payload")
	return b.CreateIntToPtr(i, llvm.PointerType(llvm.Int8Type(), 0), "objptr")
}

// isNumber: (v & QNAN) != QNAN.
func isNumber(b llvm.Builder, v llvm.Value) llvm.Value {
	masked := b.CreateAnd(v, qnanVal, "qnanmasked")
	return b.CreateICmp(llvm.IntNE, masked, qnanVal, "isnumber")
}

// isNil: v == NIL_VAL.
func isNil(b llvm.Builder, v llvm.Value) llvm.Value {
	return b.CreateICmp(llvm.IntEQ, v, nilV, "isnil")
}

// isBool: (v | 1) == TRUE_VAL.
func isBool(b llvm.Builder, v llvm.Value) llvm.Value {
	ored := b.CreateOr(v, constWord(1), "boolmasked")
	return b.CreateICmp(llvm.IntEQ, ored, trueV, "isbool")
}

// isObj: (v & (QNAN|SIGN)) == (QNAN|SIGN).
func isObj(b llvm.Builder, v llvm.Value) llvm.Value {
	masked := b.CreateAnd(v, qnanSignVal, "objmasked")
	return b.CreateICmp(llvm.IntEQ, masked, qnanSignVal, "isobj")
}

// isTruthy: nil and false are false; everything else, including 0 and "", is true
// (spec.md §4.4 Truthiness).
func isTruthy(b llvm.Builder, v llvm.Value) llvm.Value {
	notNil := b.CreateICmp(llvm.IntNE, v, nilV, "notnil")
	notFalse := b.CreateICmp(llvm.IntNE, v, falseV, "notfalse")
	return b.CreateAnd(notNil, notFalse, "truthy")
}

// valuesEqual implements spec.md §4.4 Equality: numbers compare as IEEE doubles; two interned
// strings (or any two objects) compare by pointer (word) equality; otherwise bitwise word
// equality suffices since every non-object, non-number encoding is a single canonical bit
// pattern.
func valuesEqual(b llvm.Builder, fn llvm.Value, l, r llvm.Value) llvm.Value {
	bothNumbers := b.CreateAnd(isNumber(b, l), isNumber(b, r), "bothnum")

	entry := b.GetInsertBlock()
	numBB := llvm.AddBasicBlock(fn, "num_eq")
	wordBB := llvm.AddBasicBlock(fn, "word_eq")
	convBB := llvm.AddBasicBlock(fn, "eq_conv")
	b.SetInsertPointAtEnd(entry)
	b.CreateCondBr(bothNumbers, numBB, wordBB)

	b.SetInsertPointAtEnd(numBB)
	fEq := b.CreateFCmp(llvm.FloatOEQ, asNumber(b, l), asNumber(b, r), "feq")
	numResult := boolVal(b, fEq)
	b.CreateBr(convBB)

	b.SetInsertPointAtEnd(wordBB)
	wEq := b.CreateICmp(llvm.IntEQ, l, r, "weq")
	wordResult := boolVal(b, wEq)
	b.CreateBr(convBB)

	b.SetInsertPointAtEnd(convBB)
	phi := b.CreatePHI(word, "eqphi")
	phi.AddIncoming([]llvm.Value{numResult, wordResult}, []llvm.BasicBlock{numBB, wordBB})
	return phi
}
