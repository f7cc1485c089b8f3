package compiler

import "tinygo.org/x/go-llvm"

// objTypeTag enumerates the object variants of spec.md §3, stored in the one-byte type field of
// every object header.
const (
	objTypeString = iota
	objTypeFunction
	objTypeClosure
	objTypeUpvalue
	objTypeClass
	objTypeInstance
	objTypeBoundMethod
)

// ptrTy is shorthand for an opaque i8* pointer, used throughout the runtime helpers for any
// object pointer before it is bitcast to a concrete struct pointer type.
var ptrTy = llvm.PointerType(llvm.Int8Type(), 0)

// types bundles together every LLVM struct type the runtime helpers need. It is constructed once
// per Compile invocation (LLVM contexts are not reused across compiles) and threaded through the
// compiler as a value instead of a pile of globals, because each run gets its own llvm.Context.
type types struct {
	ctx llvm.Context

	header    llvm.Type // struct.Obj      { i8 type, i8 marked, Obj* next }
	headerPtr llvm.Type

	str     llvm.Type // struct.String   { Obj header, i8* chars, i32 length, i32 hash }
	strPtr  llvm.Type
	fn      llvm.Type // struct.Function { Obj header, i32 arity, i8* code, String* name, i1 isNative }
	fnPtr   llvm.Type
	closure llvm.Type // struct.Closure  { Obj header, Function* fn, Upvalue** upvalues, i32 upvalueCount }
	closPtr llvm.Type
	upval   llvm.Type // struct.Upvalue  { Obj header, i64* location, i64 closed }
	upvPtr  llvm.Type
	class   llvm.Type // struct.Class    { Obj header, String* name, Class* super, Table methods }
	clsPtr  llvm.Type
	inst    llvm.Type // struct.Instance { Obj header, Class* class, Table fields }
	instPtr llvm.Type
	bound   llvm.Type // struct.BoundMethod { Obj header, i64 receiver, Closure* method }
	boundPtr llvm.Type

	entry   llvm.Type // struct.Entry    { String* key, i64 value }
	table   llvm.Type // struct.Table    { i32 count, i32 capacity, Entry* entries }
	tablePtr llvm.Type
}

// newTypes declares every struct type used by the compiled program's runtime, using opaque
// forward declarations (llvm.Context.StructCreateNamed) so that self- and mutually-recursive
// pointer fields (Obj.next, Class.super, Closure.upvalues, …) can be wired up before any field
// type is finalized.
func newTypes(ctx llvm.Context) *types {
	t := &types{ctx: ctx}

	t.header = ctx.StructCreateNamed("struct.Obj")
	t.headerPtr = llvm.PointerType(t.header, 0)
	t.header.StructSetBody([]llvm.Type{llvm.Int8Type(), llvm.Int8Type(), t.headerPtr}, false)

	t.entry = ctx.StructCreateNamed("struct.Entry")
	t.str = ctx.StructCreateNamed("struct.String")
	t.strPtr = llvm.PointerType(t.str, 0)
	t.fn = ctx.StructCreateNamed("struct.Function")
	t.fnPtr = llvm.PointerType(t.fn, 0)
	t.closure = ctx.StructCreateNamed("struct.Closure")
	t.closPtr = llvm.PointerType(t.closure, 0)
	t.upval = ctx.StructCreateNamed("struct.Upvalue")
	t.upvPtr = llvm.PointerType(t.upval, 0)
	t.class = ctx.StructCreateNamed("struct.Class")
	t.clsPtr = llvm.PointerType(t.class, 0)
	t.inst = ctx.StructCreateNamed("struct.Instance")
	t.instPtr = llvm.PointerType(t.inst, 0)
	t.bound = ctx.StructCreateNamed("struct.BoundMethod")
	t.boundPtr = llvm.PointerType(t.bound, 0)
	t.table = ctx.StructCreateNamed("struct.Table")
	t.tablePtr = llvm.PointerType(t.table, 0)

	t.entry.StructSetBody([]llvm.Type{t.strPtr, word}, false)
	t.table.StructSetBody([]llvm.Type{llvm.Int32Type(), llvm.Int32Type(), llvm.PointerType(t.entry, 0)}, false)

	t.str.StructSetBody([]llvm.Type{t.header, ptrTy, llvm.Int32Type(), llvm.Int32Type()}, false)
	t.fn.StructSetBody([]llvm.Type{t.header, llvm.Int32Type(), ptrTy, t.strPtr, llvm.Int1Type()}, false)
	t.closure.StructSetBody([]llvm.Type{t.header, t.fnPtr, llvm.PointerType(t.upvPtr, 0), llvm.Int32Type()}, false)
	t.upval.StructSetBody([]llvm.Type{t.header, llvm.PointerType(word, 0), word}, false)
	t.class.StructSetBody([]llvm.Type{t.header, t.strPtr, t.clsPtr, t.table}, false)
	t.inst.StructSetBody([]llvm.Type{t.header, t.clsPtr, t.table}, false)
	t.bound.StructSetBody([]llvm.Type{t.header, word, t.closPtr}, false)

	return t
}
