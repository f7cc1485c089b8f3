package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"loxc/internal/ast"
	"loxc/internal/util"

	"tinygo.org/x/go-llvm"
)

// module.go is the entry point for ahead-of-time compilation (spec.md §7 COMPILER, §8 External
// Interfaces): it builds one llvm.Module holding the whole program, wires up the runtime (stacks,
// heap, GC, string table), compiles every top-level statement into an implicit program/`main`
// function, then either dumps textual IR or runs LLVM's target-machine pipeline to emit a native
// object file — mirroring the teacher's GenLLVM two-phase header/body split so opt.Threads is
// honored exactly where it is sound to parallelize (see toplevel.go's genTopLevelFunctionHeader).

// Compile lowers program to LLVM IR and writes the result to opt.Out (or a default derived from
// opt.Src), matching spec.md §8: a ".ll" suffix emits textual IR, anything else (default ".o")
// emits a native object for the host target.
func Compile(opt util.Options, program []ast.Stmt) error {
	ctx := llvm.NewContext()
	defer ctx.Dispose()

	base := strings.TrimSuffix(filepath.Base(opt.Src), filepath.Ext(opt.Src))
	m := ctx.NewModule(base)
	defer m.Dispose()

	t := newTypes(ctx)
	rt := newRuntime(ctx, m, t)

	mainFnTy := llvm.FunctionType(llvm.Int32Type(), nil, false)
	mainFn := llvm.AddFunction(m, "main", mainFnTy)
	entry := llvm.AddBasicBlock(mainFn, "entry")

	top := newFuncCompiler(rt, nil, mainFn)
	top.fnType = ast.FunctionPlain
	top.b.SetInsertPointAtEnd(entry)

	genProgram(top, program, opt.Threads)

	top.b.CreateRet(llvm.ConstInt(llvm.Int32Type(), 0, false))
	top.endScope()

	if opt.Verbose {
		fmt.Println("LLVM IR:")
		m.Dump()
	}

	return emitModule(m, opt, base)
}

// genProgram compiles program's top-level statements in source order onto top's builder, except
// that a top-level `fun` declaration's body is handed off as a funcWrapper instead of being
// compiled inline — every header (and thus every global binding) is still built strictly in
// program order, so forward references through the global table work the same as they would
// running sequentially, but the bodies themselves are independent of one another (spec.md §4.5:
// top-level functions never close over anything but globals) and so can be compiled in parallel
// across threads workers, matching the teacher's header-then-body GenLLVM split.
func genProgram(top *funcCompiler, program []ast.Stmt, threads int) {
	var wrappers []*funcWrapper
	for _, s := range program {
		if fn, ok := s.(*ast.FunctionStmt); ok {
			variable := top.declare(fn.Name)
			closureVal, w := top.genTopLevelFunctionHeader(fn)
			_ = top.b.CreateStore(closureVal, variable.slot)
			wrappers = append(wrappers, w)
			continue
		}
		top.genStmt(s)
	}
	compileWrappers(wrappers, threads)
}

// compileWrappers runs every wrapper's compileBody, fanned out across up to threads goroutines.
// Each wrapper only ever touches its own private funcCompiler/builder (see funcWrapper), so this
// is safe whenever threads > 1; sequential compilation (threads <= 1, or too few wrappers to
// bother) takes the simple path.
func compileWrappers(wrappers []*funcWrapper, threads int) {
	if threads <= 1 || len(wrappers) <= 1 {
		for _, w := range wrappers {
			w.compileBody()
		}
		return
	}
	if threads > len(wrappers) {
		threads = len(wrappers)
	}

	jobs := make(chan *funcWrapper)
	var wg sync.WaitGroup
	wg.Add(threads)
	for i := 0; i < threads; i++ {
		go func() {
			defer wg.Done()
			for w := range jobs {
				w.compileBody()
			}
		}()
	}
	for _, w := range wrappers {
		jobs <- w
	}
	close(jobs)
	wg.Wait()
}

// emitModule writes m to opt.Out (default "./<base>.o"): a ".ll" suffix writes m's own textual IR
// representation, anything else runs the standard LLVM target-machine pipeline to emit a native
// object file for the host (spec.md §8 has no cross-compilation flags, unlike the teacher's
// -arch/-os/-vendor — loxc always targets the machine it runs on).
func emitModule(m llvm.Module, opt util.Options, base string) error {
	out := opt.Out
	if out == "" {
		out = "./" + base + ".o"
	}

	if strings.HasSuffix(out, ".ll") {
		return os.WriteFile(out, []byte(m.String()), 0644)
	}

	llvm.InitializeAllTargetInfos()
	llvm.InitializeAllTargetMCs()
	llvm.InitializeAllAsmParsers()
	llvm.InitializeAllAsmPrinters()

	triple := llvm.DefaultTargetTriple()
	target, err := llvm.GetTargetFromTriple(triple)
	if err != nil {
		return fmt.Errorf("could not resolve host target triple %q: %w", triple, err)
	}

	level := llvm.CodeGenLevelDefault
	if opt.DontOptimize {
		level = llvm.CodeGenLevelNone
	}
	tm := target.CreateTargetMachine(triple, "generic", "", level, llvm.RelocDefault, llvm.CodeModelDefault)
	defer tm.Dispose()

	td := tm.CreateTargetData()
	defer td.Dispose()
	m.SetDataLayout(td.String())
	m.SetTarget(tm.Triple())

	buf, err := tm.EmitToMemoryBuffer(m, llvm.ObjectFile)
	if err != nil {
		return err
	}

	fd, err := os.OpenFile(out, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0755)
	if err != nil {
		return err
	}
	defer fd.Close()
	_, err = fd.Write(buf.Bytes())
	return err
}
