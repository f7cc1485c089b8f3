package compiler

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"loxc/internal/ast"
	"loxc/internal/frontend"
	"loxc/internal/util"
)

// compileToIR runs the full pipeline (parse, resolve, compile) over src and returns the textual
// LLVM IR written to a temporary ".ll" file, in the same spirit as the teacher's own
// vslc_test.go, which inspects m.String() after GenLLVM.
func compileToIR(t *testing.T, src string, threads int) string {
	t.Helper()
	frontend.ResetErrors()
	stmts := frontend.Parse(src)
	if frontend.HadError() {
		t.Fatalf("unexpected parse error for %q", src)
	}
	frontend.Resolve(stmts)
	if frontend.HadError() {
		t.Fatalf("unexpected resolve error for %q", src)
	}

	out := filepath.Join(t.TempDir(), "prog.ll")
	opt := util.Options{Src: "prog.lox", Out: out, Threads: threads}
	if err := Compile(opt, stmts); err != nil {
		t.Fatalf("Compile returned an error: %v", err)
	}

	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("could not read generated IR: %v", err)
	}
	return string(b)
}

func TestCompileEmitsMainFunction(t *testing.T) {
	ir := compileToIR(t, `print "hello";`, 1)
	if !strings.Contains(ir, "define i32 @main()") {
		t.Errorf("expected a defined i32 @main(), got:\n%s", ir)
	}
}

func TestCompileEmitsStringConstant(t *testing.T) {
	ir := compileToIR(t, `print "hello world";`, 1)
	if !strings.Contains(ir, "hello world") {
		t.Errorf("expected the string literal's bytes to appear in the IR, got:\n%s", ir)
	}
}

func TestCompileTopLevelFunctionGetsItsOwnLLVMFunction(t *testing.T) {
	ir := compileToIR(t, `fun greet() { print "hi"; } greet();`, 1)
	if !strings.Contains(ir, "lox_greet_") {
		t.Errorf("expected a mangled symbol for the top-level function 'greet', got:\n%s", ir)
	}
}

func TestCompileWithMultipleThreadsMatchesSingleThreaded(t *testing.T) {
	src := `
fun a() { print 1; }
fun b() { print 2; }
fun c() { print 3; }
a(); b(); c();
`
	seq := compileToIR(t, src, 1)
	par := compileToIR(t, src, 4)

	// Top-level function bodies compile independently (see toplevel.go's
	// genTopLevelFunctionHeader); both runs must declare all three mangled functions,
	// whether their bodies were compiled sequentially or fanned out across worker goroutines.
	for _, want := range []string{"lox_a_", "lox_b_", "lox_c_"} {
		if !strings.Contains(seq, want) {
			t.Errorf("sequential compile missing %q", want)
		}
		if !strings.Contains(par, want) {
			t.Errorf("parallel compile missing %q", want)
		}
	}
}

func TestCompileClassEmitsMethodTable(t *testing.T) {
	ir := compileToIR(t, `class C { m() { return 1; } } C().m();`, 1)
	if !strings.Contains(ir, "lox_m_") {
		t.Errorf("expected a mangled symbol for method 'm', got:\n%s", ir)
	}
}

func TestTotalArgSlotsIncludesReceiverForMethods(t *testing.T) {
	fn := ast.NewFunctionStmt(1, "m", []string{"x", "y"}, nil, ast.FunctionMethod)
	if got := totalArgSlots(fn, ast.FunctionMethod); got != 3 {
		t.Errorf("method with 2 params: got %d total arg slots, want 3 (receiver + 2 params)", got)
	}
}

func TestTotalArgSlotsPlainFunctionHasNoReceiver(t *testing.T) {
	fn := ast.NewFunctionStmt(1, "f", []string{"x", "y"}, nil, ast.FunctionPlain)
	if got := totalArgSlots(fn, ast.FunctionPlain); got != 2 {
		t.Errorf("plain function with 2 params: got %d total arg slots, want 2", got)
	}
}

func TestMangledFnNameIsUniquePerCall(t *testing.T) {
	a := mangledFnName("foo")
	b := mangledFnName("foo")
	if a == b {
		t.Errorf("expected two calls to mangledFnName(%q) to produce distinct symbols, both were %q", "foo", a)
	}
}

func TestMangledFnNameHandlesAnonymous(t *testing.T) {
	name := mangledFnName("")
	if !strings.HasPrefix(name, "lox_anon_") {
		t.Errorf("expected anonymous function name to fall back to 'anon', got %q", name)
	}
}
