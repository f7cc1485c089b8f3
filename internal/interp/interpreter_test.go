package interp

import (
	"io"
	"os"
	"testing"

	"loxc/internal/frontend"
)

// run parses, resolves and interprets src, returning everything printed to stdout and the error
// Run returned (nil on success).
func run(t *testing.T, src string) (string, error) {
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

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	old := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = old }()

	runErr := New().Run(stmts)

	_ = w.Close()
	out, _ := io.ReadAll(r)
	return string(out), runErr
}

func TestArithmeticAndPrint(t *testing.T) {
	out, err := run(t, `print 1 + 2 * 3;`)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	if out != "7\n" {
		t.Errorf("got %q, want %q", out, "7\n")
	}
}

func TestStringConcatenation(t *testing.T) {
	out, err := run(t, `print "foo" + "bar";`)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	if out != "foobar\n" {
		t.Errorf("got %q, want %q", out, "foobar\n")
	}
}

func TestClosureCapturesByReference(t *testing.T) {
	src := `
fun makeCounter() {
  var i = 0;
  fun count() {
    i = i + 1;
    print i;
  }
  return count;
}
var counter = makeCounter();
counter();
counter();
counter();
`
	out, err := run(t, src)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	if out != "1\n2\n3\n" {
		t.Errorf("got %q, want %q", out, "1\n2\n3\n")
	}
}

func TestClassesFieldsAndMethods(t *testing.T) {
	src := `
class Counter {
  init(start) {
    this.n = start;
  }
  bump() {
    this.n = this.n + 1;
    return this.n;
  }
}
var c = Counter(10);
print c.bump();
print c.bump();
`
	out, err := run(t, src)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	if out != "11\n12\n" {
		t.Errorf("got %q, want %q", out, "11\n12\n")
	}
}

func TestSingleInheritanceAndSuper(t *testing.T) {
	src := `
class Animal {
  speak() {
    return "...";
  }
}
class Dog < Animal {
  speak() {
    return "Woof, " + super.speak();
  }
}
print Dog().speak();
`
	out, err := run(t, src)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	if out != "Woof, ...\n" {
		t.Errorf("got %q, want %q", out, "Woof, ...\n")
	}
}

func TestUndefinedVariableIsRuntimeError(t *testing.T) {
	_, err := run(t, `print undefinedThing;`)
	re, ok := err.(*RuntimeError)
	if !ok {
		t.Fatalf("expected a *RuntimeError, got %v", err)
	}
	if re.Msg != "Undefined variable 'undefinedThing'." {
		t.Errorf("got message %q", re.Msg)
	}
}

func TestCallingNonCallableIsRuntimeError(t *testing.T) {
	_, err := run(t, `var n = 1; n();`)
	re, ok := err.(*RuntimeError)
	if !ok {
		t.Fatalf("expected a *RuntimeError, got %v", err)
	}
	if re.Msg != "Can only call functions and classes." {
		t.Errorf("got message %q", re.Msg)
	}
}

func TestArityMismatchIsRuntimeError(t *testing.T) {
	_, err := run(t, `fun f(a, b) { return a + b; } f(1);`)
	if _, ok := err.(*RuntimeError); !ok {
		t.Fatalf("expected a *RuntimeError for an arity mismatch, got %v", err)
	}
}

func TestAddingNumberAndStringIsRuntimeError(t *testing.T) {
	_, err := run(t, `print 1 + "a";`)
	re, ok := err.(*RuntimeError)
	if !ok {
		t.Fatalf("expected a *RuntimeError, got %v", err)
	}
	if re.Msg != "Operands must be two numbers or two strings." {
		t.Errorf("got message %q", re.Msg)
	}
}

func TestDeepRecursionIsStackOverflow(t *testing.T) {
	_, err := run(t, `fun f() { return f(); } f();`)
	re, ok := err.(*RuntimeError)
	if !ok {
		t.Fatalf("expected a *RuntimeError, got %v", err)
	}
	if re.Msg != "Stack overflow." {
		t.Errorf("got message %q, want %q", re.Msg, "Stack overflow.")
	}
}

func TestClockNativeReturnsNumber(t *testing.T) {
	out, err := run(t, `print clock() >= 0;`)
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	if out != "true\n" {
		t.Errorf("got %q, want %q", out, "true\n")
	}
}
