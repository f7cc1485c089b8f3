package frontend

import (
	"testing"

	"loxc/internal/ast"
)

func parseOK(t *testing.T, src string) []ast.Stmt {
	t.Helper()
	ResetErrors()
	stmts := Parse(src)
	if HadError() {
		t.Fatalf("unexpected parse error for %q", src)
	}
	return stmts
}

func TestResolverLocalVariableDistance(t *testing.T) {
	stmts := parseOK(t, `{ var a = 1; { var b = a; print b; } }`)
	ResetErrors()
	Resolve(stmts)
	if HadError() {
		t.Fatalf("unexpected resolve error")
	}

	outer := stmts[0].(*ast.BlockStmt)
	inner := outer.Stmts[1].(*ast.BlockStmt)
	bDecl := inner.Stmts[0].(*ast.VarStmt)
	aRef := bDecl.Initializer.(*ast.Variable)
	if aRef.Distance != 1 {
		t.Errorf("expected distance 1 for reference to enclosing scope's `a`, got %d", aRef.Distance)
	}

	printStmt := inner.Stmts[1].(*ast.PrintStmt)
	bRef := printStmt.Expr.(*ast.Variable)
	if bRef.Distance != 0 {
		t.Errorf("expected distance 0 for reference to `b` in its own scope, got %d", bRef.Distance)
	}
}

func TestResolverGlobalLeftUnresolved(t *testing.T) {
	stmts := parseOK(t, `var g = 1; fun f() { print g; }`)
	ResetErrors()
	Resolve(stmts)
	if HadError() {
		t.Fatalf("unexpected resolve error")
	}

	fn := stmts[1].(*ast.FunctionStmt)
	printStmt := fn.Body[0].(*ast.PrintStmt)
	ref := printStmt.Expr.(*ast.Variable)
	if ref.Distance != ast.Unresolved {
		t.Errorf("expected a top-level global reference to stay Unresolved, got %d", ref.Distance)
	}
}

func TestResolverSelfReferenceInInitializerIsError(t *testing.T) {
	stmts := parseOK(t, `{ var a = a; }`)
	ResetErrors()
	Resolve(stmts)
	if !HadError() {
		t.Error("expected `var a = a;` to report reading a local in its own initializer")
	}
}

func TestResolverReturnOutsideFunctionIsError(t *testing.T) {
	stmts := parseOK(t, `return 1;`)
	ResetErrors()
	Resolve(stmts)
	if !HadError() {
		t.Error("expected a top-level return to be reported")
	}
}

func TestResolverReturnValueFromInitializerIsError(t *testing.T) {
	stmts := parseOK(t, `class C { init() { return 1; } }`)
	ResetErrors()
	Resolve(stmts)
	if !HadError() {
		t.Error("expected returning a value from init() to be reported")
	}
}

func TestResolverThisOutsideClassIsError(t *testing.T) {
	stmts := parseOK(t, `print this;`)
	ResetErrors()
	Resolve(stmts)
	if !HadError() {
		t.Error("expected `this` outside a class body to be reported")
	}
}

func TestResolverSuperWithoutSuperclassIsError(t *testing.T) {
	stmts := parseOK(t, `class C { m() { super.m(); } }`)
	ResetErrors()
	Resolve(stmts)
	if !HadError() {
		t.Error("expected `super` in a class with no superclass to be reported")
	}
}

func TestResolverClassInheritingFromItselfIsError(t *testing.T) {
	stmts := parseOK(t, `class C < C {}`)
	ResetErrors()
	Resolve(stmts)
	if !HadError() {
		t.Error("expected a class inheriting from itself to be reported")
	}
}

func TestResolverIdempotentOnSameTree(t *testing.T) {
	stmts := parseOK(t, `{ var a = 1; { var b = a; } }`)
	ResetErrors()
	Resolve(stmts)
	outer := stmts[0].(*ast.BlockStmt)
	inner := outer.Stmts[1].(*ast.BlockStmt)
	first := inner.Stmts[0].(*ast.VarStmt).Initializer.(*ast.Variable).Distance

	ResetErrors()
	Resolve(stmts)
	second := inner.Stmts[0].(*ast.VarStmt).Initializer.(*ast.Variable).Distance

	if first != second {
		t.Errorf("re-resolving the same tree changed distance from %d to %d", first, second)
	}
}
