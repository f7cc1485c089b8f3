package frontend

import (
	"testing"

	"loxc/internal/ast"
)

func TestParsePrecedence(t *testing.T) {
	// 1 + 2 * 3 should bind as 1 + (2 * 3), not (1 + 2) * 3.
	ResetErrors()
	stmts := Parse(`1 + 2 * 3;`)
	if HadError() {
		t.Fatalf("unexpected parse error")
	}
	exprStmt := stmts[0].(*ast.ExpressionStmt)
	bin := exprStmt.Expr.(*ast.Binary)
	if bin.Op != "+" {
		t.Fatalf("expected top-level op '+', got %q", bin.Op)
	}
	rhs, ok := bin.Right.(*ast.Binary)
	if !ok || rhs.Op != "*" {
		t.Fatalf("expected right-hand side to be a '*' binary, got %#v", bin.Right)
	}
}

func TestParseAssignmentIsRightAssociative(t *testing.T) {
	ResetErrors()
	stmts := Parse(`{ var a; var b; a = b = 1; }`)
	if HadError() {
		t.Fatalf("unexpected parse error")
	}
	block := stmts[0].(*ast.BlockStmt)
	exprStmt := block.Stmts[2].(*ast.ExpressionStmt)
	outer := exprStmt.Expr.(*ast.Assign)
	if outer.Name != "a" {
		t.Fatalf("expected outer assignment target 'a', got %q", outer.Name)
	}
	inner, ok := outer.Value.(*ast.Assign)
	if !ok || inner.Name != "b" {
		t.Fatalf("expected outer assignment's value to be an assignment to 'b', got %#v", outer.Value)
	}
}

func TestParseForDesugarsToWhile(t *testing.T) {
	ResetErrors()
	stmts := Parse(`for (var i = 0; i < 3; i = i + 1) print i;`)
	if HadError() {
		t.Fatalf("unexpected parse error")
	}
	block, ok := stmts[0].(*ast.BlockStmt)
	if !ok {
		t.Fatalf("expected desugared for-loop to wrap in a block, got %#v", stmts[0])
	}
	if _, ok := block.Stmts[0].(*ast.VarStmt); !ok {
		t.Fatalf("expected initializer as first statement, got %#v", block.Stmts[0])
	}
	whileStmt, ok := block.Stmts[1].(*ast.WhileStmt)
	if !ok {
		t.Fatalf("expected a WhileStmt, got %#v", block.Stmts[1])
	}
	bodyBlock, ok := whileStmt.Body.(*ast.BlockStmt)
	if !ok || len(bodyBlock.Stmts) != 2 {
		t.Fatalf("expected while body to be [print, increment], got %#v", whileStmt.Body)
	}
}

func TestParseCallArguments(t *testing.T) {
	ResetErrors()
	stmts := Parse(`f(1, 2, 3);`)
	if HadError() {
		t.Fatalf("unexpected parse error")
	}
	call := stmts[0].(*ast.ExpressionStmt).Expr.(*ast.Call)
	if len(call.Args) != 3 {
		t.Fatalf("expected 3 arguments, got %d", len(call.Args))
	}
}

func TestParseTooManyArgumentsIsError(t *testing.T) {
	ResetErrors()
	args := ""
	for i := 0; i < 256; i++ {
		if i > 0 {
			args += ", "
		}
		args += "1"
	}
	Parse("f(" + args + ");")
	if !HadError() {
		t.Error("expected a call with 256 arguments to report an error")
	}
}

func TestParseMissingSemicolonIsError(t *testing.T) {
	ResetErrors()
	Parse(`var a = 1`)
	if !HadError() {
		t.Error("expected a missing trailing ';' to be reported")
	}
}

func TestParseClassWithSuperclass(t *testing.T) {
	ResetErrors()
	stmts := Parse(`class B < A { m() {} }`)
	if HadError() {
		t.Fatalf("unexpected parse error")
	}
	cls := stmts[0].(*ast.ClassStmt)
	if cls.Super == nil || cls.Super.Name != "A" {
		t.Fatalf("expected superclass 'A', got %#v", cls.Super)
	}
	if len(cls.Methods) != 1 || cls.Methods[0].Name != "m" {
		t.Fatalf("expected one method named 'm', got %#v", cls.Methods)
	}
}

func TestParseInitMethodTypedAsInitializer(t *testing.T) {
	ResetErrors()
	stmts := Parse(`class C { init() {} }`)
	if HadError() {
		t.Fatalf("unexpected parse error")
	}
	cls := stmts[0].(*ast.ClassStmt)
	if cls.Methods[0].Type != ast.FunctionInitializer {
		t.Errorf("expected init() to parse as FunctionInitializer, got %v", cls.Methods[0].Type)
	}
}

func TestParseSynchronizeRecoversAfterError(t *testing.T) {
	ResetErrors()
	stmts := Parse(`var = 1; var b = 2;`)
	if !HadError() {
		t.Fatalf("expected the malformed first declaration to report an error")
	}
	found := false
	for _, s := range stmts {
		if v, ok := s.(*ast.VarStmt); ok && v.Name == "b" {
			found = true
		}
	}
	if !found {
		t.Error("expected the parser to recover and still parse 'var b = 2;'")
	}
}
