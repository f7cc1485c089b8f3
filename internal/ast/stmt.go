package ast

// FunctionType distinguishes plain functions from methods and initializers, since `init` methods
// always return `this` and `return` is rejected inside top-level code by the resolver.
type FunctionType int

const (
	FunctionPlain FunctionType = iota
	FunctionMethod
	FunctionInitializer
)

// Stmt is the tagged union of statement nodes.
type Stmt interface {
	stmtNode()
	Line() int
}

type stmtBase struct {
	line int
}

func (stmtBase) stmtNode() {}
func (s stmtBase) Line() int { return s.line }

// ExpressionStmt evaluates Expr and discards the result.
type ExpressionStmt struct {
	stmtBase
	Expr Expr
}

// PrintStmt evaluates Expr and writes its stringified form followed by a newline.
type PrintStmt struct {
	stmtBase
	Expr Expr
}

// VarStmt declares Name in the current scope, optionally running Initializer first. A nil
// Initializer declares the variable as nil.
type VarStmt struct {
	stmtBase
	Name        string
	Initializer Expr
}

// BlockStmt introduces a new lexical scope around Stmts.
type BlockStmt struct {
	stmtBase
	Stmts []Stmt
}

// IfStmt runs Then if Cond is truthy, else Else (nil if there is no else-branch).
type IfStmt struct {
	stmtBase
	Cond Expr
	Then Stmt
	Else Stmt
}

// WhileStmt also backs the desugared `for` loop (see parser.go).
type WhileStmt struct {
	stmtBase
	Cond Expr
	Body Stmt
}

// ReturnStmt; Value is nil for a bare `return;`.
type ReturnStmt struct {
	stmtBase
	Value Expr
}

// FunctionStmt is shared-ownership: referenced from the AST in its declaring scope, and from any
// runtime closure (interpreter backend) or IR function (compiler backend) built over it.
type FunctionStmt struct {
	stmtBase
	Name   string
	Params []string
	Body   []Stmt
	Type   FunctionType
}

// ClassStmt; Super is nil when the class has no superclass.
type ClassStmt struct {
	stmtBase
	Name    string
	Super   *Variable
	Methods []*FunctionStmt
}

func NewExpressionStmt(line int, e Expr) *ExpressionStmt { return &ExpressionStmt{stmtBase{line}, e} }
func NewPrintStmt(line int, e Expr) *PrintStmt           { return &PrintStmt{stmtBase{line}, e} }
func NewVarStmt(line int, name string, init Expr) *VarStmt {
	return &VarStmt{stmtBase{line}, name, init}
}
func NewBlockStmt(line int, stmts []Stmt) *BlockStmt { return &BlockStmt{stmtBase{line}, stmts} }
func NewIfStmt(line int, cond Expr, then, els Stmt) *IfStmt {
	return &IfStmt{stmtBase{line}, cond, then, els}
}
func NewWhileStmt(line int, cond Expr, body Stmt) *WhileStmt {
	return &WhileStmt{stmtBase{line}, cond, body}
}
func NewReturnStmt(line int, value Expr) *ReturnStmt { return &ReturnStmt{stmtBase{line}, value} }
func NewFunctionStmt(line int, name string, params []string, body []Stmt, typ FunctionType) *FunctionStmt {
	return &FunctionStmt{stmtBase{line}, name, params, body, typ}
}
func NewClassStmt(line int, name string, super *Variable, methods []*FunctionStmt) *ClassStmt {
	return &ClassStmt{stmtBase{line}, name, super, methods}
}
