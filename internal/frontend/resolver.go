package frontend

import "loxc/internal/ast"

type functionKind int

const (
	fnNone functionKind = iota
	fnFunction
	fnMethod
	fnInitializer
)

type classKind int

const (
	clsNone classKind = iota
	clsClass
	clsSubclass
)

// resolver is a second pre-execution pass over the parsed AST. For every Variable/Assign/This/
// Super it writes the number of enclosing lexical scopes between the use and the definition, or
// leaves ast.Unresolved to mean "global". Scopes is a stack of name->isDefined maps; the stack
// excludes the outermost (global) scope, which is never shadowed-checked.
type resolver struct {
	scopes          []map[string]bool
	currentFunction functionKind
	currentClass    classKind
}

// Resolve runs the resolver over a parsed program. Safe to call multiple times on the same AST;
// doing so a second time produces identical distances (idempotence, spec.md §8).
func Resolve(stmts []ast.Stmt) {
	r := &resolver{}
	r.resolveStmts(stmts)
}

func (r *resolver) beginScope() { r.scopes = append(r.scopes, map[string]bool{}) }
func (r *resolver) endScope()   { r.scopes = r.scopes[:len(r.scopes)-1] }

func (r *resolver) declare(line int, name string) {
	if len(r.scopes) == 0 {
		return
	}
	scope := r.scopes[len(r.scopes)-1]
	if _, ok := scope[name]; ok {
		report(line, "", "Already a variable with this name in this scope.")
	}
	scope[name] = false
}

func (r *resolver) define(name string) {
	if len(r.scopes) == 0 {
		return
	}
	r.scopes[len(r.scopes)-1][name] = true
}

// resolveLocal walks outward from the innermost scope looking for name, writing the distance
// (scope count between use and definition) into set if found. Leaving it untouched (callers
// default it to ast.Unresolved at parse time) means "look it up as a global at run time".
func (r *resolver) resolveLocal(name string, set func(int)) {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if _, ok := r.scopes[i][name]; ok {
			set(len(r.scopes) - 1 - i)
			return
		}
	}
}

func (r *resolver) resolveStmts(stmts []ast.Stmt) {
	for _, s := range stmts {
		r.resolveStmt(s)
	}
}

func (r *resolver) resolveStmt(s ast.Stmt) {
	switch n := s.(type) {
	case *ast.BlockStmt:
		r.beginScope()
		r.resolveStmts(n.Stmts)
		r.endScope()
	case *ast.VarStmt:
		r.declare(n.Line(), n.Name)
		if n.Initializer != nil {
			r.resolveExpr(n.Initializer)
		}
		r.define(n.Name)
	case *ast.FunctionStmt:
		r.declare(n.Line(), n.Name)
		r.define(n.Name)
		r.resolveFunction(n, fnFunction)
	case *ast.ClassStmt:
		r.resolveClass(n)
	case *ast.ExpressionStmt:
		r.resolveExpr(n.Expr)
	case *ast.PrintStmt:
		r.resolveExpr(n.Expr)
	case *ast.IfStmt:
		r.resolveExpr(n.Cond)
		r.resolveStmt(n.Then)
		if n.Else != nil {
			r.resolveStmt(n.Else)
		}
	case *ast.WhileStmt:
		r.resolveExpr(n.Cond)
		r.resolveStmt(n.Body)
	case *ast.ReturnStmt:
		if r.currentFunction == fnNone {
			report(n.Line(), "", "Can't return from top-level code.")
		}
		if n.Value != nil {
			if r.currentFunction == fnInitializer {
				report(n.Line(), "", "Can't return a value from an initializer.")
			}
			r.resolveExpr(n.Value)
		}
	}
}

func (r *resolver) resolveFunction(fn *ast.FunctionStmt, kind functionKind) {
	enclosingFunction := r.currentFunction
	r.currentFunction = kind
	defer func() { r.currentFunction = enclosingFunction }()

	r.beginScope()
	for _, p := range fn.Params {
		r.declare(fn.Line(), p)
		r.define(p)
	}
	r.resolveStmts(fn.Body)
	r.endScope()
}

func (r *resolver) resolveClass(c *ast.ClassStmt) {
	enclosingClass := r.currentClass
	r.currentClass = clsClass
	defer func() { r.currentClass = enclosingClass }()

	r.declare(c.Line(), c.Name)
	r.define(c.Name)

	if c.Super != nil {
		if c.Super.Name == c.Name {
			report(c.Line(), "", "A class can't inherit from itself.")
		}
		r.currentClass = clsSubclass
		r.resolveExpr(c.Super)

		r.beginScope()
		r.scopes[len(r.scopes)-1]["super"] = true
	}

	r.beginScope()
	r.scopes[len(r.scopes)-1]["this"] = true

	for _, m := range c.Methods {
		kind := fnMethod
		if m.Type == ast.FunctionInitializer {
			kind = fnInitializer
		}
		r.resolveFunction(m, kind)
	}

	r.endScope()
	if c.Super != nil {
		r.endScope()
	}
}

func (r *resolver) resolveExpr(e ast.Expr) {
	switch n := e.(type) {
	case *ast.Variable:
		if len(r.scopes) > 0 {
			if defined, ok := r.scopes[len(r.scopes)-1][n.Name]; ok && !defined {
				report(n.Line(), "", "Can't read local variable in its own initializer.")
			}
		}
		r.resolveLocal(n.Name, func(d int) { n.Distance = d })
	case *ast.Assign:
		r.resolveExpr(n.Value)
		r.resolveLocal(n.Name, func(d int) { n.Distance = d })
	case *ast.Binary:
		r.resolveExpr(n.Left)
		r.resolveExpr(n.Right)
	case *ast.Logical:
		r.resolveExpr(n.Left)
		r.resolveExpr(n.Right)
	case *ast.Unary:
		r.resolveExpr(n.Expr)
	case *ast.Grouping:
		r.resolveExpr(n.Expr)
	case *ast.Literal:
		// No children, no bindings.
	case *ast.Call:
		r.resolveExpr(n.Callee)
		for _, a := range n.Args {
			r.resolveExpr(a)
		}
	case *ast.Get:
		r.resolveExpr(n.Object)
	case *ast.Set:
		r.resolveExpr(n.Value)
		r.resolveExpr(n.Object)
	case *ast.This:
		if r.currentClass == clsNone {
			report(n.Line(), "", "Can't use 'this' outside of a class.")
			return
		}
		r.resolveLocal("this", func(d int) { n.Distance = d })
	case *ast.Super:
		if r.currentClass == clsNone {
			report(n.Line(), "", "Can't use 'super' outside of a class.")
		} else if r.currentClass != clsSubclass {
			report(n.Line(), "", "Can't use 'super' in a class with no superclass.")
		}
		r.resolveLocal("super", func(d int) { n.Distance = d })
	}
}
