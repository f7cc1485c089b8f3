// Package interp is the reference-semantics tree-walking evaluator over the resolved AST. It is
// in scope only as reference semantics for the compiler backend (internal/compiler): its
// observable behaviour (stdout, exit code, error messages) must match the compiler's for every
// legal program.
package interp

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"loxc/internal/ast"
)

// maxRecursionDepth bounds interpreter call nesting; spec.md §4.9: recursion depth over 512
// raises "Stack overflow.".
const maxRecursionDepth = 512

// RuntimeError is always fatal (spec.md §7): message plus the offending line, reported with a
// synthesized call-stack trace and a nonzero process exit.
type RuntimeError struct {
	Line int
	Msg  string
}

func (e *RuntimeError) Error() string { return e.Msg }

// execSignal is the non-exception control-flow channel for `return`, per spec.md §4.9/§9: no
// host-language exceptions are used for Lox's own control flow.
type execSignal int

const (
	sigNone execSignal = iota
	sigReturn
)

// frame records one user-function call for the stack trace printed on a fatal runtime error.
type frame struct {
	name string
	line int
}

// Interpreter evaluates a resolved AST. All mutable state (environment chain, call depth, call
// stack for traces) is encapsulated in the instance, per spec.md §9 ("In the interpreter, the
// equivalent state is encapsulated in the interpreter instance").
type Interpreter struct {
	globals *Environment
	env     *Environment
	depth   int
	frames  []frame
}

// New creates an Interpreter with the five native functions defined in its global environment.
func New() *Interpreter {
	globals := NewEnvironment(nil)
	defineNatives(globals)
	return &Interpreter{globals: globals, env: globals}
}

// Run interprets a resolved program. On a fatal runtime error, it prints the error and a stack
// trace to stderr and returns the error; the caller (cmd/loxc) is responsible for the process
// exit code.
func (in *Interpreter) Run(stmts []ast.Stmt) error {
	for _, s := range stmts {
		if _, _, err := in.execute(s); err != nil {
			in.reportRuntimeError(err)
			return err
		}
	}
	return nil
}

func (in *Interpreter) reportRuntimeError(err error) {
	re, ok := err.(*RuntimeError)
	if !ok {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	fmt.Fprintln(os.Stderr, re.Msg)
	for i := len(in.frames) - 1; i >= 0; i-- {
		fmt.Fprintf(os.Stderr, "[line %d] in %s()\n", in.frames[i].line, in.frames[i].name)
	}
	fmt.Fprintf(os.Stderr, "[line %d] in script\n", re.Line)
}

// ------------------------
// ----- Statements   -----
// ------------------------

func (in *Interpreter) execute(s ast.Stmt) (execSignal, interface{}, error) {
	switch n := s.(type) {
	case *ast.ExpressionStmt:
		_, err := in.evaluate(n.Expr)
		return sigNone, nil, err
	case *ast.PrintStmt:
		v, err := in.evaluate(n.Expr)
		if err != nil {
			return sigNone, nil, err
		}
		fmt.Println(in.stringify(v))
		return sigNone, nil, nil
	case *ast.VarStmt:
		var v interface{}
		if n.Initializer != nil {
			var err error
			v, err = in.evaluate(n.Initializer)
			if err != nil {
				return sigNone, nil, err
			}
		}
		in.env.Define(n.Name, v)
		return sigNone, nil, nil
	case *ast.BlockStmt:
		return in.executeBlock(n.Stmts, NewEnvironment(in.env))
	case *ast.IfStmt:
		cond, err := in.evaluate(n.Cond)
		if err != nil {
			return sigNone, nil, err
		}
		if truthy(cond) {
			return in.execute(n.Then)
		} else if n.Else != nil {
			return in.execute(n.Else)
		}
		return sigNone, nil, nil
	case *ast.WhileStmt:
		for {
			cond, err := in.evaluate(n.Cond)
			if err != nil {
				return sigNone, nil, err
			}
			if !truthy(cond) {
				return sigNone, nil, nil
			}
			sig, ret, err := in.execute(n.Body)
			if err != nil || sig == sigReturn {
				return sig, ret, err
			}
		}
	case *ast.ReturnStmt:
		var v interface{}
		if n.Value != nil {
			var err error
			v, err = in.evaluate(n.Value)
			if err != nil {
				return sigNone, nil, err
			}
		}
		return sigReturn, v, nil
	case *ast.FunctionStmt:
		fn := &LoxFunction{Declaration: n, Closure: in.env, IsInitializer: false}
		in.env.Define(n.Name, fn)
		return sigNone, nil, nil
	case *ast.ClassStmt:
		return sigNone, nil, in.executeClass(n)
	}
	return sigNone, nil, nil
}

func (in *Interpreter) executeClass(n *ast.ClassStmt) error {
	var super *LoxClass
	if n.Super != nil {
		v, err := in.evaluate(n.Super)
		if err != nil {
			return err
		}
		sc, ok := v.(*LoxClass)
		if !ok {
			return &RuntimeError{Line: n.Line(), Msg: "Superclass must be a class."}
		}
		super = sc
	}

	in.env.Define(n.Name, nil)

	env := in.env
	if super != nil {
		env = NewEnvironment(in.env)
		env.Define("super", super)
	}

	methods := make(map[string]*LoxFunction, len(n.Methods))
	for _, m := range n.Methods {
		methods[m.Name] = &LoxFunction{
			Declaration:   m,
			Closure:       env,
			IsInitializer: m.Type == ast.FunctionInitializer,
		}
	}

	class := &LoxClass{Name: n.Name, Superclass: super, Methods: methods}
	in.env.Assign(n.Name, class)
	return nil
}

// executeBlock runs stmts in a fresh scope (env), restoring the previous scope on the way out
// even if an error or return propagates through it.
func (in *Interpreter) executeBlock(stmts []ast.Stmt, env *Environment) (execSignal, interface{}, error) {
	previous := in.env
	in.env = env
	defer func() { in.env = previous }()

	for _, s := range stmts {
		sig, ret, err := in.execute(s)
		if err != nil || sig == sigReturn {
			return sig, ret, err
		}
	}
	return sigNone, nil, nil
}

// ------------------------
// ----- Expressions  -----
// ------------------------

func (in *Interpreter) evaluate(e ast.Expr) (interface{}, error) {
	switch n := e.(type) {
	case *ast.Literal:
		return n.Value, nil
	case *ast.Grouping:
		return in.evaluate(n.Expr)
	case *ast.Variable:
		return in.lookUpVariable(n.Name, n.Distance, n.Line())
	case *ast.Assign:
		v, err := in.evaluate(n.Value)
		if err != nil {
			return nil, err
		}
		if n.Distance == ast.Unresolved {
			if !in.globals.Assign(n.Name, v) {
				return nil, &RuntimeError{Line: n.Line(), Msg: "Undefined variable '" + n.Name + "'."}
			}
		} else {
			in.env.AssignAt(n.Distance, n.Name, v)
		}
		return v, nil
	case *ast.Logical:
		left, err := in.evaluate(n.Left)
		if err != nil {
			return nil, err
		}
		if n.Op == "or" {
			if truthy(left) {
				return left, nil
			}
		} else if !truthy(left) {
			return left, nil
		}
		return in.evaluate(n.Right)
	case *ast.Unary:
		return in.evalUnary(n)
	case *ast.Binary:
		return in.evalBinary(n)
	case *ast.Call:
		return in.evalCall(n)
	case *ast.Get:
		obj, err := in.evaluate(n.Object)
		if err != nil {
			return nil, err
		}
		inst, ok := obj.(*LoxInstance)
		if !ok {
			return nil, &RuntimeError{Line: n.Line(), Msg: "Only instances have properties."}
		}
		v, rerr := inst.get(n.Name, n.Line())
		if rerr != nil {
			return nil, rerr
		}
		return v, nil
	case *ast.Set:
		obj, err := in.evaluate(n.Object)
		if err != nil {
			return nil, err
		}
		inst, ok := obj.(*LoxInstance)
		if !ok {
			return nil, &RuntimeError{Line: n.Line(), Msg: "Only instances have fields."}
		}
		v, err := in.evaluate(n.Value)
		if err != nil {
			return nil, err
		}
		inst.set(n.Name, v)
		return v, nil
	case *ast.This:
		return in.lookUpVariable("this", n.Distance, n.Line())
	case *ast.Super:
		return in.evalSuper(n)
	}
	return nil, nil
}

func (in *Interpreter) lookUpVariable(name string, distance int, line int) (interface{}, error) {
	if distance == ast.Unresolved {
		if v, ok := in.globals.Get(name); ok {
			return v, nil
		}
		return nil, &RuntimeError{Line: line, Msg: "Undefined variable '" + name + "'."}
	}
	return in.env.GetAt(distance, name), nil
}

func (in *Interpreter) evalUnary(n *ast.Unary) (interface{}, error) {
	right, err := in.evaluate(n.Expr)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case "-":
		f, ok := right.(float64)
		if !ok {
			return nil, &RuntimeError{Line: n.Line(), Msg: "Operand must be a number."}
		}
		return -f, nil
	case "!":
		return !truthy(right), nil
	}
	return nil, &RuntimeError{Line: n.Line(), Msg: "Unknown unary operator " + n.Op}
}

func (in *Interpreter) evalBinary(n *ast.Binary) (interface{}, error) {
	left, err := in.evaluate(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := in.evaluate(n.Right)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case "==":
		return isEqual(left, right), nil
	case "!=":
		return !isEqual(left, right), nil
	case "+":
		if ls, ok := left.(string); ok {
			if rs, ok := right.(string); ok {
				return ls + rs, nil
			}
			return nil, &RuntimeError{Line: n.Line(), Msg: "Operands must be two numbers or two strings."}
		}
		if lf, ok := left.(float64); ok {
			if rf, ok := right.(float64); ok {
				return lf + rf, nil
			}
		}
		return nil, &RuntimeError{Line: n.Line(), Msg: "Operands must be two numbers or two strings."}
	}

	lf, lok := left.(float64)
	rf, rok := right.(float64)
	if !lok || !rok {
		return nil, &RuntimeError{Line: n.Line(), Msg: "Operands must be numbers."}
	}
	switch n.Op {
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		return lf / rf, nil
	case "<":
		return lf < rf, nil
	case "<=":
		return lf <= rf, nil
	case ">":
		return lf > rf, nil
	case ">=":
		return lf >= rf, nil
	}
	return nil, &RuntimeError{Line: n.Line(), Msg: "Unknown binary operator " + n.Op}
}

func (in *Interpreter) evalCall(n *ast.Call) (interface{}, error) {
	calleeV, err := in.evaluate(n.Callee)
	if err != nil {
		return nil, err
	}
	args := make([]interface{}, len(n.Args))
	for i, a := range n.Args {
		v, err := in.evaluate(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	fn, ok := calleeV.(callable)
	if !ok {
		return nil, &RuntimeError{Line: n.Line(), Msg: "Can only call functions and classes."}
	}
	if len(args) != fn.arity() {
		return nil, &RuntimeError{
			Line: n.Line(),
			Msg:  fmt.Sprintf("Expected %d arguments but got %d.", fn.arity(), len(args)),
		}
	}

	if in.depth >= maxRecursionDepth {
		return nil, &RuntimeError{Line: n.Line(), Msg: "Stack overflow."}
	}

	name := "script"
	if lf, ok := fn.(*LoxFunction); ok {
		name = lf.Declaration.Name
	} else if lc, ok := fn.(*LoxClass); ok {
		name = lc.Name
	}

	in.depth++
	in.frames = append(in.frames, frame{name: name, line: n.Line()})
	v, err := fn.call(in, args)
	in.frames = in.frames[:len(in.frames)-1]
	in.depth--
	return v, err
}

func (in *Interpreter) evalSuper(n *ast.Super) (interface{}, error) {
	super := in.env.GetAt(n.Distance, "super").(*LoxClass)
	// "this" is always one scope nearer than "super" (see resolver.go: the `this` scope is opened
	// after the `super` scope for every class, so it is always the direct enclosing scope here).
	instance := in.env.GetAt(n.Distance-1, "this").(*LoxInstance)

	method := super.findMethod(n.Method)
	if method == nil {
		return nil, &RuntimeError{Line: n.Line(), Msg: "Undefined property '" + n.Method + "'."}
	}
	return method.bind(instance), nil
}

// ------------------------
// ----- Helpers       -----
// ------------------------

func truthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

func isEqual(a, b interface{}) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a == b
}

// stringify renders a Lox value for `print` and printerr, matching the convention that an
// integral float prints without a trailing ".0" (grounded in the tree-walk reference found in
// other_examples/…archevan-glox…interpreter.go, since spec.md itself is silent on the exact
// formatting — see SPEC_FULL.md §10).
func (in *Interpreter) stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "nil"
	case bool:
		return strconv.FormatBool(t)
	case float64:
		s := strconv.FormatFloat(t, 'f', -1, 64)
		return s
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	}
}
