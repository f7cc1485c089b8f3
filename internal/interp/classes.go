package interp

import "loxc/internal/ast"

// callable is implemented by every value that can appear as the callee of a Call expression.
type callable interface {
	arity() int
	call(in *Interpreter, args []interface{}) (interface{}, error)
	String() string
}

// LoxFunction is a closure: a function declaration paired with the environment active at the
// point of its definition, so it can refer to variables from enclosing scopes after they return.
type LoxFunction struct {
	Declaration   *ast.FunctionStmt
	Closure       *Environment
	IsInitializer bool
}

func (f *LoxFunction) arity() int { return len(f.Declaration.Params) }

func (f *LoxFunction) String() string { return "<fn " + f.Declaration.Name + ">" }

// bind returns a new LoxFunction whose closure additionally binds "this" to instance; used for
// both explicit method lookup (obj.method) and super calls.
func (f *LoxFunction) bind(instance *LoxInstance) *LoxFunction {
	env := NewEnvironment(f.Closure)
	env.Define("this", instance)
	return &LoxFunction{Declaration: f.Declaration, Closure: env, IsInitializer: f.IsInitializer}
}

func (f *LoxFunction) call(in *Interpreter, args []interface{}) (interface{}, error) {
	env := NewEnvironment(f.Closure)
	for i, p := range f.Declaration.Params {
		env.Define(p, args[i])
	}

	sig, ret, err := in.executeBlock(f.Declaration.Body, env)
	if err != nil {
		return nil, err
	}
	if f.IsInitializer {
		// init always returns `this`, regardless of any `return;` it contains.
		return f.Closure.GetAt(0, "this"), nil
	}
	if sig == sigReturn {
		return ret, nil
	}
	return nil, nil
}

// LoxClass keeps a method map and a superclass pointer; method lookup walks the superclass chain.
type LoxClass struct {
	Name       string
	Superclass *LoxClass
	Methods    map[string]*LoxFunction
}

func (c *LoxClass) arity() int {
	if init := c.findMethod("init"); init != nil {
		return init.arity()
	}
	return 0
}

func (c *LoxClass) String() string { return c.Name }

func (c *LoxClass) findMethod(name string) *LoxFunction {
	if m, ok := c.Methods[name]; ok {
		return m
	}
	if c.Superclass != nil {
		return c.Superclass.findMethod(name)
	}
	return nil
}

func (c *LoxClass) call(in *Interpreter, args []interface{}) (interface{}, error) {
	instance := &LoxInstance{Class: c, Fields: make(map[string]interface{})}
	if init := c.findMethod("init"); init != nil {
		if _, err := init.bind(instance).call(in, args); err != nil {
			return nil, err
		}
	}
	return instance, nil
}

// LoxInstance holds a field table separate from its class's method table; field access is tried
// first, then methods, per spec.md §4.5 property access rules.
type LoxInstance struct {
	Class  *LoxClass
	Fields map[string]interface{}
}

func (i *LoxInstance) String() string { return i.Class.Name + " instance" }

func (i *LoxInstance) get(name string, line int) (interface{}, *RuntimeError) {
	if v, ok := i.Fields[name]; ok {
		return v, nil
	}
	if m := i.Class.findMethod(name); m != nil {
		return m.bind(i), nil
	}
	return nil, &RuntimeError{Line: line, Msg: "Undefined property '" + name + "'."}
}

func (i *LoxInstance) set(name string, value interface{}) {
	i.Fields[name] = value
}
