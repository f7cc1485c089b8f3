package interp

import (
	"bufio"
	"fmt"
	"os"
	"time"
)

// nativeFunction wraps a Go closure as a Lox-callable value, used for the five builtin natives
// required by spec.md §6 (no other standard library is in scope).
type nativeFunction struct {
	name string
	ar   int
	fn   func(in *Interpreter, args []interface{}) (interface{}, error)
}

func (n *nativeFunction) arity() int { return n.ar }

func (n *nativeFunction) String() string { return "<native fn " + n.name + ">" }

func (n *nativeFunction) call(in *Interpreter, args []interface{}) (interface{}, error) {
	return n.fn(in, args)
}

var stdinReader = bufio.NewReader(os.Stdin)

func defineNatives(globals *Environment) {
	globals.Define("clock", &nativeFunction{name: "clock", ar: 0, fn: func(*Interpreter, []interface{}) (interface{}, error) {
		return float64(time.Now().UnixNano()) / 1e9, nil
	}})

	globals.Define("exit", &nativeFunction{name: "exit", ar: 1, fn: func(_ *Interpreter, args []interface{}) (interface{}, error) {
		code, _ := args[0].(float64)
		os.Exit(int(code))
		return nil, nil
	}})

	globals.Define("read", &nativeFunction{name: "read", ar: 0, fn: func(*Interpreter, []interface{}) (interface{}, error) {
		b, err := stdinReader.ReadByte()
		if err != nil {
			return nil, nil
		}
		return float64(b), nil
	}})

	globals.Define("utf", &nativeFunction{name: "utf", ar: 4, fn: func(_ *Interpreter, args []interface{}) (interface{}, error) {
		var bs []byte
		for _, a := range args {
			if a == nil {
				break
			}
			n, _ := a.(float64)
			bs = append(bs, byte(n))
		}
		return string(bs), nil
	}})

	globals.Define("printerr", &nativeFunction{name: "printerr", ar: 1, fn: func(in *Interpreter, args []interface{}) (interface{}, error) {
		fmt.Fprintln(os.Stderr, in.stringify(args[0]))
		return nil, nil
	}})
}
