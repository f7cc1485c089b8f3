// Command loxc is the loxc language front door: it reads a Lox source file, then either interprets
// it directly or compiles it ahead of time to LLVM IR / a native object, per spec.md §8 External
// Interfaces. Exit codes follow the same convention as jlox/clox: 0 success, 64 bad usage, 65 a
// static (parse/resolve) error, 70 an uncaught runtime error.
package main

import (
	"fmt"
	"os"

	"loxc/internal/compiler"
	"loxc/internal/frontend"
	"loxc/internal/interp"
	"loxc/internal/util"
)

func main() {
	os.Exit(run())
}

func run() int {
	opt, err := util.ParseArgs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return 64
	}

	src, err := util.ReadSource(opt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not read source: %s\n", err)
		return 64
	}

	if opt.TokenStream {
		for _, t := range frontend.TokenStream(src) {
			fmt.Println(t)
		}
		if frontend.HadError() {
			return 65
		}
		return 0
	}

	stmts := frontend.Parse(src)
	if frontend.HadError() {
		return 65
	}
	frontend.Resolve(stmts)
	if frontend.HadError() {
		return 65
	}

	if opt.Out == "" {
		if err := interp.New().Run(stmts); err != nil {
			return 70
		}
		return 0
	}

	if err := compiler.Compile(opt, stmts); err != nil {
		fmt.Fprintf(os.Stderr, "compile error: %s\n", err)
		return 70
	}
	return 0
}
