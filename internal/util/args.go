package util

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Options holds parsed command line configuration for the compiler/interpreter front door.
type Options struct {
	Src          string // Path to source file. Empty means read from stdin.
	Out          string // Path to output file. Empty means interpret and run.
	Threads      int    // Parallel function-body codegen worker count.
	Verbose      bool   // Dump the LLVM module before codegen.
	TokenStream  bool   // Print the token stream and exit.
	DontOptimize bool   // Skip the LLVM optimisation pipeline.
}

// ---------------------
// ----- Constants -----
// ---------------------

const maxThreads = 64 // Maximum threads allowed executing in parallel.
const appVersion = "loxc 1.0"

// ---------------------
// ----- functions -----
// ---------------------

// ParseArgs parses command line arguments into an Options structure.
func ParseArgs() (Options, error) {
	opt := Options{Threads: 1}
	args := os.Args[1:]
	if len(args) == 0 {
		return opt, fmt.Errorf("expected path to source file")
	}
	for i1 := 0; i1 < len(args); i1++ {
		switch args[i1] {
		case "-h", "--h", "-help", "--help":
			printHelp()
			os.Exit(0)
		case "-o":
			if i1+1 >= len(args) {
				return opt, fmt.Errorf("got flag %s but no argument", args[i1])
			}
			if strings.HasPrefix(args[i1+1], "-") {
				return opt, fmt.Errorf("expected path to output file, got new flag %s", args[i1+1])
			}
			if !strings.HasSuffix(args[i1+1], ".ll") && !strings.HasSuffix(args[i1+1], ".o") {
				return opt, fmt.Errorf("output file must end in .ll or .o, got: %s", args[i1+1])
			}
			opt.Out = args[i1+1]
			i1++
		case "-t":
			if i1+1 >= len(args) {
				return opt, fmt.Errorf("got flag %s but no argument", args[i1])
			}
			t, err := strconv.Atoi(args[i1+1])
			if err != nil {
				return opt, fmt.Errorf("expected integer thread count, got: %s", args[i1+1])
			}
			if t < 1 || t > maxThreads {
				return opt, fmt.Errorf("thread count must be integer in range [1, %d]", maxThreads)
			}
			opt.Threads = t
			i1++
		case "--dontoptimize":
			opt.DontOptimize = true
		case "-ts":
			opt.TokenStream = true
		case "-vb":
			opt.Verbose = true
		case "-v", "--v", "-version", "--version":
			fmt.Println(appVersion)
			os.Exit(0)
		default:
			if strings.HasPrefix(args[i1], "-") {
				return opt, fmt.Errorf("unexpected flag: %s", args[i1])
			}
			opt.Src = args[i1]
		}
	}
	if len(opt.Src) == 0 {
		return opt, fmt.Errorf("expected path to source file")
	}
	return opt, nil
}

// printHelp prints a helpful usage message to stdout.
func printHelp() {
	w := tabwriter.NewWriter(os.Stdout, 6, 1, 1, 0, 0)
	_, _ = fmt.Fprintln(w, "-h, -help\tPrints this help message and exits.")
	_, _ = fmt.Fprintln(w, "-o\tPath to the output file. Suffix .ll emits textual LLVM IR, .o emits a native object.")
	_, _ = fmt.Fprintln(w, "\tOmitted: interpret and run the program instead of compiling it.")
	_, _ = fmt.Fprintf(w, "-t\tNumber of parallel codegen threads. Must be in range [1, %d]. Default 1.\n", maxThreads)
	_, _ = fmt.Fprintln(w, "--dontoptimize\tSkip the LLVM optimisation pipeline.")
	_, _ = fmt.Fprintln(w, "-ts\tPrint the token stream of the source file and exit.")
	_, _ = fmt.Fprintln(w, "-v, -version\tPrints application version and exits.")
	_, _ = fmt.Fprintln(w, "-vb\tVerbose mode: dump the generated LLVM module before codegen.")
	_ = w.Flush()
}
