package frontend

import (
	"fmt"
	"sync"
)

// hadError is set by any call to report and inspected by the pipeline driver to decide whether to
// abort before the next phase. Reset at the start of every Parse so repeated calls (e.g. tests)
// don't carry stale state.
var (
	hadError   bool
	hadErrorMx sync.Mutex
)

// HadError reports whether any compile-time error has been reported since the last ResetErrors.
func HadError() bool {
	hadErrorMx.Lock()
	defer hadErrorMx.Unlock()
	return hadError
}

// ResetErrors clears the hadError flag. Called at the start of scanning a new source unit.
func ResetErrors() {
	hadErrorMx.Lock()
	defer hadErrorMx.Unlock()
	hadError = false
}

// report prints a one-line compile-time diagnostic and sets hadError; scanning/parsing/resolving
// continue so that multiple errors can be found in one pass.
func report(line int, where, msg string) {
	hadErrorMx.Lock()
	hadError = true
	hadErrorMx.Unlock()
	fmt.Printf("[line %d] Error%s: %s\n", line, where, msg)
}

// errorAt reports an error at the given token.
func errorAt(t Token, msg string) {
	if t.Kind == End {
		report(t.Line, " at end", msg)
	} else {
		report(t.Line, fmt.Sprintf(" at '%s'", t.Lexeme), msg)
	}
}
