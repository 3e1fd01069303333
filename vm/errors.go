package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Error: kind, message, stack trace
// ---------------------------------------------------------------------------

// ErrorKind classifies a runtime error.
type ErrorKind int

const (
	// ErrParse is produced by the ingest layer and surfaced verbatim.
	ErrParse ErrorKind = iota
	// ErrDispatch covers method-not-found after the DNU chain and wrong
	// arity on a block or method call.
	ErrDispatch
	// ErrValue covers type mismatches in natives and division by zero.
	ErrValue
	// ErrClassConstruction covers slot-name and selector conflicts and
	// cycles in the parent graph.
	ErrClassConstruction
	// ErrDeadReturn is a non-local return whose home activation has
	// already been popped.
	ErrDeadReturn
	// ErrScheduler is a deadlock: every process blocked with no
	// possible wake-up.
	ErrScheduler
	// ErrInternal is a violated VM invariant (work queue or eval stack
	// underflow).
	ErrInternal
	// ErrSignaled is an exception raised from Loom code via signal: or
	// error:.
	ErrSignaled
)

var errorKindNames = [...]string{
	ErrParse:             "parse",
	ErrDispatch:          "dispatch",
	ErrValue:             "value",
	ErrClassConstruction: "class-construction",
	ErrDeadReturn:        "return-to-dead-activation",
	ErrScheduler:         "scheduler",
	ErrInternal:          "internal",
	ErrSignaled:          "signal",
}

func (k ErrorKind) String() string {
	if int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return fmt.Sprintf("error-kind(%d)", k)
}

// Error is a Loom runtime error. Class is set for exceptions signaled
// from Loom code; VM-raised errors leave it nil and are presented as
// instances of the Error class.
type Error struct {
	Kind    ErrorKind
	Message string
	Trace   []string
	Class   *Class
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Trace) == 0 {
		return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s error: %s\n  %s", e.Kind, e.Message, strings.Join(e.Trace, "\n  "))
}

// Errorf creates an error of the given kind.
func Errorf(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
