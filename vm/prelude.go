package vm

import (
	_ "embed"
)

// The prelude is ordinary Loom source: the iteration protocol is built
// on whileTrue: so its blocks run through the work queue like any user
// code, yielding and unwinding included.
//
//go:embed prelude.loom
var preludeSource string

// loadPrelude evaluates the embedded prelude on the main process.
func (vm *VM) loadPrelude() error {
	_, err := vm.EvalStatements(preludeSource)
	return err
}
