package vm

import (
	"github.com/chazu/loom/compiler"
)

// ---------------------------------------------------------------------------
// Source ingest: EvalStatements, Doit, RunScript
// ---------------------------------------------------------------------------

// EvalStatements parses and evaluates source on the main process,
// returning one value per top-level statement. While the main process
// waits — an explicit yield or a blocking sync primitive — the
// scheduler steps the other ready processes.
func (vm *VM) EvalStatements(source string) ([]Value, error) {
	stmts, err := compiler.Parse(source)
	if err != nil {
		return nil, Errorf(ErrParse, "%s", err.Error())
	}
	return vm.evalParsed(stmts)
}

func (vm *VM) evalParsed(stmts []compiler.Stmt) ([]Value, error) {
	main := vm.Scheduler.Main()
	in := main.In
	base := in.StackLen()

	for i := len(stmts) - 1; i >= 0; i-- {
		in.pushFrame(evalFrame{node: stmts[i]})
	}
	return vm.driveMain(base)
}

// driveMain runs the main process to completion, interleaving the
// scheduler at its yield points and waking it out of blocked states.
func (vm *VM) driveMain(base int) ([]Value, error) {
	main := vm.Scheduler.Main()
	in := main.In

	for {
		main.State = StateRunning
		switch in.Run() {
		case RunCompleted:
			main.State = StateReady
			vals := make([]Value, in.StackLen()-base)
			copy(vals, in.stack[base:])
			in.stack = in.stack[:base]
			return vals, nil

		case RunYielded:
			vm.Scheduler.StepAll()

		case RunBlocked:
			main.State = StateBlocked
			for main.State == StateBlocked {
				if !vm.Scheduler.HasReady() {
					err := Errorf(ErrScheduler,
						"deadlock: main process blocked with no runnable process to wake it")
					in.reset(base)
					main.State = StateReady
					return nil, err
				}
				vm.Scheduler.Step()
			}

		case RunErrored:
			err := in.lastErr
			in.reset(base)
			main.State = StateReady
			return nil, err
		}
	}
}

// Doit evaluates source and returns only the last value.
func (vm *VM) Doit(source string) (Value, error) {
	vals, err := vm.EvalStatements(source)
	if err != nil {
		return Nil, err
	}
	if len(vals) == 0 {
		return Nil, nil
	}
	return vals[len(vals)-1], nil
}

// RunScript evaluates a script file's source. A leading shebang is
// stripped by the lexer. A script consisting of a single parameterless
// block is applied with self = nil; a ^ inside it is a non-local return
// that terminates the script with the returned value.
func (vm *VM) RunScript(source string) (Value, error) {
	stmts, err := compiler.Parse(source)
	if err != nil {
		return Nil, Errorf(ErrParse, "%s", err.Error())
	}

	if len(stmts) == 1 {
		if es, ok := stmts[0].(*compiler.ExprStmt); ok {
			if blk, ok := es.Expr.(*compiler.Block); ok && len(blk.Parameters) == 0 {
				main := vm.Scheduler.Main()
				in := main.In
				base := in.StackLen()
				in.pushFrame(applyFrame{argc: 0, detached: true})
				in.pushFrame(evalFrame{node: blk})
				vals, err := vm.driveMain(base)
				if err != nil {
					return Nil, err
				}
				if len(vals) == 0 {
					return Nil, nil
				}
				return vals[len(vals)-1], nil
			}
		}
	}

	vals, err := vm.evalParsed(stmts)
	if err != nil {
		return Nil, err
	}
	if len(vals) == 0 {
		return Nil, nil
	}
	return vals[len(vals)-1], nil
}
