package vm

// ---------------------------------------------------------------------------
// Bounded re-entry for natives
// ---------------------------------------------------------------------------

// Reenter lets a native run interpreted code: it pushes a fresh send
// and drains the work queue back to its current depth before
// returning. The sub-computation runs on the same explicit stacks — no
// host recursion — but it cannot suspend: a yield request is deferred
// to the next outer frame boundary, and a blocking sync operation is an
// error here.
func (in *Interp) Reenter(recv Value, selector string, args []Value) (Value, *Error) {
	baseW := len(in.work)
	baseS := len(in.stack)

	blocked, err := in.send(recv, selector, args)
	if err != nil {
		return Nil, err
	}
	if blocked {
		return Nil, Errorf(ErrValue, "#%s cannot block inside a native", selector)
	}

	for len(in.work) > baseW {
		f := in.popFrame()
		if in.unwindTo != nil {
			in.stepUnwind(f)
			continue
		}
		blocked, err := in.step(f)
		if blocked {
			in.drainTo(baseW)
			return Nil, Errorf(ErrValue, "#%s cannot block inside a native", selector)
		}
		if err != nil {
			// A handler outside this sub-computation is the caller's
			// business: drain and propagate.
			if !in.recover(err, baseW) {
				in.drainTo(baseW)
				return Nil, err
			}
		}
	}

	if in.unwindTo != nil {
		// A non-local return is passing through this sub-computation;
		// the outer driver keeps unwinding. The value placeholder is
		// discarded with the rest of the unwound frames.
		return Nil, nil
	}
	if len(in.stack) <= baseS {
		return Nil, Errorf(ErrInternal, "re-entry for #%s left no result", selector)
	}
	v, perr := in.pop()
	if perr != nil {
		return Nil, perr
	}
	return v, nil
}

// ApplyBlockValue is the re-entry path for natives that must run a
// block to completion.
func (in *Interp) ApplyBlockValue(blk Value, args []Value) (Value, *Error) {
	selector := "value"
	switch len(args) {
	case 1:
		selector = "value:"
	case 2:
		selector = "value:value:"
	case 3:
		selector = "value:value:value:"
	}
	return in.Reenter(blk, selector, args)
}

// drainTo discards pending frames above depth, running activation
// unwinds and lock releases on the way.
func (in *Interp) drainTo(depth int) {
	for len(in.work) > depth {
		f := in.popFrame()
		switch fr := f.(type) {
		case popActFrame:
			fr.act.unwind()
			in.popActivation(fr.act)
		case monitorExitFrame:
			fr.mon.release(in.vm.Scheduler)
		case semaphoreExitFrame:
			fr.sem.release(in.vm.Scheduler)
		}
	}
}
