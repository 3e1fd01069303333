package vm

// ---------------------------------------------------------------------------
// Message dispatch
// ---------------------------------------------------------------------------

// send dispatches selector to recv with args: frame-handled control
// flow first, then merged-table lookup, then the doesNotUnderstand:
// chain. blocked reports that a sync primitive parked the process after
// rewinding the send.
func (in *Interp) send(recv Value, selector string, args []Value) (blocked bool, err *Error) {
	handled, blocked, err := in.specialSend(recv, selector, args)
	if handled || blocked || err != nil {
		return blocked, err
	}
	return false, in.dispatch(recv, selector, args)
}

// dispatch performs merged-table lookup and invocation.
func (in *Interp) dispatch(recv Value, selector string, args []Value) *Error {
	bm := in.lookup(recv, selector)
	if bm == nil {
		// Materialize doesNotUnderstand: with a Message instance and
		// retry once.
		dnu := in.lookup(recv, "doesNotUnderstand:")
		if dnu == nil {
			return Errorf(ErrDispatch, "%s does not understand #%s",
				in.vm.describe(recv), selector)
		}
		msg := in.vm.makeMessage(selector, args)
		return in.invoke(dnu, recv, []Value{msg})
	}
	return in.invoke(bm, recv, args)
}

// lookup resolves a selector for a receiver. Class receivers consult
// the class's merged class-side table first, then the Class class's
// instance side (reflection selectors); everything else goes through
// the receiver class's merged instance table.
func (in *Interp) lookup(recv Value, selector string) *BoundMethod {
	if cls := recv.AsClass(); cls != nil {
		if bm := cls.LookupClassMethod(selector); bm != nil {
			return bm
		}
		return in.vm.ClassClass.LookupMethod(selector)
	}
	return in.vm.ClassOf(recv).LookupMethod(selector)
}

// invoke runs a bound method: natives are called directly with the
// registered shape; interpreted methods get an activation.
func (in *Interp) invoke(bm *BoundMethod, recv Value, args []Value) *Error {
	entry := bm.Entry
	if entry.IsNative() {
		if entry.Arity() >= 0 && entry.Arity() != len(args) {
			return Errorf(ErrDispatch, "wrong number of arguments for #%s: got %d, want %d",
				entry.Selector, len(args), entry.Arity())
		}
		v, err := entry.Invoke(in, recv, args)
		if err != nil {
			return err
		}
		if in.unwindTo != nil {
			// A non-local return passed through a re-entering native;
			// the unwind delivers its own value.
			return nil
		}
		in.push(v)
		return nil
	}
	return in.invokeMethod(bm, recv, args)
}

// ---------------------------------------------------------------------------
// Super sends
// ---------------------------------------------------------------------------

// sendSuper dispatches from the defining class's parent chain. An
// unqualified super scans the parents left to right; super<Parent>
// starts directly in the named class, which must be an ancestor of the
// defining class.
func (in *Interp) sendSuper(selector, qualifier string, args []Value) *Error {
	act := in.current()
	defining := act.Defining
	if defining == nil {
		return Errorf(ErrDispatch, "super send outside a method")
	}
	recv := act.Receiver
	classSide := recv.IsClass()

	var bm *BoundMethod
	if qualifier != "" {
		named := in.vm.Classes.Lookup(qualifier)
		if named == nil {
			return Errorf(ErrDispatch, "super<%s>: no such class", qualifier)
		}
		if !defining.inheritsFrom(named) {
			return Errorf(ErrDispatch, "super<%s>: %s is not an ancestor of %s",
				qualifier, qualifier, defining.Name)
		}
		bm = superLookup(named, selector, classSide)
	} else {
		for _, p := range defining.Parents {
			if bm = superLookup(p, selector, classSide); bm != nil {
				break
			}
		}
	}
	if bm == nil {
		return Errorf(ErrDispatch, "super: %s does not understand #%s",
			in.vm.describe(recv), selector)
	}
	return in.invoke(bm, recv, args)
}

func superLookup(c *Class, selector string, classSide bool) *BoundMethod {
	if classSide {
		if bm := c.LookupClassMethod(selector); bm != nil {
			return bm
		}
	}
	return c.LookupMethod(selector)
}

// ---------------------------------------------------------------------------
// Frame-handled control flow
// ---------------------------------------------------------------------------

// specialSend implements the control-flow selectors as work-frame
// handlers instead of natives, so their bodies can yield to the
// scheduler and unwind through non-local returns, and implements the
// blocking discipline of the sync primitives.
func (in *Interp) specialSend(recv Value, selector string, args []Value) (handled, blocked bool, err *Error) {
	switch recv.Kind() {
	case KindBool:
		return in.booleanSend(recv.Bool(), selector, args)

	case KindBlock:
		return in.blockSend(recv, selector, args)

	case KindInstance:
		inst := recv.AsInstance()
		switch h := inst.Handle.(type) {
		case *Monitor:
			return in.monitorSend(recv, h, selector, args)
		case *SemaphoreObject:
			return in.semaphoreSend(recv, h, selector, args)
		case *SharedQueueObject:
			return in.queueSend(recv, h, selector, args)
		}
	}
	return false, false, nil
}

// booleanSend handles the conditional selectors. A block branch is
// applied; a plain expression branch was already evaluated and is
// pushed as-is. The untaken branch of a one-armed conditional is nil.
func (in *Interp) booleanSend(b bool, selector string, args []Value) (handled, blocked bool, err *Error) {
	switch selector {
	case "ifTrue:", "ifFalse:", "and:", "or:":
		if len(args) != 1 {
			return true, false, Errorf(ErrDispatch, "wrong number of arguments for #%s", selector)
		}
	case "ifTrue:ifFalse:", "ifFalse:ifTrue:":
		if len(args) != 2 {
			return true, false, Errorf(ErrDispatch, "wrong number of arguments for #%s", selector)
		}
	}

	pick := func(v Value) {
		if blk := v.AsBlock(); blk != nil {
			in.pushFrame(applyFrame{argc: 0, block: blk})
			return
		}
		in.push(v)
	}

	switch selector {
	case "ifTrue:":
		if b {
			pick(args[0])
		} else {
			in.push(Nil)
		}
	case "ifFalse:":
		if b {
			in.push(Nil)
		} else {
			pick(args[0])
		}
	case "ifTrue:ifFalse:":
		if b {
			pick(args[0])
		} else {
			pick(args[1])
		}
	case "ifFalse:ifTrue:":
		if b {
			pick(args[1])
		} else {
			pick(args[0])
		}
	case "and:":
		if b {
			pick(args[0])
		} else {
			in.push(False)
		}
	case "or:":
		if b {
			in.push(True)
		} else {
			pick(args[0])
		}
	default:
		return false, false, nil
	}
	return true, false, nil
}

// blockSend handles block application, loops and exception handling.
func (in *Interp) blockSend(recv Value, selector string, args []Value) (handled, blocked bool, err *Error) {
	blk := recv.AsBlock()

	switch selector {
	case "valueWithArguments:", "whileTrue:", "whileFalse:":
		if len(args) != 1 {
			return true, false, Errorf(ErrDispatch, "wrong number of arguments for #%s", selector)
		}
	case "on:do:":
		if len(args) != 2 {
			return true, false, Errorf(ErrDispatch, "wrong number of arguments for #%s", selector)
		}
	}

	switch selector {
	case "value", "value:", "value:value:", "value:value:value:", "value:value:value:value:":
		return true, false, in.applyBlock(blk, args, false)

	case "valueWithArguments:":
		arr := args[0].AsArray()
		if arr == nil {
			return true, false, Errorf(ErrValue, "valueWithArguments: requires an Array")
		}
		return true, false, in.applyBlock(blk, arr.Elems, false)

	case "whileTrue:", "whileFalse:":
		body := args[0].AsBlock()
		if body == nil {
			return true, false, Errorf(ErrValue, "%s requires a block argument", selector)
		}
		fr := whileTestFrame{cond: blk, body: body, sense: selector == "whileTrue:"}
		in.pushFrame(fr)
		in.pushFrame(applyFrame{argc: 0, block: blk})
		return true, false, nil

	case "whileTrue", "whileFalse":
		fr := whileTestFrame{cond: blk, sense: selector == "whileTrue"}
		in.pushFrame(fr)
		in.pushFrame(applyFrame{argc: 0, block: blk})
		return true, false, nil

	case "on:do:":
		cls := args[0].AsClass()
		handler := args[1].AsBlock()
		if cls == nil || handler == nil {
			return true, false, Errorf(ErrValue, "on:do: requires an exception class and a handler block")
		}
		in.pushFrame(handlerFrame{class: cls, handler: handler, stackDepth: len(in.stack)})
		in.pushFrame(applyFrame{argc: 0, block: blk})
		return true, false, nil
	}
	return false, false, nil
}

// monitorSend handles critical: with the rewind-on-contention
// discipline: a contended caller is parked on the monitor's wait list
// and its send re-executes when the owner releases.
func (in *Interp) monitorSend(recv Value, m *Monitor, selector string, args []Value) (handled, blocked bool, err *Error) {
	switch selector {
	case "critical:":
		if len(args) != 1 {
			return true, false, Errorf(ErrDispatch, "wrong number of arguments for #critical:")
		}
		blk := args[0].AsBlock()
		if blk == nil {
			return true, false, Errorf(ErrValue, "critical: requires a block argument")
		}
		p := in.proc
		if m.Owner == nil || m.Owner == p {
			m.Owner = p
			m.Depth++
			in.pushFrame(monitorExitFrame{mon: m})
			in.pushFrame(applyFrame{argc: 0, block: blk})
			return true, false, nil
		}
		m.Waiters = append(m.Waiters, p)
		in.blockOn(recv, selector, args)
		return true, true, nil

	case "isLocked":
		in.push(FromBool(m.Owner != nil))
		return true, false, nil

	case "owner":
		if m.Owner == nil {
			in.push(Nil)
			return true, false, nil
		}
		in.push(FromInstance(m.Owner.Proxy))
		return true, false, nil
	}
	return false, false, nil
}

// semaphoreSend handles wait/signal. A waiter re-examines the count
// when it wakes, so a permit claimed in between simply parks it again.
func (in *Interp) semaphoreSend(recv Value, s *SemaphoreObject, selector string, args []Value) (handled, blocked bool, err *Error) {
	switch selector {
	case "wait":
		if s.Count > 0 {
			s.Count--
			in.push(recv)
			return true, false, nil
		}
		s.Waiters = append(s.Waiters, in.proc)
		in.blockOn(recv, selector, args)
		return true, true, nil

	case "signal":
		s.Count++
		if len(s.Waiters) > 0 {
			w := s.Waiters[0]
			s.Waiters = s.Waiters[1:]
			in.vm.Scheduler.Wake(w)
		}
		in.push(recv)
		return true, false, nil

	case "critical:":
		// Acquire, run, release — expressed through the same frames so
		// the release happens on unwinds too.
		if len(args) != 1 {
			return true, false, Errorf(ErrDispatch, "wrong number of arguments for #critical:")
		}
		blk := args[0].AsBlock()
		if blk == nil {
			return true, false, Errorf(ErrValue, "critical: requires a block argument")
		}
		if s.Count > 0 {
			s.Count--
			in.pushFrame(semaphoreExitFrame{sem: s})
			in.pushFrame(applyFrame{argc: 0, block: blk})
			return true, false, nil
		}
		s.Waiters = append(s.Waiters, in.proc)
		in.blockOn(recv, selector, args)
		return true, true, nil
	}
	return false, false, nil
}

// queueSend handles SharedQueue get/put: with block-on-empty.
func (in *Interp) queueSend(recv Value, q *SharedQueueObject, selector string, args []Value) (handled, blocked bool, err *Error) {
	switch selector {
	case "get":
		if len(q.Items) > 0 {
			v := q.Items[0]
			q.Items = q.Items[1:]
			in.push(v)
			return true, false, nil
		}
		q.Waiters = append(q.Waiters, in.proc)
		in.blockOn(recv, selector, args)
		return true, true, nil

	case "put:":
		if len(args) != 1 {
			return true, false, Errorf(ErrDispatch, "wrong number of arguments for #put:")
		}
		q.Items = append(q.Items, args[0])
		if len(q.Waiters) > 0 {
			w := q.Waiters[0]
			q.Waiters = q.Waiters[1:]
			in.vm.Scheduler.Wake(w)
		}
		in.push(args[0])
		return true, false, nil
	}
	return false, false, nil
}

// blockOn rewinds a send so it re-executes when the process wakes: the
// receiver and arguments go back on the operand stack and the send
// frame is re-pushed. The caller has already put the process on a wait
// list.
func (in *Interp) blockOn(recv Value, selector string, args []Value) {
	in.push(recv)
	for _, a := range args {
		in.push(a)
	}
	in.pushFrame(sendFrame{selector: selector, argc: len(args)})
}

// semaphoreExitFrame releases one semaphore permit on the way out of a
// critical: region.
type semaphoreExitFrame struct {
	sem *SemaphoreObject
}

func (semaphoreExitFrame) frame() {}
