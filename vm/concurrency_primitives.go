package vm

// ---------------------------------------------------------------------------
// Concurrency natives: Processor, Scheduler, Process, sync constructors
// ---------------------------------------------------------------------------

// The blocking operations (Monitor critical:, Semaphore wait, SharedQueue
// get) are frame handlers in dispatch.go so they can rewind and park the
// calling process; construction, inspection and process control are
// ordinary natives here.

func (vm *VM) registerConcurrencyPrimitives() {
	vm.registerSchedulerPrimitives()
	vm.registerProcessControlPrimitives()
	vm.registerSyncConstructors()
}

func (vm *VM) registerSchedulerPrimitives() {
	c := vm.SchedulerClass

	// Scheduler step — runs the next ready process until it yields,
	// blocks or terminates. Callable class-side and on Processor.
	step := func(in *Interp, recv Value, args []Value) (Value, *Error) {
		in.vm.Scheduler.Step()
		return Nil, nil
	}
	c.AddClassNativeInterp("step", 0, step)
	c.AddNativeInterp("step", 0, step)

	runAll := func(in *Interp, recv Value, args []Value) (Value, *Error) {
		if err := in.vm.Scheduler.RunToCompletion(); err != nil {
			return Nil, err
		}
		return Nil, nil
	}
	c.AddClassNativeInterp("runToCompletion", 0, runAll)
	c.AddNativeInterp("runToCompletion", 0, runAll)

	c.AddNativeInterp("fork:", 1, func(in *Interp, recv Value, args []Value) (Value, *Error) {
		blk := args[0].AsBlock()
		if blk == nil {
			return Nil, Errorf(ErrValue, "fork: requires a block argument")
		}
		p := in.vm.Scheduler.Fork(blk)
		return FromInstance(p.Proxy), nil
	})

	// yield — the calling process returns to the scheduler at the next
	// work-loop check.
	c.AddNativeInterp("yield", 0, func(in *Interp, recv Value, args []Value) (Value, *Error) {
		in.shouldYield = true
		return Nil, nil
	})

	c.AddNativeInterp("activeProcess", 0, func(in *Interp, recv Value, args []Value) (Value, *Error) {
		p := in.vm.Scheduler.Active()
		in.vm.Scheduler.bindProxy(p)
		return FromInstance(p.Proxy), nil
	})

	c.AddNativeInterp("readyCount", 0, func(in *Interp, recv Value, args []Value) (Value, *Error) {
		return FromInt(int64(in.vm.Scheduler.ReadyCount())), nil
	})

	c.AddNativeInterp("blockedCount", 0, func(in *Interp, recv Value, args []Value) (Value, *Error) {
		return FromInt(int64(in.vm.Scheduler.BlockedCount())), nil
	})
}

func (vm *VM) registerProcessControlPrimitives() {
	c := vm.ProcessClass

	procOf := func(recv Value) (*Process, *Error) {
		inst := recv.AsInstance()
		if inst != nil {
			if p, ok := inst.Handle.(*Process); ok {
				return p, nil
			}
		}
		return nil, Errorf(ErrValue, "not a process")
	}

	c.AddNative("state", 0, func(recv Value, args []Value) (Value, *Error) {
		p, err := procOf(recv)
		if err != nil {
			return Nil, err
		}
		return FromString(p.State.String()), nil
	})

	c.AddNative("pid", 0, func(recv Value, args []Value) (Value, *Error) {
		p, err := procOf(recv)
		if err != nil {
			return Nil, err
		}
		return FromInt(p.ID), nil
	})

	c.AddNative("name", 0, func(recv Value, args []Value) (Value, *Error) {
		p, err := procOf(recv)
		if err != nil {
			return Nil, err
		}
		return FromString(p.Name), nil
	})

	c.AddNative("name:", 1, func(recv Value, args []Value) (Value, *Error) {
		p, err := procOf(recv)
		if err != nil {
			return Nil, err
		}
		if !args[0].IsString() && !args[0].IsSymbol() {
			return Nil, Errorf(ErrValue, "name: requires a String")
		}
		p.Name = args[0].Str()
		return recv, nil
	})

	c.AddNative("priority", 0, func(recv Value, args []Value) (Value, *Error) {
		p, err := procOf(recv)
		if err != nil {
			return Nil, err
		}
		return FromInt(int64(p.Priority)), nil
	})

	c.AddNative("priority:", 1, func(recv Value, args []Value) (Value, *Error) {
		p, err := procOf(recv)
		if err != nil {
			return Nil, err
		}
		if !args[0].IsInt() {
			return Nil, Errorf(ErrValue, "priority: requires an Int")
		}
		p.Priority = int(args[0].Int())
		return recv, nil
	})

	c.AddNativeInterp("suspend", 0, func(in *Interp, recv Value, args []Value) (Value, *Error) {
		p, err := procOf(recv)
		if err != nil {
			return Nil, err
		}
		in.vm.Scheduler.Suspend(p)
		return recv, nil
	})

	c.AddNativeInterp("resume", 0, func(in *Interp, recv Value, args []Value) (Value, *Error) {
		p, err := procOf(recv)
		if err != nil {
			return Nil, err
		}
		in.vm.Scheduler.Resume(p)
		return recv, nil
	})

	c.AddNativeInterp("terminate", 0, func(in *Interp, recv Value, args []Value) (Value, *Error) {
		p, err := procOf(recv)
		if err != nil {
			return Nil, err
		}
		in.vm.Scheduler.Terminate(p)
		return recv, nil
	})

	c.AddNative("result", 0, func(recv Value, args []Value) (Value, *Error) {
		p, err := procOf(recv)
		if err != nil {
			return Nil, err
		}
		return p.Result, nil
	})

	c.AddNative("isTerminated", 0, func(recv Value, args []Value) (Value, *Error) {
		p, err := procOf(recv)
		if err != nil {
			return Nil, err
		}
		return FromBool(p.State == StateTerminated), nil
	})
}

func (vm *VM) registerSyncConstructors() {
	vm.MonitorClass.AddClassNative("new", 0, func(recv Value, args []Value) (Value, *Error) {
		return FromInstance(NewProxy(vm.MonitorClass, NewMonitor())), nil
	})

	// Semaphore new starts with no permits, the classic
	// wait-until-signaled shape; new: seeds n permits.
	vm.SemaphoreClass.AddClassNative("new", 0, func(recv Value, args []Value) (Value, *Error) {
		return FromInstance(NewProxy(vm.SemaphoreClass, NewSemaphore(0))), nil
	})

	vm.SemaphoreClass.AddClassNative("new:", 1, func(recv Value, args []Value) (Value, *Error) {
		if !args[0].IsInt() {
			return Nil, Errorf(ErrValue, "Semaphore new: requires an Int")
		}
		return FromInstance(NewProxy(vm.SemaphoreClass, NewSemaphore(args[0].Int()))), nil
	})

	vm.SemaphoreClass.AddClassNative("forMutualExclusion", 0, func(recv Value, args []Value) (Value, *Error) {
		return FromInstance(NewProxy(vm.SemaphoreClass, NewSemaphore(1))), nil
	})

	vm.SemaphoreClass.AddNative("excessSignals", 0, func(recv Value, args []Value) (Value, *Error) {
		s, ok := recv.AsInstance().Handle.(*SemaphoreObject)
		if !ok {
			return Nil, Errorf(ErrValue, "not a semaphore")
		}
		return FromInt(s.Count), nil
	})

	vm.SharedQueueClass.AddClassNative("new", 0, func(recv Value, args []Value) (Value, *Error) {
		return FromInstance(NewProxy(vm.SharedQueueClass, NewSharedQueue())), nil
	})

	vm.SharedQueueClass.AddNative("size", 0, func(recv Value, args []Value) (Value, *Error) {
		q, ok := recv.AsInstance().Handle.(*SharedQueueObject)
		if !ok {
			return Nil, Errorf(ErrValue, "not a shared queue")
		}
		return FromInt(int64(q.Len())), nil
	})

	vm.SharedQueueClass.AddNative("isEmpty", 0, func(recv Value, args []Value) (Value, *Error) {
		q, ok := recv.AsInstance().Handle.(*SharedQueueObject)
		if !ok {
			return Nil, Errorf(ErrValue, "not a shared queue")
		}
		return FromBool(q.Len() == 0), nil
	})
}
