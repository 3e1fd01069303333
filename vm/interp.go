package vm

import (
	"fmt"

	"github.com/chazu/loom/compiler"
)

// ---------------------------------------------------------------------------
// Work frames: the explicit call-stack representation
// ---------------------------------------------------------------------------

// workFrame is the closed variant of work-queue entries. The VM never
// recurses on the host: every continuation an evaluation step needs is
// pushed as a frame and popped by the driver loop, so execution can
// suspend between any two frames and resume later.
type workFrame interface {
	frame()
}

// evalFrame evaluates one AST node.
type evalFrame struct {
	node compiler.Node
}

// sendFrame pops argc arguments and a receiver and dispatches selector.
type sendFrame struct {
	selector string
	argc     int
}

// superFrame pops argc arguments and dispatches selector starting from
// the current method's defining class's parents (or the named parent).
type superFrame struct {
	selector  string
	argc      int
	qualifier string
}

// applyFrame invokes a block. When block is nil the block value is
// popped from beneath the arguments; detached makes ^ inside the block
// a local return (forked and script roots).
type applyFrame struct {
	argc     int
	block    *Block
	detached bool
}

// popActFrame unwinds one activation. Method activations push their
// receiver as the send's value; block activations leave the body's last
// value on the stack.
type popActFrame struct {
	act      *Activation
	isMethod bool
}

// returnFrame honors ^expr with the value on the stack.
type returnFrame struct{}

// buildArrayFrame assembles an array from n stack values.
type buildArrayFrame struct {
	n int
}

// buildTableFrame assembles a table from n key/value pairs on the stack.
type buildTableFrame struct {
	n int
}

// cascadeStartFrame pops the evaluated cascade receiver and schedules
// the first part.
type cascadeStartFrame struct {
	parts []compiler.CascadePart
}

// cascadeStepFrame drives the remaining cascade parts against the saved
// receiver, discarding intermediate results.
type cascadeStepFrame struct {
	recv  Value
	parts []compiler.CascadePart
	idx   int
}

// discardFrame drops the top of the eval stack (statement separator).
type discardFrame struct{}

// pushValueFrame pushes a saved value.
type pushValueFrame struct {
	v Value
}

// storeVarFrame assigns the top of the stack to a variable, leaving the
// value on the stack.
type storeVarFrame struct {
	name string
}

// storeSlotFrame assigns the top of the stack to a receiver slot,
// leaving the value on the stack.
type storeSlotFrame struct {
	index int
}

// methodDefFrame installs a method on the class on top of the stack.
type methodDefFrame struct {
	node *compiler.MethodDef
}

// whileTestFrame pops a condition result and either schedules another
// body+condition round or pushes nil to end the loop.
type whileTestFrame struct {
	cond  *Block
	body  *Block
	sense bool
}

// handlerFrame marks an on:do: protected region. It is inert on normal
// completion; a failing frame above it unwinds to it and applies the
// handler block to the exception.
type handlerFrame struct {
	class      *Class
	handler    *Block
	stackDepth int
}

// monitorExitFrame releases a monitor on the way out of critical:, both
// on normal completion and during unwinds.
type monitorExitFrame struct {
	mon *Monitor
}

func (evalFrame) frame()         {}
func (sendFrame) frame()         {}
func (superFrame) frame()        {}
func (applyFrame) frame()        {}
func (popActFrame) frame()       {}
func (returnFrame) frame()       {}
func (buildArrayFrame) frame()   {}
func (buildTableFrame) frame()   {}
func (cascadeStartFrame) frame() {}
func (cascadeStepFrame) frame()  {}
func (discardFrame) frame()      {}
func (pushValueFrame) frame()    {}
func (storeVarFrame) frame()     {}
func (storeSlotFrame) frame()    {}
func (methodDefFrame) frame()    {}
func (whileTestFrame) frame()    {}
func (handlerFrame) frame()      {}
func (monitorExitFrame) frame()  {}

// ---------------------------------------------------------------------------
// RunState: what the driver loop reports back to the scheduler
// ---------------------------------------------------------------------------

// RunState is the outcome of one driver-loop run.
type RunState int

const (
	// RunCompleted means the work queue drained.
	RunCompleted RunState = iota
	// RunYielded means the shouldYield flag was honored; state is saved
	// and the process can be resumed.
	RunYielded
	// RunBlocked means a sync primitive parked the process; the failing
	// send was rewound and re-executes on wake.
	RunBlocked
	// RunErrored means an unhandled error aborted the work loop.
	RunErrored
)

// ---------------------------------------------------------------------------
// Interp: per-process work-queue interpreter state
// ---------------------------------------------------------------------------

// Interp is the VM state owned by one process: the work queue, the
// operand stack, and the activation stack.
type Interp struct {
	vm   *VM
	proc *Process

	work  []workFrame
	stack []Value
	acts  []*Activation

	shouldYield bool
	yieldOnSend bool

	lastErr *Error

	// Non-local return in progress: frames are popped (running their
	// activation unwinds and monitor releases) until the target
	// activation has been popped, then unwindVal is pushed.
	unwindTo  *Activation
	unwindVal Value
}

// NewInterp creates an interpreter bound to vm with an empty root
// activation whose variables are the process-wide globals.
func NewInterp(vm *VM) *Interp {
	root := &Activation{
		Receiver: Nil,
		Method:   &Block{IsMethod: true, Selector: "top level"},
		Locals:   make(map[string]Value),
		global:   true,
	}
	return &Interp{
		vm:          vm,
		acts:        []*Activation{root},
		yieldOnSend: vm.YieldOnSend,
	}
}

// VM returns the owning VM.
func (in *Interp) VM() *VM { return in.vm }

// current returns the innermost activation (the root when idle).
func (in *Interp) current() *Activation {
	return in.acts[len(in.acts)-1]
}

// ActivationDepth returns the number of live activations above the root.
func (in *Interp) ActivationDepth() int {
	return len(in.acts) - 1
}

// QueueLen returns the number of pending work frames.
func (in *Interp) QueueLen() int { return len(in.work) }

// StackLen returns the operand stack depth.
func (in *Interp) StackLen() int { return len(in.stack) }

// ---------------------------------------------------------------------------
// Stack and queue operations
// ---------------------------------------------------------------------------

func (in *Interp) push(v Value) {
	in.stack = append(in.stack, v)
}

func (in *Interp) pop() (Value, *Error) {
	if len(in.stack) == 0 {
		return Nil, Errorf(ErrInternal, "eval stack underflow")
	}
	v := in.stack[len(in.stack)-1]
	in.stack = in.stack[:len(in.stack)-1]
	return v, nil
}

func (in *Interp) popN(n int) ([]Value, *Error) {
	if len(in.stack) < n {
		return nil, Errorf(ErrInternal, "eval stack underflow: need %d, have %d", n, len(in.stack))
	}
	out := make([]Value, n)
	copy(out, in.stack[len(in.stack)-n:])
	in.stack = in.stack[:len(in.stack)-n]
	return out, nil
}

func (in *Interp) pushFrame(f workFrame) {
	in.work = append(in.work, f)
}

func (in *Interp) popFrame() workFrame {
	f := in.work[len(in.work)-1]
	in.work = in.work[:len(in.work)-1]
	return f
}

func (in *Interp) pushActivation(a *Activation) {
	in.acts = append(in.acts, a)
}

func (in *Interp) popActivation(a *Activation) {
	for i := len(in.acts) - 1; i >= 1; i-- {
		if in.acts[i] == a {
			in.acts = append(in.acts[:i], in.acts[i+1:]...)
			return
		}
	}
}

// ---------------------------------------------------------------------------
// Driver loop
// ---------------------------------------------------------------------------

// Run drains the work queue. It returns RunYielded when the shouldYield
// flag is set between frames, RunBlocked when a sync primitive parked
// the process, RunErrored on an unhandled error, and RunCompleted when
// the queue is empty.
func (in *Interp) Run() RunState {
	for {
		if in.shouldYield {
			in.shouldYield = false
			return RunYielded
		}
		if len(in.work) == 0 {
			if in.unwindTo != nil {
				// A return targeted the root context; deliver its value.
				in.push(in.unwindVal)
				in.unwindTo = nil
			}
			return RunCompleted
		}

		f := in.popFrame()

		if in.unwindTo != nil {
			in.stepUnwind(f)
			continue
		}

		blocked, err := in.step(f)
		if blocked {
			return RunBlocked
		}
		if err != nil {
			if !in.recover(err, 0) {
				in.lastErr = err
				return RunErrored
			}
		}
	}
}

// stepUnwind processes one frame while a non-local return is unwinding:
// activation pops and monitor releases still run; everything else is
// discarded.
func (in *Interp) stepUnwind(f workFrame) {
	switch fr := f.(type) {
	case popActFrame:
		fr.act.unwind()
		in.popActivation(fr.act)
		if fr.act == in.unwindTo {
			in.unwindTo = nil
			in.push(in.unwindVal)
		}
	case monitorExitFrame:
		fr.mon.release(in.vm.Scheduler)
	case semaphoreExitFrame:
		fr.sem.release(in.vm.Scheduler)
	}
}

// step dispatches one work frame.
func (in *Interp) step(f workFrame) (blocked bool, err *Error) {
	switch fr := f.(type) {
	case evalFrame:
		return false, in.evalNode(fr.node)

	case pushValueFrame:
		in.push(fr.v)
		return false, nil

	case discardFrame:
		_, err := in.pop()
		return false, err

	case storeVarFrame:
		v, err := in.pop()
		if err != nil {
			return false, err
		}
		if err := in.assign(fr.name, v); err != nil {
			return false, err
		}
		in.push(v)
		return false, nil

	case storeSlotFrame:
		v, err := in.pop()
		if err != nil {
			return false, err
		}
		inst := in.current().Receiver.AsInstance()
		if inst == nil {
			return false, Errorf(ErrValue, "slot assignment outside an instance context")
		}
		inst.SetSlot(fr.index, v)
		in.push(v)
		return false, nil

	case sendFrame:
		args, err := in.popN(fr.argc)
		if err != nil {
			return false, err
		}
		recv, err := in.pop()
		if err != nil {
			return false, err
		}
		blocked, err := in.send(recv, fr.selector, args)
		if err == nil && !blocked && in.yieldOnSend {
			in.shouldYield = true
		}
		return blocked, err

	case superFrame:
		args, err := in.popN(fr.argc)
		if err != nil {
			return false, err
		}
		return false, in.sendSuper(fr.selector, fr.qualifier, args)

	case applyFrame:
		args, err := in.popN(fr.argc)
		if err != nil {
			return false, err
		}
		blk := fr.block
		if blk == nil {
			bv, err := in.pop()
			if err != nil {
				return false, err
			}
			blk = bv.AsBlock()
			if blk == nil {
				return false, Errorf(ErrValue, "cannot apply %s as a block", bv.Kind())
			}
		}
		return false, in.applyBlock(blk, args, fr.detached)

	case popActFrame:
		fr.act.unwind()
		in.popActivation(fr.act)
		if fr.isMethod {
			in.push(fr.act.Receiver)
		}
		return false, nil

	case returnFrame:
		v, err := in.pop()
		if err != nil {
			return false, err
		}
		return false, in.nonLocalReturn(v)

	case buildArrayFrame:
		vals, err := in.popN(fr.n)
		if err != nil {
			return false, err
		}
		in.push(FromArray(NewArray(vals)))
		return false, nil

	case buildTableFrame:
		vals, err := in.popN(fr.n * 2)
		if err != nil {
			return false, err
		}
		tbl := NewTable()
		for i := 0; i < fr.n; i++ {
			tbl.AtPut(vals[i*2], vals[i*2+1])
		}
		in.push(FromTable(tbl))
		return false, nil

	case cascadeStartFrame:
		recv, err := in.pop()
		if err != nil {
			return false, err
		}
		in.pushFrame(cascadeStepFrame{recv: recv, parts: fr.parts})
		return false, nil

	case cascadeStepFrame:
		return false, in.cascadeStep(fr)

	case methodDefFrame:
		return false, in.installMethod(fr.node)

	case whileTestFrame:
		return false, in.whileTest(fr)

	case handlerFrame:
		// Protected region completed without an error; nothing to do.
		return false, nil

	case monitorExitFrame:
		fr.mon.release(in.vm.Scheduler)
		return false, nil

	case semaphoreExitFrame:
		fr.sem.release(in.vm.Scheduler)
		return false, nil

	default:
		return false, Errorf(ErrInternal, "unknown work frame %T", f)
	}
}

// ---------------------------------------------------------------------------
// Node evaluation
// ---------------------------------------------------------------------------

func (in *Interp) evalNode(node compiler.Node) *Error {
	switch n := node.(type) {
	case *compiler.IntLiteral:
		in.push(FromInt(n.Value))
	case *compiler.FloatLiteral:
		in.push(FromFloat(n.Value))
	case *compiler.StringLiteral:
		in.push(FromString(n.Value))
	case *compiler.SymbolLiteral:
		in.push(FromSymbol(n.Value))
	case *compiler.NilRef:
		in.push(Nil)
	case *compiler.TrueRef:
		in.push(True)
	case *compiler.FalseRef:
		in.push(False)
	case *compiler.SelfRef:
		in.push(in.current().Receiver)

	case *compiler.Ident:
		v, err := in.resolve(n.Name)
		if err != nil {
			return err
		}
		in.push(v)

	case *compiler.Assignment:
		in.pushFrame(storeVarFrame{name: n.Name})
		in.pushFrame(evalFrame{node: n.Value})

	case *compiler.SlotAccess:
		if n.IsAssign {
			in.pushFrame(storeSlotFrame{index: n.Index})
			in.pushFrame(evalFrame{node: n.Value})
			return nil
		}
		inst := in.current().Receiver.AsInstance()
		if inst == nil {
			return Errorf(ErrValue, "slot %q read outside an instance context", n.Name)
		}
		in.push(inst.GetSlot(n.Index))

	case *compiler.Message:
		in.pushFrame(sendFrame{selector: n.Selector, argc: len(n.Arguments)})
		for i := len(n.Arguments) - 1; i >= 0; i-- {
			in.pushFrame(evalFrame{node: n.Arguments[i]})
		}
		if n.Receiver != nil {
			in.pushFrame(evalFrame{node: n.Receiver})
		} else {
			// Implicit self: the receiver goes straight onto the value
			// stack, beneath the arguments evaluated by the frames above.
			in.push(in.current().Receiver)
		}

	case *compiler.SuperSend:
		in.pushFrame(superFrame{selector: n.Selector, argc: len(n.Arguments), qualifier: n.Qualifier})
		for i := len(n.Arguments) - 1; i >= 0; i-- {
			in.pushFrame(evalFrame{node: n.Arguments[i]})
		}

	case *compiler.Cascade:
		in.pushFrame(cascadeStartFrame{parts: n.Messages})
		in.pushFrame(evalFrame{node: n.Receiver})

	case *compiler.Block:
		in.push(in.makeClosure(n))

	case *compiler.ArrayNode:
		in.pushFrame(buildArrayFrame{n: len(n.Elements)})
		for i := len(n.Elements) - 1; i >= 0; i-- {
			in.pushFrame(evalFrame{node: n.Elements[i]})
		}

	case *compiler.TableNode:
		in.pushFrame(buildTableFrame{n: len(n.Entries)})
		for i := len(n.Entries) - 1; i >= 0; i-- {
			in.pushFrame(evalFrame{node: n.Entries[i].Value})
			in.pushFrame(evalFrame{node: n.Entries[i].Key})
		}

	case *compiler.ExprStmt:
		in.pushFrame(evalFrame{node: n.Expr})

	case *compiler.Return:
		in.pushFrame(returnFrame{})
		if n.Value != nil {
			in.pushFrame(evalFrame{node: n.Value})
		} else {
			in.pushFrame(pushValueFrame{v: in.current().Receiver})
		}

	case *compiler.PrimitiveNode:
		return in.evalPrimitive(n)

	case *compiler.MethodDef:
		in.pushFrame(methodDefFrame{node: n})
		in.pushFrame(evalFrame{node: n.Receiver})

	default:
		return Errorf(ErrInternal, "unknown AST node %T", node)
	}
	return nil
}

// resolve reads a variable: activation locals (through backing cells),
// then the running block's captured environment, then globals.
func (in *Interp) resolve(name string) (Value, *Error) {
	act := in.current()
	if !act.global {
		if v, ok := act.readLocal(name); ok {
			return v, nil
		}
		if act.Method != nil {
			if cell, ok := act.Method.CapturedEnv[name]; ok {
				return cell.Value, nil
			}
		}
	}
	if v, ok := in.vm.GetGlobal(name); ok {
		return v, nil
	}
	return Nil, Errorf(ErrValue, "undefined variable %q", name)
}

// assign writes a variable to the first scope that defines it: locals,
// the captured environment, then globals; otherwise the name is created
// in the current activation (the globals table at top level). Assigning
// an anonymous class to a top-level name christens and registers it.
func (in *Interp) assign(name string, v Value) *Error {
	act := in.current()
	if act.global {
		in.setTopLevel(name, v)
		return nil
	}
	if act.hasLocal(name) {
		act.writeLocal(name, v)
		return nil
	}
	if act.Method != nil {
		if cell, ok := act.Method.CapturedEnv[name]; ok {
			cell.Value = v
			return nil
		}
	}
	if in.vm.HasGlobal(name) {
		in.vm.SetGlobal(name, v)
		return nil
	}
	act.Locals[name] = v
	return nil
}

func (in *Interp) setTopLevel(name string, v Value) {
	if cls := v.AsClass(); cls != nil && cls.Name == "" {
		cls.Name = name
		in.vm.Classes.Register(cls)
	}
	in.vm.SetGlobal(name, v)
}

// ---------------------------------------------------------------------------
// Closure creation
// ---------------------------------------------------------------------------

// makeClosure evaluates a block literal: the AST template is paired
// with a fresh captured environment and the current activation becomes
// its home. The enclosing closure's cells are inherited by reference;
// locals along the lexical chain — the current activation and the home
// activations of its creating blocks, out to the enclosing method —
// are captured into cells registered on their activations, so sibling
// blocks share cells and the innermost binding wins. Walking home
// links rather than sender links keeps capture proportional to block
// nesting, not call depth.
func (in *Interp) makeClosure(node *compiler.Block) Value {
	act := in.current()
	blk := &Block{
		Parameters:  node.Parameters,
		Temps:       node.Temps,
		Body:        node.Statements,
		CapturedEnv: make(map[string]*Cell),
		Home:        act,
		Defining:    act.Defining,
	}
	if act.Method != nil {
		for name, cell := range act.Method.CapturedEnv {
			blk.CapturedEnv[name] = cell
		}
	}
	for a := act; a != nil && !a.global; {
		for name := range a.Locals {
			if _, ok := blk.CapturedEnv[name]; ok {
				continue
			}
			blk.CapturedEnv[name] = a.cellFor(name)
		}
		if a.Method == nil || a.Method.IsMethod || a.detached {
			break
		}
		a = a.Method.Home
	}
	return FromBlock(blk)
}

// ---------------------------------------------------------------------------
// Block and method invocation
// ---------------------------------------------------------------------------

// applyBlock invokes a closure: arity-checked, captured cell values
// bound into locals, parameters and temporaries bound over them.
func (in *Interp) applyBlock(blk *Block, args []Value, detached bool) *Error {
	if len(args) != len(blk.Parameters) {
		return Errorf(ErrDispatch, "wrong number of block arguments: got %d, want %d",
			len(args), len(blk.Parameters))
	}

	recv := in.current().Receiver
	if blk.Home != nil {
		recv = blk.Home.Receiver
	}

	act := &Activation{
		Receiver: recv,
		Method:   blk,
		Defining: blk.Defining,
		Locals:   make(map[string]Value),
		Sender:   in.current(),
		detached: detached,
	}
	if len(blk.CapturedEnv) > 0 {
		act.cellBacked = make(map[string]*Cell, len(blk.CapturedEnv))
		for name, cell := range blk.CapturedEnv {
			act.Locals[name] = cell.Value
			act.cellBacked[name] = cell
		}
	}
	for i, p := range blk.Parameters {
		act.Locals[p] = args[i]
		delete(act.cellBacked, p)
	}
	for _, t := range blk.Temps {
		act.Locals[t] = Nil
		delete(act.cellBacked, t)
	}

	in.pushActivation(act)
	in.pushBody(blk.Body, act, false)
	return nil
}

// invokeMethod runs an interpreted method entry against a receiver.
func (in *Interp) invokeMethod(bm *BoundMethod, recv Value, args []Value) *Error {
	entry := bm.Entry
	if len(args) != entry.Arity() {
		return Errorf(ErrDispatch, "wrong number of arguments for #%s: got %d, want %d",
			entry.Selector, len(args), entry.Arity())
	}
	blk := entry.Body
	act := &Activation{
		Receiver: recv,
		Method:   blk,
		Defining: bm.Defining,
		Locals:   make(map[string]Value, len(blk.Parameters)+len(blk.Temps)),
		Sender:   in.current(),
	}
	for i, p := range blk.Parameters {
		act.Locals[p] = args[i]
	}
	for _, t := range blk.Temps {
		act.Locals[t] = Nil
	}

	in.pushActivation(act)
	in.pushBody(blk.Body, act, true)
	return nil
}

// pushBody schedules a body's statements. Methods discard every
// statement value and answer self from the activation pop; blocks keep
// the last statement's value.
func (in *Interp) pushBody(stmts []compiler.Stmt, act *Activation, isMethod bool) {
	var frames []workFrame
	for i, s := range stmts {
		frames = append(frames, evalFrame{node: s})
		if isMethod || i < len(stmts)-1 {
			frames = append(frames, discardFrame{})
		}
	}
	if len(stmts) == 0 && !isMethod {
		frames = append(frames, pushValueFrame{v: Nil})
	}

	in.pushFrame(popActFrame{act: act, isMethod: isMethod})
	for i := len(frames) - 1; i >= 0; i-- {
		in.pushFrame(frames[i])
	}
}

// ---------------------------------------------------------------------------
// Non-local return
// ---------------------------------------------------------------------------

// nonLocalReturn resolves the target of ^value by walking home links
// from the current activation to the nearest method-like activation,
// then unwinds frames until that activation has been popped.
func (in *Interp) nonLocalReturn(v Value) *Error {
	target := in.current().homeMethodActivation()
	if target == nil {
		return Errorf(ErrDeadReturn, "return has no enclosing method context")
	}
	if target.dead {
		return Errorf(ErrDeadReturn,
			"non-local return from a block whose home context already returned")
	}
	if target.global {
		// ^ at top level: drop the pending work and deliver the value.
		target.HasReturned = true
		target.ReturnValue = v
		in.unwindTo = target
		in.unwindVal = v
		return nil
	}
	if !in.activationLive(target) {
		return Errorf(ErrDeadReturn,
			"non-local return across a process boundary: home context is unreachable")
	}
	target.HasReturned = true
	target.ReturnValue = v
	in.unwindTo = target
	in.unwindVal = v
	return nil
}

func (in *Interp) activationLive(target *Activation) bool {
	for i := len(in.acts) - 1; i >= 0; i-- {
		if in.acts[i] == target {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Cascades
// ---------------------------------------------------------------------------

func (in *Interp) cascadeStep(fr cascadeStepFrame) *Error {
	if fr.idx > 0 {
		// Discard the previous part's value.
		if _, err := in.pop(); err != nil {
			return err
		}
	}
	part := fr.parts[fr.idx]
	if fr.idx+1 < len(fr.parts) {
		in.pushFrame(cascadeStepFrame{recv: fr.recv, parts: fr.parts, idx: fr.idx + 1})
	}
	in.pushFrame(sendFrame{selector: part.Selector, argc: len(part.Arguments)})
	for i := len(part.Arguments) - 1; i >= 0; i-- {
		in.pushFrame(evalFrame{node: part.Arguments[i]})
	}
	in.pushFrame(pushValueFrame{v: fr.recv})
	return nil
}

// ---------------------------------------------------------------------------
// Loops
// ---------------------------------------------------------------------------

func (in *Interp) whileTest(fr whileTestFrame) *Error {
	cond, err := in.pop()
	if err != nil {
		return err
	}
	if !cond.IsBool() {
		return Errorf(ErrValue, "loop condition must be a Boolean, got %s", cond.Kind())
	}
	if cond.Bool() != fr.sense {
		in.push(Nil)
		return nil
	}
	// Body, discard, condition, test again.
	in.pushFrame(fr)
	in.pushFrame(applyFrame{argc: 0, block: fr.cond})
	if fr.body != nil {
		in.pushFrame(discardFrame{})
		in.pushFrame(applyFrame{argc: 0, block: fr.body})
	}
	return nil
}

// ---------------------------------------------------------------------------
// Primitive pragma evaluation
// ---------------------------------------------------------------------------

// evalPrimitive dispatches a <primitive: 'name'> pragma: when the named
// native is registered its result returns from the enclosing method;
// otherwise the fallback statements run in its place.
func (in *Interp) evalPrimitive(n *compiler.PrimitiveNode) *Error {
	act := in.current()
	entry := in.vm.LookupNative(n.Name)
	if entry != nil {
		args := make([]Value, len(act.Method.Parameters))
		for i, p := range act.Method.Parameters {
			v, _ := act.readLocal(p)
			args[i] = v
		}
		v, err := entry.Invoke(in, act.Receiver, args)
		if err != nil {
			return err
		}
		if in.unwindTo != nil {
			return nil
		}
		in.pushFrame(returnFrame{})
		in.pushFrame(pushValueFrame{v: v})
		return nil
	}

	// Fallback: run in place of the pragma, leaving one value for the
	// statement separator.
	if len(n.Fallback) == 0 {
		in.push(Nil)
		return nil
	}
	var frames []workFrame
	for i, s := range n.Fallback {
		frames = append(frames, evalFrame{node: s})
		if i < len(n.Fallback)-1 {
			frames = append(frames, discardFrame{})
		}
	}
	for i := len(frames) - 1; i >= 0; i-- {
		in.pushFrame(frames[i])
	}
	return nil
}

// ---------------------------------------------------------------------------
// Method installation (Recv >> sel [ ... ])
// ---------------------------------------------------------------------------

func (in *Interp) installMethod(node *compiler.MethodDef) *Error {
	cv, err := in.pop()
	if err != nil {
		return err
	}
	cls := cv.AsClass()
	if cls == nil {
		return Errorf(ErrValue, ">> requires a class receiver, got %s", cv.Kind())
	}
	entry := NewInterpretedMethod(node.Selector, node.Parameters, node.Temps, node.Statements)
	if node.ClassSide {
		err = cls.AddClassMethod(node.Selector, entry)
	} else {
		err = cls.AddMethod(node.Selector, entry)
	}
	if err != nil {
		return err
	}
	in.vm.notifyInstall(cls, node)
	in.push(cv)
	return nil
}

// ---------------------------------------------------------------------------
// Trace rendering
// ---------------------------------------------------------------------------

// stackTrace renders the activation chain as selector names, innermost
// first.
func (in *Interp) stackTrace() []string {
	var out []string
	for i := len(in.acts) - 1; i >= 0; i-- {
		a := in.acts[i]
		if a.global {
			out = append(out, "top level")
			continue
		}
		m := a.Method
		name := m.Selector
		if name == "" {
			name = "a block"
		}
		if m.Defining != nil {
			name = fmt.Sprintf("%s>>%s", m.Defining.Name, name)
		}
		out = append(out, name)
	}
	return out
}

// ---------------------------------------------------------------------------
// Error recovery through on:do: handler frames
// ---------------------------------------------------------------------------

// recover searches the work queue (down to floor) for a handler frame
// matching err, unwinds to it, and schedules the handler block with
// the exception object. It reports whether the error was handled.
func (in *Interp) recover(err *Error, floor int) bool {
	if err.Trace == nil {
		err.Trace = in.stackTrace()
	}
	errClass := err.Class
	if errClass == nil {
		errClass = in.vm.ErrorClass
	}

	idx := -1
	for i := len(in.work) - 1; i >= floor; i-- {
		if hf, ok := in.work[i].(handlerFrame); ok {
			if hf.class == nil || errClass == nil || errClass.IsKindOf(hf.class) {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		return false
	}

	hf := in.work[idx].(handlerFrame)
	for len(in.work) > idx {
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
	if len(in.stack) > hf.stackDepth {
		in.stack = in.stack[:hf.stackDepth]
	}

	ex := in.vm.makeException(err)
	in.pushFrame(applyFrame{argc: 1, block: hf.handler})
	in.pushFrame(pushValueFrame{v: ex})
	return true
}

// reset clears pending work after a failed run, keeping the root
// activation and any operand-stack prefix.
func (in *Interp) reset(stackDepth int) {
	in.work = in.work[:0]
	if len(in.stack) > stackDepth {
		in.stack = in.stack[:stackDepth]
	}
	in.acts = in.acts[:1]
	in.unwindTo = nil
	in.shouldYield = false
}
