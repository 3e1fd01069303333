package vm

import (
	"sync"

	"github.com/tliron/commonlog"

	"github.com/chazu/loom/compiler"
)

var vmLog = commonlog.GetLogger("loom.vm")

// ---------------------------------------------------------------------------
// VM: the Loom virtual machine
// ---------------------------------------------------------------------------

// VM holds the process-wide state every process shares: the class
// registry, the globals table, the named-native registry and the
// scheduler. All of it is initialized in one bootstrap phase before any
// user code runs.
type VM struct {
	Classes *ClassTable

	globalsMu sync.RWMutex
	globals   map[string]Value

	natives map[string]*MethodEntry

	Scheduler *Scheduler

	// YieldOnSend makes every message send a yield point. Off by
	// default; loom.toml's [vm] table can enable it.
	YieldOnSend bool

	// OnMethodInstall, when set, observes every Recv >> sel [...]
	// installation (the source-recording store hooks in here).
	OnMethodInstall func(class *Class, def *compiler.MethodDef)

	// Well-known classes
	ObjectClass          *Class
	ClassClass           *Class
	UndefinedObjectClass *Class
	BooleanClass         *Class
	TrueClass            *Class
	FalseClass           *Class
	IntegerClass         *Class
	FloatClass           *Class
	StringClass          *Class
	SymbolClass          *Class
	ArrayClass           *Class
	TableClass           *Class
	BlockClass           *Class
	MessageClass         *Class

	ExceptionClass *Class
	ErrorClass     *Class

	MonitorClass     *Class
	SemaphoreClass   *Class
	SharedQueueClass *Class
	ProcessClass     *Class
	SchedulerClass   *Class
}

// NewVM creates and bootstraps a VM: core classes, natives, globals,
// the scheduler with its main process, and the prelude.
func NewVM() *VM {
	vm := &VM{
		Classes: NewClassTable(),
		globals: make(map[string]Value),
		natives: make(map[string]*MethodEntry),
	}

	vm.Scheduler = NewScheduler(vm)
	vm.bootstrap()

	if err := vm.loadPrelude(); err != nil {
		vmLog.Errorf("prelude failed to load: %s", err)
	}
	return vm
}

// ---------------------------------------------------------------------------
// Bootstrap
// ---------------------------------------------------------------------------

func (vm *VM) bootstrap() {
	// Phase 1: root classes.
	vm.ObjectClass = vm.createClass("Object", nil, nil)
	vm.ClassClass = vm.createClass("Class", []*Class{vm.ObjectClass}, nil)

	// Phase 2: behavior classes.
	vm.UndefinedObjectClass = vm.createClass("UndefinedObject", []*Class{vm.ObjectClass}, nil)
	vm.BooleanClass = vm.createClass("Boolean", []*Class{vm.ObjectClass}, nil)
	vm.TrueClass = vm.createClass("True", []*Class{vm.BooleanClass}, nil)
	vm.FalseClass = vm.createClass("False", []*Class{vm.BooleanClass}, nil)

	// Phase 3: magnitudes and collections.
	vm.IntegerClass = vm.createClass("Integer", []*Class{vm.ObjectClass}, nil)
	vm.FloatClass = vm.createClass("Float", []*Class{vm.ObjectClass}, nil)
	vm.StringClass = vm.createClass("String", []*Class{vm.ObjectClass}, nil)
	vm.SymbolClass = vm.createClass("Symbol", []*Class{vm.StringClass}, nil)
	vm.ArrayClass = vm.createClass("Array", []*Class{vm.ObjectClass}, nil)
	vm.TableClass = vm.createClass("Table", []*Class{vm.ObjectClass}, nil)

	// Phase 4: blocks and messages.
	vm.BlockClass = vm.createClass("Block", []*Class{vm.ObjectClass}, nil)
	vm.MessageClass = vm.createClass("Message", []*Class{vm.ObjectClass}, []string{"selector", "arguments"})
	addAccessors(vm.MessageClass, "selector")
	addAccessors(vm.MessageClass, "arguments")

	// Phase 5: exceptions.
	vm.ExceptionClass = vm.createClass("Exception", []*Class{vm.ObjectClass}, []string{"messageText", "stackTrace"})
	vm.ErrorClass = vm.createClass("Error", []*Class{vm.ExceptionClass}, nil)

	// Phase 6: concurrency.
	vm.MonitorClass = vm.createClass("Monitor", []*Class{vm.ObjectClass}, nil)
	vm.SemaphoreClass = vm.createClass("Semaphore", []*Class{vm.ObjectClass}, nil)
	vm.SharedQueueClass = vm.createClass("SharedQueue", []*Class{vm.ObjectClass}, nil)
	vm.ProcessClass = vm.createClass("Process", []*Class{vm.ObjectClass}, nil)
	vm.SchedulerClass = vm.createClass("Scheduler", []*Class{vm.ObjectClass}, nil)

	// Phase 7: natives.
	vm.registerObjectPrimitives()
	vm.registerClassPrimitives()
	vm.registerBooleanPrimitives()
	vm.registerNumberPrimitives()
	vm.registerStringPrimitives()
	vm.registerArrayPrimitives()
	vm.registerTablePrimitives()
	vm.registerBlockPrimitives()
	vm.registerExceptionPrimitives()
	vm.registerConcurrencyPrimitives()
	vm.registerNamedNatives()

	// Natives above were installed without per-method rebuilds; one
	// top-down pass refreshes every merged table.
	if err := vm.ObjectClass.Rebuild(); err != nil {
		vmLog.Criticalf("bootstrap rebuild failed: %s", err)
	}

	// Phase 8: globals and the scheduler's Loom face.
	main := vm.Scheduler.Main()
	main.Proxy = NewProxy(vm.ProcessClass, main)
	vm.SetGlobal("Processor", FromInstance(NewProxy(vm.SchedulerClass, vm.Scheduler)))
}

// createClass registers a bootstrap class and exposes it as a global.
func (vm *VM) createClass(name string, parents []*Class, slots []string) *Class {
	c, err := NewClass(name, parents, slots)
	if err != nil {
		vmLog.Criticalf("bootstrap class %s: %s", name, err.Message)
		return nil
	}
	vm.Classes.Register(c)
	vm.SetGlobal(name, FromClass(c))
	return c
}

// ---------------------------------------------------------------------------
// Globals
// ---------------------------------------------------------------------------

// SetYieldOnSend switches message-send yield points on or off for the
// main process and every process forked afterwards.
func (vm *VM) SetYieldOnSend(on bool) {
	vm.YieldOnSend = on
	vm.Scheduler.Main().In.yieldOnSend = on
}

// GetGlobal reads a global by name.
func (vm *VM) GetGlobal(name string) (Value, bool) {
	vm.globalsMu.RLock()
	defer vm.globalsMu.RUnlock()
	v, ok := vm.globals[name]
	return v, ok
}

// SetGlobal writes a global by name.
func (vm *VM) SetGlobal(name string, v Value) {
	vm.globalsMu.Lock()
	defer vm.globalsMu.Unlock()
	vm.globals[name] = v
}

// HasGlobal reports whether a global is defined.
func (vm *VM) HasGlobal(name string) bool {
	vm.globalsMu.RLock()
	defer vm.globalsMu.RUnlock()
	_, ok := vm.globals[name]
	return ok
}

// ---------------------------------------------------------------------------
// Named natives (<primitive: 'name'> targets)
// ---------------------------------------------------------------------------

// RegisterNative registers a named native for the primitive pragma.
func (vm *VM) RegisterNative(name string, entry *MethodEntry) {
	vm.natives[name] = entry
}

// LookupNative resolves a primitive pragma name, or nil.
func (vm *VM) LookupNative(name string) *MethodEntry {
	return vm.natives[name]
}

// ---------------------------------------------------------------------------
// Class resolution for values
// ---------------------------------------------------------------------------

// ClassOf returns the class that dispatches for a value.
func (vm *VM) ClassOf(v Value) *Class {
	switch v.Kind() {
	case KindNil:
		return vm.UndefinedObjectClass
	case KindBool:
		if v.Bool() {
			return vm.TrueClass
		}
		return vm.FalseClass
	case KindInt:
		return vm.IntegerClass
	case KindFloat:
		return vm.FloatClass
	case KindString:
		return vm.StringClass
	case KindSymbol:
		return vm.SymbolClass
	case KindArray:
		return vm.ArrayClass
	case KindTable:
		return vm.TableClass
	case KindBlock:
		return vm.BlockClass
	case KindClass:
		return vm.ClassClass
	case KindInstance:
		if inst := v.AsInstance(); inst != nil && inst.Class != nil {
			return inst.Class
		}
	}
	return vm.ObjectClass
}

// describe renders a value for error messages.
func (vm *VM) describe(v Value) string {
	if v.IsInstance() || v.IsClass() {
		return v.String()
	}
	return v.String() + " (" + vm.ClassOf(v).Name + ")"
}

// ---------------------------------------------------------------------------
// Exception and message materialization
// ---------------------------------------------------------------------------

// makeException builds the exception instance bound by on:do:.
func (vm *VM) makeException(err *Error) Value {
	cls := err.Class
	if cls == nil {
		cls = vm.ErrorClass
	}
	inst := NewInstance(cls)
	if idx := cls.SlotIndex("messageText"); idx >= 0 {
		inst.SetSlot(idx, FromString(err.Message))
	}
	if idx := cls.SlotIndex("stackTrace"); idx >= 0 {
		frames := make([]Value, len(err.Trace))
		for i, t := range err.Trace {
			frames[i] = FromString(t)
		}
		inst.SetSlot(idx, FromArray(NewArray(frames)))
	}
	return FromInstance(inst)
}

// makeMessage builds the Message instance handed to doesNotUnderstand:.
func (vm *VM) makeMessage(selector string, args []Value) Value {
	inst := NewInstance(vm.MessageClass)
	if idx := vm.MessageClass.SlotIndex("selector"); idx >= 0 {
		inst.SetSlot(idx, FromSymbol(selector))
	}
	if idx := vm.MessageClass.SlotIndex("arguments"); idx >= 0 {
		inst.SetSlot(idx, FromArray(NewArray(args)))
	}
	return FromInstance(inst)
}

// notifyInstall forwards a method installation to the observer hook.
func (vm *VM) notifyInstall(cls *Class, def *compiler.MethodDef) {
	if vm.OnMethodInstall != nil {
		vm.OnMethodInstall(cls, def)
	}
}
