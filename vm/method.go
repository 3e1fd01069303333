package vm

import (
	"github.com/chazu/loom/compiler"
)

// ---------------------------------------------------------------------------
// MethodEntry: one installed method, interpreted or native
// ---------------------------------------------------------------------------

// NativeFunc is a native routine that never re-enters the interpreter.
type NativeFunc func(recv Value, args []Value) (Value, *Error)

// NativeInterpFunc is a native routine that receives the running
// interpreter so it can call back into interpreted code or reach the
// scheduler.
type NativeInterpFunc func(in *Interp, recv Value, args []Value) (Value, *Error)

// MethodEntry is a method installed in a class's own method dictionary.
// Interpreted methods keep both the raw (unlowered) statements and a
// lowered body; the raw form is re-lowered against the merged slot
// layout whenever the holder's tables rebuild, so precomputed slot
// indices stay correct after addParent:.
type MethodEntry struct {
	Selector   string
	Parameters []string
	Temps      []string

	// Interpreted form
	Raw  []compiler.Stmt // as installed, before slot lowering
	Body *Block          // lowered, IsMethod set

	// Native form
	Native       NativeFunc
	NativeInterp NativeInterpFunc

	arity int
}

// IsNative reports whether the entry dispatches to a native routine.
func (m *MethodEntry) IsNative() bool {
	return m.Native != nil || m.NativeInterp != nil
}

// HasInterpParam reports which native shape the entry carries.
func (m *MethodEntry) HasInterpParam() bool {
	return m.NativeInterp != nil
}

// Arity returns the declared argument count.
func (m *MethodEntry) Arity() int {
	return m.arity
}

// Invoke calls a native entry with the proper shape.
func (m *MethodEntry) Invoke(in *Interp, recv Value, args []Value) (Value, *Error) {
	if m.NativeInterp != nil {
		return m.NativeInterp(in, recv, args)
	}
	return m.Native(recv, args)
}

// NewNativeMethod creates a native entry without interpreter access.
func NewNativeMethod(selector string, arity int, fn NativeFunc) *MethodEntry {
	return &MethodEntry{Selector: selector, arity: arity, Native: fn}
}

// NewNativeInterpMethod creates a native entry that receives the
// interpreter.
func NewNativeInterpMethod(selector string, arity int, fn NativeInterpFunc) *MethodEntry {
	return &MethodEntry{Selector: selector, arity: arity, NativeInterp: fn}
}

// NewInterpretedMethod creates an interpreted entry from a block body.
// The body is lowered by the installing class.
func NewInterpretedMethod(selector string, params, temps []string, body []compiler.Stmt) *MethodEntry {
	return &MethodEntry{
		Selector:   selector,
		Parameters: params,
		Temps:      temps,
		Raw:        body,
		arity:      len(params),
	}
}

// BoundMethod pairs a method entry with the class whose dictionary
// contributed it to a merged table; the defining class anchors super
// sends.
type BoundMethod struct {
	Entry    *MethodEntry
	Defining *Class
}
