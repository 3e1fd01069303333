package vm

import (
	"github.com/chazu/loom/compiler"
)

// ---------------------------------------------------------------------------
// Cell: shared mutable box for captured variables
// ---------------------------------------------------------------------------

// Cell is a heap-allocated mutable container for a single Value. Every
// closure that captured the same variable holds the same cell, so an
// assignment through one closure is visible through the others. Cell
// identity, not cell value, is the invariant.
type Cell struct {
	Value Value
}

// NewCell creates a cell holding v.
func NewCell(v Value) *Cell {
	return &Cell{Value: v}
}

// ---------------------------------------------------------------------------
// Block: first-class closure
// ---------------------------------------------------------------------------

// Block is a first-class closure: parameters, temporaries and body from
// the block literal, the environment captured when the literal was
// evaluated, and the activation that was current at that moment (the
// target of a non-local return from inside the block).
//
// Method bodies are Blocks with IsMethod set; they have no captured
// environment and no home.
type Block struct {
	Parameters []string
	Temps      []string
	Body       []compiler.Stmt

	CapturedEnv map[string]*Cell
	Home        *Activation

	IsMethod bool
	Selector string // for methods and traces
	Defining *Class // class holding the enclosing method, for super
}

// NumArgs returns the block's parameter count.
func (b *Block) NumArgs() int {
	return len(b.Parameters)
}

// ---------------------------------------------------------------------------
// Activation: one in-flight method or block invocation
// ---------------------------------------------------------------------------

// Activation is an invocation record. Activations form a linked
// spaghetti stack through Sender, independent of the host call stack.
//
// Locals hold parameters and temporaries. A local bound from a captured
// cell is written through to the cell on every write and read back from
// it: two processes can hold live activations over the same cell at
// once, so write-through is required for sharing to be observable at a
// yield point.
type Activation struct {
	Receiver Value
	Method   *Block
	Defining *Class
	Locals   map[string]Value
	Sender   *Activation

	HasReturned bool
	ReturnValue Value

	// cellBacked maps locals bound from captured cells; writes go
	// through and reads prefer the cell.
	cellBacked map[string]*Cell

	// cells registers cells created for this activation's own locals so
	// sibling blocks capture the same cell.
	cells map[string]*Cell

	// global marks the root activation whose variables are the
	// process-wide globals table.
	global bool

	// detached marks a forked root: ^ inside is a local return.
	detached bool

	dead bool
}

// cellFor returns the cell for one of this activation's locals,
// creating and registering it on first capture so sibling blocks share
// the same cell.
func (a *Activation) cellFor(name string) *Cell {
	// A local already backed by a cell (bound from a captured
	// environment) keeps that cell; creating a second one would break
	// sharing.
	if c, ok := a.cellBacked[name]; ok {
		return c
	}
	if c, ok := a.cells[name]; ok {
		return c
	}
	if a.cells == nil {
		a.cells = make(map[string]*Cell)
	}
	c := NewCell(a.Locals[name])
	a.cells[name] = c
	if a.cellBacked == nil {
		a.cellBacked = make(map[string]*Cell)
	}
	a.cellBacked[name] = c
	return c
}

// readLocal reads a local, preferring the backing cell when present so
// updates made through sibling closures are always visible.
func (a *Activation) readLocal(name string) (Value, bool) {
	if c, ok := a.cellBacked[name]; ok {
		return c.Value, true
	}
	v, ok := a.Locals[name]
	return v, ok
}

// writeLocal writes a local, writing through its backing cell when one
// exists.
func (a *Activation) writeLocal(name string, v Value) {
	a.Locals[name] = v
	if c, ok := a.cellBacked[name]; ok {
		c.Value = v
	}
}

// hasLocal reports whether name is one of this activation's locals.
func (a *Activation) hasLocal(name string) bool {
	_, ok := a.Locals[name]
	return ok
}

// unwind marks the activation dead. Cell-backed locals are not written
// back: every assignment already went through the cell, and a nested
// closure may have updated the cell after this activation's last write,
// which a write-back of the local map would overwrite.
func (a *Activation) unwind() {
	a.dead = true
}

// homeMethodActivation resolves the target of a non-local return: the
// nearest enclosing method (or detached) activation reached by walking
// home links from a. A block whose home is the top level acts as its
// own method frame, so a ^ inside it returns from that block's
// invocation.
func (a *Activation) homeMethodActivation() *Activation {
	cur := a
	for cur != nil {
		m := cur.Method
		if m == nil || m.IsMethod || cur.detached || cur.global {
			return cur
		}
		home := m.Home
		if home == nil || home.global {
			return cur
		}
		cur = home
	}
	return nil
}
