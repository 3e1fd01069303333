package vm

import (
	"sync"
)

// ---------------------------------------------------------------------------
// Class: multiple-inheritance class with eagerly merged tables
// ---------------------------------------------------------------------------

// Class is a Loom class. Parents are ordered left-to-right by priority.
// AllSlotNames, AllMethods and AllClassMethods are merged caches built
// from the parents' caches plus the class's own definitions; they are
// rebuilt eagerly, top-down, whenever the class or any ancestor changes.
// Subclasses are back-references used only for invalidation walks — the
// class registry owns classes, so no ownership cycle forms.
type Class struct {
	Name string
	Tags []string

	Parents   []*Class
	SlotNames []string

	Methods      map[string]*MethodEntry
	ClassMethods map[string]*MethodEntry

	AllSlotNames    []string
	AllMethods      map[string]*BoundMethod
	AllClassMethods map[string]*BoundMethod

	Subclasses []*Class

	slotIndex map[string]int
}

// NewClass creates a class with the given parents and own slot names and
// builds its merged tables. Construction fails on slot or selector
// conflicts and on parent cycles.
func NewClass(name string, parents []*Class, slotNames []string) (*Class, *Error) {
	c := &Class{
		Name:         name,
		Parents:      parents,
		SlotNames:    slotNames,
		Methods:      make(map[string]*MethodEntry),
		ClassMethods: make(map[string]*MethodEntry),
	}
	for _, p := range parents {
		if p.inheritsFrom(c) || p == c {
			return nil, Errorf(ErrClassConstruction, "cycle in parents of %s", name)
		}
	}
	if err := c.Rebuild(); err != nil {
		return nil, err
	}
	for _, p := range parents {
		p.Subclasses = append(p.Subclasses, c)
	}
	return c, nil
}

// inheritsFrom reports whether c has other anywhere in its parent graph.
func (c *Class) inheritsFrom(other *Class) bool {
	for _, p := range c.Parents {
		if p == other || p.inheritsFrom(other) {
			return true
		}
	}
	return false
}

// IsKindOf reports whether c is other or inherits from it.
func (c *Class) IsKindOf(other *Class) bool {
	return c == other || c.inheritsFrom(other)
}

// SlotIndex returns the merged slot index for name, or -1.
func (c *Class) SlotIndex(name string) int {
	if i, ok := c.slotIndex[name]; ok {
		return i
	}
	return -1
}

// ---------------------------------------------------------------------------
// Merged table rebuild
// ---------------------------------------------------------------------------

// Rebuild rebuilds this class's merged tables from its parents and own
// definitions, then rebuilds every transitive subclass. Interpreted
// method bodies are re-lowered against the merged slot layout.
func (c *Class) Rebuild() *Error {
	if err := c.rebuildOne(); err != nil {
		return err
	}
	for _, sub := range c.Subclasses {
		if err := sub.Rebuild(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Class) rebuildOne() *Error {
	c.AllMethods = make(map[string]*BoundMethod)
	c.AllClassMethods = make(map[string]*BoundMethod)
	c.AllSlotNames = nil
	c.slotIndex = make(map[string]int)

	// Merge parents left to right. Two parents contributing the same
	// selector from ancestry-unrelated defining classes is a conflict
	// unless this class overrides it; contributions related through the
	// class graph (diamonds) resolve to the more specific definition. A
	// duplicate slot name anywhere in the union is always a conflict.
	for _, p := range c.Parents {
		for sel, bm := range p.AllMethods {
			if err := mergeEntry(c.AllMethods, c.Methods, c, sel, bm, "selector"); err != nil {
				return err
			}
		}
		for sel, bm := range p.AllClassMethods {
			if err := mergeEntry(c.AllClassMethods, c.ClassMethods, c, sel, bm, "class selector"); err != nil {
				return err
			}
		}
		for _, slot := range p.AllSlotNames {
			if _, dup := c.slotIndex[slot]; dup {
				return Errorf(ErrClassConstruction,
					"slot conflict in %s: %q appears more than once in the inheritance union",
					c.Name, slot)
			}
			c.slotIndex[slot] = len(c.AllSlotNames)
			c.AllSlotNames = append(c.AllSlotNames, slot)
		}
	}

	// Overlay own definitions.
	for sel, m := range c.Methods {
		c.AllMethods[sel] = &BoundMethod{Entry: m, Defining: c}
	}
	for sel, m := range c.ClassMethods {
		c.AllClassMethods[sel] = &BoundMethod{Entry: m, Defining: c}
	}

	// Append own slots.
	for _, slot := range c.SlotNames {
		if _, dup := c.slotIndex[slot]; dup {
			return Errorf(ErrClassConstruction,
				"slot conflict in %s: %q already defined by a parent", c.Name, slot)
		}
		c.slotIndex[slot] = len(c.AllSlotNames)
		c.AllSlotNames = append(c.AllSlotNames, slot)
	}

	// Re-lower interpreted bodies against the merged layout.
	for _, m := range c.Methods {
		if !m.IsNative() {
			lowerMethod(m, c)
		}
	}
	for _, m := range c.ClassMethods {
		if !m.IsNative() {
			lowerMethod(m, c)
		}
	}
	return nil
}

// mergeEntry folds one inherited binding into a merged table,
// enforcing the conflict rules.
func mergeEntry(merged map[string]*BoundMethod, own map[string]*MethodEntry, c *Class, sel string, bm *BoundMethod, what string) *Error {
	prev, ok := merged[sel]
	if !ok {
		merged[sel] = bm
		return nil
	}
	if prev.Entry == bm.Entry {
		return nil
	}
	// Diamond: keep the more specific definition.
	if bm.Defining.IsKindOf(prev.Defining) {
		merged[sel] = bm
		return nil
	}
	if prev.Defining.IsKindOf(bm.Defining) {
		return nil
	}
	// Unrelated definitions tie; only an own override resolves it.
	if _, overridden := own[sel]; overridden {
		return nil
	}
	return Errorf(ErrClassConstruction,
		"%s conflict for #%s in %s: defined by both %s and %s with no override",
		what, sel, c.Name, prev.Defining.Name, bm.Defining.Name)
}

// ---------------------------------------------------------------------------
// Mutation operations
// ---------------------------------------------------------------------------

// AddMethod installs an instance method and rebuilds the merged tables
// of this class and every transitive subclass.
func (c *Class) AddMethod(selector string, m *MethodEntry) *Error {
	c.Methods[selector] = m
	return c.Rebuild()
}

// AddClassMethod installs a class-side method and rebuilds.
func (c *Class) AddClassMethod(selector string, m *MethodEntry) *Error {
	c.ClassMethods[selector] = m
	return c.Rebuild()
}

// AddNative installs a native instance method without interpreter
// access. Bootstrap convenience; rebuild is deferred to the caller.
func (c *Class) AddNative(selector string, arity int, fn NativeFunc) {
	c.Methods[selector] = NewNativeMethod(selector, arity, fn)
}

// AddNativeInterp installs a native instance method with interpreter
// access.
func (c *Class) AddNativeInterp(selector string, arity int, fn NativeInterpFunc) {
	c.Methods[selector] = NewNativeInterpMethod(selector, arity, fn)
}

// AddClassNative installs a native class-side method.
func (c *Class) AddClassNative(selector string, arity int, fn NativeFunc) {
	c.ClassMethods[selector] = NewNativeMethod(selector, arity, fn)
}

// AddClassNativeInterp installs a native class-side method with
// interpreter access.
func (c *Class) AddClassNativeInterp(selector string, arity int, fn NativeInterpFunc) {
	c.ClassMethods[selector] = NewNativeInterpMethod(selector, arity, fn)
}

// AddParent appends a parent and rebuilds; slot or selector conflicts
// with the existing parents surface as class-construction errors and
// leave the class unchanged.
func (c *Class) AddParent(p *Class) *Error {
	if p == c || p.inheritsFrom(c) {
		return Errorf(ErrClassConstruction, "cycle in parents of %s", c.Name)
	}
	c.Parents = append(c.Parents, p)
	if err := c.Rebuild(); err != nil {
		c.Parents = c.Parents[:len(c.Parents)-1]
		// Restore the previous merged state.
		_ = c.Rebuild()
		return err
	}
	p.Subclasses = append(p.Subclasses, c)
	return nil
}

// Derive creates a subclass with c as sole parent and the given extra
// slot names.
func (c *Class) Derive(name string, slotNames []string) (*Class, *Error) {
	return NewClass(name, []*Class{c}, slotNames)
}

// LookupMethod resolves a selector through the merged instance table.
func (c *Class) LookupMethod(selector string) *BoundMethod {
	return c.AllMethods[selector]
}

// LookupClassMethod resolves a selector through the merged class-side
// table.
func (c *Class) LookupClassMethod(selector string) *BoundMethod {
	return c.AllClassMethods[selector]
}

// ---------------------------------------------------------------------------
// ClassTable: global class registry
// ---------------------------------------------------------------------------

// ClassTable manages registered classes by name. It is the owning edge
// of the class graph and is safe for concurrent access.
type ClassTable struct {
	mu      sync.RWMutex
	classes map[string]*Class
}

// NewClassTable creates an empty class table.
func NewClassTable() *ClassTable {
	return &ClassTable{classes: make(map[string]*Class)}
}

// Register adds a class, returning any class previously registered
// under the same name.
func (ct *ClassTable) Register(c *Class) *Class {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	old := ct.classes[c.Name]
	ct.classes[c.Name] = c
	return old
}

// Lookup finds a class by name, or nil.
func (ct *ClassTable) Lookup(name string) *Class {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.classes[name]
}

// Has reports whether a class with this name is registered.
func (ct *ClassTable) Has(name string) bool {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	_, ok := ct.classes[name]
	return ok
}

// All returns every registered class.
func (ct *ClassTable) All() []*Class {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	out := make([]*Class, 0, len(ct.classes))
	for _, c := range ct.classes {
		out = append(out, c)
	}
	return out
}

// Len returns the number of registered classes.
func (ct *ClassTable) Len() int {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return len(ct.classes)
}
