package vm

import (
	"testing"
)

func mustClass(t *testing.T, name string, parents []*Class, slots []string) *Class {
	t.Helper()
	c, err := NewClass(name, parents, slots)
	if err != nil {
		t.Fatalf("NewClass(%s): %s", name, err.Message)
	}
	return c
}

func TestMergedSlotLayout(t *testing.T) {
	object := mustClass(t, "Object", nil, nil)
	a := mustClass(t, "A", []*Class{object}, []string{"x", "y"})
	b := mustClass(t, "B", []*Class{a}, []string{"z"})

	want := []string{"x", "y", "z"}
	if len(b.AllSlotNames) != len(want) {
		t.Fatalf("allSlotNames = %v, want %v", b.AllSlotNames, want)
	}
	for i, n := range want {
		if b.AllSlotNames[i] != n {
			t.Errorf("slot %d = %q, want %q", i, b.AllSlotNames[i], n)
		}
		if b.SlotIndex(n) != i {
			t.Errorf("SlotIndex(%q) = %d, want %d", n, b.SlotIndex(n), i)
		}
	}
}

func TestSlotConflict(t *testing.T) {
	object := mustClass(t, "Object", nil, nil)
	a := mustClass(t, "A", []*Class{object}, []string{"x"})

	if _, err := NewClass("B", []*Class{a}, []string{"x"}); err == nil {
		t.Fatal("duplicate slot name should be a class-construction error")
	} else if err.Kind != ErrClassConstruction {
		t.Errorf("error kind = %s, want class-construction", err.Kind)
	}
}

func TestSlotConflictAcrossParents(t *testing.T) {
	object := mustClass(t, "Object", nil, nil)
	a := mustClass(t, "A", []*Class{object}, []string{"x"})
	b := mustClass(t, "B", []*Class{object}, []string{"x"})

	if _, err := NewClass("C", []*Class{a, b}, nil); err == nil {
		t.Fatal("slot name shared by two parents should be a class-construction error")
	}
}

func TestSelectorConflictAcrossParents(t *testing.T) {
	object := mustClass(t, "Object", nil, nil)
	a := mustClass(t, "A", []*Class{object}, nil)
	b := mustClass(t, "B", []*Class{object}, nil)
	a.AddNative("foo", 0, func(recv Value, args []Value) (Value, *Error) { return FromInt(1), nil })
	b.AddNative("foo", 0, func(recv Value, args []Value) (Value, *Error) { return FromInt(2), nil })
	if err := a.Rebuild(); err != nil {
		t.Fatal(err)
	}
	if err := b.Rebuild(); err != nil {
		t.Fatal(err)
	}

	if _, err := NewClass("C", []*Class{a, b}, nil); err == nil {
		t.Fatal("selector defined by two unrelated parents should conflict")
	} else if err.Kind != ErrClassConstruction {
		t.Errorf("error kind = %s", err.Kind)
	}

	// A child override resolves the tie.
	c := &Class{
		Name:         "C",
		Parents:      []*Class{a, b},
		Methods:      map[string]*MethodEntry{},
		ClassMethods: map[string]*MethodEntry{},
	}
	c.AddNative("foo", 0, func(recv Value, args []Value) (Value, *Error) { return FromInt(3), nil })
	if err := c.Rebuild(); err != nil {
		t.Fatalf("override should resolve the conflict: %s", err.Message)
	}
}

func TestDiamondIsNotAConflict(t *testing.T) {
	object := mustClass(t, "Object", nil, nil)
	object.AddNative("shared", 0, func(recv Value, args []Value) (Value, *Error) { return Nil, nil })
	if err := object.Rebuild(); err != nil {
		t.Fatal(err)
	}
	a := mustClass(t, "A", []*Class{object}, nil)
	b := mustClass(t, "B", []*Class{object}, nil)

	if _, err := NewClass("C", []*Class{a, b}, nil); err != nil {
		t.Fatalf("a diamond over the same entry must merge cleanly: %s", err.Message)
	}
}

func TestParentCycle(t *testing.T) {
	object := mustClass(t, "Object", nil, nil)
	a := mustClass(t, "A", []*Class{object}, nil)
	b := mustClass(t, "B", []*Class{a}, nil)

	if err := a.AddParent(b); err == nil {
		t.Fatal("cycle in parents should be a class-construction error")
	} else if err.Kind != ErrClassConstruction {
		t.Errorf("error kind = %s", err.Kind)
	}
}

func TestEagerInvalidation(t *testing.T) {
	object := mustClass(t, "Object", nil, nil)
	p := mustClass(t, "P", []*Class{object}, nil)
	mid := mustClass(t, "Mid", []*Class{p}, nil)
	c := mustClass(t, "C", []*Class{mid}, nil)

	if c.LookupMethod("greet") != nil {
		t.Fatal("greet should not exist yet")
	}
	if err := p.AddMethod("greet", NewNativeMethod("greet", 0,
		func(recv Value, args []Value) (Value, *Error) { return FromString("hi"), nil })); err != nil {
		t.Fatal(err)
	}
	bm := c.LookupMethod("greet")
	if bm == nil {
		t.Fatal("installing on P must be immediately visible on C (two levels down)")
	}
	if bm.Defining != p {
		t.Errorf("defining class = %s, want P", bm.Defining.Name)
	}
}

func TestLeftToRightParentPriority(t *testing.T) {
	object := mustClass(t, "Object", nil, nil)
	base := mustClass(t, "Base", []*Class{object}, nil)
	base.AddNative("foo", 0, func(recv Value, args []Value) (Value, *Error) { return FromInt(0), nil })
	if err := base.Rebuild(); err != nil {
		t.Fatal(err)
	}
	// Left parent overrides Base; right parent just inherits it. The
	// more specific definition wins without a conflict.
	left := mustClass(t, "Left", []*Class{base}, nil)
	left.AddNative("foo", 0, func(recv Value, args []Value) (Value, *Error) { return FromInt(1), nil })
	if err := left.Rebuild(); err != nil {
		t.Fatal(err)
	}
	right := mustClass(t, "Right", []*Class{base}, nil)

	c := mustClass(t, "C", []*Class{left, right}, nil)
	bm := c.LookupMethod("foo")
	if bm == nil || bm.Defining != left {
		t.Errorf("merged foo should come from Left, got %+v", bm)
	}
}

func TestAddParentRollsBackOnConflict(t *testing.T) {
	object := mustClass(t, "Object", nil, nil)
	a := mustClass(t, "A", []*Class{object}, []string{"x"})
	b := mustClass(t, "B", []*Class{object}, []string{"x"})
	c := mustClass(t, "C", []*Class{a}, nil)

	if err := c.AddParent(b); err == nil {
		t.Fatal("conflicting addParent: should fail")
	}
	if len(c.Parents) != 1 || c.Parents[0] != a {
		t.Errorf("parents after failed addParent = %v", c.Parents)
	}
	if c.SlotIndex("x") != 0 {
		t.Error("merged layout should be restored after rollback")
	}
}

func TestDeriveRegistersSubclassBackref(t *testing.T) {
	object := mustClass(t, "Object", nil, nil)
	sub, err := object.Derive("Sub", []string{"a"})
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, s := range object.Subclasses {
		if s == sub {
			found = true
		}
	}
	if !found {
		t.Error("derive must register the subclass back-reference")
	}
}

func TestInstanceLayout(t *testing.T) {
	object := mustClass(t, "Object", nil, nil)
	cls := mustClass(t, "Pt", []*Class{object}, []string{"x", "y"})
	inst := NewInstance(cls)

	if inst.NumSlots() != 2 {
		t.Fatalf("slots = %d, want 2", inst.NumSlots())
	}
	for i := 0; i < inst.NumSlots(); i++ {
		if !inst.GetSlot(i).IsNil() {
			t.Errorf("slot %d should start nil", i)
		}
	}
	inst.SetSlot(1, FromInt(9))
	if inst.GetSlot(1).Int() != 9 {
		t.Error("slot write lost")
	}
}
