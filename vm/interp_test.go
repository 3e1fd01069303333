package vm

import (
	"strings"
	"testing"
)

func doit(t *testing.T, vm *VM, source string) Value {
	t.Helper()
	v, err := vm.Doit(source)
	if err != nil {
		t.Fatalf("doit %q: %v", source, err)
	}
	return v
}

func wantInt(t *testing.T, v Value, n int64) {
	t.Helper()
	if !v.IsInt() || v.Int() != n {
		t.Fatalf("result = %s, want Int(%d)", v.String(), n)
	}
}

func wantString(t *testing.T, v Value, s string) {
	t.Helper()
	if !v.IsString() || v.Str() != s {
		t.Fatalf("result = %s, want String(%q)", v.String(), s)
	}
}

// ---------------------------------------------------------------------------
// End-to-end scenarios
// ---------------------------------------------------------------------------

func TestArithmetic(t *testing.T) {
	vm := NewVM()
	wantInt(t, doit(t, vm, "3 + 4"), 7)
	wantInt(t, doit(t, vm, "2 + 3 * 4"), 20) // binary sends are left-associative
	wantInt(t, doit(t, vm, "2 + (3 * 4)"), 14)
	wantInt(t, doit(t, vm, "7 \\ 2"), 1)
	wantInt(t, doit(t, vm, "7 // 2"), 3)
	wantInt(t, doit(t, vm, "-7 // 2"), -4)
	if v := doit(t, vm, "3 + 0.5"); !v.IsFloat() || v.Float() != 3.5 {
		t.Errorf("3 + 0.5 = %s, want 3.5", v.String())
	}
}

func TestClassWithSlotsAndMethods(t *testing.T) {
	vm := NewVM()
	v := doit(t, vm, `
		Point := Object derive: #(x y).
		Point >> moveBy: dx and: dy [ x := x + dx. y := y + dy. ^ self ].
		p := Point new.
		p x: 100.
		p y: 200.
		p moveBy: 10 and: 20.
		p x`)
	wantInt(t, v, 110)
	wantInt(t, doit(t, vm, "p y"), 220)
}

func TestNonLocalReturnThroughIteration(t *testing.T) {
	vm := NewVM()
	v := doit(t, vm, `
		findFirstEven := [:arr | arr do: [:n | (n \ 2) == 0 ifTrue: [^ n]]. ^ nil].
		findFirstEven value: #(1 3 5 2 4)`)
	wantInt(t, v, 2)

	if v := doit(t, vm, "findFirstEven value: #(1 3 5)"); !v.IsNil() {
		t.Errorf("no even element should answer nil, got %s", v.String())
	}
}

func TestCounterClosure(t *testing.T) {
	vm := NewVM()
	v := doit(t, vm, `
		makeCounter := [| c | c := 0. [c := c + 1. c]].
		k := makeCounter value.
		k value.
		k value.
		k value`)
	wantInt(t, v, 3)
}

func TestMonitorWithForkedProcesses(t *testing.T) {
	vm := NewVM()
	v := doit(t, vm, `
		m := Monitor new.
		n := 0.
		p1 := Processor fork: [10 timesRepeat: [m critical: [n := n + 1]. Processor yield]].
		p2 := Processor fork: [10 timesRepeat: [m critical: [n := n + 1]. Processor yield]].
		[p1 state = "terminated" and: [p2 state = "terminated"]] whileFalse: [Scheduler step].
		n`)
	wantInt(t, v, 20)
}

func TestSuperChain(t *testing.T) {
	vm := NewVM()
	v := doit(t, vm, `
		A := Object derive.
		A >> foo [ ^ "A" ].
		B := A derive.
		B >> foo [ ^ super foo , "B" ].
		C := B derive.
		C >> foo [ ^ super foo , "C" ].
		C new foo`)
	wantString(t, v, "ABC")
}

// ---------------------------------------------------------------------------
// Universal invariants
// ---------------------------------------------------------------------------

func TestStackDiscipline(t *testing.T) {
	vm := NewVM()
	vals, err := vm.EvalStatements("1 + 1. 2 + 2. 3 + 3")
	if err != nil {
		t.Fatal(err)
	}
	if len(vals) != 3 {
		t.Fatalf("values = %d, want one per statement", len(vals))
	}
	in := vm.Scheduler.Main().In
	if in.QueueLen() != 0 {
		t.Errorf("work queue = %d, want 0", in.QueueLen())
	}
	if in.StackLen() != 0 {
		t.Errorf("eval stack = %d, want 0", in.StackLen())
	}
	if in.ActivationDepth() != 0 {
		t.Errorf("activation depth = %d, want 0", in.ActivationDepth())
	}
}

func TestNoHostRecursion(t *testing.T) {
	vm := NewVM()
	v := doit(t, vm, `
		f := nil.
		f := [:x | x == 0 ifTrue: [0] ifFalse: [(f value: x - 1) + 1]].
		f value: 100000`)
	wantInt(t, v, 100000)
}

func TestImplicitSelfAndCascade(t *testing.T) {
	vm := NewVM()
	v := doit(t, vm, `
		Pt := Object derive: #(x y).
		pt := Pt new.
		pt x: 1; y: 2; x`)
	wantInt(t, v, 1)
	wantInt(t, doit(t, vm, "pt y"), 2)
}

func TestConditionalsAndLoops(t *testing.T) {
	vm := NewVM()
	wantInt(t, doit(t, vm, "true ifTrue: [1] ifFalse: [2]"), 1)
	wantInt(t, doit(t, vm, "false ifTrue: [1] ifFalse: [2]"), 2)
	if v := doit(t, vm, "false ifTrue: [1]"); !v.IsNil() {
		t.Errorf("untaken ifTrue: = %s, want nil", v.String())
	}
	if v := doit(t, vm, "false and: [1/0]"); v != False {
		t.Errorf("and: must not evaluate its block when the receiver is false")
	}
	if v := doit(t, vm, "true or: [1/0]"); v != True {
		t.Errorf("or: must not evaluate its block when the receiver is true")
	}
	v := doit(t, vm, `
		sum := 0.
		i := 0.
		[i < 5] whileTrue: [sum := sum + i. i := i + 1].
		sum`)
	wantInt(t, v, 10)
}

func TestPreludeCollections(t *testing.T) {
	vm := NewVM()
	wantInt(t, doit(t, vm, "#(1 2 3 4) inject: 0 into: [:acc :e | acc + e]"), 10)
	wantInt(t, doit(t, vm, "(#(1 2 3) collect: [:e | e * 2]) at: 1"), 4)
	wantInt(t, doit(t, vm, "#(3 8 5) detect: [:e | e > 4] ifNone: [0]"), 8)
	wantInt(t, doit(t, vm, "#(1 2) detect: [:e | e > 4] ifNone: [0]"), 0)
	if v := doit(t, vm, "#(1 2 3) includes: 2"); v != True {
		t.Error("includes: failed")
	}
	v := doit(t, vm, "total := 0. 1 to: 4 do: [:i | total := total + i]. total")
	wantInt(t, v, 10)
}

func TestTables(t *testing.T) {
	vm := NewVM()
	wantInt(t, doit(t, vm, "t := Table new. t at: #k put: 5. t at: #k"), 5)
	wantInt(t, doit(t, vm, "t2 := #{#a -> 1. #b -> 2}. t2 at: #b"), 2)
	wantInt(t, doit(t, vm, "t2 size"), 2)
	wantInt(t, doit(t, vm, "t2 at: #missing ifAbsent: [42]"), 42)
}

func TestDynamicArrays(t *testing.T) {
	vm := NewVM()
	wantInt(t, doit(t, vm, "{1 + 1. 2 * 2} at: 1"), 4)
	wantInt(t, doit(t, vm, "#(1 2 3) size"), 3)
}

func TestMethodDefViaSelectorPut(t *testing.T) {
	vm := NewVM()
	v := doit(t, vm, `
		Greeter := Object derive.
		Greeter selector: #greet put: [^ "hello"].
		Greeter new greet`)
	wantString(t, v, "hello")

	v = doit(t, vm, `
		Greeter classSelector: #kind put: [^ "class-side"].
		Greeter kind`)
	wantString(t, v, "class-side")
}

func TestQualifiedSuper(t *testing.T) {
	vm := NewVM()
	v := doit(t, vm, `
		Aq := Object derive.
		Aq >> who [ ^ "A" ].
		Bq := Object derive.
		Bq >> who [ ^ "B" ].
		Cq := Object derive.
		Cq >> who [ ^ "C" ].
		Cq addParent: Aq.
		Cq addParent: Bq.
		Cq >> leftWho [ ^ super who ].
		Cq >> rightWho [ ^ super<Bq> who ].
		Cq new leftWho`)
	wantString(t, v, "A")
	wantString(t, doit(t, vm, "Cq new rightWho"), "B")

	// A qualifier outside the parent chain is a dispatch error.
	if _, err := vm.Doit("Zq := Object derive. Cq >> bad [ ^ super<Zq> who ]. Cq new bad"); err == nil {
		t.Error("super<Zq> should fail: Zq is not an ancestor of Cq")
	}
}

func TestEagerInvalidationThroughDispatch(t *testing.T) {
	vm := NewVM()
	v := doit(t, vm, `
		Pbase := Object derive.
		Pmid := Pbase derive.
		Pleaf := Pmid derive.
		leaf := Pleaf new.
		Pbase >> greet [ ^ "hi" ].
		leaf greet`)
	wantString(t, v, "hi")

	// Overriding on the middle class is immediately visible too.
	wantString(t, doit(t, vm, `Pmid >> greet [ ^ "mid" ]. leaf greet`), "mid")
}

func TestDispatchConflictThroughEval(t *testing.T) {
	vm := NewVM()
	doit(t, vm, `
		Ca := Object derive.
		Ca >> pick [ ^ 1 ].
		Cb := Object derive.
		Cb >> pick [ ^ 2 ].
		Cc := Object derive.
		Cc addParent: Ca`)

	if _, err := vm.Doit("Cc addParent: Cb"); err == nil {
		t.Fatal("merging parents that both define #pick must fail")
	} else if !strings.Contains(err.Error(), "class-construction") {
		t.Errorf("error = %v, want class-construction kind", err)
	}

	// With a child override the same merge succeeds.
	v := doit(t, vm, `
		Cd := Object derive.
		Cd >> pick [ ^ 3 ].
		Cd addParent: Ca.
		Cd addParent: Cb.
		Cd new pick`)
	wantInt(t, v, 3)
}

func TestAutoAccessorsAreOverridable(t *testing.T) {
	vm := NewVM()
	v := doit(t, vm, `
		Box := Object derive: #(contents).
		Box >> contents [ ^ "wrapped: " , contents printString ].
		b := Box new.
		b contents: 42.
		b contents`)
	wantString(t, v, "wrapped: 42")
}

func TestPrimitivePragmaFallback(t *testing.T) {
	vm := NewVM()
	// A registered native takes the primitive path.
	v := doit(t, vm, `
		Probe := Object derive.
		Probe >> myClass [ <primitive: 'objectClass'> ^ nil ].
		Probe new myClass`)
	if v.AsClass() == nil || v.AsClass().Name != "Probe" {
		t.Errorf("primitive path answered %s, want the Probe class", v.String())
	}

	// An unregistered name falls back to the body.
	v = doit(t, vm, `
		Probe >> fallback [ <primitive: 'noSuchNative'> ^ 7 ].
		Probe new fallback`)
	wantInt(t, v, 7)
}

func TestMethodFingerprint(t *testing.T) {
	vm := NewVM()
	v := doit(t, vm, `
		Fp := Object derive: #(x).
		Fp >> bump [ x := x + 1. ^ x ].
		Fp methodFingerprint: #bump`)
	if !v.IsString() || len(v.Str()) != 64 {
		t.Fatalf("fingerprint = %s, want 64 hex chars", v.String())
	}
	// Same body on a different class fingerprints identically.
	v2 := doit(t, vm, `
		Fq := Object derive: #(x).
		Fq >> bump [ x := x + 1. ^ x ].
		Fq methodFingerprint: #bump`)
	if v.Str() != v2.Str() {
		t.Error("identical bodies should share a fingerprint")
	}
}

func TestPerform(t *testing.T) {
	vm := NewVM()
	wantInt(t, doit(t, vm, "3 perform: #abs"), 3)
	wantInt(t, doit(t, vm, "3 perform: #+ withArguments: #(4)"), 7)
}

func TestDoesNotUnderstandHook(t *testing.T) {
	vm := NewVM()
	v := doit(t, vm, `
		Ghost := Object derive.
		Ghost >> doesNotUnderstand: aMessage [ ^ aMessage selector ].
		Ghost new frobnicate`)
	if !v.IsSymbol() || v.Str() != "frobnicate" {
		t.Errorf("DNU hook answered %s, want #frobnicate", v.String())
	}
}

func TestRunScriptWrapper(t *testing.T) {
	vm := NewVM()
	v, err := vm.RunScript("#!/usr/bin/env loom\n[ | a | a := 6. ^ a * 7. a := 0 ]")
	if err != nil {
		t.Fatal(err)
	}
	wantInt(t, v, 42)
}

func TestYieldOnSendConfigurable(t *testing.T) {
	vm := NewVM()
	vm.SetYieldOnSend(true)
	wantInt(t, doit(t, vm, "3 + 4"), 7)
	wantInt(t, doit(t, vm, "#(1 2 3) inject: 0 into: [:a :e | a + e]"), 6)
}
