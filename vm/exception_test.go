package vm

import (
	"strings"
	"testing"
)

func TestOnDoCatchesValueError(t *testing.T) {
	vm := NewVM()
	v := doit(t, vm, `[1/0] on: Error do: [:e | e messageText]`)
	wantString(t, v, "division by zero")
}

func TestOnDoHandlerValueReplacesBlockValue(t *testing.T) {
	vm := NewVM()
	wantInt(t, doit(t, vm, "[Error signal: 'boom'. 99] on: Error do: [:e | 7]"), 7)
	// Without an error the protected block's value flows through.
	wantInt(t, doit(t, vm, "[99] on: Error do: [:e | 7]"), 99)
}

func TestSignalCarriesMessage(t *testing.T) {
	vm := NewVM()
	wantString(t, doit(t, vm, "[Error signal: 'boom'] on: Error do: [:e | e messageText]"), "boom")
}

func TestUserExceptionClasses(t *testing.T) {
	vm := NewVM()
	v := doit(t, vm, `
		NotFound := Error derive.
		[NotFound signal: 'missing'] on: NotFound do: [:e | e messageText]`)
	wantString(t, v, "missing")

	// A parent-class handler catches subclass signals.
	wantString(t, doit(t, vm,
		"[NotFound signal: 'missing'] on: Error do: [:e | e messageText]"), "missing")

	// A sibling-class handler does not.
	_, err := vm.Doit(`
		Timeout := Error derive.
		[NotFound signal: 'missing'] on: Timeout do: [:e | e messageText]`)
	if err == nil {
		t.Fatal("a non-matching handler must not catch")
	}
}

func TestNestedHandlers(t *testing.T) {
	vm := NewVM()
	v := doit(t, vm, `
		Inner := Error derive.
		Outer := Error derive.
		[[Outer signal: 'o'] on: Inner do: [:e | "inner"]] on: Outer do: [:e | "outer"]`)
	wantString(t, v, "outer")
}

func TestStackTraceInnermostFirst(t *testing.T) {
	vm := NewVM()
	v := doit(t, vm, `
		Deep := Object derive.
		Deep >> inner [ ^ 1/0 ].
		Deep >> outer [ ^ self inner ].
		[Deep new outer] on: Error do: [:e | e stackTrace]`)
	arr := v.AsArray()
	if arr == nil || len(arr.Elems) < 2 {
		t.Fatalf("stackTrace = %s, want at least two frames", v.String())
	}
	first := arr.Elems[0].Str()
	if !strings.Contains(first, "inner") {
		t.Errorf("innermost frame = %q, want the inner method first", first)
	}
	var joined []string
	for _, e := range arr.Elems {
		joined = append(joined, e.Str())
	}
	trace := strings.Join(joined, "|")
	if !strings.Contains(trace, "outer") {
		t.Errorf("trace %q should mention the outer method", trace)
	}
}

func TestUnhandledErrorReportsKind(t *testing.T) {
	vm := NewVM()
	for _, tc := range []struct {
		source string
		kind   string
	}{
		{"1/0", "value"},
		{"3 frobnicate", "dispatch"},
		{"[:a | a] value", "dispatch"},
		{"undefinedThing + 1", "value"},
		{"7 // 0", "value"},
	} {
		_, err := vm.Doit(tc.source)
		if err == nil {
			t.Errorf("%q: expected an error", tc.source)
			continue
		}
		if !strings.Contains(err.Error(), tc.kind) {
			t.Errorf("%q: error = %v, want kind %s", tc.source, err, tc.kind)
		}
	}
}

func TestErrorOnObject(t *testing.T) {
	vm := NewVM()
	wantString(t, doit(t, vm, "[3 error: 'bad'] on: Error do: [:e | e messageText]"), "bad")
}

func TestHandlerRunsOutsideProtectedActivations(t *testing.T) {
	vm := NewVM()
	// After recovery the activation stack is balanced again.
	doit(t, vm, "[1/0] on: Error do: [:e | nil]")
	in := vm.Scheduler.Main().In
	if in.ActivationDepth() != 0 {
		t.Errorf("activation depth = %d after recovery, want 0", in.ActivationDepth())
	}
	if in.StackLen() != 0 {
		t.Errorf("stack = %d after recovery, want 0", in.StackLen())
	}
}

func TestMonitorReleasedOnError(t *testing.T) {
	vm := NewVM()
	// An error inside critical: releases the monitor on the unwind.
	v := doit(t, vm, `
		errMon := Monitor new.
		[errMon critical: [1/0]] on: Error do: [:e | nil].
		errMon isLocked`)
	if v != False {
		t.Error("monitor must be released when the critical block fails")
	}
}

func TestDivisionRequiresIntegers(t *testing.T) {
	vm := NewVM()
	for _, source := range []string{"7 // 2.0", `7 \ 2.0`} {
		if _, err := vm.Doit(source); err == nil {
			t.Errorf("%q: integer-only operator accepted a float", source)
		}
	}
}
