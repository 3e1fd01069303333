package vm

import (
	"strings"
	"testing"
)

func TestRoundRobinFairness(t *testing.T) {
	vm := NewVM()
	// Each process appends its id between yields; with FIFO stepping,
	// every process finishes unit k before any process runs unit k+1.
	v := doit(t, vm, `
		Order := Array new.
		pa := Processor fork: [3 timesRepeat: [Order := Order copyWith: 1. Processor yield]].
		pb := Processor fork: [3 timesRepeat: [Order := Order copyWith: 2. Processor yield]].
		pc := Processor fork: [3 timesRepeat: [Order := Order copyWith: 3. Processor yield]].
		Scheduler runToCompletion.
		Order`)
	arr := v.AsArray()
	if arr == nil || len(arr.Elems) != 9 {
		t.Fatalf("order = %s, want 9 entries", v.String())
	}
	want := []int64{1, 2, 3, 1, 2, 3, 1, 2, 3}
	for i, w := range want {
		if arr.Elems[i].Int() != w {
			t.Fatalf("order = %s, want strict round robin", v.String())
		}
	}
}

func TestForkResultAndState(t *testing.T) {
	vm := NewVM()
	v := doit(t, vm, `
		p := Processor fork: [21 * 2].
		Scheduler runToCompletion.
		p result`)
	wantInt(t, v, 42)
	wantString(t, doit(t, vm, "p state"), "terminated")
	if v := doit(t, vm, "p pid"); !v.IsInt() || v.Int() < 2 {
		t.Errorf("pid = %s, want a pid above the main process", v.String())
	}
}

func TestSuspendResume(t *testing.T) {
	vm := NewVM()
	doit(t, vm, `
		Hit := false.
		ps := Processor fork: [Hit := true].
		ps suspend.
		Scheduler runToCompletion`)
	if doit(t, vm, "Hit") != False {
		t.Fatal("a suspended process must not run")
	}
	wantString(t, doit(t, vm, "ps state"), "suspended")

	doit(t, vm, "ps resume. Scheduler runToCompletion")
	if doit(t, vm, "Hit") != True {
		t.Fatal("a resumed process must run")
	}
	wantString(t, doit(t, vm, "ps state"), "terminated")
}

func TestTerminateDiscardsPendingWork(t *testing.T) {
	vm := NewVM()
	doit(t, vm, `
		Ran := false.
		pt := Processor fork: [Ran := true].
		pt terminate.
		Scheduler runToCompletion`)
	if doit(t, vm, "Ran") != False {
		t.Fatal("a terminated process's pending frames must never run")
	}
	wantString(t, doit(t, vm, "pt state"), "terminated")
}

func TestForkedNonLocalReturnIsLocal(t *testing.T) {
	vm := NewVM()
	// ^ in a forked block is a local return, not an error: the forker's
	// activation is unreachable from the new process.
	v := doit(t, vm, `
		pr := Processor fork: [^ 99].
		Scheduler runToCompletion.
		pr result`)
	wantInt(t, v, 99)
	wantString(t, doit(t, vm, "pr state"), "terminated")
}

func TestProcessNames(t *testing.T) {
	vm := NewVM()
	wantString(t, doit(t, vm, `
		pn := Processor fork: [nil].
		pn name: "worker".
		pn name`), "worker")
}

func TestPriorityPreference(t *testing.T) {
	vm := NewVM()
	// The higher-priority process runs all its units first.
	v := doit(t, vm, `
		Trace := Array new.
		plow := Processor fork: [2 timesRepeat: [Trace := Trace copyWith: #low. Processor yield]].
		phigh := Processor fork: [2 timesRepeat: [Trace := Trace copyWith: #high. Processor yield]].
		phigh priority: 10.
		Scheduler runToCompletion.
		Trace first`)
	if !v.IsSymbol() || v.Str() != "high" {
		t.Errorf("first trace entry = %s, want #high", v.String())
	}
}

func TestProcessErrorTerminatesOnlyThatProcess(t *testing.T) {
	vm := NewVM()
	v := doit(t, vm, `
		pe := Processor fork: [1/0].
		ok := Processor fork: [7].
		Scheduler runToCompletion.
		ok result`)
	wantInt(t, v, 7)
	wantString(t, doit(t, vm, "pe state"), "terminated")
	if v := doit(t, vm, "pe result"); !v.IsNil() {
		t.Errorf("errored process result = %s, want nil", v.String())
	}
}

func TestDeadlockDetection(t *testing.T) {
	vm := NewVM()
	_, err := vm.Doit(`
		sem := Semaphore new.
		pd := Processor fork: [sem wait].
		Scheduler runToCompletion`)
	if err == nil {
		t.Fatal("a blocked process with no possible wake-up is a deadlock")
	}
	if !strings.Contains(err.Error(), "scheduler") {
		t.Errorf("error = %v, want scheduler kind", err)
	}
}

func TestMainBlockingIsWokenByForkedProcess(t *testing.T) {
	vm := NewVM()
	// Main blocks on get; a forked producer wakes it.
	v := doit(t, vm, `
		q := SharedQueue new.
		Processor fork: [q put: 31].
		q get`)
	wantInt(t, v, 31)
}
