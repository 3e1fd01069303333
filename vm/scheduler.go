package vm

import (
	"github.com/tliron/commonlog"
)

var schedLog = commonlog.GetLogger("loom.scheduler")

// ---------------------------------------------------------------------------
// Process: a lightweight thread of execution with its own VM state
// ---------------------------------------------------------------------------

// ProcState is a process lifecycle state.
type ProcState int

const (
	StateReady ProcState = iota
	StateRunning
	StateBlocked
	StateSuspended
	StateTerminated
)

var procStateNames = [...]string{
	StateReady:      "ready",
	StateRunning:    "running",
	StateBlocked:    "blocked",
	StateSuspended:  "suspended",
	StateTerminated: "terminated",
}

func (s ProcState) String() string {
	if int(s) < len(procStateNames) {
		return procStateNames[s]
	}
	return "unknown"
}

// Process owns one interpreter's worth of VM state, multiplexed with
// its peers by the scheduler.
type Process struct {
	ID       int64
	Name     string
	State    ProcState
	Priority int

	In     *Interp
	Result Value
	Err    *Error

	// Proxy is the Instance through which Loom code sees this process.
	Proxy *Instance
}

// ---------------------------------------------------------------------------
// Scheduler: single-threaded cooperative round-robin
// ---------------------------------------------------------------------------

// Scheduler multiplexes processes over one OS thread. There is no
// parallelism: between yield points a process runs atomically with
// respect to its peers.
type Scheduler struct {
	vm      *VM
	ready   []*Process
	blocked []*Process
	main    *Process
	active  *Process
	nextPID int64
}

// NewScheduler creates a scheduler with a main process.
func NewScheduler(vm *VM) *Scheduler {
	s := &Scheduler{vm: vm, nextPID: 1}
	s.main = s.newProcess("main")
	s.main.State = StateRunning
	return s
}

func (s *Scheduler) newProcess(name string) *Process {
	p := &Process{
		ID:    s.nextPID,
		Name:  name,
		State: StateReady,
		In:    NewInterp(s.vm),
	}
	s.nextPID++
	p.In.proc = p
	return p
}

// Main returns the main process.
func (s *Scheduler) Main() *Process { return s.main }

// Active returns the currently running process, or the main process.
func (s *Scheduler) Active() *Process {
	if s.active != nil {
		return s.active
	}
	return s.main
}

// Fork allocates a process whose initial work applies blk with no
// arguments. The root application is detached: a ^ inside the forked
// block is a local return, since the forker's activation is
// unreachable from the new process.
func (s *Scheduler) Fork(blk *Block) *Process {
	p := s.newProcess("")
	p.In.pushFrame(applyFrame{argc: 0, block: blk, detached: true})
	s.ready = append(s.ready, p)
	s.bindProxy(p)
	schedLog.Debugf("fork: pid %d ready", p.ID)
	return p
}

// bindProxy wraps a process in its Loom-visible instance.
func (s *Scheduler) bindProxy(p *Process) {
	if p.Proxy == nil && s.vm.ProcessClass != nil {
		p.Proxy = NewProxy(s.vm.ProcessClass, p)
	}
}

// HasReady reports whether any process is ready to run.
func (s *Scheduler) HasReady() bool { return len(s.ready) > 0 }

// ReadyCount returns the ready-list length.
func (s *Scheduler) ReadyCount() int { return len(s.ready) }

// BlockedCount returns the blocked-list length.
func (s *Scheduler) BlockedCount() int { return len(s.blocked) }

// Step runs the next ready process until it yields, blocks or
// terminates. Round-robin order, weighted by priority: the first
// process holding the highest priority among the ready list runs.
func (s *Scheduler) Step() {
	idx := s.pickReady()
	if idx < 0 {
		return
	}
	p := s.ready[idx]
	s.ready = append(s.ready[:idx], s.ready[idx+1:]...)
	s.runProcess(p)
}

func (s *Scheduler) pickReady() int {
	if len(s.ready) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(s.ready); i++ {
		if s.ready[i].Priority > s.ready[best].Priority {
			best = i
		}
	}
	return best
}

// runProcess drives one process and files it by outcome.
func (s *Scheduler) runProcess(p *Process) {
	prev := s.active
	s.active = p
	p.State = StateRunning
	state := p.In.Run()
	s.active = prev

	switch state {
	case RunYielded:
		p.State = StateReady
		s.ready = append(s.ready, p)
	case RunBlocked:
		p.State = StateBlocked
		s.blocked = append(s.blocked, p)
		schedLog.Debugf("pid %d blocked", p.ID)
	case RunCompleted:
		p.State = StateTerminated
		if p.In.StackLen() > 0 {
			p.Result = p.In.stack[p.In.StackLen()-1]
		} else {
			p.Result = Nil
		}
		p.In.reset(0)
		schedLog.Debugf("pid %d completed", p.ID)
	case RunErrored:
		p.State = StateTerminated
		p.Err = p.In.lastErr
		p.Result = Nil
		p.In.reset(0)
		schedLog.Infof("pid %d terminated with error: %s", p.ID, p.Err.Message)
	}
}

// StepAll runs one step for every process that was ready when the
// round began. Processes forked during the round wait for the next one.
func (s *Scheduler) StepAll() {
	n := len(s.ready)
	for i := 0; i < n && len(s.ready) > 0; i++ {
		s.Step()
	}
}

// RunToCompletion steps until no process is ready. Remaining blocked
// processes have no possible wake-up on a single thread, so they are a
// deadlock.
func (s *Scheduler) RunToCompletion() *Error {
	for s.HasReady() {
		s.Step()
	}
	if len(s.blocked) > 0 {
		return Errorf(ErrScheduler, "deadlock: %d processes blocked with no possible wake-up",
			len(s.blocked))
	}
	return nil
}

// Wake moves a blocked process back to ready. The woken send was
// rewound, so the blocking condition is re-examined before committing.
func (s *Scheduler) Wake(p *Process) {
	if p == nil || p.State != StateBlocked {
		return
	}
	for i, b := range s.blocked {
		if b == p {
			s.blocked = append(s.blocked[:i], s.blocked[i+1:]...)
			break
		}
	}
	p.State = StateReady
	if p != s.main {
		s.ready = append(s.ready, p)
	}
	schedLog.Debugf("pid %d woken", p.ID)
}

// Suspend parks a ready process without discarding its state.
func (s *Scheduler) Suspend(p *Process) {
	if p.State != StateReady {
		return
	}
	for i, r := range s.ready {
		if r == p {
			s.ready = append(s.ready[:i], s.ready[i+1:]...)
			break
		}
	}
	p.State = StateSuspended
}

// Resume returns a suspended process to the ready list.
func (s *Scheduler) Resume(p *Process) {
	if p.State != StateSuspended {
		return
	}
	p.State = StateReady
	s.ready = append(s.ready, p)
}

// Terminate discards a process's VM state. Its pending frames never
// run.
func (s *Scheduler) Terminate(p *Process) {
	for i, r := range s.ready {
		if r == p {
			s.ready = append(s.ready[:i], s.ready[i+1:]...)
			break
		}
	}
	for i, b := range s.blocked {
		if b == p {
			s.blocked = append(s.blocked[:i], s.blocked[i+1:]...)
			break
		}
	}
	p.State = StateTerminated
	p.In.reset(0)
	schedLog.Debugf("pid %d terminated", p.ID)
}
