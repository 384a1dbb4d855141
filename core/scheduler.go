package core

import (
	"container/heap"
	"runtime"
)

// Scheduler is a discrete-event scheduler over virtual time measured in
// minutes from simulation start. Logical processes run as goroutines, but
// exactly one is ever active: the scheduler resumes a process, then blocks
// until that process suspends (Sleep, resource wait) or terminates before
// advancing the clock to the next event. Events scheduled for the same
// time fire in insertion order, so runs are fully deterministic.
type Scheduler struct {
	now     float64
	seq     uint64
	events  eventHeap
	yield   chan struct{}
	done    chan struct{}
	stopped bool
}

// NewScheduler creates a scheduler with the clock at zero.
func NewScheduler() *Scheduler {
	return &Scheduler{
		yield: make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Now returns the current virtual time in minutes.
func (s *Scheduler) Now() float64 { return s.now }

// Stop requests early termination. The currently active process runs until
// its next suspension point; no further events are dispatched after that.
func (s *Scheduler) Stop() { s.stopped = true }

// Stopped reports whether Stop was called before the run completed.
func (s *Scheduler) Stopped() bool { return s.stopped }

// Spawn registers a new process starting at virtual time at. Starts that
// land in the past fire at the current time, after already-queued events.
func (s *Scheduler) Spawn(at float64, fn func(*Proc)) {
	if at < s.now {
		at = s.now
	}
	s.push(&schedEvent{at: at, fn: fn})
}

// SpawnNow registers a process to start at the current virtual time.
func (s *Scheduler) SpawnNow(fn func(*Proc)) {
	s.Spawn(s.now, fn)
}

// Run dispatches events in time order until the queue drains, the clock
// reaches until, or Stop is called. Events scheduled at exactly until are
// not dispatched. It returns the final clock value. Processes still
// suspended at return are abandoned; call Shutdown to release them.
func (s *Scheduler) Run(until float64) float64 {
	for s.events.Len() > 0 && !s.stopped {
		ev := heap.Pop(&s.events).(*schedEvent)
		if ev.at >= until {
			break
		}
		s.now = ev.at

		if ev.fn != nil {
			s.start(ev.fn)
		} else {
			ev.proc.resume <- struct{}{}
		}
		// Wait for the resumed process to suspend or finish.
		<-s.yield
	}
	if !s.stopped && s.now < until {
		s.now = until
	}
	return s.now
}

// Shutdown releases every process still parked in the scheduler. It must
// be called exactly once, after Run has returned.
func (s *Scheduler) Shutdown() {
	close(s.done)
}

func (s *Scheduler) start(fn func(*Proc)) {
	p := &Proc{s: s, resume: make(chan struct{})}
	go func() {
		defer func() {
			select {
			case s.yield <- struct{}{}:
			case <-s.done:
			}
		}()
		fn(p)
	}()
}

func (s *Scheduler) push(ev *schedEvent) {
	ev.seq = s.seq
	s.seq++
	heap.Push(&s.events, ev)
}

func (s *Scheduler) scheduleWake(p *Proc, at float64) {
	s.push(&schedEvent{at: at, proc: p})
}

// Proc is the handle a logical process uses to interact with virtual time.
// All Proc methods must be called from the process's own goroutine.
type Proc struct {
	s      *Scheduler
	resume chan struct{}
}

// Sleep suspends the process for d virtual minutes. A non-positive or
// infinite d still yields control: zero re-queues the process at the
// current instant, infinity parks it past the end of the run.
func (p *Proc) Sleep(d float64) {
	if d < 0 {
		d = 0
	}
	p.s.scheduleWake(p, p.s.now+d)
	p.park()
}

// Now returns the current virtual time in minutes.
func (p *Proc) Now() float64 { return p.s.now }

// park hands control back to the scheduler and blocks until resumed. On
// scheduler shutdown the goroutine exits instead of resuming.
func (p *Proc) park() {
	p.s.yield <- struct{}{}
	select {
	case <-p.resume:
	case <-p.s.done:
		runtime.Goexit()
	}
}

// Resource is a capacity-limited pool with a FIFO wait queue: at most
// capacity processes hold a slot, and waiters acquire strictly in arrival
// order. Mirrors treatment slots and repair bays at nodes.
type Resource struct {
	s        *Scheduler
	capacity int
	inUse    int
	waiters  []*Proc
}

// NewResource creates a resource with the given slot count.
func NewResource(s *Scheduler, capacity int) *Resource {
	return &Resource{s: s, capacity: capacity}
}

// Acquire claims a slot, suspending the calling process until one is
// available.
func (r *Resource) Acquire(p *Proc) {
	if r.inUse < r.capacity {
		r.inUse++
		return
	}
	r.waiters = append(r.waiters, p)
	p.park()
}

// Release frees the caller's slot. If a process is waiting the slot
// transfers directly to the head of the queue, which resumes at the
// current instant.
func (r *Resource) Release() {
	if len(r.waiters) > 0 {
		w := r.waiters[0]
		r.waiters = r.waiters[1:]
		r.s.scheduleWake(w, r.s.now)
		return
	}
	r.inUse--
}

// InUse returns the number of currently held slots.
func (r *Resource) InUse() int { return r.inUse }

type schedEvent struct {
	at   float64
	seq  uint64
	proc *Proc       // wake a parked process, or
	fn   func(*Proc) // start a new one
}

type eventHeap []*schedEvent

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) { *h = append(*h, x.(*schedEvent)) }

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return ev
}
