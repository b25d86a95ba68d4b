// Package scheduler implements the single-goroutine discrete-event queue
// that drives the simulation. Callbacks fire in nondecreasing simulated-time
// order; events scheduled for the same instant fire in scheduling order.
package scheduler

import (
	"container/heap"
	"time"
)

// Event is a scheduled callback. It can be cancelled up to the moment it
// fires; cancelling a fired or already cancelled event is a no-op.
type Event struct {
	fireAt time.Duration
	seq    uint64
	index  int
	fn     func()
	s      *Scheduler
}

// Time returns the simulated time at which the event fires.
func (e *Event) Time() time.Duration {
	return e.fireAt
}

// Cancel removes the event from the timeline. Safe to call on a nil event.
func (e *Event) Cancel() {
	if e == nil || e.index < 0 {
		return
	}
	heap.Remove(&e.s.queue, e.index)
}

// Pending returns true when the event is still queued.
func (e *Event) Pending() bool {
	return e != nil && e.index >= 0
}

type eventQueue []*Event

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].fireAt == q[j].fireAt {
		return q[i].seq < q[j].seq
	}
	return q[i].fireAt < q[j].fireAt
}

func (q eventQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *eventQueue) Push(x interface{}) {
	ev := x.(*Event)
	ev.index = len(*q)
	*q = append(*q, ev)
}

func (q *eventQueue) Pop() interface{} {
	old := *q
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	ev.index = -1
	*q = old[:n-1]
	return ev
}

// Scheduler holds the virtual clock and the pending event queue. It is not
// safe for concurrent use; the whole simulation runs on one goroutine.
type Scheduler struct {
	now   time.Duration
	seq   uint64
	queue eventQueue
}

// New creates a Scheduler with the clock at zero.
func New() *Scheduler {
	return &Scheduler{}
}

// Now returns the current simulated time.
func (s *Scheduler) Now() time.Duration {
	return s.now
}

// Len returns the number of pending events.
func (s *Scheduler) Len() int {
	return len(s.queue)
}

// ScheduleAt queues fn to run at the given simulated time. Times in the
// past fire at the current time.
func (s *Scheduler) ScheduleAt(at time.Duration, fn func()) *Event {
	if at < s.now {
		at = s.now
	}
	s.seq++
	ev := &Event{
		fireAt: at,
		seq:    s.seq,
		fn:     fn,
		s:      s,
	}
	heap.Push(&s.queue, ev)
	return ev
}

// ScheduleIn queues fn to run after the given delay.
func (s *Scheduler) ScheduleIn(delay time.Duration, fn func()) *Event {
	return s.ScheduleAt(s.now+delay, fn)
}

// Step fires the next pending event. It returns false when the queue is
// empty.
func (s *Scheduler) Step() bool {
	if len(s.queue) == 0 {
		return false
	}
	ev := heap.Pop(&s.queue).(*Event)
	s.now = ev.fireAt
	ev.fn()
	return true
}

// RunUntil fires all events up to and including the given time, then
// advances the clock to it.
func (s *Scheduler) RunUntil(end time.Duration) {
	for len(s.queue) > 0 && s.queue[0].fireAt <= end {
		s.Step()
	}
	if s.now < end {
		s.now = end
	}
}

// Run fires events until the queue is empty.
func (s *Scheduler) Run() {
	for s.Step() {
	}
}
