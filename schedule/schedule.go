// Package schedule runs deferred work against a virtual clock that only moves
// when the owning loop advances it. Every machine keeps one, so timers fire at
// the same simulated instant regardless of wall-clock jitter.
package schedule

import (
	"container/heap"
	"time"
)

// Key identifies a task. Scheduling a key that is already pending replaces it.
type Key struct {
	Kind uint8
	ID   uint64
}

// Func receives the virtual time the task was due at.
type Func func(now time.Duration)

type task struct {
	key   Key
	due   time.Duration
	seq   uint64
	fn    Func
	index int
}

type taskQueue []*task

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].due != q[j].due {
		return q[i].due < q[j].due
	}
	return q[i].seq < q[j].seq
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x any) {
	t := x.(*task)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}

// Scheduler is not safe for concurrent use; it belongs to one loop.
type Scheduler struct {
	now   time.Duration
	seq   uint64
	queue taskQueue
	byKey map[Key]*task
}

func New() *Scheduler {
	return &Scheduler{byKey: make(map[Key]*task)}
}

// Now is the virtual time elapsed since the scheduler was created.
func (s *Scheduler) Now() time.Duration {
	return s.now
}

// After schedules fn to run d from now. Negative delays run on the next Advance.
func (s *Scheduler) After(key Key, d time.Duration, fn Func) {
	if d < 0 {
		d = 0
	}
	s.At(key, s.now+d, fn)
}

// At schedules fn for an absolute virtual time.
func (s *Scheduler) At(key Key, due time.Duration, fn Func) {
	s.Cancel(key)
	s.seq++
	t := &task{key: key, due: due, seq: s.seq, fn: fn}
	heap.Push(&s.queue, t)
	s.byKey[key] = t
}

// Cancel drops a pending task and reports whether one existed.
func (s *Scheduler) Cancel(key Key) bool {
	t, ok := s.byKey[key]
	if !ok {
		return false
	}
	delete(s.byKey, key)
	heap.Remove(&s.queue, t.index)
	return true
}

func (s *Scheduler) Pending(key Key) bool {
	_, ok := s.byKey[key]
	return ok
}

// Due returns when key will fire.
func (s *Scheduler) Due(key Key) (time.Duration, bool) {
	t, ok := s.byKey[key]
	if !ok {
		return 0, false
	}
	return t.due, true
}

func (s *Scheduler) Len() int {
	return len(s.queue)
}

// Advance moves the clock forward by dt, running every task that falls due in
// order. Now reports each task's due time while it runs. Tasks scheduled from
// inside a callback run in the same call if they fall inside the window.
func (s *Scheduler) Advance(dt time.Duration) {
	target := s.now + dt
	for len(s.queue) > 0 && s.queue[0].due <= target {
		t := heap.Pop(&s.queue).(*task)
		delete(s.byKey, t.key)
		if t.due > s.now {
			s.now = t.due
		}
		t.fn(s.now)
	}
	s.now = target
}
