// Package pool implements the bounded FIFO task queue drained by an
// elastic set of worker goroutines: backpressure on submission, idle
// worker reaping, and deadlock-free shutdown.
package pool

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ldi/taskpool/pkg/canceltoken"
	"github.com/ldi/taskpool/pkg/deadline"
	"github.com/ldi/taskpool/pkg/task"
)

// Outcome is published to Subscribe callbacks when a submitted task leaves
// Pending, whatever the reason (ran to completion, failed, or discarded
// during shutdown).
type Outcome struct {
	ID          string
	State       task.State
	Failure     string
	SubmittedAt time.Time
	FinishedAt  time.Time
	Duration    time.Duration
}

// Handle is what Submit returns: the Task itself plus the bookkeeping a
// caller or an observer (the audit store, the dashboard) wants but which
// the core Task type has no opinion about.
type Handle struct {
	*task.Task
	ID          string
	SubmittedAt time.Time
}

type submissionMeta struct {
	id          string
	submittedAt time.Time
}

// Pool is the ThreadPool of the design: one mutex serialises the queue,
// the worker counts, and the lifecycle flag; three condition variables
// signal item-available, space-available, and fully-idle.
type Pool struct {
	mu         sync.Mutex
	queue      task.Queue
	maxQueue   int
	maxThreads int
	// idleTimeout is the worker self-termination delay; set to 0 during
	// shutdown so any worker that becomes idle exits immediately.
	idleTimeout time.Duration
	// stackSizeKB mirrors the original per-worker stack reservation knob.
	// Goroutines have growable stacks with no fixed reservation, so this
	// is retained only for config fidelity and is otherwise inert.
	stackSizeKB int

	totalCount int
	idleCount  int
	destroying bool

	cvItem  *sync.Cond
	cvSpace *sync.Cond
	cvIdle  *sync.Cond

	meta sync.Map // *task.Task -> submissionMeta

	subMu sync.Mutex
	subs  []func(Outcome)
}

// New creates a ThreadPool with zero worker goroutines; none are spawned
// until the first submission needs one.
func New(maxThreads, maxQueueLen int, idleTimeout time.Duration, stackSizeKB int) *Pool {
	if maxThreads < 1 {
		maxThreads = 1
	}
	if maxQueueLen < 1 {
		maxQueueLen = 1
	}
	p := &Pool{
		maxThreads:  maxThreads,
		maxQueue:    maxQueueLen,
		idleTimeout: idleTimeout,
		stackSizeKB: stackSizeKB,
	}
	p.cvItem = sync.NewCond(&p.mu)
	p.cvSpace = sync.NewCond(&p.mu)
	p.cvIdle = sync.NewCond(&p.mu)
	return p
}

// Subscribe registers fn to be called, outside the pool mutex and after
// the task's state has already been published, whenever a submitted task
// leaves Pending. Used by the audit store and the dashboard; never by the
// core scheduling path.
func (p *Pool) Subscribe(fn func(Outcome)) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	p.subs = append(p.subs, fn)
}

// Submit enqueues action (with an explicit cancel token, or nil to use the
// task's own) and returns its Handle immediately. If the queue is full,
// Submit blocks until space frees up or the pool starts destroying. If the
// pool is already destroying, the returned task is born Discarded and
// never enqueued. Submitting from inside one of this pool's own tasks is
// allowed, but can deadlock when the queue is full: the submitting worker
// blocks waiting for space that only the pool's workers can free.
func (p *Pool) Submit(action task.Action, cancel canceltoken.Canceler) *Handle {
	t := task.New(action, cancel)
	h := &Handle{Task: t, ID: uuid.NewString(), SubmittedAt: time.Now()}

	if p.isDestroying() {
		t.Discard()
		p.notify(t, h)
		return h
	}

	p.mu.Lock()
	if p.destroying {
		p.mu.Unlock()
		t.Discard()
		p.notify(t, h)
		return h
	}

	for p.queue.Len() >= p.maxQueue && !p.destroying {
		p.cvSpace.Wait()
	}
	if p.destroying {
		p.mu.Unlock()
		t.Discard()
		p.notify(t, h)
		return h
	}

	p.meta.Store(t, submissionMeta{id: h.ID, submittedAt: h.SubmittedAt})
	p.queue.Append(t)

	wake, spawn := false, false
	if p.idleCount > 0 {
		wake = true
	} else if p.totalCount < p.maxThreads {
		p.totalCount++
		spawn = true
	}
	p.mu.Unlock()

	switch {
	case wake:
		p.cvItem.Signal()
	case spawn:
		go p.workerMain()
	}
	return h
}

func (p *Pool) isDestroying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.destroying
}

// WaitIdle blocks, without a timeout, until the queue is empty and every
// worker is idle. It does not change pool state; the caller is responsible
// for avoiding liveness problems (new submissions racing the observation).
func (p *Pool) WaitIdle() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for !(p.queue.Len() == 0 && p.idleCount == p.totalCount) {
		p.cvIdle.Wait()
	}
}

// Stats is a point-in-time snapshot for diagnostics (the MCP control
// surface and the dashboard header both use this).
type Stats struct {
	TotalWorkers int
	IdleWorkers  int
	QueueLen     int
	Destroying   bool
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		TotalWorkers: p.totalCount,
		IdleWorkers:  p.idleCount,
		QueueLen:     p.queue.Len(),
		Destroying:   p.destroying,
	}
}

// workerMain is the body of one worker goroutine, looping: block for a
// task (reaping itself after an idle period), run it, repeat.
func (p *Pool) workerMain() {
	for {
		p.mu.Lock()
		p.idleCount++
		idleDeadline := deadline.FromDuration(p.idleTimeout)

		for p.queue.Len() == 0 {
			if p.idleCount == p.totalCount {
				p.cvIdle.Broadcast()
			}
			if p.idleTimeout == 0 {
				p.totalCount--
				p.idleCount--
				if p.totalCount == 0 {
					p.cvIdle.Broadcast()
				}
				p.mu.Unlock()
				return
			}

			woke := waitUntil(p.cvItem, idleDeadline)
			if !woke {
				if p.queue.Len() > 0 {
					break // rare race: a task arrived right at the deadline
				}
				p.totalCount--
				p.idleCount--
				if p.totalCount == 0 {
					p.cvIdle.Broadcast()
				}
				p.mu.Unlock()
				return
			}
		}

		t := p.queue.ExtractFront()
		p.idleCount--
		p.mu.Unlock()

		p.cvSpace.Signal()

		t.Execute()
		p.notify(t, nil)
	}
}

// Close proceeds through the shutdown algorithm: refuse new work, let
// in-flight tasks run to completion, discard everything still queued, and
// wait for every worker to exit. It never force-stops a running task.
func (p *Pool) Close() {
	p.mu.Lock()
	p.destroying = true
	p.idleTimeout = 0
	p.mu.Unlock()
	p.cvItem.Broadcast()

	p.mu.Lock()
	var discarded []*task.Task
	for p.queue.Len() > 0 {
		t := p.queue.ExtractFront()
		t.Discard()
		discarded = append(discarded, t)
	}
	// Discarding here freed queue space; wake any submitter still blocked
	// on backpressure so it can observe destroying and discard itself.
	p.cvSpace.Broadcast()
	for p.totalCount != 0 {
		p.cvIdle.Wait()
	}
	p.mu.Unlock()

	for _, t := range discarded {
		p.notify(t, nil)
	}
}

func (p *Pool) notify(t *task.Task, h *Handle) {
	var m submissionMeta
	if h != nil {
		m = submissionMeta{id: h.ID, submittedAt: h.SubmittedAt}
	} else {
		v, ok := p.meta.Load(t)
		if !ok {
			return
		}
		p.meta.Delete(t)
		m = v.(submissionMeta)
	}

	failureMsg, _ := t.Failure()
	o := Outcome{
		ID:          m.id,
		State:       t.State(),
		Failure:     failureMsg,
		SubmittedAt: m.submittedAt,
		FinishedAt:  time.Now(),
	}
	o.Duration = o.FinishedAt.Sub(o.SubmittedAt)

	p.subMu.Lock()
	subs := make([]func(Outcome), len(p.subs))
	copy(subs, p.subs)
	p.subMu.Unlock()
	for _, fn := range subs {
		fn(o)
	}
}

// waitUntil waits on cond (whose mutex must already be held) until either
// woken or d elapses, returning false on elapse. The deadline is absolute
// and computed once by the caller, so a retried wait after a spurious
// wake-up respects the original expiry rather than a reset clock.
func waitUntil(cond *sync.Cond, d deadline.Deadline) bool {
	if d.IsInfinite() {
		cond.Wait()
		return true
	}
	remaining := d.Remaining()
	if remaining <= 0 {
		return false
	}

	timer := time.AfterFunc(remaining, func() {
		cond.L.Lock()
		cond.Broadcast()
		cond.L.Unlock()
	})
	cond.Wait()
	timer.Stop()
	return !d.IsElapsed()
}
