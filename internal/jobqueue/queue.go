// Package jobqueue is a best-effort registry for task lists awaiting grouped
// execution. Jobs that are not consumed before their deadline are evicted by
// a background sweeper and abandoned, never retried; the queue is not
// durable and loses all entries on restart.
package jobqueue

import (
	"container/heap"
	"sync"
	"time"

	"go.uber.org/zap"

	"pantry.app/internal/db"
)

type entry struct {
	deadline time.Time
	id       string
}

type deadlineHeap []entry

func (h deadlineHeap) Len() int           { return len(h) }
func (h deadlineHeap) Less(i, j int) bool { return h[i].deadline.Before(h[j].deadline) }
func (h deadlineHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *deadlineHeap) Push(x any)        { *h = append(*h, x.(entry)) }
func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Queue stores pending jobs keyed by id with an absolute eviction deadline.
// Its sweeper goroutine runs only while jobs exist: the queue sleeps when
// empty and wakes on the first insertion.
type Queue struct {
	mu       sync.Mutex
	heap     deadlineHeap
	jobs     map[string][]db.Task
	running  bool
	stop     chan struct{}
	interval time.Duration
	now      func() time.Time
	log      *zap.Logger
}

// New constructs an empty queue with a one-second sweep interval.
func New(log *zap.Logger) *Queue {
	if log == nil {
		log = zap.NewNop()
	}
	return &Queue{
		jobs:     make(map[string][]db.Task),
		interval: time.Second,
		now:      time.Now,
		log:      log,
	}
}

// Add registers a task list under id with an eviction deadline, waking the
// sweeper if it was asleep.
func (q *Queue) Add(id string, tasks []db.Task, timeout time.Duration) {
	q.mu.Lock()
	heap.Push(&q.heap, entry{deadline: q.now().Add(timeout), id: id})
	q.jobs[id] = tasks
	var stop chan struct{}
	if !q.running {
		q.running = true
		q.stop = make(chan struct{})
		stop = q.stop
	}
	q.mu.Unlock()

	if stop != nil {
		go q.sweep(stop)
	}
}

// Execute pops the job's tasks, if still present, and hands them to the
// consumer. The second return is false when the job expired or never
// existed.
func (q *Queue) Execute(id string, consume func([]db.Task) db.Result) (db.Result, bool) {
	q.mu.Lock()
	tasks, ok := q.jobs[id]
	if ok {
		delete(q.jobs, id)
	}
	q.mu.Unlock()

	if !ok {
		return db.Result{}, false
	}
	return consume(tasks), true
}

// Len reports the number of pending jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Close stops the sweeper; pending jobs are discarded.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = make(map[string][]db.Task)
	q.heap = nil
	q.stopLocked()
}

func (q *Queue) stopLocked() {
	if q.running {
		q.running = false
		close(q.stop)
	}
}

func (q *Queue) sweep(stop chan struct{}) {
	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if q.evictExpired() {
				return
			}
		}
	}
}

// evictExpired drops timed-out jobs; returns true when the queue drained
// and the sweeper should go back to sleep.
func (q *Queue) evictExpired() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	for q.heap.Len() > 0 && !q.heap[0].deadline.After(now) {
		e := heap.Pop(&q.heap).(entry)
		if _, ok := q.jobs[e.id]; ok {
			delete(q.jobs, e.id)
			q.log.Warn("job timed out and was abandoned", zap.String("job_id", e.id))
		}
		// Entries whose job was already executed are skipped silently.
	}

	if len(q.jobs) == 0 {
		q.heap = q.heap[:0]
		q.stopLocked()
		return true
	}
	return false
}
