// Package scheduler delivers delayed bot replies in due order.
package scheduler

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"
)

type Token uint64

const drainPollInterval = 10 * time.Millisecond

type task struct {
	token Token
	due   time.Time
	run   func()
	index int
}

// taskQueue orders by due time, then by token so equal offsets keep their
// scheduling order.
type taskQueue []*task

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].due.Equal(q[j].due) {
		return q[i].token < q[j].token
	}
	return q[i].due.Before(q[j].due)
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(value any) {
	item := value.(*task)
	item.index = len(*q)
	*q = append(*q, item)
}

func (q *taskQueue) Pop() any {
	old := *q
	last := len(old) - 1
	item := old[last]
	old[last] = nil
	item.index = -1
	*q = old[:last]
	return item
}

type Scheduler struct {
	clock  Clock
	logger *slog.Logger

	deliver sync.Mutex

	mu        sync.Mutex
	queue     taskQueue
	byToken   map[Token]*task
	lastToken Token
	timer     Timer
	armedFor  time.Time
	armGen    uint64
	closed    bool
}

func New(clock Clock, logger *slog.Logger) *Scheduler {
	if clock == nil {
		clock = RealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		clock:   clock,
		logger:  logger,
		byToken: map[Token]*task{},
	}
}

func (s *Scheduler) Now() time.Time {
	return s.clock.Now()
}

// Schedule queues run for delivery at due. A due time in the past fires on the
// next pass. The zero token means the scheduler was closed.
func (s *Scheduler) Schedule(due time.Time, run func()) Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || run == nil {
		return 0
	}
	s.lastToken++
	item := &task{token: s.lastToken, due: due, run: run}
	heap.Push(&s.queue, item)
	s.byToken[item.token] = item
	s.armLocked()
	return item.token
}

func (s *Scheduler) After(delay time.Duration, run func()) Token {
	return s.Schedule(s.clock.Now().Add(delay), run)
}

// Cancel drops a task that has not been handed to a fire pass yet.
func (s *Scheduler) Cancel(token Token) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.byToken[token]
	if !ok {
		return false
	}
	heap.Remove(&s.queue, item.index)
	delete(s.byToken, token)
	s.armLocked()
	return true
}

func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Drain blocks until every queued task has been delivered or ctx ends.
func (s *Scheduler) Drain(ctx context.Context) error {
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()
	for {
		// a pass that already popped its tasks still holds the delivery lock
		s.deliver.Lock()
		idle := s.Pending() == 0
		s.deliver.Unlock()
		if idle {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close drops every outstanding task. Later Schedule calls are ignored.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	dropped := len(s.queue)
	s.queue = nil
	s.byToken = map[Token]*task{}
	s.disarmLocked()
	if dropped > 0 {
		s.logger.Debug("scheduler closed with pending replies", "dropped", dropped)
	}
}

func (s *Scheduler) armLocked() {
	if len(s.queue) == 0 {
		s.disarmLocked()
		return
	}
	head := s.queue[0].due
	if s.timer != nil && !head.Before(s.armedFor) {
		return
	}
	s.disarmLocked()
	delay := head.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}
	s.armGen++
	gen := s.armGen
	s.armedFor = head
	s.timer = s.clock.AfterFunc(delay, func() { s.fire(gen) })
}

func (s *Scheduler) disarmLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// fire pops every due task under the delivery lock so that two overlapping
// passes can never interleave their appends.
func (s *Scheduler) fire(gen uint64) {
	s.deliver.Lock()
	defer s.deliver.Unlock()

	s.mu.Lock()
	if gen == s.armGen {
		s.timer = nil
	}
	now := s.clock.Now()
	var due []*task
	for len(s.queue) > 0 && !s.queue[0].due.After(now) {
		item := heap.Pop(&s.queue).(*task)
		delete(s.byToken, item.token)
		due = append(due, item)
	}
	if !s.closed {
		s.armLocked()
	}
	s.mu.Unlock()

	for _, item := range due {
		s.run(item)
	}
}

func (s *Scheduler) run(item *task) {
	defer func() {
		if recovered := recover(); recovered != nil {
			s.logger.Error("scheduled reply panicked", "token", uint64(item.token), "panic", recovered)
		}
	}()
	item.run()
}
