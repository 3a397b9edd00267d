package scheduler

import (
	"sync"
	"time"
)

// Clock is the time source the scheduler runs on.
type Clock interface {
	Now() time.Time
	AfterFunc(delay time.Duration, fn func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

func RealClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(delay time.Duration, fn func()) Timer {
	return time.AfterFunc(delay, fn)
}

// VirtualClock only moves when Advance is called. Timers fire synchronously
// inside Advance, in due order.
type VirtualClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers []*virtualTimer
}

type virtualTimer struct {
	clock   *VirtualClock
	due     time.Time
	seq     uint64
	fn      func()
	stopped bool
}

func NewVirtualClock(start time.Time) *VirtualClock {
	return &VirtualClock{now: start}
}

func (c *VirtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *VirtualClock) AfterFunc(delay time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if delay < 0 {
		delay = 0
	}
	c.seq++
	timer := &virtualTimer{clock: c, due: c.now.Add(delay), seq: c.seq, fn: fn}
	c.timers = append(c.timers, timer)
	return timer
}

// Advance moves the clock forward by delay, firing every timer that comes due
// on the way, including timers registered by callbacks.
func (c *VirtualClock) Advance(delay time.Duration) {
	c.mu.Lock()
	target := c.now.Add(delay)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.popDueLocked(target)
		if next == nil {
			if target.After(c.now) {
				c.now = target
			}
			c.mu.Unlock()
			return
		}
		if next.due.After(c.now) {
			c.now = next.due
		}
		c.mu.Unlock()
		next.fn()
	}
}

// Pending counts timers that have not fired or been stopped.
func (c *VirtualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

func (c *VirtualClock) popDueLocked(target time.Time) *virtualTimer {
	best := -1
	for index, timer := range c.timers {
		if timer.due.After(target) {
			continue
		}
		if best < 0 || earlier(timer, c.timers[best]) {
			best = index
		}
	}
	if best < 0 {
		return nil
	}
	timer := c.timers[best]
	c.timers = append(c.timers[:best], c.timers[best+1:]...)
	return timer
}

func earlier(a, b *virtualTimer) bool {
	if a.due.Equal(b.due) {
		return a.seq < b.seq
	}
	return a.due.Before(b.due)
}

func (t *virtualTimer) Stop() bool {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	for index, timer := range c.timers {
		if timer == t {
			c.timers = append(c.timers[:index], c.timers[index+1:]...)
			t.stopped = true
			return true
		}
	}
	return false
}
