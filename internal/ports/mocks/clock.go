package mocks

import (
	"sync"
	"time"

	"github.com/bnema/offlinectl/internal/ports"
)

// FakeClock is a manually advanced ports.Clock. Timers and tickers fire only from Advance.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*fakeWaiter
	tickers []*fakeTicker
	afters  chan time.Duration
	timers  chan time.Duration
}

type fakeWaiter struct {
	deadline time.Time
	ch       chan time.Time
}

var _ ports.Clock = (*FakeClock)(nil)

func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{
		now:    now,
		afters: make(chan time.Duration, 64),
		timers: make(chan time.Duration, 64),
	}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.now
	} else {
		c.waiters = append(c.waiters, &fakeWaiter{deadline: c.now.Add(d), ch: ch})
	}

	select {
	case c.afters <- d:
	default:
	}

	return ch
}

func (c *FakeClock) NewTicker(d time.Duration) ports.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()

	ticker := &fakeTicker{
		clock:  c,
		period: d,
		next:   c.now.Add(d),
		ch:     make(chan time.Time, 1),
	}
	c.tickers = append(c.tickers, ticker)

	return ticker
}

// NewTimer registers a one-shot timer that Advance fires once its deadline passes.
// Unlike After, it is reported through WaitForTimer.
func (c *FakeClock) NewTimer(d time.Duration) ports.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	waiter := &fakeWaiter{deadline: c.now.Add(d), ch: make(chan time.Time, 1)}
	if d <= 0 {
		waiter.ch <- c.now
	} else {
		c.waiters = append(c.waiters, waiter)
	}

	select {
	case c.timers <- d:
	default:
	}

	return &fakeTimer{clock: c, waiter: waiter}
}

// Advance moves the clock forward and fires every timer and ticker that came due.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)

	pending := c.waiters[:0]
	for _, w := range c.waiters {
		if w.deadline.After(c.now) {
			pending = append(pending, w)
			continue
		}
		w.ch <- c.now
	}
	c.waiters = pending

	for _, t := range c.tickers {
		if t.stopped || t.period <= 0 {
			continue
		}
		for !t.next.After(c.now) {
			select {
			case t.ch <- c.now:
			default:
			}
			t.next = t.next.Add(t.period)
		}
	}
}

// WaitForAfter blocks until some goroutine calls After and returns the requested duration.
func (c *FakeClock) WaitForAfter(timeout time.Duration) (time.Duration, bool) {
	select {
	case d := <-c.afters:
		return d, true
	case <-time.After(timeout):
		return 0, false
	}
}

// WaitForTimer blocks until some goroutine calls NewTimer and returns its duration.
func (c *FakeClock) WaitForTimer(timeout time.Duration) (time.Duration, bool) {
	select {
	case d := <-c.timers:
		return d, true
	case <-time.After(timeout):
		return 0, false
	}
}

func (c *FakeClock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.waiters)
}

type fakeTicker struct {
	clock   *FakeClock
	period  time.Duration
	next    time.Time
	ch      chan time.Time
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time {
	return t.ch
}

func (t *fakeTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	t.stopped = true
}

type fakeTimer struct {
	clock  *FakeClock
	waiter *fakeWaiter
}

func (t *fakeTimer) C() <-chan time.Time {
	return t.waiter.ch
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	for i, w := range t.clock.waiters {
		if w == t.waiter {
			t.clock.waiters = append(t.clock.waiters[:i], t.clock.waiters[i+1:]...)
			return true
		}
	}

	return false
}
