package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bnema/offlinectl/internal/domain"
	"github.com/bnema/offlinectl/internal/ports"
)

const (
	DefaultProbeInterval    = 30 * time.Second
	DefaultProbeTimeout     = 5 * time.Second
	DefaultProbeMaxRetries  = 3
	DefaultProbeBackoffBase = time.Second
)

type ProbeConfig struct {
	Interval    time.Duration
	Timeout     time.Duration
	MaxRetries  int
	BackoffBase time.Duration
}

func DefaultProbeConfig() ProbeConfig {
	return ProbeConfig{
		Interval:    DefaultProbeInterval,
		Timeout:     DefaultProbeTimeout,
		MaxRetries:  DefaultProbeMaxRetries,
		BackoffBase: DefaultProbeBackoffBase,
	}
}

func (c ProbeConfig) withDefaults() ProbeConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultProbeInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultProbeTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = DefaultProbeBackoffBase
	}

	return c
}

// Backoff returns the wait before retry number retry (1-based): BackoffBase * 2^retry.
func (c ProbeConfig) Backoff(retry int) time.Duration {
	if retry < 0 {
		retry = 0
	}

	return c.BackoffBase * time.Duration(1<<retry)
}

// Prober tracks server reachability. At most one probe cycle runs at a time; a cycle
// retries failed attempts with exponential backoff before settling.
type Prober struct {
	checker ports.HealthChecker
	clock   ports.Clock
	logger  *slog.Logger
	cfg     ProbeConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	status    domain.ServerStatus
	seq       uint64
	cycleDone chan struct{}
	started   bool

	updates *broadcaster[domain.ServerStatus]
}

func NewProber(checker ports.HealthChecker, cfg ProbeConfig, clock ports.Clock, logger *slog.Logger) *Prober {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Prober{
		checker: checker,
		clock:   clock,
		logger:  logger.With("component", "prober"),
		cfg:     cfg.withDefaults(),
		ctx:     ctx,
		cancel:  cancel,
		status:  domain.InitialServerStatus(),
		updates: newBroadcaster[domain.ServerStatus](),
	}
}

func (p *Prober) Config() ProbeConfig {
	return p.cfg
}

// Start fires one immediate cycle and then one cycle per Interval until Stop.
// A stopped prober cannot be restarted.
func (p *Prober) Start() {
	p.mu.Lock()
	if p.started || p.ctx.Err() != nil {
		p.mu.Unlock()
		return
	}
	p.started = true
	ticker := p.clock.NewTicker(p.cfg.Interval)
	p.wg.Add(1)
	p.mu.Unlock()

	go p.loop(ticker)

	p.CheckNow()
}

// Stop cancels the periodic loop and any in-flight cycle, then waits for them to exit.
func (p *Prober) Stop() {
	p.mu.Lock()
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Prober) loop(ticker ports.Ticker) {
	defer p.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C():
			if !p.CheckNow() {
				p.logger.Debug("periodic probe skipped, cycle already in flight")
			}
		}
	}
}

// CheckNow starts a probe cycle in the background. It returns false without side
// effects when a cycle is already in flight or the prober is stopped.
func (p *Prober) CheckNow() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.beginCycleLocked()
	return ok
}

// CheckAndWait starts a cycle, or joins the one in flight, and blocks until it settles
// or ctx ends. It returns the status observed at that point.
func (p *Prober) CheckAndWait(ctx context.Context) domain.ServerStatus {
	p.mu.Lock()
	done := p.cycleDone
	if done == nil {
		done, _ = p.beginCycleLocked()
	}
	p.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
		}
	}

	return p.Status()
}

func (p *Prober) Status() domain.ServerStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.status
}

// Subscribe registers fn for status changes. fn runs on the goroutine that changed
// the status and must return promptly.
func (p *Prober) Subscribe(fn func(domain.ServerStatus)) func() {
	return p.updates.subscribe(fn)
}

func (p *Prober) beginCycleLocked() (chan struct{}, bool) {
	if p.cycleDone != nil || p.ctx.Err() != nil {
		return nil, false
	}

	done := make(chan struct{})
	p.cycleDone = done
	p.status.Checking = true
	p.status.Phase = domain.ProbePhaseChecking
	p.status.RetryCount = 0
	p.status.Attempts = 0
	p.status.LastError = ""

	p.wg.Add(1)
	go p.runCycle()

	return done, true
}

func (p *Prober) runCycle() {
	defer p.wg.Done()

	p.publish(nil)

	for {
		latency, err := p.attempt()
		if p.ctx.Err() != nil {
			p.abortCycle()
			return
		}

		if err == nil {
			p.publish(func(s *domain.ServerStatus) {
				s.Attempts++
				s.LastLatency = latency
				s.LastError = ""
				s.Reachable = true
				p.settleLocked(s)
			})
			return
		}

		status := p.Status()
		p.logger.Warn("server health probe failed",
			"attempt", status.Attempts+1,
			"retry", status.RetryCount,
			"error", err,
		)

		if status.RetryCount >= p.cfg.MaxRetries {
			p.publish(func(s *domain.ServerStatus) {
				s.Attempts++
				s.LastLatency = latency
				s.LastError = err.Error()
				s.Reachable = false
				p.settleLocked(s)
			})
			return
		}

		next := p.publish(func(s *domain.ServerStatus) {
			s.Attempts++
			s.LastLatency = latency
			s.LastError = err.Error()
			s.RetryCount++
			s.Phase = domain.ProbePhaseRetrying
		})

		delay := p.cfg.Backoff(next.RetryCount)
		p.logger.Debug("retrying server health probe", "retry", next.RetryCount, "delay", delay)

		select {
		case <-p.clock.After(delay):
		case <-p.ctx.Done():
			p.abortCycle()
			return
		}
	}
}

// attempt runs one health check bounded by Timeout as measured by the prober's clock.
func (p *Prober) attempt() (time.Duration, error) {
	ctx, cancel := context.WithCancelCause(p.ctx)
	defer cancel(nil)

	timer := p.clock.NewTimer(p.cfg.Timeout)
	defer timer.Stop()

	go func() {
		select {
		case <-timer.C():
			cancel(context.DeadlineExceeded)
		case <-ctx.Done():
		}
	}()

	started := p.clock.Now()
	err := p.checker.Check(ctx)
	latency := p.clock.Now().Sub(started)

	if err != nil && p.ctx.Err() == nil && errors.Is(context.Cause(ctx), context.DeadlineExceeded) {
		err = fmt.Errorf("health check timed out after %s: %w", p.cfg.Timeout, context.DeadlineExceeded)
	}

	return latency, err
}

func (p *Prober) settleLocked(s *domain.ServerStatus) {
	s.RetryCount = 0
	s.Checking = false
	s.Phase = domain.ProbePhaseSettled
	s.LastChecked = p.clock.Now()
	p.endCycleLocked()
}

func (p *Prober) abortCycle() {
	p.publish(func(s *domain.ServerStatus) {
		s.RetryCount = 0
		s.Checking = false
		if s.LastChecked.IsZero() {
			s.Phase = domain.ProbePhaseIdle
		} else {
			s.Phase = domain.ProbePhaseSettled
		}
		p.endCycleLocked()
	})
}

func (p *Prober) endCycleLocked() {
	if p.cycleDone == nil {
		return
	}
	close(p.cycleDone)
	p.cycleDone = nil
}

// publish applies mutate under the lock and notifies listeners with the result
// after the lock is released.
func (p *Prober) publish(mutate func(*domain.ServerStatus)) domain.ServerStatus {
	p.mu.Lock()
	if mutate != nil {
		mutate(&p.status)
	}
	p.seq++
	seq := p.seq
	snapshot := p.status
	p.mu.Unlock()

	p.updates.deliver(seq, snapshot)

	return snapshot
}
