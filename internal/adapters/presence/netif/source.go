package netif

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/bnema/offlinectl/internal/adapters/presence/static"
	"github.com/bnema/offlinectl/internal/ports"
)

const DefaultInterval = 2 * time.Second

// ProbeFunc reports whether the host currently has network presence.
type ProbeFunc func() (bool, error)

type Options struct {
	Interval time.Duration
	Probe    ProbeFunc
	Clock    ports.Clock
	Logger   *slog.Logger
}

// Source polls the host's network interfaces and reports transitions.
type Source struct {
	*static.Source

	probe    ProbeFunc
	interval time.Duration
	clock    ports.Clock
	logger   *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

var _ ports.PresenceSource = (*Source)(nil)

func NewSource(opts Options) *Source {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Probe == nil {
		opts.Probe = HasUsableInterface
	}
	if opts.Clock == nil {
		opts.Clock = ports.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	s := &Source{
		probe:    opts.Probe,
		interval: opts.Interval,
		clock:    opts.Clock,
		logger:   opts.Logger.With("component", "presence"),
	}

	online, err := s.probe()
	if err != nil {
		s.logger.Warn("probe network interfaces", "error", err)
		online = true
	}
	s.Source = static.NewSource(online)

	return s
}

// Start polls until ctx ends or Close is called.
func (s *Source) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	ticker := s.clock.NewTicker(s.interval)

	s.wg.Add(1)
	go s.poll(ctx, ticker)
}

func (s *Source) Close() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (s *Source) poll(ctx context.Context, ticker ports.Ticker) {
	defer s.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			online, err := s.probe()
			if err != nil {
				s.logger.Warn("probe network interfaces", "error", err)
				continue
			}
			s.Set(online)
		}
	}
}

// HasUsableInterface reports whether any interface other than loopback is up and
// carries at least one address.
func HasUsableInterface() (bool, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return false, fmt.Errorf("list network interfaces: %w", err)
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		if len(addrs) > 0 {
			return true, nil
		}
	}

	return false, nil
}
