package static

import (
	"sync"

	"github.com/bnema/offlinectl/internal/ports"
)

// Source is a presence source whose state only changes through Set.
type Source struct {
	mu           sync.Mutex
	online       bool
	listeners    map[int]func(bool)
	nextListener int
}

var _ ports.PresenceSource = (*Source)(nil)

func NewSource(online bool) *Source {
	return &Source{online: online, listeners: map[int]func(bool){}}
}

func (s *Source) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.online
}

// Set updates the state and notifies listeners when it changed.
func (s *Source) Set(online bool) {
	s.mu.Lock()
	if s.online == online {
		s.mu.Unlock()
		return
	}
	s.online = online
	listeners := make([]func(bool), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(online)
	}
}

func (s *Source) Subscribe(fn func(online bool)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Source) Listeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.listeners)
}
